package subscription

import (
	"log/slog"
	"strings"

	"raffle-bot/internal/telegram"
)

// Verifier checks a user's membership in every configured channel. All
// channels are checked even after a failure so the caller can show the
// complete failing set.
type Verifier struct {
	Checker telegram.MemberChecker
	Log     *slog.Logger
}

// Check returns whether the user satisfies every channel requirement and the
// ordered list of channels that failed. A lookup error or timeout counts as a
// failure of that channel only.
func (v *Verifier) Check(userID int64, channels []string) (bool, []string) {
	var failed []string
	for _, raw := range channels {
		channel := NormalizeHandle(raw)
		if channel == "" {
			continue
		}
		status, err := v.Checker.ChatMemberStatus(channel, userID)
		if err != nil {
			v.Log.Warn("subscription lookup failed", "channel", channel, "user_id", userID, "err", err)
			failed = append(failed, channel)
			continue
		}
		switch status {
		case "member", "administrator", "creator":
		default:
			failed = append(failed, channel)
		}
	}
	return len(failed) == 0, failed
}

// NormalizeHandle brings a channel identifier to the canonical @handle form.
func NormalizeHandle(s string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return ""
	}
	if !strings.HasPrefix(s, "@") {
		s = "@" + s
	}
	return s
}
