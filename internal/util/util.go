package util

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"strings"
)

// NormalizePhone reduces a raw phone input to a canonical international key.
// Everything except digits is stripped (a leading "+" survives), a leading
// domestic "8" becomes "+7", and any other bare number gets a "+" prefix.
func NormalizePhone(raw string) string {
	var b strings.Builder
	for _, r := range strings.TrimSpace(raw) {
		switch {
		case r >= '0' && r <= '9':
			b.WriteRune(r)
		case r == '+' && b.Len() == 0:
			b.WriteRune(r)
		}
	}
	phone := b.String()
	switch {
	case phone == "":
		return phone
	case strings.HasPrefix(phone, "8"):
		return "+7" + phone[1:]
	case !strings.HasPrefix(phone, "+"):
		return "+" + phone
	}
	return phone
}

func HMACSHA256Hex(secret, msg string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(msg))
	return hex.EncodeToString(mac.Sum(nil))
}
