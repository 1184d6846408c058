package raffle

import (
	"log/slog"
	"math/rand"
	"sync"
	"time"

	appErrors "raffle-bot/internal/errors"
	"raffle-bot/internal/models"
	"raffle-bot/internal/store"
)

// Engine performs the one-time winner draw for a campaign. Draw requests are
// serialized here, and the store's guarded write makes a concurrent second
// draw from another process fail with the already-raffled rejection.
type Engine struct {
	campaigns    store.CampaignRepositoryInterface
	participants store.ParticipantRepositoryInterface
	log          *slog.Logger

	mu  sync.Mutex
	rnd *rand.Rand
}

func New(campaigns store.CampaignRepositoryInterface, participants store.ParticipantRepositoryInterface, log *slog.Logger) *Engine {
	return &Engine{
		campaigns:    campaigns,
		participants: participants,
		log:          log,
		rnd:          rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

// Draw selects k distinct winners uniformly among subscription-verified
// participants and records them with places 1..k. A campaign is drawn at
// most once; winners, draw timestamp, the raffled status and the cleared
// running flag are persisted as one atomic write.
func (e *Engine) Draw(slug string, k int) ([]models.Winner, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	c, err := e.campaigns.GetBySlug(slug)
	if err != nil {
		return nil, err
	}
	if len(c.Winners) > 0 {
		return nil, appErrors.NewAlreadyRaffled(slug)
	}
	if k <= 0 {
		k = c.WinnersRequested
	}
	// A zero-winner draw would mark the campaign raffled while the empty
	// winners list keeps both draw guards unarmed.
	if k < 1 {
		return nil, appErrors.NewInvalidWinnerCount(slug, k)
	}

	eligible, err := e.participants.ListEligible(c.ID)
	if err != nil {
		return nil, err
	}
	if len(eligible) < k {
		return nil, appErrors.NewNotEnoughParticipants(slug, len(eligible), k)
	}

	winners := make([]models.Winner, 0, k)
	for i, idx := range e.rnd.Perm(len(eligible))[:k] {
		p := eligible[idx]
		username := p.Username
		if username == "" {
			username = "Не указан"
		}
		winners = append(winners, models.Winner{
			Place:      i + 1,
			Name:       p.Name,
			Phone:      p.Phone,
			TelegramID: p.TelegramID,
			Username:   username,
		})
	}

	if err := e.campaigns.RecordDraw(c, winners, time.Now()); err != nil {
		return nil, err
	}

	e.log.Info("raffle completed", "campaign", slug, "winners", k, "eligible", len(eligible))
	return winners, nil
}
