package raffle

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math/rand"
	"sync"
	"testing"
	"time"

	appErrors "raffle-bot/internal/errors"
	"raffle-bot/internal/models"
)

// ---------- Fakes ----------

type fakeCampaigns struct {
	c *fakeCampaignState
}

type fakeCampaignState struct {
	campaign models.Campaign
}

func (f *fakeCampaigns) GetRunning() (*models.Campaign, error) {
	if f.c.campaign.Running {
		cp := f.c.campaign
		return &cp, nil
	}
	return nil, nil
}

func (f *fakeCampaigns) GetBySlug(slug string) (*models.Campaign, error) {
	if f.c.campaign.Slug != slug {
		return nil, appErrors.NewCampaignNotFound(slug)
	}
	cp := f.c.campaign
	return &cp, nil
}

func (f *fakeCampaigns) Start(slug string) error { return nil }
func (f *fakeCampaigns) Stop(slug string) error  { return nil }

func (f *fakeCampaigns) RecordDraw(c *models.Campaign, winners []models.Winner, drawnAt time.Time) error {
	if len(f.c.campaign.Winners) > 0 {
		return appErrors.NewAlreadyRaffled(c.Slug)
	}
	f.c.campaign.Winners = winners
	f.c.campaign.RaffleAt = &drawnAt
	f.c.campaign.Status = models.StatusRaffled
	f.c.campaign.Running = false
	return nil
}

type fakeParticipants struct {
	eligible []models.Participant
}

func (f *fakeParticipants) Get(campaignID, telegramID int64) (*models.Participant, error) {
	return nil, nil
}
func (f *fakeParticipants) Replace(p *models.Participant) error { return nil }
func (f *fakeParticipants) Update(p *models.Participant) error  { return nil }
func (f *fakeParticipants) PhoneTakenByCompleted(campaignID int64, phone string, excludeTelegramID int64) (bool, error) {
	return false, nil
}
func (f *fakeParticipants) ListEligible(campaignID int64) ([]models.Participant, error) {
	return f.eligible, nil
}
func (f *fakeParticipants) ListByCampaign(campaignID int64) ([]models.Participant, error) {
	return f.eligible, nil
}

// ---------- Helpers ----------

func eligible(n int) []models.Participant {
	out := make([]models.Participant, 0, n)
	for i := 0; i < n; i++ {
		out = append(out, models.Participant{
			ID:         int64(i + 1),
			CampaignID: 1,
			TelegramID: int64(100 + i),
			Username:   fmt.Sprintf("user%d", i),
			Name:       fmt.Sprintf("Участник %d", i),
			Phone:      fmt.Sprintf("+7999000%04d", i),
			Subscribed: true,
			Stage:      models.StageCompleted,
		})
	}
	return out
}

func newTestEngine(campaigns *fakeCampaigns, participants *fakeParticipants) *Engine {
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	e := New(campaigns, participants, log)
	e.rnd = rand.New(rand.NewSource(1))
	return e
}

func activeCampaign() *fakeCampaigns {
	return &fakeCampaigns{c: &fakeCampaignState{campaign: models.Campaign{
		ID: 1, Slug: "promo", Status: models.StatusActive, Running: true, WinnersRequested: 1,
	}}}
}

// ---------- Tests ----------

func TestDrawAssignsSequentialRanks(t *testing.T) {
	campaigns := activeCampaign()
	e := newTestEngine(campaigns, &fakeParticipants{eligible: eligible(5)})

	winners, err := e.Draw("promo", 2)
	if err != nil {
		t.Fatalf("Draw: %v", err)
	}
	if len(winners) != 2 {
		t.Fatalf("got %d winners, want 2", len(winners))
	}
	seen := map[int64]bool{}
	for i, w := range winners {
		if w.Place != i+1 {
			t.Errorf("winner %d has place %d, want %d", i, w.Place, i+1)
		}
		if seen[w.TelegramID] {
			t.Errorf("telegram id %d selected twice", w.TelegramID)
		}
		seen[w.TelegramID] = true
	}

	c := campaigns.c.campaign
	if c.Status != models.StatusRaffled {
		t.Errorf("status = %s, want raffled", c.Status)
	}
	if c.Running {
		t.Error("running flag must be cleared by the draw")
	}
	if c.RaffleAt == nil {
		t.Error("raffle timestamp must be set")
	}
}

func TestSecondDrawRejected(t *testing.T) {
	campaigns := activeCampaign()
	e := newTestEngine(campaigns, &fakeParticipants{eligible: eligible(5)})

	if _, err := e.Draw("promo", 2); err != nil {
		t.Fatalf("first draw: %v", err)
	}
	_, err := e.Draw("promo", 2)
	var already *appErrors.ErrAlreadyRaffled
	if !errors.As(err, &already) {
		t.Fatalf("second draw error = %v, want already-raffled", err)
	}
	if len(campaigns.c.campaign.Winners) != 2 {
		t.Errorf("winners list changed by the rejected draw")
	}
}

func TestInsufficientParticipantsRejected(t *testing.T) {
	campaigns := activeCampaign()
	e := newTestEngine(campaigns, &fakeParticipants{eligible: eligible(3)})

	_, err := e.Draw("promo", 5)
	var notEnough *appErrors.ErrNotEnoughParticipants
	if !errors.As(err, &notEnough) {
		t.Fatalf("error = %v, want not-enough-participants", err)
	}
	if notEnough.Eligible != 3 || notEnough.Requested != 5 {
		t.Errorf("counts = %d/%d, want 3/5", notEnough.Eligible, notEnough.Requested)
	}
	c := campaigns.c.campaign
	if len(c.Winners) != 0 || c.Status != models.StatusActive || c.RaffleAt != nil {
		t.Error("rejected draw must persist nothing")
	}
}

func TestDrawDefaultsToCampaignWinnerCount(t *testing.T) {
	campaigns := activeCampaign()
	campaigns.c.campaign.WinnersRequested = 3
	e := newTestEngine(campaigns, &fakeParticipants{eligible: eligible(5)})

	winners, err := e.Draw("promo", 0)
	if err != nil {
		t.Fatalf("Draw: %v", err)
	}
	if len(winners) != 3 {
		t.Errorf("got %d winners, want the campaign default 3", len(winners))
	}
}

func TestDrawRejectsNonPositiveWinnerCount(t *testing.T) {
	campaigns := activeCampaign()
	campaigns.c.campaign.WinnersRequested = 0
	e := newTestEngine(campaigns, &fakeParticipants{eligible: eligible(5)})

	_, err := e.Draw("promo", 0)
	var invalid *appErrors.ErrInvalidWinnerCount
	if !errors.As(err, &invalid) {
		t.Fatalf("error = %v, want invalid-winner-count", err)
	}
	c := campaigns.c.campaign
	if c.Status != models.StatusActive || len(c.Winners) != 0 || c.RaffleAt != nil {
		t.Error("rejected draw must persist nothing")
	}

	// The campaign stays drawable once a real count arrives.
	if _, err := e.Draw("promo", 2); err != nil {
		t.Fatalf("draw with explicit count: %v", err)
	}
}

func TestDrawUnknownCampaign(t *testing.T) {
	e := newTestEngine(activeCampaign(), &fakeParticipants{eligible: eligible(5)})

	_, err := e.Draw("nope", 1)
	var notFound *appErrors.ErrCampaignNotFound
	if !errors.As(err, &notFound) {
		t.Fatalf("error = %v, want not-found", err)
	}
}

func TestWinnerUsernameFallback(t *testing.T) {
	campaigns := activeCampaign()
	pool := eligible(1)
	pool[0].Username = ""
	e := newTestEngine(campaigns, &fakeParticipants{eligible: pool})

	winners, err := e.Draw("promo", 1)
	if err != nil {
		t.Fatalf("Draw: %v", err)
	}
	if winners[0].Username != "Не указан" {
		t.Errorf("username = %q, want placeholder", winners[0].Username)
	}
}

func TestBackToBackDrawsExactlyOneSucceeds(t *testing.T) {
	campaigns := activeCampaign()
	e := newTestEngine(campaigns, &fakeParticipants{eligible: eligible(5)})

	var wg sync.WaitGroup
	errs := make([]error, 2)
	counts := make([]int, 2)
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			winners, err := e.Draw("promo", 2)
			errs[i] = err
			counts[i] = len(winners)
		}(i)
	}
	wg.Wait()

	succeeded := 0
	for i := range errs {
		if errs[i] == nil {
			succeeded++
			if counts[i] != 2 {
				t.Errorf("successful draw returned %d winners, want 2", counts[i])
			}
			continue
		}
		var already *appErrors.ErrAlreadyRaffled
		if !errors.As(errs[i], &already) {
			t.Errorf("loser error = %v, want already-raffled", errs[i])
		}
	}
	if succeeded != 1 {
		t.Fatalf("%d draws succeeded, want exactly 1", succeeded)
	}
}

func TestDrawSamplesUniformly(t *testing.T) {
	const (
		n     = 10
		k     = 2
		iters = 20000
	)
	campaigns := activeCampaign()
	e := newTestEngine(campaigns, &fakeParticipants{eligible: eligible(n)})

	counts := map[int64]int{}
	for i := 0; i < iters; i++ {
		campaigns.c.campaign.Winners = nil
		campaigns.c.campaign.Status = models.StatusActive
		campaigns.c.campaign.RaffleAt = nil

		winners, err := e.Draw("promo", k)
		if err != nil {
			t.Fatalf("iteration %d: %v", i, err)
		}
		for _, w := range winners {
			counts[w.TelegramID]++
		}
	}

	// Expected selections per candidate: iters * k / n = 4000.
	const expected = iters * k / n
	for id, got := range counts {
		if got < expected-400 || got > expected+400 {
			t.Errorf("candidate %d selected %d times, want %d±400", id, got, expected)
		}
	}
	if len(counts) != n {
		t.Errorf("only %d of %d candidates ever selected", len(counts), n)
	}
}
