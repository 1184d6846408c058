// internal/errors/errors.go
package appErrors

import "fmt"

// ErrCampaignNotFound is a sentinel error
type ErrCampaignNotFound struct {
	Slug string
}

func (e *ErrCampaignNotFound) Error() string {
	return fmt.Sprintf("campaign %q not found", e.Slug)
}

func NewCampaignNotFound(slug string) error {
	return &ErrCampaignNotFound{Slug: slug}
}

// ErrAnotherCampaignRunning rejects a start while some campaign holds the
// running flag. Slug names the campaign that is already running.
type ErrAnotherCampaignRunning struct {
	Slug string
}

func (e *ErrAnotherCampaignRunning) Error() string {
	return fmt.Sprintf("campaign %q is already running", e.Slug)
}

func NewAnotherCampaignRunning(slug string) error {
	return &ErrAnotherCampaignRunning{Slug: slug}
}

// ErrCampaignNotActive rejects a start for a campaign outside the active
// status.
type ErrCampaignNotActive struct {
	Slug   string
	Status string
}

func (e *ErrCampaignNotActive) Error() string {
	return fmt.Sprintf("campaign %q has status %q and cannot be started", e.Slug, e.Status)
}

func NewCampaignNotActive(slug, status string) error {
	return &ErrCampaignNotActive{Slug: slug, Status: status}
}

// ErrAlreadyRaffled rejects a second draw for the same campaign.
type ErrAlreadyRaffled struct {
	Slug string
}

func (e *ErrAlreadyRaffled) Error() string {
	return fmt.Sprintf("raffle already completed for campaign %q", e.Slug)
}

func NewAlreadyRaffled(slug string) error {
	return &ErrAlreadyRaffled{Slug: slug}
}

// ErrInvalidWinnerCount rejects a draw whose winner count is not positive
// after the campaign default has been applied.
type ErrInvalidWinnerCount struct {
	Slug      string
	Requested int
}

func (e *ErrInvalidWinnerCount) Error() string {
	return fmt.Sprintf("campaign %q: winner count %d must be positive", e.Slug, e.Requested)
}

func NewInvalidWinnerCount(slug string, requested int) error {
	return &ErrInvalidWinnerCount{Slug: slug, Requested: requested}
}

// ErrNotEnoughParticipants rejects a draw asking for more winners than there
// are eligible participants.
type ErrNotEnoughParticipants struct {
	Slug      string
	Eligible  int
	Requested int
}

func (e *ErrNotEnoughParticipants) Error() string {
	return fmt.Sprintf("campaign %q has %d eligible participants, %d winners requested", e.Slug, e.Eligible, e.Requested)
}

func NewNotEnoughParticipants(slug string, eligible, requested int) error {
	return &ErrNotEnoughParticipants{Slug: slug, Eligible: eligible, Requested: requested}
}
