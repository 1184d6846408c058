package store

import (
	"database/sql"
	"encoding/json"
	"time"

	"github.com/lib/pq"

	appErrors "raffle-bot/internal/errors"
	"raffle-bot/internal/models"
)

type CampaignRepositoryInterface interface {
	// GetRunning returns the single active+running campaign, nil when the
	// bot is paused.
	GetRunning() (*models.Campaign, error)
	GetBySlug(slug string) (*models.Campaign, error)

	// Campaign control
	Start(slug string) error
	Stop(slug string) error

	// RecordDraw persists winners, the draw timestamp, the raffled status
	// and the cleared running flag as one atomic write. A campaign that
	// already holds winners is rejected.
	RecordDraw(c *models.Campaign, winners []models.Winner, drawnAt time.Time) error
}

type CampaignRepository struct {
	DB *sql.DB
}

const campaignColumns = `
	id, slug, name, status, running,
	first_message, conditions_text, share_phone_button, conditions_button,
	channels, winners_requested, winners, raffle_at, created_at
`

func (r *CampaignRepository) GetRunning() (*models.Campaign, error) {
	query := `SELECT ` + campaignColumns + `
		FROM campaigns WHERE status = 'active' AND running = TRUE LIMIT 1`
	c, err := scanCampaign(r.DB.QueryRow(query))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return c, nil
}

func (r *CampaignRepository) GetBySlug(slug string) (*models.Campaign, error) {
	query := `SELECT ` + campaignColumns + ` FROM campaigns WHERE slug = $1`
	c, err := scanCampaign(r.DB.QueryRow(query, slug))
	if err == sql.ErrNoRows {
		return nil, appErrors.NewCampaignNotFound(slug)
	}
	if err != nil {
		return nil, err
	}
	return c, nil
}

// campaignStartLockID keys the advisory lock serializing Start transactions.
const campaignStartLockID = 812761

// Start sets the running flag after a check-and-set inside one transaction:
// no other campaign may hold the flag, and the campaign must be active.
// Starting a campaign that is already running is a no-op. The advisory lock
// is required for mutual exclusion: with no campaign running the check below
// matches zero rows and locks nothing, so two concurrent starts would both
// pass it.
func (r *CampaignRepository) Start(slug string) error {
	tx, err := r.DB.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.Exec(`SELECT pg_advisory_xact_lock($1)`, campaignStartLockID); err != nil {
		return err
	}

	var runningSlug string
	err = tx.QueryRow(`SELECT slug FROM campaigns WHERE running = TRUE LIMIT 1 FOR UPDATE`).Scan(&runningSlug)
	switch {
	case err == nil:
		if runningSlug == slug {
			return tx.Commit()
		}
		return appErrors.NewAnotherCampaignRunning(runningSlug)
	case err != sql.ErrNoRows:
		return err
	}

	var status string
	err = tx.QueryRow(`SELECT status FROM campaigns WHERE slug = $1 FOR UPDATE`, slug).Scan(&status)
	if err == sql.ErrNoRows {
		return appErrors.NewCampaignNotFound(slug)
	}
	if err != nil {
		return err
	}
	if status != string(models.StatusActive) {
		return appErrors.NewCampaignNotActive(slug, status)
	}

	if _, err := tx.Exec(`UPDATE campaigns SET running = TRUE WHERE slug = $1`, slug); err != nil {
		return err
	}
	return tx.Commit()
}

// Stop clears the running flag. Stopping an already stopped campaign
// succeeds.
func (r *CampaignRepository) Stop(slug string) error {
	res, err := r.DB.Exec(`UPDATE campaigns SET running = FALSE WHERE slug = $1`, slug)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return appErrors.NewCampaignNotFound(slug)
	}
	return nil
}

func (r *CampaignRepository) RecordDraw(c *models.Campaign, winners []models.Winner, drawnAt time.Time) error {
	payload, err := json.Marshal(winners)
	if err != nil {
		return err
	}
	query := `
		UPDATE campaigns
		SET winners = $1, raffle_at = $2, status = 'raffled', running = FALSE
		WHERE id = $3 AND winners = '[]'::jsonb
	`
	res, err := r.DB.Exec(query, payload, drawnAt, c.ID)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return appErrors.NewAlreadyRaffled(c.Slug)
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanCampaign(row rowScanner) (*models.Campaign, error) {
	var c models.Campaign
	var channels pq.StringArray
	var winnersRaw []byte
	err := row.Scan(
		&c.ID, &c.Slug, &c.Name, &c.Status, &c.Running,
		&c.FirstMessage, &c.ConditionsText, &c.SharePhoneButton, &c.ConditionsButton,
		&channels, &c.WinnersRequested, &winnersRaw, &c.RaffleAt, &c.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	c.Channels = channels
	if len(winnersRaw) > 0 {
		if err := json.Unmarshal(winnersRaw, &c.Winners); err != nil {
			return nil, err
		}
	}
	return &c, nil
}

var _ CampaignRepositoryInterface = (*CampaignRepository)(nil)
