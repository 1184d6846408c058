package store

import (
	"database/sql"

	"raffle-bot/internal/models"
)

type ParticipantRepositoryInterface interface {
	// Get fetches the participant for (campaign, telegram user), nil when
	// none exists.
	Get(campaignID, telegramID int64) (*models.Participant, error)

	// Replace discards any existing record for (campaign, telegram user)
	// and inserts a fresh one in the same transaction.
	Replace(p *models.Participant) error

	Update(p *models.Participant) error

	// PhoneTakenByCompleted reports whether another completed participant
	// of the campaign already registered the phone.
	PhoneTakenByCompleted(campaignID int64, phone string, excludeTelegramID int64) (bool, error)

	// ListEligible returns subscription-verified participants in insertion
	// order.
	ListEligible(campaignID int64) ([]models.Participant, error)

	ListByCampaign(campaignID int64) ([]models.Participant, error)
}

type ParticipantRepository struct {
	DB *sql.DB
}

const participantColumns = `
	id, campaign_id, telegram_id, username, name, phone, subscribed, stage, created_at
`

func (r *ParticipantRepository) Get(campaignID, telegramID int64) (*models.Participant, error) {
	query := `SELECT ` + participantColumns + `
		FROM participants WHERE campaign_id = $1 AND telegram_id = $2`
	p, err := scanParticipant(r.DB.QueryRow(query, campaignID, telegramID))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return p, nil
}

func (r *ParticipantRepository) Replace(p *models.Participant) error {
	tx, err := r.DB.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	_, err = tx.Exec(
		`DELETE FROM participants WHERE campaign_id = $1 AND telegram_id = $2`,
		p.CampaignID, p.TelegramID,
	)
	if err != nil {
		return err
	}

	query := `
		INSERT INTO participants (campaign_id, telegram_id, username, name, phone, subscribed, stage, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, NOW())
		RETURNING id, created_at
	`
	err = tx.QueryRow(query,
		p.CampaignID, p.TelegramID, p.Username, p.Name, p.Phone, p.Subscribed, p.Stage,
	).Scan(&p.ID, &p.CreatedAt)
	if err != nil {
		return err
	}
	return tx.Commit()
}

func (r *ParticipantRepository) Update(p *models.Participant) error {
	query := `
		UPDATE participants
		SET username = $1, name = $2, phone = $3, subscribed = $4, stage = $5
		WHERE id = $6
	`
	_, err := r.DB.Exec(query, p.Username, p.Name, p.Phone, p.Subscribed, p.Stage, p.ID)
	return err
}

func (r *ParticipantRepository) PhoneTakenByCompleted(campaignID int64, phone string, excludeTelegramID int64) (bool, error) {
	var count int
	err := r.DB.QueryRow(`
		SELECT COUNT(*) FROM participants
		WHERE campaign_id = $1 AND phone = $2 AND stage = $3 AND telegram_id <> $4`,
		campaignID, phone, models.StageCompleted, excludeTelegramID,
	).Scan(&count)
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

func (r *ParticipantRepository) ListEligible(campaignID int64) ([]models.Participant, error) {
	query := `SELECT ` + participantColumns + `
		FROM participants WHERE campaign_id = $1 AND subscribed = TRUE ORDER BY id`
	return r.list(query, campaignID)
}

func (r *ParticipantRepository) ListByCampaign(campaignID int64) ([]models.Participant, error) {
	query := `SELECT ` + participantColumns + `
		FROM participants WHERE campaign_id = $1 ORDER BY id`
	return r.list(query, campaignID)
}

func (r *ParticipantRepository) list(query string, args ...interface{}) ([]models.Participant, error) {
	rows, err := r.DB.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	participants := []models.Participant{}
	for rows.Next() {
		p, err := scanParticipant(rows)
		if err != nil {
			return nil, err
		}
		participants = append(participants, *p)
	}
	return participants, rows.Err()
}

func scanParticipant(row rowScanner) (*models.Participant, error) {
	var p models.Participant
	err := row.Scan(
		&p.ID, &p.CampaignID, &p.TelegramID, &p.Username, &p.Name,
		&p.Phone, &p.Subscribed, &p.Stage, &p.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &p, nil
}

var _ ParticipantRepositoryInterface = (*ParticipantRepository)(nil)
