package models

import "time"

type CampaignStatus string

const (
	StatusDraft    CampaignStatus = "draft"
	StatusActive   CampaignStatus = "active"
	StatusFinished CampaignStatus = "finished"
	StatusRaffled  CampaignStatus = "raffled"
)

// Stage is the participant's position in the registration conversation.
// Stage writes go through the conversation engine only.
type Stage string

const (
	StageStart           Stage = "start"
	StageCollectingName  Stage = "collecting_name"
	StageCollectingPhone Stage = "collecting_phone"
	StageVerifying       Stage = "verifying_subscription"
	StageCompleted       Stage = "completed"
)

// Terminal reports whether the stage ends the registration conversation.
func (s Stage) Terminal() bool {
	return s == StageCompleted
}

type Campaign struct {
	ID               int64
	Slug             string
	Name             string
	Status           CampaignStatus
	Running          bool
	FirstMessage     string
	ConditionsText   string
	SharePhoneButton string
	ConditionsButton string
	Channels         []string
	WinnersRequested int
	Winners          []Winner
	RaffleAt         *time.Time
	CreatedAt        time.Time
}

type Participant struct {
	ID         int64
	CampaignID int64
	TelegramID int64
	Username   string
	Name       string
	Phone      string
	Subscribed bool
	Stage      Stage
	CreatedAt  time.Time
}

type Winner struct {
	Place      int    `json:"place" csv:"place"`
	Name       string `json:"name" csv:"name"`
	Phone      string `json:"phone" csv:"phone"`
	TelegramID int64  `json:"telegram_id" csv:"telegram_id"`
	Username   string `json:"username" csv:"username"`
}
