package tgbot

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"raffle-bot/internal/models"
	"raffle-bot/internal/store"
	"raffle-bot/internal/telegram"
	"raffle-bot/internal/util"
)

type EventKind int

const (
	EventCommand EventKind = iota
	EventText
	EventContact
	EventCallback
)

// Event is the tagged inbound variant the dispatcher feeds the engine.
// Exactly one payload field is meaningful per kind: Text for commands and
// free text, Phone for shared contacts, Callback for button interactions.
type Event struct {
	Kind       EventKind
	ChatID     int64
	UserID     int64
	Username   string
	FirstName  string
	Text       string
	Phone      string
	Callback   string
	CallbackID string
}

// SubscriptionChecker is the verification surface the engine depends on.
type SubscriptionChecker interface {
	Check(userID int64, channels []string) (ok bool, failed []string)
}

// Engine drives one participant through the registration conversation.
// Transitions for the same (campaign, user) pair are serialized behind a
// per-user mutex; events for different users proceed concurrently.
type Engine struct {
	participants store.ParticipantRepositoryInterface
	sender       telegram.Sender
	verifier     SubscriptionChecker
	log          *slog.Logger

	mu     sync.Mutex
	userMu map[string]*sync.Mutex
}

func NewEngine(participants store.ParticipantRepositoryInterface, sender telegram.Sender, verifier SubscriptionChecker, log *slog.Logger) *Engine {
	return &Engine{
		participants: participants,
		sender:       sender,
		verifier:     verifier,
		log:          log,
		userMu:       map[string]*sync.Mutex{},
	}
}

func (e *Engine) HandleEvent(ctx context.Context, c *models.Campaign, ev Event) error {
	unlock := e.lockUser(c.ID, ev.UserID)
	defer unlock()

	switch ev.Kind {
	case EventCommand:
		return e.handleStart(ctx, c, ev)
	case EventText:
		return e.handleText(ctx, c, ev)
	case EventContact:
		return e.handleContact(ctx, c, ev)
	case EventCallback:
		return e.handleCallback(ctx, c, ev)
	default:
		e.log.Warn("unknown event kind", "kind", int(ev.Kind), "user_id", ev.UserID)
		return nil
	}
}

// lockUser hands out the mutex serializing transitions for one registrant.
// Mutexes live for the campaign lifetime.
func (e *Engine) lockUser(campaignID, userID int64) func() {
	key := fmt.Sprintf("%d:%d", campaignID, userID)
	e.mu.Lock()
	m, ok := e.userMu[key]
	if !ok {
		m = &sync.Mutex{}
		e.userMu[key] = m
	}
	e.mu.Unlock()
	m.Lock()
	return m.Unlock
}

// ---------- Transitions ----------

func (e *Engine) handleStart(ctx context.Context, c *models.Campaign, ev Event) error {
	p, err := e.participants.Get(c.ID, ev.UserID)
	if err != nil {
		return err
	}
	if p != nil && p.Stage.Terminal() {
		// Repeated /start after completion changes nothing.
		e.send(ev.ChatID, alreadyRegisteredText(p))
		return nil
	}

	// An incomplete record is discarded so a retry never gets stuck on
	// stale partial progress.
	np := &models.Participant{
		CampaignID: c.ID,
		TelegramID: ev.UserID,
		Username:   ev.Username,
		Name:       strings.TrimSpace(ev.FirstName),
		Stage:      models.StageCollectingName,
	}
	if err := e.participants.Replace(np); err != nil {
		return err
	}

	e.send(ev.ChatID, firstMessage(c))
	e.send(ev.ChatID, msgAskName)
	return nil
}

func (e *Engine) handleText(ctx context.Context, c *models.Campaign, ev Event) error {
	p, err := e.participants.Get(c.ID, ev.UserID)
	if err != nil {
		return err
	}
	if p == nil {
		e.send(ev.ChatID, msgPressStart)
		return nil
	}

	switch p.Stage {
	case models.StageCollectingName:
		name := strings.TrimSpace(ev.Text)
		if name == "" {
			e.send(ev.ChatID, msgAskNameAgain)
			return nil
		}
		p.Name = name
		p.Stage = models.StageCollectingPhone
		if err := e.participants.Update(p); err != nil {
			return err
		}
		e.askPhone(ev.ChatID, c, p)
		return nil
	case models.StageCollectingPhone:
		return e.submitPhone(ctx, c, p, ev.ChatID, ev.Text)
	case models.StageVerifying:
		e.send(ev.ChatID, msgUseButton)
		return nil
	case models.StageCompleted:
		return nil
	default:
		e.send(ev.ChatID, msgPressStart)
		return nil
	}
}

func (e *Engine) handleContact(ctx context.Context, c *models.Campaign, ev Event) error {
	p, err := e.participants.Get(c.ID, ev.UserID)
	if err != nil {
		return err
	}
	if p == nil {
		e.send(ev.ChatID, msgPressStart)
		return nil
	}

	switch p.Stage {
	case models.StageCollectingPhone:
		return e.submitPhone(ctx, c, p, ev.ChatID, ev.Phone)
	case models.StageCollectingName:
		e.send(ev.ChatID, msgAskNameAgain)
		return nil
	case models.StageVerifying:
		e.send(ev.ChatID, msgUseButton)
		return nil
	default:
		return nil
	}
}

func (e *Engine) submitPhone(ctx context.Context, c *models.Campaign, p *models.Participant, chatID int64, input string) error {
	raw := strings.TrimSpace(input)
	if raw == "" {
		e.send(chatID, msgAskPhoneAgain)
		return nil
	}
	phone := util.NormalizePhone(raw)

	taken, err := e.participants.PhoneTakenByCompleted(c.ID, phone, p.TelegramID)
	if err != nil {
		return err
	}
	if taken {
		e.send(chatID, msgPhoneTaken)
		return nil
	}

	p.Phone = phone
	p.Stage = models.StageVerifying
	if err := e.participants.Update(p); err != nil {
		return err
	}
	e.askSubscription(chatID, c)
	return nil
}

func (e *Engine) handleCallback(ctx context.Context, c *models.Campaign, ev Event) error {
	if ev.Callback != CallbackCheckSubscription {
		e.log.Debug("ignoring callback", "data", ev.Callback, "user_id", ev.UserID)
		return nil
	}

	p, err := e.participants.Get(c.ID, ev.UserID)
	if err != nil {
		return err
	}
	if p == nil {
		e.send(ev.ChatID, msgPressStart)
		return nil
	}

	switch p.Stage {
	case models.StageCompleted:
		e.send(ev.ChatID, alreadyRegisteredText(p))
		return nil
	case models.StageCollectingName:
		// Stale button from an earlier run of the conversation.
		e.send(ev.ChatID, msgAskNameAgain)
		return nil
	case models.StageCollectingPhone:
		e.send(ev.ChatID, msgAskPhoneAgain)
		return nil
	}

	ok, failed := e.verifier.Check(p.TelegramID, c.Channels)
	if !ok {
		e.sendMarkup(ev.ChatID, notSubscribedText(c, failed), checkSubscriptionKeyboard(c))
		return nil
	}

	p.Subscribed = true
	p.Stage = models.StageCompleted
	if err := e.participants.Update(p); err != nil {
		return err
	}
	e.send(ev.ChatID, completedText(p))
	return nil
}

// ---------- Outbound ----------

// send is fire and forget: a failed delivery is logged and never rolls back
// a state transition.
func (e *Engine) send(chatID int64, text string) {
	if err := e.sender.SendText(chatID, text); err != nil {
		e.log.Warn("send message", "chat_id", chatID, "err", err)
	}
}

func (e *Engine) sendMarkup(chatID int64, text string, markup interface{}) {
	if err := e.sender.SendWithMarkup(chatID, text, markup); err != nil {
		e.log.Warn("send message", "chat_id", chatID, "err", err)
	}
}

func (e *Engine) askPhone(chatID int64, c *models.Campaign, p *models.Participant) {
	e.sendMarkup(chatID, askPhoneText(p), sharePhoneKeyboard(c))
}

func (e *Engine) askSubscription(chatID int64, c *models.Campaign) {
	e.sendMarkup(chatID, conditionsText(c), checkSubscriptionKeyboard(c))
}
