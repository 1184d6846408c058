package telegram

import (
	"net/http"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

// Sender is the outbound-message surface of the bot API. Sends are best
// effort: callers log failures and move on.
type Sender interface {
	SendText(chatID int64, text string) error
	SendWithMarkup(chatID int64, text string, markup interface{}) error
	AnswerCallback(callbackID string) error
}

// MemberChecker looks up a user's membership status in a channel. Each call
// is bounded by the client's request timeout.
type MemberChecker interface {
	ChatMemberStatus(channel string, userID int64) (string, error)
}

type Client struct {
	bot *tgbotapi.BotAPI
}

func New(token string, timeout time.Duration) (*Client, error) {
	b, err := tgbotapi.NewBotAPIWithClient(token, tgbotapi.APIEndpoint, &http.Client{Timeout: timeout})
	if err != nil {
		return nil, err
	}
	b.Debug = false
	return &Client{bot: b}, nil
}

func (c *Client) SendText(chatID int64, text string) error {
	msg := tgbotapi.NewMessage(chatID, text)
	_, err := c.bot.Send(msg)
	return err
}

func (c *Client) SendWithMarkup(chatID int64, text string, markup interface{}) error {
	msg := tgbotapi.NewMessage(chatID, text)
	msg.ReplyMarkup = markup
	_, err := c.bot.Send(msg)
	return err
}

func (c *Client) AnswerCallback(callbackID string) error {
	cb := tgbotapi.NewCallback(callbackID, "")
	_, err := c.bot.Request(cb)
	return err
}

func (c *Client) ChatMemberStatus(channel string, userID int64) (string, error) {
	member, err := c.bot.GetChatMember(tgbotapi.GetChatMemberConfig{
		ChatConfigWithUser: tgbotapi.ChatConfigWithUser{
			SuperGroupUsername: channel,
			UserID:             userID,
		},
	})
	if err != nil {
		return "", err
	}
	return member.Status, nil
}

var _ Sender = (*Client)(nil)
var _ MemberChecker = (*Client)(nil)
