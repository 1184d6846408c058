package tgbot

import (
	"fmt"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"raffle-bot/internal/models"
)

// CallbackCheckSubscription is the payload of the verification button.
const CallbackCheckSubscription = "check_subscription"

const (
	msgPressStart    = "❌ Пожалуйста, нажмите /start для начала регистрации"
	msgAskName       = "📝 Как вас зовут?\nВведите имя и фамилию:"
	msgAskNameAgain  = "Пожалуйста, введите ваше имя:"
	msgAskPhoneAgain = "Пожалуйста, введите ваш номер:"
	msgPhoneTaken    = "❌ Этот номер уже зарегистрирован. Введите другой номер:"
	msgUseButton     = "📋 Пожалуйста, используйте кнопку 'Проверить подписку', чтобы продолжить"
)

// Per-campaign texts fall back to the stock wording when the operator left
// the field empty.
const (
	defaultFirstMessage = "Добро пожаловать на мероприятие! Нажмите кнопку ниже чтобы участвовать в розыгрыше."
	defaultConditions   = "Для участия в розыгрыше необходимо:\n• Быть подписанным на наш канал\n• Заполнить контактные данные\n• Согласиться на обработку персональных данных"
	defaultShareButton  = "📱 Поделиться номером"
	defaultCheckButton  = "✅ Проверить подписку"
)

func firstMessage(c *models.Campaign) string {
	if s := strings.TrimSpace(c.FirstMessage); s != "" {
		return s
	}
	return defaultFirstMessage
}

func conditionsText(c *models.Campaign) string {
	if s := strings.TrimSpace(c.ConditionsText); s != "" {
		return s
	}
	return defaultConditions
}

func sharePhoneLabel(c *models.Campaign) string {
	if s := strings.TrimSpace(c.SharePhoneButton); s != "" {
		return s
	}
	return defaultShareButton
}

func checkSubscriptionLabel(c *models.Campaign) string {
	if s := strings.TrimSpace(c.ConditionsButton); s != "" {
		return s
	}
	return defaultCheckButton
}

func askPhoneText(p *models.Participant) string {
	return fmt.Sprintf("Приятно познакомиться, %s! Введите номер или нажмите кнопку:", p.Name)
}

func notSubscribedText(c *models.Campaign, failed []string) string {
	return fmt.Sprintf("❌ Вы не подписаны на канал %s\n%s", strings.Join(failed, ", "), conditionsText(c))
}

func completedText(p *models.Participant) string {
	return fmt.Sprintf("🎉 Регистрация завершена!\n👤 Имя: %s\n📞 Телефон: %s", p.Name, p.Phone)
}

func alreadyRegisteredText(p *models.Participant) string {
	return fmt.Sprintf("Вы уже зарегистрированы!\n👤 Имя: %s\n📞 Телефон: %s", p.Name, p.Phone)
}

func sharePhoneKeyboard(c *models.Campaign) tgbotapi.ReplyKeyboardMarkup {
	kb := tgbotapi.NewReplyKeyboard(
		tgbotapi.NewKeyboardButtonRow(
			tgbotapi.NewKeyboardButtonContact(sharePhoneLabel(c)),
		),
	)
	kb.OneTimeKeyboard = true
	return kb
}

func checkSubscriptionKeyboard(c *models.Campaign) tgbotapi.InlineKeyboardMarkup {
	return tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData(checkSubscriptionLabel(c), CallbackCheckSubscription),
		),
	)
}
