package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/mymmrac/telego"
	tu "github.com/mymmrac/telego/telegoutil"

	"github.com/vitalink-io/vitalink/logger"
	"github.com/vitalink-io/vitalink/web/locale"
)

// NotifyService pushes anomaly alerts to a Telegram chat. It stays silent
// when no bot token is configured, so the dashboard runs fine without it.
type NotifyService struct {
	bot    *telego.Bot
	chatId int64
}

func NewNotifyService(token string, chatId int64) *NotifyService {
	n := &NotifyService{chatId: chatId}
	if token == "" || chatId == 0 {
		return n
	}
	bot, err := telego.NewBot(token)
	if err != nil {
		logger.Warning("Telegram bot init failed:", err)
		return n
	}
	n.bot = bot
	logger.Info("Telegram alerting enabled")
	return n
}

func (n *NotifyService) Enabled() bool {
	return n.bot != nil
}

func (n *NotifyService) SendMessage(ctx context.Context, text string) {
	if n.bot == nil || text == "" {
		return
	}
	params := &telego.SendMessageParams{
		ChatID:    tu.ID(n.chatId),
		Text:      text,
		ParseMode: "HTML",
	}
	if _, err := n.bot.SendMessage(ctx, params); err != nil {
		logger.Warning("Error sending telegram message:", err)
	}
}

func (n *NotifyService) SendAnomalyAlert(ctx context.Context, a Anomaly) {
	if n.bot == nil {
		return
	}
	lines := []string{
		locale.I18n(locale.Bot, "tgbot.anomalyTitle", "kind=="+strings.ToUpper(a.Kind)),
	}
	switch a.Kind {
	case AnomalyTemp:
		lines = append(lines, locale.I18n(locale.Bot, "tgbot.tempDetail",
			"temp=="+fmt.Sprintf("%.2f", numField(a.Data, "temperature")),
			"threshold=="+fmt.Sprintf("%.2f", numField(a.Data, "threshold"))))
	default:
		lines = append(lines, locale.I18n(locale.Bot, "tgbot.reconDetail",
			"err=="+fmt.Sprintf("%.4f", numField(a.Data, "reconstruction_error")),
			"threshold=="+fmt.Sprintf("%.4f", numField(a.Data, "threshold"))))
	}
	if session := stringField(a.Data, "session_id"); session != "" {
		lines = append(lines, locale.I18n(locale.Bot, "tgbot.session", "session=="+session))
	}
	lines = append(lines, locale.I18n(locale.Bot, "tgbot.time", "time=="+a.Timestamp))
	n.SendMessage(ctx, strings.Join(lines, "\r\n"))
}
