// Package notify sends forecast summaries to a Telegram chat.
package notify

import (
	"context"
	"fmt"
	"math"
	"net/http"
	"strings"

	"github.com/Alias1177/RegimeForecast/internal/model"
	"github.com/Alias1177/RegimeForecast/internal/pipeline"
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rs/zerolog/log"
)

// Sender is the part of tgbotapi.BotAPI used to deliver messages
type Sender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
}

// Telegram posts a run summary to one chat
type Telegram struct {
	sender Sender
	chatID int64
}

// NewTelegram authenticates the bot against endpoint (tgbotapi.APIEndpoint in production)
func NewTelegram(token string, chatID int64, endpoint string, client *http.Client) (*Telegram, error) {
	if client == nil {
		client = &http.Client{}
	}
	bot, err := tgbotapi.NewBotAPIWithClient(token, endpoint, client)
	if err != nil {
		return nil, fmt.Errorf("telegram bot init: %w", err)
	}
	log.Debug().Str("component", "notify").Str("bot", bot.Self.UserName).Msg("Authorized on Telegram")
	return &Telegram{sender: bot, chatID: chatID}, nil
}

// NewTelegramWithSender wraps an existing sender
func NewTelegramWithSender(sender Sender, chatID int64) *Telegram {
	return &Telegram{sender: sender, chatID: chatID}
}

// Name implements pipeline.Reporter
func (t *Telegram) Name() string {
	return "telegram"
}

// Report implements pipeline.Reporter
func (t *Telegram) Report(_ context.Context, res *pipeline.Result) error {
	msg := tgbotapi.NewMessage(t.chatID, FormatSummary(res))
	if _, err := t.sender.Send(msg); err != nil {
		return fmt.Errorf("send telegram message: %w", err)
	}
	return nil
}

// FormatSummary renders the metrics and forecast as plain text
func FormatSummary(res *pipeline.Result) string {
	var b strings.Builder
	m := res.Metrics

	fmt.Fprintf(&b, "%s forecast (%s)\n", res.Symbol, res.RunAt.UTC().Format(model.DateLayout))
	fmt.Fprintf(&b, "Walk-forward: %d samples, MAE %.2f, RMSE %.2f, MAPE %s\n",
		m.Samples, m.MAE, m.RMSE, formatPercent(m.MAPE))

	if n := len(res.Labeled); n > 0 {
		last := res.Labeled[n-1]
		fmt.Fprintf(&b, "Last close %s: %.2f (state %d)\n", last.Date.Format(model.DateLayout), last.Close, last.HiddenState)
	}

	for _, f := range res.Forecast {
		fmt.Fprintf(&b, "%s: %.2f\n", f.Date.Format(model.DateLayout), f.PredictedPrice)
	}
	return b.String()
}

func formatPercent(v float64) string {
	if math.IsNaN(v) {
		return "n/a"
	}
	return fmt.Sprintf("%.2f%%", v)
}
