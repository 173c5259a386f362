package notify

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"github.com/trogers1052/stock-snapshot-monitor/internal/models"
)

// maxMessageLength is Telegram's limit for a single text message
const maxMessageLength = 4096

// TelegramConfig configuration of the notifier
type TelegramConfig struct {
	Token  string
	ChatID int64
	Debug  bool
	// Endpoint overrides tgbotapi.APIEndpoint, mainly for tests
	Endpoint string
	Client   tgbotapi.HTTPClient
}

// Telegram sends alert digests to a single chat
type Telegram struct {
	bot    *tgbotapi.BotAPI
	chatID int64
}

// NewTelegram creates the bot client and verifies the token
func NewTelegram(c TelegramConfig) (*Telegram, error) {
	if c.Token == "" || c.ChatID == 0 {
		return nil, errors.New("telegram token and chat id are required")
	}

	endpoint := c.Endpoint
	if endpoint == "" {
		endpoint = tgbotapi.APIEndpoint
	}
	client := c.Client
	if client == nil {
		client = &http.Client{Timeout: 10 * time.Second}
	}

	bot, err := tgbotapi.NewBotAPIWithClient(c.Token, endpoint, client)
	if err != nil {
		return nil, errors.Wrap(err, "could not create telegram bot")
	}
	bot.Debug = c.Debug

	return &Telegram{bot: bot, chatID: c.ChatID}, nil
}

// SendAlerts posts a digest of the alert set. Nothing is sent when the set
// has no alerts.
func (t *Telegram) SendAlerts(ctx context.Context, cycleID string, set *models.AlertSet) error {
	if set == nil || !set.HasAlerts() {
		return nil
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	msg := tgbotapi.NewMessage(t.chatID, Digest(cycleID, set))
	msg.DisableWebPagePreview = true
	_, err := t.bot.Send(msg)
	return errors.Wrapf(err, "could not send alert digest for cycle %s", cycleID)
}

// Digest renders a compact alert message
func Digest(cycleID string, set *models.AlertSet) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Stock alerts (threshold %s%%)\n", set.Threshold.StringFixed(2))

	for _, a := range set.SignificantChanges {
		icon := "📈"
		if a.Direction == models.DirectionDecrease {
			icon = "📉"
		}
		fmt.Fprintf(&b, "%s %s%s: $%s → $%s (%s%%)\n",
			icon, a.Symbol, company(a.Company), money(a.PreviousPrice), money(a.CurrentPrice), signed(a.ChangePct))
	}
	for _, a := range set.DailyChangeAlerts {
		fmt.Fprintf(&b, "🔄 %s%s: daily change %s%% → %s%% (%s%%)\n",
			a.Symbol, company(a.Company), a.PreviousDailyChangePct.StringFixed(2), a.CurrentDailyChangePct.StringFixed(2), signed(a.ChangeDiff))
	}
	fmt.Fprintf(&b, "cycle %s", cycleID)

	text := []rune(b.String())
	if len(text) > maxMessageLength {
		return string(text[:maxMessageLength-3]) + "..."
	}
	return string(text)
}

func money(d decimal.Decimal) string {
	return humanize.FormatFloat("#,###.##", d.InexactFloat64())
}

func signed(d decimal.Decimal) string {
	if d.IsPositive() {
		return "+" + d.StringFixed(2)
	}
	return d.StringFixed(2)
}

func company(name string) string {
	if name == "" || name == models.UnknownCompany {
		return ""
	}
	return " (" + name + ")"
}
