package services

import (
	"context"
	"fmt"
	"strings"

	"github.com/go-telegram/bot"
	tgmodels "github.com/go-telegram/bot/models"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"github.com/irfndi/crossover-go/internal/models"
)

// MessageSender is the part of *bot.Bot the notifier needs.
type MessageSender interface {
	SendMessage(ctx context.Context, params *bot.SendMessageParams) (*tgmodels.Message, error)
}

// TelegramNotifier posts backtest summaries to a single chat.
type TelegramNotifier struct {
	sender MessageSender
	chatID int64
	logger *logrus.Logger
}

// NewTelegramNotifier creates a notifier from a bot token. It returns nil when
// the token or chat ID is missing, which leaves notifications disabled.
func NewTelegramNotifier(token string, chatID int64, logger *logrus.Logger) (*TelegramNotifier, error) {
	if token == "" || chatID == 0 {
		return nil, nil
	}

	b, err := bot.New(token, bot.WithSkipGetMe())
	if err != nil {
		return nil, fmt.Errorf("failed to create telegram bot: %w", err)
	}
	return NewTelegramNotifierWithSender(b, chatID, logger), nil
}

// NewTelegramNotifierWithSender builds a notifier around an existing sender.
func NewTelegramNotifierWithSender(sender MessageSender, chatID int64, logger *logrus.Logger) *TelegramNotifier {
	return &TelegramNotifier{sender: sender, chatID: chatID, logger: logger}
}

// NotifyBacktest sends the summary of report.
func (n *TelegramNotifier) NotifyBacktest(ctx context.Context, report *models.BacktestReport) error {
	if n == nil || n.sender == nil {
		return fmt.Errorf("telegram notifier not initialized")
	}

	_, err := n.sender.SendMessage(ctx, &bot.SendMessageParams{
		ChatID:    n.chatID,
		Text:      FormatBacktestMessage(report),
		ParseMode: tgmodels.ParseModeMarkdown,
	})
	if err != nil {
		return fmt.Errorf("failed to send telegram message: %w", err)
	}

	n.logger.WithFields(logrus.Fields{
		"run_id": report.RunID,
		"chat":   n.chatID,
	}).Debug("Sent backtest notification")
	return nil
}

// FormatBacktestMessage renders the metrics panel as Telegram Markdown.
func FormatBacktestMessage(report *models.BacktestReport) string {
	s := report.Summary
	var b strings.Builder

	title := report.Symbol
	if title == "" {
		title = "Custom series"
	}
	fmt.Fprintf(&b, "📈 *SMA Crossover: %s*\n", title)
	if report.Exchange != "" {
		fmt.Fprintf(&b, "_%s · %s_\n", report.Exchange, report.Timeframe)
	}
	fmt.Fprintf(&b, "Windows: %d / %d\n", report.Params.ShortWindow, report.Params.LongWindow)
	if !report.SeriesStart.IsZero() {
		fmt.Fprintf(&b, "Period: %s → %s\n\n", report.SeriesStart.Format("2006-01-02"), report.SeriesEnd.Format("2006-01-02"))
	} else {
		b.WriteString("\n")
	}

	fmt.Fprintf(&b, "💰 Initial: `%s`\n", s.InitialBalance.StringFixed(2))
	fmt.Fprintf(&b, "🤖 Strategy: `%s` (%s%%)\n", s.FinalStrategyBalance.StringFixed(2), signedPct(s.StrategyReturnPct))
	fmt.Fprintf(&b, "📦 Buy & Hold: `%s` (%s%%)\n", s.FinalBuyHoldBalance.StringFixed(2), signedPct(s.BuyHoldReturnPct))
	fmt.Fprintf(&b, "🔁 Trades: %d\n", s.TradeCount)
	fmt.Fprintf(&b, "✅ Win rate: %s\n", optionalPct(s.WinRatePct))
	fmt.Fprintf(&b, "📊 Avg return: %s\n", optionalPct(s.AvgReturnPct))
	fmt.Fprintf(&b, "📉 Max drawdown: %s%%\n", s.MaxDrawdownPct.StringFixed(2))

	if report.RunID != "" {
		fmt.Fprintf(&b, "\nRun `%s`", report.RunID)
	}
	return b.String()
}

func signedPct(d decimal.Decimal) string {
	if d.IsPositive() {
		return "+" + d.StringFixed(2)
	}
	return d.StringFixed(2)
}

func optionalPct(d *decimal.Decimal) string {
	if d == nil {
		return "N/A"
	}
	return d.StringFixed(2) + "%"
}
