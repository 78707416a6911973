package telegram

import (
	"fmt"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"

	"github.com/ZenRasta/Astroedge/pkg/logger"
	"github.com/ZenRasta/Astroedge/pkg/models"
)

// Config controls which alert classes get sent
type Config struct {
	ChatID          int64
	AlertOnSignals  bool
	AlertOnRuns     bool
	AlertOnErrors   bool
	MaxAlertsPerRun int
}

// Notifier sends scan and run alerts to a Telegram chat
type Notifier struct {
	api *tgbotapi.BotAPI
	cfg Config
}

// NewNotifier creates new Telegram notifier
func NewNotifier(botToken string, cfg Config) (*Notifier, error) {
	if botToken == "" {
		return nil, fmt.Errorf("telegram bot token is required")
	}

	bot, err := tgbotapi.NewBotAPI(botToken)
	if err != nil {
		return nil, fmt.Errorf("failed to create bot API: %w", err)
	}

	bot.Debug = false

	logger.Info("telegram notifier initialized",
		zap.String("bot_username", bot.Self.UserName),
	)

	return &Notifier{api: bot, cfg: cfg}, nil
}

// SendScanAlert posts the top actionable opportunities of one scan
func (n *Notifier) SendScanAlert(opps []models.Opportunity) error {
	if !n.cfg.AlertOnSignals || len(opps) == 0 {
		return nil
	}

	limit := n.cfg.MaxAlertsPerRun
	if limit <= 0 || limit > len(opps) {
		limit = len(opps)
	}

	var b strings.Builder
	b.WriteString(fmt.Sprintf("🔭 *Scan results* (%d actionable)\n\n", len(opps)))
	for _, o := range opps[:limit] {
		b.WriteString(fmt.Sprintf("%s `%s`\n", decisionEmoji(o.Decision), o.MarketID))
		b.WriteString(fmt.Sprintf("  p0 %.3f → p\\_astro %.3f, edge %+.3f, size %.1f%%\n",
			o.P0, o.PAstro, o.EdgeNet, o.SizeFrac*100))
	}
	if limit < len(opps) {
		b.WriteString(fmt.Sprintf("\n…and %d more", len(opps)-limit))
	}

	return n.sendMessageMarkdown(b.String())
}

// SendRunFinished posts a summary when a simulation run reaches a
// terminal state.
func (n *Notifier) SendRunFinished(run *models.TestRun) error {
	if !n.cfg.AlertOnRuns {
		return nil
	}

	var b strings.Builder
	b.WriteString(fmt.Sprintf("%s *%s run %s*\n", statusEmoji(run.Status), run.Kind, run.Status))
	if run.Name != "" {
		b.WriteString(fmt.Sprintf("Name: %s\n", run.Name))
	}
	b.WriteString(fmt.Sprintf("Period: %s → %s\n",
		run.StartDate.Format("2006-01-02"), run.EndDate.Format("2006-01-02")))

	if run.Metrics != nil {
		m := run.Metrics
		b.WriteString(fmt.Sprintf("Return: %+.2f%%  Sharpe: %.2f\n", m.TotalReturn*100, m.SharpeRatio))
		b.WriteString(fmt.Sprintf("Max DD: %.2f%%  Win rate: %.0f%%  Trades: %d\n",
			m.MaxDrawdown*100, m.WinRate*100, m.TotalTrades))
	}
	if run.FailureReason != "" {
		b.WriteString(fmt.Sprintf("Reason: %s\n", run.FailureReason))
	}

	return n.sendMessageMarkdown(b.String())
}

// SendErrorAlert posts an operational error
func (n *Notifier) SendErrorAlert(component, errorMsg string) error {
	if !n.cfg.AlertOnErrors {
		return nil
	}

	msg := fmt.Sprintf("🚨 *%s error*\n%s", component, errorMsg)
	return n.sendMessageMarkdown(msg)
}

func (n *Notifier) sendMessageMarkdown(text string) error {
	msg := tgbotapi.NewMessage(n.cfg.ChatID, text)
	msg.ParseMode = "Markdown"

	if _, err := n.api.Send(msg); err != nil {
		logger.Error("failed to send telegram message",
			zap.Int64("chat_id", n.cfg.ChatID),
			zap.Error(err),
		)
		return err
	}

	return nil
}

func decisionEmoji(d models.Decision) string {
	switch d {
	case models.DecisionBuy:
		return "🟢 BUY"
	case models.DecisionSell:
		return "🔴 SELL"
	default:
		return "⚪ HOLD"
	}
}

func statusEmoji(s models.RunStatus) string {
	switch s {
	case models.RunCompleted:
		return "✅"
	case models.RunFailed:
		return "❌"
	case models.RunStopped:
		return "⏸️"
	default:
		return "▶️"
	}
}
