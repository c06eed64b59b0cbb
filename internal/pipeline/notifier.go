package pipeline

import (
	"context"

	"fjacquet/notif-ledger/internal/logging"
	"fjacquet/notif-ledger/internal/models"
)

// Notifier receives budget alerts. Rendering and delivery happen outside the engine.
type Notifier interface {
	Notify(ctx context.Context, event models.AlertEvent)
}

// NotifierFunc adapts a function to Notifier.
type NotifierFunc func(ctx context.Context, event models.AlertEvent)

// Notify calls f.
func (f NotifierFunc) Notify(ctx context.Context, event models.AlertEvent) {
	f(ctx, event)
}

// LogNotifier writes alerts to the log.
type LogNotifier struct {
	logger logging.Logger
}

// NewLogNotifier creates a LogNotifier.
func NewLogNotifier(logger logging.Logger) *LogNotifier {
	if logger == nil {
		logger = logging.NewDiscard()
	}
	return &LogNotifier{logger: logger}
}

// Notify logs exceeded budgets as warnings and threshold warnings as info.
func (n *LogNotifier) Notify(_ context.Context, event models.AlertEvent) {
	fields := []logging.Field{
		logging.F(logging.FieldBudgetID, event.BudgetID),
		logging.F("budget", event.BudgetName),
		logging.F(logging.FieldCategory, event.Category),
	}
	if event.Kind == models.AlertExceeded {
		n.logger.Warn("Budget exceeded", append(fields, logging.F("overspend", event.Value.StringFixed(2)))...)
		return
	}
	n.logger.Info("Budget threshold reached", append(fields, logging.F("percent", event.Value.String()))...)
}
