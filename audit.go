package directory

import (
	"log/slog"
	"time"

	"github.com/google/uuid"
)

// AuditEvent is the record handed to the audit sink for every connection
// attempt and every search. The sink's storage format is out of scope; the
// connector only guarantees the fields below are populated.
type AuditEvent struct {
	// ID correlates related events (e.g. attempts of one acquire cycle).
	ID string
	// Operation is the connector operation, e.g. "acquire_session".
	Operation string
	// Outcome is "success", "failure" or "degraded".
	Outcome string
	// Attempt is the 1-based attempt number for connection events.
	Attempt int
	// Endpoint is the target directory server.
	Endpoint string
	// Latency is how long the attempt or search took.
	Latency time.Duration
	// Detail carries the failure reason or additional context.
	Detail string
}

// Outcome values reported to the audit sink.
const (
	OutcomeSuccess  = "success"
	OutcomeFailure  = "failure"
	OutcomeDegraded = "degraded"
)

// Auditor is the audit-logging collaborator the connector reports into. The
// connector never depends on the sink's behavior; implementations must not
// block for long or panic.
type Auditor interface {
	// Record reports one connection attempt or search outcome.
	Record(event AuditEvent)
	// Warn reports a non-fatal schema deviation observed while normalizing.
	Warn(message string, attrs ...slog.Attr)
}

// NewCorrelationID returns a fresh ID tying together the audit events of one
// operation.
func NewCorrelationID() string {
	return uuid.NewString()
}

// SlogAuditor writes audit events to a structured logger. It is the default
// sink wired by NewService.
type SlogAuditor struct {
	logger *slog.Logger
}

// NewSlogAuditor creates an audit sink backed by the given logger.
func NewSlogAuditor(logger *slog.Logger) *SlogAuditor {
	if logger == nil {
		logger = slog.Default()
	}
	return &SlogAuditor{logger: logger}
}

// Record implements Auditor.
func (a *SlogAuditor) Record(event AuditEvent) {
	attrs := []any{
		slog.String("correlation_id", event.ID),
		slog.String("operation", event.Operation),
		slog.String("outcome", event.Outcome),
		slog.String("endpoint", event.Endpoint),
		slog.Duration("latency", event.Latency),
	}
	if event.Attempt > 0 {
		attrs = append(attrs, slog.Int("attempt", event.Attempt))
	}
	if event.Detail != "" {
		attrs = append(attrs, slog.String("detail", event.Detail))
	}

	if event.Outcome == OutcomeFailure {
		a.logger.Warn("audit_event", attrs...)
		return
	}
	a.logger.Info("audit_event", attrs...)
}

// Warn implements Auditor.
func (a *SlogAuditor) Warn(message string, attrs ...slog.Attr) {
	args := make([]any, len(attrs))
	for i, attr := range attrs {
		args[i] = attr
	}
	a.logger.Warn(message, args...)
}

// NopAuditor discards every event. Used by tests that assert behavior
// unrelated to auditing.
type NopAuditor struct{}

func (NopAuditor) Record(AuditEvent)         {}
func (NopAuditor) Warn(string, ...slog.Attr) {}

var _ Auditor = (*SlogAuditor)(nil)
var _ Auditor = NopAuditor{}
