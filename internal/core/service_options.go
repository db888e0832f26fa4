package core

import (
	"context"
	"time"
)

// Logger is the structured logger used by the service and the controller.
// *slog.Logger satisfies it.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// Clock provides the current time.
type Clock interface {
	Now() time.Time
}

// ClockFunc adapts a function to Clock.
type ClockFunc func() time.Time

// Now implements Clock. A nil function falls back to the UTC wall clock.
func (f ClockFunc) Now() time.Time {
	if f == nil {
		return time.Now().UTC()
	}
	return f()
}

// MetricsRecorder observes the outcome and duration of service operations.
type MetricsRecorder interface {
	Observe(ctx context.Context, operation string, success bool, duration time.Duration)
}

// ControlObserver is an optional MetricsRecorder extension notified of every
// completed control pass.
type ControlObserver interface {
	ObserveControl(ctx context.Context, program string, state ControlState, errorCount int)
}

type noopMetrics struct{}

func (noopMetrics) Observe(context.Context, string, bool, time.Duration) {}

// Tracer starts spans around service operations.
type Tracer interface {
	Start(ctx context.Context, operation string) (context.Context, TraceSpan)
}

// TraceSpan is ended with the operation error, nil on success.
type TraceSpan interface {
	End(err error)
}

type noopTracer struct{}

func (noopTracer) Start(ctx context.Context, _ string) (context.Context, TraceSpan) {
	return ctx, noopSpan{}
}

type noopSpan struct{}

func (noopSpan) End(error) {}

// AuditStatus is the outcome recorded in an audit entry.
type AuditStatus string

// Audit outcomes.
const (
	AuditStatusSuccess AuditStatus = "success"
	AuditStatusError   AuditStatus = "error"
)

// AuditAction classifies audited operations.
type AuditAction string

// Audited actions.
const (
	AuditActionRead    AuditAction = "read"
	AuditActionWrite   AuditAction = "write"
	AuditActionDelete  AuditAction = "delete"
	AuditActionControl AuditAction = "control"
)

// AuditEntry records one service operation on a fishing operation tree.
type AuditEntry struct {
	ID          string
	Operation   string
	Action      AuditAction
	OperationID string
	Status      AuditStatus
	Error       string
	Duration    time.Duration
	Timestamp   time.Time
}

// AuditRecorder receives audit entries.
type AuditRecorder interface {
	Record(ctx context.Context, entry AuditEntry)
}

type noopAudit struct{}

func (noopAudit) Record(context.Context, AuditEntry) {}

// ControlOutcome is the result of ControlTree handed to the publisher.
type ControlOutcome struct {
	OperationID  string
	Program      string
	State        ControlState
	Errors       ErrorMap
	Tree         *Batch
	ControlledAt time.Time
}

// OutcomePublisher publishes control outcomes, e.g. as reports.
type OutcomePublisher interface {
	Publish(ctx context.Context, outcome ControlOutcome) error
}

// ServiceOption configures a Service.
type ServiceOption func(*Service)

// WithLogger sets the service logger.
func WithLogger(logger Logger) ServiceOption {
	return func(s *Service) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithMetricsRecorder sets the metrics recorder.
func WithMetricsRecorder(m MetricsRecorder) ServiceOption {
	return func(s *Service) {
		if m != nil {
			s.metrics = m
		}
	}
}

// WithTracer sets the tracer.
func WithTracer(t Tracer) ServiceOption {
	return func(s *Service) {
		if t != nil {
			s.tracer = t
		}
	}
}

// WithAuditRecorder sets the audit recorder.
func WithAuditRecorder(a AuditRecorder) ServiceOption {
	return func(s *Service) {
		if a != nil {
			s.audit = a
		}
	}
}

// WithClock sets the clock used for audit timestamps.
func WithClock(c Clock) ServiceOption {
	return func(s *Service) {
		if c != nil {
			s.clock = c
		}
	}
}

// WithOutcomePublisher sets the publisher invoked after every control.
func WithOutcomePublisher(p OutcomePublisher) ServiceOption {
	return func(s *Service) { s.publisher = p }
}
