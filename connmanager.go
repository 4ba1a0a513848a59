package directory

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"
)

// ConnectionManager owns the session lifecycle: it establishes sessions
// through the Authenticator, enforces the retry policy and serializes access
// so no two operations interleave protocol messages on one transport.
//
// Connection failures due to network errors and protocol-level bind
// rejections are retried identically: corporate networks surface both as
// transient during maintenance windows.
type ConnectionManager struct {
	auth   Authenticator
	limits PerformanceConfig
	audit  Auditor
	logger *slog.Logger

	// mu serializes session acquisition and every operation run through
	// WithSession. The session pointer is only touched while holding it.
	mu      sync.Mutex
	session *Session
}

// NewConnectionManager wires a manager around the given strategy and limits.
func NewConnectionManager(auth Authenticator, limits PerformanceConfig, audit Auditor, logger *slog.Logger) *ConnectionManager {
	if audit == nil {
		audit = NopAuditor{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &ConnectionManager{auth: auth, limits: limits, audit: audit, logger: logger}
}

// AcquireSession returns a live bound session, reusing the current one when
// possible. When no live session exists it performs up to max_retries+1
// connect+bind attempts with a fixed delay between them, returning the first
// success or a *ConnectionError carrying the attempt count and last cause.
func (m *ConnectionManager) AcquireSession(ctx context.Context) (*Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.acquireLocked(ctx)
}

// ReleaseSession closes the current session's transport and transitions it
// to Disconnected. Idempotent.
func (m *ConnectionManager) ReleaseSession() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.releaseLocked()
}

// WithSession runs fn against a live session while holding the manager's
// operation lock, guaranteeing exclusive use of the transport for the whole
// operation. fn may call reconnectLocked if it finds the session dead
// mid-operation.
func (m *ConnectionManager) WithSession(ctx context.Context, fn func(*Session) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	sess, err := m.acquireLocked(ctx)
	if err != nil {
		return err
	}
	return fn(sess)
}

// ConnectionTestResult is the outcome of a health check. TestConnection
// never returns an error; every failure is captured here.
type ConnectionTestResult struct {
	Success  bool          `json:"success"`
	Detail   string        `json:"detail"`
	Attempts int           `json:"attempts"`
	Latency  time.Duration `json:"latency"`
}

// TestConnection performs one full acquire cycle, bypassing session reuse,
// and immediately releases. Worst-case latency is bounded by
// connect_timeout*(max_retries+1) + retry_delay*max_retries.
func (m *ConnectionManager) TestConnection(ctx context.Context) ConnectionTestResult {
	start := time.Now()

	m.mu.Lock()
	defer m.mu.Unlock()

	m.releaseLocked()
	sess, err := m.acquireLocked(ctx)
	attempts := m.limits.MaxRetries + 1
	if err != nil {
		detail := err.Error()
		var connErr *ConnectionError
		if errors.As(err, &connErr) {
			attempts = connErr.Attempts
		}
		return ConnectionTestResult{
			Success:  false,
			Detail:   detail,
			Attempts: attempts,
			Latency:  time.Since(start),
		}
	}

	detail := "bound to " + m.auth.Endpoint() + " using " + string(sess.Method()) + " auth"
	m.releaseLocked()
	return ConnectionTestResult{
		Success:  true,
		Detail:   detail,
		Attempts: 1,
		Latency:  time.Since(start),
	}
}

// acquireLocked implements the retry policy. Caller holds m.mu.
func (m *ConnectionManager) acquireLocked(ctx context.Context) (*Session, error) {
	if m.session != nil && m.session.alive() {
		m.logger.Debug("session_reused",
			slog.String("server", m.auth.Endpoint()),
			slog.Time("bound_at", m.session.BoundAt()))
		return m.session, nil
	}

	// A dead session's transport is torn down before rebuilding.
	m.releaseLocked()

	correlationID := NewCorrelationID()
	maxAttempts := m.limits.MaxRetries + 1
	var lastErr error

	for attempt := 1; attempt <= maxAttempts; attempt++ {
		attemptStart := time.Now()

		m.logger.Debug("session_connecting",
			slog.String("server", m.auth.Endpoint()),
			slog.String("auth_method", string(m.auth.Method())),
			slog.Int("attempt", attempt),
			slog.Int("max_attempts", maxAttempts))

		conn, err := m.auth.Bind(ctx)
		if err == nil {
			m.session = newSession(conn, m.auth.Method())
			m.audit.Record(AuditEvent{
				ID:        correlationID,
				Operation: "acquire_session",
				Outcome:   OutcomeSuccess,
				Attempt:   attempt,
				Endpoint:  m.auth.Endpoint(),
				Latency:   time.Since(attemptStart),
			})
			m.logger.Info("session_established",
				slog.String("server", m.auth.Endpoint()),
				slog.String("auth_method", string(m.auth.Method())),
				slog.Int("attempt", attempt),
				slog.Duration("duration", time.Since(attemptStart)))
			return m.session, nil
		}

		lastErr = err
		failureKind := "network"
		if isBindRejection(err) {
			failureKind = "bind_rejected"
		}
		m.audit.Record(AuditEvent{
			ID:        correlationID,
			Operation: "acquire_session",
			Outcome:   OutcomeFailure,
			Attempt:   attempt,
			Endpoint:  m.auth.Endpoint(),
			Latency:   time.Since(attemptStart),
			Detail:    err.Error(),
		})
		m.logger.Warn("session_attempt_failed",
			slog.String("server", m.auth.Endpoint()),
			slog.Int("attempt", attempt),
			slog.String("failure_kind", failureKind),
			slog.String("error", err.Error()))

		if attempt < maxAttempts {
			if err := m.waitRetryDelay(ctx); err != nil {
				return nil, &ConnectionError{Server: m.auth.Endpoint(), Attempts: attempt, LastErr: err}
			}
		}
	}

	m.logger.Error("session_establishment_failed",
		slog.String("server", m.auth.Endpoint()),
		slog.Int("attempts", maxAttempts),
		slog.String("error", lastErr.Error()))

	return nil, &ConnectionError{Server: m.auth.Endpoint(), Attempts: maxAttempts, LastErr: lastErr}
}

// reconnectLocked drops the current session and runs a fresh acquire cycle.
// Used by the search executor when the server closes a session mid-paging.
// Caller holds m.mu (via WithSession).
func (m *ConnectionManager) reconnectLocked(ctx context.Context) (*Session, error) {
	if m.session != nil {
		m.session.fail()
		m.session = nil
	}
	return m.acquireLocked(ctx)
}

// markFailedLocked flags the current session unusable so the next acquire
// rebuilds it. Caller holds m.mu.
func (m *ConnectionManager) markFailedLocked() {
	if m.session != nil {
		m.session.fail()
		m.session = nil
	}
}

func (m *ConnectionManager) releaseLocked() {
	if m.session == nil {
		return
	}
	m.session.close()
	m.session = nil
	m.logger.Debug("session_released", slog.String("server", m.auth.Endpoint()))
}

// waitRetryDelay sleeps for the fixed retry delay, honoring cancellation.
func (m *ConnectionManager) waitRetryDelay(ctx context.Context) error {
	delay := m.limits.RetryDelay()
	if delay <= 0 {
		return ctx.Err()
	}
	m.logger.Debug("session_retry_waiting", slog.Duration("delay", delay))
	timer := time.NewTimer(delay)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
