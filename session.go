package directory

import (
	"sync/atomic"
	"time"
)

// SessionState tracks where a session is in its lifecycle. Legal transitions:
// Disconnected -> Connecting -> Bound -> (Searching)* -> Disconnected, with
// Failed reachable from Connecting or Bound on unrecoverable error.
type SessionState int32

const (
	SessionDisconnected SessionState = iota
	SessionConnecting
	SessionBound
	SessionSearching
	SessionFailed
)

func (s SessionState) String() string {
	switch s {
	case SessionDisconnected:
		return "DISCONNECTED"
	case SessionConnecting:
		return "CONNECTING"
	case SessionBound:
		return "BOUND"
	case SessionSearching:
		return "SEARCHING"
	case SessionFailed:
		return "FAILED"
	default:
		return "UNKNOWN"
	}
}

// Session is one authenticated connection to the directory. A Session is
// exclusively owned by the ConnectionManager for its lifetime; no other
// component holds a reference to the underlying transport.
type Session struct {
	conn    Conn
	state   atomic.Int32
	method  AuthMethod
	boundAt time.Time
}

func newSession(conn Conn, method AuthMethod) *Session {
	s := &Session{conn: conn, method: method, boundAt: time.Now()}
	s.state.Store(int32(SessionBound))
	return s
}

// State returns the current lifecycle state.
func (s *Session) State() SessionState {
	return SessionState(s.state.Load())
}

// BoundAt reports when the session finished binding.
func (s *Session) BoundAt() time.Time { return s.boundAt }

// Method reports how the session authenticated.
func (s *Session) Method() AuthMethod { return s.method }

// alive reports whether the session can serve an operation. A transport the
// server has started closing counts as dead even while state still reads
// Bound.
func (s *Session) alive() bool {
	switch s.State() {
	case SessionBound, SessionSearching:
		return s.conn != nil && !s.conn.IsClosing()
	default:
		return false
	}
}

func (s *Session) setState(state SessionState) {
	s.state.Store(int32(state))
}

// close tears down the transport and leaves the session Disconnected.
// Idempotent.
func (s *Session) close() {
	if s.conn != nil && s.State() != SessionDisconnected {
		_ = s.conn.Close()
	}
	s.setState(SessionDisconnected)
}

// fail marks the session unusable and tears down the transport. Used when a
// cancelled or interrupted operation leaves the wire in an unknown state;
// the session is rebuilt on next use rather than reused.
func (s *Session) fail() {
	s.setState(SessionFailed)
	if s.conn != nil {
		_ = s.conn.Close()
	}
}
