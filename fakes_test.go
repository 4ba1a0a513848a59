package directory

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"sync"
	"time"

	"github.com/go-ldap/ldap/v3"
)

// fakeConn is a scripted transport for connection and search tests.
type fakeConn struct {
	searchFn func(req *ldap.SearchRequest) (*ldap.SearchResult, error)
	closing  bool
	closed   bool
}

func (c *fakeConn) Bind(username, password string) error      { return nil }
func (c *fakeConn) UnauthenticatedBind(username string) error { return nil }
func (c *fakeConn) SetTimeout(time.Duration)                  {}
func (c *fakeConn) IsClosing() bool                           { return c.closing }
func (c *fakeConn) Close() error {
	c.closed = true
	return nil
}

func (c *fakeConn) Search(req *ldap.SearchRequest) (*ldap.SearchResult, error) {
	if c.searchFn == nil {
		return &ldap.SearchResult{}, nil
	}
	return c.searchFn(req)
}

// fakeAuthenticator fails a scripted number of bind attempts before
// producing connections from newConn.
type fakeAuthenticator struct {
	mu        sync.Mutex
	failures  int
	failErr   error
	newConn   func() Conn
	bindFn    func(call int) (Conn, error)
	bindCalls int
	bindTimes []time.Time
}

func (a *fakeAuthenticator) Bind(ctx context.Context) (Conn, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.bindCalls++
	a.bindTimes = append(a.bindTimes, time.Now())

	if a.bindFn != nil {
		return a.bindFn(a.bindCalls)
	}
	if a.bindCalls <= a.failures {
		if a.failErr != nil {
			return nil, a.failErr
		}
		return nil, fmt.Errorf("scripted bind failure %d", a.bindCalls)
	}
	if a.newConn != nil {
		return a.newConn(), nil
	}
	return &fakeConn{}, nil
}

func (a *fakeAuthenticator) Method() AuthMethod { return AuthSimple }
func (a *fakeAuthenticator) Endpoint() string   { return "ldap://fake.corp.example.com:389" }

func (a *fakeAuthenticator) calls() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.bindCalls
}

// recordingAuditor captures audit traffic for assertions.
type recordingAuditor struct {
	mu     sync.Mutex
	events []AuditEvent
	warns  []string
}

func (a *recordingAuditor) Record(event AuditEvent) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.events = append(a.events, event)
}

func (a *recordingAuditor) Warn(message string, _ ...slog.Attr) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.warns = append(a.warns, message)
}

func (a *recordingAuditor) eventsFor(operation string) []AuditEvent {
	a.mu.Lock()
	defer a.mu.Unlock()
	var out []AuditEvent
	for _, e := range a.events {
		if e.Operation == operation {
			out = append(out, e)
		}
	}
	return out
}

func (a *recordingAuditor) warnCount() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.warns)
}

// pagedDirectory serves a fixed number of synthetic person entries through
// the paging control protocol, encoding the offset in the cookie.
type pagedDirectory struct {
	total    int
	searches int
}

func (d *pagedDirectory) search(req *ldap.SearchRequest) (*ldap.SearchResult, error) {
	d.searches++

	var paging *ldap.ControlPaging
	for _, ctrl := range req.Controls {
		if p, ok := ctrl.(*ldap.ControlPaging); ok {
			paging = p
		}
	}
	if paging == nil {
		return nil, fmt.Errorf("no paging control in request")
	}

	offset := 0
	if len(paging.Cookie) > 0 {
		var err error
		offset, err = strconv.Atoi(string(paging.Cookie))
		if err != nil {
			return nil, fmt.Errorf("bad cookie: %w", err)
		}
	}

	pageSize := int(paging.PagingSize)
	end := offset + pageSize
	if end > d.total {
		end = d.total
	}

	result := &ldap.SearchResult{}
	for i := offset; i < end; i++ {
		result.Entries = append(result.Entries, &ldap.Entry{
			DN: fmt.Sprintf("uid=person%04d,ou=people,dc=corp,dc=example,dc=com", i),
			Attributes: []*ldap.EntryAttribute{
				{Name: "uid", Values: []string{fmt.Sprintf("person%04d", i)}},
				{Name: "cn", Values: []string{fmt.Sprintf("Person %04d", i)}},
			},
		})
	}

	next := &ldap.ControlPaging{PagingSize: paging.PagingSize}
	if end < d.total {
		next.Cookie = []byte(strconv.Itoa(end))
	}
	result.Controls = append(result.Controls, next)
	return result, nil
}

func testLogger() *slog.Logger {
	return slog.New(slog.DiscardHandler)
}

func testLimits() PerformanceConfig {
	return PerformanceConfig{MaxRetries: 0, RetryDelaySeconds: 0, PageSize: 100, MaxResults: 1000}
}
