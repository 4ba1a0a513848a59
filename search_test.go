package directory

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/go-ldap/ldap/v3"
)

func newTestExecutor(auth Authenticator, limits PerformanceConfig) *PagedSearchExecutor {
	m := NewConnectionManager(auth, limits, nil, testLogger())
	return NewPagedSearchExecutor(m, limits, nil, testLogger())
}

func peopleRequest() SearchRequest {
	return SearchRequest{
		Base:   "ou=people,dc=corp,dc=example,dc=com",
		Filter: "(objectClass=person)",
	}
}

func TestSearchPagesThroughAllEntries(t *testing.T) {
	dir := &pagedDirectory{total: 230}
	auth := &fakeAuthenticator{newConn: func() Conn { return &fakeConn{searchFn: dir.search} }}
	exec := newTestExecutor(auth, testLimits())

	result, err := exec.Search(context.Background(), peopleRequest())
	if err != nil {
		t.Fatalf("Search() error = %v", err)
	}

	if len(result.Entries) != 230 {
		t.Errorf("entries = %d, want 230", len(result.Entries))
	}
	if result.Pages != 3 {
		t.Errorf("pages = %d, want 3 (100+100+30)", result.Pages)
	}
	if result.Capped {
		t.Error("Capped = true, but the directory had no more matches")
	}
	if result.Resumed {
		t.Error("Resumed = true on an uninterrupted search")
	}
}

func TestSearchCapsAtMaxResults(t *testing.T) {
	dir := &pagedDirectory{total: 400}
	auth := &fakeAuthenticator{newConn: func() Conn { return &fakeConn{searchFn: dir.search} }}
	limits := PerformanceConfig{MaxRetries: 0, RetryDelaySeconds: 0, PageSize: 100, MaxResults: 250}
	exec := newTestExecutor(auth, limits)

	result, err := exec.Search(context.Background(), peopleRequest())
	if err != nil {
		t.Fatalf("Search() error = %v", err)
	}

	if len(result.Entries) != 250 {
		t.Errorf("entries = %d, want exactly 250", len(result.Entries))
	}
	if !result.Capped {
		t.Error("Capped = false, want true (directory had 400 matches)")
	}
	// Excess on the final page is discarded, not silently duplicated.
	last := result.Entries[len(result.Entries)-1]
	if !strings.HasPrefix(last.DN, "uid=person0249,") {
		t.Errorf("last entry = %s, want uid=person0249", last.DN)
	}
}

func TestSearchCapExactBoundary(t *testing.T) {
	// When the matches equal the ceiling exactly and no pages remain, the
	// result is complete and must not be flagged capped.
	dir := &pagedDirectory{total: 250}
	auth := &fakeAuthenticator{newConn: func() Conn { return &fakeConn{searchFn: dir.search} }}
	limits := PerformanceConfig{MaxRetries: 0, RetryDelaySeconds: 0, PageSize: 100, MaxResults: 250}
	exec := newTestExecutor(auth, limits)

	result, err := exec.Search(context.Background(), peopleRequest())
	if err != nil {
		t.Fatalf("Search() error = %v", err)
	}
	if len(result.Entries) != 250 {
		t.Errorf("entries = %d, want 250", len(result.Entries))
	}
	if result.Capped {
		t.Error("Capped = true, but the ceiling was not exceeded")
	}
}

func TestSearchSizeLimitBelowMaxResults(t *testing.T) {
	dir := &pagedDirectory{total: 400}
	auth := &fakeAuthenticator{newConn: func() Conn { return &fakeConn{searchFn: dir.search} }}
	exec := newTestExecutor(auth, testLimits())

	req := peopleRequest()
	req.SizeLimit = 50

	result, err := exec.Search(context.Background(), req)
	if err != nil {
		t.Fatalf("Search() error = %v", err)
	}
	if len(result.Entries) != 50 {
		t.Errorf("entries = %d, want 50 (per-request limit)", len(result.Entries))
	}
	if !result.Capped {
		t.Error("Capped = false, want true")
	}
}

func TestSearchRejectsMalformedFilter(t *testing.T) {
	auth := &fakeAuthenticator{}
	exec := newTestExecutor(auth, testLimits())

	req := peopleRequest()
	req.Filter = "(&(objectClass=person"

	_, err := exec.Search(context.Background(), req)
	if err == nil {
		t.Fatal("Search() accepted a malformed filter")
	}
	if !errors.Is(err, ErrInvalidFilter) {
		t.Errorf("error = %v, want ErrInvalidFilter", err)
	}
	var searchErr *SearchError
	if !errors.As(err, &searchErr) {
		t.Fatalf("error = %T, want *SearchError", err)
	}
	if got := auth.calls(); got != 0 {
		t.Errorf("bind calls = %d, want 0 (rejected before any network call)", got)
	}
}

func TestSearchResumesAfterMidPagingDisconnect(t *testing.T) {
	dir := &pagedDirectory{total: 250}

	// The second search overall dies, after the first page delivered a
	// paging cookie, so the resumed search continues from page two.
	calls := 0
	auth := &fakeAuthenticator{newConn: func() Conn {
		c := &fakeConn{}
		c.searchFn = func(req *ldap.SearchRequest) (*ldap.SearchResult, error) {
			calls++
			if calls == 2 {
				c.closing = true
				return nil, ldap.NewError(ldap.ErrorNetwork, fmt.Errorf("connection reset by peer"))
			}
			return dir.search(req)
		}
		return c
	}}
	exec := newTestExecutor(auth, testLimits())

	result, err := exec.Search(context.Background(), peopleRequest())
	if err != nil {
		t.Fatalf("Search() error = %v", err)
	}

	if !result.Resumed {
		t.Error("Resumed = false, want true after a mid-paging reconnect")
	}
	if len(result.Entries) != 250 {
		t.Errorf("entries = %d, want 250 (resume from surviving cookie)", len(result.Entries))
	}
	// No duplicates across the resume boundary.
	seen := make(map[string]bool, len(result.Entries))
	for _, entry := range result.Entries {
		if seen[entry.DN] {
			t.Fatalf("duplicate entry after resume: %s", entry.DN)
		}
		seen[entry.DN] = true
	}
	if got := auth.calls(); got != 2 {
		t.Errorf("bind calls = %d, want 2 (original + reconnect)", got)
	}
}

func TestSearchRestartsWhenNoCookieSurvives(t *testing.T) {
	dir := &pagedDirectory{total: 150}
	calls := 0
	auth := &fakeAuthenticator{newConn: func() Conn {
		c := &fakeConn{}
		c.searchFn = func(req *ldap.SearchRequest) (*ldap.SearchResult, error) {
			calls++
			if calls == 1 {
				// Dies before the first page, so no cookie exists yet.
				c.closing = true
				return nil, ldap.NewError(ldap.ErrorNetwork, fmt.Errorf("broken pipe"))
			}
			return dir.search(req)
		}
		return c
	}}
	exec := newTestExecutor(auth, testLimits())

	result, err := exec.Search(context.Background(), peopleRequest())
	if err != nil {
		t.Fatalf("Search() error = %v", err)
	}
	if !result.Resumed {
		t.Error("Resumed = false, want true")
	}
	if len(result.Entries) != 150 {
		t.Errorf("entries = %d, want 150 (full restart from the beginning)", len(result.Entries))
	}
}

func TestSearchSecondDisconnectFails(t *testing.T) {
	auth := &fakeAuthenticator{newConn: func() Conn {
		c := &fakeConn{}
		c.searchFn = func(req *ldap.SearchRequest) (*ldap.SearchResult, error) {
			c.closing = true
			return nil, ldap.NewError(ldap.ErrorNetwork, fmt.Errorf("connection reset by peer"))
		}
		return c
	}}
	exec := newTestExecutor(auth, testLimits())

	_, err := exec.Search(context.Background(), peopleRequest())
	if err == nil {
		t.Fatal("Search() succeeded, want failure after second disconnect")
	}
	var searchErr *SearchError
	if !errors.As(err, &searchErr) {
		t.Fatalf("error = %T, want *SearchError", err)
	}
	// One reconnect only: original bind plus one rebuild.
	if got := auth.calls(); got != 2 {
		t.Errorf("bind calls = %d, want 2", got)
	}
}

func TestSearchReconnectFailureSurfaces(t *testing.T) {
	auth := &fakeAuthenticator{bindFn: func(call int) (Conn, error) {
		if call > 1 {
			return nil, fmt.Errorf("server unreachable")
		}
		c := &fakeConn{}
		c.searchFn = func(req *ldap.SearchRequest) (*ldap.SearchResult, error) {
			c.closing = true
			return nil, ldap.NewError(ldap.ErrorNetwork, fmt.Errorf("connection reset by peer"))
		}
		return c, nil
	}}
	exec := newTestExecutor(auth, testLimits())

	_, err := exec.Search(context.Background(), peopleRequest())
	if err == nil {
		t.Fatal("Search() succeeded, want reconnect failure")
	}
	var searchErr *SearchError
	if !errors.As(err, &searchErr) {
		t.Fatalf("error = %T, want *SearchError", err)
	}
	if !errors.Is(err, ErrConnectionFailed) {
		t.Errorf("error = %v, want wrapped ErrConnectionFailed", err)
	}
}

func TestSearchCancellationAbandonsSession(t *testing.T) {
	dir := &pagedDirectory{total: 100}
	auth := &fakeAuthenticator{newConn: func() Conn { return &fakeConn{searchFn: dir.search} }}
	m := NewConnectionManager(auth, testLimits(), nil, testLogger())
	exec := NewPagedSearchExecutor(m, testLimits(), nil, testLogger())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := exec.Search(ctx, peopleRequest())
	if err == nil {
		t.Fatal("Search() succeeded with a cancelled context")
	}
	if !errors.Is(err, context.Canceled) {
		t.Errorf("error = %v, want context.Canceled", err)
	}
	// The transport state mid-search is unknown; the session must not be
	// offered for reuse.
	if m.session != nil {
		t.Error("session survived an abandoned search")
	}
}

func TestSearchAuditsOutcome(t *testing.T) {
	audit := &recordingAuditor{}
	dir := &pagedDirectory{total: 30}
	auth := &fakeAuthenticator{newConn: func() Conn { return &fakeConn{searchFn: dir.search} }}
	m := NewConnectionManager(auth, testLimits(), audit, testLogger())
	exec := NewPagedSearchExecutor(m, testLimits(), audit, testLogger())

	if _, err := exec.Search(context.Background(), peopleRequest()); err != nil {
		t.Fatalf("Search() error = %v", err)
	}

	events := audit.eventsFor("search")
	if len(events) != 1 {
		t.Fatalf("search audit events = %d, want 1", len(events))
	}
	if events[0].Outcome != OutcomeSuccess {
		t.Errorf("outcome = %q, want %q", events[0].Outcome, OutcomeSuccess)
	}
}
