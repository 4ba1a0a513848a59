package directory

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/go-ldap/ldap/v3"
)

// RawEntry is one directory record exactly as the transport returned it: a
// distinguished name plus attribute values in server order. Every attribute
// is inherently multi-valued at the protocol level.
type RawEntry struct {
	DN         string
	Attributes map[string][]string
}

// SearchScope selects how deep a search reaches. The zero value searches the
// whole subtree.
type SearchScope int

const (
	ScopeSubtree SearchScope = iota
	ScopeBase
	ScopeOneLevel
)

func (s SearchScope) ldapScope() int {
	switch s {
	case ScopeBase:
		return ldap.ScopeBaseObject
	case ScopeOneLevel:
		return ldap.ScopeSingleLevel
	default:
		return ldap.ScopeWholeSubtree
	}
}

// SearchRequest describes one directory query.
type SearchRequest struct {
	// Base is the DN the search is scoped under.
	Base string
	// Filter is an LDAP filter expression; validated before any network call.
	Filter string
	// Attributes to request. Empty requests every attribute.
	Attributes []string
	// Scope defaults to the whole subtree.
	Scope SearchScope
	// SizeLimit optionally caps this query below the configured max_results.
	SizeLimit int
}

// SearchResult carries the accumulated entries plus the outcome flags the
// caller needs to interpret them.
type SearchResult struct {
	Entries []RawEntry
	// Capped is set when the directory had more matches than the result
	// ceiling; excess entries on the final page are discarded, not silently
	// truncated.
	Capped bool
	// Resumed is set when the session died mid-paging and the search
	// completed after a reconnect: a degraded but successful outcome.
	Resumed bool
	// Pages is the number of paged round-trips issued.
	Pages int
}

// searchCursor is the explicit paging state threaded through one search, so
// resumption after a mid-page disconnect is well-defined.
type searchCursor struct {
	paging  *ldap.ControlPaging
	total   int
	pages   int
	resumed bool
}

// PagedSearchExecutor issues directory queries with server-side paging under
// the configured result ceilings, recovering once from a session the server
// closed mid-paging.
type PagedSearchExecutor struct {
	manager *ConnectionManager
	limits  PerformanceConfig
	audit   Auditor
	logger  *slog.Logger
}

// NewPagedSearchExecutor wires an executor over a connection manager.
func NewPagedSearchExecutor(manager *ConnectionManager, limits PerformanceConfig, audit Auditor, logger *slog.Logger) *PagedSearchExecutor {
	if audit == nil {
		audit = NopAuditor{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &PagedSearchExecutor{manager: manager, limits: limits, audit: audit, logger: logger}
}

// Search executes req against a session supplied by the connection manager
// and returns the accumulated result. Malformed filters are rejected before
// any network call. The result is capped at max_results (or req.SizeLimit
// when lower) with the Capped flag set.
func (e *PagedSearchExecutor) Search(ctx context.Context, req SearchRequest) (*SearchResult, error) {
	start := time.Now()

	if _, err := ldap.CompileFilter(req.Filter); err != nil {
		return nil, &SearchError{
			Op:     "search",
			Filter: req.Filter,
			Reason: fmt.Sprintf("malformed filter: %v", err),
			Err:    ErrInvalidFilter,
		}
	}

	ceiling := e.limits.MaxResults
	if req.SizeLimit > 0 && req.SizeLimit < ceiling {
		ceiling = req.SizeLimit
	}
	pageSize := e.limits.PageSize
	if pageSize > ceiling {
		pageSize = ceiling
	}

	result := &SearchResult{}
	err := e.manager.WithSession(ctx, func(sess *Session) error {
		return e.runPaged(ctx, sess, req, ceiling, pageSize, result)
	})

	outcome := OutcomeSuccess
	detail := fmt.Sprintf("base=%s entries=%d pages=%d capped=%t", req.Base, len(result.Entries), result.Pages, result.Capped)
	if result.Resumed {
		outcome = OutcomeDegraded
	}
	if err != nil {
		outcome = OutcomeFailure
		detail = err.Error()
	}
	e.audit.Record(AuditEvent{
		ID:        NewCorrelationID(),
		Operation: "search",
		Outcome:   outcome,
		Endpoint:  e.manager.auth.Endpoint(),
		Latency:   time.Since(start),
		Detail:    detail,
	})

	if err != nil {
		return nil, err
	}
	return result, nil
}

// runPaged drives the paging loop. Runs inside the manager's critical
// section, so it may rebuild the session through reconnectLocked.
func (e *PagedSearchExecutor) runPaged(ctx context.Context, sess *Session, req SearchRequest, ceiling, pageSize int, result *SearchResult) error {
	cursor := &searchCursor{paging: ldap.NewControlPaging(uint32(pageSize))}

	sess.setState(SessionSearching)
	defer func() {
		if sess.State() == SessionSearching {
			sess.setState(SessionBound)
		}
	}()

	for {
		// An abandoned search must stop requesting pages promptly. The
		// transport state mid-page is unknown, so the session is rebuilt on
		// next use rather than reused.
		if err := ctx.Err(); err != nil {
			e.manager.markFailedLocked()
			return &SearchError{Op: "search", Filter: req.Filter, Reason: "search abandoned", Err: err}
		}

		ldapReq := ldap.NewSearchRequest(
			req.Base,
			req.Scope.ldapScope(),
			ldap.NeverDerefAliases, 0, 0, false,
			req.Filter,
			req.Attributes,
			[]ldap.Control{cursor.paging},
		)

		response, err := sess.conn.Search(ldapReq)
		if err != nil {
			next, handled, herr := e.handleMidPagingFailure(ctx, sess, req, cursor, result, err)
			if herr != nil {
				return herr
			}
			if handled {
				sess = next
				sess.setState(SessionSearching)
				continue
			}
			return &SearchError{Op: "search", Filter: req.Filter, Reason: "directory search failed", Err: err}
		}

		cursor.pages++
		for _, entry := range response.Entries {
			if cursor.total >= ceiling {
				// Excess on the final page is discarded, and the caller is
				// told the result set was capped.
				result.Capped = true
				break
			}
			result.Entries = append(result.Entries, rawEntryFromLDAP(entry))
			cursor.total++
		}

		pagingResult := ldap.FindControl(response.Controls, ldap.ControlTypePaging)
		ctrl, ok := pagingResult.(*ldap.ControlPaging)
		morePages := ok && len(ctrl.Cookie) > 0

		if cursor.total >= ceiling && morePages {
			result.Capped = true
		}
		if result.Capped || !morePages {
			break
		}
		cursor.paging.SetCookie(ctrl.Cookie)
	}

	result.Pages = cursor.pages
	result.Resumed = cursor.resumed

	e.logger.Debug("search_completed",
		slog.String("base", req.Base),
		slog.String("filter", req.Filter),
		slog.Int("entries", len(result.Entries)),
		slog.Int("pages", cursor.pages),
		slog.Bool("capped", result.Capped),
		slog.Bool("resumed", cursor.resumed))

	return nil
}

// handleMidPagingFailure recovers once from a session the server closed
// mid-paging: reconnect and resume from the surviving cookie, or restart the
// whole search when no cookie survived. A second failure, or a failed
// reconnect, surfaces as a SearchError.
func (e *PagedSearchExecutor) handleMidPagingFailure(ctx context.Context, sess *Session, req SearchRequest, cursor *searchCursor, result *SearchResult, cause error) (*Session, bool, error) {
	disconnected := sess.conn.IsClosing() || isNetworkError(cause)
	if !disconnected || cursor.resumed {
		return nil, false, nil
	}

	e.logger.Warn("search_session_lost_midpaging",
		slog.String("base", req.Base),
		slog.Int("pages_done", cursor.pages),
		slog.Int("entries_so_far", cursor.total),
		slog.String("error", cause.Error()))

	fresh, err := e.manager.reconnectLocked(ctx)
	if err != nil {
		return nil, false, &SearchError{
			Op:     "search",
			Filter: req.Filter,
			Reason: "session lost mid-paging and reconnect failed",
			Err:    err,
		}
	}
	cursor.resumed = true

	if len(cursor.paging.Cookie) == 0 {
		// No cookie survived: restart the search from the beginning.
		result.Entries = nil
		result.Capped = false
		cursor.total = 0
		cursor.pages = 0
		cursor.paging = ldap.NewControlPaging(cursor.paging.PagingSize)
		e.logger.Info("search_restarted_after_reconnect", slog.String("base", req.Base))
	} else {
		e.logger.Info("search_resumed_after_reconnect",
			slog.String("base", req.Base),
			slog.Int("entries_so_far", cursor.total))
	}

	return fresh, true, nil
}

// rawEntryFromLDAP converts a transport entry, preserving value order.
func rawEntryFromLDAP(entry *ldap.Entry) RawEntry {
	raw := RawEntry{
		DN:         entry.DN,
		Attributes: make(map[string][]string, len(entry.Attributes)),
	}
	for _, attr := range entry.Attributes {
		values := make([]string, len(attr.Values))
		copy(values, attr.Values)
		raw.Attributes[attr.Name] = values
	}
	return raw
}
