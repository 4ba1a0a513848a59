package directory

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"
)

// defaultPeopleResults bounds a free-text people search when the caller
// gives no explicit limit.
const defaultPeopleResults = 10

// summaryAttributes is the minimal person attribute set used where full
// records would be wasteful (org charts, member expansion, summaries).
var summaryAttributes = []string{"uid", "cn", "mail", "title", "manager", "co"}

// SearchPeople searches the directory for people matching a free-text query
// across the schema's searchable person fields. fields, when non-empty,
// restricts the attributes requested; maxResults <= 0 falls back to the
// default.
func (s *Service) SearchPeople(ctx context.Context, query string, fields []string, maxResults int) (*RecordSet, error) {
	start := time.Now()

	query = strings.TrimSpace(query)
	if query == "" {
		return nil, &SearchError{Op: "SearchPeople", Reason: "query must not be empty"}
	}
	if maxResults <= 0 {
		maxResults = defaultPeopleResults
	}

	attrs := fields
	if len(attrs) == 0 {
		attrs = s.cfg.Schema.PersonAttributes()
	}

	set, err := s.recordSet(ctx, SearchRequest{
		Base:       s.cfg.PersonSearchBase(),
		Filter:     personQueryFilter(s.cfg.Schema, query),
		Attributes: attrs,
		SizeLimit:  maxResults,
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("people_search_completed",
		slog.String("query", query),
		slog.Int("results", set.Count()),
		slog.Bool("capped", set.Capped),
		slog.Duration("duration", time.Since(start)))
	return set, nil
}

// SearchPeopleSummary is SearchPeople restricted to the summary attribute
// set, for callers that only need identity and title.
func (s *Service) SearchPeopleSummary(ctx context.Context, query string, maxResults int) (*RecordSet, error) {
	return s.SearchPeople(ctx, query, summaryAttributes, maxResults)
}

// GetPersonDetails retrieves the full record for one person. The identifier
// may be a uid, an email address or a distinguished name.
func (s *Service) GetPersonDetails(ctx context.Context, identifier string) (NormalizedRecord, error) {
	return s.getPerson(ctx, identifier, s.cfg.Schema.PersonAttributes())
}

// getPerson resolves an identifier to a single normalized person record with
// the given attribute set.
func (s *Service) getPerson(ctx context.Context, identifier string, attrs []string) (NormalizedRecord, error) {
	identifier = strings.TrimSpace(identifier)
	if identifier == "" {
		return nil, &SearchError{Op: "GetPersonDetails", Reason: "identifier must not be empty"}
	}

	base, filter, scope := personIdentifierFilter(s.cfg.Schema, s.cfg.PersonSearchBase(), identifier)

	set, err := s.recordSet(ctx, SearchRequest{
		Base:       base,
		Filter:     filter,
		Attributes: attrs,
		Scope:      scope,
		SizeLimit:  1,
	})
	if err != nil {
		return nil, err
	}
	if set.Count() == 0 {
		return nil, fmt.Errorf("%w: no person matches %q", ErrEntryNotFound, identifier)
	}

	return set.Records[0], nil
}
