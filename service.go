package directory

import (
	"context"
	"log/slog"
)

// Service bundles the connector components behind the read-only operation
// surface the tool-dispatch layer consumes. Every operation returns
// normalized records or a structured error; none mutate directory state.
type Service struct {
	cfg     *Config
	manager *ConnectionManager
	exec    *PagedSearchExecutor
	norm    *EntryNormalizer
	audit   Auditor
	logger  *slog.Logger
}

// NewService validates the configuration and wires the connector. The audit
// sink defaults to a structured-log sink on the configured logger.
func NewService(cfg *Config, audit Auditor) (*Service, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	logger := cfg.logger()
	if audit == nil {
		audit = NewSlogAuditor(logger)
	}

	auth, err := NewAuthenticator(cfg)
	if err != nil {
		return nil, err
	}

	manager := NewConnectionManager(auth, cfg.Performance, audit, logger)
	return &Service{
		cfg:     cfg,
		manager: manager,
		exec:    NewPagedSearchExecutor(manager, cfg.Performance, audit, logger),
		norm:    NewEntryNormalizer(cfg.Schema, audit),
		audit:   audit,
		logger:  logger,
	}, nil
}

// RecordSet is a normalized result collection plus the outcome flags carried
// up from the search executor.
type RecordSet struct {
	Records []NormalizedRecord `json:"records"`
	// Capped reports that the result set hit the configured ceiling.
	Capped bool `json:"capped"`
	// Resumed reports a degraded-but-successful search that survived a
	// mid-paging reconnect.
	Resumed bool `json:"resumed,omitempty"`
}

// Count returns the number of records in the set.
func (rs *RecordSet) Count() int { return len(rs.Records) }

// TestConnection performs one full acquire-and-release cycle as a health
// check. It never returns an error; failures are captured in the result.
func (s *Service) TestConnection(ctx context.Context) ConnectionTestResult {
	return s.manager.TestConnection(ctx)
}

// Close releases the live session, closing the transport. Idempotent.
func (s *Service) Close() {
	s.manager.ReleaseSession()
}

// recordSet runs a search and normalizes the outcome into a RecordSet.
func (s *Service) recordSet(ctx context.Context, req SearchRequest) (*RecordSet, error) {
	result, err := s.exec.Search(ctx, req)
	if err != nil {
		return nil, err
	}
	return &RecordSet{
		Records: s.norm.NormalizeAll(result.Entries),
		Capped:  result.Capped,
		Resumed: result.Resumed,
	}, nil
}
