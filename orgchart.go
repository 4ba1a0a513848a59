package directory

import (
	"context"
	"log/slog"
	"strings"
	"time"
)

const (
	defaultOrgChartDepth = 3
	maxOrgChartDepth     = 5
	// maxManagerChain bounds the walk up the reporting line against
	// directories with malformed manager loops.
	maxManagerChain = 20
)

// OrgNode is one person in an organization chart with their transitive
// reports expanded to the requested depth.
type OrgNode struct {
	Person  NormalizedRecord `json:"person"`
	Reports []*OrgNode       `json:"reports,omitempty"`
	Depth   int              `json:"depth"`
}

// GetOrganizationChart builds the reporting tree under the given root
// person. depth <= 0 falls back to the default; the ceiling guards against
// runaway traversals of large organizations.
func (s *Service) GetOrganizationChart(ctx context.Context, rootID string, depth int) (*OrgNode, error) {
	start := time.Now()

	if depth <= 0 {
		depth = defaultOrgChartDepth
	}
	if depth > maxOrgChartDepth {
		depth = maxOrgChartDepth
	}

	root, err := s.getPerson(ctx, rootID, summaryAttributes)
	if err != nil {
		return nil, err
	}

	visited := map[string]bool{strings.ToLower(root.DN()): true}
	node, err := s.buildOrgNode(ctx, root, 0, depth, visited)
	if err != nil {
		return nil, err
	}

	s.logger.Info("org_chart_built",
		slog.String("root", root.DN()),
		slog.Int("depth", depth),
		slog.Duration("duration", time.Since(start)))
	return node, nil
}

// buildOrgNode expands one person's direct reports recursively. Cycles in
// manager data are broken by the visited set.
func (s *Service) buildOrgNode(ctx context.Context, person NormalizedRecord, depth, maxDepth int, visited map[string]bool) (*OrgNode, error) {
	node := &OrgNode{Person: person, Depth: depth}
	if depth >= maxDepth {
		return node, nil
	}

	reports, err := s.findDirectReports(ctx, person.DN())
	if err != nil {
		return nil, err
	}

	for _, report := range reports.Records {
		key := strings.ToLower(report.DN())
		if visited[key] {
			continue
		}
		visited[key] = true

		child, err := s.buildOrgNode(ctx, report, depth+1, maxDepth, visited)
		if err != nil {
			return nil, err
		}
		node.Reports = append(node.Reports, child)
	}
	return node, nil
}

// FindDirectReports lists the people whose manager attribute points at the
// given person.
func (s *Service) FindDirectReports(ctx context.Context, managerID string) (*RecordSet, error) {
	manager, err := s.getPerson(ctx, managerID, summaryAttributes)
	if err != nil {
		return nil, err
	}
	return s.findDirectReports(ctx, manager.DN())
}

func (s *Service) findDirectReports(ctx context.Context, managerDN string) (*RecordSet, error) {
	return s.recordSet(ctx, SearchRequest{
		Base:       s.cfg.PersonSearchBase(),
		Filter:     directReportsFilter(s.cfg.Schema, managerDN),
		Attributes: summaryAttributes,
	})
}

// FindManagerChain walks the reporting line from a person up to the top,
// returning managers in order from immediate manager to most senior. The
// walk stops at entries with no manager, at self-reporting entries and on
// cycles.
func (s *Service) FindManagerChain(ctx context.Context, identifier string) ([]NormalizedRecord, error) {
	start := time.Now()

	current, err := s.getPerson(ctx, identifier, summaryAttributes)
	if err != nil {
		return nil, err
	}

	chain := make([]NormalizedRecord, 0, 4)
	visited := map[string]bool{strings.ToLower(current.DN()): true}

	for len(chain) < maxManagerChain {
		managerDN := current.String("manager")
		if managerDN == "" || strings.EqualFold(managerDN, current.DN()) {
			break
		}
		if visited[strings.ToLower(managerDN)] {
			s.logger.Warn("manager_chain_cycle_detected",
				slog.String("person", current.DN()),
				slog.String("manager", managerDN))
			break
		}

		manager, err := s.getPerson(ctx, managerDN, summaryAttributes)
		if err != nil {
			// A dangling manager DN ends the chain rather than failing it.
			s.logger.Warn("manager_chain_broken",
				slog.String("manager", managerDN),
				slog.String("error", err.Error()))
			break
		}

		chain = append(chain, manager)
		visited[strings.ToLower(manager.DN())] = true
		current = manager
	}

	s.logger.Info("manager_chain_resolved",
		slog.String("person", identifier),
		slog.Int("managers", len(chain)),
		slog.Duration("duration", time.Since(start)))
	return chain, nil
}
