package directory

import (
	"context"
	"log/slog"
	"strings"
	"time"
)

// defaultGroupResults bounds a free-text group search when the caller gives
// no explicit limit.
const defaultGroupResults = 10

// groupAttributes is the attribute set requested for group entries.
var groupAttributes = []string{"cn", "description", "owner", "member", "uniqueMember", "memberUid"}

// membershipAttributes are the DN-valued membership attributes checked when
// expanding a group or listing a person's groups. memberUid (POSIX groups)
// is matched on uid instead.
var membershipAttributes = []string{"member", "uniqueMember"}

// SearchGroups searches groups by a free-text query across the schema's
// searchable group fields.
func (s *Service) SearchGroups(ctx context.Context, query string, maxResults int) (*RecordSet, error) {
	start := time.Now()

	query = strings.TrimSpace(query)
	if query == "" {
		return nil, &SearchError{Op: "SearchGroups", Reason: "query must not be empty"}
	}
	if maxResults <= 0 {
		maxResults = defaultGroupResults
	}

	set, err := s.recordSet(ctx, SearchRequest{
		Base:       s.cfg.GroupSearchBase(),
		Filter:     groupQueryFilter(s.cfg.Schema, query),
		Attributes: groupAttributes,
		SizeLimit:  maxResults,
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("group_search_completed",
		slog.String("query", query),
		slog.Int("results", set.Count()),
		slog.Duration("duration", time.Since(start)))
	return set, nil
}

// GetGroupMembers expands one group into summary person records. The group
// identifier may be a cn or a full DN. Members the directory cannot resolve
// are skipped, not fatal.
func (s *Service) GetGroupMembers(ctx context.Context, groupID string) (*RecordSet, error) {
	start := time.Now()

	group, err := s.getGroup(ctx, groupID)
	if err != nil {
		return nil, err
	}

	members := &RecordSet{}
	seen := make(map[string]bool)

	for _, attr := range membershipAttributes {
		for _, memberDN := range group.Values(attr) {
			if seen[strings.ToLower(memberDN)] {
				continue
			}
			seen[strings.ToLower(memberDN)] = true

			person, err := s.getPerson(ctx, memberDN, summaryAttributes)
			if err != nil {
				s.logger.Debug("group_member_unresolvable",
					slog.String("group", group.DN()),
					slog.String("member", memberDN),
					slog.String("error", err.Error()))
				continue
			}
			members.Records = append(members.Records, person)
		}
	}

	// POSIX-style groups list plain uids.
	for _, uid := range group.Values("memberUid") {
		if seen[strings.ToLower(uid)] {
			continue
		}
		seen[strings.ToLower(uid)] = true

		person, err := s.getPerson(ctx, uid, summaryAttributes)
		if err != nil {
			s.logger.Debug("group_member_unresolvable",
				slog.String("group", group.DN()),
				slog.String("member_uid", uid),
				slog.String("error", err.Error()))
			continue
		}
		members.Records = append(members.Records, person)
	}

	s.logger.Info("group_members_expanded",
		slog.String("group", group.DN()),
		slog.Int("members", members.Count()),
		slog.Duration("duration", time.Since(start)))
	return members, nil
}

// GetPersonGroups lists the groups a person belongs to, checking DN-valued
// membership attributes and POSIX memberUid.
func (s *Service) GetPersonGroups(ctx context.Context, identifier string) (*RecordSet, error) {
	start := time.Now()

	person, err := s.getPerson(ctx, identifier, []string{"uid", "cn"})
	if err != nil {
		return nil, err
	}

	groups := &RecordSet{}
	seen := make(map[string]bool)

	appendGroups := func(set *RecordSet) {
		for _, g := range set.Records {
			key := strings.ToLower(g.DN())
			if seen[key] {
				continue
			}
			seen[key] = true
			groups.Records = append(groups.Records, g)
		}
		groups.Capped = groups.Capped || set.Capped
	}

	for _, attr := range membershipAttributes {
		set, err := s.recordSet(ctx, SearchRequest{
			Base:       s.cfg.GroupSearchBase(),
			Filter:     membershipFilter(s.cfg.Schema, attr, person.DN()),
			Attributes: []string{"cn", "description", "owner"},
		})
		if err != nil {
			return nil, err
		}
		appendGroups(set)
	}

	if uid := person.String("uid"); uid != "" {
		set, err := s.recordSet(ctx, SearchRequest{
			Base:       s.cfg.GroupSearchBase(),
			Filter:     membershipFilter(s.cfg.Schema, "memberUid", uid),
			Attributes: []string{"cn", "description", "owner"},
		})
		if err != nil {
			return nil, err
		}
		appendGroups(set)
	}

	s.logger.Info("person_groups_listed",
		slog.String("person", person.DN()),
		slog.Int("groups", groups.Count()),
		slog.Duration("duration", time.Since(start)))
	return groups, nil
}

// getGroup resolves a group identifier (cn or DN) to one record.
func (s *Service) getGroup(ctx context.Context, groupID string) (NormalizedRecord, error) {
	groupID = strings.TrimSpace(groupID)
	if groupID == "" {
		return nil, &SearchError{Op: "GetGroupMembers", Reason: "group identifier must not be empty"}
	}

	req := SearchRequest{
		Base:       s.cfg.GroupSearchBase(),
		Filter:     groupByNameFilter(s.cfg.Schema, groupID),
		Attributes: groupAttributes,
		SizeLimit:  1,
	}
	if classifyIdentifier(groupID) == identifierDN {
		req.Base = groupID
		req.Filter = "(objectClass=*)"
		req.Scope = ScopeBase
	}

	set, err := s.recordSet(ctx, req)
	if err != nil {
		return nil, err
	}
	if set.Count() == 0 {
		return nil, NewDirectoryError("GetGroupMembers", s.manager.auth.Endpoint(), ErrEntryNotFound).
			WithContext("group", groupID)
	}
	return set.Records[0], nil
}
