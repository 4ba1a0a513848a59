package mcpserver

import (
	"context"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/corpatlas/directory-mcp"
)

// Record is a normalized directory record as serialized to tool output.
type Record = directory.NormalizedRecord

// RecordSetOutput is the common output shape for collection-returning tools.
type RecordSetOutput struct {
	Records []Record `json:"records"`
	Count   int      `json:"count"`
	// Capped reports that the directory had more matches than the result
	// ceiling allowed.
	Capped bool `json:"capped"`
	// Resumed reports a search that survived a mid-paging reconnect.
	Resumed bool `json:"resumed,omitempty"`
}

func recordSetOutput(set *directory.RecordSet) RecordSetOutput {
	return RecordSetOutput{
		Records: set.Records,
		Count:   set.Count(),
		Capped:  set.Capped,
		Resumed: set.Resumed,
	}
}

// SearchPeopleInput is the input schema for the search_people tool.
type SearchPeopleInput struct {
	Query      string   `json:"query" jsonschema:"free-text query matched against name, uid and mail"`
	Fields     []string `json:"fields,omitempty" jsonschema:"attributes to return; defaults to the full corporate set"`
	MaxResults int      `json:"max_results,omitempty" jsonschema:"maximum number of results (default 10)"`
}

// SearchPeopleSummaryInput is the input schema for the search_people_summary
// tool.
type SearchPeopleSummaryInput struct {
	Query      string `json:"query" jsonschema:"free-text query matched against name, uid and mail"`
	MaxResults int    `json:"max_results,omitempty" jsonschema:"maximum number of results (default 10)"`
}

// IdentifierInput addresses one person by uid, email address or DN.
type IdentifierInput struct {
	Identifier string `json:"identifier" jsonschema:"person identifier: uid, email address or distinguished name"`
}

// PersonOutput is the output schema for single-person tools.
type PersonOutput struct {
	Person Record `json:"person"`
}

// OrgChartInput is the input schema for the get_organization_chart tool.
type OrgChartInput struct {
	RootIdentifier string `json:"root_identifier" jsonschema:"manager at the root of the chart: uid, email or DN"`
	Depth          int    `json:"depth,omitempty" jsonschema:"levels of reports to expand (default 3, max 5)"`
}

// OrgChartOutput is the output schema for the get_organization_chart tool.
type OrgChartOutput struct {
	Chart *directory.OrgNode `json:"chart"`
}

// ManagerChainOutput is the output schema for the find_manager_chain tool.
type ManagerChainOutput struct {
	Managers []Record `json:"managers"`
	Count    int      `json:"count"`
}

// SearchGroupsInput is the input schema for the search_groups tool.
type SearchGroupsInput struct {
	Query      string `json:"query" jsonschema:"free-text query matched against group name and description"`
	MaxResults int    `json:"max_results,omitempty" jsonschema:"maximum number of results (default 10)"`
}

// GroupInput addresses one group by cn or DN.
type GroupInput struct {
	Group string `json:"group" jsonschema:"group identifier: cn or distinguished name"`
}

// LocationsInput is the input schema for the find_locations tool.
type LocationsInput struct {
	Query string `json:"query,omitempty" jsonschema:"restrict to location names containing this text"`
}

// LocationsOutput is the output schema for the find_locations tool.
type LocationsOutput struct {
	Locations []directory.Location `json:"locations"`
	Count     int                  `json:"count"`
	Capped    bool                 `json:"capped"`
}

// PeopleAtLocationInput is the input schema for the get_people_at_location tool.
type PeopleAtLocationInput struct {
	Location   string `json:"location" jsonschema:"location name: city, state, country or office"`
	MaxResults int    `json:"max_results,omitempty" jsonschema:"maximum number of results (default 50)"`
}

// TestConnectionInput is the (empty) input schema for the test_connection tool.
type TestConnectionInput struct{}

// TestConnectionOutput is the output schema for the test_connection tool.
type TestConnectionOutput struct {
	Success   bool   `json:"success"`
	Detail    string `json:"detail"`
	Attempts  int    `json:"attempts"`
	LatencyMS int64  `json:"latency_ms"`
}

// ExportPeopleInput is the input schema for the export_people tool.
type ExportPeopleInput struct {
	Query      string `json:"query" jsonschema:"free-text people query selecting the records to export"`
	Format     string `json:"format" jsonschema:"export format: json or csv"`
	MaxResults int    `json:"max_results,omitempty" jsonschema:"maximum number of records to export"`
}

// ExportPeopleOutput is the output schema for the export_people tool.
type ExportPeopleOutput struct {
	Content string `json:"content"`
	Format  string `json:"format"`
	Records int    `json:"records"`
}

// registerTools registers every directory tool with the MCP server.
func (s *Server) registerTools() {
	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "search_people",
		Description: "Search the corporate directory for people by name, uid or email",
	}, s.handleSearchPeople)

	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "search_people_summary",
		Description: "Search people returning only the summary attribute set (uid, name, mail, title)",
	}, s.handleSearchPeopleSummary)

	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "get_person_details",
		Description: "Get the full directory record for one person",
	}, s.handleGetPersonDetails)

	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "get_organization_chart",
		Description: "Build the reporting tree under a manager",
	}, s.handleGetOrganizationChart)

	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "find_manager_chain",
		Description: "List a person's managers from immediate manager to the top",
	}, s.handleFindManagerChain)

	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "find_direct_reports",
		Description: "List the people reporting directly to a manager",
	}, s.handleFindDirectReports)

	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "search_groups",
		Description: "Search directory groups by name or description",
	}, s.handleSearchGroups)

	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "get_group_members",
		Description: "List the members of a group",
	}, s.handleGetGroupMembers)

	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "get_person_groups",
		Description: "List the groups a person belongs to",
	}, s.handleGetPersonGroups)

	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "find_locations",
		Description: "Aggregate the locations present in the directory with head counts",
	}, s.handleFindLocations)

	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "get_people_at_location",
		Description: "List people at a location",
	}, s.handleGetPeopleAtLocation)

	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "test_connection",
		Description: "Check connectivity and authentication against the directory server",
	}, s.handleTestConnection)

	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "export_people",
		Description: "Export people matching a query as JSON or CSV, with sensitive attributes stripped",
	}, s.handleExportPeople)
}

func (s *Server) handleSearchPeople(ctx context.Context, _ *mcp.CallToolRequest, input SearchPeopleInput) (*mcp.CallToolResult, RecordSetOutput, error) {
	set, err := s.svc.SearchPeople(ctx, input.Query, input.Fields, input.MaxResults)
	if err != nil {
		return nil, RecordSetOutput{}, err
	}
	return nil, recordSetOutput(set), nil
}

func (s *Server) handleSearchPeopleSummary(ctx context.Context, _ *mcp.CallToolRequest, input SearchPeopleSummaryInput) (*mcp.CallToolResult, RecordSetOutput, error) {
	set, err := s.svc.SearchPeopleSummary(ctx, input.Query, input.MaxResults)
	if err != nil {
		return nil, RecordSetOutput{}, err
	}
	return nil, recordSetOutput(set), nil
}

func (s *Server) handleGetPersonDetails(ctx context.Context, _ *mcp.CallToolRequest, input IdentifierInput) (*mcp.CallToolResult, PersonOutput, error) {
	person, err := s.svc.GetPersonDetails(ctx, input.Identifier)
	if err != nil {
		return nil, PersonOutput{}, err
	}
	return nil, PersonOutput{Person: person}, nil
}

func (s *Server) handleGetOrganizationChart(ctx context.Context, _ *mcp.CallToolRequest, input OrgChartInput) (*mcp.CallToolResult, OrgChartOutput, error) {
	chart, err := s.svc.GetOrganizationChart(ctx, input.RootIdentifier, input.Depth)
	if err != nil {
		return nil, OrgChartOutput{}, err
	}
	return nil, OrgChartOutput{Chart: chart}, nil
}

func (s *Server) handleFindManagerChain(ctx context.Context, _ *mcp.CallToolRequest, input IdentifierInput) (*mcp.CallToolResult, ManagerChainOutput, error) {
	chain, err := s.svc.FindManagerChain(ctx, input.Identifier)
	if err != nil {
		return nil, ManagerChainOutput{}, err
	}
	return nil, ManagerChainOutput{Managers: chain, Count: len(chain)}, nil
}

func (s *Server) handleFindDirectReports(ctx context.Context, _ *mcp.CallToolRequest, input IdentifierInput) (*mcp.CallToolResult, RecordSetOutput, error) {
	set, err := s.svc.FindDirectReports(ctx, input.Identifier)
	if err != nil {
		return nil, RecordSetOutput{}, err
	}
	return nil, recordSetOutput(set), nil
}

func (s *Server) handleSearchGroups(ctx context.Context, _ *mcp.CallToolRequest, input SearchGroupsInput) (*mcp.CallToolResult, RecordSetOutput, error) {
	set, err := s.svc.SearchGroups(ctx, input.Query, input.MaxResults)
	if err != nil {
		return nil, RecordSetOutput{}, err
	}
	return nil, recordSetOutput(set), nil
}

func (s *Server) handleGetGroupMembers(ctx context.Context, _ *mcp.CallToolRequest, input GroupInput) (*mcp.CallToolResult, RecordSetOutput, error) {
	set, err := s.svc.GetGroupMembers(ctx, input.Group)
	if err != nil {
		return nil, RecordSetOutput{}, err
	}
	return nil, recordSetOutput(set), nil
}

func (s *Server) handleGetPersonGroups(ctx context.Context, _ *mcp.CallToolRequest, input IdentifierInput) (*mcp.CallToolResult, RecordSetOutput, error) {
	set, err := s.svc.GetPersonGroups(ctx, input.Identifier)
	if err != nil {
		return nil, RecordSetOutput{}, err
	}
	return nil, recordSetOutput(set), nil
}

func (s *Server) handleFindLocations(ctx context.Context, _ *mcp.CallToolRequest, input LocationsInput) (*mcp.CallToolResult, LocationsOutput, error) {
	locations, capped, err := s.svc.FindLocations(ctx, input.Query)
	if err != nil {
		return nil, LocationsOutput{}, err
	}
	return nil, LocationsOutput{Locations: locations, Count: len(locations), Capped: capped}, nil
}

func (s *Server) handleGetPeopleAtLocation(ctx context.Context, _ *mcp.CallToolRequest, input PeopleAtLocationInput) (*mcp.CallToolResult, RecordSetOutput, error) {
	set, err := s.svc.GetPeopleAtLocation(ctx, input.Location, input.MaxResults)
	if err != nil {
		return nil, RecordSetOutput{}, err
	}
	return nil, recordSetOutput(set), nil
}

func (s *Server) handleTestConnection(ctx context.Context, _ *mcp.CallToolRequest, _ TestConnectionInput) (*mcp.CallToolResult, TestConnectionOutput, error) {
	result := s.svc.TestConnection(ctx)
	return nil, TestConnectionOutput{
		Success:   result.Success,
		Detail:    result.Detail,
		Attempts:  result.Attempts,
		LatencyMS: result.Latency.Milliseconds(),
	}, nil
}

func (s *Server) handleExportPeople(ctx context.Context, _ *mcp.CallToolRequest, input ExportPeopleInput) (*mcp.CallToolResult, ExportPeopleOutput, error) {
	set, err := s.svc.SearchPeople(ctx, input.Query, nil, input.MaxResults)
	if err != nil {
		return nil, ExportPeopleOutput{}, err
	}

	data, err := s.svc.ExportRecords(set.Records, input.Format)
	if err != nil {
		return nil, ExportPeopleOutput{}, err
	}

	return nil, ExportPeopleOutput{
		Content: string(data),
		Format:  input.Format,
		Records: set.Count(),
	}, nil
}
