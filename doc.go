// Package directory implements a read-only corporate directory connector
// over LDAP: connection lifecycle with bounded retry, anonymous/simple/SASL
// authentication, paged searches under result ceilings, and normalization of
// raw directory entries into a stable record shape.
//
// The connector is consumed by a thin MCP tool-dispatch adapter (see
// internal/mcpserver) exposing named operations such as search_people,
// get_organization_chart and get_group_members. None of the operations
// mutate directory state.
//
// Basic usage:
//
//	cfg, err := directory.LoadConfig("config.json", "openldap", logger)
//	if err != nil {
//		log.Fatal(err)
//	}
//	svc, err := directory.NewService(cfg, nil)
//	if err != nil {
//		log.Fatal(err)
//	}
//	defer svc.Close()
//
//	people, err := svc.SearchPeople(ctx, "jane", nil, 10)
package directory
