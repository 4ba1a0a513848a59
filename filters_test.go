package directory

import (
	"strings"
	"testing"

	"github.com/go-ldap/ldap/v3"
)

func TestClassifyIdentifier(t *testing.T) {
	tests := []struct {
		id   string
		want identifierKind
	}{
		{"jdoe", identifierUID},
		{"jdoe@corp.example.com", identifierMail},
		{"uid=jdoe,ou=people,dc=corp,dc=example,dc=com", identifierDN},
		{"cn=Jane Doe,ou=people,dc=corp,dc=example,dc=com", identifierDN},
		{"jane.doe", identifierUID},
	}

	for _, tt := range tests {
		if got := classifyIdentifier(tt.id); got != tt.want {
			t.Errorf("classifyIdentifier(%q) = %v, want %v", tt.id, got, tt.want)
		}
	}
}

func TestPersonQueryFilterEscapesMetacharacters(t *testing.T) {
	schema := testSchema()
	schema.SearchFields = map[string][]string{"person": {"uid", "cn"}}

	filter := personQueryFilter(schema, `jane*(doe)\`)

	for _, escaped := range []string{`\2a`, `\28`, `\29`, `\5c`} {
		if !strings.Contains(filter, escaped) {
			t.Errorf("filter %q missing escape sequence %q", filter, escaped)
		}
	}
	if _, err := ldap.CompileFilter(filter); err != nil {
		t.Errorf("escaped filter does not compile: %v", err)
	}
}

func TestPersonQueryFilterStructure(t *testing.T) {
	schema := testSchema()
	schema.SearchFields = map[string][]string{"person": {"uid", "cn", "mail"}}

	filter := personQueryFilter(schema, "jane")

	want := "(&(objectClass=inetOrgPerson)(|(uid=*jane*)(cn=*jane*)(mail=*jane*)))"
	if filter != want {
		t.Errorf("filter = %q, want %q", filter, want)
	}
}

func TestPersonQueryFilterFallbackFields(t *testing.T) {
	schema := testSchema()
	schema.SearchFields = nil

	filter := personQueryFilter(schema, "jane")
	for _, field := range []string{"(uid=*jane*)", "(cn=*jane*)", "(mail=*jane*)"} {
		if !strings.Contains(filter, field) {
			t.Errorf("fallback filter %q missing %q", filter, field)
		}
	}
}

func TestPersonIdentifierFilter(t *testing.T) {
	schema := testSchema()
	personBase := "ou=people,dc=corp,dc=example,dc=com"

	tests := []struct {
		name       string
		id         string
		wantBase   string
		wantFilter string
		wantScope  SearchScope
	}{
		{
			name:       "uid",
			id:         "jdoe",
			wantBase:   personBase,
			wantFilter: "(&(objectClass=inetOrgPerson)(uid=jdoe))",
			wantScope:  ScopeSubtree,
		},
		{
			name:       "mail",
			id:         "jdoe@corp.example.com",
			wantBase:   personBase,
			wantFilter: "(&(objectClass=inetOrgPerson)(mail=jdoe@corp.example.com))",
			wantScope:  ScopeSubtree,
		},
		{
			name:       "dn",
			id:         "uid=jdoe,ou=people,dc=corp,dc=example,dc=com",
			wantBase:   "uid=jdoe,ou=people,dc=corp,dc=example,dc=com",
			wantFilter: "(objectClass=inetOrgPerson)",
			wantScope:  ScopeBase,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			base, filter, scope := personIdentifierFilter(schema, personBase, tt.id)
			if base != tt.wantBase {
				t.Errorf("base = %q, want %q", base, tt.wantBase)
			}
			if filter != tt.wantFilter {
				t.Errorf("filter = %q, want %q", filter, tt.wantFilter)
			}
			if scope != tt.wantScope {
				t.Errorf("scope = %v, want %v", scope, tt.wantScope)
			}
		})
	}
}

func TestGroupFilters(t *testing.T) {
	schema := testSchema()

	if got := groupByNameFilter(schema, "engineering"); got != "(&(objectClass=groupOfNames)(cn=engineering))" {
		t.Errorf("groupByNameFilter = %q", got)
	}

	got := membershipFilter(schema, "member", "uid=jdoe,ou=people,dc=corp,dc=example,dc=com")
	want := "(&(objectClass=groupOfNames)(member=uid=jdoe,ou=people,dc=corp,dc=example,dc=com))"
	if got != want {
		t.Errorf("membershipFilter = %q, want %q", got, want)
	}

	query := groupQueryFilter(schema, "eng")
	for _, part := range []string{"(cn=*eng*)", "(description=*eng*)", "(objectClass=groupOfNames)"} {
		if !strings.Contains(query, part) {
			t.Errorf("groupQueryFilter %q missing %q", query, part)
		}
	}
}

func TestDirectReportsFilter(t *testing.T) {
	got := directReportsFilter(testSchema(), "uid=boss,ou=people,dc=corp,dc=example,dc=com")
	want := "(&(objectClass=inetOrgPerson)(manager=uid=boss,ou=people,dc=corp,dc=example,dc=com))"
	if got != want {
		t.Errorf("directReportsFilter = %q, want %q", got, want)
	}
}

func TestLocationFilterCoversStandardAttributes(t *testing.T) {
	filter := locationFilter(testSchema(), "Brno")
	for _, part := range []string{"(l=*Brno*)", "(st=*Brno*)", "(co=*Brno*)", "(physicalDeliveryOfficeName=*Brno*)"} {
		if !strings.Contains(filter, part) {
			t.Errorf("locationFilter %q missing %q", filter, part)
		}
	}
}
