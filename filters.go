package directory

import (
	"fmt"
	"strings"

	"github.com/go-ldap/ldap/v3"
)

// Filter construction for the directory operations. All user-supplied text
// is escaped with ldap.EscapeFilter before being embedded, so query strings
// can never alter filter structure.

// identifierKind classifies a person identifier the way operators write
// them: an email address, a distinguished name, or a plain uid.
type identifierKind int

const (
	identifierUID identifierKind = iota
	identifierMail
	identifierDN
)

func classifyIdentifier(id string) identifierKind {
	if strings.Contains(id, "@") {
		return identifierMail
	}
	if strings.Contains(id, "=") && strings.Contains(id, ",") {
		return identifierDN
	}
	return identifierUID
}

// personQueryFilter builds the free-text people search filter: a substring
// match across the schema's searchable person fields, anchored on the person
// object class.
func personQueryFilter(schema SchemaConfig, query string) string {
	escaped := ldap.EscapeFilter(query)

	fields := schema.SearchFields["person"]
	if len(fields) == 0 {
		fields = []string{"uid", "cn", "mail"}
	}

	var sb strings.Builder
	for _, field := range fields {
		fmt.Fprintf(&sb, "(%s=*%s*)", field, escaped)
	}
	return fmt.Sprintf("(&(objectClass=%s)(|%s))", ldap.EscapeFilter(schema.PersonObjectClass), sb.String())
}

// personIdentifierFilter builds the exact-match filter for one person plus
// the search base and scope to use. DN identifiers search the DN itself with
// base scope; everything else searches the person base.
func personIdentifierFilter(schema SchemaConfig, personBase, id string) (base, filter string, scope SearchScope) {
	objectClass := ldap.EscapeFilter(schema.PersonObjectClass)
	switch classifyIdentifier(id) {
	case identifierMail:
		return personBase, fmt.Sprintf("(&(objectClass=%s)(mail=%s))", objectClass, ldap.EscapeFilter(id)), ScopeSubtree
	case identifierDN:
		return id, fmt.Sprintf("(objectClass=%s)", objectClass), ScopeBase
	default:
		return personBase, fmt.Sprintf("(&(objectClass=%s)(uid=%s))", objectClass, ldap.EscapeFilter(id)), ScopeSubtree
	}
}

// groupQueryFilter builds the free-text group search filter.
func groupQueryFilter(schema SchemaConfig, query string) string {
	escaped := ldap.EscapeFilter(query)

	fields := schema.SearchFields["group"]
	if len(fields) == 0 {
		fields = []string{"cn", "description"}
	}

	var sb strings.Builder
	for _, field := range fields {
		fmt.Fprintf(&sb, "(%s=*%s*)", field, escaped)
	}
	return fmt.Sprintf("(&(objectClass=%s)(|%s))", ldap.EscapeFilter(schema.GroupObjectClass), sb.String())
}

// groupByNameFilter matches one group by cn.
func groupByNameFilter(schema SchemaConfig, name string) string {
	return fmt.Sprintf("(&(objectClass=%s)(cn=%s))", ldap.EscapeFilter(schema.GroupObjectClass), ldap.EscapeFilter(name))
}

// membershipFilter matches groups carrying the given member value on the
// given membership attribute (member, uniqueMember or memberUid).
func membershipFilter(schema SchemaConfig, memberAttr, memberValue string) string {
	return fmt.Sprintf("(&(objectClass=%s)(%s=%s))",
		ldap.EscapeFilter(schema.GroupObjectClass), memberAttr, ldap.EscapeFilter(memberValue))
}

// directReportsFilter matches people whose manager attribute points at the
// given DN.
func directReportsFilter(schema SchemaConfig, managerDN string) string {
	return fmt.Sprintf("(&(objectClass=%s)(manager=%s))",
		ldap.EscapeFilter(schema.PersonObjectClass), ldap.EscapeFilter(managerDN))
}

// locationFilter matches people at a location across the standard location
// attributes (l, st, co, physicalDeliveryOfficeName).
func locationFilter(schema SchemaConfig, location string) string {
	escaped := ldap.EscapeFilter(location)
	return fmt.Sprintf("(&(objectClass=%s)(|(l=*%s*)(st=*%s*)(co=*%s*)(physicalDeliveryOfficeName=*%s*)))",
		ldap.EscapeFilter(schema.PersonObjectClass), escaped, escaped, escaped, escaped)
}

// allPeopleFilter matches every person entry.
func allPeopleFilter(schema SchemaConfig) string {
	return fmt.Sprintf("(objectClass=%s)", ldap.EscapeFilter(schema.PersonObjectClass))
}
