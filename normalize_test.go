package directory

import (
	"reflect"
	"testing"
)

func testSchema() SchemaConfig {
	return SchemaConfig{
		PersonObjectClass:     "inetOrgPerson",
		GroupObjectClass:      "groupOfNames",
		MultiValuedAttributes: []string{"objectClass", "memberOf", "member"},
		AttributeAliases:      map[string]string{"rhatLocation": "location"},
	}
}

func TestNormalizeSingleValuedAttribute(t *testing.T) {
	n := NewEntryNormalizer(testSchema(), nil)

	record := n.Normalize(RawEntry{
		DN:         "uid=jdoe,ou=people,dc=corp,dc=example,dc=com",
		Attributes: map[string][]string{"mail": {"jdoe@corp.example.com"}},
	})

	if got := record["mail"]; got != "jdoe@corp.example.com" {
		t.Errorf("mail = %#v, want scalar string", got)
	}
	if record.DN() != "uid=jdoe,ou=people,dc=corp,dc=example,dc=com" {
		t.Errorf("DN() = %q", record.DN())
	}
}

func TestNormalizeMultiValuedPreservesOrder(t *testing.T) {
	n := NewEntryNormalizer(testSchema(), nil)

	values := []string{
		"cn=engineering,ou=groups,dc=corp,dc=example,dc=com",
		"cn=oncall,ou=groups,dc=corp,dc=example,dc=com",
		"cn=admins,ou=groups,dc=corp,dc=example,dc=com",
	}
	raw := RawEntry{
		DN:         "uid=jdoe,ou=people,dc=corp,dc=example,dc=com",
		Attributes: map[string][]string{"memberOf": values},
	}

	record := n.Normalize(raw)

	got, ok := record["memberOf"].([]string)
	if !ok {
		t.Fatalf("memberOf = %T, want []string", record["memberOf"])
	}
	if !reflect.DeepEqual(got, values) {
		t.Errorf("memberOf = %v, want original order %v", got, values)
	}

	// The record owns its values; mutating it must not reach the raw entry.
	got[0] = "mutated"
	if raw.Attributes["memberOf"][0] != values[0] {
		t.Error("normalized record shares backing storage with the raw entry")
	}
}

func TestNormalizeDeviationEmitsAuditWarning(t *testing.T) {
	audit := &recordingAuditor{}
	n := NewEntryNormalizer(testSchema(), audit)

	// telephoneNumber is classified single-valued, but the live entry
	// carries two values.
	record := n.Normalize(RawEntry{
		DN:         "uid=jdoe,ou=people,dc=corp,dc=example,dc=com",
		Attributes: map[string][]string{"telephoneNumber": {"555-1111", "555-2222"}},
	})

	if got := record["telephoneNumber"]; got != "555-1111" {
		t.Errorf("telephoneNumber = %#v, want first value as scalar", got)
	}
	if audit.warnCount() != 1 {
		t.Errorf("audit warnings = %d, want 1", audit.warnCount())
	}
}

func TestNormalizeNoWarningForCleanEntries(t *testing.T) {
	audit := &recordingAuditor{}
	n := NewEntryNormalizer(testSchema(), audit)

	n.Normalize(RawEntry{
		DN: "uid=jdoe,ou=people,dc=corp,dc=example,dc=com",
		Attributes: map[string][]string{
			"telephoneNumber": {"555-1111"},
			"memberOf":        {"a", "b", "c"},
		},
	})

	if audit.warnCount() != 0 {
		t.Errorf("audit warnings = %d, want 0", audit.warnCount())
	}
}

func TestNormalizeOmitsAbsentAndEmptyAttributes(t *testing.T) {
	n := NewEntryNormalizer(testSchema(), nil)

	record := n.Normalize(RawEntry{
		DN: "uid=jdoe,ou=people,dc=corp,dc=example,dc=com",
		Attributes: map[string][]string{
			"cn":    {"Jane Doe"},
			"title": {},
		},
	})

	if record.Has("title") {
		t.Error("zero-value attribute present in record, want omitted")
	}
	if record.Has("mail") {
		t.Error("unreturned attribute present in record")
	}
	if !record.Has("cn") {
		t.Error("cn missing from record")
	}
}

func TestNormalizeAppliesAliases(t *testing.T) {
	n := NewEntryNormalizer(testSchema(), nil)

	record := n.Normalize(RawEntry{
		DN:         "uid=jdoe,ou=people,dc=corp,dc=example,dc=com",
		Attributes: map[string][]string{"rhatLocation": {"Brno"}},
	})

	if got := record.String("location"); got != "Brno" {
		t.Errorf("location = %q, want Brno (aliased from rhatLocation)", got)
	}
	if record.Has("rhatLocation") {
		t.Error("raw attribute name present alongside its alias")
	}
}

func TestNormalizedRecordAccessors(t *testing.T) {
	record := NormalizedRecord{
		"dn":       "uid=jdoe,ou=people,dc=corp,dc=example,dc=com",
		"cn":       "Jane Doe",
		"memberOf": []string{"g1", "g2"},
	}

	if got := record.String("memberOf"); got != "g1" {
		t.Errorf("String(memberOf) = %q, want first value", got)
	}
	if got := record.String("absent"); got != "" {
		t.Errorf("String(absent) = %q, want empty", got)
	}
	if got := record.Values("cn"); !reflect.DeepEqual(got, []string{"Jane Doe"}) {
		t.Errorf("Values(cn) = %v, want single-element slice", got)
	}
	if got := record.Values("absent"); got != nil {
		t.Errorf("Values(absent) = %v, want nil", got)
	}
}

func TestNormalizeAllKeepsOrder(t *testing.T) {
	n := NewEntryNormalizer(testSchema(), nil)

	entries := []RawEntry{
		{DN: "uid=a,dc=corp,dc=example,dc=com"},
		{DN: "uid=b,dc=corp,dc=example,dc=com"},
		{DN: "uid=c,dc=corp,dc=example,dc=com"},
	}

	records := n.NormalizeAll(entries)
	if len(records) != 3 {
		t.Fatalf("records = %d, want 3", len(records))
	}
	for i, entry := range entries {
		if records[i].DN() != entry.DN {
			t.Errorf("records[%d].DN() = %q, want %q", i, records[i].DN(), entry.DN)
		}
	}
}
