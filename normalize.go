package directory

import (
	"log/slog"
)

// FieldDN is the canonical field every normalized record carries for the
// entry's distinguished name.
const FieldDN = "dn"

// NormalizedRecord maps canonical field names to either a single string or
// an ordered sequence of strings, decided per-attribute by the schema
// mapping's single/multi-valued classification. Records are produced fresh
// per query and have no lifecycle beyond the response they belong to.
type NormalizedRecord map[string]any

// DN returns the record's distinguished name.
func (r NormalizedRecord) DN() string {
	return r.String(FieldDN)
}

// String returns the named field as a scalar: the value itself for
// single-valued fields, the first value for multi-valued ones, "" when
// absent.
func (r NormalizedRecord) String(field string) string {
	switch v := r[field].(type) {
	case string:
		return v
	case []string:
		if len(v) > 0 {
			return v[0]
		}
	}
	return ""
}

// Values returns the named field as an ordered sequence, wrapping a scalar
// into a one-element slice. Nil when absent.
func (r NormalizedRecord) Values(field string) []string {
	switch v := r[field].(type) {
	case string:
		return []string{v}
	case []string:
		return v
	}
	return nil
}

// Has reports whether the field is present. Absent attributes are omitted
// from records, never set to null, so consumers can distinguish "not
// requested" from "not present".
func (r NormalizedRecord) Has(field string) bool {
	_, ok := r[field]
	return ok
}

// EntryNormalizer converts raw directory attribute sets into the canonical
// record shape. Classification is configuration-driven: the schema mapping
// says which attributes keep all their values; everything else emits its
// first value as a scalar.
type EntryNormalizer struct {
	schema SchemaConfig
	audit  Auditor
}

// NewEntryNormalizer builds a normalizer for the given schema mapping.
func NewEntryNormalizer(schema SchemaConfig, audit Auditor) *EntryNormalizer {
	if audit == nil {
		audit = NopAuditor{}
	}
	return &EntryNormalizer{schema: schema, audit: audit}
}

// Normalize converts one raw entry. Attributes absent from the entry are
// omitted from the output; the normalizer never fabricates defaults.
func (n *EntryNormalizer) Normalize(entry RawEntry) NormalizedRecord {
	record := make(NormalizedRecord, len(entry.Attributes)+1)
	record[FieldDN] = entry.DN

	for attr, values := range entry.Attributes {
		if len(values) == 0 {
			continue
		}
		field := n.schema.CanonicalName(attr)

		if n.schema.IsMultiValued(attr) {
			out := make([]string, len(values))
			copy(out, values)
			record[field] = out
			continue
		}

		if len(values) > 1 {
			// More than one value on a single-valued attribute means the
			// live schema deviates from the configured mapping.
			n.audit.Warn("schema_deviation_multivalued",
				slog.String("attribute", attr),
				slog.String("dn", entry.DN),
				slog.Int("values", len(values)))
		}
		record[field] = values[0]
	}

	return record
}

// NormalizeAll converts a sequence of raw entries in order.
func (n *EntryNormalizer) NormalizeAll(entries []RawEntry) []NormalizedRecord {
	records := make([]NormalizedRecord, 0, len(entries))
	for _, entry := range entries {
		records = append(records, n.Normalize(entry))
	}
	return records
}
