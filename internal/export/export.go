// Package export formats normalized directory records for download. It
// receives records with sensitive attributes already stripped by the caller.
package export

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"sort"
	"strings"
)

// Record is one normalized directory record: field name to either a string
// or an ordered []string.
type Record map[string]any

// JSON renders the records as an indented JSON array.
func JSON(records []Record) ([]byte, error) {
	return json.MarshalIndent(records, "", "  ")
}

// multiValueSeparator joins multi-valued fields inside one CSV cell.
const multiValueSeparator = "; "

// CSV renders the records as a CSV document. The header is the union of all
// field names with dn first and the rest sorted; multi-valued fields are
// joined within the cell.
func CSV(records []Record) ([]byte, error) {
	header := columnOrder(records)

	var buf bytes.Buffer
	w := csv.NewWriter(&buf)

	if err := w.Write(header); err != nil {
		return nil, err
	}
	for _, record := range records {
		row := make([]string, len(header))
		for i, field := range header {
			row[i] = cellValue(record[field])
		}
		if err := w.Write(row); err != nil {
			return nil, err
		}
	}

	w.Flush()
	if err := w.Error(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func columnOrder(records []Record) []string {
	seen := make(map[string]bool)
	var fields []string
	for _, record := range records {
		for field := range record {
			if field == "dn" || seen[field] {
				continue
			}
			seen[field] = true
			fields = append(fields, field)
		}
	}
	sort.Strings(fields)
	return append([]string{"dn"}, fields...)
}

func cellValue(v any) string {
	switch tv := v.(type) {
	case string:
		return tv
	case []string:
		return strings.Join(tv, multiValueSeparator)
	case nil:
		return ""
	default:
		return ""
	}
}
