package export

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestJSONRoundTrips(t *testing.T) {
	records := []Record{
		{"dn": "uid=a,dc=corp,dc=example,dc=com", "cn": "Alice", "memberOf": []string{"g1", "g2"}},
		{"dn": "uid=b,dc=corp,dc=example,dc=com", "cn": "Bob"},
	}

	data, err := JSON(records)
	require.NoError(t, err)

	var decoded []map[string]any
	require.NoError(t, json.Unmarshal(data, &decoded))
	require.Len(t, decoded, 2)
	assert.Equal(t, "Alice", decoded[0]["cn"])
	assert.Equal(t, []any{"g1", "g2"}, decoded[0]["memberOf"])
}

func TestCSVHeaderOrder(t *testing.T) {
	records := []Record{
		{"dn": "uid=a,dc=corp,dc=example,dc=com", "mail": "a@corp.example.com", "cn": "Alice"},
		{"dn": "uid=b,dc=corp,dc=example,dc=com", "title": "Engineer"},
	}

	data, err := CSV(records)
	require.NoError(t, err)

	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	require.Len(t, lines, 3)
	// dn first, remaining union of fields sorted.
	assert.Equal(t, "dn,cn,mail,title", lines[0])
}

func TestCSVMissingFieldsEmptyCells(t *testing.T) {
	records := []Record{
		{"dn": "uid=a,dc=corp,dc=example,dc=com", "cn": "Alice"},
		{"dn": "uid=b,dc=corp,dc=example,dc=com"},
	}

	data, err := CSV(records)
	require.NoError(t, err)

	rows, err := csv.NewReader(bytes.NewReader(data)).ReadAll()
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, []string{"dn", "cn"}, rows[0])
	assert.Equal(t, []string{"uid=b,dc=corp,dc=example,dc=com", ""}, rows[2])
}

func TestCSVMultiValuedJoined(t *testing.T) {
	records := []Record{
		{"dn": "uid=a,dc=corp,dc=example,dc=com", "memberOf": []string{"g1", "g2", "g3"}},
	}

	data, err := CSV(records)
	require.NoError(t, err)
	assert.Contains(t, string(data), "g1; g2; g3")
}

func TestCSVEmptyInput(t *testing.T) {
	data, err := CSV(nil)
	require.NoError(t, err)
	assert.Equal(t, "dn\n", string(data))
}
