package directory

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/corpatlas/directory-mcp/internal/export"
)

// StripSensitive returns copies of the records with the configured sensitive
// attributes removed. The connector is responsible for stripping before any
// record reaches the export collaborator.
func StripSensitive(records []NormalizedRecord, cfg ExportConfig) []NormalizedRecord {
	if len(cfg.SensitiveAttributes) == 0 {
		return records
	}

	sensitive := make(map[string]bool, len(cfg.SensitiveAttributes))
	for _, attr := range cfg.SensitiveAttributes {
		sensitive[strings.ToLower(attr)] = true
	}

	out := make([]NormalizedRecord, len(records))
	for i, record := range records {
		clean := make(NormalizedRecord, len(record))
		for field, value := range record {
			if sensitive[strings.ToLower(field)] {
				continue
			}
			clean[field] = value
		}
		out[i] = clean
	}
	return out
}

// ExportRecords strips sensitive attributes and hands the records to the
// export formatter. The format must be on the configured allow-list and the
// record count under the configured ceiling.
func (s *Service) ExportRecords(records []NormalizedRecord, format string) ([]byte, error) {
	if !s.cfg.Export.FormatAllowed(format) {
		return nil, fmt.Errorf("%w: %q not in %v", ErrExportFormat, format, s.cfg.Export.Formats)
	}
	if len(records) > s.cfg.Export.MaxExportSize {
		return nil, fmt.Errorf("%w: %d records, ceiling %d", ErrExportTooLarge, len(records), s.cfg.Export.MaxExportSize)
	}

	stripped := StripSensitive(records, s.cfg.Export)
	rows := make([]export.Record, len(stripped))
	for i, record := range stripped {
		rows[i] = export.Record(record)
	}

	var (
		data []byte
		err  error
	)
	switch strings.ToLower(format) {
	case "json":
		data, err = export.JSON(rows)
	case "csv":
		data, err = export.CSV(rows)
	default:
		return nil, fmt.Errorf("%w: %q", ErrExportFormat, format)
	}
	if err != nil {
		return nil, fmt.Errorf("formatting %s export: %w", format, err)
	}

	s.logger.Info("records_exported",
		slog.String("format", strings.ToLower(format)),
		slog.Int("records", len(stripped)),
		slog.Int("bytes", len(data)))
	return data, nil
}
