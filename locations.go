package directory

import (
	"context"
	"log/slog"
	"sort"
	"strings"
	"time"

	"golang.org/x/text/collate"
	"golang.org/x/text/language"
)

// locationAttributes are the person attributes locations are derived from.
// Directories in this domain rarely model locations as first-class entries,
// so the connector aggregates them from people.
var locationAttributes = []string{"l", "st", "co", "physicalDeliveryOfficeName"}

// locationKinds maps each source attribute to a location kind tag.
var locationKinds = map[string]string{
	"l":                          "city",
	"st":                         "state",
	"co":                         "country",
	"physicalDeliveryOfficeName": "office",
}

// Location is one aggregated location with its head count.
type Location struct {
	Name   string `json:"name"`
	Kind   string `json:"kind"`
	People int    `json:"people"`
}

// FindLocations aggregates the locations present in the directory, with head
// counts per location. query, when non-empty, restricts results to location
// names containing it (case-insensitive). Results are sorted by kind then by
// locale-aware name order.
func (s *Service) FindLocations(ctx context.Context, query string) ([]Location, bool, error) {
	start := time.Now()

	result, err := s.exec.Search(ctx, SearchRequest{
		Base:       s.cfg.PersonSearchBase(),
		Filter:     allPeopleFilter(s.cfg.Schema),
		Attributes: locationAttributes,
	})
	if err != nil {
		return nil, false, err
	}

	type locKey struct{ kind, name string }
	counts := make(map[locKey]int)
	names := make(map[locKey]string)

	query = strings.ToLower(strings.TrimSpace(query))
	for _, entry := range result.Entries {
		for attr, kind := range locationKinds {
			for _, value := range entry.Attributes[attr] {
				name := strings.TrimSpace(value)
				if name == "" {
					continue
				}
				if query != "" && !strings.Contains(strings.ToLower(name), query) {
					continue
				}
				key := locKey{kind: kind, name: strings.ToLower(name)}
				counts[key]++
				names[key] = name
			}
		}
	}

	locations := make([]Location, 0, len(counts))
	for key, count := range counts {
		locations = append(locations, Location{Name: names[key], Kind: key.kind, People: count})
	}
	sortLocations(locations)

	s.logger.Info("locations_aggregated",
		slog.Int("people_scanned", len(result.Entries)),
		slog.Int("locations", len(locations)),
		slog.Bool("capped", result.Capped),
		slog.Duration("duration", time.Since(start)))
	return locations, result.Capped, nil
}

// sortLocations orders by kind, then by collated name so accented office
// names sort the way operators expect.
func sortLocations(locations []Location) {
	collator := collate.New(language.English, collate.IgnoreCase)
	sort.Slice(locations, func(i, j int) bool {
		if locations[i].Kind != locations[j].Kind {
			return locations[i].Kind < locations[j].Kind
		}
		return collator.CompareString(locations[i].Name, locations[j].Name) < 0
	})
}

// GetPeopleAtLocation lists people matching a location name across the
// standard location attributes.
func (s *Service) GetPeopleAtLocation(ctx context.Context, location string, maxResults int) (*RecordSet, error) {
	start := time.Now()

	location = strings.TrimSpace(location)
	if location == "" {
		return nil, &SearchError{Op: "GetPeopleAtLocation", Reason: "location must not be empty"}
	}
	if maxResults <= 0 {
		maxResults = 50
	}

	set, err := s.recordSet(ctx, SearchRequest{
		Base:       s.cfg.PersonSearchBase(),
		Filter:     locationFilter(s.cfg.Schema, location),
		Attributes: append(summaryAttributes, locationAttributes...),
		SizeLimit:  maxResults,
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("people_at_location_listed",
		slog.String("location", location),
		slog.Int("results", set.Count()),
		slog.Duration("duration", time.Since(start)))
	return set, nil
}
