// Package frame builds the sampling frame: it loads location records from
// official input files, folds paired donor locations into their acceptors,
// applies eligibility rules, and reports integrity problems.
package frame

import (
	"context"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/price-stats/sampling-cli/internal/fetcher"
	"github.com/price-stats/sampling-cli/internal/model"
)

// ReadOptions configures location loading.
type ReadOptions struct {
	SheetName string // xlsx only
	Delimiter rune   // csv only
}

var regionCaser = cases.Title(language.BritishEnglish)

// ReadLocations loads raw location records from an input file, dispatching
// on extension: .xlsx/.xls, .shp, anything else is treated as CSV.
func ReadLocations(ctx context.Context, path string, opts ReadOptions) ([]model.Location, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".xlsx", ".xls":
		header, rows, err := fetcher.ReadXLSXFile(path, fetcher.XLSXOptions{SheetName: opts.SheetName})
		if err != nil {
			return nil, err
		}
		return locationsFromRows(path, header, rows)
	case ".shp":
		return readShapefile(path)
	default:
		header, rows, err := fetcher.ReadCSVFile(ctx, path, fetcher.CSVOptions{
			Delimiter: opts.Delimiter,
			TrimSpace: true,
		})
		if err != nil {
			return nil, err
		}
		return locationsFromRows(path, header, rows)
	}
}

// locationsFromRows maps tabular rows onto Location records using tolerant
// header matching. Facility ID and region are mandatory columns.
func locationsFromRows(path string, header []string, rows [][]string) ([]model.Location, error) {
	colIdx := mapColumns(header)

	if !hasCol(colIdx, "FacilityID", "Facility_ID", "ID") {
		return nil, eris.Errorf("frame: %s: no facility ID column (header: %s)", path, strings.Join(header, ", "))
	}
	if !hasCol(colIdx, "Region", "GOR", "Area") {
		return nil, eris.Errorf("frame: %s: no region column (header: %s)", path, strings.Join(header, ", "))
	}

	locations := make([]model.Location, 0, len(rows))
	for i, record := range rows {
		id := canonicalID(getCol(record, colIdx, "FacilityID", "Facility_ID", "ID"))
		if id == "" {
			return nil, eris.Errorf("frame: %s: row %d has an empty facility ID", path, i+2)
		}

		loc := model.Location{
			FacilityID: id,
			Name:       getCol(record, colIdx, "LocName", "Location", "Name"),
			Region:     normalizeRegion(getCol(record, colIdx, "Region", "GOR", "Area")),
			MergeID:    canonicalID(getCol(record, colIdx, "Merge_ID", "MergeID")),
			MergeRole:  model.MergeRole(parseIntOr(getCol(record, colIdx, "Merge_Num", "MergeNum"), 0)),
			Turnover:   parseFloatOr(getCol(record, colIdx, "Sum_Turnov", "Turnover"), 0),
			Outlets:    parseIntOr(getCol(record, colIdx, "OutletCt", "Outlets", "Outlet_Count"), 0),
		}

		// Previously built frame tables carry the derived columns too.
		loc.TotalTurnover = parseFloatOr(getCol(record, colIdx, "Total_TURNOV", "TotalTurnover"), 0)
		loc.TotalOutlets = parseIntOr(getCol(record, colIdx, "Total_OutletCt", "TotalOutlets"), 0)
		loc.AvgTurnover = parseFloatOr(getCol(record, colIdx, "avg_TURNOV", "AvgTurnover"), 0)

		if geom := pointGeom(record, colIdx); geom != nil {
			loc.Geom = geom
		}

		locations = append(locations, loc)
	}

	return locations, nil
}

// normalizeRegion canonicalizes region spellings so strata keys match
// across input files ("SOUTH EAST", "south east" → "South East").
func normalizeRegion(s string) string {
	return regionCaser.String(strings.ToLower(strings.TrimSpace(s)))
}

// LoadFrameFile reads a previously built frame table back into a Frame, so
// the sampler can run against a file instead of the store. Derived columns
// missing from the file are recomputed from the row's own figures.
func LoadFrameFile(ctx context.Context, path string, opts ReadOptions) (*model.Frame, error) {
	locations, err := ReadLocations(ctx, path, opts)
	if err != nil {
		return nil, err
	}
	if len(locations) == 0 {
		return nil, eris.Errorf("frame: %s contains no locations", path)
	}

	seen := make(map[string]bool, len(locations))
	for i := range locations {
		loc := &locations[i]
		if seen[loc.FacilityID] {
			return nil, eris.Errorf("frame: duplicate facility ID %s in %s", loc.FacilityID, path)
		}
		seen[loc.FacilityID] = true

		if loc.TotalOutlets == 0 {
			loc.TotalTurnover = loc.Turnover
			loc.TotalOutlets = loc.Outlets
		}
		if loc.AvgTurnover == 0 && loc.TotalOutlets > 0 {
			loc.AvgTurnover = loc.TotalTurnover / float64(loc.TotalOutlets)
		}
	}

	sort.Slice(locations, func(i, j int) bool {
		return locations[i].FacilityID < locations[j].FacilityID
	})

	return &model.Frame{
		ID:        uuid.New().String(),
		Source:    path,
		BuiltAt:   time.Now().UTC(),
		Locations: locations,
	}, nil
}
