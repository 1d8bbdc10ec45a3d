// Package export writes frame and sample tables to CSV or XLSX, and the
// draw manifest to YAML.
package export

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/price-stats/sampling-cli/internal/model"
)

var frameHeader = []string{
	"FacilityID", "LocName", "Region", "Merge_ID", "Merge_Num",
	"Sum_Turnov", "OutletCt", "Total_TURNOV", "Total_OutletCt", "avg_TURNOV",
}

var sampleHeader = []string{
	"FacilityID", "LocName", "Region", "SizeMeasure",
	"Weight", "InclusionProb", "Rank", "Certainty", "Rotation",
}

// WriteFrame writes the frame table, dispatching on the file extension:
// .xlsx gets a workbook, anything else a CSV.
func WriteFrame(f *model.Frame, path string, overwrite bool) error {
	if err := checkOverwrite(path, overwrite); err != nil {
		return err
	}
	rows := make([][]string, 0, len(f.Locations))
	for _, loc := range f.Locations {
		rows = append(rows, frameRow(loc))
	}
	return writeTable(path, frameHeader, rows)
}

// WriteSample writes the sample table, dispatching on the file extension.
func WriteSample(s *model.Sample, path string, overwrite bool) error {
	if err := checkOverwrite(path, overwrite); err != nil {
		return err
	}
	rows := make([][]string, 0, len(s.Units))
	for _, u := range s.Units {
		rows = append(rows, sampleRow(u))
	}
	return writeTable(path, sampleHeader, rows)
}

// WriteDuplicateLinks writes the duplicate merge-link report so the links
// can be reassigned by hand before the next build.
func WriteDuplicateLinks(dups []model.DuplicateLink, path string, overwrite bool) error {
	if err := checkOverwrite(path, overwrite); err != nil {
		return err
	}
	rows := make([][]string, 0, len(dups))
	for _, d := range dups {
		rows = append(rows, []string{d.MergeID, strings.Join(d.FacilityIDs, ";")})
	}
	return writeTable(path, []string{"Merge_ID", "FacilityIDs"}, rows)
}

func frameRow(loc model.Location) []string {
	return []string{
		loc.FacilityID,
		loc.Name,
		loc.Region,
		loc.MergeID,
		strconv.Itoa(int(loc.MergeRole)),
		formatFloat(loc.Turnover),
		strconv.Itoa(loc.Outlets),
		formatFloat(loc.TotalTurnover),
		strconv.Itoa(loc.TotalOutlets),
		formatFloat(loc.AvgTurnover),
	}
}

func sampleRow(u model.SelectedUnit) []string {
	return []string{
		u.FacilityID,
		u.Name,
		u.Region,
		formatFloat(u.SizeMeasure),
		formatFloat(u.Weight),
		formatFloat(u.InclusionProb),
		strconv.Itoa(u.Rank),
		strconv.FormatBool(u.Certainty),
		string(u.Rotation),
	}
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

// writeTable dispatches on extension.
func writeTable(path string, header []string, rows [][]string) error {
	if ext := strings.ToLower(filepath.Ext(path)); ext == ".xlsx" || ext == ".xls" {
		return writeXLSX(path, header, rows)
	}
	return writeCSV(path, header, rows)
}

// checkOverwrite refuses to clobber an existing output unless forced, and
// creates the parent directory when missing.
func checkOverwrite(path string, overwrite bool) error {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return eris.Wrapf(err, "export: create directory %s", dir)
		}
	}
	if overwrite {
		return nil
	}
	if _, err := os.Stat(path); err == nil {
		return eris.New(fmt.Sprintf("export: %s already exists (use --force to overwrite)", path))
	}
	return nil
}
