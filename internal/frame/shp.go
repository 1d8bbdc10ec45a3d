package frame

import (
	"strings"

	"github.com/jonas-p/go-shp"
	"github.com/rotisserie/eris"
	"github.com/twpayne/go-geom"
	"github.com/twpayne/go-geom/encoding/ewkb"
	"go.uber.org/zap"

	"github.com/price-stats/sampling-cli/internal/model"
)

// readShapefile loads locations directly from an ArcMap shapefile export.
// Attribute fields carry the same columns as the spreadsheet exports; the
// shape itself provides the point geometry.
func readShapefile(path string) ([]model.Location, error) {
	reader, err := shp.Open(path)
	if err != nil {
		return nil, eris.Wrapf(err, "frame: open shapefile %s", path)
	}
	defer func() { _ = reader.Close() }()

	idIdx := fieldIndex(reader, "FacilityID")
	regionIdx := fieldIndex(reader, "Region")
	if idIdx < 0 || regionIdx < 0 {
		return nil, eris.Errorf("frame: %s: required shapefile fields (FacilityID, Region) not found", path)
	}
	nameIdx := fieldIndex(reader, "LocName")
	mergeIDIdx := fieldIndex(reader, "Merge_ID")
	mergeNumIdx := fieldIndex(reader, "Merge_Num")
	turnoverIdx := fieldIndex(reader, "Sum_Turnov")
	outletsIdx := fieldIndex(reader, "OutletCt")

	var locations []model.Location
	row := 0
	for reader.Next() {
		row++
		_, shape := reader.Shape()

		id := canonicalID(reader.Attribute(idIdx))
		if id == "" {
			return nil, eris.Errorf("frame: %s: record %d has an empty facility ID", path, row)
		}

		loc := model.Location{
			FacilityID: id,
			Region:     normalizeRegion(reader.Attribute(regionIdx)),
			Name:       attrOr(reader, nameIdx),
			MergeID:    canonicalID(attrOr(reader, mergeIDIdx)),
			MergeRole:  model.MergeRole(parseIntOr(attrOr(reader, mergeNumIdx), 0)),
			Turnover:   parseFloatOr(attrOr(reader, turnoverIdx), 0),
			Outlets:    parseIntOr(attrOr(reader, outletsIdx), 0),
		}

		if geomBytes, err := encodePoint(shape); err != nil {
			zap.L().Debug("frame: skipping malformed geometry",
				zap.String("facility_id", id),
				zap.Error(err),
			)
		} else {
			loc.Geom = geomBytes
		}

		locations = append(locations, loc)
	}

	return locations, nil
}

// fieldIndex returns the index of a named attribute field, or -1.
func fieldIndex(reader *shp.Reader, name string) int {
	for i, f := range reader.Fields() {
		if strings.EqualFold(strings.TrimRight(f.String(), "\x00"), name) {
			return i
		}
	}
	return -1
}

func attrOr(reader *shp.Reader, idx int) string {
	if idx < 0 {
		return ""
	}
	return strings.TrimSpace(reader.Attribute(idx))
}

// encodePoint converts a shapefile point to EWKB with SRID 4326.
// Returns nil, nil for non-point or nil shapes.
func encodePoint(shape shp.Shape) ([]byte, error) {
	var x, y float64
	switch s := shape.(type) {
	case *shp.Point:
		x, y = s.X, s.Y
	case *shp.PointZ:
		x, y = s.X, s.Y
	default:
		return nil, nil
	}
	return encodeXY(x, y)
}

// encodeXY marshals a coordinate pair as an EWKB point.
func encodeXY(x, y float64) ([]byte, error) {
	g := geom.NewPointFlat(geom.XY, []float64{x, y}).SetSRID(4326)
	data, err := ewkb.Marshal(g, ewkb.NDR)
	if err != nil {
		return nil, eris.Wrap(err, "frame: encode point")
	}
	return data, nil
}

// pointGeom builds an EWKB point from coordinate columns on tabular input,
// when present. ArcMap table exports name them POINT_X/POINT_Y.
func pointGeom(record []string, colIdx map[string]int) []byte {
	xs := getCol(record, colIdx, "POINT_X", "X", "Longitude", "Easting")
	ys := getCol(record, colIdx, "POINT_Y", "Y", "Latitude", "Northing")
	if xs == "" || ys == "" {
		return nil
	}
	x := parseFloatOr(xs, 0)
	y := parseFloatOr(ys, 0)
	if x == 0 && y == 0 {
		return nil
	}
	data, err := encodeXY(x, y)
	if err != nil {
		return nil
	}
	return data
}
