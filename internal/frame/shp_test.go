package frame

import (
	"testing"

	"github.com/jonas-p/go-shp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/twpayne/go-geom"
	"github.com/twpayne/go-geom/encoding/ewkb"
)

func TestEncodePoint(t *testing.T) {
	data, err := encodePoint(&shp.Point{X: -0.1276, Y: 51.5072})
	require.NoError(t, err)
	require.NotNil(t, data)

	g, err := ewkb.Unmarshal(data)
	require.NoError(t, err)
	pt, ok := g.(*geom.Point)
	require.True(t, ok)
	assert.Equal(t, 4326, pt.SRID())
	assert.InDelta(t, -0.1276, pt.X(), 1e-9)
	assert.InDelta(t, 51.5072, pt.Y(), 1e-9)
}

func TestEncodePointZ(t *testing.T) {
	data, err := encodePoint(&shp.PointZ{X: 1, Y: 2, Z: 3})
	require.NoError(t, err)
	assert.NotNil(t, data)
}

func TestEncodePointNonPoint(t *testing.T) {
	data, err := encodePoint(&shp.PolyLine{})
	require.NoError(t, err)
	assert.Nil(t, data)
}

func TestPointGeomFromColumns(t *testing.T) {
	colIdx := mapColumns([]string{"FacilityID", "POINT_X", "POINT_Y"})

	data := pointGeom([]string{"100", "-2.5879", "51.4545"}, colIdx)
	require.NotNil(t, data)

	g, err := ewkb.Unmarshal(data)
	require.NoError(t, err)
	pt := g.(*geom.Point)
	assert.InDelta(t, -2.5879, pt.X(), 1e-9)
	assert.InDelta(t, 51.4545, pt.Y(), 1e-9)
}

func TestPointGeomMissingColumns(t *testing.T) {
	colIdx := mapColumns([]string{"FacilityID", "Region"})
	assert.Nil(t, pointGeom([]string{"100", "London"}, colIdx))
}

func TestPointGeomZeroCoordinates(t *testing.T) {
	colIdx := mapColumns([]string{"POINT_X", "POINT_Y"})
	assert.Nil(t, pointGeom([]string{"0", "0"}, colIdx))
}
