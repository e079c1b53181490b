package zones

import (
	"fmt"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
	"github.com/paulmach/orb/planar"
)

// decodeShape parses a raw GeoJSON geometry into a multipolygon. Plain
// polygons are promoted so callers only deal with one shape type.
func decodeShape(raw []byte) (orb.MultiPolygon, error) {
	if len(raw) == 0 {
		return nil, fmt.Errorf("empty shape")
	}
	geom, err := geojson.UnmarshalGeometry(raw)
	if err != nil {
		return nil, fmt.Errorf("parse geojson: %w", err)
	}
	switch g := geom.Geometry().(type) {
	case orb.Polygon:
		return orb.MultiPolygon{g}, nil
	case orb.MultiPolygon:
		return g, nil
	default:
		return nil, fmt.Errorf("unsupported geometry type %T", g)
	}
}

func shapeContains(shape orb.MultiPolygon, lon, lat float64) bool {
	return planar.MultiPolygonContains(shape, orb.Point{lon, lat})
}

func shapeBound(shape orb.MultiPolygon) (min, max [2]float64) {
	b := shape.Bound()
	return [2]float64{b.Min[0], b.Min[1]}, [2]float64{b.Max[0], b.Max[1]}
}
