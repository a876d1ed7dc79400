package domain

import (
	"encoding/json"
	"fmt"

	"github.com/twpayne/go-geom"
	"github.com/twpayne/go-geom/encoding/geojson"
	"github.com/twpayne/go-geom/encoding/wkt"
)

// FootprintGeometry is the tile outline with its spatial reference.
// The ring keeps the sidecar vertex order and is not closed.
type FootprintGeometry struct {
	Polygon *geom.Polygon
	SRID    int
}

// NewFootprint builds a footprint from the first sidecar ring.
func NewFootprint(info *SidecarInfo, srid int) (FootprintGeometry, error) {
	srid = NormalizeSRID(srid)
	poly := geom.NewPolygon(geom.XY).SetSRID(srid)

	if info == nil || len(info.Rings) == 0 || len(info.Rings[0]) == 0 {
		return FootprintGeometry{Polygon: poly, SRID: srid}, nil
	}

	ring := make([]geom.Coord, 0, len(info.Rings[0]))
	for i, v := range info.Rings[0] {
		if len(v) < 2 {
			return FootprintGeometry{}, &SidecarError{
				Path: info.Path,
				Kind: ErrInvalidSidecar,
				Err:  fmt.Errorf("footprint vertex %d has %d ordinates", i, len(v)),
			}
		}
		ring = append(ring, geom.Coord{v[0], v[1]})
	}

	if _, err := poly.SetCoords([][]geom.Coord{ring}); err != nil {
		return FootprintGeometry{}, &SidecarError{Path: info.Path, Kind: ErrInvalidSidecar, Err: err}
	}
	return FootprintGeometry{Polygon: poly, SRID: srid}, nil
}

// IsEmpty returns true if the footprint has no vertices.
func (f FootprintGeometry) IsEmpty() bool {
	return f.Polygon == nil || f.Polygon.NumLinearRings() == 0 || f.Polygon.LinearRing(0).NumCoords() == 0
}

// Vertices returns the ring vertices as (x, y) pairs in stored order.
func (f FootprintGeometry) Vertices() [][2]float64 {
	if f.IsEmpty() {
		return nil
	}
	coords := f.Polygon.LinearRing(0).Coords()
	out := make([][2]float64, len(coords))
	for i, c := range coords {
		out[i] = [2]float64{c.X(), c.Y()}
	}
	return out
}

// Bounds returns the bounding box of the footprint.
func (f FootprintGeometry) Bounds() (Extent, bool) {
	if f.IsEmpty() {
		return Extent{}, false
	}
	b := f.Polygon.Bounds()
	e := Extent{MinX: b.Min(0), MinY: b.Min(1), MaxX: b.Max(0), MaxY: b.Max(1), SRID: f.SRID}
	return e, e.IsValid()
}

// WKT returns the Well-Known Text representation. WKT requires closed rings,
// so the first vertex is repeated when the ring is open.
func (f FootprintGeometry) WKT() (string, error) {
	if f.IsEmpty() {
		return wkt.Marshal(geom.NewPolygon(geom.XY))
	}
	ring := f.Polygon.LinearRing(0).Coords()
	if first, last := ring[0], ring[len(ring)-1]; !first.Equal(geom.XY, last) {
		ring = append(ring, first.Clone())
	}
	closed, err := geom.NewPolygon(geom.XY).SetCoords([][]geom.Coord{ring})
	if err != nil {
		return "", err
	}
	return wkt.Marshal(closed)
}

// GeoJSON returns the polygon as a GeoJSON geometry with the ring as stored.
func (f FootprintGeometry) GeoJSON() ([]byte, error) {
	poly := f.Polygon
	if poly == nil {
		poly = geom.NewPolygon(geom.XY)
	}
	return geojson.Marshal(poly)
}

// MarshalJSON encodes the footprint as a GeoJSON geometry plus srid.
func (f FootprintGeometry) MarshalJSON() ([]byte, error) {
	g, err := f.GeoJSON()
	if err != nil {
		return nil, fmt.Errorf("encoding footprint: %w", err)
	}
	return json.Marshal(struct {
		Geometry json.RawMessage `json:"geometry"`
		SRID     int             `json:"srid"`
	}{Geometry: g, SRID: f.SRID})
}

// FootprintFromGeoJSON decodes a footprint written by GeoJSON. The ring
// comes back exactly as stored, closed or not.
func FootprintFromGeoJSON(data []byte, srid int) (FootprintGeometry, error) {
	var g geom.T
	if err := geojson.Unmarshal(data, &g); err != nil {
		return FootprintGeometry{}, fmt.Errorf("decoding footprint: %w", err)
	}
	poly, ok := g.(*geom.Polygon)
	if !ok {
		return FootprintGeometry{}, fmt.Errorf("decoding footprint: geometry is %T, not a polygon", g)
	}
	srid = NormalizeSRID(srid)
	poly.SetSRID(srid)
	return FootprintGeometry{Polygon: poly, SRID: srid}, nil
}
