// Package domain contains the core tile entities, registries and value objects.
package domain

import (
	"strconv"
	"strings"
)

// SRIDUnspecified marks a geometry without a resolved coordinate system.
const SRIDUnspecified = 0

// WGS 84 / UTM SRID ranges.
const (
	SRIDUTMNorthBase = 32600 // WGS 84 / UTM zone N north = 32600 + N
	SRIDUTMSouthBase = 32700 // WGS 84 / UTM zone N south = 32700 + N
)

// ParseHorizontalCSCode extracts the EPSG code from an "EPSG:<code>" value.
func ParseHorizontalCSCode(code string) (int, error) {
	authority, number, ok := strings.Cut(strings.TrimSpace(code), ":")
	if !ok || !strings.EqualFold(authority, "EPSG") {
		return 0, &ValidationError{
			Field:      "HORIZONTAL_CS_CODE",
			Value:      code,
			Constraint: "EPSG:<code>",
			Message:    "coordinate system code must have the form EPSG:<code>",
		}
	}
	srid, err := strconv.Atoi(number)
	if err != nil {
		return 0, &ValidationError{
			Field:      "HORIZONTAL_CS_CODE",
			Value:      code,
			Constraint: "EPSG:<code>",
			Message:    "EPSG code must be an integer",
		}
	}
	return srid, nil
}

// NormalizeSRID maps non-positive codes to SRIDUnspecified.
func NormalizeSRID(srid int) int {
	if srid <= 0 {
		return SRIDUnspecified
	}
	return srid
}

// UTMZone returns the UTM zone and hemisphere of a WGS 84 / UTM SRID.
func UTMZone(srid int) (zone int, north bool, ok bool) {
	switch {
	case srid > SRIDUTMNorthBase && srid <= SRIDUTMNorthBase+60:
		return srid - SRIDUTMNorthBase, true, true
	case srid > SRIDUTMSouthBase && srid <= SRIDUTMSouthBase+60:
		return srid - SRIDUTMSouthBase, false, true
	default:
		return 0, false, false
	}
}

// Extent represents a spatial bounding box.
type Extent struct {
	MinX float64 `json:"minX"`
	MinY float64 `json:"minY"`
	MaxX float64 `json:"maxX"`
	MaxY float64 `json:"maxY"`
	SRID int     `json:"srid"`
}

// Contains checks if a point is within the extent.
func (e Extent) Contains(x, y float64) bool {
	return x >= e.MinX && x <= e.MaxX && y >= e.MinY && y <= e.MaxY
}

// IsValid checks if the extent has valid dimensions.
func (e Extent) IsValid() bool {
	return e.MinX <= e.MaxX && e.MinY <= e.MaxY
}

