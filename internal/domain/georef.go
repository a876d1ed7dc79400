package domain

import (
	"fmt"
	"path/filepath"
	"strconv"
	"strings"
)

// WorldFileExtension replaces the .jp2 extension of a band image.
const WorldFileExtension = ".j2w"

// GeoreferenceParameters places a band image in its coordinate system.
// OriginX and OriginY are the center of the upper-left pixel.
type GeoreferenceParameters struct {
	PixelWidth     float64 `json:"pixelWidth"`
	RowRotation    float64 `json:"rowRotation"`
	ColumnRotation float64 `json:"columnRotation"`
	PixelHeight    float64 `json:"pixelHeight"`
	OriginX        float64 `json:"originX"`
	OriginY        float64 `json:"originY"`
}

// GeoreferenceFor reads Geoposition[@resolution=N] and shifts its declared
// outer corner by half a pixel increment on each axis.
func GeoreferenceFor(q Query, resolutionMeters int) (GeoreferenceParameters, error) {
	res := strconv.Itoa(resolutionMeters)
	node, err := q.Find("Geometric_Info/Tile_Geocoding/Geoposition[@resolution='" + res + "']")
	if err != nil {
		return GeoreferenceParameters{}, err
	}
	if node == nil {
		return GeoreferenceParameters{}, fmt.Errorf("resolution %s: %w", res, ErrGeopositionMissing)
	}

	var values [4]float64
	for i, name := range []string{"ULX", "ULY", "XDIM", "YDIM"} {
		child := node.Child("", name)
		if child == nil {
			return GeoreferenceParameters{}, fmt.Errorf("resolution %s: %s: %w", res, name, ErrGeopositionMissing)
		}
		v, perr := strconv.ParseFloat(child.Value(), 64)
		if perr != nil {
			return GeoreferenceParameters{}, &ValidationError{
				Field:      "Geoposition/" + name,
				Value:      child.Value(),
				Constraint: "number",
				Message:    "geoposition value is not numeric",
			}
		}
		values[i] = v
	}
	ulx, uly, xdim, ydim := values[0], values[1], values[2], values[3]

	size := float64(resolutionMeters)
	return GeoreferenceParameters{
		PixelWidth:  size,
		PixelHeight: -size,
		OriginX:     ulx + xdim/2,
		OriginY:     uly + ydim/2,
	}, nil
}

// WorldFile renders the six world file lines.
func (p GeoreferenceParameters) WorldFile() string {
	var b strings.Builder
	b.WriteString(formatNumber(p.PixelWidth))
	b.WriteString("\n0\n-0\n")
	b.WriteString(formatNumber(p.PixelHeight))
	b.WriteByte('\n')
	b.WriteString(formatNumber(p.OriginX))
	b.WriteByte('\n')
	b.WriteString(formatNumber(p.OriginY))
	b.WriteByte('\n')
	return b.String()
}

// WorldFilePath returns the world file path for a band image.
func WorldFilePath(imagePath string) string {
	return strings.TrimSuffix(imagePath, filepath.Ext(imagePath)) + WorldFileExtension
}

func formatNumber(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
