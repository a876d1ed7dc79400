package domain

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"path/filepath"
	"strings"
)

// SidecarFilename is the fixed name of the JSON tile descriptor.
const SidecarFilename = "tileInfo.json"

// SidecarInfo holds the identity and footprint fields of tileInfo.json.
// Empty strings and nil pointers mean the field was absent.
type SidecarInfo struct {
	Path                   string
	ProductName            string
	UTMZone                string
	LatitudeBand           string
	GridSquare             string
	Rings                  [][][]float64
	DataCoveragePercentage *float64
	CloudyPixelPercentage  *float64
}

// GroupName returns T<zone><band><square>, or "" unless all three are set.
func (s *SidecarInfo) GroupName() string {
	if s == nil || s.UTMZone == "" || s.LatitudeBand == "" || s.GridSquare == "" {
		return ""
	}
	return "T" + s.UTMZone + s.LatitudeBand + s.GridSquare
}

// DisplayName returns the last two underscore separated tokens of the
// product name, or "" when there are fewer than two.
func (s *SidecarInfo) DisplayName() string {
	if s == nil || s.ProductName == "" {
		return ""
	}
	tokens := strings.Split(s.ProductName, "_")
	if len(tokens) < 2 {
		return ""
	}
	return tokens[len(tokens)-2] + "_" + tokens[len(tokens)-1]
}

type sidecarJSON struct {
	ProductName            *string      `json:"productName"`
	UTMZone                flexString   `json:"utmZone"`
	LatitudeBand           *string      `json:"latitudeBand"`
	GridSquare             *string      `json:"gridSquare"`
	TileDataGeometry       *geometryDoc `json:"tileDataGeometry"`
	DataCoveragePercentage *float64     `json:"dataCoveragePercentage"`
	CloudyPixelPercentage  *float64     `json:"cloudyPixelPercentage"`
}

type geometryDoc struct {
	Type        string        `json:"type"`
	Coordinates [][][]float64 `json:"coordinates"`
}

// flexString accepts a JSON string or number.
type flexString string

func (f *flexString) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*f = flexString(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("expected string or number, got %s", data)
	}
	*f = flexString(n.String())
	return nil
}

// DecodeSidecar reads a tileInfo.json document from r.
func DecodeSidecar(path string, r io.Reader) (*SidecarInfo, error) {
	var doc sidecarJSON
	if err := json.NewDecoder(r).Decode(&doc); err != nil {
		return nil, &SidecarError{Path: path, Kind: ErrInvalidSidecar, Err: err}
	}

	info := &SidecarInfo{
		Path:                   path,
		UTMZone:                string(doc.UTMZone),
		DataCoveragePercentage: doc.DataCoveragePercentage,
		CloudyPixelPercentage:  doc.CloudyPixelPercentage,
	}
	if doc.ProductName != nil {
		info.ProductName = *doc.ProductName
	}
	if doc.LatitudeBand != nil {
		info.LatitudeBand = *doc.LatitudeBand
	}
	if doc.GridSquare != nil {
		info.GridSquare = *doc.GridSquare
	}
	if doc.TileDataGeometry != nil {
		info.Rings = doc.TileDataGeometry.Coordinates
	}
	return info, nil
}

// TileRoot returns the tile root directory for a metadata or band file path.
// metadata.xml lives in the root; any other file lives one level below it.
func TileRoot(path string) string {
	dir := filepath.Dir(path)
	if filepath.Base(path) == MetadataFilename {
		return dir
	}
	return filepath.Dir(dir)
}
