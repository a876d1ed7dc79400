package domain

import (
	"strconv"

	"github.com/google/uuid"
)

// Fixed key property values.
const (
	SensorName  = "Sentinel-2"
	ProductType = "Sentinel-2_L2A_Tile"
)

// RasterArgument binds one composite function input to a band image.
type RasterArgument struct {
	Name string `json:"name"` // Raster1..RasterN
	Band string `json:"band"` // Band name
	Path string `json:"path"` // Band image path
}

// RasterFunction references the composite template and its inputs.
type RasterFunction struct {
	Function  string           `json:"function"`
	Arguments []RasterArgument `json:"arguments"`
}

// ArgumentMap returns the arguments keyed by name.
func (r RasterFunction) ArgumentMap() map[string]string {
	m := make(map[string]string, len(r.Arguments))
	for _, a := range r.Arguments {
		m[a.Name] = a.Path
	}
	return m
}

// ItemURI is the catalog identity of a built item.
type ItemURI struct {
	Path        string `json:"path"`
	DisplayName string `json:"displayName,omitempty"`
	GroupName   string `json:"groupName,omitempty"`
	ProductType string `json:"productType"`
}

// BandProperty joins catalog values with the band's viewing angle.
type BandProperty struct {
	BandName        string   `json:"bandName"`
	WavelengthMin   float64  `json:"wavelengthMin"`
	WavelengthMax   float64  `json:"wavelengthMax"`
	SourceBandIndex int      `json:"sourceBandIndex"`
	ZenithAngle     *float64 `json:"zenithAngle,omitempty"`
	AzimuthAngle    *float64 `json:"azimuthAngle,omitempty"`
	Unit            string   `json:"unit,omitempty"`
}

// NewBandProperty builds the property record for a band.
func NewBandProperty(b BandDescriptor, angles map[int]BandAngle) BandProperty {
	p := BandProperty{
		BandName:        b.Name,
		WavelengthMin:   b.WavelengthMin,
		WavelengthMax:   b.WavelengthMax,
		SourceBandIndex: b.Index,
	}
	if a, ok := angles[b.Index]; ok {
		zenith, azimuth := a.Zenith, a.Azimuth
		p.ZenithAngle = &zenith
		p.AzimuthAngle = &azimuth
		p.Unit = a.Unit
	}
	return p
}

// KeyProperties are the descriptive attributes handed to the catalog.
type KeyProperties struct {
	BlockName      string            `json:"blockName,omitempty"`
	SensorName     string            `json:"sensorName"`
	ProductType    string            `json:"productType"`
	ProductName    string            `json:"productName,omitempty"`
	Quality        QualityAttributes `json:"quality"`
	BandProperties []BandProperty    `json:"bandProperties"`
}

// BuildPlan describes how the external engine assembles one composite.
type BuildPlan struct {
	ID               uuid.UUID              `json:"id"`
	Profile          string                 `json:"profile"`
	Raster           RasterFunction         `json:"raster"`
	Item             ItemURI                `json:"item"`
	SpatialReference int                    `json:"spatialReference"`
	Footprint        FootprintGeometry      `json:"footprint"`
	Georeference     GeoreferenceParameters `json:"georeference"`
	KeyProperties    KeyProperties          `json:"keyProperties"`
	WorldFiles       []string               `json:"worldFiles,omitempty"`
}

// PlanID derives a stable identifier from the tile path and profile tag.
func PlanID(tilePath, profile string) uuid.UUID {
	return uuid.NewSHA1(uuid.NameSpaceURL, []byte(tilePath+"#"+profile))
}

// ArgumentName returns the composite input name for position i (zero based).
func ArgumentName(i int) string {
	return "Raster" + strconv.Itoa(i+1)
}
