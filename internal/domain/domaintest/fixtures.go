// Package domaintest provides tile fixtures for tests.
package domaintest

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/spf13/afero"
)

// Schema namespaces.
const (
	NamespacePSD12 = "https://psd-12.sentinel2.eo.esa.int/PSD/S2_PDI_Level-2A_Tile_Metadata.xsd"
	NamespacePSD14 = "https://psd-14.sentinel2.eo.esa.int/PSD/S2_PDI_Level-2A_Tile_Metadata.xsd"
)

// T32TQMSidecar is the tileInfo.json of the reference tile T32TQM.
const T32TQMSidecar = `{
  "path": "tiles/32/T/QM/2020/1/1/0",
  "productName": "S2A_MSIL2A_20200101_T32TQM",
  "utmZone": 32,
  "latitudeBand": "T",
  "gridSquare": "QM",
  "dataCoveragePercentage": 100.0,
  "cloudyPixelPercentage": 12.5,
  "tileDataGeometry": {
    "type": "Polygon",
    "coordinates": [[[0, 0], [1, 0], [1, 1], [0, 1]]]
  }
}`

// Geoposition is one Geoposition element.
type Geoposition struct {
	Resolution string
	ULX        string
	ULY        string
	XDIM       string
	YDIM       string
}

// Angle is one Mean_Viewing_Incidence_Angle element.
type Angle struct {
	BandID  string
	Zenith  string
	Azimuth string
	Unit    string
}

// Metadata describes a metadata.xml fixture. Empty values are omitted.
type Metadata struct {
	Namespace     string
	CSCode        string
	SensingTime   string
	CloudCoverage string
	Vegetation    string
	Geopositions  []Geoposition
	Angles        []Angle
}

// DefaultMetadata returns the reference tile metadata in the psd-12 dialect.
func DefaultMetadata() Metadata {
	return Metadata{
		Namespace:     NamespacePSD12,
		CSCode:        "EPSG:32632",
		SensingTime:   "2020-01-01T10:43:11.024Z",
		CloudCoverage: "12.5",
		Vegetation:    "40.25",
		Geopositions: []Geoposition{
			{Resolution: "10", ULX: "499980", ULY: "5000040", XDIM: "10", YDIM: "-10"},
			{Resolution: "20", ULX: "499980", ULY: "5000040", XDIM: "20", YDIM: "-20"},
			{Resolution: "60", ULX: "499980", ULY: "5000040", XDIM: "60", YDIM: "-60"},
		},
		Angles: []Angle{
			{BandID: "0", Zenith: "8.1", Azimuth: "285.2", Unit: "deg"},
			{BandID: "1", Zenith: "7.5", Azimuth: "284.1", Unit: "deg"},
			{BandID: "2", Zenith: "7.6", Azimuth: "284.3", Unit: "deg"},
			{BandID: "3", Zenith: "7.7", Azimuth: "284.5", Unit: "deg"},
		},
	}
}

// XML renders the metadata document. The namespace declaration is on line 2.
func (m Metadata) XML() string {
	var b strings.Builder
	b.WriteString(`<?xml version="1.0" encoding="UTF-8"?>` + "\n")
	fmt.Fprintf(&b, `<n1:Level-2A_Tile_ID xmlns:n1=%q xmlns:xsi="http://www.w3.org/2001/XMLSchema-instance">`+"\n", m.Namespace)

	b.WriteString("  <n1:General_Info>\n    <TILE_ID>S2A_OPER_MSI_L2A_TL_T32TQM</TILE_ID>\n")
	if m.SensingTime != "" {
		fmt.Fprintf(&b, "    <SENSING_TIME metadataLevel=\"Standard\">%s</SENSING_TIME>\n", m.SensingTime)
	}
	b.WriteString("  </n1:General_Info>\n")

	b.WriteString("  <n1:Geometric_Info>\n    <Tile_Geocoding metadataLevel=\"Brief\">\n")
	if m.CSCode != "" {
		fmt.Fprintf(&b, "      <HORIZONTAL_CS_CODE>%s</HORIZONTAL_CS_CODE>\n", m.CSCode)
	}
	for _, g := range m.Geopositions {
		fmt.Fprintf(&b, "      <Geoposition resolution=%q>\n", g.Resolution)
		fmt.Fprintf(&b, "        <ULX>%s</ULX>\n        <ULY>%s</ULY>\n", g.ULX, g.ULY)
		fmt.Fprintf(&b, "        <XDIM>%s</XDIM>\n        <YDIM>%s</YDIM>\n", g.XDIM, g.YDIM)
		b.WriteString("      </Geoposition>\n")
	}
	b.WriteString("    </Tile_Geocoding>\n    <Tile_Angles>\n      <Mean_Viewing_Incidence_Angle_List>\n")
	for _, a := range m.Angles {
		fmt.Fprintf(&b, "        <Mean_Viewing_Incidence_Angle bandId=%q>\n", a.BandID)
		unit := ""
		if a.Unit != "" {
			unit = fmt.Sprintf(" unit=%q", a.Unit)
		}
		fmt.Fprintf(&b, "          <ZENITH_ANGLE%s>%s</ZENITH_ANGLE>\n", unit, a.Zenith)
		fmt.Fprintf(&b, "          <AZIMUTH_ANGLE%s>%s</AZIMUTH_ANGLE>\n", unit, a.Azimuth)
		b.WriteString("        </Mean_Viewing_Incidence_Angle>\n")
	}
	b.WriteString("      </Mean_Viewing_Incidence_Angle_List>\n    </Tile_Angles>\n  </n1:Geometric_Info>\n")

	b.WriteString("  <n1:Quality_Indicators_Info metadataLevel=\"Standard\">\n    <L2A_Image_Content_QI>\n")
	if m.CloudCoverage != "" {
		fmt.Fprintf(&b, "      <CLOUD_COVERAGE_PERCENTAGE>%s</CLOUD_COVERAGE_PERCENTAGE>\n", m.CloudCoverage)
	}
	if m.Vegetation != "" {
		fmt.Fprintf(&b, "      <VEGETATION_PERCENTAGE>%s</VEGETATION_PERCENTAGE>\n", m.Vegetation)
	}
	b.WriteString("    </L2A_Image_Content_QI>\n  </n1:Quality_Indicators_Info>\n")
	b.WriteString("</n1:Level-2A_Tile_ID>\n")
	return b.String()
}

// WriteTile writes metadata.xml and tileInfo.json under root and creates the
// resolution folders. An empty sidecar skips tileInfo.json.
func WriteTile(fs afero.Fs, root string, m Metadata, sidecar string) (string, error) {
	for _, dir := range []string{"R10m", "R20m", "R60m", "qi"} {
		if err := fs.MkdirAll(filepath.Join(root, dir), 0o755); err != nil {
			return "", err
		}
	}
	metadataPath := filepath.Join(root, "metadata.xml")
	if err := afero.WriteFile(fs, metadataPath, []byte(m.XML()), 0o644); err != nil {
		return "", err
	}
	if sidecar != "" {
		if err := afero.WriteFile(fs, filepath.Join(root, "tileInfo.json"), []byte(sidecar), 0o644); err != nil {
			return "", err
		}
	}
	return metadataPath, nil
}
