package domain

import "sort"

// BandDescriptor is the static definition of one Sentinel-2 spectral band.
type BandDescriptor struct {
	Key           int     // Catalog key referenced by resolution profiles
	Name          string  // Canonical band name (B01, B8A, ...)
	Index         int     // Source band index used by the viewing-angle list
	Filename      string  // Image filename relative to the resolution folder
	WavelengthMin float64 // Lower wavelength bound in nm
	WavelengthMax float64 // Upper wavelength bound in nm
}

// Band keys.
const (
	BandB01 = iota
	BandB02
	BandB03
	BandB04
	BandB05
	BandB06
	BandB07
	BandB08
	BandB8A
	BandB09
	BandB10
	BandB11
	BandB12
	// BandCloudMask is the 20m cloud probability mask exposed as pseudo band B00.
	BandCloudMask
)

// BandCatalog contains every known band keyed by its catalog key.
var BandCatalog = map[int]BandDescriptor{
	BandCloudMask: {Key: BandCloudMask, Name: "B00", Index: 0, Filename: "../qi/CLD_20m.jp2", WavelengthMin: 0, WavelengthMax: 0},
	BandB01:       {Key: BandB01, Name: "B01", Index: 0, Filename: "B01.jp2", WavelengthMin: 433, WavelengthMax: 453},
	BandB02:       {Key: BandB02, Name: "B02", Index: 1, Filename: "B02.jp2", WavelengthMin: 458, WavelengthMax: 522},
	BandB03:       {Key: BandB03, Name: "B03", Index: 2, Filename: "B03.jp2", WavelengthMin: 543, WavelengthMax: 577},
	BandB04:       {Key: BandB04, Name: "B04", Index: 3, Filename: "B04.jp2", WavelengthMin: 650, WavelengthMax: 680},
	BandB05:       {Key: BandB05, Name: "B05", Index: 4, Filename: "B05.jp2", WavelengthMin: 698, WavelengthMax: 712},
	BandB06:       {Key: BandB06, Name: "B06", Index: 5, Filename: "B06.jp2", WavelengthMin: 733, WavelengthMax: 747},
	BandB07:       {Key: BandB07, Name: "B07", Index: 6, Filename: "B07.jp2", WavelengthMin: 773, WavelengthMax: 793},
	BandB08:       {Key: BandB08, Name: "B08", Index: 7, Filename: "B08.jp2", WavelengthMin: 784, WavelengthMax: 899},
	BandB8A:       {Key: BandB8A, Name: "B8A", Index: 8, Filename: "B8A.jp2", WavelengthMin: 855, WavelengthMax: 875},
	BandB09:       {Key: BandB09, Name: "B09", Index: 9, Filename: "B09.jp2", WavelengthMin: 935, WavelengthMax: 955},
	BandB10:       {Key: BandB10, Name: "B10", Index: 10, Filename: "B10.jp2", WavelengthMin: 1360, WavelengthMax: 1390},
	BandB11:       {Key: BandB11, Name: "B11", Index: 11, Filename: "B11.jp2", WavelengthMin: 1565, WavelengthMax: 1655},
	BandB12:       {Key: BandB12, Name: "B12", Index: 12, Filename: "B12.jp2", WavelengthMin: 2100, WavelengthMax: 2280},
}

// LookupBand returns the band descriptor for a catalog key.
func LookupBand(key int) (BandDescriptor, error) {
	b, ok := BandCatalog[key]
	if !ok {
		return BandDescriptor{}, ErrUnknownBand
	}
	return b, nil
}

// IsCloudMask returns true for the cloud mask pseudo band.
func (b BandDescriptor) IsCloudMask() bool {
	return b.Key == BandCloudMask
}

// SortedBands returns the catalog ordered by key.
func SortedBands() []BandDescriptor {
	bands := make([]BandDescriptor, 0, len(BandCatalog))
	for _, b := range BandCatalog {
		bands = append(bands, b)
	}
	sort.Slice(bands, func(i, j int) bool { return bands[i].Key < bands[j].Key })
	return bands
}
