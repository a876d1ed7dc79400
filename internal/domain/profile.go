package domain

import (
	"sort"
	"strconv"
)

// ResolutionProfile is a named composite recipe: which bands, in which order,
// and the raster function template that combines them.
type ResolutionProfile struct {
	Tag              string // 10m, 20m, 20c
	BandKeys         []int  // Ordered band catalog keys
	FunctionTemplate string // Raster function template reference
}

// Profile tags.
const (
	Profile10m      = "10m"
	Profile20m      = "20m"
	Profile20mCloud = "20c"
)

// Profiles is the resolution profile registry.
var Profiles = map[string]ResolutionProfile{
	Profile10m: {
		Tag:              Profile10m,
		BandKeys:         []int{BandB02, BandB03, BandB04, BandB08},
		FunctionTemplate: "Composite4Bands.rft.xml",
	},
	Profile20m: {
		Tag:              Profile20m,
		BandKeys:         []int{BandB02, BandB03, BandB04, BandB05, BandB06, BandB07, BandB8A, BandB11, BandB12},
		FunctionTemplate: "Composite9Bands.rft.xml",
	},
	Profile20mCloud: {
		Tag:              Profile20mCloud,
		BandKeys:         []int{BandCloudMask, BandB02, BandB03, BandB04, BandB05, BandB06, BandB07, BandB8A, BandB11, BandB12},
		FunctionTemplate: "Composite10Bands.rft.xml",
	},
}

// LookupProfile returns the profile registered under tag.
func LookupProfile(tag string) (ResolutionProfile, error) {
	p, ok := Profiles[tag]
	if !ok {
		return ResolutionProfile{}, ErrUnknownProfile
	}
	return p, nil
}

// ProfileTags returns all registered profile tags in sorted order.
func ProfileTags() []string {
	tags := make([]string, 0, len(Profiles))
	for tag := range Profiles {
		tags = append(tags, tag)
	}
	sort.Strings(tags)
	return tags
}

// ResolutionMeters returns the pixel size encoded in the tag ("20c" -> 20).
func (p ResolutionProfile) ResolutionMeters() int {
	if len(p.Tag) < 2 {
		return 0
	}
	n, err := strconv.Atoi(p.Tag[:len(p.Tag)-1])
	if err != nil {
		return 0
	}
	return n
}

// Folder returns the resolution folder holding the profile's band images.
func (p ResolutionProfile) Folder() string {
	if len(p.Tag) < 2 {
		return ""
	}
	return "R" + p.Tag[:len(p.Tag)-1] + "m"
}

// Bands resolves the profile's band keys against the catalog, in profile order.
func (p ResolutionProfile) Bands() ([]BandDescriptor, error) {
	bands := make([]BandDescriptor, 0, len(p.BandKeys))
	for _, key := range p.BandKeys {
		b, err := LookupBand(key)
		if err != nil {
			return nil, err
		}
		bands = append(bands, b)
	}
	return bands, nil
}

// HasCloudMask returns true if the profile includes the cloud mask pseudo band.
func (p ResolutionProfile) HasCloudMask() bool {
	for _, key := range p.BandKeys {
		if key == BandCloudMask {
			return true
		}
	}
	return false
}
