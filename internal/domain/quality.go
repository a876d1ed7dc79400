package domain

import (
	"strconv"
	"time"
)

// Metadata element paths.
const (
	pathSensingTime     = "General_Info/SENSING_TIME"
	pathCloudCoverage   = "Quality_Indicators_Info/L2A_Image_Content_QI/CLOUD_COVERAGE_PERCENTAGE"
	pathVegetation      = "Quality_Indicators_Info/L2A_Image_Content_QI/VEGETATION_PERCENTAGE"
	pathViewingAngles   = "Geometric_Info/Tile_Angles/Mean_Viewing_Incidence_Angle_List"
	pathHorizontalCS    = "Geometric_Info/Tile_Geocoding/HORIZONTAL_CS_CODE"
	sensingTimeLayout   = time.RFC3339Nano
	sensingTimeFallback = "2006-01-02T15:04:05.999999999"
)

// QualityAttributes are scene level quality facts. Nil means absent.
type QualityAttributes struct {
	SensingTime          string     `json:"sensingTime,omitempty"`
	AcquisitionDate      *time.Time `json:"acquisitionDate,omitempty"`
	CloudCoverage        *float64   `json:"cloudCoverage,omitempty"`
	VegetationPercentage *float64   `json:"vegetationPercentage,omitempty"`
}

// BandAngle is the mean viewing geometry of one source band.
type BandAngle struct {
	SourceBandIndex int     `json:"sourceBandIndex"`
	Zenith          float64 `json:"zenithAngle"`
	Azimuth         float64 `json:"azimuthAngle"`
	Unit            string  `json:"unit"`
}

// ExtractQuality reads the sensing time and quality indicators.
// Absent or non-numeric values stay unset.
func ExtractQuality(q Query) (QualityAttributes, error) {
	var qa QualityAttributes

	sensing, ok, err := q.Text(pathSensingTime)
	if err != nil {
		return qa, err
	}
	if ok && sensing != "" {
		qa.SensingTime = sensing
		qa.AcquisitionDate = parseSensingTime(sensing)
	}

	if qa.CloudCoverage, err = q.Float(pathCloudCoverage); err != nil {
		return qa, err
	}
	if qa.VegetationPercentage, err = q.Float(pathVegetation); err != nil {
		return qa, err
	}
	return qa, nil
}

// ExtractBandAngles reads the mean viewing incidence angle list keyed by
// bandId. Entries missing a zenith or azimuth value are skipped and an absent
// unit is left empty. The last entry per band wins.
func ExtractBandAngles(q Query) (map[int]BandAngle, error) {
	list, err := q.Find(pathViewingAngles)
	if err != nil {
		return nil, err
	}

	angles := make(map[int]BandAngle)
	if list == nil {
		return angles, nil
	}

	for _, entry := range list.Children {
		id, ok := entry.Attr("bandId")
		if !ok {
			continue
		}
		index, err := strconv.Atoi(id)
		if err != nil {
			continue
		}
		zenithNode := entry.Child("", "ZENITH_ANGLE")
		azimuthNode := entry.Child("", "AZIMUTH_ANGLE")
		if zenithNode == nil || azimuthNode == nil {
			continue
		}
		zenith, err := strconv.ParseFloat(zenithNode.Value(), 64)
		if err != nil {
			continue
		}
		azimuth, err := strconv.ParseFloat(azimuthNode.Value(), 64)
		if err != nil {
			continue
		}
		unit, _ := azimuthNode.Attr("unit")
		angles[index] = BandAngle{
			SourceBandIndex: index,
			Zenith:          zenith,
			Azimuth:         azimuth,
			Unit:            unit,
		}
	}
	return angles, nil
}

// ExtractSRID reads HORIZONTAL_CS_CODE. An absent node yields SRIDUnspecified.
func ExtractSRID(q Query) (int, error) {
	code, ok, err := q.Text(pathHorizontalCS)
	if err != nil {
		return SRIDUnspecified, err
	}
	if !ok || code == "" {
		return SRIDUnspecified, nil
	}
	srid, err := ParseHorizontalCSCode(code)
	if err != nil {
		return SRIDUnspecified, err
	}
	return NormalizeSRID(srid), nil
}

func parseSensingTime(s string) *time.Time {
	for _, layout := range []string{sensingTimeLayout, sensingTimeFallback} {
		if t, err := time.Parse(layout, s); err == nil {
			t = t.UTC()
			return &t
		}
	}
	return nil
}
