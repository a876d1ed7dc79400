package domain

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jobrunner/s2tile/internal/domain/domaintest"
)

func TestExtractQuality(t *testing.T) {
	q := NewQuery(decodeFixture(t, domaintest.DefaultMetadata()), DialectPSD12)

	qa, err := ExtractQuality(q)
	require.NoError(t, err)

	assert.Equal(t, "2020-01-01T10:43:11.024Z", qa.SensingTime)
	require.NotNil(t, qa.AcquisitionDate)
	assert.Equal(t, time.Date(2020, 1, 1, 10, 43, 11, 24000000, time.UTC), *qa.AcquisitionDate)
	require.NotNil(t, qa.CloudCoverage)
	assert.Equal(t, 12.5, *qa.CloudCoverage)
	require.NotNil(t, qa.VegetationPercentage)
	assert.Equal(t, 40.25, *qa.VegetationPercentage)
}

func TestExtractQualityAbsentFields(t *testing.T) {
	m := domaintest.DefaultMetadata()
	m.SensingTime = ""
	m.CloudCoverage = ""
	m.Vegetation = "unknown"
	q := NewQuery(decodeFixture(t, m), DialectPSD12)

	qa, err := ExtractQuality(q)
	require.NoError(t, err)
	assert.Empty(t, qa.SensingTime)
	assert.Nil(t, qa.AcquisitionDate)
	assert.Nil(t, qa.CloudCoverage)
	assert.Nil(t, qa.VegetationPercentage)
}

func TestExtractQualityUnparseableSensingTime(t *testing.T) {
	m := domaintest.DefaultMetadata()
	m.SensingTime = "yesterday"
	q := NewQuery(decodeFixture(t, m), DialectPSD12)

	qa, err := ExtractQuality(q)
	require.NoError(t, err)
	assert.Equal(t, "yesterday", qa.SensingTime)
	assert.Nil(t, qa.AcquisitionDate)
}

func TestExtractQualityNilDocument(t *testing.T) {
	_, err := ExtractQuality(NewQuery(nil, DialectPSD12))
	assert.True(t, errors.Is(err, ErrDocumentUnavailable))
}

func TestExtractBandAngles(t *testing.T) {
	m := domaintest.DefaultMetadata()
	m.Angles = []domaintest.Angle{
		{BandID: "0", Zenith: "8.1", Azimuth: "285.2", Unit: "deg"},
		{BandID: "1", Zenith: "7.5", Azimuth: "284.1", Unit: "deg"},
		{BandID: "1", Zenith: "7.9", Azimuth: "283.0", Unit: "deg"},
		{BandID: "2", Zenith: "", Azimuth: "284.3", Unit: "deg"},
		{BandID: "x", Zenith: "1", Azimuth: "2", Unit: "deg"},
	}
	q := NewQuery(decodeFixture(t, m), DialectPSD12)

	angles, err := ExtractBandAngles(q)
	require.NoError(t, err)

	require.Len(t, angles, 2)
	assert.Equal(t, BandAngle{SourceBandIndex: 0, Zenith: 8.1, Azimuth: 285.2, Unit: "deg"}, angles[0])
	// Last entry per band wins.
	assert.Equal(t, BandAngle{SourceBandIndex: 1, Zenith: 7.9, Azimuth: 283.0, Unit: "deg"}, angles[1])
	_, ok := angles[2]
	assert.False(t, ok)
}

func TestExtractBandAnglesWithoutUnit(t *testing.T) {
	m := domaintest.DefaultMetadata()
	m.Angles = []domaintest.Angle{
		{BandID: "3", Zenith: "6.4", Azimuth: "101.7"},
	}
	q := NewQuery(decodeFixture(t, m), DialectPSD12)

	angles, err := ExtractBandAngles(q)
	require.NoError(t, err)

	require.Len(t, angles, 1)
	assert.Equal(t, BandAngle{SourceBandIndex: 3, Zenith: 6.4, Azimuth: 101.7}, angles[3])
}

func TestExtractBandAnglesAbsentList(t *testing.T) {
	doc := decodeFixture(t, domaintest.DefaultMetadata())
	doc.Root.Children = doc.Root.Children[:1]

	angles, err := ExtractBandAngles(NewQuery(doc, DialectPSD12))
	require.NoError(t, err)
	assert.Empty(t, angles)
}

func TestExtractSRID(t *testing.T) {
	tests := []struct {
		name    string
		code    string
		want    int
		wantErr bool
	}{
		{"utm north", "EPSG:32632", 32632, false},
		{"lowercase authority", "epsg:32733", 32733, false},
		{"absent", "", SRIDUnspecified, false},
		{"zero", "EPSG:0", SRIDUnspecified, false},
		{"no authority", "32632", 0, true},
		{"non numeric", "EPSG:UTM32", 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := domaintest.DefaultMetadata()
			m.CSCode = tt.code
			got, err := ExtractSRID(NewQuery(decodeFixture(t, m), DialectPSD12))
			if tt.wantErr {
				assert.True(t, errors.Is(err, ErrInvalidInput))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}
