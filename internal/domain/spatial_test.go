package domain

import (
	"testing"
)

func TestParseHorizontalCSCode(t *testing.T) {
	tests := []struct {
		code    string
		want    int
		wantErr bool
	}{
		{"EPSG:32632", 32632, false},
		{" EPSG:32733 ", 32733, false},
		{"EPSG:", 0, true},
		{"UTM:32", 0, true},
		{"32632", 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.code, func(t *testing.T) {
			got, err := ParseHorizontalCSCode(tt.code)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParseHorizontalCSCode(%q) error = %v, wantErr %v", tt.code, err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("ParseHorizontalCSCode(%q) = %d, want %d", tt.code, got, tt.want)
			}
		})
	}
}

func TestUTMZone(t *testing.T) {
	tests := []struct {
		srid  int
		zone  int
		north bool
		ok    bool
	}{
		{32632, 32, true, true},
		{32601, 1, true, true},
		{32660, 60, true, true},
		{32733, 33, false, true},
		{4326, 0, false, false},
		{32600, 0, false, false},
	}

	for _, tt := range tests {
		zone, north, ok := UTMZone(tt.srid)
		if zone != tt.zone || north != tt.north || ok != tt.ok {
			t.Errorf("UTMZone(%d) = (%d, %v, %v), want (%d, %v, %v)",
				tt.srid, zone, north, ok, tt.zone, tt.north, tt.ok)
		}
	}
}

func TestExtentContains(t *testing.T) {
	e := Extent{MinX: 600000, MinY: 4890240, MaxX: 709800, MaxY: 5000040}

	if !e.Contains(650000, 4900000) {
		t.Error("expected point inside extent")
	}
	if e.Contains(500000, 4900000) {
		t.Error("expected point outside extent")
	}
	if !e.IsValid() {
		t.Error("expected valid extent")
	}
	if (Extent{MinX: 1, MaxX: 0}).IsValid() {
		t.Error("expected invalid extent")
	}
}
