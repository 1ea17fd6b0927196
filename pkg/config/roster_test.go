package config

import (
	"os"
	"path/filepath"
	"testing"
)

const banffRoster = `town: Banff
region: Alberta
country: Canada
hotels:
  - name: Fairmont Banff Springs
    rank: 1
    website: https://www.fairmont.com/banff-springs/
    market_segment: Luxury
    coordinates: {lat: 51.1644, lng: -115.5620}
  - name: Moose Hotel and Suites
    website: https://moosehotelandsuites.com/
  - name: Banff Caribou Lodge
    fallback_url: https://aggregator.example.com/banff-caribou-lodge
`

const zermattRoster = `town: Zermatt
region: Valais
country: Switzerland
hotels:
  - name: The Omnia
    rank: 1
    market_segment: Luxury
`

func writeRoster(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	canadaDir := filepath.Join(dir, "canada")
	europeDir := filepath.Join(dir, "europe")
	for _, d := range []string{canadaDir, europeDir} {
		if err := os.MkdirAll(d, 0o755); err != nil {
			t.Fatal(err)
		}
	}
	if err := os.WriteFile(filepath.Join(canadaDir, "banff.yaml"), []byte(banffRoster), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(europeDir, "zermatt.yaml"), []byte(zermattRoster), 0o644); err != nil {
		t.Fatal(err)
	}
	return dir
}

func TestLoadRoster(t *testing.T) {
	roster, err := LoadRoster(writeRoster(t), 30)
	if err != nil {
		t.Fatalf("LoadRoster failed: %v", err)
	}
	if len(roster.Entries) != 4 {
		t.Fatalf("expected 4 entries, got %d", len(roster.Entries))
	}

	// Sorted by country, town, rank: Canada before Switzerland
	first := roster.Entries[0]
	if first.Name != "Fairmont Banff Springs" || first.Rank != 1 {
		t.Errorf("unexpected first entry: %+v", first)
	}
	if first.MarketSegment != "Luxury" {
		t.Errorf("MarketSegment = %q, want Luxury", first.MarketSegment)
	}
	if first.Coordinates == nil || first.Coordinates.Lat != 51.1644 {
		t.Errorf("coordinates not loaded: %+v", first.Coordinates)
	}

	// Missing rank defaults to position, missing segment to Midscale
	second := roster.Entries[1]
	if second.Rank != 2 {
		t.Errorf("implicit rank = %d, want 2", second.Rank)
	}
	if second.MarketSegment != "Midscale" {
		t.Errorf("default segment = %q, want Midscale", second.MarketSegment)
	}
}

func TestLoadRoster_CapsPerTown(t *testing.T) {
	roster, err := LoadRoster(writeRoster(t), 2)
	if err != nil {
		t.Fatalf("LoadRoster failed: %v", err)
	}
	banff := roster.Filter("Canada", "Banff")
	if len(banff) != 2 {
		t.Errorf("expected 2 Banff hotels after cap, got %d", len(banff))
	}
}

func TestRosterFilter(t *testing.T) {
	roster, err := LoadRoster(writeRoster(t), 30)
	if err != nil {
		t.Fatalf("LoadRoster failed: %v", err)
	}

	tests := []struct {
		name    string
		country string
		town    string
		want    int
	}{
		{"no filter", "", "", 4},
		{"by country", "Canada", "", 3},
		{"by country case-insensitive", "canada", "", 3},
		{"by town", "", "Zermatt", 1},
		{"country and town", "Switzerland", "Zermatt", 1},
		{"mismatched pair", "Canada", "Zermatt", 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := roster.Filter(tt.country, tt.town)
			if len(got) != tt.want {
				t.Errorf("Filter(%q, %q) returned %d entries, want %d",
					tt.country, tt.town, len(got), tt.want)
			}
		})
	}
}

func TestRosterTowns(t *testing.T) {
	roster, err := LoadRoster(writeRoster(t), 30)
	if err != nil {
		t.Fatalf("LoadRoster failed: %v", err)
	}
	towns := roster.Towns()
	if len(towns) != 2 {
		t.Fatalf("expected 2 towns, got %v", towns)
	}
	if towns[0] != "Banff, Canada" || towns[1] != "Zermatt, Switzerland" {
		t.Errorf("unexpected town list: %v", towns)
	}
}
