package utils

import "testing"

func TestSlugify(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"simple", "Banff", "banff"},
		{"multi word", "Fairmont Banff Springs", "fairmont-banff-springs"},
		{"punctuation", "St. Moritz!", "st-moritz"},
		{"underscores and slashes", "lake_louise/inn", "lake-louise-inn"},
		{"extra whitespace", "  Mont   Tremblant  ", "mont-tremblant"},
		{"leading trailing dashes", "--Zermatt--", "zermatt"},
		{"unicode stripped", "Hôtel Château", "htel-chteau"},
		{"empty", "", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Slugify(tt.input); got != tt.want {
				t.Errorf("Slugify(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}

func TestHotelID_Deterministic(t *testing.T) {
	want := "canada-banff-fairmont-banff-springs"
	for i := 0; i < 5; i++ {
		got := HotelID("Canada", "Banff", "Fairmont Banff Springs")
		if got != want {
			t.Fatalf("HotelID iteration %d = %q, want %q", i, got, want)
		}
	}
}

func TestHotelID_DistinctTowns(t *testing.T) {
	a := HotelID("Canada", "Banff", "Moose Hotel")
	b := HotelID("Canada", "Jasper", "Moose Hotel")
	if a == b {
		t.Errorf("ids for different towns collided: %q", a)
	}
}
