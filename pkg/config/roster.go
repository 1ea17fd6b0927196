package config

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"policy-scraper/pkg/models"
)

// rosterFile is the on-disk shape of one curated town file:
// roster/<country>/<town>.yaml.
type rosterFile struct {
	Town    string `yaml:"town"`
	Region  string `yaml:"region"`
	Country string `yaml:"country"`
	Hotels  []struct {
		Name          string              `yaml:"name"`
		Rank          int                 `yaml:"rank,omitempty"`
		Website       string              `yaml:"website,omitempty"`
		FallbackURL   string              `yaml:"fallback_url,omitempty"`
		PromotionsURL string              `yaml:"promotions_url,omitempty"`
		MarketSegment string              `yaml:"market_segment,omitempty"`
		Coordinates   *models.Coordinates `yaml:"coordinates,omitempty"`
	} `yaml:"hotels"`
}

// Roster is the full input hotel list across all towns.
type Roster struct {
	Entries []models.RosterEntry
}

// LoadRoster walks rosterDir for town YAML files and assembles the roster.
// Hotels without an explicit rank get their position within the file, and each
// town's list is capped at hotelsPerTown.
func LoadRoster(rosterDir string, hotelsPerTown int) (*Roster, error) {
	roster := &Roster{}

	err := filepath.WalkDir(rosterDir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || !strings.HasSuffix(path, ".yaml") && !strings.HasSuffix(path, ".yml") {
			return nil
		}

		raw, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("read roster file %q: %w", path, err)
		}
		var tf rosterFile
		if err := yaml.Unmarshal(raw, &tf); err != nil {
			return fmt.Errorf("parse roster file %q: %w", path, err)
		}
		if tf.Town == "" || tf.Country == "" {
			return fmt.Errorf("roster file %q missing town or country", path)
		}

		for i, h := range tf.Hotels {
			if hotelsPerTown > 0 && i >= hotelsPerTown {
				break
			}
			rank := h.Rank
			if rank == 0 {
				rank = i + 1
			}
			segment := h.MarketSegment
			if segment == "" {
				segment = "Midscale"
			}
			roster.Entries = append(roster.Entries, models.RosterEntry{
				Name:            h.Name,
				Town:            tf.Town,
				Region:          tf.Region,
				Country:         tf.Country,
				Rank:            rank,
				OfficialWebsite: h.Website,
				FallbackURL:     h.FallbackURL,
				PromotionsURL:   h.PromotionsURL,
				MarketSegment:   segment,
				Coordinates:     h.Coordinates,
			})
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	sort.SliceStable(roster.Entries, func(i, j int) bool {
		a, b := roster.Entries[i], roster.Entries[j]
		if a.Country != b.Country {
			return a.Country < b.Country
		}
		if a.Town != b.Town {
			return a.Town < b.Town
		}
		return a.Rank < b.Rank
	})
	return roster, nil
}

// Filter returns the entries matching the given country and/or town.
// Empty filters match everything; comparison is case-insensitive.
func (r *Roster) Filter(country, town string) []models.RosterEntry {
	if country == "" && town == "" {
		return r.Entries
	}
	var out []models.RosterEntry
	for _, e := range r.Entries {
		if country != "" && !strings.EqualFold(e.Country, country) {
			continue
		}
		if town != "" && !strings.EqualFold(e.Town, town) {
			continue
		}
		out = append(out, e)
	}
	return out
}

// Towns lists the distinct (country, town) pairs present, in sorted order.
func (r *Roster) Towns() []string {
	seen := make(map[string]bool)
	var out []string
	for _, e := range r.Entries {
		key := e.Town + ", " + e.Country
		if !seen[key] {
			seen[key] = true
			out = append(out, key)
		}
	}
	sort.Strings(out)
	return out
}
