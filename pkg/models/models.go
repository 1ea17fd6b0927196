package models

import (
	"fmt"
	"time"
)

// DataSource identifies which source produced a record's policy facts.
type DataSource string

const (
	SourceOfficial DataSource = "official" // hotel's own website
	SourceFallback DataSource = "fallback" // third-party booking aggregator
	SourceNone     DataSource = "none"     // neither source yielded data
)

// ValidMarketSegments is the closed set of accepted marketSegment values.
var ValidMarketSegments = []string{"Luxury", "Upscale", "Upper-Midscale", "Midscale", "Economy"}

// RosterEntry is one hotel from the curated input roster. The core consumes
// these; it never parses roster files itself.
type RosterEntry struct {
	Name            string       `yaml:"name"`
	Town            string       `yaml:"town"`
	Region          string       `yaml:"region"`
	Country         string       `yaml:"country"`
	Rank            int          `yaml:"rank"`
	OfficialWebsite string       `yaml:"website,omitempty"`
	FallbackURL     string       `yaml:"fallback_url,omitempty"`   // aggregator listing page
	PromotionsURL   string       `yaml:"promotions_url,omitempty"` // dedicated offers page, if known
	MarketSegment   string       `yaml:"market_segment,omitempty"`
	Coordinates     *Coordinates `yaml:"coordinates,omitempty"`
}

// Coordinates is an optional lat/lng pair.
type Coordinates struct {
	Lat float64 `json:"lat" yaml:"lat"`
	Lng float64 `json:"lng" yaml:"lng"`
}

// Sources records the provenance of a HotelRecord.
type Sources struct {
	OfficialWebsite string     `json:"officialWebsite"`
	PolicyPage      *string    `json:"policyPage"`  // resolved policy page, nil if never found
	FallbackURL     *string    `json:"fallbackUrl"` // aggregator listing, nil unless fallback used
	DataSource      DataSource `json:"dataSource"`
}

// Tax is one tax line extracted from a page. Amount is the free-text magnitude
// as written ("5%", "$25.00"); Basis is nil when no basis phrase co-occurred.
type Tax struct {
	Name   string  `json:"name"`
	Amount string  `json:"amount"`
	Basis  *string `json:"basis"`
	Notes  *string `json:"notes"`
}

// Fee is one fee line. Includes lists amenities bundled into the fee when the
// surrounding text names them (resort/amenity fees only).
type Fee struct {
	Name     string   `json:"name"`
	Amount   string   `json:"amount"`
	Basis    *string  `json:"basis"`
	Includes []string `json:"includes,omitempty"`
	Notes    *string  `json:"notes"`
}

// Charge pairs an amount with its basis, for extra-person charges.
type Charge struct {
	Amount string  `json:"amount"`
	Basis  *string `json:"basis"`
}

// ExtraPersonPolicy captures child/adult occupancy rules. All fields are
// optional; the struct itself is nil when nothing was found.
type ExtraPersonPolicy struct {
	ChildrenFreeAge *int    `json:"childrenFreeAge"`
	ChildCharge     *Charge `json:"childCharge"`
	AdultCharge     *Charge `json:"adultCharge"`
	MaxOccupancy    *string `json:"maxOccupancy"`
	Notes           *string `json:"notes"`
}

// DamageDeposit captures security/incidental deposit terms.
type DamageDeposit struct {
	Amount         string  `json:"amount"`
	Basis          *string `json:"basis"`
	Method         *string `json:"method"`
	RefundTimeline *string `json:"refundTimeline"`
	Notes          *string `json:"notes"`
}

// Promotion is one offer from a dedicated promotions page. SourceURL is
// mandatory and never points at a booking-engine host.
type Promotion struct {
	Name        string     `json:"name"`
	Description string     `json:"description"`
	ValidFrom   *time.Time `json:"validFrom"`
	ValidTo     *time.Time `json:"validTo"`
	PromoCode   *string    `json:"promoCode"`
	SourceURL   string     `json:"sourceUrl"`
}

// HotelRecord is one policy snapshot for one hotel, the unit of export.
// Records are recomputed whole each run; missing data is an explicit null.
type HotelRecord struct {
	ID            string             `json:"id"`
	Name          string             `json:"name"`
	Town          string             `json:"town"`
	Region        string             `json:"region"`
	Country       string             `json:"country"`
	MarketSegment string             `json:"marketSegment"`
	Rank          int                `json:"rank"`
	Coordinates   *Coordinates       `json:"coordinates"`
	Sources       Sources            `json:"sources"`
	Taxes         []Tax              `json:"taxes"`
	Fees          []Fee              `json:"fees"`
	ExtraPerson   *ExtraPersonPolicy `json:"extraPersonPolicy"`
	DamageDeposit *DamageDeposit     `json:"damageDeposit"`
	Promotions    []Promotion        `json:"promotions"`
	ScrapedAt     time.Time          `json:"scrapedAt"`
	ScrapingNotes *string            `json:"scrapingNotes"`
}

// HasPolicyFacts reports whether at least one policy-fact field is populated.
// This is the "sufficiency" test the resolver applies to the official source.
func (r *HotelRecord) HasPolicyFacts() bool {
	return len(r.Taxes) > 0 || len(r.Fees) > 0 || r.ExtraPerson != nil || r.DamageDeposit != nil
}

// Validate checks a record against the export schema. It returns a list of
// problems; an empty list means the record is well-formed. Invalid records are
// still exported, but the problems are logged.
func (r *HotelRecord) Validate() []string {
	var problems []string

	if r.ID == "" {
		problems = append(problems, "missing id")
	}
	if r.Name == "" {
		problems = append(problems, "missing name")
	}
	if r.Town == "" {
		problems = append(problems, "missing town")
	}
	if r.Country == "" {
		problems = append(problems, "missing country")
	}

	segmentOK := false
	for _, s := range ValidMarketSegments {
		if r.MarketSegment == s {
			segmentOK = true
			break
		}
	}
	if !segmentOK {
		problems = append(problems, fmt.Sprintf("invalid market segment: %q", r.MarketSegment))
	}

	switch r.Sources.DataSource {
	case SourceOfficial:
		if r.Sources.PolicyPage == nil {
			problems = append(problems, "dataSource=official but sources.policyPage is null")
		}
	case SourceNone:
		if r.HasPolicyFacts() {
			problems = append(problems, "dataSource=none but policy facts are populated")
		}
		if r.ScrapingNotes == nil {
			problems = append(problems, "dataSource=none requires scrapingNotes")
		}
	case SourceFallback:
		// any shape allowed
	default:
		problems = append(problems, fmt.Sprintf("invalid dataSource: %q", r.Sources.DataSource))
	}

	for i, tax := range r.Taxes {
		if tax.Name == "" || tax.Amount == "" {
			problems = append(problems, fmt.Sprintf("tax %d missing name or amount", i))
		}
	}
	for i, fee := range r.Fees {
		if fee.Name == "" || fee.Amount == "" {
			problems = append(problems, fmt.Sprintf("fee %d missing name or amount", i))
		}
	}
	for i, promo := range r.Promotions {
		if promo.SourceURL == "" {
			problems = append(problems, fmt.Sprintf("promotion %d missing sourceUrl", i))
		}
	}

	return problems
}

// StrPtr returns a pointer to s. Convenience for building records with
// explicit-null optional fields.
func StrPtr(s string) *string { return &s }

// IntPtr returns a pointer to n.
func IntPtr(n int) *int { return &n }
