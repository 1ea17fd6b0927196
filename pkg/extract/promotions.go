package extract

import (
	"bytes"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/sirupsen/logrus"

	"policy-scraper/pkg/fetch"
	"policy-scraper/pkg/models"
	"policy-scraper/pkg/utils"
)

// promoPageKeywords mark a URL path or page title as a dedicated offers page.
// General policy pages that merely mention a sale never yield promotions.
var promoPageKeywords = []string{"offer", "promotion", "deal", "special", "package"}

// promoCodeRe picks up an explicit booking code near an offer.
var promoCodeRe = regexp.MustCompile(`(?i:(?:promo|offer|booking)\s*code)\s*[:\-]?\s*([A-Z0-9]{3,12})\b`)

// IsPromotionsPage reports whether a page is a dedicated promotions/offers
// page, judged by its URL path and title.
func IsPromotionsPage(pageURL, title string) bool {
	haystack := strings.ToLower(pageURL) + " " + strings.ToLower(title)
	for _, keyword := range promoPageKeywords {
		if strings.Contains(haystack, keyword) {
			return true
		}
	}
	return false
}

// ExtractPromotions parses a dedicated offers page into promotion entries.
// Pages that fail the dedicated-page heuristic, and pages hosted on an
// excluded booking-engine domain, yield no promotions. Every entry carries
// the page URL as its source.
func (e *Extractor) ExtractPromotions(body []byte, pageURL string, exclusions *fetch.ExclusionList) ([]models.Promotion, error) {
	if exclusions != nil && exclusions.MatchesURL(pageURL) {
		return nil, nil
	}

	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return nil, utils.WrapErrorf(utils.ErrParsing, "HTML of %s: %v", pageURL, err)
	}

	title := strings.TrimSpace(doc.Find("title").First().Text())
	if !IsPromotionsPage(pageURL, title) {
		return nil, nil
	}

	var promos []models.Promotion
	seen := make(map[string]bool)

	emit := func(name, description string) {
		name = strings.TrimSpace(name)
		description = strings.TrimSpace(description)
		if name == "" || len(name) > 120 {
			return
		}
		key := strings.ToLower(name)
		if seen[key] {
			return
		}
		seen[key] = true

		promo := models.Promotion{
			Name:        name,
			Description: description,
			SourceURL:   pageURL,
		}
		if m := promoCodeRe.FindStringSubmatch(name + " " + description); m != nil {
			promo.PromoCode = models.StrPtr(m[1])
		}
		promos = append(promos, promo)
	}

	// Structured offer cards first
	doc.Find(`section[class*="offer"], article[class*="offer"], div[class*="offer"],` +
		` section[class*="promo"], div[class*="promo"], article[class*="package"]`).
		Each(func(_ int, sel *goquery.Selection) {
			heading := sel.Find("h1, h2, h3, h4").First().Text()
			if heading == "" {
				return
			}
			description := sel.Find("p").First().Text()
			emit(heading, description)
		})

	// Fall back to heading+paragraph pairs when the page has no card markup
	if len(promos) == 0 {
		doc.Find("h2, h3").Each(func(_ int, sel *goquery.Selection) {
			heading := strings.TrimSpace(sel.Text())
			if heading == "" || !mentionsOffer(heading) {
				return
			}
			description := sel.NextFiltered("p").Text()
			emit(heading, description)
		})
	}

	e.log.WithFields(logrus.Fields{
		"page":       pageURL,
		"promotions": len(promos),
	}).Debug("Promotion extraction complete")

	return promos, nil
}

func mentionsOffer(text string) bool {
	lower := strings.ToLower(text)
	for _, keyword := range promoPageKeywords {
		if strings.Contains(lower, keyword) {
			return true
		}
	}
	// rate-themed headings also qualify on an offers page
	return strings.Contains(lower, "% off") || strings.Contains(lower, "save")
}
