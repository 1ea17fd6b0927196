package extract

import (
	"bytes"
	"strings"

	md "github.com/JohannesKaufmann/html-to-markdown"
	"github.com/PuerkitoBio/goquery"

	"policy-scraper/pkg/utils"
)

// chromeSelector matches page furniture that never carries policy content.
const chromeSelector = "script, style, nav, header, footer"

// TextContent strips page chrome from an HTML document and returns its
// visible text, one trimmed line per text node.
func TextContent(body []byte) (string, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return "", utils.WrapErrorf(utils.ErrParsing, "HTML: %v", err)
	}
	doc.Find(chromeSelector).Remove()
	return cleanLines(doc.Text()), nil
}

// listingSectionSelector targets the policy/fine-print blocks aggregator
// listing pages wrap their terms in.
const listingSectionSelector = `div[class*="policy"], section[class*="policy"],` +
	` div[class*="fine-print"], div[class*="house-rules"], div[class*="important-info"],` +
	` [data-testid*="policy"]`

// ListingPolicyText returns the text of the policy sections of an aggregator
// listing page. When the page carries no recognizable policy containers it
// falls back to the full stripped text, so an unusually structured listing
// still gets a chance at extraction.
func ListingPolicyText(body []byte) (string, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return "", utils.WrapErrorf(utils.ErrParsing, "HTML: %v", err)
	}

	var parts []string
	doc.Find(listingSectionSelector).Each(func(_ int, sel *goquery.Selection) {
		if text := cleanLines(sel.Text()); text != "" {
			parts = append(parts, text)
		}
	})
	if len(parts) > 0 {
		return strings.Join(parts, "\n\n"), nil
	}

	doc.Find(chromeSelector).Remove()
	return cleanLines(doc.Text()), nil
}

// PageTitle returns the document's <title> text, trimmed.
func PageTitle(body []byte) string {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return ""
	}
	return strings.TrimSpace(doc.Find("title").First().Text())
}

// MarkdownSnapshot converts a fetched policy page to markdown for archival.
func MarkdownSnapshot(body []byte, pageURL string) (string, error) {
	converter := md.NewConverter(pageURL, true, nil)
	out, err := converter.ConvertString(string(body))
	if err != nil {
		return "", utils.WrapErrorf(utils.ErrParsing, "markdown conversion of %s: %v", pageURL, err)
	}
	return out, nil
}

// cleanLines trims every line and drops blank ones.
func cleanLines(text string) string {
	var out []string
	for _, line := range strings.Split(text, "\n") {
		if trimmed := strings.TrimSpace(line); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return strings.Join(out, "\n")
}
