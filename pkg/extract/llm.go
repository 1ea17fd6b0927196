package extract

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/sirupsen/logrus"
	"github.com/tiktoken-go/tokenizer"
	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/anthropic"
	"github.com/tmc/langchaingo/textsplitter"

	"policy-scraper/pkg/config"
	"policy-scraper/pkg/models"
)

// minEnhanceChars is the floor below which page text is too thin to be worth
// a model call.
const minEnhanceChars = 100

const extractionPrompt = `You are a data extraction assistant. Extract hotel fee and policy information from the provided text.

Return a JSON object with the following structure (use null for missing values, empty arrays for no items):

{
  "taxes": [
    {"name": "Tax Name", "amount": "5%" or "$25.00", "basis": "per night|per stay|per person" or null, "notes": "optional note" or null}
  ],
  "fees": [
    {"name": "Fee Name", "amount": "$XX.XX", "basis": "per night|per stay|per person" or null, "includes": ["item1", "item2"] or null, "notes": "optional note" or null}
  ],
  "extraPersonPolicy": {
    "childrenFreeAge": 12 or null,
    "childCharge": {"amount": "$XX.XX", "basis": "per night"} or null,
    "adultCharge": {"amount": "$XX.XX", "basis": "per night"} or null,
    "maxOccupancy": "4 guests" or null,
    "notes": "optional note" or null
  } or null,
  "damageDeposit": {
    "amount": "$XXX.XX",
    "basis": "per stay|per night" or null,
    "method": "Credit card pre-authorization" or null,
    "refundTimeline": "Within 7 days" or null,
    "notes": "optional note" or null
  } or null
}

Look for:
- TAXES: GST, HST, PST, VAT, tourism levy, lodging tax, city tax, occupancy tax
- FEES: Resort fee, destination fee, amenity fee, parking (self/valet), pet fee, cleaning fee, service charge, early check-in, late check-out
- EXTRA PERSON: Children free under age X, extra adult/child charges, rollaway/crib fees, max occupancy
- DAMAGE DEPOSIT: Security deposit, incidental hold, credit card authorization

Important:
- Only extract explicitly stated amounts (don't infer or estimate)
- Use the exact amounts as written (preserve currency symbols)
- Use null for basis when the text does not state one
- If no relevant information is found, return empty arrays/null values
- Return ONLY the JSON object, no other text

Text to analyze:
`

// llmPayload mirrors the JSON shape the prompt asks for; the field tags line
// up with the record schema so the model output unmarshals directly.
type llmPayload struct {
	Taxes         []models.Tax              `json:"taxes"`
	Fees          []models.Fee              `json:"fees"`
	ExtraPerson   *models.ExtraPersonPolicy `json:"extraPersonPolicy"`
	DamageDeposit *models.DamageDeposit     `json:"damageDeposit"`
}

// Enhancer runs a model-backed second extraction pass over pages the rule
// tables came up short on. It only ever fills fields the rule pass left
// empty. The Anthropic API key comes from the ANTHROPIC_API_KEY environment
// variable.
type Enhancer struct {
	model     llms.Model
	codec     tokenizer.Codec
	splitter  textsplitter.TokenSplitter
	maxTokens int
	log       *logrus.Logger
}

// NewEnhancer builds an Enhancer from the llm config section.
func NewEnhancer(cfg config.LLMConfig, log *logrus.Logger) (*Enhancer, error) {
	model, err := anthropic.New(anthropic.WithModel(cfg.Model))
	if err != nil {
		return nil, fmt.Errorf("init LLM client: %w", err)
	}

	var enc tokenizer.Encoding
	switch cfg.TokenEncoding {
	case "", "cl100k_base":
		enc = tokenizer.Cl100kBase
	case "o200k_base":
		enc = tokenizer.O200kBase
	case "p50k_base":
		enc = tokenizer.P50kBase
	case "r50k_base":
		enc = tokenizer.R50kBase
	default:
		return nil, fmt.Errorf("unknown token encoding %q", cfg.TokenEncoding)
	}
	codec, err := tokenizer.Get(enc)
	if err != nil {
		return nil, fmt.Errorf("init tokenizer: %w", err)
	}

	splitter := textsplitter.NewTokenSplitter(
		textsplitter.WithChunkSize(cfg.MaxInputTokens),
		textsplitter.WithChunkOverlap(0),
		textsplitter.WithEncodingName(string(enc)),
	)

	return &Enhancer{
		model:     model,
		codec:     codec,
		splitter:  splitter,
		maxTokens: cfg.MaxInputTokens,
		log:       log,
	}, nil
}

// Enhance fills the empty fields of a rule-pass result from a model call.
// It reports whether anything was added. Model and parse failures are
// logged and swallowed: the rule-pass result always survives.
func (e *Enhancer) Enhance(ctx context.Context, res *Result) bool {
	if len(res.Taxes) > 0 && len(res.Fees) > 0 {
		return false
	}
	if len(res.RawText) < minEnhanceChars {
		return false
	}

	text, err := e.truncate(res.RawText)
	if err != nil {
		e.log.WithError(err).Warn("LLM input truncation failed")
		return false
	}

	pageLog := e.log.WithField("page", res.PageURL)
	pageLog.Info("Running LLM extraction pass")

	reply, err := llms.GenerateFromSinglePrompt(ctx, e.model, extractionPrompt+text,
		llms.WithTemperature(0),
		llms.WithMaxTokens(2000),
	)
	if err != nil {
		pageLog.WithError(err).Warn("LLM call failed")
		return false
	}

	var payload llmPayload
	if err := json.Unmarshal([]byte(stripCodeFence(reply)), &payload); err != nil {
		pageLog.WithError(err).Warn("LLM reply was not valid JSON")
		return false
	}

	changed := false
	if len(res.Taxes) == 0 && len(payload.Taxes) > 0 {
		res.Taxes = normalizeTaxes(payload.Taxes)
		changed = true
	}
	if len(res.Fees) == 0 && len(payload.Fees) > 0 {
		res.Fees = normalizeFees(payload.Fees)
		changed = true
	}
	if res.ExtraPerson == nil && payload.ExtraPerson != nil {
		res.ExtraPerson = payload.ExtraPerson
		changed = true
	}
	if res.DamageDeposit == nil && payload.DamageDeposit != nil {
		payload.DamageDeposit.Amount = NormalizeAmount(payload.DamageDeposit.Amount)
		res.DamageDeposit = payload.DamageDeposit
		changed = true
	}

	if changed {
		pageLog.WithFields(logrus.Fields{
			"taxes": len(res.Taxes),
			"fees":  len(res.Fees),
		}).Info("LLM pass added policy facts")
	}
	return changed
}

// truncate bounds the page text to the configured token budget, keeping the
// leading chunk.
func (e *Enhancer) truncate(text string) (string, error) {
	ids, _, err := e.codec.Encode(text)
	if err != nil {
		return "", err
	}
	if len(ids) <= e.maxTokens {
		return text, nil
	}
	chunks, err := e.splitter.SplitText(text)
	if err != nil {
		return "", err
	}
	if len(chunks) == 0 {
		return text, nil
	}
	return chunks[0] + "\n[Text truncated]", nil
}

func normalizeTaxes(taxes []models.Tax) []models.Tax {
	out := make([]models.Tax, 0, len(taxes))
	for _, tax := range taxes {
		if tax.Name == "" || tax.Amount == "" {
			continue
		}
		tax.Amount = NormalizeAmount(tax.Amount)
		out = append(out, tax)
	}
	return out
}

func normalizeFees(fees []models.Fee) []models.Fee {
	out := make([]models.Fee, 0, len(fees))
	for _, fee := range fees {
		if fee.Name == "" || fee.Amount == "" {
			continue
		}
		fee.Amount = NormalizeAmount(fee.Amount)
		out = append(out, fee)
	}
	return out
}

// stripCodeFence unwraps a ```json fenced reply.
func stripCodeFence(reply string) string {
	reply = strings.TrimSpace(reply)
	if !strings.HasPrefix(reply, "```") {
		return reply
	}
	lines := strings.Split(reply, "\n")
	if len(lines) < 2 {
		return reply
	}
	lines = lines[1:]
	if strings.HasPrefix(strings.TrimSpace(lines[len(lines)-1]), "```") {
		lines = lines[:len(lines)-1]
	}
	return strings.Join(lines, "\n")
}
