package orchestrate

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"policy-scraper/pkg/models"
)

// maxListedProblems bounds the problem list in the rendered report.
const maxListedProblems = 20

// Problem is one hotel that finished without usable data.
type Problem struct {
	HotelID string
	Town    string
	Detail  string
	At      time.Time
}

// RunReport accumulates batch outcomes. Workers record concurrently, so all
// mutation happens under the mutex.
type RunReport struct {
	mu sync.Mutex

	RunID      string
	StartedAt  time.Time
	FinishedAt time.Time

	Official       int
	Fallback       int
	None           int
	InternalErrors int

	Problems []Problem
}

// NewRunReport creates a report with a fresh run ID.
func NewRunReport() *RunReport {
	return &RunReport{RunID: uuid.NewString()}
}

// Start stamps the run's begin time.
func (r *RunReport) Start() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.StartedAt = time.Now()
}

// Finish stamps the run's end time.
func (r *RunReport) Finish() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.FinishedAt = time.Now()
}

// RecordOutcome tallies one finished record by its data source. A none-outcome
// record lands on the problem list with its notes as the detail.
func (r *RunReport) RecordOutcome(rec *models.HotelRecord) {
	r.mu.Lock()
	defer r.mu.Unlock()

	switch rec.Sources.DataSource {
	case models.SourceOfficial:
		r.Official++
	case models.SourceFallback:
		r.Fallback++
	default:
		r.None++
		detail := "no data"
		if rec.ScrapingNotes != nil {
			detail = *rec.ScrapingNotes
		}
		r.Problems = append(r.Problems, Problem{
			HotelID: rec.ID,
			Town:    rec.Town,
			Detail:  detail,
			At:      time.Now(),
		})
	}
}

// RecordInternalError tallies an unexpected per-hotel failure. The matching
// none-outcome record still goes through RecordOutcome.
func (r *RunReport) RecordInternalError() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.InternalErrors++
}

// Total returns the number of hotels processed.
func (r *RunReport) Total() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.Official + r.Fallback + r.None
}

// Render produces the human-readable run summary written to the report file.
func (r *RunReport) Render() string {
	r.mu.Lock()
	defer r.mu.Unlock()

	total := r.Official + r.Fallback + r.None
	successRate := 0.0
	if total > 0 {
		successRate = float64(r.Official+r.Fallback) / float64(total) * 100
	}

	var b strings.Builder
	rule := strings.Repeat("=", 80)

	fmt.Fprintf(&b, "%s\n", rule)
	fmt.Fprintf(&b, "%sHOTEL POLICY SCRAPER REPORT\n", strings.Repeat(" ", 25))
	fmt.Fprintf(&b, "%s\n\n", rule)
	fmt.Fprintf(&b, "Run ID: %s\n\n", r.RunID)
	fmt.Fprintf(&b, "Summary\n-------\n")
	fmt.Fprintf(&b, "Total Hotels Processed: %d\n", total)
	fmt.Fprintf(&b, "Official Source:        %d\n", r.Official)
	fmt.Fprintf(&b, "Fallback Source:        %d\n", r.Fallback)
	fmt.Fprintf(&b, "No Data:                %d\n", r.None)
	fmt.Fprintf(&b, "Internal Errors:        %d\n\n", r.InternalErrors)
	fmt.Fprintf(&b, "Success Rate: %.1f%%\n", successRate)

	if !r.StartedAt.IsZero() && !r.FinishedAt.IsZero() {
		d := r.FinishedAt.Sub(r.StartedAt).Round(time.Second)
		fmt.Fprintf(&b, "Duration: %dm %ds\n", int(d.Minutes()), int(d.Seconds())%60)
	}
	b.WriteString("\n")

	if len(r.Problems) > 0 {
		b.WriteString("Hotels Without Data\n-------------------\n")
		for i, p := range r.Problems {
			if i >= maxListedProblems {
				fmt.Fprintf(&b, "  ... and %d more\n", len(r.Problems)-maxListedProblems)
				break
			}
			fmt.Fprintf(&b, "  - %s (%s): %s\n", p.HotelID, p.Town, p.Detail)
		}
		b.WriteString("\n")
	}

	fmt.Fprintf(&b, "%s\n", rule)
	return b.String()
}
