// Package orchestrate runs the per-hotel resolution pipeline over a roster
// with a bounded worker pool. One hotel's failure never aborts the batch.
package orchestrate

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"policy-scraper/pkg/config"
	"policy-scraper/pkg/models"
	"policy-scraper/pkg/resolve"
)

// Resolver produces the policy outcome for one roster entry.
type Resolver interface {
	Resolve(ctx context.Context, entry models.RosterEntry) *resolve.Outcome
}

// Orchestrator fans a roster out over a fixed pool of workers. The rate
// limiter inside the fetch stack is the real throttle; the pool only bounds
// how many hotels are in flight at once.
type Orchestrator struct {
	cfg      *config.AppConfig
	resolver Resolver
	log      *logrus.Logger
}

// New creates an Orchestrator.
func New(cfg *config.AppConfig, resolver Resolver, log *logrus.Logger) *Orchestrator {
	return &Orchestrator{cfg: cfg, resolver: resolver, log: log}
}

// Run resolves every roster entry and returns the outcomes sorted by
// (country, town, rank) plus the aggregate report. A configured run timeout
// stops feeding new hotels to the pool; hotels already in flight finish on
// their own fetch bounds.
func (o *Orchestrator) Run(ctx context.Context, entries []models.RosterEntry) ([]*resolve.Outcome, *RunReport) {
	report := NewRunReport()
	report.Start()
	defer report.Finish()

	o.log.WithFields(logrus.Fields{
		"run_id":  report.RunID,
		"hotels":  len(entries),
		"workers": o.cfg.NumWorkers,
	}).Info("Starting batch run")

	var deadline time.Time
	if o.cfg.GlobalRunTimeout > 0 {
		deadline = time.Now().Add(o.cfg.GlobalRunTimeout)
	}

	jobs := make(chan models.RosterEntry)
	var (
		outcomes []*resolve.Outcome
		mu       sync.Mutex
		wg       sync.WaitGroup
	)

	for i := 0; i < o.cfg.NumWorkers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for entry := range jobs {
				outcome := o.resolveOne(ctx, entry, report)
				report.RecordOutcome(outcome.Record)
				mu.Lock()
				outcomes = append(outcomes, outcome)
				mu.Unlock()
			}
		}()
	}

	// Feed hotels until the roster is exhausted, the run timeout passes, or
	// the context is cancelled. The timeout is only checked between hotels.
feed:
	for _, entry := range entries {
		if ctx.Err() != nil {
			o.log.Warnf("Run cancelled: %v", ctx.Err())
			break
		}
		if !deadline.IsZero() && time.Now().After(deadline) {
			o.log.Warn("Run timeout reached; not starting remaining hotels")
			break
		}
		select {
		case jobs <- entry:
		case <-ctx.Done():
			o.log.Warnf("Run cancelled: %v", ctx.Err())
			break feed
		}
	}
	close(jobs)
	wg.Wait()

	sort.Slice(outcomes, func(i, j int) bool {
		a, b := outcomes[i].Record, outcomes[j].Record
		if a.Country != b.Country {
			return a.Country < b.Country
		}
		if a.Town != b.Town {
			return a.Town < b.Town
		}
		return a.Rank < b.Rank
	})

	o.log.WithFields(logrus.Fields{
		"run_id":   report.RunID,
		"official": report.Official,
		"fallback": report.Fallback,
		"none":     report.None,
	}).Info("Batch run complete")

	return outcomes, report
}

// resolveOne shields the batch from a single hotel's unexpected failure: a
// panic anywhere in the pipeline becomes a none-outcome record with the
// reason in its notes.
func (o *Orchestrator) resolveOne(ctx context.Context, entry models.RosterEntry, report *RunReport) (outcome *resolve.Outcome) {
	defer func() {
		if r := recover(); r != nil {
			o.log.WithFields(logrus.Fields{
				"hotel": entry.Name,
				"town":  entry.Town,
			}).Errorf("Pipeline panic: %v", r)
			report.RecordInternalError()
			outcome = &resolve.Outcome{Record: resolve.ErrorRecord(entry, fmt.Sprint(r))}
		}
	}()
	return o.resolver.Resolve(ctx, entry)
}

// DryRun lists the requests a real run would issue, one line per target,
// without fetching anything.
func (o *Orchestrator) DryRun(entries []models.RosterEntry) []string {
	var targets []string
	for _, entry := range entries {
		label := fmt.Sprintf("%s (%s, %s)", entry.Name, entry.Town, entry.Country)
		if entry.OfficialWebsite != "" {
			targets = append(targets, fmt.Sprintf("%s: official site %s", label, entry.OfficialWebsite))
		}
		if entry.FallbackURL != "" {
			targets = append(targets, fmt.Sprintf("%s: fallback listing %s", label, entry.FallbackURL))
		}
		if entry.PromotionsURL != "" {
			targets = append(targets, fmt.Sprintf("%s: promotions page %s", label, entry.PromotionsURL))
		}
		if entry.OfficialWebsite == "" && entry.FallbackURL == "" {
			targets = append(targets, label+": no sources, would emit a no-data record")
		}
	}
	o.log.Infof("Dry run: %d would-be targets across %d hotels\n%s",
		len(targets), len(entries), strings.Join(targets, "\n"))
	return targets
}
