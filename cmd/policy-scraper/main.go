package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/semaphore"

	"policy-scraper/pkg/config"
	"policy-scraper/pkg/discover"
	"policy-scraper/pkg/export"
	"policy-scraper/pkg/extract"
	"policy-scraper/pkg/fetch"
	"policy-scraper/pkg/models"
	"policy-scraper/pkg/orchestrate"
	"policy-scraper/pkg/resolve"
	"policy-scraper/pkg/storage"
)

const version = "1.0.0"

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	switch os.Args[1] {
	case "scrape":
		runScrape(os.Args[2:])
	case "export":
		runExport(os.Args[2:])
	case "validate":
		runValidate(os.Args[2:])
	case "version":
		fmt.Printf("policy-scraper %s\n", version)
	case "-h", "--help", "help":
		printUsage()
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n\n", os.Args[1])
		printUsage()
		os.Exit(1)
	}
}

func printUsage() {
	printUsageTo(os.Stdout)
}

// printUsageTo writes usage information to the provided writer.
func printUsageTo(w io.Writer) {
	fmt.Fprintln(w, `policy-scraper - Hotel policy extraction pipeline

Usage:
  policy-scraper <command> [options]

Commands:
  scrape      Resolve roster hotels and write policy records
  export      Regenerate consolidated JSON and CSV exports from saved records
  validate    Validate configuration and roster files
  version     Show version info

Run 'policy-scraper <command> -h' for command-specific help.`)
}

// newLogger builds the shared logger at the requested level.
func newLogger(logLevel string, verbose bool) *logrus.Logger {
	logger := logrus.New()
	logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true, TimestampFormat: "15:04:05.000"})
	logger.SetLevel(logrus.InfoLevel)

	if verbose {
		logLevel = "debug"
	}
	if level, err := logrus.ParseLevel(logLevel); err != nil {
		fmt.Fprintf(os.Stderr, "Invalid log level %q, using info\n", logLevel)
	} else {
		logger.SetLevel(level)
	}
	return logger
}

// loadValidatedConfig loads the config file and applies validation defaults,
// routing warnings to the logger.
func loadValidatedConfig(path string, logger *logrus.Logger) (*config.AppConfig, error) {
	cfg, err := config.Load(path)
	if err != nil {
		return nil, err
	}
	warnings, err := cfg.Validate()
	for _, w := range warnings {
		logger.Warn(w)
	}
	if err != nil {
		return nil, err
	}
	return cfg, nil
}

// runScrape handles the scrape subcommand.
func runScrape(args []string) {
	fs := flag.NewFlagSet("scrape", flag.ExitOnError)
	configFile := fs.String("config", "config.yaml", "Path to config file")
	country := fs.String("country", "", "Restrict the run to one country")
	town := fs.String("town", "", "Restrict the run to one town")
	logLevel := fs.String("loglevel", "info", "Log level (debug, info, warn, error, fatal)")
	verbose := fs.Bool("verbose", false, "Shorthand for -loglevel debug")
	dryRun := fs.Bool("dry-run", false, "List the hotels and URLs a run would target, without fetching")

	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: policy-scraper scrape [options]\n\nOptions:\n")
		fs.PrintDefaults()
		fmt.Fprintf(os.Stderr, "\nExamples:\n")
		fmt.Fprintf(os.Stderr, "  policy-scraper scrape\n")
		fmt.Fprintf(os.Stderr, "  policy-scraper scrape -country Canada -town Banff\n")
		fmt.Fprintf(os.Stderr, "  policy-scraper scrape -dry-run\n")
	}

	if err := fs.Parse(args); err != nil {
		os.Exit(1)
	}

	logger := newLogger(*logLevel, *verbose)

	cfg, err := loadValidatedConfig(*configFile, logger)
	if err != nil {
		logger.WithError(err).Error("Configuration failed")
		os.Exit(1)
	}

	roster, err := config.LoadRoster(cfg.RosterDir, cfg.HotelsPerTown)
	if err != nil {
		logger.WithError(err).Error("Roster load failed")
		os.Exit(1)
	}
	entries := roster.Filter(*country, *town)
	if len(entries) == 0 {
		logger.WithFields(logrus.Fields{"country": *country, "town": *town}).Error("No roster entries match the requested scope")
		os.Exit(1)
	}
	logger.WithField("hotels", len(entries)).Info("Roster loaded")

	if *dryRun {
		orch := orchestrate.New(cfg, nil, logger)
		for _, line := range orch.DryRun(entries) {
			fmt.Println(line)
		}
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigChan
		logger.WithField("signal", sig.String()).Warn("Shutdown signal received, finishing in-flight hotels")
		cancel()
	}()

	internalErrors, err := executeScrape(ctx, cfg, entries, logger)
	if err != nil {
		logger.WithError(err).Error("Run failed")
		os.Exit(1)
	}
	// "No data found" is a normal outcome; only internal errors fail the run.
	if internalErrors > 0 {
		logger.WithField("count", internalErrors).Error("Run finished with internal errors")
		os.Exit(1)
	}
}

// executeScrape wires the pipeline together and runs the batch. It returns
// the number of hotels that ended in an internal error; a run that yields no
// data for some or all hotels is still a successful run.
func executeScrape(ctx context.Context, cfg *config.AppConfig, entries []models.RosterEntry, logger *logrus.Logger) (int, error) {
	exclusions := fetch.NewExclusionList(cfg.ExcludedDomains)
	client := fetch.NewClient(cfg.HTTPClientSettings, exclusions, logger)
	limiter := fetch.NewRateLimiter(cfg.MinDelayPerHost, cfg.MaxDelayPerHost, logger)

	fetcher := fetch.NewFetcher(client, limiter, cfg, logger)
	fetcher.SetGlobalSemaphore(semaphore.NewWeighted(int64(cfg.MaxRequests)))

	robots := fetch.NewRobotsHandler(fetcher, cfg.DefaultUserAgent(), logger)
	identities := fetch.NewIdentityPool(cfg.UserAgents)

	var cache storage.PageCache
	if cfg.Cache.Enabled {
		store, err := storage.NewBadgerStore(cfg.Cache.Dir, cfg.Cache.TTL, logger.WithField("component", "cache"))
		if err != nil {
			return 0, fmt.Errorf("open page cache: %w", err)
		}
		defer store.Close()
		cache = store
	}

	pageFetcher := fetch.NewPageFetcher(fetcher, robots, identities, exclusions, cache, logger)
	discoverer := discover.NewDiscoverer(pageFetcher, exclusions, cfg.CompiledDisallowedPatterns(), logger)
	extractor := extract.NewExtractor(logger)

	var enhancer resolve.Enhancer
	if cfg.LLM.Enabled {
		e, err := extract.NewEnhancer(cfg.LLM, logger)
		if err != nil {
			return 0, fmt.Errorf("initialize LLM enhancer: %w", err)
		}
		enhancer = e
	}

	resolver := resolve.NewResolver(pageFetcher, discoverer, extractor, enhancer, exclusions, logger)
	orch := orchestrate.New(cfg, resolver, logger)

	outcomes, report := orch.Run(ctx, entries)

	exporter := export.NewExporter(cfg.DataDir, logger)
	for _, outcome := range outcomes {
		if _, err := exporter.SaveHotel(outcome.Record); err != nil {
			logger.WithError(err).WithField("hotel", outcome.Record.Name).Error("Record save failed")
			continue
		}
		if cfg.Output.SaveSnapshots && len(outcome.SnapshotHTML) > 0 {
			markdown, err := extract.MarkdownSnapshot(outcome.SnapshotHTML, outcome.SnapshotURL)
			if err != nil {
				logger.WithError(err).WithField("hotel", outcome.Record.Name).Warn("Snapshot conversion failed")
			} else if _, err := exporter.SaveSnapshot(outcome.Record, markdown); err != nil {
				logger.WithError(err).WithField("hotel", outcome.Record.Name).Warn("Snapshot save failed")
			}
		}
	}

	records, err := exporter.Consolidate()
	if err != nil {
		return 0, fmt.Errorf("consolidate records: %w", err)
	}
	if _, err := exporter.ExportCSVAll(records); err != nil {
		return 0, fmt.Errorf("export CSV: %w", err)
	}
	if _, err := exporter.ExportCSVByCountry(records); err != nil {
		return 0, fmt.Errorf("export per-country CSV: %w", err)
	}

	text := report.Render()
	fmt.Println(text)
	if path, err := export.WriteReport(cfg.LogDir, text); err != nil {
		logger.WithError(err).Warn("Report write failed")
	} else {
		logger.WithField("path", path).Info("Run report written")
	}

	return report.InternalErrors, nil
}

// runExport handles the export subcommand: regenerate the consolidated JSON
// and CSV exports from records already on disk, no network involved.
func runExport(args []string) {
	fs := flag.NewFlagSet("export", flag.ExitOnError)
	configFile := fs.String("config", "config.yaml", "Path to config file")
	logLevel := fs.String("loglevel", "info", "Log level (debug, info, warn, error, fatal)")

	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: policy-scraper export [options]\n\nOptions:\n")
		fs.PrintDefaults()
	}

	if err := fs.Parse(args); err != nil {
		os.Exit(1)
	}

	logger := newLogger(*logLevel, false)

	cfg, err := loadValidatedConfig(*configFile, logger)
	if err != nil {
		logger.WithError(err).Error("Configuration failed")
		os.Exit(1)
	}

	exporter := export.NewExporter(cfg.DataDir, logger)
	if err := exporter.GenerateExports(); err != nil {
		logger.WithError(err).Error("Export failed")
		os.Exit(1)
	}
	logger.Info("Exports regenerated")
}

// runValidate handles the validate subcommand.
func runValidate(args []string) {
	fs := flag.NewFlagSet("validate", flag.ExitOnError)
	configFile := fs.String("config", "config.yaml", "Path to config file")

	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: policy-scraper validate [options]\n\nOptions:\n")
		fs.PrintDefaults()
	}

	if err := fs.Parse(args); err != nil {
		os.Exit(1)
	}

	os.Exit(doValidate(*configFile, os.Stdout, os.Stderr))
}

// doValidate checks the config file and the roster it points at, writing
// findings to the provided writers. Returns the process exit code.
func doValidate(configPath string, stdout, stderr io.Writer) int {
	cfg, err := config.Load(configPath)
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}

	warnings, err := cfg.Validate()
	for _, w := range warnings {
		fmt.Fprintf(stdout, "WARN: %s\n", w)
	}
	if err != nil {
		fmt.Fprintf(stderr, "ERROR: %v\n", err)
		return 1
	}

	roster, err := config.LoadRoster(cfg.RosterDir, cfg.HotelsPerTown)
	if err != nil {
		fmt.Fprintf(stderr, "ERROR: roster: %v\n", err)
		return 1
	}

	entries := roster.Filter("", "")
	noSource := 0
	for _, entry := range entries {
		if entry.OfficialWebsite == "" && entry.FallbackURL == "" {
			noSource++
		}
	}
	fmt.Fprintf(stdout, "OK: %d hotels across %d towns\n", len(entries), len(roster.Towns()))
	if noSource > 0 {
		fmt.Fprintf(stdout, "WARN: %d hotels have neither an official website nor a fallback listing\n", noSource)
	}

	fmt.Fprintln(stdout, "\nConfiguration valid.")
	return 0
}
