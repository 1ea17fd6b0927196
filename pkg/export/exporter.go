// Package export writes resolved hotel records to the on-disk dataset:
// per-hotel JSON files, a consolidated all-hotels JSON, and flattened CSV
// projections. The consolidated outputs are derived views, regenerable from
// the per-hotel files alone.
package export

import (
	"encoding/csv"
	"encoding/json"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"policy-scraper/pkg/models"
	"policy-scraper/pkg/utils"
)

// Exporter owns the data directory layout.
type Exporter struct {
	dataDir string
	log     *logrus.Logger
}

// NewExporter creates an Exporter rooted at dataDir.
func NewExporter(dataDir string, log *logrus.Logger) *Exporter {
	return &Exporter{dataDir: dataDir, log: log}
}

func (e *Exporter) hotelsDir() string  { return filepath.Join(e.dataDir, "hotels") }
func (e *Exporter) exportsDir() string { return filepath.Join(e.dataDir, "exports") }

// SaveHotel writes one record to
// hotels/<country-slug>/<town-slug>/<hotel-slug>.json, replacing any previous
// run's file. Schema problems are logged but never block the write; a partial
// record on disk beats no record.
func (e *Exporter) SaveHotel(rec *models.HotelRecord) (string, error) {
	if problems := rec.Validate(); len(problems) > 0 {
		e.log.WithField("hotel", rec.ID).Warnf("Record has schema problems: %s", strings.Join(problems, "; "))
	}

	dir := filepath.Join(e.hotelsDir(), utils.Slugify(rec.Country), utils.Slugify(rec.Town))
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", utils.WrapErrorf(utils.ErrFilesystem, "create %s: %v", dir, err)
	}

	path := filepath.Join(dir, utils.Slugify(rec.Name)+".json")
	if err := writeJSON(path, rec); err != nil {
		return "", err
	}
	e.log.WithField("path", path).Debug("Saved hotel record")
	return path, nil
}

// Consolidate gathers every per-hotel file into all-hotels.json, sorted by
// (country, town, rank). Unreadable files are logged and skipped so one
// corrupt record cannot block the dataset.
func (e *Exporter) Consolidate() ([]models.HotelRecord, error) {
	var records []models.HotelRecord

	err := filepath.WalkDir(e.hotelsDir(), func(path string, d os.DirEntry, err error) error {
		if err != nil {
			if os.IsNotExist(err) {
				return filepath.SkipAll
			}
			return err
		}
		if d.IsDir() || !strings.HasSuffix(path, ".json") {
			return nil
		}
		raw, err := os.ReadFile(path)
		if err != nil {
			e.log.WithField("path", path).Errorf("Skipping unreadable record: %v", err)
			return nil
		}
		var rec models.HotelRecord
		if err := json.Unmarshal(raw, &rec); err != nil {
			e.log.WithField("path", path).Errorf("Skipping malformed record: %v", err)
			return nil
		}
		records = append(records, rec)
		return nil
	})
	if err != nil {
		return nil, utils.WrapErrorf(utils.ErrFilesystem, "walk %s: %v", e.hotelsDir(), err)
	}

	if records == nil {
		records = []models.HotelRecord{}
	}
	sort.Slice(records, func(i, j int) bool {
		if records[i].Country != records[j].Country {
			return records[i].Country < records[j].Country
		}
		if records[i].Town != records[j].Town {
			return records[i].Town < records[j].Town
		}
		return records[i].Rank < records[j].Rank
	})

	path := filepath.Join(e.dataDir, "all-hotels.json")
	if err := writeJSON(path, records); err != nil {
		return nil, err
	}
	e.log.WithField("count", len(records)).Infof("Consolidated dataset written to %s", path)
	return records, nil
}

// ExportCSVAll writes the flattened projection of all records to
// exports/hotels-all.csv.
func (e *Exporter) ExportCSVAll(records []models.HotelRecord) (string, error) {
	path := filepath.Join(e.exportsDir(), "hotels-all.csv")
	if err := e.writeCSV(records, path); err != nil {
		return "", err
	}
	e.log.WithField("count", len(records)).Infof("CSV export written to %s", path)
	return path, nil
}

// ExportCSVByCountry writes one exports/hotels-<country-slug>.csv per country.
func (e *Exporter) ExportCSVByCountry(records []models.HotelRecord) ([]string, error) {
	byCountry := make(map[string][]models.HotelRecord)
	for _, rec := range records {
		byCountry[rec.Country] = append(byCountry[rec.Country], rec)
	}

	countries := make([]string, 0, len(byCountry))
	for country := range byCountry {
		countries = append(countries, country)
	}
	sort.Strings(countries)

	var paths []string
	for _, country := range countries {
		path := filepath.Join(e.exportsDir(), "hotels-"+utils.Slugify(country)+".csv")
		if err := e.writeCSV(byCountry[country], path); err != nil {
			return paths, err
		}
		paths = append(paths, path)
	}
	return paths, nil
}

// GenerateExports rebuilds every derived view from the per-hotel files on
// disk. This is the whole of export-only mode: no scraping involved.
func (e *Exporter) GenerateExports() error {
	records, err := e.Consolidate()
	if err != nil {
		return err
	}
	if _, err := e.ExportCSVAll(records); err != nil {
		return err
	}
	_, err = e.ExportCSVByCountry(records)
	return err
}

// SaveSnapshot archives the markdown rendition of the page a record's facts
// came from, under snapshots/<hotel-id>.md.
func (e *Exporter) SaveSnapshot(rec *models.HotelRecord, markdown string) (string, error) {
	dir := filepath.Join(e.dataDir, "snapshots")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", utils.WrapErrorf(utils.ErrFilesystem, "create %s: %v", dir, err)
	}
	path := filepath.Join(dir, rec.ID+".md")
	if err := os.WriteFile(path, []byte(markdown), 0o644); err != nil {
		return "", utils.WrapErrorf(utils.ErrFilesystem, "write %s: %v", path, err)
	}
	return path, nil
}

// WriteReport saves the run summary to <logDir>/scraping_report.txt.
func WriteReport(logDir, text string) (string, error) {
	if err := os.MkdirAll(logDir, 0o755); err != nil {
		return "", utils.WrapErrorf(utils.ErrFilesystem, "create %s: %v", logDir, err)
	}
	path := filepath.Join(logDir, "scraping_report.txt")
	if err := os.WriteFile(path, []byte(text), 0o644); err != nil {
		return "", utils.WrapErrorf(utils.ErrFilesystem, "write %s: %v", path, err)
	}
	return path, nil
}

// csvHeader is the flattened column set shared by all CSV projections.
var csvHeader = []string{
	"id", "name", "town", "region", "country", "marketSegment", "rank",
	"latitude", "longitude",
	"officialWebsite", "policyPage", "fallbackUrl", "dataSource",
	"taxCount", "feeCount", "resortFee", "parkingFee",
	"childrenFreeAge", "adultCharge", "damageDeposit", "promotionCount",
	"scrapedAt", "scrapingNotes",
}

func (e *Exporter) writeCSV(records []models.HotelRecord, path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return utils.WrapErrorf(utils.ErrFilesystem, "create %s: %v", filepath.Dir(path), err)
	}
	f, err := os.Create(path)
	if err != nil {
		return utils.WrapErrorf(utils.ErrFilesystem, "create %s: %v", path, err)
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if err := w.Write(csvHeader); err != nil {
		return utils.WrapErrorf(utils.ErrFilesystem, "write %s: %v", path, err)
	}
	for _, rec := range records {
		if err := w.Write(csvRow(rec)); err != nil {
			return utils.WrapErrorf(utils.ErrFilesystem, "write %s: %v", path, err)
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return utils.WrapErrorf(utils.ErrFilesystem, "flush %s: %v", path, err)
	}
	return nil
}

func csvRow(rec models.HotelRecord) []string {
	var lat, lng string
	if rec.Coordinates != nil {
		lat = strconv.FormatFloat(rec.Coordinates.Lat, 'f', -1, 64)
		lng = strconv.FormatFloat(rec.Coordinates.Lng, 'f', -1, 64)
	}

	var resortFee, parkingFee string
	for _, fee := range rec.Fees {
		lower := strings.ToLower(fee.Name)
		if resortFee == "" && strings.Contains(lower, "resort") {
			resortFee = fee.Amount
		}
		if parkingFee == "" && strings.Contains(lower, "parking") {
			parkingFee = fee.Amount
		}
	}

	var childrenFreeAge, adultCharge string
	if rec.ExtraPerson != nil {
		if rec.ExtraPerson.ChildrenFreeAge != nil {
			childrenFreeAge = strconv.Itoa(*rec.ExtraPerson.ChildrenFreeAge)
		}
		if rec.ExtraPerson.AdultCharge != nil {
			adultCharge = rec.ExtraPerson.AdultCharge.Amount
		}
	}

	var deposit string
	if rec.DamageDeposit != nil {
		deposit = rec.DamageDeposit.Amount
	}

	return []string{
		rec.ID, rec.Name, rec.Town, rec.Region, rec.Country, rec.MarketSegment,
		strconv.Itoa(rec.Rank),
		lat, lng,
		rec.Sources.OfficialWebsite, strOrEmpty(rec.Sources.PolicyPage),
		strOrEmpty(rec.Sources.FallbackURL), string(rec.Sources.DataSource),
		strconv.Itoa(len(rec.Taxes)), strconv.Itoa(len(rec.Fees)),
		resortFee, parkingFee,
		childrenFreeAge, adultCharge, deposit,
		strconv.Itoa(len(rec.Promotions)),
		rec.ScrapedAt.UTC().Format(time.RFC3339),
		strOrEmpty(rec.ScrapingNotes),
	}
}

func strOrEmpty(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func writeJSON(path string, v interface{}) error {
	raw, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return utils.WrapErrorf(utils.ErrParsing, "JSON encode for %s: %v", path, err)
	}
	if err := os.WriteFile(path, append(raw, '\n'), 0o644); err != nil {
		return utils.WrapErrorf(utils.ErrFilesystem, "write %s: %v", path, err)
	}
	return nil
}
