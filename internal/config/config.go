// Package config assembles the runtime configuration from defaults, an
// optional YAML file and NANOQC_* environment variables. Precedence is
// environment over file over defaults.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/nanoqc/nanoqc/internal/qc"
	"github.com/nanoqc/nanoqc/internal/report"
	"github.com/nanoqc/nanoqc/internal/seqsum"
)

// Config is the resolved runtime configuration.
type Config struct {
	// Source is the glob of sequencing summary files to aggregate.
	Source  string   `yaml:"source"`
	RunType string   `yaml:"run_type"`
	RunIDs  []string `yaml:"run_ids"`

	MinPassQual   float64 `yaml:"min_pass_qual"`
	SampleSize    int     `yaml:"sample_size"`
	MinBarcodePct float64 `yaml:"min_barcode_pct"`
	DensityBins   int     `yaml:"density_bins"`
	TimeBins      int     `yaml:"time_bins"`

	OutputJSON string `yaml:"output_json"`
	OutputXLSX string `yaml:"output_xlsx"`
	DBPath     string `yaml:"db_path"`

	Listen    string `yaml:"listen"`
	RateLimit int    `yaml:"rate_limit"`

	Watch         bool          `yaml:"watch"`
	WatchDebounce time.Duration `yaml:"watch_debounce"`

	LogLevel string `yaml:"log_level"`
}

// Defaults returns the baseline configuration before file and environment
// overrides are applied.
func Defaults() Config {
	return Config{
		MinPassQual:   qc.DefaultMinPassQual,
		SampleSize:    qc.DefaultSampleSize,
		MinBarcodePct: qc.DefaultMinBarcodePct,
		DensityBins:   qc.DefaultDensityBins,
		TimeBins:      qc.DefaultTimeBins,
		OutputJSON:    "nanoqc_report.json",
		DBPath:        "nanoqc.db",
		Listen:        ":8080",
		RateLimit:     60,
		WatchDebounce: 2 * time.Second,
		LogLevel:      "info",
	}
}

// Load resolves the configuration: defaults, then the YAML file at path
// (skipped when path is empty), then NANOQC_* environment variables.
func Load(path string) (Config, error) {
	cfg := Defaults()

	if path != "" {
		if err := applyFile(&cfg, path); err != nil {
			return Config{}, err
		}
	}
	applyEnv(&cfg)

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func applyFile(cfg *Config, path string) error {
	raw, err := os.ReadFile(path) // #nosec G304 -- operator-supplied config path
	if err != nil {
		return fmt.Errorf("read config file: %w", err)
	}

	// Pointer fields distinguish "absent" from zero so the file only
	// overrides what it actually sets.
	var f struct {
		Source        *string  `yaml:"source"`
		RunType       *string  `yaml:"run_type"`
		RunIDs        []string `yaml:"run_ids"`
		MinPassQual   *float64 `yaml:"min_pass_qual"`
		SampleSize    *int     `yaml:"sample_size"`
		MinBarcodePct *float64 `yaml:"min_barcode_pct"`
		DensityBins   *int     `yaml:"density_bins"`
		TimeBins      *int     `yaml:"time_bins"`
		OutputJSON    *string  `yaml:"output_json"`
		OutputXLSX    *string  `yaml:"output_xlsx"`
		DBPath        *string  `yaml:"db_path"`
		Listen        *string  `yaml:"listen"`
		RateLimit     *int     `yaml:"rate_limit"`
		Watch         *bool    `yaml:"watch"`
		WatchDebounce *string  `yaml:"watch_debounce"`
		LogLevel      *string  `yaml:"log_level"`
	}
	if err := yaml.Unmarshal(raw, &f); err != nil {
		return fmt.Errorf("parse config file %s: %w", path, err)
	}

	if f.Source != nil {
		cfg.Source = *f.Source
	}
	if f.RunType != nil {
		cfg.RunType = *f.RunType
	}
	if f.RunIDs != nil {
		cfg.RunIDs = f.RunIDs
	}
	if f.MinPassQual != nil {
		cfg.MinPassQual = *f.MinPassQual
	}
	if f.SampleSize != nil {
		cfg.SampleSize = *f.SampleSize
	}
	if f.MinBarcodePct != nil {
		cfg.MinBarcodePct = *f.MinBarcodePct
	}
	if f.DensityBins != nil {
		cfg.DensityBins = *f.DensityBins
	}
	if f.TimeBins != nil {
		cfg.TimeBins = *f.TimeBins
	}
	if f.OutputJSON != nil {
		cfg.OutputJSON = *f.OutputJSON
	}
	if f.OutputXLSX != nil {
		cfg.OutputXLSX = *f.OutputXLSX
	}
	if f.DBPath != nil {
		cfg.DBPath = *f.DBPath
	}
	if f.Listen != nil {
		cfg.Listen = *f.Listen
	}
	if f.RateLimit != nil {
		cfg.RateLimit = *f.RateLimit
	}
	if f.Watch != nil {
		cfg.Watch = *f.Watch
	}
	if f.WatchDebounce != nil {
		d, derr := time.ParseDuration(*f.WatchDebounce)
		if derr != nil {
			return fmt.Errorf("parse config file %s: watch_debounce: %w", path, derr)
		}
		cfg.WatchDebounce = d
	}
	if f.LogLevel != nil {
		cfg.LogLevel = *f.LogLevel
	}
	return nil
}

func applyEnv(cfg *Config) {
	cfg.Source = ParseString("NANOQC_SOURCE", cfg.Source)
	cfg.RunType = ParseString("NANOQC_RUN_TYPE", cfg.RunType)
	cfg.RunIDs = ParseList("NANOQC_RUN_IDS", cfg.RunIDs)
	cfg.MinPassQual = ParseFloat("NANOQC_MIN_PASS_QUAL", cfg.MinPassQual)
	cfg.SampleSize = ParseInt("NANOQC_SAMPLE_SIZE", cfg.SampleSize)
	cfg.MinBarcodePct = ParseFloat("NANOQC_MIN_BARCODE_PCT", cfg.MinBarcodePct)
	cfg.DensityBins = ParseInt("NANOQC_DENSITY_BINS", cfg.DensityBins)
	cfg.TimeBins = ParseInt("NANOQC_TIME_BINS", cfg.TimeBins)
	cfg.OutputJSON = ParseString("NANOQC_OUTPUT_JSON", cfg.OutputJSON)
	cfg.OutputXLSX = ParseString("NANOQC_OUTPUT_XLSX", cfg.OutputXLSX)
	cfg.DBPath = ParseString("NANOQC_DB_PATH", cfg.DBPath)
	cfg.Listen = ParseString("NANOQC_LISTEN", cfg.Listen)
	cfg.RateLimit = ParseInt("NANOQC_RATE_LIMIT", cfg.RateLimit)
	cfg.Watch = ParseBool("NANOQC_WATCH", cfg.Watch)
	cfg.WatchDebounce = ParseDuration("NANOQC_WATCH_DEBOUNCE", cfg.WatchDebounce)
	cfg.LogLevel = ParseString("NANOQC_LOG_LEVEL", cfg.LogLevel)
}

// Validate rejects configurations that cannot produce a report.
func (c Config) Validate() error {
	if c.Source == "" {
		return fmt.Errorf("source glob is required (NANOQC_SOURCE)")
	}
	switch seqsum.RunType(c.RunType) {
	case "", seqsum.RunType1D, seqsum.RunType1D2:
	default:
		return fmt.Errorf("invalid run type %q (want 1D or 1D2)", c.RunType)
	}
	if c.MinPassQual < 0 {
		return fmt.Errorf("min pass quality must be >= 0 (got %g)", c.MinPassQual)
	}
	if c.SampleSize < 0 {
		return fmt.Errorf("sample size must be >= 0 (got %d)", c.SampleSize)
	}
	if c.MinBarcodePct < 0 || c.MinBarcodePct > 100 {
		return fmt.Errorf("min barcode percent must be in [0,100] (got %g)", c.MinBarcodePct)
	}
	if c.DensityBins < 2 {
		return fmt.Errorf("density bins must be >= 2 (got %d)", c.DensityBins)
	}
	if c.TimeBins < 2 {
		return fmt.Errorf("time bins must be >= 2 (got %d)", c.TimeBins)
	}
	if c.RateLimit < 0 {
		return fmt.Errorf("rate limit must be >= 0 (got %d)", c.RateLimit)
	}
	if c.Watch && c.WatchDebounce <= 0 {
		return fmt.Errorf("watch debounce must be > 0 (got %s)", c.WatchDebounce)
	}
	return nil
}

// QC translates the resolved configuration into aggregation settings.
func (c Config) QC() qc.Config {
	return qc.Config{
		MinPassQual: c.MinPassQual,
		SampleSize:  c.SampleSize,
	}
}

// Params translates the resolved configuration into artifact parameters.
func (c Config) Params() report.Params {
	p := report.DefaultParams()
	p.DensityBins = c.DensityBins
	p.TimeBins = c.TimeBins
	p.MinBarcodePct = c.MinBarcodePct
	return p
}

// LoadOptions translates the resolved configuration into parser options.
func (c Config) LoadOptions() seqsum.Options {
	return seqsum.Options{
		RunType: seqsum.RunType(c.RunType),
		RunIDs:  c.RunIDs,
	}
}
