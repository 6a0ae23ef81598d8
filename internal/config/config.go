package config

import (
	"errors"
	"fmt"
	"math"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config represents the application configuration
type Config struct {
	LogLevel string         `yaml:"log_level"`
	Timezone string         `yaml:"timezone"`
	Server   ServerConfig   `yaml:"server"`
	Database DatabaseConfig `yaml:"database"`
	Metrics  MetricsConfig  `yaml:"metrics"`
	LLM      LLMConfig      `yaml:"llm"`

	Standards                  []StandardConfig          `yaml:"standards"`
	BaselineTotal              float64                   `yaml:"baseline_total"`
	DefaultTotalWeightPerGuest float64                   `yaml:"default_total_weight_per_guest"`
	FinancialTargetPerGuest    float64                   `yaml:"financial_target_per_guest"`
	BriefingTolerance          float64                   `yaml:"briefing_tolerance"`
	Costs                      CostConfig                `yaml:"costs"`
	UnitRules                  map[string]UnitRuleConfig `yaml:"unit_rules"`
	Groups                     []GroupConfig             `yaml:"groups"`
	Schedule                   map[string][]WindowConfig `yaml:"schedule"`
	Compliance                 ComplianceConfig          `yaml:"compliance"`
	Forecast                   ForecastConfig            `yaml:"forecast"`
	Variance                   VarianceConfig            `yaml:"variance"`
	Stores                     []StoreConfig             `yaml:"stores"`
}

type ServerConfig struct {
	Port        int      `yaml:"port"`
	CORSOrigins []string `yaml:"cors_origins"`
}

type DatabaseConfig struct {
	Driver  string `yaml:"driver"`
	DSN     string `yaml:"dsn"`
	LogMode bool   `yaml:"log_mode"`
}

type MetricsConfig struct {
	Enabled bool   `yaml:"enabled"`
	Port    int    `yaml:"port"`
	Path    string `yaml:"path"`
}

// LLMConfig controls the optional rewording of prep briefings.
type LLMConfig struct {
	Enabled        bool   `yaml:"enabled"`
	Provider       string `yaml:"provider"`
	Model          string `yaml:"model"`
	APIKey         string `yaml:"api_key"`
	TimeoutSeconds int    `yaml:"timeout_seconds"`

	// Azure OpenAI only.
	Endpoint   string `yaml:"endpoint"`
	Deployment string `yaml:"deployment"`
}

// StandardConfig is one entry of the protein standards catalog.
type StandardConfig struct {
	Protein  string  `yaml:"protein"`
	Fraction float64 `yaml:"fraction"`
}

type CostConfig struct {
	LookbackDays int                `yaml:"lookback_days"`
	Default      float64            `yaml:"default"`
	Fallback     map[string]float64 `yaml:"fallback"`
}

// UnitRuleConfig declares how a protein's weight converts to prep units.
type UnitRuleConfig struct {
	Type             string  `yaml:"type"`
	UnitName         string  `yaml:"unit_name"`
	UnitWeight       float64 `yaml:"unit_weight"`
	PiecesPerSkewer  int     `yaml:"pieces_per_skewer"`
	PieceWeight      float64 `yaml:"piece_weight"`
	Yield            float64 `yaml:"yield"`
	HighVolumeGuests int     `yaml:"high_volume_guests"`
	HighVolumePieces int     `yaml:"high_volume_pieces"`
}

type GroupConfig struct {
	Key        string   `yaml:"key"`
	Members    []string `yaml:"members"`
	DinnerOnly bool     `yaml:"dinner_only"`
}

// WindowConfig is a shift interval on a weekday, times as "HH:MM".
type WindowConfig struct {
	Start string `yaml:"start"`
	End   string `yaml:"end"`
	Shift string `yaml:"shift"`
}

type ComplianceConfig struct {
	LunchQuota            int      `yaml:"lunch_quota"`
	DinnerQuota           int      `yaml:"dinner_quota"`
	WasteCriticalPercent  float64  `yaml:"waste_critical_percent"`
	WasteWarningPercent   float64  `yaml:"waste_warning_percent"`
	AnalysisForecastGuest int      `yaml:"analysis_forecast_guests"`
	Villains              []string `yaml:"villains"`
}

type ForecastConfig struct {
	Base int `yaml:"base"`
	Step int `yaml:"step"`
}

type VarianceConfig struct {
	TopN int `yaml:"top_n"`
}

type StoreConfig struct {
	ID        uint   `yaml:"id"`
	CompanyID string `yaml:"company_id"`
	Name      string `yaml:"name"`
	Timezone  string `yaml:"timezone"`
}

// Load reads a YAML configuration file over the built-in defaults.
// A missing file yields the defaults.
func Load(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	switch {
	case errors.Is(err, os.ErrNotExist):
	case err != nil:
		return nil, fmt.Errorf("failed to read config %s: %w", path, err)
	default:
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config %s: %w", path, err)
		}
	}

	cfg.applyEnv()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadEnvFile loads a .env file unless running in production.
func LoadEnvFile() {
	if os.Getenv("APP_ENV") != "production" {
		_ = godotenv.Load()
	}
}

func (c *Config) applyEnv() {
	if v := os.Getenv("BRASA_DB_DRIVER"); v != "" {
		c.Database.Driver = v
	}
	if v := os.Getenv("BRASA_DB_DSN"); v != "" {
		c.Database.DSN = v
	}
	if v := os.Getenv("BRASA_TIMEZONE"); v != "" {
		c.Timezone = v
	}
	if v := os.Getenv("OPENAI_API_KEY"); v != "" && c.LLM.APIKey == "" {
		c.LLM.APIKey = v
	}
	if c.LLM.Provider == "azure" {
		if v := os.Getenv("AZURE_OPENAI_ENDPOINT"); v != "" {
			c.LLM.Endpoint = v
		}
		if v := os.Getenv("AZURE_OPENAI_API_KEY"); v != "" {
			c.LLM.APIKey = v
		}
		if v := os.Getenv("AZURE_OPENAI_DEPLOYMENT_NAME"); v != "" {
			c.LLM.Deployment = v
		}
	}
}

// Validate checks catalog, rules, groups and schedule consistency.
func (c *Config) Validate() error {
	if len(c.Standards) == 0 {
		return errors.New("config: standards catalog is empty")
	}
	seen := make(map[string]bool, len(c.Standards))
	var total float64
	for _, s := range c.Standards {
		if strings.TrimSpace(s.Protein) == "" {
			return errors.New("config: standard with empty protein name")
		}
		if s.Fraction < 0 {
			return fmt.Errorf("config: standard %q has negative fraction", s.Protein)
		}
		if seen[strings.ToLower(s.Protein)] {
			return fmt.Errorf("config: duplicate standard %q", s.Protein)
		}
		seen[strings.ToLower(s.Protein)] = true
		total += s.Fraction
	}
	if c.BaselineTotal > 0 && math.Abs(total-c.BaselineTotal) > 1e-6 {
		return fmt.Errorf("config: standards sum to %.4f, baseline is %.4f", total, c.BaselineTotal)
	}
	if c.DefaultTotalWeightPerGuest <= 0 {
		return errors.New("config: default_total_weight_per_guest must be positive")
	}
	if c.Costs.LookbackDays <= 0 {
		return errors.New("config: costs.lookback_days must be positive")
	}

	for protein, rule := range c.UnitRules {
		switch rule.Type {
		case "flat":
			if rule.UnitWeight <= 0 {
				return fmt.Errorf("config: unit rule %q needs a positive unit_weight", protein)
			}
		case "skewer":
			if rule.PiecesPerSkewer <= 0 || rule.PieceWeight <= 0 {
				return fmt.Errorf("config: skewer rule %q needs pieces_per_skewer and piece_weight", protein)
			}
		default:
			return fmt.Errorf("config: unit rule %q has unknown type %q", protein, rule.Type)
		}
	}

	for _, g := range c.Groups {
		for _, m := range g.Members {
			if !seen[strings.ToLower(m)] {
				return fmt.Errorf("config: group %q references unknown protein %q", g.Key, m)
			}
		}
	}

	for day, windows := range c.Schedule {
		if _, ok := ParseWeekday(day); !ok {
			return fmt.Errorf("config: schedule has unknown day %q", day)
		}
		for _, w := range windows {
			start, err := ParseClock(w.Start)
			if err != nil {
				return fmt.Errorf("config: schedule %s: %w", day, err)
			}
			end, err := ParseClock(w.End)
			if err != nil {
				return fmt.Errorf("config: schedule %s: %w", day, err)
			}
			if end <= start {
				return fmt.Errorf("config: schedule %s window %s-%s is empty", day, w.Start, w.End)
			}
			switch strings.ToLower(w.Shift) {
			case "lunch", "dinner", "any":
			default:
				return fmt.Errorf("config: schedule %s has unknown shift %q", day, w.Shift)
			}
		}
	}

	if _, err := c.Location(); err != nil {
		return err
	}
	return nil
}

// Location returns the default store-local zone. Empty means fixed UTC-6.
func (c *Config) Location() (*time.Location, error) {
	return LoadZone(c.Timezone)
}

// LoadZone resolves an IANA zone name; empty returns the fixed UTC-6 zone.
func LoadZone(name string) (*time.Location, error) {
	if name == "" {
		return time.FixedZone("CST", -6*60*60), nil
	}
	loc, err := time.LoadLocation(name)
	if err != nil {
		return nil, fmt.Errorf("config: unknown timezone %q: %w", name, err)
	}
	return loc, nil
}

// ParseClock converts "HH:MM" into minutes since midnight. "24:00" is allowed.
func ParseClock(s string) (int, error) {
	parts := strings.Split(strings.TrimSpace(s), ":")
	if len(parts) != 2 {
		return 0, fmt.Errorf("invalid clock %q", s)
	}
	h, err := strconv.Atoi(parts[0])
	if err != nil {
		return 0, fmt.Errorf("invalid clock %q", s)
	}
	m, err := strconv.Atoi(parts[1])
	if err != nil {
		return 0, fmt.Errorf("invalid clock %q", s)
	}
	if h < 0 || m < 0 || m > 59 || h*60+m > 24*60 {
		return 0, fmt.Errorf("invalid clock %q", s)
	}
	return h*60 + m, nil
}

// ParseWeekday maps a lowercase English day name to time.Weekday.
func ParseWeekday(s string) (time.Weekday, bool) {
	switch strings.ToLower(s) {
	case "sunday":
		return time.Sunday, true
	case "monday":
		return time.Monday, true
	case "tuesday":
		return time.Tuesday, true
	case "wednesday":
		return time.Wednesday, true
	case "thursday":
		return time.Thursday, true
	case "friday":
		return time.Friday, true
	case "saturday":
		return time.Saturday, true
	}
	return time.Sunday, false
}
