package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"meanrevbacktest/internal/domain"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

type DataSource string

const (
	DataSource_Yahoo    DataSource = "yahoo"
	DataSource_Alpaca   DataSource = "alpaca"
	DataSource_Csv      DataSource = "csv"
	DataSource_Postgres DataSource = "postgres"
)

type RiskFreeSource string

const (
	RiskFreeSource_Fixed    RiskFreeSource = "fixed"
	RiskFreeSource_Treasury RiskFreeSource = "treasury"
)

const envPrefix = "MEANREV_"

type AlpacaConfig struct {
	ApiKey    string `yaml:"api_key"`
	ApiSecret string `yaml:"api_secret"`
	Endpoint  string `yaml:"endpoint"`
}

type Config struct {
	Assets    []string `yaml:"assets" validate:"required,min=1,dive,required"`
	StartDate string   `yaml:"start_date" validate:"required,datetime=2006-01-02"`
	EndDate   string   `yaml:"end_date" validate:"required,datetime=2006-01-02"`

	InitialCapital  float64 `yaml:"initial_capital" validate:"gt=0"`
	LookbackWindow  int     `yaml:"lookback_window" validate:"gte=2"`
	EntryZScore     float64 `yaml:"entry_zscore" validate:"gt=0"`
	ExitZScore      float64 `yaml:"exit_zscore" validate:"gte=0,ltfield=EntryZScore"`
	MaxPositionSize float64 `yaml:"max_position_size" validate:"gt=0,lte=1"`
	TransactionCost float64 `yaml:"transaction_cost" validate:"gte=0,lt=0.01"`

	RiskFreeRate   float64        `yaml:"risk_free_rate" validate:"gte=0,lt=1"`
	RiskFreeSource RiskFreeSource `yaml:"risk_free_source" validate:"omitempty,oneof=fixed treasury"`

	DataSource  DataSource   `yaml:"data_source" validate:"omitempty,oneof=yahoo alpaca csv postgres"`
	CsvPath     string       `yaml:"csv_path" validate:"required_if=DataSource csv"`
	DatabaseUrl string       `yaml:"database_url" validate:"required_if=DataSource postgres,required_if=CachePrices true"`
	CachePrices bool         `yaml:"cache_prices"`
	Alpaca      AlpacaConfig `yaml:"alpaca"`
}

var validate = validator.New()

// Load reads a yaml config file and applies env overrides. It does not
// validate, so callers can layer cli overrides on top first.
func Load(path string) (*Config, error) {
	f, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config %s: %w", path, err)
	}

	cfg := Config{}
	if err := yaml.Unmarshal(f, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config %s: %w", path, err)
	}
	cfg.applyDefaults()
	cfg.applyEnv()

	return &cfg, nil
}

// Defaults returns a config with only the data source settings filled
// in, for processes like the api that take strategy params per request
func Defaults() Config {
	cfg := Config{}
	cfg.applyDefaults()
	cfg.applyEnv()
	return cfg
}

func (c *Config) applyDefaults() {
	if c.DataSource == "" {
		c.DataSource = DataSource_Yahoo
	}
	if c.RiskFreeSource == "" {
		c.RiskFreeSource = RiskFreeSource_Fixed
	}
	if c.Alpaca.Endpoint == "" {
		c.Alpaca.Endpoint = "https://data.alpaca.markets"
	}
}

// credentials are never expected to live in the yaml file
func (c *Config) applyEnv() {
	if v := os.Getenv(envPrefix + "ALPACA_API_KEY"); v != "" {
		c.Alpaca.ApiKey = v
	}
	if v := os.Getenv(envPrefix + "ALPACA_API_SECRET"); v != "" {
		c.Alpaca.ApiSecret = v
	}
	if v := os.Getenv(envPrefix + "DATABASE_URL"); v != "" {
		c.DatabaseUrl = v
	}
}

type Overrides struct {
	StartDate string
	EndDate   string
	Assets    []string
}

func (c *Config) ApplyOverrides(o Overrides) {
	if o.StartDate != "" {
		c.StartDate = o.StartDate
	}
	if o.EndDate != "" {
		c.EndDate = o.EndDate
	}
	if len(o.Assets) > 0 {
		assets := make([]string, 0, len(o.Assets))
		for _, a := range o.Assets {
			assets = append(assets, strings.ToUpper(strings.TrimSpace(a)))
		}
		c.Assets = assets
	}
}

// Validate fails fast on anything the backtest core assumes about its
// inputs. All field errors are reported together.
func (c Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		var validationErrors validator.ValidationErrors
		if errors.As(err, &validationErrors) {
			return fmt.Errorf("invalid config: %s", describe(validationErrors))
		}
		return fmt.Errorf("invalid config: %w", err)
	}

	start, end, err := c.Dates()
	if err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	if !end.After(start) {
		return fmt.Errorf("invalid config: end_date %s must be after start_date %s", c.EndDate, c.StartDate)
	}

	seen := map[string]bool{}
	for _, a := range c.Assets {
		if seen[a] {
			return fmt.Errorf("invalid config: duplicate asset %s", a)
		}
		seen[a] = true
	}

	if c.DataSource == DataSource_Alpaca && (c.Alpaca.ApiKey == "" || c.Alpaca.ApiSecret == "") {
		return fmt.Errorf("invalid config: alpaca data source requires %sALPACA_API_KEY and %sALPACA_API_SECRET", envPrefix, envPrefix)
	}

	return nil
}

func (c Config) Dates() (time.Time, time.Time, error) {
	start, err := time.Parse(time.DateOnly, c.StartDate)
	if err != nil {
		return time.Time{}, time.Time{}, fmt.Errorf("failed to parse start_date: %w", err)
	}
	end, err := time.Parse(time.DateOnly, c.EndDate)
	if err != nil {
		return time.Time{}, time.Time{}, fmt.Errorf("failed to parse end_date: %w", err)
	}
	return start, end, nil
}

func (c Config) StrategyParams() domain.StrategyParams {
	return domain.StrategyParams{
		LookbackWindow:  c.LookbackWindow,
		EntryZScore:     c.EntryZScore,
		ExitZScore:      c.ExitZScore,
		MaxPositionSize: c.MaxPositionSize,
		InitialCapital:  c.InitialCapital,
		TransactionCost: c.TransactionCost,
		RiskFreeRate:    c.RiskFreeRate,
	}
}

// Summary lists the config as key/value pairs for logging, with
// credentials left out
func (c Config) Summary() []interface{} {
	return []interface{}{
		"assets", c.Assets,
		"start_date", c.StartDate,
		"end_date", c.EndDate,
		"initial_capital", c.InitialCapital,
		"lookback_window", c.LookbackWindow,
		"entry_zscore", c.EntryZScore,
		"exit_zscore", c.ExitZScore,
		"max_position_size", c.MaxPositionSize,
		"transaction_cost", c.TransactionCost,
		"risk_free_source", c.RiskFreeSource,
		"risk_free_rate", c.RiskFreeRate,
		"data_source", c.DataSource,
		"cache_prices", c.CachePrices,
	}
}

func describe(errs validator.ValidationErrors) string {
	msgs := []string{}
	for _, e := range errs {
		field := yamlName(e.StructField())
		switch e.Tag() {
		case "ltfield":
			msgs = append(msgs, fmt.Sprintf("%s (%v) must be less than %s", field, e.Value(), yamlName(e.Param())))
		case "required", "required_if":
			msgs = append(msgs, fmt.Sprintf("missing required key %s", field))
		case "datetime":
			msgs = append(msgs, fmt.Sprintf("%s (%v) must be a YYYY-MM-DD date", field, e.Value()))
		case "oneof":
			msgs = append(msgs, fmt.Sprintf("%s (%v) must be one of [%s]", field, e.Value(), e.Param()))
		default:
			msgs = append(msgs, fmt.Sprintf("%s (%v) failed %s=%s", field, e.Value(), e.Tag(), e.Param()))
		}
	}
	return strings.Join(msgs, "; ")
}

var yamlNames = map[string]string{
	"Assets":          "assets",
	"StartDate":       "start_date",
	"EndDate":         "end_date",
	"InitialCapital":  "initial_capital",
	"LookbackWindow":  "lookback_window",
	"EntryZScore":     "entry_zscore",
	"ExitZScore":      "exit_zscore",
	"MaxPositionSize": "max_position_size",
	"TransactionCost": "transaction_cost",
	"RiskFreeRate":    "risk_free_rate",
	"RiskFreeSource":  "risk_free_source",
	"DataSource":      "data_source",
	"CsvPath":         "csv_path",
	"DatabaseUrl":     "database_url",
}

func yamlName(field string) string {
	if name, ok := yamlNames[field]; ok {
		return name
	}
	return field
}
