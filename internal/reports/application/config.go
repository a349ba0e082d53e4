package application

import (
	"errors"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"

	reports "geofleet-cloud/internal/reports/domain"
)

// KindConfig identifies the remote report template backing one report kind.
type KindConfig struct {
	ResourceID  int64  `yaml:"resource_id"`
	TemplateID  int64  `yaml:"template_id"`
	ObjectID    int64  `yaml:"object_id"`
	ObjectSecID string `yaml:"object_sec_id"`
}

// Config defines report sync configuration.
type Config struct {
	Kinds             map[string]KindConfig `yaml:"kinds"`
	KindOrder         []string              `yaml:"kind_order"`
	Lookback          time.Duration         `yaml:"lookback"`
	InterKindDelay    time.Duration         `yaml:"inter_kind_delay"`
	PollInterval      time.Duration         `yaml:"poll_interval"`
	MaxPollAttempts   int                   `yaml:"max_poll_attempts"`
	BackfillWindow    time.Duration         `yaml:"backfill_window"`
	BackfillThreshold int                   `yaml:"backfill_threshold"`
	SessionFile       string                `yaml:"session_file"`
	SessionTTL        time.Duration         `yaml:"session_ttl"`
}

// Report kind names. UNIDADES is the per-unit report; the others are the
// per-facility-group geofence reports.
const (
	KindUnidades      = "UNIDADES"
	KindPiscinas      = "PISCINAS"
	KindCamaroneras   = "CAMARONERAS"
	KindHieleras      = "HIELERAS"
	KindProhibiciones = "PROHIBICIONES"
)

func defaultKinds() map[string]KindConfig {
	geofenceKind := func(secID string) KindConfig {
		return KindConfig{
			ResourceID:  600254226,
			TemplateID:  16,
			ObjectID:    600254226,
			ObjectSecID: secID,
		}
	}
	return map[string]KindConfig{
		KindUnidades: {
			ResourceID:  600254226,
			TemplateID:  17,
			ObjectID:    600489149,
			ObjectSecID: "0",
		},
		KindPiscinas:      geofenceKind("4"),
		KindCamaroneras:   geofenceKind("13"),
		KindHieleras:      geofenceKind("10"),
		KindProhibiciones: geofenceKind("3"),
	}
}

// LoadConfig loads config from yaml or env. A yaml file named by
// REPORTS_CONFIG overrides the built-in defaults.
func LoadConfig() (Config, error) {
	cfg := Config{
		Kinds:             defaultKinds(),
		KindOrder:         []string{KindUnidades, KindCamaroneras, KindHieleras, KindPiscinas, KindProhibiciones},
		Lookback:          getenvDurationDefault("REPORTS_LOOKBACK", 6*time.Hour),
		InterKindDelay:    getenvDurationDefault("REPORTS_INTER_KIND_DELAY", 15*time.Second),
		PollInterval:      500 * time.Millisecond,
		MaxPollAttempts:   120,
		BackfillWindow:    getenvDurationDefault("REPORTS_BACKFILL_WINDOW", 60*24*time.Hour),
		BackfillThreshold: getenvIntDefault("REPORTS_BACKFILL_THRESHOLD", 500),
		SessionFile:       getenvDefault("WIALON_SESSION_FILE", "session.json"),
		SessionTTL:        getenvDurationDefault("WIALON_SESSION_TTL", 5*time.Minute),
	}

	if path := os.Getenv("REPORTS_CONFIG"); path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return cfg, err
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, err
		}
	}

	if len(cfg.Kinds) == 0 {
		return cfg, errors.New("reports: no report kinds configured")
	}
	for _, kind := range cfg.KindOrder {
		if _, ok := cfg.Kinds[kind]; !ok {
			return cfg, errors.New("reports: kind order references unknown kind " + kind)
		}
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = 500 * time.Millisecond
	}
	if cfg.MaxPollAttempts <= 0 {
		cfg.MaxPollAttempts = 120
	}
	return cfg, nil
}

// KindFor returns the template configuration of a report kind.
func (c Config) KindFor(kind string) (KindConfig, error) {
	if kc, ok := c.Kinds[kind]; ok {
		return kc, nil
	}
	return KindConfig{}, reports.ErrUnknownKind
}

func getenvDefault(key, fallback string) string {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	return value
}

func getenvIntDefault(key string, fallback int) int {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return fallback
	}
	return parsed
}

func getenvDurationDefault(key string, fallback time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	parsed, err := time.ParseDuration(value)
	if err != nil {
		return fallback
	}
	return parsed
}
