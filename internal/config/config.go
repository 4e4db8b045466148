// Package config loads and validates the agent configuration. The config
// is a single JSON file written by the init wizard, loaded once at
// startup and immutable for the process lifetime. A malformed or missing
// config is fatal: the agent refuses to run with undefined thresholds.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"

	"github.com/mitinsharma/serverstriker/internal/alert"
)

var validate = validator.New()

// Config is the on-disk agent configuration (sst_config.json).
type Config struct {
	ServerName string `json:"server_name" validate:"required"`
	WebhookURL string `json:"webhook_url" validate:"omitempty,url"`
	// Services is a comma-separated list of systemd units to watch,
	// e.g. "nginx,mysql".
	Services string `json:"services"`

	CheckInterval    int `json:"check_interval" validate:"omitempty,min=5"`    // seconds, gauges and services
	SecurityInterval int `json:"security_interval" validate:"omitempty,min=5"` // seconds, failed logins / failed units
	UpdateInterval   int `json:"update_interval" validate:"omitempty,min=5"`   // seconds, pending updates
	LogScanInterval  int `json:"logscan_interval" validate:"omitempty,min=5"`  // seconds, own-log error scan

	CPUThreshold    float64 `json:"cpu_threshold" validate:"omitempty,gt=0,lte=100"`
	MemoryThreshold float64 `json:"memory_threshold" validate:"omitempty,gt=0,lte=100"`
	DiskThreshold   float64 `json:"disk_threshold" validate:"omitempty,gt=0,lte=100"`
	DiskPath        string  `json:"disk_path"`
	Hysteresis      float64 `json:"hysteresis" validate:"min=0,lte=50"`
	RealertMinutes  int     `json:"realert_minutes" validate:"min=0"`
	LoginLimit      int     `json:"login_limit" validate:"min=0"`
	AuthLogPath     string  `json:"auth_log"`
	DailyReportCron string  `json:"daily_report_cron"`

	APIAddr         string `json:"api_addr"`
	APIPasswordHash string `json:"api_password_hash,omitempty"`
	JWTSecret       string `json:"jwt_secret,omitempty"`
}

// Load reads the config file, applies env overrides and defaults, and
// validates the result.
func Load(path string) (Config, error) {
	// A .env next to the config can override the webhook for container runs.
	_ = godotenv.Load(filepath.Join(filepath.Dir(path), ".env"))

	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("read config %s: %w (run 'serverstriker -init' first)", path, err)
	}
	var cfg Config
	if err := json.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("parse config %s: %w", path, err)
	}

	cfg.applyEnvOverrides()
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Save writes the config to disk, creating the directory when needed.
func (c Config) Save(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create config dir: %w", err)
	}
	data, err := json.MarshalIndent(c, "", "    ")
	if err != nil {
		return fmt.Errorf("encode config: %w", err)
	}
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("write config %s: %w", path, err)
	}
	return nil
}

func (c *Config) applyEnvOverrides() {
	if v := os.Getenv("SERVERSTRIKER_WEBHOOK_URL"); v != "" {
		c.WebhookURL = v
	}
	if v := os.Getenv("SERVERSTRIKER_SERVER_NAME"); v != "" {
		c.ServerName = v
	}
	if v := os.Getenv("SERVERSTRIKER_API_ADDR"); v != "" {
		c.APIAddr = v
	}
}

// ApplyDefaults fills unset fields with the agent defaults.
func (c *Config) ApplyDefaults() {
	if c.CheckInterval == 0 {
		c.CheckInterval = 300
	}
	if c.SecurityInterval == 0 {
		c.SecurityInterval = 3600
	}
	if c.UpdateInterval == 0 {
		c.UpdateInterval = 21600
	}
	if c.LogScanInterval == 0 {
		c.LogScanInterval = 600
	}
	if c.CPUThreshold == 0 {
		c.CPUThreshold = 80
	}
	if c.MemoryThreshold == 0 {
		c.MemoryThreshold = 80
	}
	if c.DiskThreshold == 0 {
		c.DiskThreshold = 80
	}
	if c.DiskPath == "" {
		c.DiskPath = "/"
	}
	if c.Hysteresis == 0 {
		c.Hysteresis = 5
	}
	if c.RealertMinutes == 0 {
		c.RealertMinutes = 30
	}
	if c.LoginLimit == 0 {
		c.LoginLimit = 5
	}
	if c.AuthLogPath == "" {
		c.AuthLogPath = "/var/log/auth.log"
	}
	if c.DailyReportCron == "" {
		c.DailyReportCron = "0 8 * * *"
	}
	if c.APIAddr == "" {
		c.APIAddr = "127.0.0.1:8787"
	}
}

// Validate checks the config shape. Errors here are fatal at startup.
func (c Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	if c.APIPasswordHash != "" && c.JWTSecret == "" {
		return fmt.Errorf("invalid config: api_password_hash set without jwt_secret")
	}
	return nil
}

// ServiceList splits the comma-separated Services field. Supports
// "nginx,mysql" and "nginx, mysql".
func (c Config) ServiceList() []string {
	var out []string
	for _, s := range strings.Split(c.Services, ",") {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}

// AddService appends a unit to the Services field, keeping the list
// sorted and deduplicated.
func (c *Config) AddService(name string) {
	name = strings.TrimSpace(name)
	if name == "" {
		return
	}
	seen := map[string]bool{}
	for _, s := range c.ServiceList() {
		seen[s] = true
	}
	seen[name] = true
	list := make([]string, 0, len(seen))
	for s := range seen {
		list = append(list, s)
	}
	sortStrings(list)
	c.Services = strings.Join(list, ",")
}

func sortStrings(list []string) {
	for i := 1; i < len(list); i++ {
		for j := i; j > 0 && list[j] < list[j-1]; j-- {
			list[j], list[j-1] = list[j-1], list[j]
		}
	}
}

// Checks materialises the immutable check definitions driven by this
// config. agentLog is the agent's own log file, scanned for new error
// lines.
func (c Config) Checks(agentLog string) []alert.Check {
	realert := time.Duration(c.RealertMinutes) * time.Minute
	gaugeIv := time.Duration(c.CheckInterval) * time.Second
	secIv := time.Duration(c.SecurityInterval) * time.Second
	updIv := time.Duration(c.UpdateInterval) * time.Second
	scanIv := time.Duration(c.LogScanInterval) * time.Second

	checks := []alert.Check{
		{
			Name:     "cpu",
			Kind:     alert.KindCPU,
			Interval: gaugeIv,
			Policy:   alert.GaugePolicy(c.CPUThreshold, c.Hysteresis),
			Severity: alert.SeverityWarning,
			Realert:  realert,
		},
		{
			Name:     "memory",
			Kind:     alert.KindMemory,
			Interval: gaugeIv,
			Policy:   alert.GaugePolicy(c.MemoryThreshold, c.Hysteresis),
			Severity: alert.SeverityWarning,
			Realert:  realert,
		},
		{
			Name:     "disk",
			Kind:     alert.KindDisk,
			Target:   c.DiskPath,
			Interval: gaugeIv,
			Policy:   alert.GaugePolicy(c.DiskThreshold, c.Hysteresis),
			Severity: alert.SeverityCritical,
			Realert:  realert,
		},
	}
	for _, svc := range c.ServiceList() {
		checks = append(checks, alert.Check{
			Name:     "service-" + svc,
			Kind:     alert.KindService,
			Target:   svc,
			Interval: gaugeIv,
			Policy:   alert.StatusPolicy(true),
			Severity: alert.SeverityCritical,
			Realert:  realert,
		})
	}
	checks = append(checks,
		alert.Check{
			Name:     "failed-units",
			Kind:     alert.KindFailedUnits,
			Interval: secIv,
			Policy:   alert.CounterPolicy(0),
			Severity: alert.SeverityCritical,
			Realert:  realert,
		},
		alert.Check{
			Name:     "failed-logins",
			Kind:     alert.KindFailedLogins,
			Target:   c.AuthLogPath,
			Interval: secIv,
			Policy:   alert.CounterPolicy(c.LoginLimit),
			Severity: alert.SeverityCritical,
			Realert:  realert,
		},
		alert.Check{
			Name:     "pending-updates",
			Kind:     alert.KindPendingUpdates,
			Interval: updIv,
			Policy:   alert.CounterPolicy(0),
			Severity: alert.SeverityInfo,
			Realert:  0, // one nudge per batch of updates is enough
		},
	)
	if agentLog != "" {
		checks = append(checks, alert.Check{
			Name:     "logscan",
			Kind:     alert.KindLogScan,
			Target:   agentLog,
			Interval: scanIv,
			Policy:   alert.CounterPolicy(0),
			Severity: alert.SeverityWarning,
			Realert:  realert,
		})
	}
	return checks
}

// Redacted returns a copy safe for display: secrets removed, webhook
// truncated the way the original -config output did.
func (c Config) Redacted() Config {
	out := c
	out.APIPasswordHash = ""
	out.JWTSecret = ""
	if len(out.WebhookURL) > 35 {
		out.WebhookURL = out.WebhookURL[:35] + "..."
	}
	return out
}
