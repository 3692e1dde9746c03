// Copyright The Linux Foundation and each contributor to LFX.
// SPDX-License-Identifier: MIT

package main

import (
	"flag"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/linuxfoundation/lfx-v2-attendance-service/internal/logging"
)

// flags are the command line flags for the attendance service.
type flags struct {
	Debug      bool
	Port       string
	PortSet    bool // -p given explicitly
	Bind       string
	ConfigFile string
}

// environment is the runtime configuration of the attendance service. It is
// read from an optional YAML file first, then overridden by environment variables.
type environment struct {
	Port            string        `yaml:"port"`
	NATSURL         string        `yaml:"nats_url"`
	NotifyTrigger   string        `yaml:"notify_trigger"`
	Recipients      []string      `yaml:"recipients"`
	PipelineTimeout time.Duration `yaml:"pipeline_timeout"`
	NotifyTimeout   time.Duration `yaml:"notify_timeout"`
	Zoom            zoomConfig    `yaml:"zoom"`
	Reports         reportConfig  `yaml:"reports"`
	SMTP            smtpConfig    `yaml:"smtp"`
}

// zoomConfig holds Zoom-specific configuration
type zoomConfig struct {
	AccountID          string `yaml:"account_id"`
	ClientID           string `yaml:"client_id"`
	ClientSecret       string `yaml:"client_secret"`
	WebhookSecretToken string `yaml:"webhook_secret_token"`
	// SkipWebhookValidation accepts unsigned deliveries, for local development only.
	SkipWebhookValidation bool `yaml:"skip_webhook_validation"`
	// UseMockClient serves canned reports instead of calling Zoom, for local development only.
	UseMockClient  bool          `yaml:"use_mock_client"`
	ReplayWindow   time.Duration `yaml:"replay_window"`
	BaseURL        string        `yaml:"base_url"`
	AuthURL        string        `yaml:"auth_url"`
	MaxReportPages int           `yaml:"max_report_pages"`
	MaxRetries     int           `yaml:"max_retries"`
}

// reportConfig holds the report directories.
type reportConfig struct {
	RawDir       string `yaml:"raw_dir"`
	CSVDir       string `yaml:"csv_dir"`
	ProcessedDir string `yaml:"processed_dir"`
}

// smtpConfig holds the mail transport settings. An empty host selects the no-op sender.
type smtpConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	From     string `yaml:"from"`
	FromName string `yaml:"from_name"`
	Username string `yaml:"username"`
	Password string `yaml:"password"`
}

// IsConfigured returns true if all required Zoom API credentials are provided
func (z zoomConfig) IsConfigured() bool {
	return z.AccountID != "" && z.ClientID != "" && z.ClientSecret != ""
}

func defaultEnvironment() environment {
	return environment{
		Port:          "8080",
		NotifyTrigger: "direct",
		Reports: reportConfig{
			RawDir:       "/app/downloads",
			CSVDir:       "/app/savedCsv",
			ProcessedDir: "/app/csvProcessed",
		},
		SMTP: smtpConfig{
			Port: 587,
		},
	}
}

// parseFlags parses command line flags for the attendance service
func parseFlags(defaultPort string) flags {
	var debug = flag.Bool("d", false, "enable debug logging")
	var port = flag.String("p", defaultPort, "listen port")
	var bind = flag.String("bind", "*", "interface to bind on")
	var configFile = flag.String("config", os.Getenv("ATTENDANCE_CONFIG"), "optional YAML configuration file")

	flag.Usage = func() {
		flag.PrintDefaults()
		os.Exit(2)
	}
	flag.Parse()

	portSet := false
	flag.Visit(func(f *flag.Flag) {
		if f.Name == "p" {
			portSet = true
		}
	})

	// Based on the debug flag, set the log level environment variable used by [logging.InitStructureLogConfig]
	if *debug {
		err := os.Setenv("LOG_LEVEL", "debug")
		if err != nil {
			slog.With(logging.ErrKey, err).Error("error setting log level")
			os.Exit(1)
		}
	}

	return flags{
		Debug:      *debug,
		Port:       *port,
		PortSet:    portSet,
		Bind:       *bind,
		ConfigFile: *configFile,
	}
}

// loadEnvironment builds the configuration from the defaults, the optional
// YAML file and the process environment, in that order of precedence.
func loadEnvironment(configFile string, getenv func(string) string) (environment, error) {
	env := defaultEnvironment()

	if configFile != "" {
		data, err := os.ReadFile(configFile)
		if err != nil {
			return env, fmt.Errorf("reading config file: %w", err)
		}
		if err := yaml.Unmarshal(data, &env); err != nil {
			return env, fmt.Errorf("parsing config file %s: %w", configFile, err)
		}
	}

	if err := applyEnv(&env, getenv); err != nil {
		return env, err
	}
	return env, nil
}

// applyEnv overrides configuration values with the environment variables that are set.
func applyEnv(env *environment, getenv func(string) string) error {
	setString := func(key string, target *string) {
		if v := getenv(key); v != "" {
			*target = v
		}
	}
	setInt := func(key string, target *int) error {
		if v := getenv(key); v != "" {
			n, err := strconv.Atoi(v)
			if err != nil {
				return fmt.Errorf("invalid %s: %w", key, err)
			}
			*target = n
		}
		return nil
	}
	setDuration := func(key string, target *time.Duration) error {
		if v := getenv(key); v != "" {
			d, err := time.ParseDuration(v)
			if err != nil {
				return fmt.Errorf("invalid %s: %w", key, err)
			}
			*target = d
		}
		return nil
	}

	setString("PORT", &env.Port)
	setString("NATS_URL", &env.NATSURL)
	setString("NOTIFY_TRIGGER", &env.NotifyTrigger)
	if v := getenv("REPORT_RECIPIENTS"); v != "" {
		env.Recipients = splitList(v)
	}

	setString("ZOOM_ACCOUNT_ID", &env.Zoom.AccountID)
	setString("ZOOM_CLIENT_ID", &env.Zoom.ClientID)
	setString("ZOOM_CLIENT_SECRET", &env.Zoom.ClientSecret)
	setString("ZOOM_WEBHOOK_SECRET_TOKEN", &env.Zoom.WebhookSecretToken)
	setString("ZOOM_API_BASE_URL", &env.Zoom.BaseURL)
	setString("ZOOM_AUTH_URL", &env.Zoom.AuthURL)
	if v := getenv("ZOOM_SKIP_WEBHOOK_VALIDATION"); v != "" {
		env.Zoom.SkipWebhookValidation = v == "true"
	}
	if v := getenv("ZOOM_USE_MOCK_CLIENT"); v != "" {
		env.Zoom.UseMockClient = v == "true"
	}

	setString("REPORT_RAW_DIR", &env.Reports.RawDir)
	setString("REPORT_CSV_DIR", &env.Reports.CSVDir)
	setString("REPORT_PROCESSED_DIR", &env.Reports.ProcessedDir)

	setString("SMTP_HOST", &env.SMTP.Host)
	setString("SMTP_FROM", &env.SMTP.From)
	setString("SMTP_FROM_NAME", &env.SMTP.FromName)
	setString("SMTP_USERNAME", &env.SMTP.Username)
	setString("SMTP_PASSWORD", &env.SMTP.Password)

	for _, fn := range []func() error{
		func() error { return setInt("SMTP_PORT", &env.SMTP.Port) },
		func() error { return setInt("ZOOM_MAX_REPORT_PAGES", &env.Zoom.MaxReportPages) },
		func() error { return setInt("ZOOM_MAX_RETRIES", &env.Zoom.MaxRetries) },
		func() error { return setDuration("ZOOM_WEBHOOK_REPLAY_WINDOW", &env.Zoom.ReplayWindow) },
		func() error { return setDuration("PIPELINE_TIMEOUT", &env.PipelineTimeout) },
		func() error { return setDuration("NOTIFY_TIMEOUT", &env.NotifyTimeout) },
	} {
		if err := fn(); err != nil {
			return err
		}
	}
	return nil
}

// splitList splits a comma separated list, dropping empty entries.
func splitList(value string) []string {
	var out []string
	for _, part := range strings.Split(value, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
