// Copyright The Linux Foundation and each contributor to LFX.
// SPDX-License-Identifier: MIT

package main

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func envFrom(values map[string]string) func(string) string {
	return func(key string) string {
		return values[key]
	}
}

func TestLoadEnvironment_Defaults(t *testing.T) {
	env, err := loadEnvironment("", envFrom(nil))
	require.NoError(t, err)

	assert.Equal(t, "8080", env.Port)
	assert.Equal(t, "direct", env.NotifyTrigger)
	assert.Equal(t, "/app/downloads", env.Reports.RawDir)
	assert.Equal(t, "/app/savedCsv", env.Reports.CSVDir)
	assert.Equal(t, "/app/csvProcessed", env.Reports.ProcessedDir)
	assert.Equal(t, 587, env.SMTP.Port)
	assert.Empty(t, env.SMTP.Host)
	assert.Empty(t, env.NATSURL)
	assert.False(t, env.Zoom.IsConfigured())
}

func TestLoadEnvironment_FileThenEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), "attendance.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
port: "9090"
notify_trigger: watch
recipients:
  - ops@example.com
pipeline_timeout: 90s
zoom:
  account_id: file-account
  client_id: file-client
  client_secret: file-secret
  replay_window: 5m
reports:
  processed_dir: /data/processed
smtp:
  host: smtp.example.com
  port: 2525
  from: reports@example.com
`), 0o600))

	env, err := loadEnvironment(path, envFrom(map[string]string{
		"ZOOM_CLIENT_ID":    "env-client",
		"REPORT_RECIPIENTS": "a@example.com, b@example.com,,",
		"SMTP_PORT":         "465",
		"ZOOM_MAX_RETRIES":  "2",
	}))
	require.NoError(t, err)

	assert.Equal(t, "9090", env.Port)
	assert.Equal(t, "watch", env.NotifyTrigger)
	assert.Equal(t, 90*time.Second, env.PipelineTimeout)
	assert.Equal(t, "file-account", env.Zoom.AccountID)
	assert.Equal(t, "env-client", env.Zoom.ClientID, "environment overrides the file")
	assert.Equal(t, 5*time.Minute, env.Zoom.ReplayWindow)
	assert.Equal(t, 2, env.Zoom.MaxRetries)
	assert.True(t, env.Zoom.IsConfigured())
	assert.Equal(t, "/data/processed", env.Reports.ProcessedDir)
	assert.Equal(t, "/app/downloads", env.Reports.RawDir, "unset file values keep their default")
	assert.Equal(t, "smtp.example.com", env.SMTP.Host)
	assert.Equal(t, 465, env.SMTP.Port)
	assert.Equal(t, []string{"a@example.com", "b@example.com"}, env.Recipients)
}

func TestLoadEnvironment_Errors(t *testing.T) {
	t.Run("missing file", func(t *testing.T) {
		_, err := loadEnvironment(filepath.Join(t.TempDir(), "missing.yaml"), envFrom(nil))
		assert.Error(t, err)
	})

	t.Run("malformed file", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "bad.yaml")
		require.NoError(t, os.WriteFile(path, []byte("zoom: [unclosed"), 0o600))
		_, err := loadEnvironment(path, envFrom(nil))
		assert.Error(t, err)
	})

	tests := map[string]string{
		"SMTP_PORT":                  "twenty-five",
		"ZOOM_MAX_REPORT_PAGES":      "many",
		"ZOOM_WEBHOOK_REPLAY_WINDOW": "5 minutes",
		"PIPELINE_TIMEOUT":           "soon",
	}
	for key, value := range tests {
		t.Run(key, func(t *testing.T) {
			_, err := loadEnvironment("", envFrom(map[string]string{key: value}))
			assert.ErrorContains(t, err, key)
		})
	}
}

func TestSplitList(t *testing.T) {
	assert.Nil(t, splitList(""))
	assert.Nil(t, splitList(" , "))
	assert.Equal(t, []string{"a@example.com"}, splitList("a@example.com"))
	assert.Equal(t, []string{"a", "b"}, splitList(" a ,b"))
}
