// Copyright The Linux Foundation and each contributor to LFX.
// SPDX-License-Identifier: MIT

package utils

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var otelEnvVars = []string{
	"OTEL_SERVICE_NAME",
	"OTEL_SERVICE_VERSION",
	"OTEL_EXPORTER_OTLP_PROTOCOL",
	"OTEL_EXPORTER_OTLP_ENDPOINT",
	"OTEL_EXPORTER_OTLP_INSECURE",
	"OTEL_TRACES_EXPORTER",
	"OTEL_TRACES_SAMPLE_RATIO",
	"OTEL_METRICS_EXPORTER",
	"OTEL_LOGS_EXPORTER",
}

// clearOTelEnv blanks every OTEL_* variable for the duration of the test.
func clearOTelEnv(t *testing.T) {
	t.Helper()
	for _, key := range otelEnvVars {
		t.Setenv(key, "")
	}
}

func TestOTelConfigFromEnv(t *testing.T) {
	t.Run("defaults", func(t *testing.T) {
		clearOTelEnv(t)

		cfg := OTelConfigFromEnv()

		assert.Equal(t, OTelConfig{
			ServiceName:       "lfx-v2-attendance-service",
			Protocol:          OTelProtocolGRPC,
			TracesExporter:    OTelExporterNone,
			TracesSampleRatio: 1.0,
			MetricsExporter:   OTelExporterNone,
			LogsExporter:      OTelExporterNone,
		}, cfg)
	})

	t.Run("every variable set", func(t *testing.T) {
		clearOTelEnv(t)
		t.Setenv("OTEL_SERVICE_NAME", "attendance-staging")
		t.Setenv("OTEL_SERVICE_VERSION", "1.2.3")
		t.Setenv("OTEL_EXPORTER_OTLP_PROTOCOL", "http")
		t.Setenv("OTEL_EXPORTER_OTLP_ENDPOINT", "collector:4318")
		t.Setenv("OTEL_EXPORTER_OTLP_INSECURE", "true")
		t.Setenv("OTEL_TRACES_EXPORTER", "otlp")
		t.Setenv("OTEL_TRACES_SAMPLE_RATIO", "0.25")
		t.Setenv("OTEL_METRICS_EXPORTER", "otlp")
		t.Setenv("OTEL_LOGS_EXPORTER", "otlp")

		cfg := OTelConfigFromEnv()

		assert.Equal(t, OTelConfig{
			ServiceName:       "attendance-staging",
			ServiceVersion:    "1.2.3",
			Protocol:          OTelProtocolHTTP,
			Endpoint:          "collector:4318",
			Insecure:          true,
			TracesExporter:    OTelExporterOTLP,
			TracesSampleRatio: 0.25,
			MetricsExporter:   OTelExporterOTLP,
			LogsExporter:      OTelExporterOTLP,
		}, cfg)
	})
}

func TestOTelConfigFromEnv_TracesSampleRatio(t *testing.T) {
	tests := []struct {
		name     string
		value    string
		expected float64
	}{
		{"zero", "0", 0},
		{"half", "0.5", 0.5},
		{"one", "1.0", 1.0},
		{"negative falls back", "-0.5", 1.0},
		{"above one falls back", "1.5", 1.0},
		{"not a number falls back", "often", 1.0},
		{"unset", "", 1.0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clearOTelEnv(t)
			t.Setenv("OTEL_TRACES_SAMPLE_RATIO", tt.value)

			assert.InDelta(t, tt.expected, OTelConfigFromEnv().TracesSampleRatio, 1e-9)
		})
	}
}

func TestOTelConfigFromEnv_Insecure(t *testing.T) {
	for value, expected := range map[string]bool{
		"true":  true,
		"TRUE":  false,
		"1":     false,
		"false": false,
		"":      false,
	} {
		t.Run("value "+value, func(t *testing.T) {
			clearOTelEnv(t)
			t.Setenv("OTEL_EXPORTER_OTLP_INSECURE", value)

			assert.Equal(t, expected, OTelConfigFromEnv().Insecure)
		})
	}
}

func TestSetupOTelSDKWithConfig_ExportersDisabled(t *testing.T) {
	ctx := context.Background()
	shutdown, err := SetupOTelSDKWithConfig(ctx, OTelConfig{
		ServiceName:       "attendance-test",
		Protocol:          OTelProtocolGRPC,
		TracesExporter:    OTelExporterNone,
		TracesSampleRatio: 1.0,
		MetricsExporter:   OTelExporterNone,
		LogsExporter:      OTelExporterNone,
	})
	require.NoError(t, err)
	require.NotNil(t, shutdown)

	assert.NoError(t, shutdown(ctx))
	assert.NoError(t, shutdown(ctx), "shutdown can be called again during graceful stop")
}

func TestSetupOTelSDK(t *testing.T) {
	clearOTelEnv(t)

	ctx := context.Background()
	shutdown, err := SetupOTelSDK(ctx)
	require.NoError(t, err)
	assert.NoError(t, shutdown(ctx))
}

func TestNewResource(t *testing.T) {
	tests := []struct {
		name    string
		service string
		version string
	}{
		{"with version", "lfx-v2-attendance-service", "1.0.0"},
		{"without version", "lfx-v2-attendance-service", ""},
		{"prerelease version", "attendance-staging", "1.0.0-beta.1"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, err := newResource(OTelConfig{ServiceName: tt.service, ServiceVersion: tt.version})
			require.NoError(t, err)

			attrs := map[string]string{}
			for _, attr := range res.Attributes() {
				attrs[string(attr.Key)] = attr.Value.Emit()
			}
			assert.Equal(t, tt.service, attrs["service.name"])
		})
	}
}

func TestNewPropagator(t *testing.T) {
	fields := newPropagator().Fields()

	for _, field := range []string{"traceparent", "tracestate", "baggage", "uber-trace-id"} {
		assert.Contains(t, fields, field)
	}
}
