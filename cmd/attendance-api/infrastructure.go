// Copyright The Linux Foundation and each contributor to LFX.
// SPDX-License-Identifier: MIT

package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"

	"github.com/linuxfoundation/lfx-v2-attendance-service/internal/domain"
	"github.com/linuxfoundation/lfx-v2-attendance-service/internal/domain/models"
	"github.com/linuxfoundation/lfx-v2-attendance-service/internal/infrastructure/email"
	"github.com/linuxfoundation/lfx-v2-attendance-service/internal/infrastructure/messaging"
	"github.com/linuxfoundation/lfx-v2-attendance-service/internal/infrastructure/store"
	"github.com/linuxfoundation/lfx-v2-attendance-service/internal/infrastructure/watcher"
	"github.com/linuxfoundation/lfx-v2-attendance-service/internal/infrastructure/zoom/api"
	apimocks "github.com/linuxfoundation/lfx-v2-attendance-service/internal/infrastructure/zoom/api/mocks"
	"github.com/linuxfoundation/lfx-v2-attendance-service/internal/infrastructure/zoom/webhook"
	"github.com/linuxfoundation/lfx-v2-attendance-service/internal/logging"
	"github.com/linuxfoundation/lfx-v2-attendance-service/internal/service"
)

const (
	// gracefulShutdownSeconds should be higher than the NATS drain timeout and
	// lower than the pod termination grace period.
	gracefulShutdownSeconds = 25
	natsDrainTimeoutSeconds = 20
)

// stores are the token cache and delivery ledger backends, plus the optional
// event publisher.
type stores struct {
	Tokens domain.TokenStore
	Ledger domain.DeliveryLedger
	Events domain.ReportEventSender
}

// setupNATS connects to NATS when NATS_URL is set. A nil connection means the
// service runs with in-memory stores and without event publication.
func setupNATS(ctx context.Context, env environment, gracefulCloseWG *sync.WaitGroup, done chan os.Signal) (*nats.Conn, error) {
	if env.NATSURL == "" {
		slog.Warn("NATS_URL not set, using in-memory token cache and delivery ledger")
		return nil, nil
	}

	gracefulCloseWG.Add(1)
	conn, err := nats.Connect(
		env.NATSURL,
		nats.DrainTimeout(natsDrainTimeoutSeconds*time.Second),
		nats.ConnectHandler(func(_ *nats.Conn) {
			slog.With("nats_url", env.NATSURL).Info("NATS connection established")
		}),
		nats.ErrorHandler(func(_ *nats.Conn, s *nats.Subscription, err error) {
			if s != nil {
				slog.With(logging.ErrKey, err, "subject", s.Subject).Error("async NATS error")
			} else {
				slog.With(logging.ErrKey, err).Error("async NATS error outside subscription")
			}
		}),
		nats.ClosedHandler(func(_ *nats.Conn) {
			if ctx.Err() != nil {
				// Expected during graceful shutdown.
				gracefulCloseWG.Done()
				return
			}
			slog.Error("NATS connection closed unexpectedly")
			gracefulCloseWG.Done()
			done <- os.Interrupt
		}),
	)
	if err != nil {
		gracefulCloseWG.Done()
		return nil, fmt.Errorf("connecting to NATS: %w", err)
	}
	return conn, nil
}

// getKeyValueStores binds the stores to their KV buckets, creating missing
// buckets, or falls back to process memory when there is no NATS connection.
func getKeyValueStores(ctx context.Context, conn *nats.Conn, env environment) (stores, error) {
	if conn == nil {
		return stores{
			Tokens: store.NewMemoryTokenStore(),
			Ledger: store.NewMemoryDeliveryLedger(),
		}, nil
	}

	js, err := jetstream.New(conn)
	if err != nil {
		return stores{}, fmt.Errorf("creating jetstream context: %w", err)
	}

	tokensKV, err := keyValue(ctx, js, jetstream.KeyValueConfig{
		Bucket:      store.KVStoreNameAccessTokens,
		Description: "provider access token cache",
		History:     1,
	})
	if err != nil {
		return stores{}, err
	}
	deliveriesKV, err := keyValue(ctx, js, jetstream.KeyValueConfig{
		Bucket:      store.KVStoreNameDeliveries,
		Description: "processed meeting occurrences",
		History:     1,
		TTL:         store.DefaultDeliveryRetention,
	})
	if err != nil {
		return stores{}, err
	}

	return stores{
		Tokens: store.NewNatsTokenStore(tokensKV, env.Zoom.AccountID),
		Ledger: store.NewNatsDeliveryLedger(deliveriesKV),
		Events: messaging.NewMessageBuilder(conn),
	}, nil
}

func keyValue(ctx context.Context, js jetstream.JetStream, cfg jetstream.KeyValueConfig) (jetstream.KeyValue, error) {
	kv, err := js.KeyValue(ctx, cfg.Bucket)
	if err == nil {
		return kv, nil
	}
	if !errors.Is(err, jetstream.ErrBucketNotFound) {
		return nil, fmt.Errorf("getting KV bucket %s: %w", cfg.Bucket, err)
	}
	kv, err = js.CreateKeyValue(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("creating KV bucket %s: %w", cfg.Bucket, err)
	}
	slog.With("bucket", cfg.Bucket).Info("created KV bucket")
	return kv, nil
}

// setupEmailService returns the SMTP sender, or the no-op sender when no SMTP
// host is configured.
func setupEmailService(env environment) (domain.EmailService, error) {
	if env.SMTP.Host == "" {
		slog.Warn("SMTP_HOST not set, report emails will only be logged")
		return email.NewNoOpService(), nil
	}
	if env.SMTP.From == "" {
		return nil, errors.New("SMTP_FROM is required when SMTP_HOST is set")
	}
	if len(env.Recipients) == 0 {
		slog.Warn("REPORT_RECIPIENTS not set, report emails cannot be delivered")
	}

	svc, err := email.NewSMTPService(email.SMTPConfig{
		Host:     env.SMTP.Host,
		Port:     env.SMTP.Port,
		From:     env.SMTP.From,
		FromName: env.SMTP.FromName,
		Username: env.SMTP.Username,
		Password: env.SMTP.Password,
	})
	if err != nil {
		return nil, fmt.Errorf("creating SMTP service: %w", err)
	}
	slog.With("host", env.SMTP.Host, "port", env.SMTP.Port).Info("SMTP email service configured")
	return svc, nil
}

// setupZoom builds the Zoom API client and the webhook validator.
func setupZoom(config zoomConfig) (api.ClientAPI, domain.WebhookValidator, error) {
	var client api.ClientAPI
	switch {
	case config.UseMockClient:
		slog.Warn("using the mock Zoom API client, reports are canned")
		client = apimocks.NewMockClient()
	default:
		if !config.IsConfigured() {
			slog.Warn("Zoom API credentials incomplete, token requests will fail",
				"has_account_id", config.AccountID != "",
				"has_client_id", config.ClientID != "",
				"has_client_secret", config.ClientSecret != "")
		}
		client = api.NewClient(api.Config{
			AccountID:    config.AccountID,
			ClientID:     config.ClientID,
			ClientSecret: config.ClientSecret,
			BaseURL:      config.BaseURL,
			AuthURL:      config.AuthURL,
			MaxRetries:   config.MaxRetries,
		})
	}

	if config.SkipWebhookValidation {
		slog.Warn("Zoom webhook signature validation disabled")
		return client, webhook.NewMockWebhookValidator(config.WebhookSecretToken), nil
	}
	if config.WebhookSecretToken == "" {
		return nil, nil, errors.New("ZOOM_WEBHOOK_SECRET_TOKEN is required")
	}

	var opts []webhook.Option
	if config.ReplayWindow > 0 {
		opts = append(opts, webhook.WithMaxClockSkew(config.ReplayWindow))
	}
	return client, webhook.NewZoomWebhookValidator(config.WebhookSecretToken, opts...), nil
}

// reportWatcher pairs the directory watcher with the goroutine consuming its events.
type reportWatcher struct {
	*watcher.Watcher
	consumed chan struct{}
}

// Drain stops the watch and waits until every event already emitted has been
// handled, including any email send it started.
func (r *reportWatcher) Drain(ctx context.Context) error {
	r.Stop()
	select {
	case <-r.consumed:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// startReportWatcher watches the processed directory and hands every new
// processed report to the notifier.
func startReportWatcher(ctx context.Context, dir string, notifier *service.ReportNotifier) (*reportWatcher, error) {
	w := watcher.New(dir, models.IsProcessedReport)
	if err := w.Start(ctx); err != nil {
		return nil, fmt.Errorf("starting report watcher: %w", err)
	}

	rw := &reportWatcher{Watcher: w, consumed: make(chan struct{})}
	go func() {
		defer close(rw.consumed)
		for event := range w.Events() {
			eventCtx := logging.AppendCtx(ctx, slog.String("file", event.Name))
			if err := notifier.HandleReportArrival(eventCtx, event.Path); err != nil {
				slog.ErrorContext(eventCtx, "failed to handle processed report", logging.ErrKey, err)
			}
		}
	}()

	slog.With("dir", dir, "trigger", notifier.Trigger()).Info("watching processed report directory")
	return rw, nil
}
