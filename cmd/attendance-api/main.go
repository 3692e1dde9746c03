// Copyright The Linux Foundation and each contributor to LFX.
// SPDX-License-Identifier: MIT

// Package main is the attendance service API. It receives Zoom webhooks,
// classifies the attendance of ended meetings and emails the processed report.
package main

import (
	"context"
	"errors"
	_ "expvar"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/linuxfoundation/lfx-v2-attendance-service/internal/handlers"
	"github.com/linuxfoundation/lfx-v2-attendance-service/internal/infrastructure/reports"
	"github.com/linuxfoundation/lfx-v2-attendance-service/internal/logging"
	"github.com/linuxfoundation/lfx-v2-attendance-service/internal/service"
	"github.com/linuxfoundation/lfx-v2-attendance-service/pkg/concurrent"
	"github.com/linuxfoundation/lfx-v2-attendance-service/pkg/utils"
)

func main() {
	flags := parseFlags("8080")

	logging.InitStructureLogConfig()

	env, err := loadEnvironment(flags.ConfigFile, os.Getenv)
	if err != nil {
		slog.With(logging.ErrKey, err).Error("error loading configuration")
		os.Exit(1)
	}
	// An explicit -p wins over PORT and the config file.
	if !flags.PortSet && env.Port != "" {
		flags.Port = env.Port
	}

	trigger, err := service.ParseNotifyTrigger(env.NotifyTrigger)
	if err != nil {
		slog.With(logging.ErrKey, err).Error("invalid NOTIFY_TRIGGER")
		os.Exit(1)
	}

	otelShutdown, err := utils.SetupOTelSDK(context.Background())
	if err != nil {
		slog.With(logging.ErrKey, err).Error("error setting up OpenTelemetry")
		os.Exit(1)
	}

	if err := reports.EnsureDirs(env.Reports.RawDir, env.Reports.CSVDir, env.Reports.ProcessedDir); err != nil {
		slog.With(logging.ErrKey, err).Error("error creating report directories")
		os.Exit(1)
	}

	zoomClient, validator, err := setupZoom(env.Zoom)
	if err != nil {
		slog.With(logging.ErrKey, err).Error("error setting up Zoom integration")
		os.Exit(1)
	}

	emailService, err := setupEmailService(env)
	if err != nil {
		slog.With(logging.ErrKey, err).Error("error setting up email service")
		os.Exit(1)
	}

	// Setup graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan os.Signal, 1)
	signal.Notify(done, os.Interrupt, syscall.SIGINT, syscall.SIGTERM)
	gracefulCloseWG := sync.WaitGroup{}

	natsConn, err := setupNATS(ctx, env, &gracefulCloseWG, done)
	if err != nil {
		slog.With(logging.ErrKey, err).Error("error setting up NATS")
		return
	}

	backends, err := getKeyValueStores(ctx, natsConn, env)
	if err != nil {
		slog.With(logging.ErrKey, err).Error("error getting key-value stores")
		return
	}

	// Initialize services
	reportStore := reports.NewFileStore(env.Reports.RawDir, env.Reports.CSVDir)
	credentials := service.NewCredentialCache(zoomClient, backends.Tokens)
	fetcher := service.NewReportFetcher(zoomClient, reportStore, env.Zoom.MaxReportPages)
	classifier := service.NewAttendanceClassifier(reportStore, service.ReferenceStartFromFirstRow)
	notifier := service.NewReportNotifier(emailService, reportStore, backends.Ledger, env.Recipients, trigger,
		service.WithSendTimeout(env.NotifyTimeout))
	dispatcher := service.NewWebhookDispatcher(
		validator,
		credentials,
		fetcher,
		classifier,
		notifier,
		backends.Ledger,
		backends.Events,
		service.DispatcherConfig{
			ProcessedDir:    env.Reports.ProcessedDir,
			PipelineTimeout: env.PipelineTimeout,
			NotifyTimeout:   env.NotifyTimeout,
		},
	)

	reportWatcher, err := startReportWatcher(ctx, env.Reports.ProcessedDir, notifier)
	if err != nil {
		slog.With(logging.ErrKey, err).Error("error starting report watcher")
		return
	}

	// Initialize handlers
	webhookHandler := handlers.NewWebhookHandler(dispatcher)
	readiness := []handlers.ReadinessCheck{webhookHandler.HandlerReady, credentials.ServiceReady}
	if natsConn != nil {
		readiness = append(readiness, natsConn.IsConnected)
	}

	httpServer := setupHTTPServer(flags, newHTTPHandler(webhookHandler, readiness...), &gracefulCloseWG)

	slog.With("trigger", trigger, "recipients", len(env.Recipients)).Info("attendance service started")

	// This next line blocks until SIGINT or SIGTERM is received.
	<-done

	gracefulShutdown(httpServer, natsConn, credentials, dispatcher, reportWatcher, otelShutdown, &gracefulCloseWG, cancel)
}

// gracefulShutdown stops the HTTP server first so no new pipeline starts, then
// waits for in-flight notifications while NATS is still connected, and only
// then drains NATS.
func gracefulShutdown(
	httpServer *http.Server,
	natsConn *nats.Conn,
	credentials *service.CredentialCache,
	dispatcher *service.WebhookDispatcher,
	reportWatcher *reportWatcher,
	otelShutdown func(context.Context) error,
	gracefulCloseWG *sync.WaitGroup,
	cancel context.CancelFunc,
) {
	// Cancel the background context.
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), gracefulShutdownSeconds*time.Second)
	defer shutdownCancel()

	// Handoffs happen inside webhook requests, so once Shutdown returns no
	// new notification can be added to the dispatcher.
	slog.With("addr", httpServer.Addr).Info("shutting down http server")
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		slog.With(logging.ErrKey, err).Error("http shutdown error")
	}
	gracefulCloseWG.Done()

	pool := concurrent.NewWorkerPool(2)
	tasks := []concurrent.Task{
		{
			Name: "pending_notifications",
			Fn: func(ctx context.Context) error {
				if err := reportWatcher.Drain(ctx); err != nil {
					return err
				}
				waited := make(chan struct{})
				go func() {
					dispatcher.Wait()
					close(waited)
				}()
				select {
				case <-waited:
					return nil
				case <-ctx.Done():
					return ctx.Err()
				}
			},
		},
		{
			Name: "token_cache",
			Fn:   credentials.Invalidate,
		},
	}
	if errs := pool.RunAll(shutdownCtx, tasks...); len(errs) > 0 {
		slog.With(logging.ErrKey, errors.Join(errs...)).Error("errors during shutdown")
	}

	if natsConn != nil && !natsConn.IsClosed() {
		slog.With("url", natsConn.ConnectedUrl()).Info("draining NATS connections")
		if err := natsConn.Drain(); err != nil {
			slog.With(logging.ErrKey, err).Error("error draining NATS")
		}
	}

	if err := otelShutdown(shutdownCtx); err != nil {
		slog.With(logging.ErrKey, err).Error("error shutting down OpenTelemetry")
	}

	// Wait for the NATS closed handler.
	gracefulCloseWG.Wait()
}
