// Copyright The Linux Foundation and each contributor to LFX.
// SPDX-License-Identifier: MIT

package service

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/linuxfoundation/lfx-v2-attendance-service/internal/domain"
	"github.com/linuxfoundation/lfx-v2-attendance-service/internal/domain/models"
	"github.com/linuxfoundation/lfx-v2-attendance-service/internal/logging"
	"github.com/linuxfoundation/lfx-v2-attendance-service/pkg/concurrent"
)

// DefaultMaxReportPages bounds the pagination loop when no limit is configured.
const DefaultMaxReportPages = 100

// ReportFetcher downloads a meeting's participants report and persists it as
// raw JSON and as the intermediate CSV.
type ReportFetcher struct {
	client   domain.ParticipantsReportClient
	store    domain.ReportStore
	pool     *concurrent.WorkerPool
	maxPages int
}

// NewReportFetcher creates a fetcher. maxPages <= 0 selects DefaultMaxReportPages.
func NewReportFetcher(client domain.ParticipantsReportClient, store domain.ReportStore, maxPages int) *ReportFetcher {
	if maxPages <= 0 {
		maxPages = DefaultMaxReportPages
	}
	return &ReportFetcher{
		client:   client,
		store:    store,
		pool:     concurrent.NewWorkerPool(2),
		maxPages: maxPages,
	}
}

// ServiceReady checks if the fetcher has its dependencies.
func (f *ReportFetcher) ServiceReady() bool {
	return f.client != nil && f.store != nil
}

// FetchParticipants walks every page of the participants report, then writes
// the merged raw JSON and the intermediate CSV concurrently. Any provider
// error aborts the fetch before anything is written.
func (f *ReportFetcher) FetchParticipants(ctx context.Context, meetingID string, token models.AccessToken) (*models.RawReport, models.ReportFiles, error) {
	ctx = logging.WithStage(ctx, StageFetch)
	ctx, span := tracer.Start(ctx, "ReportFetcher.FetchParticipants")
	defer span.End()
	span.SetAttributes(attribute.String("meeting.id", meetingID))

	report, records, err := f.collect(ctx, meetingID, token)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "fetch failed")
		return nil, models.ReportFiles{}, err
	}

	var files models.ReportFiles
	err = f.pool.Run(ctx,
		concurrent.Task{Name: "raw_json", Fn: func(ctx context.Context) error {
			path, err := f.store.WriteRawReport(ctx, report)
			files.RawJSONPath = path
			return err
		}},
		concurrent.Task{Name: "participants_csv", Fn: func(ctx context.Context) error {
			path, err := f.store.WriteParticipantsCSV(ctx, meetingID, records)
			files.CSVPath = path
			return err
		}},
	)
	if err != nil {
		slog.ErrorContext(ctx, "failed to persist participants report", logging.ErrKey, err)
		span.RecordError(err)
		span.SetStatus(codes.Error, "persist failed")
		return nil, models.ReportFiles{}, domain.NewFetchError("failed to persist participants report", err)
	}

	span.SetAttributes(
		attribute.Int("report.pages", report.PageCount),
		attribute.Int("report.participants", len(records)),
	)
	slog.InfoContext(ctx, "participants report saved",
		"raw_json", files.RawJSONPath,
		"csv", files.CSVPath,
		"participants", len(records),
	)
	return report, files, nil
}

// collect follows next_page_token until it is empty or maxPages is reached.
func (f *ReportFetcher) collect(ctx context.Context, meetingID string, token models.AccessToken) (*models.RawReport, []models.ParticipantRecord, error) {
	report := &models.RawReport{MeetingID: meetingID, Participants: []json.RawMessage{}}
	records := make([]models.ParticipantRecord, 0)

	pageToken := ""
	for page := 1; ; page++ {
		if page > f.maxPages {
			slog.ErrorContext(ctx, "participants report exceeded page limit", "max_pages", f.maxPages)
			return nil, nil, domain.NewFetchError(fmt.Sprintf("participants report exceeded %d pages", f.maxPages))
		}

		resp, err := f.client.GetParticipantsReportPage(ctx, token, meetingID, pageToken)
		if err != nil {
			slog.ErrorContext(ctx, "participants report request failed", logging.ErrKey, err, "page", page)
			return nil, nil, domain.NewFetchError("participants report request failed", err)
		}

		raw, err := rawParticipants(resp)
		if err != nil {
			return nil, nil, domain.NewFetchError("failed to encode participants", err)
		}
		report.Participants = append(report.Participants, raw...)

		for i, participant := range resp.Participants {
			record, err := models.ParticipantRecordFromReport(participant)
			if err != nil {
				// Kept with an empty duration so the classifier counts it as invalid.
				slog.WarnContext(ctx, "participant has an unreadable duration",
					logging.ErrKey, err,
					"page", page,
					"index", i,
				)
				record = models.ParticipantRecord{
					ID:        participant.ID,
					Name:      participant.Name,
					Email:     participant.UserEmail,
					JoinTime:  participant.JoinTime,
					LeaveTime: participant.LeaveTime,
				}
			}
			records = append(records, record)
		}

		report.PageCount = page
		if resp.PageCount > report.PageCount {
			report.PageCount = resp.PageCount
		}
		report.TotalRecords = resp.TotalRecords

		slog.DebugContext(ctx, "fetched participants page",
			"page", page,
			"page_participants", len(resp.Participants),
			"total_records", resp.TotalRecords,
		)

		if resp.NextPageToken == "" {
			break
		}
		if resp.NextPageToken == pageToken {
			return nil, nil, domain.NewFetchError("participants report repeated its page token")
		}
		pageToken = resp.NextPageToken
	}

	if report.TotalRecords < len(records) {
		report.TotalRecords = len(records)
	}
	return report, records, nil
}

// rawParticipants returns the verbatim entries of a page, re-encoding the
// decoded ones when the client did not keep them.
func rawParticipants(page *domain.ParticipantsReportPage) ([]json.RawMessage, error) {
	out := make([]json.RawMessage, 0, len(page.Participants))
	if len(page.RawParticipants) == len(page.Participants) {
		for _, raw := range page.RawParticipants {
			out = append(out, json.RawMessage(raw))
		}
		return out, nil
	}

	for _, participant := range page.Participants {
		raw, err := json.Marshal(participant)
		if err != nil {
			return nil, err
		}
		out = append(out, raw)
	}
	return out, nil
}
