// Copyright The Linux Foundation and each contributor to LFX.
// SPDX-License-Identifier: MIT

package api

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"

	"github.com/linuxfoundation/lfx-v2-attendance-service/internal/domain"
	"github.com/linuxfoundation/lfx-v2-attendance-service/internal/domain/models"
	"github.com/linuxfoundation/lfx-v2-attendance-service/internal/logging"
)

// ParticipantsReportResponse represents one page of the meeting participants report
type ParticipantsReportResponse struct {
	PageCount     int               `json:"page_count"`
	PageSize      int               `json:"page_size"`
	TotalRecords  int               `json:"total_records"`
	NextPageToken string            `json:"next_page_token"`
	Participants  []json.RawMessage `json:"participants"`
}

// StatusError is returned when the reports API answers with a non-2xx status.
type StatusError struct {
	StatusCode int
	Err        error
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("status %d: %v", e.StatusCode, e.Err)
}

func (e *StatusError) Unwrap() error {
	return e.Err
}

// participantsReportPath returns the report path. Meeting UUIDs starting with
// "/" or containing "//" must be double-encoded.
func participantsReportPath(meetingID string) string {
	escaped := url.PathEscape(meetingID)
	if len(meetingID) > 0 && (meetingID[0] == '/' || containsDoubleSlash(meetingID)) {
		escaped = url.PathEscape(escaped)
	}
	return "/report/meetings/" + escaped + "/participants"
}

func containsDoubleSlash(s string) bool {
	for i := 0; i+1 < len(s); i++ {
		if s[i] == '/' && s[i+1] == '/' {
			return true
		}
	}
	return false
}

// GetParticipantsReportPage retrieves one page of the participants report of an ended meeting
func (c *Client) GetParticipantsReportPage(ctx context.Context, token models.AccessToken, meetingID, nextPageToken string) (*domain.ParticipantsReportPage, error) {
	ctx = logging.AppendCtx(ctx, slog.String("zoom_operation", "get_participants_report"))

	query := url.Values{}
	query.Set("page_size", strconv.Itoa(c.config.PageSize))
	if nextPageToken != "" {
		query.Set("next_page_token", nextPageToken)
	}

	resp, err := c.doRequest(ctx, http.MethodGet, participantsReportPath(meetingID), query, token)
	if err != nil {
		slog.ErrorContext(ctx, "failed to get Zoom participants report", logging.ErrKey, err)
		return nil, err
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read participants report response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &StatusError{StatusCode: resp.StatusCode, Err: parseErrorResponse(body)}
	}

	var page ParticipantsReportResponse
	if err := json.Unmarshal(body, &page); err != nil {
		slog.ErrorContext(ctx, "failed to decode Zoom participants report", logging.ErrKey, err)
		return nil, fmt.Errorf("failed to decode participants report response: %w", err)
	}

	result := &domain.ParticipantsReportPage{
		PageCount:       page.PageCount,
		PageSize:        page.PageSize,
		TotalRecords:    page.TotalRecords,
		NextPageToken:   page.NextPageToken,
		Participants:    make([]models.ZoomReportParticipant, 0, len(page.Participants)),
		RawParticipants: make([][]byte, 0, len(page.Participants)),
	}
	for i, raw := range page.Participants {
		var p models.ZoomReportParticipant
		if err := json.Unmarshal(raw, &p); err != nil {
			return nil, fmt.Errorf("failed to decode participant %d: %w", i, err)
		}
		result.Participants = append(result.Participants, p)
		result.RawParticipants = append(result.RawParticipants, []byte(raw))
	}

	slog.DebugContext(ctx, "retrieved Zoom participants report page",
		"participants", len(result.Participants),
		"total_records", result.TotalRecords,
		"has_next_page", result.NextPageToken != "",
	)

	return result, nil
}
