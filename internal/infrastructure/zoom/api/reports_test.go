// Copyright The Linux Foundation and each contributor to LFX.
// SPDX-License-Identifier: MIT

package api

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestClient_GetParticipantsReportPage(t *testing.T) {
	tests := []struct {
		name              string
		nextPageToken     string
		mockResponse      string
		mockStatus        int
		expectedError     bool
		expectedStatus    int
		expectedCount     int
		expectedNextToken string
	}{
		{
			name: "first page with next page token",
			mockResponse: `{
				"page_count": 2,
				"page_size": 300,
				"total_records": 2,
				"next_page_token": "tok-2",
				"participants": [
					{"id": "u1", "name": "Ada", "user_email": "ada@example.com", "join_time": "2024-01-01T10:00:00Z", "leave_time": "2024-01-01T11:30:00Z", "duration": 5400, "attentiveness_score": ""}
				]
			}`,
			mockStatus:        http.StatusOK,
			expectedCount:     1,
			expectedNextToken: "tok-2",
		},
		{
			name:          "last page",
			nextPageToken: "tok-2",
			mockResponse: `{
				"page_count": 2,
				"page_size": 300,
				"total_records": 2,
				"next_page_token": "",
				"participants": [
					{"id": "u2", "name": "Bob", "user_email": "bob@example.com", "join_time": "2024-01-01T10:11:00Z", "leave_time": "2024-01-01T11:30:00Z", "duration": 4740}
				]
			}`,
			mockStatus:    http.StatusOK,
			expectedCount: 1,
		},
		{
			name:           "meeting not found",
			mockResponse:   `{"code": 3001, "message": "Meeting does not exist: 123."}`,
			mockStatus:     http.StatusNotFound,
			expectedError:  true,
			expectedStatus: http.StatusNotFound,
		},
		{
			name:          "invalid JSON",
			mockResponse:  `{"participants": [`,
			mockStatus:    http.StatusOK,
			expectedError: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				if r.Method != http.MethodGet {
					t.Errorf("expected GET, got %s", r.Method)
				}
				if r.URL.Path != "/report/meetings/123/participants" {
					t.Errorf("unexpected path %s", r.URL.Path)
				}
				if got := r.URL.Query().Get("page_size"); got != "300" {
					t.Errorf("expected page_size 300, got %q", got)
				}
				if got := r.URL.Query().Get("next_page_token"); got != tt.nextPageToken {
					t.Errorf("expected next_page_token %q, got %q", tt.nextPageToken, got)
				}
				if got := r.Header.Get("Authorization"); got != "Bearer test_token" {
					t.Errorf("expected bearer token header, got %q", got)
				}
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(tt.mockStatus)
				_, _ = w.Write([]byte(tt.mockResponse))
			}))
			defer server.Close()

			page, err := newTestClient(server.URL, 1).GetParticipantsReportPage(context.Background(), testToken, "123", tt.nextPageToken)

			if tt.expectedError {
				if err == nil {
					t.Fatal("expected error but got nil")
				}
				if tt.expectedStatus != 0 {
					var statusErr *StatusError
					if !errors.As(err, &statusErr) {
						t.Fatalf("expected StatusError, got %T", err)
					}
					if statusErr.StatusCode != tt.expectedStatus {
						t.Errorf("expected status %d, got %d", tt.expectedStatus, statusErr.StatusCode)
					}
				}
				return
			}

			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if len(page.Participants) != tt.expectedCount {
				t.Errorf("expected %d participants, got %d", tt.expectedCount, len(page.Participants))
			}
			if len(page.RawParticipants) != tt.expectedCount {
				t.Errorf("expected %d raw participants, got %d", tt.expectedCount, len(page.RawParticipants))
			}
			if page.NextPageToken != tt.expectedNextToken {
				t.Errorf("expected next page token %q, got %q", tt.expectedNextToken, page.NextPageToken)
			}
		})
	}
}

func TestClient_GetParticipantsReportPage_KeepsUnknownFields(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"participants":[{"id":"u1","duration":60,"customer_key":"k-1"}]}`))
	}))
	defer server.Close()

	page, err := newTestClient(server.URL, 1).GetParticipantsReportPage(context.Background(), testToken, "123", "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := string(page.RawParticipants[0]); got != `{"id":"u1","duration":60,"customer_key":"k-1"}` {
		t.Errorf("raw participant not preserved: %s", got)
	}
	if page.Participants[0].ID != "u1" {
		t.Errorf("expected participant id u1, got %q", page.Participants[0].ID)
	}
}
