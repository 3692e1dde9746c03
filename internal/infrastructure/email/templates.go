// Copyright The Linux Foundation and each contributor to LFX.
// SPDX-License-Identifier: MIT

package email

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"
	"time"

	"github.com/linuxfoundation/lfx-v2-attendance-service/internal/domain"
	"github.com/linuxfoundation/lfx-v2-attendance-service/internal/domain/models"
)

//go:embed templates/*
var templateFS embed.FS

// ReportNotificationSubject is the subject of every report email.
const ReportNotificationSubject = "New CSV Report Available"

// RenderedEmail holds both HTML and text versions of a rendered email
type RenderedEmail struct {
	HTML string
	Text string
}

// ReportTemplateManager defines the interface for rendering report email templates
type ReportTemplateManager interface {
	RenderReportNotification(data domain.ReportNotification) (*RenderedEmail, error)
}

// TemplateSet holds HTML and text versions of a template
type TemplateSet struct {
	HTML *template.Template
	Text *template.Template
}

// TemplateManager is the default implementation of ReportTemplateManager
type TemplateManager struct {
	reportNotification TemplateSet
}

// Ensure TemplateManager implements ReportTemplateManager
var _ ReportTemplateManager = (*TemplateManager)(nil)

// templateConfig defines a template to be loaded
type templateConfig struct {
	name string
	path string
}

// reportNotificationView is the data the report templates render.
type reportNotificationView struct {
	Topic           string
	MeetingID       string
	StartTime       time.Time
	EndTime         time.Time
	DurationMinutes int
	AttachmentName  string
	Summary         *models.ClassificationResult
}

// NewTemplateManager creates a new template manager with all templates loaded
func NewTemplateManager() (*TemplateManager, error) {
	html, err := loadTemplate(templateConfig{"report_notification.html", "templates/report_notification.html"})
	if err != nil {
		return nil, err
	}
	text, err := loadTemplate(templateConfig{"report_notification.txt", "templates/report_notification.txt"})
	if err != nil {
		return nil, err
	}

	return &TemplateManager{
		reportNotification: TemplateSet{HTML: html, Text: text},
	}, nil
}

// RenderReportNotification renders the report email with both HTML and text versions
func (tm *TemplateManager) RenderReportNotification(data domain.ReportNotification) (*RenderedEmail, error) {
	view := reportNotificationView{
		Topic:           data.Meeting.Topic,
		MeetingID:       data.Meeting.MeetingID,
		StartTime:       data.Meeting.StartTime,
		EndTime:         data.Meeting.EndTime,
		DurationMinutes: data.Meeting.DurationMinutes,
		Summary:         data.Summary,
	}
	if data.Attachment != nil {
		view.AttachmentName = data.Attachment.Filename
	}

	html, err := renderTemplate(tm.reportNotification.HTML, view)
	if err != nil {
		return nil, fmt.Errorf("failed to render report notification HTML: %w", err)
	}

	text, err := renderTemplate(tm.reportNotification.Text, view)
	if err != nil {
		return nil, fmt.Errorf("failed to render report notification text: %w", err)
	}

	return &RenderedEmail{HTML: html, Text: text}, nil
}

// loadTemplate loads a single template with the shared function map
func loadTemplate(config templateConfig) (*template.Template, error) {
	tmpl, err := template.New(config.name).Funcs(template.FuncMap{
		"formatTime":     formatTime,
		"formatDuration": formatDuration,
	}).ParseFS(templateFS, config.path)
	if err != nil {
		return nil, fmt.Errorf("failed to parse template %s: %w", config.path, err)
	}
	return tmpl, nil
}

// renderTemplate renders any template with the provided data
func renderTemplate(tmpl *template.Template, data any) (string, error) {
	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		return "", err
	}
	return buf.String(), nil
}

// formatTime formats a time for display in emails, always in UTC
func formatTime(t time.Time) string {
	if t.IsZero() {
		return "unknown"
	}

	utc := t.UTC()
	day := utc.Day()
	var suffix string
	switch {
	case day >= 11 && day <= 13:
		suffix = "th"
	case day%10 == 1:
		suffix = "st"
	case day%10 == 2:
		suffix = "nd"
	case day%10 == 3:
		suffix = "rd"
	default:
		suffix = "th"
	}

	// Format: Monday, January 1st 2024, 10:00 UTC
	return fmt.Sprintf("%s, %s %d%s %d, %s UTC",
		utc.Format("Monday"),
		utc.Format("January"),
		day,
		suffix,
		utc.Year(),
		utc.Format("15:04"))
}

// formatDuration formats duration in minutes to a human-readable string
func formatDuration(minutes int) string {
	if minutes < 60 {
		if minutes == 1 {
			return "1 minute"
		}
		return fmt.Sprintf("%d minutes", minutes)
	}

	hours := minutes / 60
	remainingMinutes := minutes % 60

	hourLabel := "hours"
	if hours == 1 {
		hourLabel = "hour"
	}
	if remainingMinutes == 0 {
		return fmt.Sprintf("%d %s", hours, hourLabel)
	}

	minuteLabel := "minutes"
	if remainingMinutes == 1 {
		minuteLabel = "minute"
	}
	return fmt.Sprintf("%d %s %d %s", hours, hourLabel, remainingMinutes, minuteLabel)
}
