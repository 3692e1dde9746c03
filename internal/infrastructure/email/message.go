// Copyright The Linux Foundation and each contributor to LFX.
// SPDX-License-Identifier: MIT

package email

import (
	"context"
	"crypto/tls"
	"fmt"
	"mime"
	"net"
	"net/mail"
	"net/smtp"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/linuxfoundation/lfx-v2-attendance-service/internal/domain"
)

const (
	// base64LineLength is the RFC 2045 limit for encoded lines.
	base64LineLength = 76

	defaultDialTimeout = 10 * time.Second
)

// emailContent is everything needed to build one outgoing message.
type emailContent struct {
	Recipients []string
	Subject    string
	HTML       string
	Text       string
	Attachment *domain.EmailAttachment
}

// buildEmailMessage builds the complete email message with headers and multipart content.
// Without an attachment the body is multipart/alternative; with one, the alternative
// part is nested inside multipart/mixed next to the attachment.
func buildEmailMessage(content emailContent, config SMTPConfig, now time.Time) string {
	id := uuid.NewString()
	altBoundary := "alt_" + id

	var message strings.Builder

	// Email headers
	message.WriteString(fmt.Sprintf("From: %s\r\n", fromHeader(config)))
	message.WriteString(fmt.Sprintf("To: %s\r\n", strings.Join(content.Recipients, ", ")))
	message.WriteString(fmt.Sprintf("Subject: %s\r\n", mime.QEncoding.Encode("UTF-8", content.Subject)))
	message.WriteString(fmt.Sprintf("Date: %s\r\n", now.UTC().Format(time.RFC1123Z)))
	message.WriteString(fmt.Sprintf("Message-ID: <%s@%s>\r\n", id, messageIDDomain(config.From)))
	message.WriteString("MIME-Version: 1.0\r\n")

	if content.Attachment == nil {
		message.WriteString(fmt.Sprintf("Content-Type: multipart/alternative; boundary=\"%s\"\r\n", altBoundary))
		message.WriteString("\r\n")
		writeAlternativeParts(&message, altBoundary, content)
		return message.String()
	}

	mixedBoundary := "mixed_" + id
	message.WriteString(fmt.Sprintf("Content-Type: multipart/mixed; boundary=\"%s\"\r\n", mixedBoundary))
	message.WriteString("\r\n")

	message.WriteString(fmt.Sprintf("--%s\r\n", mixedBoundary))
	message.WriteString(fmt.Sprintf("Content-Type: multipart/alternative; boundary=\"%s\"\r\n", altBoundary))
	message.WriteString("\r\n")
	writeAlternativeParts(&message, altBoundary, content)

	// Attachment part
	attachment := content.Attachment
	contentType := attachment.ContentType
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	message.WriteString(fmt.Sprintf("--%s\r\n", mixedBoundary))
	message.WriteString(fmt.Sprintf("Content-Type: %s; name=\"%s\"\r\n", contentType, attachment.Filename))
	message.WriteString("Content-Transfer-Encoding: base64\r\n")
	message.WriteString(fmt.Sprintf("Content-Disposition: attachment; filename=\"%s\"\r\n", attachment.Filename))
	message.WriteString("\r\n")
	message.WriteString(wrapBase64(attachment.Content))

	// End boundary
	message.WriteString(fmt.Sprintf("--%s--\r\n", mixedBoundary))

	return message.String()
}

func writeAlternativeParts(message *strings.Builder, boundary string, content emailContent) {
	// Plain text part
	message.WriteString(fmt.Sprintf("--%s\r\n", boundary))
	message.WriteString("Content-Type: text/plain; charset=\"UTF-8\"\r\n")
	message.WriteString("\r\n")
	message.WriteString(content.Text)
	message.WriteString("\r\n")

	// HTML part
	message.WriteString(fmt.Sprintf("--%s\r\n", boundary))
	message.WriteString("Content-Type: text/html; charset=\"UTF-8\"\r\n")
	message.WriteString("\r\n")
	message.WriteString(content.HTML)
	message.WriteString("\r\n")

	message.WriteString(fmt.Sprintf("--%s--\r\n", boundary))
}

// wrapBase64 splits already-encoded content into CRLF terminated lines.
func wrapBase64(encoded string) string {
	encoded = strings.Join(strings.Fields(encoded), "")

	var out strings.Builder
	for len(encoded) > base64LineLength {
		out.WriteString(encoded[:base64LineLength])
		out.WriteString("\r\n")
		encoded = encoded[base64LineLength:]
	}
	if encoded != "" {
		out.WriteString(encoded)
		out.WriteString("\r\n")
	}
	return out.String()
}

func fromHeader(config SMTPConfig) string {
	if config.FromName == "" {
		return config.From
	}
	return (&mail.Address{Name: config.FromName, Address: config.From}).String()
}

func messageIDDomain(from string) string {
	if i := strings.LastIndex(from, "@"); i >= 0 && i < len(from)-1 {
		return from[i+1:]
	}
	return "localhost"
}

// sendEmailMessage sends a pre-built email message via SMTP to every recipient
// in a single transaction. The context deadline bounds the whole exchange.
func sendEmailMessage(ctx context.Context, recipients []string, message string, config SMTPConfig) error {
	addr := net.JoinHostPort(config.Host, strconv.Itoa(config.Port))

	dialer := &net.Dialer{Timeout: defaultDialTimeout}
	conn, err := dialer.DialContext(ctx, "tcp", addr)
	if err != nil {
		return fmt.Errorf("failed to connect to SMTP server: %w", err)
	}
	if deadline, ok := ctx.Deadline(); ok {
		_ = conn.SetDeadline(deadline)
	}

	client, err := smtp.NewClient(conn, config.Host)
	if err != nil {
		_ = conn.Close()
		return fmt.Errorf("failed to start SMTP session: %w", err)
	}
	defer func() {
		_ = client.Close()
	}()

	if ok, _ := client.Extension("STARTTLS"); ok {
		if err := client.StartTLS(&tls.Config{ServerName: config.Host}); err != nil {
			return fmt.Errorf("failed to start TLS: %w", err)
		}
	}

	if config.Username != "" && config.Password != "" {
		if ok, _ := client.Extension("AUTH"); ok {
			auth := smtp.PlainAuth("", config.Username, config.Password, config.Host)
			if err := client.Auth(auth); err != nil {
				return fmt.Errorf("failed to authenticate: %w", err)
			}
		}
	}

	if err := client.Mail(config.From); err != nil {
		return fmt.Errorf("failed to send email: %w", err)
	}
	for _, recipient := range recipients {
		if err := client.Rcpt(recipient); err != nil {
			return fmt.Errorf("failed to send email to %s: %w", recipient, err)
		}
	}

	w, err := client.Data()
	if err != nil {
		return fmt.Errorf("failed to send email: %w", err)
	}
	if _, err := w.Write([]byte(message)); err != nil {
		_ = w.Close()
		return fmt.Errorf("failed to send email: %w", err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("failed to send email: %w", err)
	}

	return client.Quit()
}
