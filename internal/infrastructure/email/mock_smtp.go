// Copyright The Linux Foundation and each contributor to LFX.
// SPDX-License-Identifier: MIT

package email

import (
	"bufio"
	"fmt"
	"net"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
)

// ReceivedMessage is one message accepted by the mock SMTP server
type ReceivedMessage struct {
	From string
	To   []string
	Data string
}

// MockSMTPServer provides a simple mock SMTP server for testing and development.
// It understands EHLO, HELO, MAIL, RCPT, DATA, RSET, NOOP and QUIT, and records
// every message it accepts.
type MockSMTPServer struct {
	listener net.Listener
	addr     string

	mu       sync.Mutex
	messages []ReceivedMessage
	failures map[string]string
}

// NewMockSMTPServer creates a new mock SMTP server. failures maps an upper-case
// command verb (for example "MAIL" or "DATA") to the reply sent instead of success.
func NewMockSMTPServer(failures map[string]string) (*MockSMTPServer, error) {
	listener, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		return nil, err
	}

	server := &MockSMTPServer{
		listener: listener,
		addr:     listener.Addr().String(),
		failures: failures,
	}

	go server.serve()
	return server, nil
}

// NewMockSMTPServerForTesting creates a mock SMTP server for testing with require assertions
func NewMockSMTPServerForTesting(t *testing.T, failures map[string]string) *MockSMTPServer {
	server, err := NewMockSMTPServer(failures)
	require.NoError(t, err)
	t.Cleanup(func() {
		_ = server.Close()
	})
	return server
}

// GetAddress returns the server address (host:port)
func (s *MockSMTPServer) GetAddress() string {
	return s.addr
}

// GetHost returns just the host part of the address
func (s *MockSMTPServer) GetHost() (string, error) {
	host, _, err := net.SplitHostPort(s.addr)
	return host, err
}

// GetPort returns just the port part of the address
func (s *MockSMTPServer) GetPort() (int, error) {
	_, portStr, err := net.SplitHostPort(s.addr)
	if err != nil {
		return 0, err
	}

	var port int
	_, err = fmt.Sscanf(portStr, "%d", &port)
	return port, err
}

// Config returns an SMTPConfig pointing at the mock server
func (s *MockSMTPServer) Config(from string) (SMTPConfig, error) {
	host, err := s.GetHost()
	if err != nil {
		return SMTPConfig{}, err
	}
	port, err := s.GetPort()
	if err != nil {
		return SMTPConfig{}, err
	}
	return SMTPConfig{Host: host, Port: port, From: from}, nil
}

// Messages returns a copy of the messages received so far
func (s *MockSMTPServer) Messages() []ReceivedMessage {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]ReceivedMessage, len(s.messages))
	copy(out, s.messages)
	return out
}

// Close shuts down the mock server
func (s *MockSMTPServer) Close() error {
	return s.listener.Close()
}

func (s *MockSMTPServer) serve() {
	for {
		conn, err := s.listener.Accept()
		if err != nil {
			return // Server closed
		}

		go s.handleConnection(conn)
	}
}

func (s *MockSMTPServer) failure(verb string) (string, bool) {
	reply, ok := s.failures[verb]
	return reply, ok
}

func (s *MockSMTPServer) handleConnection(conn net.Conn) {
	defer func() {
		_ = conn.Close() // Ignore close error in mock server
	}()

	reader := bufio.NewReader(conn)
	reply := func(line string) {
		_, _ = conn.Write([]byte(line + "\r\n"))
	}

	// Send initial greeting
	reply("220 localhost SMTP ready")

	var current ReceivedMessage
	for {
		line, err := reader.ReadString('\n')
		if err != nil {
			return
		}

		line = strings.TrimRight(line, "\r\n")
		verb := strings.ToUpper(line)
		if i := strings.IndexByte(verb, ' '); i >= 0 {
			verb = verb[:i]
		}

		if failReply, ok := s.failure(verb); ok {
			reply(failReply)
			continue
		}

		switch verb {
		case "EHLO":
			reply("250-localhost")
			reply("250 8BITMIME")
		case "HELO", "NOOP":
			reply("250 OK")
		case "MAIL":
			current = ReceivedMessage{From: extractPath(line)}
			reply("250 OK")
		case "RCPT":
			current.To = append(current.To, extractPath(line))
			reply("250 OK")
		case "DATA":
			reply("354 Start mail input; end with <CRLF>.<CRLF>")
			data, err := readData(reader)
			if err != nil {
				return
			}
			current.Data = data
			s.mu.Lock()
			s.messages = append(s.messages, current)
			s.mu.Unlock()
			current = ReceivedMessage{}
			reply("250 OK")
		case "RSET":
			current = ReceivedMessage{}
			reply("250 OK")
		case "QUIT":
			reply("221 Bye")
			return
		default:
			reply("502 Command not implemented")
		}
	}
}

// readData reads a DATA body up to the terminating dot line, undoing dot-stuffing.
func readData(reader *bufio.Reader) (string, error) {
	var body strings.Builder
	for {
		line, err := reader.ReadString('\n')
		if err != nil {
			return "", err
		}
		trimmed := strings.TrimRight(line, "\r\n")
		if trimmed == "." {
			return body.String(), nil
		}
		if strings.HasPrefix(trimmed, "..") {
			trimmed = trimmed[1:]
		}
		body.WriteString(trimmed)
		body.WriteString("\r\n")
	}
}

// extractPath pulls the address out of "MAIL FROM:<a@b>" or "RCPT TO:<a@b>".
func extractPath(line string) string {
	start := strings.IndexByte(line, '<')
	end := strings.IndexByte(line, '>')
	if start < 0 || end <= start {
		return ""
	}
	return line[start+1 : end]
}
