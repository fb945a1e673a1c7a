package smtp_mailer

import (
	"bytes"
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"mime"
	"mime/multipart"
	"net"
	"net/mail"
	"strings"
	"testing"
	"time"

	gomail "github.com/wneessen/go-mail"

	"github.com/user/valuation-service/internal/entity"
)

func testRun(n int) *entity.Run {
	run := entity.NewRun(time.Date(2025, 3, 14, 9, 30, 0, 0, time.UTC))
	for i := 0; i < n; i++ {
		run.Listings = append(run.Listings, &entity.Listing{
			Source: entity.SourceAutoTrader,
			Title:  fmt.Sprintf("Listing number %02d <Zetec>", i+1),
			Price:  "£1,995",
			Link:   fmt.Sprintf("https://www.autotrader.co.uk/car-details/%d", i+1),
			Stage:  entity.StagePlateChecked,
		})
	}
	run.Finish(run.StartedAt.Add(time.Minute), nil)
	return run
}

func testConfig() Config {
	return Config{
		Host: "smtp.example.com", Port: 587,
		Sender: "bot@example.com", Password: "app-password", Recipient: "ops@example.com",
	}
}

func newTestMailer(cfg Config) *Mailer {
	m := NewMailer(cfg, nil)
	m.now = func() time.Time { return time.Date(2025, 3, 14, 10, 0, 0, 0, time.UTC) }
	return m
}

// render writes msg out and parses it back as an RFC 5322 message.
func render(t *testing.T, msg *gomail.Msg) *mail.Message {
	t.Helper()
	var buf bytes.Buffer
	if _, err := msg.WriteTo(&buf); err != nil {
		t.Fatalf("WriteTo: %v", err)
	}
	parsed, err := mail.ReadMessage(&buf)
	if err != nil {
		t.Fatalf("ReadMessage: %v", err)
	}
	return parsed
}

// parts decodes every leaf MIME part keyed by filename, with "" for the HTML body.
func parts(t *testing.T, msg *gomail.Msg) map[string]string {
	t.Helper()
	parsed := render(t, msg)
	out := map[string]string{}
	collectParts(t, parsed.Header.Get("Content-Type"), parsed.Body, "", out)
	return out
}

func collectParts(t *testing.T, contentType string, body io.Reader, filename string, out map[string]string) {
	t.Helper()
	mediaType, params, err := mime.ParseMediaType(contentType)
	if err != nil {
		t.Fatalf("ParseMediaType(%q): %v", contentType, err)
	}
	if !strings.HasPrefix(mediaType, "multipart/") {
		raw, _ := io.ReadAll(body)
		out[filename] = string(raw)
		return
	}

	mr := multipart.NewReader(body, params["boundary"])
	for {
		p, err := mr.NextPart()
		if errors.Is(err, io.EOF) {
			return
		}
		if err != nil {
			t.Fatalf("NextPart: %v", err)
		}
		var r io.Reader = p
		if strings.EqualFold(p.Header.Get("Content-Transfer-Encoding"), "base64") {
			r = base64.NewDecoder(base64.StdEncoding, p)
		}
		collectParts(t, p.Header.Get("Content-Type"), r, p.FileName(), out)
	}
}

func TestComposeLimitsRowsAndAttachesReports(t *testing.T) {
	msg, err := newTestMailer(testConfig()).Compose(testRun(25))
	if err != nil {
		t.Fatalf("Compose: %v", err)
	}
	got := parts(t, msg)

	html := got[""]
	if !strings.Contains(html, "showing 20 of 25") {
		t.Error("body does not report 20 of 25 rows")
	}
	if !strings.Contains(html, "Listing number 20") || strings.Contains(html, "Listing number 21") {
		t.Error("body should list exactly the first 20 listings")
	}
	if strings.Contains(html, "<Zetec>") {
		t.Error("listing text was not HTML escaped")
	}
	if _, ok := got["car_valuations_results_20250314_093000.json"]; !ok {
		t.Errorf("JSON attachment missing; parts = %v", keys(got))
	}
	csv := got["car_valuations_results_20250314_093000.csv"]
	if strings.Count(csv, "\n") != 26 {
		t.Errorf("CSV attachment has %d lines; want 26", strings.Count(csv, "\n"))
	}
}

func TestComposeAddressesAndSubject(t *testing.T) {
	msg, err := newTestMailer(testConfig()).Compose(testRun(1))
	if err != nil {
		t.Fatalf("Compose: %v", err)
	}
	h := render(t, msg).Header
	if !strings.Contains(h.Get("From"), "bot@example.com") {
		t.Errorf("From = %q", h.Get("From"))
	}
	if !strings.Contains(h.Get("To"), "ops@example.com") {
		t.Errorf("To = %q", h.Get("To"))
	}
	if h.Get("Subject") != "Car Valuation Report - 2025-03-14 10:00" {
		t.Errorf("Subject = %q", h.Get("Subject"))
	}
}

func TestComposeRejectsBadRecipient(t *testing.T) {
	cfg := testConfig()
	cfg.Recipient = "not an address"
	if _, err := newTestMailer(cfg).Compose(testRun(1)); err == nil {
		t.Error("Compose accepted an invalid recipient")
	}
}

func TestPublishSendsComposedMessage(t *testing.T) {
	m := newTestMailer(testConfig())
	var sent *gomail.Msg
	m.send = func(ctx context.Context, msg *gomail.Msg) error {
		sent = msg
		return nil
	}

	if err := m.Publish(context.Background(), testRun(2)); err != nil {
		t.Fatalf("Publish: %v", err)
	}
	if sent == nil {
		t.Fatal("nothing was sent")
	}
	if to := render(t, sent).Header.Get("To"); !strings.Contains(to, "ops@example.com") {
		t.Errorf("sent To = %q", to)
	}
}

func TestPublishReturnsSendError(t *testing.T) {
	m := newTestMailer(testConfig())
	m.send = func(context.Context, *gomail.Msg) error {
		return errors.New("535 authentication failed")
	}
	if err := m.Publish(context.Background(), testRun(1)); err == nil {
		t.Error("Publish returned nil despite send failure")
	}
}

func TestPublishGivesUpOnSilentServer(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("Listen: %v", err)
	}
	defer ln.Close()
	// Accept connections and never send the SMTP greeting.
	go func() {
		var conns []net.Conn
		defer func() {
			for _, c := range conns {
				c.Close()
			}
		}()
		for {
			conn, err := ln.Accept()
			if err != nil {
				return
			}
			conns = append(conns, conn)
		}
	}()

	tests := []struct {
		name     string
		timeout  time.Duration
		deadline time.Duration
	}{
		{"context deadline", time.Minute, 300 * time.Millisecond},
		{"send timeout", 300 * time.Millisecond, time.Minute},
	}
	for _, tt := range tests {
		cfg := testConfig()
		cfg.Host = "127.0.0.1"
		cfg.Port = ln.Addr().(*net.TCPAddr).Port
		cfg.Timeout = tt.timeout
		m := newTestMailer(cfg)

		ctx, cancel := context.WithTimeout(context.Background(), tt.deadline)
		start := time.Now()
		err := m.Publish(ctx, testRun(1))
		elapsed := time.Since(start)
		cancel()

		if err == nil {
			t.Errorf("%s: Publish succeeded against a silent server", tt.name)
		}
		if elapsed > 3*time.Second {
			t.Errorf("%s: Publish took %v against a silent server", tt.name, elapsed)
		}
	}
}

func TestPublishCancelledBeforeSend(t *testing.T) {
	m := newTestMailer(testConfig())
	m.send = func(context.Context, *gomail.Msg) error {
		t.Error("send called with a cancelled context")
		return nil
	}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := m.Publish(ctx, testRun(1)); !errors.Is(err, context.Canceled) {
		t.Errorf("Publish error = %v; want context.Canceled", err)
	}
}

func keys(m map[string]string) []string {
	var out []string
	for k := range m {
		out = append(out, k)
	}
	return out
}
