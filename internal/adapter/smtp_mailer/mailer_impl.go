package smtp_mailer

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/wneessen/go-mail"

	"github.com/user/valuation-service/internal/adapter/file_report"
	"github.com/user/valuation-service/internal/entity"
	"github.com/user/valuation-service/internal/repository"
)

const defaultTimeout = 30 * time.Second

// Config holds the SMTP account used to send reports.
type Config struct {
	Host      string
	Port      int
	Sender    string
	Password  string
	Recipient string
	Timeout   time.Duration // bounds a whole delivery; defaults to 30s
}

// SendFunc delivers one composed message.
type SendFunc func(ctx context.Context, msg *mail.Msg) error

// Mailer emails a run summary with the JSON and CSV reports attached.
type Mailer struct {
	cfg    Config
	send   SendFunc
	now    func() time.Time
	logger *slog.Logger
}

// NewMailer creates a Mailer that delivers over SMTP with mandatory STARTTLS and PLAIN auth.
func NewMailer(cfg Config, logger *slog.Logger) *Mailer {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}
	m := &Mailer{cfg: cfg, now: time.Now, logger: logger}
	m.send = m.deliver
	return m
}

func (m *Mailer) Name() string { return "email" }

// Publish sends the report for run. It gives up once ctx is done or the
// configured timeout passes, whichever comes first.
func (m *Mailer) Publish(ctx context.Context, run *entity.Run) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	msg, err := m.Compose(run)
	if err != nil {
		return fmt.Errorf("compose report email: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, m.cfg.Timeout)
	defer cancel()

	// The SMTP exchange is not guaranteed to observe ctx at every step,
	// so the wait for it is bounded here.
	done := make(chan error, 1)
	go func() { done <- m.send(ctx, msg) }()

	select {
	case err = <-done:
	case <-ctx.Done():
		err = ctx.Err()
	}
	if err != nil {
		return fmt.Errorf("send report email to %s: %w", m.cfg.Recipient, err)
	}

	m.logger.Info("Email sent successfully", "recipient", m.cfg.Recipient, "run_id", run.ID)
	return nil
}

func (m *Mailer) deliver(ctx context.Context, msg *mail.Msg) error {
	client, err := mail.NewClient(m.cfg.Host,
		mail.WithPort(m.cfg.Port),
		mail.WithTLSPolicy(mail.TLSMandatory),
		mail.WithSMTPAuth(mail.SMTPAuthPlain),
		mail.WithUsername(m.cfg.Sender),
		mail.WithPassword(m.cfg.Password),
		mail.WithTimeout(m.cfg.Timeout),
	)
	if err != nil {
		return fmt.Errorf("create smtp client: %w", err)
	}
	return client.DialAndSendWithContext(ctx, msg)
}

type templateData struct {
	Generated    string
	Summary      entity.RunSummary
	SourceErrors map[entity.Source]string
	Rows         []*entity.Listing
}

// Compose builds the message for run: an HTML summary of the first rows with
// the JSON and CSV reports attached.
func (m *Mailer) Compose(run *entity.Run) (*mail.Msg, error) {
	now := m.now()
	rows := run.Listings
	if len(rows) > topRows {
		rows = rows[:topRows]
	}

	var html bytes.Buffer
	if err := reportTemplate.Execute(&html, templateData{
		Generated:    now.Format("2006-01-02 15:04:05"),
		Summary:      run.Summary(),
		SourceErrors: run.SourceErrors,
		Rows:         rows,
	}); err != nil {
		return nil, err
	}

	var jsonReport, csvReport bytes.Buffer
	if err := file_report.EncodeJSON(&jsonReport, run); err != nil {
		return nil, err
	}
	if err := file_report.EncodeCSV(&csvReport, run); err != nil {
		return nil, err
	}

	msg := mail.NewMsg(mail.WithEncoding(mail.EncodingB64))
	if err := msg.From(m.cfg.Sender); err != nil {
		return nil, fmt.Errorf("sender %q: %w", m.cfg.Sender, err)
	}
	if err := msg.To(m.cfg.Recipient); err != nil {
		return nil, fmt.Errorf("recipient %q: %w", m.cfg.Recipient, err)
	}
	msg.Subject("Car Valuation Report - " + now.Format("2006-01-02 15:04"))
	msg.SetDateWithValue(now)
	msg.SetBodyString(mail.TypeTextHTML, html.String())

	stamp := run.StartedAt.Format("20060102_150405")
	msg.AttachReadSeeker("car_valuations_results_"+stamp+".json", bytes.NewReader(jsonReport.Bytes()),
		mail.WithFileContentType(mail.ContentType("application/json")))
	msg.AttachReadSeeker("car_valuations_results_"+stamp+".csv", bytes.NewReader(csvReport.Bytes()),
		mail.WithFileContentType(mail.ContentType("text/csv")))
	return msg, nil
}

var _ repository.ReportSink = (*Mailer)(nil)
