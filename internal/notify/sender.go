package notify

import (
	"bytes"
	"context"
	"crypto/tls"
	"fmt"
	"io"
	"net"
	"net/smtp"
	"strconv"
	"strings"
	"time"

	"github.com/emersion/go-message/mail"
	"go.uber.org/zap"

	"bizportal/internal/config"
	"bizportal/internal/logging"
)

const dialTimeout = 5 * time.Second

// Field is one answered question, in form order.
type Field struct {
	Label string
	Value string
}

// Notice tells a form owner about a new submission.
type Notice struct {
	To                 string
	QuestionnaireTitle string
	QuestionnaireSlug  string
	SubmissionID       string
	SubmittedAt        time.Time
	ClientIP           string
	Fields             []Field
}

type Sender interface {
	SendSubmissionNotice(ctx context.Context, n Notice) error
}

// LogSender only records that a notice would have been sent.
type LogSender struct {
	log *zap.Logger
}

func (s LogSender) SendSubmissionNotice(_ context.Context, n Notice) error {
	logging.OrNop(s.log).Info("submission notice",
		zap.String("to", n.To),
		zap.String("questionnaire", n.QuestionnaireSlug),
		zap.String("submission_id", n.SubmissionID),
		zap.Int("fields", len(n.Fields)),
	)
	return nil
}

type SMTPSender struct {
	host string
	port int
	from string
}

func NewSender(cfg config.Config, log *zap.Logger) Sender {
	switch cfg.NotifySender {
	case "smtp":
		return SMTPSender{host: cfg.SMTPHost, port: cfg.SMTPPort, from: cfg.NotifyFrom}
	default:
		return LogSender{log: log}
	}
}

func (s SMTPSender) SendSubmissionNotice(ctx context.Context, n Notice) error {
	raw, err := Compose(s.from, n)
	if err != nil {
		return err
	}
	return s.send(ctx, n.To, raw)
}

func (s SMTPSender) send(ctx context.Context, to string, raw []byte) error {
	client, err := dial(ctx, s.host, s.port)
	if err != nil {
		return err
	}
	defer client.Close()

	if err := client.Mail(s.from); err != nil {
		return err
	}
	if err := client.Rcpt(strings.TrimSpace(to)); err != nil {
		return err
	}
	wc, err := client.Data()
	if err != nil {
		return err
	}
	if _, err := wc.Write(raw); err != nil {
		return err
	}
	if err := wc.Close(); err != nil {
		return err
	}
	return client.Quit()
}

// Probe checks that the SMTP relay accepts connections.
func (s SMTPSender) Probe(ctx context.Context) error {
	client, err := dial(ctx, s.host, s.port)
	if err != nil {
		return err
	}
	defer client.Close()
	return client.Quit()
}

// dial connects and upgrades with STARTTLS when the relay offers it.
func dial(ctx context.Context, host string, port int) (*smtp.Client, error) {
	dialer := &net.Dialer{Timeout: dialTimeout}
	conn, err := dialer.DialContext(ctx, "tcp", net.JoinHostPort(host, strconv.Itoa(port)))
	if err != nil {
		return nil, err
	}
	client, err := smtp.NewClient(conn, host)
	if err != nil {
		_ = conn.Close()
		return nil, err
	}
	if ok, _ := client.Extension("STARTTLS"); ok {
		if err := client.StartTLS(&tls.Config{ServerName: host}); err != nil {
			_ = client.Close()
			return nil, err
		}
	}
	return client, nil
}

// Compose renders n as a single-part text/plain RFC 5322 message.
func Compose(from string, n Notice) ([]byte, error) {
	fromAddr, err := mail.ParseAddress(from)
	if err != nil {
		return nil, fmt.Errorf("parse sender address: %w", err)
	}
	toAddr, err := mail.ParseAddress(n.To)
	if err != nil {
		return nil, fmt.Errorf("parse recipient address: %w", err)
	}

	var h mail.Header
	h.SetDate(n.SubmittedAt)
	h.SetAddressList("From", []*mail.Address{fromAddr})
	h.SetAddressList("To", []*mail.Address{toAddr})
	h.SetSubject("New submission: " + n.QuestionnaireTitle)
	h.SetContentType("text/plain", map[string]string{"charset": "utf-8"})
	if err := h.GenerateMessageID(); err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	w, err := mail.CreateSingleInlineWriter(&buf, h)
	if err != nil {
		return nil, err
	}
	if _, err := io.WriteString(w, renderBody(n)); err != nil {
		return nil, err
	}
	if err := w.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func renderBody(n Notice) string {
	var b strings.Builder
	fmt.Fprintf(&b, "A new response was submitted to %q (%s).\r\n\r\n", n.QuestionnaireTitle, n.QuestionnaireSlug)
	for _, f := range n.Fields {
		v := f.Value
		if v == "" {
			v = "-"
		}
		fmt.Fprintf(&b, "%s: %s\r\n", f.Label, v)
	}
	fmt.Fprintf(&b, "\r\nSubmission: %s\r\nReceived: %s\r\nFrom address: %s\r\n",
		n.SubmissionID, n.SubmittedAt.UTC().Format(time.RFC1123Z), n.ClientIP)
	return b.String()
}
