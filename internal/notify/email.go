package notify

import (
	"bytes"
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"mime"
	"mime/multipart"
	"net/smtp"
	"net/textproto"
	"os"
	"path/filepath"
	"strings"

	"codeberg.org/snonux/bookmaker/internal"
)

// DefaultMaxAttachment is the largest output file that is attached
const DefaultMaxAttachment = 20 << 20

// EmailConfig holds SMTP settings
type EmailConfig struct {
	Host     string
	Port     string
	Username string
	Password string
	From     string
	To       string
	// Attach adds the rendered document to successful runs
	Attach bool
	// MaxAttachment skips attachments larger than this many bytes
	MaxAttachment int64
}

type sendFunc func(addr string, a smtp.Auth, from string, to []string, msg []byte) error

// EmailNotifier mails the run summary
type EmailNotifier struct {
	config EmailConfig
	send   sendFunc
}

// NewEmailNotifier creates an email notifier. The port defaults to 587 and
// the sender to noreply@<host>.
func NewEmailNotifier(cfg EmailConfig) *EmailNotifier {
	cfg.Host = strings.TrimSpace(cfg.Host)
	cfg.Port = strings.TrimSpace(cfg.Port)
	cfg.Username = strings.TrimSpace(cfg.Username)
	cfg.From = strings.TrimSpace(cfg.From)
	cfg.To = strings.TrimSpace(cfg.To)

	if cfg.Port == "" {
		cfg.Port = "587"
	}
	if cfg.From == "" && cfg.Host != "" {
		cfg.From = "noreply@" + cfg.Host
	}
	if cfg.MaxAttachment <= 0 {
		cfg.MaxAttachment = DefaultMaxAttachment
	}
	return &EmailNotifier{config: cfg, send: smtp.SendMail}
}

// Enabled reports whether enough settings are present to send mail
func (n *EmailNotifier) Enabled() bool {
	return n.config.Host != "" && n.config.To != ""
}

// Notify sends the summary. smtp.SendMail upgrades to STARTTLS when the
// server offers it.
func (n *EmailNotifier) Notify(ctx context.Context, o Outcome) error {
	if !n.Enabled() {
		return errors.New("email notifier is not configured")
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	attachment := ""
	if n.config.Attach && o.Succeeded() && o.Output != "" {
		if info, err := os.Stat(o.Output); err == nil && info.Size() <= n.config.MaxAttachment {
			attachment = o.Output
		}
	}

	msg, err := n.buildMessage(o.Subject(), o.Body(), attachment)
	if err != nil {
		return fmt.Errorf("failed to build email: %w", err)
	}

	var auth smtp.Auth
	if n.config.Username != "" {
		auth = smtp.PlainAuth("", n.config.Username, n.config.Password, n.config.Host)
	}

	addr := fmt.Sprintf("%s:%s", n.config.Host, n.config.Port)
	if err := n.send(addr, auth, n.config.From, []string{n.config.To}, msg); err != nil {
		return fmt.Errorf("failed to send email: %w", err)
	}
	return nil
}

func (n *EmailNotifier) buildMessage(subject, body, attachment string) ([]byte, error) {
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)

	headers := []struct{ key, value string }{
		{"From", n.config.From},
		{"To", n.config.To},
		{"Subject", mime.QEncoding.Encode("utf-8", subject)},
		{"MIME-Version", "1.0"},
		{"Content-Type", fmt.Sprintf("multipart/mixed; boundary=%q", mw.Boundary())},
	}
	for _, h := range headers {
		buf.WriteString(h.key)
		buf.WriteString(": ")
		buf.WriteString(h.value)
		buf.WriteString("\r\n")
	}
	buf.WriteString("\r\n")

	text, err := mw.CreatePart(textproto.MIMEHeader{
		"Content-Type":              {"text/plain; charset=UTF-8"},
		"Content-Transfer-Encoding": {"8bit"},
	})
	if err != nil {
		return nil, err
	}
	if _, err := text.Write([]byte(strings.ReplaceAll(body, "\n", "\r\n"))); err != nil {
		return nil, err
	}

	if attachment != "" {
		data, err := os.ReadFile(attachment)
		if err != nil {
			return nil, err
		}
		name := internal.SanitizeFilename(filepath.Base(attachment))
		part, err := mw.CreatePart(textproto.MIMEHeader{
			"Content-Type":              {mime.FormatMediaType("application/octet-stream", map[string]string{"name": name})},
			"Content-Transfer-Encoding": {"base64"},
			"Content-Disposition":       {mime.FormatMediaType("attachment", map[string]string{"filename": name})},
		})
		if err != nil {
			return nil, err
		}
		if err := writeBase64Lines(part, data); err != nil {
			return nil, err
		}
	}

	if err := mw.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// writeBase64Lines encodes data in lines of 76 characters
func writeBase64Lines(w io.Writer, data []byte) error {
	encoded := base64.StdEncoding.EncodeToString(data)
	for len(encoded) > 76 {
		if _, err := w.Write([]byte(encoded[:76] + "\r\n")); err != nil {
			return err
		}
		encoded = encoded[76:]
	}
	_, err := w.Write([]byte(encoded + "\r\n"))
	return err
}
