// internal/message/message.go
//
// Formpipe – Messaging: notification delivery.
//
// Context
//   The form processor hands each rendered notification to a form.Mailer.
//   Two implementations live here:
//
//   •  SMTPMailer formats an RFC 5322 HTML message and relays it through the
//      configured SMTP server (PLAIN auth when a username is set).
//   •  LogMailer only logs the envelope.  cmd/web installs it when no SMTP
//      host is configured so development setups never fail on delivery.
//
//   Header values are stripped of CR and LF so a submitted address cannot
//   inject extra headers.  The envelope sender is always the configured
//   address; a per-form From header only changes what recipients see.
//
//------------------------------------------------------------------------------

package message

import (
	"bytes"
	"context"
	"fmt"
	"mime"
	"net"
	"net/smtp"
	"net/textproto"
	"sort"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/yanizio/formpipe/internal/form"
)

// SMTPConfig describes the relay.
type SMTPConfig struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string // envelope sender and default From header
}

// SMTPMailer implements form.Mailer over net/smtp.
type SMTPMailer struct {
	addr string
	host string
	auth smtp.Auth
	from string
	log  *zap.SugaredLogger
	now  func() time.Time

	// send is smtp.SendMail, swapped out in tests.
	send func(addr string, a smtp.Auth, from string, to []string, msg []byte) error
}

// NewSMTP returns a mailer for cfg.  A zero port selects 587.
func NewSMTP(cfg SMTPConfig, log *zap.SugaredLogger) *SMTPMailer {
	if cfg.Port == 0 {
		cfg.Port = 587
	}
	if log == nil {
		log = zap.S()
	}
	m := &SMTPMailer{
		addr: net.JoinHostPort(cfg.Host, strconv.Itoa(cfg.Port)),
		host: cfg.Host,
		from: cfg.From,
		log:  log,
		now:  time.Now,
		send: smtp.SendMail,
	}
	if cfg.Username != "" {
		m.auth = smtp.PlainAuth("", cfg.Username, cfg.Password, cfg.Host)
	}
	return m
}

// Send delivers e.  The context is checked before dialing; net/smtp has no
// cancellation once the session starts.
func (m *SMTPMailer) Send(ctx context.Context, e form.Email) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	to := headerSafe(e.To)
	if to == "" {
		return fmt.Errorf("message: empty recipient")
	}

	msg := m.build(e, to)
	if err := m.send(m.addr, m.auth, m.from, []string{to}, msg); err != nil {
		return fmt.Errorf("smtp send to %s: %w", to, err)
	}
	m.log.Debugw("email sent", "to", to, "bytes", len(msg))
	return nil
}

// build renders the wire message.  Caller headers win over the defaults
// except for To, Subject, and Date, which are always set here.
func (m *SMTPMailer) build(e form.Email, to string) []byte {
	h := map[string]string{
		"From":         m.from,
		"MIME-Version": "1.0",
		"Content-Type": "text/html; charset=utf-8",
	}
	for k, v := range e.Headers {
		h[canonical(k)] = v
	}
	h["To"] = to
	h["Subject"] = mime.QEncoding.Encode("utf-8", headerSafe(e.Subject))
	h["Date"] = m.now().Format(time.RFC1123Z)

	keys := make([]string, 0, len(h))
	for k := range h {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var buf bytes.Buffer
	for _, k := range keys {
		v := headerSafe(h[k])
		if v == "" {
			continue
		}
		fmt.Fprintf(&buf, "%s: %s\r\n", k, v)
	}
	buf.WriteString("\r\n")
	buf.WriteString(strings.ReplaceAll(strings.ReplaceAll(e.HTML, "\r\n", "\n"), "\n", "\r\n"))
	return buf.Bytes()
}

// -----------------------------------------------------------------------------
// LogMailer
// -----------------------------------------------------------------------------

// LogMailer logs notifications instead of sending them.
type LogMailer struct {
	Log *zap.SugaredLogger
}

// Send logs the envelope and returns nil.
func (m LogMailer) Send(_ context.Context, e form.Email) error {
	log := m.Log
	if log == nil {
		log = zap.S()
	}
	log.Infow("email (not sent, no SMTP host)",
		"to", e.To,
		"subject", e.Subject,
		"html_bytes", len(e.HTML),
		"headers", len(e.Headers),
	)
	return nil
}

// -----------------------------------------------------------------------------
// Helpers
// -----------------------------------------------------------------------------

func headerSafe(s string) string {
	return strings.TrimSpace(strings.NewReplacer("\r", "", "\n", "").Replace(s))
}

// canonical normalises a header name so "content-type" and "Content-type"
// collapse onto the default key.  MIME-Version keeps its conventional form.
func canonical(k string) string {
	if strings.EqualFold(k, "MIME-Version") {
		return "MIME-Version"
	}
	return textproto.CanonicalMIMEHeaderKey(headerSafe(k))
}
