package alerts

import (
	"bytes"
	"context"
	"encoding/base64"
	"fmt"
	"mime/multipart"
	"net"
	"net/smtp"
	"net/textproto"
	"strings"
	"time"
)

var sendMail = smtp.SendMail

type MailConfig struct {
	Addr     string // host:port
	User     string
	Password string
	From     string
	To       []string
}

// Mailer sends the alert to administrators with the frame attached.
type Mailer struct {
	cfg MailConfig
}

func NewMailer(cfg MailConfig) *Mailer {
	return &Mailer{cfg: cfg}
}

func (m *Mailer) Name() string { return "smtp" }

func (m *Mailer) Notify(ctx context.Context, a Alert, image []byte) error {
	if len(m.cfg.To) == 0 {
		return fmt.Errorf("no recipients")
	}
	msg, err := m.compose(a, image)
	if err != nil {
		return err
	}

	var auth smtp.Auth
	if m.cfg.User != "" {
		host, _, err := net.SplitHostPort(m.cfg.Addr)
		if err != nil {
			return fmt.Errorf("smtp addr: %w", err)
		}
		auth = smtp.PlainAuth("", m.cfg.User, m.cfg.Password, host)
	}

	done := make(chan error, 1)
	go func() { done <- sendMail(m.cfg.Addr, auth, m.cfg.From, m.cfg.To, msg) }()
	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (m *Mailer) compose(a Alert, image []byte) ([]byte, error) {
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)

	fmt.Fprintf(&body, "From: %s\r\n", m.cfg.From)
	fmt.Fprintf(&body, "To: %s\r\n", strings.Join(m.cfg.To, ", "))
	fmt.Fprintf(&body, "Subject: VisionLock lockout: %s\r\n", a.Label)
	fmt.Fprintf(&body, "Date: %s\r\n", a.At.Format(time.RFC1123Z))
	body.WriteString("MIME-Version: 1.0\r\n")
	fmt.Fprintf(&body, "Content-Type: multipart/mixed; boundary=%s\r\n\r\n", mw.Boundary())

	text, err := mw.CreatePart(textproto.MIMEHeader{"Content-Type": {"text/plain; charset=utf-8"}})
	if err != nil {
		return nil, err
	}
	fmt.Fprintf(text, "A session was locked after repeated failed attempts.\r\n\r\nIdentity: %s\r\nAlert: %s\r\nTime: %s\r\n",
		a.Label, a.ID, a.At.Format(time.RFC3339))
	if a.SnapshotURL != "" {
		fmt.Fprintf(text, "Snapshot: %s\r\n", a.SnapshotURL)
	}

	if len(image) > 0 {
		att, err := mw.CreatePart(textproto.MIMEHeader{
			"Content-Type":              {"image/jpeg"},
			"Content-Transfer-Encoding": {"base64"},
			"Content-Disposition":       {fmt.Sprintf(`attachment; filename="%s.jpg"`, a.ID)},
		})
		if err != nil {
			return nil, err
		}
		enc := base64.StdEncoding.EncodeToString(image)
		for len(enc) > 76 {
			fmt.Fprintf(att, "%s\r\n", enc[:76])
			enc = enc[76:]
		}
		fmt.Fprintf(att, "%s\r\n", enc)
	}

	if err := mw.Close(); err != nil {
		return nil, err
	}
	return body.Bytes(), nil
}
