package smtpmail

import (
	"context"
	"crypto/tls"
	"fmt"
	"mime"
	"net"
	"net/smtp"
	"strconv"
	"strings"
	"time"

	"github.com/BearBump/RequestBox/internal/models"
	"github.com/BearBump/RequestBox/internal/notify"
	"github.com/google/uuid"
	"github.com/pkg/errors"
)

// Client доставляет уведомления по SMTP. Используется первым, когда у заявки
// есть вложения, и как запасной канал в остальных случаях.
type Client struct {
	host     string
	port     int
	secure   bool
	user     string
	password string

	dialTimeout time.Duration
}

func New(host string, port int, secure bool, user, password string) *Client {
	if port == 0 {
		if secure {
			port = 465
		} else {
			port = 587
		}
	}
	return &Client{
		host:        host,
		port:        port,
		secure:      secure,
		user:        user,
		password:    password,
		dialTimeout: 15 * time.Second,
	}
}

func (c *Client) Name() string { return models.ChannelSMTP }

func (c *Client) Configured() bool { return c.host != "" && c.user != "" }

func (c *Client) Send(ctx context.Context, msg notify.Message) (string, error) {
	msgID := fmt.Sprintf("<%s@%s>", uuid.NewString(), c.host)
	raw := buildMessage(msg, msgID)

	addr := net.JoinHostPort(c.host, strconv.Itoa(c.port))
	dialer := &net.Dialer{Timeout: c.dialTimeout}

	var conn net.Conn
	var err error
	if c.secure {
		// Порт 465: implicit TLS.
		conn, err = tls.DialWithDialer(dialer, "tcp", addr, &tls.Config{ServerName: c.host})
	} else {
		conn, err = dialer.DialContext(ctx, "tcp", addr)
	}
	if err != nil {
		return "", errors.Wrap(err, "smtp dial")
	}

	cl, err := smtp.NewClient(conn, c.host)
	if err != nil {
		_ = conn.Close()
		return "", errors.Wrap(err, "smtp client")
	}
	defer func() { _ = cl.Close() }()

	if !c.secure {
		if ok, _ := cl.Extension("STARTTLS"); ok {
			if err := cl.StartTLS(&tls.Config{ServerName: c.host}); err != nil {
				return "", errors.Wrap(err, "smtp starttls")
			}
		}
	}

	if ok, _ := cl.Extension("AUTH"); ok {
		if err := cl.Auth(smtp.PlainAuth("", c.user, c.password, c.host)); err != nil {
			return "", errors.Wrap(err, "smtp auth")
		}
	}
	if err := cl.Mail(msg.From); err != nil {
		return "", errors.Wrap(err, "smtp mail from")
	}
	if err := cl.Rcpt(msg.To); err != nil {
		return "", errors.Wrap(err, "smtp rcpt to")
	}

	w, err := cl.Data()
	if err != nil {
		return "", errors.Wrap(err, "smtp data")
	}
	if _, err := w.Write(raw); err != nil {
		return "", errors.Wrap(err, "smtp write body")
	}
	if err := w.Close(); err != nil {
		return "", errors.Wrap(err, "smtp close body")
	}

	_ = cl.Quit()
	return msgID, nil
}

// buildMessage собирает MIME-письмо руками: multipart/alternative для
// текст+HTML, сверху multipart/mixed, если есть вложения.
func buildMessage(msg notify.Message, msgID string) []byte {
	altBoundary := "alt-" + uuid.NewString()
	mixedBoundary := "mixed-" + uuid.NewString()

	var b strings.Builder
	b.WriteString(fmt.Sprintf("From: %s\r\n", msg.From))
	b.WriteString(fmt.Sprintf("To: %s\r\n", msg.To))
	b.WriteString(fmt.Sprintf("Subject: %s\r\n", mime.QEncoding.Encode("utf-8", msg.Subject)))
	b.WriteString(fmt.Sprintf("Message-ID: %s\r\n", msgID))
	b.WriteString(fmt.Sprintf("Date: %s\r\n", time.Now().UTC().Format(time.RFC1123Z)))
	b.WriteString("MIME-Version: 1.0\r\n")

	// Без вложений multipart/alternative — это заголовок самого письма и
	// завершает блок заголовков; с вложениями — заголовок первой части
	// после mixed-границы.
	hasAttachments := len(msg.Attachments) > 0
	if hasAttachments {
		b.WriteString(fmt.Sprintf("Content-Type: multipart/mixed; boundary=%q\r\n\r\n", mixedBoundary))
		b.WriteString(fmt.Sprintf("--%s\r\n", mixedBoundary))
	}

	b.WriteString(fmt.Sprintf("Content-Type: multipart/alternative; boundary=%q\r\n\r\n", altBoundary))

	b.WriteString(fmt.Sprintf("--%s\r\n", altBoundary))
	b.WriteString("Content-Type: text/plain; charset=UTF-8\r\n\r\n")
	b.WriteString(msg.PlainBody)
	b.WriteString("\r\n")

	b.WriteString(fmt.Sprintf("--%s\r\n", altBoundary))
	b.WriteString("Content-Type: text/html; charset=UTF-8\r\n\r\n")
	b.WriteString(msg.HTMLBody)
	b.WriteString("\r\n")

	b.WriteString(fmt.Sprintf("--%s--\r\n", altBoundary))

	if hasAttachments {
		for _, a := range msg.Attachments {
			b.WriteString(fmt.Sprintf("--%s\r\n", mixedBoundary))
			b.WriteString(fmt.Sprintf("Content-Type: %s; name=%q\r\n", a.MIMEType, a.Filename))
			b.WriteString("Content-Transfer-Encoding: base64\r\n")
			b.WriteString(fmt.Sprintf("Content-Disposition: attachment; filename=%q\r\n\r\n", a.Filename))
			b.WriteString(wrap76(a.Content))
			b.WriteString("\r\n")
		}
		b.WriteString(fmt.Sprintf("--%s--\r\n", mixedBoundary))
	}

	return []byte(b.String())
}

// wrap76 режет base64 на строки по 76 символов, как требует RFC 2045.
func wrap76(s string) string {
	var b strings.Builder
	for len(s) > 76 {
		b.WriteString(s[:76])
		b.WriteString("\r\n")
		s = s[76:]
	}
	b.WriteString(s)
	return b.String()
}
