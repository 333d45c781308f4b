package utils

import (
	"crypto/tls"
	"errors"
	"fmt"
	"mime"
	"net"
	"net/smtp"
	"os"
	"strings"
	"time"
)

// SMTP delivery. Configured entirely from env:
//
//	SMTP_HOST, SMTP_PORT, SMTP_USER, SMTP_PASS
//	SMTP_FROM         sender address, e.g. "Guild <no-reply@example.com>"
//	SMTP_SSL          "true" for implicit TLS (port 465), otherwise STARTTLS
//	SMTP_SKIP_VERIFY  "true" to accept unverified certificates (self-signed
//	                  relays, mirrors the legacy deployment)
//	SMTP_TIMEOUT_SEC  dial timeout, default 20

// Mail is one outgoing message. HTMLBody is optional; when present the
// message is sent as multipart/alternative with a text fallback.
type Mail struct {
	To       []string
	Bcc      []string
	Subject  string
	TextBody string
	HTMLBody string
	ReplyTo  string
}

func smtpFrom() string {
	if v := os.Getenv("SMTP_FROM"); v != "" {
		return v
	}
	return "no-reply@example.com"
}

// fromAddress strips an optional display name from an RFC 5322 mailbox.
func fromAddress(mailbox string) string {
	if i := strings.LastIndex(mailbox, "<"); i >= 0 {
		return strings.TrimRight(mailbox[i+1:], ">")
	}
	return mailbox
}

// BuildMessage renders the full RFC 822 payload for a Mail.
func BuildMessage(m Mail) []byte {
	var b strings.Builder
	write := func(k, v string) { b.WriteString(k + ": " + v + "\r\n") }

	write("From", smtpFrom())
	if len(m.To) > 0 {
		write("To", strings.Join(m.To, ", "))
	}
	if m.ReplyTo != "" {
		write("Reply-To", m.ReplyTo)
	}
	write("Subject", mime.QEncoding.Encode("utf-8", m.Subject))
	write("Date", time.Now().Format(time.RFC1123Z))
	write("MIME-Version", "1.0")

	if m.HTMLBody == "" {
		write("Content-Type", "text/plain; charset=utf-8")
		b.WriteString("\r\n")
		b.WriteString(m.TextBody)
		return []byte(b.String())
	}

	const boundary = "=_guild_alt_boundary"
	write("Content-Type", "multipart/alternative; boundary=\""+boundary+"\"")
	b.WriteString("\r\n")
	b.WriteString("--" + boundary + "\r\n")
	b.WriteString("Content-Type: text/plain; charset=utf-8\r\n\r\n")
	b.WriteString(m.TextBody)
	b.WriteString("\r\n--" + boundary + "\r\n")
	b.WriteString("Content-Type: text/html; charset=utf-8\r\n\r\n")
	b.WriteString(m.HTMLBody)
	b.WriteString("\r\n--" + boundary + "--\r\n")
	return []byte(b.String())
}

// SendMail delivers one message through the configured relay. Recipients are
// the union of To and Bcc; Bcc addresses never appear in headers.
func SendMail(m Mail) error {
	host := os.Getenv("SMTP_HOST")
	if host == "" {
		return errors.New("SMTP_HOST is not set")
	}
	port := os.Getenv("SMTP_PORT")
	if port == "" {
		port = "587"
	}
	addr := net.JoinHostPort(host, port)

	timeout := 20 * time.Second
	if s := os.Getenv("SMTP_TIMEOUT_SEC"); s != "" {
		var sec int
		if _, err := fmt.Sscanf(s, "%d", &sec); err == nil && sec > 0 {
			timeout = time.Duration(sec) * time.Second
		}
	}

	tlsCfg := &tls.Config{
		ServerName:         host,
		InsecureSkipVerify: os.Getenv("SMTP_SKIP_VERIFY") == "true",
	}

	var client *smtp.Client
	if os.Getenv("SMTP_SSL") == "true" {
		conn, err := tls.DialWithDialer(&net.Dialer{Timeout: timeout}, "tcp", addr, tlsCfg)
		if err != nil {
			return fmt.Errorf("smtp dial: %w", err)
		}
		client, err = smtp.NewClient(conn, host)
		if err != nil {
			conn.Close()
			return fmt.Errorf("smtp handshake: %w", err)
		}
	} else {
		conn, err := net.DialTimeout("tcp", addr, timeout)
		if err != nil {
			return fmt.Errorf("smtp dial: %w", err)
		}
		client, err = smtp.NewClient(conn, host)
		if err != nil {
			conn.Close()
			return fmt.Errorf("smtp handshake: %w", err)
		}
		if ok, _ := client.Extension("STARTTLS"); ok {
			if err := client.StartTLS(tlsCfg); err != nil {
				client.Close()
				return fmt.Errorf("smtp starttls: %w", err)
			}
		}
	}
	defer client.Close()

	if user := os.Getenv("SMTP_USER"); user != "" {
		auth := smtp.PlainAuth("", user, os.Getenv("SMTP_PASS"), host)
		if err := client.Auth(auth); err != nil {
			return fmt.Errorf("smtp auth: %w", err)
		}
	}

	if err := client.Mail(fromAddress(smtpFrom())); err != nil {
		return fmt.Errorf("smtp mail from: %w", err)
	}
	recipients := append(append([]string{}, m.To...), m.Bcc...)
	if len(recipients) == 0 {
		return errors.New("mail has no recipients")
	}
	for _, rcpt := range recipients {
		if err := client.Rcpt(rcpt); err != nil {
			return fmt.Errorf("smtp rcpt %s: %w", rcpt, err)
		}
	}
	wc, err := client.Data()
	if err != nil {
		return fmt.Errorf("smtp data: %w", err)
	}
	if _, err := wc.Write(BuildMessage(m)); err != nil {
		wc.Close()
		return err
	}
	if err := wc.Close(); err != nil {
		return err
	}
	return client.Quit()
}
