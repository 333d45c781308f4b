package utils

import (
	"strings"
	"testing"
)

func TestBuildMessage_PlainText(t *testing.T) {
	t.Setenv("SMTP_FROM", "Guild <no-reply@guild.example.com>")
	msg := string(BuildMessage(Mail{
		To:       []string{"a@example.com"},
		Subject:  "hello",
		TextBody: "plain body",
	}))
	if !strings.Contains(msg, "From: Guild <no-reply@guild.example.com>\r\n") {
		t.Fatal("missing From header")
	}
	if !strings.Contains(msg, "Content-Type: text/plain; charset=utf-8\r\n") {
		t.Fatal("plain mail should be text/plain")
	}
	if !strings.HasSuffix(msg, "plain body") {
		t.Fatal("body should close the message")
	}
}

func TestBuildMessage_Multipart(t *testing.T) {
	msg := string(BuildMessage(Mail{
		To:       []string{"a@example.com"},
		Subject:  "通知",
		TextBody: "text part",
		HTMLBody: "<p>html part</p>",
	}))
	if !strings.Contains(msg, "multipart/alternative") {
		t.Fatal("html mail should be multipart/alternative")
	}
	if !strings.Contains(msg, "text part") || !strings.Contains(msg, "<p>html part</p>") {
		t.Fatal("both parts should be present")
	}
	// Non-ASCII subjects are Q-encoded.
	if !strings.Contains(msg, "Subject: =?utf-8?q?") {
		t.Fatalf("subject should be Q-encoded: %s", msg)
	}
}

func TestBuildMessage_BccNeverInHeaders(t *testing.T) {
	msg := string(BuildMessage(Mail{
		Bcc:      []string{"hidden@example.com"},
		Subject:  "s",
		TextBody: "b",
	}))
	if strings.Contains(msg, "hidden@example.com") {
		t.Fatal("bcc recipients must not appear in the payload")
	}
}

func TestFromAddress(t *testing.T) {
	if got := fromAddress("Guild <no-reply@x.com>"); got != "no-reply@x.com" {
		t.Fatalf("expected bare address, got %s", got)
	}
	if got := fromAddress("no-reply@x.com"); got != "no-reply@x.com" {
		t.Fatalf("bare address should pass through, got %s", got)
	}
}
