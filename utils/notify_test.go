package utils

import (
	"strings"
	"testing"

	"github.com/214WANGCAN/adventurer-backend/models"
)

func TestSubjectFor(t *testing.T) {
	if got := SubjectFor(models.NotifyInvite); got != "[冒险者工会] 组队邀请" {
		t.Fatalf("unexpected subject: %s", got)
	}
	if got := SubjectFor("no-such-type"); got != "[冒险者工会] 通知" {
		t.Fatalf("unknown type should use the generic subject, got %s", got)
	}
}

func TestTaskURL(t *testing.T) {
	t.Setenv("SITE_URL", "https://guild.example.com")
	id := uint(42)
	if got := TaskURL(&id); got != "https://guild.example.com/tasks/42/" {
		t.Fatalf("unexpected task url: %s", got)
	}
	if got := TaskURL(nil); got != "" {
		t.Fatalf("nil task id should yield empty url, got %s", got)
	}
}

func TestRenderNotificationEmail(t *testing.T) {
	t.Setenv("SITE_URL", "https://guild.example.com")
	id := uint(7)
	n := &models.Notification{
		Type:          models.NotifyCompleted,
		Message:       "任务《图书馆整理》已完成",
		RelatedTaskID: &id,
	}
	html, text := RenderNotificationEmail(n)
	if !strings.Contains(html, "任务《图书馆整理》已完成") {
		t.Fatal("html body should contain the message")
	}
	if !strings.Contains(html, "https://guild.example.com/tasks/7/") {
		t.Fatal("html body should link to the task")
	}
	if !strings.Contains(text, "查看任务：https://guild.example.com/tasks/7/") {
		t.Fatal("text fallback should carry the task link")
	}
}

func TestRenderNotificationEmail_NoTask(t *testing.T) {
	t.Setenv("SITE_URL", "https://guild.example.com")
	n := &models.Notification{Type: models.NotifySystem, Message: "系统维护通知"}
	html, text := RenderNotificationEmail(n)
	if strings.Contains(html, "查看任务") {
		t.Fatal("html should not render a task button without a task")
	}
	if strings.Contains(text, "查看任务") {
		t.Fatal("text should not mention a task link without a task")
	}
}
