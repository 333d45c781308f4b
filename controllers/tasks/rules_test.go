package tasks

import (
	"testing"

	"github.com/214WANGCAN/adventurer-backend/models"
)

func soloTask() *models.Task {
	return &models.Task{
		ID:           1,
		Title:        "图书馆整理",
		TaskType:     models.TaskTypeSolo,
		PublisherID:  10,
		MaximumUsers: 1,
	}
}

func teamTask() *models.Task {
	return &models.Task{
		ID:           2,
		Title:        "运动会志愿服务",
		TaskType:     models.TaskTypeTeam,
		PublisherID:  10,
		MaximumUsers: 4,
	}
}

func TestCanApply_OpenSolo(t *testing.T) {
	if err := CanApply(soloTask(), 0, 0, 6); err != nil {
		t.Fatalf("expected apply to pass, got %v", err)
	}
}

func TestCanApply_CompletedTask(t *testing.T) {
	task := soloTask()
	task.IsCompleted = true
	if err := CanApply(task, 0, 0, 6); err != ErrTaskClosed {
		t.Fatalf("expected ErrTaskClosed, got %v", err)
	}
}

func TestCanApply_SoloAlreadyClaimed(t *testing.T) {
	if err := CanApply(soloTask(), 1, 0, 6); err != ErrTaskClaimed {
		t.Fatalf("expected ErrTaskClaimed, got %v", err)
	}
}

func TestCanApply_TeamWithLeader(t *testing.T) {
	task := teamTask()
	leader := uint(7)
	task.LeaderID = &leader
	if err := CanApply(task, 1, 0, 6); err != ErrTaskClaimed {
		t.Fatalf("expected ErrTaskClaimed for claimed team, got %v", err)
	}
}

func TestCanApply_ActiveLimit(t *testing.T) {
	if err := CanApply(soloTask(), 0, 6, 6); err != ErrTaskLimitExceeded {
		t.Fatalf("expected ErrTaskLimitExceeded, got %v", err)
	}
	if err := CanApply(soloTask(), 0, 5, 6); err != nil {
		t.Fatalf("expected pass just under the limit, got %v", err)
	}
}

func TestApplyStartState(t *testing.T) {
	cases := []struct {
		taskType          string
		invitees          int
		started, accepted bool
	}{
		{models.TaskTypeSolo, 0, true, true},
		{models.TaskTypeTeam, 0, true, true},
		{models.TaskTypeTeam, 3, false, true},
	}
	for _, c := range cases {
		started, accepted := ApplyStartState(c.taskType, c.invitees)
		if started != c.started || accepted != c.accepted {
			t.Fatalf("%s with %d invitees: got started=%v accepted=%v, want %v/%v",
				c.taskType, c.invitees, started, accepted, c.started, c.accepted)
		}
	}
}

func TestCanAcceptInvite(t *testing.T) {
	task := teamTask()
	if err := CanAcceptInvite(task, false, 0, 0, 6); err != ErrNotInvited {
		t.Fatalf("expected ErrNotInvited, got %v", err)
	}
	if err := CanAcceptInvite(task, true, 4, 0, 6); err != ErrTaskClaimed {
		t.Fatalf("expected ErrTaskClaimed at capacity, got %v", err)
	}
	if err := CanAcceptInvite(task, true, 1, 6, 6); err != ErrTaskLimitExceeded {
		t.Fatalf("expected ErrTaskLimitExceeded, got %v", err)
	}
	if err := CanAcceptInvite(task, true, 1, 0, 6); err != nil {
		t.Fatalf("expected accept to pass, got %v", err)
	}
	task.IsCompleted = true
	if err := CanAcceptInvite(task, true, 1, 0, 6); err != ErrTaskClosed {
		t.Fatalf("expected ErrTaskClosed, got %v", err)
	}
}

func TestCanRequestCancel_SoloParticipant(t *testing.T) {
	task := soloTask()
	if err := CanRequestCancel(task, 5, true); err != nil {
		t.Fatalf("participant of a solo task should be able to cancel, got %v", err)
	}
	if err := CanRequestCancel(task, 5, false); err != ErrNotEligible {
		t.Fatalf("expected ErrNotEligible for outsider, got %v", err)
	}
}

func TestCanRequestCancel_TeamLeaderOnly(t *testing.T) {
	task := teamTask()
	leader := uint(5)
	task.LeaderID = &leader
	if err := CanRequestCancel(task, 5, true); err != nil {
		t.Fatalf("leader should be able to cancel, got %v", err)
	}
	if err := CanRequestCancel(task, 6, true); err != ErrNotEligible {
		t.Fatalf("expected ErrNotEligible for non-leader member, got %v", err)
	}
}

func TestCanRequestCancel_CompletedTask(t *testing.T) {
	task := soloTask()
	task.IsCompleted = true
	if err := CanRequestCancel(task, 5, true); err != ErrTaskClosed {
		t.Fatalf("expected ErrTaskClosed, got %v", err)
	}
}

func TestCanUrgeCompletion(t *testing.T) {
	task := soloTask()
	if err := CanUrgeCompletion(task, true); err != nil {
		t.Fatalf("participant should be able to urge, got %v", err)
	}
	if err := CanUrgeCompletion(task, false); err != ErrNotEligible {
		t.Fatalf("expected ErrNotEligible for outsider, got %v", err)
	}
	task.IsCompleted = true
	if err := CanUrgeCompletion(task, true); err != ErrAlreadyComplete {
		t.Fatalf("expected ErrAlreadyComplete, got %v", err)
	}
}

func TestCanRemoveParticipant(t *testing.T) {
	if err := CanRemoveParticipant(soloTask()); err != nil {
		t.Fatalf("expected removal allowed on open solo task, got %v", err)
	}
	if err := CanRemoveParticipant(teamTask()); err != ErrNotEligible {
		t.Fatalf("expected ErrNotEligible for team task, got %v", err)
	}
	done := soloTask()
	done.IsCompleted = true
	if err := CanRemoveParticipant(done); err != ErrNotEligible {
		t.Fatalf("expected ErrNotEligible for completed task, got %v", err)
	}
}

func TestResetForCancel(t *testing.T) {
	task := teamTask()
	leader := uint(5)
	task.LeaderID = &leader
	task.IsStarted = true
	task.IsAccepted = true
	task.CancelRequested = true

	ResetForCancel(task)

	if task.LeaderID != nil || task.IsStarted || task.IsAccepted || task.IsCompleted || task.CancelRequested {
		t.Fatalf("task not fully reset: %+v", task)
	}
}

func TestApplyAutoClose(t *testing.T) {
	task := soloTask()
	task.IsAccepted = true
	ApplyAutoClose(task)
	if !task.IsCompleted || task.IsAccepted || !task.CancelRequested {
		t.Fatalf("auto-close flags wrong: %+v", task)
	}
}

func TestCreditBalances(t *testing.T) {
	user := &models.User{Experience: 90, Tokens: 10, VolunteerTime: 1.5, Level: "F"}
	reward := Reward{Experience: 20, Tokens: 5, VolunteerTime: 0.255}

	leveledUp := CreditBalances(user, reward)

	if !leveledUp {
		t.Fatal("expected crossing 100 XP to level up")
	}
	if user.Experience != 110 || user.Tokens != 15 {
		t.Fatalf("balances wrong: xp=%d tokens=%d", user.Experience, user.Tokens)
	}
	if user.VolunteerTime != 1.76 {
		t.Fatalf("volunteer time should round to 2 decimals, got %v", user.VolunteerTime)
	}
	if user.Level != "E" {
		t.Fatalf("expected level E, got %s", user.Level)
	}
}

func TestCreditBalances_NoLevelChange(t *testing.T) {
	user := &models.User{Experience: 10, Level: "F"}
	if leveledUp := CreditBalances(user, Reward{Experience: 5}); leveledUp {
		t.Fatal("5 XP should not level up from 10")
	}
	if user.Level != "F" {
		t.Fatalf("expected level F, got %s", user.Level)
	}
}

func TestCreditBalances_TitleOverride(t *testing.T) {
	user := &models.User{
		Experience: 49990,
		Level:      "SSS",
		Title:      &models.UserTitle{Name: "传奇冒险家"},
	}
	if leveledUp := CreditBalances(user, Reward{Experience: 100}); !leveledUp {
		t.Fatal("crossing the title threshold should count as a level change")
	}
	if user.Level != "传奇冒险家" {
		t.Fatalf("expected title to replace rank, got %s", user.Level)
	}
}

func TestMaxActiveTasks_Default(t *testing.T) {
	t.Setenv("MAX_ACTIVE_TASKS", "")
	if got := MaxActiveTasks(); got != 6 {
		t.Fatalf("expected default 6, got %d", got)
	}
	t.Setenv("MAX_ACTIVE_TASKS", "3")
	if got := MaxActiveTasks(); got != 3 {
		t.Fatalf("expected 3 from env, got %d", got)
	}
	t.Setenv("MAX_ACTIVE_TASKS", "-1")
	if got := MaxActiveTasks(); got != 6 {
		t.Fatalf("invalid env value should fall back to 6, got %d", got)
	}
}
