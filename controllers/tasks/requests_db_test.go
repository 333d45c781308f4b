package tasks

import (
	"encoding/json"
	"fmt"
	"net/http/httptest"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/214WANGCAN/adventurer-backend/database"
	"github.com/214WANGCAN/adventurer-backend/models"

	gormmysql "gorm.io/driver/mysql"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// Transaction-level behavior (dedup constraint, task-scoped approval, credit
// idempotency) needs a real MySQL; these tests run only when TEST_DB_DSN
// points at a throwaway database and are skipped otherwise.

var (
	testDBOnce sync.Once
	testDB     *gorm.DB
	testDBErr  error
)

func openTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := os.Getenv("TEST_DB_DSN")
	if dsn == "" {
		t.Skip("TEST_DB_DSN not set")
	}
	testDBOnce.Do(func() {
		db, err := gorm.Open(gormmysql.Open(dsn), &gorm.Config{
			Logger:         logger.Default.LogMode(logger.Silent),
			TranslateError: true,
		})
		if err != nil {
			testDBErr = err
			return
		}
		_ = db.Migrator().DropTable(
			"task_participants", "task_invites",
			&models.TaskRequest{}, &models.Notification{}, &models.Task{},
			&models.RefreshToken{}, &models.User{}, &models.UserTitle{},
		)
		if err := db.AutoMigrate(
			&models.UserTitle{},
			&models.User{},
			&models.RefreshToken{},
			&models.Task{},
			&models.TaskRequest{},
			&models.Notification{},
		); err != nil {
			testDBErr = err
			return
		}
		testDB = db
	})
	if testDBErr != nil {
		t.Fatalf("test database setup failed: %v", testDBErr)
	}
	return testDB
}

var seedSeq int

func seedUser(t *testing.T, db *gorm.DB, username, role string) *models.User {
	t.Helper()
	seedSeq++
	user := &models.User{
		Username:   username,
		Password:   "x",
		Role:       role,
		Level:      "F",
		Identifier: fmt.Sprintf("%06d", 900000+seedSeq),
	}
	if err := db.Create(user).Error; err != nil {
		t.Fatalf("seed user %s: %v", username, err)
	}
	return user
}

func seedTask(t *testing.T, db *gorm.DB, publisher *models.User, taskType string, maxUsers uint) *models.Task {
	t.Helper()
	task := &models.Task{
		Title:               "测试任务 " + taskType,
		Description:         "desc",
		TaskType:            taskType,
		PublisherID:         publisher.ID,
		MaximumUsers:        maxUsers,
		RequiredLevel:       "F",
		ExperienceReward:    10,
		TokenReward:         5,
		VolunteerTimeReward: 1.5,
		Deadline:            time.Now().Add(48 * time.Hour),
	}
	if err := db.Create(task).Error; err != nil {
		t.Fatalf("seed task: %v", err)
	}
	return task
}

func addParticipant(t *testing.T, db *gorm.DB, task *models.Task, user *models.User) {
	t.Helper()
	if err := db.Model(task).Association("AcceptedBy").Append(user); err != nil {
		t.Fatalf("add participant: %v", err)
	}
}

func TestRequestCancel_DuplicatePendingRejected(t *testing.T) {
	db := openTestDB(t)
	teacher := seedUser(t, db, "dup_teacher", models.RoleTeacher)
	student := seedUser(t, db, "dup_student", models.RoleStudent)
	task := seedTask(t, db, teacher, models.TaskTypeSolo, 1)
	addParticipant(t, db, task, student)

	if _, err := runRequestCancel(db, student, task.ID, "有事", "临时有事无法完成"); err != nil {
		t.Fatalf("first cancel request should succeed, got %v", err)
	}
	if _, err := runRequestCancel(db, student, task.ID, "有事", "再次提交"); err != ErrDuplicatePending {
		t.Fatalf("second unresolved cancel request must hit the dedup constraint, got %v", err)
	}

	var pending int64
	db.Model(&models.TaskRequest{}).
		Where("task_id = ? AND requester_id = ? AND type = ? AND status = ?",
			task.ID, student.ID, models.RequestTypeCancel, models.RequestStatusPending).
		Count(&pending)
	if pending != 1 {
		t.Fatalf("expected exactly one pending cancel row, got %d", pending)
	}
}

func TestApproveCancel_TaskScopedApproval(t *testing.T) {
	db := openTestDB(t)
	teacher := seedUser(t, db, "scope_teacher", models.RoleTeacher)
	s1 := seedUser(t, db, "scope_s1", models.RoleStudent)
	s2 := seedUser(t, db, "scope_s2", models.RoleStudent)
	task := seedTask(t, db, teacher, models.TaskTypeTeam, 4)
	addParticipant(t, db, task, s1)
	addParticipant(t, db, task, s2)
	db.Model(task).Updates(map[string]interface{}{
		"leader_id":        s1.ID,
		"is_accepted":      true,
		"is_started":       true,
		"cancel_requested": true,
	})

	for _, requester := range []*models.User{s1, s2} {
		req := models.NewPendingRequest(task.ID, requester.ID, models.RequestTypeCancel)
		if err := db.Create(&req).Error; err != nil {
			t.Fatalf("seed pending cancel for %d: %v", requester.ID, err)
		}
	}

	if err := runApproveCancel(db, teacher.ID, task.ID); err != nil {
		t.Fatalf("approve-cancel failed: %v", err)
	}

	// Approval is task-scoped: every requester's pending cancel resolves.
	var approved, stillPending int64
	db.Model(&models.TaskRequest{}).
		Where("task_id = ? AND type = ? AND status = ?", task.ID, models.RequestTypeCancel, models.RequestStatusApproved).
		Count(&approved)
	db.Model(&models.TaskRequest{}).
		Where("task_id = ? AND type = ? AND status = ?", task.ID, models.RequestTypeCancel, models.RequestStatusPending).
		Count(&stillPending)
	if approved != 2 || stillPending != 0 {
		t.Fatalf("expected 2 approved / 0 pending, got %d / %d", approved, stillPending)
	}

	var reset models.Task
	if err := db.First(&reset, task.ID).Error; err != nil {
		t.Fatalf("reload task: %v", err)
	}
	if reset.LeaderID != nil || reset.IsStarted || reset.IsAccepted || reset.IsCompleted || reset.CancelRequested {
		t.Fatalf("task not reset to pristine state: %+v", reset)
	}
	if n := db.Model(&reset).Association("AcceptedBy").Count(); n != 0 {
		t.Fatalf("accepted set should be empty after reset, got %d", n)
	}
}

func TestApproveComplete_CreditsExactlyOnce(t *testing.T) {
	db := openTestDB(t)
	teacher := seedUser(t, db, "once_teacher", models.RoleTeacher)
	student := seedUser(t, db, "once_student", models.RoleStudent)
	task := seedTask(t, db, teacher, models.TaskTypeSolo, 1)
	addParticipant(t, db, task, student)

	_, alreadyDone, err := runApproveComplete(db, teacher.ID, task.ID)
	if err != nil || alreadyDone {
		t.Fatalf("first completion should settle, got done=%v err=%v", alreadyDone, err)
	}

	var after models.User
	if err := db.First(&after, student.ID).Error; err != nil {
		t.Fatalf("reload student: %v", err)
	}
	if after.Experience != 10 || after.Tokens != 5 || after.VolunteerTime != 1.5 {
		t.Fatalf("reward mismatch: xp=%d tokens=%d vt=%v", after.Experience, after.Tokens, after.VolunteerTime)
	}

	_, alreadyDone, err = runApproveComplete(db, teacher.ID, task.ID)
	if err != nil || !alreadyDone {
		t.Fatalf("re-approving must be an idempotent no-op, got done=%v err=%v", alreadyDone, err)
	}
	var again models.User
	if err := db.First(&again, student.ID).Error; err != nil {
		t.Fatalf("reload student: %v", err)
	}
	if again.Experience != 10 || again.Tokens != 5 || again.VolunteerTime != 1.5 {
		t.Fatalf("double credit detected: xp=%d tokens=%d vt=%v", again.Experience, again.Tokens, again.VolunteerTime)
	}
}

func TestTaskList_DefaultBoardHidesClosedAndExpired(t *testing.T) {
	db := openTestDB(t)
	prev := database.DB
	database.DB = db
	defer func() { database.DB = prev }()

	teacher := seedUser(t, db, "board_teacher", models.RoleTeacher)
	open := seedTask(t, db, teacher, models.TaskTypeSolo, 1)
	done := seedTask(t, db, teacher, models.TaskTypeSolo, 1)
	db.Model(done).Update("is_completed", true)
	stale := seedTask(t, db, teacher, models.TaskTypeSolo, 1)
	db.Model(stale).Update("deadline", time.Now().Add(-time.Hour))

	req := httptest.NewRequest("GET", "http://example.local/v1/tasks", nil)
	rec := httptest.NewRecorder()
	TaskListHandler(rec, req)

	var resp struct {
		Success bool `json:"success"`
		Data    struct {
			Tasks []struct {
				ID uint `json:"id"`
			} `json:"tasks"`
		} `json:"data"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if !resp.Success {
		t.Fatalf("list failed: %s", rec.Body.String())
	}
	seen := map[uint]bool{}
	for _, item := range resp.Data.Tasks {
		seen[item.ID] = true
	}
	if !seen[open.ID] {
		t.Fatal("open task missing from the default board")
	}
	if seen[done.ID] {
		t.Fatal("completed task must not appear on the default board")
	}
	if seen[stale.ID] {
		t.Fatal("past-deadline task must not appear on the default board")
	}
}
