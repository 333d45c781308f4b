package tasks

import (
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/214WANGCAN/adventurer-backend/database"
	"github.com/214WANGCAN/adventurer-backend/middleware"
	"github.com/214WANGCAN/adventurer-backend/models"
	"github.com/214WANGCAN/adventurer-backend/utils"

	"gorm.io/gorm"
)

const deadlineLayout = "2006-01-02 15:04"

// taskView is the list/detail serialization of a task.
type taskView struct {
	ID                  uint     `json:"id"`
	Title               string   `json:"title"`
	Description         string   `json:"description"`
	TaskType            string   `json:"task_type"`
	PublisherID         uint     `json:"publisher_id"`
	PublisherName       string   `json:"publisher_name"`
	MaximumUsers        uint     `json:"maximum_users"`
	AcceptedCount       int64    `json:"accepted_count"`
	RequiredLevel       string   `json:"required_level"`
	ExperienceReward    uint     `json:"experience_reward"`
	TokenReward         uint     `json:"token_reward"`
	VolunteerTimeReward float64  `json:"volunteer_time_reward"`
	Image               *string  `json:"image,omitempty"`
	Deadline            string   `json:"deadline"`
	LeaderID            *uint    `json:"leader_id,omitempty"`
	IsCompleted         bool     `json:"is_completed"`
	IsExpired           bool     `json:"is_expired"`
	IsAccepted          bool     `json:"is_accepted"`
	IsStarted           bool     `json:"is_started"`
	CancelRequested     bool     `json:"cancel_requested"`
	AboveUserLevel      bool     `json:"above_user_level"`
	Participants        []string `json:"participants,omitempty"`
}

func toTaskView(task *models.Task, acceptedCount int64, userLevel string) taskView {
	v := taskView{
		ID:                  task.ID,
		Title:               task.Title,
		Description:         task.Description,
		TaskType:            task.TaskType,
		PublisherID:         task.PublisherID,
		PublisherName:       task.Publisher.DisplayName(),
		MaximumUsers:        task.MaximumUsers,
		AcceptedCount:       acceptedCount,
		RequiredLevel:       task.RequiredLevel,
		ExperienceReward:    task.ExperienceReward,
		TokenReward:         task.TokenReward,
		VolunteerTimeReward: task.VolunteerTimeReward,
		Image:               task.Image,
		Deadline:            task.Deadline.Format(deadlineLayout),
		LeaderID:            task.LeaderID,
		IsCompleted:         task.IsCompleted,
		IsExpired:           task.IsExpired,
		IsAccepted:          task.IsAccepted,
		IsStarted:           task.IsStarted,
		CancelRequested:     task.CancelRequested,
	}
	if userLevel != "" {
		v.AboveUserLevel = utils.LevelIndex(task.RequiredLevel) > utils.LevelIndex(userLevel)
	}
	for i := range task.AcceptedBy {
		v.Participants = append(v.Participants, task.AcceptedBy[i].DisplayName())
	}
	return v
}

// levelRankCase builds a CASE expression mapping the rank label column to its
// ladder position, for SQL-side ordering.
func levelRankCase(column string) string {
	var b strings.Builder
	b.WriteString("CASE " + column)
	for i, t := range utils.LevelThresholds {
		fmt.Fprintf(&b, " WHEN '%s' THEN %d", t.Level, i)
	}
	b.WriteString(" ELSE 99 END")
	return b.String()
}

// GET /v1/tasks
//
// Open board listing. Tasks the caller can actually take come first: at or
// below the caller's rank, then not yet fully claimed, then newest. Filters
// via query params: level, task_type, is_completed, is_accepted,
// include_expired, page, page_size.
func TaskListHandler(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	query := database.DB.Model(&models.Task{}).Preload("Publisher").Preload("AcceptedBy")

	if level := q.Get("level"); level != "" {
		if !utils.IsValidLevel(level) {
			utils.WriteJSON(w, http.StatusBadRequest, utils.APIResponse{Success: false, Message: "无效的等级"})
			return
		}
		query = query.Where("required_level = ?", level)
	}
	if tt := q.Get("task_type"); tt != "" {
		if tt != models.TaskTypeSolo && tt != models.TaskTypeTeam {
			utils.WriteJSON(w, http.StatusBadRequest, utils.APIResponse{Success: false, Message: "无效的任务类型"})
			return
		}
		query = query.Where("task_type = ?", tt)
	}
	// Completed tasks stay off the board unless asked for.
	if v := q.Get("is_completed"); v != "" {
		query = query.Where("is_completed = ?", v == "true")
	} else {
		query = query.Where("is_completed = ?", false)
	}
	if v := q.Get("is_accepted"); v != "" {
		query = query.Where("is_accepted = ?", v == "true")
	}
	// Expiry is judged against the deadline itself; the stored flag alone
	// would miss tasks whose deadline passed since the last sweep.
	if q.Get("include_expired") != "true" {
		query = query.Where("deadline >= ? AND is_expired = ?", time.Now(), false)
	}

	// Count before the ORDER BY clauses are attached; MySQL rejects an
	// aggregate count ordered by row expressions.
	var total int64
	if err := query.Session(&gorm.Session{}).Count(&total).Error; err != nil {
		utils.WriteJSON(w, http.StatusInternalServerError, utils.APIResponse{Success: false, Message: "服务器错误"})
		return
	}

	// The caller's rank steers the ordering when authenticated; anonymous
	// visitors get the plain newest-first board.
	userLevel := ""
	if uid, ok := utils.GetUserID(r.Context()); ok && uid != 0 {
		var viewer models.User
		if err := database.DB.Select("level").First(&viewer, uid).Error; err == nil {
			userLevel = viewer.Level
		}
	}

	if userLevel != "" {
		rank := levelRankCase("required_level")
		viewerRank := utils.LevelIndex(userLevel)
		query = query.Order(fmt.Sprintf("CASE WHEN %s <= %d THEN 0 ELSE 1 END", rank, viewerRank))
	}
	query = query.Order(
		"CASE WHEN (SELECT COUNT(*) FROM task_participants tp WHERE tp.task_id = tasks.id) < maximum_users THEN 0 ELSE 1 END",
	).Order("created_at DESC")

	page, _ := strconv.Atoi(q.Get("page"))
	if page < 1 {
		page = 1
	}
	pageSize, _ := strconv.Atoi(q.Get("page_size"))
	if pageSize < 1 || pageSize > 100 {
		pageSize = 20
	}

	var tasks []models.Task
	err := query.Offset((page - 1) * pageSize).Limit(pageSize).Find(&tasks).Error
	if err != nil {
		utils.WriteJSON(w, http.StatusInternalServerError, utils.APIResponse{Success: false, Message: "服务器错误"})
		return
	}

	views := make([]taskView, 0, len(tasks))
	for i := range tasks {
		views = append(views, toTaskView(&tasks[i], int64(len(tasks[i].AcceptedBy)), userLevel))
	}
	utils.WriteJSON(w, http.StatusOK, utils.APIResponse{
		Success: true,
		Message: "任务列表获取成功",
		Data: map[string]interface{}{
			"tasks":     views,
			"page":      page,
			"page_size": pageSize,
			"total":     total,
		},
	})
}

type createTaskRequest struct {
	Title               string  `json:"title" validate:"required"`
	Description         string  `json:"description" validate:"required"`
	TaskType            string  `json:"task_type" validate:"required"`
	MaximumUsers        uint    `json:"maximum_users"`
	RequiredLevel       string  `json:"required_level"`
	ExperienceReward    uint    `json:"experience_reward"`
	TokenReward         uint    `json:"token_reward"`
	VolunteerTimeReward float64 `json:"volunteer_time_reward"`
	Image               *string `json:"image,omitempty"`
	Deadline            string  `json:"deadline" validate:"required"`
}

// POST /v1/tasks
//
// Teacher-only. The deadline uses the board's "2006-01-02 15:04" layout.
func TaskCreateHandler(w http.ResponseWriter, r *http.Request) {
	actor, ok := requireActor(w, r)
	if !ok {
		return
	}
	if actor.Role != models.RoleTeacher && actor.Role != models.RoleAdmin {
		utils.WriteJSON(w, http.StatusForbidden, utils.APIResponse{Success: false, Message: "只有老师可以发布任务"})
		return
	}

	var req createTaskRequest
	if err := middleware.ValidateJSON(w, r, &req); err != nil {
		return
	}
	if req.TaskType != models.TaskTypeSolo && req.TaskType != models.TaskTypeTeam {
		utils.WriteJSON(w, http.StatusBadRequest, utils.APIResponse{Success: false, Message: "无效的任务类型"})
		return
	}
	if req.RequiredLevel == "" {
		req.RequiredLevel = "F"
	}
	if !utils.IsValidLevel(req.RequiredLevel) {
		utils.WriteJSON(w, http.StatusBadRequest, utils.APIResponse{Success: false, Message: "无效的等级"})
		return
	}
	deadline, err := time.ParseInLocation(deadlineLayout, req.Deadline, time.Local)
	if err != nil {
		utils.WriteJSON(w, http.StatusBadRequest, utils.APIResponse{Success: false, Message: "截止时间格式应为 2006-01-02 15:04"})
		return
	}
	if deadline.Before(time.Now()) {
		utils.WriteJSON(w, http.StatusBadRequest, utils.APIResponse{Success: false, Message: "截止时间不能早于当前时间"})
		return
	}
	maxUsers := req.MaximumUsers
	if maxUsers == 0 {
		maxUsers = 1
	}
	if req.TaskType == models.TaskTypeSolo {
		maxUsers = 1
	}

	task := models.Task{
		Title:               req.Title,
		Description:         req.Description,
		TaskType:            req.TaskType,
		PublisherID:         actor.ID,
		MaximumUsers:        maxUsers,
		RequiredLevel:       req.RequiredLevel,
		ExperienceReward:    req.ExperienceReward,
		TokenReward:         req.TokenReward,
		VolunteerTimeReward: req.VolunteerTimeReward,
		Image:               req.Image,
		Deadline:            deadline,
	}
	if err := database.DB.Create(&task).Error; err != nil {
		utils.WriteJSON(w, http.StatusInternalServerError, utils.APIResponse{Success: false, Message: "任务创建失败"})
		return
	}
	utils.WriteJSON(w, http.StatusOK, utils.APIResponse{
		Success: true,
		Message: "任务发布成功",
		Data:    map[string]interface{}{"id": task.ID},
	})
}

// GET /v1/tasks/{taskid}
func TaskDetailHandler(w http.ResponseWriter, r *http.Request) {
	taskID, ok := taskIDFromRequest(r)
	if !ok {
		utils.WriteJSON(w, http.StatusBadRequest, utils.APIResponse{Success: false, Message: "无效的任务编号"})
		return
	}
	var task models.Task
	err := database.DB.Preload("Publisher").Preload("AcceptedBy").Preload("InvitedUsers").First(&task, taskID).Error
	if err != nil {
		writeRuleError(w, err)
		return
	}

	userLevel := ""
	if uid, ok := utils.GetUserID(r.Context()); ok && uid != 0 {
		var viewer models.User
		if err := database.DB.Select("level").First(&viewer, uid).Error; err == nil {
			userLevel = viewer.Level
		}
	}
	view := toTaskView(&task, int64(len(task.AcceptedBy)), userLevel)

	invited := make([]string, 0, len(task.InvitedUsers))
	for i := range task.InvitedUsers {
		invited = append(invited, task.InvitedUsers[i].DisplayName())
	}
	utils.WriteJSON(w, http.StatusOK, utils.APIResponse{
		Success: true,
		Message: "任务详情获取成功",
		Data: map[string]interface{}{
			"task":          view,
			"invited_users": invited,
		},
	})
}

// GET /v1/tasks/mine
//
// Teachers see the tasks they published, students the tasks they accepted.
func MyTasksHandler(w http.ResponseWriter, r *http.Request) {
	actor, ok := requireActor(w, r)
	if !ok {
		return
	}

	var tasks []models.Task
	var err error
	if actor.Role == models.RoleTeacher || actor.Role == models.RoleAdmin {
		err = database.DB.Preload("Publisher").Preload("AcceptedBy").
			Where("publisher_id = ?", actor.ID).
			Order("created_at DESC").Find(&tasks).Error
	} else {
		err = database.DB.Preload("Publisher").Preload("AcceptedBy").
			Joins("JOIN task_participants tp ON tp.task_id = tasks.id").
			Where("tp.user_id = ?", actor.ID).
			Order("tasks.created_at DESC").Find(&tasks).Error
	}
	if err != nil {
		utils.WriteJSON(w, http.StatusInternalServerError, utils.APIResponse{Success: false, Message: "服务器错误"})
		return
	}

	views := make([]taskView, 0, len(tasks))
	for i := range tasks {
		views = append(views, toTaskView(&tasks[i], int64(len(tasks[i].AcceptedBy)), actor.Level))
	}
	utils.WriteJSON(w, http.StatusOK, utils.APIResponse{Success: true, Message: "任务列表获取成功", Data: views})
}
