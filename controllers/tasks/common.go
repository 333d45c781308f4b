package tasks

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/214WANGCAN/adventurer-backend/database"
	"github.com/214WANGCAN/adventurer-backend/models"
	"github.com/214WANGCAN/adventurer-backend/utils"

	"github.com/gorilla/mux"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

func taskIDFromRequest(r *http.Request) (uint, bool) {
	raw := mux.Vars(r)["taskid"]
	id, err := strconv.ParseUint(raw, 10, 32)
	if err != nil || id == 0 {
		return 0, false
	}
	return uint(id), true
}

// loadTaskForUpdate fetches the task under a row lock so every
// read-modify-write transition on the same task serializes.
func loadTaskForUpdate(tx *gorm.DB, id uint) (*models.Task, error) {
	var task models.Task
	err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).First(&task, id).Error
	if err != nil {
		return nil, err
	}
	return &task, nil
}

// activeTaskCount returns how many uncompleted tasks the user has accepted.
func activeTaskCount(tx *gorm.DB, userID uint) (int64, error) {
	var count int64
	err := tx.Table("tasks").
		Joins("JOIN task_participants tp ON tp.task_id = tasks.id").
		Where("tp.user_id = ? AND tasks.is_completed = ?", userID, false).
		Count(&count).Error
	return count, err
}

func acceptedCount(tx *gorm.DB, taskID uint) (int64, error) {
	var count int64
	err := tx.Table("task_participants").Where("task_id = ?", taskID).Count(&count).Error
	return count, err
}

func isParticipant(tx *gorm.DB, taskID, userID uint) (bool, error) {
	var count int64
	err := tx.Table("task_participants").Where("task_id = ? AND user_id = ?", taskID, userID).Count(&count).Error
	return count > 0, err
}

func isInvited(tx *gorm.DB, taskID, userID uint) (bool, error) {
	var count int64
	err := tx.Table("task_invites").Where("task_id = ? AND user_id = ?", taskID, userID).Count(&count).Error
	return count > 0, err
}

// hasPendingCancel recomputes the cancel_requested projection from the
// TaskRequest rows. Called after every request mutation rather than trusting
// the stored flag.
func hasPendingCancel(tx *gorm.DB, taskID uint) (bool, error) {
	var count int64
	err := tx.Model(&models.TaskRequest{}).
		Where("task_id = ? AND type = ? AND status = ?", taskID, models.RequestTypeCancel, models.RequestStatusPending).
		Count(&count).Error
	return count > 0, err
}

// requireTask loads the task (no lock) or writes a 404.
func requireTask(w http.ResponseWriter, id uint) (*models.Task, bool) {
	var task models.Task
	if err := database.DB.First(&task, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			utils.WriteJSON(w, http.StatusNotFound, utils.APIResponse{Success: false, Message: "任务不存在"})
		} else {
			utils.WriteJSON(w, http.StatusInternalServerError, utils.APIResponse{Success: false, Message: "服务器错误"})
		}
		return nil, false
	}
	return &task, true
}

func requireActor(w http.ResponseWriter, r *http.Request) (*models.User, bool) {
	uid, ok := utils.GetUserID(r.Context())
	if !ok || uid == 0 {
		utils.WriteJSON(w, http.StatusUnauthorized, utils.APIResponse{Success: false, Message: "未登录或登录已失效"})
		return nil, false
	}
	var user models.User
	if err := database.DB.Preload("Title").First(&user, uid).Error; err != nil {
		utils.WriteJSON(w, http.StatusUnauthorized, utils.APIResponse{Success: false, Message: "用户不存在"})
		return nil, false
	}
	return &user, true
}

// writeRuleError maps the rule taxonomy to distinct user-legible responses.
// Anything outside the taxonomy is a storage fault and reported as 500.
func writeRuleError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		utils.WriteJSON(w, http.StatusNotFound, utils.APIResponse{Success: false, Message: "任务不存在"})
	case errors.Is(err, ErrTaskClosed):
		utils.WriteJSON(w, http.StatusBadRequest, utils.APIResponse{Success: false, Message: "任务已结束"})
	case errors.Is(err, ErrTaskClaimed):
		utils.WriteJSON(w, http.StatusBadRequest, utils.APIResponse{Success: false, Message: "任务已被他人申请"})
	case errors.Is(err, ErrTaskLimitExceeded):
		utils.WriteJSON(w, http.StatusForbidden, utils.APIResponse{Success: false, Message: "你已达到同时进行任务的上限"})
	case errors.Is(err, ErrNotInvited):
		utils.WriteJSON(w, http.StatusForbidden, utils.APIResponse{Success: false, Message: "你未被邀请"})
	case errors.Is(err, ErrNotEligible):
		utils.WriteJSON(w, http.StatusForbidden, utils.APIResponse{Success: false, Message: "你没有资格执行此操作"})
	case errors.Is(err, ErrNotParticipant):
		utils.WriteJSON(w, http.StatusBadRequest, utils.APIResponse{Success: false, Message: "该用户不在任务中"})
	case errors.Is(err, ErrNonePending):
		utils.WriteJSON(w, http.StatusBadRequest, utils.APIResponse{Success: false, Message: "没有待处理的申请"})
	case errors.Is(err, ErrDuplicatePending):
		utils.WriteJSON(w, http.StatusBadRequest, utils.APIResponse{Success: false, Message: "已有待处理的同类申请，请勿重复提交"})
	case errors.Is(err, ErrAlreadyComplete):
		utils.WriteJSON(w, http.StatusBadRequest, utils.APIResponse{Success: false, Message: "任务已完成"})
	case errors.Is(err, ErrBadInvitee):
		utils.WriteJSON(w, http.StatusBadRequest, utils.APIResponse{Success: false, Message: "部分 identifier 无效或用户不存在"})
	default:
		utils.WriteJSON(w, http.StatusInternalServerError, utils.APIResponse{Success: false, Message: "服务器错误"})
	}
}

// note is a notification deferred until after the transaction commits, so a
// slow or failing dispatch can never abort the state transition.
type note struct {
	user          *models.User
	notifType     string
	message       string
	taskID        *uint
	relatedUserID *uint
}

func flushNotes(notes []note) {
	for _, n := range notes {
		utils.CreateNotification(n.user, n.notifType, n.message, n.taskID, n.relatedUserID)
	}
}
