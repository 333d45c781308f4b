package notifications

import (
	"net/http"
	"strconv"

	"github.com/214WANGCAN/adventurer-backend/database"
	"github.com/214WANGCAN/adventurer-backend/models"
	"github.com/214WANGCAN/adventurer-backend/utils"

	"github.com/gorilla/mux"
)

func requireUserID(w http.ResponseWriter, r *http.Request) (uint, bool) {
	uid, ok := utils.GetUserID(r.Context())
	if !ok || uid == 0 {
		utils.WriteJSON(w, http.StatusUnauthorized, utils.APIResponse{Success: false, Message: "未登录或登录已失效"})
		return 0, false
	}
	return uid, true
}

// GET /v1/notifications
//
// Latest 10 notifications of the caller, newest first.
func LatestHandler(w http.ResponseWriter, r *http.Request) {
	uid, ok := requireUserID(w, r)
	if !ok {
		return
	}
	var items []models.Notification
	err := database.DB.Where("user_id = ?", uid).
		Order("created_at DESC").Limit(10).Find(&items).Error
	if err != nil {
		utils.WriteJSON(w, http.StatusInternalServerError, utils.APIResponse{Success: false, Message: "服务器错误"})
		return
	}
	utils.WriteJSON(w, http.StatusOK, utils.APIResponse{Success: true, Message: "通知获取成功", Data: items})
}

// GET /v1/notifications/unread
func UnreadHandler(w http.ResponseWriter, r *http.Request) {
	uid, ok := requireUserID(w, r)
	if !ok {
		return
	}
	var items []models.Notification
	err := database.DB.Where("user_id = ? AND is_read = ?", uid, false).
		Order("created_at DESC").Find(&items).Error
	if err != nil {
		utils.WriteJSON(w, http.StatusInternalServerError, utils.APIResponse{Success: false, Message: "服务器错误"})
		return
	}
	utils.WriteJSON(w, http.StatusOK, utils.APIResponse{
		Success: true,
		Message: "未读通知获取成功",
		Data:    map[string]interface{}{"count": len(items), "notifications": items},
	})
}

// POST /v1/notifications/{id}/read
//
// Marking an already read notification succeeds again; the operation is
// idempotent.
func MarkReadHandler(w http.ResponseWriter, r *http.Request) {
	uid, ok := requireUserID(w, r)
	if !ok {
		return
	}
	id, err := strconv.ParseUint(mux.Vars(r)["id"], 10, 32)
	if err != nil || id == 0 {
		utils.WriteJSON(w, http.StatusBadRequest, utils.APIResponse{Success: false, Message: "无效的通知编号"})
		return
	}
	var n models.Notification
	if err := database.DB.Where("id = ? AND user_id = ?", id, uid).First(&n).Error; err != nil {
		utils.WriteJSON(w, http.StatusNotFound, utils.APIResponse{Success: false, Message: "通知不存在"})
		return
	}
	if !n.IsRead {
		if err := database.DB.Model(&n).Update("is_read", true).Error; err != nil {
			utils.WriteJSON(w, http.StatusInternalServerError, utils.APIResponse{Success: false, Message: "服务器错误"})
			return
		}
	}
	utils.WriteJSON(w, http.StatusOK, utils.APIResponse{Success: true, Message: "已标记为已读"})
}

// POST /v1/notifications/read-all
func MarkAllReadHandler(w http.ResponseWriter, r *http.Request) {
	uid, ok := requireUserID(w, r)
	if !ok {
		return
	}
	res := database.DB.Model(&models.Notification{}).
		Where("user_id = ? AND is_read = ?", uid, false).
		Update("is_read", true)
	if res.Error != nil {
		utils.WriteJSON(w, http.StatusInternalServerError, utils.APIResponse{Success: false, Message: "服务器错误"})
		return
	}
	utils.WriteJSON(w, http.StatusOK, utils.APIResponse{
		Success: true,
		Message: "全部已标记为已读",
		Data:    map[string]interface{}{"updated": res.RowsAffected},
	})
}
