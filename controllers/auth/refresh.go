package auth

import (
	"net/http"

	"github.com/214WANGCAN/adventurer-backend/database"
	"github.com/214WANGCAN/adventurer-backend/middleware"
	"github.com/214WANGCAN/adventurer-backend/models"
	"github.com/214WANGCAN/adventurer-backend/utils"

	"gorm.io/gorm"
)

type refreshRequest struct {
	RefreshToken string `json:"refresh_token" validate:"required"`
}

// POST /v1/auth/refresh
//
// Rotates the refresh token: the presented token is revoked and a new pair is
// issued in the same transaction, so a replayed token always fails.
func RefreshHandler(w http.ResponseWriter, r *http.Request) {
	var req refreshRequest
	if err := middleware.ValidateJSON(w, r, &req); err != nil {
		return
	}

	rt, err := utils.ValidateRefreshToken(req.RefreshToken)
	if err != nil {
		utils.WriteJSON(w, http.StatusUnauthorized, utils.APIResponse{Success: false, Message: "登录已过期，请重新登录"})
		return
	}

	var user models.User
	if err := database.DB.First(&user, rt.UserID).Error; err != nil || !user.IsActive {
		utils.WriteJSON(w, http.StatusUnauthorized, utils.APIResponse{Success: false, Message: "登录已过期，请重新登录"})
		return
	}

	var newRefresh string
	err = database.DB.Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(&models.RefreshToken{}).Where("id = ?", rt.ID).Update("revoked", true).Error; err != nil {
			return err
		}
		next, err := models.NewRefreshToken(user.ID, 7)
		if err != nil {
			return err
		}
		if err := tx.Create(next).Error; err != nil {
			return err
		}
		newRefresh = next.ID
		return nil
	})
	if err != nil {
		utils.WriteJSON(w, http.StatusInternalServerError, utils.APIResponse{Success: false, Message: "服务器错误"})
		return
	}

	access, err := utils.GenerateAccessToken(user.ID, user.Role)
	if err != nil {
		utils.WriteJSON(w, http.StatusInternalServerError, utils.APIResponse{Success: false, Message: "服务器错误"})
		return
	}

	utils.WriteJSON(w, http.StatusOK, utils.APIResponse{
		Success: true,
		Message: "令牌已刷新",
		Data: map[string]interface{}{
			"access_token":  access,
			"refresh_token": newRefresh,
		},
	})
}
