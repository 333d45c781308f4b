package auth

import (
	"net/http"

	"github.com/214WANGCAN/adventurer-backend/database"
	"github.com/214WANGCAN/adventurer-backend/middleware"
	"github.com/214WANGCAN/adventurer-backend/models"
	"github.com/214WANGCAN/adventurer-backend/utils"

	"golang.org/x/crypto/bcrypt"
)

type loginRequest struct {
	Username string `json:"username" validate:"required"`
	Password string `json:"password" validate:"required"`
}

// POST /v1/auth/login
//
// Credential failures all answer the same way, so the endpoint leaks nothing
// about which usernames exist.
func LoginHandler(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := middleware.ValidateJSON(w, r, &req); err != nil {
		return
	}

	var user models.User
	if err := database.DB.Preload("Title").Where("username = ?", req.Username).First(&user).Error; err != nil {
		utils.WriteJSON(w, http.StatusUnauthorized, utils.APIResponse{Success: false, Message: "用户名或密码错误"})
		return
	}
	if !user.IsActive {
		utils.WriteJSON(w, http.StatusForbidden, utils.APIResponse{Success: false, Message: "账号已被禁用"})
		return
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(req.Password)); err != nil {
		utils.WriteJSON(w, http.StatusUnauthorized, utils.APIResponse{Success: false, Message: "用户名或密码错误"})
		return
	}

	access, err := utils.GenerateAccessToken(user.ID, user.Role)
	if err != nil {
		utils.WriteJSON(w, http.StatusInternalServerError, utils.APIResponse{Success: false, Message: "服务器错误"})
		return
	}
	refresh, err := utils.GenerateRefreshToken(user.ID)
	if err != nil {
		utils.WriteJSON(w, http.StatusInternalServerError, utils.APIResponse{Success: false, Message: "服务器错误"})
		return
	}

	utils.WriteJSON(w, http.StatusOK, utils.APIResponse{
		Success: true,
		Message: "登录成功",
		Data: map[string]interface{}{
			"user":          user,
			"access_token":  access,
			"refresh_token": refresh,
		},
	})
}
