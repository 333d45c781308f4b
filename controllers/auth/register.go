package auth

import (
	"errors"
	"log"
	"net/http"

	"github.com/214WANGCAN/adventurer-backend/database"
	"github.com/214WANGCAN/adventurer-backend/middleware"
	"github.com/214WANGCAN/adventurer-backend/models"
	"github.com/214WANGCAN/adventurer-backend/utils"

	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

type registerRequest struct {
	Username             string `json:"username" validate:"required,usernameok"`
	Email                string `json:"email" validate:"emailok"`
	Password             string `json:"password" validate:"required,pwdmin"`
	PasswordConfirmation string `json:"password_confirmation" validate:"required,eqfield=Password"`
	Nickname             string `json:"nickname" validate:"nickok"`
	Role                 string `json:"role"`
}

// POST /v1/auth/register
//
// Self-service registration is limited to the student and teacher roles;
// admins are provisioned out of band.
func RegisterHandler(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := middleware.ValidateJSON(w, r, &req); err != nil {
		return
	}
	role := req.Role
	switch role {
	case "":
		role = models.RoleStudent
	case models.RoleStudent, models.RoleTeacher:
	default:
		utils.WriteJSON(w, http.StatusBadRequest, utils.APIResponse{Success: false, Message: "无效的角色"})
		return
	}

	hashed, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		utils.WriteJSON(w, http.StatusInternalServerError, utils.APIResponse{Success: false, Message: "服务器错误"})
		return
	}

	identifier, err := utils.GenerateUniqueIdentifier(database.DB)
	if err != nil {
		log.Printf("[auth] identifier generation failed: %v", err)
		utils.WriteJSON(w, http.StatusInternalServerError, utils.APIResponse{Success: false, Message: "服务器错误"})
		return
	}

	user := models.User{
		Username:   req.Username,
		Email:      req.Email,
		Password:   string(hashed),
		Role:       role,
		Nickname:   req.Nickname,
		Identifier: identifier,
	}
	if err := database.DB.Create(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			utils.WriteJSON(w, http.StatusBadRequest, utils.APIResponse{Success: false, Message: "用户名已被注册"})
			return
		}
		log.Printf("[auth] register failed: %v", err)
		utils.WriteJSON(w, http.StatusInternalServerError, utils.APIResponse{Success: false, Message: "服务器错误"})
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
		Message: "注册成功",
		Data: map[string]interface{}{
			"user":          user,
			"access_token":  access,
			"refresh_token": refresh,
		},
	})
}
