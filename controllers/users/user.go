package users

import (
	"net/http"

	"github.com/214WANGCAN/adventurer-backend/database"
	"github.com/214WANGCAN/adventurer-backend/middleware"
	"github.com/214WANGCAN/adventurer-backend/models"
	"github.com/214WANGCAN/adventurer-backend/utils"

	"github.com/gorilla/mux"
	"golang.org/x/crypto/bcrypt"
)

func requireUser(w http.ResponseWriter, r *http.Request) (*models.User, bool) {
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

// userDetail decorates the stored row with the derived progression fields.
func userDetail(u *models.User) map[string]interface{} {
	return map[string]interface{}{
		"user":          u,
		"display_name":  u.DisplayName(),
		"next_level_xp": utils.NextLevelXP(u.Experience),
	}
}

// GET /v1/users/me
func MeHandler(w http.ResponseWriter, r *http.Request) {
	user, ok := requireUser(w, r)
	if !ok {
		return
	}
	utils.WriteJSON(w, http.StatusOK, utils.APIResponse{Success: true, Message: "用户信息获取成功", Data: userDetail(user)})
}

// GET /v1/users/{username}
//
// Public card lookup, by username or by the six digit identifier.
func UserDetailHandler(w http.ResponseWriter, r *http.Request) {
	key := mux.Vars(r)["username"]
	if key == "" {
		utils.WriteJSON(w, http.StatusBadRequest, utils.APIResponse{Success: false, Message: "缺少用户名"})
		return
	}
	var user models.User
	err := database.DB.Preload("Title").
		Where("username = ? OR identifier = ?", key, key).
		First(&user).Error
	if err != nil {
		utils.WriteJSON(w, http.StatusNotFound, utils.APIResponse{Success: false, Message: "用户不存在"})
		return
	}
	utils.WriteJSON(w, http.StatusOK, utils.APIResponse{Success: true, Message: "用户信息获取成功", Data: userDetail(&user)})
}

type updateProfileRequest struct {
	Nickname *string `json:"nickname,omitempty"`
	Avatar   *string `json:"avatar,omitempty"`
	Bio      *string `json:"bio,omitempty"`
}

// PATCH /v1/users/me
func UpdateProfileHandler(w http.ResponseWriter, r *http.Request) {
	user, ok := requireUser(w, r)
	if !ok {
		return
	}
	var req updateProfileRequest
	if err := middleware.ValidateJSON(w, r, &req); err != nil {
		return
	}

	updates := map[string]interface{}{}
	if req.Nickname != nil {
		if len(*req.Nickname) > 50 {
			utils.WriteJSON(w, http.StatusBadRequest, utils.APIResponse{Success: false, Message: "昵称不能超过 50 个字符"})
			return
		}
		updates["nickname"] = *req.Nickname
	}
	if req.Avatar != nil {
		updates["avatar"] = *req.Avatar
	}
	if req.Bio != nil {
		updates["bio"] = *req.Bio
	}
	if len(updates) == 0 {
		utils.WriteJSON(w, http.StatusBadRequest, utils.APIResponse{Success: false, Message: "没有可更新的字段"})
		return
	}
	if err := database.DB.Model(user).Updates(updates).Error; err != nil {
		utils.WriteJSON(w, http.StatusInternalServerError, utils.APIResponse{Success: false, Message: "服务器错误"})
		return
	}
	utils.WriteJSON(w, http.StatusOK, utils.APIResponse{Success: true, Message: "资料已更新", Data: userDetail(user)})
}

type changePasswordRequest struct {
	OldPassword          string `json:"old_password" validate:"required"`
	NewPassword          string `json:"new_password" validate:"required,pwdmin"`
	PasswordConfirmation string `json:"password_confirmation" validate:"required,eqfield=NewPassword"`
}

// POST /v1/users/me/password
//
// Verifies the current password before replacing it. Other sessions stay
// valid; callers wanting a clean slate follow up with logout-all.
func ChangePasswordHandler(w http.ResponseWriter, r *http.Request) {
	user, ok := requireUser(w, r)
	if !ok {
		return
	}
	var req changePasswordRequest
	if err := middleware.ValidateJSON(w, r, &req); err != nil {
		return
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(req.OldPassword)); err != nil {
		utils.WriteJSON(w, http.StatusBadRequest, utils.APIResponse{Success: false, Message: "原密码错误"})
		return
	}
	hashed, err := bcrypt.GenerateFromPassword([]byte(req.NewPassword), bcrypt.DefaultCost)
	if err != nil {
		utils.WriteJSON(w, http.StatusInternalServerError, utils.APIResponse{Success: false, Message: "服务器错误"})
		return
	}
	if err := database.DB.Model(user).Update("password", string(hashed)).Error; err != nil {
		utils.WriteJSON(w, http.StatusInternalServerError, utils.APIResponse{Success: false, Message: "服务器错误"})
		return
	}
	utils.WriteJSON(w, http.StatusOK, utils.APIResponse{Success: true, Message: "密码已修改"})
}
