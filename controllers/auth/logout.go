package auth

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/214WANGCAN/adventurer-backend/database"
	"github.com/214WANGCAN/adventurer-backend/models"
	"github.com/214WANGCAN/adventurer-backend/utils"
)

type logoutRequest struct {
	RefreshToken string `json:"refresh_token"`
}

// revokeBearer blacklists the jti of the access token on the request, if any.
func revokeBearer(r *http.Request) {
	header := r.Header.Get("Authorization")
	if !strings.HasPrefix(header, "Bearer ") {
		return
	}
	claims, err := utils.ValidateAccessToken(strings.TrimPrefix(header, "Bearer "))
	if err != nil {
		return
	}
	jti, ttl := utils.ClaimsJTIAndTTL(claims)
	if jti != "" && ttl > 0 {
		_ = utils.RevokeJTI(jti, ttl)
	}
}

// POST /v1/auth/logout
//
// Revokes the presented refresh token and blacklists the current access
// token. Always answers success; logging out twice is harmless.
func LogoutHandler(w http.ResponseWriter, r *http.Request) {
	var req logoutRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		utils.WriteJSON(w, http.StatusBadRequest, utils.APIResponse{Success: false, Message: "Invalid JSON body"})
		return
	}
	if req.RefreshToken != "" {
		database.DB.Model(&models.RefreshToken{}).
			Where("id = ?", req.RefreshToken).
			Update("revoked", true)
	}
	revokeBearer(r)
	utils.WriteJSON(w, http.StatusOK, utils.APIResponse{Success: true, Message: "已退出登录"})
}

// POST /v1/auth/logout-all
//
// Revokes every live refresh token of the authenticated user, for use after a
// password change or a suspected credential leak.
func LogoutAllHandler(w http.ResponseWriter, r *http.Request) {
	uid, ok := utils.GetUserID(r.Context())
	if !ok || uid == 0 {
		utils.WriteJSON(w, http.StatusUnauthorized, utils.APIResponse{Success: false, Message: "未登录或登录已失效"})
		return
	}
	err := database.DB.Model(&models.RefreshToken{}).
		Where("user_id = ? AND revoked = ?", uid, false).
		Update("revoked", true).Error
	if err != nil {
		utils.WriteJSON(w, http.StatusInternalServerError, utils.APIResponse{Success: false, Message: "服务器错误"})
		return
	}
	revokeBearer(r)
	utils.WriteJSON(w, http.StatusOK, utils.APIResponse{Success: true, Message: "所有设备已退出登录"})
}
