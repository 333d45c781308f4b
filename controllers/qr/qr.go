package qr

import (
	"net/http"
	"strconv"

	"github.com/214WANGCAN/adventurer-backend/utils"

	qrcode "github.com/skip2/go-qrcode"
)

const (
	defaultSize = 256
	maxSize     = 1024
	maxDataLen  = 2048
)

// GET /v1/qr?data=...&size=...&download=true
//
// Renders a PNG QR code for arbitrary text, typically a user identifier or a
// task link. Highest recovery level so codes survive print wear.
func GenerateHandler(w http.ResponseWriter, r *http.Request) {
	data := r.URL.Query().Get("data")
	if data == "" {
		utils.WriteJSON(w, http.StatusBadRequest, utils.APIResponse{Success: false, Message: "缺少 data 参数"})
		return
	}
	if len(data) > maxDataLen {
		utils.WriteJSON(w, http.StatusBadRequest, utils.APIResponse{Success: false, Message: "data 参数过长"})
		return
	}

	size := defaultSize
	if s := r.URL.Query().Get("size"); s != "" {
		v, err := strconv.Atoi(s)
		if err != nil || v < 64 || v > maxSize {
			utils.WriteJSON(w, http.StatusBadRequest, utils.APIResponse{Success: false, Message: "size 应在 64 到 1024 之间"})
			return
		}
		size = v
	}

	code, err := qrcode.New(data, qrcode.Highest)
	if err != nil {
		utils.WriteJSON(w, http.StatusBadRequest, utils.APIResponse{Success: false, Message: "无法生成二维码"})
		return
	}
	code.DisableBorder = true
	png, err := code.PNG(size)
	if err != nil {
		utils.WriteJSON(w, http.StatusInternalServerError, utils.APIResponse{Success: false, Message: "二维码渲染失败"})
		return
	}

	w.Header().Set("Content-Type", "image/png")
	if r.URL.Query().Get("download") == "true" {
		w.Header().Set("Content-Disposition", `attachment; filename="qrcode.png"`)
	}
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(png)
}
