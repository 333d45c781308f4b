package uploads

import (
	"bytes"
	"io"
	"log"
	"net/http"
	"os"
	"strconv"
	"strings"

	"github.com/214WANGCAN/adventurer-backend/utils"

	"github.com/google/uuid"
)

// Accepted image types, sniffed from content rather than trusting the
// client-supplied filename.
var imageExtensions = map[string]string{
	"image/png":  ".png",
	"image/jpeg": ".jpg",
	"image/gif":  ".gif",
	"image/webp": ".webp",
}

func maxUploadBytes() int64 {
	if s := os.Getenv("MAX_UPLOAD_BYTES"); s != "" {
		if v, err := strconv.ParseInt(s, 10, 64); err == nil && v > 0 {
			return v
		}
	}
	return 5 << 20
}

// POST /v1/uploads/image
//
// Multipart field "file". The stored object name is a random hex id, so
// uploads can never collide or overwrite each other.
func UploadImageHandler(w http.ResponseWriter, r *http.Request) {
	if _, ok := utils.GetUserID(r.Context()); !ok {
		utils.WriteJSON(w, http.StatusUnauthorized, utils.APIResponse{Success: false, Message: "未登录或登录已失效"})
		return
	}

	limit := maxUploadBytes()
	if err := r.ParseMultipartForm(limit); err != nil {
		utils.WriteJSON(w, http.StatusBadRequest, utils.APIResponse{Success: false, Message: "上传内容无效或超出大小限制"})
		return
	}
	file, header, err := r.FormFile("file")
	if err != nil {
		utils.WriteJSON(w, http.StatusBadRequest, utils.APIResponse{Success: false, Message: "缺少 file 字段"})
		return
	}
	defer file.Close()
	if header.Size > limit {
		utils.WriteJSON(w, http.StatusBadRequest, utils.APIResponse{Success: false, Message: "文件超出大小限制"})
		return
	}

	head := make([]byte, 512)
	n, err := file.Read(head)
	if err != nil && err != io.EOF {
		utils.WriteJSON(w, http.StatusBadRequest, utils.APIResponse{Success: false, Message: "无法读取上传文件"})
		return
	}
	contentType := http.DetectContentType(head[:n])
	ext, ok := imageExtensions[contentType]
	if !ok {
		utils.WriteJSON(w, http.StatusBadRequest, utils.APIResponse{Success: false, Message: "仅支持 PNG、JPEG、GIF、WebP 图片"})
		return
	}

	objectName := "images/" + strings.ReplaceAll(uuid.NewString(), "-", "") + ext
	body := io.MultiReader(bytes.NewReader(head[:n]), file)
	if err := utils.UploadToStorage(objectName, body); err != nil {
		log.Printf("[upload] storage write failed: %v", err)
		utils.WriteJSON(w, http.StatusInternalServerError, utils.APIResponse{Success: false, Message: "文件上传失败"})
		return
	}
	url, err := utils.PublicObjectURL(objectName)
	if err != nil {
		log.Printf("[upload] url build failed: %v", err)
		utils.WriteJSON(w, http.StatusInternalServerError, utils.APIResponse{Success: false, Message: "文件上传失败"})
		return
	}

	utils.WriteJSON(w, http.StatusOK, utils.APIResponse{
		Success: true,
		Message: "上传成功",
		Data: map[string]interface{}{
			"object": objectName,
			"url":    url,
		},
	})
}
