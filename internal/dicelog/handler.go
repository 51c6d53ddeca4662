package dicelog

import (
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
)

// Handler 把dicelog服务暴露为gin的HTTP接口
type Handler struct {
	svc *Service
}

// NewHandler 创建handler
func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

// multipartOverheadAllowance 是Content-Length预检时为multipart
// 边界和字段头预留的余量，保证恰好到大小上限的文件不被误拒。
const multipartOverheadAllowance = 16 * 1024

// UploadLog 处理 PUT /api/dice/log
func (h *Handler) UploadLog(c *gin.Context) {
	// 声明的Content-Length先行拦截，避免读入超大请求体
	if c.Request.ContentLength > FileSizeLimit+multipartOverheadAllowance {
		c.JSON(http.StatusRequestEntityTooLarge, gin.H{
			"success": false,
			"message": fmt.Sprintf("File size exceeds %dMB limit", FileSizeLimitMB),
		})
		return
	}

	name := c.PostForm("name")
	uniformID := c.PostForm("uniform_id")

	file, _, err := c.Request.FormFile("file")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"data": "file field is missing or malformed"})
		return
	}
	defer file.Close()

	// 多读一个字节以区分"恰好到上限"和"超限"
	fileData, err := io.ReadAll(io.LimitReader(file, FileSizeLimit+1))
	if err != nil {
		c.String(http.StatusInternalServerError, "读取上传文件失败: %v", err)
		return
	}

	result, err := h.svc.Upload(c.Request.Context(), name, uniformID, fileData)
	if err != nil {
		switch {
		case errors.Is(err, ErrBadUniformID):
			c.JSON(http.StatusBadRequest, gin.H{"data": ErrBadUniformID.Error()})
		case errors.Is(err, ErrFileTooLarge):
			c.JSON(http.StatusRequestEntityTooLarge, gin.H{"data": ErrFileTooLarge.Error()})
		default:
			// 内部运维服务，诊断文本直接返回给调用方
			c.String(http.StatusInternalServerError, err.Error())
		}
		return
	}

	switch result.Status {
	case http.StatusAccepted:
		// 备份接口的JSON响应原样转发
		c.Data(http.StatusAccepted, "application/json", result.BackupBody)
	default:
		c.JSON(http.StatusOK, gin.H{"url": result.URL})
	}

	// 响应已经确定后才触发后台清理，它的失败不影响本次请求
	h.svc.TriggerBackgroundSweep()
}

// LoadData 处理 GET /api/dice/load_data
func (h *Handler) LoadData(c *gin.Context) {
	key := c.Query("key")
	password := c.Query("password")

	raw, err := h.svc.Retrieve(c.Request.Context(), key, password)
	if err != nil {
		switch {
		case errors.Is(err, ErrMissingParams):
			c.JSON(http.StatusBadRequest, gin.H{"error": ErrMissingParams.Error()})
		case errors.Is(err, ErrAccessDenied):
			c.JSON(http.StatusForbidden, gin.H{"error": ErrAccessDenied.Error()})
		case errors.Is(err, ErrNotFound):
			c.JSON(http.StatusNotFound, gin.H{"error": ErrNotFound.Error()})
		default:
			c.String(http.StatusInternalServerError, "服务器错误 Internal Server Error: %v", err)
		}
		return
	}

	// 存储值未经修改原样返回，base64负载由查看器前端解码
	c.Data(http.StatusOK, "application/json", []byte(raw))
}

// Cleanup 处理 GET/POST /api/dice/cleanup，手动触发一次保留清理
func (h *Handler) Cleanup(c *gin.Context) {
	result, err := h.svc.Cleanup(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"success": false,
			"error":   err.Error(),
		})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"success":        true,
		"deletedCount":   result.DeletedCount,
		"processedCount": result.ProcessedCount,
		"retentionDays":  result.RetentionDays,
		"logs":           result.Logs,
	})
}
