package handler

import (
	"errors"
	"net/http"
	"path"
	"strconv"
	"sync"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/ByLCY/typesetter/export"
	"github.com/ByLCY/typesetter/imageio"
	"github.com/ByLCY/typesetter/model"
	"github.com/ByLCY/typesetter/renderer"
	"github.com/ByLCY/typesetter/utils"
)

// ExportRequest 是单张导出的请求体。Options 省略时使用服务端配置。
type ExportRequest struct {
	Image   model.ImageRecord    `json:"image" binding:"required"`
	Options *model.ExportOptions `json:"options"`
}

// BatchRequest 是批量导出的请求体。
type BatchRequest struct {
	Images  []model.ImageRecord  `json:"images" binding:"required"`
	Options *model.ExportOptions `json:"options"`
}

type ExportHandler struct {
	exporter *export.Exporter
	defaults model.ExportOptions

	// 渲染表面全局共享，同一时刻只允许一次导出。
	mu sync.Mutex
}

func NewExportHandler(exporter *export.Exporter, defaults model.ExportOptions) *ExportHandler {
	return &ExportHandler{exporter: exporter, defaults: defaults}
}

func (h *ExportHandler) options(o *model.ExportOptions) model.ExportOptions {
	if o == nil {
		return h.defaults
	}
	return o.WithDefaults(h.defaults)
}

// Export 渲染单张图片并返回 PNG。
func (h *ExportHandler) Export(c *gin.Context) {
	var req ExportRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, "请求参数错误", err)
		return
	}

	h.mu.Lock()
	file, err := h.exporter.ExportOne(c.Request.Context(), req.Image, h.options(req.Options))
	h.mu.Unlock()
	if err != nil {
		fail(c, statusFor(err), "导出失败", err)
		return
	}

	utils.Logger.Info("image exported",
		zap.String("id", req.Image.ID),
		zap.String("file", file.Name),
		zap.Int("size", len(file.Data)))
	attachment(c, path.Base(file.Name), "image/png", file.Data)
}

// Batch 顺序渲染全部图片并返回 zip。客户端断开即视为取消。
func (h *ExportHandler) Batch(c *gin.Context) {
	var req BatchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, "请求参数错误", err)
		return
	}

	h.mu.Lock()
	res, err := h.exporter.ExportAll(c.Request.Context(), req.Images, func(current, total int) {
		utils.Logger.Debug("export progress", zap.Int("current", current), zap.Int("total", total))
	}, h.options(req.Options), nil)
	h.mu.Unlock()

	switch {
	case errors.Is(err, export.ErrNothingExported):
		fail(c, http.StatusUnprocessableEntity, "没有图片导出成功", err)
		return
	case err != nil:
		fail(c, http.StatusInternalServerError, "打包失败", err)
		return
	case res.Cancelled:
		utils.Logger.Info("batch export cancelled by client", zap.Int("exported", res.Exported))
		c.Status(499)
		return
	}

	c.Header("X-Exported", strconv.Itoa(res.Exported))
	c.Header("X-Failed", strconv.Itoa(res.Failed))
	attachment(c, res.Name, "application/zip", res.Archive)
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, imageio.ErrDecode):
		return http.StatusUnprocessableEntity
	case errors.Is(err, renderer.ErrUnknownMethod):
		return http.StatusBadRequest
	case errors.Is(err, renderer.ErrResourceUnavailable):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}
