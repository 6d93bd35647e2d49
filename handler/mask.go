package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/ByLCY/typesetter/imageio"
	"github.com/ByLCY/typesetter/mask"
	"github.com/ByLCY/typesetter/model"
)

// MaskRequest 描述一次蒙版相关操作。
type MaskRequest struct {
	Image  model.ImageRecord `json:"image" binding:"required"`
	Filter mask.Filter       `json:"filter"`
	// Kind 仅用于预览：annotated（默认）或 masked。
	Kind string `json:"kind"`
	// RegionID 仅用于还原。
	RegionID string `json:"regionId"`
	// Regions 为新框选的矩形，仅用几何字段。
	Regions []model.MaskRegion `json:"regions"`
}

type MaskHandler struct{}

func NewMaskHandler() *MaskHandler { return &MaskHandler{} }

// Inpaint 返回交给去字服务的黑白蒙版（PNG）。
func (h *MaskHandler) Inpaint(c *gin.Context) {
	var req MaskRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, "请求参数错误", err)
		return
	}
	data, err := mask.InpaintMask(req.Image, req.Filter)
	if err != nil {
		if errors.Is(err, mask.ErrRegionNotFound) {
			fail(c, http.StatusNotFound, "区域不存在", err)
			return
		}
		fail(c, http.StatusBadRequest, "生成蒙版失败", err)
		return
	}
	c.Data(http.StatusOK, "image/png", data)
}

// Preview 返回标注预览（JPEG）或仅保留遮罩区域的预览（PNG）。
func (h *MaskHandler) Preview(c *gin.Context) {
	var req MaskRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, "请求参数错误", err)
		return
	}
	var (
		data        []byte
		err         error
		contentType string
	)
	switch req.Kind {
	case "", "annotated":
		data, err = mask.Annotated(c.Request.Context(), req.Image)
		contentType = "image/jpeg"
	case "masked":
		data, err = mask.MaskedPreview(c.Request.Context(), req.Image)
		contentType = "image/png"
	default:
		fail(c, http.StatusBadRequest, "未知的预览类型 "+req.Kind, nil)
		return
	}
	if err != nil {
		fail(c, decodeStatus(err), "生成预览失败", err)
		return
	}
	c.Data(http.StatusOK, contentType, data)
}

// Restore 把指定区域还原为原图内容，返回 PNG。
func (h *MaskHandler) Restore(c *gin.Context) {
	var req MaskRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, "请求参数错误", err)
		return
	}
	img, ok, err := mask.Restore(c.Request.Context(), req.Image, req.RegionID)
	if !ok {
		fail(c, http.StatusNotFound, "区域不存在", nil)
		return
	}
	if err != nil {
		fail(c, decodeStatus(err), "还原区域失败", err)
		return
	}
	data, err := imageio.EncodePNG(img)
	if err != nil {
		fail(c, http.StatusInternalServerError, "编码失败", err)
		return
	}
	c.Data(http.StatusOK, "image/png", data)
}

// Regions 把新框选的矩形加入图片记录，返回带新 ID 的记录。
func (h *MaskHandler) Regions(c *gin.Context) {
	var req MaskRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, "请求参数错误", err)
		return
	}
	if len(req.Regions) == 0 {
		fail(c, http.StatusBadRequest, "没有需要添加的区域", nil)
		return
	}
	rec := model.AddRegions(model.EnsureIDs(req.Image), req.Regions...)
	c.JSON(http.StatusOK, Response{Success: true, Message: "ok", Data: rec})
}

func decodeStatus(err error) int {
	if errors.Is(err, imageio.ErrDecode) {
		return http.StatusUnprocessableEntity
	}
	return http.StatusInternalServerError
}
