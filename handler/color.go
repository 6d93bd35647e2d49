package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/ByLCY/typesetter/colordetect"
	"github.com/ByLCY/typesetter/model"
)

// ColorRequest 以百分比坐标描述待取色的气泡框。
type ColorRequest struct {
	Source model.Source `json:"source" binding:"required"`
	X      float64      `json:"x"`
	Y      float64      `json:"y"`
	Width  float64      `json:"width"`
	Height float64      `json:"height"`
}

type ColorHandler struct{}

func NewColorHandler() *ColorHandler { return &ColorHandler{} }

// Detect 返回气泡周围的主色，无法解码时返回白色。
func (h *ColorHandler) Detect(c *gin.Context) {
	var req ColorRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, "请求参数错误", err)
		return
	}
	color := colordetect.DetectSource(c.Request.Context(), req.Source, req.X, req.Y, req.Width, req.Height)
	c.JSON(http.StatusOK, Response{
		Success: true,
		Message: "ok",
		Data:    gin.H{"color": color},
	})
}
