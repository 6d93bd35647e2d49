package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/ByLCY/typesetter/middleware"
)

// NewRouter 组装全部路由。
func NewRouter(mode string, exp *ExportHandler, masks *MaskHandler, colors *ColorHandler) *gin.Engine {
	gin.SetMode(mode)

	r := gin.New()
	r.Use(middleware.Recovery())
	r.Use(middleware.Logger())
	r.Use(middleware.CORS())

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	api := r.Group("/api/v1")
	{
		api.POST("/export", exp.Export)
		api.POST("/export/batch", exp.Batch)
		api.POST("/mask/inpaint", masks.Inpaint)
		api.POST("/mask/preview", masks.Preview)
		api.POST("/mask/restore", masks.Restore)
		api.POST("/mask/regions", masks.Regions)
		api.POST("/color", colors.Detect)
	}
	return r
}
