package handler

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/ByLCY/typesetter/utils"
)

// Response 是 JSON 接口的统一返回结构。
type Response struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
	Data    any    `json:"data,omitempty"`
}

// ErrorResponse 是失败时的返回结构。
type ErrorResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
	Error   string `json:"error,omitempty"`
}

func fail(c *gin.Context, status int, message string, err error) {
	resp := ErrorResponse{Success: false, Message: message}
	if err != nil {
		resp.Error = err.Error()
		if status >= http.StatusInternalServerError {
			utils.Logger.Error(message, zap.String("path", c.Request.URL.Path), zap.Error(err))
		}
		_ = c.Error(err)
	}
	c.JSON(status, resp)
}

// attachment 以附件形式返回二进制内容。
func attachment(c *gin.Context, name, contentType string, data []byte) {
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", name))
	c.Data(http.StatusOK, contentType, data)
}
