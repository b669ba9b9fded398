package handler

import (
	"errors"

	"persona-market/pkg/apperror"
	"persona-market/pkg/logger"
	"persona-market/pkg/response"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// writeError 将业务错误映射为HTTP响应
// 校验失败与唯一性冲突都按参数错误处理，未识别的错误不向外泄露细节
func writeError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, apperror.ErrValidation), errors.Is(err, apperror.ErrConflict):
		response.BadRequest(c, err.Error())
	case errors.Is(err, apperror.ErrNotFound):
		response.NotFound(c, err.Error())
	case errors.Is(err, apperror.ErrForbidden):
		response.Forbidden(c, err.Error())
	default:
		logger.Error("请求处理失败", zap.String("path", c.Request.URL.Path), zap.Error(err))
		response.InternalError(c, "服务器内部错误")
	}
}
