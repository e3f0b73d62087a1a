// Package handler 把 HTTP 请求转换为服务调用。
package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"projectflow/internal/apperr"
	"projectflow/pkg/logger"
)

// 认证中间件写入 gin.Context 的键
const (
	ContextUserID = "user_id"
	ContextRole   = "role"
)

// userID 读取认证中间件写入的用户 ID
func userID(c *gin.Context) (int64, bool) {
	v, ok := c.Get(ContextUserID)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "user not authenticated"})
		return 0, false
	}
	id, ok := v.(int64)
	if !ok {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "invalid user_id"})
		return 0, false
	}
	return id, true
}

// StatusFor 业务错误类型对应的 HTTP 状态码
func StatusFor(kind apperr.Kind) int {
	switch kind {
	case apperr.KindNotFound:
		return http.StatusNotFound
	case apperr.KindValidation:
		return http.StatusBadRequest
	case apperr.KindConflict:
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

// writeResult 成功返回 okStatus；业务失败按类型映射；基础设施错误统一返回 500，不暴露细节
func writeResult[T any](c *gin.Context, log *zap.Logger, okStatus int, res apperr.Result[T], err error) {
	if err != nil {
		logger.WithTrace(c.Request.Context(), log).Error("Request failed",
			zap.String("path", c.FullPath()),
			zap.Error(err),
		)
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "error": "internal error"})
		return
	}
	if !res.Success {
		c.JSON(StatusFor(res.Kind), res)
		return
	}
	c.JSON(okStatus, res)
}
