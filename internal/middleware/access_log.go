package middleware

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"qrpay-order-api/internal/logger"
)

// AccessLog 访问日志落文件，按天滚动
func AccessLog() gin.HandlerFunc {
	accessLog := logger.NewLogger("access")
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		accessLog.WithFields(logrus.Fields{
			"method":  c.Request.Method,
			"path":    c.Request.URL.Path,
			"status":  c.Writer.Status(),
			"latency": time.Since(start).String(),
			"ip":      c.ClientIP(),
		}).Info("request")
	}
}
