package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"qrpay-order-api/internal/callback"
)

// NotifyHandler 支付宝异步回调入口
type NotifyHandler struct{ cb *callback.Handler }

func NewNotifyHandler(cb *callback.Handler) *NotifyHandler {
	return &NotifyHandler{cb: cb}
}

// Notify 回调端点
// 应答体必须是字面量 success/fail，网关不看 JSON；始终 200，
// 非 success 会触发网关按退避策略重投最长 25 小时
func (h *NotifyHandler) Notify(c *gin.Context) {
	if err := c.Request.ParseForm(); err != nil {
		c.String(http.StatusOK, callback.AckFail.Body())
		return
	}
	params := make(map[string]string, len(c.Request.PostForm))
	for k, vs := range c.Request.PostForm {
		if len(vs) > 0 {
			params[k] = vs[0]
		}
	}
	ack := h.cb.Handle(c.Request.Context(), params)
	c.String(http.StatusOK, ack.Body())
}

// NotifyCheck GET 探活，用于验证回调地址可达
func (h *NotifyHandler) NotifyCheck(c *gin.Context) {
	c.String(http.StatusOK, "notify endpoint ok")
}
