package handler

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"

	"qrpay-order-api/internal/constant"
	"qrpay-order-api/internal/dto"
	"qrpay-order-api/internal/service"
	"qrpay-order-api/internal/utils"
)

// PayHandler 支付下单/查单/撤单/退款处理器
type PayHandler struct{ svc *service.OrderService }

func NewPayHandler(svc *service.OrderService) *PayHandler {
	return &PayHandler{svc: svc}
}

// respondErr 统一错误应答，业务错误走错误码表
func respondErr(c *gin.Context, err error) {
	var ce constant.Error
	if errors.As(err, &ce) {
		c.JSON(http.StatusOK, utils.Error(ce.Code()))
		return
	}
	c.JSON(http.StatusOK, utils.CustomError(constant.CodeSystemError, err.Error()))
}

// PayNow 直接渲染扫码页面，页面每 2 秒轮询订单状态
// 支持 total_amount 或 amount 两种参数名
func (h *PayHandler) PayNow(c *gin.Context) {
	amountStr := c.Query("total_amount")
	if amountStr == "" {
		amountStr = c.Query("amount")
	}
	amount, err := decimal.NewFromString(amountStr)
	if err != nil {
		c.JSON(http.StatusBadRequest, utils.Error(constant.CodeOrderAmountInvalid))
		return
	}
	subject := strings.TrimSpace(c.Query("subject"))
	if subject == "" {
		c.JSON(http.StatusBadRequest, utils.Error(constant.CodeMissingParams))
		return
	}

	resp, err := h.svc.Create(c.Request.Context(), dto.CreateOrderReq{
		TotalAmount: amount,
		Subject:     subject,
		OutTradeNo:  c.Query("out_trade_no"),
	})
	if err != nil {
		respondErr(c, err)
		return
	}

	c.HTML(http.StatusOK, "pay.html", gin.H{
		"order_id": resp.OrderID,
		"qr_code":  resp.QRCode,
		"amount":   resp.Amount,
		"subject":  resp.Subject,
	})
}

// Create 创建支付二维码（API 接口）
func (h *PayHandler) Create(c *gin.Context) {
	var req dto.CreateOrderReq
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusOK, utils.Error(constant.CodeInvalidParams))
		return
	}
	resp, err := h.svc.Create(c.Request.Context(), req)
	if err != nil {
		respondErr(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// Query 查询订单状态
func (h *PayHandler) Query(c *gin.Context) {
	orderID := strings.TrimSpace(c.Param("order_id"))
	if orderID == "" {
		c.JSON(http.StatusOK, utils.Error(constant.CodeMissingParams))
		return
	}
	o, err := h.svc.Query(c.Request.Context(), orderID)
	if err != nil {
		respondErr(c, err)
		return
	}
	c.JSON(http.StatusOK, dto.QueryOrderResp{
		Code:        constant.CodeSuccess,
		OrderID:     o.MOrderID,
		TradeStatus: o.Status,
		Amount:      o.Amount.String(),
		Data:        o.Redacted(),
	})
}

// Cancel 撤销订单
func (h *PayHandler) Cancel(c *gin.Context) {
	orderID := strings.TrimSpace(c.Param("order_id"))
	if orderID == "" {
		c.JSON(http.StatusOK, utils.Error(constant.CodeMissingParams))
		return
	}
	o, err := h.svc.Cancel(c.Request.Context(), orderID)
	if err != nil {
		respondErr(c, err)
		return
	}
	c.JSON(http.StatusOK, utils.Success(gin.H{"order_id": o.MOrderID, "trade_status": o.Status}))
}

// Refund 订单退款
func (h *PayHandler) Refund(c *gin.Context) {
	var req dto.RefundReq
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusOK, utils.Error(constant.CodeInvalidParams))
		return
	}
	resp, err := h.svc.Refund(c.Request.Context(), req)
	if err != nil {
		respondErr(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}
