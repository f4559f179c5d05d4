package constant

// ErrorInfo 错误信息结构
type ErrorInfo struct {
	CN string `json:"cn"` // 中文错误信息
	EN string `json:"en"` // 英文错误信息
}

// ErrorMessages 错误信息映射
var ErrorMessages = map[int]ErrorInfo{
	// 系统错误
	CodeSuccess:       {"操作成功", "Success"},
	CodeSystemError:   {"系统错误", "System error"},
	CodeDatabaseError: {"存储错误", "Storage error"},
	CodeTimeout:       {"请求超时", "Request timeout"},

	// 参数错误
	CodeInvalidParams: {"参数格式错误", "Invalid parameters"},
	CodeMissingParams: {"缺少必要参数", "Missing required parameters"},

	// 订单相关错误
	CodeOrderNotFound:      {"订单不存在", "Order not found"},
	CodeOrderAlreadyExist:  {"订单已存在", "Order already exists"},
	CodeOrderStatusInvalid: {"订单状态无效", "Order status invalid"},
	CodeOrderAmountInvalid: {"订单金额无效", "Order amount invalid"},
	CodeOrderClosed:        {"订单已关闭", "Order closed"},
	CodeOrderConflict:      {"订单更新冲突", "Order update conflict"},

	// 支付网关相关错误
	CodeProviderUnavailable: {"支付网关暂时不可用", "Payment gateway unavailable"},
	CodeProviderRejected:    {"支付网关拒绝交易", "Payment gateway rejected"},

	// 退款相关错误
	CodeRefundFailed:       {"退款失败", "Refund failed"},
	CodeRefundAmountError:  {"退款金额超过可退金额", "Refund amount exceeds refundable amount"},
	CodeRefundOrderInvalid: {"订单状态不支持退款", "Order not refundable"},

	// 回调通知相关错误
	CodeNotifySignError: {"回调签名验证失败", "Notification signature invalid"},
	CodeNotifyRepeat:    {"重复回调", "Duplicate notification"},
}
