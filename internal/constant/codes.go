package constant

// 系统级错误码 (1xxx)
const (
	CodeSuccess       = 0    // 操作成功
	CodeSystemError   = 1000 // 系统内部错误
	CodeDatabaseError = 1001 // 存储操作失败
	CodeTimeout       = 1005 // 请求处理超时
)

// 参数错误码 (11xx)
const (
	CodeInvalidParams = 1100 // 参数格式错误
	CodeMissingParams = 1101 // 缺少必要参数
)

// 订单相关错误码 (21xx)
const (
	CodeOrderNotFound      = 2100 // 订单不存在
	CodeOrderAlreadyExist  = 2101 // 订单已存在，重复创建
	CodeOrderStatusInvalid = 2102 // 订单状态不允许当前操作
	CodeOrderAmountInvalid = 2103 // 订单金额无效
	CodeOrderClosed        = 2107 // 订单已关闭
	CodeOrderConflict      = 2110 // 并发更新冲突，重试后仍未成功
)

// 支付网关相关错误码 (23xx)
const (
	CodeProviderUnavailable = 2300 // 支付网关不可达（超时/5xx），可重试
	CodeProviderRejected    = 2301 // 支付网关业务拒绝，不可重试
)

// 退款相关错误码 (26xx)
const (
	CodeRefundFailed       = 2600 // 退款失败
	CodeRefundAmountError  = 2602 // 退款金额超过可退金额
	CodeRefundOrderInvalid = 2604 // 订单状态不支持退款
)

// 回调通知相关错误码 (27xx)
const (
	CodeNotifySignError = 2702 // 回调签名验证失败
	CodeNotifyRepeat    = 2704 // 重复回调，已处理过
)
