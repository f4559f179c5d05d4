package constant

import "fmt"

// Error 业务错误契约：错误码 + 错误码表里的中文描述，可附带细节数据
type Error interface {
	error
	Code() int
	Message() string
	WithData(data interface{}) Error
}

type bizError struct {
	code    int
	message string
	data    interface{}
}

func (e *bizError) Error() string {
	return fmt.Sprintf("code: %d, message: %s", e.code, e.message)
}

func (e *bizError) Code() int {
	return e.code
}

func (e *bizError) Message() string {
	return e.message
}

func (e *bizError) WithData(data interface{}) Error {
	e.data = data
	return e
}

// NewError 按错误码表构造业务错误，未登记的码给兜底描述
func NewError(code int) Error {
	if info, exists := ErrorMessages[code]; exists {
		return &bizError{code: code, message: info.CN}
	}
	return &bizError{code: code, message: "未知错误"}
}

// GetErrorInfo 查错误码表，响应层用它取中英文描述
func GetErrorInfo(code int) (ErrorInfo, bool) {
	info, exists := ErrorMessages[code]
	return info, exists
}
