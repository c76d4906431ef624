package service

import (
	"errors"
	"fmt"
	"net/http"

	"gorm.io/gorm"
)

// Kind 错误类别，上层据此决定返回码
type Kind string

const (
	KindServiceUnavailable  Kind = "service_unavailable"
	KindInsufficientFunds   Kind = "insufficient_funds"
	KindInsufficientStock   Kind = "insufficient_stock"
	KindSubscriptionExpired Kind = "subscription_expired"
	KindNoSubscription      Kind = "no_subscription"
	KindNotFound            Kind = "not_found"
	KindAlreadyDecided      Kind = "already_decided"
	KindInvalidInput        Kind = "invalid_input"
	KindForbidden           Kind = "forbidden"
	KindUnauthorized        Kind = "unauthorized"
	KindConflict            Kind = "conflict"
	KindBusy                Kind = "busy"
	KindStorage             Kind = "storage"
)

// HTTPStatus 错误类别对应的 HTTP 状态码
func (k Kind) HTTPStatus() int {
	switch k {
	case KindServiceUnavailable, KindBusy:
		return http.StatusServiceUnavailable
	case KindInsufficientFunds:
		return http.StatusPaymentRequired
	case KindInsufficientStock, KindAlreadyDecided, KindConflict:
		return http.StatusConflict
	case KindSubscriptionExpired, KindNoSubscription, KindInvalidInput:
		return http.StatusBadRequest
	case KindNotFound:
		return http.StatusNotFound
	case KindForbidden:
		return http.StatusForbidden
	case KindUnauthorized:
		return http.StatusUnauthorized
	}
	return http.StatusInternalServerError
}

// Error 业务错误。errors.Is 只比较 Kind，因此可以直接和下面的哨兵值比较
type Error struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Err
}

func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && t.Kind == e.Kind
}

var (
	ErrServiceUnavailable  = &Error{Kind: KindServiceUnavailable, Message: "今日为卫生日，暂停点餐"}
	ErrInsufficientFunds   = &Error{Kind: KindInsufficientFunds, Message: "余额不足"}
	ErrInsufficientStock   = &Error{Kind: KindInsufficientStock, Message: "库存不足"}
	ErrSubscriptionExpired = &Error{Kind: KindSubscriptionExpired, Message: "包月已过期"}
	ErrNoSubscription      = &Error{Kind: KindNoSubscription, Message: "未开通包月"}
	ErrNotFound            = &Error{Kind: KindNotFound, Message: "记录不存在"}
	ErrAlreadyDecided      = &Error{Kind: KindAlreadyDecided, Message: "补货单已处理"}
	ErrInvalidInput        = &Error{Kind: KindInvalidInput, Message: "参数错误"}
	ErrForbidden           = &Error{Kind: KindForbidden, Message: "无权操作"}
	ErrUnauthorized        = &Error{Kind: KindUnauthorized, Message: "用户名或密码错误"}
	ErrConflict            = &Error{Kind: KindConflict, Message: "数据冲突"}
	ErrBusy                = &Error{Kind: KindBusy, Message: "系统繁忙，请稍后再试"}
	ErrStorage             = &Error{Kind: KindStorage, Message: "存储异常"}
)

func newError(kind Kind, msg string, err error) *Error {
	return &Error{Kind: kind, Message: msg, Err: err}
}

func notFound(format string, args ...interface{}) error {
	return newError(KindNotFound, fmt.Sprintf(format, args...), nil)
}

func invalidInput(format string, args ...interface{}) error {
	return newError(KindInvalidInput, fmt.Sprintf(format, args...), nil)
}

// insufficientStock 指明第一个缺货的菜品
func insufficientStock(productID int64, name string, want, left int64) error {
	return newError(KindInsufficientStock,
		fmt.Sprintf("库存不足: %s (#%d) 需要 %d，剩余 %d", name, productID, want, left), nil)
}

// KindOf 取出错误类别，非业务错误一律视为存储异常
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindStorage
}

// storeErr 把仓储层错误翻译成业务错误；what 用于描述不存在的对象
func storeErr(err error, what string) error {
	if err == nil {
		return nil
	}
	var e *Error
	if errors.As(err, &e) {
		return err
	}
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return newError(KindNotFound, what+"不存在", err)
	}
	GetMonitor().RecordStorageError()
	return newError(KindStorage, "存储异常", err)
}
