package usecase

import (
	"errors"
	"fmt"
	"net/http"
)

// 機械判定用の安定したエラー種別コード
const (
	CodeInvalidRequest         = "invalid_request"
	CodeUnauthorized           = "unauthorized"
	CodeForbidden              = "forbidden"
	CodeNotFound               = "not_found"
	CodeConflict               = "conflict"
	CodePreconditionFailed     = "precondition_failed"
	CodeInvalidTransition      = "invalid_transition"
	CodeAlreadyRefunded        = "already_refunded"
	CodeUnhandledGatewayStatus = "unhandled_gateway_status"
	CodeSignatureInvalid       = "signature_invalid"
	CodeGatewayUnavailable     = "gateway_unavailable"
	CodeRefundLimitExceeded    = "refund_limit_exceeded"
	CodeInternal               = "internal"
)

type HTTPError struct {
	Status  int
	Code    string
	Message string
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("%d %s: %s", e.Status, e.Code, e.Message)
}

// コード未指定の生成（HTTPステータスから補う）
func NewHTTPError(status int, message string) error {
	return &HTTPError{
		Status:  status,
		Code:    defaultCode(status),
		Message: message,
	}
}

func NewCodedError(status int, code string, message string) error {
	return &HTTPError{
		Status:  status,
		Code:    code,
		Message: message,
	}
}

func AsHTTPError(err error) (*HTTPError, bool) {
	var he *HTTPError
	ok := errors.As(err, &he)
	return he, ok
}

func defaultCode(status int) string {
	switch status {
	case http.StatusBadRequest:
		return CodeInvalidRequest
	case http.StatusUnauthorized:
		return CodeUnauthorized
	case http.StatusForbidden:
		return CodeForbidden
	case http.StatusNotFound:
		return CodeNotFound
	case http.StatusConflict:
		return CodeConflict
	default:
		return CodeInternal
	}
}
