package errs

import (
	"strconv"
	"strings"

	"github.com/pkg/errors"
)

// 业务错误码（客户端可见）
const (
	ServerInternalError = 500
	ArgsError           = 1001
	TokenExpiredError   = 1501
	TokenInvalidError   = 1502
	RecordNotFoundError = 1601
	DuplicateKeyError   = 1602
	IdentityMismatch    = 1701
	BadStatusValue      = 1702
)

var (
	ErrInternalServer = NewCodeError(ServerInternalError, "server internal error")
	ErrArgs           = NewCodeError(ArgsError, "args error")
	ErrTokenExpired   = NewCodeError(TokenExpiredError, "token expired")
	ErrTokenInvalid   = NewCodeError(TokenInvalidError, "token invalid")
	ErrRecordNotFound = NewCodeError(RecordNotFoundError, "record not found")
	ErrDuplicateKey   = NewCodeError(DuplicateKeyError, "duplicate key")
	ErrIdentityMatch  = NewCodeError(IdentityMismatch, "identity mismatch")
	ErrBadStatusValue = NewCodeError(BadStatusValue, "bad status value")
)

func NewCodeError(code int, msg string) *CodeError {
	return &CodeError{Code: code, Msg: msg}
}

// CodeError 客户端可见错误：code + msg (+ detail)
type CodeError struct {
	Code   int    `json:"code"`
	Msg    string `json:"msg"`
	Detail string `json:"detail,omitempty"`
}

func (e *CodeError) Error() string {
	v := make([]string, 0, 3)
	v = append(v, strconv.Itoa(e.Code), e.Msg)
	if e.Detail != "" {
		v = append(v, e.Detail)
	}
	return strings.Join(v, " ")
}

// WithDetail 追加细节（返回副本，原值不变）
func (e *CodeError) WithDetail(detail string) *CodeError {
	d := detail
	if e.Detail != "" {
		d = e.Detail + ", " + detail
	}
	return &CodeError{Code: e.Code, Msg: e.Msg, Detail: d}
}

func (e *CodeError) Is(err error) bool {
	var ce *CodeError
	if !errors.As(err, &ce) {
		return false
	}
	return ce.Code == e.Code
}

// Wrap 带堆栈封装（I/O 边界处使用）
func Wrap(err error) error {
	return errors.WithStack(err)
}

func WrapMsg(err error, msg string) error {
	if err == nil {
		return nil
	}
	return errors.Wrap(err, msg)
}

func New(msg string) error {
	return errors.New(msg)
}
