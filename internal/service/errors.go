package service

import (
	"errors"
	"fmt"
)

// 通用业务错误
var (
	ErrNotFound           = errors.New("record not found")
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrUserDisabled       = errors.New("user disabled")
)

// 分销业务错误
var (
	ErrDistributionDisabled      = errors.New("distribution disabled")
	ErrDistributorNotFound       = errors.New("distributor not found")
	ErrDistributorExists         = errors.New("distributor already exists")
	ErrDistributorNotApproved    = errors.New("distributor not approved")
	ErrDistributorCodeInvalid    = errors.New("distributor code invalid")
	ErrDistributorParentInvalid  = errors.New("distributor parent invalid")
	ErrDistributorAlreadyAudited = errors.New("distributor already audited")
	ErrDistributionConfigInvalid = errors.New("distribution config invalid")
)

// 提现业务错误
var (
	ErrCashAmountBelowMinimum = errors.New("cash amount below minimum")
	ErrCashAmountInvalid      = errors.New("cash amount invalid")
	ErrCashMethodInvalid      = errors.New("cash method invalid")
	ErrCashAccountInvalid     = errors.New("cash account invalid")
	ErrDuplicateCashRequest   = errors.New("duplicate open cash request")
	ErrInsufficientBalance    = errors.New("insufficient available commission")
)

// 订单业务错误
var (
	ErrOrderStatusInvalid = errors.New("order status invalid")
	ErrRefundExceedsPaid  = errors.New("refund exceeds paid amount")
)

// StateConflictError 状态机冲突错误，携带期望状态与实际状态。
type StateConflictError struct {
	Entity   string
	Expected string
	Actual   string
}

func (e *StateConflictError) Error() string {
	return fmt.Sprintf("%s state conflict: expected %s, got %s", e.Entity, e.Expected, e.Actual)
}

// NewStateConflictError 创建状态冲突错误
func NewStateConflictError(entity, expected, actual string) *StateConflictError {
	return &StateConflictError{Entity: entity, Expected: expected, Actual: actual}
}

// IsStateConflict 判断是否为状态冲突错误
func IsStateConflict(err error) bool {
	var target *StateConflictError
	return errors.As(err, &target)
}
