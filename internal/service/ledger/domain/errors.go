// internal/service/ledger/domain/errors.go
package domain

import "github.com/pkg/errors"

// 所有失败都以哨兵错误返回给调用方，调用方使用 errors.Is 判断类型。
// 任何返回错误的操作都不会留下部分生效的状态。
var (
	ErrDuplicateIdentity      = errors.New("associate id or referral code already in use")
	ErrInvalidUpline          = errors.New("upline does not resolve to an existing associate")
	ErrProductNotFound        = errors.New("product not found")
	ErrInvalidQuantity        = errors.New("quantity must be at least 1")
	ErrInvalidAmount          = errors.New("amount must be positive")
	ErrInsufficientBalance    = errors.New("insufficient wallet balance")
	ErrPayoutNotFound         = errors.New("payout request not found")
	ErrPayoutAlreadyProcessed = errors.New("payout request already processed")
	ErrUnauthorized           = errors.New("caller is not authorized for this operation")
	ErrValidation             = errors.New("validation failed")

	ErrAssociateNotFound        = errors.New("associate not found")
	ErrNotRegistered            = errors.New("caller is not a registered associate")
	ErrAlreadyRegistered        = errors.New("caller is already registered")
	ErrOrderNotFound            = errors.New("order not found")
	ErrInvalidOrderTransition   = errors.New("invalid order status transition")
	ErrCommissionAlreadySettled = errors.New("legacy commission already settled for order")
	ErrDuplicateRequest         = errors.New("request key already used")
	ErrAggregateMismatch        = errors.New("stored bonus aggregate does not match bonus records")
	ErrWriterLost               = errors.New("ledger writer lock lost, mutations are disabled")
)
