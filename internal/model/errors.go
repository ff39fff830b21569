package model

import "errors"

var (
	ErrUnsupportedAsset           = errors.New("unsupported asset")
	ErrAmountTooSmall             = errors.New("amount below minimum")
	ErrInsufficientBalance        = errors.New("insufficient balance")
	ErrAllocationInvalid          = errors.New("allocations must sum to 10000 bps")
	ErrUnauthorized               = errors.New("unauthorized")
	ErrBridgePaused               = errors.New("bridge paused")
	ErrBridgeLimitExceeded        = errors.New("bridge daily limit exceeded")
	ErrBridgeThrottled            = errors.New("bridge call rate exceeded")
	ErrWithdrawalNotReady         = errors.New("withdrawal request not ready")
	ErrRequestNotFound            = errors.New("withdrawal request not found")
	ErrInsufficientVenueLiquidity = errors.New("insufficient venue liquidity")
	ErrFeeRateTooHigh             = errors.New("performance fee rate above maximum")
	ErrReentrantCall              = errors.New("reentrant call into asset vault")

	// ErrRateIncreaseCapped is a notice: the proposed rate was deferred, nothing failed.
	ErrRateIncreaseCapped = errors.New("rate increase capped, update deferred")
)
