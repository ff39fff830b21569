package model

import (
	"time"

	"github.com/ethereum/go-ethereum/common"
)

// WithdrawalStatus is the lifecycle stage of a withdrawal request.
type WithdrawalStatus string

const (
	WithdrawalPending WithdrawalStatus = "PENDING"
	WithdrawalReady   WithdrawalStatus = "READY"
)

// WithdrawalRequest reserves a fixed underlying amount for a future payout.
// Owner holds the receipt; transferring the receipt transfers the right to execute.
type WithdrawalRequest struct {
	ID          uint64           `json:"id"`
	Requester   common.Address   `json:"requester"`
	Owner       common.Address   `json:"owner"`
	Amount      uint64           `json:"amount"`
	Status      WithdrawalStatus `json:"status"`
	RequestTime time.Time        `json:"request_time"`
	ReadyTime   time.Time        `json:"ready_time,omitempty"`
}

// WithdrawalQueue holds the live requests of one asset. Retired requests are removed.
type WithdrawalQueue struct {
	Requests      map[uint64]*WithdrawalRequest `json:"requests"`
	NextID        uint64                        `json:"next_id"`
	TotalReserved uint64                        `json:"total_reserved"`
}
