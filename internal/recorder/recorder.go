package recorder

import "time"

// EventType names a journaled vault operation.
type EventType string

const (
	EventDeposit         EventType = "DEPOSIT"
	EventRedeem          EventType = "REDEEM"
	EventExecute         EventType = "EXECUTE_WITHDRAW"
	EventPromote         EventType = "PROMOTE"
	EventBridgeIn        EventType = "BRIDGE_IN"
	EventBridgeOut       EventType = "BRIDGE_WITHDRAW"
	EventBridgeReturn    EventType = "BRIDGE_RETURN"
	EventSweep           EventType = "SWEEP"
	EventRebalance       EventType = "REBALANCE"
	EventFundQueue       EventType = "FUND_QUEUE"
	EventFeeWithdraw     EventType = "FEE_WITHDRAW"
	EventReceiptTransfer EventType = "RECEIPT_TRANSFER"
	EventAdmin           EventType = "ADMIN"
)

// VaultEvent is one committed, state-changing operation.
type VaultEvent struct {
	ID        string
	Timestamp time.Time
	Asset     string
	Type      EventType
	Actor     string
	Amount    uint64
	Shares    uint64
	Rate      uint64
	RequestID uint64
	Note      string
}

// RateChange is one evaluation of a proposed exchange rate.
type RateChange struct {
	Timestamp   time.Time
	Asset       string
	OldRate     uint64
	NewRate     uint64
	Proposed    uint64
	GrossYield  uint64
	Fee         uint64
	Deferred    bool
	IncreaseBps uint64
}

// Recorder keeps the audit journal of vault operations.
type Recorder interface {
	RecordEvent(evt *VaultEvent) error
	RecordRateChange(rc *RateChange) error
	Close() error
}
