package model

import "time"

// RateGovernorState bounds how fast the exchange rate of one asset may rise.
type RateGovernorState struct {
	MaxDailyIncreaseBps uint64    `json:"max_daily_increase_bps"`
	LastUpdateTime      time.Time `json:"last_update_time"`
	PendingRate         *uint64   `json:"pending_rate,omitempty"`
	HasPending          bool      `json:"has_pending"`
}
