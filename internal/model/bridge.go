package model

import (
	"time"

	"github.com/ethereum/go-ethereum/common"
)

// BridgeAccount is an external bridge actor allowed to move funds in and out of a vault.
type BridgeAccount struct {
	Address       common.Address `json:"address"`
	Authorized    bool           `json:"authorized"`
	DailyLimit    uint64         `json:"daily_limit"`
	DailyUsed     uint64         `json:"daily_used"`
	LastResetTime time.Time      `json:"last_reset_time"`
	Paused        bool           `json:"paused"`
}
