package model

import (
	"time"

	"github.com/ethereum/go-ethereum/common"
)

// VenueID names an external yield venue, e.g. "aave-v3".
type VenueID string

// AssetVault is the accounting state of one supported asset.
type AssetVault struct {
	Asset                   string                            `json:"asset"`
	Supported               bool                              `json:"supported"`
	MinDeposit              uint64                            `json:"min_deposit"`
	TotalPrincipalDeposited uint64                            `json:"total_principal_deposited"`
	TotalPrincipalWithdrawn uint64                            `json:"total_principal_withdrawn"`
	TotalShareSupply        uint64                            `json:"total_share_supply"`
	ExchangeRate            uint64                            `json:"exchange_rate"`   // underlying per share, scaled by 1e6
	AccumulatedFee          uint64                            `json:"accumulated_fee"`
	AccountedValue          uint64                            `json:"accounted_value"` // fee high-water mark
	BridgedOut              uint64                            `json:"bridged_out"`     // swept to bridges, still vault value
	FeeRateBps              uint64                            `json:"fee_rate_bps"`
	FeeRecipient            common.Address                    `json:"fee_recipient"`
	ProtocolAllocations     map[VenueID]uint64                `json:"protocol_allocations"`
	Shares                  map[common.Address]uint64         `json:"shares"`
	Queue                   WithdrawalQueue                   `json:"queue"`
	Bridges                 map[common.Address]*BridgeAccount `json:"bridges"`
	Governor                RateGovernorState                 `json:"governor"`
	CreatedAt               time.Time                         `json:"created_at"`
	UpdatedAt               time.Time                         `json:"updated_at"`
}

// NewAssetVault returns an enabled vault at rate 1.0.
func NewAssetVault(asset string, minDeposit uint64, now time.Time) *AssetVault {
	return &AssetVault{
		Asset:               asset,
		Supported:           true,
		MinDeposit:          minDeposit,
		ExchangeRate:        1_000_000,
		ProtocolAllocations: make(map[VenueID]uint64),
		Shares:              make(map[common.Address]uint64),
		Queue:               WithdrawalQueue{Requests: make(map[uint64]*WithdrawalRequest), NextID: 1},
		Bridges:             make(map[common.Address]*BridgeAccount),
		Governor:            RateGovernorState{LastUpdateTime: now},
		CreatedAt:           now,
		UpdatedAt:           now,
	}
}

// Normalize fills nil maps left behind by decoding an older or empty record.
func (v *AssetVault) Normalize() {
	if v.ProtocolAllocations == nil {
		v.ProtocolAllocations = make(map[VenueID]uint64)
	}
	if v.Shares == nil {
		v.Shares = make(map[common.Address]uint64)
	}
	if v.Queue.Requests == nil {
		v.Queue.Requests = make(map[uint64]*WithdrawalRequest)
	}
	if v.Queue.NextID == 0 {
		v.Queue.NextID = 1
	}
	if v.Bridges == nil {
		v.Bridges = make(map[common.Address]*BridgeAccount)
	}
	if v.ExchangeRate == 0 {
		v.ExchangeRate = 1_000_000
	}
}

// NetPrincipal is deposits minus withdrawals.
func (v *AssetVault) NetPrincipal() uint64 {
	if v.TotalPrincipalWithdrawn > v.TotalPrincipalDeposited {
		return 0
	}
	return v.TotalPrincipalDeposited - v.TotalPrincipalWithdrawn
}

// Clone returns a deep copy, used for snapshots and for staging mutations.
func (v *AssetVault) Clone() *AssetVault {
	c := *v
	c.ProtocolAllocations = make(map[VenueID]uint64, len(v.ProtocolAllocations))
	for k, bps := range v.ProtocolAllocations {
		c.ProtocolAllocations[k] = bps
	}
	c.Shares = make(map[common.Address]uint64, len(v.Shares))
	for k, s := range v.Shares {
		c.Shares[k] = s
	}
	c.Queue.Requests = make(map[uint64]*WithdrawalRequest, len(v.Queue.Requests))
	for id, r := range v.Queue.Requests {
		rc := *r
		c.Queue.Requests[id] = &rc
	}
	c.Bridges = make(map[common.Address]*BridgeAccount, len(v.Bridges))
	for k, b := range v.Bridges {
		bc := *b
		c.Bridges[k] = &bc
	}
	if v.Governor.PendingRate != nil {
		p := *v.Governor.PendingRate
		c.Governor.PendingRate = &p
	}
	return &c
}

// UserPosition is a holder's share balance and its current underlying value.
type UserPosition struct {
	Asset  string         `json:"asset"`
	Holder common.Address `json:"holder"`
	Shares uint64         `json:"shares"`
	Value  uint64         `json:"value"`
}
