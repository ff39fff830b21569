// Package bridge authorizes external bridge actors and enforces their daily caps.
package bridge

import (
	"fmt"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"golang.org/x/time/rate"

	"YieldVault/internal/model"
)

// Window is the length of a daily-limit period.
const Window = 24 * time.Hour

// Gateway holds the runtime call throttles of bridge actors. Account state itself lives in
// the vault record and is passed in by the caller holding the asset lock.
type Gateway struct {
	mu       sync.Mutex
	limiters map[string]*rate.Limiter
	rate     rate.Limit
	burst    int
}

// NewGateway creates a gateway allowing callsPerSecond sustained calls per bridge and asset.
// A non-positive callsPerSecond disables throttling.
func NewGateway(callsPerSecond float64, burst int) *Gateway {
	r := rate.Inf
	if callsPerSecond > 0 {
		r = rate.Limit(callsPerSecond)
	}
	if burst < 1 {
		burst = 1
	}
	return &Gateway{limiters: make(map[string]*rate.Limiter), rate: r, burst: burst}
}

func (g *Gateway) limiter(asset string, addr common.Address) *rate.Limiter {
	g.mu.Lock()
	defer g.mu.Unlock()

	key := asset + "/" + addr.Hex()
	l, ok := g.limiters[key]
	if !ok {
		l = rate.NewLimiter(g.rate, g.burst)
		g.limiters[key] = l
	}
	return l
}

// Pass is an admitted bridge call. It holds one throttle token until the transfer is either
// committed or cancelled.
type Pass struct {
	Account *model.BridgeAccount
	res     *rate.Reservation
	now     time.Time
}

// Commit records the completed transfer of amount against the daily limit and keeps the token.
func (p *Pass) Commit(amount uint64) {
	Consume(p.Account, amount, p.now)
}

// Cancel hands the throttle token back. The account is left untouched.
func (p *Pass) Cancel() {
	p.res.CancelAt(p.now)
}

// Admit checks whether bridge may move amount now and reserves a throttle token for the call.
// It does not mutate the account; the caller must Commit or Cancel the pass.
func (g *Gateway) Admit(asset string, bridges map[common.Address]*model.BridgeAccount, addr common.Address, amount uint64, now time.Time) (*Pass, error) {
	acct, err := Active(bridges, addr)
	if err != nil {
		return nil, err
	}
	used := UsedAt(acct, now)
	if amount > acct.DailyLimit || used > acct.DailyLimit-amount {
		return nil, fmt.Errorf("bridge %s used %d of %d, asked %d: %w",
			addr.Hex(), used, acct.DailyLimit, amount, model.ErrBridgeLimitExceeded)
	}
	res := g.limiter(asset, addr).ReserveN(now, 1)
	if !res.OK() || res.DelayFrom(now) > 0 {
		res.CancelAt(now)
		return nil, fmt.Errorf("bridge %s: %w", addr.Hex(), model.ErrBridgeThrottled)
	}
	return &Pass{Account: acct, res: res, now: now}, nil
}

// Do admits a bridge transfer of amount and runs fn. The transfer counts against the daily
// limit and keeps its throttle token only when fn succeeds; a failed fn leaves no trace.
func (g *Gateway) Do(asset string, bridges map[common.Address]*model.BridgeAccount, addr common.Address, amount uint64, now time.Time, fn func(acct *model.BridgeAccount) error) error {
	pass, err := g.Admit(asset, bridges, addr, amount, now)
	if err != nil {
		return err
	}
	if err := fn(pass.Account); err != nil {
		pass.Cancel()
		return err
	}
	pass.Commit(amount)
	return nil
}

// Active returns the account of addr if it is authorized and not paused.
func Active(bridges map[common.Address]*model.BridgeAccount, addr common.Address) (*model.BridgeAccount, error) {
	acct, ok := bridges[addr]
	if !ok || !acct.Authorized {
		return nil, fmt.Errorf("bridge %s: %w", addr.Hex(), model.ErrUnauthorized)
	}
	if acct.Paused {
		return nil, fmt.Errorf("bridge %s: %w", addr.Hex(), model.ErrBridgePaused)
	}
	return acct, nil
}

// UsedAt is the daily usage as of now, taking a due window reset into account.
func UsedAt(acct *model.BridgeAccount, now time.Time) uint64 {
	if now.Sub(acct.LastResetTime) >= Window {
		return 0
	}
	return acct.DailyUsed
}

// Consume records a completed transfer of amount.
func Consume(acct *model.BridgeAccount, amount uint64, now time.Time) {
	if now.Sub(acct.LastResetTime) >= Window {
		acct.DailyUsed = 0
		acct.LastResetTime = now
	}
	acct.DailyUsed += amount
}

// Authorize grants (or re-grants) bridge rights with a daily limit.
func Authorize(bridges map[common.Address]*model.BridgeAccount, addr common.Address, dailyLimit uint64, now time.Time) *model.BridgeAccount {
	acct, ok := bridges[addr]
	if !ok {
		acct = &model.BridgeAccount{Address: addr, LastResetTime: now}
		bridges[addr] = acct
	}
	acct.Authorized = true
	acct.DailyLimit = dailyLimit
	return acct
}

// Revoke withdraws bridge rights; usage history is kept.
func Revoke(bridges map[common.Address]*model.BridgeAccount, addr common.Address) error {
	acct, ok := bridges[addr]
	if !ok {
		return fmt.Errorf("bridge %s: %w", addr.Hex(), model.ErrUnauthorized)
	}
	acct.Authorized = false
	return nil
}

// SetLimit changes the daily limit of a known bridge.
func SetLimit(bridges map[common.Address]*model.BridgeAccount, addr common.Address, dailyLimit uint64) error {
	acct, ok := bridges[addr]
	if !ok {
		return fmt.Errorf("bridge %s: %w", addr.Hex(), model.ErrUnauthorized)
	}
	acct.DailyLimit = dailyLimit
	return nil
}

// SetPaused toggles the emergency pause of a known bridge.
func SetPaused(bridges map[common.Address]*model.BridgeAccount, addr common.Address, paused bool) error {
	acct, ok := bridges[addr]
	if !ok {
		return fmt.Errorf("bridge %s: %w", addr.Hex(), model.ErrUnauthorized)
	}
	acct.Paused = paused
	return nil
}
