// Package vault is the accounting engine of the yield vault.
//
// Every state-changing operation on an asset runs under that asset's lock, against a staged
// copy of the vault record. External calls (custodian, venues) happen while the lock is held
// and before the staged copy is committed, so a rejected or failed operation leaves the
// committed state untouched. Operations on different assets run in parallel.
package vault

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"YieldVault/internal/allocator"
	"YieldVault/internal/bridge"
	"YieldVault/internal/custodian"
	"YieldVault/internal/metrics"
	"YieldVault/internal/model"
	"YieldVault/internal/recorder"
	"YieldVault/internal/store"
)

// Options wires the engine's collaborators.
type Options struct {
	Admin     common.Address
	Custodian custodian.Custodian
	Allocator *allocator.Allocator
	Gateway   *bridge.Gateway
	Store     store.Store
	Recorder  recorder.Recorder
	Logger    *logrus.Logger
	Clock     func() time.Time
}

// Engine is the vault accounting engine for all supported assets.
type Engine struct {
	admin     common.Address
	custodian custodian.Custodian
	alloc     *allocator.Allocator
	gateway   *bridge.Gateway
	store     store.Store
	rec       recorder.Recorder
	log       *logrus.Logger
	now       func() time.Time

	mu     sync.Mutex
	vaults map[string]*model.AssetVault // committed records, never mutated in place
	locks  map[string]*sync.Mutex
}

// New creates an engine. Nil optional collaborators get harmless defaults.
func New(opts Options) *Engine {
	e := &Engine{
		admin:     opts.Admin,
		custodian: opts.Custodian,
		alloc:     opts.Allocator,
		gateway:   opts.Gateway,
		store:     opts.Store,
		rec:       opts.Recorder,
		log:       opts.Logger,
		now:       opts.Clock,
		vaults:    make(map[string]*model.AssetVault),
		locks:     make(map[string]*sync.Mutex),
	}
	if e.log == nil {
		e.log = logrus.StandardLogger()
	}
	if e.alloc == nil {
		e.alloc = allocator.New(0, e.log)
	}
	if e.gateway == nil {
		e.gateway = bridge.NewGateway(0, 0)
	}
	if e.rec == nil {
		e.rec = recorder.NewNoopRecorder()
	}
	if e.now == nil {
		e.now = time.Now
	}
	return e
}

// Load restores every persisted vault from the store.
func (e *Engine) Load(ctx context.Context) error {
	if e.store == nil {
		return nil
	}
	assets, err := e.store.Assets(ctx)
	if err != nil {
		return fmt.Errorf("list assets: %w", err)
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	for _, asset := range assets {
		v, err := e.store.Load(ctx, asset)
		if err != nil {
			return fmt.Errorf("load %s: %w", asset, err)
		}
		v.Normalize()
		e.vaults[asset] = v
		metrics.ObserveVault(v)
		e.log.WithFields(logrus.Fields{"asset": asset, "rate": v.ExchangeRate, "supply": v.TotalShareSupply}).Info("vault state loaded")
	}
	return nil
}

// Assets lists the assets the engine knows about, supported or not.
func (e *Engine) Assets() []string {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]string, 0, len(e.vaults))
	for a := range e.vaults {
		out = append(out, a)
	}
	sort.Strings(out)
	return out
}

// Allocator exposes the venue registry.
func (e *Engine) Allocator() *allocator.Allocator { return e.alloc }

// Snapshot returns a copy of the committed state of asset.
func (e *Engine) Snapshot(asset string) (*model.AssetVault, error) {
	v, err := e.committed(asset)
	if err != nil {
		return nil, err
	}
	return v.Clone(), nil
}

func (e *Engine) committed(asset string) (*model.AssetVault, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	v, ok := e.vaults[asset]
	if !ok {
		return nil, fmt.Errorf("%s: %w", asset, model.ErrUnsupportedAsset)
	}
	return v, nil
}

func (e *Engine) lockFor(asset string) *sync.Mutex {
	e.mu.Lock()
	defer e.mu.Unlock()
	l, ok := e.locks[asset]
	if !ok {
		l = &sync.Mutex{}
		e.locks[asset] = l
	}
	return l
}

type heldKey struct{ asset string }

// opScope is what an operation body gets: the staged record plus its logger and clock.
type opScope struct {
	v      *model.AssetVault
	log    *logrus.Entry
	now    time.Time
	opID   string
	events []*recorder.VaultEvent
	rates  []*recorder.RateChange
}

func (s *opScope) record(typ recorder.EventType, actor common.Address, amount, shares uint64, reqID uint64, note string) {
	s.events = append(s.events, &recorder.VaultEvent{
		ID:        uuid.NewString(),
		Timestamp: s.now,
		Asset:     s.v.Asset,
		Type:      typ,
		Actor:     actor.Hex(),
		Amount:    amount,
		Shares:    shares,
		Rate:      s.v.ExchangeRate,
		RequestID: reqID,
		Note:      note,
	})
}

// mutate runs fn under the asset lock against a staged copy and commits it when fn succeeds.
func (e *Engine) mutate(ctx context.Context, asset, op string, fn func(ctx context.Context, s *opScope) error) error {
	return e.run(ctx, asset, op, true, fn)
}

// inspect runs fn under the asset lock against a throwaway copy; nothing is committed.
func (e *Engine) inspect(ctx context.Context, asset, op string, fn func(ctx context.Context, s *opScope) error) error {
	return e.run(ctx, asset, op, false, fn)
}

func (e *Engine) run(ctx context.Context, asset, op string, commit bool, fn func(ctx context.Context, s *opScope) error) (err error) {
	if ctx.Value(heldKey{asset}) != nil {
		return fmt.Errorf("%s %s: %w", op, asset, model.ErrReentrantCall)
	}
	lock := e.lockFor(asset)
	lock.Lock()
	defer lock.Unlock()

	current, err := e.committed(asset)
	if err != nil {
		return err
	}
	ctx = context.WithValue(ctx, heldKey{asset}, struct{}{})
	s := &opScope{v: current.Clone(), now: e.now(), opID: uuid.NewString()}
	s.log = e.log.WithFields(logrus.Fields{"asset": asset, "op": op, "op_id": s.opID})

	err = fn(ctx, s)
	if commit {
		metrics.Operation(asset, op, err)
	}
	if err != nil || !commit {
		return err
	}

	s.v.UpdatedAt = s.now
	if e.store != nil {
		if serr := e.store.Save(ctx, s.v); serr != nil {
			s.log.WithError(serr).Error("failed to save vault state")
		}
	}
	e.mu.Lock()
	e.vaults[asset] = s.v
	e.mu.Unlock()
	metrics.ObserveVault(s.v)

	for _, evt := range s.events {
		if rerr := e.rec.RecordEvent(evt); rerr != nil {
			s.log.WithError(rerr).Error("record vault event")
		}
	}
	for _, rc := range s.rates {
		if rerr := e.rec.RecordRateChange(rc); rerr != nil {
			s.log.WithError(rerr).Error("record rate change")
		}
	}
	return nil
}

func (e *Engine) requireAdmin(caller common.Address) error {
	if caller != e.admin {
		return fmt.Errorf("caller %s is not admin: %w", caller.Hex(), model.ErrUnauthorized)
	}
	return nil
}

// onHand is the vault account's balance not deployed to venues.
func (e *Engine) onHand(ctx context.Context, asset string) (uint64, error) {
	bal, err := e.custodian.BalanceOf(ctx, asset, e.custodian.VaultAccount())
	if err != nil {
		return 0, fmt.Errorf("vault balance of %s: %w", asset, err)
	}
	return bal, nil
}

// IsNotice reports whether err is an informational outcome rather than a failure.
func IsNotice(err error) bool {
	return errors.Is(err, model.ErrRateIncreaseCapped)
}
