package scheduler

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"

	"YieldVault/internal/config"
	"YieldVault/internal/model"
	"YieldVault/internal/notifier"
	"YieldVault/internal/vault"
)

// Sender delivers operator notifications.
type Sender interface {
	SendWithRetry(ctx context.Context, text string, maxRetries int) error
}

// Scheduler manages all cron tasks.
type Scheduler struct {
	Cron     *cron.Cron
	Engine   *vault.Engine
	Notifier Sender
	Assets   []config.AssetConfig
	Log      *logrus.Logger
	Ctx      context.Context
}

// NewScheduler creates a new Scheduler. A nil notifier only logs.
func NewScheduler(ctx context.Context, engine *vault.Engine, n Sender, assets []config.AssetConfig, log *logrus.Logger) *Scheduler {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Scheduler{
		Cron:     cron.New(cron.WithSeconds()),
		Engine:   engine,
		Notifier: n,
		Assets:   assets,
		Log:      log,
		Ctx:      ctx,
	}
}

// Schedule is the set of cron specs to register.
type Schedule struct {
	Refresh   string
	FundQueue string
	Rebalance string
	Sweep     string
	Report    string
}

// RegisterAll registers the rate refresh, queue funding, rebalance, sweep and report tasks.
func (s *Scheduler) RegisterAll(sc Schedule) error {
	jobs := []struct {
		name string
		spec string
		fn   func()
	}{
		{"refresh", sc.Refresh, s.refreshTask},
		{"fund queue", sc.FundQueue, s.fundQueueTask},
		{"rebalance", sc.Rebalance, s.rebalanceTask},
		{"sweep", sc.Sweep, s.sweepTask},
		{"report", sc.Report, s.reportTask},
	}
	for _, j := range jobs {
		if j.spec == "" {
			continue
		}
		if _, err := s.Cron.AddFunc(j.spec, j.fn); err != nil {
			return fmt.Errorf("register %s task: %w", j.name, err)
		}
	}
	return nil
}

// Start starts the cron scheduler.
func (s *Scheduler) Start() {
	s.Cron.Start()
	s.Log.Info("scheduler started")
}

// Stop stops the cron scheduler gracefully.
func (s *Scheduler) Stop() {
	<-s.Cron.Stop().Done()
	s.Log.Info("scheduler stopped")
}

func (s *Scheduler) refreshTask() {
	for _, a := range s.Assets {
		upd, err := s.Engine.RefreshRate(s.Ctx, a.Symbol)
		switch {
		case vault.IsNotice(err):
			s.Log.WithField("asset", a.Symbol).WithError(err).Warn("rate refresh deferred")
			s.trySend(notifier.FormatRateUpdate(upd, a.Decimals))
		case err != nil:
			s.Log.WithField("asset", a.Symbol).WithError(err).Error("rate refresh failed")
		case upd.NewRate != upd.OldRate:
			s.Log.WithFields(logrus.Fields{"asset": a.Symbol, "rate": upd.NewRate}).Info("rate refreshed")
		}
	}
}

func (s *Scheduler) fundQueueTask() {
	for _, a := range s.Assets {
		raised, promoted, err := s.Engine.FundQueue(s.Ctx, a.Symbol)
		if err != nil {
			s.Log.WithField("asset", a.Symbol).WithError(err).Error("fund queue failed")
			continue
		}
		if raised > 0 || len(promoted) > 0 {
			s.Log.WithFields(logrus.Fields{"asset": a.Symbol, "raised": raised, "promoted": promoted}).Info("queue funded")
		}
	}
}

func (s *Scheduler) rebalanceTask() {
	for _, a := range s.Assets {
		moves, err := s.Engine.Rebalance(s.Ctx, a.Symbol)
		if err != nil {
			s.Log.WithField("asset", a.Symbol).WithError(err).Error("rebalance failed")
			s.trySend(fmt.Sprintf("❌ %s 再平衡失败: %v", a.Symbol, err))
			continue
		}
		if len(moves) > 0 {
			s.Log.WithFields(logrus.Fields{"asset": a.Symbol, "moves": len(moves)}).Info("rebalance done")
		}
	}
}

func (s *Scheduler) sweepTask() {
	for _, a := range s.Assets {
		if a.Sweep.Destination == "" {
			continue
		}
		rep, err := s.Engine.MagicTime(s.Ctx, a.Symbol, common.HexToAddress(a.Sweep.Destination), a.Sweep.Amount)
		if err != nil {
			s.Log.WithField("asset", a.Symbol).WithError(err).Error("sweep failed")
			s.trySend(fmt.Sprintf("❌ %s 资金归集失败: %v", a.Symbol, err))
			continue
		}
		if rep.Transferred == 0 && rep.Shortfall == 0 {
			continue
		}
		s.trySend(notifier.FormatSweepReport(rep, a.Decimals))
	}
}

func (s *Scheduler) reportTask() {
	s.Log.Info("running daily report")
	for _, a := range s.Assets {
		s.trySend(s.status(a))
	}
}

// RunReportNow executes the report task immediately (for RUN_ON_START).
func (s *Scheduler) RunReportNow() {
	s.reportTask()
}

// HandleCommand processes an operator command and returns a reply.
func (s *Scheduler) HandleCommand(command string) string {
	fields := strings.Fields(command)
	if len(fields) == 0 {
		return ""
	}
	a, ok := s.asset(fields[1:])
	switch fields[0] {
	case "/status":
		if !ok {
			return "未知资产"
		}
		return s.status(a)
	case "/queue":
		if !ok {
			return "未知资产"
		}
		reqs, err := s.Engine.Requests(a.Symbol)
		if err != nil {
			return fmt.Sprintf("❌ %v", err)
		}
		return notifier.FormatQueue(a.Symbol, reqs, a.Decimals, time.Now())
	case "/refresh":
		if !ok {
			return "未知资产"
		}
		upd, err := s.Engine.RefreshRate(s.Ctx, a.Symbol)
		if err != nil && !vault.IsNotice(err) {
			return fmt.Sprintf("❌ %v", err)
		}
		return notifier.FormatRateUpdate(upd, a.Decimals)
	default:
		return "可用命令:\n• /status [资产]\n• /queue [资产]\n• /refresh [资产]"
	}
}

// asset resolves the optional asset argument; without one the first configured asset is used.
func (s *Scheduler) asset(args []string) (config.AssetConfig, bool) {
	if len(s.Assets) == 0 {
		return config.AssetConfig{}, false
	}
	if len(args) == 0 {
		return s.Assets[0], true
	}
	for _, a := range s.Assets {
		if strings.EqualFold(a.Symbol, args[0]) {
			return a, true
		}
	}
	return config.AssetConfig{}, false
}

func (s *Scheduler) status(a config.AssetConfig) string {
	v, err := s.Engine.Snapshot(a.Symbol)
	if errors.Is(err, model.ErrUnsupportedAsset) {
		return fmt.Sprintf("❌ %s 未启用", a.Symbol)
	}
	if err != nil {
		return fmt.Sprintf("❌ %v", err)
	}
	return notifier.FormatVaultStatus(v, a.Decimals)
}

func (s *Scheduler) trySend(text string) {
	if s.Notifier == nil {
		s.Log.WithField("message", text).Debug("notification skipped, no notifier")
		return
	}
	if err := s.Notifier.SendWithRetry(s.Ctx, text, 3); err != nil {
		s.Log.WithError(err).Error("send notification")
	}
}
