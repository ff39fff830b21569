package notifier

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"YieldVault/internal/fixedpoint"
	"YieldVault/internal/model"
	"YieldVault/internal/vault"
)

func units(amount uint64, decimals int32) string {
	return fixedpoint.UnitsDecimal(amount, decimals).StringFixed(2)
}

func rate(r uint64) string {
	return fixedpoint.RateDecimal(r).StringFixed(6)
}

// FormatVaultStatus formats the committed state of one asset vault.
func FormatVaultStatus(v *model.AssetVault, decimals int32) string {
	var b strings.Builder
	status := "✅"
	if !v.Supported {
		status = "⛔ 已停用"
	}
	b.WriteString(fmt.Sprintf("📦 <b>%s 金库状态</b> %s\n\n", v.Asset, status))
	b.WriteString(fmt.Sprintf("兑换率: %s\n", rate(v.ExchangeRate)))
	b.WriteString(fmt.Sprintf("份额总量: %s\n", units(v.TotalShareSupply, decimals)))
	b.WriteString(fmt.Sprintf("净本金: %s\n", units(v.NetPrincipal(), decimals)))
	b.WriteString(fmt.Sprintf("待提取费用: %s (费率 %d bps)\n", units(v.AccumulatedFee, decimals), v.FeeRateBps))
	b.WriteString(fmt.Sprintf("提款预留: %s (%d 笔)\n", units(v.Queue.TotalReserved, decimals), len(v.Queue.Requests)))
	if v.BridgedOut > 0 {
		b.WriteString(fmt.Sprintf("跨链在途: %s\n", units(v.BridgedOut, decimals)))
	}
	if v.Governor.HasPending && v.Governor.PendingRate != nil {
		b.WriteString(fmt.Sprintf("⏳ 待生效兑换率: %s\n", rate(*v.Governor.PendingRate)))
	}

	if len(v.ProtocolAllocations) > 0 {
		ids := make([]string, 0, len(v.ProtocolAllocations))
		for id := range v.ProtocolAllocations {
			ids = append(ids, string(id))
		}
		sort.Strings(ids)
		b.WriteString("\n📈 <b>配置比例:</b>\n")
		for _, id := range ids {
			b.WriteString(fmt.Sprintf("  %s: %.2f%%\n", id, float64(v.ProtocolAllocations[model.VenueID(id)])/100))
		}
	}
	b.WriteString(fmt.Sprintf("\n更新时间: %s\n", v.UpdatedAt.Format("2006-01-02 15:04")))
	return b.String()
}

// FormatRateUpdate formats the outcome of a scheduled rate refresh.
func FormatRateUpdate(upd *vault.RateUpdate, decimals int32) string {
	var b strings.Builder
	if upd.Deferred {
		b.WriteString(fmt.Sprintf("⚠️ <b>%s 兑换率上调被限速</b>\n\n", upd.Asset))
		b.WriteString(fmt.Sprintf("当前: %s | 提议: %s\n", rate(upd.NewRate), rate(upd.Proposed)))
	} else {
		b.WriteString(fmt.Sprintf("💹 <b>%s 兑换率更新</b>\n\n", upd.Asset))
		b.WriteString(fmt.Sprintf("%s → %s\n", rate(upd.OldRate), rate(upd.NewRate)))
	}
	b.WriteString(fmt.Sprintf("总资产: %s\n", units(upd.TotalValue, decimals)))
	if upd.GrossYield > 0 {
		b.WriteString(fmt.Sprintf("收益: %s (费用 %s, 净 %s)\n",
			units(upd.GrossYield, decimals), units(upd.Fee, decimals), units(upd.NetYield, decimals)))
	}
	return b.String()
}

// FormatSweepReport formats a MagicTime sweep outcome.
func FormatSweepReport(rep *vault.SweepReport, decimals int32) string {
	var b strings.Builder
	if rep.Transferred > 0 {
		b.WriteString(fmt.Sprintf("🌉 <b>%s 资金归集完成</b>\n\n", rep.Asset))
		b.WriteString(fmt.Sprintf("转出: %s → %s\n", units(rep.Transferred, decimals), rep.Destination.Hex()))
		return b.String()
	}
	b.WriteString(fmt.Sprintf("❌ <b>%s 资金归集未执行</b>\n\n", rep.Asset))
	b.WriteString(fmt.Sprintf("需要: %s | 可用: %s\n", units(rep.Needed, decimals), units(rep.Available, decimals)))
	if rep.Shortfall > 0 {
		b.WriteString(fmt.Sprintf("缺口: %s\n", units(rep.Shortfall, decimals)))
	}
	if rep.Reason != "" {
		b.WriteString(fmt.Sprintf("原因: %s\n", rep.Reason))
	}
	return b.String()
}

// FormatQueue lists live withdrawal requests, oldest first.
func FormatQueue(asset string, reqs []model.WithdrawalRequest, decimals int32, now time.Time) string {
	var b strings.Builder
	b.WriteString(fmt.Sprintf("🧾 <b>%s 提款队列</b>\n\n", asset))
	if len(reqs) == 0 {
		b.WriteString("队列为空\n")
		return b.String()
	}
	for _, r := range reqs {
		icon := "⏳"
		if r.Status == model.WithdrawalReady {
			icon = "✅"
		}
		b.WriteString(fmt.Sprintf("%s #%d %s | 等待 %s\n", icon, r.ID, units(r.Amount, decimals), now.Sub(r.RequestTime).Truncate(time.Minute)))
	}
	return b.String()
}
