package pipeline

import (
	"context"
	"fmt"

	"github.com/dkyng11-25/Fast-Fish-sub010/internal/model"
)

// 契合度调节系数边界与换算，固定业务口径
const (
	affinityModifierFloor = 0.5
	affinityModifierCeil  = 1.3
	affinityModifierSlope = 0.8
)

// PerformanceGapEvaluator 规则12：业绩差距放量
// 只加工规则11已批准的配对，不自行挖掘新机会
// 固定顺序：基础放量 → 契合度调节 → 规则9衰减 → 三重上限 → 下限过滤
// 放量结果经门禁改写规则11的建议量，原裁决留痕转为未生效
type PerformanceGapEvaluator struct{}

// Source 规则来源
func (e *PerformanceGapEvaluator) Source() model.RuleSource {
	return model.RulePerformanceGap
}

// Evaluate 对规则11批准的配对做业绩差距放量
func (e *PerformanceGapEvaluator) Evaluate(ctx context.Context, in *StageInput) ([]*model.RuleDecision, error) {
	cfg := in.Cfg.PerformanceGap
	decisions := make([]*model.RuleDecision, 0)

	for _, prior := range in.Ledger.Decisions() {
		if prior.Candidate.RuleSource != model.RuleMissedOpportunity || !prior.Candidate.RuleApplied {
			continue
		}
		if prior.Opportunity == nil {
			continue
		}

		base := prior.Candidate
		candidate := model.AllocationCandidate{
			StoreID:            base.StoreID,
			ProductID:          base.ProductID,
			ClusterID:          base.ClusterID,
			Subcategory:        base.Subcategory,
			CurrentQuantity:    base.CurrentQuantity,
			TargetQuantity:     base.TargetQuantity,
			UnitPrice:          base.UnitPrice,
			RuleSource:         model.RulePerformanceGap,
			BaselineGatePassed: base.BaselineGatePassed,
		}

		// 规则10压缩过的配对无条件禁止放量
		gateResult := in.Gate.CheckIncrease(&candidate)
		if !gateResult.Passed {
			candidate.RuleReason = gateResult.Reason
			decisions = append(decisions, &model.RuleDecision{Candidate: candidate})
			continue
		}

		storeSales := 0.0
		if f, ok := in.Facts.Fact(base.StoreID, base.ProductID); ok {
			storeSales = f.SalesAmount
		}

		sales := make([]float64, 0)
		for _, f := range in.Facts.ProductFactsInCluster(base.ClusterID, base.ProductID) {
			sales = append(sales, f.SalesAmount)
		}
		p75 := percentile(sales, 0.75)

		gap := p75 - storeSales
		if gap <= 0 {
			continue
		}

		detail := &model.ScalingDetail{
			PerformanceGap: gap,
			BaseScaled:     gap * cfg.BaseScalingFactor,
		}

		// 基础放量 → 契合度调节（[0.5, 1.3]）
		modifier := affinityModifierFloor + affinityModifierSlope*prior.Opportunity.AffinityScore
		if modifier < affinityModifierFloor {
			modifier = affinityModifierFloor
		}
		if modifier > affinityModifierCeil {
			modifier = affinityModifierCeil
		}
		detail.AffinityModifier = modifier
		scaled := detail.BaseScaled * modifier

		// 规则9已对该子类加铺时衰减，避免重复放量
		if in.Gate.Stage9Boosted(base.StoreID, base.Subcategory) {
			detail.Dampened = true
			scaled *= cfg.Stage9Dampener
		}

		clusterMedian := clusterStockedMedian(in, base.ClusterID, base.ProductID)
		capResult := ApplyCaps(scaled, ScalingCaps(
			base.CurrentQuantity, clusterMedian, cfg.CurrentPct, cfg.ClusterMedianPct, cfg.AbsoluteMaxUnits))
		detail.CappedQuantity = capResult.Value
		detail.CapApplied = capResult.CapApplied

		// 封顶后低于下限：整条放弃，规则11的原建议保持生效
		if capResult.Value < cfg.MinScaledQuantity {
			candidate.RuleReason = fmt.Sprintf("scaled quantity %.2f below minimum %.2f, dropped", capResult.Value, cfg.MinScaledQuantity)
			decisions = append(decisions, &model.RuleDecision{
				Candidate: candidate,
				Scaling:   detail,
			})
			continue
		}

		// 经门禁改写规则11的建议量，禁止静默覆盖
		if _, err := in.Gate.Supersede(candidate.PairKey(), model.RulePerformanceGap); err != nil {
			return nil, fmt.Errorf("supersede stage-11 decision: %w", err)
		}

		candidate.RuleApplied = true
		candidate.QuantityChange = capResult.Value
		candidate.RecalcInvestment()
		candidate.RuleReason = fmt.Sprintf("performance gap %.1f vs P75, scaled to %.1f", gap, capResult.Value)
		if capResult.CapApplied != "" {
			candidate.RuleReason += fmt.Sprintf(" (cap: %s)", capResult.CapApplied)
		}
		candidate.BusinessRationale = fmt.Sprintf("门店销售落后同群 P75 基准 %.0f，按业绩差距放量 %.0f 件", gap, capResult.Value)

		decisions = append(decisions, &model.RuleDecision{
			Candidate: candidate,
			Scaling:   detail,
		})
	}

	return decisions, nil
}
