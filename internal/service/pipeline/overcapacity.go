package pipeline

import (
	"context"
	"fmt"

	"github.com/dkyng11-25/Fast-Fish-sub010/internal/model"
)

// OvercapacityEvaluator 规则10：超容压缩
// 当前库存超过目标库存的 (门店, SPU) 压缩超出部分，受三重安全上限约束
// 早期规则已加铺的配对无条件豁免，核心子类使用收紧后的压缩上限
type OvercapacityEvaluator struct{}

// Source 规则来源
func (e *OvercapacityEvaluator) Source() model.RuleSource {
	return model.RuleOvercapacityReduction
}

// Evaluate 逐店逐 SPU 检测超容
func (e *OvercapacityEvaluator) Evaluate(ctx context.Context, in *StageInput) ([]*model.RuleDecision, error) {
	cfg := in.Cfg.Overcapacity
	decisions := make([]*model.RuleDecision, 0)

	for _, storeID := range in.Stores {
		clusterID, err := in.Facts.ClusterID(storeID)
		if err != nil {
			continue
		}

		for _, f := range in.Facts.FactsForStore(storeID) {
			if f.CurrentQuantity <= f.TargetQuantity {
				continue
			}
			excess := f.CurrentQuantity - f.TargetQuantity

			candidate := model.AllocationCandidate{
				StoreID:         storeID,
				ProductID:       f.ProductID,
				ClusterID:       clusterID,
				Subcategory:     f.Subcategory,
				CurrentQuantity: f.CurrentQuantity,
				TargetQuantity:  f.TargetQuantity,
				RuleSource:      model.RuleOvercapacityReduction,
			}
			if p, ok := in.Facts.Product(f.ProductID); ok {
				candidate.UnitPrice = p.UnitPrice
			}

			isCore := cfg.IsCoreSubcategory(f.Subcategory)
			detail := &model.OvercapacityDetail{
				ExcessQuantity:    excess,
				IsCoreSubcategory: isCore,
			}

			// 早期规则加铺过的配对无条件豁免压缩，超容多大都不例外
			gateResult := in.Gate.CheckReduction(&candidate)
			if !gateResult.Passed {
				candidate.RuleReason = gateResult.Reason
				candidate.BusinessRationale = "早期规则已对该配对加铺，按保护规则豁免压缩"
				decisions = append(decisions, &model.RuleDecision{
					Candidate:    candidate,
					Overcapacity: detail,
				})
				continue
			}

			// 核心子类走收紧的比例上限，压缩但不清零
			pct := cfg.MaxReductionPct
			if isCore {
				pct = cfg.CoreMaxReductionPct
			}
			detail.MaxReduction = f.CurrentQuantity * pct

			peerMedian := clusterStockedMedian(in, clusterID, f.ProductID)
			capResult := ApplyCaps(excess, ReductionCaps(
				f.CurrentQuantity, peerMedian, pct, cfg.PeerMedianPct, cfg.AbsoluteMaxUnits))
			if capResult.Value <= 0 {
				continue
			}

			detail.ConstrainedReduction = capResult.Value
			detail.CapApplied = capResult.CapApplied

			candidate.RuleApplied = true
			candidate.QuantityChange = -capResult.Value
			candidate.RecalcInvestment()
			candidate.RuleReason = fmt.Sprintf("excess %.1f, reduce %.1f", excess, capResult.Value)
			if capResult.CapApplied != "" {
				candidate.RuleReason += fmt.Sprintf(" (cap: %s)", capResult.CapApplied)
			}
			candidate.BusinessRationale = fmt.Sprintf("当前库存 %.0f 超出目标 %.0f，压缩 %.0f 件",
				f.CurrentQuantity, f.TargetQuantity, capResult.Value)
			if isCore {
				candidate.BusinessRationale += "（核心子类，按收紧上限压缩）"
			}

			decisions = append(decisions, &model.RuleDecision{
				Candidate:    candidate,
				Overcapacity: detail,
			})
		}
	}

	return decisions, nil
}

// clusterStockedMedian 聚类内在售门店的该 SPU 库存中位数
func clusterStockedMedian(in *StageInput, clusterID, productID string) float64 {
	quantities := make([]float64, 0)
	for _, f := range in.Facts.ProductFactsInCluster(clusterID, productID) {
		if f.CurrentQuantity > 0 {
			quantities = append(quantities, f.CurrentQuantity)
		}
	}
	return median(quantities)
}
