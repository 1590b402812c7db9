package pipeline

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/dkyng11-25/Fast-Fish-sub010/internal/model"
)

// MissingCategoryEvaluator 规则7：品类缺失
// 同群大多数门店在售而本店缺货的 SPU，预测售罄率达标即建议补齐
type MissingCategoryEvaluator struct{}

// Source 规则来源
func (e *MissingCategoryEvaluator) Source() model.RuleSource {
	return model.RuleMissingCategory
}

// Evaluate 逐店逐 SPU 检测缺失品类
func (e *MissingCategoryEvaluator) Evaluate(ctx context.Context, in *StageInput) ([]*model.RuleDecision, error) {
	cfg := in.Cfg.MissingCategory
	decisions := make([]*model.RuleDecision, 0)

	for _, storeID := range in.Stores {
		clusterID, err := in.Facts.ClusterID(storeID)
		if err != nil {
			continue
		}
		peers := peersOf(in.Facts, clusterID, storeID)
		if len(peers) == 0 {
			continue
		}

		for _, productID := range sortedProducts(in.Facts, clusterID) {
			clusterFacts := in.Facts.ProductFactsInCluster(clusterID, productID)

			// 本店已在售则规则不适用
			if f, ok := clusterFacts[storeID]; ok && f.CurrentQuantity > 0 {
				continue
			}

			stockedQty := make([]float64, 0, len(peers))
			sellThroughs := make([]float64, 0, len(peers))
			for _, peerID := range peers {
				f, ok := clusterFacts[peerID]
				if !ok || f.CurrentQuantity <= 0 {
					continue
				}
				stockedQty = append(stockedQty, f.CurrentQuantity)
				if f.HasSellThrough() {
					sellThroughs = append(sellThroughs, f.SellThroughRate)
				}
			}

			adoption := float64(len(stockedQty)) / float64(len(peers))
			if adoption < cfg.PeerAdoptionThreshold {
				continue
			}

			candidate := e.newCandidate(in, storeID, clusterID, productID)

			// 售罄率数据缺失时无法校验，准入状态保持 unknown
			if len(sellThroughs) == 0 {
				continue
			}

			predicted := mean(sellThroughs)
			if predicted < cfg.MinPredictedSellThrough {
				in.Ledger.RecordEligibility(candidate.PairKey(), model.EligibilityIneligible)
				candidate.RuleReason = fmt.Sprintf("predicted sell-through %.2f below %.2f", predicted, cfg.MinPredictedSellThrough)
				decisions = append(decisions, &model.RuleDecision{Candidate: *candidate})
				continue
			}

			quantity := median(stockedQty)
			if quantity <= 0 {
				continue
			}

			in.Ledger.RecordEligibility(candidate.PairKey(), model.EligibilityEligible)
			candidate.RuleApplied = true
			candidate.QuantityChange = quantity
			candidate.RecalcInvestment()
			candidate.RuleReason = fmt.Sprintf("adopted by %.0f%% of peers, predicted sell-through %.2f", adoption*100, predicted)
			candidate.BusinessRationale = fmt.Sprintf("同群 %.0f%% 门店在售且预测售罄率 %.0f%% 达标，建议按同群中位库存补齐", adoption*100, predicted*100)
			if p, ok := in.Facts.Product(productID); ok && p.SeasonalNote != "" {
				candidate.BusinessRationale += "（" + p.SeasonalNote + "）"
			}

			decisions = append(decisions, &model.RuleDecision{Candidate: *candidate})
		}
	}

	return decisions, nil
}

// newCandidate 构造 SPU 级候选记录
func (e *MissingCategoryEvaluator) newCandidate(in *StageInput, storeID, clusterID, productID string) *model.AllocationCandidate {
	candidate := &model.AllocationCandidate{
		StoreID:    storeID,
		ProductID:  productID,
		ClusterID:  clusterID,
		RuleSource: model.RuleMissingCategory,
		UnitPrice:  decimal.Zero,
	}
	if p, ok := in.Facts.Product(productID); ok {
		candidate.Subcategory = p.Subcategory
		candidate.UnitPrice = p.UnitPrice
	}
	if f, ok := in.Facts.Fact(storeID, productID); ok {
		candidate.CurrentQuantity = f.CurrentQuantity
		candidate.TargetQuantity = f.TargetQuantity
	}
	return candidate
}
