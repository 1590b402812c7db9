package pipeline

import (
	"context"
	"fmt"
	"sort"

	"github.com/dkyng11-25/Fast-Fish-sub010/internal/model"
)

// BelowMinimumEvaluator 规则9：低于最低陈列量
// 门店在售子类的库存低于最低可售量时补齐到下限，永远只产出加铺
type BelowMinimumEvaluator struct{}

// Source 规则来源
func (e *BelowMinimumEvaluator) Source() model.RuleSource {
	return model.RuleBelowMinimum
}

// Evaluate 逐店逐子类检测最低陈列量
func (e *BelowMinimumEvaluator) Evaluate(ctx context.Context, in *StageInput) ([]*model.RuleDecision, error) {
	cfg := in.Cfg.BelowMinimum
	decisions := make([]*model.RuleDecision, 0)

	for _, storeID := range in.Stores {
		clusterID, err := in.Facts.ClusterID(storeID)
		if err != nil {
			continue
		}

		quantities := make(map[string]float64)
		for _, f := range in.Facts.FactsForStore(storeID) {
			quantities[f.Subcategory] += f.CurrentQuantity
		}

		subcats := make([]string, 0, len(quantities))
		for subcat := range quantities {
			subcats = append(subcats, subcat)
		}
		sort.Strings(subcats)

		for _, subcat := range subcats {
			total := quantities[subcat]
			// 完全未铺货的子类属于规则7/11的缺失判定，此处只管在售但过薄的
			if total <= 0 || total >= cfg.MinViableQuantity {
				continue
			}

			pairKey := storeID + "|#" + subcat
			if _, claimed := in.Ledger.ActiveSource(pairKey); claimed {
				continue
			}

			quantity := cfg.MinViableQuantity - total
			candidate := model.AllocationCandidate{
				StoreID:         storeID,
				CategoryKey:     subcat,
				ClusterID:       clusterID,
				Subcategory:     subcat,
				CurrentQuantity: total,
				TargetQuantity:  cfg.MinViableQuantity,
				QuantityChange:  quantity,
				UnitPrice:       in.Facts.AvgUnitPriceForSubcategory(subcat),
				RuleSource:      model.RuleBelowMinimum,
				RuleApplied:     true,
				RuleReason:      fmt.Sprintf("subcategory quantity %.1f below minimum %.1f", total, cfg.MinViableQuantity),
				BusinessRationale: fmt.Sprintf("子类「%s」在售量 %.0f 低于最低可售陈列量 %.0f，补齐到下限",
					subcat, total, cfg.MinViableQuantity),
			}
			candidate.RecalcInvestment()

			decisions = append(decisions, &model.RuleDecision{Candidate: candidate})
		}
	}

	return decisions, nil
}
