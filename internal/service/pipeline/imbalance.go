package pipeline

import (
	"context"
	"fmt"
	"sort"

	"github.com/dkyng11-25/Fast-Fish-sub010/internal/model"
)

// ImbalanceEvaluator 规则8：结构失衡
// 门店子类占比明显低于同群常态时，按配置比例向群体常态回补
// 占比偏高的一侧属于规则10的职责，本阶段只产出加铺
type ImbalanceEvaluator struct{}

// Source 规则来源
func (e *ImbalanceEvaluator) Source() model.RuleSource {
	return model.RuleImbalance
}

// Evaluate 逐店对比子类结构与聚类常态
func (e *ImbalanceEvaluator) Evaluate(ctx context.Context, in *StageInput) ([]*model.RuleDecision, error) {
	cfg := in.Cfg.Imbalance
	decisions := make([]*model.RuleDecision, 0)

	for _, storeID := range in.Stores {
		clusterID, err := in.Facts.ClusterID(storeID)
		if err != nil {
			continue
		}

		storeShares, storeTotal := subcategoryShares(in, storeID)
		if storeTotal <= 0 {
			continue
		}
		clusterShares := clusterMeanShares(in, clusterID)

		subcats := make([]string, 0, len(clusterShares))
		for subcat := range clusterShares {
			subcats = append(subcats, subcat)
		}
		sort.Strings(subcats)

		for _, subcat := range subcats {
			gap := clusterShares[subcat] - storeShares[subcat]
			if gap <= cfg.DeviationThreshold {
				continue
			}

			pairKey := storeID + "|#" + subcat
			if _, claimed := in.Ledger.ActiveSource(pairKey); claimed {
				continue
			}

			quantity := gap * storeTotal * cfg.RebalanceFraction
			if quantity <= 0 {
				continue
			}

			candidate := model.AllocationCandidate{
				StoreID:         storeID,
				CategoryKey:     subcat,
				ClusterID:       clusterID,
				Subcategory:     subcat,
				CurrentQuantity: storeShares[subcat] * storeTotal,
				QuantityChange:  quantity,
				UnitPrice:       in.Facts.AvgUnitPriceForSubcategory(subcat),
				RuleSource:      model.RuleImbalance,
				RuleApplied:     true,
				RuleReason: fmt.Sprintf("subcategory share %.2f below cluster norm %.2f",
					storeShares[subcat], clusterShares[subcat]),
				BusinessRationale: fmt.Sprintf("子类「%s」占比 %.0f%% 低于同群常态 %.0f%%，向群体结构回补",
					subcat, storeShares[subcat]*100, clusterShares[subcat]*100),
			}
			candidate.RecalcInvestment()

			decisions = append(decisions, &model.RuleDecision{Candidate: candidate})
		}
	}

	return decisions, nil
}

// subcategoryShares 门店各子类库存占比与库存总量
func subcategoryShares(in *StageInput, storeID string) (map[string]float64, float64) {
	quantities := make(map[string]float64)
	total := 0.0
	for _, f := range in.Facts.FactsForStore(storeID) {
		quantities[f.Subcategory] += f.CurrentQuantity
		total += f.CurrentQuantity
	}

	shares := make(map[string]float64, len(quantities))
	if total > 0 {
		for subcat, qty := range quantities {
			shares[subcat] = qty / total
		}
	}
	return shares, total
}

// clusterMeanShares 聚类内各门店子类占比的平均值（群体常态结构）
func clusterMeanShares(in *StageInput, clusterID string) map[string]float64 {
	stores := in.Facts.StoresInCluster(clusterID)
	sums := make(map[string]float64)
	counted := 0

	for _, storeID := range stores {
		shares, total := subcategoryShares(in, storeID)
		if total <= 0 {
			continue
		}
		counted++
		for subcat, share := range shares {
			sums[subcat] += share
		}
	}

	result := make(map[string]float64, len(sums))
	if counted > 0 {
		for subcat, sum := range sums {
			result[subcat] = sum / float64(counted)
		}
	}
	return result
}
