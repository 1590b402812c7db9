package consolidate

import (
	"sort"

	"github.com/shopspring/decimal"

	"github.com/dkyng11-25/Fast-Fish-sub010/internal/model"
)

// enforceFloor 门店保底量：加铺总量不足下限的门店按比例放大其全部加铺
// 只放大加铺，压缩建议一律不动；没有任何加铺候选的门店如实上报，不硬凑
func enforceFloor(allocations []model.ConsolidatedAllocation, prices map[string]decimal.Decimal, floor float64, summary *model.BatchSummary) {
	if floor <= 0 {
		return
	}

	addTotals := make(map[string]float64)
	storeSeen := make(map[string]bool)
	for _, a := range allocations {
		storeSeen[a.StoreID] = true
		if a.QuantityChange > 0 {
			addTotals[a.StoreID] += a.QuantityChange
		}
	}

	stores := make([]string, 0, len(storeSeen))
	for storeID := range storeSeen {
		stores = append(stores, storeID)
	}
	sort.Strings(stores)

	for _, storeID := range stores {
		total := addTotals[storeID]
		if total >= floor {
			continue
		}
		if total <= 0 {
			summary.FloorViolations = append(summary.FloorViolations, model.FloorViolation{
				StoreID:  storeID,
				AddTotal: total,
				Floor:    floor,
			})
			continue
		}

		factor := floor / total
		for i := range allocations {
			if allocations[i].StoreID != storeID || allocations[i].QuantityChange <= 0 {
				continue
			}
			allocations[i].QuantityChange *= factor
			allocations[i].Investment = model.InvestmentFor(
				allocations[i].QuantityChange, prices[allocations[i].PairKey()])
		}
	}
}
