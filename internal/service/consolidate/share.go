package consolidate

import (
	"sort"

	"github.com/shopspring/decimal"

	"github.com/dkyng11-25/Fast-Fish-sub010/internal/model"
)

// alignShares 家族占比对齐：同一门店内，家族成员子类的加铺占比
// 与其历史销售占比的偏差收敛到容差内，防止纯规则产出偏离已知客需结构
// 家族加铺总量保持不变，只在成员间重新分配；压缩建议不参与
func alignShares(
	allocations []model.ConsolidatedAllocation,
	prices map[string]decimal.Decimal,
	histSales map[string]map[string]float64,
	families map[string][]string,
	tolerance float64,
) {
	if len(families) == 0 || tolerance <= 0 {
		return
	}

	// store -> subcat -> 行下标
	rowIndex := make(map[string]map[string][]int)
	for i, a := range allocations {
		if a.QuantityChange <= 0 {
			continue
		}
		if rowIndex[a.StoreID] == nil {
			rowIndex[a.StoreID] = make(map[string][]int)
		}
		rowIndex[a.StoreID][a.Subcategory] = append(rowIndex[a.StoreID][a.Subcategory], i)
	}

	stores := make([]string, 0, len(rowIndex))
	for storeID := range rowIndex {
		stores = append(stores, storeID)
	}
	sort.Strings(stores)

	familyNames := make([]string, 0, len(families))
	for name := range families {
		familyNames = append(familyNames, name)
	}
	sort.Strings(familyNames)

	for _, storeID := range stores {
		for _, familyName := range familyNames {
			alignFamily(allocations, prices, rowIndex[storeID], histSales[storeID], families[familyName], tolerance)
		}
	}
}

// alignFamily 对齐单个门店内单个家族的成员占比
func alignFamily(
	allocations []model.ConsolidatedAllocation,
	prices map[string]decimal.Decimal,
	storeRows map[string][]int,
	storeHist map[string]float64,
	members []string,
	tolerance float64,
) {
	// 只在有加铺候选的成员之间重新分配，不凭空造行
	adds := make(map[string]float64)
	active := make([]string, 0, len(members))
	familyTotal := 0.0
	histTotal := 0.0
	for _, subcat := range members {
		for _, idx := range storeRows[subcat] {
			adds[subcat] += allocations[idx].QuantityChange
		}
		if adds[subcat] > 0 {
			active = append(active, subcat)
			familyTotal += adds[subcat]
		}
		histTotal += storeHist[subcat]
	}
	if len(active) < 2 || familyTotal <= 0 || histTotal <= 0 {
		return
	}

	// 当前占比收敛到 历史占比 ± 容差，再归一化保持家族总量
	clamped := make(map[string]float64, len(active))
	clampedSum := 0.0
	needsAlign := false
	for _, subcat := range active {
		share := adds[subcat] / familyTotal
		histShare := storeHist[subcat] / histTotal

		lower := histShare - tolerance
		if lower < 0 {
			lower = 0
		}
		upper := histShare + tolerance

		target := share
		if share < lower {
			target = lower
			needsAlign = true
		} else if share > upper {
			target = upper
			needsAlign = true
		}
		clamped[subcat] = target
		clampedSum += target
	}
	if !needsAlign || clampedSum <= 0 {
		return
	}

	for _, subcat := range active {
		newShare := clamped[subcat] / clampedSum
		factor := newShare * familyTotal / adds[subcat]
		for _, idx := range storeRows[subcat] {
			allocations[idx].QuantityChange *= factor
			allocations[idx].Investment = model.InvestmentFor(
				allocations[idx].QuantityChange, prices[allocations[idx].PairKey()])
		}
	}
}
