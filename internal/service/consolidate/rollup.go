package consolidate

import (
	"fmt"
	"math"
	"sort"

	"github.com/shopspring/decimal"

	"github.com/dkyng11-25/Fast-Fish-sub010/internal/model"
)

// 三个视图间的总量一致性容差
const consistencyEpsilon = 1e-6

// buildStoreRollups 明细按门店汇总
func buildStoreRollups(detailed []model.ConsolidatedAllocation) []model.StoreRollup {
	byStore := make(map[string]*model.StoreRollup)
	for _, a := range detailed {
		r, ok := byStore[a.StoreID]
		if !ok {
			r = &model.StoreRollup{StoreID: a.StoreID, TotalInvestment: decimal.Zero}
			byStore[a.StoreID] = r
		}
		r.TotalQuantityChange += a.QuantityChange
		r.TotalInvestment = r.TotalInvestment.Add(a.Investment)
		r.ItemCount++
	}

	result := make([]model.StoreRollup, 0, len(byStore))
	for _, r := range byStore {
		result = append(result, *r)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].StoreID < result[j].StoreID })
	return result
}

// buildClusterRollups 明细按聚类×子类汇总
func buildClusterRollups(detailed []model.ConsolidatedAllocation) []model.ClusterSubcategoryRollup {
	byKey := make(map[string]*model.ClusterSubcategoryRollup)
	for _, a := range detailed {
		key := a.ClusterID + "|" + a.Subcategory
		r, ok := byKey[key]
		if !ok {
			r = &model.ClusterSubcategoryRollup{
				ClusterID:       a.ClusterID,
				Subcategory:     a.Subcategory,
				TotalInvestment: decimal.Zero,
			}
			byKey[key] = r
		}
		r.TotalQuantityChange += a.QuantityChange
		r.TotalInvestment = r.TotalInvestment.Add(a.Investment)
		r.ItemCount++
	}

	result := make([]model.ClusterSubcategoryRollup, 0, len(byKey))
	for _, r := range byKey {
		result = append(result, *r)
	}
	sort.Slice(result, func(i, j int) bool {
		if result[i].ClusterID != result[j].ClusterID {
			return result[i].ClusterID < result[j].ClusterID
		}
		return result[i].Subcategory < result[j].Subcategory
	})
	return result
}

// verifyConsistency 三视图总量自检
// 上游 merge/保底/对齐 的任何缺陷都会在这里表现为汇总不一致
func verifyConsistency(
	detailed []model.ConsolidatedAllocation,
	storeRollups []model.StoreRollup,
	clusterRollups []model.ClusterSubcategoryRollup,
) error {
	detailQty := 0.0
	detailInv := decimal.Zero
	for _, a := range detailed {
		detailQty += a.QuantityChange
		detailInv = detailInv.Add(a.Investment)
	}

	storeQty := 0.0
	storeInv := decimal.Zero
	for _, r := range storeRollups {
		storeQty += r.TotalQuantityChange
		storeInv = storeInv.Add(r.TotalInvestment)
	}

	clusterQty := 0.0
	clusterInv := decimal.Zero
	for _, r := range clusterRollups {
		clusterQty += r.TotalQuantityChange
		clusterInv = clusterInv.Add(r.TotalInvestment)
	}

	if math.Abs(detailQty-storeQty) > consistencyEpsilon {
		return fmt.Errorf("rollup mismatch: detailed quantity %.6f != store rollup %.6f", detailQty, storeQty)
	}
	if math.Abs(detailQty-clusterQty) > consistencyEpsilon {
		return fmt.Errorf("rollup mismatch: detailed quantity %.6f != cluster rollup %.6f", detailQty, clusterQty)
	}
	if !detailInv.Equal(storeInv) {
		return fmt.Errorf("rollup mismatch: detailed investment %s != store rollup %s", detailInv, storeInv)
	}
	if !detailInv.Equal(clusterInv) {
		return fmt.Errorf("rollup mismatch: detailed investment %s != cluster rollup %s", detailInv, clusterInv)
	}
	return nil
}
