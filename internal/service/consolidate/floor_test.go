package consolidate

import (
	"testing"

	"github.com/shopspring/decimal"

	"github.com/dkyng11-25/Fast-Fish-sub010/internal/model"
)

func allocation(storeID, productID, subcat string, change float64) model.ConsolidatedAllocation {
	return model.ConsolidatedAllocation{
		StoreID:        storeID,
		ProductID:      productID,
		ClusterID:      "C1",
		Subcategory:    subcat,
		QuantityChange: change,
		Investment:     decimal.NewFromFloat(change * 10),
	}
}

// TestEnforceFloorScalesProportionally 加铺 2/3/1 在保底 10 下等比放大到 10/3 / 5 / 5/3
func TestEnforceFloorScalesProportionally(t *testing.T) {
	allocations := []model.ConsolidatedAllocation{
		allocation("S1", "P1", "上衣", 2),
		allocation("S1", "P2", "裤装", 3),
		allocation("S1", "P3", "配饰", 1),
	}
	prices := map[string]decimal.Decimal{
		"S1|P1": decimal.NewFromInt(10),
		"S1|P2": decimal.NewFromInt(10),
		"S1|P3": decimal.NewFromInt(10),
	}
	summary := model.NewBatchSummary()

	enforceFloor(allocations, prices, 10, summary)

	factor := 10.0 / 6.0
	wants := []float64{2 * factor, 3 * factor, 1 * factor}
	total := 0.0
	for i, want := range wants {
		if !floatEquals(allocations[i].QuantityChange, want) {
			t.Errorf("row %d = %v, want %v", i, allocations[i].QuantityChange, want)
		}
		total += allocations[i].QuantityChange
	}
	if !floatEquals(total, 10) {
		t.Errorf("total = %v, want exactly the floor 10", total)
	}
	// 投入金额随缩放重算
	if !allocations[1].Investment.Equal(decimal.NewFromInt(50)) {
		t.Errorf("row 1 investment = %s, want 50", allocations[1].Investment)
	}
	if len(summary.FloorViolations) != 0 {
		t.Errorf("no violation expected, got %+v", summary.FloorViolations)
	}
}

// TestEnforceFloorLeavesReductionsAlone 压缩建议不参与保底缩放
func TestEnforceFloorLeavesReductionsAlone(t *testing.T) {
	allocations := []model.ConsolidatedAllocation{
		allocation("S1", "P1", "上衣", 4),
		allocation("S1", "P2", "裤装", -6),
	}
	prices := map[string]decimal.Decimal{
		"S1|P1": decimal.NewFromInt(10),
		"S1|P2": decimal.NewFromInt(10),
	}
	summary := model.NewBatchSummary()

	enforceFloor(allocations, prices, 8, summary)

	// 加铺 4 放大到 8，压缩 −6 原样保留
	if !floatEquals(allocations[0].QuantityChange, 8) {
		t.Errorf("add = %v, want 8", allocations[0].QuantityChange)
	}
	if !floatEquals(allocations[1].QuantityChange, -6) {
		t.Errorf("reduction = %v, want -6 untouched", allocations[1].QuantityChange)
	}
}

// TestEnforceFloorReportsEmptyAddSet 无加铺候选的门店如实上报，不硬凑
func TestEnforceFloorReportsEmptyAddSet(t *testing.T) {
	allocations := []model.ConsolidatedAllocation{
		allocation("S1", "P1", "上衣", -5),
	}
	prices := map[string]decimal.Decimal{"S1|P1": decimal.NewFromInt(10)}
	summary := model.NewBatchSummary()

	enforceFloor(allocations, prices, 10, summary)

	if len(summary.FloorViolations) != 1 {
		t.Fatalf("expected 1 violation, got %d", len(summary.FloorViolations))
	}
	v := summary.FloorViolations[0]
	if v.StoreID != "S1" || !floatEquals(v.Floor, 10) {
		t.Errorf("violation = %+v", v)
	}
	if !floatEquals(allocations[0].QuantityChange, -5) {
		t.Errorf("reduction = %v, should stay untouched", allocations[0].QuantityChange)
	}
}

// TestEnforceFloorDisabled 保底量为零时不做任何处理
func TestEnforceFloorDisabled(t *testing.T) {
	allocations := []model.ConsolidatedAllocation{allocation("S1", "P1", "上衣", 2)}
	summary := model.NewBatchSummary()

	enforceFloor(allocations, nil, 0, summary)

	if !floatEquals(allocations[0].QuantityChange, 2) {
		t.Errorf("change = %v, want 2", allocations[0].QuantityChange)
	}
}
