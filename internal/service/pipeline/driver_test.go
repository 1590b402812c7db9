package pipeline

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"

	"github.com/dkyng11-25/Fast-Fish-sub010/internal/model"
	"github.com/dkyng11-25/Fast-Fish-sub010/internal/service/store"
)

func driverFixture() *store.MemoryStore {
	facts := store.NewMemoryStore()
	// S4 有聚类无销售数据，S5 有销售数据无聚类
	facts.SetClusterAssignments([]model.ClusterAssignment{
		{StoreID: "S1", ClusterID: "C1"},
		{StoreID: "S2", ClusterID: "C1"},
		{StoreID: "S3", ClusterID: "C1"},
		{StoreID: "S4", ClusterID: "C1"},
	})
	facts.SetSalesFacts([]model.SalesFact{
		// S1 结构失衡且 P1 超容、P2 受子类回补保护
		{StoreID: "S1", ProductID: "P1", Subcategory: "上衣", CurrentQuantity: 8, TargetQuantity: 5, SalesAmount: 800, SellThroughRate: -1},
		{StoreID: "S1", ProductID: "P2", Subcategory: "裤装", CurrentQuantity: 2, TargetQuantity: 0, SalesAmount: 200, SellThroughRate: -1},
		{StoreID: "S2", ProductID: "P1", Subcategory: "上衣", CurrentQuantity: 5, TargetQuantity: 5, SalesAmount: 500, SellThroughRate: -1},
		{StoreID: "S2", ProductID: "P2", Subcategory: "裤装", CurrentQuantity: 5, TargetQuantity: 5, SalesAmount: 500, SellThroughRate: -1},
		{StoreID: "S3", ProductID: "P1", Subcategory: "上衣", CurrentQuantity: 5, TargetQuantity: 5, SalesAmount: 500, SellThroughRate: -1},
		{StoreID: "S3", ProductID: "P2", Subcategory: "裤装", CurrentQuantity: 5, TargetQuantity: 5, SalesAmount: 500, SellThroughRate: -1},
		{StoreID: "S5", ProductID: "P1", Subcategory: "上衣", CurrentQuantity: 3, TargetQuantity: 3, SalesAmount: 300, SellThroughRate: -1},
	})
	facts.SetProducts([]model.ProductInfo{
		{ProductID: "P1", Subcategory: "上衣", TargetGender: model.GenderUnisex, UnitPrice: decimal.NewFromInt(80)},
		{ProductID: "P2", Subcategory: "裤装", TargetGender: model.GenderUnisex, UnitPrice: decimal.NewFromInt(150)},
	})
	return facts
}

// TestPipelineRun 完整批次：整店保护、六阶段、门禁拦截、三视图汇总
func TestPipelineRun(t *testing.T) {
	cfg := model.DefaultPipelineConfig()
	cfg.Consolidation.MinStoreVolumeFloor = 0

	p := NewPipeline(driverFixture(), cfg, nil)
	result, err := p.Run(context.Background(), "2026-08A")
	if err != nil {
		t.Fatalf("run: %v", err)
	}

	if result.BatchID == "" {
		t.Error("BatchID should be set")
	}
	if result.Period != "2026-08A" {
		t.Errorf("Period = %q", result.Period)
	}

	// 整店保护
	skipped := make(map[string]string)
	for _, s := range result.Summary.SkippedStores {
		skipped[s.StoreID] = s.Reason
	}
	if skipped["S4"] != SkipReasonNoSales {
		t.Errorf("S4 skip reason = %q, want %q", skipped["S4"], SkipReasonNoSales)
	}
	if skipped["S5"] != SkipReasonMissingClustering {
		t.Errorf("S5 skip reason = %q, want %q", skipped["S5"], SkipReasonMissingClustering)
	}

	// 规则8回补 S1 裤装，规则10压缩 S1|P1，P2 受子类保护被拦
	if result.Summary.StageCounts[model.RuleImbalance] != 1 {
		t.Errorf("imbalance count = %d, want 1", result.Summary.StageCounts[model.RuleImbalance])
	}
	if result.Summary.StageCounts[model.RuleOvercapacityReduction] != 1 {
		t.Errorf("overcapacity count = %d, want 1", result.Summary.StageCounts[model.RuleOvercapacityReduction])
	}
	if result.Summary.BlockedReductions != 1 {
		t.Errorf("BlockedReductions = %d, want 1", result.Summary.BlockedReductions)
	}

	if len(result.Detailed) != 2 {
		t.Fatalf("expected 2 detailed rows, got %d: %+v", len(result.Detailed), result.Detailed)
	}
	byKey := make(map[string]model.ConsolidatedAllocation)
	for _, a := range result.Detailed {
		byKey[a.PairKey()] = a
	}
	// 回补量 = (0.4 - 0.2) × 10 × 0.5 = 1
	if a := byKey["S1|#裤装"]; !floatEquals(a.QuantityChange, 1) {
		t.Errorf("裤装 rebalance = %v, want 1", a.QuantityChange)
	}
	// 压缩量受占当前库存 30% 上限：超容 3 封到 2.4
	if a := byKey["S1|P1"]; !floatEquals(a.QuantityChange, -2.4) {
		t.Errorf("P1 reduction = %v, want -2.4", a.QuantityChange)
	}

	// 门店汇总与明细一致
	if len(result.StoreRollups) != 1 || result.StoreRollups[0].StoreID != "S1" {
		t.Fatalf("unexpected store rollups: %+v", result.StoreRollups)
	}
	if !floatEquals(result.StoreRollups[0].TotalQuantityChange, -1.4) {
		t.Errorf("S1 total change = %v, want -1.4", result.StoreRollups[0].TotalQuantityChange)
	}
	if !result.StoreRollups[0].TotalInvestment.Equal(decimal.NewFromInt(-42)) {
		t.Errorf("S1 total investment = %s, want -42", result.StoreRollups[0].TotalInvestment)
	}
	if len(result.ClusterRollups) != 2 {
		t.Errorf("expected 2 cluster rollups, got %d", len(result.ClusterRollups))
	}

	// 审计轨迹包含被拦截的记录
	blocked := 0
	for _, d := range result.Decisions {
		if !d.Candidate.RuleApplied && d.Candidate.RuleReason == ReasonBlockedPriorIncrease {
			blocked++
		}
	}
	if blocked != 1 {
		t.Errorf("expected 1 blocked audit record, got %d", blocked)
	}
}

// TestPipelineRunNoEligibleStores 所有门店被保护跳过时整批报错
func TestPipelineRunNoEligibleStores(t *testing.T) {
	facts := store.NewMemoryStore()
	assignCluster(facts, "C1", "S1")

	p := NewPipeline(facts, nil, nil)
	if _, err := p.Run(context.Background(), "2026-08A"); err == nil {
		t.Fatal("expected error when no store passes the guards")
	}
}

// TestPipelineRunDeterministic 同一份事实重复执行产出一致
func TestPipelineRunDeterministic(t *testing.T) {
	cfg := model.DefaultPipelineConfig()
	cfg.Consolidation.MinStoreVolumeFloor = 0
	facts := driverFixture()

	first, err := NewPipeline(facts, cfg, nil).Run(context.Background(), "2026-08A")
	if err != nil {
		t.Fatalf("first run: %v", err)
	}
	second, err := NewPipeline(facts, cfg, nil).Run(context.Background(), "2026-08A")
	if err != nil {
		t.Fatalf("second run: %v", err)
	}

	if len(first.Detailed) != len(second.Detailed) {
		t.Fatalf("detailed row count differs: %d vs %d", len(first.Detailed), len(second.Detailed))
	}
	for i := range first.Detailed {
		a, b := first.Detailed[i], second.Detailed[i]
		if a.PairKey() != b.PairKey() || !floatEquals(a.QuantityChange, b.QuantityChange) {
			t.Errorf("row %d differs: %+v vs %+v", i, a, b)
		}
	}
}
