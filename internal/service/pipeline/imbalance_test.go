package pipeline

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"

	"github.com/dkyng11-25/Fast-Fish-sub010/internal/model"
	"github.com/dkyng11-25/Fast-Fish-sub010/internal/service/store"
)

func imbalanceFixture() *store.MemoryStore {
	facts := store.NewMemoryStore()
	assignCluster(facts, "C1", "S1", "S2", "S3")
	facts.SetSalesFacts([]model.SalesFact{
		// S1 上衣占比 0.8，裤装 0.2，结构失衡
		{StoreID: "S1", ProductID: "P1", Subcategory: "上衣", CurrentQuantity: 8, SalesAmount: 800, SellThroughRate: -1},
		{StoreID: "S1", ProductID: "P2", Subcategory: "裤装", CurrentQuantity: 2, SalesAmount: 200, SellThroughRate: -1},
		// S2 / S3 均衡 0.5 / 0.5
		{StoreID: "S2", ProductID: "P1", Subcategory: "上衣", CurrentQuantity: 5, SalesAmount: 500, SellThroughRate: -1},
		{StoreID: "S2", ProductID: "P2", Subcategory: "裤装", CurrentQuantity: 5, SalesAmount: 500, SellThroughRate: -1},
		{StoreID: "S3", ProductID: "P1", Subcategory: "上衣", CurrentQuantity: 5, SalesAmount: 500, SellThroughRate: -1},
		{StoreID: "S3", ProductID: "P2", Subcategory: "裤装", CurrentQuantity: 5, SalesAmount: 500, SellThroughRate: -1},
	})
	facts.SetProducts([]model.ProductInfo{
		{ProductID: "P1", Subcategory: "上衣", TargetGender: model.GenderUnisex, UnitPrice: decimal.NewFromInt(80)},
		{ProductID: "P2", Subcategory: "裤装", TargetGender: model.GenderUnisex, UnitPrice: decimal.NewFromInt(150)},
	})
	return facts
}

// TestImbalanceRebalancesLowShare 占比偏低的子类按配置比例回补
func TestImbalanceRebalancesLowShare(t *testing.T) {
	facts := imbalanceFixture()
	in := newStageInput(facts, []string{"S1"})
	cfg := in.Cfg.Imbalance

	decisions, err := (&ImbalanceEvaluator{}).Evaluate(context.Background(), in)
	if err != nil {
		t.Fatalf("evaluate: %v", err)
	}
	if len(decisions) != 1 {
		t.Fatalf("expected 1 decision, got %d", len(decisions))
	}

	c := decisions[0].Candidate
	if !c.RuleApplied || c.Subcategory != "裤装" {
		t.Fatalf("unexpected decision: %+v", c)
	}

	// 缺口 = 群体常态占比 - 本店占比，回补量 = 缺口 × 本店库存总量 × 回补比例
	clusterShare := (0.2 + 0.5 + 0.5) / 3
	expected := (clusterShare - 0.2) * 10 * cfg.RebalanceFraction
	if !floatEquals(c.QuantityChange, expected) {
		t.Errorf("QuantityChange = %v, want %v", c.QuantityChange, expected)
	}
	if c.PairKey() != "S1|#裤装" {
		t.Errorf("PairKey = %q, want subcategory-level key", c.PairKey())
	}
	if !c.UnitPrice.Equal(decimal.NewFromInt(150)) {
		t.Errorf("UnitPrice = %s, want subcategory average 150", c.UnitPrice)
	}
}

// TestImbalanceSkipsClaimedPair 已被先前阶段认领的子类不重复回补
func TestImbalanceSkipsClaimedPair(t *testing.T) {
	facts := imbalanceFixture()
	in := newStageInput(facts, []string{"S1"})

	prior := &model.RuleDecision{
		Candidate: model.AllocationCandidate{
			StoreID:        "S1",
			CategoryKey:    "裤装",
			Subcategory:    "裤装",
			QuantityChange: 2,
			RuleSource:     model.RuleMissingCategory,
			RuleApplied:    true,
		},
	}
	if err := in.Ledger.Append(prior); err != nil {
		t.Fatalf("append: %v", err)
	}

	decisions, err := (&ImbalanceEvaluator{}).Evaluate(context.Background(), in)
	if err != nil {
		t.Fatalf("evaluate: %v", err)
	}
	if len(decisions) != 0 {
		t.Fatalf("claimed pair should be skipped, got %d decisions", len(decisions))
	}
}

// TestImbalanceBalancedStoreQuiet 结构均衡的门店不产出建议
func TestImbalanceBalancedStoreQuiet(t *testing.T) {
	facts := imbalanceFixture()
	in := newStageInput(facts, []string{"S2"})

	decisions, err := (&ImbalanceEvaluator{}).Evaluate(context.Background(), in)
	if err != nil {
		t.Fatalf("evaluate: %v", err)
	}
	if len(decisions) != 0 {
		t.Fatalf("balanced store should produce no decision, got %d", len(decisions))
	}
}
