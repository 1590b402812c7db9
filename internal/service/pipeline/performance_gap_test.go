package pipeline

import (
	"context"
	"strings"
	"testing"

	"github.com/shopspring/decimal"

	"github.com/dkyng11-25/Fast-Fish-sub010/internal/model"
	"github.com/dkyng11-25/Fast-Fish-sub010/internal/service/store"
)

func performanceGapFixture(t *testing.T) (*StageInput, *model.RuleDecision) {
	t.Helper()

	facts := store.NewMemoryStore()
	assignCluster(facts, "C1", "S1", "S2", "S3")
	facts.SetSalesFacts([]model.SalesFact{
		{StoreID: "S2", ProductID: "PX", Subcategory: "连衣裙", CurrentQuantity: 10, SalesAmount: 100, SellThroughRate: -1},
		{StoreID: "S3", ProductID: "PX", Subcategory: "连衣裙", CurrentQuantity: 20, SalesAmount: 200, SellThroughRate: -1},
	})
	facts.SetProducts([]model.ProductInfo{
		{ProductID: "PX", Subcategory: "连衣裙", TargetGender: model.GenderFemale, UnitPrice: decimal.NewFromInt(100)},
	})

	in := newStageInput(facts, []string{"S1"})

	// 规则11已批准的配对，契合度 0.5
	prior := &model.RuleDecision{
		Candidate: model.AllocationCandidate{
			StoreID:            "S1",
			ProductID:          "PX",
			ClusterID:          "C1",
			Subcategory:        "连衣裙",
			QuantityChange:     10,
			UnitPrice:          decimal.NewFromInt(100),
			RuleSource:         model.RuleMissedOpportunity,
			RuleApplied:        true,
			RuleReason:         "missed opportunity tier=medium",
			BaselineGatePassed: true,
		},
		Opportunity: &model.OpportunityDetail{AffinityScore: 0.5},
	}
	if err := in.Ledger.Append(prior); err != nil {
		t.Fatalf("append prior: %v", err)
	}
	return in, prior
}

// TestPerformanceGapSupersedesStage11 放量结果经门禁改写规则11建议
func TestPerformanceGapSupersedesStage11(t *testing.T) {
	in, prior := performanceGapFixture(t)

	decisions, err := (&PerformanceGapEvaluator{}).Evaluate(context.Background(), in)
	if err != nil {
		t.Fatalf("evaluate: %v", err)
	}
	if len(decisions) != 1 {
		t.Fatalf("expected 1 decision, got %d", len(decisions))
	}

	d := decisions[0]
	if !d.Candidate.RuleApplied {
		t.Fatalf("decision should be applied, reason: %q", d.Candidate.RuleReason)
	}
	if d.Scaling == nil {
		t.Fatal("missing scaling detail")
	}
	// 差距 = P75(100, 200) − 本店销售 0 = 175，基础放量 17.5
	if !floatEquals(d.Scaling.PerformanceGap, 175) {
		t.Errorf("PerformanceGap = %v, want 175", d.Scaling.PerformanceGap)
	}
	if !floatEquals(d.Scaling.BaseScaled, 17.5) {
		t.Errorf("BaseScaled = %v, want 17.5", d.Scaling.BaseScaled)
	}
	// 契合度 0.5 换算调节系数 0.5 + 0.8 × 0.5 = 0.9
	if !floatEquals(d.Scaling.AffinityModifier, 0.9) {
		t.Errorf("AffinityModifier = %v, want 0.9", d.Scaling.AffinityModifier)
	}
	// 17.5 × 0.9 = 15.75，被同群中位库存上限 15 × 0.6 = 9 封顶
	if !floatEquals(d.Candidate.QuantityChange, 9) {
		t.Errorf("QuantityChange = %v, want 9", d.Candidate.QuantityChange)
	}
	if d.Scaling.CapApplied != CapPctOfPeerMedian {
		t.Errorf("CapApplied = %q, want %q", d.Scaling.CapApplied, CapPctOfPeerMedian)
	}

	// 规则11的原裁决转为未生效并留痕
	if prior.Candidate.RuleApplied {
		t.Error("prior stage-11 decision should be superseded")
	}
	if !strings.Contains(prior.Candidate.RuleReason, ReasonSuperseded) {
		t.Errorf("prior RuleReason = %q", prior.Candidate.RuleReason)
	}
}

// TestPerformanceGapDampenedByStage9 规则9加铺过的子类放量衰减
func TestPerformanceGapDampenedByStage9(t *testing.T) {
	in, _ := performanceGapFixture(t)

	boost := &model.RuleDecision{
		Candidate: model.AllocationCandidate{
			StoreID:        "S1",
			CategoryKey:    "连衣裙",
			Subcategory:    "连衣裙",
			QuantityChange: 1,
			RuleSource:     model.RuleBelowMinimum,
			RuleApplied:    true,
		},
	}
	if err := in.Ledger.Append(boost); err != nil {
		t.Fatalf("append boost: %v", err)
	}

	decisions, err := (&PerformanceGapEvaluator{}).Evaluate(context.Background(), in)
	if err != nil {
		t.Fatalf("evaluate: %v", err)
	}
	if len(decisions) != 1 {
		t.Fatalf("expected 1 decision, got %d", len(decisions))
	}

	d := decisions[0]
	if !d.Scaling.Dampened {
		t.Error("Dampened should be true")
	}
	// 17.5 × 0.9 × 0.5 = 7.875，低于封顶线，直接落地
	if !floatEquals(d.Candidate.QuantityChange, 7.875) {
		t.Errorf("QuantityChange = %v, want 7.875", d.Candidate.QuantityChange)
	}
	if d.Scaling.CapApplied != "" {
		t.Errorf("CapApplied = %q, want none", d.Scaling.CapApplied)
	}
}

// TestPerformanceGapDropsBelowMinimum 封顶后低于下限整条放弃，规则11建议保持生效
func TestPerformanceGapDropsBelowMinimum(t *testing.T) {
	in, prior := performanceGapFixture(t)
	in.Cfg.PerformanceGap.MinScaledQuantity = 20

	decisions, err := (&PerformanceGapEvaluator{}).Evaluate(context.Background(), in)
	if err != nil {
		t.Fatalf("evaluate: %v", err)
	}
	if len(decisions) != 1 {
		t.Fatalf("expected 1 audit decision, got %d", len(decisions))
	}

	d := decisions[0]
	if d.Candidate.RuleApplied {
		t.Fatal("dropped scaling must not be applied")
	}
	if !strings.Contains(d.Candidate.RuleReason, "dropped") {
		t.Errorf("RuleReason = %q", d.Candidate.RuleReason)
	}

	// 原建议不受影响
	if !prior.Candidate.RuleApplied {
		t.Error("prior stage-11 decision should stay active")
	}
	source, claimed := in.Ledger.ActiveSource("S1|PX")
	if !claimed || source != model.RuleMissedOpportunity {
		t.Errorf("ActiveSource = %v/%v, want missed_opportunity", source, claimed)
	}
}

// TestPerformanceGapNoGapQuiet 门店销售不落后时不放量
func TestPerformanceGapNoGapQuiet(t *testing.T) {
	in, prior := performanceGapFixture(t)
	// 让本店销售高于 P75
	in.Facts.SetSalesFacts([]model.SalesFact{
		{StoreID: "S1", ProductID: "PX", Subcategory: "连衣裙", CurrentQuantity: 0, SalesAmount: 500, SellThroughRate: -1},
		{StoreID: "S2", ProductID: "PX", Subcategory: "连衣裙", CurrentQuantity: 10, SalesAmount: 100, SellThroughRate: -1},
		{StoreID: "S3", ProductID: "PX", Subcategory: "连衣裙", CurrentQuantity: 20, SalesAmount: 200, SellThroughRate: -1},
	})

	decisions, err := (&PerformanceGapEvaluator{}).Evaluate(context.Background(), in)
	if err != nil {
		t.Fatalf("evaluate: %v", err)
	}
	if len(decisions) != 0 {
		t.Fatalf("expected no decision, got %d", len(decisions))
	}
	if !prior.Candidate.RuleApplied {
		t.Error("prior stage-11 decision should stay active")
	}
}
