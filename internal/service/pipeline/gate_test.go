package pipeline

import (
	"strings"
	"testing"

	"github.com/dkyng11-25/Fast-Fish-sub010/internal/model"
)

func appliedDecision(storeID, productID string, change float64, source model.RuleSource) *model.RuleDecision {
	return &model.RuleDecision{
		Candidate: model.AllocationCandidate{
			StoreID:        storeID,
			ProductID:      productID,
			QuantityChange: change,
			RuleSource:     source,
			RuleApplied:    true,
		},
	}
}

// TestLedgerDoubleClaim 同配对第二条生效裁决必须报错
func TestLedgerDoubleClaim(t *testing.T) {
	ledger := NewLedger()
	if err := ledger.Append(appliedDecision("S1", "P1", 5, model.RuleMissingCategory)); err != nil {
		t.Fatalf("first append failed: %v", err)
	}
	err := ledger.Append(appliedDecision("S1", "P1", 3, model.RuleImbalance))
	if err == nil {
		t.Fatal("expected error on second active claim, got nil")
	}
	if !strings.Contains(err.Error(), "S1|P1") {
		t.Errorf("error should name the pair: %v", err)
	}
}

// TestLedgerUnappliedDecisionsDoNotClaim 未生效裁决不占用配对
func TestLedgerUnappliedDecisionsDoNotClaim(t *testing.T) {
	ledger := NewLedger()
	blocked := appliedDecision("S1", "P1", -10, model.RuleOvercapacityReduction)
	blocked.Candidate.RuleApplied = false
	if err := ledger.Append(blocked); err != nil {
		t.Fatalf("append unapplied: %v", err)
	}
	if _, claimed := ledger.ActiveSource("S1|P1"); claimed {
		t.Error("unapplied decision should not claim the pair")
	}
	if err := ledger.Append(appliedDecision("S1", "P1", 5, model.RuleMissedOpportunity)); err != nil {
		t.Fatalf("append after unapplied: %v", err)
	}
}

// TestGateBlocksReductionAfterEarlyIncrease 早期加铺后压缩被拦截
// 不论超容多大，+5 的早期加铺都保护该配对
func TestGateBlocksReductionAfterEarlyIncrease(t *testing.T) {
	ledger := NewLedger()
	gate := NewGate(ledger)
	if err := ledger.Append(appliedDecision("S1", "P1", 5, model.RuleMissingCategory)); err != nil {
		t.Fatalf("append: %v", err)
	}

	reduction := &model.AllocationCandidate{
		StoreID:         "S1",
		ProductID:       "P1",
		CurrentQuantity: 100,
		TargetQuantity:  60,
		RuleSource:      model.RuleOvercapacityReduction,
	}
	result := gate.CheckReduction(reduction)
	if result.Passed {
		t.Fatal("reduction should be blocked after early increase")
	}
	if result.Reason != ReasonBlockedPriorIncrease {
		t.Errorf("Reason = %q, want %q", result.Reason, ReasonBlockedPriorIncrease)
	}

	// 其他配对不受影响
	other := &model.AllocationCandidate{StoreID: "S1", ProductID: "P2", RuleSource: model.RuleOvercapacityReduction}
	if r := gate.CheckReduction(other); !r.Passed {
		t.Errorf("unrelated pair should pass, got %q", r.Reason)
	}
}

// TestGateSubcategoryIncreaseProtectsMembers 子类级加铺保护子类下的 SPU
func TestGateSubcategoryIncreaseProtectsMembers(t *testing.T) {
	ledger := NewLedger()
	gate := NewGate(ledger)

	boost := &model.RuleDecision{
		Candidate: model.AllocationCandidate{
			StoreID:        "S1",
			CategoryKey:    "连衣裙",
			Subcategory:    "连衣裙",
			QuantityChange: 2,
			RuleSource:     model.RuleBelowMinimum,
			RuleApplied:    true,
		},
	}
	if err := ledger.Append(boost); err != nil {
		t.Fatalf("append: %v", err)
	}

	member := &model.AllocationCandidate{
		StoreID:     "S1",
		ProductID:   "P9",
		Subcategory: "连衣裙",
		RuleSource:  model.RuleOvercapacityReduction,
	}
	if r := gate.CheckReduction(member); r.Passed {
		t.Error("member SPU of boosted subcategory should be protected")
	}
	if !gate.Stage9Boosted("S1", "连衣裙") {
		t.Error("Stage9Boosted should report the boost")
	}
}

// TestGateBlocksIncreaseAfterRule10 规则10压缩后加铺被拦截
func TestGateBlocksIncreaseAfterRule10(t *testing.T) {
	ledger := NewLedger()
	gate := NewGate(ledger)
	if err := ledger.Append(appliedDecision("S1", "P1", -8, model.RuleOvercapacityReduction)); err != nil {
		t.Fatalf("append: %v", err)
	}

	increase := &model.AllocationCandidate{StoreID: "S1", ProductID: "P1", RuleSource: model.RulePerformanceGap}
	result := gate.CheckIncrease(increase)
	if result.Passed {
		t.Fatal("increase should be blocked after rule 10 reduction")
	}
	if result.Reason != ReasonBlockedRule10Reduce {
		t.Errorf("Reason = %q, want %q", result.Reason, ReasonBlockedRule10Reduce)
	}
}

// TestBaselineGate 规则11基线门禁的三种准入状态
func TestBaselineGate(t *testing.T) {
	tests := []struct {
		name        string
		eligibility model.EligibilityStatus
		recorded    bool
		wantPassed  bool
	}{
		{"规则7合格", model.EligibilityEligible, true, true},
		{"规则7不合格", model.EligibilityIneligible, true, false},
		{"规则7无判定放行", model.EligibilityUnknown, false, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ledger := NewLedger()
			gate := NewGate(ledger)
			c := &model.AllocationCandidate{StoreID: "S1", ProductID: "P1", RuleSource: model.RuleMissedOpportunity}
			if tt.recorded {
				ledger.RecordEligibility(c.PairKey(), tt.eligibility)
			}
			result := gate.BaselineGate(c)
			if result.Passed != tt.wantPassed {
				t.Errorf("Passed = %v, want %v (reason %q)", result.Passed, tt.wantPassed, result.Reason)
			}
			if result.Stage7Eligibility != tt.eligibility {
				t.Errorf("Stage7Eligibility = %v, want %v", result.Stage7Eligibility, tt.eligibility)
			}
		})
	}
}

// TestBaselineGateBlocksAfterRule10 规则10压缩过的配对基线门禁拒绝
func TestBaselineGateBlocksAfterRule10(t *testing.T) {
	ledger := NewLedger()
	gate := NewGate(ledger)
	if err := ledger.Append(appliedDecision("S1", "P1", -4, model.RuleOvercapacityReduction)); err != nil {
		t.Fatalf("append: %v", err)
	}
	c := &model.AllocationCandidate{StoreID: "S1", ProductID: "P1", RuleSource: model.RuleMissedOpportunity}
	result := gate.BaselineGate(c)
	if result.Passed {
		t.Fatal("baseline gate should fail after rule 10 reduction")
	}
	if !strings.Contains(result.Reason, ReasonBlockedRule10Reduce) {
		t.Errorf("Reason = %q", result.Reason)
	}
}

// TestSupersede 规则12经门禁改写规则11裁决
func TestSupersede(t *testing.T) {
	ledger := NewLedger()
	gate := NewGate(ledger)

	prior := appliedDecision("S1", "P1", 10, model.RuleMissedOpportunity)
	prior.Candidate.RuleReason = "missed opportunity"
	if err := ledger.Append(prior); err != nil {
		t.Fatalf("append: %v", err)
	}

	old, err := gate.Supersede("S1|P1", model.RulePerformanceGap)
	if err != nil {
		t.Fatalf("supersede: %v", err)
	}
	if old.Candidate.RuleApplied {
		t.Error("superseded decision should be inactive")
	}
	if !strings.Contains(old.Candidate.RuleReason, ReasonSuperseded) {
		t.Errorf("RuleReason = %q, should record supersession", old.Candidate.RuleReason)
	}

	// 改写后配对空出，规则12可以落地
	if err := ledger.Append(appliedDecision("S1", "P1", 15, model.RulePerformanceGap)); err != nil {
		t.Fatalf("append after supersede: %v", err)
	}
	source, claimed := ledger.ActiveSource("S1|P1")
	if !claimed || source != model.RulePerformanceGap {
		t.Errorf("ActiveSource = %v/%v, want performance_gap", source, claimed)
	}

	// 无生效裁决的配对不能改写
	if _, err := gate.Supersede("S9|P9", model.RulePerformanceGap); err == nil {
		t.Error("supersede of unclaimed pair should fail")
	}
}
