package pipeline

import (
	"fmt"

	"github.com/dkyng11-25/Fast-Fish-sub010/internal/model"
)

// 门禁拦截与改写的固定话术，消费方按前缀统计
const (
	ReasonBlockedPriorIncrease = "BLOCKED: prior increase"
	ReasonBlockedRule10Reduce  = "BLOCKED: reduced by rule 10"
	ReasonSuperseded           = "superseded by performance-gap scaling"
)

// pairState 单个 (门店, 商品) 配对的累积状态
type pairState struct {
	activeIdx        int // 生效裁决在账本中的下标，-1 表示无
	activeSource     model.RuleSource
	increasedByEarly bool // 规则7-9已加铺
	increaseSource   model.RuleSource
	reducedByRule10  bool
}

// Ledger 裁决账本：按阶段顺序累积全部裁决，是跨阶段门禁的唯一事实来源
// 各阶段只能通过门禁读取先前阶段的结论，不允许直接翻看内部字段
type Ledger struct {
	decisions   []*model.RuleDecision
	pairs       map[string]*pairState
	eligibility map[string]model.EligibilityStatus // 规则7的准入判定
	subcatBoost map[string]bool                    // 规则9加铺过的 store|#subcat
}

// NewLedger 创建裁决账本
func NewLedger() *Ledger {
	return &Ledger{
		decisions:   make([]*model.RuleDecision, 0),
		pairs:       make(map[string]*pairState),
		eligibility: make(map[string]model.EligibilityStatus),
		subcatBoost: make(map[string]bool),
	}
}

// Decisions 返回全部裁决（含未生效记录），按追加顺序
func (l *Ledger) Decisions() []*model.RuleDecision {
	result := make([]*model.RuleDecision, len(l.decisions))
	copy(result, l.decisions)
	return result
}

// Append 追加一条裁决并维护配对状态
// 同一配对出现第二条生效裁决视为阶段实现缺陷，立即报错
func (l *Ledger) Append(d *model.RuleDecision) error {
	key := d.Candidate.PairKey()
	state, ok := l.pairs[key]
	if !ok {
		state = &pairState{activeIdx: -1}
		l.pairs[key] = state
	}

	if d.Candidate.RuleApplied {
		if state.activeIdx >= 0 {
			return fmt.Errorf("pair %s already claimed by %s, refusing silent overwrite by %s",
				key, state.activeSource, d.Candidate.RuleSource)
		}
		state.activeIdx = len(l.decisions)
		state.activeSource = d.Candidate.RuleSource

		switch {
		case d.Candidate.QuantityChange > 0 && isEarlyIncreaseStage(d.Candidate.RuleSource):
			state.increasedByEarly = true
			state.increaseSource = d.Candidate.RuleSource
			d.Candidate.IncreasedByEarlyRules = true
			if d.Candidate.RuleSource == model.RuleBelowMinimum {
				l.subcatBoost[d.Candidate.StoreID+"|#"+d.Candidate.Subcategory] = true
			}
		case d.Candidate.QuantityChange < 0 && d.Candidate.RuleSource == model.RuleOvercapacityReduction:
			state.reducedByRule10 = true
			d.Candidate.ReducedByRule10 = true
		}
	}

	l.decisions = append(l.decisions, d)
	return nil
}

// Supersede 通过门禁改写既有生效裁决：旧裁决转为未生效并保留轨迹
// 返回被改写的裁决；配对无生效裁决时报错
func (l *Ledger) Supersede(pairKey string, by model.RuleSource) (*model.RuleDecision, error) {
	state, ok := l.pairs[pairKey]
	if !ok || state.activeIdx < 0 {
		return nil, fmt.Errorf("pair %s has no active decision to supersede", pairKey)
	}

	old := l.decisions[state.activeIdx]
	old.Candidate.RuleApplied = false
	old.Candidate.RuleReason = old.Candidate.RuleReason + "; " + ReasonSuperseded

	// 配对状态回到无生效裁决；早期加铺/规则10压缩标记保持不变
	state.activeIdx = -1
	state.activeSource = ""

	return old, nil
}

// ActiveSource 查询配对当前生效裁决的来源
func (l *Ledger) ActiveSource(pairKey string) (model.RuleSource, bool) {
	state, ok := l.pairs[pairKey]
	if !ok || state.activeIdx < 0 {
		return "", false
	}
	return state.activeSource, true
}

// RecordEligibility 记录规则7对配对的准入判定
func (l *Ledger) RecordEligibility(pairKey string, status model.EligibilityStatus) {
	l.eligibility[pairKey] = status
}

// Eligibility 查询规则7准入判定，无记录返回 unknown
func (l *Ledger) Eligibility(pairKey string) model.EligibilityStatus {
	if status, ok := l.eligibility[pairKey]; ok {
		return status
	}
	return model.EligibilityUnknown
}

// isEarlyIncreaseStage 规则7-9属于早期加铺阶段
func isEarlyIncreaseStage(source model.RuleSource) bool {
	idx := model.StageIndex(source)
	return idx >= 0 && idx <= model.StageIndex(model.RuleBelowMinimum)
}

// Gate 跨阶段门禁：对账本的无状态策略视图
// 两条硬规则：早期加铺的配对不得被后续压缩；规则10压缩的配对不得被后续加铺
type Gate struct {
	ledger *Ledger
}

// NewGate 创建门禁
func NewGate(ledger *Ledger) *Gate {
	return &Gate{ledger: ledger}
}

// pairFlags 汇总配对在 SPU 级与子类级的保护标记
func (g *Gate) pairFlags(c *model.AllocationCandidate) (increased, reduced bool) {
	if state, ok := g.ledger.pairs[c.PairKey()]; ok {
		increased = increased || state.increasedByEarly
		reduced = reduced || state.reducedByRule10
	}
	// 子类级加铺同样保护子类下的 SPU
	if c.Subcategory != "" {
		if state, ok := g.ledger.pairs[c.StoreID+"|#"+c.Subcategory]; ok {
			increased = increased || state.increasedByEarly
		}
	}
	return increased, reduced
}

// CheckReduction 压缩准入：早期规则已加铺则无条件拦截，不论超容多大
func (g *Gate) CheckReduction(c *model.AllocationCandidate) model.GateResult {
	increased, reduced := g.pairFlags(c)
	result := model.GateResult{
		Passed:                true,
		Reason:                "no prior increase",
		IncreasedByEarlyRules: increased,
		ReducedByRule10:       reduced,
		Stage7Eligibility:     g.ledger.Eligibility(c.PairKey()),
	}
	if increased {
		result.Passed = false
		result.Reason = ReasonBlockedPriorIncrease
	}
	return result
}

// CheckIncrease 加铺准入：规则10已压缩则无条件拦截
func (g *Gate) CheckIncrease(c *model.AllocationCandidate) model.GateResult {
	increased, reduced := g.pairFlags(c)
	result := model.GateResult{
		Passed:                true,
		Reason:                "no rule 10 reduction",
		IncreasedByEarlyRules: increased,
		ReducedByRule10:       reduced,
		Stage7Eligibility:     g.ledger.Eligibility(c.PairKey()),
	}
	if reduced {
		result.Passed = false
		result.Reason = ReasonBlockedRule10Reduce
	}
	return result
}

// BaselineGate 规则11的硬准入：规则7判定为不合格则拒绝；规则10压缩过则拒绝
// 规则7无判定(unknown)按放行处理（fail-open，业务口径见 DESIGN.md）
func (g *Gate) BaselineGate(c *model.AllocationCandidate) model.GateResult {
	increased, reduced := g.pairFlags(c)
	eligibility := g.ledger.Eligibility(c.PairKey())

	result := model.GateResult{
		IncreasedByEarlyRules: increased,
		ReducedByRule10:       reduced,
		Stage7Eligibility:     eligibility,
	}

	switch {
	case eligibility == model.EligibilityIneligible:
		result.Passed = false
		result.Reason = "baseline gate failed: stage 7 ineligible"
	case reduced:
		result.Passed = false
		result.Reason = "baseline gate failed: " + ReasonBlockedRule10Reduce
	case eligibility == model.EligibilityUnknown:
		result.Passed = true
		result.Reason = "baseline gate passed: stage 7 unknown (fail-open)"
	default:
		result.Passed = true
		result.Reason = "baseline gate passed"
	}
	return result
}

// Stage9Boosted 查询规则9是否已对 (门店, 子类) 加铺
func (g *Gate) Stage9Boosted(storeID, subcategory string) bool {
	return g.ledger.subcatBoost[storeID+"|#"+subcategory]
}

// Supersede 经门禁改写配对的生效裁决；这是阶段间替换建议量的唯一合法途径
func (g *Gate) Supersede(pairKey string, by model.RuleSource) (*model.RuleDecision, error) {
	return g.ledger.Supersede(pairKey, by)
}
