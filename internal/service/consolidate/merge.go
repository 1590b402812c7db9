package consolidate

import (
	"fmt"
	"sort"

	"github.com/shopspring/decimal"

	"github.com/dkyng11-25/Fast-Fish-sub010/internal/model"
)

// GateViolationError 两个阶段同时认领同一配对
// 门禁机制下结构上不可能发生，一旦出现即视为致命配置错误，附带双方完整溯源
type GateViolationError struct {
	PairKey string
	First   model.AllocationCandidate
	Second  model.AllocationCandidate
}

// Error 错误描述
func (e *GateViolationError) Error() string {
	return fmt.Sprintf("gate violation: pair %s claimed by both %s (%+.1f) and %s (%+.1f)",
		e.PairKey, e.First.RuleSource, e.First.QuantityChange, e.Second.RuleSource, e.Second.QuantityChange)
}

// merge 合并全部阶段的生效裁决，按配对去重
// 门禁保证一配对至多一条生效裁决；此处防御性复核，冲突即报错，绝不静默合并
// 返回的单价表供保底/对齐阶段缩放后重算投入金额
func merge(decisions []*model.RuleDecision) ([]model.ConsolidatedAllocation, map[string]decimal.Decimal, error) {
	byPair := make(map[string]*model.AllocationCandidate)
	prices := make(map[string]decimal.Decimal)
	order := make([]string, 0)

	for _, d := range decisions {
		if !d.Candidate.RuleApplied {
			continue
		}
		key := d.Candidate.PairKey()
		if first, ok := byPair[key]; ok {
			return nil, nil, &GateViolationError{
				PairKey: key,
				First:   *first,
				Second:  d.Candidate,
			}
		}
		c := d.Candidate
		byPair[key] = &c
		prices[key] = c.UnitPrice
		order = append(order, key)
	}

	sort.Strings(order)

	result := make([]model.ConsolidatedAllocation, 0, len(order))
	for _, key := range order {
		c := byPair[key]
		result = append(result, model.ConsolidatedAllocation{
			StoreID:           c.StoreID,
			ProductID:         c.ProductID,
			CategoryKey:       c.CategoryKey,
			ClusterID:         c.ClusterID,
			Subcategory:       c.Subcategory,
			QuantityChange:    c.QuantityChange,
			Investment:        c.Investment,
			RuleSource:        c.RuleSource,
			BusinessRationale: c.BusinessRationale,
		})
	}
	return result, prices, nil
}
