package model

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// RuleSource 规则来源
type RuleSource string

const (
	RuleMissingCategory       RuleSource = "missing_category"       // 规则7：品类缺失
	RuleImbalance             RuleSource = "imbalance"              // 规则8：结构失衡
	RuleBelowMinimum          RuleSource = "below_minimum"          // 规则9：低于最低陈列量
	RuleOvercapacityReduction RuleSource = "overcapacity_reduction" // 规则10：超容压缩
	RuleMissedOpportunity     RuleSource = "missed_opportunity"     // 规则11：错失机会
	RulePerformanceGap        RuleSource = "performance_gap"        // 规则12：业绩差距放量
)

// StageOrder 规则执行顺序（合并时"先到先得"依据此序）
var StageOrder = []RuleSource{
	RuleMissingCategory,
	RuleImbalance,
	RuleBelowMinimum,
	RuleOvercapacityReduction,
	RuleMissedOpportunity,
	RulePerformanceGap,
}

// StageIndex 返回规则在流水线中的序号，未知来源返回 -1
func StageIndex(source RuleSource) int {
	for i, s := range StageOrder {
		if s == source {
			return i
		}
	}
	return -1
}

// AllocationCandidate 铺货候选记录：一行对应一个 (门店, SPU) 的调整建议
type AllocationCandidate struct {
	StoreID     string `json:"storeId"`
	ProductID   string `json:"productId"`   // SPU 编码；子类级建议时为空
	CategoryKey string `json:"categoryKey"` // 无 SPU 标识时使用子类作为键
	ClusterID   string `json:"clusterId"`
	Subcategory string `json:"subcategory"`

	// 数量与金额
	CurrentQuantity   float64         `json:"currentQuantity"`
	TargetQuantity    float64         `json:"targetQuantity"`
	QuantityChange    float64         `json:"quantityChange"` // 有符号：正为加铺，负为压缩
	UnitPrice         decimal.Decimal `json:"unitPrice"`
	Investment        decimal.Decimal `json:"investment"` // 变更量 × 单价，符号与变更量一致

	// 溯源
	RuleSource        RuleSource `json:"ruleSource"`
	RuleApplied       bool       `json:"ruleApplied"`
	RuleReason        string     `json:"ruleReason"`
	BusinessRationale string     `json:"businessRationale"`

	// 后续规则消费的状态标记
	IncreasedByEarlyRules bool `json:"increasedByEarlyRules"` // 规则7-9是否已加铺
	ReducedByRule10       bool `json:"reducedByRule10"`       // 规则10是否已压缩
	BaselineGatePassed    bool `json:"baselineGatePassed"`
}

// PairKey 返回 (门店, 商品) 配对键；无 SPU 时退化为子类键
func (c *AllocationCandidate) PairKey() string {
	if c.ProductID != "" {
		return c.StoreID + "|" + c.ProductID
	}
	return c.StoreID + "|#" + c.CategoryKey
}

// IsIncrease 是否为加铺建议
func (c *AllocationCandidate) IsIncrease() bool {
	return c.RuleApplied && c.QuantityChange > 0
}

// IsReduction 是否为压缩建议
func (c *AllocationCandidate) IsReduction() bool {
	return c.RuleApplied && c.QuantityChange < 0
}

// RecalcInvestment 按当前变更量重算投入金额（金额走 decimal，不做浮点乘法）
func (c *AllocationCandidate) RecalcInvestment() {
	c.Investment = InvestmentFor(c.QuantityChange, c.UnitPrice)
}

// InvestmentFor 计算投入金额 = 变更量 × 单价，保留两位小数
func InvestmentFor(quantityChange float64, unitPrice decimal.Decimal) decimal.Decimal {
	return unitPrice.Mul(decimal.NewFromFloat(quantityChange)).Round(2)
}

// ValidationError 校验错误
type ValidationError struct {
	Field    string `json:"field"`
	Message  string `json:"message"`
	Severity string `json:"severity"` // error or warning
}

// Validate 校验候选记录
func (c *AllocationCandidate) Validate() []ValidationError {
	var errs []ValidationError

	if c.StoreID == "" {
		errs = append(errs, ValidationError{
			Field:    "storeId",
			Message:  "门店编码不能为空",
			Severity: "error",
		})
	}
	if c.ProductID == "" && c.CategoryKey == "" {
		errs = append(errs, ValidationError{
			Field:    "productId",
			Message:  "SPU 编码与子类键不能同时为空",
			Severity: "error",
		})
	}
	if c.CurrentQuantity < 0 {
		errs = append(errs, ValidationError{
			Field:    "currentQuantity",
			Message:  "当前库存量不能为负数",
			Severity: "error",
		})
	}
	if c.RuleApplied && c.QuantityChange < 0 && c.CurrentQuantity+c.QuantityChange < 0 {
		errs = append(errs, ValidationError{
			Field:    "quantityChange",
			Message:  "压缩量不能超过当前库存量",
			Severity: "error",
		})
	}
	if c.RuleApplied && StageIndex(c.RuleSource) < 0 {
		errs = append(errs, ValidationError{
			Field:    "ruleSource",
			Message:  fmt.Sprintf("未知的规则来源: %s", c.RuleSource),
			Severity: "error",
		})
	}

	return errs
}
