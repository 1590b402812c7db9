package model

// OpportunityTier 机会置信分层
type OpportunityTier string

const (
	TierHigh        OpportunityTier = "high"
	TierMedium      OpportunityTier = "medium"
	TierExploratory OpportunityTier = "exploratory"
)

// AffinityLevel 客群契合度档位
type AffinityLevel string

const (
	AffinityHigh   AffinityLevel = "high"
	AffinityMedium AffinityLevel = "medium"
	AffinityLow    AffinityLevel = "low"
)

// EligibilityStatus 规则7的准入状态
type EligibilityStatus string

const (
	EligibilityEligible   EligibilityStatus = "eligible"
	EligibilityIneligible EligibilityStatus = "ineligible"
	EligibilityUnknown    EligibilityStatus = "unknown"
)

// RuleDecision 规则裁决：候选记录外加所属阶段的扩展字段
type RuleDecision struct {
	Candidate AllocationCandidate `json:"candidate"`

	// 仅对应阶段填充其一
	Overcapacity *OvercapacityDetail `json:"overcapacity,omitempty"`
	Opportunity  *OpportunityDetail  `json:"opportunity,omitempty"`
	Scaling      *ScalingDetail      `json:"scaling,omitempty"`
}

// OvercapacityDetail 规则10扩展字段
type OvercapacityDetail struct {
	ExcessQuantity       float64 `json:"excessQuantity"`       // 超容量 = 当前 - 目标
	MaxReduction         float64 `json:"maxReduction"`         // 比例上限约束前的可压缩量
	ConstrainedReduction float64 `json:"constrainedReduction"` // 三重安全上限后的实际压缩量
	IsCoreSubcategory    bool    `json:"isCoreSubcategory"`
	CapApplied           string  `json:"capApplied"` // 生效的上限标识
}

// OpportunityDetail 规则11扩展字段
type OpportunityDetail struct {
	OpportunityScore   float64           `json:"opportunityScore"`
	PeerAdoptionRate   float64           `json:"peerAdoptionRate"`
	AffinityScore      float64           `json:"affinityScore"`
	Affinity           AffinityLevel     `json:"affinity"`
	ConsistencyPenalty float64           `json:"consistencyPenalty"`
	TierScore          float64           `json:"tierScore"`
	Tier               OpportunityTier   `json:"tier"`
	BaselineGateReason string            `json:"baselineGateReason"`
	Stage7Eligibility  EligibilityStatus `json:"stage7Eligibility"`
}

// ScalingDetail 规则12扩展字段
type ScalingDetail struct {
	PerformanceGap   float64 `json:"performanceGap"` // P75 - 门店销售
	BaseScaled       float64 `json:"baseScaled"`
	AffinityModifier float64 `json:"affinityModifier"` // [0.5, 1.3]
	Dampened         bool    `json:"dampened"`         // 规则9已加铺时打五折
	CappedQuantity   float64 `json:"cappedQuantity"`
	CapApplied       string  `json:"capApplied"`
}

// GateResult 跨阶段门禁裁决，每次评估即算即用，不落盘
type GateResult struct {
	Passed bool   `json:"passed"`
	Reason string `json:"reason"`

	// 裁决依据的标记
	IncreasedByEarlyRules bool              `json:"increasedByEarlyRules"`
	ReducedByRule10       bool              `json:"reducedByRule10"`
	Stage7Eligibility     EligibilityStatus `json:"stage7Eligibility"`
}
