package model

// PipelineConfig 六条规则与合并阶段的全部业务阈值
// 显式传入每个评估器，评估器内不允许出现硬编码业务常量
type PipelineConfig struct {
	MissingCategory   MissingCategoryConfig   `json:"missingCategory" toml:"missing_category"`
	Imbalance         ImbalanceConfig         `json:"imbalance" toml:"imbalance"`
	BelowMinimum      BelowMinimumConfig      `json:"belowMinimum" toml:"below_minimum"`
	Overcapacity      OvercapacityConfig      `json:"overcapacity" toml:"overcapacity"`
	MissedOpportunity MissedOpportunityConfig `json:"missedOpportunity" toml:"missed_opportunity"`
	PerformanceGap    PerformanceGapConfig    `json:"performanceGap" toml:"performance_gap"`
	Consolidation     ConsolidationConfig     `json:"consolidation" toml:"consolidation"`
}

// MissingCategoryConfig 规则7阈值
type MissingCategoryConfig struct {
	PeerAdoptionThreshold   float64 `json:"peerAdoptionThreshold" toml:"peer_adoption_threshold" validate:"gte=0,lte=1"`     // 同群售卖门店占比下限
	MinPredictedSellThrough float64 `json:"minPredictedSellThrough" toml:"min_predicted_sell_through" validate:"gte=0,lte=1"` // 预测售罄率下限
}

// ImbalanceConfig 规则8阈值
type ImbalanceConfig struct {
	DeviationThreshold float64 `json:"deviationThreshold" toml:"deviation_threshold" validate:"gt=0,lte=1"` // 子类占比偏离阈值
	RebalanceFraction  float64 `json:"rebalanceFraction" toml:"rebalance_fraction" validate:"gt=0,lte=1"`   // 单批次回补缺口比例
}

// BelowMinimumConfig 规则9阈值
type BelowMinimumConfig struct {
	MinViableQuantity float64 `json:"minViableQuantity" toml:"min_viable_quantity" validate:"gt=0"` // 子类最低可售陈列量
}

// OvercapacityConfig 规则10阈值
type OvercapacityConfig struct {
	MaxReductionPct     float64  `json:"maxReductionPct" toml:"max_reduction_pct" validate:"gt=0,lte=1"`           // 压缩量占当前库存上限
	CoreMaxReductionPct float64  `json:"coreMaxReductionPct" toml:"core_max_reduction_pct" validate:"gte=0,lte=1"` // 核心子类的收紧上限
	CoreSubcategories   []string `json:"coreSubcategories" toml:"core_subcategories"`                              // 受保护的核心子类
	PeerMedianPct       float64  `json:"peerMedianPct" toml:"peer_median_pct" validate:"gt=0"`                     // 压缩量占同群中位库存上限
	AbsoluteMaxUnits    float64  `json:"absoluteMaxUnits" toml:"absolute_max_units" validate:"gt=0"`               // 单条压缩绝对上限
}

// MissedOpportunityConfig 规则11阈值
type MissedOpportunityConfig struct {
	PeerAdoptionThreshold float64 `json:"peerAdoptionThreshold" toml:"peer_adoption_threshold" validate:"gte=0,lte=1"`
	ConsistencyThreshold  float64 `json:"consistencyThreshold" toml:"consistency_threshold" validate:"gte=0,lte=1"` // 客群偏差起罚点
	MaxConsistencyPenalty float64 `json:"maxConsistencyPenalty" toml:"max_consistency_penalty" validate:"gte=0"`
	HighAffinity          float64 `json:"highAffinity" toml:"high_affinity" validate:"gte=0,lte=1"` // 契合度高档下限
	LowAffinity           float64 `json:"lowAffinity" toml:"low_affinity" validate:"gte=0,lte=1"`   // 契合度低档上限
	HighTierThreshold     float64 `json:"highTierThreshold" toml:"high_tier_threshold" validate:"gt=0"`
	MediumTierThreshold   float64 `json:"mediumTierThreshold" toml:"medium_tier_threshold" validate:"gt=0"`
	TopPeerCount          int     `json:"topPeerCount" toml:"top_peer_count" validate:"gte=1"` // 一致性对比取前 N 名门店

	// 分层得分权重，售罄率缺失时其权重按比例摊回其余三项
	OpportunityWeight float64 `json:"opportunityWeight" toml:"opportunity_weight" validate:"gt=0"`
	AdoptionWeight    float64 `json:"adoptionWeight" toml:"adoption_weight" validate:"gt=0"`
	AffinityWeight    float64 `json:"affinityWeight" toml:"affinity_weight" validate:"gt=0"`
	SellThroughWeight float64 `json:"sellThroughWeight" toml:"sell_through_weight" validate:"gt=0"`
}

// PerformanceGapConfig 规则12阈值
type PerformanceGapConfig struct {
	BaseScalingFactor float64 `json:"baseScalingFactor" toml:"base_scaling_factor" validate:"gt=0"`
	Stage9Dampener    float64 `json:"stage9Dampener" toml:"stage9_dampener" validate:"gt=0,lte=1"` // 规则9已加铺时的衰减系数
	CurrentPct        float64 `json:"currentPct" toml:"current_pct" validate:"gt=0"`               // 加量占当前库存上限
	ClusterMedianPct  float64 `json:"clusterMedianPct" toml:"cluster_median_pct" validate:"gt=0"`  // 加量占同群中位库存上限
	AbsoluteMaxUnits  float64 `json:"absoluteMaxUnits" toml:"absolute_max_units" validate:"gt=0"`
	MinScaledQuantity float64 `json:"minScaledQuantity" toml:"min_scaled_quantity" validate:"gt=0"` // 低于此量整条放弃
}

// ConsolidationConfig 合并阶段阈值
type ConsolidationConfig struct {
	MinStoreVolumeFloor     float64             `json:"minStoreVolumeFloor" toml:"min_store_volume_floor" validate:"gte=0"`          // 门店加铺保底量
	ShareAlignmentTolerance float64             `json:"shareAlignmentTolerance" toml:"share_alignment_tolerance" validate:"gt=0,lte=1"` // 家族占比允许偏差
	Families                map[string][]string `json:"families" toml:"families"`                                                    // 家族名 -> 成员子类
}

// DefaultPipelineConfig 默认阈值
func DefaultPipelineConfig() *PipelineConfig {
	return &PipelineConfig{
		MissingCategory: MissingCategoryConfig{
			PeerAdoptionThreshold:   0.6,
			MinPredictedSellThrough: 0.35,
		},
		Imbalance: ImbalanceConfig{
			DeviationThreshold: 0.12,
			RebalanceFraction:  0.5,
		},
		BelowMinimum: BelowMinimumConfig{
			MinViableQuantity: 3,
		},
		Overcapacity: OvercapacityConfig{
			MaxReductionPct:     0.3,
			CoreMaxReductionPct: 0.15,
			CoreSubcategories:   []string{"基础打底", "经典牛仔"},
			PeerMedianPct:       0.5,
			AbsoluteMaxUnits:    50,
		},
		MissedOpportunity: MissedOpportunityConfig{
			PeerAdoptionThreshold: 0.5,
			ConsistencyThreshold:  0.15,
			MaxConsistencyPenalty: 0.3,
			HighAffinity:          0.7,
			LowAffinity:           0.3,
			HighTierThreshold:     0.65,
			MediumTierThreshold:   0.45,
			TopPeerCount:          3,
			OpportunityWeight:     0.35,
			AdoptionWeight:        0.25,
			AffinityWeight:        0.2,
			SellThroughWeight:     0.2,
		},
		PerformanceGap: PerformanceGapConfig{
			BaseScalingFactor: 0.1,
			Stage9Dampener:    0.5,
			CurrentPct:        0.4,
			ClusterMedianPct:  0.6,
			AbsoluteMaxUnits:  30,
			MinScaledQuantity: 1,
		},
		Consolidation: ConsolidationConfig{
			MinStoreVolumeFloor:     10,
			ShareAlignmentTolerance: 0.15,
			Families:                map[string][]string{},
		},
	}
}

// IsCoreSubcategory 判断子类是否在核心保护名单内
func (c *OvercapacityConfig) IsCoreSubcategory(subcategory string) bool {
	for _, s := range c.CoreSubcategories {
		if s == subcategory {
			return true
		}
	}
	return false
}
