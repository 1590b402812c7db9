package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// ConsolidatedAllocation 合并后的最终铺货建议，一行对应一个 (门店, SPU)
type ConsolidatedAllocation struct {
	StoreID           string          `json:"storeId"`
	ProductID         string          `json:"productId"`
	CategoryKey       string          `json:"categoryKey"`
	ClusterID         string          `json:"clusterId"`
	Subcategory       string          `json:"subcategory"`
	QuantityChange    float64         `json:"quantityChange"`
	Investment        decimal.Decimal `json:"investment"`
	RuleSource        RuleSource      `json:"ruleSource"`
	BusinessRationale string          `json:"businessRationale"`
}

// PairKey 配对键，与候选记录保持一致
func (a *ConsolidatedAllocation) PairKey() string {
	if a.ProductID != "" {
		return a.StoreID + "|" + a.ProductID
	}
	return a.StoreID + "|#" + a.CategoryKey
}

// StoreRollup 门店级汇总
type StoreRollup struct {
	StoreID             string          `json:"storeId"`
	TotalQuantityChange float64         `json:"totalQuantityChange"`
	TotalInvestment     decimal.Decimal `json:"totalInvestment"`
	ItemCount           int             `json:"itemCount"`
}

// ClusterSubcategoryRollup 聚类×子类汇总
type ClusterSubcategoryRollup struct {
	ClusterID           string          `json:"clusterId"`
	Subcategory         string          `json:"subcategory"`
	TotalQuantityChange float64         `json:"totalQuantityChange"`
	TotalInvestment     decimal.Decimal `json:"totalInvestment"`
	ItemCount           int             `json:"itemCount"`
}

// SkippedStore 被整店跳过的门店及原因
type SkippedStore struct {
	StoreID string `json:"storeId"`
	Reason  string `json:"reason"` // no-sales-guard / missing-clustering
}

// FloorViolation 保底量无法达成的门店
type FloorViolation struct {
	StoreID  string  `json:"storeId"`
	AddTotal float64 `json:"addTotal"`
	Floor    float64 `json:"floor"`
}

// BatchSummary 批次汇总：面向用户的失败与拦截统计，绝不静默丢数据
type BatchSummary struct {
	SkippedStores        []SkippedStore     `json:"skippedStores"`
	BlockedReductions    int                `json:"blockedReductions"`    // 规则10被门禁拦截的压缩数
	BlockedIncreases     int                `json:"blockedIncreases"`     // 规则11/12被门禁拦截的加铺数
	SupersededCandidates int                `json:"supersededCandidates"` // 被规则12改写的规则11候选数
	FloorViolations      []FloorViolation   `json:"floorViolations"`
	MissingStages        []RuleSource       `json:"missingStages"` // 本批次执行失败的阶段
	StageCounts          map[RuleSource]int `json:"stageCounts"`   // 各阶段生效建议数
}

// NewBatchSummary 创建批次汇总
func NewBatchSummary() *BatchSummary {
	return &BatchSummary{
		SkippedStores:   []SkippedStore{},
		FloorViolations: []FloorViolation{},
		MissingStages:   []RuleSource{},
		StageCounts:     make(map[RuleSource]int),
	}
}

// BatchResult 一次半月批次的完整产出
type BatchResult struct {
	BatchID   string    `json:"batchId"`
	Period    string    `json:"period"` // 半月期，如 2026-08A
	CreatedAt time.Time `json:"createdAt"`

	Detailed       []ConsolidatedAllocation   `json:"detailed"`
	StoreRollups   []StoreRollup              `json:"storeRollups"`
	ClusterRollups []ClusterSubcategoryRollup `json:"clusterRollups"`
	Summary        *BatchSummary              `json:"summary"`

	// 全量裁决轨迹（含被拦截/被改写的记录），供审计与导出
	Decisions []RuleDecision `json:"decisions,omitempty"`
}
