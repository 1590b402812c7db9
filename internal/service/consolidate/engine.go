package consolidate

import (
	"context"

	"github.com/dkyng11-25/Fast-Fish-sub010/internal/logger"
	"github.com/dkyng11-25/Fast-Fish-sub010/internal/model"
)

// Output 合并引擎产出的三个视图
type Output struct {
	Detailed       []model.ConsolidatedAllocation
	StoreRollups   []model.StoreRollup
	ClusterRollups []model.ClusterSubcategoryRollup
}

// Engine 合并引擎：把六个阶段的裁决收敛为一份可执行铺货计划
// 流程固定为 合并去重 -> 门店保底 -> 家族占比对齐 -> 双视图汇总 -> 一致性自检
type Engine struct {
	cfg model.ConsolidationConfig
	log logger.Logger
}

// NewEngine 创建合并引擎
func NewEngine(cfg model.ConsolidationConfig, log logger.Logger) *Engine {
	if log == nil {
		log = logger.NewNop()
	}
	return &Engine{cfg: cfg, log: log}
}

// Consolidate 执行合并
// histSales 为 门店 -> 子类 -> 历史销售额，用于家族占比对齐
// 对同一份裁决重复执行产出相同结果
func (e *Engine) Consolidate(
	ctx context.Context,
	decisions []*model.RuleDecision,
	histSales map[string]map[string]float64,
	summary *model.BatchSummary,
) (*Output, error) {
	detailed, prices, err := merge(decisions)
	if err != nil {
		e.log.Errorf(ctx, "合并裁决失败: %v", err)
		return nil, err
	}
	e.log.Infof(ctx, "合并完成: %d 条生效建议", len(detailed))

	enforceFloor(detailed, prices, e.cfg.MinStoreVolumeFloor, summary)
	if n := len(summary.FloorViolations); n > 0 {
		e.log.Warnf(ctx, "%d 家门店无加铺候选，保底量未达成", n)
	}

	alignShares(detailed, prices, histSales, e.cfg.Families, e.cfg.ShareAlignmentTolerance)

	storeRollups := buildStoreRollups(detailed)
	clusterRollups := buildClusterRollups(detailed)

	if err := verifyConsistency(detailed, storeRollups, clusterRollups); err != nil {
		e.log.Errorf(ctx, "汇总一致性自检失败: %v", err)
		return nil, err
	}

	return &Output{
		Detailed:       detailed,
		StoreRollups:   storeRollups,
		ClusterRollups: clusterRollups,
	}, nil
}
