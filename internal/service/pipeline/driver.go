package pipeline

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/dkyng11-25/Fast-Fish-sub010/internal/logger"
	"github.com/dkyng11-25/Fast-Fish-sub010/internal/model"
	"github.com/dkyng11-25/Fast-Fish-sub010/internal/service/consolidate"
	"github.com/dkyng11-25/Fast-Fish-sub010/internal/service/store"
)

// 整店跳过原因
const (
	SkipReasonNoSales           = "no-sales-guard"
	SkipReasonMissingClustering = "missing-clustering"
)

// Pipeline 批次流水线驱动器
// 按固定顺序执行六个规则阶段，单阶段失败不中断批次，只如实记入摘要
type Pipeline struct {
	facts *store.MemoryStore
	cfg   *model.PipelineConfig
	log   logger.Logger
}

// NewPipeline 创建流水线
func NewPipeline(facts *store.MemoryStore, cfg *model.PipelineConfig, log logger.Logger) *Pipeline {
	if cfg == nil {
		cfg = model.DefaultPipelineConfig()
	}
	if log == nil {
		log = logger.NewNop()
	}
	return &Pipeline{facts: facts, cfg: cfg, log: log}
}

// Run 执行一次半月批次，产出完整铺货计划与审计轨迹
func (p *Pipeline) Run(ctx context.Context, period string) (*model.BatchResult, error) {
	batchID := uuid.NewString()
	ctx = logger.WithBatchID(ctx, batchID)
	p.log.Infof(ctx, "批次开始: period=%s", period)

	summary := model.NewBatchSummary()
	stores := p.guardedStores(ctx, summary)
	if len(stores) == 0 {
		return nil, fmt.Errorf("batch %s: no store passed the store-level guards", batchID)
	}
	p.log.Infof(ctx, "整店保护检查: %d 家通过, %d 家跳过", len(stores), len(summary.SkippedStores))

	ledger := NewLedger()
	in := &StageInput{
		Stores: stores,
		Facts:  p.facts,
		Cfg:    p.cfg,
		Gate:   NewGate(ledger),
		Ledger: ledger,
	}

	for _, ev := range OrderedEvaluators() {
		stageCtx := logger.WithStage(ctx, string(ev.Source()))
		decisions, err := ev.Evaluate(stageCtx, in)
		if err != nil {
			// 单阶段失败降级为缺失阶段，后续阶段继续执行
			p.log.Errorf(stageCtx, "阶段执行失败: %v", err)
			summary.MissingStages = append(summary.MissingStages, ev.Source())
			continue
		}
		for _, d := range decisions {
			if err := ledger.Append(d); err != nil {
				// 同配对双重认领属于实现缺陷，整批终止
				return nil, fmt.Errorf("batch %s: %w", batchID, err)
			}
		}
		p.log.Infof(stageCtx, "阶段完成: %d 条裁决", len(decisions))
	}

	all := ledger.Decisions()
	tallySummary(all, summary)

	engine := consolidate.NewEngine(p.cfg.Consolidation, p.log)
	out, err := engine.Consolidate(ctx, all, p.historicalShares(stores), summary)
	if err != nil {
		return nil, fmt.Errorf("batch %s: %w", batchID, err)
	}

	decisions := make([]model.RuleDecision, len(all))
	for i, d := range all {
		decisions[i] = *d
	}

	p.log.Infof(ctx, "批次完成: %d 条明细, %d 家门店", len(out.Detailed), len(out.StoreRollups))
	return &model.BatchResult{
		BatchID:        batchID,
		Period:         period,
		CreatedAt:      time.Now(),
		Detailed:       out.Detailed,
		StoreRollups:   out.StoreRollups,
		ClusterRollups: out.ClusterRollups,
		Summary:        summary,
		Decisions:      decisions,
	}, nil
}

// guardedStores 整店保护：无销售数据或无聚类分配的门店整店跳过并记录原因
func (p *Pipeline) guardedStores(ctx context.Context, summary *model.BatchSummary) []string {
	seen := make(map[string]bool)
	candidates := make([]string, 0)
	for _, id := range p.facts.AllStores() {
		if !seen[id] {
			seen[id] = true
			candidates = append(candidates, id)
		}
	}
	for _, id := range p.facts.StoresWithFacts() {
		if !seen[id] {
			seen[id] = true
			candidates = append(candidates, id)
		}
	}
	sort.Strings(candidates)

	passed := make([]string, 0, len(candidates))
	for _, id := range candidates {
		if err := p.facts.GuardStore(id); err != nil {
			reason := SkipReasonNoSales
			if errors.Is(err, store.ErrMissingClustering) {
				reason = SkipReasonMissingClustering
			}
			summary.SkippedStores = append(summary.SkippedStores, model.SkippedStore{StoreID: id, Reason: reason})
			p.log.Warnf(ctx, "门店 %s 整店跳过: %v", id, err)
			continue
		}
		passed = append(passed, id)
	}
	return passed
}

// tallySummary 从裁决轨迹统计拦截/改写数与各阶段生效数
func tallySummary(decisions []*model.RuleDecision, summary *model.BatchSummary) {
	for _, d := range decisions {
		if d.Candidate.RuleApplied {
			summary.StageCounts[d.Candidate.RuleSource]++
			continue
		}
		switch {
		case strings.Contains(d.Candidate.RuleReason, ReasonSuperseded):
			summary.SupersededCandidates++
		case strings.Contains(d.Candidate.RuleReason, ReasonBlockedPriorIncrease):
			summary.BlockedReductions++
		case strings.Contains(d.Candidate.RuleReason, ReasonBlockedRule10Reduce):
			summary.BlockedIncreases++
		}
	}
}

// historicalShares 门店 -> 子类 -> 历史销售额，合并阶段做家族占比对齐用
func (p *Pipeline) historicalShares(stores []string) map[string]map[string]float64 {
	result := make(map[string]map[string]float64, len(stores))
	for _, storeID := range stores {
		bySubcat := make(map[string]float64)
		for _, f := range p.facts.FactsForStore(storeID) {
			if f.SalesAmount > 0 {
				bySubcat[f.Subcategory] += f.SalesAmount
			}
		}
		if len(bySubcat) > 0 {
			result[storeID] = bySubcat
		}
	}
	return result
}
