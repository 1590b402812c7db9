package pipeline

import (
	"context"
	"sort"

	"github.com/dkyng11-25/Fast-Fish-sub010/internal/model"
	"github.com/dkyng11-25/Fast-Fish-sub010/internal/service/store"
)

// StageInput 单个规则阶段的输入
// 阶段对事实数据与先前裁决均为只读；先前裁决只能经门禁访问
type StageInput struct {
	Stores []string // 通过整店保护检查的门店，已排序
	Facts  *store.MemoryStore
	Cfg    *model.PipelineConfig
	Gate   *Gate
	Ledger *Ledger
}

// Evaluator 规则评估器：消费当前事实与先前裁决，产出本阶段裁决
type Evaluator interface {
	Source() model.RuleSource
	Evaluate(ctx context.Context, in *StageInput) ([]*model.RuleDecision, error)
}

// OrderedEvaluators 按流水线固定顺序返回全部评估器
// 阶段顺序是正确性约束：后续阶段依赖门禁中先前阶段的完整结论
func OrderedEvaluators() []Evaluator {
	return []Evaluator{
		&MissingCategoryEvaluator{},
		&ImbalanceEvaluator{},
		&BelowMinimumEvaluator{},
		&OvercapacityEvaluator{},
		&MissedOpportunityEvaluator{},
		&PerformanceGapEvaluator{},
	}
}

// sortedProducts 聚类内商品的确定性遍历顺序
func sortedProducts(facts *store.MemoryStore, clusterID string) []string {
	products := facts.ProductsInCluster(clusterID)
	sort.Strings(products)
	return products
}

// peersOf 聚类内除自身外的门店
func peersOf(facts *store.MemoryStore, clusterID, storeID string) []string {
	stores := facts.StoresInCluster(clusterID)
	peers := make([]string, 0, len(stores))
	for _, s := range stores {
		if s != storeID {
			peers = append(peers, s)
		}
	}
	sort.Strings(peers)
	return peers
}
