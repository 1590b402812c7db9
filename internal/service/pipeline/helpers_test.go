package pipeline

import (
	"github.com/dkyng11-25/Fast-Fish-sub010/internal/model"
	"github.com/dkyng11-25/Fast-Fish-sub010/internal/service/store"
)

// newStageInput 构造评估器输入，门禁与账本全新
func newStageInput(facts *store.MemoryStore, stores []string) *StageInput {
	ledger := NewLedger()
	return &StageInput{
		Stores: stores,
		Facts:  facts,
		Cfg:    model.DefaultPipelineConfig(),
		Gate:   NewGate(ledger),
		Ledger: ledger,
	}
}

// assignCluster 把一组门店分到同一聚类
func assignCluster(facts *store.MemoryStore, clusterID string, storeIDs ...string) {
	assignments := make([]model.ClusterAssignment, 0, len(storeIDs))
	for _, id := range storeIDs {
		assignments = append(assignments, model.ClusterAssignment{StoreID: id, ClusterID: clusterID})
	}
	facts.SetClusterAssignments(assignments)
}
