package store

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/dkyng11-25/Fast-Fish-sub010/internal/model"
)

// BatchMeta 批次列表项
type BatchMeta struct {
	BatchID   string    `json:"batchId"`
	Period    string    `json:"period"`
	CreatedAt time.Time `json:"createdAt"`
	ItemCount int       `json:"itemCount"`
}

// SaveBatch 持久化一次批次产出，整批一个事务
func (s *Store) SaveBatch(result *model.BatchResult) error {
	summaryJSON, err := json.Marshal(result.Summary)
	if err != nil {
		return fmt.Errorf("failed to marshal summary: %w", err)
	}
	decisionsJSON, err := json.Marshal(result.Decisions)
	if err != nil {
		return fmt.Errorf("failed to marshal decisions: %w", err)
	}

	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec(`
		INSERT INTO batches (batch_id, period, created_at, summary_json, decisions_json)
		VALUES (?, ?, ?, ?, ?)
	`, result.BatchID, result.Period, result.CreatedAt, string(summaryJSON), string(decisionsJSON)); err != nil {
		return fmt.Errorf("failed to insert batch: %w", err)
	}

	allocStmt, err := tx.Prepare(`
		INSERT INTO allocations (
			batch_id, store_id, product_id, category_key, cluster_id, subcategory,
			quantity_change, investment, rule_source, business_rationale
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare allocation statement: %w", err)
	}
	defer allocStmt.Close()

	for _, a := range result.Detailed {
		if _, err := allocStmt.Exec(
			result.BatchID, a.StoreID, a.ProductID, a.CategoryKey, a.ClusterID, a.Subcategory,
			a.QuantityChange, a.Investment.String(), string(a.RuleSource), a.BusinessRationale,
		); err != nil {
			return fmt.Errorf("failed to insert allocation: %w", err)
		}
	}

	for _, r := range result.StoreRollups {
		if _, err := tx.Exec(`
			INSERT INTO store_rollups (batch_id, store_id, total_quantity_change, total_investment, item_count)
			VALUES (?, ?, ?, ?, ?)
		`, result.BatchID, r.StoreID, r.TotalQuantityChange, r.TotalInvestment.String(), r.ItemCount); err != nil {
			return fmt.Errorf("failed to insert store rollup: %w", err)
		}
	}

	for _, r := range result.ClusterRollups {
		if _, err := tx.Exec(`
			INSERT INTO cluster_rollups (batch_id, cluster_id, subcategory, total_quantity_change, total_investment, item_count)
			VALUES (?, ?, ?, ?, ?, ?)
		`, result.BatchID, r.ClusterID, r.Subcategory, r.TotalQuantityChange, r.TotalInvestment.String(), r.ItemCount); err != nil {
			return fmt.Errorf("failed to insert cluster rollup: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// ListBatches 按创建时间倒序返回批次列表
func (s *Store) ListBatches() ([]BatchMeta, error) {
	rows, err := s.db.Query(`
		SELECT b.batch_id, b.period, b.created_at,
		       (SELECT COUNT(*) FROM allocations a WHERE a.batch_id = b.batch_id)
		FROM batches b
		ORDER BY b.created_at DESC
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to list batches: %w", err)
	}
	defer rows.Close()

	result := make([]BatchMeta, 0)
	for rows.Next() {
		var m BatchMeta
		if err := rows.Scan(&m.BatchID, &m.Period, &m.CreatedAt, &m.ItemCount); err != nil {
			return nil, fmt.Errorf("failed to scan batch: %w", err)
		}
		result = append(result, m)
	}
	return result, rows.Err()
}

// GetBatch 读取完整批次，批次不存在时返回 sql.ErrNoRows
func (s *Store) GetBatch(batchID string) (*model.BatchResult, error) {
	result := &model.BatchResult{BatchID: batchID}

	var summaryJSON, decisionsJSON string
	err := s.db.QueryRow(`
		SELECT period, created_at, summary_json, decisions_json FROM batches WHERE batch_id = ?
	`, batchID).Scan(&result.Period, &result.CreatedAt, &summaryJSON, &decisionsJSON)
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(summaryJSON), &result.Summary); err != nil {
		return nil, fmt.Errorf("failed to unmarshal summary: %w", err)
	}
	if err := json.Unmarshal([]byte(decisionsJSON), &result.Decisions); err != nil {
		return nil, fmt.Errorf("failed to unmarshal decisions: %w", err)
	}

	if result.Detailed, err = s.batchAllocations(batchID); err != nil {
		return nil, err
	}
	if result.StoreRollups, err = s.batchStoreRollups(batchID); err != nil {
		return nil, err
	}
	if result.ClusterRollups, err = s.batchClusterRollups(batchID); err != nil {
		return nil, err
	}
	return result, nil
}

// DeleteBatch 删除批次及其全部明细
func (s *Store) DeleteBatch(batchID string) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	for _, table := range []string{"allocations", "store_rollups", "cluster_rollups", "batches"} {
		if _, err := tx.Exec(fmt.Sprintf("DELETE FROM %s WHERE batch_id = ?", table), batchID); err != nil {
			return fmt.Errorf("failed to delete from %s: %w", table, err)
		}
	}
	return tx.Commit()
}

func (s *Store) batchAllocations(batchID string) ([]model.ConsolidatedAllocation, error) {
	rows, err := s.db.Query(`
		SELECT store_id, product_id, category_key, cluster_id, subcategory,
		       quantity_change, investment, rule_source, business_rationale
		FROM allocations WHERE batch_id = ? ORDER BY id
	`, batchID)
	if err != nil {
		return nil, fmt.Errorf("failed to query allocations: %w", err)
	}
	defer rows.Close()

	result := make([]model.ConsolidatedAllocation, 0)
	for rows.Next() {
		var a model.ConsolidatedAllocation
		var investment, source string
		if err := rows.Scan(&a.StoreID, &a.ProductID, &a.CategoryKey, &a.ClusterID, &a.Subcategory,
			&a.QuantityChange, &investment, &source, &a.BusinessRationale); err != nil {
			return nil, fmt.Errorf("failed to scan allocation: %w", err)
		}
		if a.Investment, err = decimal.NewFromString(investment); err != nil {
			return nil, fmt.Errorf("invalid investment %q: %w", investment, err)
		}
		a.RuleSource = model.RuleSource(source)
		result = append(result, a)
	}
	return result, rows.Err()
}

func (s *Store) batchStoreRollups(batchID string) ([]model.StoreRollup, error) {
	rows, err := s.db.Query(`
		SELECT store_id, total_quantity_change, total_investment, item_count
		FROM store_rollups WHERE batch_id = ? ORDER BY store_id
	`, batchID)
	if err != nil {
		return nil, fmt.Errorf("failed to query store rollups: %w", err)
	}
	defer rows.Close()

	result := make([]model.StoreRollup, 0)
	for rows.Next() {
		var r model.StoreRollup
		var investment string
		if err := rows.Scan(&r.StoreID, &r.TotalQuantityChange, &investment, &r.ItemCount); err != nil {
			return nil, fmt.Errorf("failed to scan store rollup: %w", err)
		}
		if r.TotalInvestment, err = decimal.NewFromString(investment); err != nil {
			return nil, fmt.Errorf("invalid investment %q: %w", investment, err)
		}
		result = append(result, r)
	}
	return result, rows.Err()
}

func (s *Store) batchClusterRollups(batchID string) ([]model.ClusterSubcategoryRollup, error) {
	rows, err := s.db.Query(`
		SELECT cluster_id, subcategory, total_quantity_change, total_investment, item_count
		FROM cluster_rollups WHERE batch_id = ? ORDER BY cluster_id, subcategory
	`, batchID)
	if err != nil {
		return nil, fmt.Errorf("failed to query cluster rollups: %w", err)
	}
	defer rows.Close()

	result := make([]model.ClusterSubcategoryRollup, 0)
	for rows.Next() {
		var r model.ClusterSubcategoryRollup
		var investment string
		if err := rows.Scan(&r.ClusterID, &r.Subcategory, &r.TotalQuantityChange, &investment, &r.ItemCount); err != nil {
			return nil, fmt.Errorf("failed to scan cluster rollup: %w", err)
		}
		if r.TotalInvestment, err = decimal.NewFromString(investment); err != nil {
			return nil, fmt.Errorf("invalid investment %q: %w", investment, err)
		}
		result = append(result, r)
	}
	return result, rows.Err()
}
