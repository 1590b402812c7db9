package exporter

import (
	"fmt"
	"sort"

	"github.com/xuri/excelize/v2"

	"github.com/dkyng11-25/Fast-Fish-sub010/internal/model"
)

const (
	sheetDetailed  = "铺货明细"
	sheetStores    = "门店汇总"
	sheetClusters  = "聚类子类汇总"
	sheetSummary   = "批次摘要"
	sheetDecisions = "裁决轨迹"
)

// 规则来源的报表文案
var ruleSourceLabels = map[model.RuleSource]string{
	model.RuleMissingCategory:       "规则7 品类缺失",
	model.RuleImbalance:             "规则8 结构失衡",
	model.RuleBelowMinimum:          "规则9 最低陈列量",
	model.RuleOvercapacityReduction: "规则10 超容压缩",
	model.RuleMissedOpportunity:     "规则11 错失机会",
	model.RulePerformanceGap:        "规则12 业绩差距放量",
}

func ruleLabel(source model.RuleSource) string {
	if label, ok := ruleSourceLabels[source]; ok {
		return label
	}
	return string(source)
}

// Exporter 批次报表导出器，从批次结果生成多 Sheet 工作簿
type Exporter struct{}

// NewExporter 创建导出器
func NewExporter() *Exporter {
	return &Exporter{}
}

// Export 生成批次报表
// 裁决轨迹含被拦截与被改写的记录，审计时与明细页对照
func (e *Exporter) Export(result *model.BatchResult) (*excelize.File, error) {
	if result == nil {
		return nil, fmt.Errorf("批次结果为空")
	}

	f := excelize.NewFile()
	headerStyle, err := newHeaderStyle(f)
	if err != nil {
		_ = f.Close()
		return nil, err
	}

	if err := e.writeDetailedSheet(f, headerStyle, result); err != nil {
		_ = f.Close()
		return nil, err
	}
	if err := e.writeStoreSheet(f, headerStyle, result.StoreRollups); err != nil {
		_ = f.Close()
		return nil, err
	}
	if err := e.writeClusterSheet(f, headerStyle, result.ClusterRollups); err != nil {
		_ = f.Close()
		return nil, err
	}
	if err := e.writeSummarySheet(f, headerStyle, result); err != nil {
		_ = f.Close()
		return nil, err
	}
	if err := e.writeDecisionsSheet(f, headerStyle, result.Decisions); err != nil {
		_ = f.Close()
		return nil, err
	}

	if idx, err := f.GetSheetIndex(sheetDetailed); err == nil {
		f.SetActiveSheet(idx)
	}
	return f, nil
}

// newHeaderStyle 表头样式：加粗、灰底、细边框
func newHeaderStyle(f *excelize.File) (int, error) {
	return f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true},
		Fill: excelize.Fill{Type: "pattern", Pattern: 1, Color: []string{"DDDDDD"}},
		Border: []excelize.Border{
			{Type: "left", Color: "999999", Style: 1},
			{Type: "right", Color: "999999", Style: 1},
			{Type: "top", Color: "999999", Style: 1},
			{Type: "bottom", Color: "999999", Style: 1},
		},
		Alignment: &excelize.Alignment{Horizontal: "center", Vertical: "center"},
	})
}

// newSheet 建表并写入带样式的表头
func newSheet(f *excelize.File, name string, headerStyle int, headers []string, colWidths []float64) error {
	if name == sheetDetailed {
		if err := f.SetSheetName("Sheet1", name); err != nil {
			return err
		}
	} else if _, err := f.NewSheet(name); err != nil {
		return err
	}

	row := make([]interface{}, len(headers))
	for i, h := range headers {
		row[i] = h
	}
	if err := f.SetSheetRow(name, "A1", &row); err != nil {
		return err
	}

	lastCol, err := excelize.ColumnNumberToName(len(headers))
	if err != nil {
		return err
	}
	if err := f.SetCellStyle(name, "A1", lastCol+"1", headerStyle); err != nil {
		return err
	}

	for i, width := range colWidths {
		col, err := excelize.ColumnNumberToName(i + 1)
		if err != nil {
			return err
		}
		if err := f.SetColWidth(name, col, col, width); err != nil {
			return err
		}
	}

	// 冻结表头行
	return f.SetPanes(name, &excelize.Panes{
		Freeze:      true,
		YSplit:      1,
		TopLeftCell: "A2",
		ActivePane:  "bottomLeft",
	})
}

func setRow(f *excelize.File, sheet string, rowNum int, values []interface{}) error {
	cellRef, err := excelize.CoordinatesToCellName(1, rowNum)
	if err != nil {
		return err
	}
	return f.SetSheetRow(sheet, cellRef, &values)
}

func (e *Exporter) writeDetailedSheet(f *excelize.File, headerStyle int, result *model.BatchResult) error {
	headers := []string{"门店编码", "SPU编码", "子类", "聚类编码", "数量调整", "投入金额", "规则来源", "业务理由"}
	widths := []float64{12, 14, 12, 12, 12, 14, 20, 50}
	if err := newSheet(f, sheetDetailed, headerStyle, headers, widths); err != nil {
		return fmt.Errorf("创建 %s 失败: %w", sheetDetailed, err)
	}

	for i, a := range result.Detailed {
		productID := a.ProductID
		if productID == "" {
			productID = "#" + a.CategoryKey
		}
		investment, _ := a.Investment.Float64()
		err := setRow(f, sheetDetailed, i+2, []interface{}{
			a.StoreID, productID, a.Subcategory, a.ClusterID,
			a.QuantityChange, investment, ruleLabel(a.RuleSource), a.BusinessRationale,
		})
		if err != nil {
			return fmt.Errorf("写入 %s 失败: %w", sheetDetailed, err)
		}
	}
	return nil
}

func (e *Exporter) writeStoreSheet(f *excelize.File, headerStyle int, rollups []model.StoreRollup) error {
	headers := []string{"门店编码", "数量调整合计", "投入金额合计", "建议条数"}
	widths := []float64{12, 14, 16, 12}
	if err := newSheet(f, sheetStores, headerStyle, headers, widths); err != nil {
		return fmt.Errorf("创建 %s 失败: %w", sheetStores, err)
	}

	for i, r := range rollups {
		investment, _ := r.TotalInvestment.Float64()
		err := setRow(f, sheetStores, i+2, []interface{}{
			r.StoreID, r.TotalQuantityChange, investment, r.ItemCount,
		})
		if err != nil {
			return fmt.Errorf("写入 %s 失败: %w", sheetStores, err)
		}
	}
	return nil
}

func (e *Exporter) writeClusterSheet(f *excelize.File, headerStyle int, rollups []model.ClusterSubcategoryRollup) error {
	headers := []string{"聚类编码", "子类", "数量调整合计", "投入金额合计", "建议条数"}
	widths := []float64{12, 12, 14, 16, 12}
	if err := newSheet(f, sheetClusters, headerStyle, headers, widths); err != nil {
		return fmt.Errorf("创建 %s 失败: %w", sheetClusters, err)
	}

	for i, r := range rollups {
		investment, _ := r.TotalInvestment.Float64()
		err := setRow(f, sheetClusters, i+2, []interface{}{
			r.ClusterID, r.Subcategory, r.TotalQuantityChange, investment, r.ItemCount,
		})
		if err != nil {
			return fmt.Errorf("写入 %s 失败: %w", sheetClusters, err)
		}
	}
	return nil
}

func (e *Exporter) writeSummarySheet(f *excelize.File, headerStyle int, result *model.BatchResult) error {
	headers := []string{"项目", "值"}
	widths := []float64{28, 40}
	if err := newSheet(f, sheetSummary, headerStyle, headers, widths); err != nil {
		return fmt.Errorf("创建 %s 失败: %w", sheetSummary, err)
	}

	rows := [][]interface{}{
		{"批次编号", result.BatchID},
		{"半月期", result.Period},
		{"生成时间", result.CreatedAt.Format("2006-01-02 15:04:05")},
		{"最终建议条数", len(result.Detailed)},
	}

	if s := result.Summary; s != nil {
		rows = append(rows,
			[]interface{}{"门禁拦截的压缩数", s.BlockedReductions},
			[]interface{}{"门禁拦截的加铺数", s.BlockedIncreases},
			[]interface{}{"被规则12改写的候选数", s.SupersededCandidates},
		)
		for _, stage := range model.StageOrder {
			if count, ok := s.StageCounts[stage]; ok {
				rows = append(rows, []interface{}{ruleLabel(stage) + " 生效数", count})
			}
		}
		for _, skipped := range s.SkippedStores {
			rows = append(rows, []interface{}{"跳过门店 " + skipped.StoreID, skipped.Reason})
		}
		for _, v := range s.FloorViolations {
			rows = append(rows, []interface{}{
				"保底量未达成 " + v.StoreID,
				fmt.Sprintf("加铺合计 %.1f, 保底 %.1f", v.AddTotal, v.Floor),
			})
		}
		if len(s.MissingStages) > 0 {
			names := make([]string, 0, len(s.MissingStages))
			for _, stage := range s.MissingStages {
				names = append(names, ruleLabel(stage))
			}
			sort.Strings(names)
			rows = append(rows, []interface{}{"执行失败的阶段", fmt.Sprintf("%v", names)})
		}
	}

	for i, row := range rows {
		if err := setRow(f, sheetSummary, i+2, row); err != nil {
			return fmt.Errorf("写入 %s 失败: %w", sheetSummary, err)
		}
	}
	return nil
}

func (e *Exporter) writeDecisionsSheet(f *excelize.File, headerStyle int, decisions []model.RuleDecision) error {
	headers := []string{"门店编码", "配对键", "规则来源", "是否生效", "数量调整", "裁决说明"}
	widths := []float64{12, 18, 20, 10, 12, 60}
	if err := newSheet(f, sheetDecisions, headerStyle, headers, widths); err != nil {
		return fmt.Errorf("创建 %s 失败: %w", sheetDecisions, err)
	}

	for i, d := range decisions {
		c := d.Candidate
		applied := "否"
		if c.RuleApplied {
			applied = "是"
		}
		err := setRow(f, sheetDecisions, i+2, []interface{}{
			c.StoreID, c.PairKey(), ruleLabel(c.RuleSource), applied, c.QuantityChange, c.RuleReason,
		})
		if err != nil {
			return fmt.Errorf("写入 %s 失败: %w", sheetDecisions, err)
		}
	}
	return nil
}
