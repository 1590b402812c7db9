package importer

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/dkyng11-25/Fast-Fish-sub010/internal/model"
	"github.com/dkyng11-25/Fast-Fish-sub010/internal/parser"
	facts "github.com/dkyng11-25/Fast-Fish-sub010/internal/service/store"
	"github.com/dkyng11-25/Fast-Fish-sub010/internal/store"
)

// Coordinator 事实工作簿导入协调器
// 四张事实表一次导入，整簿成功才替换内存事实，避免半新半旧
type Coordinator struct {
	facts      *facts.MemoryStore
	db         *store.Store // 可为 nil，此时不落导入日志
	recognizer *parser.SheetRecognizer
}

// NewCoordinator 创建导入协调器
func NewCoordinator(factStore *facts.MemoryStore, db *store.Store) *Coordinator {
	return &Coordinator{
		facts:      factStore,
		db:         db,
		recognizer: parser.NewSheetRecognizer(),
	}
}

// ImportOptions 导入选项
type ImportOptions struct {
	FilePath string
}

// ProgressEvent 进度事件
type ProgressEvent struct {
	Type      string      `json:"type"` // start/info/warning/sheet_start/sheet_done/done/error
	Message   string      `json:"message"`
	Data      interface{} `json:"data,omitempty"`
	Timestamp time.Time   `json:"timestamp"`
}

// importContext 单次导入的累积状态
type importContext struct {
	file     *excelize.File
	report   *parser.ImportReport
	progress chan ProgressEvent

	assignments []model.ClusterAssignment
	salesFacts  []model.SalesFact
	products    []model.ProductInfo
	profiles    []model.StoreProfile
}

// Import 执行导入，返回进度通道
func (c *Coordinator) Import(opts ImportOptions) <-chan ProgressEvent {
	progressChan := make(chan ProgressEvent, 100)
	go func() {
		defer close(progressChan)
		c.doImport(opts, progressChan)
	}()
	return progressChan
}

func (c *Coordinator) doImport(opts ImportOptions, progressChan chan ProgressEvent) {
	startTime := time.Now()
	filename := filepath.Base(opts.FilePath)

	c.send(progressChan, ProgressEvent{
		Type:      "start",
		Message:   "开始导入事实工作簿",
		Data:      map[string]string{"filename": filename},
		Timestamp: time.Now(),
	})

	var logID int64
	if c.db != nil {
		size := int64(0)
		if fi, err := os.Stat(opts.FilePath); err == nil {
			size = fi.Size()
		}
		if id, err := c.db.CreateImportLog(filename, opts.FilePath, size, ""); err == nil {
			logID = id
		}
	}

	file, err := excelize.OpenFile(opts.FilePath)
	if err != nil {
		c.send(progressChan, ProgressEvent{
			Type:      "error",
			Message:   fmt.Sprintf("打开文件失败: %v", err),
			Timestamp: time.Now(),
		})
		c.finishLog(logID, nil, "error", err.Error())
		return
	}
	defer file.Close()

	ctx := &importContext{
		file:     file,
		progress: progressChan,
		report: &parser.ImportReport{
			Filename: filename,
			Sheets:   []parser.ParseResult{},
		},
	}

	sheetList := file.GetSheetList()
	ctx.report.TotalSheets = len(sheetList)
	c.send(progressChan, ProgressEvent{
		Type:      "info",
		Message:   fmt.Sprintf("发现 %d 个 Sheet", len(sheetList)),
		Data:      map[string]interface{}{"total_sheets": len(sheetList)},
		Timestamp: time.Now(),
	})

	for _, sheetName := range sheetList {
		c.processSheet(ctx, sheetName)
	}

	// 销售事实是必需表，缺失则整次导入失败
	if len(ctx.salesFacts) == 0 {
		msg := "未找到可识别的销售事实表"
		c.send(progressChan, ProgressEvent{Type: "error", Message: msg, Timestamp: time.Now()})
		c.finishLog(logID, ctx.report, "error", msg)
		return
	}

	// 整簿替换，不与上一次导入的事实混用
	c.facts.SetClusterAssignments(ctx.assignments)
	c.facts.SetSalesFacts(ctx.salesFacts)
	c.facts.SetProducts(ctx.products)
	c.facts.SetProfiles(ctx.profiles)

	ctx.report.Duration = time.Since(startTime)
	c.finishLog(logID, ctx.report, "completed", "")

	c.send(progressChan, ProgressEvent{
		Type:      "done",
		Message:   "导入完成",
		Data:      ctx.report,
		Timestamp: time.Now(),
	})
}

// processSheet 识别并解析单个 Sheet
func (c *Coordinator) processSheet(ctx *importContext, sheetName string) {
	sheetStart := time.Now()

	c.send(ctx.progress, ProgressEvent{
		Type:      "sheet_start",
		Message:   fmt.Sprintf("正在解析 Sheet: %s", sheetName),
		Data:      map[string]string{"sheet_name": sheetName},
		Timestamp: time.Now(),
	})

	rows, err := ctx.file.GetRows(sheetName)
	if err != nil || len(rows) < 1 {
		c.record(ctx, parser.ParseResult{
			SheetName: sheetName,
			SheetType: parser.SheetTypeUnknown,
			Status:    "error",
			Errors:    []string{fmt.Sprintf("读取 Sheet 失败: %v", err)},
			Duration:  time.Since(sheetStart),
		})
		return
	}

	recognition := c.recognizer.Recognize(sheetName, rows[0])
	c.send(ctx.progress, ProgressEvent{
		Type:    "info",
		Message: fmt.Sprintf("Sheet \"%s\" 识别为: %s (置信度: %.2f)", sheetName, recognition.SheetType, recognition.Confidence),
		Data: map[string]interface{}{
			"sheet_name": sheetName,
			"sheet_type": recognition.SheetType,
			"confidence": recognition.Confidence,
		},
		Timestamp: time.Now(),
	})

	p := parser.NewFactsParser(ctx.file)
	var (
		imported  int
		rowErrors []string
		parseErr  error
	)

	switch recognition.SheetType {
	case parser.SheetTypeCluster:
		var records []model.ClusterAssignment
		records, rowErrors, parseErr = p.ParseClusterSheet(sheetName)
		ctx.assignments = append(ctx.assignments, records...)
		imported = len(records)
	case parser.SheetTypeSalesFacts:
		var records []model.SalesFact
		records, rowErrors, parseErr = p.ParseSalesSheet(sheetName)
		ctx.salesFacts = append(ctx.salesFacts, records...)
		imported = len(records)
	case parser.SheetTypeProductInfo:
		var records []model.ProductInfo
		records, rowErrors, parseErr = p.ParseProductSheet(sheetName)
		ctx.products = append(ctx.products, records...)
		imported = len(records)
	case parser.SheetTypeProfiles:
		var records []model.StoreProfile
		records, rowErrors, parseErr = p.ParseProfileSheet(sheetName)
		ctx.profiles = append(ctx.profiles, records...)
		imported = len(records)
	default:
		c.record(ctx, parser.ParseResult{
			SheetName: sheetName,
			SheetType: parser.SheetTypeUnknown,
			Status:    "skipped",
			Errors:    []string{"无法识别 Sheet 类型"},
			Duration:  time.Since(sheetStart),
		})
		c.send(ctx.progress, ProgressEvent{
			Type:      "warning",
			Message:   fmt.Sprintf("无法识别 Sheet: %s (置信度过低)", sheetName),
			Timestamp: time.Now(),
		})
		return
	}

	if parseErr != nil {
		c.record(ctx, parser.ParseResult{
			SheetName: sheetName,
			SheetType: recognition.SheetType,
			Status:    "error",
			Errors:    []string{parseErr.Error()},
			Duration:  time.Since(sheetStart),
		})
		return
	}

	c.record(ctx, parser.ParseResult{
		SheetName:    sheetName,
		SheetType:    recognition.SheetType,
		Status:       "imported",
		ImportedRows: imported,
		ErrorRows:    len(rowErrors),
		Errors:       rowErrors,
		Duration:     time.Since(sheetStart),
	})
	c.send(ctx.progress, ProgressEvent{
		Type:    "sheet_done",
		Message: fmt.Sprintf("Sheet \"%s\" 导入成功: %d 行, %d 行错误", sheetName, imported, len(rowErrors)),
		Data: map[string]interface{}{
			"sheet_name":    sheetName,
			"imported_rows": imported,
			"error_rows":    len(rowErrors),
		},
		Timestamp: time.Now(),
	})
}

// record 汇总 Sheet 处理结果
func (c *Coordinator) record(ctx *importContext, result parser.ParseResult) {
	ctx.report.Sheets = append(ctx.report.Sheets, result)
	switch result.Status {
	case "imported":
		ctx.report.ImportedSheets++
		ctx.report.ImportedRows += result.ImportedRows
	case "skipped":
		ctx.report.SkippedSheets++
	}
	ctx.report.ErrorRows += result.ErrorRows
	ctx.report.TotalRows += result.ImportedRows + result.ErrorRows
}

// finishLog 补全导入日志
func (c *Coordinator) finishLog(logID int64, report *parser.ImportReport, status, errMsg string) {
	if c.db == nil || logID == 0 {
		return
	}
	if report == nil {
		report = &parser.ImportReport{}
	}
	_ = c.db.UpdateImportLog(logID,
		report.TotalSheets, report.ImportedSheets, report.SkippedSheets,
		report.TotalRows, report.ImportedRows, report.ErrorRows,
		status, errMsg)
}

// send 发送进度事件，通道满时丢弃
func (c *Coordinator) send(ch chan ProgressEvent, event ProgressEvent) {
	select {
	case ch <- event:
	default:
	}
}
