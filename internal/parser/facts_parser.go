package parser

import (
	"fmt"

	"github.com/shopspring/decimal"
	"github.com/xuri/excelize/v2"

	"github.com/dkyng11-25/Fast-Fish-sub010/internal/model"
)

// FactsParser 事实工作簿的行级解析器
// 坏行跳过并记录错误，不让单行脏数据拖垮整表
type FactsParser struct {
	file *excelize.File
}

// NewFactsParser 创建解析器
func NewFactsParser(file *excelize.File) *FactsParser {
	return &FactsParser{file: file}
}

// ParseClusterSheet 解析门店聚类表
func (p *FactsParser) ParseClusterSheet(sheetName string) ([]model.ClusterAssignment, []string, error) {
	rows, headers, err := p.sheetRows(sheetName)
	if err != nil {
		return nil, nil, err
	}

	storeIdx := headerIndex(headers, "门店编码|门店代码")
	clusterIdx := headerIndex(headers, "聚类编码|聚类|分群编码")
	if storeIdx < 0 || clusterIdx < 0 {
		return nil, nil, fmt.Errorf("sheet %s: missing required columns", sheetName)
	}

	result := make([]model.ClusterAssignment, 0, len(rows))
	rowErrors := make([]string, 0)
	for i, row := range rows {
		storeID := cell(row, storeIdx)
		clusterID := cell(row, clusterIdx)
		if storeID == "" || clusterID == "" {
			rowErrors = append(rowErrors, fmt.Sprintf("row %d: empty store or cluster id", i+2))
			continue
		}
		result = append(result, model.ClusterAssignment{StoreID: storeID, ClusterID: clusterID})
	}
	return result, rowErrors, nil
}

// ParseSalesSheet 解析销售事实表；售罄率留空记为缺失(-1)
func (p *FactsParser) ParseSalesSheet(sheetName string) ([]model.SalesFact, []string, error) {
	rows, headers, err := p.sheetRows(sheetName)
	if err != nil {
		return nil, nil, err
	}

	storeIdx := headerIndex(headers, "门店编码|门店代码")
	productIdx := headerIndex(headers, "SPU编码|商品编码")
	subcatIdx := headerIndex(headers, "子类|品类子类")
	currentIdx := headerIndex(headers, "当前库存|库存量")
	targetIdx := headerIndex(headers, "目标库存")
	salesIdx := headerIndex(headers, "销售额")
	sellThroughIdx := headerIndex(headers, "售罄率")
	if storeIdx < 0 || productIdx < 0 || subcatIdx < 0 || currentIdx < 0 || salesIdx < 0 {
		return nil, nil, fmt.Errorf("sheet %s: missing required columns", sheetName)
	}

	result := make([]model.SalesFact, 0, len(rows))
	rowErrors := make([]string, 0)
	for i, row := range rows {
		fact := model.SalesFact{
			StoreID:         cell(row, storeIdx),
			ProductID:       cell(row, productIdx),
			Subcategory:     cell(row, subcatIdx),
			SellThroughRate: -1,
		}
		if fact.StoreID == "" || fact.ProductID == "" || fact.Subcategory == "" {
			rowErrors = append(rowErrors, fmt.Sprintf("row %d: empty key column", i+2))
			continue
		}

		if v, ok, err := parseFloat(cell(row, currentIdx)); err != nil {
			rowErrors = append(rowErrors, fmt.Sprintf("row %d: invalid current quantity: %v", i+2, err))
			continue
		} else if ok {
			fact.CurrentQuantity = v
		}
		if v, ok, err := parseFloat(cell(row, targetIdx)); err != nil {
			rowErrors = append(rowErrors, fmt.Sprintf("row %d: invalid target quantity: %v", i+2, err))
			continue
		} else if ok {
			fact.TargetQuantity = v
		}
		if v, ok, err := parseFloat(cell(row, salesIdx)); err != nil {
			rowErrors = append(rowErrors, fmt.Sprintf("row %d: invalid sales amount: %v", i+2, err))
			continue
		} else if ok {
			fact.SalesAmount = v
		}
		if v, ok, err := parseFloat(cell(row, sellThroughIdx)); err != nil {
			rowErrors = append(rowErrors, fmt.Sprintf("row %d: invalid sell-through: %v", i+2, err))
			continue
		} else if ok {
			fact.SellThroughRate = v
		}

		result = append(result, fact)
	}
	return result, rowErrors, nil
}

// ParseProductSheet 解析商品信息表
func (p *FactsParser) ParseProductSheet(sheetName string) ([]model.ProductInfo, []string, error) {
	rows, headers, err := p.sheetRows(sheetName)
	if err != nil {
		return nil, nil, err
	}

	productIdx := headerIndex(headers, "SPU编码|商品编码")
	subcatIdx := headerIndex(headers, "子类|品类子类")
	genderIdx := headerIndex(headers, "目标性别|性别")
	priceIdx := headerIndex(headers, "单价|吊牌价")
	seasonIdx := headerIndex(headers, "季节说明|季节")
	if productIdx < 0 || subcatIdx < 0 || priceIdx < 0 {
		return nil, nil, fmt.Errorf("sheet %s: missing required columns", sheetName)
	}

	result := make([]model.ProductInfo, 0, len(rows))
	rowErrors := make([]string, 0)
	for i, row := range rows {
		info := model.ProductInfo{
			ProductID:    cell(row, productIdx),
			Subcategory:  cell(row, subcatIdx),
			TargetGender: parseGender(cell(row, genderIdx)),
			SeasonalNote: cell(row, seasonIdx),
		}
		if info.ProductID == "" || info.Subcategory == "" {
			rowErrors = append(rowErrors, fmt.Sprintf("row %d: empty key column", i+2))
			continue
		}

		priceRaw := cell(row, priceIdx)
		if priceRaw != "" {
			price, err := decimal.NewFromString(priceRaw)
			if err != nil {
				rowErrors = append(rowErrors, fmt.Sprintf("row %d: invalid unit price %q", i+2, priceRaw))
				continue
			}
			info.UnitPrice = price
		}

		result = append(result, info)
	}
	return result, rowErrors, nil
}

// ParseProfileSheet 解析门店画像表
func (p *FactsParser) ParseProfileSheet(sheetName string) ([]model.StoreProfile, []string, error) {
	rows, headers, err := p.sheetRows(sheetName)
	if err != nil {
		return nil, nil, err
	}

	storeIdx := headerIndex(headers, "门店编码|门店代码")
	femaleIdx := headerIndex(headers, "女性占比|女客占比")
	maleIdx := headerIndex(headers, "男性占比|男客占比")
	if storeIdx < 0 || femaleIdx < 0 || maleIdx < 0 {
		return nil, nil, fmt.Errorf("sheet %s: missing required columns", sheetName)
	}

	result := make([]model.StoreProfile, 0, len(rows))
	rowErrors := make([]string, 0)
	for i, row := range rows {
		storeID := cell(row, storeIdx)
		if storeID == "" {
			rowErrors = append(rowErrors, fmt.Sprintf("row %d: empty store id", i+2))
			continue
		}

		female, _, err := parseFloat(cell(row, femaleIdx))
		if err != nil {
			rowErrors = append(rowErrors, fmt.Sprintf("row %d: invalid female share: %v", i+2, err))
			continue
		}
		male, _, err := parseFloat(cell(row, maleIdx))
		if err != nil {
			rowErrors = append(rowErrors, fmt.Sprintf("row %d: invalid male share: %v", i+2, err))
			continue
		}

		result = append(result, model.StoreProfile{
			StoreID: storeID,
			GenderMix: map[model.Gender]float64{
				model.GenderFemale: female,
				model.GenderMale:   male,
			},
		})
	}
	return result, rowErrors, nil
}

// sheetRows 读取数据行与规范化表头
func (p *FactsParser) sheetRows(sheetName string) ([][]string, []string, error) {
	rows, err := p.file.GetRows(sheetName)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to read sheet %s: %w", sheetName, err)
	}
	if len(rows) < 1 {
		return nil, nil, fmt.Errorf("sheet %s is empty", sheetName)
	}

	headers := make([]string, len(rows[0]))
	for i, h := range rows[0] {
		headers[i] = NormalizeColumnName(h)
	}
	return rows[1:], headers, nil
}

// parseGender 性别文本解析，未知取中性
func parseGender(raw string) model.Gender {
	switch raw {
	case "女", "女性", "female":
		return model.GenderFemale
	case "男", "男性", "male":
		return model.GenderMale
	default:
		return model.GenderUnisex
	}
}
