package parser

import "strings"

// SheetRecognizer 按表头关键列识别事实工作簿的 Sheet 类型
// 列名可有别名与顺序差异，识别只看关键列的命中率
type SheetRecognizer struct{}

// NewSheetRecognizer 创建识别器
func NewSheetRecognizer() *SheetRecognizer {
	return &SheetRecognizer{}
}

// 各类型的关键列，竖线分隔别名
var sheetSignatures = []struct {
	sheetType SheetType
	nameHints []string
	keyFields []string
}{
	{
		sheetType: SheetTypeCluster,
		nameHints: []string{"聚类", "分群"},
		keyFields: []string{"门店编码|门店代码", "聚类编码|聚类|分群编码"},
	},
	{
		sheetType: SheetTypeSalesFacts,
		nameHints: []string{"销售", "事实"},
		keyFields: []string{"门店编码|门店代码", "SPU编码|商品编码", "子类|品类子类", "当前库存|库存量", "销售额"},
	},
	{
		sheetType: SheetTypeProductInfo,
		nameHints: []string{"商品", "SPU"},
		keyFields: []string{"SPU编码|商品编码", "子类|品类子类", "目标性别|性别", "单价|吊牌价"},
	},
	{
		sheetType: SheetTypeProfiles,
		nameHints: []string{"画像", "客群"},
		keyFields: []string{"门店编码|门店代码", "女性占比|女客占比", "男性占比|男客占比"},
	},
}

// Recognize 识别 Sheet 类型，置信度 = 关键列命中率 + Sheet 名加成
func (r *SheetRecognizer) Recognize(sheetName string, columnNames []string) SheetRecognitionResult {
	normalized := make([]string, len(columnNames))
	for i, col := range columnNames {
		normalized[i] = NormalizeColumnName(col)
	}

	best := SheetRecognitionResult{SheetName: sheetName, SheetType: SheetTypeUnknown}
	for _, sig := range sheetSignatures {
		matched := 0
		for _, field := range sig.keyFields {
			if headerIndex(normalized, field) >= 0 {
				matched++
			}
		}
		confidence := float64(matched) / float64(len(sig.keyFields))
		for _, hint := range sig.nameHints {
			if strings.Contains(sheetName, hint) {
				confidence += 0.1
				break
			}
		}
		if confidence > best.Confidence {
			best.SheetType = sig.sheetType
			best.Confidence = confidence
		}
	}

	if best.Confidence < 0.6 {
		return SheetRecognitionResult{SheetName: sheetName, SheetType: SheetTypeUnknown, Confidence: best.Confidence}
	}
	return best
}
