package parser

import (
	"regexp"
	"strconv"
	"strings"
)

// NormalizeColumnName 规范化列名，去除空白与换行
func NormalizeColumnName(name string) string {
	name = strings.TrimSpace(name)
	name = strings.ReplaceAll(name, "\n", "")
	name = strings.ReplaceAll(name, "\r", "")
	name = strings.ReplaceAll(name, "\t", "")
	re := regexp.MustCompile(`\s+`)
	return re.ReplaceAllString(name, "")
}

// ContainsAny 检查字符串是否包含任意一个关键词
func ContainsAny(text string, keywords []string) bool {
	for _, kw := range keywords {
		if strings.Contains(text, kw) {
			return true
		}
	}
	return false
}

// headerIndex 按候选列名（竖线分隔多个别名）定位列下标，找不到返回 -1
func headerIndex(headers []string, pattern string) int {
	aliases := strings.Split(pattern, "|")
	for i, h := range headers {
		normalized := NormalizeColumnName(h)
		for _, alias := range aliases {
			if normalized == alias {
				return i
			}
		}
	}
	return -1
}

// cell 安全取行内单元格，越界返回空串
func cell(row []string, idx int) string {
	if idx < 0 || idx >= len(row) {
		return ""
	}
	return strings.TrimSpace(row[idx])
}

// parseFloat 解析数值单元格，容忍千分位与百分号
// 空单元格返回 (0, false, nil)
func parseFloat(raw string) (float64, bool, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return 0, false, nil
	}
	raw = strings.ReplaceAll(raw, ",", "")

	percent := strings.HasSuffix(raw, "%")
	if percent {
		raw = strings.TrimSuffix(raw, "%")
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, false, err
	}
	if percent {
		v /= 100
	}
	return v, true, nil
}
