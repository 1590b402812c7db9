package model

import "github.com/shopspring/decimal"

// Gender 商品目标客群性别
type Gender string

const (
	GenderMale   Gender = "male"
	GenderFemale Gender = "female"
	GenderUnisex Gender = "unisex"
)

// ClusterAssignment 门店聚类分配（上游聚类算法产出，只读消费）
type ClusterAssignment struct {
	StoreID   string `json:"storeId"`
	ClusterID string `json:"clusterId"`
}

// SalesFact 门店商品销售/库存事实
type SalesFact struct {
	StoreID         string  `json:"storeId"`
	ProductID       string  `json:"productId"`
	Subcategory     string  `json:"subcategory"`
	CurrentQuantity float64 `json:"currentQuantity"`
	TargetQuantity  float64 `json:"targetQuantity"`
	SalesAmount     float64 `json:"salesAmount"`
	SellThroughRate float64 `json:"sellThroughRate"` // [0,1]，缺失时为 -1
}

// HasSellThrough 售罄率是否可用
func (f *SalesFact) HasSellThrough() bool {
	return f.SellThroughRate >= 0
}

// ProductInfo 商品主数据
type ProductInfo struct {
	ProductID    string          `json:"productId"`
	Subcategory  string          `json:"subcategory"`
	TargetGender Gender          `json:"targetGender"`
	UnitPrice    decimal.Decimal `json:"unitPrice"`
	SeasonalNote string          `json:"seasonalNote"` // 季节/天气说明，仅作解释文案，禁止参与打分
}

// StoreProfile 门店客群画像
type StoreProfile struct {
	StoreID   string             `json:"storeId"`
	GenderMix map[Gender]float64 `json:"genderMix"` // 各性别客群占比，和为 1
}

// AffinityFor 计算门店客群与商品目标性别的契合度 [0,1]
// 中性商品视为完全契合
func (p *StoreProfile) AffinityFor(target Gender) float64 {
	if target == GenderUnisex || target == "" {
		return 1.0
	}
	if p == nil || p.GenderMix == nil {
		return 0.5
	}
	share, ok := p.GenderMix[target]
	if !ok {
		return 0.5
	}
	if share < 0 {
		return 0
	}
	if share > 1 {
		return 1
	}
	return share
}

// MixDistance 两个客群画像的平均绝对偏差
func MixDistance(a, b map[Gender]float64) float64 {
	if len(a) == 0 || len(b) == 0 {
		return 0
	}
	keys := map[Gender]bool{}
	for g := range a {
		keys[g] = true
	}
	for g := range b {
		keys[g] = true
	}
	total := 0.0
	for g := range keys {
		diff := a[g] - b[g]
		if diff < 0 {
			diff = -diff
		}
		total += diff
	}
	return total / float64(len(keys))
}
