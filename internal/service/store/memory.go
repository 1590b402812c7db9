package store

import (
	"errors"
	"fmt"
	"sync"

	"github.com/shopspring/decimal"

	"github.com/dkyng11-25/Fast-Fish-sub010/internal/model"
)

// 整店保护触发的哨兵错误
var (
	ErrNoSalesData       = errors.New("store has no usable sales data")
	ErrMissingClustering = errors.New("store has no cluster assignment")
)

// MemoryStore 批次事实数据的内存存储
// 批次运行期间由流水线驱动器独占写入，各规则阶段只读消费
type MemoryStore struct {
	mu sync.RWMutex

	clusterByStore  map[string]string   // store -> cluster
	storesByCluster map[string][]string // cluster -> stores

	factsByStore map[string][]*model.SalesFact          // store -> facts
	factByPair   map[string]*model.SalesFact            // store|product -> fact
	products     map[string]*model.ProductInfo          // product -> info
	profiles     map[string]*model.StoreProfile         // store -> profile
	factsByProd  map[string]map[string]*model.SalesFact // product -> store -> fact
}

// NewMemoryStore 创建内存存储
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		clusterByStore:  make(map[string]string),
		storesByCluster: make(map[string][]string),
		factsByStore:    make(map[string][]*model.SalesFact),
		factByPair:      make(map[string]*model.SalesFact),
		products:        make(map[string]*model.ProductInfo),
		profiles:        make(map[string]*model.StoreProfile),
		factsByProd:     make(map[string]map[string]*model.SalesFact),
	}
}

// SetClusterAssignments 设置门店聚类分配
func (s *MemoryStore) SetClusterAssignments(assignments []model.ClusterAssignment) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.clusterByStore = make(map[string]string, len(assignments))
	s.storesByCluster = make(map[string][]string)
	for _, a := range assignments {
		s.clusterByStore[a.StoreID] = a.ClusterID
		s.storesByCluster[a.ClusterID] = append(s.storesByCluster[a.ClusterID], a.StoreID)
	}
}

// SetSalesFacts 设置销售事实
func (s *MemoryStore) SetSalesFacts(facts []model.SalesFact) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.factsByStore = make(map[string][]*model.SalesFact)
	s.factByPair = make(map[string]*model.SalesFact)
	s.factsByProd = make(map[string]map[string]*model.SalesFact)
	for i := range facts {
		f := facts[i]
		s.factsByStore[f.StoreID] = append(s.factsByStore[f.StoreID], &f)
		s.factByPair[f.StoreID+"|"+f.ProductID] = &f
		if s.factsByProd[f.ProductID] == nil {
			s.factsByProd[f.ProductID] = make(map[string]*model.SalesFact)
		}
		s.factsByProd[f.ProductID][f.StoreID] = &f
	}
}

// SetProducts 设置商品主数据
func (s *MemoryStore) SetProducts(products []model.ProductInfo) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.products = make(map[string]*model.ProductInfo, len(products))
	for i := range products {
		p := products[i]
		s.products[p.ProductID] = &p
	}
}

// SetProfiles 设置门店客群画像
func (s *MemoryStore) SetProfiles(profiles []model.StoreProfile) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.profiles = make(map[string]*model.StoreProfile, len(profiles))
	for i := range profiles {
		p := profiles[i]
		s.profiles[p.StoreID] = &p
	}
}

// ClusterID 查询门店所属聚类
func (s *MemoryStore) ClusterID(storeID string) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	clusterID, ok := s.clusterByStore[storeID]
	if !ok {
		return "", fmt.Errorf("store %s: %w", storeID, ErrMissingClustering)
	}
	return clusterID, nil
}

// GuardStore 整店保护检查：先查销售数据，再查聚类分配
func (s *MemoryStore) GuardStore(storeID string) error {
	if !s.HasSalesData(storeID) {
		return fmt.Errorf("store %s: %w", storeID, ErrNoSalesData)
	}
	if _, err := s.ClusterID(storeID); err != nil {
		return err
	}
	return nil
}

// StoresInCluster 查询聚类内全部门店
func (s *MemoryStore) StoresInCluster(clusterID string) []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	stores := s.storesByCluster[clusterID]
	result := make([]string, len(stores))
	copy(result, stores)
	return result
}

// AllStores 返回出现在聚类分配中的全部门店
func (s *MemoryStore) AllStores() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]string, 0, len(s.clusterByStore))
	for storeID := range s.clusterByStore {
		result = append(result, storeID)
	}
	return result
}

// FactsForStore 查询门店全部销售事实
func (s *MemoryStore) FactsForStore(storeID string) []*model.SalesFact {
	s.mu.RLock()
	defer s.mu.RUnlock()

	facts := s.factsByStore[storeID]
	result := make([]*model.SalesFact, len(facts))
	copy(result, facts)
	return result
}

// Fact 查询 (门店, 商品) 的销售事实
func (s *MemoryStore) Fact(storeID, productID string) (*model.SalesFact, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	f, ok := s.factByPair[storeID+"|"+productID]
	return f, ok
}

// ProductFactsInCluster 查询聚类内各门店对某商品的事实
func (s *MemoryStore) ProductFactsInCluster(clusterID, productID string) map[string]*model.SalesFact {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make(map[string]*model.SalesFact)
	byStore, ok := s.factsByProd[productID]
	if !ok {
		return result
	}
	for _, storeID := range s.storesByCluster[clusterID] {
		if f, ok := byStore[storeID]; ok {
			result[storeID] = f
		}
	}
	return result
}

// ProductsInCluster 聚类内至少被一家门店售卖的全部商品
func (s *MemoryStore) ProductsInCluster(clusterID string) []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	seen := make(map[string]bool)
	result := make([]string, 0)
	for _, storeID := range s.storesByCluster[clusterID] {
		for _, f := range s.factsByStore[storeID] {
			if !seen[f.ProductID] {
				seen[f.ProductID] = true
				result = append(result, f.ProductID)
			}
		}
	}
	return result
}

// Product 查询商品主数据
func (s *MemoryStore) Product(productID string) (*model.ProductInfo, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	p, ok := s.products[productID]
	return p, ok
}

// AvgUnitPriceForSubcategory 子类平均单价，用于子类级建议的投入估算
func (s *MemoryStore) AvgUnitPriceForSubcategory(subcategory string) decimal.Decimal {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sum := decimal.Zero
	count := 0
	for _, p := range s.products {
		if p.Subcategory == subcategory && p.UnitPrice.IsPositive() {
			sum = sum.Add(p.UnitPrice)
			count++
		}
	}
	if count == 0 {
		return decimal.Zero
	}
	return sum.Div(decimal.NewFromInt(int64(count))).Round(2)
}

// Profile 查询门店画像
func (s *MemoryStore) Profile(storeID string) (*model.StoreProfile, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	p, ok := s.profiles[storeID]
	return p, ok
}

// StoresWithFacts 出现在销售事实中的全部门店
func (s *MemoryStore) StoresWithFacts() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]string, 0, len(s.factsByStore))
	for storeID := range s.factsByStore {
		result = append(result, storeID)
	}
	return result
}

// HasSalesData 无销售数据保护：门店无任何事实或销售额全为零时整店跳过
func (s *MemoryStore) HasSalesData(storeID string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()

	facts := s.factsByStore[storeID]
	if len(facts) == 0 {
		return false
	}
	for _, f := range facts {
		if f.SalesAmount > 0 {
			return true
		}
	}
	return false
}

// StoreCount 门店数量
func (s *MemoryStore) StoreCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.clusterByStore)
}

// Clear 清空全部事实数据
func (s *MemoryStore) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.clusterByStore = make(map[string]string)
	s.storesByCluster = make(map[string][]string)
	s.factsByStore = make(map[string][]*model.SalesFact)
	s.factByPair = make(map[string]*model.SalesFact)
	s.products = make(map[string]*model.ProductInfo)
	s.profiles = make(map[string]*model.StoreProfile)
	s.factsByProd = make(map[string]map[string]*model.SalesFact)
}
