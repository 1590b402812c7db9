package pipeline

import (
	"context"
	"fmt"
	"sort"

	"github.com/shopspring/decimal"

	"github.com/dkyng11-25/Fast-Fish-sub010/internal/model"
)

// 契合度对分层得分的调节系数（业务口径固定，非阈值）
const (
	highAffinityBoost = 1.1
	lowAffinityDamp   = 0.9
)

// MissedOpportunityEvaluator 规则11：错失机会
// 三段式判定：基线门禁（硬准入）→ 契合度打分（软修饰）→ 置信分层
// 契合度与一致性罚分只影响置信标签，契约上禁止改变建议量
// 季节/天气信息只进入解释文案，禁止参与打分
type MissedOpportunityEvaluator struct{}

// Source 规则来源
func (e *MissedOpportunityEvaluator) Source() model.RuleSource {
	return model.RuleMissedOpportunity
}

// opportunityInput 单个候选 SPU 的中间量
type opportunityInput struct {
	productID     string
	adoption      float64
	peerMeanSales float64
	peerMedianQty float64
	sellThrough   float64
	hasSellThru   bool
}

// Evaluate 逐店挖掘错失机会
func (e *MissedOpportunityEvaluator) Evaluate(ctx context.Context, in *StageInput) ([]*model.RuleDecision, error) {
	cfg := in.Cfg.MissedOpportunity
	decisions := make([]*model.RuleDecision, 0)

	for _, storeID := range in.Stores {
		clusterID, err := in.Facts.ClusterID(storeID)
		if err != nil {
			continue
		}
		peers := peersOf(in.Facts, clusterID, storeID)
		if len(peers) == 0 {
			continue
		}

		penalty := e.consistencyPenalty(in, storeID, peers, cfg)
		inputs := e.collectCandidates(in, storeID, clusterID, peers, cfg)

		// 机会分以本店候选集内的峰值销售归一
		maxPeerSales := 0.0
		for _, c := range inputs {
			if c.peerMeanSales > maxPeerSales {
				maxPeerSales = c.peerMeanSales
			}
		}

		profile, _ := in.Facts.Profile(storeID)

		for _, input := range inputs {
			candidate := model.AllocationCandidate{
				StoreID:    storeID,
				ProductID:  input.productID,
				ClusterID:  clusterID,
				RuleSource: model.RuleMissedOpportunity,
				UnitPrice:  decimal.Zero,
			}
			product, hasProduct := in.Facts.Product(input.productID)
			if hasProduct {
				candidate.Subcategory = product.Subcategory
				candidate.UnitPrice = product.UnitPrice
			}

			if _, claimed := in.Ledger.ActiveSource(candidate.PairKey()); claimed {
				continue
			}

			// 基线门禁是布尔硬准入，不是打分项：不通过即整条出局
			gateResult := in.Gate.BaselineGate(&candidate)
			detail := &model.OpportunityDetail{
				PeerAdoptionRate:   input.adoption,
				BaselineGateReason: gateResult.Reason,
				Stage7Eligibility:  gateResult.Stage7Eligibility,
			}
			if !gateResult.Passed {
				candidate.RuleReason = gateResult.Reason
				decisions = append(decisions, &model.RuleDecision{
					Candidate:   candidate,
					Opportunity: detail,
				})
				continue
			}
			candidate.BaselineGatePassed = true

			// 契合度：门店客群与商品目标性别的匹配，仅作置信修饰
			affinity := 0.5
			if hasProduct {
				affinity = profile.AffinityFor(product.TargetGender)
			}
			detail.AffinityScore = affinity
			detail.Affinity = affinityLevel(affinity, cfg)
			detail.ConsistencyPenalty = penalty

			opportunityScore := 0.0
			if maxPeerSales > 0 {
				opportunityScore = input.peerMeanSales / maxPeerSales
			}
			detail.OpportunityScore = opportunityScore

			detail.TierScore = e.tierScore(opportunityScore, input, affinity, penalty, cfg)
			detail.Tier = tierFor(detail.TierScore, cfg)

			candidate.RuleApplied = true
			candidate.QuantityChange = input.peerMedianQty
			candidate.RecalcInvestment()
			candidate.RuleReason = fmt.Sprintf("missed opportunity tier=%s score=%.2f adoption=%.2f", detail.Tier, detail.TierScore, input.adoption)
			candidate.BusinessRationale = fmt.Sprintf("同群 %.0f%% 门店在售且表现良好，本店未铺货；置信分层：%s",
				input.adoption*100, tierLabel(detail.Tier))
			if hasProduct && product.SeasonalNote != "" {
				// 仅解释，不参与打分
				candidate.BusinessRationale += "（" + product.SeasonalNote + "）"
			}

			decisions = append(decisions, &model.RuleDecision{
				Candidate:   candidate,
				Opportunity: detail,
			})
		}
	}

	return decisions, nil
}

// collectCandidates 收集本店的机会候选：同群采纳率达标且本店无货无销
func (e *MissedOpportunityEvaluator) collectCandidates(in *StageInput, storeID, clusterID string, peers []string, cfg model.MissedOpportunityConfig) []opportunityInput {
	inputs := make([]opportunityInput, 0)

	for _, productID := range sortedProducts(in.Facts, clusterID) {
		clusterFacts := in.Facts.ProductFactsInCluster(clusterID, productID)

		if f, ok := clusterFacts[storeID]; ok && (f.CurrentQuantity > 0 || f.SalesAmount > 0) {
			continue
		}

		stockedQty := make([]float64, 0, len(peers))
		sales := make([]float64, 0, len(peers))
		sellThroughs := make([]float64, 0, len(peers))
		for _, peerID := range peers {
			f, ok := clusterFacts[peerID]
			if !ok || f.CurrentQuantity <= 0 {
				continue
			}
			stockedQty = append(stockedQty, f.CurrentQuantity)
			sales = append(sales, f.SalesAmount)
			if f.HasSellThrough() {
				sellThroughs = append(sellThroughs, f.SellThroughRate)
			}
		}

		adoption := float64(len(stockedQty)) / float64(len(peers))
		if adoption < cfg.PeerAdoptionThreshold {
			continue
		}
		quantity := median(stockedQty)
		if quantity <= 0 {
			continue
		}

		input := opportunityInput{
			productID:     productID,
			adoption:      adoption,
			peerMeanSales: mean(sales),
			peerMedianQty: quantity,
		}
		if len(sellThroughs) > 0 {
			input.sellThrough = mean(sellThroughs)
			input.hasSellThru = true
		}
		inputs = append(inputs, input)
	}

	return inputs
}

// consistencyPenalty 一致性罚分：本店客群与头部门店客群的偏差超过阈值后线性加罚
// penalty = min(maxPenalty, 2 × (偏差 − 阈值))
func (e *MissedOpportunityEvaluator) consistencyPenalty(in *StageInput, storeID string, peers []string, cfg model.MissedOpportunityConfig) float64 {
	profile, ok := in.Facts.Profile(storeID)
	if !ok {
		return 0
	}

	type peerSales struct {
		storeID string
		total   float64
	}
	ranked := make([]peerSales, 0, len(peers))
	for _, peerID := range peers {
		total := 0.0
		for _, f := range in.Facts.FactsForStore(peerID) {
			total += f.SalesAmount
		}
		ranked = append(ranked, peerSales{storeID: peerID, total: total})
	}
	sort.Slice(ranked, func(i, j int) bool {
		if ranked[i].total != ranked[j].total {
			return ranked[i].total > ranked[j].total
		}
		return ranked[i].storeID < ranked[j].storeID
	})

	topN := cfg.TopPeerCount
	if topN > len(ranked) {
		topN = len(ranked)
	}

	distances := make([]float64, 0, topN)
	for _, peer := range ranked[:topN] {
		peerProfile, ok := in.Facts.Profile(peer.storeID)
		if !ok {
			continue
		}
		distances = append(distances, model.MixDistance(profile.GenderMix, peerProfile.GenderMix))
	}
	if len(distances) == 0 {
		return 0
	}

	mismatch := mean(distances)
	if mismatch <= cfg.ConsistencyThreshold {
		return 0
	}
	penalty := 2 * (mismatch - cfg.ConsistencyThreshold)
	if penalty > cfg.MaxConsistencyPenalty {
		penalty = cfg.MaxConsistencyPenalty
	}
	return penalty
}

// tierScore 合成分层得分：机会分 + 采纳率 + 契合度 (+ 售罄率) − 一致性罚分
// 售罄率缺失时其权重摊回其余三项；高/低契合度再乘调节系数
func (e *MissedOpportunityEvaluator) tierScore(opportunity float64, input opportunityInput, affinity, penalty float64, cfg model.MissedOpportunityConfig) float64 {
	weightSum := cfg.OpportunityWeight + cfg.AdoptionWeight + cfg.AffinityWeight
	weighted := cfg.OpportunityWeight*opportunity + cfg.AdoptionWeight*input.adoption + cfg.AffinityWeight*affinity
	if input.hasSellThru {
		weightSum += cfg.SellThroughWeight
		weighted += cfg.SellThroughWeight * input.sellThrough
	}
	score := weighted/weightSum - penalty

	switch {
	case affinity >= cfg.HighAffinity:
		score *= highAffinityBoost
	case affinity <= cfg.LowAffinity:
		score *= lowAffinityDamp
	}

	if score < 0 {
		score = 0
	}
	if score > 1 {
		score = 1
	}
	return score
}

// affinityLevel 契合度档位
func affinityLevel(affinity float64, cfg model.MissedOpportunityConfig) model.AffinityLevel {
	switch {
	case affinity >= cfg.HighAffinity:
		return model.AffinityHigh
	case affinity <= cfg.LowAffinity:
		return model.AffinityLow
	default:
		return model.AffinityMedium
	}
}

// tierFor 按双阈值分桶
func tierFor(score float64, cfg model.MissedOpportunityConfig) model.OpportunityTier {
	switch {
	case score >= cfg.HighTierThreshold:
		return model.TierHigh
	case score >= cfg.MediumTierThreshold:
		return model.TierMedium
	default:
		return model.TierExploratory
	}
}

// tierLabel 置信分层的中文标签
func tierLabel(tier model.OpportunityTier) string {
	switch tier {
	case model.TierHigh:
		return "高置信"
	case model.TierMedium:
		return "中置信"
	default:
		return "试探性"
	}
}
