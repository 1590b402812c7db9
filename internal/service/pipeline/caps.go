package pipeline

// 安全上限标识，写入裁决轨迹
const (
	CapPctOfCurrent    = "pct_of_current"
	CapPctOfPeerMedian = "pct_of_peer_median"
	CapAbsoluteMax     = "absolute_max"
)

// Cap 单个安全上限；Limit <= 0 表示该上限不适用（如当前库存为零）
type Cap struct {
	Name  string
	Limit float64
}

// CapResult 封顶结果及溯源
type CapResult struct {
	Value      float64 // 封顶后的量
	CapApplied string  // 生效的上限标识，未触顶时为空
	Caps       []Cap   // 实际参与计算的上限
}

// ApplyCaps 按固定优先级依次取 min 封顶
// 优先级顺序由调用方构造 caps 切片保证：占当前库存比例 → 占同群中位比例 → 绝对上限
// 多个上限同值时记录优先级更高的一个
func ApplyCaps(raw float64, caps []Cap) CapResult {
	result := CapResult{Value: raw, Caps: caps}
	for _, cap := range caps {
		if cap.Limit <= 0 {
			continue
		}
		if cap.Limit < result.Value {
			result.Value = cap.Limit
			result.CapApplied = cap.Name
		}
	}
	return result
}

// ReductionCaps 规则10的三重上限
func ReductionCaps(current, peerMedian, pctOfCurrent, pctOfPeerMedian, absoluteMax float64) []Cap {
	return []Cap{
		{Name: CapPctOfCurrent, Limit: current * pctOfCurrent},
		{Name: CapPctOfPeerMedian, Limit: peerMedian * pctOfPeerMedian},
		{Name: CapAbsoluteMax, Limit: absoluteMax},
	}
}

// ScalingCaps 规则12的三重上限；门店当前无库存时占比上限不适用
func ScalingCaps(current, clusterMedian, pctOfCurrent, pctOfClusterMedian, absoluteMax float64) []Cap {
	caps := []Cap{
		{Name: CapPctOfCurrent, Limit: current * pctOfCurrent},
		{Name: CapPctOfPeerMedian, Limit: clusterMedian * pctOfClusterMedian},
		{Name: CapAbsoluteMax, Limit: absoluteMax},
	}
	return caps
}
