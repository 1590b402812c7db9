package pipeline

import "testing"

// TestApplyCaps 测试三重上限的优先级封顶
func TestApplyCaps(t *testing.T) {
	tests := []struct {
		name        string
		raw         float64
		caps        []Cap
		wantValue   float64
		wantApplied string
	}{
		{
			"未触顶",
			10,
			[]Cap{{CapPctOfCurrent, 30}, {CapPctOfPeerMedian, 50}, {CapAbsoluteMax, 50}},
			10, "",
		},
		{
			"占当前库存比例生效",
			40,
			[]Cap{{CapPctOfCurrent, 30}, {CapPctOfPeerMedian, 50}, {CapAbsoluteMax, 50}},
			30, CapPctOfCurrent,
		},
		{
			"绝对上限生效",
			120,
			[]Cap{{CapPctOfCurrent, 90}, {CapPctOfPeerMedian, 80}, {CapAbsoluteMax, 50}},
			50, CapAbsoluteMax,
		},
		{
			"同值时记录优先级更高的上限",
			40,
			[]Cap{{CapPctOfCurrent, 30}, {CapPctOfPeerMedian, 30}, {CapAbsoluteMax, 50}},
			30, CapPctOfCurrent,
		},
		{
			"零上限不适用",
			40,
			[]Cap{{CapPctOfCurrent, 0}, {CapPctOfPeerMedian, 35}, {CapAbsoluteMax, 50}},
			35, CapPctOfPeerMedian,
		},
		{
			"全部不适用保持原值",
			40,
			[]Cap{{CapPctOfCurrent, 0}, {CapPctOfPeerMedian, 0}, {CapAbsoluteMax, -1}},
			40, "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := ApplyCaps(tt.raw, tt.caps)
			if !floatEquals(result.Value, tt.wantValue) {
				t.Errorf("ApplyCaps(%v).Value = %v, want %v", tt.raw, result.Value, tt.wantValue)
			}
			if result.CapApplied != tt.wantApplied {
				t.Errorf("ApplyCaps(%v).CapApplied = %q, want %q", tt.raw, result.CapApplied, tt.wantApplied)
			}
		})
	}
}

// TestReductionCaps 测试规则10上限构造
func TestReductionCaps(t *testing.T) {
	caps := ReductionCaps(100, 80, 0.3, 0.5, 50)
	if len(caps) != 3 {
		t.Fatalf("expected 3 caps, got %d", len(caps))
	}
	if !floatEquals(caps[0].Limit, 30) || caps[0].Name != CapPctOfCurrent {
		t.Errorf("pct_of_current cap = %+v", caps[0])
	}
	if !floatEquals(caps[1].Limit, 40) || caps[1].Name != CapPctOfPeerMedian {
		t.Errorf("pct_of_peer_median cap = %+v", caps[1])
	}
	if !floatEquals(caps[2].Limit, 50) || caps[2].Name != CapAbsoluteMax {
		t.Errorf("absolute_max cap = %+v", caps[2])
	}
}

// TestScalingCapsZeroCurrent 当前库存为零时占比上限不适用
func TestScalingCapsZeroCurrent(t *testing.T) {
	result := ApplyCaps(20, ScalingCaps(0, 10, 0.4, 0.6, 30))
	if !floatEquals(result.Value, 6) {
		t.Errorf("Value = %v, want 6 (cluster median cap)", result.Value)
	}
	if result.CapApplied != CapPctOfPeerMedian {
		t.Errorf("CapApplied = %q, want %q", result.CapApplied, CapPctOfPeerMedian)
	}
}
