package theme

import "testing"

func TestBatteryColor(t *testing.T) {
	tests := []struct {
		pct  int
		want string
	}{
		{100, string(ColorBatteryHigh)},
		{51, string(ColorBatteryHigh)},
		{50, string(ColorBatteryMid)},
		{20, string(ColorBatteryMid)},
		{19, string(ColorBatteryLow)},
		{0, string(ColorBatteryLow)},
	}
	for _, tt := range tests {
		if got := string(BatteryColor(tt.pct)); got != tt.want {
			t.Errorf("BatteryColor(%d) = %s, want %s", tt.pct, got, tt.want)
		}
	}
}

func TestRTTColor(t *testing.T) {
	if RTTColor(5) != ColorHealthy || RTTColor(50) != ColorWarning || RTTColor(500) != ColorDanger {
		t.Error("RTTColor thresholds wrong")
	}
}
