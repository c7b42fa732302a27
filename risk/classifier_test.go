package risk

import "testing"

func TestClassify_Boundaries(t *testing.T) {
	tests := []struct {
		name        string
		probability float64
		wantTier    Tier
		wantText    string
	}{
		{"zero", 0.0, Low, "0.0"},
		{"just below medium", 0.2499, Low, "25.0"},
		{"exactly medium", 0.25, Medium, "25.0"},
		{"just below high", 0.4999, Medium, "50.0"},
		{"exactly high", 0.5, High, "50.0"},
		{"just below critical", 0.7499, High, "75.0"},
		{"exactly critical", 0.75, Critical, "75.0"},
		{"one", 1.0, Critical, "100.0"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Classify(tt.probability)
			if got.Tier != tt.wantTier {
				t.Errorf("Classify(%v).Tier = %v, want %v", tt.probability, got.Tier, tt.wantTier)
			}
			if got.PercentText != tt.wantText {
				t.Errorf("Classify(%v).PercentText = %q, want %q", tt.probability, got.PercentText, tt.wantText)
			}
		})
	}
}

func TestClassify_ClampsOutOfRange(t *testing.T) {
	// 后端返回1.4也按1.0处理，不在接收时报错
	above := Classify(1.4)
	if above.Tier != Critical || above.PercentText != "100.0" {
		t.Errorf("Classify(1.4) = %+v, want Critical at 100.0", above)
	}
	if got, want := above.Percent, 100.0; got != want {
		t.Errorf("Classify(1.4).Percent = %v, want %v", got, want)
	}

	below := Classify(-0.3)
	if below.Tier != Low || below.PercentText != "0.0" {
		t.Errorf("Classify(-0.3) = %+v, want Low at 0.0", below)
	}
}

func TestClassify_Monotonic(t *testing.T) {
	prev := Classify(0).Tier
	for p := 0.0; p <= 1.0; p += 0.01 {
		tier := Classify(p).Tier
		if tier < prev {
			t.Fatalf("classification not monotonic at probability %v", p)
		}
		prev = tier
	}
}

func TestClassify_FieldsPopulated(t *testing.T) {
	for _, p := range []float64{0.1, 0.3, 0.6, 0.9} {
		a := Classify(p)
		if a.Label == "" || a.Message == "" || a.Severity == "" {
			t.Errorf("Classify(%v) has empty display fields: %+v", p, a)
		}
	}
}
