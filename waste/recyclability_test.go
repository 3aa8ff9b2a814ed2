package waste

import (
	"strings"
	"testing"
)

func TestAssessRecyclabilityIsPure(t *testing.T) {
	t.Parallel()

	first := AssessRecyclability("metal", 96, 90)
	for i := 0; i < 10; i++ {
		if got := AssessRecyclability("metal", 96, 90); got != first {
			t.Fatalf("call %d returned %+v, first call returned %+v", i, got, first)
		}
	}
	if !first.Recyclable || first.Confidence != 95 {
		t.Fatalf("expected recyclable metal at 95, got %+v", first)
	}
	if first.EcoScore != 100 {
		t.Fatalf("expected eco score 100 (70+20+5+5), got %d", first.EcoScore)
	}
}

func TestAssessRecyclabilityEcoScore(t *testing.T) {
	t.Parallel()

	cases := []struct {
		label      string
		confidence float64
		quality    int
		eco        int
	}{
		{label: "metal", confidence: 96, quality: 80, eco: 95},
		{label: "glass", confidence: 60, quality: 50, eco: 90},
		{label: "paper", confidence: 90, quality: 90, eco: 95},
		{label: "plastic", confidence: 85, quality: 81, eco: 85},
		{label: "food_waste", confidence: 99, quality: 99, eco: 80},
		{label: "textiles", confidence: 50, quality: 50, eco: 70},
		{label: "trash", confidence: 85, quality: 100, eco: 30},
		{label: "trash", confidence: 85.01, quality: 0, eco: 40},
		{label: "medical", confidence: 99, quality: 99, eco: 40},
		{label: "styrofoam", confidence: 99, quality: 99, eco: 40},
	}
	for _, tc := range cases {
		got := AssessRecyclability(tc.label, tc.confidence, tc.quality)
		if got.EcoScore != tc.eco {
			t.Errorf("%s conf=%.2f q=%d: expected eco %d, got %d", tc.label, tc.confidence, tc.quality, tc.eco, got.EcoScore)
		}
		if got.EcoScore < 0 || got.EcoScore > 100 {
			t.Errorf("%s: eco score out of range: %d", tc.label, got.EcoScore)
		}
	}
}

func TestAssessRecyclabilityTrash(t *testing.T) {
	t.Parallel()

	for _, conf := range []float64{10, 50, 70, 85, 86, 99} {
		got := AssessRecyclability("trash", conf, 90)
		if got.Recyclable {
			t.Fatalf("trash must never be recyclable")
		}
		want := 30
		if conf > 85 {
			want = 40
		}
		if got.EcoScore != want {
			t.Fatalf("trash conf=%.0f: expected eco %d, got %d", conf, want, got.EcoScore)
		}
	}

	rule, known := RuleFor("trash")
	if !known || rule.BaseConfidence != 95 {
		t.Fatalf("unexpected trash rule: %+v", rule)
	}
}

func TestAssessRecyclabilityUnknownLabel(t *testing.T) {
	t.Parallel()

	got := AssessRecyclability("styrofoam", 95, 95)
	if got.Recyclable || got.Confidence != 50 {
		t.Fatalf("expected default rule, got %+v", got)
	}
	if !strings.Contains(got.Reason, "Unknown category") {
		t.Fatalf("expected unknown category reason, got %q", got.Reason)
	}
}

func TestAssessRecyclabilityCaseInsensitive(t *testing.T) {
	t.Parallel()

	if got := AssessRecyclability("  MeTaL ", 96, 80); !got.Recyclable || got.EcoScore != 95 {
		t.Fatalf("expected metal rule for mixed-case label, got %+v", got)
	}
}

func TestAssessRecyclabilityPenaltiesCompound(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name       string
		label      string
		confidence float64
		quality    int
		want       float64
		note       bool
	}{
		{name: "no penalty", label: "metal", confidence: 90, quality: 90, want: 95},
		{name: "quality only", label: "metal", confidence: 90, quality: 59, want: 75, note: true},
		{name: "confidence only", label: "metal", confidence: 69, quality: 90, want: 80},
		{name: "both", label: "metal", confidence: 69, quality: 59, want: 60, note: true},
		{name: "both floor at 50", label: "textiles", confidence: 10, quality: 10, want: 50, note: true},
		{name: "plastic quality floor", label: "plastic", confidence: 90, quality: 0, want: 55, note: true},
		{name: "unknown stays at floor", label: "rubber", confidence: 10, quality: 10, want: 50, note: true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := AssessRecyclability(tc.label, tc.confidence, tc.quality)
			if got.Confidence != tc.want {
				t.Fatalf("expected recyclable confidence %.0f, got %.0f", tc.want, got.Confidence)
			}
			if hasNote := strings.HasSuffix(got.Reason, poorQualityNote); hasNote != tc.note {
				t.Fatalf("quality note presence = %v, want %v (%q)", hasNote, tc.note, got.Reason)
			}
		})
	}
}

func TestRuleTableCoversBothLabelSets(t *testing.T) {
	t.Parallel()

	for _, label := range append(append([]string{}, labelsA...), labelsB...) {
		if _, known := RuleFor(label); !known {
			t.Errorf("label %s has no recyclability rule", label)
		}
	}
	known := KnownLabels()
	if len(known) != 10 {
		t.Fatalf("expected 10 rules, got %d", len(known))
	}
	if known[0] != "e_waste" || known[9] != "trash" {
		t.Fatalf("labels not sorted: %v", known)
	}
}
