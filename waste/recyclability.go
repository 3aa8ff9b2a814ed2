package waste

import (
	"sort"
	"strings"
)

// RecyclabilityRule is the static verdict for one label.
type RecyclabilityRule struct {
	Label          string
	Recyclable     bool
	BaseConfidence int
	Reason         string
}

// RecyclabilityVerdict is the rule engine's output for one classification.
type RecyclabilityVerdict struct {
	Recyclable bool
	Confidence float64
	Reason     string
	EcoScore   int
}

const (
	poorQualityNote = " (Note: Poor image quality may affect accuracy)"

	poorQualityThreshold    = 60
	lowConfidenceThreshold  = 70
	highConfidenceThreshold = 85
	goodQualityThreshold    = 80
	confidenceFloor         = 50
)

var defaultRule = RecyclabilityRule{
	Recyclable:     false,
	BaseConfidence: 50,
	Reason:         "Unknown category - recyclability uncertain",
}

var recyclabilityRules = map[string]RecyclabilityRule{
	"metal": {
		Label: "metal", Recyclable: true, BaseConfidence: 95,
		Reason: "Metals are highly recyclable - aluminum and steel can be recycled indefinitely",
	},
	"glass": {
		Label: "glass", Recyclable: true, BaseConfidence: 90,
		Reason: "Glass is 100% recyclable and can be recycled endlessly without quality loss",
	},
	"plastic": {
		Label: "plastic", Recyclable: true, BaseConfidence: 75,
		Reason: "Most plastics are recyclable if clean and dry (check recycling number)",
	},
	"paper": {
		Label: "paper", Recyclable: true, BaseConfidence: 85,
		Reason: "Paper is recyclable if clean and dry (not contaminated with food or grease)",
	},
	"trash": {
		Label: "trash", Recyclable: false, BaseConfidence: 95,
		Reason: "General waste - not recyclable through standard programs",
	},
	// compostable rather than recyclable in the strict sense
	"food_waste": {
		Label: "food_waste", Recyclable: true, BaseConfidence: 90,
		Reason: "Food waste is compostable - turns into nutrient-rich soil for gardens",
	},
	"e_waste": {
		Label: "e_waste", Recyclable: true, BaseConfidence: 80,
		Reason: "E-waste recyclable at specialized facilities - contains valuable materials",
	},
	"textiles": {
		Label: "textiles", Recyclable: true, BaseConfidence: 70,
		Reason: "Textiles can be donated or recycled into new fabrics and materials",
	},
	"hazardous": {
		Label: "hazardous", Recyclable: false, BaseConfidence: 95,
		Reason: "Hazardous waste requires special disposal - contact local hazardous waste facility",
	},
	"medical": {
		Label: "medical", Recyclable: false, BaseConfidence: 95,
		Reason: "Medical waste requires biohazard disposal - never throw in regular trash",
	},
}

// ecoBonus is the extra eco-score for recyclable materials with an
// established recycling stream.
var ecoBonus = map[string]int{
	"metal":   20,
	"glass":   20,
	"paper":   15,
	"plastic": 10,
}

// RuleFor returns the rule for label, matched case-insensitively, and whether
// the label is known. Unknown labels get the default "uncertain" rule.
func RuleFor(label string) (RecyclabilityRule, bool) {
	key := strings.ToLower(strings.TrimSpace(label))
	if rule, ok := recyclabilityRules[key]; ok {
		return rule, true
	}
	rule := defaultRule
	rule.Label = key
	return rule, false
}

// KnownLabels lists every label with a dedicated rule, sorted.
func KnownLabels() []string {
	labels := make([]string, 0, len(recyclabilityRules))
	for label := range recyclabilityRules {
		labels = append(labels, label)
	}
	sort.Strings(labels)
	return labels
}

// AssessRecyclability maps a chosen label, its confidence (0-100) and the
// image quality score (0-100) to a recyclability verdict and eco-score.
func AssessRecyclability(label string, confidence float64, qualityScore int) RecyclabilityVerdict {
	rule, _ := RuleFor(label)

	recConfidence := rule.BaseConfidence
	reason := rule.Reason

	if qualityScore < poorQualityThreshold {
		recConfidence = max(confidenceFloor, recConfidence-20)
		reason += poorQualityNote
	}
	if confidence < lowConfidenceThreshold {
		recConfidence = max(confidenceFloor, recConfidence-15)
	}

	return RecyclabilityVerdict{
		Recyclable: rule.Recyclable,
		Confidence: clampFloat(float64(recConfidence), 0, 100),
		Reason:     reason,
		EcoScore:   ecoScore(rule, confidence, qualityScore),
	}
}

func ecoScore(rule RecyclabilityRule, confidence float64, qualityScore int) int {
	var score int
	if rule.Recyclable {
		score = 70 + ecoBonus[rule.Label]
		if confidence > highConfidenceThreshold {
			score += 5
		}
		if qualityScore > goodQualityThreshold {
			score += 5
		}
	} else {
		score = 30
		if confidence > highConfidenceThreshold {
			score += 10
		}
	}
	return clampInt(score, 0, 100)
}
