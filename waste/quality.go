package waste

import (
	"bytes"
	"image"
	"image/color"
	_ "image/gif"  // GIF decoder registration
	_ "image/jpeg" // JPEG decoder registration
	_ "image/png"  // PNG decoder registration
	"math"

	_ "golang.org/x/image/webp" // WebP decoder registration
)

const (
	qualityBaseScore = 100

	darkBrightness   = 50
	brightBrightness = 200
	blurVariance     = 100

	darkPenalty   = 30
	brightPenalty = 20
	blurPenalty   = 25

	FeedbackTooDark   = "Image is too dark - try better lighting"
	FeedbackTooBright = "Image is too bright - reduce lighting"
	FeedbackBlurry    = "Image appears blurry - hold camera steady"
	FeedbackGood      = "Image quality is good!"
)

// QualityAssessment scores how usable a photo is for classification.
type QualityAssessment struct {
	Score      int      `json:"score"`
	Feedback   []string `json:"feedback"`
	Brightness float64  `json:"brightness"`
	BlurScore  float64  `json:"blur_score"`
}

// DefaultQuality is returned whenever the image cannot be analysed.
func DefaultQuality() QualityAssessment {
	return QualityAssessment{
		Score:      qualityBaseScore,
		Feedback:   []string{FeedbackGood},
		Brightness: 128,
		BlurScore:  200,
	}
}

// AnalyzeQualityBytes decodes raw image bytes and assesses them. Decode
// failures yield DefaultQuality.
func AnalyzeQualityBytes(data []byte) QualityAssessment {
	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return DefaultQuality()
	}
	return AnalyzeQuality(img)
}

// AnalyzeQuality converts img to 8-bit luminance and scores its mean
// brightness and pixel variance.
func AnalyzeQuality(img image.Image) QualityAssessment {
	if img == nil {
		return DefaultQuality()
	}
	bounds := img.Bounds()
	n := bounds.Dx() * bounds.Dy()
	if n <= 0 {
		return DefaultQuality()
	}

	var sum, sumSq float64
	for y := bounds.Min.Y; y < bounds.Max.Y; y++ {
		for x := bounds.Min.X; x < bounds.Max.X; x++ {
			l := float64(color.GrayModel.Convert(img.At(x, y)).(color.Gray).Y)
			sum += l
			sumSq += l * l
		}
	}
	mean := sum / float64(n)
	variance := sumSq/float64(n) - mean*mean
	if variance < 0 {
		variance = 0
	}

	return AssessQuality(mean, variance)
}

// AssessQuality applies the brightness and blur thresholds to precomputed
// luminance statistics.
func AssessQuality(brightness, variance float64) QualityAssessment {
	score := qualityBaseScore
	var feedback []string

	if brightness < darkBrightness {
		feedback = append(feedback, FeedbackTooDark)
		score -= darkPenalty
	} else if brightness > brightBrightness {
		feedback = append(feedback, FeedbackTooBright)
		score -= brightPenalty
	}

	if variance < blurVariance {
		feedback = append(feedback, FeedbackBlurry)
		score -= blurPenalty
	}

	if len(feedback) == 0 {
		feedback = append(feedback, FeedbackGood)
	}

	return QualityAssessment{
		Score:      clampInt(score, 0, 100),
		Feedback:   feedback,
		Brightness: round(brightness, 2),
		BlurScore:  round(variance, 2),
	}
}

func round(v float64, places int) float64 {
	p := math.Pow(10, float64(places))
	return math.Round(v*p) / p
}

func clampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func clampFloat(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, v))
}
