package waste

// Evaluation combines the ensemble decision with its recyclability verdict.
type Evaluation struct {
	Decision Decision
	Quality  QualityAssessment
	Verdict  RecyclabilityVerdict
}

// Evaluate arbitrates between classifier outputs and applies the
// recyclability rules using the photo's quality score.
func Evaluate(quality QualityAssessment, outputs []ModelOutput) (Evaluation, error) {
	decision, err := SelectEnsemble(outputs)
	if err != nil {
		return Evaluation{}, err
	}
	return Evaluation{
		Decision: decision,
		Quality:  quality,
		Verdict:  AssessRecyclability(decision.Label, decision.Confidence, quality.Score),
	}, nil
}
