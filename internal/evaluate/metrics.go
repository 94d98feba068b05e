package evaluate

// F1Score is a micro-averaged span+type match against gold
type F1Score struct {
	TruePositives  int     `json:"true_positives"`
	FalsePositives int     `json:"false_positives"`
	FalseNegatives int     `json:"false_negatives"`
	Precision      float64 `json:"precision"`
	Recall         float64 `json:"recall"`
	F1             float64 `json:"f1"`
}

// AgreementScore is the mean Dice overlap of spans over shared documents
type AgreementScore struct {
	Score   float64 `json:"score"`
	Matched int     `json:"matched"` // Documents present in both files
}

// Report collects the metrics of one evaluation run
type Report struct {
	Predictions    int             `json:"predictions"`
	SchemaValidity float64         `json:"schema_validity"`
	EntityF1       *F1Score        `json:"entity_f1,omitempty"`
	Agreement      *AgreementScore `json:"agreement,omitempty"`
}

// SchemaValidityRate returns the share of predictions marked valid, or 0
// for no predictions
func SchemaValidityRate(preds []Prediction) float64 {
	if len(preds) == 0 {
		return 0
	}
	valid := 0
	for _, p := range preds {
		if p.Valid {
			valid++
		}
	}
	return float64(valid) / float64(len(preds))
}

// EntityF1 scores predictions against gold at span+type level. A
// prediction without a gold document counts all its spans as false
// positives; gold documents without a prediction are ignored.
func EntityF1(preds, gold []Prediction) F1Score {
	goldByID := byID(gold)

	var score F1Score
	for _, p := range preds {
		predSpans := spanSet(p.Spans)
		goldSpans := spanSet(goldByID[p.ID].Spans)

		for s := range predSpans {
			if goldSpans[s] {
				score.TruePositives++
			} else {
				score.FalsePositives++
			}
		}
		for s := range goldSpans {
			if !predSpans[s] {
				score.FalseNegatives++
			}
		}
	}

	tp := float64(score.TruePositives)
	if n := score.TruePositives + score.FalsePositives; n > 0 {
		score.Precision = tp / float64(n)
	}
	if n := score.TruePositives + score.FalseNegatives; n > 0 {
		score.Recall = tp / float64(n)
	}
	if sum := score.Precision + score.Recall; sum > 0 {
		score.F1 = 2 * score.Precision * score.Recall / sum
	}
	return score
}

// Agreement compares two prediction files document by document. Each
// shared document scores 2|A∩B|/(|A|+|B|), or 1 when both are empty.
// Documents only in a are skipped; the score is 0 when none are shared.
func Agreement(a, b []Prediction) AgreementScore {
	bByID := byID(b)

	var total float64
	var result AgreementScore
	for _, x := range a {
		y, ok := bByID[x.ID]
		if !ok {
			continue
		}
		result.Matched++

		spansA := spanSet(x.Spans)
		spansB := spanSet(y.Spans)
		if len(spansA)+len(spansB) == 0 {
			total++
			continue
		}
		shared := 0
		for s := range spansA {
			if spansB[s] {
				shared++
			}
		}
		total += 2 * float64(shared) / float64(len(spansA)+len(spansB))
	}

	if result.Matched > 0 {
		result.Score = total / float64(result.Matched)
	}
	return result
}

// NewReport starts a report with the validity rate of preds
func NewReport(preds []Prediction) *Report {
	return &Report{
		Predictions:    len(preds),
		SchemaValidity: SchemaValidityRate(preds),
	}
}

// WithGold adds entity-level F1 against gold
func (r *Report) WithGold(preds, gold []Prediction) *Report {
	score := EntityF1(preds, gold)
	r.EntityF1 = &score
	return r
}

// WithOther adds agreement with another model's predictions
func (r *Report) WithOther(preds, other []Prediction) *Report {
	agreement := Agreement(preds, other)
	r.Agreement = &agreement
	return r
}
