package score

import (
	"fmt"
	"math"

	"github.com/ppiankov/concordia/internal/cluster"
	"github.com/ppiankov/concordia/internal/model"
)

// BoundaryMargin is how close to the threshold a merge must be to count as fragile
const BoundaryMargin = 0.02

// Scorer calculates the clustering health index and generates signals
type Scorer struct {
	margin float64
}

// NewScorer creates a new scorer
func NewScorer() *Scorer {
	return &Scorer{margin: BoundaryMargin}
}

// Calculate calculates the health index and generates diagnostic signals.
// tree may be nil when fewer than two records were clustered.
func (s *Scorer) Calculate(assignment model.Assignment, tree *cluster.Dendrogram, conflicts []model.ConflictRecord, threshold float64) model.Score {
	n := len(assignment)
	if n < 2 || tree == nil {
		return model.Score{
			Index:      0,
			Confidence: "low",
			Degenerate: true,
			Signals:    []model.Signal{s.degenerateSignal(n)},
		}
	}

	_, members := assignment.Clusters()
	var signals []model.Signal

	// 1. Cluster reduction (informational)
	signals = append(signals, s.calculateReduction(n, len(members)))

	// 2. Singleton ratio (informational)
	signals = append(signals, s.calculateSingletons(n, members))

	// 3. Boundary merges (0-50 points)
	boundaryScore, boundarySignal := s.calculateBoundary(tree, threshold)
	signals = append(signals, boundarySignal)

	// 4. Conflict rate (0-50 points)
	conflictScore, conflictSignal := s.calculateConflictRate(members, conflicts)
	signals = append(signals, conflictSignal)

	total := boundaryScore + conflictScore

	return model.Score{
		Index:      total,
		Confidence: s.determineConfidence(total, n),
		Signals:    signals,
	}
}

func (s *Scorer) degenerateSignal(n int) model.Signal {
	return model.Signal{
		Type:        model.SignalDegenerateInput,
		Severity:    model.SeverityWarning,
		Description: fmt.Sprintf("Only %d record(s): nothing to cluster", n),
		Data: map[string]interface{}{
			"records": n,
		},
	}
}

// calculateReduction reports how many records collapsed into shared identities
func (s *Scorer) calculateReduction(records, clusters int) model.Signal {
	reduction := 1 - float64(clusters)/float64(records)

	return model.Signal{
		Type:        model.SignalClusterReduction,
		Severity:    model.SeverityInfo,
		Description: fmt.Sprintf("%d records resolved to %d identities (%.0f%% reduction)", records, clusters, reduction*100),
		Data: map[string]interface{}{
			"records":   records,
			"clusters":  clusters,
			"reduction": reduction,
			"formula":   "1 - clusters / records",
		},
	}
}

// calculateSingletons reports the share of records that matched nothing
func (s *Scorer) calculateSingletons(records int, members map[int][]int) model.Signal {
	singletons := 0
	for _, m := range members {
		if len(m) == 1 {
			singletons++
		}
	}
	ratio := float64(singletons) / float64(records)

	severity := model.SeverityInfo
	description := fmt.Sprintf("Singletons: %d/%d records (%.0f%%)", singletons, records, ratio*100)
	if singletons == records {
		severity = model.SeverityWarning
		description = "No records were merged; the threshold may be too strict"
	}

	return model.Signal{
		Type:        model.SignalSingletonRatio,
		Severity:    severity,
		Description: description,
		Data: map[string]interface{}{
			"singletons": singletons,
			"records":    records,
			"ratio":      ratio,
			"formula":    "singleton_clusters / records",
		},
	}
}

// calculateBoundary scores merges decided close to the threshold (0-50 points)
func (s *Scorer) calculateBoundary(tree *cluster.Dendrogram, threshold float64) (int, model.Signal) {
	fragile := 0
	for _, m := range tree.Merges {
		if math.Abs(m.Distance-threshold) <= s.margin {
			fragile++
		}
	}

	ratio := float64(fragile) / float64(len(tree.Merges))
	score := int(math.Round((1 - ratio) * 50))

	severity := model.SeverityInfo
	if ratio > 0.5 {
		severity = model.SeverityCritical
	} else if ratio > 0.25 {
		severity = model.SeverityWarning
	}

	return score, model.Signal{
		Type:        model.SignalBoundaryMerges,
		Severity:    severity,
		Description: fmt.Sprintf("Merges within %.2f of threshold: %d/%d", s.margin, fragile, len(tree.Merges)),
		Data: map[string]interface{}{
			"fragile":   fragile,
			"merges":    len(tree.Merges),
			"threshold": threshold,
			"margin":    s.margin,
			"score":     score,
			"formula":   "(1 - fragile / merges) * 50",
		},
	}
}

// calculateConflictRate scores attribute agreement inside merged clusters (0-50 points)
func (s *Scorer) calculateConflictRate(members map[int][]int, conflicts []model.ConflictRecord) (int, model.Signal) {
	multi := 0
	for _, m := range members {
		if len(m) > 1 {
			multi++
		}
	}

	if multi == 0 {
		return 50, model.Signal{
			Type:        model.SignalConflictRate,
			Severity:    model.SeverityInfo,
			Description: "No multi-record clusters to check",
			Data:        map[string]interface{}{"multi_member_clusters": 0, "score": 50},
		}
	}

	conflicted := make(map[int]bool)
	for _, c := range conflicts {
		conflicted[c.ClusterID] = true
	}

	ratio := float64(len(conflicted)) / float64(multi)
	score := int(math.Round((1 - math.Min(ratio, 1)) * 50))

	severity := model.SeverityInfo
	if ratio > 0.3 {
		severity = model.SeverityCritical
	} else if ratio > 0.1 {
		severity = model.SeverityWarning
	}

	return score, model.Signal{
		Type:        model.SignalConflictRate,
		Severity:    severity,
		Description: fmt.Sprintf("Conflicting clusters: %d/%d multi-record clusters", len(conflicted), multi),
		Data: map[string]interface{}{
			"conflicting_clusters":  len(conflicted),
			"multi_member_clusters": multi,
			"conflict_records":      len(conflicts),
			"ratio":                 ratio,
			"score":                 score,
			"formula":               "(1 - conflicting_clusters / multi_member_clusters) * 50",
		},
	}
}

// determineConfidence determines the confidence level based on the index
func (s *Scorer) determineConfidence(index int, records int) string {
	if records < 5 {
		return "low"
	}

	if index >= 80 {
		return "high"
	} else if index >= 60 {
		return "medium"
	} else {
		return "low"
	}
}
