package insights

import (
	"fmt"
	"math"
	"math/rand"
	"strings"

	"github.com/mcpguard/mcpguard/pkg/finding"
)

// Isolation forest parameters. The seed is fixed so scoring the same
// window twice yields identical results.
const (
	forestTrees     = 100
	forestSubsample = 256
	forestSeed      = 1
)

// reasonSigma is the z-score at which a feature is called out in the
// anomaly reason string.
const reasonSigma = 2.0

// anomalyEpsilon absorbs float accumulation error in the averaged path
// lengths. A uniform population scores within a hair of zero on both
// sides; only scores clearly below zero are anomalous.
const anomalyEpsilon = 1e-9

// featureNames index the per-scan feature vector.
var featureNames = []string{"total findings", "critical findings", "high findings"}

// scanFeatures builds the feature vector for one scan.
func scanFeatures(scan *finding.Scan) []float64 {
	counts := finding.CountSeverities(scan.Findings)
	return []float64{
		float64(counts.Total),
		float64(counts.Critical),
		float64(counts.High),
	}
}

// ScanAnomaly is the anomaly verdict for one scan. Score follows the
// decision-function convention: negative means more anomalous.
type ScanAnomaly struct {
	ScanID    string  `json:"scan_id"`
	Score     float64 `json:"anomaly_score"`
	Anomalous bool    `json:"anomalous"`
	Reason    string  `json:"reason,omitempty"`
}

// AnomalyReport is the anomaly view over a window of scans.
type AnomalyReport struct {
	TotalScans   int           `json:"total_scans"`
	AnomalyCount int           `json:"anomaly_count"`
	AnomalyRate  float64       `json:"anomaly_rate"`
	Scans        []ScanAnomaly `json:"scans"`
}

// DetectAnomalies scores every scan in the window with an isolation
// forest over its feature vector. No state survives the call and
// nothing is learned from tenant data.
func DetectAnomalies(scans []finding.Scan) AnomalyReport {
	report := AnomalyReport{TotalScans: len(scans)}
	if len(scans) == 0 {
		return report
	}

	data := make([][]float64, len(scans))
	for i := range scans {
		data[i] = scanFeatures(&scans[i])
	}
	scores := scoreForest(data)
	means, stddevs := featureStats(data)

	report.Scans = make([]ScanAnomaly, len(scans))
	for i := range scans {
		anomaly := ScanAnomaly{
			ScanID:    scans[i].ID,
			Score:     scores[i],
			Anomalous: scores[i] < -anomalyEpsilon,
		}
		if anomaly.Anomalous {
			anomaly.Reason = anomalyReason(data[i], means, stddevs)
			report.AnomalyCount++
		}
		report.Scans[i] = anomaly
	}
	report.AnomalyRate = float64(report.AnomalyCount) / float64(report.TotalScans)
	return report
}

// anomalyReason names the features that sit beyond mean + k sigma, or
// falls back to a combined-feature explanation when no single feature
// stands out.
func anomalyReason(features, means, stddevs []float64) string {
	var parts []string
	for i, v := range features {
		if stddevs[i] > 0 && v > means[i]+reasonSigma*stddevs[i] {
			parts = append(parts, fmt.Sprintf("unusually high %s (%.0f vs mean %.1f)", featureNames[i], v, means[i]))
		}
	}
	if len(parts) == 0 {
		return "isolated across combined scan features"
	}
	return strings.Join(parts, "; ")
}

// featureStats returns the per-feature mean and population standard
// deviation of the window.
func featureStats(data [][]float64) (means, stddevs []float64) {
	dims := len(data[0])
	means = make([]float64, dims)
	stddevs = make([]float64, dims)
	for _, row := range data {
		for i, v := range row {
			means[i] += v
		}
	}
	for i := range means {
		means[i] /= float64(len(data))
	}
	for _, row := range data {
		for i, v := range row {
			d := v - means[i]
			stddevs[i] += d * d
		}
	}
	for i := range stddevs {
		stddevs[i] = math.Sqrt(stddevs[i] / float64(len(data)))
	}
	return means, stddevs
}

// isoNode is one node of an isolation tree. Leaves record how many
// points they absorbed so truncated paths can be extended by the
// expected subtree depth.
type isoNode struct {
	feature int
	split   float64
	left    *isoNode
	right   *isoNode
	size    int
	leaf    bool
}

// scoreForest fits a seeded isolation forest to the window and returns
// a decision score per point: 0.5 - anomalyScore, so isolated points go
// negative.
func scoreForest(data [][]float64) []float64 {
	rng := rand.New(rand.NewSource(forestSeed))
	subsample := forestSubsample
	if subsample > len(data) {
		subsample = len(data)
	}
	heightLimit := int(math.Ceil(math.Log2(math.Max(2, float64(subsample)))))

	trees := make([]*isoNode, forestTrees)
	for t := range trees {
		sample := make([][]float64, subsample)
		for i := range sample {
			sample[i] = data[rng.Intn(len(data))]
		}
		trees[t] = buildIsoTree(sample, 0, heightLimit, rng)
	}

	norm := avgPathLength(subsample)
	scores := make([]float64, len(data))
	for i, point := range data {
		var total float64
		for _, tree := range trees {
			total += pathLength(point, tree, 0)
		}
		avg := total / float64(len(trees))
		anomaly := math.Pow(2, -avg/norm)
		scores[i] = 0.5 - anomaly
	}
	return scores
}

// buildIsoTree recursively partitions points on random features at
// random split values.
func buildIsoTree(points [][]float64, depth, limit int, rng *rand.Rand) *isoNode {
	if depth >= limit || len(points) <= 1 || allIdentical(points) {
		return &isoNode{leaf: true, size: len(points)}
	}

	dims := len(points[0])
	// Pick a feature with spread; identical points were handled above.
	var feature int
	var lo, hi float64
	for attempt := 0; attempt < dims*2; attempt++ {
		feature = rng.Intn(dims)
		lo, hi = featureRange(points, feature)
		if hi > lo {
			break
		}
	}
	if hi <= lo {
		return &isoNode{leaf: true, size: len(points)}
	}

	split := lo + rng.Float64()*(hi-lo)
	var left, right [][]float64
	for _, p := range points {
		if p[feature] < split {
			left = append(left, p)
		} else {
			right = append(right, p)
		}
	}
	if len(left) == 0 || len(right) == 0 {
		return &isoNode{leaf: true, size: len(points)}
	}
	return &isoNode{
		feature: feature,
		split:   split,
		left:    buildIsoTree(left, depth+1, limit, rng),
		right:   buildIsoTree(right, depth+1, limit, rng),
	}
}

func allIdentical(points [][]float64) bool {
	for i := 1; i < len(points); i++ {
		for d := range points[i] {
			if points[i][d] != points[0][d] {
				return false
			}
		}
	}
	return true
}

func featureRange(points [][]float64, feature int) (lo, hi float64) {
	lo, hi = points[0][feature], points[0][feature]
	for _, p := range points[1:] {
		if p[feature] < lo {
			lo = p[feature]
		}
		if p[feature] > hi {
			hi = p[feature]
		}
	}
	return lo, hi
}

// pathLength walks a point down a tree, extending truncated leaves by
// the expected depth of the unbuilt subtree.
func pathLength(point []float64, node *isoNode, depth int) float64 {
	if node.leaf {
		return float64(depth) + avgPathLength(node.size)
	}
	if point[node.feature] < node.split {
		return pathLength(point, node.left, depth+1)
	}
	return pathLength(point, node.right, depth+1)
}

// avgPathLength is c(n), the average unsuccessful-search path length in
// a binary search tree of n points.
func avgPathLength(n int) float64 {
	if n <= 1 {
		return 0
	}
	if n == 2 {
		return 1
	}
	h := math.Log(float64(n-1)) + 0.5772156649015329
	return 2*h - 2*float64(n-1)/float64(n)
}
