package insights

import (
	"sort"

	"github.com/mcpguard/mcpguard/pkg/finding"
)

// significanceThreshold is the p-value below which an association is
// flagged significant.
const significanceThreshold = 0.05

// Association is the measured relationship between two finding
// attributes over a window's population.
type Association struct {
	Pair        string  `json:"pair"`
	Coefficient float64 `json:"coefficient"`
	PValue      float64 `json:"p_value"`
	Significant bool    `json:"significant"`
	SampleSize  int     `json:"sample_size"`
}

// Correlations computes the declared attribute-pair associations.
// Degenerate pairs (too few findings, or an attribute with a single
// distinct value) are omitted rather than corrupting the rest of the
// response; an empty slice means no pair was computable.
func Correlations(findings []finding.Finding) []Association {
	pairs := []struct {
		name string
		x, y func([]finding.Finding) []float64
	}{
		{"severity:category", encodeSeverity, encodeCategory},
		{"severity:scanner", encodeSeverity, encodeScanner},
	}

	associations := make([]Association, 0, len(pairs))
	for _, pair := range pairs {
		r, ok := pearson(pair.x(findings), pair.y(findings))
		if !ok {
			continue
		}
		p := pearsonPValue(r, len(findings))
		associations = append(associations, Association{
			Pair:        pair.name,
			Coefficient: r,
			PValue:      p,
			Significant: p < significanceThreshold,
			SampleSize:  len(findings),
		})
	}
	return associations
}

// encodeSeverity maps severity to its ordinal rank. The encoding is a
// fixed property of the severity scale, so identical inputs always
// encode identically.
func encodeSeverity(findings []finding.Finding) []float64 {
	out := make([]float64, len(findings))
	for i := range findings {
		out[i] = float64(findings[i].Severity.Rank())
	}
	return out
}

// encodeCategory ordinal-encodes the category attribute: distinct
// values are sorted by name and mapped to their index, so distinct
// categories stay distinct and identical inputs always encode
// identically.
func encodeCategory(findings []finding.Finding) []float64 {
	return ordinalEncode(findings, func(f *finding.Finding) string { return f.Category })
}

// encodeScanner ordinal-encodes the origin scanner attribute.
func encodeScanner(findings []finding.Finding) []float64 {
	return ordinalEncode(findings, func(f *finding.Finding) string { return f.Scanner })
}

func ordinalEncode(findings []finding.Finding, key func(*finding.Finding) string) []float64 {
	distinct := make(map[string]struct{})
	for i := range findings {
		distinct[key(&findings[i])] = struct{}{}
	}
	names := make([]string, 0, len(distinct))
	for name := range distinct {
		names = append(names, name)
	}
	sort.Strings(names)
	ordinal := make(map[string]float64, len(names))
	for i, name := range names {
		ordinal[name] = float64(i)
	}
	out := make([]float64, len(findings))
	for i := range findings {
		out[i] = ordinal[key(&findings[i])]
	}
	return out
}
