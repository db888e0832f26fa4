package batchtree

import (
	"fmt"
	"io"
	"strings"

	"catchcore/pkg/domain"
)

// LogTree writes an indented dump of the tree, one node per line.
func LogTree(w io.Writer, root *domain.Batch, specs []domain.WeightSpec) error {
	var err error
	Walk(root, func(b *domain.Batch, depth int) bool {
		if err != nil {
			return false
		}
		_, err = fmt.Fprintln(w, strings.Repeat("  ", depth)+describe(b, specs))
		return true
	})
	return err
}

func describe(b *domain.Batch, specs []domain.WeightSpec) string {
	parts := []string{b.Label}
	if b.TaxonGroup != nil {
		parts = append(parts, "taxonGroup="+b.TaxonGroup.Label)
	}
	if b.IsLanding() {
		parts = append(parts, "LAN")
	} else if b.IsDiscard() {
		parts = append(parts, "DIS")
	}
	if b.IndividualCount != nil {
		parts = append(parts, fmt.Sprintf("count=%d", *b.IndividualCount))
	}
	if w := GetWeight(b, specs); w != nil {
		weight := fmt.Sprintf("weight=%s%s", formatNumber(w.Value), w.Unit)
		if w.Computed {
			weight += " (computed)"
		} else if w.Estimated {
			weight += " (estimated)"
		}
		parts = append(parts, weight)
	}
	if b.SamplingRatioText != "" {
		parts = append(parts, "ratio="+b.SamplingRatioText)
	}
	if b.QualityFlag != domain.QualityFlagNotQualified {
		parts = append(parts, "flag="+b.QualityFlag.String())
	}
	return strings.Join(parts, " ")
}
