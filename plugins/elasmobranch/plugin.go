// Package elasmobranch provides the shark and ray plugin: protected species
// may not be landed and skates are sorted without weight.
package elasmobranch

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"catchcore/internal/core"
	"catchcore/pkg/batchtree"
	"catchcore/pkg/domain"
)

const landingRuleName = "elasmobranch_protected_landing"

// DefaultProtected lists the taxon groups under a zero landing allowance.
var DefaultProtected = []string{"DGS", "GUQ", "POR", "RJA", "RJU"}

// DefaultNoWeight lists the skate groups sorted by count only.
var DefaultNoWeight = []string{"RJB", "SKA"}

// Plugin registers the elasmobranch taxon groups and the protected landing rule.
type Plugin struct {
	protected []string
	noWeight  []string
}

// New constructs the plugin. Empty lists fall back to the defaults.
func New(protected, noWeight []string) Plugin {
	if len(protected) == 0 {
		protected = DefaultProtected
	}
	if len(noWeight) == 0 {
		noWeight = DefaultNoWeight
	}
	return Plugin{protected: protected, noWeight: noWeight}
}

// Name returns the plugin identifier.
func (Plugin) Name() string { return "elasmobranch" }

// Version returns the plugin semantic version.
func (Plugin) Version() string { return "1.0.0" }

// Register adds the taxon group lists and the landing rule.
func (p Plugin) Register(registry *core.PluginRegistry) error {
	registry.RegisterTaxonGroupsNoLanding(p.protected...)
	registry.RegisterTaxonGroupsNoWeight(p.noWeight...)
	registry.RegisterRule(NewLandingRule(p.protected...))
	return nil
}

// NewLandingRule warns when a landing sub-batch of a protected group carries
// a non-zero weight.
func NewLandingRule(protected ...string) core.Rule {
	set := make(map[string]struct{}, len(protected))
	for _, label := range protected {
		if label = strings.ToUpper(strings.TrimSpace(label)); label != "" {
			set[label] = struct{}{}
		}
	}
	return landingRule{protected: set}
}

type landingRule struct {
	protected map[string]struct{}
}

func (landingRule) Name() string { return landingRuleName }

func (r landingRule) Evaluate(ctx context.Context, view core.RuleView) (core.Result, error) {
	res := core.Result{}
	if err := ctx.Err(); err != nil {
		return res, err
	}
	group := view.Group()
	if group == nil {
		return res, nil
	}
	if _, ok := r.protected[strings.ToUpper(group.TaxonGroupLabel())]; !ok {
		return res, nil
	}
	for j, child := range group.Children {
		if !child.IsLanding() {
			continue
		}
		w := batchtree.GetWeight(child, view.WeightSpecs())
		if w == nil || w.Value <= 0 {
			continue
		}
		res.Violations = append(res.Violations, core.Violation{
			Rule:     landingRuleName,
			Severity: core.SeverityWarn,
			Path:     domain.JoinPath("children", strconv.Itoa(j), "weight", "value"),
			Message: fmt.Sprintf("%s is protected but %s kg were landed",
				group.TaxonGroupLabel(), strconv.FormatFloat(w.Value, 'f', -1, 64)),
		})
	}
	return res, nil
}
