package core

import (
	"sort"
	"strings"
)

// Plugin describes a species module that contributes group rules and taxon
// group policies.
type Plugin interface {
	Name() string
	Version() string
	Register(registry *PluginRegistry) error
}

// PluginRegistry accumulates plugin contributions during registration.
type PluginRegistry struct {
	rules     []Rule
	noWeight  map[string]struct{}
	noLanding map[string]struct{}
}

// NewPluginRegistry constructs a plugin registry.
func NewPluginRegistry() *PluginRegistry {
	return &PluginRegistry{
		noWeight:  make(map[string]struct{}),
		noLanding: make(map[string]struct{}),
	}
}

// RegisterRule adds a group rule contributed by the plugin.
func (r *PluginRegistry) RegisterRule(rule Rule) {
	if rule == nil {
		return
	}
	r.rules = append(r.rules, rule)
}

// RegisterTaxonGroupsNoWeight lists taxon groups counted instead of weighed.
func (r *PluginRegistry) RegisterTaxonGroupsNoWeight(labels ...string) {
	addLabels(r.noWeight, labels)
}

// RegisterTaxonGroupsNoLanding lists taxon groups that may not be landed.
func (r *PluginRegistry) RegisterTaxonGroupsNoLanding(labels ...string) {
	addLabels(r.noLanding, labels)
}

func addLabels(set map[string]struct{}, labels []string) {
	for _, l := range labels {
		if l = strings.ToUpper(strings.TrimSpace(l)); l != "" {
			set[l] = struct{}{}
		}
	}
}

func sortedLabels(set map[string]struct{}) []string {
	out := make([]string, 0, len(set))
	for l := range set {
		out = append(out, l)
	}
	sort.Strings(out)
	return out
}

// Rules returns a copy of registered rules.
func (r *PluginRegistry) Rules() []Rule {
	out := make([]Rule, len(r.rules))
	copy(out, r.rules)
	return out
}

// TaxonGroupsNoWeight returns the registered no-weight taxon groups, sorted.
func (r *PluginRegistry) TaxonGroupsNoWeight() []string { return sortedLabels(r.noWeight) }

// TaxonGroupsNoLanding returns the registered no-landing taxon groups, sorted.
func (r *PluginRegistry) TaxonGroupsNoLanding() []string { return sortedLabels(r.noLanding) }

// PluginMetadata stores metadata describing an installed plugin.
type PluginMetadata struct {
	Name                 string
	Version              string
	Rules                []string
	TaxonGroupsNoWeight  []string
	TaxonGroupsNoLanding []string
}
