package program

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"catchcore/pkg/domain"
)

// Compile-time contract assertion.
var _ domain.SpecProvider = (*Provider)(nil)

// Provider serves programs and pmfm specs from a parsed configuration.
// Gear overrides replace the program lists for the matching gear id.
type Provider struct {
	mu       sync.RWMutex
	programs map[string]Config
}

// NewProvider indexes the programs of file.
func NewProvider(file *File) *Provider {
	p := &Provider{programs: make(map[string]Config)}
	if file == nil {
		return p
	}
	for _, cfg := range file.Programs {
		p.programs[cfg.Label] = cfg
	}
	return p
}

// Labels returns the configured program labels in ascending order.
func (p *Provider) Labels() []string {
	p.mu.RLock()
	defer p.mu.RUnlock()
	out := make([]string, 0, len(p.programs))
	for label := range p.programs {
		out = append(out, label)
	}
	sort.Strings(out)
	return out
}

// Program returns the property bag of a program.
func (p *Provider) Program(label string) (domain.Program, error) {
	cfg, err := p.config(label)
	if err != nil {
		return domain.Program{}, err
	}
	return cfg.Program(), nil
}

// Register adds or replaces a program configuration.
func (p *Provider) Register(cfg Config) error {
	if err := configValidate.Struct(cfg); err != nil {
		return fmt.Errorf("validate program %s: %w", cfg.Label, err)
	}
	p.mu.Lock()
	p.programs[cfg.Label] = cfg
	p.mu.Unlock()
	return nil
}

func (p *Provider) config(label string) (Config, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	cfg, ok := p.programs[label]
	if !ok {
		return Config{}, fmt.Errorf("%w: %s", ErrUnknownProgram, label)
	}
	return cfg, nil
}

func gearOverride(cfg Config, gearID *int) *GearConfig {
	if gearID == nil {
		return nil
	}
	for i := range cfg.Gears {
		if cfg.Gears[i].GearID == *gearID {
			return &cfg.Gears[i]
		}
	}
	return nil
}

// LoadWeightSpecs returns the weight specs of a program in priority order. A
// program without weight specs falls back to the default specs.
func (p *Provider) LoadWeightSpecs(ctx context.Context, programLabel string, gearID *int) ([]domain.WeightSpec, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	cfg, err := p.config(programLabel)
	if err != nil {
		return nil, err
	}
	list := cfg.WeightSpecs
	if g := gearOverride(cfg, gearID); g != nil && len(g.WeightSpecs) > 0 {
		list = g.WeightSpecs
	}
	if len(list) == 0 {
		return domain.DefaultWeightSpecs(), nil
	}
	out := make([]domain.WeightSpec, 0, len(list))
	for _, w := range list {
		out = append(out, w.spec())
	}
	return out, nil
}

// LoadSortingSpecs returns the pmfms of an acquisition level.
func (p *Provider) LoadSortingSpecs(ctx context.Context, programLabel string, level domain.AcquisitionLevel, gearID *int) ([]domain.PmfmSpec, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	cfg, err := p.config(programLabel)
	if err != nil {
		return nil, err
	}
	list := cfg.Pmfms[level]
	if g := gearOverride(cfg, gearID); g != nil {
		if override, ok := g.Pmfms[level]; ok {
			list = override
		}
	}
	out := make([]domain.PmfmSpec, 0, len(list))
	for _, pm := range list {
		out = append(out, pm.spec())
	}
	return out, nil
}
