package core

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/google/uuid"

	"catchcore/internal/infra/persistence/memory"
	"catchcore/pkg/batchtree"
	"catchcore/pkg/domain"
)

// Service exposes catch tree operations over a TreeStore: saving trees with
// their derived values, controlling them, and publishing control outcomes.
type Service struct {
	store      TreeStore
	controller *Controller

	mu        sync.RWMutex
	plugins   map[string]PluginMetadata
	noWeight  []string
	noLanding []string

	logger    Logger
	metrics   MetricsRecorder
	tracer    Tracer
	audit     AuditRecorder
	clock     Clock
	publisher OutcomePublisher
}

// NewService constructs a service backed by the supplied store and controller.
func NewService(store TreeStore, controller *Controller, opts ...ServiceOption) *Service {
	s := &Service{
		store:      store,
		controller: controller,
		plugins:    make(map[string]PluginMetadata),
		logger:     noopLogger{},
		metrics:    noopMetrics{},
		tracer:     noopTracer{},
		audit:      noopAudit{},
		clock:      ClockFunc(nil),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}
	return s
}

// NewInMemoryService creates a service with an in-memory store and a default
// controller.
func NewInMemoryService(specs domain.SpecProvider, forms domain.FormBuilder, opts ...ServiceOption) *Service {
	return NewService(memory.NewStore(), NewController(specs, forms), opts...)
}

// Store returns the underlying storage implementation.
func (s *Service) Store() TreeStore { return s.store }

// Controller returns the controller used by ControlTree.
func (s *Service) Controller() *Controller { return s.controller }

// ComputeOptions selects the weight specs used to derive tree values.
type ComputeOptions struct {
	ProgramLabel string
	GearID       *int
}

func (s *Service) run(ctx context.Context, op string, action AuditAction, operationID string, fn func(context.Context) error) error {
	ctx, span := s.tracer.Start(ctx, op)
	start := s.clock.Now()
	err := fn(ctx)
	duration := s.clock.Now().Sub(start)
	span.End(err)
	s.metrics.Observe(ctx, op, err == nil, duration)

	entry := AuditEntry{
		ID:          uuid.NewString(),
		Operation:   op,
		Action:      action,
		OperationID: operationID,
		Status:      AuditStatusSuccess,
		Duration:    duration,
		Timestamp:   start,
	}
	if err != nil {
		entry.Status = AuditStatusError
		entry.Error = err.Error()
		s.logger.Error("core service operation failed", "op", op, "operation_id", operationID, "duration", duration, "error", err)
	} else {
		s.logger.Info("core service operation", "op", op, "operation_id", operationID, "duration", duration)
	}
	s.audit.Record(ctx, entry)
	return err
}

func (s *Service) weightSpecs(ctx context.Context, opts ComputeOptions) ([]domain.WeightSpec, error) {
	if opts.ProgramLabel == "" || s.controller == nil || s.controller.specs == nil {
		return domain.DefaultWeightSpecs(), nil
	}
	specs, err := s.controller.specs.LoadWeightSpecs(ctx, opts.ProgramLabel, opts.GearID)
	if err != nil {
		return nil, fmt.Errorf("load weight specs: %w", err)
	}
	return specsOrDefault(specs), nil
}

// SaveTree renumbers, prunes and computes tree, then persists it.
func (s *Service) SaveTree(ctx context.Context, operationID string, tree *Batch, opts ComputeOptions) error {
	return s.run(ctx, "save_tree", AuditActionWrite, operationID, func(ctx context.Context) error {
		if tree == nil {
			return domain.ErrMissingTree
		}
		specs, err := s.weightSpecs(ctx, opts)
		if err != nil {
			return err
		}
		batchtree.Renumber(tree)
		batchtree.CleanTree(tree)
		batchtree.ComputeTree(tree, specs)
		return s.store.Put(ctx, operationID, tree)
	})
}

// GetTree loads the stored tree of an operation.
func (s *Service) GetTree(ctx context.Context, operationID string) (*Batch, error) {
	var tree *Batch
	err := s.run(ctx, "get_tree", AuditActionRead, operationID, func(ctx context.Context) error {
		var err error
		tree, err = s.load(ctx, operationID)
		return err
	})
	return tree, err
}

func (s *Service) load(ctx context.Context, operationID string) (*Batch, error) {
	tree, ok, err := s.store.Get(ctx, operationID)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, domain.ErrNotFound{OperationID: operationID}
	}
	return tree, nil
}

// DeleteTree removes the stored tree of an operation.
func (s *Service) DeleteTree(ctx context.Context, operationID string) error {
	return s.run(ctx, "delete_tree", AuditActionDelete, operationID, func(ctx context.Context) error {
		existed, err := s.store.Delete(ctx, operationID)
		if err != nil {
			return err
		}
		if !existed {
			return domain.ErrNotFound{OperationID: operationID}
		}
		return nil
	})
}

// ListTrees returns the stored operation ids.
func (s *Service) ListTrees(ctx context.Context) ([]string, error) {
	var ids []string
	err := s.run(ctx, "list_trees", AuditActionRead, "", func(ctx context.Context) error {
		var err error
		ids, err = s.store.List(ctx)
		return err
	})
	return ids, err
}

// ComputeTree recomputes the derived counts and weights of a stored tree and
// persists the result.
func (s *Service) ComputeTree(ctx context.Context, operationID string, opts ComputeOptions) (*Batch, error) {
	var tree *Batch
	err := s.run(ctx, "compute_tree", AuditActionWrite, operationID, func(ctx context.Context) error {
		loaded, err := s.load(ctx, operationID)
		if err != nil {
			return err
		}
		specs, err := s.weightSpecs(ctx, opts)
		if err != nil {
			return err
		}
		batchtree.ComputeTree(loaded, specs)
		if err := s.store.Put(ctx, operationID, loaded); err != nil {
			return err
		}
		tree = loaded
		return nil
	})
	return tree, err
}

// ControlTree controls the stored tree of an operation, persists the
// annotated tree and publishes the outcome. A cancelled pass still persists
// the groups controlled so far.
func (s *Service) ControlTree(ctx context.Context, operationID string, opts ControlOptions) (ControlOutcome, error) {
	var outcome ControlOutcome
	err := s.run(ctx, "control_tree", AuditActionControl, operationID, func(ctx context.Context) error {
		tree, err := s.load(ctx, operationID)
		if err != nil {
			return err
		}
		opts.Program = s.withPluginTaxonGroups(opts.Program)
		if opts.Progress == nil {
			opts.Progress = NewProgress()
		}
		errs, err := s.controller.Control(ctx, tree, opts)
		if err != nil {
			return err
		}
		if err := s.store.Put(ctx, operationID, tree); err != nil {
			return err
		}
		outcome = ControlOutcome{
			OperationID:  operationID,
			Program:      opts.Program.Label,
			State:        opts.Progress.State(),
			Errors:       errs,
			Tree:         tree,
			ControlledAt: s.clock.Now(),
		}
		if observer, ok := s.metrics.(ControlObserver); ok {
			observer.ObserveControl(ctx, outcome.Program, outcome.State, len(errs))
		}
		if s.publisher != nil {
			if err := s.publisher.Publish(ctx, outcome); err != nil {
				return fmt.Errorf("publish control outcome: %w", err)
			}
		}
		return nil
	})
	return outcome, err
}

// withPluginTaxonGroups merges the taxon groups contributed by plugins into
// the program lists.
func (s *Service) withPluginTaxonGroups(p Program) Program {
	s.mu.RLock()
	noWeight, noLanding := s.noWeight, s.noLanding
	s.mu.RUnlock()
	if len(noWeight) == 0 && len(noLanding) == 0 {
		return p
	}
	props := make(map[string]string, len(p.Properties)+2)
	for k, v := range p.Properties {
		props[k] = v
	}
	merge := func(key string, existing, extra []string) {
		if len(extra) == 0 {
			return
		}
		list := append([]string(nil), existing...)
		for _, label := range extra {
			if !domain.ContainsTaxonGroup(list, label) {
				list = append(list, label)
			}
		}
		props[key] = strings.Join(list, ",")
	}
	merge(domain.PropertyTaxonGroupsNoWeight, p.TaxonGroupsNoWeight(), noWeight)
	merge(domain.PropertyTaxonGroupsNoLanding, p.TaxonGroupsNoLanding(), noLanding)
	return Program{Label: p.Label, Properties: props}
}

// InstallPlugin registers a plugin, wiring its rules into the controller's
// rules engine and its taxon groups into every controlled program.
func (s *Service) InstallPlugin(plugin Plugin) (PluginMetadata, error) {
	if plugin == nil {
		return PluginMetadata{}, errors.New("plugin cannot be nil")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.plugins[plugin.Name()]; ok {
		return PluginMetadata{}, fmt.Errorf("plugin %s already registered", plugin.Name())
	}

	registry := NewPluginRegistry()
	if err := plugin.Register(registry); err != nil {
		return PluginMetadata{}, err
	}

	meta := PluginMetadata{
		Name:                 plugin.Name(),
		Version:              plugin.Version(),
		TaxonGroupsNoWeight:  registry.TaxonGroupsNoWeight(),
		TaxonGroupsNoLanding: registry.TaxonGroupsNoLanding(),
	}
	for _, rule := range registry.Rules() {
		s.controller.Rules().Register(rule)
		meta.Rules = append(meta.Rules, rule.Name())
	}
	s.noWeight = appendUnique(s.noWeight, meta.TaxonGroupsNoWeight)
	s.noLanding = appendUnique(s.noLanding, meta.TaxonGroupsNoLanding)
	s.plugins[plugin.Name()] = meta
	s.logger.Info("plugin installed", "plugin", meta.Name, "version", meta.Version, "rules", len(meta.Rules))
	return meta, nil
}

func appendUnique(list, extra []string) []string {
	for _, label := range extra {
		if !domain.ContainsTaxonGroup(list, label) {
			list = append(list, label)
		}
	}
	return list
}

// RegisteredPlugins returns metadata describing installed plugins, sorted by name.
func (s *Service) RegisteredPlugins() []PluginMetadata {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]PluginMetadata, 0, len(s.plugins))
	for _, meta := range s.plugins {
		out = append(out, meta)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}
