package core

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"catchcore/pkg/batchtree"
	"catchcore/pkg/domain"
)

// ControlOptions parameterises one control pass.
type ControlOptions struct {
	Program domain.Program
	GearID  *int
	// PhysicalGear is mandatory for programs using the selectivity editor.
	PhysicalGear *domain.PhysicalGear
	// AllowSamplingBatches overrides the program property when set.
	AllowSamplingBatches *bool
	IsOnFieldMode        bool
	// ControlName prefixes every returned error path.
	ControlName string
	// Progress is created when nil.
	Progress *Progress
}

// ControllerOption configures a Controller.
type ControllerOption func(*Controller)

// WithControllerLogger sets the logger of the controller.
func WithControllerLogger(logger Logger) ControllerOption {
	return func(c *Controller) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// WithGroupRules replaces the rules evaluated on every valid sorting group.
func WithGroupRules(engine *RulesEngine) ControllerOption {
	return func(c *Controller) {
		if engine != nil {
			c.rules = engine
		}
	}
}

// WithGearLoader sets the loader used for children gears of selectivity
// operations.
func WithGearLoader(loader domain.GearLoader) ControllerOption {
	return func(c *Controller) { c.gears = loader }
}

// WithConcurrency bounds the number of sorting groups controlled at once.
// Values below 1 mean sequential control.
func WithConcurrency(n int) ControllerOption {
	return func(c *Controller) {
		if n < 1 {
			n = 1
		}
		c.concurrency = n
	}
}

// WithControllerClock sets the clock stamping control dates.
func WithControllerClock(clock Clock) ControllerOption {
	return func(c *Controller) {
		if clock != nil {
			c.clock = clock
		}
	}
}

// Controller validates catch trees and annotates them with quality flags.
type Controller struct {
	specs       domain.SpecProvider
	forms       domain.FormBuilder
	gears       domain.GearLoader
	rules       *RulesEngine
	logger      Logger
	clock       Clock
	concurrency int
}

// NewController constructs a controller loading pmfms from specs and building
// validation forms with forms.
func NewController(specs domain.SpecProvider, forms domain.FormBuilder, opts ...ControllerOption) *Controller {
	c := &Controller{
		specs:       specs,
		forms:       forms,
		rules:       NewDefaultRulesEngine(),
		logger:      noopLogger{},
		clock:       ClockFunc(func() time.Time { return time.Now().UTC() }),
		concurrency: 1,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(c)
		}
	}
	return c
}

// Rules returns the group rules engine.
func (c *Controller) Rules() *RulesEngine { return c.rules }

// Control validates tree and returns the field errors keyed by control path,
// or nil when the tree is valid. Invalid batches are marked BAD with a
// translated comment and valid sorting groups are marked controlled.
//
// The pass stops before the next group once opts.Progress is cancelled or ctx
// is done; the errors collected so far are returned, together with ctx.Err()
// in the latter case.
func (c *Controller) Control(ctx context.Context, tree *domain.Batch, opts ControlOptions) (domain.ErrorMap, error) {
	if tree == nil {
		return nil, domain.ErrMissingTree
	}
	if opts.Program.Label == "" {
		return nil, domain.ErrMissingProgram
	}
	if opts.Progress == nil {
		opts.Progress = NewProgress()
	}
	switch opts.Program.Editor() {
	case domain.EditorSelectivity:
		return c.controlSelectivity(ctx, tree, opts)
	default:
		return c.controlLegacy(ctx, tree, opts)
	}
}

func (c *Controller) allowSamplingBatches(opts ControlOptions) bool {
	if opts.AllowSamplingBatches != nil {
		return *opts.AllowSamplingBatches
	}
	return opts.Program.Bool(domain.PropertyAllowSamplingBatches, true)
}

func (c *Controller) stopped(ctx context.Context, progress *Progress) bool {
	return progress.Cancelled() || ctx.Err() != nil
}

func (c *Controller) cancel(ctx context.Context, progress *Progress, errs domain.ErrorMap) (domain.ErrorMap, error) {
	progress.setState(StateCancelled)
	c.logger.Debug("control cancelled", "current", progress.Current(), "total", progress.Total())
	if len(errs) == 0 {
		errs = nil
	}
	return errs, ctx.Err()
}

func (c *Controller) finish(progress *Progress, errs domain.ErrorMap) domain.ErrorMap {
	progress.complete()
	if len(errs) == 0 {
		progress.setState(StateValid)
		return nil
	}
	progress.setState(StateInvalid)
	return errs
}

func (c *Controller) controlLegacy(ctx context.Context, tree *domain.Batch, opts ControlOptions) (domain.ErrorMap, error) {
	progress := opts.Progress
	progress.setTotal(1 + len(tree.Children))
	progress.setState(StateControllingCatch)
	c.logger.Debug("control state", "state", StateControllingCatch.String(), "program", opts.Program.Label)

	weightSpecs, err := c.specs.LoadWeightSpecs(ctx, opts.Program.Label, opts.GearID)
	if err != nil {
		return nil, fmt.Errorf("load weight specs: %w", err)
	}

	catchErrs, err := c.controlCatch(ctx, tree, weightSpecs, opts)
	if err != nil {
		return nil, err
	}
	progress.step()
	if c.stopped(ctx, progress) {
		return c.cancel(ctx, progress, catchErrs)
	}

	progress.setState(StateControllingGroups)
	c.logger.Debug("control state", "state", StateControllingGroups.String(), "groups", len(tree.Children))
	groupErrs, err := c.controlGroups(ctx, tree, weightSpecs, opts)
	if err != nil {
		return nil, err
	}
	if len(groupErrs) > 0 && tree.QualificationComments == "" {
		domain.MarkAsInvalid(tree, domain.InvalidOrIncompleteMessage)
	}
	merged := domain.MergeErrorMaps(catchErrs, groupErrs)
	if c.stopped(ctx, progress) {
		return c.cancel(ctx, progress, merged)
	}
	return c.finish(progress, merged), nil
}

func (c *Controller) controlCatch(ctx context.Context, tree *domain.Batch, weightSpecs []domain.WeightSpec, opts ControlOptions) (domain.ErrorMap, error) {
	pmfms, err := c.specs.LoadSortingSpecs(ctx, opts.Program.Label, domain.AcquisitionCatchBatch, opts.GearID)
	if err != nil {
		return nil, fmt.Errorf("load catch pmfms: %w", err)
	}
	errs, err := c.validate(ctx, tree, pmfms, domain.FormOptions{
		AcquisitionLevel: domain.AcquisitionCatchBatch,
		WeightSpecs:      weightSpecs,
		IsOnFieldMode:    opts.IsOnFieldMode,
	})
	if err != nil {
		return nil, err
	}
	if len(errs) > 0 {
		message := translateErrors(errs, pathTranslator{pmfms: pmfms, catch: true}, ", ")
		c.logger.Info("catch batch invalid", "label", tree.Label, "message", message)
		domain.MarkAsInvalid(tree, message)
		return errs.Prefixed(opts.ControlName), nil
	}
	c.logger.Debug("catch batch valid", "label", tree.Label)
	domain.MarkAsControlled(tree, domain.WithChildren(false), domain.MarkedAt(c.clock.Now()))
	return nil, nil
}

func (c *Controller) validate(ctx context.Context, b *domain.Batch, pmfms []domain.PmfmSpec, fo domain.FormOptions) (domain.ErrorMap, error) {
	form, err := c.forms.BuildForm(ctx, b, pmfms, fo)
	if err != nil {
		return nil, fmt.Errorf("build form %s: %w", b.Label, err)
	}
	if err := form.WaitWhilePending(ctx); err != nil {
		return nil, fmt.Errorf("await form %s: %w", b.Label, err)
	}
	if form.Valid() {
		return nil, nil
	}
	return form.Errors(), nil
}

// groupContext holds what every group of a pass shares.
type groupContext struct {
	program        domain.Program
	pmfms          []domain.PmfmSpec
	speciesPmfms   []domain.PmfmSpec
	childrenPmfms  []domain.PmfmSpec
	qvPmfm         *domain.PmfmSpec
	weightSpecs    []domain.WeightSpec
	noWeight       []string
	noLanding      []string
	allowSampling  bool
	sampleRequired bool
	format         domain.SamplingRatioFormat
	onField        bool
}

func (c *Controller) controlGroups(ctx context.Context, tree *domain.Batch, weightSpecs []domain.WeightSpec, opts ControlOptions) (domain.ErrorMap, error) {
	if len(tree.Children) == 0 {
		return nil, nil
	}
	pmfms, err := c.specs.LoadSortingSpecs(ctx, opts.Program.Label, domain.AcquisitionSortingBatch, opts.GearID)
	if err != nil {
		return nil, fmt.Errorf("load sorting pmfms: %w", err)
	}
	gc := groupContext{
		program:        opts.Program,
		pmfms:          pmfms,
		weightSpecs:    weightSpecs,
		noWeight:       opts.Program.TaxonGroupsNoWeight(),
		noLanding:      opts.Program.TaxonGroupsNoLanding(),
		allowSampling:  c.allowSamplingBatches(opts),
		sampleRequired: opts.Program.Bool(domain.PropertySampleWeightRequired, true),
		format:         opts.Program.SamplingRatioFormat(),
		onField:        opts.IsOnFieldMode,
	}
	if qv, ok := domain.QvPmfm(pmfms); ok {
		gc.qvPmfm = &qv
		seen := false
		for _, p := range pmfms {
			switch {
			case p.ID == qv.ID:
				seen = true
			case !seen:
				gc.speciesPmfms = append(gc.speciesPmfms, p)
			case !p.IsWeight:
				gc.childrenPmfms = append(gc.childrenPmfms, p)
			}
		}
	} else {
		for _, p := range pmfms {
			if !p.IsWeight {
				gc.speciesPmfms = append(gc.speciesPmfms, p)
			}
		}
	}

	prefix := domain.JoinPath(opts.ControlName, "children")
	results := make([]domain.ErrorMap, len(tree.Children))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(c.concurrency)
	for i, group := range tree.Children {
		if c.stopped(ctx, opts.Progress) {
			break
		}
		g.Go(func() error {
			if c.stopped(gctx, opts.Progress) {
				return nil
			}
			errs, err := c.controlGroup(gctx, group, i, gc)
			if err != nil {
				if ctx.Err() != nil {
					return nil
				}
				return fmt.Errorf("control group %d: %w", i, err)
			}
			if len(errs) > 0 {
				results[i] = errs.Prefixed(domain.JoinPath(prefix, strconv.Itoa(i)))
			}
			opts.Progress.step()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return domain.MergeErrorMaps(results...), nil
}

// controlGroup validates one direct child of the catch batch and marks it.
// Returned paths are relative to the group.
func (c *Controller) controlGroup(ctx context.Context, group *domain.Batch, index int, gc groupContext) (domain.ErrorMap, error) {
	if group.Label == "" || group.RankOrder == 0 {
		c.logger.Warn("sorting batch without label or rank order", "index", index)
	}
	taxonGroup := group.TaxonGroupLabel()
	noWeight := domain.ContainsTaxonGroup(gc.noWeight, taxonGroup)
	noLanding := domain.ContainsTaxonGroup(gc.noLanding, taxonGroup)
	enableSampling := gc.allowSampling || batchtree.SumObservedIndividualCount(group) > 0
	weightRequired := len(gc.weightSpecs) > 0 && !noWeight
	policy := defaultPolicy{
		specs:                   gc.weightSpecs,
		weightRequired:          weightRequired,
		individualCountRequired: noWeight,
		format:                  gc.format,
	}
	unitOpts := domain.FormOptions{
		AcquisitionLevel:        domain.AcquisitionSortingBatch,
		WeightSpecs:             gc.weightSpecs,
		QvPmfm:                  gc.qvPmfm,
		WeightRequired:          weightRequired,
		IndividualCountRequired: noWeight,
		EnableSamplingBatch:     enableSampling,
		SampleWeightRequired:    gc.allowSampling && gc.sampleRequired,
		IsOnFieldMode:           gc.onField,
	}

	errs := domain.ErrorMap{}
	if gc.qvPmfm == nil {
		policy.applyDefaults(group, noLanding, enableSampling, c.logger)
		unitErrs, err := c.validate(ctx, group, gc.speciesPmfms, unitOpts)
		if err != nil {
			return nil, err
		}
		errs.Merge(unitErrs)
	} else {
		groupOpts := domain.FormOptions{
			AcquisitionLevel: domain.AcquisitionSortingBatch,
			WeightSpecs:      gc.weightSpecs,
			IsOnFieldMode:    gc.onField,
		}
		groupErrs, err := c.validate(ctx, group, gc.speciesPmfms, groupOpts)
		if err != nil {
			return nil, err
		}
		errs.Merge(groupErrs)
		for j, child := range group.Children {
			if !child.IsSorting() {
				continue
			}
			policy.applyDefaults(child, noLanding, enableSampling, c.logger)
			childErrs, err := c.validate(ctx, child, gc.childrenPmfms, unitOpts)
			if err != nil {
				return nil, err
			}
			errs.Merge(childErrs.Prefixed(domain.JoinPath("children", strconv.Itoa(j))))
		}
	}

	if len(errs) == 0 {
		view := groupView{group: group, index: index, gc: gc, noWeight: noWeight, noLanding: noLanding}
		res, err := c.rules.Evaluate(ctx, view)
		if err != nil {
			return nil, fmt.Errorf("evaluate rules: %w", err)
		}
		for _, v := range res.Violations {
			if v.Severity != SeverityBlock {
				c.logger.Warn("group rule violation", "rule", v.Rule, "group", group.Label, "path", v.Path, "message", v.Message)
			}
		}
		errs.Merge(res.Errors())
	}

	if len(errs) > 0 {
		t := pathTranslator{pmfms: gc.pmfms, qv: gc.qvPmfm, group: group, prefix: taxonGroup}
		message := translateErrors(errs, t, "\n")
		c.logger.Info("sorting batch invalid", "label", group.Label, "message", strings.ReplaceAll(message, "\n", "; "))
		domain.MarkAsInvalid(group, message)
		return errs, nil
	}
	c.logger.Debug("sorting batch valid", "label", group.Label)
	domain.MarkAsControlled(group, domain.MarkedAt(c.clock.Now()))
	return nil, nil
}

// groupView exposes one sorting group to the group rules.
type groupView struct {
	group     *domain.Batch
	index     int
	gc        groupContext
	noWeight  bool
	noLanding bool
}

func (v groupView) Group() *domain.Batch             { return v.group }
func (v groupView) GroupIndex() int                  { return v.index }
func (v groupView) Program() domain.Program          { return v.gc.program }
func (v groupView) WeightSpecs() []domain.WeightSpec { return v.gc.weightSpecs }
func (v groupView) Pmfms() []domain.PmfmSpec         { return v.gc.pmfms }
func (v groupView) IsTaxonGroupNoWeight() bool       { return v.noWeight }
func (v groupView) IsTaxonGroupNoLanding() bool      { return v.noLanding }
func (v groupView) QvPmfm() (domain.PmfmSpec, bool) {
	if v.gc.qvPmfm == nil {
		return domain.PmfmSpec{}, false
	}
	return *v.gc.qvPmfm, true
}
