package core

import (
	"context"
	"fmt"
	"strconv"

	"catchcore/pkg/batchtree"
	"catchcore/pkg/domain"
)

// controlSelectivity validates a tree recorded with the selectivity editor.
// Every direct child of the catch batch holds the catch of one child gear; its
// sorting pmfms are loaded for that gear when children gears are allowed.
// Errors are reported on the catch batch only.
func (c *Controller) controlSelectivity(ctx context.Context, tree *domain.Batch, opts ControlOptions) (domain.ErrorMap, error) {
	if opts.PhysicalGear == nil {
		return nil, domain.ErrMissingPhysicalGear
	}
	progress := opts.Progress
	progress.setTotal(1 + len(tree.Children))
	progress.setState(StateControllingCatch)

	allowSampling := c.allowSamplingBatches(opts)
	for _, child := range tree.Children {
		if batchtree.SumObservedIndividualCount(child) > 0 {
			allowSampling = true
			break
		}
	}

	gear := *opts.PhysicalGear
	if opts.Program.Bool(domain.PropertyAllowChildrenGears, false) && gear.Children == nil && c.gears != nil {
		children, err := c.gears.LoadChildGears(ctx, gear)
		if err != nil {
			return nil, fmt.Errorf("load children gears of %d: %w", gear.ID, err)
		}
		gear.Children = children
		c.logger.Debug("children gears loaded", "gear", gear.ID, "count", len(children))
	}
	gearID := opts.GearID
	if gearID == nil && gear.GearID != 0 {
		gearID = domain.IntPtr(gear.GearID)
	}

	weightSpecs, err := c.specs.LoadWeightSpecs(ctx, opts.Program.Label, gearID)
	if err != nil {
		return nil, fmt.Errorf("load weight specs: %w", err)
	}
	catchPmfms, err := c.specs.LoadSortingSpecs(ctx, opts.Program.Label, domain.AcquisitionCatchBatch, gearID)
	if err != nil {
		return nil, fmt.Errorf("load catch pmfms: %w", err)
	}
	sortingPmfms, err := c.specs.LoadSortingSpecs(ctx, opts.Program.Label, domain.AcquisitionSortingBatch, gearID)
	if err != nil {
		return nil, fmt.Errorf("load sorting pmfms: %w", err)
	}

	errs := domain.ErrorMap{}
	catchErrs, err := c.validate(ctx, tree, catchPmfms, domain.FormOptions{
		AcquisitionLevel: domain.AcquisitionCatchBatch,
		WeightSpecs:      weightSpecs,
		IsOnFieldMode:    opts.IsOnFieldMode,
	})
	if err != nil {
		return nil, err
	}
	errs.Merge(catchErrs)
	progress.step()
	translator := pathTranslator{pmfms: append(append([]domain.PmfmSpec(nil), catchPmfms...), sortingPmfms...)}

	progress.setState(StateControllingGroups)
	for i, child := range tree.Children {
		if c.stopped(ctx, progress) {
			return c.cancel(ctx, progress, errs.Prefixed(opts.ControlName))
		}
		pmfms := sortingPmfms
		if sub, ok := childGear(gear, i); ok && sub.GearID != 0 {
			if pmfms, err = c.specs.LoadSortingSpecs(ctx, opts.Program.Label, domain.AcquisitionSortingBatch, domain.IntPtr(sub.GearID)); err != nil {
				return nil, fmt.Errorf("load sorting pmfms of gear %d: %w", sub.GearID, err)
			}
			translator.pmfms = append(translator.pmfms, pmfms...)
		}
		childErrs, err := c.validate(ctx, child, pmfms, domain.FormOptions{
			AcquisitionLevel:    domain.AcquisitionSortingBatch,
			WeightSpecs:         weightSpecs,
			EnableSamplingBatch: allowSampling,
			WithChildren:        true,
			IsOnFieldMode:       opts.IsOnFieldMode,
		})
		if err != nil {
			if ctx.Err() != nil {
				return c.cancel(ctx, progress, errs.Prefixed(opts.ControlName))
			}
			return nil, err
		}
		errs.Merge(childErrs.Prefixed(domain.JoinPath("children", strconv.Itoa(i))))
		progress.step()
	}

	if len(errs) > 0 {
		message := translateErrors(errs, translator, "\n")
		c.logger.Info("selectivity catch invalid", "label", tree.Label, "errors", len(errs))
		domain.MarkAsInvalid(tree, message)
		return c.finish(progress, errs.Prefixed(opts.ControlName)), nil
	}
	domain.MarkAsControlled(tree, domain.MarkedAt(c.clock.Now()))
	return c.finish(progress, nil), nil
}

// childGear returns the child gear matching the i-th catch child, by rank
// order when set, else by position.
func childGear(gear domain.PhysicalGear, i int) (domain.PhysicalGear, bool) {
	for _, g := range gear.Children {
		if g.RankOrder == i+1 {
			return g, true
		}
	}
	if i < len(gear.Children) && gear.Children[i].RankOrder == 0 {
		return gear.Children[i], true
	}
	return domain.PhysicalGear{}, false
}
