package domain

import "context"

// SpecProvider supplies pmfm specs in priority order.
type SpecProvider interface {
	LoadWeightSpecs(ctx context.Context, programLabel string, gearID *int) ([]WeightSpec, error)
	LoadSortingSpecs(ctx context.Context, programLabel string, level AcquisitionLevel, gearID *int) ([]PmfmSpec, error)
}

// PhysicalGear is the gear a fishing operation was made with.
type PhysicalGear struct {
	ID        int            `json:"id"`
	GearID    int            `json:"gearId"`
	RankOrder int            `json:"rankOrder"`
	Label     string         `json:"label,omitempty"`
	Children  []PhysicalGear `json:"children,omitempty"`
}

// GearLoader loads the children of a physical gear when they were not fetched.
type GearLoader interface {
	LoadChildGears(ctx context.Context, gear PhysicalGear) ([]PhysicalGear, error)
}
