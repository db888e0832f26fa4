package report

import (
	"bytes"
	"context"
	"encoding/csv"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"catchcore/internal/blob"
	"catchcore/internal/core"
	"catchcore/internal/program"
	"catchcore/internal/validation"
	"catchcore/pkg/domain"
)

var controlledAt = time.Date(2024, 3, 1, 8, 30, 0, 0, time.UTC)

func sampleOutcome() core.ControlOutcome {
	root := domain.NewCatchBatch()
	group := domain.NewSortingBatch("", 1)
	group.TaxonGroup = &domain.Referential{ID: 1, Label: "HKE"}
	group.Weight = &domain.BatchWeight{Value: 10, Unit: domain.UnitKilogram, MethodID: domain.MethodMeasuredByObserver}
	group.QualityFlag = domain.QualityFlagBad
	group.QualificationComments = "HKE > Sampling weight: value too high"
	sampling := domain.NewSamplingBatch(group)
	sampling.Weight = &domain.BatchWeight{Value: 12, Unit: domain.UnitKilogram, Computed: true}
	group.Children = []*domain.Batch{sampling}
	root.Children = []*domain.Batch{group}
	return core.ControlOutcome{
		OperationID:  "op-1",
		Program:      "SUMARiS",
		State:        core.StateInvalid,
		Errors:       domain.ErrorMap{"children.0.children.0.weight.value": domain.ErrorMax, "catch.measurementValues.1": domain.ErrorRequired},
		Tree:         root,
		ControlledAt: controlledAt,
	}
}

func sequentialIDs() func() string {
	n := 0
	return func() string {
		n++
		return fmt.Sprintf("r%d", n)
	}
}

func TestNewReport(t *testing.T) {
	r := New("r1", sampleOutcome())

	assert.Equal(t, "INVALID", r.State)
	assert.False(t, r.Valid())
	require.Len(t, r.Errors, 2)
	assert.Equal(t, FieldError{Path: "catch.measurementValues.1", Code: domain.ErrorRequired}, r.Errors[0])

	require.Len(t, r.Rows, 3)
	assert.Equal(t, -1, r.Rows[0].ParentIndex)
	group := r.Rows[1]
	assert.Equal(t, "HKE", group.TaxonGroup)
	assert.Equal(t, "BAD", group.QualityFlag)
	require.NotNil(t, group.Weight)
	assert.InDelta(t, 10.0, *group.Weight, 1e-9)
	assert.Equal(t, 1, r.Rows[2].ParentIndex)
	assert.True(t, r.Rows[2].WeightComputed)
}

func TestWriteCSV(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, New("r1", sampleOutcome()).WriteCSV(&buf))

	records, err := csv.NewReader(&buf).ReadAll()
	require.NoError(t, err)
	require.Len(t, records, 4)
	assert.Equal(t, csvHeader, records[0])
	assert.Equal(t, "CATCH_BATCH", records[1][3])
	assert.Equal(t, "", records[1][8], "unset weight renders empty")
	assert.Equal(t, "SORTING_BATCH#1", records[2][3])
	assert.Equal(t, "10", records[2][8])
	assert.Equal(t, "HKE > Sampling weight: value too high", records[2][12])
	assert.Equal(t, "SORTING_BATCH#1-SAMPLING", records[3][3])
}

func TestPublisherWritesBothFormats(t *testing.T) {
	ctx := context.Background()
	store := blob.NewMemory()
	p := NewPublisher(store, WithFormat(FormatBoth), WithIDGenerator(sequentialIDs()))

	infos, err := p.PublishReport(ctx, sampleOutcome())
	require.NoError(t, err)
	require.Len(t, infos, 2)
	assert.Equal(t, "reports/op-1/r1.json", infos[0].Key)
	assert.Equal(t, "reports/op-1/r1.csv", infos[1].Key)
	assert.Equal(t, "INVALID", infos[0].Metadata["state"])

	listed, err := List(ctx, store, "op-1")
	require.NoError(t, err)
	assert.Len(t, listed, 2)

	loaded, err := Load(ctx, store, "reports/op-1/r1.json")
	require.NoError(t, err)
	assert.Equal(t, "r1", loaded.ID)
	assert.True(t, loaded.ControlledAt.Equal(controlledAt))
	assert.Len(t, loaded.Rows, 3)
}

func TestPublisherErrors(t *testing.T) {
	ctx := context.Background()
	store := blob.NewMemory()
	fixed := func() string { return "same" }
	p := NewPublisher(store, WithIDGenerator(fixed))

	require.NoError(t, p.Publish(ctx, sampleOutcome()))
	err := p.Publish(ctx, sampleOutcome())
	require.Error(t, err)
	assert.ErrorIs(t, err, blob.ErrExists)

	empty := sampleOutcome()
	empty.OperationID = ""
	assert.Error(t, p.Publish(ctx, empty))

	_, err = Load(ctx, store, "reports/op-1/missing.json")
	assert.ErrorIs(t, err, blob.ErrNotFound)
}

func TestParseFormat(t *testing.T) {
	for in, want := range map[string]Format{"": FormatJSON, "JSON": FormatJSON, "csv": FormatCSV, " both ": FormatBoth} {
		got, err := ParseFormat(in)
		require.NoError(t, err)
		assert.Equal(t, want, got)
	}
	_, err := ParseFormat("xml")
	assert.Error(t, err)
}

func TestServicePublishesReports(t *testing.T) {
	ctx := context.Background()
	store := blob.NewMemory()
	programs := program.NewProvider(nil)
	require.NoError(t, programs.Register(program.Config{Label: "SUMARiS"}))
	svc := core.NewInMemoryService(programs, validation.NewBuilder(),
		core.WithOutcomePublisher(NewPublisher(store, WithIDGenerator(sequentialIDs()))),
		core.WithClock(core.ClockFunc(func() time.Time { return controlledAt })),
	)
	tree := domain.NewCatchBatch()
	group := domain.NewSortingBatch("", 1)
	group.TaxonGroup = &domain.Referential{ID: 2, Label: "COD"}
	group.Weight = &domain.BatchWeight{Value: 4, Unit: domain.UnitKilogram, MethodID: domain.MethodMeasuredByObserver}
	tree.Children = []*domain.Batch{group}
	require.NoError(t, svc.Store().Put(ctx, "op-7", tree))

	outcome, err := svc.ControlTree(ctx, "op-7", core.ControlOptions{Program: domain.Program{Label: "SUMARiS"}})
	require.NoError(t, err)
	assert.Equal(t, core.StateValid, outcome.State)

	r, err := Load(ctx, store, Key("op-7", "r1", "json"))
	require.NoError(t, err)
	assert.True(t, r.Valid())
	assert.Equal(t, "VALID", r.State)
	assert.Equal(t, "SUMARiS", r.Program)
}
