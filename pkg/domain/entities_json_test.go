package domain

import (
	"encoding/json"
	"strings"
	"testing"
	"time"
)

func TestRoleFromLabel(t *testing.T) {
	cases := []struct {
		label string
		want  Role
	}{
		{CatchBatchLabel, RoleCatch},
		{"SORTING_BATCH#1", RoleSorting},
		{"SORTING_BATCH#1.LAN", RoleSorting},
		{"SORTING_BATCH#1-SAMPLING", RoleSampling},
		{"SORTING_BATCH_INDIVIDUAL#3", RoleIndividual},
	}
	for _, tc := range cases {
		t.Run(tc.label, func(t *testing.T) {
			if got := RoleFromLabel(tc.label); got != tc.want {
				t.Fatalf("expected %s, got %s", tc.want, got)
			}
		})
	}
}

func TestBatchJSONInfersMissingRole(t *testing.T) {
	payload := `{"label":"CATCH_BATCH","children":[{"label":"SORTING_BATCH#1","children":[{"label":"SORTING_BATCH#1-SAMPLING","children":[{"label":"SORTING_BATCH_INDIVIDUAL#1","measurementValues":{"91":"1.2"}}]}]}]}`
	var root Batch
	if err := json.Unmarshal([]byte(payload), &root); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if !root.IsCatch() {
		t.Fatalf("expected catch role, got %s", root.Role)
	}
	sorting := root.Children[0]
	sampling := sorting.Children[0]
	leaf := sampling.Children[0]
	if !sorting.IsSorting() || !sampling.IsSampling() || !leaf.IsIndividual() {
		t.Fatalf("unexpected roles %s %s %s", sorting.Role, sampling.Role, leaf.Role)
	}
	if v, ok := leaf.MeasurementValues.Float(PmfmBatchMeasuredWeight); !ok || v != 1.2 {
		t.Fatalf("expected measured weight 1.2, got %v %v", v, ok)
	}
}

func TestBatchJSONExplicitRoleWins(t *testing.T) {
	var b Batch
	if err := json.Unmarshal([]byte(`{"role":"sampling","label":"custom"}`), &b); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if !b.IsSampling() {
		t.Fatalf("expected explicit role to be kept")
	}
	if err := json.Unmarshal([]byte(`{"role":"bogus","label":"x"}`), &b); err == nil || !strings.Contains(err.Error(), "unknown role") {
		t.Fatalf("expected unknown role error, got %v", err)
	}
}

func TestBatchCloneIsDeep(t *testing.T) {
	now := time.Now()
	root := NewCatchBatch()
	group := NewSortingBatch("", 1)
	group.ID = Int64Ptr(7)
	group.IndividualCount = IntPtr(3)
	group.Weight = &BatchWeight{Value: 1, Unit: UnitKilogram}
	group.TaxonGroup = &Referential{ID: 1, Label: "COD"}
	group.ControlDate = &now
	group.EnsureMeasurementValues().SetFloat(PmfmBatchMeasuredWeight, 1)
	group.SetSamplingRatio(0.5, "50%", false)
	root.Children = []*Batch{group}

	cp := root.Clone()
	cpGroup := cp.Children[0]
	*cpGroup.ID = 8
	*cpGroup.IndividualCount = 4
	cpGroup.Weight.Value = 2
	cpGroup.TaxonGroup.Label = "HAD"
	cpGroup.MeasurementValues[PmfmBatchMeasuredWeight] = "2"
	*cpGroup.SamplingRatio = 0.1

	if *group.ID != 7 || *group.IndividualCount != 3 || group.Weight.Value != 1 || group.TaxonGroup.Label != "COD" {
		t.Fatalf("clone shares state with original: %+v", group)
	}
	if group.MeasurementValues[PmfmBatchMeasuredWeight] != "1" || *group.SamplingRatio != 0.5 {
		t.Fatalf("clone shares maps or pointers with original")
	}
}

func TestLandingDetection(t *testing.T) {
	b := NewSortingBatch("", 1)
	if b.IsLanding() || b.IsDiscard() {
		t.Fatalf("unmarked batch must be neither landing nor discard")
	}
	b.EnsureMeasurementValues()[PmfmDiscardOrLanding] = "190"
	if !b.IsLanding() {
		t.Fatalf("expected landing")
	}
	b.MeasurementValues[PmfmDiscardOrLanding] = "191"
	if !b.IsDiscard() || b.IsLanding() {
		t.Fatalf("expected discard")
	}
}

func TestQvPmfmSelection(t *testing.T) {
	twoValues := []QualitativeValue{{ID: 1}, {ID: 2}}
	dressing := PmfmSpec{ID: 11, Type: PmfmTypeQualitative, QualitativeValues: twoValues}
	landing := PmfmSpec{ID: PmfmDiscardOrLanding, Type: PmfmTypeQualitative, QualitativeValues: twoValues}

	if p, ok := QvPmfm([]PmfmSpec{dressing, landing}); !ok || p.ID != PmfmDiscardOrLanding {
		t.Fatalf("expected discard-or-landing to be preferred, got %+v", p)
	}
	if p, ok := QvPmfm([]PmfmSpec{dressing}); !ok || p.ID != 11 {
		t.Fatalf("expected first qualitative pmfm, got %+v", p)
	}
	length := PmfmSpec{ID: 12, Type: PmfmTypeDouble}
	if _, ok := QvPmfm([]PmfmSpec{length, dressing}); ok {
		t.Fatalf("qualitative pmfm must be first visible to split a group")
	}
	hiddenLanding := landing
	hiddenLanding.Hidden = true
	if p, ok := QvPmfm([]PmfmSpec{hiddenLanding, dressing}); !ok || p.ID != 11 {
		t.Fatalf("hidden pmfms must be skipped, got %+v", p)
	}
}

func TestWeightSpecHelpers(t *testing.T) {
	decimals := 6
	pmfms := []PmfmSpec{
		{ID: 1, Type: PmfmTypeDouble},
		{ID: PmfmBatchCalculatedWeightLength, IsWeight: true, MethodID: MethodCalculatedWeightLength, IsComputed: true, MaximumNumberDecimals: &decimals},
		{ID: PmfmBatchMeasuredWeight, IsWeight: true, MethodID: MethodMeasuredByObserver},
	}
	specs := WeightSpecsOf(pmfms)
	if len(specs) != 2 || specs[0].PmfmID != PmfmBatchCalculatedWeightLength || specs[0].Decimals() != 6 {
		t.Fatalf("unexpected specs %+v", specs)
	}
	if specs[1].Decimals() != DefaultMaximumNumberDecimals {
		t.Fatalf("expected default decimals, got %d", specs[1].Decimals())
	}
	if s, ok := FindWeightSpec(DefaultWeightSpecs(), MethodCalculated); !ok || s.PmfmID != PmfmBatchCalculatedWeight || !s.IsComputed {
		t.Fatalf("expected calculated default spec, got %+v", s)
	}
}

func TestWeightMethodParse(t *testing.T) {
	m, err := ParseWeightMethod("calculated_weight_length_sum")
	if err != nil || m != MethodCalculatedWeightLengthSum {
		t.Fatalf("parse: %v %v", m, err)
	}
	if _, err := ParseWeightMethod("guess"); err == nil {
		t.Fatalf("expected unknown method error")
	}
	if name := WeightMethod(999).String(); name != "METHOD_999" {
		t.Fatalf("unexpected fallback name %s", name)
	}
}

func TestMeasurementValuesJSONAcceptsNumbers(t *testing.T) {
	payload := `{"label":"SORTING_BATCH_INDIVIDUAL#1","measurementValues":{"91":1.2,"90":{"id":190,"label":"LAN"},"80":"3","81":null,"82":true}}`
	var b Batch
	if err := json.Unmarshal([]byte(payload), &b); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if v, ok := b.MeasurementValues.Float(PmfmBatchMeasuredWeight); !ok || v != 1.2 {
		t.Fatalf("expected measured weight 1.2, got %v %v", v, ok)
	}
	if !b.IsLanding() {
		t.Fatalf("expected qualitative value reference to decode as landing")
	}
	if got := b.MeasurementValues[80]; got != "3" {
		t.Fatalf("expected string value kept, got %q", got)
	}
	if _, ok := b.MeasurementValues[81]; ok {
		t.Fatalf("expected null value dropped")
	}
	if got := b.MeasurementValues[82]; got != "true" {
		t.Fatalf("expected boolean value, got %q", got)
	}

	out, err := json.Marshal(b.MeasurementValues)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	var again MeasurementValues
	if err := json.Unmarshal(out, &again); err != nil || again[91] != "1.2" {
		t.Fatalf("expected re-decoded values, got %v %v", again, err)
	}

	if err := json.Unmarshal([]byte(`{"91":[1]}`), &again); err == nil {
		t.Fatalf("expected error for array value")
	}
}
