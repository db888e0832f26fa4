// Package domain defines the catch batch tree entities, value types, and
// rule evaluation primitives used by catchcore.
package domain

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Role identifies the position of a batch within a catch tree.
type Role string

// Supported batch roles. A node's role is fixed at construction time and the
// textual label is derived from it.
const (
	// RoleCatch identifies the root node holding the total catch of an operation.
	RoleCatch Role = "catch"
	// RoleSorting identifies a species or category subdivision.
	RoleSorting Role = "sorting"
	// RoleSampling identifies the synthetic sub-sample child of a batch.
	RoleSampling Role = "sampling"
	// RoleIndividual identifies a leaf holding one measured specimen.
	RoleIndividual Role = "individual"
)

// Label constants used to render and parse batch labels.
const (
	CatchBatchLabel            = "CATCH_BATCH"
	SortingBatchLabelPrefix    = "SORTING_BATCH#"
	IndividualBatchLabelPrefix = "SORTING_BATCH_INDIVIDUAL#"
	SamplingBatchLabelSuffix   = "-SAMPLING"
)

// RoleFromLabel infers a role from a legacy textual label. It is only used when
// decoding payloads that carry no explicit role.
func RoleFromLabel(label string) Role {
	switch {
	case label == CatchBatchLabel:
		return RoleCatch
	case strings.HasSuffix(label, SamplingBatchLabelSuffix):
		return RoleSampling
	case strings.HasPrefix(label, IndividualBatchLabelPrefix):
		return RoleIndividual
	default:
		return RoleSorting
	}
}

// Valid reports whether the role is one of the known values.
func (r Role) Valid() bool {
	switch r {
	case RoleCatch, RoleSorting, RoleSampling, RoleIndividual:
		return true
	}
	return false
}

// UnitKilogram is the only weight unit handled by the engine.
const UnitKilogram = "kg"

// BatchWeight is the resolved weight of a batch.
type BatchWeight struct {
	Value     float64      `json:"value"`
	Unit      string       `json:"unit"`
	MethodID  WeightMethod `json:"methodId"`
	Computed  bool         `json:"computed"`
	Estimated bool         `json:"estimated"`
}

// Clone returns a copy of the weight, or nil.
func (w *BatchWeight) Clone() *BatchWeight {
	if w == nil {
		return nil
	}
	cp := *w
	return &cp
}

// Referential is an opaque reference to an external referential item (taxon group, taxon name).
type Referential struct {
	ID    int    `json:"id"`
	Label string `json:"label"`
	Name  string `json:"name,omitempty"`
}

// MeasurementValues holds raw PMFM-keyed values. Numbers are stored in their
// decimal text form; qualitative values hold the qualitative value id.
type MeasurementValues map[int]string

// Has reports whether a non-empty value is set for the pmfm.
func (m MeasurementValues) Has(pmfmID int) bool {
	return strings.TrimSpace(m[pmfmID]) != ""
}

// Float parses the value of the pmfm as a number.
func (m MeasurementValues) Float(pmfmID int) (float64, bool) {
	raw := strings.TrimSpace(m[pmfmID])
	if raw == "" {
		return 0, false
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, false
	}
	return v, true
}

// Int parses the value of the pmfm as an integer (e.g. a qualitative value id).
func (m MeasurementValues) Int(pmfmID int) (int, bool) {
	raw := strings.TrimSpace(m[pmfmID])
	if raw == "" {
		return 0, false
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, false
	}
	return v, true
}

// SetFloat stores a number using the shortest decimal representation.
func (m MeasurementValues) SetFloat(pmfmID int, v float64) {
	m[pmfmID] = strconv.FormatFloat(v, 'f', -1, 64)
}

// UnmarshalJSON accepts values written as strings, numbers, booleans or
// qualitative value references ({"id": n}). Null entries are dropped.
func (m *MeasurementValues) UnmarshalJSON(data []byte) error {
	var raw map[int]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	if raw == nil {
		*m = nil
		return nil
	}
	values := make(MeasurementValues, len(raw))
	for id, msg := range raw {
		v, ok, err := decodeMeasurement(msg)
		if err != nil {
			return fmt.Errorf("measurement value %d: %w", id, err)
		}
		if ok {
			values[id] = v
		}
	}
	*m = values
	return nil
}

func decodeMeasurement(msg json.RawMessage) (string, bool, error) {
	dec := json.NewDecoder(strings.NewReader(string(msg)))
	dec.UseNumber()
	var v any
	if err := dec.Decode(&v); err != nil {
		return "", false, err
	}
	switch t := v.(type) {
	case nil:
		return "", false, nil
	case string:
		return t, true, nil
	case json.Number:
		return t.String(), true, nil
	case bool:
		return strconv.FormatBool(t), true, nil
	case map[string]any:
		if id, ok := t["id"].(json.Number); ok {
			return id.String(), true, nil
		}
	}
	return "", false, fmt.Errorf("unsupported value %s", msg)
}

// Any reports whether at least one value is set.
func (m MeasurementValues) Any() bool {
	for id := range m {
		if m.Has(id) {
			return true
		}
	}
	return false
}

// Clone returns a copy of the values.
func (m MeasurementValues) Clone() MeasurementValues {
	if m == nil {
		return nil
	}
	cp := make(MeasurementValues, len(m))
	for k, v := range m {
		cp[k] = v
	}
	return cp
}

// Batch is a node of a catch tree. A parent exclusively owns its children.
type Batch struct {
	ID                    *int64            `json:"id,omitempty"`
	Role                  Role              `json:"role"`
	Label                 string            `json:"label"`
	RankOrder             int               `json:"rankOrder"`
	IndividualCount       *int              `json:"individualCount,omitempty"`
	Weight                *BatchWeight      `json:"weight,omitempty"`
	SamplingRatio         *float64          `json:"samplingRatio,omitempty"`
	SamplingRatioText     string            `json:"samplingRatioText,omitempty"`
	SamplingRatioComputed bool              `json:"samplingRatioComputed,omitempty"`
	TaxonGroup            *Referential      `json:"taxonGroup,omitempty"`
	TaxonName             *Referential      `json:"taxonName,omitempty"`
	MeasurementValues     MeasurementValues `json:"measurementValues,omitempty"`
	Comments              string            `json:"comments,omitempty"`
	QualityFlag           QualityFlag       `json:"qualityFlagId"`
	QualificationComments string            `json:"qualificationComments,omitempty"`
	ControlDate           *time.Time        `json:"controlDate,omitempty"`
	QualificationDate     *time.Time        `json:"qualificationDate,omitempty"`
	Children              []*Batch          `json:"children,omitempty"`
}

// NewCatchBatch constructs an empty root node.
func NewCatchBatch() *Batch {
	return &Batch{Role: RoleCatch, Label: CatchBatchLabel}
}

// NewSortingBatch constructs a sorting batch. The label is owned by the caller;
// an empty label defaults to the rank-based form.
func NewSortingBatch(label string, rankOrder int) *Batch {
	if label == "" {
		label = SortingBatchLabelPrefix + strconv.Itoa(rankOrder)
	}
	return &Batch{Role: RoleSorting, Label: label, RankOrder: rankOrder}
}

// NewSamplingBatch constructs the sampling child of parent. It is not attached.
func NewSamplingBatch(parent *Batch) *Batch {
	return &Batch{Role: RoleSampling, Label: SamplingLabel(parent.Label), RankOrder: 1}
}

// NewIndividualBatch constructs an individual leaf.
func NewIndividualBatch(rankOrder int) *Batch {
	return &Batch{Role: RoleIndividual, Label: IndividualLabel(rankOrder), RankOrder: rankOrder}
}

// SamplingLabel renders the label of the sampling child of a parent label.
func SamplingLabel(parentLabel string) string {
	return parentLabel + SamplingBatchLabelSuffix
}

// IndividualLabel renders the label of an individual leaf.
func IndividualLabel(rankOrder int) string {
	return IndividualBatchLabelPrefix + strconv.Itoa(rankOrder)
}

// IsCatch reports whether the node is the catch root.
func (b *Batch) IsCatch() bool { return b != nil && b.Role == RoleCatch }

// IsSorting reports whether the node is a sorting batch.
func (b *Batch) IsSorting() bool { return b != nil && b.Role == RoleSorting }

// IsSampling reports whether the node is a sampling batch.
func (b *Batch) IsSampling() bool { return b != nil && b.Role == RoleSampling }

// IsIndividual reports whether the node is an individual leaf.
func (b *Batch) IsIndividual() bool { return b != nil && b.Role == RoleIndividual }

// HasChildren reports whether the node owns at least one child.
func (b *Batch) HasChildren() bool { return b != nil && len(b.Children) > 0 }

// IsLanding reports whether the node is marked as landing through the
// discard-or-landing qualitative pmfm.
func (b *Batch) IsLanding() bool {
	qv, ok := b.MeasurementValues.Int(PmfmDiscardOrLanding)
	return ok && qv == QualitativeValueLanding
}

// IsDiscard reports whether the node is marked as discard.
func (b *Batch) IsDiscard() bool {
	qv, ok := b.MeasurementValues.Int(PmfmDiscardOrLanding)
	return ok && qv == QualitativeValueDiscard
}

// TaxonGroupLabel returns the label of the taxon group, or an empty string.
func (b *Batch) TaxonGroupLabel() string {
	if b == nil || b.TaxonGroup == nil {
		return ""
	}
	return b.TaxonGroup.Label
}

// EnsureMeasurementValues allocates the measurement map when needed.
func (b *Batch) EnsureMeasurementValues() MeasurementValues {
	if b.MeasurementValues == nil {
		b.MeasurementValues = MeasurementValues{}
	}
	return b.MeasurementValues
}

// SetSamplingRatio stores a ratio together with its text form.
func (b *Batch) SetSamplingRatio(ratio float64, text string, computed bool) {
	r := ratio
	b.SamplingRatio = &r
	b.SamplingRatioText = text
	b.SamplingRatioComputed = computed
}

// ClearSamplingRatio removes the ratio and its text form.
func (b *Batch) ClearSamplingRatio() {
	b.SamplingRatio = nil
	b.SamplingRatioText = ""
	b.SamplingRatioComputed = false
}

// Clone returns a deep copy of the node and its subtree.
func (b *Batch) Clone() *Batch {
	if b == nil {
		return nil
	}
	cp := *b
	if b.ID != nil {
		id := *b.ID
		cp.ID = &id
	}
	if b.IndividualCount != nil {
		n := *b.IndividualCount
		cp.IndividualCount = &n
	}
	if b.SamplingRatio != nil {
		r := *b.SamplingRatio
		cp.SamplingRatio = &r
	}
	if b.TaxonGroup != nil {
		tg := *b.TaxonGroup
		cp.TaxonGroup = &tg
	}
	if b.TaxonName != nil {
		tn := *b.TaxonName
		cp.TaxonName = &tn
	}
	if b.ControlDate != nil {
		d := *b.ControlDate
		cp.ControlDate = &d
	}
	if b.QualificationDate != nil {
		d := *b.QualificationDate
		cp.QualificationDate = &d
	}
	cp.Weight = b.Weight.Clone()
	cp.MeasurementValues = b.MeasurementValues.Clone()
	if b.Children != nil {
		cp.Children = make([]*Batch, len(b.Children))
		for i, child := range b.Children {
			cp.Children[i] = child.Clone()
		}
	}
	return &cp
}

// String renders a short description used in logs.
func (b *Batch) String() string {
	if b == nil {
		return "<nil>"
	}
	return fmt.Sprintf("%s(%s)", b.Label, b.Role)
}

// UnmarshalJSON decodes a batch. Payloads that carry no role infer it from the
// label once, at decode time.
func (b *Batch) UnmarshalJSON(data []byte) error {
	type alias Batch
	var raw alias
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	*b = Batch(raw)
	if b.Role == "" {
		b.Role = RoleFromLabel(b.Label)
	}
	if !b.Role.Valid() {
		return fmt.Errorf("batch %q: unknown role %q", b.Label, b.Role)
	}
	return nil
}

// IntPtr returns a pointer to v.
func IntPtr(v int) *int { return &v }

// FloatPtr returns a pointer to v.
func FloatPtr(v float64) *float64 { return &v }

// Int64Ptr returns a pointer to v.
func Int64Ptr(v int64) *int64 { return &v }
