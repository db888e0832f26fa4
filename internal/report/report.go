// Package report renders control outcomes as JSON or CSV reports and stores
// them in blob storage.
package report

import (
	"encoding/csv"
	"encoding/json"
	"io"
	"strconv"
	"time"

	"catchcore/internal/core"
	"catchcore/pkg/batchtree"
)

// Row is one batch of the controlled tree, in depth-first order.
type Row struct {
	Index           int      `json:"index"`
	ParentIndex     int      `json:"parentIndex"`
	Depth           int      `json:"depth"`
	Label           string   `json:"label"`
	Role            string   `json:"role"`
	RankOrder       int      `json:"rankOrder"`
	TaxonGroup      string   `json:"taxonGroup,omitempty"`
	IndividualCount *int     `json:"individualCount,omitempty"`
	Weight          *float64 `json:"weight,omitempty"`
	WeightComputed  bool     `json:"weightComputed,omitempty"`
	SamplingRatio   *float64 `json:"samplingRatio,omitempty"`
	QualityFlag     string   `json:"qualityFlag"`
	Comments        string   `json:"qualificationComments,omitempty"`
}

// FieldError is one entry of the control error map.
type FieldError struct {
	Path string `json:"path"`
	Code string `json:"code"`
}

// ControlReport summarises one control pass of an operation tree.
type ControlReport struct {
	ID           string       `json:"id"`
	OperationID  string       `json:"operationId"`
	Program      string       `json:"program"`
	State        string       `json:"state"`
	ControlledAt time.Time    `json:"controlledAt"`
	Errors       []FieldError `json:"errors"`
	Rows         []Row        `json:"batches"`
}

// New builds the report of outcome. Errors are ordered by path.
func New(id string, outcome core.ControlOutcome) ControlReport {
	r := ControlReport{
		ID:           id,
		OperationID:  outcome.OperationID,
		Program:      outcome.Program,
		State:        outcome.State.String(),
		ControlledAt: outcome.ControlledAt,
		Errors:       make([]FieldError, 0, len(outcome.Errors)),
	}
	for _, path := range outcome.Errors.Paths() {
		r.Errors = append(r.Errors, FieldError{Path: path, Code: outcome.Errors[path]})
	}

	for _, item := range batchtree.Flatten(outcome.Tree) {
		b := item.Batch
		row := Row{
			Index:           item.Index,
			ParentIndex:     item.ParentIndex,
			Depth:           item.Depth,
			Label:           b.Label,
			Role:            string(b.Role),
			RankOrder:       b.RankOrder,
			IndividualCount: b.IndividualCount,
			SamplingRatio:   b.SamplingRatio,
			QualityFlag:     b.QualityFlag.String(),
			Comments:        b.QualificationComments,
		}
		if b.TaxonGroup != nil {
			row.TaxonGroup = b.TaxonGroup.Label
		}
		if b.Weight != nil {
			v := b.Weight.Value
			row.Weight = &v
			row.WeightComputed = b.Weight.Computed
		}
		r.Rows = append(r.Rows, row)
	}
	return r
}

// Valid reports whether the control pass found no error.
func (r ControlReport) Valid() bool { return len(r.Errors) == 0 }

// WriteJSON writes the indented JSON document of the report.
func (r ControlReport) WriteJSON(w io.Writer) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(r)
}

var csvHeader = []string{
	"index", "parent_index", "depth", "label", "role", "rank_order", "taxon_group",
	"individual_count", "weight", "weight_computed", "sampling_ratio", "quality_flag", "comments",
}

// WriteCSV writes one line per batch. Empty cells stand for unset values.
func (r ControlReport) WriteCSV(w io.Writer) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(csvHeader); err != nil {
		return err
	}
	for _, row := range r.Rows {
		record := []string{
			strconv.Itoa(row.Index),
			strconv.Itoa(row.ParentIndex),
			strconv.Itoa(row.Depth),
			row.Label,
			row.Role,
			strconv.Itoa(row.RankOrder),
			row.TaxonGroup,
			optionalInt(row.IndividualCount),
			optionalFloat(row.Weight),
			strconv.FormatBool(row.WeightComputed),
			optionalFloat(row.SamplingRatio),
			row.QualityFlag,
			row.Comments,
		}
		if err := cw.Write(record); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

func optionalInt(v *int) string {
	if v == nil {
		return ""
	}
	return strconv.Itoa(*v)
}

func optionalFloat(v *float64) string {
	if v == nil {
		return ""
	}
	return strconv.FormatFloat(*v, 'f', -1, 64)
}
