package domain

import (
	"fmt"
	"strings"
)

// WeightMethod identifies how a weight value was obtained. Values match the
// referential method ids.
type WeightMethod int

// Known weight methods.
const (
	MethodUnknown                   WeightMethod = 0
	MethodMeasuredByObserver        WeightMethod = 1
	MethodObservedByObserver        WeightMethod = 2
	MethodEstimatedByObserver       WeightMethod = 3
	MethodCalculated                WeightMethod = 4
	MethodCalculatedWeightLength    WeightMethod = 47
	MethodCalculatedWeightLengthSum WeightMethod = 283
)

var weightMethodNames = map[WeightMethod]string{
	MethodMeasuredByObserver:        "MEASURED_BY_OBSERVER",
	MethodObservedByObserver:        "OBSERVED_BY_OBSERVER",
	MethodEstimatedByObserver:       "ESTIMATED_BY_OBSERVER",
	MethodCalculated:                "CALCULATED",
	MethodCalculatedWeightLength:    "CALCULATED_WEIGHT_LENGTH",
	MethodCalculatedWeightLengthSum: "CALCULATED_WEIGHT_LENGTH_SUM",
}

func (m WeightMethod) String() string {
	if name, ok := weightMethodNames[m]; ok {
		return name
	}
	return fmt.Sprintf("METHOD_%d", int(m))
}

// ParseWeightMethod resolves a method from its symbolic name.
func ParseWeightMethod(name string) (WeightMethod, error) {
	upper := strings.ToUpper(strings.TrimSpace(name))
	for m, n := range weightMethodNames {
		if n == upper {
			return m, nil
		}
	}
	return MethodUnknown, fmt.Errorf("unknown weight method %q", name)
}

// QualityFlag is the qualification state of a batch. Values match the
// referential quality flag ids.
type QualityFlag int

// Known quality flags.
const (
	QualityFlagNotQualified QualityFlag = 0
	QualityFlagGood         QualityFlag = 1
	QualityFlagOutStats     QualityFlag = 2
	QualityFlagDoubtful     QualityFlag = 3
	QualityFlagBad          QualityFlag = 4
	QualityFlagFixed        QualityFlag = 5
	QualityFlagNotCompleted QualityFlag = 8
	QualityFlagMissing      QualityFlag = 9
)

func (q QualityFlag) String() string {
	switch q {
	case QualityFlagNotQualified:
		return "NOT_QUALIFIED"
	case QualityFlagGood:
		return "GOOD"
	case QualityFlagOutStats:
		return "OUT_STATS"
	case QualityFlagDoubtful:
		return "DOUBTFUL"
	case QualityFlagBad:
		return "BAD"
	case QualityFlagFixed:
		return "FIXED"
	case QualityFlagNotCompleted:
		return "NOT_COMPLETED"
	case QualityFlagMissing:
		return "MISSING"
	default:
		return fmt.Sprintf("QUALITY_FLAG_%d", int(q))
	}
}

// Pmfm and qualitative value ids referenced directly by the engine.
const (
	PmfmDiscardOrLanding               = 90
	PmfmBatchMeasuredWeight            = 91
	PmfmBatchEstimatedWeight           = 92
	PmfmBatchCalculatedWeight          = 93
	PmfmBatchCalculatedWeightLength    = 122
	PmfmBatchCalculatedWeightLengthSum = 123

	QualitativeValueLanding = 190
	QualitativeValueDiscard = 191
)

// AcquisitionLevel selects the pmfm strategy applied to a level of the tree.
type AcquisitionLevel string

// Acquisition levels used when loading sorting specs.
const (
	AcquisitionCatchBatch      AcquisitionLevel = "CATCH_BATCH"
	AcquisitionSortingBatch    AcquisitionLevel = "SORTING_BATCH"
	AcquisitionIndividualBatch AcquisitionLevel = "SORTING_BATCH_INDIVIDUAL"
)
