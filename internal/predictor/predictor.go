// Package predictor turns a candidate universe's feature vectors into a
// single entry recommendation: the highest-probability symbol clearing the
// 0.5 threshold, or no candidate at all. The no-candidate outcome is
// modeled with moznion/go-optional rather than a sentinel empty string, so
// Strategy can never mistake "no trade today" for a zero-value symbol
// (spec §4.6 point 4, §9 "Predictor-no-candidate pattern").
package predictor

import (
	"sort"

	"github.com/moznion/go-optional"

	"github.com/kisquant/daytrader/internal/features"
	"github.com/kisquant/daytrader/pkg/errors"
)

// Scorer is the opaque model-inference boundary. The production
// implementation is WasmScorer, a WebAssembly module loaded from
// onnx_model.model_path; tests use a stub. Grounded on the teacher's indicator.Config(params...)/
// RawValue(params...) variadic-call shape generalized to a fixed-arity
// scoring call, since the model's input dimensionality is fixed by
// features.FieldNames.
type Scorer interface {
	// Score returns the model's predicted probability of a favorable move
	// for the candidate whose feature vector is featureVector.
	Score(featureVector []float64) (probability float64, err error)
}

// Threshold is the minimum probability required for a candidate to be
// eligible for selection at all (spec §4.6 point 4).
const Threshold = 0.5

// Predictor ranks a day's candidates and picks at most one entry symbol.
type Predictor struct {
	scorer Scorer
}

// New constructs a Predictor around scorer.
func New(scorer Scorer) *Predictor {
	return &Predictor{scorer: scorer}
}

// scored pairs a candidate symbol with its model probability.
type scored struct {
	symbol      string
	probability float64
}

// Predict scores every candidate, keeps only those at or above Threshold,
// and returns the highest-probability symbol. Ties break on the
// candidates slice order (first one scored highest wins), giving a
// deterministic result for a fixed candidate ordering. An empty or
// all-sub-threshold candidate set returns optional.None, never an error:
// "no entry today" is a normal outcome, not a failure (spec §9).
func (p *Predictor) Predict(candidates []features.Candidate) (optional.Option[string], error) {
	if len(candidates) == 0 {
		return optional.None[string](), nil
	}

	eligible := make([]scored, 0, len(candidates))

	for _, c := range candidates {
		if len(c.Vector) != len(features.FieldNames) {
			return optional.None[string](), errors.Newf(errors.ErrCodeFeatureVectorLength, "candidate %s has %d features, expected %d", c.Symbol, len(c.Vector), len(features.FieldNames))
		}

		prob, err := p.scorer.Score(c.Vector)
		if err != nil {
			return optional.None[string](), errors.Wrapf(errors.ErrCodePredictionModelIO, err, "scoring failed for %s", c.Symbol)
		}

		if prob >= Threshold {
			eligible = append(eligible, scored{symbol: c.Symbol, probability: prob})
		}
	}

	if len(eligible) == 0 {
		return optional.None[string](), nil
	}

	sort.SliceStable(eligible, func(i, j int) bool {
		return eligible[i].probability > eligible[j].probability
	})

	return optional.Some(eligible[0].symbol), nil
}

// NopScorer is a test-only Scorer returning a fixed probability regardless
// of input, letting Strategy/Runner tests exercise the entry path without
// an ONNX model on disk.
type NopScorer struct {
	Probability float64
}

var _ Scorer = NopScorer{}

// Score implements Scorer.
func (s NopScorer) Score(featureVector []float64) (float64, error) {
	return s.Probability, nil
}
