package models

import (
	"fmt"
	"math"
	"unicode/utf8"
)

// SiblingSumTolerance is the allowed deviation of a sibling cohort's
// probability sum from 1.0.
const SiblingSumTolerance = 1e-3

// Synthesis output bounds: between 1 and 5 outcomes per call, each with a
// minimally descriptive event string.
const (
	MinOutcomes    = 1
	MaxOutcomes    = 5
	MinEventLength = 10
)

// ProbabilityOutput is one outcome emitted by probability synthesis.
type ProbabilityOutput struct {
	Event       string  `json:"event"`
	Probability float64 `json:"probability"`
}

// ValidateOutcomes checks the raw synthesis output against the schema:
// 1-5 items, event length >= 10, probability in [0,1].
func ValidateOutcomes(outs []ProbabilityOutput) error {
	if len(outs) < MinOutcomes || len(outs) > MaxOutcomes {
		return fmt.Errorf("expected between %d and %d outcomes, got %d", MinOutcomes, MaxOutcomes, len(outs))
	}
	for i, o := range outs {
		if utf8.RuneCountInString(o.Event) < MinEventLength {
			return fmt.Errorf("outcome %d: event too short (%q)", i, o.Event)
		}
		if o.Probability < 0 || o.Probability > 1 || math.IsNaN(o.Probability) {
			return fmt.Errorf("outcome %d: probability %v out of [0,1]", i, o.Probability)
		}
	}
	return nil
}

// NormalizeOutcomes scales the outcome probabilities in place so they sum to 1.
// A zero total distributes equally (1/k). If the sum is still off by more than
// SiblingSumTolerance after one renormalization pass, an error is returned and
// the caller treats it as a schema failure.
func NormalizeOutcomes(outs []ProbabilityOutput) error {
	if len(outs) == 0 {
		return fmt.Errorf("no outcomes to normalize")
	}

	sum := 0.0
	for _, o := range outs {
		sum += o.Probability
	}
	if sum == 0 {
		equal := 1.0 / float64(len(outs))
		for i := range outs {
			outs[i].Probability = equal
		}
		return nil
	}
	for i := range outs {
		outs[i].Probability /= sum
	}

	if d := sumDeviation(outs); d > SiblingSumTolerance {
		// One corrective pass; floating point should never need more.
		sum = 0.0
		for _, o := range outs {
			sum += o.Probability
		}
		for i := range outs {
			outs[i].Probability /= sum
		}
		if d := sumDeviation(outs); d > SiblingSumTolerance {
			return fmt.Errorf("probabilities failed to normalize: deviation %v", d)
		}
	}
	return nil
}

func sumDeviation(outs []ProbabilityOutput) float64 {
	sum := 0.0
	for _, o := range outs {
		sum += o.Probability
	}
	return math.Abs(sum - 1.0)
}
