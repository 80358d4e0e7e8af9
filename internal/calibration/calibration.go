// Package calibration implements isotonic-regression confidence calibration:
// a monotone mapping from raw heuristic scores to probability-like
// calibrated confidences, trained from a ground-truth sample set.
package calibration

import (
	"encoding/json"
	"os"
	"sort"
	"sync"
)

// Sample is one training observation: a raw score and whether the field's
// extracted value was actually correct.
type Sample struct {
	RawScore float64
	Correct  bool
}

// Knot is one point of the fitted isotonic step function.
type Knot struct {
	Score      float64 `json:"score"`
	Calibrated float64 `json:"calibrated"`
}

// Model is a serializable isotonic-regression fit: a sorted list of knots.
// Calibrate interpolates between the two bracketing knots.
type Model struct {
	Knots []Knot `json:"knots"`
}

// Train fits a pool-adjacent-violators isotonic regression over samples,
// clipped to [0,1]. Duplicate raw scores are aggregated and the fit is
// weighted by their sample counts.
func Train(samples []Sample) (*Model, error) {
	if len(samples) == 0 {
		return &Model{}, nil
	}

	grouped := groupByScore(samples)
	sort.Slice(grouped, func(i, j int) bool { return grouped[i].score < grouped[j].score })

	values := make([]float64, len(grouped))
	weights := make([]float64, len(grouped))
	for i, g := range grouped {
		values[i] = g.correctFrac
		weights[i] = g.weight
	}

	fitted := pava(values, weights)

	knots := make([]Knot, len(grouped))
	for i, g := range grouped {
		c := clip01(fitted[i])
		knots[i] = Knot{Score: g.score, Calibrated: c}
	}

	return &Model{Knots: knots}, nil
}

type scoreGroup struct {
	score       float64
	correctFrac float64
	weight      float64
}

func groupByScore(samples []Sample) []scoreGroup {
	index := map[float64]*scoreGroup{}
	var order []float64
	for _, s := range samples {
		g, ok := index[s.RawScore]
		if !ok {
			g = &scoreGroup{score: s.RawScore}
			index[s.RawScore] = g
			order = append(order, s.RawScore)
		}
		g.weight++
		if s.Correct {
			g.correctFrac++
		}
	}
	groups := make([]scoreGroup, 0, len(order))
	for _, score := range order {
		g := index[score]
		g.correctFrac /= g.weight
		groups = append(groups, *g)
	}
	return groups
}

// pava is the pool-adjacent-violators algorithm: the classic O(n) isotonic fit.
func pava(values, weights []float64) []float64 {
	n := len(values)
	if n == 0 {
		return nil
	}

	// each pooled block tracks its weighted mean and total weight
	blockValue := append([]float64(nil), values...)
	blockWeight := append([]float64(nil), weights...)
	blockCount := make([]int, n)
	for i := range blockCount {
		blockCount[i] = 1
	}

	i := 0
	for i < len(blockValue)-1 {
		if blockValue[i] <= blockValue[i+1] {
			i++
			continue
		}
		// merge i and i+1, then walk back to re-check monotonicity
		totalWeight := blockWeight[i] + blockWeight[i+1]
		merged := (blockValue[i]*blockWeight[i] + blockValue[i+1]*blockWeight[i+1]) / totalWeight

		blockValue[i] = merged
		blockWeight[i] = totalWeight
		blockCount[i] += blockCount[i+1]

		blockValue = append(blockValue[:i+1], blockValue[i+2:]...)
		blockWeight = append(blockWeight[:i+1], blockWeight[i+2:]...)
		blockCount = append(blockCount[:i+1], blockCount[i+2:]...)

		if i > 0 {
			i--
		}
	}

	result := make([]float64, 0, n)
	for idx, v := range blockValue {
		for c := 0; c < blockCount[idx]; c++ {
			result = append(result, v)
		}
	}
	return result
}

func clip01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

// Calibrate maps a raw score through the model via linear interpolation
// between bracketing knots. A nil model is the identity mapping — no
// component may fail due to the model's absence.
func Calibrate(model *Model, score float64) float64 {
	if model == nil || len(model.Knots) == 0 {
		return clip01(score)
	}

	knots := model.Knots
	if score <= knots[0].Score {
		return knots[0].Calibrated
	}
	last := knots[len(knots)-1]
	if score >= last.Score {
		return last.Calibrated
	}

	for i := 1; i < len(knots); i++ {
		if score > knots[i].Score {
			continue
		}
		lo, hi := knots[i-1], knots[i]
		if hi.Score == lo.Score {
			return hi.Calibrated
		}
		t := (score - lo.Score) / (hi.Score - lo.Score)
		return lo.Calibrated + t*(hi.Calibrated-lo.Calibrated)
	}
	return last.Calibrated
}

// cache holds process-cached models keyed by path, invalidated on mtime change.
type cacheEntry struct {
	model *Model
	mtime int64
}

var (
	cacheMu sync.Mutex
	cache   = map[string]cacheEntry{}
)

// Load reads a model artifact from path, process-cached by path+mtime.
// Returns a nil Model (not an error) if path is empty — callers then operate
// on raw scores.
func Load(path string) (*Model, error) {
	if path == "" {
		return nil, nil
	}

	info, err := os.Stat(path)
	if err != nil {
		return nil, err
	}
	mtime := info.ModTime().UnixNano()

	cacheMu.Lock()
	if entry, ok := cache[path]; ok && entry.mtime == mtime {
		cacheMu.Unlock()
		return entry.model, nil
	}
	cacheMu.Unlock()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var m Model
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, err
	}

	cacheMu.Lock()
	cache[path] = cacheEntry{model: &m, mtime: mtime}
	cacheMu.Unlock()

	return &m, nil
}

// Save serializes the model to path as a sorted-knot JSON artifact.
func Save(model *Model, path string) error {
	data, err := json.MarshalIndent(model, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

// ValidationBin is one equal-frequency quantile bin of the validation command.
type ValidationBin struct {
	MeanRawScore     float64
	ObservedAccuracy float64
	Count            int
}

// ValidationReport bundles ECE/MCE and the recalibration flag.
type ValidationReport struct {
	Bins             []ValidationBin
	ECE              float64
	MCE              float64
	NeedsRecalibrate bool
	SampleCount      int
}

// Validate bins samples into 10 equal-frequency quantile bins (one bin per
// sample when there are fewer than 10 samples) and computes
// ECE/MCE, flagging recalibration at volume-aware thresholds: ECE > 0.05
// with >= 500 samples, relaxed to 0.08 with < 200.
func Validate(samples []Sample) ValidationReport {
	const numBins = 10
	n := len(samples)
	if n == 0 {
		return ValidationReport{}
	}

	sorted := append([]Sample(nil), samples...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].RawScore < sorted[j].RawScore })

	var bins []ValidationBin
	var ece, mce float64

	for b := 0; b < numBins; b++ {
		start := b * n / numBins
		end := (b + 1) * n / numBins
		if start == end {
			continue
		}
		chunk := sorted[start:end]

		scoreSum, correctSum := 0.0, 0.0
		for _, s := range chunk {
			scoreSum += s.RawScore
			if s.Correct {
				correctSum++
			}
		}
		meanScore := scoreSum / float64(len(chunk))
		accuracy := correctSum / float64(len(chunk))
		gap := abs(meanScore - accuracy)

		bins = append(bins, ValidationBin{MeanRawScore: meanScore, ObservedAccuracy: accuracy, Count: len(chunk)})
		ece += gap * float64(len(chunk)) / float64(n)
		if gap > mce {
			mce = gap
		}
	}

	threshold := 0.05
	if n < 200 {
		threshold = 0.08
	}
	needsRecalibrate := ece > threshold
	if n >= 500 {
		needsRecalibrate = ece > 0.05
	}

	return ValidationReport{Bins: bins, ECE: ece, MCE: mce, NeedsRecalibrate: needsRecalibrate, SampleCount: n}
}

func abs(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}
