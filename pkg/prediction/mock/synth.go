package mock

import (
	"math"
	"math/rand/v2"
	"slices"
	"sort"
	"strings"

	"github.com/cespare/xxhash/v2"

	"mercator-hq/prognos/pkg/prediction"
)

// levels lists the risk and response levels in ascending order.
var levels = []string{
	prediction.LevelVeryLow,
	prediction.LevelLow,
	prediction.LevelModerate,
	prediction.LevelHigh,
	prediction.LevelVeryHigh,
}

// band is a half-open score interval [lo, hi).
type band struct {
	level  string
	lo, hi float64
}

// Severity keywords, checked in this order.
var keywordBands = []struct {
	keyword string
	band    band
}{
	{"severe", band{prediction.LevelVeryHigh, 0.80, 0.95}},
	{"moderate", band{prediction.LevelModerate, 0.40, 0.60}},
	{"mild", band{prediction.LevelLow, 0.10, 0.30}},
}

// levelBands are the score intervals used when no keyword applies.
var levelBands = map[string]band{
	prediction.LevelVeryLow:  {prediction.LevelVeryLow, 0.00, 0.10},
	prediction.LevelLow:      {prediction.LevelLow, 0.10, 0.30},
	prediction.LevelModerate: {prediction.LevelModerate, 0.30, 0.60},
	prediction.LevelHigh:     {prediction.LevelHigh, 0.60, 0.80},
	prediction.LevelVeryHigh: {prediction.LevelVeryHigh, 0.80, 0.95},
}

func (b band) draw(r *rand.Rand) float64 {
	return b.lo + r.Float64()*(b.hi-b.lo)
}

// patientHash is the stable hash behind keyword-less predictions.
func patientHash(patientID string) uint64 {
	return xxhash.Sum64String(patientID)
}

// patientRand returns a generator seeded by the patient hash, so
// keyword-less predictions repeat for the same patient.
func patientRand(h uint64) *rand.Rand {
	return rand.New(rand.NewPCG(h, h>>1|1))
}

// severity returns the first severity keyword found in any string value of
// data, or "" when there is none.
func severity(data ...map[string]any) string {
	var texts []string
	for _, d := range data {
		texts = collectStrings(d, texts)
	}
	for _, kb := range keywordBands {
		for _, t := range texts {
			if strings.Contains(t, kb.keyword) {
				return kb.keyword
			}
		}
	}
	return ""
}

func collectStrings(v any, out []string) []string {
	switch x := v.(type) {
	case string:
		return append(out, strings.ToLower(x))
	case map[string]any:
		for _, val := range x {
			out = collectStrings(val, out)
		}
	case []any:
		for _, val := range x {
			out = collectStrings(val, out)
		}
	case []string:
		for _, val := range x {
			out = append(out, strings.ToLower(val))
		}
	}
	return out
}

// keywordBand returns the band for a severity keyword.
func keywordBand(keyword string) (band, bool) {
	for _, kb := range keywordBands {
		if kb.keyword == keyword {
			return kb.band, true
		}
	}
	return band{}, false
}

// hashBand maps a patient hash bucket (0-99) to a band. With a distribution
// the bucket is placed on the cumulative percentages of the five levels;
// without one the fixed split 40/30/20/10 over low..very_high is used.
func hashBand(bucket uint64, distribution map[string]float64) band {
	if len(distribution) > 0 {
		var cum float64
		for _, level := range levels {
			cum += distribution[level]
			if float64(bucket) < cum {
				return levelBands[level]
			}
		}
		return levelBands[prediction.LevelVeryHigh]
	}

	switch {
	case bucket < 40:
		return levelBands[prediction.LevelLow]
	case bucket < 70:
		return levelBands[prediction.LevelModerate]
	case bucket < 90:
		return levelBands[prediction.LevelHigh]
	default:
		return levelBands[prediction.LevelVeryHigh]
	}
}

// levelFor maps a score in [0,1] to a level.
func levelFor(score float64) string {
	for _, level := range levels {
		if score < levelBands[level].hi {
			return level
		}
	}
	return prediction.LevelVeryHigh
}

// features returns the default features of modelType followed by the sorted
// keys of every data map, without duplicates.
func features(modelType string, data ...map[string]any) []string {
	out := append([]string(nil), defaultFeatures[modelType]...)
	var keys []string
	for _, d := range data {
		for k := range d {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	for _, k := range keys {
		if !slices.Contains(out, k) {
			out = append(out, k)
		}
	}
	return out
}

// importance draws a weight per feature and normalizes the vector to sum
// to 1.
func importance(r *rand.Rand, names []string) map[string]float64 {
	weights := make(map[string]float64, len(names))
	var total float64
	for _, name := range names {
		w := 0.05 + r.Float64()
		weights[name] = w
		total += w
	}
	for name := range weights {
		weights[name] /= total
	}
	return weights
}

// topFactors returns the n most important features as factors.
func topFactors(weights map[string]float64, n int) []prediction.Factor {
	r := prediction.BarChart(weights).Features
	if len(r) > n {
		r = r[:n]
	}
	factors := make([]prediction.Factor, len(r))
	for i, fw := range r {
		factors[i] = prediction.Factor{Name: fw.Feature, Weight: round(fw.Importance)}
	}
	return factors
}

func confidence(r *rand.Rand) float64 {
	return round(0.70 + r.Float64()*0.25)
}

func clamp01(v float64) float64 {
	return math.Max(0, math.Min(1, v))
}

// round keeps four decimal places.
func round(v float64) float64 {
	return math.Round(v*1e4) / 1e4
}

// adjustments suggests treatment changes for a response level.
func adjustments(level string) []string {
	switch level {
	case prediction.LevelVeryLow, prediction.LevelLow:
		return []string{
			"Consider dose optimization",
			"Consider augmentation with psychotherapy",
			"Reassess diagnosis and treatment adherence",
		}
	case prediction.LevelModerate:
		return []string{
			"Monitor response at 4 weeks",
			"Consider adjunctive psychosocial support",
		}
	default:
		return []string{"Continue current treatment plan"}
	}
}

// horizonShift nudges expected response by prediction horizon.
var horizonShift = map[string]float64{
	prediction.HorizonShortTerm:  -0.05,
	prediction.HorizonMediumTerm: 0,
	prediction.HorizonLongTerm:   0.05,
}

// severityResponse is the expected treatment response for a severity keyword.
var severityResponse = map[string]float64{
	"severe":   0.35,
	"moderate": 0.55,
	"mild":     0.70,
}

// outcomeMetrics lists the metrics reported per outcome type.
var outcomeMetrics = map[string][]string{
	prediction.OutcomeSymptom:       {"symptom_reduction", "remission_probability"},
	prediction.OutcomeFunctional:    {"functional_improvement", "return_to_work_probability"},
	prediction.OutcomeQualityOfLife: {"quality_of_life_improvement", "wellbeing_score"},
	prediction.OutcomeComprehensive: {
		"symptom_reduction", "remission_probability",
		"functional_improvement", "return_to_work_probability",
		"quality_of_life_improvement", "wellbeing_score",
	},
}

// progress is the fraction of achievable improvement reached after days.
func progress(days int) float64 {
	return 1 - math.Exp(-float64(days)/90)
}
