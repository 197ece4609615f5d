package workload

import (
	"math"
	"strings"

	"task-tracker/internal/model"
)

// Strategy selects how a task's remaining hours are spread over its days.
type Strategy int

const (
	Balanced Strategy = iota
	PriorityWeighted
	SizeWeighted
	DeadlineWeighted
)

var strategyNames = map[Strategy]string{
	Balanced:         "balanced",
	PriorityWeighted: "priority_weighted",
	SizeWeighted:     "size_weighted",
	DeadlineWeighted: "deadline_weighted",
}

// Strategies lists every strategy in display order.
var Strategies = []Strategy{Balanced, PriorityWeighted, SizeWeighted, DeadlineWeighted}

func (s Strategy) String() string {
	if name, ok := strategyNames[s]; ok {
		return name
	}
	return strategyNames[Balanced]
}

// ParseStrategy maps an identifier to a Strategy. Unknown or empty input
// yields Balanced.
func ParseStrategy(raw string) Strategy {
	key := strings.ToLower(strings.TrimSpace(raw))
	for s, name := range strategyNames {
		if name == key {
			return s
		}
	}
	return Balanced
}

var priorityWeights = map[model.Priority]float64{
	model.PriorityHigh:   2.0,
	model.PriorityMedium: 1.0,
	model.PriorityLow:    0.5,
}

// Allocate spreads remaining hours over days (days >= 1). The result has
// exactly days non-negative entries summing to remaining.
func (s Strategy) Allocate(remaining float64, days int, task model.Task) []float64 {
	switch s {
	case PriorityWeighted:
		return priorityWeighted(remaining, days, task.Priority)
	case SizeWeighted:
		return sizeWeighted(remaining, days, task.Size)
	case DeadlineWeighted:
		return deadlineWeighted(remaining, days)
	default:
		return balanced(remaining, days)
	}
}

func balanced(remaining float64, days int) []float64 {
	out := make([]float64, days)
	share := remaining / float64(days)
	for i := range out {
		out[i] = share
	}
	return out
}

// priorityWeighted front-loads with a harmonic decay. The priority weight is
// the decay exponent: a constant factor would cancel out in normalisation.
func priorityWeighted(remaining float64, days int, priority model.Priority) []float64 {
	w, ok := priorityWeights[priority]
	if !ok {
		w = 1.0
	}
	factors := make([]float64, days)
	for i := range factors {
		factors[i] = math.Pow(1/float64(i+1), w)
	}
	return normalize(factors, remaining)
}

// sizeWeighted boosts the first half of the span; on odd spans the middle
// day counts as first half.
func sizeWeighted(remaining float64, days int, size int) []float64 {
	size = min(max(size, model.MinSize), model.MaxSize)
	boost := 1 + float64(size)/5.0
	factors := make([]float64, days)
	for i := range factors {
		if 2*i < days {
			factors[i] = boost
		} else {
			factors[i] = 1
		}
	}
	return normalize(factors, remaining)
}

func deadlineWeighted(remaining float64, days int) []float64 {
	factors := make([]float64, days)
	for i := range factors {
		factors[i] = math.Pow(float64(i+1), 1.5)
	}
	return normalize(factors, remaining)
}

func normalize(factors []float64, remaining float64) []float64 {
	var total float64
	for _, f := range factors {
		total += f
	}
	if total <= 0 {
		return balanced(remaining, len(factors))
	}
	out := make([]float64, len(factors))
	for i, f := range factors {
		out[i] = f / total * remaining
	}
	return out
}
