// Package hotspot selects highlight windows without analysing the media.
// Output depends only on its inputs, so results can be cached and compared
// across runs.
package hotspot

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sort"

	"github.com/hszk-dev/clipstream/internal/domain/model"
)

// ErrInvalidInput is returned for non-positive lengths, durations or counts.
var ErrInvalidInput = errors.New("invalid highlight input")

// Offsets into the seeded value stream, so each concern draws from its own range.
const (
	permutationStream = 0
	startStream       = 1_000
	jitterStream      = 50_000
	drawsPerStrategy  = 64
)

// Config tunes window placement.
type Config struct {
	// MinGap is the minimum distance in seconds between window starts.
	MinGap float64
	// MaxResampleAttempts bounds seeded redraws after a collision.
	MaxResampleAttempts int
	// ScoreJitter is the maximum seeded deviation from the strategy weight.
	ScoreJitter float64
}

// DefaultConfig returns the production placement parameters.
func DefaultConfig() Config {
	return Config{
		MinGap:              30,
		MaxResampleAttempts: 5,
		ScoreJitter:         0.05,
	}
}

// Generator places highlight windows using the strategy library.
type Generator struct {
	cfg        Config
	strategies []Strategy
}

// NewGenerator creates a generator over Library.
func NewGenerator(cfg Config) *Generator {
	def := DefaultConfig()
	if cfg.MinGap <= 0 {
		cfg.MinGap = def.MinGap
	}
	if cfg.MaxResampleAttempts < 0 {
		cfg.MaxResampleAttempts = def.MaxResampleAttempts
	}
	if cfg.ScoreJitter < 0 {
		cfg.ScoreJitter = 0
	}
	return &Generator{
		cfg:        cfg,
		strategies: append([]Strategy(nil), Library...),
	}
}

type placed struct {
	strategy Strategy
	order    int
	start    float64
}

// Generate returns up to windowCount windows sorted by start.
func (g *Generator) Generate(resourceID model.ResourceID, windowLength, mediaDuration float64, windowCount int) ([]model.HighlightWindow, error) {
	if resourceID == "" {
		return nil, fmt.Errorf("empty resource id: %w", ErrInvalidInput)
	}
	if windowLength <= 0 || mediaDuration <= 0 || windowCount <= 0 {
		return nil, fmt.Errorf("length=%v duration=%v count=%d: %w", windowLength, mediaDuration, windowCount, ErrInvalidInput)
	}

	seed := Seed(string(resourceID))

	eligible := make([]Strategy, 0, len(g.strategies))
	for _, s := range g.strategies {
		lo, hi := s.bounds(mediaDuration)
		if hi-lo >= windowLength {
			eligible = append(eligible, s)
		}
	}

	if len(eligible) == 0 {
		return []model.HighlightWindow{g.fullWindow(seed, windowLength, mediaDuration)}, nil
	}

	permute(eligible, seed)

	// Windows never overlap, even when they are longer than the minimum gap.
	gap := math.Max(g.cfg.MinGap, windowLength)

	var chosen []placed
	for order, s := range eligible {
		if len(chosen) == windowCount {
			break
		}
		start, ok := g.place(s, order, seed, windowLength, mediaDuration, gap, chosen)
		if !ok {
			continue
		}
		chosen = append(chosen, placed{strategy: s, order: order, start: start})
	}

	if len(chosen) == 0 {
		return []model.HighlightWindow{g.fullWindow(seed, windowLength, mediaDuration)}, nil
	}

	sort.SliceStable(chosen, func(i, j int) bool { return chosen[i].start < chosen[j].start })

	windows := make([]model.HighlightWindow, len(chosen))
	for i, c := range chosen {
		windows[i] = model.HighlightWindow{
			Index:    i,
			Start:    c.start,
			End:      round3(math.Min(c.start+windowLength, mediaDuration)),
			Category: c.strategy.Category,
			Strategy: c.strategy.Name,
			Score:    g.score(c.strategy, seed, c.order),
			Captions: captionsFor(c.strategy.Category, i),
		}
	}
	return windows, nil
}

// SelectWindows adapts Generate to the pipeline's highlight selector contract.
func (g *Generator) SelectWindows(ctx context.Context, resourceID model.ResourceID, windowLength, mediaDuration float64, windowCount int) ([]model.HighlightWindow, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return g.Generate(resourceID, windowLength, mediaDuration, windowCount)
}

// place finds a start for s. It prefers seeded draws, then a sweep of the
// range; a start that violates the gap is only allowed against windows from
// disjoint ranges that it does not overlap.
func (g *Generator) place(s Strategy, order int, seed uint64, length, duration, gap float64, chosen []placed) (float64, bool) {
	lo, hi := s.bounds(duration)
	hi -= length

	candidates := make([]float64, 0, g.cfg.MaxResampleAttempts+1+drawsPerStrategy)
	for a := 0; a <= g.cfg.MaxResampleAttempts; a++ {
		v := SeededValue(seed, startStream+order*drawsPerStrategy+a)
		candidates = append(candidates, clampStart(lo+v*(hi-lo), lo, hi))
	}

	steps := drawsPerStrategy - 1
	for k := 0; k <= steps; k++ {
		candidates = append(candidates, clampStart(lo+(hi-lo)*float64(k)/float64(steps), lo, hi))
	}

	bestStart, bestDist, found := 0.0, -1.0, false
	for _, start := range candidates {
		minDist, compatible := math.Inf(1), true
		for _, c := range chosen {
			d := math.Abs(start - c.start)
			minDist = math.Min(minDist, d)
			if d >= gap {
				continue
			}
			if !s.disjoint(c.strategy) || overlaps(start, c.start, length) {
				compatible = false
			}
		}

		if minDist >= gap {
			return start, true
		}
		if compatible && minDist > bestDist {
			bestStart, bestDist, found = start, minDist, true
		}
	}
	return bestStart, found
}

func (g *Generator) fullWindow(seed uint64, length, duration float64) model.HighlightWindow {
	return model.HighlightWindow{
		Index:    0,
		Start:    0,
		End:      round3(math.Min(length, duration)),
		Category: fullStrategy.Category,
		Strategy: fullStrategy.Name,
		Score:    g.score(fullStrategy, seed, 0),
		Captions: captionsFor(fullStrategy.Category, 0),
	}
}

func (g *Generator) score(s Strategy, seed uint64, order int) float64 {
	jitter := (SeededValue(seed, jitterStream+order)*2 - 1) * g.cfg.ScoreJitter
	return round3(math.Max(0, math.Min(1, s.Weight+jitter)))
}

// permute shuffles strategies in place with a seeded Fisher-Yates pass.
func permute(strategies []Strategy, seed uint64) {
	for i := len(strategies) - 1; i > 0; i-- {
		j := int(SeededValue(seed, permutationStream+i) * float64(i+1))
		strategies[i], strategies[j] = strategies[j], strategies[i]
	}
}

func overlaps(a, b, length float64) bool {
	return a < b+length && b < a+length
}

// clampStart rounds down to the millisecond while staying inside [lo, hi].
func clampStart(v, lo, hi float64) float64 {
	v = math.Floor(v*1000) / 1000
	if v < lo {
		v = lo
	}
	if v > hi {
		v = hi
	}
	return v
}

func round3(v float64) float64 {
	return math.Round(v*1000) / 1000
}
