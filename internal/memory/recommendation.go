package memory

import (
	"encoding/json"
	"fmt"
	"time"
)

// RecommendationKind names the pattern that triggered a Recommendation.
type RecommendationKind string

const (
	RecommendationLeakSuspected     RecommendationKind = "leak_suspected"
	RecommendationSustainedHigh     RecommendationKind = "sustained_high_memory"
	RecommendationFrequentGC        RecommendationKind = "frequent_gc"
	RecommendationPermanentFallback RecommendationKind = "permanent_fallback"
)

// Recommendation is an advisory-only finding emitted by the recommendation
// engine or the leak heuristic. Nothing in the controller acts on these
// automatically; a human (or the orchestrator's run summary) decides.
type Recommendation struct {
	Timestamp time.Time
	Kind      RecommendationKind
	Message   string
}

// checkLeak implements the leak heuristic of §4.7: over the rolling leak
// window, growth must exceed LeakThresholdMB, the first-half and
// second-half growth must both be positive (monotonic enough to not be
// noise), the window must not currently be under HIGH/CRITICAL pressure,
// and none of the last 5 recommendations may already be a leak report.
func (c *Controller) checkLeak(at time.Time) *Recommendation {
	c.mu.Lock()
	defer c.mu.Unlock()

	window := samplesWithin(c.history, at, c.cfg.LeakWindow)
	if len(window) < 3 {
		return nil
	}
	start := window[0]
	mid := window[len(window)/2]
	end := window[len(window)-1]

	growth := end.RSSMB - start.RSSMB
	if growth <= c.cfg.LeakThresholdMB {
		return nil
	}
	if !(mid.RSSMB-start.RSSMB > 0 && end.RSSMB-mid.RSSMB > 0) {
		return nil
	}
	if end.Pressure == PressureHigh || end.Pressure == PressureCritical {
		return nil
	}
	if recentlyRecommended(c.recs, RecommendationLeakSuspected, 5) {
		return nil
	}

	return &Recommendation{
		Timestamp: at,
		Kind:      RecommendationLeakSuspected,
		Message:   fmt.Sprintf("RSS grew %.1f MB over the last %s with no pressure relief; possible leak", growth, c.cfg.LeakWindow),
	}
}

func samplesWithin(history []Sample, at time.Time, window time.Duration) []Sample {
	cutoff := at.Add(-window)
	var out []Sample
	for _, s := range history {
		if !s.Timestamp.Before(cutoff) && !s.Timestamp.After(at) {
			out = append(out, s)
		}
	}
	return out
}

func recentlyRecommended(recs []Recommendation, kind RecommendationKind, lastN int) bool {
	start := 0
	if len(recs) > lastN {
		start = len(recs) - lastN
	}
	for _, r := range recs[start:] {
		if r.Kind == kind {
			return true
		}
	}
	return false
}

// EmitRecommendations runs the full recommendation engine (leak heuristic
// plus the three pattern checks below) and appends any findings to the
// controller's recommendation log. Intended to be called on a cron cadence
// of RecommendationWindow; requires at least MinSamplesForRecommendation
// samples to have anything to say.
func (c *Controller) EmitRecommendations(at time.Time) []Recommendation {
	c.mu.Lock()
	enough := len(c.history) >= c.cfg.MinSamplesForRecommendation
	c.mu.Unlock()
	if !enough {
		return nil
	}

	var found []Recommendation
	if rec := c.checkLeak(at); rec != nil {
		found = append(found, *rec)
	}
	if rec := c.checkSustainedHigh(at); rec != nil {
		found = append(found, *rec)
	}
	if rec := c.checkFrequentGC(at); rec != nil {
		found = append(found, *rec)
	}
	if rec := c.checkPermanentFallback(at); rec != nil {
		found = append(found, *rec)
	}

	if len(found) > 0 {
		c.mu.Lock()
		c.recs = append(c.recs, found...)
		c.mu.Unlock()
	}
	return found
}

// checkSustainedHigh recommends reducing concurrency when every sample in
// the recommendation window is HIGH or CRITICAL.
func (c *Controller) checkSustainedHigh(at time.Time) *Recommendation {
	c.mu.Lock()
	window := samplesWithin(c.history, at, c.cfg.RecommendationWindow)
	c.mu.Unlock()
	if len(window) < c.cfg.MinSamplesForRecommendation {
		return nil
	}
	for _, s := range window {
		if s.Pressure != PressureHigh && s.Pressure != PressureCritical {
			return nil
		}
	}
	return &Recommendation{
		Timestamp: at,
		Kind:      RecommendationSustainedHigh,
		Message:   fmt.Sprintf("memory pressure has stayed HIGH/CRITICAL for the last %s; consider reducing worker concurrency", c.cfg.RecommendationWindow),
	}
}

// checkFrequentGC recommends raising the GC trigger threshold when more
// than 3 forced collections happened within the recommendation window.
func (c *Controller) checkFrequentGC(at time.Time) *Recommendation {
	c.mu.Lock()
	defer c.mu.Unlock()
	cutoff := at.Add(-c.cfg.RecommendationWindow)
	count := 0
	for _, t := range c.gcHistory {
		if !t.Before(cutoff) && !t.After(at) {
			count++
		}
	}
	if count <= 3 {
		return nil
	}
	return &Recommendation{
		Timestamp: at,
		Kind:      RecommendationFrequentGC,
		Message:   fmt.Sprintf("%d forced GCs in the last %s; consider raising gc_trigger_mb", count, c.cfg.RecommendationWindow),
	}
}

// checkPermanentFallback recommends raising the memory limit when the
// controller has stayed at LevelFallback for the entire recommendation
// window.
func (c *Controller) checkPermanentFallback(at time.Time) *Recommendation {
	c.mu.Lock()
	level := c.level
	window := samplesWithin(c.history, at, c.cfg.RecommendationWindow)
	c.mu.Unlock()
	if level != LevelFallback || len(window) < c.cfg.MinSamplesForRecommendation {
		return nil
	}
	for _, s := range window {
		if s.Pressure != PressureCritical {
			return nil
		}
	}
	return &Recommendation{
		Timestamp: at,
		Kind:      RecommendationPermanentFallback,
		Message:   fmt.Sprintf("optimization level has stayed FALLBACK for the last %s; consider raising the memory limit or reducing shard count", c.cfg.RecommendationWindow),
	}
}

// Recommendations returns a copy of every recommendation emitted so far.
func (c *Controller) Recommendations() []Recommendation {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]Recommendation, len(c.recs))
	copy(out, c.recs)
	return out
}

// Profile is the JSON-exportable dump of a controller's run: history plus
// every recommendation emitted, per §4.7's "Export" operation.
type Profile struct {
	History         []Sample         `json:"history"`
	Recommendations []Recommendation `json:"recommendations"`
}

// Export dumps the controller's history and recommendations as JSON,
// callable on demand or at run end.
func (c *Controller) Export() ([]byte, error) {
	c.mu.Lock()
	profile := Profile{
		History:         append([]Sample(nil), c.history...),
		Recommendations: append([]Recommendation(nil), c.recs...),
	}
	c.mu.Unlock()

	data, err := json.MarshalIndent(profile, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("memory: export profile: %w", err)
	}
	return data, nil
}
