package engine

import (
	"sync"
	"time"
)

const statsWindow = 10

// SourceStatView is the serialized per-source timing summary.
type SourceStatView struct {
	LastRuns   []float64 `json:"last_runs"` // seconds, newest last
	Max        float64   `json:"max"`
	TotalCount int64     `json:"total_count"`
	TotalTime  float64   `json:"total_time"`
}

type sourceStat struct {
	lastRuns   []float64
	max        float64
	totalCount int64
	totalTime  float64
}

// SourceStats keeps a rolling window of per-source run durations.
type SourceStats struct {
	mu    sync.Mutex
	stats map[string]*sourceStat
}

func NewSourceStats() *SourceStats {
	return &SourceStats{stats: make(map[string]*sourceStat)}
}

func (s *SourceStats) Record(source string, d time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()

	stat, ok := s.stats[source]
	if !ok {
		stat = &sourceStat{}
		s.stats[source] = stat
	}

	seconds := d.Seconds()
	stat.lastRuns = append(stat.lastRuns, seconds)
	if len(stat.lastRuns) > statsWindow {
		stat.lastRuns = stat.lastRuns[len(stat.lastRuns)-statsWindow:]
	}
	if seconds > stat.max {
		stat.max = seconds
	}
	stat.totalCount++
	stat.totalTime += seconds
}

func (s *SourceStats) Snapshot() map[string]SourceStatView {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make(map[string]SourceStatView, len(s.stats))
	for name, stat := range s.stats {
		runs := make([]float64, len(stat.lastRuns))
		copy(runs, stat.lastRuns)
		out[name] = SourceStatView{
			LastRuns:   runs,
			Max:        stat.max,
			TotalCount: stat.totalCount,
			TotalTime:  stat.totalTime,
		}
	}
	return out
}
