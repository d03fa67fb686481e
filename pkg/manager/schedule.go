package manager

import (
	"math/rand"
	"sort"
	"sync"
	"time"
)

// Scheduler draws a fresh set of random run times for every calendar day.
type Scheduler struct {
	runs  int
	loc   *time.Location
	start time.Duration
	end   time.Duration

	mu    sync.Mutex
	rng   *rand.Rand
	day   time.Time
	times []time.Time
}

// NewScheduler builds a Scheduler from cfg. rng may be nil.
func NewScheduler(cfg ScheduleConfig, rng *rand.Rand) *Scheduler {
	if rng == nil {
		rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	start, end := cfg.start, cfg.end
	if end <= start {
		start, end = 0, 24*time.Hour
	}
	return &Scheduler{runs: cfg.RunsPerDay, loc: cfg.Location(), start: start, end: end, rng: rng}
}

// Next returns the first planned run strictly after now. Days without any
// remaining run roll over to the next day's plan, which is drawn at that
// point. A day's plan is never redrawn once made. With zero runs per day it
// returns the zero time.
func (s *Scheduler) Next(now time.Time) time.Time {
	if s.runs <= 0 {
		return time.Time{}
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	now = now.In(s.loc)
	day := midnight(now)
	if !s.day.IsZero() && day.Before(s.day) {
		day = s.day
	}
	for {
		if !s.day.Equal(day) {
			s.plan(day)
		}
		for _, t := range s.times {
			if t.After(now) {
				return t
			}
		}
		day = day.AddDate(0, 0, 1)
	}
}

// Plan returns the run times drawn for the current day, if any.
func (s *Scheduler) Plan() []time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]time.Time(nil), s.times...)
}

func (s *Scheduler) plan(day time.Time) {
	span := int64(s.end - s.start)
	times := make([]time.Time, 0, s.runs)
	for i := 0; i < s.runs; i++ {
		offset := s.start + time.Duration(s.rng.Int63n(span))
		times = append(times, day.Add(offset.Truncate(time.Second)))
	}
	sort.Slice(times, func(i, j int) bool { return times[i].Before(times[j]) })
	s.day = day
	s.times = times
}

func midnight(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}
