package hunt

import (
	"context"
	"sync"
	"time"

	"github.com/emiliopalmerini/shinyhunt/internal/domain"
)

// TimerState is the persisted view of one session timer.
type TimerState struct {
	// IntervalStart is the last check anchor: when the open interval began.
	IntervalStart time.Time
	// SegmentStart is when the timer last started running (start, resume
	// or check).
	SegmentStart time.Time
	// Accumulated is the active time of the open interval.
	Accumulated time.Duration
	Running     bool
}

// TimerScheduler keeps one independent timer per live session. Each timer
// measures the active time of its session's open interval. Values are
// sampled from the clock on demand; Watch adds a per-second tick stream
// for display.
type TimerScheduler struct {
	clock Clock
	tick  time.Duration

	// mu guards membership of the map only. Timer state lives behind each
	// timer's own lock.
	mu     sync.RWMutex
	timers map[string]*sessionTimer
}

type sessionTimer struct {
	mu            sync.Mutex
	intervalStart time.Time
	segmentStart  time.Time
	banked        time.Duration
	running       bool
	done          chan struct{}
}

// NewTimerScheduler creates a scheduler ticking once per second.
func NewTimerScheduler(clock Clock) *TimerScheduler {
	return NewTimerSchedulerWithTick(clock, time.Second)
}

// NewTimerSchedulerWithTick creates a scheduler whose Watch streams tick
// at the given period.
func NewTimerSchedulerWithTick(clock Clock, tick time.Duration) *TimerScheduler {
	if clock == nil {
		clock = SystemClock()
	}
	if tick <= 0 {
		tick = time.Second
	}
	return &TimerScheduler{
		clock:  clock,
		tick:   tick,
		timers: make(map[string]*sessionTimer),
	}
}

// Start creates a running timer for id anchored now and returns the anchor.
// An existing timer for id is torn down first.
func (s *TimerScheduler) Start(id string) time.Time {
	now := s.clock.Now()
	s.install(id, &sessionTimer{
		intervalStart: now,
		segmentStart:  now,
		running:       true,
		done:          make(chan struct{}),
	})
	return now
}

// Restore installs a timer from persisted state.
func (s *TimerScheduler) Restore(id string, st TimerState) {
	if st.Accumulated < 0 {
		st.Accumulated = 0
	}
	s.install(id, &sessionTimer{
		intervalStart: st.IntervalStart,
		segmentStart:  st.SegmentStart,
		banked:        st.Accumulated,
		running:       st.Running,
		done:          make(chan struct{}),
	})
}

func (s *TimerScheduler) install(id string, t *sessionTimer) {
	s.mu.Lock()
	old := s.timers[id]
	s.timers[id] = t
	s.mu.Unlock()
	if old != nil {
		old.stop()
	}
}

func (s *TimerScheduler) get(id string) (*sessionTimer, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	t, ok := s.timers[id]
	return t, ok
}

// Pause stops the timer, banking the running segment into the open interval.
func (s *TimerScheduler) Pause(id string) error {
	t, ok := s.get(id)
	if !ok {
		return domain.ErrHuntNotFound
	}
	now := s.clock.Now()
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.running {
		t.banked = t.elapsedLocked(now)
		t.running = false
	}
	return nil
}

// Resume starts a new running segment of the open interval.
func (s *TimerScheduler) Resume(id string) error {
	t, ok := s.get(id)
	if !ok {
		return domain.ErrHuntNotFound
	}
	now := s.clock.Now()
	t.mu.Lock()
	defer t.mu.Unlock()
	if !t.running {
		t.segmentStart = now
		t.running = true
	}
	return nil
}

// CloseInterval ends the open interval and starts a new one at zero. It
// returns the active time of the closed interval and the new anchor.
func (s *TimerScheduler) CloseInterval(id string) (time.Duration, time.Time, error) {
	t, ok := s.get(id)
	if !ok {
		return 0, time.Time{}, domain.ErrHuntNotFound
	}
	now := s.clock.Now()
	t.mu.Lock()
	defer t.mu.Unlock()
	elapsed := t.elapsedLocked(now)
	t.banked = 0
	t.intervalStart = now
	t.segmentStart = now
	return elapsed, now, nil
}

// Elapsed returns the active time of the open interval at this instant.
func (s *TimerScheduler) Elapsed(id string) (time.Duration, bool) {
	t, ok := s.get(id)
	if !ok {
		return 0, false
	}
	now := s.clock.Now()
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.elapsedLocked(now), true
}

// State returns the timer state with Accumulated sampled now.
func (s *TimerScheduler) State(id string) (TimerState, bool) {
	t, ok := s.get(id)
	if !ok {
		return TimerState{}, false
	}
	now := s.clock.Now()
	t.mu.Lock()
	defer t.mu.Unlock()
	return TimerState{
		IntervalStart: t.intervalStart,
		SegmentStart:  t.segmentStart,
		Accumulated:   t.elapsedLocked(now),
		Running:       t.running,
	}, true
}

// Stop tears down the timer of id and closes its tick streams.
func (s *TimerScheduler) Stop(id string) {
	s.mu.Lock()
	t, ok := s.timers[id]
	delete(s.timers, id)
	s.mu.Unlock()
	if ok {
		t.stop()
	}
}

// StopAll tears down every timer.
func (s *TimerScheduler) StopAll() {
	s.mu.Lock()
	timers := s.timers
	s.timers = make(map[string]*sessionTimer)
	s.mu.Unlock()
	for _, t := range timers {
		t.stop()
	}
}

// Watch streams the whole seconds of the open interval once per tick while
// the session is Active. The stream pauses with the session, restarts at
// zero when the interval is closed, and is closed when the timer is torn
// down or ctx is done. Slow readers miss ticks rather than block.
func (s *TimerScheduler) Watch(ctx context.Context, id string) (<-chan int, error) {
	t, ok := s.get(id)
	if !ok {
		return nil, domain.ErrHuntNotFound
	}

	out := make(chan int, 1)
	go func() {
		defer close(out)
		ticker := time.NewTicker(s.tick)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-t.done:
				return
			case <-ticker.C:
				t.mu.Lock()
				running := t.running
				secs := int(t.elapsedLocked(s.clock.Now()) / time.Second)
				t.mu.Unlock()
				if !running {
					continue
				}
				select {
				case out <- secs:
				default:
				}
			}
		}
	}()
	return out, nil
}

func (t *sessionTimer) elapsedLocked(now time.Time) time.Duration {
	e := t.banked
	if t.running {
		e += now.Sub(t.segmentStart)
	}
	if e < 0 {
		return 0
	}
	return e
}

func (t *sessionTimer) stop() {
	t.mu.Lock()
	defer t.mu.Unlock()
	select {
	case <-t.done:
	default:
		close(t.done)
	}
}
