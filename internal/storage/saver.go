package storage

import (
	"sync"
	"time"

	"github.com/matt0x6f/ircsession/internal/logger"
	"github.com/matt0x6f/ircsession/internal/metrics"
)

// Saver writes server snapshots in the background so callers never block
// on disk. Only the latest pending snapshot is written; intermediate ones
// are superseded.
type Saver struct {
	gw      Gateway
	mu      sync.Mutex
	pending map[string]ServerRecord
	dirty   bool
	wake    chan struct{}
	stopCh  chan struct{}
	wg      sync.WaitGroup
	closed  bool
}

// NewSaver starts the background writer for gw
func NewSaver(gw Gateway) *Saver {
	s := &Saver{
		gw:     gw,
		wake:   make(chan struct{}, 1),
		stopCh: make(chan struct{}),
	}
	s.wg.Add(1)
	go s.saveLoop()
	return s
}

// Submit queues records as the next snapshot to write
func (s *Saver) Submit(records map[string]ServerRecord) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		logger.Log.Debug().Msg("Saver closed, dropping snapshot")
		return
	}
	s.pending = records
	s.dirty = true
	s.mu.Unlock()

	select {
	case s.wake <- struct{}{}:
	default:
	}
}

// Close stops the background writer after writing any pending snapshot
func (s *Saver) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	s.mu.Unlock()

	close(s.stopCh)

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		logger.Log.Warn().Msg("saveLoop still running after 2s, giving up on final save")
	}
}

func (s *Saver) saveLoop() {
	defer s.wg.Done()
	for {
		select {
		case <-s.stopCh:
			s.flush()
			return
		case <-s.wake:
			s.flush()
		}
	}
}

func (s *Saver) flush() {
	s.mu.Lock()
	if !s.dirty {
		s.mu.Unlock()
		return
	}
	records := s.pending
	s.pending = nil
	s.dirty = false
	s.mu.Unlock()

	if err := s.gw.Save(records); err != nil {
		metrics.RecordSaveFailure()
		logger.Log.Error().Err(err).Int("count", len(records)).Msg("Error saving servers")
		return
	}
	logger.Log.Debug().Int("count", len(records)).Msg("Saved servers")
}
