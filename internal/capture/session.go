package capture

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"bhasha/internal/config"
	"bhasha/internal/logging"
	"bhasha/internal/services"
)

// State is a recording session's lifecycle phase.
type State string

const (
	StateIdle      State = "idle"
	StateRecording State = "recording"
	StateStopped   State = "stopped"
	StateUploading State = "uploading"
	StateDiscarded State = "discarded"
)

// StopReason records why a session left the recording state.
type StopReason string

const (
	StopManual  StopReason = "manual"
	StopMaxTime StopReason = "max_duration"
)

// Recorder hands out recording sessions over a shared device. Each client
// key may hold at most one live session; starting a second one fails with
// ErrSessionConflict.
type Recorder struct {
	device      Device
	maxDuration int
	tickPeriod  time.Duration
	contentType string
	logger      *slog.Logger

	mu       sync.Mutex
	sessions map[string]*Session
}

// NewRecorder builds a recorder over device using the configured capture
// limits.
func NewRecorder(device Device, cfg *config.Config, logger *slog.Logger) *Recorder {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Recorder{
		device:      device,
		maxDuration: cfg.Capture.MaxDurationSeconds,
		tickPeriod:  cfg.FragmentPeriod(),
		contentType: "audio/webm",
		logger:      logging.WithComponent(logger, "capture"),
		sessions:    make(map[string]*Session),
	}
}

// Start acquires the device and begins a recording session for clientKey.
func (r *Recorder) Start(ctx context.Context, clientKey string) (*Session, error) {
	if clientKey == "" {
		return nil, services.Wrap(services.ErrInvalidInput, "capture", "start", "client key is required", nil)
	}

	r.mu.Lock()
	if existing, ok := r.sessions[clientKey]; ok && existing.live() {
		r.mu.Unlock()
		return nil, services.Wrap(services.ErrSessionConflict, "capture", "start",
			"client already has an active session "+existing.ID(), nil)
	}
	r.mu.Unlock()

	if err := r.device.Acquire(ctx); err != nil {
		return nil, err
	}

	session := &Session{
		id:          uuid.NewString(),
		clientKey:   clientKey,
		recorder:    r,
		device:      r.device,
		buffer:      NewChunkBuffer(),
		maxDuration: r.maxDuration,
		contentType: r.contentType,
		state:       StateRecording,
		startedAt:   time.Now().UTC(),
		stopped:     make(chan struct{}),
	}

	r.mu.Lock()
	if existing, ok := r.sessions[clientKey]; ok && existing.live() {
		r.mu.Unlock()
		_ = r.device.Release()
		return nil, services.Wrap(services.ErrSessionConflict, "capture", "start",
			"client already has an active session "+existing.ID(), nil)
	}
	r.sessions[clientKey] = session
	r.mu.Unlock()

	// Fragments arrive through the device hook; delivery after stop is
	// rejected by AppendFragment and dropped.
	r.device.OnFragment(func(fragment []byte) {
		_ = session.AppendFragment(fragment)
	})
	session.ticker = time.NewTicker(r.tickPeriod)
	go session.run()

	r.logger.Info("recording started",
		logging.String(logging.FieldSessionID, session.id),
		logging.String("device", r.device.Name()),
		logging.Int("max_duration_seconds", r.maxDuration))
	return session, nil
}

// Session returns the live session for clientKey, or nil.
func (r *Recorder) Session(clientKey string) *Session {
	r.mu.Lock()
	defer r.mu.Unlock()
	session, ok := r.sessions[clientKey]
	if !ok || !session.live() {
		return nil
	}
	return session
}

func (r *Recorder) forget(session *Session) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if current, ok := r.sessions[session.clientKey]; ok && current == session {
		delete(r.sessions, session.clientKey)
	}
}

// Session is one recording lifecycle: recording until stopped (manually or
// by the duration ceiling), then finalized for upload or discarded. The
// device is released the moment recording stops, before any upload work.
type Session struct {
	id          string
	clientKey   string
	recorder    *Recorder
	device      Device
	buffer      *ChunkBuffer
	maxDuration int
	contentType string
	ticker      *time.Ticker

	mu         sync.Mutex
	state      State
	elapsed    int
	stopReason StopReason
	startedAt  time.Time
	stopped    chan struct{}
}

// ID returns the session identifier.
func (s *Session) ID() string { return s.id }

// ClientKey returns the owning client key.
func (s *Session) ClientKey() string { return s.clientKey }

// State returns the current lifecycle phase.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Elapsed returns the tick-counted recording duration in seconds.
func (s *Session) Elapsed() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.elapsed
}

// StopReasonValue reports why recording ended, empty while recording.
func (s *Session) StopReasonValue() StopReason {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stopReason
}

// Stopped is closed once recording has ended for any reason.
func (s *Session) Stopped() <-chan struct{} { return s.stopped }

func (s *Session) live() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state == StateRecording || s.state == StateStopped || s.state == StateUploading
}

// AppendFragment adds an arriving media fragment. Fragments are only
// accepted while recording.
func (s *Session) AppendFragment(fragment []byte) error {
	s.mu.Lock()
	if s.state != StateRecording {
		state := s.state
		s.mu.Unlock()
		return services.Wrap(services.ErrInvalidInput, "capture", "append fragment",
			"session is "+string(state), nil)
	}
	s.mu.Unlock()
	return s.buffer.Append(fragment)
}

// Stop ends recording. Stopping an already stopped session is a no-op.
func (s *Session) Stop() {
	s.stop(StopManual)
}

func (s *Session) stop(reason StopReason) {
	s.mu.Lock()
	if s.state != StateRecording {
		s.mu.Unlock()
		return
	}
	s.state = StateStopped
	s.stopReason = reason
	s.mu.Unlock()

	// Release the device before anything else so the next session can
	// start while this one finalizes.
	s.ticker.Stop()
	s.device.OnFragment(nil)
	_ = s.device.Release()
	close(s.stopped)

	s.recorder.logger.Info("recording stopped",
		logging.String(logging.FieldSessionID, s.id),
		logging.String("reason", string(reason)),
		logging.Int("elapsed_seconds", s.Elapsed()),
		logging.Int("fragments", s.buffer.Len()))
}

func (s *Session) run() {
	for range s.ticker.C {
		s.mu.Lock()
		if s.state != StateRecording {
			s.mu.Unlock()
			return
		}
		s.elapsed++
		reached := s.elapsed >= s.maxDuration
		s.mu.Unlock()
		if reached {
			s.stop(StopMaxTime)
			return
		}
	}
}

// Finalize seals the buffer and moves the session to uploading. Only a
// stopped session can be finalized.
func (s *Session) Finalize() (*Artifact, error) {
	s.mu.Lock()
	if s.state != StateStopped {
		state := s.state
		s.mu.Unlock()
		return nil, services.Wrap(services.ErrInvalidInput, "capture", "finalize",
			"session is "+string(state), nil)
	}
	s.state = StateUploading
	elapsed := s.elapsed
	s.mu.Unlock()

	return s.buffer.Finalize(elapsed, s.contentType), nil
}

// Discard drops the buffered fragments and retires the session. Valid from
// recording (stops first) or stopped.
func (s *Session) Discard() error {
	s.stop(StopManual)

	s.mu.Lock()
	if s.state != StateStopped {
		state := s.state
		s.mu.Unlock()
		return services.Wrap(services.ErrInvalidInput, "capture", "discard",
			"session is "+string(state), nil)
	}
	s.state = StateDiscarded
	s.mu.Unlock()

	s.buffer.Reset()
	s.recorder.forget(s)
	s.recorder.logger.Info("recording discarded",
		logging.String(logging.FieldSessionID, s.id))
	return nil
}

// Complete retires an uploading session, freeing the client key.
func (s *Session) Complete() {
	s.mu.Lock()
	if s.state != StateUploading {
		s.mu.Unlock()
		return
	}
	s.state = StateIdle
	s.mu.Unlock()
	s.recorder.forget(s)
}
