package audio

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/averyhollis/voicegate/internal/stt"
)

// checkInterval is how often the silence check runs. A tunable constant, not
// load-bearing: flush timing is gated by the config durations.
const checkInterval = 200 * time.Millisecond

// Config holds the segmentation policy. Immutable after construction;
// changing it means constructing a new Segmenter.
type Config struct {
	SampleRate       int
	MinChunkDuration time.Duration
	MaxChunkDuration time.Duration
	SilenceThreshold float64 // peak amplitude in [0,1]
	SilenceDuration  time.Duration
}

// DefaultConfig returns segmentation defaults tuned for 16 kHz speech.
func DefaultConfig() Config {
	return Config{
		SampleRate:       16000,
		MinChunkDuration: 1 * time.Second,
		MaxChunkDuration: 30 * time.Second,
		SilenceThreshold: 0.01,
		SilenceDuration:  1500 * time.Millisecond,
	}
}

// Transcriber is the slice of the speech engine the segmenter needs.
// *stt.Engine satisfies it.
type Transcriber interface {
	Initialize() error
	Transcribe(ctx context.Context, samples []float32) (*stt.TranscriptionResult, error)
}

// Segmenter converts a continuous feed of audio samples into discrete
// transcription results. Segment boundaries are silence-gated: a flush
// happens once enough audio is buffered and the speaker has paused, or
// immediately when the buffer reaches capacity.
//
// Flush dispatch is serialized. The engine is not reentrant, so a segment
// that becomes ready while a transcription is in flight is queued (depth 1)
// and dispatched when the in-flight call resolves; if a further segment
// becomes ready while one is already queued, the queued one is dropped with
// a warning. Because dispatch is serialized, transcript emission order
// always matches flush order.
type Segmenter struct {
	cfg        config
	engine     Transcriber
	classifier Classifier
	logger     zerolog.Logger

	mu         sync.Mutex
	running    bool
	buf        *Buffer
	lastActive time.Time
	stopTick   chan struct{}

	inFlight bool
	pending  *flushReq

	onTranscript func(*stt.TranscriptionResult)
	onError      func(error)
}

// config is Config with derived values resolved.
type config struct {
	Config
	capacity int
}

type flushReq struct {
	samples []float32
	final   bool
}

// NewSegmenter creates a Segmenter feeding the given engine. A nil
// classifier selects peak-amplitude detection with cfg.SilenceThreshold.
func NewSegmenter(cfg Config, engine Transcriber, classifier Classifier, logger zerolog.Logger) *Segmenter {
	if cfg.SampleRate <= 0 {
		cfg.SampleRate = 16000
	}
	if cfg.MaxChunkDuration <= 0 {
		cfg.MaxChunkDuration = 30 * time.Second
	}
	if classifier == nil {
		classifier = PeakClassifier{Threshold: cfg.SilenceThreshold}
	}

	capacity := int(float64(cfg.SampleRate) * cfg.MaxChunkDuration.Seconds())

	return &Segmenter{
		cfg:        config{Config: cfg, capacity: capacity},
		engine:     engine,
		classifier: classifier,
		logger:     logger.With().Str("component", "segmenter").Logger(),
		buf:        NewBuffer(capacity),
	}
}

// OnTranscript registers the transcript callback. Callbacks fire in flush
// order, one at a time.
func (s *Segmenter) OnTranscript(fn func(*stt.TranscriptionResult)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onTranscript = fn
}

// OnError registers the callback for flush failures. Flush failures never
// stop the segmenter.
func (s *Segmenter) OnError(fn func(error)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onError = fn
}

// Start initializes the speech engine and begins the periodic silence
// check. Idempotent: a second Start without an intervening Stop is a no-op.
func (s *Segmenter) Start() error {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return nil
	}
	s.mu.Unlock()

	// Engine init can touch disk and network; do it outside the lock.
	if err := s.engine.Initialize(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running {
		return nil
	}
	s.running = true
	s.buf.Reset()
	s.lastActive = time.Now()
	s.stopTick = make(chan struct{})
	go s.tickLoop(s.stopTick)

	s.logger.Info().
		Dur("minChunk", s.cfg.MinChunkDuration).
		Dur("maxChunk", s.cfg.MaxChunkDuration).
		Dur("silence", s.cfg.SilenceDuration).
		Msg("Segmenter started")
	return nil
}

// FeedAudio appends samples to the buffer, tracking voice activity. A single
// logical writer is assumed. When the buffer reaches capacity the segment is
// flushed immediately and the remaining samples continue into the fresh
// buffer, so no audio is dropped at the forced cutoff.
func (s *Segmenter) FeedAudio(samples []float32) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.running || len(samples) == 0 {
		return
	}

	if s.classifier.Active(samples) {
		s.lastActive = time.Now()
	}

	for len(samples) > 0 {
		n := s.buf.Append(samples)
		samples = samples[n:]
		if s.buf.Full() {
			s.flushLocked(false)
		}
	}
}

// Stop cancels the periodic check and, if at least MinChunkDuration of audio
// is buffered, performs one final flush so a near-complete utterance is not
// discarded. Results of flushes already in flight are discarded once stopped.
func (s *Segmenter) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.running {
		return
	}
	s.running = false
	close(s.stopTick)
	s.stopTick = nil

	if s.buf.Duration(s.cfg.SampleRate) >= s.cfg.MinChunkDuration {
		s.flushLocked(true)
	} else {
		s.buf.Reset()
	}

	s.logger.Info().Msg("Segmenter stopped")
}

// Running reports whether the segmenter is active.
func (s *Segmenter) Running() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

// BufferedDuration returns the duration of audio currently buffered.
func (s *Segmenter) BufferedDuration() time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.buf.Duration(s.cfg.SampleRate)
}

func (s *Segmenter) tickLoop(stop chan struct{}) {
	ticker := time.NewTicker(checkInterval)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			s.check()
		}
	}
}

// check applies the core VAD policy: flush once enough audio is buffered and
// the silence gap is long enough.
func (s *Segmenter) check() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.running {
		return
	}

	buffered := s.buf.Duration(s.cfg.SampleRate)
	sinceActive := time.Since(s.lastActive)

	if buffered >= s.cfg.MinChunkDuration && sinceActive >= s.cfg.SilenceDuration {
		s.flushLocked(false)
	}
}

// flushLocked snapshots the buffer and dispatches transcription. Caller must
// hold s.mu. The snapshot happens synchronously here, before any async work,
// so a flush never reads while a FeedAudio write is in progress.
func (s *Segmenter) flushLocked(final bool) {
	if s.buf.Len() == 0 {
		return
	}

	req := flushReq{samples: s.buf.Snapshot(), final: final}

	if s.inFlight {
		if s.pending != nil {
			s.logger.Warn().
				Int("samples", len(s.pending.samples)).
				Msg("Dropping queued segment, transcription falling behind")
		}
		s.pending = &req
		return
	}

	s.inFlight = true
	go s.runFlush(req)
}

// runFlush transcribes one snapshot, emits the result, then loops into the
// pending snapshot if one queued up meanwhile. Emission happens before the
// next dispatch, which keeps transcript order equal to flush order. A loop
// rather than re-dispatch so a sustained backlog stays flat on one goroutine.
func (s *Segmenter) runFlush(req flushReq) {
	for {
		result, err := s.engine.Transcribe(context.Background(), req.samples)

		s.mu.Lock()
		emit := s.running || req.final
		onTranscript := s.onTranscript
		onError := s.onError
		s.mu.Unlock()

		if emit {
			if err != nil {
				s.logger.Error().Err(err).Int("samples", len(req.samples)).Msg("Flush transcription failed")
				if onError != nil {
					onError(err)
				}
			} else if onTranscript != nil {
				onTranscript(result)
			}
		}

		s.mu.Lock()
		if s.pending == nil {
			s.inFlight = false
			s.mu.Unlock()
			return
		}
		req = *s.pending
		s.pending = nil
		s.mu.Unlock()
	}
}
