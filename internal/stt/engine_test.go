package stt

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/rs/zerolog"
)

type stubProvider struct {
	name       string
	transcribe func(ctx context.Context, samples []float32) (*TranscriptionResult, error)
	closed     bool
}

func (s *stubProvider) Name() string { return s.name }
func (s *stubProvider) Transcribe(ctx context.Context, samples []float32) (*TranscriptionResult, error) {
	return s.transcribe(ctx, samples)
}
func (s *stubProvider) Close() error {
	s.closed = true
	return nil
}

func staticFactory(p Provider, err error) ProviderFactory {
	return func(opts Options, logger zerolog.Logger) (Provider, error) {
		if err != nil {
			return nil, err
		}
		return p, nil
	}
}

func newStubEngine(factories ...ProviderFactory) *Engine {
	return &Engine{logger: zerolog.Nop(), factories: factories}
}

func TestEngine_Initialize_FallsBack(t *testing.T) {
	second := &stubProvider{name: "second"}
	e := newStubEngine(
		staticFactory(nil, fmt.Errorf("%w: nothing here", ErrEngineUnavailable)),
		staticFactory(second, nil),
	)

	if err := e.Initialize(); err != nil {
		t.Fatalf("initialize: %v", err)
	}
	if e.Provider() != "second" {
		t.Errorf("provider = %q, want second", e.Provider())
	}

	// Idempotent.
	if err := e.Initialize(); err != nil {
		t.Fatalf("second initialize: %v", err)
	}
}

func TestEngine_Initialize_ModelMissingWins(t *testing.T) {
	e := newStubEngine(
		staticFactory(nil, fmt.Errorf("%w: no ggml-base.bin", ErrModelNotFound)),
		staticFactory(nil, fmt.Errorf("%w: server down", ErrEngineUnavailable)),
	)

	err := e.Initialize()
	if !errors.Is(err, ErrModelNotFound) {
		t.Errorf("err = %v, want ErrModelNotFound", err)
	}
}

func TestEngine_Initialize_AllUnavailable(t *testing.T) {
	e := newStubEngine(
		staticFactory(nil, fmt.Errorf("%w: a", ErrEngineUnavailable)),
		staticFactory(nil, fmt.Errorf("%w: b", ErrEngineUnavailable)),
	)

	err := e.Initialize()
	if !errors.Is(err, ErrEngineUnavailable) {
		t.Errorf("err = %v, want ErrEngineUnavailable", err)
	}
}

func TestEngine_Transcribe_BeforeInitialize(t *testing.T) {
	e := newStubEngine()

	_, err := e.Transcribe(context.Background(), make([]float32, 100))
	if !errors.Is(err, ErrEngineUnavailable) {
		t.Errorf("err = %v, want ErrEngineUnavailable", err)
	}
}

func TestEngine_Transcribe_SingleFlight(t *testing.T) {
	release := make(chan struct{})
	entered := make(chan struct{})
	var enteredOnce sync.Once
	p := &stubProvider{
		name: "slow",
		transcribe: func(ctx context.Context, samples []float32) (*TranscriptionResult, error) {
			enteredOnce.Do(func() { close(entered) })
			<-release
			return &TranscriptionResult{Text: "done"}, nil
		},
	}
	e := newStubEngine(staticFactory(p, nil))
	if err := e.Initialize(); err != nil {
		t.Fatalf("initialize: %v", err)
	}

	done := make(chan error, 1)
	go func() {
		_, err := e.Transcribe(context.Background(), make([]float32, 10))
		done <- err
	}()
	<-entered

	// Second call while the first is in flight fails fast.
	_, err := e.Transcribe(context.Background(), make([]float32, 10))
	if !errors.Is(err, ErrBusy) {
		t.Errorf("concurrent err = %v, want ErrBusy", err)
	}

	close(release)
	if err := <-done; err != nil {
		t.Errorf("first call err = %v", err)
	}

	// The slot frees up once the first call resolves.
	if _, err := e.Transcribe(context.Background(), make([]float32, 10)); err != nil {
		t.Errorf("follow-up err = %v", err)
	}
}

func TestEngine_Transcribe_WrapsProviderError(t *testing.T) {
	p := &stubProvider{
		name: "broken",
		transcribe: func(ctx context.Context, samples []float32) (*TranscriptionResult, error) {
			return nil, errors.New("decode exploded")
		},
	}
	e := newStubEngine(staticFactory(p, nil))
	if err := e.Initialize(); err != nil {
		t.Fatalf("initialize: %v", err)
	}

	_, err := e.Transcribe(context.Background(), make([]float32, 10))
	if !errors.Is(err, ErrTranscriptionFailed) {
		t.Errorf("err = %v, want ErrTranscriptionFailed wrapper", err)
	}
}

func TestEngine_Dispose_Reinitializable(t *testing.T) {
	p := &stubProvider{
		name: "ok",
		transcribe: func(ctx context.Context, samples []float32) (*TranscriptionResult, error) {
			return &TranscriptionResult{}, nil
		},
	}
	e := newStubEngine(staticFactory(p, nil))
	if err := e.Initialize(); err != nil {
		t.Fatalf("initialize: %v", err)
	}

	e.Dispose()
	if !p.closed {
		t.Error("expected provider closed on dispose")
	}
	e.Dispose() // second dispose is a no-op

	if _, err := e.Transcribe(context.Background(), nil); !errors.Is(err, ErrEngineUnavailable) {
		t.Errorf("err after dispose = %v, want ErrEngineUnavailable", err)
	}

	if err := e.Initialize(); err != nil {
		t.Fatalf("re-initialize: %v", err)
	}
	if _, err := e.Transcribe(context.Background(), nil); err != nil {
		t.Errorf("transcribe after re-init: %v", err)
	}
}
