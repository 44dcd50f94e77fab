package tts

import (
	"context"
	"encoding/base64"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var upgrader = websocket.Upgrader{}

// newCartesiaServer runs a WebSocket endpoint that feeds handle with each
// connection, and returns a provider pointed at it.
func newCartesiaServer(t *testing.T, handle func(*websocket.Conn, cartesiaRequest)) *Cartesia {
	t.Helper()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "test-key", r.URL.Query().Get("api_key"))
		require.Equal(t, CartesiaAPIVersion, r.URL.Query().Get("cartesia_version"))

		conn, err := upgrader.Upgrade(w, r, nil)
		require.NoError(t, err)
		defer conn.Close()

		var req cartesiaRequest
		require.NoError(t, conn.ReadJSON(&req))
		handle(conn, req)
	}))
	t.Cleanup(server.Close)

	p := NewCartesia("test-key", zerolog.Nop())
	p.endpoint = "ws" + strings.TrimPrefix(server.URL, "http")
	return p
}

func TestCartesia_Stream(t *testing.T) {
	audio := []byte{1, 2, 3, 4, 5, 6, 7, 8}
	p := newCartesiaServer(t, func(conn *websocket.Conn, req cartesiaRequest) {
		assert.Equal(t, "hello world", req.Transcript)
		assert.Equal(t, CartesiaModel, req.ModelID)
		assert.Equal(t, "pcm_s16le", req.OutputFormat.Encoding)
		assert.Equal(t, "test-voice", req.Voice.ID)

		conn.WriteJSON(cartesiaResponse{
			Type: "chunk",
			Data: base64.StdEncoding.EncodeToString(audio[:4]),
		})
		conn.WriteJSON(cartesiaResponse{
			Type: "chunk",
			Data: base64.StdEncoding.EncodeToString(audio[4:]),
		})
		conn.WriteJSON(cartesiaResponse{Type: "done", Done: true})
	})

	var received []byte
	err := p.Stream(context.Background(), "hello world", Directive{VoiceID: "test-voice"}, func(chunk []byte) {
		received = append(received, chunk...)
	})
	require.NoError(t, err)
	assert.Equal(t, audio, received)
}

func TestCartesia_Stream_ServerError(t *testing.T) {
	p := newCartesiaServer(t, func(conn *websocket.Conn, req cartesiaRequest) {
		conn.WriteJSON(cartesiaResponse{Type: "error", Error: "voice not found"})
	})

	err := p.Stream(context.Background(), "hello", Directive{}, func([]byte) {})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "voice not found")
}

func TestCartesia_Stream_CancelUnblocksRead(t *testing.T) {
	block := make(chan struct{})
	p := newCartesiaServer(t, func(conn *websocket.Conn, req cartesiaRequest) {
		conn.WriteJSON(cartesiaResponse{
			Type: "chunk",
			Data: base64.StdEncoding.EncodeToString([]byte{1, 2}),
		})
		<-block
	})
	defer close(block)

	ctx, cancel := context.WithCancel(context.Background())
	gotChunk := make(chan struct{}, 1)

	errCh := make(chan error, 1)
	go func() {
		errCh <- p.Stream(ctx, "hello", Directive{}, func([]byte) {
			select {
			case gotChunk <- struct{}{}:
			default:
			}
		})
	}()

	<-gotChunk
	cancel()

	err := <-errCh
	assert.Equal(t, context.Canceled, err)
}

func TestCartesia_Available(t *testing.T) {
	t.Setenv("CARTESIA_API_KEY", "")

	p := NewCartesia("", zerolog.Nop())
	assert.False(t, p.Available())

	p = NewCartesia("key", zerolog.Nop())
	assert.True(t, p.Available())
}
