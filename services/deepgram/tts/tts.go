// Package tts maintains a streaming speech-synthesis session against
// Deepgram's speak WebSocket API. Text fragments go in incrementally; audio
// frames are drained by a background task and forwarded to the session's
// audio sink.
package tts

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"voicerelay/core"

	"github.com/gorilla/websocket"
)

// Config holds configuration for a TTS streamer.
type Config struct {
	APIKey     string `json:"api_key"`
	BaseURL    string `json:"base_url"`
	Model      string `json:"model"`
	SampleRate int    `json:"sample_rate"`
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() Config {
	return Config{
		BaseURL:    "wss://api.deepgram.com/v1/speak",
		Model:      "aura-2-thalia-en",
		SampleRate: 48000,
	}
}

// AudioSink receives synthesized audio frames for delivery to the browser
// transport.
type AudioSink interface {
	WriteAudio(frame []byte) error
}

// Message types for the Deepgram speak v1 WebSocket protocol.
type (
	// Client messages
	speakV1Text struct {
		Type string `json:"type"`
		Text string `json:"text"`
	}

	speakV1Control struct {
		Type string `json:"type"` // "Flush", "Clear" or "Close"
	}

	// Server messages
	speakV1Metadata struct {
		Type      string `json:"type"`
		RequestID string `json:"request_id"`
		ModelName string `json:"model_name"`
	}

	speakV1Flushed struct {
		Type       string  `json:"type"`
		SequenceID float64 `json:"sequence_id"`
	}

	speakV1Cleared struct {
		Type       string  `json:"type"`
		SequenceID float64 `json:"sequence_id"`
	}

	speakV1Warning struct {
		Type        string `json:"type"`
		Description string `json:"description"`
		Code        string `json:"code"`
	}

	speakV1Error struct {
		Type        string `json:"type"`
		Description string `json:"description"`
		Code        string `json:"code"`
	}
)

// Streamer is one session's synthesis connection. It is opened lazily on
// first need and survives across turns; ResetForNewResponse clears per-turn
// state without reconnecting.
type Streamer struct {
	config Config
	logger *core.Logger
	sink   AudioSink

	mu          sync.Mutex
	conn        *websocket.Conn
	isConnected bool
	interrupted bool
	cancel      context.CancelFunc
	forwardDone chan struct{}

	// Per-turn latency observability.
	chunksSent     int
	bytesSent      int
	startTime      time.Time
	firstAudioTime time.Time
}

// NewStreamer creates a streamer that forwards synthesized audio to sink.
func NewStreamer(config Config, sink AudioSink, logger *core.Logger) *Streamer {
	defaults := DefaultConfig()
	if config.BaseURL == "" {
		config.BaseURL = defaults.BaseURL
	}
	if config.Model == "" {
		config.Model = defaults.Model
	}
	if config.SampleRate == 0 {
		config.SampleRate = defaults.SampleRate
	}
	if logger == nil {
		logger = core.GetLogger()
	}
	return &Streamer{
		config: config,
		logger: logger,
		sink:   sink,
	}
}

// Connect dials the speak endpoint and starts the audio-forwarding task.
// A no-op when already connected.
func (t *Streamer) Connect(ctx context.Context) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.isConnected {
		return nil
	}
	if t.config.APIKey == "" {
		return errors.New("tts: Deepgram API key is required")
	}

	url := fmt.Sprintf("%s?model=%s&encoding=linear16&sample_rate=%d",
		t.config.BaseURL, t.config.Model, t.config.SampleRate)
	headers := map[string][]string{
		"Authorization": {"Token " + t.config.APIKey},
	}

	dialer := *websocket.DefaultDialer
	dialer.HandshakeTimeout = 10 * time.Second

	t.logger.Info("connecting to Deepgram TTS")
	conn, _, err := dialer.DialContext(ctx, url, headers)
	if err != nil {
		return fmt.Errorf("tts: connect to Deepgram: %w", err)
	}

	forwardCtx, cancel := context.WithCancel(ctx)
	t.conn = conn
	t.isConnected = true
	t.interrupted = false
	t.startTime = time.Now()
	t.firstAudioTime = time.Time{}
	t.chunksSent = 0
	t.bytesSent = 0
	t.cancel = cancel
	t.forwardDone = make(chan struct{})

	go t.forwardAudio(forwardCtx, conn, t.forwardDone)
	go t.heartbeat(forwardCtx, conn)

	t.logger.Info("connected to Deepgram TTS")
	return nil
}

// IsConnected reports whether the streamer has a live connection.
func (t *Streamer) IsConnected() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.isConnected
}

// forwardAudio drains synthesized frames from the provider and relays them
// to the sink. Frames arriving after an interruption are swallowed so a
// cleared turn goes silent immediately even with audio still in flight.
func (t *Streamer) forwardAudio(ctx context.Context, conn *websocket.Conn, done chan struct{}) {
	defer close(done)

	for {
		messageType, message, err := conn.ReadMessage()
		if err != nil {
			select {
			case <-ctx.Done():
			default:
				t.logger.Warnf("TTS receive ended: %v", err)
				t.markDisconnected(conn)
			}
			return
		}

		switch messageType {
		case websocket.BinaryMessage:
			t.mu.Lock()
			if t.interrupted {
				t.mu.Unlock()
				continue
			}
			if t.firstAudioTime.IsZero() {
				t.firstAudioTime = time.Now()
				t.logger.Infof("first audio chunk after %dms", t.firstAudioTime.Sub(t.startTime).Milliseconds())
			}
			t.chunksSent++
			t.bytesSent += len(message)
			t.mu.Unlock()

			frame := make([]byte, len(message))
			copy(frame, message)
			if err := t.sink.WriteAudio(frame); err != nil {
				t.logger.Warnf("failed to forward audio to transport: %v", err)
			}

		case websocket.TextMessage:
			t.handleTextMessage(message)
		}
	}
}

// handleTextMessage processes JSON status messages from Deepgram.
func (t *Streamer) handleTextMessage(message []byte) {
	var base struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(message, &base); err != nil {
		t.logger.Warnf("malformed TTS status message: %v", err)
		return
	}

	switch base.Type {
	case "Metadata":
		var metadata speakV1Metadata
		if err := json.Unmarshal(message, &metadata); err == nil {
			t.logger.Debugf("TTS metadata: model=%s", metadata.ModelName)
		}
	case "Flushed":
		var flushed speakV1Flushed
		if err := json.Unmarshal(message, &flushed); err == nil {
			t.logger.Debugf("TTS flush complete, sequence_id=%v", flushed.SequenceID)
		}
	case "Cleared":
		var cleared speakV1Cleared
		if err := json.Unmarshal(message, &cleared); err == nil {
			t.logger.Debugf("TTS clear complete, sequence_id=%v", cleared.SequenceID)
		}
	case "Warning":
		var warning speakV1Warning
		if err := json.Unmarshal(message, &warning); err == nil {
			t.logger.Warnf("Deepgram TTS warning: %s (code: %s)", warning.Description, warning.Code)
		}
	case "Error":
		var errMsg speakV1Error
		if err := json.Unmarshal(message, &errMsg); err == nil {
			t.logger.Errorf("Deepgram TTS error: %s (code: %s)", errMsg.Description, errMsg.Code)
		}
	}
}

// SendText appends a text fragment to the synthesis input. A no-op when the
// fragment is blank or the streamer is not connected.
func (t *Streamer) SendText(text string) error {
	if strings.TrimSpace(text) == "" {
		return nil
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	if !t.isConnected {
		return nil
	}
	return t.writeJSONLocked(speakV1Text{Type: "Speak", Text: text})
}

// Flush asks the provider to synthesize buffered text now.
func (t *Streamer) Flush() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if !t.isConnected {
		return nil
	}
	return t.writeJSONLocked(speakV1Control{Type: "Flush"})
}

// Clear discards buffered and in-flight audio. The local interrupted flag is
// raised first so late-arriving frames are dropped rather than forwarded.
func (t *Streamer) Clear() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.interrupted = true
	if !t.isConnected {
		return nil
	}
	return t.writeJSONLocked(speakV1Control{Type: "Clear"})
}

// ResetForNewResponse clears the interruption flag and latency counters
// without touching the connection.
func (t *Streamer) ResetForNewResponse() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.interrupted = false
	t.chunksSent = 0
	t.bytesSent = 0
	t.startTime = time.Now()
	t.firstAudioTime = time.Time{}
}

// TimeToFirstAudio returns the current turn's synthesis latency, if any
// audio has arrived yet.
func (t *Streamer) TimeToFirstAudio() (time.Duration, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.firstAudioTime.IsZero() {
		return 0, false
	}
	return t.firstAudioTime.Sub(t.startTime), true
}

// Stats returns the per-turn chunk and byte counters.
func (t *Streamer) Stats() (chunks, bytes int) {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.chunksSent, t.bytesSent
}

// Close cancels the forwarding task and closes the connection, tolerating a
// socket that is already gone.
func (t *Streamer) Close() error {
	t.mu.Lock()
	if !t.isConnected {
		t.mu.Unlock()
		return nil
	}
	t.isConnected = false
	conn := t.conn
	t.conn = nil
	cancel := t.cancel
	done := t.forwardDone
	t.mu.Unlock()

	if cancel != nil {
		cancel()
	}

	conn.SetWriteDeadline(time.Now().Add(2 * time.Second))
	if data, err := json.Marshal(speakV1Control{Type: "Close"}); err == nil {
		_ = conn.WriteMessage(websocket.TextMessage, data)
	}
	err := conn.Close()

	if done != nil {
		select {
		case <-done:
		case <-time.After(2 * time.Second):
		}
	}
	return err
}

// markDisconnected flips the state after a read failure so later SendText
// calls become no-ops instead of writing to a dead socket.
func (t *Streamer) markDisconnected(conn *websocket.Conn) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.conn == conn {
		t.isConnected = false
		t.conn = nil
	}
}

func (t *Streamer) writeJSONLocked(msg interface{}) error {
	data, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("tts: marshal message: %w", err)
	}
	t.conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
	if err := t.conn.WriteMessage(websocket.TextMessage, data); err != nil {
		return fmt.Errorf("tts: write: %w", err)
	}
	return nil
}

// heartbeat sends periodic pings; the speak API has no application-level
// KeepAlive, so a WebSocket PING keeps the connection from idling out.
func (t *Streamer) heartbeat(ctx context.Context, conn *websocket.Conn) {
	ticker := time.NewTicker(8 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			t.mu.Lock()
			alive := t.isConnected && t.conn == conn
			t.mu.Unlock()
			if !alive {
				return
			}
			conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				t.logger.Warnf("TTS heartbeat ping failed: %v", err)
				return
			}
		}
	}
}
