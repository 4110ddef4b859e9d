// Package stt maintains a persistent streaming transcription session against
// Deepgram's listen WebSocket API.
package stt

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"sync"
	"time"

	"voicerelay/core"

	"github.com/gorilla/websocket"
)

// Config holds configuration options for the Deepgram STT session.
type Config struct {
	APIKey         string `json:"api_key"`
	BaseURL        string `json:"base_url"`
	Model          string `json:"model"`
	Language       string `json:"language"`
	SampleRate     int    `json:"sample_rate"`
	InterimResults bool   `json:"interim_results"`
	Punctuate      bool   `json:"punctuate"`
	SmartFormat    bool   `json:"smart_format"`
	VadEvents      bool   `json:"vad_events"`
	UtteranceEndMs int    `json:"utterance_end_ms"`
	Endpointing    int    `json:"endpointing"`
}

// DefaultConfig returns a Config with sensible defaults for low-latency
// conversational transcription.
func DefaultConfig() *Config {
	return &Config{
		BaseURL:        "wss://api.deepgram.com",
		Model:          "nova-2",
		SampleRate:     48000,
		InterimResults: true,
		Punctuate:      true,
		SmartFormat:    true,
		VadEvents:      true,
		UtteranceEndMs: 1000,
		Endpointing:    300,
	}
}

// Session is a live transcription connection. Audio goes in as binary
// frames; typed result messages come back out via ReadMessage.
type Session struct {
	config *Config
	logger *core.Logger

	conn   *websocket.Conn
	connMu sync.Mutex // protects writes
	closed bool
}

// Dial opens a transcription session and starts the keep-alive loop bound to
// ctx.
func Dial(ctx context.Context, config *Config, logger *core.Logger) (*Session, error) {
	if config == nil {
		config = DefaultConfig()
	}
	if config.BaseURL == "" {
		config.BaseURL = "wss://api.deepgram.com"
	}
	if logger == nil {
		logger = core.GetLogger()
	}
	if config.APIKey == "" {
		return nil, errors.New("stt: Deepgram API key is required")
	}

	wsURL, err := buildWebSocketURL(config)
	if err != nil {
		return nil, fmt.Errorf("stt: build URL: %w", err)
	}

	headers := map[string][]string{
		"Authorization": {"Token " + config.APIKey},
	}

	logger.Info("connecting to Deepgram STT")
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, wsURL, headers)
	if err != nil {
		return nil, fmt.Errorf("stt: connect to Deepgram: %w", err)
	}

	s := &Session{
		config: config,
		logger: logger,
		conn:   conn,
	}
	go s.keepAlive(ctx)

	logger.Info("connected to Deepgram STT")
	return s, nil
}

// buildWebSocketURL constructs the listen URL with query parameters.
func buildWebSocketURL(config *Config) (string, error) {
	base, err := url.Parse(config.BaseURL + "/v1/listen")
	if err != nil {
		return "", err
	}

	q := base.Query()
	if config.Model != "" {
		q.Set("model", config.Model)
	}
	if config.Language != "" {
		q.Set("language", config.Language)
	}
	q.Set("encoding", "linear16")
	q.Set("sample_rate", strconv.Itoa(config.SampleRate))
	q.Set("channels", "1")
	q.Set("interim_results", strconv.FormatBool(config.InterimResults))
	q.Set("punctuate", strconv.FormatBool(config.Punctuate))
	q.Set("smart_format", strconv.FormatBool(config.SmartFormat))
	q.Set("vad_events", strconv.FormatBool(config.VadEvents))
	if config.UtteranceEndMs > 0 {
		q.Set("utterance_end_ms", strconv.Itoa(config.UtteranceEndMs))
	}
	if config.Endpointing > 0 {
		q.Set("endpointing", strconv.Itoa(config.Endpointing))
	}

	base.RawQuery = q.Encode()
	return base.String(), nil
}

// SendAudio forwards a linear PCM frame to Deepgram.
func (s *Session) SendAudio(data []byte) error {
	s.connMu.Lock()
	defer s.connMu.Unlock()
	if s.closed {
		return errors.New("stt: session closed")
	}
	if err := s.conn.WriteMessage(websocket.BinaryMessage, data); err != nil {
		return fmt.Errorf("stt: send audio: %w", err)
	}
	return nil
}

// ReadMessage blocks for the next provider message and returns it parsed
// alongside the raw bytes, so callers can relay the original verbatim.
// A malformed payload yields ErrMalformedMessage with the raw bytes still
// populated; callers drop it and keep reading.
func (s *Session) ReadMessage() (Message, []byte, error) {
	for {
		messageType, raw, err := s.conn.ReadMessage()
		if err != nil {
			return Message{}, nil, fmt.Errorf("stt: read: %w", err)
		}
		if messageType != websocket.TextMessage {
			continue
		}
		msg, err := ParseMessage(raw)
		return msg, raw, err
	}
}

// Finalize asks Deepgram to flush any buffered audio into a final result.
func (s *Session) Finalize() error {
	return s.writeControl(listenV1Finalize{Type: "Finalize"})
}

// Close sends CloseStream and tears down the socket. Tolerates a connection
// that is already gone.
func (s *Session) Close() error {
	s.connMu.Lock()
	defer s.connMu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true

	_ = s.writeJSONLocked(listenV1CloseStream{Type: "CloseStream"})
	return s.conn.Close()
}

func (s *Session) writeControl(msg interface{}) error {
	s.connMu.Lock()
	defer s.connMu.Unlock()
	if s.closed {
		return errors.New("stt: session closed")
	}
	return s.writeJSONLocked(msg)
}

func (s *Session) writeJSONLocked(msg interface{}) error {
	data, err := marshalJSON(msg)
	if err != nil {
		return fmt.Errorf("stt: marshal control message: %w", err)
	}
	return s.conn.WriteMessage(websocket.TextMessage, data)
}

// keepAlive sends periodic KeepAlive messages so Deepgram holds the
// connection open through silence.
func (s *Session) keepAlive(ctx context.Context) {
	ticker := time.NewTicker(10 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := s.writeControl(listenV1KeepAlive{Type: "KeepAlive"}); err != nil {
				return
			}
		}
	}
}
