// Package server exposes the websocket endpoint and manages the process
// lifecycle. Each accepted connection gets its own relay session with its
// own provider connections.
package server

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"sync"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"voicerelay/config"
	"voicerelay/core"
	"voicerelay/relay"
	"voicerelay/services/clickup"
	"voicerelay/services/deepgram/stt"
	"voicerelay/services/deepgram/tts"
	"voicerelay/services/openai/llm"
	audioutil "voicerelay/utils/audio"
)

// Manager owns the HTTP server and the lifecycle of all relay sessions.
// Start and Stop are idempotent.
type Manager struct {
	config config.Config
	logger *core.Logger

	upgrader websocket.Upgrader

	mu      sync.Mutex
	running bool
	addr    string
	httpSrv *http.Server
	cancel  context.CancelFunc
	baseCtx context.Context
	wg      sync.WaitGroup
}

// NewManager builds a Manager from a validated config.
func NewManager(cfg config.Config, logger *core.Logger) *Manager {
	if logger == nil {
		logger = core.GetLogger()
	}
	return &Manager{
		config: cfg,
		logger: logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  32 * 1024,
			WriteBufferSize: 32 * 1024,
			// The browser client is served from a different origin.
			CheckOrigin: func(r *http.Request) bool { return true },
		},
	}
}

// Start binds the listen address and begins serving. Calling Start on a
// running manager is a no-op.
func (m *Manager) Start() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.running {
		m.logger.Warn("server: already running")
		return nil
	}

	addr := fmt.Sprintf("%s:%d", m.config.Host, m.config.Port)
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("server: listen on %s: %w", addr, err)
	}

	m.baseCtx, m.cancel = context.WithCancel(context.Background())

	mux := http.NewServeMux()
	mux.HandleFunc("/ws", m.handleWS)
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	m.httpSrv = &http.Server{Handler: mux}
	m.wg.Add(1)
	go func() {
		defer m.wg.Done()
		if err := m.httpSrv.Serve(listener); err != nil && err != http.ErrServerClosed {
			m.logger.Errorf("server: serve: %v", err)
		}
	}()

	m.running = true
	m.addr = listener.Addr().String()
	m.logger.Infof("server: listening on %s", m.addr)
	return nil
}

// Addr returns the bound listen address, or "" when not running.
func (m *Manager) Addr() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.running {
		return ""
	}
	return m.addr
}

// Stop shuts the server down and waits for it to finish. Stopping a
// manager that is not running is a no-op.
func (m *Manager) Stop(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.running {
		return nil
	}

	m.cancel()
	err := m.httpSrv.Shutdown(ctx)
	m.wg.Wait()
	m.running = false
	m.logger.Info("server: stopped")
	return err
}

// IsRunning reports whether the manager is currently serving.
func (m *Manager) IsRunning() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.running
}

func (m *Manager) handleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := m.upgrader.Upgrade(w, r, nil)
	if err != nil {
		m.logger.Errorf("server: upgrade: %v", err)
		return
	}

	sessionID := uuid.NewString()
	logger := m.logger.With(map[string]interface{}{"session_id": sessionID})
	logger.Infof("server: client connected from %s", r.RemoteAddr)

	m.mu.Lock()
	ctx := m.baseCtx
	m.mu.Unlock()

	m.runSession(ctx, conn, logger)
}

// runSession dials the per-session provider connections and drives the
// relay until the client disconnects.
func (m *Manager) runSession(ctx context.Context, conn *websocket.Conn, logger *core.Logger) {
	transport := newWSTransport(conn)
	defer transport.Close()

	sttCfg := stt.DefaultConfig()
	sttCfg.APIKey = m.config.Deepgram.APIKey
	sttCfg.Model = m.config.Deepgram.STTModel
	sttCfg.SampleRate = m.config.SampleRate

	recognizer, err := stt.Dial(ctx, sttCfg, logger)
	if err != nil {
		logger.Errorf("server: recognition dial failed: %v", err)
		return
	}

	encoding := core.ParseAudioEncoding(m.config.AudioEncoding)
	var sink tts.AudioSink = transport
	if encoding != core.PCM {
		sink = encodedSink{transport: transport, encoding: encoding, sampleRate: m.config.SampleRate}
	}

	ttsCfg := tts.DefaultConfig()
	ttsCfg.APIKey = m.config.Deepgram.APIKey
	ttsCfg.Model = m.config.Deepgram.TTSModel
	ttsCfg.SampleRate = m.config.SampleRate
	synthesizer := tts.NewStreamer(ttsCfg, sink, logger)

	chatSvc, err := llm.NewService(llm.Config{
		APIKey:      m.config.OpenAI.APIKey,
		Model:       m.config.OpenAI.Model,
		MaxTokens:   m.config.OpenAI.MaxTokens,
		Temperature: m.config.OpenAI.Temperature,
	})
	if err != nil {
		logger.Errorf("server: llm setup failed: %v", err)
		_ = recognizer.Close()
		return
	}

	var docs relay.DocumentStore
	if m.config.ClickUp.APIKey != "" && m.config.ClickUp.DocName != "" {
		docs = clickup.NewClient(clickup.Config{APIKey: m.config.ClickUp.APIKey, DocName: m.config.ClickUp.DocName}, logger)
	}

	session := relay.NewSession(relay.Options{
		BotName:          m.config.BotName,
		WakeWords:        m.config.WakeWords,
		DismissalPhrases: m.config.DismissalPhrases,
		GroundingDocName: m.config.ClickUp.DocName,
		AudioEncoding:    encoding,
		SampleRate:       m.config.SampleRate,
	}, transport, recognizer, synthesizer, chatStreamer{svc: chatSvc}, docs, logger)

	if err := session.Run(ctx); err != nil {
		logger.Errorf("server: session ended with error: %v", err)
	}
}

// chatStreamer narrows the OpenAI service to the interface the relay needs.
type chatStreamer struct {
	svc *llm.Service
}

func (c chatStreamer) Stream(ctx context.Context, messages []core.LLMMessage) (relay.TokenStream, error) {
	stream, err := c.svc.Stream(ctx, messages)
	if err != nil {
		return nil, err
	}
	return stream, nil
}

// encodedSink compands linear PCM from synthesis into the client's wire
// format before it goes out.
type encodedSink struct {
	transport  relay.Transport
	encoding   core.AudioEncodingFormat
	sampleRate int
}

func (s encodedSink) WriteAudio(frame []byte) error {
	chunk := core.AudioChunk{Data: frame, SampleRate: s.sampleRate, Channels: 1, Format: core.PCM}
	encoded, err := audioutil.FromPCM(chunk, s.encoding)
	if err != nil {
		return err
	}
	return s.transport.WriteAudio(encoded.Data)
}
