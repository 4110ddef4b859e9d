// Package relay wires a browser audio connection to speech recognition,
// language-model turn generation, and speech synthesis for one session.
package relay

import (
	"context"
	"strings"
	"sync"
	"time"

	"voicerelay/conversation"
	"voicerelay/core"
	"voicerelay/protocol"
	"voicerelay/services/deepgram/stt"
	audioutil "voicerelay/utils/audio"
)

const farewellText = "Goodbye! I'll still be listening if you need me."

// Transport is the duplex connection to the browser client.
type Transport interface {
	// ReadMessage blocks for the next client message. binary reports
	// whether the payload is an audio frame rather than a control message.
	ReadMessage() (binary bool, data []byte, err error)
	WriteAudio(frame []byte) error
	WriteControl(data []byte) error
	Close() error
}

// SpeechToText is a live recognition session.
type SpeechToText interface {
	SendAudio(data []byte) error
	ReadMessage() (stt.Message, []byte, error)
	Close() error
}

// Synthesizer streams text into audio frames delivered to the session's sink.
type Synthesizer interface {
	Connect(ctx context.Context) error
	SendText(text string) error
	Flush() error
	Clear() error
	ResetForNewResponse()
	Close() error
}

// TokenStream yields response tokens until io.EOF.
type TokenStream interface {
	Recv() (string, error)
	Close() error
}

// ChatStreamer produces a streaming completion for a conversation.
type ChatStreamer interface {
	Stream(ctx context.Context, messages []core.LLMMessage) (TokenStream, error)
}

// DocumentStore fetches grounding documents by name.
type DocumentStore interface {
	FetchDocument(ctx context.Context, name string) (string, error)
}

// Options configures a session.
type Options struct {
	BotName          string
	WakeWords        []string
	DismissalPhrases []string
	GroundingDocName string

	// AudioEncoding is the wire format of browser audio frames. Frames in
	// a companded format are transcoded to linear PCM before recognition.
	AudioEncoding core.AudioEncodingFormat
	SampleRate    int

	// Drain delays give the synthesizer time to deliver trailing audio
	// before the session moves on.
	TurnDrainDelay     time.Duration
	FarewellDrainDelay time.Duration
	InterruptPause     time.Duration
}

func (o *Options) applyDefaults() {
	if o.BotName == "" {
		o.BotName = "alex"
	}
	if o.SampleRate == 0 {
		o.SampleRate = 48000
	}
	if o.TurnDrainDelay == 0 {
		o.TurnDrainDelay = 500 * time.Millisecond
	}
	if o.FarewellDrainDelay == 0 {
		o.FarewellDrainDelay = time.Second
	}
	if o.InterruptPause == 0 {
		o.InterruptPause = 100 * time.Millisecond
	}
}

// Session relays one browser connection end to end. It owns the conversation
// state and the background tasks pumping audio and transcripts.
type Session struct {
	opts      Options
	logger    *core.Logger
	transport Transport
	stt       SpeechToText
	tts       Synthesizer
	chat      ChatStreamer
	docs      DocumentStore

	state *conversation.State
	tasks *core.TaskGroup

	// turnMu keeps response generation sequential when transcripts arrive
	// faster than turns complete.
	turnMu sync.Mutex

	grounding string

	// audioSeconds accumulates inbound audio duration; written only by the
	// browser pump, read after the task group has drained.
	audioSeconds float64
}

// NewSession assembles a relay session from its collaborators. docs may be
// nil when no grounding document is configured.
func NewSession(opts Options, transport Transport, recognizer SpeechToText, synthesizer Synthesizer, chat ChatStreamer, docs DocumentStore, logger *core.Logger) *Session {
	opts.applyDefaults()
	if logger == nil {
		logger = core.GetLogger()
	}
	return &Session{
		opts:      opts,
		logger:    logger,
		transport: transport,
		stt:       recognizer,
		tts:       synthesizer,
		chat:      chat,
		docs:      docs,
		state:     conversation.NewState(opts.WakeWords, opts.DismissalPhrases, logger),
	}
}

// Run drives the session until the browser disconnects, a provider
// connection drops, or ctx is cancelled. Service errors end the session;
// they are logged, not returned.
func (s *Session) Run(ctx context.Context) error {
	s.state.ResetForNewMeeting()
	s.loadGrounding(ctx)

	if err := s.tts.Connect(ctx); err != nil {
		return err
	}
	s.sendStateSnapshot()

	s.tasks = core.NewTaskGroup(ctx, s.logger)
	defer s.teardown()

	done := make(chan error, 2)
	s.tasks.Go("browser-pump", func(ctx context.Context) {
		done <- s.browserPump(ctx)
	})
	s.tasks.Go("provider-pump", func(ctx context.Context) {
		done <- s.providerPump(ctx)
	})

	select {
	case <-ctx.Done():
		return ctx.Err()
	case err := <-done:
		if err != nil {
			s.logger.Infof("relay: session ended: %v", err)
		}
		return nil
	}
}

func (s *Session) loadGrounding(ctx context.Context) {
	if s.docs == nil || s.opts.GroundingDocName == "" {
		return
	}
	content, err := s.docs.FetchDocument(ctx, s.opts.GroundingDocName)
	if err != nil {
		s.logger.Warnf("relay: grounding document unavailable: %v", err)
		return
	}
	s.grounding = content
	s.logger.Infof("relay: loaded grounding document (%d chars)", len(content))
}

// browserPump forwards client audio into recognition and handles client
// control messages. It returns when the transport read fails.
func (s *Session) browserPump(ctx context.Context) error {
	for {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		binary, data, err := s.transport.ReadMessage()
		if err != nil {
			return err
		}
		if binary {
			chunk := core.AudioChunk{
				Data:       data,
				SampleRate: s.opts.SampleRate,
				Channels:   1,
				Format:     s.opts.AudioEncoding,
			}
			pcm, err := audioutil.ToPCM(chunk)
			if err != nil {
				s.logger.Debugf("relay: dropping audio frame: %v", err)
				continue
			}
			s.audioSeconds += pcm.GetDurationInSeconds()
			if err := s.stt.SendAudio(pcm.Data); err != nil {
				return err
			}
			continue
		}
		msgType, err := protocol.SniffType(data)
		if err != nil {
			s.logger.Debugf("relay: dropping unparseable client message: %v", err)
			continue
		}
		if msgType == protocol.MsgInterrupt {
			s.logger.Info("relay: client requested interrupt")
			s.interruptPlayback("client_request")
		}
	}
}

// providerPump relays recognition messages to the browser verbatim and
// feeds transcripts through the conversation pipeline.
func (s *Session) providerPump(ctx context.Context) error {
	for {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		msg, raw, err := s.stt.ReadMessage()
		if err != nil {
			if raw != nil {
				s.logger.Debugf("relay: dropping provider message: %v", err)
				continue
			}
			return err
		}
		if msg.Kind == stt.KindResult {
			s.handleTranscript(msg.Result.Transcript(), msg.Result.Final())
		}
		if err := s.transport.WriteControl(raw); err != nil {
			return err
		}
	}
}

// handleTranscript runs one recognition result through interruption,
// echo, wake, and dismissal handling, then hands it to turn generation.
func (s *Session) handleTranscript(transcript string, isFinal bool) {
	transcript = strings.TrimSpace(transcript)
	if transcript == "" {
		return
	}

	if s.state.IsSpeaking() {
		words := len(strings.Fields(transcript))
		if words >= 2 || s.state.DetectWakeWord(transcript) {
			s.logger.Infof("relay: barge-in detected: %q", transcript)
			s.interruptPlayback("user_speech")
		}
	}
	if !isFinal {
		return
	}

	if s.state.IsEcho(transcript) {
		s.logger.Debugf("relay: discarding echo: %q", transcript)
		return
	}

	if !s.state.IsActive() {
		if !s.state.DetectWakeWord(transcript) {
			return
		}
		s.state.Activate()
		s.sendStateSnapshot()
		s.logger.Infof("relay: activated by wake word: %q", transcript)
		transcript = s.state.StripWakeWords(transcript)
	}

	if s.state.DetectDismissal(transcript) {
		s.dismiss()
		return
	}

	// Speech during playback is only ever accepted as an interruption.
	// Anything too short to barge in is dropped, not queued behind the
	// in-flight turn.
	if s.state.IsSpeaking() {
		s.logger.Debugf("relay: ignoring %q during playback", transcript)
		return
	}

	s.state.Touch()
	s.state.Memory().Append(core.LLMMessageRoleUser, transcript)
	s.logger.Infof("relay: user said: %q", transcript)
	s.tasks.Go("turn", func(ctx context.Context) {
		s.generateTurn(ctx)
	})
}

// interruptPlayback stops synthesis immediately and tells the browser to
// flush its playback buffer.
func (s *Session) interruptPlayback(reason string) {
	s.state.Interrupt()
	if err := s.tts.Clear(); err != nil {
		s.logger.Warnf("relay: clear synthesis: %v", err)
	}
	if data, err := protocol.Marshal(protocol.NewInterrupt(reason)); err == nil {
		if err := s.transport.WriteControl(data); err != nil {
			s.logger.Debugf("relay: send interrupt: %v", err)
		}
	}
}

// dismiss says goodbye and returns the session to passive listening.
func (s *Session) dismiss() {
	s.logger.Info("relay: dismissal detected")
	s.state.Interrupt()
	if err := s.tts.Clear(); err != nil {
		s.logger.Warnf("relay: clear synthesis: %v", err)
	}
	time.Sleep(s.opts.InterruptPause)
	s.state.ClearInterrupt()
	s.speak(farewellText)
	s.state.Deactivate()
	s.sendStateSnapshot()
}

// speak synthesizes a fixed phrase outside of turn generation,
// reconnecting first in case the synthesis socket was torn down mid-session.
func (s *Session) speak(text string) {
	if err := s.tts.Connect(s.tasks.Context()); err != nil {
		s.logger.Errorf("relay: synthesis unavailable, dropping utterance: %v", err)
		return
	}
	s.tts.ResetForNewResponse()
	if err := s.tts.SendText(text); err != nil {
		s.logger.Warnf("relay: speak: %v", err)
		return
	}
	if err := s.tts.Flush(); err != nil {
		s.logger.Warnf("relay: flush: %v", err)
	}
	time.Sleep(s.opts.FarewellDrainDelay)
}

func (s *Session) sendStateSnapshot() {
	data, err := protocol.Marshal(protocol.NewStateSnapshot(s.state.IsActive(), s.state.IsSpeaking()))
	if err != nil {
		return
	}
	if err := s.transport.WriteControl(data); err != nil {
		s.logger.Debugf("relay: send state: %v", err)
	}
}

// teardown closes the provider connections first so any pump blocked in a
// read unblocks before the task group waits on it.
func (s *Session) teardown() {
	if err := s.tts.Close(); err != nil {
		s.logger.Debugf("relay: close synthesis: %v", err)
	}
	if err := s.stt.Close(); err != nil {
		s.logger.Debugf("relay: close recognition: %v", err)
	}
	if err := s.transport.Close(); err != nil {
		s.logger.Debugf("relay: close transport: %v", err)
	}
	s.tasks.Close()
	s.logger.Infof("relay: session closed after %.1fs of inbound audio", s.audioSeconds)
}

// State exposes the conversation state, mainly for tests and diagnostics.
func (s *Session) State() *conversation.State {
	return s.state
}
