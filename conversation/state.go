package conversation

import (
	"strings"
	"sync"
	"time"

	"voicerelay/core"
	"voicerelay/utils/text"
)

// wakeWordThreshold is the fuzzy-match similarity required for activation.
const wakeWordThreshold = 0.75

// echoWindow is how many recent agent responses are checked for echo.
const echoWindow = 5

// State tracks one session's conversational state: active/inactive,
// speaking/listening, the interruption flag and the echo-suppression window.
// All mutation goes through methods so the transition rules stay enforced in
// one place; it is safe for use from the session's concurrent pumps.
type State struct {
	wakeWords        []string
	dismissalPhrases []string
	logger           *core.Logger

	mu              sync.Mutex
	isActive        bool
	agentSpeaking   bool
	interrupted     bool
	lastInteraction time.Time
	recentResponses []string
	memory          *RollingMemory
}

func NewState(wakeWords, dismissalPhrases []string, logger *core.Logger) *State {
	if logger == nil {
		logger = core.GetLogger()
	}
	return &State{
		wakeWords:        wakeWords,
		dismissalPhrases: dismissalPhrases,
		logger:           logger,
		memory:           NewRollingMemory(),
	}
}

// Activate transitions to active listening and clears any stale interruption.
func (s *State) Activate() {
	s.mu.Lock()
	s.isActive = true
	s.interrupted = false
	s.lastInteraction = time.Now()
	s.mu.Unlock()
	s.logger.Info("conversation activated")
}

// Deactivate returns the session to idle. Memory and recent responses are
// kept; a fresh wake word is required to re-activate.
func (s *State) Deactivate() {
	s.mu.Lock()
	s.isActive = false
	s.mu.Unlock()
	s.logger.Info("conversation deactivated")
}

// Interrupt marks the current agent turn as interrupted and stops speaking.
func (s *State) Interrupt() {
	s.mu.Lock()
	s.interrupted = true
	s.agentSpeaking = false
	s.mu.Unlock()
	s.logger.Info("agent speech interrupted")
}

// ClearInterrupt resets the interruption flag at the start of a new turn.
func (s *State) ClearInterrupt() {
	s.mu.Lock()
	s.interrupted = false
	s.mu.Unlock()
}

// ResetForNewMeeting restores the initial state: inactive, uninterrupted,
// empty echo window, fresh memory. Idempotent.
func (s *State) ResetForNewMeeting() {
	s.mu.Lock()
	s.isActive = false
	s.agentSpeaking = false
	s.interrupted = false
	s.recentResponses = nil
	s.memory = NewRollingMemory()
	s.mu.Unlock()
}

func (s *State) IsActive() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.isActive
}

func (s *State) IsSpeaking() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.agentSpeaking
}

func (s *State) SetSpeaking(speaking bool) {
	s.mu.Lock()
	s.agentSpeaking = speaking
	s.mu.Unlock()
}

func (s *State) Interrupted() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.interrupted
}

// Touch updates the last-interaction time on an accepted user utterance.
func (s *State) Touch() {
	s.mu.Lock()
	s.lastInteraction = time.Now()
	s.mu.Unlock()
}

func (s *State) LastInteraction() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastInteraction
}

// Memory returns the session's rolling transcript buffer.
func (s *State) Memory() *RollingMemory {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.memory
}

// RecordResponse appends an agent response to the echo-suppression window,
// keeping only the most recent entries.
func (s *State) RecordResponse(response string) {
	response = strings.TrimSpace(response)
	if response == "" {
		return
	}
	s.mu.Lock()
	s.recentResponses = append(s.recentResponses, response)
	if len(s.recentResponses) > echoWindow {
		s.recentResponses = s.recentResponses[len(s.recentResponses)-echoWindow:]
	}
	s.mu.Unlock()
}

// RecentResponses returns a copy of the echo-suppression window.
func (s *State) RecentResponses() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, len(s.recentResponses))
	copy(out, s.recentResponses)
	return out
}

// DetectWakeWord reports whether any configured wake word fuzzy-matches the
// transcript.
func (s *State) DetectWakeWord(transcript string) bool {
	for _, wakeWord := range s.wakeWords {
		if text.FuzzyMatch(transcript, wakeWord, wakeWordThreshold) {
			s.logger.Infof("wake word detected: %q", wakeWord)
			return true
		}
	}
	return false
}

// DetectDismissal reports whether the transcript contains any dismissal
// phrase as a literal substring.
func (s *State) DetectDismissal(transcript string) bool {
	lowered := strings.ToLower(transcript)
	for _, phrase := range s.dismissalPhrases {
		if strings.Contains(lowered, phrase) {
			return true
		}
	}
	return false
}

// IsEcho reports whether the transcript reflects one of the agent's own
// recent responses, in either containment direction.
func (s *State) IsEcho(transcript string) bool {
	lowered := strings.ToLower(strings.TrimSpace(transcript))
	if lowered == "" {
		return false
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, response := range s.recentResponses {
		resp := strings.ToLower(response)
		if strings.Contains(resp, lowered) || strings.Contains(lowered, resp) {
			return true
		}
	}
	return false
}

// StripWakeWords removes the configured wake phrases from the transcript so
// the remainder can be used as the first utterance. When nothing is left a
// neutral greeting is substituted.
func (s *State) StripWakeWords(transcript string) string {
	stripped := text.StripPhrases(transcript, s.wakeWords)
	if stripped == "" {
		return "Hello"
	}
	return stripped
}
