package conversation

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

var (
	testWakeWords  = []string{"hello alex", "hey alex", "alex"}
	testDismissals = []string{"that's all", "thanks alex", "goodbye", "bye", "see you", "stop"}
)

func newTestState() *State {
	return NewState(testWakeWords, testDismissals, nil)
}

func TestActivateDeactivate(t *testing.T) {
	s := newTestState()
	assert.False(t, s.IsActive())

	s.Activate()
	assert.True(t, s.IsActive())
	assert.False(t, s.Interrupted())
	assert.False(t, s.LastInteraction().IsZero())

	s.Deactivate()
	assert.False(t, s.IsActive())
}

func TestInterruptStopsSpeaking(t *testing.T) {
	s := newTestState()
	s.Activate()
	s.SetSpeaking(true)

	s.Interrupt()
	assert.True(t, s.Interrupted())
	assert.False(t, s.IsSpeaking())

	s.ClearInterrupt()
	assert.False(t, s.Interrupted())
}

func TestDetectWakeWord(t *testing.T) {
	s := newTestState()
	assert.True(t, s.DetectWakeWord("hey alex what's on my plate"))
	assert.True(t, s.DetectWakeWord("Hello Alex"))
	assert.False(t, s.DetectWakeWord("completely unrelated chatter"))
}

func TestStripWakeWords(t *testing.T) {
	s := newTestState()
	assert.Equal(t, "what's on my plate", s.StripWakeWords("hey alex what's on my plate"))
	// stripping that empties the transcript substitutes a neutral greeting
	assert.Equal(t, "Hello", s.StripWakeWords("hey alex"))
}

func TestDetectDismissal(t *testing.T) {
	s := newTestState()
	assert.True(t, s.DetectDismissal("thanks alex goodbye"))
	assert.True(t, s.DetectDismissal("okay STOP now"))
	assert.False(t, s.DetectDismissal("tell me more"))
}

func TestEchoSuppression(t *testing.T) {
	s := newTestState()
	s.RecordResponse("Sure, I can help with that")

	assert.True(t, s.IsEcho("Sure, I can help with that"))
	assert.True(t, s.IsEcho("sure, i can help"))                       // contained in a response
	assert.True(t, s.IsEcho("she said Sure, I can help with that ok")) // contains a response
	assert.False(t, s.IsEcho("something else entirely"))
	assert.False(t, s.IsEcho(""))
}

func TestEchoWindowBounded(t *testing.T) {
	s := newTestState()
	s.RecordResponse("oldest response")
	for i := 0; i < echoWindow; i++ {
		s.RecordResponse("filler response number x")
	}
	assert.Len(t, s.RecentResponses(), echoWindow)
	assert.False(t, s.IsEcho("oldest response"))
}

func TestResetForNewMeetingIdempotent(t *testing.T) {
	s := newTestState()
	s.Activate()
	s.SetSpeaking(true)
	s.Interrupt()
	s.RecordResponse("something")
	s.Memory().Append("user", "hello")

	s.ResetForNewMeeting()
	s.ResetForNewMeeting()

	assert.False(t, s.IsActive())
	assert.False(t, s.Interrupted())
	assert.False(t, s.IsSpeaking())
	assert.Empty(t, s.RecentResponses())
	assert.Zero(t, s.Memory().Len())
}
