package relay

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"voicerelay/core"
)

// generateTurn produces one spoken response from the rolling conversation.
// Tokens stream straight into synthesis as they arrive. A failure anywhere
// abandons the turn silently: nothing is spoken, nothing enters memory.
func (s *Session) generateTurn(ctx context.Context) {
	s.turnMu.Lock()
	defer s.turnMu.Unlock()

	// A barge-in that produced this utterance leaves the interrupt flag
	// set; the new turn starts clean.
	s.state.ClearInterrupt()
	s.state.SetSpeaking(true)
	s.sendStateSnapshot()
	defer func() {
		s.state.SetSpeaking(false)
		s.sendStateSnapshot()
	}()

	if err := s.tts.Connect(ctx); err != nil {
		s.logger.Errorf("relay: synthesis unavailable, abandoning turn: %v", err)
		return
	}
	s.tts.ResetForNewResponse()

	messages := append([]core.LLMMessage{s.systemMessage()}, s.state.Memory().ContextForLLM()...)
	stream, err := s.chat.Stream(ctx, messages)
	if err != nil {
		s.logger.Errorf("relay: completion failed, abandoning turn: %v", err)
		return
	}
	defer stream.Close()

	start := time.Now()
	var response strings.Builder
	for {
		if s.state.Interrupted() {
			s.logger.Info("relay: turn interrupted mid-stream")
			if err := s.tts.Clear(); err != nil {
				s.logger.Warnf("relay: clear synthesis: %v", err)
			}
			return
		}
		token, err := stream.Recv()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			s.logger.Errorf("relay: token stream failed, abandoning turn: %v", err)
			return
		}
		response.WriteString(token)
		if err := s.tts.SendText(token); err != nil {
			s.logger.Warnf("relay: send token to synthesis: %v", err)
		}
	}

	if s.state.Interrupted() {
		if err := s.tts.Clear(); err != nil {
			s.logger.Warnf("relay: clear synthesis: %v", err)
		}
		return
	}
	if err := s.tts.Flush(); err != nil {
		s.logger.Warnf("relay: flush synthesis: %v", err)
	}
	time.Sleep(s.opts.TurnDrainDelay)

	text := response.String()
	if text == "" || s.state.Interrupted() {
		return
	}
	s.state.Memory().Append(core.LLMMessageRoleAssistant, text)
	s.state.RecordResponse(text)
	s.logger.Infof("relay: responded in %s: %q", time.Since(start).Round(time.Millisecond), text)
}

// systemMessage builds the persona prompt, folding in the grounding
// document when one was loaded at session start.
func (s *Session) systemMessage() core.LLMMessage {
	var b strings.Builder
	fmt.Fprintf(&b, "You are %s, a helpful AI assistant participating in a live meeting.", s.opts.BotName)
	if s.grounding != "" {
		b.WriteString("\n\n=== Project Summary ===\n\n")
		b.WriteString(s.grounding)
		b.WriteString("\n\n=== End of Project Summary ===")
	}
	b.WriteString("\n\nGuidelines:\n")
	b.WriteString("- Be concise and conversational; your answers are spoken aloud\n")
	b.WriteString("- Keep responses to one to three sentences unless asked for detail\n")
	b.WriteString("- Do not use markdown, bullet points, or other formatting")
	return core.LLMMessage{Role: core.LLMMessageRoleSystem, Message: b.String()}
}
