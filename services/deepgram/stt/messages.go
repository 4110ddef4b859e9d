package stt

import (
	"errors"

	"github.com/bytedance/sonic"
)

// ErrMalformedMessage is returned for provider payloads that cannot be
// parsed at all. Such messages are dropped; the read loop continues.
var ErrMalformedMessage = errors.New("stt: malformed provider message")

// MessageKind tags the provider message variants.
type MessageKind int

const (
	// KindOther is valid JSON of a type the relay does not process itself.
	// It still gets relayed to the browser verbatim.
	KindOther MessageKind = iota
	KindResult
	KindMetadata
	KindUtteranceEnd
	KindSpeechStarted
)

// Message is the tagged union of provider messages. Exactly one of the
// pointer fields matching Kind is set.
type Message struct {
	Kind          MessageKind
	Result        *ResultMessage
	Metadata      *MetadataMessage
	UtteranceEnd  *UtteranceEndMessage
	SpeechStarted *SpeechStartedMessage
}

// Message structs based on Deepgram's listen v1 AsyncAPI specification.

type ResultMessage struct {
	Type         string  `json:"type"`
	Duration     float64 `json:"duration"`
	Start        float64 `json:"start"`
	IsFinal      bool    `json:"is_final"`
	SpeechFinal  bool    `json:"speech_final"`
	FromFinalize bool    `json:"from_finalize,omitempty"`
	Channel      struct {
		Alternatives []struct {
			Transcript string  `json:"transcript"`
			Confidence float64 `json:"confidence"`
		} `json:"alternatives"`
	} `json:"channel"`
}

// Transcript returns the first channel alternative's transcript, or "".
func (r *ResultMessage) Transcript() string {
	if len(r.Channel.Alternatives) == 0 {
		return ""
	}
	return r.Channel.Alternatives[0].Transcript
}

// Final reports whether this result closes out an utterance segment.
func (r *ResultMessage) Final() bool {
	return r.IsFinal || r.SpeechFinal || r.FromFinalize
}

type MetadataMessage struct {
	Type      string  `json:"type"`
	RequestID string  `json:"request_id"`
	Duration  float64 `json:"duration"`
	Channels  int     `json:"channels"`
}

type UtteranceEndMessage struct {
	Type        string  `json:"type"`
	Channel     []int   `json:"channel"`
	LastWordEnd float64 `json:"last_word_end"`
}

type SpeechStartedMessage struct {
	Type      string  `json:"type"`
	Channel   []int   `json:"channel"`
	Timestamp float64 `json:"timestamp"`
}

type listenV1KeepAlive struct {
	Type string `json:"type"`
}

type listenV1CloseStream struct {
	Type string `json:"type"`
}

type listenV1Finalize struct {
	Type string `json:"type"`
}

// ParseMessage decodes a raw provider payload into the tagged union.
func ParseMessage(raw []byte) (Message, error) {
	var base struct {
		Type string `json:"type"`
	}
	if err := sonic.Unmarshal(raw, &base); err != nil {
		return Message{}, ErrMalformedMessage
	}

	switch base.Type {
	case "Results":
		var result ResultMessage
		if err := sonic.Unmarshal(raw, &result); err != nil {
			return Message{Kind: KindOther}, nil
		}
		return Message{Kind: KindResult, Result: &result}, nil

	case "Metadata":
		var metadata MetadataMessage
		if err := sonic.Unmarshal(raw, &metadata); err != nil {
			return Message{Kind: KindOther}, nil
		}
		return Message{Kind: KindMetadata, Metadata: &metadata}, nil

	case "UtteranceEnd":
		var utteranceEnd UtteranceEndMessage
		if err := sonic.Unmarshal(raw, &utteranceEnd); err != nil {
			return Message{Kind: KindOther}, nil
		}
		return Message{Kind: KindUtteranceEnd, UtteranceEnd: &utteranceEnd}, nil

	case "SpeechStarted":
		var speechStarted SpeechStartedMessage
		if err := sonic.Unmarshal(raw, &speechStarted); err != nil {
			return Message{Kind: KindOther}, nil
		}
		return Message{Kind: KindSpeechStarted, SpeechStarted: &speechStarted}, nil

	default:
		return Message{Kind: KindOther}, nil
	}
}

func marshalJSON(msg interface{}) ([]byte, error) {
	return sonic.Marshal(msg)
}
