package protocol

import (
	"fmt"

	"github.com/bytedance/sonic"
)

// Marshal JSON-encodes a control message.
func Marshal(msg interface{}) ([]byte, error) {
	data, err := sonic.Marshal(msg)
	if err != nil {
		return nil, fmt.Errorf("protocol: marshal: %w", err)
	}
	return data, nil
}

// SniffType extracts the type tag from a raw control message so callers can
// dispatch without decoding the full payload. Untyped or malformed payloads
// return an error; they are dropped, never fatal.
func SniffType(data []byte) (MessageType, error) {
	var probe struct {
		Type MessageType `json:"type"`
	}
	if err := sonic.Unmarshal(data, &probe); err != nil {
		return "", fmt.Errorf("protocol: unmarshal: %w", err)
	}
	if probe.Type == "" {
		return "", fmt.Errorf("protocol: message missing type field")
	}
	return probe.Type, nil
}
