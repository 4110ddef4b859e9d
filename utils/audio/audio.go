// Package audio converts between the 16-bit linear PCM the speech providers
// expect and the G.711 encodings carried by telephony-style transports.
package audio

import (
	"fmt"

	"voicerelay/core"

	"github.com/zaf/g711"
)

// ToPCM decodes a chunk to 16-bit linear PCM. Chunks already in PCM are
// returned unchanged.
func ToPCM(chunk core.AudioChunk) (core.AudioChunk, error) {
	switch chunk.Format {
	case core.PCM:
		return chunk, nil
	case core.ULAW:
		return core.AudioChunk{
			Data:       g711.DecodeUlaw(chunk.Data),
			SampleRate: chunk.SampleRate,
			Channels:   chunk.Channels,
			Format:     core.PCM,
		}, nil
	case core.ALAW:
		return core.AudioChunk{
			Data:       g711.DecodeAlaw(chunk.Data),
			SampleRate: chunk.SampleRate,
			Channels:   chunk.Channels,
			Format:     core.PCM,
		}, nil
	default:
		return core.AudioChunk{}, fmt.Errorf("audio: unsupported source format %d", chunk.Format)
	}
}

// FromPCM encodes a 16-bit linear PCM chunk into the target format.
func FromPCM(chunk core.AudioChunk, target core.AudioEncodingFormat) (core.AudioChunk, error) {
	if chunk.Format != core.PCM {
		return core.AudioChunk{}, fmt.Errorf("audio: source must be PCM, got %d", chunk.Format)
	}
	switch target {
	case core.PCM:
		return chunk, nil
	case core.ULAW:
		return core.AudioChunk{
			Data:       g711.EncodeUlaw(chunk.Data),
			SampleRate: chunk.SampleRate,
			Channels:   chunk.Channels,
			Format:     core.ULAW,
		}, nil
	case core.ALAW:
		return core.AudioChunk{
			Data:       g711.EncodeAlaw(chunk.Data),
			SampleRate: chunk.SampleRate,
			Channels:   chunk.Channels,
			Format:     core.ALAW,
		}, nil
	default:
		return core.AudioChunk{}, fmt.Errorf("audio: unsupported target format %d", target)
	}
}
