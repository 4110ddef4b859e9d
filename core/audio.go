package core

type AudioEncodingFormat int

const (
	PCM  AudioEncodingFormat = iota // 16-bit linear pulse-code modulation.
	ULAW                            // G.711 μ-law.
	ALAW                            // G.711 A-law.
)

// String returns the Deepgram API name for the encoding.
func (f AudioEncodingFormat) String() string {
	switch f {
	case ULAW:
		return "mulaw"
	case ALAW:
		return "alaw"
	default:
		return "linear16"
	}
}

// ParseAudioEncoding maps a config string to an AudioEncodingFormat.
// Unknown values fall back to linear PCM.
func ParseAudioEncoding(s string) AudioEncodingFormat {
	switch s {
	case "mulaw", "ulaw":
		return ULAW
	case "alaw":
		return ALAW
	default:
		return PCM
	}
}

type AudioChunk struct {
	Data       []byte              // Raw audio data.
	SampleRate int                 // Sample rate of the audio data.
	Channels   int                 // Number of audio channels.
	Format     AudioEncodingFormat // Encoding format of the audio data.
}

func (ac *AudioChunk) GetDurationInSeconds() float64 {
	if ac.SampleRate == 0 || ac.Channels == 0 {
		return 0.0
	}
	bytesPerSample := 2
	if ac.Format != PCM {
		bytesPerSample = 1 // G.711 is 8-bit
	}
	totalSamples := len(ac.Data) / (bytesPerSample * ac.Channels)
	return float64(totalSamples) / float64(ac.SampleRate)
}
