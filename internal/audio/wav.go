package audio

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
)

var (
	// ErrEmptyAudio is returned for an empty upload
	ErrEmptyAudio = errors.New("audio payload is empty")
	// ErrUnsupportedFormat is returned when the container or codec cannot
	// be accepted or converted
	ErrUnsupportedFormat = errors.New("unsupported audio format")
)

// allowedContentTypes lists the upload content types the recognition
// backend accepts.
var allowedContentTypes = map[string]bool{
	"audio/wav":    true,
	"audio/x-wav":  true,
	"audio/wave":   true,
	"audio/mpeg":   true,
	"audio/mp3":    true,
	"audio/ogg":    true,
	"audio/webm":   true,
	"audio/flac":   true,
	"audio/x-flac": true,
}

// Supported reports whether an upload content type is accepted
func Supported(contentType string) bool {
	return allowedContentTypes[contentType]
}

// WAVHeader represents the canonical 44-byte WAV file header
type WAVHeader struct {
	ChunkID       [4]byte // "RIFF"
	ChunkSize     uint32  // File size - 8 bytes
	Format        [4]byte // "WAVE"
	Subchunk1ID   [4]byte // "fmt "
	Subchunk1Size uint32  // 16 for PCM
	AudioFormat   uint16  // 1 for PCM
	NumChannels   uint16
	SampleRate    uint32
	ByteRate      uint32 // SampleRate * NumChannels * BitsPerSample / 8
	BlockAlign    uint16 // NumChannels * BitsPerSample / 8
	BitsPerSample uint16
	Subchunk2ID   [4]byte // "data"
	Subchunk2Size uint32  // Number of bytes in the data
}

// EncodeWAV encodes mono PCM-16 samples into WAV format
func EncodeWAV(samples []int16, sampleRate int) ([]byte, error) {
	if len(samples) == 0 {
		return nil, ErrEmptyAudio
	}
	if sampleRate <= 0 {
		return nil, fmt.Errorf("sample rate must be positive, got %d", sampleRate)
	}

	numChannels := uint16(1)
	bitsPerSample := uint16(16)
	dataSize := uint32(len(samples) * 2)

	header := WAVHeader{
		ChunkID:       [4]byte{'R', 'I', 'F', 'F'},
		ChunkSize:     36 + dataSize,
		Format:        [4]byte{'W', 'A', 'V', 'E'},
		Subchunk1ID:   [4]byte{'f', 'm', 't', ' '},
		Subchunk1Size: 16,
		AudioFormat:   1, // PCM
		NumChannels:   numChannels,
		SampleRate:    uint32(sampleRate),
		ByteRate:      uint32(sampleRate) * uint32(numChannels) * uint32(bitsPerSample) / 8,
		BlockAlign:    numChannels * bitsPerSample / 8,
		BitsPerSample: bitsPerSample,
		Subchunk2ID:   [4]byte{'d', 'a', 't', 'a'},
		Subchunk2Size: dataSize,
	}

	buf := bytes.NewBuffer(make([]byte, 0, 44+len(samples)*2))
	if err := binary.Write(buf, binary.LittleEndian, header); err != nil {
		return nil, fmt.Errorf("failed to write WAV header: %w", err)
	}
	if err := binary.Write(buf, binary.LittleEndian, samples); err != nil {
		return nil, fmt.Errorf("failed to write audio data: %w", err)
	}

	return buf.Bytes(), nil
}

// DecodeWAV decodes PCM-16 WAV data into interleaved samples. Mono and
// stereo are accepted; anything else is unsupported.
func DecodeWAV(data []byte) (samples []int16, sampleRate, channels int, err error) {
	if len(data) < 44 {
		return nil, 0, 0, fmt.Errorf("%w: WAV data too short (%d bytes)", ErrUnsupportedFormat, len(data))
	}

	buf := bytes.NewReader(data)
	var header WAVHeader
	if err := binary.Read(buf, binary.LittleEndian, &header); err != nil {
		return nil, 0, 0, fmt.Errorf("failed to read WAV header: %w", err)
	}

	if string(header.ChunkID[:]) != "RIFF" || string(header.Format[:]) != "WAVE" {
		return nil, 0, 0, fmt.Errorf("%w: missing RIFF/WAVE header", ErrUnsupportedFormat)
	}
	if string(header.Subchunk1ID[:]) != "fmt " || string(header.Subchunk2ID[:]) != "data" {
		return nil, 0, 0, fmt.Errorf("%w: missing fmt/data chunk", ErrUnsupportedFormat)
	}
	if header.AudioFormat != 1 {
		return nil, 0, 0, fmt.Errorf("%w: audio format %d (only PCM)", ErrUnsupportedFormat, header.AudioFormat)
	}
	if header.BitsPerSample != 16 {
		return nil, 0, 0, fmt.Errorf("%w: bit depth %d (only 16-bit)", ErrUnsupportedFormat, header.BitsPerSample)
	}
	if header.NumChannels != 1 && header.NumChannels != 2 {
		return nil, 0, 0, fmt.Errorf("%w: channel count %d", ErrUnsupportedFormat, header.NumChannels)
	}

	numSamples := int(header.Subchunk2Size) / 2
	if numSamples <= 0 {
		return nil, 0, 0, ErrEmptyAudio
	}
	if 44+numSamples*2 > len(data) {
		numSamples = (len(data) - 44) / 2
	}

	samples = make([]int16, numSamples)
	if err := binary.Read(buf, binary.LittleEndian, samples); err != nil {
		return nil, 0, 0, fmt.Errorf("failed to read audio samples: %w", err)
	}

	return samples, int(header.SampleRate), int(header.NumChannels), nil
}

// DownmixMono collapses interleaved stereo samples to mono by averaging
// channel pairs. Mono input is returned unchanged.
func DownmixMono(samples []int16, channels int) []int16 {
	if channels <= 1 {
		return samples
	}
	mono := make([]int16, len(samples)/channels)
	for i := range mono {
		var sum int32
		for c := 0; c < channels; c++ {
			sum += int32(samples[i*channels+c])
		}
		mono[i] = int16(sum / int32(channels))
	}
	return mono
}

// Resample converts mono PCM samples between rates using linear
// interpolation. Good enough for speech recognition input.
func Resample(samples []int16, fromRate, toRate int) []int16 {
	if fromRate == toRate || len(samples) == 0 {
		return samples
	}
	ratio := float64(fromRate) / float64(toRate)
	outLen := int(float64(len(samples)) / ratio)
	if outLen == 0 {
		outLen = 1
	}
	out := make([]int16, outLen)
	for i := range out {
		pos := float64(i) * ratio
		idx := int(pos)
		if idx >= len(samples)-1 {
			out[i] = samples[len(samples)-1]
			continue
		}
		frac := pos - float64(idx)
		out[i] = int16(float64(samples[idx])*(1-frac) + float64(samples[idx+1])*frac)
	}
	return out
}

// Clip is an audio payload normalized for the recognition backend
type Clip struct {
	Data        []byte
	ContentType string
	SampleRate  int
}

// Normalize validates an uploaded payload and converts it when feasible.
// PCM WAV is downmixed to mono and resampled to targetRate; compressed
// containers pass through untouched since the recognition backend decodes
// them itself.
func Normalize(data []byte, contentType string, targetRate int) (*Clip, error) {
	if len(data) == 0 {
		return nil, ErrEmptyAudio
	}
	if !Supported(contentType) {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedFormat, contentType)
	}

	switch contentType {
	case "audio/wav", "audio/x-wav", "audio/wave":
		samples, rate, channels, err := DecodeWAV(data)
		if err != nil {
			return nil, err
		}
		mono := DownmixMono(samples, channels)
		if targetRate > 0 && rate != targetRate {
			mono = Resample(mono, rate, targetRate)
			rate = targetRate
		}
		encoded, err := EncodeWAV(mono, rate)
		if err != nil {
			return nil, err
		}
		return &Clip{Data: encoded, ContentType: "audio/wav", SampleRate: rate}, nil
	default:
		return &Clip{Data: data, ContentType: contentType}, nil
	}
}
