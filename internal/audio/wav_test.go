package audio

import (
	"bytes"
	"encoding/binary"
	"errors"
	"testing"
)

func makeWAV(t *testing.T, samples []int16, sampleRate int, channels uint16) []byte {
	t.Helper()

	dataSize := uint32(len(samples) * 2)
	header := WAVHeader{
		ChunkID:       [4]byte{'R', 'I', 'F', 'F'},
		ChunkSize:     36 + dataSize,
		Format:        [4]byte{'W', 'A', 'V', 'E'},
		Subchunk1ID:   [4]byte{'f', 'm', 't', ' '},
		Subchunk1Size: 16,
		AudioFormat:   1,
		NumChannels:   channels,
		SampleRate:    uint32(sampleRate),
		ByteRate:      uint32(sampleRate) * uint32(channels) * 2,
		BlockAlign:    channels * 2,
		BitsPerSample: 16,
		Subchunk2ID:   [4]byte{'d', 'a', 't', 'a'},
		Subchunk2Size: dataSize,
	}

	buf := &bytes.Buffer{}
	if err := binary.Write(buf, binary.LittleEndian, header); err != nil {
		t.Fatalf("Failed to write header: %v", err)
	}
	if err := binary.Write(buf, binary.LittleEndian, samples); err != nil {
		t.Fatalf("Failed to write samples: %v", err)
	}
	return buf.Bytes()
}

func TestEncodeDecodeWAV(t *testing.T) {
	samples := []int16{0, 100, -100, 32767, -32768, 42}
	encoded, err := EncodeWAV(samples, 16000)
	if err != nil {
		t.Fatalf("Failed to encode WAV: %v", err)
	}

	decoded, rate, channels, err := DecodeWAV(encoded)
	if err != nil {
		t.Fatalf("Failed to decode WAV: %v", err)
	}
	if rate != 16000 {
		t.Errorf("Expected sample rate 16000, got %d", rate)
	}
	if channels != 1 {
		t.Errorf("Expected 1 channel, got %d", channels)
	}
	if len(decoded) != len(samples) {
		t.Fatalf("Expected %d samples, got %d", len(samples), len(decoded))
	}
	for i := range samples {
		if decoded[i] != samples[i] {
			t.Errorf("Sample %d: expected %d, got %d", i, samples[i], decoded[i])
		}
	}
}

func TestEncodeWAVEmpty(t *testing.T) {
	if _, err := EncodeWAV(nil, 16000); !errors.Is(err, ErrEmptyAudio) {
		t.Errorf("Expected ErrEmptyAudio, got %v", err)
	}
}

func TestDecodeWAVRejectsGarbage(t *testing.T) {
	t.Run("TooShort", func(t *testing.T) {
		if _, _, _, err := DecodeWAV([]byte("short")); !errors.Is(err, ErrUnsupportedFormat) {
			t.Errorf("Expected ErrUnsupportedFormat, got %v", err)
		}
	})

	t.Run("NotRIFF", func(t *testing.T) {
		data := make([]byte, 64)
		copy(data, "NOPE")
		if _, _, _, err := DecodeWAV(data); !errors.Is(err, ErrUnsupportedFormat) {
			t.Errorf("Expected ErrUnsupportedFormat, got %v", err)
		}
	})
}

func TestDownmixMono(t *testing.T) {
	stereo := []int16{100, 200, -100, -200, 0, 50}
	mono := DownmixMono(stereo, 2)

	expected := []int16{150, -150, 25}
	if len(mono) != len(expected) {
		t.Fatalf("Expected %d samples, got %d", len(expected), len(mono))
	}
	for i := range expected {
		if mono[i] != expected[i] {
			t.Errorf("Sample %d: expected %d, got %d", i, expected[i], mono[i])
		}
	}

	// Mono passes through untouched
	in := []int16{1, 2, 3}
	out := DownmixMono(in, 1)
	if len(out) != 3 || out[0] != 1 {
		t.Error("Expected mono input returned unchanged")
	}
}

func TestResample(t *testing.T) {
	samples := make([]int16, 32000)
	for i := range samples {
		samples[i] = int16(i % 1000)
	}

	down := Resample(samples, 32000, 16000)
	if len(down) != 16000 {
		t.Errorf("Expected 16000 samples after 2:1 downsample, got %d", len(down))
	}

	same := Resample(samples, 16000, 16000)
	if len(same) != len(samples) {
		t.Error("Expected identical rate to be a no-op")
	}
}

func TestNormalize(t *testing.T) {
	t.Run("EmptyPayload", func(t *testing.T) {
		if _, err := Normalize(nil, "audio/wav", 16000); !errors.Is(err, ErrEmptyAudio) {
			t.Errorf("Expected ErrEmptyAudio, got %v", err)
		}
	})

	t.Run("UnsupportedContentType", func(t *testing.T) {
		if _, err := Normalize([]byte{1, 2, 3}, "video/mp4", 16000); !errors.Is(err, ErrUnsupportedFormat) {
			t.Errorf("Expected ErrUnsupportedFormat, got %v", err)
		}
	})

	t.Run("StereoWAVDownmixedAndResampled", func(t *testing.T) {
		samples := make([]int16, 8000) // interleaved stereo at 32kHz
		data := makeWAV(t, samples, 32000, 2)

		clip, err := Normalize(data, "audio/wav", 16000)
		if err != nil {
			t.Fatalf("Failed to normalize WAV: %v", err)
		}
		if clip.SampleRate != 16000 {
			t.Errorf("Expected 16000 sample rate, got %d", clip.SampleRate)
		}
		decoded, rate, channels, err := DecodeWAV(clip.Data)
		if err != nil {
			t.Fatalf("Failed to decode normalized clip: %v", err)
		}
		if rate != 16000 || channels != 1 {
			t.Errorf("Expected 16kHz mono, got %dHz %dch", rate, channels)
		}
		if len(decoded) != 2000 { // 4000 mono frames at 32k -> 2000 at 16k
			t.Errorf("Expected 2000 samples, got %d", len(decoded))
		}
	})

	t.Run("CompressedPassThrough", func(t *testing.T) {
		payload := []byte{0xff, 0xfb, 0x90, 0x00} // mpeg frame-ish bytes
		clip, err := Normalize(payload, "audio/mpeg", 16000)
		if err != nil {
			t.Fatalf("Failed to normalize mpeg payload: %v", err)
		}
		if !bytes.Equal(clip.Data, payload) {
			t.Error("Expected compressed payload to pass through untouched")
		}
		if clip.ContentType != "audio/mpeg" {
			t.Errorf("Expected content type preserved, got %s", clip.ContentType)
		}
	})
}
