package audio

import (
	"encoding/binary"
	"errors"
	"io"
)

const (
	wavHeaderSize = 44

	// DefaultPlaybackRate is the sample rate the remote model synthesizes at.
	DefaultPlaybackRate = 24000
	// DefaultCaptureRate is the sample rate microphone audio is streamed at.
	DefaultCaptureRate = 16000
)

var ErrEmptyPCM = errors.New("empty pcm payload")

// WrapPCM wraps raw PCM16LE mono audio in a WAV container so playback
// devices that cannot consume raw PCM accept it. The header is the fixed
// 44-byte RIFF layout: declared file size 36+len(pcm), data chunk size
// len(pcm), all multi-byte fields little-endian.
func WrapPCM(pcm []byte, sampleRate int) ([]byte, error) {
	if len(pcm) == 0 {
		return nil, ErrEmptyPCM
	}
	if sampleRate <= 0 {
		sampleRate = DefaultPlaybackRate
	}

	const (
		numChannels   = 1
		bitsPerSample = 16
		audioFormat   = 1 // PCM
	)
	dataSize := uint32(len(pcm))
	byteRate := uint32(sampleRate * numChannels * bitsPerSample / 8)
	blockAlign := uint16(numChannels * bitsPerSample / 8)

	out := make([]byte, wavHeaderSize+len(pcm))
	copy(out[0:4], "RIFF")
	binary.LittleEndian.PutUint32(out[4:8], 36+dataSize)
	copy(out[8:12], "WAVE")

	copy(out[12:16], "fmt ")
	binary.LittleEndian.PutUint32(out[16:20], 16)
	binary.LittleEndian.PutUint16(out[20:22], audioFormat)
	binary.LittleEndian.PutUint16(out[22:24], numChannels)
	binary.LittleEndian.PutUint32(out[24:28], uint32(sampleRate))
	binary.LittleEndian.PutUint32(out[28:32], byteRate)
	binary.LittleEndian.PutUint16(out[32:34], blockAlign)
	binary.LittleEndian.PutUint16(out[34:36], bitsPerSample)

	copy(out[36:40], "data")
	binary.LittleEndian.PutUint32(out[40:44], dataSize)
	copy(out[44:], pcm)
	return out, nil
}

// WriteWAV writes pcm as a WAV stream to out.
func WriteWAV(out io.Writer, pcm []byte, sampleRate int) error {
	wav, err := WrapPCM(pcm, sampleRate)
	if err != nil {
		return err
	}
	_, err = out.Write(wav)
	return err
}
