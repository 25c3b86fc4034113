package audio

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"time"
)

const (
	// Capture format: 16kHz mono signed 16-bit little-endian.
	SampleRate    = 16000
	Channels      = 1
	bytesPerFrame = 2 // s16 mono

	wavHeaderSize = 44
)

// MimeTypeWAV tags finalized clips assembled by this package.
const MimeTypeWAV = "audio/wav"

var ErrNotWAV = errors.New("data is not a RIFF/WAVE container")

// EncodeWAV wraps raw PCM in a minimal RIFF/WAVE container.
func EncodeWAV(pcm []byte) []byte {
	buf := bytes.NewBuffer(make([]byte, 0, wavHeaderSize+len(pcm)))

	byteRate := SampleRate * Channels * bytesPerFrame

	buf.WriteString("RIFF")
	binary.Write(buf, binary.LittleEndian, uint32(36+len(pcm)))
	buf.WriteString("WAVE")

	buf.WriteString("fmt ")
	binary.Write(buf, binary.LittleEndian, uint32(16))
	binary.Write(buf, binary.LittleEndian, uint16(1)) // PCM
	binary.Write(buf, binary.LittleEndian, uint16(Channels))
	binary.Write(buf, binary.LittleEndian, uint32(SampleRate))
	binary.Write(buf, binary.LittleEndian, uint32(byteRate))
	binary.Write(buf, binary.LittleEndian, uint16(Channels*bytesPerFrame))
	binary.Write(buf, binary.LittleEndian, uint16(16)) // bits per sample

	buf.WriteString("data")
	binary.Write(buf, binary.LittleEndian, uint32(len(pcm)))
	buf.Write(pcm)

	return buf.Bytes()
}

// ProbeDuration reads the container header of a finalized clip and
// derives its playback length. Used as the transient decoder for the
// post-finalize duration refinement.
func ProbeDuration(data []byte) (time.Duration, error) {
	if len(data) < wavHeaderSize {
		return 0, ErrNotWAV
	}
	if string(data[0:4]) != "RIFF" || string(data[8:12]) != "WAVE" {
		return 0, ErrNotWAV
	}

	channels := binary.LittleEndian.Uint16(data[22:24])
	rate := binary.LittleEndian.Uint32(data[24:28])
	bits := binary.LittleEndian.Uint16(data[34:36])
	dataLen := binary.LittleEndian.Uint32(data[40:44])

	if channels == 0 || rate == 0 || bits == 0 {
		return 0, fmt.Errorf("wav header carries zero format fields")
	}

	bytesPerSec := int64(rate) * int64(channels) * int64(bits/8)
	if bytesPerSec == 0 {
		return 0, fmt.Errorf("wav header yields zero byte rate")
	}

	return time.Duration(int64(dataLen) * int64(time.Second) / bytesPerSec), nil
}
