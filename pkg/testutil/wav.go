package testutil

import (
	"bytes"
	"encoding/binary"
)

// WAV builds a 16-bit PCM RIFF/WAVE payload with n silent samples.
func WAV(n int, channels uint16) []byte {
	const (
		sampleRate    = 16000
		bitsPerSample = 16
	)
	blockAlign := channels * bitsPerSample / 8
	dataSize := uint32(n) * uint32(blockAlign)

	var buf bytes.Buffer
	buf.WriteString("RIFF")
	_ = binary.Write(&buf, binary.LittleEndian, uint32(36)+dataSize)
	buf.WriteString("WAVE")
	buf.WriteString("fmt ")
	_ = binary.Write(&buf, binary.LittleEndian, uint32(16))
	_ = binary.Write(&buf, binary.LittleEndian, uint16(1))
	_ = binary.Write(&buf, binary.LittleEndian, channels)
	_ = binary.Write(&buf, binary.LittleEndian, uint32(sampleRate))
	_ = binary.Write(&buf, binary.LittleEndian, uint32(sampleRate)*uint32(blockAlign))
	_ = binary.Write(&buf, binary.LittleEndian, blockAlign)
	_ = binary.Write(&buf, binary.LittleEndian, uint16(bitsPerSample))
	buf.WriteString("data")
	_ = binary.Write(&buf, binary.LittleEndian, dataSize)
	buf.Write(make([]byte, dataSize))
	return buf.Bytes()
}

// MonoWAV is WAV with a single channel.
func MonoWAV(n int) []byte { return WAV(n, 1) }
