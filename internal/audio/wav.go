package audio

import (
	"encoding/binary"
	"fmt"
)

const (
	wavHeaderSize = 44
	fmtChunkSize  = 16
	pcmFormatCode = 1
)

// BuildWAV wraps raw PCM16LE bytes in a minimal RIFF/WAVE container.
// The payload is copied verbatim into the data sub-chunk; no resampling
// or conversion happens here.
func BuildWAV(pcm []byte, f Format) []byte {
	byteRate := f.SampleRate * f.Channels * f.BitsPerSample / 8
	blockAlign := f.Channels * f.BitsPerSample / 8
	dataSize := len(pcm)
	riffChunkSize := 4 + (8 + fmtChunkSize) + (8 + dataSize)

	out := make([]byte, 0, wavHeaderSize+dataSize)

	out = append(out, 'R', 'I', 'F', 'F')
	out = binary.LittleEndian.AppendUint32(out, uint32(riffChunkSize))
	out = append(out, 'W', 'A', 'V', 'E')

	out = append(out, 'f', 'm', 't', ' ')
	out = binary.LittleEndian.AppendUint32(out, fmtChunkSize)
	out = binary.LittleEndian.AppendUint16(out, pcmFormatCode)
	out = binary.LittleEndian.AppendUint16(out, uint16(f.Channels))
	out = binary.LittleEndian.AppendUint32(out, uint32(f.SampleRate))
	out = binary.LittleEndian.AppendUint32(out, uint32(byteRate))
	out = binary.LittleEndian.AppendUint16(out, uint16(blockAlign))
	out = binary.LittleEndian.AppendUint16(out, uint16(f.BitsPerSample))

	out = append(out, 'd', 'a', 't', 'a')
	out = binary.LittleEndian.AppendUint32(out, uint32(dataSize))
	out = append(out, pcm...)

	return out
}

// ParseWAVHeader parses a container produced by BuildWAV and returns the
// format parameters and the payload length. It is the exact inverse of
// BuildWAV for valid input.
func ParseWAVHeader(data []byte) (Format, int, error) {
	var f Format

	if len(data) < wavHeaderSize {
		return f, 0, fmt.Errorf("WAV data too short: need at least %d bytes, got %d", wavHeaderSize, len(data))
	}

	if string(data[0:4]) != "RIFF" {
		return f, 0, fmt.Errorf("invalid WAV file: missing RIFF header")
	}
	if string(data[8:12]) != "WAVE" {
		return f, 0, fmt.Errorf("invalid WAV file: missing WAVE format")
	}
	if string(data[12:16]) != "fmt " {
		return f, 0, fmt.Errorf("invalid WAV file: missing fmt chunk")
	}
	if string(data[36:40]) != "data" {
		return f, 0, fmt.Errorf("invalid WAV file: missing data chunk")
	}

	if code := binary.LittleEndian.Uint16(data[20:22]); code != pcmFormatCode {
		return f, 0, fmt.Errorf("unsupported audio format code: %d (only PCM is supported)", code)
	}

	f.Channels = int(binary.LittleEndian.Uint16(data[22:24]))
	f.SampleRate = int(binary.LittleEndian.Uint32(data[24:28]))
	f.BitsPerSample = int(binary.LittleEndian.Uint16(data[34:36]))

	dataSize := int(binary.LittleEndian.Uint32(data[40:44]))
	if wavHeaderSize+dataSize > len(data) {
		return f, 0, fmt.Errorf("truncated WAV data: header declares %d payload bytes, %d present",
			dataSize, len(data)-wavHeaderSize)
	}

	return f, dataSize, nil
}

// WAVPayload returns the PCM payload of a container produced by BuildWAV
func WAVPayload(data []byte) ([]byte, error) {
	_, dataSize, err := ParseWAVHeader(data)
	if err != nil {
		return nil, err
	}
	return data[wavHeaderSize : wavHeaderSize+dataSize], nil
}

// WAVDuration calculates the duration of a WAV container in seconds
func WAVDuration(data []byte) (float64, error) {
	f, dataSize, err := ParseWAVHeader(data)
	if err != nil {
		return 0, err
	}
	rate := f.BytesPerSecond()
	if rate == 0 {
		return 0, fmt.Errorf("invalid byte rate in WAV header")
	}
	return float64(dataSize) / float64(rate), nil
}
