package stt

import (
	"encoding/binary"
	"io"
	"os"
)

// EncodeWAV writes mono float32 samples as a 16-bit PCM WAV stream.
func EncodeWAV(w io.Writer, samples []float32, sampleRate int) error {
	int16Samples := make([]int16, len(samples))
	for i, s := range samples {
		if s > 1.0 {
			s = 1.0
		}
		if s < -1.0 {
			s = -1.0
		}
		int16Samples[i] = int16(s * 32767)
	}

	numChannels := uint16(1)
	bitsPerSample := uint16(16)
	byteRate := uint32(sampleRate) * uint32(numChannels) * uint32(bitsPerSample) / 8
	blockAlign := numChannels * bitsPerSample / 8
	dataSize := uint32(len(int16Samples) * 2)

	if _, err := w.Write([]byte("RIFF")); err != nil {
		return err
	}
	if err := binary.Write(w, binary.LittleEndian, uint32(36+dataSize)); err != nil {
		return err
	}
	if _, err := w.Write([]byte("WAVE")); err != nil {
		return err
	}

	if _, err := w.Write([]byte("fmt ")); err != nil {
		return err
	}
	for _, v := range []any{
		uint32(16), // fmt chunk size
		uint16(1),  // PCM
		numChannels,
		uint32(sampleRate),
		byteRate,
		blockAlign,
		bitsPerSample,
	} {
		if err := binary.Write(w, binary.LittleEndian, v); err != nil {
			return err
		}
	}

	if _, err := w.Write([]byte("data")); err != nil {
		return err
	}
	if err := binary.Write(w, binary.LittleEndian, dataSize); err != nil {
		return err
	}
	return binary.Write(w, binary.LittleEndian, int16Samples)
}

// WriteWAVFile writes mono float32 samples to a WAV file on disk.
func WriteWAVFile(path string, samples []float32, sampleRate int) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	return EncodeWAV(f, samples, sampleRate)
}
