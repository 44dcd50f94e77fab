package stt

import (
	"bytes"
	"encoding/binary"
	"testing"
)

func TestEncodeWAV(t *testing.T) {
	samples := []float32{0, 0.5, -0.5, 1.0, -1.0, 2.0}
	var buf bytes.Buffer
	if err := EncodeWAV(&buf, samples, 16000); err != nil {
		t.Fatalf("encode: %v", err)
	}

	data := buf.Bytes()
	if len(data) != 44+len(samples)*2 {
		t.Fatalf("size = %d, want %d", len(data), 44+len(samples)*2)
	}
	if string(data[0:4]) != "RIFF" || string(data[8:12]) != "WAVE" {
		t.Error("missing RIFF/WAVE magic")
	}
	if rate := binary.LittleEndian.Uint32(data[24:28]); rate != 16000 {
		t.Errorf("sample rate = %d, want 16000", rate)
	}
	if bits := binary.LittleEndian.Uint16(data[34:36]); bits != 16 {
		t.Errorf("bits per sample = %d, want 16", bits)
	}
	if dataSize := binary.LittleEndian.Uint32(data[40:44]); dataSize != uint32(len(samples)*2) {
		t.Errorf("data size = %d, want %d", dataSize, len(samples)*2)
	}

	pcm := data[44:]
	if v := int16(binary.LittleEndian.Uint16(pcm[0:2])); v != 0 {
		t.Errorf("sample 0 = %d, want 0", v)
	}
	full := int16(binary.LittleEndian.Uint16(pcm[6:8]))
	clamped := int16(binary.LittleEndian.Uint16(pcm[10:12]))
	if full != 32767 || clamped != 32767 {
		t.Errorf("full scale = %d, clamped = %d, want 32767 for both", full, clamped)
	}
	if v := int16(binary.LittleEndian.Uint16(pcm[8:10])); v != -32767 {
		t.Errorf("negative full scale = %d, want -32767", v)
	}
}
