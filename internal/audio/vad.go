package audio

import (
	"encoding/binary"
	"fmt"

	webrtcvad "github.com/maxhawkins/go-webrtcvad"
)

// Classifier decides whether a batch of samples contains voice activity.
type Classifier interface {
	Active(samples []float32) bool
}

// PeakClassifier flags activity when any sample's absolute amplitude exceeds
// the threshold. Cheap enough for audio-callback rate and the default
// segmentation policy.
type PeakClassifier struct {
	Threshold float64
}

// Active reports whether the peak absolute amplitude exceeds the threshold.
func (c PeakClassifier) Active(samples []float32) bool {
	for _, s := range samples {
		if s < 0 {
			s = -s
		}
		if float64(s) > c.Threshold {
			return true
		}
	}
	return false
}

// WebRTCClassifier uses the WebRTC voice activity detector, which separates
// speech from steady background noise better than a raw amplitude threshold.
type WebRTCClassifier struct {
	vad        *webrtcvad.VAD
	sampleRate int
	frameSize  int // samples per 20ms frame

	// carry holds a partial frame between calls so short feeds still get
	// classified once enough audio has arrived
	carry []float32
}

// NewWebRTCClassifier creates a WebRTC VAD classifier. Mode ranges 0-3;
// higher filters more aggressively.
func NewWebRTCClassifier(sampleRate, mode int) (*WebRTCClassifier, error) {
	switch sampleRate {
	case 8000, 16000, 32000, 48000:
	default:
		return nil, fmt.Errorf("invalid sample rate %d for WebRTC VAD", sampleRate)
	}

	vad, err := webrtcvad.New()
	if err != nil {
		return nil, fmt.Errorf("failed to create WebRTC VAD: %w", err)
	}

	if mode < 0 {
		mode = 0
	}
	if mode > 3 {
		mode = 3
	}
	if err := vad.SetMode(mode); err != nil {
		return nil, fmt.Errorf("failed to set VAD mode: %w", err)
	}

	return &WebRTCClassifier{
		vad:        vad,
		sampleRate: sampleRate,
		frameSize:  sampleRate / 50,
	}, nil
}

// Active reports whether any complete 20ms frame in the batch is voiced.
func (c *WebRTCClassifier) Active(samples []float32) bool {
	c.carry = append(c.carry, samples...)

	active := false
	for len(c.carry) >= c.frameSize {
		frame := c.carry[:c.frameSize]
		c.carry = c.carry[c.frameSize:]

		voiced, err := c.vad.Process(c.sampleRate, frameToPCM(frame))
		if err != nil {
			continue
		}
		if voiced {
			active = true
		}
	}
	return active
}

// frameToPCM converts float32 samples to little-endian 16-bit PCM bytes.
func frameToPCM(samples []float32) []byte {
	buf := make([]byte, len(samples)*2)
	for i, s := range samples {
		if s > 1.0 {
			s = 1.0
		}
		if s < -1.0 {
			s = -1.0
		}
		binary.LittleEndian.PutUint16(buf[i*2:], uint16(int16(s*32767)))
	}
	return buf
}
