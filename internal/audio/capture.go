package audio

import (
	"fmt"
	"sync"

	"github.com/gordonklaus/portaudio"
)

const captureFrames = 512

// Capture reads mono float32 frames from an input device and hands them to
// a sink callback. One Capture owns the PortAudio session for its lifetime.
type Capture struct {
	mu         sync.Mutex
	stream     *portaudio.Stream
	sampleRate int
	deviceName string
	running    bool
	stopped    chan struct{}
}

// NewCapture initializes PortAudio and prepares a capture at the given
// sample rate. deviceName selects an input device by name; empty means the
// system default.
func NewCapture(sampleRate int, deviceName string) (*Capture, error) {
	if err := portaudio.Initialize(); err != nil {
		return nil, fmt.Errorf("portaudio init: %w", err)
	}
	return &Capture{
		sampleRate: sampleRate,
		deviceName: deviceName,
	}, nil
}

// Start opens the input stream and invokes sink with each captured frame
// until Stop. The slice passed to sink is owned by the callee.
func (c *Capture) Start(sink func([]float32)) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.running {
		return fmt.Errorf("capture already running")
	}

	buffer := make([]float32, captureFrames)
	stream, err := c.openStream(buffer)
	if err != nil {
		return fmt.Errorf("open input stream: %w", err)
	}
	if err := stream.Start(); err != nil {
		stream.Close()
		return fmt.Errorf("start input stream: %w", err)
	}

	c.stream = stream
	c.running = true
	c.stopped = make(chan struct{})

	go c.readLoop(stream, buffer, sink, c.stopped)
	return nil
}

func (c *Capture) openStream(buffer []float32) (*portaudio.Stream, error) {
	if c.deviceName != "" && c.deviceName != "default" {
		if device, err := findInputDevice(c.deviceName); err == nil {
			return portaudio.OpenStream(portaudio.StreamParameters{
				Input: portaudio.StreamDeviceParameters{
					Device:   device,
					Channels: 1,
					Latency:  device.DefaultLowInputLatency,
				},
				SampleRate:      float64(c.sampleRate),
				FramesPerBuffer: captureFrames,
			}, buffer)
		}
		// Named device not found; fall through to the default input.
	}
	return portaudio.OpenDefaultStream(1, 0, float64(c.sampleRate), captureFrames, buffer)
}

func (c *Capture) readLoop(stream *portaudio.Stream, buffer []float32, sink func([]float32), stopped chan struct{}) {
	defer close(stopped)
	for {
		c.mu.Lock()
		running := c.running
		c.mu.Unlock()
		if !running {
			return
		}

		if err := stream.Read(); err != nil {
			// Overflows are routine when a transcription stalls the sink;
			// keep reading.
			continue
		}

		samples := make([]float32, len(buffer))
		copy(samples, buffer)
		sink(samples)
	}
}

// Stop halts the read loop and closes the stream.
func (c *Capture) Stop() {
	c.mu.Lock()
	if !c.running {
		c.mu.Unlock()
		return
	}
	c.running = false
	stream := c.stream
	stopped := c.stopped
	c.stream = nil
	c.mu.Unlock()

	<-stopped
	stream.Stop()
	stream.Close()
}

// Close stops capture and terminates the PortAudio session.
func (c *Capture) Close() {
	c.Stop()
	portaudio.Terminate()
}

func findInputDevice(name string) (*portaudio.DeviceInfo, error) {
	devices, err := portaudio.Devices()
	if err != nil {
		return nil, err
	}
	for _, dev := range devices {
		if dev.Name == name && dev.MaxInputChannels > 0 {
			return dev, nil
		}
	}
	return nil, fmt.Errorf("input device not found: %s", name)
}

// InputDevice describes an available capture device.
type InputDevice struct {
	Name       string
	Channels   int
	SampleRate float64
	Default    bool
}

// ListInputDevices enumerates capture-capable devices. It runs its own
// PortAudio session so it can be called before NewCapture.
func ListInputDevices() ([]InputDevice, error) {
	if err := portaudio.Initialize(); err != nil {
		return nil, fmt.Errorf("portaudio init: %w", err)
	}
	defer portaudio.Terminate()

	devices, err := portaudio.Devices()
	if err != nil {
		return nil, err
	}

	var defaultName string
	if def, err := portaudio.DefaultInputDevice(); err == nil {
		defaultName = def.Name
	}

	var out []InputDevice
	for _, dev := range devices {
		if dev.MaxInputChannels > 0 {
			out = append(out, InputDevice{
				Name:       dev.Name,
				Channels:   dev.MaxInputChannels,
				SampleRate: dev.DefaultSampleRate,
				Default:    dev.Name == defaultName,
			})
		}
	}
	return out, nil
}
