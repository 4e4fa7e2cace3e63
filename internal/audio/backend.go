package audio

// Device describes one capture-capable audio device.
type Device struct {
	ID                int
	Name              string
	MaxInputChannels  int
	DefaultSampleRate float64
	IsDefault         bool
}

// SessionParams describes the stream a caller wants opened. The backend
// negotiates with the hardware; the session's Spec reports what was
// actually granted.
type SessionParams struct {
	// Device selects by name; empty selects the system default input.
	Device          string
	Channels        int
	SampleRate      float64
	FramesPerBuffer int
}

// StreamSpec is the format a session actually delivers, which may
// differ from what was requested (devices keep their native rate).
type StreamSpec struct {
	Format     SampleFormat
	Channels   int
	SampleRate float64
}

// CaptureSession is one open capture stream. Buffers are pushed from
// the device's own callback context; the channel is bounded and the
// session drops the oldest pending buffer rather than blocking the
// callback.
type CaptureSession interface {
	Start() error
	Stop() error
	// Buffers delivers raw capture blocks. The channel is closed when
	// the session stops.
	Buffers() <-chan *RawBuffer
	// Spec reports the negotiated stream format.
	Spec() StreamSpec
}

// Backend abstracts a platform audio API (PortAudio here; a WASAPI,
// ALSA/Pulse, or CoreAudio binding would satisfy the same interface).
// The pipeline coordinator depends only on this interface, never on a
// concrete backend.
type Backend interface {
	Name() string
	Initialize() error
	Terminate() error
	Devices() ([]Device, error)
	Open(params SessionParams) (CaptureSession, error)
}
