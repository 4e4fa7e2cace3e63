package audio

import (
	"fmt"
	"math"
	"os"
	"sync/atomic"

	goaudio "github.com/go-audio/audio"
	"github.com/go-audio/wav"
)

// Recorder writes the normalized mono capture stream to a 16-bit WAV
// file. State transitions use an atomic flag so Start/Stop may be
// called from a different goroutine than Write.
type Recorder struct {
	recording  atomic.Int32
	outputFile *os.File
	encoder    *wav.Encoder
	sampleBuf  *goaudio.IntBuffer
}

func NewRecorder() *Recorder {
	return &Recorder{}
}

// Start opens filename and begins encoding at the given sample rate.
func (r *Recorder) Start(filename string, sampleRate int) error {
	if r.recording.Load() == 1 {
		return fmt.Errorf("already recording")
	}

	file, err := os.Create(filename)
	if err != nil {
		return err
	}
	r.outputFile = file

	r.encoder = wav.NewEncoder(file, sampleRate, 16, 1, 1)
	r.sampleBuf = &goaudio.IntBuffer{
		Format: &goaudio.Format{
			NumChannels: 1,
			SampleRate:  sampleRate,
		},
	}

	r.recording.Store(1)
	return nil
}

// Write appends normalized samples in [-1, 1] to the recording. A no-op
// when not recording, so the pipeline can call it unconditionally.
func (r *Recorder) Write(samples []float64) error {
	if r.recording.Load() == 0 || r.encoder == nil {
		return nil
	}

	if cap(r.sampleBuf.Data) < len(samples) {
		r.sampleBuf.Data = make([]int, len(samples))
	}
	r.sampleBuf.Data = r.sampleBuf.Data[:len(samples)]

	for i, s := range samples {
		if s > 1.0 {
			s = 1.0
		} else if s < -1.0 {
			s = -1.0
		}
		r.sampleBuf.Data[i] = int(s * math.MaxInt16)
	}

	return r.encoder.Write(r.sampleBuf)
}

// Stop finalizes the WAV file. Safe to call when not recording.
func (r *Recorder) Stop() error {
	if r.recording.Load() == 0 {
		return nil
	}
	r.recording.Store(0)

	if r.encoder != nil {
		if err := r.encoder.Close(); err != nil {
			return err
		}
		r.encoder = nil
	}
	if r.outputFile != nil {
		if err := r.outputFile.Close(); err != nil {
			return err
		}
		r.outputFile = nil
	}
	return nil
}

// Active reports whether a recording is in progress.
func (r *Recorder) Active() bool {
	return r.recording.Load() == 1
}
