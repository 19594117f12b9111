package encoder

import (
	"log"

	"github.com/richinsley/gospinner/graphics"
)

// Recorder reads back every drawn frame and hands it to an Encoder.
type Recorder struct {
	enc   *Encoder
	dev   graphics.Device
	abort func(error)
	err   error
}

// NewRecorder returns a recorder reading from dev. abort, if not nil, is
// called once with the first write error.
func NewRecorder(enc *Encoder, dev graphics.Device, abort func(error)) *Recorder {
	return &Recorder{enc: enc, dev: dev, abort: abort}
}

// Capture reads the framebuffer and queues it. It is meant to run between a
// tick's draw call and the buffer swap.
func (r *Recorder) Capture() {
	if r.err != nil {
		return
	}
	w, h := r.enc.Size()
	if err := r.enc.WriteFrame(r.dev.ReadPixels(w, h)); err != nil {
		r.err = err
		log.Printf("Error recording frame %d: %v", r.enc.Frames()+1, err)
		if r.abort != nil {
			r.abort(err)
		}
	}
}

// Err returns the first error met while recording.
func (r *Recorder) Err() error { return r.err }
