// Package encoder records presented frames into a video file by piping raw
// RGBA pixels into an ffmpeg process.
package encoder

import (
	"errors"
	"fmt"
	"io"
	"log"
	"sync"

	ffmpeg "github.com/u2takey/ffmpeg-go"
)

// ErrClosed is returned by WriteFrame after Close.
var ErrClosed = errors.New("encoder is closed")

// frameQueueSize bounds how many frames may wait for the ffmpeg pipe.
const frameQueueSize = 8

// runFunc consumes the raw video stream until EOF.
type runFunc func(stream io.Reader) error

// Encoder feeds frames to ffmpeg from a background goroutine so a slow encode
// does not stall the render thread until the queue is full.
type Encoder struct {
	width     int
	height    int
	frameSize int

	frames chan []byte
	done   chan error
	errc   chan error

	mu       sync.Mutex
	writeErr error
	closed   bool
	written  int64
}

// New starts ffmpeg writing an H.264 video of width x height at fps to path.
// ffmpegPath may be empty to use ffmpeg from PATH.
func New(path string, width, height, fps int, ffmpegPath string) (*Encoder, error) {
	if path == "" {
		return nil, fmt.Errorf("encoder: empty output path")
	}
	if fps <= 0 {
		return nil, fmt.Errorf("encoder: fps must be positive, got %d", fps)
	}
	inputArgs := ffmpeg.KwArgs{
		"format":  "rawvideo",
		"pix_fmt": "rgba",
		"s":       fmt.Sprintf("%dx%d", width, height),
		"r":       fps,
	}
	// glReadPixels returns rows bottom-up.
	outputArgs := ffmpeg.KwArgs{
		"vf":      "vflip",
		"c:v":     "libx264",
		"pix_fmt": "yuv420p",
	}

	run := func(stream io.Reader) error {
		cmd := ffmpeg.Input("pipe:", inputArgs).
			Output(path, outputArgs).
			OverWriteOutput().WithInput(stream).ErrorToStdOut()
		if ffmpegPath != "" {
			cmd = cmd.SetFfmpegPath(ffmpegPath)
		}
		return cmd.Run()
	}
	e, err := newEncoder(width, height, run)
	if err != nil {
		return nil, err
	}
	log.Printf("Recording %dx%d at %d fps to %s", width, height, fps, path)
	return e, nil
}

func newEncoder(width, height int, run runFunc) (*Encoder, error) {
	if width <= 0 || height <= 0 {
		return nil, fmt.Errorf("encoder: invalid frame size %dx%d", width, height)
	}
	e := &Encoder{
		width:     width,
		height:    height,
		frameSize: width * height * 4,
		frames:    make(chan []byte, frameQueueSize),
		done:      make(chan error, 1),
		errc:      make(chan error, 1),
	}

	pipeReader, pipeWriter := io.Pipe()
	go func() {
		err := run(pipeReader)
		// Unblock the writer if ffmpeg exits early.
		pipeReader.CloseWithError(io.ErrClosedPipe)
		e.errc <- err
	}()
	go e.writeLoop(pipeWriter)
	return e, nil
}

func (e *Encoder) writeLoop(w *io.PipeWriter) {
	var err error
	for frame := range e.frames {
		if err != nil {
			continue
		}
		if _, werr := w.Write(frame); werr != nil {
			err = fmt.Errorf("failed to write frame to ffmpeg: %w", werr)
			e.mu.Lock()
			e.writeErr = err
			e.mu.Unlock()
		}
	}
	w.Close()
	e.done <- err
}

// Size returns the frame dimensions the encoder expects.
func (e *Encoder) Size() (int, int) { return e.width, e.height }

// Frames returns the number of frames accepted so far.
func (e *Encoder) Frames() int64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.written
}

// WriteFrame queues one RGBA frame. The pixels are copied, so the caller may
// reuse the slice.
func (e *Encoder) WriteFrame(pixels []byte) error {
	if len(pixels) != e.frameSize {
		return fmt.Errorf("encoder: frame is %d bytes, want %d", len(pixels), e.frameSize)
	}
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return ErrClosed
	}
	if e.writeErr != nil {
		err := e.writeErr
		e.mu.Unlock()
		return err
	}
	e.written++
	e.mu.Unlock()

	frame := make([]byte, len(pixels))
	copy(frame, pixels)
	e.frames <- frame
	return nil
}

// Close flushes queued frames and waits for ffmpeg to finish the file.
func (e *Encoder) Close() error {
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return ErrClosed
	}
	e.closed = true
	e.mu.Unlock()

	close(e.frames)
	writeErr := <-e.done
	runErr := <-e.errc
	if runErr != nil {
		return fmt.Errorf("ffmpeg failed: %w", runErr)
	}
	if writeErr != nil {
		return writeErr
	}
	log.Printf("Recording finished after %d frames", e.Frames())
	return nil
}
