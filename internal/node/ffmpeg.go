package node

import (
	"context"
	"fmt"
	"io"
	"os/exec"
	"sync"
	"time"
)

// FFmpegSource decodes one RTSP stream by piping it through an ffmpeg
// subprocess emitting fixed-size raw RGBA frames on stdout. Codec handling is
// entirely ffmpeg's problem; this side only frames the byte stream.
type FFmpegSource struct {
	uri    string
	width  int
	height int

	mu     sync.Mutex
	cmd    *exec.Cmd
	cancel context.CancelFunc
	frames chan *Frame
	errs   chan error
	closed bool
}

// NewFFmpegSource returns a Source that decodes uri to width x height RGBA.
func NewFFmpegSource(uri string, width, height int) Source {
	return &FFmpegSource{uri: uri, width: width, height: height}
}

// Open implements Source.Open: it spawns ffmpeg and starts the reader that
// slices stdout into frames. Spawn failures wrap ErrConnect.
func (s *FFmpegSource) Open(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrClosed
	}

	procCtx, cancel := context.WithCancel(context.Background())
	cmd := exec.CommandContext(procCtx, "ffmpeg",
		"-nostdin",
		"-loglevel", "error",
		"-rtsp_transport", "tcp",
		"-i", s.uri,
		"-f", "rawvideo",
		"-pix_fmt", "rgba",
		"-s", fmt.Sprintf("%dx%d", s.width, s.height),
		"-",
	)
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		cancel()
		return fmt.Errorf("%w: %v", ErrConnect, err)
	}
	if err := cmd.Start(); err != nil {
		cancel()
		return fmt.Errorf("%w: %v", ErrConnect, err)
	}

	s.cmd = cmd
	s.cancel = cancel
	s.frames = make(chan *Frame, 1)
	s.errs = make(chan error, 1)
	go s.readFrames(stdout, s.frames, s.errs)
	return nil
}

// readFrames slices stdout into fixed-size frames. The latest frame wins:
// when the consumer is behind, the buffered frame is replaced rather than
// queued, keeping end-to-end latency bounded.
func (s *FFmpegSource) readFrames(r io.Reader, frames chan *Frame, errs chan error) {
	frameSize := s.width * s.height * 4
	var seq uint64
	for {
		buf := make([]byte, frameSize)
		if _, err := io.ReadFull(r, buf); err != nil {
			errs <- ErrStreamEnded
			return
		}
		seq++
		f := &Frame{
			Pix:       buf,
			Width:     s.width,
			Height:    s.height,
			Timestamp: time.Now(),
			Sequence:  seq,
		}

		select {
		case frames <- f:
		default:
			select {
			case <-frames:
			default:
			}
			frames <- f
		}
	}
}

// NextFrame implements Source.NextFrame.
func (s *FFmpegSource) NextFrame(ctx context.Context, deadline time.Duration) (*Frame, error) {
	s.mu.Lock()
	frames, errs, closed := s.frames, s.errs, s.closed
	s.mu.Unlock()

	if closed || frames == nil {
		return nil, ErrClosed
	}

	timer := time.NewTimer(deadline)
	defer timer.Stop()

	select {
	case f := <-frames:
		return f, nil
	case err := <-errs:
		return nil, err
	case <-timer.C:
		return nil, ErrTimeout
	case <-ctx.Done():
		return nil, ErrClosed
	}
}

// Close implements Source.Close: the subprocess is killed immediately and any
// in-flight NextFrame returns ErrClosed via context cancellation.
func (s *FFmpegSource) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.closed = true
	if s.cancel != nil {
		s.cancel()
	}
	if s.cmd != nil {
		// Reap off the lock path; the kill above already released the
		// network resource.
		cmd := s.cmd
		s.cmd = nil
		go func() { _ = cmd.Wait() }()
	}
	return nil
}
