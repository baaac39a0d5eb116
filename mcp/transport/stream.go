package transport

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"io"
	"sync"

	"github.com/cockroachdb/errors"
	"github.com/effective-security/x/slices"
	"github.com/effective-security/xlog"
)

// MaxFrameSize is the largest message accepted by Stream.
const MaxFrameSize = 16 << 20

var _ Channel = (*Stream)(nil)

// Stream is a Channel with newline-delimited framing: each message
// is a single line of compact JSON.
type Stream struct {
	w      io.Writer
	closer io.Closer

	wlock  sync.Mutex
	frames chan []byte
	done   chan struct{}

	closeOnce sync.Once
	closeErr  error

	readErr error
}

// NewStream returns a Stream reading frames from r and writing frames to w.
// The closer, if not nil, is closed by Close and must unblock reads from r.
func NewStream(r io.Reader, w io.Writer, closer io.Closer) *Stream {
	s := &Stream{
		w:      w,
		closer: closer,
		frames: make(chan []byte, 16),
		done:   make(chan struct{}),
	}
	go s.readLoop(r)
	return s
}

func (s *Stream) readLoop(r io.Reader) {
	defer close(s.frames)

	br := bufio.NewReaderSize(r, 64*1024)
	for {
		line, err := readLine(br)
		if len(line) > 0 {
			select {
			case s.frames <- line:
			case <-s.done:
				return
			}
		}
		if err != nil {
			if !errors.Is(err, io.EOF) {
				select {
				case <-s.done:
				default:
					logger.KV(xlog.DEBUG, "status", "read_stopped", "err", err.Error())
				}
			}
			s.readErr = err
			return
		}
	}
}

// readLine returns the next non-empty line without the trailing newline.
func readLine(br *bufio.Reader) ([]byte, error) {
	var buf []byte
	for {
		chunk, isPrefix, err := br.ReadLine()
		if err != nil {
			return bytes.TrimSpace(buf), err
		}
		buf = append(buf, chunk...)
		if len(buf) > MaxFrameSize {
			return nil, errors.Errorf("frame exceeds %d bytes", MaxFrameSize)
		}
		if isPrefix {
			continue
		}
		line := bytes.TrimSpace(buf)
		if len(line) == 0 {
			buf = buf[:0]
			continue
		}
		// ReadLine reuses its buffer
		return bytes.Clone(line), nil
	}
}

// Send writes msg as one frame. Messages containing newlines are compacted first.
func (s *Stream) Send(ctx context.Context, msg []byte) error {
	select {
	case <-s.done:
		return ErrChannelClosed
	case <-ctx.Done():
		return errors.WithStack(ctx.Err())
	default:
	}

	frame := msg
	if bytes.ContainsAny(msg, "\r\n") {
		var buf bytes.Buffer
		if err := json.Compact(&buf, msg); err != nil {
			return errors.Mark(errors.Wrap(err, "frame contains a line break"), ErrChannelWrite)
		}
		frame = buf.Bytes()
	}
	frame = append(bytes.Clone(frame), '\n')

	s.wlock.Lock()
	_, err := s.w.Write(frame)
	s.wlock.Unlock()

	if err != nil {
		select {
		case <-s.done:
			return ErrChannelClosed
		default:
		}
		logger.ContextKV(ctx, xlog.DEBUG,
			"status", "write_failed",
			"frame", slices.StringUpto(string(frame), 64),
			"err", err.Error())
		return errors.Mark(errors.Wrap(err, "failed to write frame"), ErrChannelWrite)
	}
	return nil
}

// Receive returns the next frame.
func (s *Stream) Receive(ctx context.Context) ([]byte, error) {
	select {
	case <-s.done:
		return nil, ErrChannelClosed
	default:
	}

	select {
	case <-s.done:
		return nil, ErrChannelClosed
	case frame, ok := <-s.frames:
		if !ok {
			if s.readErr != nil && !errors.Is(s.readErr, io.EOF) {
				return nil, errors.WithMessage(ErrChannelClosed, s.readErr.Error())
			}
			return nil, ErrChannelClosed
		}
		return frame, nil
	case <-ctx.Done():
		return nil, errors.WithStack(ctx.Err())
	}
}

// Close closes the stream. It is safe to call more than once.
func (s *Stream) Close() error {
	s.closeOnce.Do(func() {
		close(s.done)
		if s.closer != nil {
			s.closeErr = s.closer.Close()
		}
	})
	return s.closeErr
}

// Done returns a channel closed once Close was called.
func (s *Stream) Done() <-chan struct{} {
	return s.done
}
