package skeleton

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"
)

// maxLineSize bounds a single wire-format frame (25 joints x 6 bodies fits easily).
const maxLineSize = 1 << 20

// StreamSource decodes line-delimited JSON frames from a reader.
type StreamSource struct {
	config Config
	lines  chan lineResult
	closer io.Closer
	once   sync.Once
	done   chan struct{}
}

type lineResult struct {
	data []byte
	err  error
}

// NewStreamSource starts reading frames from r. If r implements io.Closer it
// is closed by Close.
func NewStreamSource(r io.Reader, config Config) *StreamSource {
	s := &StreamSource{
		config: config,
		lines:  make(chan lineResult),
		done:   make(chan struct{}),
	}
	if c, ok := r.(io.Closer); ok {
		s.closer = c
	}
	go s.read(r)
	return s
}

func (s *StreamSource) read(r io.Reader) {
	defer close(s.lines)

	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64*1024), maxLineSize)

	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		data := make([]byte, len(line))
		copy(data, line)

		select {
		case s.lines <- lineResult{data: data}:
		case <-s.done:
			return
		}
	}

	if err := scanner.Err(); err != nil {
		select {
		case s.lines <- lineResult{err: fmt.Errorf("read frame: %w", err)}:
		case <-s.done:
		}
	}
}

// Next returns the next decoded frame.
func (s *StreamSource) Next(ctx context.Context) (Frame, error) {
	select {
	case <-ctx.Done():
		return Frame{}, ctx.Err()
	case res, ok := <-s.lines:
		if !ok {
			return Frame{}, ErrSourceClosed
		}
		if res.err != nil {
			return Frame{}, res.err
		}

		f, err := DecodeFrame(res.data)
		if err != nil {
			return Frame{}, err
		}
		if f.ImageWidth <= 0 || f.ImageHeight <= 0 {
			f.ImageWidth = s.config.DefaultImageWidth
			f.ImageHeight = s.config.DefaultImageHeight
		}
		if f.Timestamp.IsZero() {
			f.Timestamp = time.Now()
		}
		return f, nil
	}
}

// Close stops the reader goroutine and closes the underlying reader.
func (s *StreamSource) Close() error {
	var err error
	s.once.Do(func() {
		close(s.done)
		if s.closer != nil {
			err = s.closer.Close()
		}
	})
	if errors.Is(err, io.ErrClosedPipe) {
		return nil
	}
	return err
}
