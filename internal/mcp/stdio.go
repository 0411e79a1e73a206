package mcp

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"sync"
	"sync/atomic"

	"github.com/koopa0/toolhub/internal/log"
)

const (
	// DefaultQueueSize is the inbound message buffer used when the caller
	// does not pick one.
	DefaultQueueSize = 64

	// maxLineBytes caps a single wire frame. A line past this limit ends
	// the session; newline-delimited JSON has no way to resynchronize
	// inside an oversized frame.
	maxLineBytes = 1 << 20
)

// Stdio moves newline-delimited JSON-RPC messages over a reader/writer pair,
// the process's standard streams in production.
//
// A single background goroutine reads frames and feeds a bounded FIFO
// channel; when the buffer is full the reader blocks until the consumer
// catches up. Malformed JSON never reaches the consumer: the reader answers
// it directly with a parse error and keeps reading. Writes go through one
// mutex and a single Write call each, so frames never interleave.
//
// The transport is one-shot: once stopped it cannot be started again.
type Stdio struct {
	in     io.Reader
	out    io.Writer
	logger log.Logger

	queue chan json.RawMessage

	writeMu sync.Mutex

	mu      sync.Mutex
	started bool
	stopped bool
	stopCh  chan struct{}
	done    chan struct{}
	running atomic.Bool
}

// NewStdio creates a stdio transport reading from in and writing to out.
// queueSize bounds how many decoded messages may wait for the consumer;
// values below one fall back to DefaultQueueSize.
func NewStdio(in io.Reader, out io.Writer, queueSize int, logger log.Logger) (*Stdio, error) {
	if in == nil {
		return nil, fmt.Errorf("input reader is required")
	}
	if out == nil {
		return nil, fmt.Errorf("output writer is required")
	}
	if logger == nil {
		return nil, fmt.Errorf("logger is required")
	}
	if queueSize <= 0 {
		queueSize = DefaultQueueSize
	}

	return &Stdio{
		in:     in,
		out:    out,
		logger: logger,
		queue:  make(chan json.RawMessage, queueSize),
		stopCh: make(chan struct{}),
		done:   make(chan struct{}),
	}, nil
}

// Start spawns the background reader. The ctx parameter is accepted for
// interface symmetry; shutdown goes through Stop.
func (s *Stdio) Start(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.stopped {
		return fmt.Errorf("transport already stopped")
	}
	if s.started {
		return fmt.Errorf("transport already started")
	}
	s.started = true
	s.running.Store(true)

	s.logger.Info("starting stdio transport")
	go s.readLoop()
	return nil
}

// Stop shuts the reader down and waits for it to exit. Safe to call more
// than once and before Start.
func (s *Stdio) Stop() error {
	s.mu.Lock()
	if s.stopped {
		s.mu.Unlock()
		return nil
	}
	s.stopped = true
	started := s.started
	close(s.stopCh)
	s.mu.Unlock()

	s.logger.Info("stopping stdio transport")
	s.running.Store(false)

	// A reader parked inside a blocking Read only wakes up when the stream
	// closes underneath it.
	if c, ok := s.in.(io.Closer); ok {
		if err := c.Close(); err != nil {
			s.logger.Warn("closing input stream", "error", err)
		}
	}

	if started {
		<-s.done
	}

	if f, ok := s.out.(interface{ Flush() error }); ok {
		if err := f.Flush(); err != nil {
			s.logger.Error("flushing output", "error", err)
		}
	}
	return nil
}

// Send marshals msg and writes it as one line. Concurrent callers are
// serialized; each frame goes out in a single Write.
func (s *Stdio) Send(_ context.Context, msg any) error {
	data, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("marshaling message: %w", err)
	}
	data = append(data, '\n')

	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	if _, err := s.out.Write(data); err != nil {
		return fmt.Errorf("writing message: %w", err)
	}
	return nil
}

// Receive pops the next buffered message without blocking. After the input
// has closed, it keeps returning whatever the reader buffered before EOF.
func (s *Stdio) Receive() (json.RawMessage, bool) {
	select {
	case raw := <-s.queue:
		return raw, true
	default:
		return nil, false
	}
}

// Running reports whether the reader is still consuming input.
func (s *Stdio) Running() bool {
	return s.running.Load()
}

// readLoop reads frames until EOF, a read failure, or Stop. Valid JSON is
// queued for the consumer; anything else is answered with a parse error
// right here so the server never sees it.
func (s *Stdio) readLoop() {
	defer close(s.done)
	defer s.running.Store(false)

	scanner := bufio.NewScanner(s.in)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineBytes)

	for scanner.Scan() {
		line := bytes.TrimSpace(scanner.Bytes())
		if len(line) == 0 {
			continue
		}

		if !json.Valid(line) {
			s.logger.Error("invalid JSON on input", "line", string(line))
			resp := errorResponse(nil, CodeParseError, "Parse error")
			if err := s.Send(context.Background(), resp); err != nil {
				s.logger.Error("sending parse error response", "error", err)
			}
			continue
		}

		// The scanner reuses its buffer between lines.
		raw := json.RawMessage(bytes.Clone(line))
		select {
		case s.queue <- raw:
		case <-s.stopCh:
			return
		}
	}

	select {
	case <-s.stopCh:
		// Stop closed the input out from under the scanner.
	default:
		if err := scanner.Err(); err != nil {
			s.logger.Error("reading input", "error", err)
		} else {
			s.logger.Info("EOF reached on input")
		}
	}
}
