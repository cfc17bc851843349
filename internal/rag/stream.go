package rag

import (
	"context"
	"errors"
	"io"
)

// Stream delivers generated text in pull mode. The consumer calls Recv until
// io.EOF; Close releases the producer early. Recv and Close are safe to call
// from different goroutines.
type Stream struct {
	tokens chan string
	done   chan struct{}
	cancel context.CancelFunc
	err    error
}

// newStream runs the producer in a goroutine. The producer pushes text via
// emit, which blocks until the consumer receives or the stream is closed.
func newStream(ctx context.Context, run func(ctx context.Context, emit func(string) error) error) *Stream {
	ctx, cancel := context.WithCancel(ctx)
	s := &Stream{
		tokens: make(chan string),
		done:   make(chan struct{}),
		cancel: cancel,
	}
	go func() {
		defer close(s.done)
		err := run(ctx, func(token string) error {
			select {
			case s.tokens <- token:
				return nil
			case <-ctx.Done():
				return ctx.Err()
			}
		})
		if err != nil && !errors.Is(err, context.Canceled) {
			s.err = err
		}
		close(s.tokens)
	}()
	return s
}

// staticStream yields a single fixed message.
func staticStream(ctx context.Context, message string) *Stream {
	return newStream(ctx, func(_ context.Context, emit func(string) error) error {
		return emit(message)
	})
}

// Recv returns the next piece of generated text. It returns io.EOF when
// generation finishes cleanly, or the producer's error.
func (s *Stream) Recv() (string, error) {
	token, ok := <-s.tokens
	if !ok {
		if s.err != nil {
			return "", s.err
		}
		return "", io.EOF
	}
	return token, nil
}

// Close stops the producer and discards any remaining output. Safe to call
// more than once.
func (s *Stream) Close() error {
	s.cancel()
	for range s.tokens {
		// drain until the producer exits
	}
	<-s.done
	return nil
}

// Text drains the stream and returns the concatenated output.
func (s *Stream) Text() (string, error) {
	var b []byte
	for {
		token, err := s.Recv()
		if err != nil {
			if errors.Is(err, io.EOF) {
				return string(b), nil
			}
			return string(b), err
		}
		b = append(b, token...)
	}
}
