package push

import (
	"context"
	"sync"
)

// Session owns at most one Client and forwards its events to sink in
// receive order. A connection is opened on Connect or on the first Monitor
// after a loss; it is never redialed in the background.
type Session struct {
	url  string
	opts Options
	sink func(Event)

	mu     sync.Mutex
	client *Client
	wg     sync.WaitGroup
}

func NewSession(url string, opts Options, sink func(Event)) *Session {
	return &Session{url: url, opts: opts, sink: sink}
}

func (s *Session) URL() string {
	return s.url
}

func (s *Session) Connected() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.client != nil
}

func (s *Session) Connect(ctx context.Context) error {
	_, err := s.ensure(ctx)
	return err
}

func (s *Session) Monitor(ctx context.Context, groupID string) error {
	c, err := s.ensure(ctx)
	if err != nil {
		return err
	}
	return c.Monitor(ctx, groupID)
}

func (s *Session) StopMonitor(ctx context.Context, groupID string) error {
	s.mu.Lock()
	c := s.client
	s.mu.Unlock()
	if c == nil {
		return ErrClosed
	}
	return c.StopMonitor(ctx, groupID)
}

func (s *Session) ensure(ctx context.Context) (*Client, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.client != nil {
		return s.client, nil
	}
	c, err := Dial(ctx, s.url, s.opts)
	if err != nil {
		return nil, err
	}
	s.client = c
	s.wg.Add(1)
	go s.forward(c)
	return c, nil
}

func (s *Session) forward(c *Client) {
	defer s.wg.Done()
	for ev := range c.Events() {
		if s.sink != nil {
			s.sink(ev)
		}
	}
	s.mu.Lock()
	if s.client == c {
		s.client = nil
	}
	s.mu.Unlock()
	// the reader is gone; release the socket and the keepalive goroutine
	_ = c.Close()
}

// Close tears down the current connection and waits for pending events to
// be handed to the sink.
func (s *Session) Close() error {
	s.mu.Lock()
	c := s.client
	s.client = nil
	s.mu.Unlock()

	var err error
	if c != nil {
		err = c.Close()
	}
	s.wg.Wait()
	return err
}
