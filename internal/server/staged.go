package server

import (
	"context"
	"sync"

	"github.com/go-kratos/kratos/v2/transport"
)

// Staged orders shutdown between servers that kratos would otherwise stop
// all at once. Sinks are stopped in order, and only after every producer's
// Stop has returned, so work a producer finishes while draining still has
// somewhere to go.
type Staged struct {
	sinks   []transport.Server
	pending sync.WaitGroup
	drained chan struct{}
}

var _ transport.Server = (*Staged)(nil)

// NewStaged returns the servers to hand to kratos: the wrapped producers
// followed by the sink group. Sink Start must not block.
func NewStaged(producers []transport.Server, sinks ...transport.Server) []transport.Server {
	s := &Staged{sinks: sinks, drained: make(chan struct{})}
	s.pending.Add(len(producers))
	go func() {
		s.pending.Wait()
		close(s.drained)
	}()

	servers := make([]transport.Server, 0, len(producers)+1)
	for _, p := range producers {
		servers = append(servers, &producer{Server: p, done: sync.OnceFunc(s.pending.Done)})
	}
	return append(servers, s)
}

func (s *Staged) Start(ctx context.Context) error {
	for _, srv := range s.sinks {
		if err := srv.Start(ctx); err != nil {
			return err
		}
	}
	return nil
}

// Stop waits for the producers, then stops each sink. It gives up waiting
// when ctx expires and stops the sinks anyway.
func (s *Staged) Stop(ctx context.Context) error {
	select {
	case <-s.drained:
	case <-ctx.Done():
	}
	var first error
	for _, srv := range s.sinks {
		if err := srv.Stop(ctx); err != nil && first == nil {
			first = err
		}
	}
	return first
}

type producer struct {
	transport.Server
	done func()
}

func (p *producer) Stop(ctx context.Context) error {
	defer p.done()
	return p.Server.Stop(ctx)
}
