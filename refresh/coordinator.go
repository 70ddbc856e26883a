package refresh

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
)

// ErrAborted is delivered to queued callers when the leader returns without
// settling the refresh.
var ErrAborted = errors.New("refresh aborted")

// Result is the outcome delivered to a queued caller.
type Result struct {
	Token string
	Err   error
}

// Func performs one refresh and returns the new access token.
type Func func(ctx context.Context) (string, error)

// Coordinator serializes refreshes. The zero value is an idle coordinator.
type Coordinator struct {
	mu       sync.Mutex
	inFlight bool
	queue    []chan Result

	started atomic.Uint64
	joined  atomic.Uint64
}

// New returns an idle coordinator.
func New() *Coordinator {
	return &Coordinator{}
}

// TryBegin moves an idle coordinator to in-flight and reports true. It reports
// false when a refresh is already running.
func (c *Coordinator) TryBegin() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.inFlight {
		return false
	}
	c.inFlight = true
	c.queue = c.queue[:0]
	c.started.Add(1)
	return true
}

// Enqueue registers a caller waiting on the in-flight refresh. When the
// coordinator is idle the returned channel already holds an ErrAborted result,
// so callers never wait on a refresh nobody will settle.
func (c *Coordinator) Enqueue() <-chan Result {
	ch := make(chan Result, 1)

	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.inFlight {
		ch <- Result{Err: ErrAborted}
		return ch
	}
	c.queue = append(c.queue, ch)
	c.joined.Add(1)
	return ch
}

// ResolveAll releases every queued caller with token, in arrival order, and
// returns the coordinator to idle. It returns the number of released callers.
func (c *Coordinator) ResolveAll(token string) int {
	return c.settle(Result{Token: token})
}

// RejectAll releases every queued caller with err and returns the coordinator
// to idle.
func (c *Coordinator) RejectAll(err error) int {
	if err == nil {
		err = ErrAborted
	}
	return c.settle(Result{Err: err})
}

func (c *Coordinator) settle(res Result) int {
	c.mu.Lock()
	queue := c.queue
	c.queue = nil
	c.inFlight = false
	c.mu.Unlock()

	for _, ch := range queue {
		ch <- res
	}
	return len(queue)
}

// InFlight reports whether a refresh is running.
func (c *Coordinator) InFlight() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.inFlight
}

// Pending returns the number of queued callers.
func (c *Coordinator) Pending() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.queue)
}

// Refreshes returns how many refreshes were started.
func (c *Coordinator) Refreshes() uint64 {
	return c.started.Load()
}

// Joined returns how many callers waited on another caller's refresh.
func (c *Coordinator) Joined() uint64 {
	return c.joined.Load()
}

// Do runs fn as the leader when no refresh is in flight, otherwise waits for
// the running refresh. leader reports which role the caller played. A waiting
// caller stops waiting when ctx ends; the refresh itself is unaffected.
func (c *Coordinator) Do(ctx context.Context, fn Func) (token string, leader bool, err error) {
	wait, leader := c.acquire()
	if leader {
		token, err = c.lead(ctx, fn)
		return token, true, err
	}

	select {
	case res := <-wait:
		return res.Token, false, res.Err
	case <-ctx.Done():
		return "", false, ctx.Err()
	}
}

// acquire makes the caller leader or enqueues it under a single lock, so a
// refresh finishing in between cannot strand the caller.
func (c *Coordinator) acquire() (<-chan Result, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.inFlight {
		c.inFlight = true
		c.queue = c.queue[:0]
		c.started.Add(1)
		return nil, true
	}
	ch := make(chan Result, 1)
	c.queue = append(c.queue, ch)
	c.joined.Add(1)
	return ch, false
}

func (c *Coordinator) lead(ctx context.Context, fn Func) (token string, err error) {
	settled := false
	defer func() {
		if settled {
			return
		}
		if r := recover(); r != nil {
			c.RejectAll(fmt.Errorf("%w: panic: %v", ErrAborted, r))
			panic(r)
		}
		c.RejectAll(ErrAborted)
	}()

	token, err = fn(ctx)
	if err != nil {
		c.RejectAll(err)
	} else {
		c.ResolveAll(token)
	}
	settled = true
	return token, err
}
