package replcore

import "context"

// Bridge is the narrow channel between the script runtime and the host's
// tool executor. Implementations are expected to be safe for concurrent
// use — SendMessage is fire-and-forget, InvokeTool and AskUser block until
// the host replies.
type Bridge interface {
	// SendMessage delivers a fire-and-forget progress or terminal frame.
	SendMessage(ctx context.Context, payload []byte) error

	// InvokeTool performs a blocking request/response tool call and
	// returns the host's raw envelope JSON (§4.2: {success, result}).
	InvokeTool(ctx context.Context, callID, name string, argsJSON []byte) ([]byte, error)

	// AskUser performs a blocking interactive prompt and returns the raw
	// answer string. The host is expected to return ErrHeadlessAsk (or an
	// equivalent) when the session is headless.
	AskUser(ctx context.Context, payload []byte) (string, error)
}

// maxParallelDispatch bounds the number of concurrent blocking bridge
// calls a single session will have in flight, so a script that fans out
// many tool calls cannot monopolize host-side resources.
const maxParallelDispatch = 10

// workerPool offloads blocking Bridge calls onto a bounded number of
// goroutines, so the interpreter's cooperative scheduler can keep making
// progress on other pending calls while one is in flight.
type workerPool struct {
	slots chan struct{}
}

func newWorkerPool(size int) *workerPool {
	if size <= 0 {
		size = maxParallelDispatch
	}
	return &workerPool{slots: make(chan struct{}, size)}
}

// run blocks until a slot is free (or ctx is done), then executes fn with
// the slot held, returning whatever fn returns.
func (p *workerPool) run(ctx context.Context, fn func() ([]byte, error)) ([]byte, error) {
	select {
	case p.slots <- struct{}{}:
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	defer func() { <-p.slots }()
	return fn()
}

// runString is run's counterpart for calls that return a string result
// (AskUser), to avoid a throwaway []byte<->string conversion at call
// sites.
func (p *workerPool) runString(ctx context.Context, fn func() (string, error)) (string, error) {
	select {
	case p.slots <- struct{}{}:
	case <-ctx.Done():
		return "", ctx.Err()
	}
	defer func() { <-p.slots }()
	return fn()
}
