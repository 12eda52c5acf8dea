package embedder

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os/exec"
	"strings"
	"sync"
	"time"
)

const (
	// maxResponseLine bounds a single response line; embedding batches
	// serialize to multi-megabyte JSON lines.
	maxResponseLine = 64 * 1024 * 1024

	// readySignal is the substring the sidecar prints on its diagnostic
	// stream once the model is loaded.
	readySignal = "loaded"
)

// Options configures the sidecar process client.
type Options struct {
	// Command is the sidecar command line, e.g. "python3 embedding-service.py".
	Command string
	Model   string
	Device  string
	// RequestTimeout bounds each embed call (default 30s).
	RequestTimeout time.Duration
	// StartupTimeout bounds model load (default 120s).
	StartupTimeout time.Duration
}

// ProcessClient drives a long-lived external embedding process speaking
// line-delimited JSON: one request line on stdin, exactly one response line
// on stdout. The protocol is strictly request/response, so only one call may
// be in flight at a time.
type ProcessClient struct {
	cmd    *exec.Cmd
	stdin  io.WriteCloser
	logger *slog.Logger

	requestTimeout time.Duration

	// mu serializes calls into the process.
	mu sync.Mutex
	// responses carries complete stdout lines from the reader goroutine.
	responses chan []byte
	// exited is closed when stdout reaches EOF (process gone).
	exited chan struct{}
	// stale counts responses abandoned by timed-out requests; they are
	// drained before the next request to keep the stream aligned.
	stale int

	dimMu     sync.Mutex
	dimension int

	closeOnce sync.Once
}

// embedRequest is the wire request. Chunks holds either bare strings or
// ChunkRef objects; the sidecar accepts both shapes.
type embedRequest struct {
	Chunks any `json:"chunks"`
}

// embedResponse is the wire response.
type embedResponse struct {
	Embeddings [][]float32 `json:"embeddings"`
	Count      int         `json:"count"`
	Error      string      `json:"error"`
}

// Start launches the sidecar and waits for its readiness signal. The signal
// is a line on the diagnostic stream containing "loaded", emitted once after
// model load; if it does not arrive within StartupTimeout the process is
// terminated and initialization fails.
func Start(ctx context.Context, opts Options) (*ProcessClient, error) {
	parts := strings.Fields(opts.Command)
	if len(parts) == 0 {
		return nil, fmt.Errorf("empty embedding command")
	}

	args := parts[1:]
	if opts.Model != "" {
		args = append(args, "--model", opts.Model)
	}
	if opts.Device != "" {
		args = append(args, "--device", opts.Device)
	}

	if opts.RequestTimeout <= 0 {
		opts.RequestTimeout = 30 * time.Second
	}
	if opts.StartupTimeout <= 0 {
		opts.StartupTimeout = 120 * time.Second
	}

	cmd := exec.Command(parts[0], args...)

	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, fmt.Errorf("failed to open stdin pipe: %w", err)
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("failed to open stdout pipe: %w", err)
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return nil, fmt.Errorf("failed to open stderr pipe: %w", err)
	}

	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("failed to start embedding process: %w", err)
	}

	c := &ProcessClient{
		cmd:            cmd,
		stdin:          stdin,
		logger:         slog.Default().With("component", "embedder"),
		requestTimeout: opts.RequestTimeout,
		responses:      make(chan []byte, 1),
		exited:         make(chan struct{}),
	}

	ready := make(chan struct{})
	go c.watchDiagnostics(stderr, ready)
	go c.readResponses(stdout)

	select {
	case <-ready:
		c.logger.Info("embedding process ready", "command", parts[0], "model", opts.Model)
	case <-c.exited:
		_ = c.Close()
		return nil, fmt.Errorf("%w during startup", ErrProcessExited)
	case <-time.After(opts.StartupTimeout):
		_ = c.Close()
		return nil, fmt.Errorf("%w: no ready signal within %s", ErrNotReady, opts.StartupTimeout)
	case <-ctx.Done():
		_ = c.Close()
		return nil, ctx.Err()
	}

	return c, nil
}

// watchDiagnostics logs the sidecar's stderr lines and closes ready when the
// readiness signal appears.
func (c *ProcessClient) watchDiagnostics(stderr io.Reader, ready chan<- struct{}) {
	scanner := bufio.NewScanner(stderr)
	signalled := false
	for scanner.Scan() {
		line := scanner.Text()
		c.logger.Debug("sidecar diagnostic", "line", line)
		if !signalled && strings.Contains(line, readySignal) {
			signalled = true
			close(ready)
		}
	}
}

// readResponses pumps complete stdout lines to the response channel. EOF
// means the process is gone.
func (c *ProcessClient) readResponses(stdout io.Reader) {
	scanner := bufio.NewScanner(stdout)
	scanner.Buffer(make([]byte, 64*1024), maxResponseLine)
	for scanner.Scan() {
		line := make([]byte, len(scanner.Bytes()))
		copy(line, scanner.Bytes())
		c.responses <- line
	}
	close(c.exited)
}

// EmbedBatch embeds a batch of bare texts.
func (c *ProcessClient) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	return c.roundTrip(ctx, embedRequest{Chunks: texts}, len(texts))
}

// EmbedRecords embeds a batch using the metadata-bearing request shape.
func (c *ProcessClient) EmbedRecords(ctx context.Context, records []ChunkRef) ([][]float32, error) {
	return c.roundTrip(ctx, embedRequest{Chunks: records}, len(records))
}

// roundTrip performs one serialized request/response exchange.
func (c *ProcessClient) roundTrip(ctx context.Context, req embedRequest, n int) ([][]float32, error) {
	if n == 0 {
		return nil, nil
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	timer := time.NewTimer(c.requestTimeout)
	defer timer.Stop()

	// Discard responses that belong to requests we already gave up on, so
	// this request reads its own answer. An abandoned answer that has not
	// arrived yet keeps its slot in the count; reading it as this request's
	// response would assign the previous batch's vectors to the wrong
	// chunks.
	for c.stale > 0 {
		select {
		case <-c.responses:
			c.stale--
		case <-c.exited:
			return nil, ErrProcessExited
		case <-timer.C:
			return nil, ErrTimeout
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	payload, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal embed request: %w", err)
	}
	payload = append(payload, '\n')

	if _, err := c.stdin.Write(payload); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrProcessExited, err)
	}

	select {
	case line := <-c.responses:
		return c.decodeResponse(line, n)
	case <-c.exited:
		return nil, ErrProcessExited
	case <-timer.C:
		c.stale++
		return nil, ErrTimeout
	case <-ctx.Done():
		c.stale++
		return nil, ctx.Err()
	}
}

// decodeResponse validates one response line against the request length.
func (c *ProcessClient) decodeResponse(line []byte, n int) ([][]float32, error) {
	var resp embedResponse
	if err := json.Unmarshal(line, &resp); err != nil {
		return nil, fmt.Errorf("failed to decode embed response: %w", err)
	}
	if resp.Error != "" {
		return nil, fmt.Errorf("embedding process error: %s", resp.Error)
	}
	if len(resp.Embeddings) != n {
		return nil, fmt.Errorf("embedding count mismatch: sent %d chunks, got %d vectors", n, len(resp.Embeddings))
	}

	if len(resp.Embeddings) > 0 {
		c.dimMu.Lock()
		if c.dimension == 0 {
			c.dimension = len(resp.Embeddings[0])
		}
		c.dimMu.Unlock()
	}

	return resp.Embeddings, nil
}

// Dimension reports the vector width seen on the first successful response.
func (c *ProcessClient) Dimension() int {
	c.dimMu.Lock()
	defer c.dimMu.Unlock()
	return c.dimension
}

// Close terminates the sidecar. Closing stdin asks the process to exit its
// read loop; the process is killed if it lingers.
func (c *ProcessClient) Close() error {
	c.closeOnce.Do(func() {
		_ = c.stdin.Close()

		done := make(chan struct{})
		go func() {
			_ = c.cmd.Wait()
			close(done)
		}()

		select {
		case <-done:
		case <-time.After(5 * time.Second):
			_ = c.cmd.Process.Kill()
			<-done
		}
	})
	return nil
}
