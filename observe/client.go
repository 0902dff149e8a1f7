// Package observe is the client library for observation-tools. It lets
// application code emit named, grouped, payload-bearing observations that
// a background worker batches and uploads to an observation-tools server.
//
// Example usage:
//
//	client, err := observe.New(observe.Config{
//		BaseURL: "http://localhost:3000",
//	})
//	if err != nil {
//		log.Fatal(err)
//	}
//	defer client.Shutdown(context.Background())
//
//	exec, _ := client.BeginExecution("my-run")
//	ctx := observe.WithExecution(context.Background(), exec)
//
//	send := observe.NewObservation("request-body").
//		JSON(map[string]any{"query": "hello"}).
//		Send(ctx)
//	if err := send.Wait(ctx); err != nil {
//		log.Printf("upload failed: %v", err)
//	}
//
// Emission is disabled unless the OBSERVE environment variable is set (see
// Enabled); a disabled client accepts submissions and resolves their
// completion handles immediately without any network traffic.
package observe

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/observation-tools/observation-tools/model"
)

const (
	// DefaultBaseURL is used when Config.BaseURL is empty.
	DefaultBaseURL = "http://localhost:3000"

	// DefaultFlushInterval is how long a non-empty buffer may sit before
	// the worker uploads it regardless of size.
	DefaultFlushInterval = time.Second

	// DefaultQueueSize is the capacity of the submission channel. A
	// producer blocks while the channel is full.
	DefaultQueueSize = 1024

	connectTimeout = 30 * time.Second
	requestTimeout = 300 * time.Second
)

// Config holds the configuration for a Client.
type Config struct {
	// BaseURL is the observation-tools server URL. Defaults to
	// DefaultBaseURL.
	BaseURL string

	// APIKey is an optional API key ("obs_..." token) sent as a bearer
	// token on mutating requests.
	APIKey string

	// HTTPClient overrides the built-in HTTP client. The default uses a
	// 30 s connect timeout and a 300 s request timeout to accommodate
	// large blob uploads.
	HTTPClient *http.Client

	// Logger receives worker diagnostics. Defaults to a no-op logger.
	Logger *zap.Logger

	// BatchSize is the number of buffered observations that triggers an
	// upload. Defaults to model.BatchSize.
	BatchSize int

	// FlushInterval overrides DefaultFlushInterval.
	FlushInterval time.Duration

	// QueueSize overrides DefaultQueueSize.
	QueueSize int

	// Enabled overrides the OBSERVE environment switch when non-nil.
	Enabled *bool
}

// Client owns the background uploader worker. A single Client is safe for
// concurrent use from any number of goroutines.
type Client struct {
	cfg       Config
	enabled   bool
	logger    *zap.Logger
	transport *transport
	s         *sender

	shutdownOnce sync.Once
}

// sender is the handle producers use to reach the worker. Execution and
// observation builders hold a sender clone rather than the owning Client.
type sender struct {
	ch   chan uploaderMessage
	done chan struct{}
}

// send enqueues a message for the worker. It blocks while the queue is
// full and fails with ErrChannelClosed once the worker has exited.
func (s *sender) send(msg uploaderMessage) error {
	select {
	case <-s.done:
		return ErrChannelClosed
	default:
	}
	select {
	case s.ch <- msg:
		return nil
	case <-s.done:
		return ErrChannelClosed
	}
}

// New creates a Client and starts its uploader worker.
func New(cfg Config) (*Client, error) {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")

	u, err := url.Parse(cfg.BaseURL)
	if err != nil {
		return nil, fmt.Errorf("%w: base URL: %v", ErrInvalidConfig, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" || u.Host == "" {
		return nil, fmt.Errorf("%w: base URL %q", ErrInvalidConfig, cfg.BaseURL)
	}
	if cfg.APIKey != "" && !strings.HasPrefix(cfg.APIKey, "obs_") {
		return nil, fmt.Errorf("%w: API key must start with obs_", ErrInvalidConfig)
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = model.BatchSize
	}
	if cfg.FlushInterval <= 0 {
		cfg.FlushInterval = DefaultFlushInterval
	}
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = DefaultQueueSize
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	if cfg.HTTPClient == nil {
		cfg.HTTPClient = &http.Client{
			Timeout: requestTimeout,
			Transport: &http.Transport{
				DialContext: (&net.Dialer{Timeout: connectTimeout}).DialContext,
			},
		}
	}

	enabled := Enabled()
	if cfg.Enabled != nil {
		enabled = *cfg.Enabled
	}

	c := &Client{
		cfg:       cfg,
		enabled:   enabled,
		logger:    cfg.Logger,
		transport: newTransport(cfg.HTTPClient, cfg.BaseURL, cfg.APIKey, cfg.Logger),
		s: &sender{
			ch:   make(chan uploaderMessage, cfg.QueueSize),
			done: make(chan struct{}),
		},
	}

	if c.enabled {
		go c.runWorker()
	} else {
		// No worker to stop later.
		close(c.s.done)
	}

	return c, nil
}

// Enabled reports whether this client actually emits observations.
func (c *Client) Enabled() bool { return c.enabled }

// BeginExecution enqueues creation of a new execution and returns its
// handle. The execution is uploaded immediately (not batched) so that
// observations referencing it do not race far behind it; the server
// tolerates out-of-order arrival regardless. BeginExecution never blocks
// on the network and fails only if the worker has already stopped.
func (c *Client) BeginExecution(name string) (*ExecutionHandle, error) {
	execution := model.NewExecution(name)

	h := &ExecutionHandle{
		id:      execution.ID,
		baseURL: c.cfg.BaseURL,
	}
	if !c.enabled {
		return h, nil
	}
	h.s = c.s

	if err := c.s.send(uploaderMessage{kind: msgExecution, execution: execution}); err != nil {
		return nil, err
	}
	return h, nil
}

// UploadBlob uploads payload bytes out of band through the raw blob
// endpoint, bypassing the batching pipeline. Intended for very large
// payloads (up to model.MaxBlobSize).
func (c *Client) UploadBlob(ctx context.Context, executionID model.ExecutionID, observationID model.ObservationID, payloadID model.PayloadID, body []byte) error {
	if !c.enabled {
		return nil
	}
	return c.transport.uploadBlob(ctx, executionID, observationID, payloadID, body)
}

// Shutdown flushes any buffered observations and stops the worker. It
// returns once the worker has exited, at which point every previously
// accepted submission's completion handle has resolved. Shutdown is
// idempotent. Cancelling ctx abandons the wait, not the flush.
func (c *Client) Shutdown(ctx context.Context) error {
	c.shutdownOnce.Do(func() {
		// Ignore ErrChannelClosed: the worker is already gone.
		_ = c.s.send(uploaderMessage{kind: msgShutdown})
	})

	select {
	case <-c.s.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close signals a best-effort shutdown without waiting for the worker.
// Prefer Shutdown; Close never blocks, so a full queue can swallow the
// signal.
func (c *Client) Close() error {
	select {
	case c.s.ch <- uploaderMessage{kind: msgShutdown}:
	case <-c.s.done:
	default:
	}
	return nil
}

// ExecutionHandle refers to one execution. Handles are cheap to copy
// around and carry only the id, the server URL, and a clone of the send
// channel; they never own the Client.
type ExecutionHandle struct {
	id      model.ExecutionID
	baseURL string
	s       *sender
}

// ID returns the execution id.
func (h *ExecutionHandle) ID() model.ExecutionID { return h.id }

// BaseURL returns the server base URL this execution uploads to.
func (h *ExecutionHandle) BaseURL() string { return h.baseURL }

// URL returns a browsable link to the execution.
func (h *ExecutionHandle) URL() string {
	return fmt.Sprintf("%s/exe/%s", h.baseURL, h.id)
}

// Submit enqueues one observation with its payloads and returns the
// completion handle. It never touches the network itself; the producer
// blocks only while the submission queue is full (capacity
// Config.QueueSize).
func (h *ExecutionHandle) Submit(obs *model.Observation, payloads []model.Payload) *Send {
	if h.s == nil {
		// Disabled client: resolve immediately.
		return resolvedSend(obs.ID, nil)
	}
	s := newSend(obs.ID)
	msg := uploaderMessage{
		kind:  msgObservations,
		batch: []*pendingObservation{{obs: obs, payloads: payloads, send: s}},
	}
	if err := h.s.send(msg); err != nil {
		return resolvedSend(obs.ID, err)
	}
	return s
}

// Send is the completion handle of one submitted observation. It resolves
// when the batch containing the observation has been uploaded, or with an
// error if the upload failed terminally or the submission was rejected.
type Send struct {
	observationID model.ObservationID
	ready         chan struct{}
	err           error
}

func newSend(id model.ObservationID) *Send {
	return &Send{observationID: id, ready: make(chan struct{})}
}

func resolvedSend(id model.ObservationID, err error) *Send {
	s := newSend(id)
	s.complete(err)
	return s
}

func (s *Send) complete(err error) {
	s.err = err
	close(s.ready)
}

// ObservationID returns the id assigned to the submitted observation.
func (s *Send) ObservationID() model.ObservationID { return s.observationID }

// Wait blocks until the observation's batch has resolved or ctx is
// cancelled. It may be called any number of times.
func (s *Send) Wait(ctx context.Context) error {
	select {
	case <-s.ready:
		return s.err
	case <-ctx.Done():
		return ctx.Err()
	}
}
