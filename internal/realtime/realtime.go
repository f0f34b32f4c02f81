// Package realtime implements the realtime stream client: a single
// long-lived chunked HTTP connection, framed-JSON message parsing, and an
// independent reconnect backoff. The read loop is modeled as a samber/ro
// Observable[wire.StreamMessage], treating the chunked response body as a
// stream of frames delimited by the "{...}" envelope rule.
package realtime

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/samber/ro"

	"github.com/rconfig/engine/internal/autofetch"
	"github.com/rconfig/engine/internal/backoff"
	"github.com/rconfig/engine/internal/credentials"
	"github.com/rconfig/engine/internal/fetch"
	"github.com/rconfig/engine/internal/metadata"
	"github.com/rconfig/engine/internal/rcerrors"
	engro "github.com/rconfig/engine/internal/ro"
	"github.com/rconfig/engine/internal/wire"
)

// retryableStatuses are the HTTP statuses a connect attempt treats as
// worth reconnecting over, rather than a terminal stream error.
var retryableStatuses = map[int]bool{
	http.StatusRequestTimeout:     true,
	http.StatusTooManyRequests:    true,
	http.StatusBadGateway:         true,
	http.StatusServiceUnavailable: true,
	http.StatusGatewayTimeout:     true,
}

// Listener receives realtime updates and errors.
type Listener interface {
	OnEvent()
	OnError(err error)
}

// Endpoint identifies the realtime connect URL's template parameters.
type Endpoint struct {
	URL    string
	APIKey string
	Info   wire.RealtimeConnectInfo
}

// Controller owns the listener registry and, whenever it is non-empty, a
// single background stream task. The stream exists if and only if the
// listener set is non-empty.
type Controller struct {
	endpoint     Endpoint
	httpClient   *http.Client
	installation credentials.InstallationProvider
	meta         *metadata.Store
	autofetch    *autofetch.Controller
	circuit      *backoff.Circuit
	log          zerolog.Logger

	mu        sync.Mutex
	listeners map[Listener]struct{}
	cancel    context.CancelFunc
	disabled  bool
}

// New constructs a realtime Controller. fetchHandler is the fetch handler
// the autofetch controller drives in response to a
// latestTemplateVersionNumber message.
func New(
	endpoint Endpoint,
	httpClient *http.Client,
	installation credentials.InstallationProvider,
	meta *metadata.Store,
	fetchHandler *fetch.Handler,
	circuit *backoff.Circuit,
	log zerolog.Logger,
) *Controller {
	c := &Controller{
		endpoint:     endpoint,
		httpClient:   httpClient,
		installation: installation,
		meta:         meta,
		circuit:      circuit,
		log:          log,
		listeners:    make(map[Listener]struct{}),
	}
	c.autofetch = autofetch.New(fetchHandler, c.emitEvent, c.emitError, log)
	return c
}

// AddListener registers l. The first listener starts the background
// stream task.
func (c *Controller) AddListener(l Listener) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.listeners[l] = struct{}{}
	if len(c.listeners) == 1 && c.cancel == nil && !c.disabled {
		ctx, cancel := context.WithCancel(context.Background())
		c.cancel = cancel
		go c.run(ctx)
	}
}

// RemoveListener deregisters l. Removing the last listener cancels the
// background stream task.
func (c *Controller) RemoveListener(l Listener) {
	c.mu.Lock()
	defer c.mu.Unlock()

	delete(c.listeners, l)
	if len(c.listeners) == 0 && c.cancel != nil {
		c.cancel()
		c.cancel = nil
	}
}

// Stop cancels the background stream task and drops every listener. Used
// at engine shutdown; a later AddListener would start a fresh stream.
func (c *Controller) Stop() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.listeners = make(map[Listener]struct{})
	if c.cancel != nil {
		c.cancel()
		c.cancel = nil
	}
}

func (c *Controller) snapshotListeners() []Listener {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]Listener, 0, len(c.listeners))
	for l := range c.listeners {
		out = append(out, l)
	}
	return out
}

func (c *Controller) emitEvent() {
	for _, l := range c.snapshotListeners() {
		l.OnEvent()
	}
}

func (c *Controller) emitError(err error) {
	for _, l := range c.snapshotListeners() {
		l.OnError(err)
	}
}

// run drives the CONNECT / OPEN / READ_LOOP / CLOSED cycle until ctx is
// canceled or the backend reports featureDisabled. Only a retryable
// failure increments the persisted consecutive-failure counter; a clean
// cancellation or a terminal error schedules nothing.
func (c *Controller) run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		if pending := c.meta.RealtimeBackoff(); pending.Active(time.Now()) {
			select {
			case <-ctx.Done():
				return
			case <-time.After(time.Until(pending.EndTime)):
			}
		}

		retryable, connErr := c.connectAndRead(ctx)
		if connErr == nil && !retryable {
			return
		}
		if connErr != nil {
			if errors.Is(connErr, rcerrors.ErrConfigUpdateUnavailable) {
				return
			}
			if !retryable {
				c.emitError(&rcerrors.ConfigUpdateStreamError{Cause: connErr})
				return
			}
		}

		state := backoff.Next(c.meta.RealtimeBackoff(), time.Now())
		c.meta.SetRealtimeBackoff(state)

		select {
		case <-ctx.Done():
			return
		case <-time.After(time.Until(state.EndTime)):
		}
	}
}

// connectAndRead performs one CONNECT → OPEN → READ_LOOP pass. It returns
// retryable=true if the caller should schedule a reconnect with backoff,
// and a non-nil error describing why the pass ended (nil on a clean
// context cancellation).
func (c *Controller) connectAndRead(ctx context.Context) (retryable bool, err error) {
	resp, err := c.connect(ctx)
	if err != nil {
		return true, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		retryable := retryableStatuses[resp.StatusCode]
		return retryable, fmt.Errorf("realtime: connect status %d", resp.StatusCode)
	}

	c.meta.SetRealtimeBackoff(backoff.Reset)
	return c.readLoop(ctx, resp.Body)
}

func (c *Controller) connect(ctx context.Context) (*http.Response, error) {
	if c.circuit != nil {
		done, cbErr := c.circuit.Allow()
		if cbErr != nil {
			return nil, cbErr
		}
		resp, err := c.doConnect(ctx)
		done(err == nil)
		return resp, err
	}
	return c.doConnect(ctx)
}

func (c *Controller) doConnect(ctx context.Context) (*http.Response, error) {
	token, err := c.installation.Token(ctx)
	if err != nil {
		return nil, err
	}

	// The last-known version is read per connect, not baked in at
	// construction: a reconnect after fetches landed must report the
	// advanced version.
	info := c.endpoint.Info
	info.LastKnownVersionNumber = c.meta.Info().LastTemplateVersionNumber
	body, err := wire.BuildRealtimeConnectBody(info)
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint.URL, strings.NewReader(string(body)))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(wire.HeaderAPIKey, c.endpoint.APIKey)
	req.Header.Set(wire.HeaderInstallationsAuth, token.AccessToken)
	req.Header.Set(wire.HeaderAcceptStreaming, "true")

	return c.httpClient.Do(req)
}

type bodyReader interface {
	Read(p []byte) (n int, err error)
}

// readLoop reads body line by line, handing each line to a samber/ro
// Observable pipeline that accumulates partial envelopes and emits
// wire.StreamMessage values. It returns retryable=false and a nil error
// when the context was canceled, retryable=false and
// ErrConfigUpdateUnavailable when the backend sent featureDisabled; any
// other exit is a retryable I/O end-of-stream.
func (c *Controller) readLoop(ctx context.Context, body bodyReader) (retryable bool, err error) {
	stop := make(chan struct{})
	defer close(stop)

	lines := make(chan string)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(body)
		for scanner.Scan() {
			select {
			case lines <- scanner.Text():
			case <-stop:
				return
			case <-ctx.Done():
				return
			}
		}
	}()

	messages := engro.MapStream(
		accumulateEnvelopes(engro.StreamFromChannel(lines)),
		func(envelope string) wire.StreamMessage {
			msg, parseErr := wire.ParseStreamMessage(envelope)
			if parseErr != nil {
				c.log.Debug().Err(parseErr).Msg("realtime: malformed message, accumulator reset")
				return wire.StreamMessage{}
			}
			return msg
		},
	)

	done := make(chan struct{})
	disabledCh := make(chan struct{})
	var disableOnce sync.Once
	sub := messages.SubscribeWithContext(ctx, ro.NewObserverWithContext(
		func(_ context.Context, msg wire.StreamMessage) {
			if c.handleMessage(msg) {
				disableOnce.Do(func() { close(disabledCh) })
			}
		},
		func(_ context.Context, observeErr error) {
			close(done)
		},
		func(_ context.Context) {
			close(done)
		},
	))
	defer sub.Unsubscribe()

	select {
	case <-ctx.Done():
		return false, nil
	case <-disabledCh:
		// featureDisabled exits the read loop directly; the deferred
		// unsubscribe and the caller's body close tear the stream down
		// without waiting for the server to hang up.
		return false, rcerrors.ErrConfigUpdateUnavailable
	case <-done:
		return true, fmt.Errorf("realtime: stream ended")
	}
}

// handleMessage processes one parsed stream message, reporting whether the
// backend disabled realtime and the read loop must exit.
func (c *Controller) handleMessage(msg wire.StreamMessage) (disabled bool) {
	c.mu.Lock()
	alreadyDisabled := c.disabled
	c.mu.Unlock()
	if alreadyDisabled {
		return true
	}

	if msg.FeatureDisabled {
		c.mu.Lock()
		c.disabled = true
		c.mu.Unlock()
		c.emitError(rcerrors.ErrConfigUpdateUnavailable)
		return true
	}
	if !msg.HasLatestTemplateVersion {
		return false
	}
	if msg.LatestTemplateVersionNumber <= c.meta.Info().LastTemplateVersionNumber {
		return false
	}
	// The chase runs on its own context: tearing down the stream does not
	// abandon an in-flight retry chain, it completes or exhausts naturally.
	go c.autofetch.AutoFetch(context.Background(), autofetch.MaxAttempts, msg.LatestTemplateVersionNumber)
	return false
}

// accumulateEnvelopes appends each incoming line to a buffer. Once the
// buffer contains "}", the outermost "{...}" envelope is extracted and
// emitted and the buffer is cleared; until then lines keep accumulating.
// Clearing happens whether or not extraction produced an envelope, so a
// malformed frame resets the accumulator rather than poisoning every
// later message.
func accumulateEnvelopes(lines ro.Observable[string]) ro.Observable[string] {
	var buf strings.Builder
	return engro.ProcessStream(
		lines,
		func(line string) string {
			buf.WriteString(line)
			if !strings.Contains(line, "}") {
				return ""
			}
			envelope, ok := wire.ExtractStreamEnvelope(buf.String())
			buf.Reset()
			if !ok {
				return ""
			}
			return envelope
		},
		func(envelope string) bool { return envelope != "" },
	)
}
