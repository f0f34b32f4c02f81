// Package fetch implements the fetch handler: the cache-expiry and
// throttle decision algorithm, the backend HTTP call, response handling,
// and the backoff update.
package fetch

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/rconfig/engine/internal/backoff"
	"github.com/rconfig/engine/internal/cache"
	"github.com/rconfig/engine/internal/container"
	"github.com/rconfig/engine/internal/credentials"
	"github.com/rconfig/engine/internal/metadata"
	"github.com/rconfig/engine/internal/rcerrors"
	"github.com/rconfig/engine/internal/wire"
)

// Status is the outcome of a completed Fetch call.
type Status int

const (
	BackendUpdatesFetched Status = iota
	BackendHasNoUpdates
	LocalStorageUsed
)

func (s Status) String() string {
	switch s {
	case BackendUpdatesFetched:
		return "BACKEND_UPDATES_FETCHED"
	case BackendHasNoUpdates:
		return "BACKEND_HAS_NO_UPDATES"
	case LocalStorageUsed:
		return "LOCAL_STORAGE_USED"
	default:
		return "UNKNOWN"
	}
}

// Response is returned by a successful Fetch call.
type Response struct {
	Status    Status
	FetchTime time.Time
	Container *container.Container // set only for BackendUpdatesFetched
	ETag      string                // set only for BackendUpdatesFetched
}

// Options parameterizes one Fetch call.
type Options struct {
	// MinInterval overrides the configured minimum fetch interval for
	// this call; zero forces a backend consultation (still subject to
	// backoff), which is how autofetch chases a version target.
	MinInterval time.Duration
	// AttemptNumber is telemetry-only: the 1-based attempt number
	// reported by callers (e.g. autofetch) that retry internally.
	AttemptNumber int
}

// Endpoint identifies the backend fetch URL's template parameters.
type Endpoint struct {
	URL           string
	APIKey        string
	AppInstanceInfo wire.FetchRequestInfo
}

// Handler implements the fetch decision algorithm and response handling.
type Handler struct {
	endpoint     Endpoint
	httpClient   *http.Client
	installation credentials.InstallationProvider
	analytics    credentials.AnalyticsLogger // optional
	fetchedCache *cache.Cache
	meta         *metadata.Store
	circuit      *backoff.Circuit
	timeout      time.Duration
	log          zerolog.Logger
}

// New constructs a fetch Handler. analytics may be nil; fetch requests
// then carry an empty user-property map.
func New(
	endpoint Endpoint,
	httpClient *http.Client,
	installation credentials.InstallationProvider,
	analytics credentials.AnalyticsLogger,
	fetchedCache *cache.Cache,
	meta *metadata.Store,
	circuit *backoff.Circuit,
	timeout time.Duration,
	log zerolog.Logger,
) *Handler {
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	return &Handler{
		endpoint:     endpoint,
		httpClient:   httpClient,
		installation: installation,
		analytics:    analytics,
		fetchedCache: fetchedCache,
		meta:         meta,
		circuit:      circuit,
		timeout:      timeout,
		log:          log,
	}
}

// Fetch runs the decision algorithm and, if a backend call is warranted,
// performs it and applies the response-handling rules.
func (h *Handler) Fetch(ctx context.Context, opts Options) (Response, error) {
	now := time.Now()

	cached, err := h.fetchedCache.Get(ctx)
	if err == nil && cached != nil && !cached.FetchTime().IsZero() {
		if cached.FetchTime().Add(opts.MinInterval).After(now) {
			h.recordStatus(ctx, "success", now, false)
			return Response{Status: LocalStorageUsed, FetchTime: now}, nil
		}
	}

	fetchBackoff := h.meta.FetchBackoff()
	if fetchBackoff.Active(now) {
		h.recordStatus(ctx, "throttled", now, false)
		return Response{}, &rcerrors.Throttled{Until: fetchBackoff.EndTime}
	}

	instID, err := h.installation.InstallationID(ctx)
	if err != nil {
		h.recordStatus(ctx, "failure", now, false)
		return Response{}, &rcerrors.ClientError{Message: fmt.Sprintf("installation id: %v", err)}
	}
	token, err := h.installation.Token(ctx)
	if err != nil {
		h.recordStatus(ctx, "failure", now, false)
		return Response{}, &rcerrors.ClientError{Message: fmt.Sprintf("installation token: %v", err)}
	}

	ctx, cancel := context.WithTimeout(ctx, h.timeout)
	defer cancel()

	resp, err := h.doHTTP(ctx, instID, token.AccessToken)
	if err != nil {
		h.recordStatus(ctx, "failure", now, false)
		return Response{}, &rcerrors.ClientError{Message: err.Error()}
	}

	result, callErr := h.handleResponse(ctx, resp, now)
	switch {
	case callErr == nil:
		h.recordStatus(ctx, "success", now, true)
	default:
		var throttled *rcerrors.Throttled
		if asThrottled(callErr, &throttled) {
			h.recordStatus(ctx, "throttled", now, false)
		} else {
			h.recordStatus(ctx, "failure", now, false)
		}
	}
	return result, callErr
}

func asThrottled(err error, target **rcerrors.Throttled) bool {
	t, ok := err.(*rcerrors.Throttled)
	if ok {
		*target = t
	}
	return ok
}

type httpOutcome struct {
	status int
	body   []byte
	etag   string
}

func (h *Handler) doHTTP(ctx context.Context, installationID, token string) (httpOutcome, error) {
	if h.circuit != nil {
		done, err := h.circuit.Allow()
		if err != nil {
			return httpOutcome{}, err
		}
		outcome, callErr := h.roundTrip(ctx, installationID, token)
		done(callErr == nil)
		return outcome, callErr
	}
	return h.roundTrip(ctx, installationID, token)
}

func (h *Handler) roundTrip(ctx context.Context, installationID, token string) (httpOutcome, error) {
	info := h.endpoint.AppInstanceInfo
	info.AppInstanceID = installationID
	info.AppInstanceIDToken = token
	if h.analytics != nil {
		info.AnalyticsUserProperties = h.analytics.UserProperties(ctx)
	}
	info.CustomSignals = h.meta.CustomSignals()
	body, err := wire.BuildFetchRequest(info)
	if err != nil {
		return httpOutcome{}, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, h.endpoint.URL, bytes.NewReader(body))
	if err != nil {
		return httpOutcome{}, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set(wire.HeaderAPIKey, h.endpoint.APIKey)
	req.Header.Set(wire.HeaderInstallationsAuth, token)
	req.Header.Set(wire.HeaderAndroidPackage, info.PackageName)
	req.Header.Set(wire.HeaderAndroidCert, strings.ToUpper(info.AndroidCertSHA1))
	req.Header.Set(wire.HeaderCanRetry, "yes")
	req.Header.Set(wire.HeaderRequestID, uuid.NewString())
	if etag := h.meta.Info().LastFetchETag; etag != "" {
		req.Header.Set(wire.HeaderIfNoneMatch, etag)
	}

	start := time.Now()
	resp, err := h.httpClient.Do(req)
	if err != nil {
		return httpOutcome{}, err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	h.log.Debug().
		Int("status", resp.StatusCode).
		Dur("duration", time.Since(start)).
		Msg("fetch: backend round-trip")
	if err != nil {
		return httpOutcome{}, err
	}

	return httpOutcome{status: resp.StatusCode, body: data, etag: resp.Header.Get("ETag")}, nil
}

func (h *Handler) handleResponse(ctx context.Context, outcome httpOutcome, now time.Time) (Response, error) {
	switch {
	case outcome.status == http.StatusOK:
		return h.handleOK(ctx, outcome, now)
	case outcome.status == http.StatusUnauthorized || outcome.status == http.StatusForbidden || outcome.status == http.StatusInternalServerError:
		return Response{}, &rcerrors.ServerError{Status: outcome.status}
	case outcome.status == http.StatusTooManyRequests:
		state, err := h.bumpBackoff(ctx, now)
		if err != nil {
			return Response{}, err
		}
		return Response{}, &rcerrors.Throttled{Until: state.EndTime}
	case outcome.status == http.StatusBadGateway || outcome.status == http.StatusServiceUnavailable || outcome.status == http.StatusGatewayTimeout:
		state, err := h.bumpBackoff(ctx, now)
		if err != nil {
			return Response{}, err
		}
		if state.FailureCount > 1 {
			return Response{}, &rcerrors.Throttled{Until: state.EndTime}
		}
		return Response{}, &rcerrors.ServerError{Status: outcome.status}
	default:
		return Response{}, &rcerrors.ServerError{Status: outcome.status}
	}
}

func (h *Handler) handleOK(ctx context.Context, outcome httpOutcome, now time.Time) (Response, error) {
	parsed, err := wire.ParseFetchResponse(outcome.body)
	if err != nil {
		return Response{}, &rcerrors.ClientError{Message: err.Error()}
	}

	if err := h.meta.SetFetchBackoff(ctx, backoff.Reset); err != nil {
		return Response{}, err
	}

	info := h.meta.Info()
	if outcome.etag != "" {
		info.LastFetchETag = outcome.etag
	}

	if parsed.State == wire.StateNoChange || !parsed.HasEntries {
		if err := h.meta.SetInfo(ctx, info); err != nil {
			return Response{}, err
		}
		return Response{Status: BackendHasNoUpdates, FetchTime: now}, nil
	}

	cont := container.NewBuilder().
		WithConfigs(parsed.Entries).
		WithFetchTime(now).
		WithTemplateVersion(parsed.TemplateVersion).
		WithExperimentDescriptions(parsed.ExperimentDescriptions).
		WithPersonalizationMetadata(parsed.PersonalizationMetadata).
		Build()

	if err := h.fetchedCache.Put(ctx, cont, true); err != nil {
		return Response{}, err
	}
	if parsed.TemplateVersion > info.LastTemplateVersionNumber {
		info.LastTemplateVersionNumber = parsed.TemplateVersion
	}
	if err := h.meta.SetInfo(ctx, info); err != nil {
		return Response{}, err
	}

	return Response{Status: BackendUpdatesFetched, FetchTime: now, Container: cont, ETag: outcome.etag}, nil
}

func (h *Handler) bumpBackoff(ctx context.Context, failedAt time.Time) (backoffState, error) {
	prev := h.meta.FetchBackoff()
	next := backoff.Next(prev, failedAt)
	if err := h.meta.SetFetchBackoff(ctx, next); err != nil {
		return backoffState{}, err
	}
	return backoffState(next), nil
}

type backoffState = backoff.State

// recordStatus updates last-fetch-status and, on success, advances
// last-successful-fetch-time to the `now` captured before the call was
// made, not the wall clock at completion.
func (h *Handler) recordStatus(ctx context.Context, status string, callStartedAt time.Time, succeeded bool) {
	info := h.meta.Info()
	info.LastFetchStatus = status
	info.LastFetchAttemptTime = callStartedAt.UnixMilli()
	if succeeded {
		info.LastSuccessfulFetchTime = callStartedAt.UnixMilli()
	}
	if err := h.meta.SetInfo(ctx, info); err != nil {
		h.log.Warn().Err(err).Msg("fetch: failed to persist post-fetch bookkeeping")
	}
}
