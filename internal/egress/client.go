package egress

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	gobreaker "github.com/sony/gobreaker/v2"

	"pso-control-plane/backend/internal/errs"
	"pso-control-plane/backend/internal/logging"
)

// HTTPClient talks to the egress service over HTTP. Every call is bounded by
// callTimeout so a hung egress surfaces as a typed failure instead of an
// indefinite block, and a circuit breaker sheds load while the service is
// down.
type HTTPClient struct {
	baseURL string
	apiKey  string
	http    *http.Client
	cb      *gobreaker.CircuitBreaker[[]byte]
}

// NewHTTPClient builds an egress client for baseURL. apiKey may be empty when
// the egress service is unauthenticated (dev). callTimeout bounds each call.
func NewHTTPClient(baseURL, apiKey string, callTimeout time.Duration) *HTTPClient {
	if callTimeout <= 0 {
		callTimeout = 10 * time.Second
	}
	cb := gobreaker.NewCircuitBreaker[[]byte](gobreaker.Settings{
		Name:        "egress",
		MaxRequests: 3,
		Interval:    time.Minute,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.Requests >= 5 && counts.TotalFailures*2 > counts.Requests
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logging.Warn().Str("breaker", name).Str("from", from.String()).Str("to", to.String()).Msg("egress breaker state change")
		},
	})
	return &HTTPClient{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		apiKey:  apiKey,
		http:    &http.Client{Timeout: callTimeout},
		cb:      cb,
	}
}

type startRequest struct {
	RoomName string `json:"room_name"`
}

type startResponse struct {
	EgressID string `json:"egress_id"`
}

type stopRequest struct {
	EgressID string `json:"egress_id"`
}

type stopResponse struct {
	Path string `json:"path"`
	URL  string `json:"url"`
}

// StartRecording begins capturing roomName and returns the egress ID.
func (c *HTTPClient) StartRecording(ctx context.Context, roomName string) (string, error) {
	body, err := c.post(ctx, "/egress/start", startRequest{RoomName: roomName}, nil)
	if err != nil {
		return "", err
	}
	var resp startResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return "", errs.Wrap(errs.KindExternal, "egress: decode start response", err)
	}
	if resp.EgressID == "" {
		return "", errs.E(errs.KindExternal, "egress: start returned empty egress_id")
	}
	return resp.EgressID, nil
}

// StopRecording finishes the capture for egressID. A 409 or 410 from the
// service means the egress already stopped; that is success with an empty
// result, so a duplicate stop is idempotent from the caller's perspective.
func (c *HTTPClient) StopRecording(ctx context.Context, egressID string) (StopResult, error) {
	alreadyStopped := false
	body, err := c.post(ctx, "/egress/stop", stopRequest{EgressID: egressID}, func(status int) bool {
		if status == http.StatusConflict || status == http.StatusGone {
			alreadyStopped = true
			return true
		}
		return false
	})
	if err != nil {
		return StopResult{}, err
	}
	if alreadyStopped {
		return StopResult{}, nil
	}
	var resp stopResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return StopResult{}, errs.Wrap(errs.KindExternal, "egress: decode stop response", err)
	}
	return StopResult{Path: resp.Path, URL: resp.URL}, nil
}

// post issues the request through the circuit breaker. tolerate, when
// non-nil, marks specific non-2xx statuses as acceptable (body is then
// discarded and nil is returned).
func (c *HTTPClient) post(ctx context.Context, path string, payload any, tolerate func(status int) bool) ([]byte, error) {
	reqBody, err := json.Marshal(payload)
	if err != nil {
		return nil, errs.Wrap(errs.KindValidation, "egress: encode request", err)
	}

	body, err := c.cb.Execute(func() ([]byte, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(reqBody))
		if err != nil {
			return nil, err
		}
		req.Header.Set("Content-Type", "application/json")
		if c.apiKey != "" {
			req.Header.Set("Authorization", "Bearer "+c.apiKey)
		}
		resp, err := c.http.Do(req)
		if err != nil {
			return nil, err
		}
		defer resp.Body.Close()
		data, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
		if err != nil {
			return nil, err
		}
		if resp.StatusCode < 200 || resp.StatusCode >= 300 {
			if tolerate != nil && tolerate(resp.StatusCode) {
				return nil, nil
			}
			return nil, fmt.Errorf("egress returned %s: %s", resp.Status, strings.TrimSpace(string(data)))
		}
		return data, nil
	})
	if err != nil {
		return nil, errs.Wrap(errs.KindExternal, "egress: call "+path, err)
	}
	return body, nil
}
