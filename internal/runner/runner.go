// Package runner is the request-execution collaborator: it applies a
// script's RequestPatch to a request snapshot, dispatches the HTTP call and
// captures the response snapshot consumed by test-phase jobs.
package runner

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/gabriel-vasile/mimetype"
	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"

	"github.com/apiforge/forge/backend/internal/logging"
	"github.com/apiforge/forge/backend/internal/script"
)

// Dispatcher executes one request snapshot and returns the response snapshot.
type Dispatcher interface {
	Dispatch(ctx context.Context, req script.RequestSnapshot) (*script.ResponseSnapshot, error)
}

// Runner dispatches requests with resty, guarded by a circuit breaker so a
// dead upstream fails fast instead of tying up the pipeline.
type Runner struct {
	client  *resty.Client
	breaker *Breaker
	log     *logging.Logger
}

// New creates a runner with sane client defaults.
func New(log *logging.Logger) *Runner {
	client := resty.New().
		SetTimeout(30 * time.Second).
		SetRetryCount(2).
		SetRetryWaitTime(250 * time.Millisecond)

	return &Runner{
		client:  client,
		breaker: NewBreaker(5, 30*time.Second),
		log:     log,
	}
}

// ApplyPatch returns a copy of snap with the script's changes applied. A nil
// header delta deletes the header; AuthRemoved clears auth.
func ApplyPatch(snap script.RequestSnapshot, patch *script.RequestPatch) script.RequestSnapshot {
	out := snap
	out.Headers = make(map[string]string, len(snap.Headers))
	for k, v := range snap.Headers {
		out.Headers[k] = v
	}
	if patch.Empty() {
		return out
	}

	if patch.URL != nil {
		out.URL = *patch.URL
	}
	if patch.Method != nil {
		out.Method = *patch.Method
	}
	if patch.Body != nil {
		out.Body = *patch.Body
	}
	for key, value := range patch.Headers {
		if value == nil {
			delete(out.Headers, key)
		} else {
			out.Headers[key] = *value
		}
	}
	switch {
	case patch.AuthRemoved:
		out.Auth = nil
	case patch.Auth != nil:
		out.Auth = patch.Auth
	}
	return out
}

// Dispatch executes the request and snapshots the response.
func (r *Runner) Dispatch(ctx context.Context, req script.RequestSnapshot) (*script.ResponseSnapshot, error) {
	if err := r.breaker.Allow(); err != nil {
		return nil, err
	}

	method := strings.ToUpper(req.Method)
	if method == "" {
		method = "GET"
	}

	rr := r.client.R().SetContext(ctx).SetHeaders(req.Headers)
	if req.Body != "" {
		rr.SetBody(req.Body)
	}
	applyAuth(rr, req.Auth)

	resp, err := rr.Execute(method, req.URL)
	r.breaker.Record(err == nil)
	if err != nil {
		r.log.Warn("request dispatch failed", zap.String("url", req.URL), zap.Error(err))
		return nil, fmt.Errorf("dispatch %s %s: %w", method, req.URL, err)
	}

	return snapshotResponse(resp), nil
}

// applyAuth maps an auth descriptor onto the outgoing request.
func applyAuth(rr *resty.Request, auth *script.Auth) {
	if auth == nil {
		return
	}
	switch auth.Type {
	case "bearer":
		if token, ok := auth.Param("token"); ok {
			rr.SetAuthToken(token)
		}
	case "basic":
		user, _ := auth.Param("username")
		pass, _ := auth.Param("password")
		rr.SetBasicAuth(user, pass)
	case "apikey":
		key, _ := auth.Param("key")
		value, _ := auth.Param("value")
		if key != "" {
			rr.SetHeader(key, value)
		}
	}
}

func snapshotResponse(resp *resty.Response) *script.ResponseSnapshot {
	headers := make(map[string]string, len(resp.Header()))
	for name, values := range resp.Header() {
		if len(values) > 0 {
			headers[name] = values[0]
		}
	}

	body := resp.Body()
	// Some servers omit Content-Type entirely; sniff it so the response
	// viewer can still pick a renderer.
	if headers["Content-Type"] == "" && len(body) > 0 {
		headers["Content-Type"] = mimetype.Detect(body).String()
	}

	return &script.ResponseSnapshot{
		Code:         resp.StatusCode(),
		Status:       resp.Status(),
		Headers:      headers,
		Body:         string(body),
		ResponseTime: resp.Time().Milliseconds(),
	}
}
