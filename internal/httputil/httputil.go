// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package httputil provides HTTP helpers shared by the API providers.
package httputil

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/pdiddy/design-engine/internal/apperr"
)

// MaxBodyBytes caps how much of a response body is read.
const MaxBodyBytes = 8 << 20

// maxErrorSnippet bounds the body text quoted in status errors.
const maxErrorSnippet = 512

// Do sends req once and returns the response body. Transport failures and
// non-2xx statuses come back as classified errors, so the retry executor
// decides whether another attempt is worthwhile. Do itself never retries.
func Do(ctx context.Context, client *http.Client, req *http.Request) ([]byte, error) {
	op := fmt.Sprintf("%s %s", req.Method, req.URL.Host)
	resp, err := client.Do(req.Clone(ctx))
	if err != nil {
		return nil, apperr.Wrap(err, op)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, MaxBodyBytes))
	if err != nil {
		return nil, apperr.Wrap(fmt.Errorf("reading response body: %w", err), op)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, StatusError(op, resp.StatusCode, body)
	}
	return body, nil
}

// StatusError classifies an HTTP status. Rate limits, timeouts, and server
// errors are retryable network failures; bad credentials are configuration
// errors; any other client error is a permanent generation failure.
func StatusError(op string, status int, body []byte) error {
	cause := fmt.Errorf("HTTP %d: %s", status, snippet(body))
	e := &apperr.Error{Op: op, Err: cause}
	switch {
	case status == http.StatusTooManyRequests:
		e.Category, e.Code, e.Retryable = apperr.CategoryNetwork, apperr.CodeRateLimited, true
		e.Message = "rate limited by provider"
	case status == http.StatusRequestTimeout || status == http.StatusGatewayTimeout:
		e.Category, e.Code, e.Retryable = apperr.CategoryNetwork, apperr.CodeTimeout, true
		e.Message = "provider timed out"
	case status >= 500:
		e.Category, e.Code, e.Retryable = apperr.CategoryNetwork, apperr.CodeUnavailable, true
		e.Message = "provider temporarily unavailable"
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		e.Category, e.Code = apperr.CategoryConfiguration, apperr.CodeMalformedSettings
		e.Message = "provider rejected the API key"
	default:
		e.Category, e.Code = apperr.CategoryGeneration, apperr.CodeProviderFailed
		e.Message = "provider rejected the request"
	}
	return e
}

func snippet(body []byte) string {
	s := strings.TrimSpace(string(body))
	if len(s) > maxErrorSnippet {
		s = s[:maxErrorSnippet] + "..."
	}
	if s == "" {
		return "(empty body)"
	}
	return s
}
