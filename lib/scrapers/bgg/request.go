package bgg

import (
	"bytes"
	"context"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"

	"github.com/chardila/mybgg/lib/httpcache"

	"github.com/cenkalti/backoff/v4"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

// fetch drives one upstream request through its full lifecycle:
//
//	Issued -> Pending / transient failure -> backoff -> re-issued
//	       -> Succeeded (body cached and returned)
//	       -> FailedFatal (attempt ceiling reached)
//	       -> AuthError (no retry, the credential is bad)
//
// The cache is consulted before every attempt, not just the first: an
// earlier run, or another chunk of the same run, may already have completed
// the identical request.
func (c *Client) fetch(ctx context.Context, endpoint string, params url.Values) ([]byte, error) {
	ctx, span := tracer.Start(ctx, "fetch")
	defer span.End()
	span.SetAttributes(attribute.String("endpoint", endpoint))

	key := httpcache.Key(endpoint, params)

	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = c.baseDelay
	bo.RandomizationFactor = 0
	bo.Multiplier = 2
	bo.MaxInterval = c.maxDelay
	bo.MaxElapsedTime = 0
	bo.Reset()

	for attempt := 1; ; attempt++ {
		cached, ok, err := c.cache.Get(key)
		if err != nil {
			slog.WarnContext(ctx, "cache read failed", "endpoint", endpoint, "err", err)
		}
		if ok {
			span.SetStatus(codes.Ok, "CACHE HIT")
			return cached, nil
		}

		if err := c.limiter.Acquire(ctx); err != nil {
			return nil, err
		}

		body, err := c.issue(ctx, endpoint, params)
		if err == nil {
			if err := c.cache.Put(key, body); err != nil {
				slog.WarnContext(ctx, "cache write failed", "endpoint", endpoint, "err", err)
			}
			return body, nil
		}

		var authErr *AuthError
		if errors.As(err, &authErr) {
			span.RecordError(err)
			span.SetStatus(codes.Error, "authentication rejected")
			return nil, err
		}

		if attempt >= c.maxAttempts {
			fatal := &FatalError{
				Endpoint: endpoint,
				Params:   c.redactParams(params),
				Attempts: attempt,
				Err:      err,
			}
			span.RecordError(fatal)
			span.SetStatus(codes.Error, "retry budget exhausted")
			return nil, fatal
		}

		delay := bo.NextBackOff()
		slog.DebugContext(
			ctx, "retrying upstream request",
			"endpoint", endpoint,
			"attempt", attempt,
			"delay", delay,
			"reason", err,
		)
		if err := c.clock.Sleep(ctx, delay); err != nil {
			return nil, err
		}
	}
}

// issue performs exactly one request and classifies the outcome.
func (c *Client) issue(ctx context.Context, endpoint string, params url.Values) ([]byte, error) {
	res, err := c.http.R().
		SetContext(ctx).
		SetQueryParamsFromValues(params).
		Get(endpoint)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, &transientError{reason: fmt.Sprintf("transport: %v", err)}
	}

	status := res.StatusCode()
	switch {
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		return nil, &AuthError{Endpoint: endpoint}
	case status == http.StatusAccepted:
		return nil, &transientError{reason: "job accepted, still processing"}
	case status != http.StatusOK:
		return nil, &transientError{reason: fmt.Sprintf("unexpected status %d", status)}
	}

	body := res.Body()
	if isPendingBody(body) {
		return nil, &transientError{reason: "job accepted, still processing"}
	}
	if !xmlWellFormed(body) {
		return nil, &transientError{reason: "malformed response body"}
	}
	return body, nil
}

func xmlWellFormed(body []byte) bool {
	dec := xml.NewDecoder(bytes.NewReader(body))
	for {
		_, err := dec.Token()
		if err == io.EOF {
			return true
		}
		if err != nil {
			return false
		}
	}
}

// redactParams renders parameters for error messages with anything
// credential-shaped masked.
func (c *Client) redactParams(params url.Values) string {
	redacted := url.Values{}
	for k, vals := range params {
		for _, v := range vals {
			if isSecretParam(k) || (c.token != "" && v == c.token) {
				v = MaskSecret(v)
			}
			redacted.Add(k, v)
		}
	}
	return redacted.Encode()
}

func isSecretParam(k string) bool {
	switch k {
	case "token", "apikey", "password":
		return true
	}
	return false
}

// isRunFatal reports whether an error must abort the whole run rather than
// just the item it occurred on.
func isRunFatal(err error) bool {
	var authErr *AuthError
	return errors.As(err, &authErr) ||
		errors.Is(err, context.Canceled) ||
		errors.Is(err, context.DeadlineExceeded)
}
