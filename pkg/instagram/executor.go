package instagram

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	errs "igcrawler/pkg/errors"
	"igcrawler/pkg/metrics"
	"igcrawler/pkg/ratelimit"
	"igcrawler/pkg/retry"
)

// GetJSON requests path on host (the web host when empty) and returns the
// decoded JSON object. Connection failures and 429 responses are retried up to
// query.max_connection_attempts; after that the last failure is returned as a
// Connection error. BadRequest and NotFound are returned without retrying.
func (c *Context) GetJSON(ctx context.Context, path string, params url.Values, host string) (map[string]interface{}, error) {
	return c.getJSON(ctx, path, params, host, c.currentSession())
}

// GetIPhoneJSON requests path on the mobile API host
func (c *Context) GetIPhoneJSON(ctx context.Context, path string, params url.Values) (map[string]interface{}, error) {
	sess := c.currentSession().Copy()
	sess.SetHeader("User-Agent", IPhoneUserAgent)
	sess.SetHeader("X-IG-App-ID", IPhoneAppID)
	sess.DelHeader("Host", "Origin", "X-Instagram-AJAX", "X-Requested-With")
	return c.getJSON(ctx, path, params, c.cfg.Instagram.IPhoneHost, sess)
}

// queryType returns the rate controller bucket of a request, or "" for hosts
// that are not rate controlled.
func (c *Context) queryType(path string, params url.Values, host string) string {
	switch {
	case params.Get("query_hash") != "" && strings.Contains(path, GraphQLEndpoint):
		return params.Get("query_hash")
	case host == c.cfg.Instagram.IPhoneHost:
		return ratelimit.QueryTypeIPhone
	case host == c.cfg.Instagram.Host:
		return ratelimit.QueryTypeOther
	default:
		return ""
	}
}

func (c *Context) getJSON(ctx context.Context, path string, params url.Values, host string, sess *Session) (map[string]interface{}, error) {
	if host == "" {
		host = c.cfg.Instagram.Host
	}
	path = strings.TrimPrefix(path, "/")
	queryType := c.queryType(path, params, host)

	rcfg := &retry.Config{
		MaxAttempts: c.cfg.Query.MaxConnectionAttempts,
		Sleep:       c.sleep,
		RetryIf: func(err error) bool {
			t, ok := errs.TypeOf(err)
			return ok && errs.IsRetryable(t)
		},
		Delay: func(_ int, err error) time.Duration {
			if errs.IsType(err, errs.ErrorTypeRateLimit) && queryType != "" {
				return c.controller.HandleTooManyRequests(queryType)
			}
			return 0
		},
		OnRetry: func(attempt int, err error, delay time.Duration) {
			reason := "connection"
			if errs.IsType(err, errs.ErrorTypeRateLimit) {
				reason = "too_many_requests"
			}
			metrics.RecordRetry(reason)
			c.log.WithError(err).WarnWithFields(fmt.Sprintf("JSON Query to %s failed [retrying; skip with ^C]", path), map[string]interface{}{
				"attempt": attempt,
				"delay":   delay,
			})
		},
	}

	result, err := retry.DoWithResult(ctx, func() (map[string]interface{}, error) {
		return c.attemptJSON(ctx, path, params, host, sess, queryType)
	}, rcfg)
	if err == nil {
		return result, nil
	}

	var exhausted *retry.ExhaustedError
	var cancelled *retry.CancelledError
	switch {
	case errors.As(err, &exhausted):
		return nil, errs.Wrap(errs.ErrorTypeNetwork, exhausted, "JSON Query to %s", path)
	case errors.As(err, &cancelled):
		c.log.Warn("[skipped by user]")
		return nil, errs.Wrap(errs.ErrorTypeNetwork, cancelled, "JSON Query to %s", path)
	default:
		return nil, err
	}
}

// attemptJSON performs one attempt: pause, rate control, request, redirects,
// classification and decoding.
func (c *Context) attemptJSON(ctx context.Context, path string, params url.Values, host string, sess *Session, queryType string) (map[string]interface{}, error) {
	if err := c.doSleep(ctx); err != nil {
		return nil, err
	}
	if queryType != "" {
		if err := c.controller.WaitBeforeQuery(ctx, queryType); err != nil {
			return nil, err
		}
	}

	target := fmt.Sprintf("%s://%s/%s", c.cfg.Instagram.Scheme, host, path)
	resp, err := c.doRequest(ctx, sess, http.MethodGet, target, params, nil, queryType)
	if err != nil {
		return nil, err
	}

	for isRedirect(resp.StatusCode) {
		resp.Body.Close()
		next, err := resp.Request.URL.Parse(resp.Header.Get("Location"))
		if err != nil {
			return nil, errs.Wrap(errs.ErrorTypeNetwork, err, "invalid redirect from %s", target)
		}
		c.log.DebugWithFields("HTTP redirect", map[string]interface{}{
			"from": target,
			"to":   next.String(),
		})
		if next.Host == c.cfg.Instagram.Host && strings.HasPrefix(next.Path, "/accounts/login") {
			return nil, errs.WithCode(errs.ErrorTypeRateLimit, http.StatusTooManyRequests, "429 Too Many Requests: redirected to login")
		}
		if next.Host != host {
			return nil, errs.WithCode(errs.ErrorTypeNetwork, resp.StatusCode, "redirected to %s", next.String())
		}
		if !strings.HasSuffix(next.Path, "/") {
			next.Path += "/"
		}
		redirectParams := params
		if next.RawQuery != "" {
			redirectParams = nil
		}
		resp, err = c.doRequest(ctx, sess, http.MethodGet, next.String(), redirectParams, nil, queryType)
		if err != nil {
			return nil, err
		}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, jsonStatusError(resp.StatusCode)
	}
	return decodeJSON(resp.Body)
}

// jsonStatusError classifies a non-200 JSON response. 403 is only terminal for
// raw downloads and is a plain connection failure here.
func jsonStatusError(code int) error {
	t := errs.TypeForStatus(code)
	if t == errs.ErrorTypeForbidden {
		t = errs.ErrorTypeNetwork
	}
	if t == errs.ErrorTypeNetwork {
		return errs.WithCode(t, code, "HTTP error code %d", code)
	}
	return errs.WithCode(t, code, "%d %s", code, http.StatusText(code))
}

// decodeJSON decodes a provider response and rejects responses whose status
// is present and not "ok".
func decodeJSON(body io.Reader) (map[string]interface{}, error) {
	out, err := decodeObject(body)
	if err != nil {
		return nil, errs.Wrap(errs.ErrorTypeNetwork, err, "failed to parse JSON")
	}
	if status, ok := out["status"]; ok && status != "ok" {
		if msg, ok := out["message"]; ok {
			return nil, errs.New(errs.ErrorTypeNetwork, "returned %q status, message %q", fmt.Sprint(status), fmt.Sprint(msg))
		}
		return nil, errs.New(errs.ErrorTypeNetwork, "returned %q status", fmt.Sprint(status))
	}
	return out, nil
}

// decodeObject decodes a JSON object keeping numbers as json.Number
func decodeObject(body io.Reader) (map[string]interface{}, error) {
	data, err := io.ReadAll(body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}

	var out map[string]interface{}
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	if err := dec.Decode(&out); err != nil {
		preview := string(data)
		if len(preview) > 200 {
			preview = preview[:200] + "..."
		}
		return nil, fmt.Errorf("%w (body %q)", err, preview)
	}
	if out == nil {
		return nil, errors.New("response is not a JSON object")
	}
	return out, nil
}

// doRequest sends one HTTP request through sess and records it
func (c *Context) doRequest(ctx context.Context, sess *Session, method, target string, params url.Values, body io.Reader, queryType string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, method, target, body)
	if err != nil {
		return nil, errs.Wrap(errs.ErrorTypeInvalidArgument, err, "failed to create request")
	}
	if len(params) > 0 {
		q := req.URL.Query()
		for k, vs := range params {
			for _, v := range vs {
				q.Add(k, v)
			}
		}
		req.URL.RawQuery = q.Encode()
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	}

	metricType := queryType
	if metricType == "" {
		metricType = ratelimit.QueryTypeOther
	}

	start := time.Now()
	c.log.DebugWithFields("sending HTTP request", map[string]interface{}{
		"method": method,
		"url":    req.URL.String(),
	})

	resp, err := sess.Do(req)
	duration := time.Since(start)
	if err != nil {
		metrics.RecordRequest(metricType, 0, duration)
		c.log.DebugWithFields("HTTP request failed", map[string]interface{}{
			"method":   method,
			"url":      req.URL.String(),
			"error":    err.Error(),
			"duration": duration,
		})
		return nil, errs.Wrap(errs.ErrorTypeNetwork, err, "%s %s", method, req.URL.Path)
	}

	metrics.RecordRequest(metricType, resp.StatusCode, duration)
	c.log.DebugWithFields("HTTP request completed", map[string]interface{}{
		"method":   method,
		"url":      req.URL.String(),
		"status":   resp.StatusCode,
		"duration": duration,
	})
	return resp, nil
}

func isRedirect(code int) bool {
	switch code {
	case http.StatusMovedPermanently, http.StatusFound, http.StatusSeeOther,
		http.StatusTemporaryRedirect, http.StatusPermanentRedirect:
		return true
	}
	return false
}
