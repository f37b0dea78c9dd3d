// Package client talks to the judge API over HTTP/JSON and maps every
// failure onto the pkg/errors taxonomy.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sort"
	"strings"

	httpclient "webcoder/internal/cli/http"
	"webcoder/pkg/errors"
	"webcoder/pkg/utils/logger"

	"go.uber.org/zap"
)

const (
	submitPath      = "/submissions/submit/"
	submissionPath  = "/submissions/%s/"
	problemPath     = "/problems/problems/%s/"
	problemListPath = "/problems/problems/"
	tokenPath       = "/token/"
	tokenRefresh    = "/token/refresh/"
	mePath          = "/users/me/"
)

// CredentialProvider yields the current bearer token. It returns an auth
// error when no usable token exists.
type CredentialProvider interface {
	BearerToken() (string, error)
}

// Doer is the transport the client sends requests through.
type Doer interface {
	Do(ctx context.Context, method, path string, headers map[string]string, body []byte) (httpclient.ResponseInfo, error)
}

// Client is the judge API client. It holds no mutable state.
type Client struct {
	http     Doer
	creds    CredentialProvider
	problems ProblemReader
}

// Option configures a Client.
type Option func(*Client)

// WithProblemReader sets the read model used to validate languages before
// a submission is sent. Without one the client reads problems itself.
func WithProblemReader(r ProblemReader) Option {
	return func(c *Client) {
		c.problems = r
	}
}

func New(doer Doer, creds CredentialProvider, opts ...Option) *Client {
	c := &Client{http: doer, creds: creds}
	for _, opt := range opts {
		opt(c)
	}
	if c.problems == nil {
		c.problems = c
	}
	return c
}

type resource string

const (
	resSubmission resource = "submission"
	resProblem    resource = "problem"
	resAuth       resource = "auth"
	resUser       resource = "user"
)

type call struct {
	method   string
	path     string
	body     any
	auth     bool
	resource resource
	ok       []int
}

func (c *Client) do(ctx context.Context, req call, out any) error {
	headers := map[string]string{}
	if req.auth {
		if c.creds == nil {
			return errors.New(errors.TokenMissing)
		}
		token, err := c.creds.BearerToken()
		if err != nil {
			return err
		}
		headers["Authorization"] = "Bearer " + token
	}

	var payload []byte
	if req.body != nil {
		data, err := json.Marshal(req.body)
		if err != nil {
			return errors.Wrap(err, errors.InternalServerError)
		}
		payload = data
	}

	resp, err := c.http.Do(ctx, req.method, req.path, headers, payload)
	if err != nil {
		logger.Warn(ctx, "judge request failed",
			zap.String("method", req.method),
			zap.String("path", req.path),
			zap.Error(err))
		return errors.NetworkError(err)
	}
	logger.Debug(ctx, "judge request",
		zap.String("method", req.method),
		zap.String("path", req.path),
		zap.Int("status", resp.StatusCode),
		zap.Duration("duration", resp.Duration))

	if !accepted(resp.StatusCode, req.ok) {
		return classify(req, resp)
	}
	if out == nil || len(bytes.TrimSpace(resp.Body)) == 0 {
		return nil
	}
	if err := json.Unmarshal(resp.Body, out); err != nil {
		return errors.Wrapf(err, errors.DecodeFailed, "decode %s response: %v", req.resource, err)
	}
	return nil
}

func accepted(status int, ok []int) bool {
	if len(ok) == 0 {
		return status >= 200 && status < 300
	}
	for _, s := range ok {
		if s == status {
			return true
		}
	}
	return false
}

// classify maps a non-success response onto an error code.
func classify(req call, resp httpclient.ResponseInfo) error {
	msg, fields := parseErrorBody(resp.Body)
	status := resp.StatusCode

	var e *errors.Error
	switch {
	case status == http.StatusUnauthorized:
		e = errors.New(errors.Unauthorized)
		if req.resource == resAuth {
			e = errors.New(errors.InvalidCredentials)
		}
	case status == http.StatusForbidden && req.method == http.MethodGet:
		// The judge answers 403 for submissions owned by someone else.
		e = errors.New(notFoundCode(req.resource))
	case status == http.StatusForbidden:
		e = errors.New(errors.Forbidden)
	case status == http.StatusNotFound:
		e = errors.New(notFoundCode(req.resource))
	case status == http.StatusBadRequest:
		e = errors.New(errors.ValidationFailed)
		if len(fields) > 0 {
			e = e.WithDetails(fields)
		}
	case status == http.StatusTooManyRequests:
		e = errors.New(errors.TooManyRequests)
	case status >= 500:
		e = errors.New(errors.ServiceUnavailable)
	default:
		e = errors.New(errors.InvalidParams)
	}
	if msg != "" {
		e = e.WithMessage(msg)
	}
	return e.WithDetail("status", status)
}

func notFoundCode(r resource) errors.ErrorCode {
	switch r {
	case resSubmission:
		return errors.SubmissionNotFound
	case resProblem:
		return errors.ProblemNotFound
	default:
		return errors.NotFound
	}
}

// parseErrorBody reads the judge's error payloads: {"detail": "..."} or a
// map of field names to message lists.
func parseErrorBody(body []byte) (string, map[string]interface{}) {
	var raw map[string]interface{}
	if err := json.Unmarshal(body, &raw); err != nil || len(raw) == 0 {
		return "", nil
	}
	if detail, ok := raw["detail"].(string); ok {
		return detail, nil
	}
	if errs, ok := raw["non_field_errors"]; ok {
		if m := firstMessage(errs); m != "" {
			return m, raw
		}
	}

	keys := make([]string, 0, len(raw))
	for k := range raw {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		if m := firstMessage(raw[k]); m != "" {
			parts = append(parts, k+": "+m)
		}
	}
	return strings.Join(parts, "; "), raw
}

func firstMessage(v interface{}) string {
	switch t := v.(type) {
	case string:
		return t
	case []interface{}:
		for _, item := range t {
			if m := firstMessage(item); m != "" {
				return m
			}
		}
	case map[string]interface{}:
		if s, ok := t["message"].(string); ok {
			return s
		}
	case nil:
		return ""
	default:
		return fmt.Sprint(t)
	}
	return ""
}
