package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"

	"webcoder/internal/judge/model"
	"webcoder/pkg/errors"
)

// ProblemReader is the problem read model.
type ProblemReader interface {
	GetProblem(ctx context.Context, id model.ProblemID) (model.Problem, error)
}

// GetProblem reads one problem. Problems are public, so the bearer token is
// attached only when one is available.
func (c *Client) GetProblem(ctx context.Context, id model.ProblemID) (model.Problem, error) {
	var p model.Problem
	if id.Empty() {
		return p, errors.ValidationError("id", "problem id is required")
	}
	err := c.do(ctx, call{
		method:   http.MethodGet,
		path:     fmt.Sprintf(problemPath, url.PathEscape(id.String())),
		auth:     c.hasCredential(),
		resource: resProblem,
	}, &p)
	return p, err
}

// ListProblems reads the problem list. Paginated and bare list bodies are
// both accepted.
func (c *Client) ListProblems(ctx context.Context) ([]model.Problem, error) {
	var raw json.RawMessage
	err := c.do(ctx, call{
		method:   http.MethodGet,
		path:     problemListPath,
		auth:     c.hasCredential(),
		resource: resProblem,
	}, &raw)
	if err != nil {
		return nil, err
	}
	return decodeProblemList(raw)
}

func decodeProblemList(raw json.RawMessage) ([]model.Problem, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 {
		return nil, nil
	}
	var list []model.Problem
	if raw[0] == '[' {
		if err := json.Unmarshal(raw, &list); err != nil {
			return nil, errors.Wrap(err, errors.DecodeFailed)
		}
		return list, nil
	}
	var page struct {
		Results []model.Problem `json:"results"`
	}
	if err := json.Unmarshal(raw, &page); err != nil {
		return nil, errors.Wrap(err, errors.DecodeFailed)
	}
	return page.Results, nil
}

func (c *Client) hasCredential() bool {
	if c.creds == nil {
		return false
	}
	_, err := c.creds.BearerToken()
	return err == nil
}
