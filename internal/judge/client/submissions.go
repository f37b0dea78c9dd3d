package client

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"webcoder/internal/judge/model"
	"webcoder/pkg/errors"
	"webcoder/pkg/utils/logger"

	"go.uber.org/zap"
)

type submitRequest struct {
	Problem  model.ProblemID `json:"problem"`
	Language string          `json:"language"`
	Code     string          `json:"code"`
}

// CreateSubmission validates in and sends it to the judge. Validation
// failures are returned without any request being made.
func (c *Client) CreateSubmission(ctx context.Context, in model.SubmitInput) (model.Submission, error) {
	var sub model.Submission
	if err := validateSubmit(in); err != nil {
		return sub, err
	}
	if err := c.checkLanguage(ctx, in); err != nil {
		return sub, err
	}

	err := c.do(ctx, call{
		method:   http.MethodPost,
		path:     submitPath,
		body:     submitRequest{Problem: in.ProblemID, Language: strings.TrimSpace(in.Language), Code: in.Code},
		auth:     true,
		resource: resSubmission,
		ok:       []int{http.StatusCreated, http.StatusOK},
	}, &sub)
	if err != nil {
		return sub, err
	}
	if sub.ID.Empty() {
		return sub, errors.New(errors.SubmissionCreateFailed).WithMessage("judge returned a submission without id")
	}
	logger.Info(ctx, "submission created",
		zap.String("submission_id", sub.ID.String()),
		zap.String("problem_id", in.ProblemID.String()),
		zap.String("language", in.Language))
	return sub, nil
}

// GetSubmission fetches a submission with its test results.
func (c *Client) GetSubmission(ctx context.Context, id model.SubmissionID) (model.SubmissionDetail, error) {
	var detail model.SubmissionDetail
	if id.Empty() {
		return detail, errors.ValidationError("id", "submission id is required")
	}
	err := c.do(ctx, call{
		method:   http.MethodGet,
		path:     fmt.Sprintf(submissionPath, url.PathEscape(id.String())),
		auth:     true,
		resource: resSubmission,
	}, &detail)
	return detail, err
}

func validateSubmit(in model.SubmitInput) error {
	if in.ProblemID.Empty() {
		return errors.New(errors.RequiredFieldEmpty).
			WithMessage("problem is required").
			WithDetail("field", "problem")
	}
	if strings.TrimSpace(in.Language) == "" {
		return errors.New(errors.RequiredFieldEmpty).
			WithMessage("language is required").
			WithDetail("field", "language")
	}
	if strings.TrimSpace(in.Code) == "" {
		return errors.New(errors.EmptySourceCode).WithDetail("field", "code")
	}
	return nil
}

// checkLanguage rejects languages the problem does not allow. A problem that
// cannot be read is only fatal when it does not exist.
func (c *Client) checkLanguage(ctx context.Context, in model.SubmitInput) error {
	if c.problems == nil {
		return nil
	}
	p, err := c.problems.GetProblem(ctx, in.ProblemID)
	if err != nil {
		if errors.KindOf(err) == errors.KindNotFound {
			return err
		}
		logger.Warn(ctx, "skipping language check", zap.String("problem_id", in.ProblemID.String()), zap.Error(err))
		return nil
	}
	if !p.AllowsLanguage(in.Language) {
		return errors.New(errors.LanguageNotSupported).
			WithDetail("field", "language").
			WithDetail("language", in.Language).
			WithDetail("allowed", p.AllowedLanguages)
	}
	return nil
}
