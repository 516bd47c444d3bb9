package handlers

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"slices"
	"strings"
	"time"

	"github.com/serroba/online-compiler-go/internal/activity"
	"github.com/serroba/online-compiler-go/internal/apierr"
	"github.com/serroba/online-compiler-go/internal/judge"
	"github.com/serroba/online-compiler-go/internal/messaging"
	"github.com/serroba/online-compiler-go/internal/session"
	"go.uber.org/zap"
)

// Judge runs submissions remotely.
type Judge interface {
	Submit(ctx context.Context, s judge.Submission) (judge.RawResult, error)
	Get(ctx context.Context, token string) (judge.RawResult, error)
	Batch(ctx context.Context, tokens []string) ([]judge.RawResult, error)
}

// CompileHandler proxies code execution to the judge.
type CompileHandler struct {
	judge   Judge
	publish messaging.Publish[activity.CompileExecutedEvent]
	logger  *zap.Logger
}

// NewCompileHandler creates a new compile handler.
func NewCompileHandler(
	j Judge,
	publish messaging.Publish[activity.CompileExecutedEvent],
	logger *zap.Logger,
) *CompileHandler {
	return &CompileHandler{judge: j, publish: publish, logger: logger}
}

func (h *CompileHandler) Compile(ctx context.Context, req *CompileRequest) (*CompileResponse, error) {
	if req.Body.Language == "" || req.Body.Code == "" {
		return nil, apierr.BadRequest("Language and code are required")
	}

	language := strings.ToLower(req.Body.Language)
	if !slices.Contains(judge.Compilable, language) {
		return nil, apierr.BadRequest(fmt.Sprintf(
			"Unsupported language. This compiler only supports: %s", strings.Join(judge.Compilable, ", ")))
	}

	submission, err := judge.NewSubmission(language, req.Body.Code, req.Body.Input)

	switch {
	case errors.Is(err, judge.ErrCodeTooLarge):
		return nil, apierr.BadRequest("Code size exceeds maximum limit (500KB)")
	case err != nil:
		h.logger.Error("compilable language missing from judge map", zap.String("language", language))

		return nil, apierr.Internal("Internal server configuration error.")
	}

	raw, err := h.judge.Submit(ctx, submission)
	if err != nil {
		return nil, h.upstreamError(err)
	}

	result := judge.Format(raw)
	h.publishExecuted(ctx, result, len(req.Body.Code))

	return &CompileResponse{Body: result}, nil
}

func (h *CompileHandler) Submission(ctx context.Context, req *SubmissionRequest) (*CompileResponse, error) {
	raw, err := h.judge.Get(ctx, req.Token)
	if err != nil {
		if errors.Is(err, judge.ErrMissingToken) {
			return nil, apierr.BadRequest("Submission token is required")
		}

		return nil, h.upstreamError(err)
	}

	return &CompileResponse{Body: judge.Format(raw)}, nil
}

func (h *CompileHandler) Submissions(ctx context.Context, req *SubmissionsRequest) (*SubmissionsResponse, error) {
	raws, err := h.judge.Batch(ctx, req.Tokens)
	if err != nil {
		if errors.Is(err, judge.ErrMissingTokens) {
			return nil, apierr.BadRequest("At least one submission token is required")
		}

		return nil, h.upstreamError(err)
	}

	resp := &SubmissionsResponse{}
	resp.Body.Success = true
	resp.Body.Submissions = make([]judge.Result, 0, len(raws))

	for _, raw := range raws {
		if raw.Succeeded() {
			resp.Body.Accepted++
		}

		resp.Body.Submissions = append(resp.Body.Submissions, judge.Format(raw))
	}

	return resp, nil
}

func (h *CompileHandler) Languages(_ context.Context, _ *struct{}) (*LanguagesResponse, error) {
	resp := &LanguagesResponse{}
	resp.Body.Success = true
	resp.Body.Languages = judge.SupportedLanguages()
	resp.Body.Compilable = slices.Clone(judge.Compilable)

	return resp, nil
}

func (h *CompileHandler) upstreamError(err error) error {
	h.logger.Error("judge request failed", zap.Error(err))

	var upstream *judge.UpstreamError
	if errors.As(err, &upstream) {
		status := upstream.StatusCode
		if status < http.StatusBadRequest {
			status = http.StatusInternalServerError
		}

		return apierr.WithDetail(status, "Code execution failed", upstream.Message)
	}

	return apierr.WithDetail(http.StatusInternalServerError, "Code execution failed", err.Error())
}

func (h *CompileHandler) publishExecuted(ctx context.Context, result judge.Result, codeSize int) {
	subject, _ := session.SubjectFromContext(ctx)
	meta := RequestMetaFromContext(ctx)

	event := &activity.CompileExecutedEvent{
		UserID:        subject.ID,
		Language:      result.Language,
		StatusID:      result.StatusID,
		Status:        result.Status,
		ExecutionTime: result.ExecutionTime,
		CodeSize:      codeSize,
		ClientIP:      meta.ClientIP,
		ExecutedAt:    time.Now().UTC(),
	}

	if err := h.publish(ctx, event); err != nil {
		h.logger.Error("failed to publish compile event",
			zap.String("language", event.Language),
			zap.Error(err),
		)
	}
}
