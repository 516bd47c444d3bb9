package handlers_test

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"testing"

	"github.com/serroba/online-compiler-go/internal/activity"
	"github.com/serroba/online-compiler-go/internal/apierr"
	"github.com/serroba/online-compiler-go/internal/handlers"
	"github.com/serroba/online-compiler-go/internal/judge"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type fakeJudge struct {
	submitted []judge.Submission
	result    judge.RawResult
	err       error
}

func (j *fakeJudge) Submit(_ context.Context, s judge.Submission) (judge.RawResult, error) {
	j.submitted = append(j.submitted, s)

	return j.result, j.err
}

func (j *fakeJudge) Get(_ context.Context, token string) (judge.RawResult, error) {
	if token == "" {
		return judge.RawResult{}, judge.ErrMissingToken
	}

	r := j.result
	r.Token = token

	return r, j.err
}

func (j *fakeJudge) Batch(_ context.Context, tokens []string) ([]judge.RawResult, error) {
	if len(tokens) == 0 {
		return nil, judge.ErrMissingTokens
	}

	if j.err != nil {
		return nil, j.err
	}

	out := make([]judge.RawResult, 0, len(tokens))
	for _, token := range tokens {
		r := j.result
		r.Token = token
		out = append(out, r)
	}

	return out, nil
}

func strptr(s string) *string { return &s }

func compileRequest(language, code string) *handlers.CompileRequest {
	req := &handlers.CompileRequest{}
	req.Body.Language = language
	req.Body.Code = code

	return req
}

func TestCompile(t *testing.T) {
	accepted := judge.RawResult{
		Stdout:     strptr("2\n"),
		Status:     &judge.Status{ID: judge.StatusAccepted, Description: "Accepted"},
		Time:       strptr("0.02"),
		LanguageID: 71,
	}

	t.Run("runs code and publishes an event", func(t *testing.T) {
		j := &fakeJudge{result: accepted}

		var events []*activity.CompileExecutedEvent

		h := handlers.NewCompileHandler(j, recordingPublish(&events), zap.NewNop())

		resp, err := h.Compile(asUser("u1", "ada@example.com"), compileRequest("Python", "print(1+1)"))
		require.NoError(t, err)

		assert.Equal(t, "2", resp.Body.Output)
		assert.Equal(t, "Accepted", resp.Body.Status)
		require.Len(t, j.submitted, 1)
		assert.Equal(t, 71, j.submitted[0].LanguageID)
		assert.Equal(t, judge.DefaultCPUTime, j.submitted[0].CPUTimeLimit)

		require.Len(t, events, 1)
		assert.Equal(t, "u1", events[0].UserID)
		assert.Equal(t, "python", events[0].Language)
		assert.Equal(t, "198.51.100.7", events[0].ClientIP)
		assert.Equal(t, len("print(1+1)"), events[0].CodeSize)
	})

	t.Run("publish failure does not fail the request", func(t *testing.T) {
		h := handlers.NewCompileHandler(&fakeJudge{result: accepted}, errorPublish[activity.CompileExecutedEvent](), zap.NewNop())

		_, err := h.Compile(context.Background(), compileRequest("python", "print(1)"))

		assert.NoError(t, err)
	})

	t.Run("requires language and code", func(t *testing.T) {
		h := handlers.NewCompileHandler(&fakeJudge{}, errorPublish[activity.CompileExecutedEvent](), zap.NewNop())

		_, err := h.Compile(context.Background(), compileRequest("python", ""))

		assert.Equal(t, http.StatusBadRequest, statusOf(t, err))
		assert.EqualError(t, err, "Language and code are required")
	})

	t.Run("rejects languages the compiler does not run", func(t *testing.T) {
		j := &fakeJudge{}
		h := handlers.NewCompileHandler(j, errorPublish[activity.CompileExecutedEvent](), zap.NewNop())

		_, err := h.Compile(context.Background(), compileRequest("go", "package main"))

		assert.Equal(t, http.StatusBadRequest, statusOf(t, err))
		assert.EqualError(t, err, "Unsupported language. This compiler only supports: cpp, java, javascript, python")
		assert.Empty(t, j.submitted)
	})

	t.Run("rejects oversized code", func(t *testing.T) {
		h := handlers.NewCompileHandler(&fakeJudge{}, errorPublish[activity.CompileExecutedEvent](), zap.NewNop())

		_, err := h.Compile(context.Background(), compileRequest("cpp", strings.Repeat("x", judge.MaxCodeSize+1)))

		assert.Equal(t, http.StatusBadRequest, statusOf(t, err))
	})

	t.Run("passes the judge status through", func(t *testing.T) {
		j := &fakeJudge{err: &judge.UpstreamError{StatusCode: http.StatusTooManyRequests, Message: "quota exceeded"}}
		h := handlers.NewCompileHandler(j, errorPublish[activity.CompileExecutedEvent](), zap.NewNop())

		_, err := h.Compile(context.Background(), compileRequest("java", "class A {}"))

		assert.Equal(t, http.StatusTooManyRequests, statusOf(t, err))

		var apiErr *apierr.Error
		require.ErrorAs(t, err, &apiErr)
		assert.Equal(t, "Code execution failed", apiErr.Message)
		assert.Equal(t, "quota exceeded", apiErr.Detail)
	})

	t.Run("unreachable judge is a server error", func(t *testing.T) {
		j := &fakeJudge{err: errors.New("dial tcp: connection refused")}
		h := handlers.NewCompileHandler(j, errorPublish[activity.CompileExecutedEvent](), zap.NewNop())

		_, err := h.Compile(context.Background(), compileRequest("javascript", "1"))

		assert.Equal(t, http.StatusInternalServerError, statusOf(t, err))
	})
}

func TestSubmission(t *testing.T) {
	h := handlers.NewCompileHandler(&fakeJudge{result: judge.RawResult{
		Status: &judge.Status{ID: judge.StatusProcessing, Description: "Processing"},
	}}, errorPublish[activity.CompileExecutedEvent](), zap.NewNop())

	resp, err := h.Submission(context.Background(), &handlers.SubmissionRequest{Token: "abc"})
	require.NoError(t, err)
	assert.Equal(t, "abc", resp.Body.Token)
	assert.Equal(t, judge.StatusProcessing, resp.Body.StatusID)

	_, err = h.Submission(context.Background(), &handlers.SubmissionRequest{})
	assert.Equal(t, http.StatusBadRequest, statusOf(t, err))
}

func TestSubmissions(t *testing.T) {
	accepted := judge.RawResult{Status: &judge.Status{ID: judge.StatusAccepted, Description: "Accepted"}}

	t.Run("formats each result and counts accepted ones", func(t *testing.T) {
		h := handlers.NewCompileHandler(&fakeJudge{result: accepted}, errorPublish[activity.CompileExecutedEvent](), zap.NewNop())

		resp, err := h.Submissions(context.Background(), &handlers.SubmissionsRequest{Tokens: []string{"a", "b"}})
		require.NoError(t, err)

		assert.True(t, resp.Body.Success)
		assert.Equal(t, 2, resp.Body.Accepted)
		require.Len(t, resp.Body.Submissions, 2)
		assert.Equal(t, "a", resp.Body.Submissions[0].Token)
		assert.Equal(t, "Accepted", resp.Body.Submissions[1].Status)
	})

	t.Run("pending results are not accepted", func(t *testing.T) {
		h := handlers.NewCompileHandler(&fakeJudge{result: judge.RawResult{
			Status: &judge.Status{ID: judge.StatusProcessing, Description: "Processing"},
		}}, errorPublish[activity.CompileExecutedEvent](), zap.NewNop())

		resp, err := h.Submissions(context.Background(), &handlers.SubmissionsRequest{Tokens: []string{"a"}})
		require.NoError(t, err)
		assert.Zero(t, resp.Body.Accepted)
	})

	t.Run("requires tokens", func(t *testing.T) {
		h := handlers.NewCompileHandler(&fakeJudge{}, errorPublish[activity.CompileExecutedEvent](), zap.NewNop())

		_, err := h.Submissions(context.Background(), &handlers.SubmissionsRequest{})
		assert.Equal(t, http.StatusBadRequest, statusOf(t, err))
	})

	t.Run("judge failure surfaces as an upstream error", func(t *testing.T) {
		h := handlers.NewCompileHandler(&fakeJudge{err: &judge.UpstreamError{StatusCode: http.StatusBadGateway, Message: "down"}},
			errorPublish[activity.CompileExecutedEvent](), zap.NewNop())

		_, err := h.Submissions(context.Background(), &handlers.SubmissionsRequest{Tokens: []string{"a"}})
		assert.Equal(t, http.StatusBadGateway, statusOf(t, err))
	})
}

func TestLanguages(t *testing.T) {
	h := handlers.NewCompileHandler(&fakeJudge{}, errorPublish[activity.CompileExecutedEvent](), zap.NewNop())

	resp, err := h.Languages(context.Background(), nil)

	require.NoError(t, err)
	assert.Len(t, resp.Body.Languages, len(judge.Languages))
	assert.Equal(t, judge.Compilable, resp.Body.Compilable)
}
