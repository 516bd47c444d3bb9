package judge

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"slices"
	"strconv"
	"strings"
	"time"
)

const (
	DefaultBaseURL = "https://judge0-ce.p.rapidapi.com"
	DefaultTimeout = 30 * time.Second

	MaxCodeSize        = 500_000
	DefaultCPUTime     = 5
	DefaultMemoryLimit = 262144

	rapidAPIHost = "judge0-ce.p.rapidapi.com"
)

var (
	ErrMissingInput   = errors.New("language and code are required")
	ErrCodeTooLarge   = errors.New("code size exceeds maximum limit (500KB)")
	ErrUnknownLang    = errors.New("unsupported language")
	ErrMissingTokens  = errors.New("at least one submission token is required")
	ErrMissingToken   = errors.New("submission token is required")
	errEmptyUpstream  = errors.New("empty response from judge")
	errUnexpectedBody = errors.New("unexpected judge response")
)

// Languages maps language names to judge language ids.
var Languages = map[string]int{
	"javascript": 63,
	"python":     71,
	"java":       62,
	"cpp":        54,
	"c":          50,
	"csharp":     51,
	"go":         60,
	"rust":       73,
	"php":        68,
	"ruby":       72,
	"swift":      83,
	"kotlin":     78,
	"typescript": 74,
	"scala":      81,
}

// Compilable lists the languages the compile endpoint accepts.
var Compilable = []string{"cpp", "java", "javascript", "python"}

// Status ids reported by the judge.
const (
	StatusInQueue = iota + 1
	StatusProcessing
	StatusAccepted
	StatusWrongAnswer
	StatusTimeLimitExceeded
	StatusCompilationError
	StatusRuntimeError
	StatusInternalError
	StatusExecFormatError
)

var statusDescriptions = map[int]string{
	StatusInQueue:           "In Queue",
	StatusProcessing:        "Processing",
	StatusAccepted:          "Accepted",
	StatusWrongAnswer:       "Wrong Answer",
	StatusTimeLimitExceeded: "Time Limit Exceeded",
	StatusCompilationError:  "Compilation Error",
	StatusRuntimeError:      "Runtime Error",
	StatusInternalError:     "Internal Error",
	StatusExecFormatError:   "Exec Format Error",
}

// StatusDescription returns the human name of a status id.
func StatusDescription(id int) string {
	if d, ok := statusDescriptions[id]; ok {
		return d
	}

	return "Unknown Status"
}

// LanguageID returns the judge id for name, case-insensitively.
func LanguageID(name string) (int, bool) {
	id, ok := Languages[strings.ToLower(name)]

	return id, ok
}

// LanguageName returns the language name for a judge id, or "" if unknown.
func LanguageName(id int) string {
	for name, lid := range Languages {
		if lid == id {
			return name
		}
	}

	return ""
}

// Language is one entry of the supported language list.
type Language struct {
	Name string `json:"name" doc:"Language name"`
	ID   int    `json:"id" doc:"Judge language id"`
}

// SupportedLanguages lists every known language ordered by name.
func SupportedLanguages() []Language {
	out := make([]Language, 0, len(Languages))
	for name, id := range Languages {
		out = append(out, Language{Name: name, ID: id})
	}

	slices.SortFunc(out, func(a, b Language) int { return strings.Compare(a.Name, b.Name) })

	return out
}

// Submission is the payload sent to the judge.
type Submission struct {
	LanguageID   int    `json:"language_id"`
	SourceCode   string `json:"source_code"`
	Stdin        string `json:"stdin"`
	CPUTimeLimit int    `json:"cpu_time_limit"`
	MemoryLimit  int    `json:"memory_limit"`
}

// NewSubmission validates the input and fills in default limits.
func NewSubmission(language, code, input string) (Submission, error) {
	if language == "" || code == "" {
		return Submission{}, ErrMissingInput
	}

	if len(code) > MaxCodeSize {
		return Submission{}, ErrCodeTooLarge
	}

	id, ok := LanguageID(language)
	if !ok {
		return Submission{}, fmt.Errorf("%w: %s", ErrUnknownLang, language)
	}

	return Submission{
		LanguageID:   id,
		SourceCode:   code,
		Stdin:        input,
		CPUTimeLimit: DefaultCPUTime,
		MemoryLimit:  DefaultMemoryLimit,
	}, nil
}

// Status is the judge's verdict.
type Status struct {
	ID          int    `json:"id"`
	Description string `json:"description"`
}

// RawResult is a submission result as the judge returns it.
type RawResult struct {
	Token         string  `json:"token"`
	Stdout        *string `json:"stdout"`
	Stderr        *string `json:"stderr"`
	CompileOutput *string `json:"compile_output"`
	Message       *string `json:"message"`
	Status        *Status `json:"status"`
	Time          *string `json:"time"`
	Memory        *int64  `json:"memory"`
	LanguageID    int     `json:"language_id"`
	ExitCode      *int    `json:"exit_code"`
	Signal        *int    `json:"signal"`
}

// Result is the client-facing shape of an execution.
type Result struct {
	Output        string  `json:"output" doc:"Trimmed standard output"`
	Error         string  `json:"error" doc:"Standard error or compiler output"`
	Status        string  `json:"status" doc:"Verdict description"`
	ExecutionTime float64 `json:"executionTime" doc:"CPU time in seconds"`
	MemoryUsed    int64   `json:"memoryUsed" doc:"Memory in KB"`
	Language      string  `json:"language,omitempty" doc:"Language name"`
	StatusID      int     `json:"statusId,omitempty" doc:"Verdict id"`
	ExitCode      *int    `json:"exitCode" doc:"Process exit code"`
	Signal        *int    `json:"signal" doc:"Terminating signal"`
	Token         string  `json:"token,omitempty" doc:"Submission token"`
}

// Format converts a raw judge result into a Result.
func Format(r RawResult) Result {
	out := Result{
		Status:   "Unknown",
		Language: LanguageName(r.LanguageID),
		ExitCode: r.ExitCode,
		Signal:   r.Signal,
		Token:    r.Token,
	}

	if r.Stdout != nil {
		out.Output = strings.TrimSpace(*r.Stdout)
	}

	switch {
	case r.Stderr != nil && *r.Stderr != "":
		out.Error = *r.Stderr
	case r.CompileOutput != nil:
		out.Error = *r.CompileOutput
	}

	if r.Status != nil {
		out.StatusID = r.Status.ID
		if r.Status.Description != "" {
			out.Status = r.Status.Description
		}
	}

	if r.Time != nil {
		if t, err := strconv.ParseFloat(*r.Time, 64); err == nil {
			out.ExecutionTime = t
		}
	}

	if r.Memory != nil {
		out.MemoryUsed = *r.Memory
	}

	return out
}

// Succeeded reports whether the program was accepted.
func (r RawResult) Succeeded() bool {
	return r.Status != nil && r.Status.ID == StatusAccepted
}

// UpstreamError is a non-2xx answer from the judge.
type UpstreamError struct {
	StatusCode int
	Message    string
}

func (e *UpstreamError) Error() string {
	return fmt.Sprintf("judge returned %d: %s", e.StatusCode, e.Message)
}

// Observer records judge calls. status is 0 when the judge was unreachable.
type Observer interface {
	ObserveJudge(operation string, status int, elapsed time.Duration)
}

type noopObserver struct{}

func (noopObserver) ObserveJudge(string, int, time.Duration) {}

// Client talks to a Judge0-compatible HTTP API.
type Client struct {
	baseURL  string
	apiKey   string
	http     *http.Client
	observer Observer
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the underlying HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		c.http = hc
	}
}

// WithObserver reports every call to o.
func WithObserver(o Observer) Option {
	return func(c *Client) {
		if o != nil {
			c.observer = o
		}
	}
}

// NewClient creates a judge client. An empty baseURL uses DefaultBaseURL.
func NewClient(baseURL, apiKey string, timeout time.Duration, opts ...Option) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}

	if timeout <= 0 {
		timeout = DefaultTimeout
	}

	c := &Client{
		baseURL:  strings.TrimRight(baseURL, "/"),
		apiKey:   apiKey,
		http:     &http.Client{Timeout: timeout},
		observer: noopObserver{},
	}

	for _, opt := range opts {
		opt(c)
	}

	return c
}

// Submit runs a submission and waits for its result.
func (c *Client) Submit(ctx context.Context, s Submission) (RawResult, error) {
	q := url.Values{"base64_encoded": {"false"}, "wait": {"true"}}

	var out RawResult
	if err := c.do(ctx, "submit", http.MethodPost, "/submissions", q, s, &out); err != nil {
		return RawResult{}, err
	}

	if out.LanguageID == 0 {
		out.LanguageID = s.LanguageID
	}

	return out, nil
}

// Get fetches the result of a submission by token.
func (c *Client) Get(ctx context.Context, token string) (RawResult, error) {
	if token == "" {
		return RawResult{}, ErrMissingToken
	}

	var out RawResult
	err := c.do(ctx, "get", http.MethodGet, "/submissions/"+url.PathEscape(token),
		url.Values{"base64_encoded": {"false"}}, nil, &out)

	return out, err
}

// Batch fetches several submissions at once.
func (c *Client) Batch(ctx context.Context, tokens []string) ([]RawResult, error) {
	if len(tokens) == 0 {
		return nil, ErrMissingTokens
	}

	var out struct {
		Submissions []RawResult `json:"submissions"`
	}

	q := url.Values{"tokens": {strings.Join(tokens, ",")}, "base64_encoded": {"false"}}
	if err := c.do(ctx, "batch", http.MethodGet, "/submissions/batch", q, nil, &out); err != nil {
		return nil, err
	}

	return out.Submissions, nil
}

func (c *Client) do(ctx context.Context, op, method, path string, query url.Values, body, out any) error {
	var reader io.Reader

	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode judge request: %w", err)
		}

		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path+"?"+query.Encode(), reader)
	if err != nil {
		return fmt.Errorf("build judge request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	if c.apiKey != "" {
		req.Header.Set("X-RapidAPI-Key", c.apiKey)
		req.Header.Set("X-RapidAPI-Host", rapidAPIHost)
	}

	start := time.Now()

	resp, err := c.http.Do(req)
	if err != nil {
		c.observer.ObserveJudge(op, 0, time.Since(start))

		return fmt.Errorf("judge request: %w", err)
	}
	defer resp.Body.Close()

	c.observer.ObserveJudge(op, resp.StatusCode, time.Since(start))

	data, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return fmt.Errorf("read judge response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return &UpstreamError{StatusCode: resp.StatusCode, Message: upstreamMessage(data, resp.Status)}
	}

	if len(bytes.TrimSpace(data)) == 0 {
		return errEmptyUpstream
	}

	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("%w: %w", errUnexpectedBody, err)
	}

	return nil
}

func upstreamMessage(data []byte, fallback string) string {
	var body struct {
		Message string `json:"message"`
		Error   string `json:"error"`
	}

	if json.Unmarshal(data, &body) == nil {
		if body.Message != "" {
			return body.Message
		}

		if body.Error != "" {
			return body.Error
		}
	}

	if s := strings.TrimSpace(string(data)); s != "" {
		return s
	}

	return fallback
}
