// Package multipart completes multipart uploads. Completion runs as a small
// state machine because the service may answer 200 OK with an error document
// in the body; such responses are retried according to a retry policy.
package multipart

import (
	"context"
	stderr "errors"
	"fmt"
	"log/slog"
	"sort"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/smithy-go"

	"github.com/objectfs/objclient/pkg/errors"
	"github.com/objectfs/objclient/pkg/retry"
)

// State is a completion state.
type State int

const (
	Pending State = iota
	Retrying
	Succeeded
	Failed
)

func (s State) String() string {
	switch s {
	case Pending:
		return "pending"
	case Retrying:
		return "retrying"
	case Succeeded:
		return "succeeded"
	case Failed:
		return "failed"
	default:
		return "unknown"
	}
}

// Terminal reports whether no transition leaves s.
func (s State) Terminal() bool {
	return s == Succeeded || s == Failed
}

// OutcomeKind discriminates the result of a single attempt.
type OutcomeKind int

const (
	OutcomeSucceeded OutcomeKind = iota + 1
	OutcomeRetryable
	OutcomeFailed
)

func (k OutcomeKind) String() string {
	switch k {
	case OutcomeSucceeded:
		return "succeeded"
	case OutcomeRetryable:
		return "retryable"
	case OutcomeFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Outcome is the result of one attempt: a Result on success, an error otherwise.
type Outcome struct {
	Kind   OutcomeKind
	Result *Result
	Err    error
}

// Request identifies the upload to complete. Resending it is idempotent:
// the upload id and part list fully determine the result.
type Request struct {
	Bucket   string
	Key      string
	UploadID string
	Parts    []types.CompletedPart
}

// Validate checks the request can be sent: parts present, ascending and unique.
func (r *Request) Validate() error {
	if r.Bucket == "" || r.Key == "" || r.UploadID == "" {
		return errors.NewError(errors.ErrCodeInvalidConfig, "bucket, key and upload id are required").
			WithComponent("multipart")
	}
	if len(r.Parts) == 0 {
		return errors.NewError(errors.ErrCodeInvalidConfig, "at least one part is required").
			WithComponent("multipart").
			WithContext("upload_id", r.UploadID)
	}
	prev := int32(0)
	for _, p := range r.Parts {
		n := aws.ToInt32(p.PartNumber)
		if n <= prev {
			return errors.Newf(errors.ErrCodeInvalidConfig, "parts must be in ascending order without duplicates (part %d)", n).
				WithComponent("multipart").
				WithContext("upload_id", r.UploadID)
		}
		if aws.ToString(p.ETag) == "" {
			return errors.Newf(errors.ErrCodeInvalidConfig, "part %d has no etag", n).
				WithComponent("multipart")
		}
		prev = n
	}
	return nil
}

// SortParts orders parts by part number in place.
func (r *Request) SortParts() {
	sort.Slice(r.Parts, func(i, j int) bool {
		return aws.ToInt32(r.Parts[i].PartNumber) < aws.ToInt32(r.Parts[j].PartNumber)
	})
}

// Response is the raw completion response. Body is inspected whatever the status.
type Response struct {
	StatusCode int
	Body       []byte
	RequestID  string
}

// Result is a successful completion.
type Result struct {
	Location  string
	Bucket    string
	Key       string
	ETag      string
	VersionID string
	RequestID string
}

// Transport sends one completion request.
type Transport interface {
	SendComplete(ctx context.Context, req *Request) (*Response, error)
}

// Decoder turns a response body into a Result, or into a smithy.APIError
// when the body is an error document.
type Decoder interface {
	DecodeComplete(resp *Response) (*Result, error)
}

// Observer is notified after every attempt.
type Observer interface {
	ObserveCompletionAttempt(attempt int, outcome OutcomeKind)
}

// RetryState counts attempts. Attempt never decreases and never exceeds MaxAttempts.
type RetryState struct {
	Attempt     int
	MaxAttempts int
	LastError   error
}

// Completer runs completion state machines.
type Completer struct {
	transport Transport
	decoder   Decoder
	policy    retry.Policy
	logger    *slog.Logger
	observer  Observer
}

// Option configures a Completer.
type Option func(*Completer)

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(c *Completer) {
		if l != nil {
			c.logger = l
		}
	}
}

// WithObserver sets the attempt observer.
func WithObserver(o Observer) Option {
	return func(c *Completer) { c.observer = o }
}

// NewCompleter creates a completer retrying embedded errors per policy.
func NewCompleter(t Transport, d Decoder, policy retry.Policy, opts ...Option) *Completer {
	c := &Completer{
		transport: t,
		decoder:   d,
		policy:    policy,
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Completion is one run of the state machine for a request.
type Completion struct {
	c       *Completer
	req     *Request
	state   State
	retry   RetryState
	last    Outcome
	history []State
}

// Begin starts a completion in the Pending state.
func (c *Completer) Begin(req *Request) *Completion {
	maxAttempts := 1
	if !c.policy.IsNoRetry() {
		maxAttempts += c.policy.MaxErrorRetry
	}
	return &Completion{
		c:       c,
		req:     req,
		state:   Pending,
		retry:   RetryState{MaxAttempts: maxAttempts},
		history: []State{Pending},
	}
}

// State returns the current state.
func (x *Completion) State() State { return x.state }

// RetryState returns the attempt bookkeeping.
func (x *Completion) RetryState() RetryState { return x.retry }

// History lists the states visited in order.
func (x *Completion) History() []State {
	return append([]State(nil), x.history...)
}

func (x *Completion) transition(s State) {
	x.state = s
	x.history = append(x.history, s)
}

// Step sends one attempt and moves the machine. Calling Step in a terminal
// state returns the final outcome again without sending anything.
func (x *Completion) Step(ctx context.Context) Outcome {
	if x.state.Terminal() {
		return x.last
	}
	if x.state == Retrying {
		x.transition(Pending)
	}

	x.retry.Attempt++
	out := x.attempt(ctx)
	x.last = out

	switch out.Kind {
	case OutcomeSucceeded:
		x.transition(Succeeded)
	case OutcomeRetryable:
		x.transition(Retrying)
	default:
		x.transition(Failed)
	}

	if x.c.observer != nil {
		x.c.observer.ObserveCompletionAttempt(x.retry.Attempt, out.Kind)
	}
	return out
}

func (x *Completion) attempt(ctx context.Context) Outcome {
	log := x.c.logger.With("bucket", x.req.Bucket, "key", x.req.Key, "upload_id", x.req.UploadID, "attempt", x.retry.Attempt)

	resp, err := x.c.transport.SendComplete(ctx, x.req)
	if err != nil {
		log.Error("complete multipart upload failed", "error", err)
		return Outcome{Kind: OutcomeFailed, Err: err}
	}

	result, err := x.c.decoder.DecodeComplete(resp)
	if err == nil {
		if result.RequestID == "" {
			result.RequestID = resp.RequestID
		}
		log.Debug("multipart upload completed", "etag", result.ETag)
		return Outcome{Kind: OutcomeSucceeded, Result: result}
	}

	var apiErr smithy.APIError
	if !stderr.As(err, &apiErr) || resp.StatusCode < 200 || resp.StatusCode > 299 {
		return Outcome{Kind: OutcomeFailed, Err: terminalError(resp, err)}
	}

	embedded := errors.Newf(errors.ErrCodeServiceTransient,
		"complete multipart upload returned an error document with status %d", resp.StatusCode).
		WithComponent("multipart").
		WithOperation("complete").
		WithRequestID(resp.RequestID).
		WithContext("error_code", apiErr.ErrorCode()).
		WithDetail("attempt", x.retry.Attempt).
		WithCause(err)
	x.retry.LastError = embedded

	retriesSoFar := x.retry.Attempt - 1
	if x.c.policy.IsNoRetry() || !x.c.policy.ShouldRetry(x.req, apiErr, retriesSoFar) {
		log.Warn("embedded completion error not retried", "code", apiErr.ErrorCode(), "message", apiErr.ErrorMessage())
		return Outcome{Kind: OutcomeFailed, Err: embedded}
	}

	log.Info("embedded completion error, retrying", "code", apiErr.ErrorCode(), "max_attempts", x.retry.MaxAttempts)
	return Outcome{Kind: OutcomeRetryable, Err: embedded}
}

func terminalError(resp *Response, err error) error {
	var ce *errors.ClientError
	if stderr.As(err, &ce) {
		return err
	}
	return errors.Newf(errors.ErrCodeServiceTerminal, "complete multipart upload failed with status %d", resp.StatusCode).
		WithComponent("multipart").
		WithOperation("complete").
		WithRequestID(resp.RequestID).
		WithDetail("status", resp.StatusCode).
		WithCause(err)
}

// Run drives the machine to a terminal state, waiting the policy's backoff
// between attempts. On failure the last error is returned.
func (x *Completion) Run(ctx context.Context) (*Result, error) {
	for {
		out := x.Step(ctx)
		switch out.Kind {
		case OutcomeSucceeded:
			return out.Result, nil
		case OutcomeFailed:
			return nil, out.Err
		}

		if err := retry.Sleep(ctx, x.c.policy.Delay(x.retry.Attempt-1)); err != nil {
			x.transition(Failed)
			x.last = Outcome{Kind: OutcomeFailed, Err: fmt.Errorf("%w (last error: %v)", err, x.retry.LastError)}
			return nil, x.last.Err
		}
	}
}

// Complete validates req and runs a completion to the end.
func (c *Completer) Complete(ctx context.Context, req *Request) (*Result, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	return c.Begin(req).Run(ctx)
}
