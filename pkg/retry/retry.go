// Package retry provides retry policies with exponential backoff for objclient operations
package retry

import (
	"context"
	stderr "errors"
	"fmt"
	"math"
	"math/rand"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsretry "github.com/aws/aws-sdk-go-v2/aws/retry"
	"github.com/aws/smithy-go"

	"github.com/objectfs/objclient/pkg/errors"
)

// Condition decides whether a failed request may be resent. It receives the
// original request, the error and the number of retries already performed.
type Condition func(req interface{}, err error, retriesAttempted int) bool

// Backoff returns the delay before the next attempt.
type Backoff func(retriesAttempted int) time.Duration

// Policy bundles a retry condition, a backoff strategy and an upper bound on retries.
type Policy struct {
	Name          string
	Condition     Condition
	Backoff       Backoff
	MaxErrorRetry int
}

// NoRetry never permits another attempt.
var NoRetry = Policy{Name: "no-retry"}

// IsNoRetry reports whether p is the no-retry policy.
func (p Policy) IsNoRetry() bool {
	return p.Name == NoRetry.Name || p.Condition == nil || p.MaxErrorRetry <= 0
}

// ShouldRetry reports whether the policy permits another attempt after
// retriesAttempted retries have already been made.
func (p Policy) ShouldRetry(req interface{}, err error, retriesAttempted int) bool {
	if p.IsNoRetry() {
		return false
	}
	if retriesAttempted >= p.MaxErrorRetry {
		return false
	}
	return p.Condition(req, err, retriesAttempted)
}

// Delay returns the backoff delay for the given retry, zero when no backoff is configured.
func (p Policy) Delay(retriesAttempted int) time.Duration {
	if p.Backoff == nil {
		return 0
	}
	return p.Backoff(retriesAttempted)
}

// Config defines exponential backoff behavior
type Config struct {
	// MaxErrorRetry is the maximum number of retries (excluding the initial attempt)
	MaxErrorRetry int `yaml:"max_error_retry" json:"max_error_retry"`

	// InitialDelay is the delay before the first retry
	InitialDelay time.Duration `yaml:"initial_delay" json:"initial_delay"`

	// MaxDelay is the maximum delay between retries
	MaxDelay time.Duration `yaml:"max_delay" json:"max_delay"`

	// Multiplier is the factor by which delay increases after each retry
	Multiplier float64 `yaml:"multiplier" json:"multiplier"`

	// Jitter adds randomness to delay to prevent thundering herd
	Jitter bool `yaml:"jitter" json:"jitter"`

	// Source selects the backoff implementation: SourceBuiltin or SourceAWS.
	Source string `yaml:"source" json:"source"`
}

// Backoff sources accepted in Config.Source.
const (
	SourceBuiltin = "builtin"
	SourceAWS     = "aws"
)

// DefaultConfig returns a sensible default retry configuration
func DefaultConfig() Config {
	return Config{
		MaxErrorRetry: 3,
		InitialDelay:  100 * time.Millisecond,
		MaxDelay:      20 * time.Second,
		Multiplier:    2.0,
		Jitter:        true,
		Source:        SourceBuiltin,
	}
}

// ExponentialBackoff builds a Backoff from cfg: initialDelay * multiplier^retries, capped and jittered.
func ExponentialBackoff(cfg Config) Backoff {
	if cfg.InitialDelay <= 0 {
		cfg.InitialDelay = 100 * time.Millisecond
	}
	if cfg.MaxDelay <= 0 {
		cfg.MaxDelay = 20 * time.Second
	}
	if cfg.Multiplier <= 0 {
		cfg.Multiplier = 2.0
	}

	return func(retriesAttempted int) time.Duration {
		delay := float64(cfg.InitialDelay) * math.Pow(cfg.Multiplier, float64(retriesAttempted))

		if delay > float64(cfg.MaxDelay) {
			delay = float64(cfg.MaxDelay)
		}

		// ±20%
		if cfg.Jitter {
			delay += delay * 0.2 * (rand.Float64()*2 - 1)
		}

		return time.Duration(delay)
	}
}

const (
	completionErrorCode    = "InternalError"
	completionErrorMessage = "Please try again."
)

// CompletionCondition matches the transient failure the service reports
// inside an otherwise successful multipart completion response.
func CompletionCondition(_ interface{}, err error, _ int) bool {
	var apiErr smithy.APIError
	if !stderr.As(err, &apiErr) {
		return false
	}
	return apiErr.ErrorCode() == completionErrorCode &&
		strings.Contains(apiErr.ErrorMessage(), completionErrorMessage)
}

// CompletionPolicy returns the multipart completion policy described by
// cfg. With SourceAWS the SDK's standard retryer supplies the attempt bound
// and backoff, capped by cfg.MaxDelay.
func CompletionPolicy(cfg Config) (Policy, error) {
	const name = "complete-multipart-upload"
	switch strings.ToLower(cfg.Source) {
	case "", SourceBuiltin:
		return NewPolicy(name, CompletionCondition, cfg), nil
	case SourceAWS:
		if cfg.MaxErrorRetry < 0 {
			cfg.MaxErrorRetry = 0
		}
		standard := awsretry.NewStandard(func(o *awsretry.StandardOptions) {
			o.MaxAttempts = cfg.MaxErrorRetry + 1
			if cfg.MaxDelay > 0 {
				o.MaxBackoff = cfg.MaxDelay
				o.Backoff = awsretry.NewExponentialJitterBackoff(cfg.MaxDelay)
			}
		})
		p := FromAWSRetryer(standard, CompletionCondition)
		p.Name = name
		return p, nil
	default:
		return Policy{}, errors.Newf(errors.ErrCodeConfigValidation, "unknown retry source %q", cfg.Source).
			WithComponent("retry")
	}
}

// NewPolicy returns a policy with exponential backoff built from cfg.
func NewPolicy(name string, cond Condition, cfg Config) Policy {
	if cfg.MaxErrorRetry < 0 {
		cfg.MaxErrorRetry = 0
	}
	return Policy{
		Name:          name,
		Condition:     cond,
		Backoff:       ExponentialBackoff(cfg),
		MaxErrorRetry: cfg.MaxErrorRetry,
	}
}

// FromAWSRetryer adapts an aws-sdk-go-v2 retryer. The retryer's own
// classification is consulted in addition to cond.
func FromAWSRetryer(r aws.Retryer, cond Condition) Policy {
	maxRetry := r.MaxAttempts() - 1
	if maxRetry < 0 {
		maxRetry = 0
	}
	return Policy{
		Name: "aws-retryer",
		Condition: func(req interface{}, err error, n int) bool {
			if cond != nil && cond(req, err, n) {
				return true
			}
			return r.IsErrorRetryable(err)
		},
		Backoff: func(n int) time.Duration {
			d, err := r.RetryDelay(n+1, nil)
			if err != nil {
				return 0
			}
			return d
		},
		MaxErrorRetry: maxRetry,
	}
}

// Sleep waits for d or until ctx is done.
func Sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return fmt.Errorf("retry wait canceled: %w", ctx.Err())
	case <-timer.C:
		return nil
	}
}
