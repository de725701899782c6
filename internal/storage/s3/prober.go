package s3

import (
	"context"
	stderr "errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/objectfs/objclient/internal/addressing"
	"github.com/objectfs/objclient/internal/circuit"
	"github.com/objectfs/objclient/pkg/errors"
)

const headerBucketRegion = "X-Amz-Bucket-Region"

// RegionProber discovers the region a bucket lives in.
type RegionProber interface {
	ProbeRegion(ctx context.Context, endpoint *url.URL, bucket string) (string, error)
}

// HeaderRegionProber sends an anonymous HEAD for the bucket and reads the
// region header. The service sets it on redirects and access errors too, so
// any status is accepted as long as the header is present.
type HeaderRegionProber struct {
	Executor       Executor
	PathStyleForce bool
}

// ProbeRegion implements RegionProber.
func (p *HeaderRegionProber) ProbeRegion(ctx context.Context, endpoint *url.URL, bucket string) (string, error) {
	res, err := addressing.Resolve(endpoint, bucket, "", p.PathStyleForce)
	if err != nil {
		return "", err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodHead, res.URL().String(), http.NoBody)
	if err != nil {
		return "", probeError(bucket, err)
	}
	resp, err := p.Executor.Do(ctx, req)
	if err != nil {
		return "", probeError(bucket, err)
	}
	defer resp.Body.Close()

	region := resp.Header.Get(headerBucketRegion)
	if region == "" {
		return "", errors.Newf(errors.ErrCodeRegionProbe, "no region header for bucket %q (status %d)", bucket, resp.StatusCode).
			WithComponent("s3").
			WithContext("bucket", bucket).
			WithRequestID(resp.Header.Get(headerRequestID))
	}
	return region, nil
}

// AWSRegionProber resolves the region through the SDK's bucket region helper.
type AWSRegionProber struct {
	client *s3.Client
}

// NewAWSRegionProber builds a prober from the default credential chain, or
// from static credentials when cfg carries keys.
func NewAWSRegionProber(ctx context.Context, cfg *Config) (*AWSRegionProber, error) {
	opts := []func(*config.LoadOptions) error{
		config.WithRegion(firstNonEmptyString(cfg.Region, "us-east-1")),
	}
	if cfg.AccessKeyID != "" {
		opts = append(opts, config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, cfg.SessionToken)))
	}
	awsCfg, err := config.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, errors.NewError(errors.ErrCodeConfigLoad, "failed to load AWS config").
			WithComponent("s3").
			WithCause(err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" && !isAmazonHost(cfg.Endpoint) {
			o.BaseEndpoint = aws.String(endpointURL(cfg))
		}
		o.UsePathStyle = cfg.ForcePathStyle
	})
	return &AWSRegionProber{client: client}, nil
}

// ProbeRegion implements RegionProber.
func (p *AWSRegionProber) ProbeRegion(ctx context.Context, _ *url.URL, bucket string) (string, error) {
	region, err := manager.GetBucketRegion(ctx, p.client, bucket)
	if err != nil {
		return "", probeError(bucket, err)
	}
	return region, nil
}

// GuardedProber stops probing an endpoint that keeps failing.
type GuardedProber struct {
	inner    RegionProber
	breakers *circuit.Set
	timeout  time.Duration
	logger   *slog.Logger
}

// NewGuardedProber wraps inner with one breaker per endpoint host.
func NewGuardedProber(inner RegionProber, cfg circuit.Config, timeout time.Duration, logger *slog.Logger) *GuardedProber {
	if logger == nil {
		logger = slog.Default()
	}
	g := &GuardedProber{inner: inner, timeout: timeout, logger: logger}
	g.breakers = circuit.NewSet(cfg, circuit.WithStateChange(func(name string, from, to circuit.State) {
		logger.Warn("region probe breaker changed state", "endpoint", name, "from", from.String(), "to", to.String())
	}))
	return g
}

// ProbeRegion implements RegionProber.
func (g *GuardedProber) ProbeRegion(ctx context.Context, endpoint *url.URL, bucket string) (string, error) {
	var region string
	err := g.breakers.Get(endpoint.Host).Do(ctx, func(ctx context.Context) error {
		if g.timeout > 0 {
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(ctx, g.timeout)
			defer cancel()
		}
		var err error
		region, err = g.inner.ProbeRegion(ctx, endpoint, bucket)
		return err
	})
	if stderr.Is(err, circuit.ErrOpen) || stderr.Is(err, circuit.ErrTooManyTrials) {
		return "", probeError(bucket, err)
	}
	return region, err
}

// Breakers exposes breaker states by endpoint host.
func (g *GuardedProber) Breakers() map[string]circuit.State {
	return g.breakers.States()
}

func probeError(bucket string, err error) error {
	var ce *errors.ClientError
	if stderr.As(err, &ce) {
		return err
	}
	return errors.NewError(errors.ErrCodeRegionProbe, fmt.Sprintf("region probe for bucket %q failed", bucket)).
		WithComponent("s3").
		WithContext("bucket", bucket).
		WithCause(err)
}

func firstNonEmptyString(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
