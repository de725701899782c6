package s3

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	stderr "errors"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/google/uuid"

	"github.com/objectfs/objclient/internal/addressing"
	"github.com/objectfs/objclient/internal/cache"
	"github.com/objectfs/objclient/internal/integrity"
	"github.com/objectfs/objclient/internal/multipart"
	"github.com/objectfs/objclient/internal/progress"
	"github.com/objectfs/objclient/internal/signing"
	"github.com/objectfs/objclient/pkg/errors"
	"github.com/objectfs/objclient/pkg/retry"
)

const userAgent = "objclient/1.0"

// Recorder receives client metrics.
type Recorder interface {
	RecordRequest(operation string, duration time.Duration, err error)
	RecordBytes(operation string, n int64)
	RecordSignerSelection(step string, kind signing.Kind)
	RecordRegionProbe(err error)
	RecordIntegrityFailure(operation string)
}

type nopRecorder struct{}

func (nopRecorder) RecordRequest(string, time.Duration, error) {}
func (nopRecorder) RecordBytes(string, int64)                  {}
func (nopRecorder) RecordSignerSelection(string, signing.Kind) {}
func (nopRecorder) RecordRegionProbe(error)                    {}
func (nopRecorder) RecordIntegrityFailure(string)              {}

// Client talks to an S3 compatible service. It resolves addressing, picks
// the signer per request, discovers bucket regions and checks transfer
// integrity. Client is safe for concurrent use.
type Client struct {
	cfg      *Config
	endpoint *url.URL
	exec     Executor
	regions  *cache.RegionCache
	prober   RegionProber
	creds    aws.CredentialsProvider
	policy   *retry.Policy
	logger   *slog.Logger
	metrics  Recorder
	now      func() time.Time

	completer *multipart.Completer

	mu             sync.RWMutex
	clientRegion   string
	signerOverride signing.Kind
	signerRegion   string
	defaultKind    signing.Kind
}

// Option configures a Client.
type Option func(*Client)

// WithExecutor replaces the HTTP executor.
func WithExecutor(e Executor) Option {
	return func(c *Client) { c.exec = e }
}

// WithRegionCache shares a region cache between clients.
func WithRegionCache(rc *cache.RegionCache) Option {
	return func(c *Client) { c.regions = rc }
}

// WithProber replaces the region prober.
func WithProber(p RegionProber) Option {
	return func(c *Client) { c.prober = p }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(c *Client) {
		if l != nil {
			c.logger = l
		}
	}
}

// WithMetrics sets the metrics recorder. When it also implements
// multipart.Observer, completion attempts are reported to it.
func WithMetrics(r Recorder) Option {
	return func(c *Client) {
		if r != nil {
			c.metrics = r
		}
	}
}

// WithCredentials sets the credentials provider.
func WithCredentials(p aws.CredentialsProvider) Option {
	return func(c *Client) { c.creds = p }
}

// WithCompletionPolicy replaces the multipart completion retry policy.
func WithCompletionPolicy(p retry.Policy) Option {
	return func(c *Client) { c.policy = &p }
}

// WithClock replaces time.Now for signing.
func WithClock(now func() time.Time) Option {
	return func(c *Client) { c.now = now }
}

// NewClient creates a client from cfg.
func NewClient(cfg *Config, opts ...Option) (*Client, error) {
	if cfg == nil {
		cfg = NewDefaultConfig()
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	endpoint, err := addressing.ParseEndpoint(cfg.Endpoint, !cfg.DisableSSL)
	if err != nil {
		return nil, err
	}
	override, _ := signing.ParseKind(cfg.Signer)
	defaultKind, _ := signing.ParseKind(cfg.DefaultSigner)

	c := &Client{
		cfg:            cfg,
		endpoint:       endpoint,
		logger:         slog.Default(),
		metrics:        nopRecorder{},
		now:            time.Now,
		clientRegion:   cfg.Region,
		signerOverride: override,
		signerRegion:   cfg.SignerRegion,
		defaultKind:    defaultKind,
	}
	if cfg.AccessKeyID != "" {
		c.creds = aws.NewCredentialsCache(
			credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, cfg.SessionToken))
	}
	for _, opt := range opts {
		opt(c)
	}

	if c.exec == nil {
		c.exec = NewHTTPExecutor(cfg)
	}
	if c.regions == nil {
		logger := c.logger
		c.regions, err = cache.NewRegionCache(cfg.RegionCacheSize, cache.WithEvictHook(func(bucket, region string) {
			logger.Debug("bucket region evicted", "bucket", bucket, "region", region)
		}))
		if err != nil {
			return nil, err
		}
	}
	if c.prober == nil {
		if c.prober, err = c.defaultProber(); err != nil {
			return nil, err
		}
	}

	var policy retry.Policy
	if c.policy != nil {
		policy = *c.policy
	} else if policy, err = retry.CompletionPolicy(cfg.CompletionRetry); err != nil {
		return nil, err
	}
	completerOpts := []multipart.Option{multipart.WithLogger(c.logger)}
	if obs, ok := c.metrics.(multipart.Observer); ok {
		completerOpts = append(completerOpts, multipart.WithObserver(obs))
	}
	c.completer = multipart.NewCompleter(c, xmlCodec{}, policy, completerOpts...)

	c.logger.Debug("client created",
		"endpoint", endpoint.String(),
		"region", cfg.Region,
		"signer", override.String(),
		"path_style", cfg.ForcePathStyle,
		"accelerate", cfg.UseAccelerate)
	return c, nil
}

func (c *Client) defaultProber() (RegionProber, error) {
	var inner RegionProber
	switch c.cfg.RegionProber {
	case ProberNone:
		return nil, nil
	case ProberAWS:
		p, err := NewAWSRegionProber(context.Background(), c.cfg)
		if err != nil {
			return nil, err
		}
		inner = p
	default:
		inner = &HeaderRegionProber{Executor: c.exec, PathStyleForce: c.cfg.ForcePathStyle}
	}
	return NewGuardedProber(inner, c.cfg.ProbeBreaker, c.cfg.ProbeTimeout, c.logger), nil
}

// Region returns the configured client region.
func (c *Client) Region() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.clientRegion
}

// SetRegion changes the client region used for signing.
func (c *Client) SetRegion(region string) {
	c.mu.Lock()
	c.clientRegion = region
	c.mu.Unlock()
}

// SetSignerOverride forces a signing scheme, optionally with a region.
// KindNone clears the override.
func (c *Client) SetSignerOverride(kind signing.Kind, region string) {
	c.mu.Lock()
	c.signerOverride = kind
	c.signerRegion = region
	c.mu.Unlock()
}

// RegionCache returns the bucket region cache.
func (c *Client) RegionCache() *cache.RegionCache {
	return c.regions
}

func (c *Client) signingState() signing.State {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return signing.State{
		SignerOverride: c.signerOverride,
		RegionOverride: c.signerRegion,
		ClientRegion:   c.clientRegion,
		DefaultKind:    c.defaultKind,
	}
}

func (c *Client) retrieveCredentials(ctx context.Context) (aws.Credentials, error) {
	if c.creds == nil {
		return aws.Credentials{}, nil
	}
	creds, err := c.creds.Retrieve(ctx)
	if err != nil {
		return aws.Credentials{}, errors.NewError(errors.ErrCodeCredentialsRetrieve, "failed to retrieve credentials").
			WithComponent("s3").
			WithCause(err)
	}
	return creds, nil
}

type prepared struct {
	req *http.Request
	sel signing.Selection
}

// prepare resolves the address of r, selects its signing context and
// builds an unsigned request without a body.
func (c *Client) prepare(ctx context.Context, r *Request) (*prepared, error) {
	endpoint := c.endpoint
	var (
		res addressing.Resolution
		err error
	)
	if c.cfg.UseAccelerate && r.Bucket != "" {
		res, err = addressing.ResolveAccelerated(endpoint.Scheme, r.Bucket, r.Key, c.cfg.ForcePathStyle)
		endpoint = &url.URL{Scheme: endpoint.Scheme, Host: addressing.AccelerateHost}
	} else {
		res, err = addressing.Resolve(endpoint, r.Bucket, r.Key, c.cfg.ForcePathStyle)
	}
	if err != nil {
		return nil, err
	}

	creds, err := c.retrieveCredentials(ctx)
	if err != nil {
		return nil, err
	}

	in := signing.Input{
		Method:          r.Method,
		Bucket:          r.Bucket,
		Key:             r.Key,
		Endpoint:        endpoint,
		Resolution:      res,
		PathStyleForced: c.cfg.ForcePathStyle,
		Presign:         r.Presign,
		Credentials:     creds,
	}
	st := c.signingState()
	var regions signing.RegionLookup = c.regions
	if !r.Presign && signing.NeedsRegionDiscovery(in, st) {
		region, ok := c.regions.Lookup(r.Bucket)
		if !ok {
			region = c.discoverRegion(ctx, endpoint, r.Bucket)
		}
		regions = knownRegion{bucket: r.Bucket, region: region}
	}

	sel, err := signing.Select(in, st, regions)
	if err != nil {
		return nil, err
	}
	c.metrics.RecordSignerSelection(sel.Step, sel.Context.Kind)
	c.logger.Debug("signer selected",
		"operation", r.Operation,
		"bucket", r.Bucket,
		"signer", sel.Context.String(),
		"step", sel.Step,
		"style", sel.Resolution.Style.String(),
		"rewritten", sel.Rewritten)

	u := sel.Resolution.URL()
	if r.Presign {
		u = sel.Resolution.PresignURL()
	}
	if len(r.Query) > 0 {
		u.RawQuery = r.Query.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, r.Method, u.String(), nil)
	if err != nil {
		return nil, errors.NewError(errors.ErrCodeInternalError, "build request").
			WithComponent("s3").
			WithOperation(r.Operation).
			WithCause(err)
	}
	// String() round trips RawPath; keep the exact encoding chosen above.
	req.URL = u
	for k, vs := range r.Header {
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}
	req.Header.Set("User-Agent", userAgent)
	if !r.Presign {
		req.Header.Set(headerInvocationID, uuid.NewString())
	}
	return &prepared{req: req, sel: sel}, nil
}

// discoverRegion probes once for the region of bucket. Failures are logged
// and leave the cache untouched; signing then reports the missing region.
func (c *Client) discoverRegion(ctx context.Context, endpoint *url.URL, bucket string) string {
	if c.prober == nil {
		return ""
	}
	region, err := c.prober.ProbeRegion(ctx, endpoint, bucket)
	c.metrics.RecordRegionProbe(err)
	if err != nil {
		c.logger.Warn("bucket region probe failed", "bucket", bucket, "error", err)
		return ""
	}
	c.regions.Store(bucket, region)
	c.logger.Info("bucket region discovered", "bucket", bucket, "region", region)
	return region
}

// knownRegion answers Select with a region prepare already looked up, so a
// request touches the cache counters once.
type knownRegion struct {
	bucket, region string
}

func (k knownRegion) Lookup(bucket string) (string, bool) {
	if bucket != k.bucket || k.region == "" {
		return "", false
	}
	return k.region, true
}

func (c *Client) sign(ctx context.Context, p *prepared, payloadHash string) error {
	return p.sel.Context.Sign(ctx, p.req, payloadHash, c.now())
}

func (c *Client) send(ctx context.Context, op string, req *http.Request) (*http.Response, error) {
	resp, err := c.exec.Do(ctx, req)
	if err != nil {
		return nil, transportError(ctx, op, err)
	}
	return resp, nil
}

func transportError(ctx context.Context, op string, err error) error {
	var ce *errors.ClientError
	if stderr.As(err, &ce) {
		return err
	}
	if ctx.Err() != nil {
		return errors.NewError(errors.ErrCodeTransferCanceled, op+" canceled").
			WithComponent("s3").
			WithOperation(op).
			WithCause(err)
	}
	return errors.NewError(errors.ErrCodeServiceTransient, op+" request failed").
		WithComponent("s3").
		WithOperation(op).
		WithCause(err)
}

func isSuccess(status int) bool {
	return status >= 200 && status < 300
}

func drain(resp *http.Response) {
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 64*1024))
	resp.Body.Close()
}

// PutObjectInput describes an upload.
type PutObjectInput struct {
	Bucket string
	Key    string
	Body   io.Reader
	// ContentLength is the body length; nil when unknown.
	ContentLength        *int64
	ContentType          string
	ContentMD5           string
	ServerSideEncryption string
	SSECustomerAlgorithm string
	SSECustomerKey       string
	SSECustomerKeyMD5    string
	Metadata             map[string]string
	Listener             progress.Listener
}

// PutObjectOutput is the result of an upload.
type PutObjectOutput struct {
	ETag          string
	VersionID     string
	RequestID     string
	ContentLength int64
	// Verified is set when the returned tag was checked against the bytes sent.
	Verified bool
}

// PutObject uploads a single object.
func (c *Client) PutObject(ctx context.Context, in *PutObjectInput) (out *PutObjectOutput, err error) {
	const op = "PutObject"
	start := time.Now()
	defer func() { c.metrics.RecordRequest(op, time.Since(start), err) }()

	length := int64(integrity.UnknownLength)
	if in.ContentLength != nil {
		length = aws.ToInt64(in.ContentLength)
	}
	up, err := integrity.PrepareUpload(in.Body, integrity.UploadOptions{
		ContentLength:        length,
		ContentMD5:           in.ContentMD5,
		ServerSideEncryption: in.ServerSideEncryption,
		CustomerKeyAlgorithm: in.SSECustomerAlgorithm,
		DisableIntegrity:     c.cfg.DisableIntegrity,
		Listener:             in.Listener,
		Watermark:            c.cfg.ProgressWatermark,
	})
	if err != nil {
		return nil, err
	}
	defer up.Close()

	header := make(http.Header)
	if in.ContentType != "" {
		header.Set("Content-Type", in.ContentType)
	}
	if md5 := up.ContentMD5(); md5 != "" {
		header.Set(headerContentMD5, md5)
	}
	setEncryptionHeaders(header, in.ServerSideEncryption, in.SSECustomerAlgorithm, in.SSECustomerKey, in.SSECustomerKeyMD5)
	for k, v := range in.Metadata {
		header.Set("X-Amz-Meta-"+k, v)
	}

	p, err := c.prepare(ctx, &Request{Operation: op, Method: http.MethodPut, Bucket: in.Bucket, Key: in.Key, Header: header})
	if err != nil {
		return nil, err
	}

	payloadHash := signing.UnsignedPayload
	if up.ContentLength == 0 {
		// run the empty body through the pipeline so its digest and events complete
		if _, err := io.Copy(io.Discard, up.Body); err != nil {
			return nil, err
		}
		p.req.Body = http.NoBody
		payloadHash = signing.EmptyPayloadHash
	} else {
		p.req.Body = up.Body
	}
	p.req.ContentLength = up.ContentLength
	if err := c.sign(ctx, p, payloadHash); err != nil {
		return nil, err
	}

	resp, err := c.send(ctx, op, p.req)
	if err != nil {
		if errors.IsIntegrityError(err) {
			c.metrics.RecordIntegrityFailure(op)
		}
		return nil, err
	}
	defer drain(resp)
	if !isSuccess(resp.StatusCode) {
		return nil, responseError(op, resp)
	}

	etag := resp.Header.Get("ETag")
	if err := up.VerifyServerDigest(etag); err != nil {
		c.metrics.RecordIntegrityFailure(op)
		c.logger.Error("upload digest mismatch", "bucket", in.Bucket, "key", in.Key, "etag", etag, "error", err)
		return nil, err
	}
	_, verified := integrity.ParseDigest(etag)
	verified = verified && !c.cfg.DisableIntegrity && in.SSECustomerAlgorithm == "" &&
		!strings.HasPrefix(strings.ToLower(in.ServerSideEncryption), "aws:kms")

	c.metrics.RecordBytes(op, up.State.BytesRead)
	return &PutObjectOutput{
		ETag:          etag,
		VersionID:     resp.Header.Get("X-Amz-Version-Id"),
		RequestID:     resp.Header.Get(headerRequestID),
		ContentLength: up.ContentLength,
		Verified:      verified,
	}, nil
}

// GetObjectInput describes a download.
type GetObjectInput struct {
	Bucket               string
	Key                  string
	Range                string
	VersionID            string
	SSECustomerAlgorithm string
	SSECustomerKey       string
	SSECustomerKeyMD5    string
	Listener             progress.Listener
}

// GetObjectOutput carries the object body. Body must be read to the end for
// integrity to be checked, and must be closed.
type GetObjectOutput struct {
	Body          io.ReadCloser
	ContentLength int64
	ContentType   string
	ETag          string
	VersionID     string
	RequestID     string
	Metadata      map[string]string
	// Validated is set when the body is checked against its tag.
	Validated bool
	// Stages names the integrity pipeline wrapped around Body.
	Stages []string
}

// GetObject downloads an object.
func (c *Client) GetObject(ctx context.Context, in *GetObjectInput) (out *GetObjectOutput, err error) {
	const op = "GetObject"
	start := time.Now()
	defer func() { c.metrics.RecordRequest(op, time.Since(start), err) }()

	header := make(http.Header)
	if in.Range != "" {
		header.Set("Range", in.Range)
	}
	setEncryptionHeaders(header, "", in.SSECustomerAlgorithm, in.SSECustomerKey, in.SSECustomerKeyMD5)
	var query url.Values
	if in.VersionID != "" {
		query = url.Values{"versionId": {in.VersionID}}
	}

	p, err := c.prepare(ctx, &Request{Operation: op, Method: http.MethodGet, Bucket: in.Bucket, Key: in.Key, Header: header, Query: query})
	if err != nil {
		return nil, err
	}
	if err := c.sign(ctx, p, signing.EmptyPayloadHash); err != nil {
		return nil, err
	}
	resp, err := c.send(ctx, op, p.req)
	if err != nil {
		return nil, err
	}
	if !isSuccess(resp.StatusCode) {
		defer drain(resp)
		return nil, responseError(op, resp)
	}

	dl := integrity.WrapDownload(resp.Body, integrity.DownloadOptions{
		ContentLength:        resp.ContentLength,
		ETag:                 resp.Header.Get("ETag"),
		Ranged:               in.Range != "" || resp.StatusCode == http.StatusPartialContent,
		ServerSideEncryption: resp.Header.Get(headerSSE),
		CustomerKeyAlgorithm: firstNonEmptyString(resp.Header.Get(headerSSECAlgorithm), in.SSECustomerAlgorithm),
		DisableIntegrity:     c.cfg.DisableIntegrity,
		Listener:             in.Listener,
		Watermark:            c.cfg.ProgressWatermark,
	})

	meta := make(map[string]string)
	for k, vs := range resp.Header {
		if strings.HasPrefix(k, "X-Amz-Meta-") && len(vs) > 0 {
			meta[strings.ToLower(strings.TrimPrefix(k, "X-Amz-Meta-"))] = vs[0]
		}
	}

	return &GetObjectOutput{
		Body:          &countingBody{ReadCloser: dl.Body, op: op, metrics: c.metrics},
		ContentLength: resp.ContentLength,
		ContentType:   resp.Header.Get("Content-Type"),
		ETag:          resp.Header.Get("ETag"),
		VersionID:     resp.Header.Get("X-Amz-Version-Id"),
		RequestID:     resp.Header.Get(headerRequestID),
		Metadata:      meta,
		Validated:     dl.Pipeline.Has(integrity.StageDigestValidate),
		Stages:        dl.Pipeline.Names(),
	}, nil
}

// countingBody reports bytes read and integrity failures to the recorder.
type countingBody struct {
	io.ReadCloser
	op       string
	metrics  Recorder
	n        int64
	reported bool
}

func (b *countingBody) Read(p []byte) (int, error) {
	n, err := b.ReadCloser.Read(p)
	b.n += int64(n)
	if err != nil && !b.reported {
		b.reported = true
		b.metrics.RecordBytes(b.op, b.n)
		if errors.IsIntegrityError(err) {
			b.metrics.RecordIntegrityFailure(b.op)
		}
	}
	return n, err
}

func setEncryptionHeaders(h http.Header, sse, algorithm, key, keyMD5 string) {
	if sse != "" {
		h.Set(headerSSE, sse)
	}
	if algorithm != "" {
		h.Set(headerSSECAlgorithm, algorithm)
		h.Set("X-Amz-Server-Side-Encryption-Customer-Key", key)
		h.Set("X-Amz-Server-Side-Encryption-Customer-Key-Md5", keyMD5)
	}
}

// CompleteMultipartUpload completes an upload, retrying when the service
// answers 200 OK with an error document.
func (c *Client) CompleteMultipartUpload(ctx context.Context, req *multipart.Request) (result *multipart.Result, err error) {
	const op = "CompleteMultipartUpload"
	start := time.Now()
	defer func() { c.metrics.RecordRequest(op, time.Since(start), err) }()

	req.SortParts()
	return c.completer.Complete(ctx, req)
}

// SendComplete implements multipart.Transport. Every status is returned as
// a Response; the decoder decides what the body means.
func (c *Client) SendComplete(ctx context.Context, in *multipart.Request) (*multipart.Response, error) {
	const op = "CompleteMultipartUpload"
	body, err := EncodeCompleteRequest(in.Parts)
	if err != nil {
		return nil, err
	}

	header := http.Header{"Content-Type": {"application/xml"}}
	p, err := c.prepare(ctx, &Request{
		Operation: op,
		Method:    http.MethodPost,
		Bucket:    in.Bucket,
		Key:       in.Key,
		Query:     url.Values{"uploadId": {in.UploadID}},
		Header:    header,
	})
	if err != nil {
		return nil, err
	}
	p.req.Body = io.NopCloser(bytes.NewReader(body))
	p.req.GetBody = func() (io.ReadCloser, error) { return io.NopCloser(bytes.NewReader(body)), nil }
	p.req.ContentLength = int64(len(body))

	sum := sha256.Sum256(body)
	if err := c.sign(ctx, p, hex.EncodeToString(sum[:])); err != nil {
		return nil, err
	}
	resp, err := c.send(ctx, op, p.req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, transportError(ctx, op, err)
	}
	return &multipart.Response{
		StatusCode: resp.StatusCode,
		Body:       raw,
		RequestID:  resp.Header.Get(headerRequestID),
	}, nil
}

// PresignInput describes a presigned URL.
type PresignInput struct {
	Method  string
	Bucket  string
	Key     string
	Expires time.Duration
	Query   url.Values
}

// PresignURL returns a URL granting the described request without further
// credentials.
func (c *Client) PresignURL(ctx context.Context, in *PresignInput) (string, error) {
	method := in.Method
	if method == "" {
		method = http.MethodGet
	}
	p, err := c.prepare(ctx, &Request{
		Operation: "Presign",
		Method:    method,
		Bucket:    in.Bucket,
		Key:       in.Key,
		Query:     in.Query,
		Presign:   true,
	})
	if err != nil {
		return "", err
	}
	return p.sel.Context.Presign(ctx, p.req, in.Expires, c.now())
}

// DeleteBucket deletes a bucket. The cached region is dropped whether the
// bucket was deleted or was already gone.
func (c *Client) DeleteBucket(ctx context.Context, bucket string) (err error) {
	const op = "DeleteBucket"
	start := time.Now()
	defer func() { c.metrics.RecordRequest(op, time.Since(start), err) }()

	p, err := c.prepare(ctx, &Request{Operation: op, Method: http.MethodDelete, Bucket: bucket})
	if err != nil {
		return err
	}
	if err := c.sign(ctx, p, signing.EmptyPayloadHash); err != nil {
		return err
	}
	resp, err := c.send(ctx, op, p.req)
	if err != nil {
		return err
	}
	defer drain(resp)

	if isSuccess(resp.StatusCode) || resp.StatusCode == http.StatusNotFound {
		c.regions.Evict(bucket)
	}
	if !isSuccess(resp.StatusCode) {
		return responseError(op, resp)
	}
	return nil
}

// BucketRegion returns the region of bucket from the cache, probing once on
// a miss.
func (c *Client) BucketRegion(ctx context.Context, bucket string) (string, error) {
	if region, ok := c.regions.Lookup(bucket); ok {
		return region, nil
	}
	if c.prober == nil {
		return "", errors.Newf(errors.ErrCodeRegionProbe, "region of bucket %q is unknown and probing is disabled", bucket).
			WithComponent("s3")
	}
	region, err := c.prober.ProbeRegion(ctx, c.endpoint, bucket)
	c.metrics.RecordRegionProbe(err)
	if err != nil {
		return "", err
	}
	c.regions.Store(bucket, region)
	return region, nil
}

func isAmazonHost(endpoint string) bool {
	host := endpoint
	if u, err := url.Parse(endpoint); err == nil && u.Host != "" {
		host = u.Hostname()
	}
	host = strings.ToLower(host)
	return strings.HasSuffix(host, ".amazonaws.com") || strings.HasSuffix(host, ".amazonaws.com.cn")
}

func endpointURL(cfg *Config) string {
	if strings.Contains(cfg.Endpoint, "://") {
		return cfg.Endpoint
	}
	if cfg.DisableSSL {
		return "http://" + cfg.Endpoint
	}
	return "https://" + cfg.Endpoint
}
