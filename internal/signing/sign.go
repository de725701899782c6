package signing

import (
	"context"
	"net/http"
	"net/url"
	"strconv"
	"time"

	v4 "github.com/aws/aws-sdk-go-v2/aws/signer/v4"
	"github.com/minio/minio-go/v7/pkg/signer"

	"github.com/objectfs/objclient/pkg/errors"
)

const (
	// UnsignedPayload is the payload hash used for presigned URLs.
	UnsignedPayload = "UNSIGNED-PAYLOAD"
	// EmptyPayloadHash is the SHA-256 of an empty body.
	EmptyPayloadHash = "e3b0c44298fc1c149afbf4c8996fb92427ae41e4649b934ca495991b7852b855"

	headerContentSha256 = "X-Amz-Content-Sha256"
	headerSecurityToken = "X-Amz-Security-Token"
	queryExpires        = "X-Amz-Expires"

	// MaxPresignExpiry is the longest validity a region-scoped presigned URL may carry.
	MaxPresignExpiry = 7 * 24 * time.Hour
)

func newV4Signer() *v4.Signer {
	return v4.NewSigner(func(o *v4.SignerOptions) {
		o.DisableURIPathEscaping = true
	})
}

// Sign adds authentication headers to req according to c. Anonymous
// credentials leave the request unsigned.
func (c Context) Sign(ctx context.Context, req *http.Request, payloadHash string, signingTime time.Time) error {
	if !c.Credentials.HasKeys() {
		return nil
	}

	switch c.Kind {
	case KindLegacy:
		if c.Method != "" && req.Method != c.Method {
			return errors.Newf(errors.ErrCodeSigningFailed,
				"legacy context bound to %s cannot sign %s", c.Method, req.Method).
				WithComponent("signing")
		}
		if c.Credentials.SessionToken != "" {
			req.Header.Set(headerSecurityToken, c.Credentials.SessionToken)
		}
		if req.Header.Get("Date") == "" {
			req.Header.Set("Date", signingTime.UTC().Format(http.TimeFormat))
		}
		signed := signer.SignV2(c.canonicalRequest(req), c.Credentials.AccessKeyID, c.Credentials.SecretAccessKey, false)
		req.Header.Set("Authorization", signed.Header.Get("Authorization"))
		return nil

	case KindRegionScoped:
		if payloadHash == "" {
			payloadHash = UnsignedPayload
		}
		req.Header.Set(headerContentSha256, payloadHash)
		if err := newV4Signer().SignHTTP(ctx, c.Credentials, req, payloadHash, c.Service, c.Region, signingTime); err != nil {
			return errors.NewError(errors.ErrCodeSigningFailed, "sign request").
				WithComponent("signing").
				WithContext("region", c.Region).
				WithCause(err)
		}
		return nil

	default:
		return errors.Newf(errors.ErrCodeSigningFailed, "no signing scheme selected (%s)", c.Kind).
			WithComponent("signing")
	}
}

// Presign returns a URL for req that is valid for expires.
func (c Context) Presign(ctx context.Context, req *http.Request, expires time.Duration, signingTime time.Time) (string, error) {
	if expires <= 0 {
		return "", errors.NewError(errors.ErrCodeSigningFailed, "presign expiry must be positive").
			WithComponent("signing")
	}
	if !c.Credentials.HasKeys() {
		return req.URL.String(), nil
	}

	switch c.Kind {
	case KindLegacy:
		signed := signer.PreSignV2(c.canonicalRequest(req), c.Credentials.AccessKeyID,
			c.Credentials.SecretAccessKey, int64(expires/time.Second), false)
		q := signed.URL.Query()
		if c.Credentials.SessionToken != "" {
			q.Set(headerSecurityToken, c.Credentials.SessionToken)
		}
		u := *req.URL
		u.RawQuery = q.Encode()
		return u.String(), nil

	case KindRegionScoped:
		if expires > MaxPresignExpiry {
			return "", errors.Newf(errors.ErrCodeSigningFailed,
				"presign expiry %s exceeds %s", expires, MaxPresignExpiry).
				WithComponent("signing")
		}
		q := req.URL.Query()
		q.Set(queryExpires, strconv.FormatInt(int64(expires/time.Second), 10))
		req.URL.RawQuery = q.Encode()

		uri, _, err := newV4Signer().PresignHTTP(ctx, c.Credentials, req, UnsignedPayload, c.Service, c.Region, signingTime)
		if err != nil {
			return "", errors.NewError(errors.ErrCodeSigningFailed, "presign request").
				WithComponent("signing").
				WithContext("region", c.Region).
				WithCause(err)
		}
		return uri, nil

	default:
		return "", errors.Newf(errors.ErrCodeSigningFailed, "no signing scheme selected (%s)", c.Kind).
			WithComponent("signing")
	}
}

// canonicalRequest returns a shallow copy of req addressed by the bucket
// qualified resource path, which is what the legacy string-to-sign covers.
func (c Context) canonicalRequest(req *http.Request) http.Request {
	out := *req
	u := *req.URL
	u.Path = c.ResourcePath
	u.RawPath = ""
	out.URL = &u
	return out
}

// PresignedScheme reports which scheme signed a presigned URL.
func PresignedScheme(u *url.URL) Kind {
	q := u.Query()
	switch {
	case q.Get("X-Amz-Algorithm") != "":
		return KindRegionScoped
	case q.Get("Signature") != "" && q.Get("AWSAccessKeyId") != "":
		return KindLegacy
	default:
		return KindNone
	}
}
