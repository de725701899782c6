// Package addressing decides how a bucket and key map onto a wire endpoint:
// virtual-hosted style (bucket as a DNS label of the host) or path style
// (bucket as the first path segment).
package addressing

import (
	"net"
	"net/url"
	"strings"

	"github.com/minio/minio-go/v7/pkg/s3utils"

	"github.com/objectfs/objclient/pkg/errors"
)

// Style is the addressing style chosen for a request.
type Style int

const (
	// StyleVirtualHosted encodes the bucket as a subdomain of the endpoint host.
	StyleVirtualHosted Style = iota
	// StylePath encodes the bucket as the first path segment.
	StylePath
)

func (s Style) String() string {
	switch s {
	case StyleVirtualHosted:
		return "virtual-hosted"
	case StylePath:
		return "path"
	default:
		return "unknown"
	}
}

// AccelerateHost is the transfer acceleration endpoint host.
const AccelerateHost = "s3-accelerate.amazonaws.com"

// Resolution is the outcome of resolving a bucket and key against an endpoint.
type Resolution struct {
	// Endpoint is scheme and host only; never the caller's URL.
	Endpoint *url.URL
	// ResourcePath always starts with "/" unless a virtual-hosted request
	// targets the bucket itself, in which case it is empty.
	ResourcePath string
	Style        Style
	Bucket       string
	Key          string
}

// IsDNSCompatibleBucketName reports whether bucket can be used as a DNS label:
// 3 to 63 characters of lowercase letters, digits, hyphens and dots, starting
// and ending with a letter or digit, and not formatted as an IPv4 address.
func IsDNSCompatibleBucketName(bucket string) bool {
	return s3utils.CheckValidBucketNameStrict(bucket) == nil
}

// IsIPv4Host reports whether the host of endpoint is an IPv4 literal.
func IsIPv4Host(endpoint *url.URL) bool {
	if endpoint == nil {
		return false
	}
	ip := net.ParseIP(endpoint.Hostname())
	return ip != nil && ip.To4() != nil
}

// Resolve picks the addressing style for bucket and key against endpoint.
// Path style is used when forced, when the bucket is not DNS compatible, or
// when the endpoint host is an IPv4 literal. The result depends only on the
// arguments.
func Resolve(endpoint *url.URL, bucket, key string, pathStyleForced bool) (Resolution, error) {
	base, err := baseEndpoint(endpoint)
	if err != nil {
		return Resolution{}, err
	}

	res := Resolution{Endpoint: base, Bucket: bucket, Key: key}

	if bucket == "" {
		res.Style = StylePath
		res.ResourcePath = "/"
		return res, nil
	}

	if pathStyleForced || !IsDNSCompatibleBucketName(bucket) || IsIPv4Host(base) {
		res.Style = StylePath
		res.ResourcePath = "/" + bucket + "/" + key
		if key == "" {
			res.ResourcePath = "/" + bucket
		}
		return res, nil
	}

	res.Style = StyleVirtualHosted
	res.Endpoint.Host = bucket + "." + base.Host
	res.ResourcePath = virtualHostedPath(key)
	return res, nil
}

// ResolveAccelerated resolves bucket and key against the transfer acceleration
// endpoint. Acceleration requires virtual-hosted addressing, so a bucket that
// cannot be a DNS label (or contains dots) or a forced path style is an error.
func ResolveAccelerated(scheme, bucket, key string, pathStyleForced bool) (Resolution, error) {
	if pathStyleForced {
		return Resolution{}, errors.NewError(errors.ErrCodeAddressingInvalid,
			"transfer acceleration cannot be used with path-style addressing").
			WithComponent("addressing").
			WithContext("bucket", bucket)
	}
	if !IsDNSCompatibleBucketName(bucket) || strings.Contains(bucket, ".") {
		return Resolution{}, errors.Newf(errors.ErrCodeAddressingInvalid,
			"bucket %q is not compatible with transfer acceleration", bucket).
			WithComponent("addressing").
			WithContext("bucket", bucket)
	}
	if scheme == "" {
		scheme = "https"
	}
	return Resolution{
		Endpoint:     &url.URL{Scheme: scheme, Host: bucket + "." + AccelerateHost},
		ResourcePath: virtualHostedPath(key),
		Style:        StyleVirtualHosted,
		Bucket:       bucket,
		Key:          key,
	}, nil
}

// URL returns the request URL with the resource path percent-encoded the
// way the service expects. A doubled leading slash is kept on the wire.
func (r Resolution) URL() *url.URL {
	u := *r.Endpoint
	u.Path = r.ResourcePath
	if u.Path == "" {
		u.Path = "/"
	}
	if encoded := s3utils.EncodePath(u.Path); encoded != u.Path {
		u.RawPath = encoded
	}
	return &u
}

// PresignPath returns the resource path for presigned URL strings, with the
// extra slash added for keys that begin with "/" removed again.
func (r Resolution) PresignPath() string {
	if r.Style == StyleVirtualHosted && strings.HasPrefix(r.ResourcePath, "//") {
		return r.ResourcePath[1:]
	}
	return r.ResourcePath
}

// PresignURL is URL with PresignPath as its path.
func (r Resolution) PresignURL() *url.URL {
	u := r.URL()
	u.Path = r.PresignPath()
	if u.Path == "" {
		u.Path = "/"
	}
	u.RawPath = ""
	if encoded := s3utils.EncodePath(u.Path); encoded != u.Path {
		u.RawPath = encoded
	}
	return u
}

func virtualHostedPath(key string) string {
	if key == "" {
		return ""
	}
	// "/" + "/x" keeps a leading slash in the key distinct from the delimiter.
	return "/" + key
}

func baseEndpoint(endpoint *url.URL) (*url.URL, error) {
	if endpoint == nil || endpoint.Host == "" {
		return nil, errors.NewError(errors.ErrCodeEndpointInvalid, "endpoint must include a host").
			WithComponent("addressing")
	}
	scheme := endpoint.Scheme
	if scheme == "" {
		scheme = "https"
	}
	return &url.URL{Scheme: scheme, Host: endpoint.Host}, nil
}

// ParseEndpoint parses an endpoint string, defaulting the scheme to https
// when secure is true and http otherwise.
func ParseEndpoint(endpoint string, secure bool) (*url.URL, error) {
	if endpoint == "" {
		return nil, errors.NewError(errors.ErrCodeEndpointInvalid, "endpoint is empty").
			WithComponent("addressing")
	}
	if !strings.Contains(endpoint, "://") {
		scheme := "http"
		if secure {
			scheme = "https"
		}
		endpoint = scheme + "://" + endpoint
	}
	u, err := url.Parse(endpoint)
	if err != nil {
		return nil, errors.Newf(errors.ErrCodeEndpointInvalid, "parse endpoint %q", endpoint).
			WithComponent("addressing").
			WithCause(err)
	}
	if u.Host == "" {
		return nil, errors.Newf(errors.ErrCodeEndpointInvalid, "endpoint %q has no host", endpoint).
			WithComponent("addressing")
	}
	return &url.URL{Scheme: u.Scheme, Host: u.Host}, nil
}
