// Package signing chooses the signing scheme for a prepared request and
// applies it. Selection is a pure function of the request, the client-wide
// overrides and the cached bucket regions; it never performs network I/O.
package signing

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/minio/minio-go/v7/pkg/s3utils"

	"github.com/objectfs/objclient/internal/addressing"
	"github.com/objectfs/objclient/pkg/errors"
)

// Kind identifies a signing scheme.
type Kind int

const (
	// KindNone means no scheme was configured.
	KindNone Kind = iota
	// KindLegacy is the query-string scheme bound to method and resource path.
	KindLegacy
	// KindRegionScoped is the scheme whose credential scope names a region and service.
	KindRegionScoped
)

func (k Kind) String() string {
	switch k {
	case KindLegacy:
		return "legacy"
	case KindRegionScoped:
		return "region-scoped"
	default:
		return "none"
	}
}

// ParseKind maps configuration names onto a Kind. An empty string is KindNone.
func ParseKind(s string) (Kind, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "":
		return KindNone, nil
	case "legacy", "v2", "s3signertype":
		return KindLegacy, nil
	case "region-scoped", "v4", "awss3v4signertype":
		return KindRegionScoped, nil
	default:
		return KindNone, errors.Newf(errors.ErrCodeInvalidConfig, "unknown signer %q", s).
			WithComponent("signing")
	}
}

const (
	// DefaultService is the service name used in the credential scope.
	DefaultService = "s3"
	// DefaultRegion is used for non-Amazon endpoints and the global endpoint.
	DefaultRegion = "us-east-1"

	globalHost         = "s3.amazonaws.com"
	globalExternalHost = "s3-external-1.amazonaws.com"
)

// Context is the signing context for a single request. Exactly one of the
// legacy or region-scoped field groups is meaningful, selected by Kind.
type Context struct {
	Kind Kind

	// Legacy
	Method       string
	ResourcePath string

	// Region scoped
	Region  string
	Service string

	Credentials aws.Credentials
}

// Legacy builds a legacy context bound to method and the canonical resource path.
func Legacy(method, resourcePath string, creds aws.Credentials) Context {
	return Context{Kind: KindLegacy, Method: method, ResourcePath: resourcePath, Credentials: creds}
}

// RegionScoped builds a region-scoped context.
func RegionScoped(region, service string, creds aws.Credentials) Context {
	if service == "" {
		service = DefaultService
	}
	return Context{Kind: KindRegionScoped, Region: region, Service: service, Credentials: creds}
}

func (c Context) String() string {
	if c.Kind == KindLegacy {
		return fmt.Sprintf("legacy(%s %s)", c.Method, c.ResourcePath)
	}
	return fmt.Sprintf("%s(%s/%s)", c.Kind, c.Region, c.Service)
}

// State is the client-wide signing configuration. Callers take a snapshot
// under their own lock and pass it by value.
type State struct {
	// SignerOverride forces a scheme when not KindNone.
	SignerOverride Kind
	// RegionOverride is the region configured alongside the signer override.
	RegionOverride string
	// ClientRegion is the region configured on the client.
	ClientRegion string
	// DefaultKind is the scheme used when nothing else applies. KindNone
	// means region scoped.
	DefaultKind Kind
}

// RegionLookup returns a previously discovered region for a bucket.
type RegionLookup interface {
	Lookup(bucket string) (string, bool)
}

// Input describes the prepared request being signed.
type Input struct {
	Method          string
	Bucket          string
	Key             string
	Endpoint        *url.URL
	Resolution      addressing.Resolution
	PathStyleForced bool
	Presign         bool
	Service         string
	Credentials     aws.Credentials
}

// Selection is the outcome of Select.
type Selection struct {
	Context Context
	// Resolution is the input resolution, or the re-resolved one when the
	// endpoint was rewritten to a regional host.
	Resolution addressing.Resolution
	// Endpoint is the base endpoint the resolution was made against.
	Endpoint *url.URL
	// Rewritten is set when a discovered region changed the endpoint.
	Rewritten bool
	// Step is the decision step that produced the context, for logging.
	Step string
}

// Select chooses the signing context for in.
//
// Order:
//  1. a signer override wins unless it is region scoped and no region is configured;
//  2. region scoped with no configured region on the global endpoint: use the
//     client region or the cached bucket region and rewrite the endpoint;
//     presign requests fall back to legacy on a miss;
//  3. a region override selects region scoped for that region;
//  4. a legacy default yields a fresh legacy context for this request;
//  5. otherwise region scoped for the configured or default region.
func Select(in Input, st State, regions RegionLookup) (Selection, error) {
	if in.Endpoint == nil {
		return Selection{}, errors.NewError(errors.ErrCodeEndpointInvalid, "signing requires an endpoint").
			WithComponent("signing")
	}
	service := in.Service
	if service == "" {
		service = DefaultService
	}

	sel := Selection{Resolution: in.Resolution, Endpoint: in.Endpoint}
	configured := configuredRegion(in.Endpoint, st)

	effective := st.DefaultKind
	if effective == KindNone {
		effective = KindRegionScoped
	}
	if st.SignerOverride != KindNone {
		effective = st.SignerOverride
	}

	// 1
	if st.SignerOverride == KindLegacy {
		sel.Context = Legacy(in.Method, CanonicalResource(in.Resolution, in.Presign), in.Credentials)
		sel.Step = "override"
		return sel, nil
	}
	if st.SignerOverride == KindRegionScoped && (configured != "" || !needsDiscovery(in)) {
		sel.Context = RegionScoped(firstNonEmpty(st.RegionOverride, configured, DefaultRegion), service, in.Credentials)
		sel.Step = "override"
		return sel, nil
	}

	// 2
	if NeedsRegionDiscovery(in, st) {
		region := st.ClientRegion
		if region == "" && regions != nil {
			region, _ = regions.Lookup(in.Bucket)
		}
		if region != "" {
			endpoint := RegionalEndpoint(in.Endpoint.Scheme, region)
			res, err := addressing.Resolve(endpoint, in.Bucket, in.Key, in.PathStyleForced)
			if err != nil {
				return Selection{}, err
			}
			sel.Resolution = res
			sel.Endpoint = endpoint
			sel.Rewritten = true
			sel.Context = RegionScoped(region, service, in.Credentials)
			sel.Step = "discovered-region"
			return sel, nil
		}
		if in.Presign {
			sel.Context = Legacy(in.Method, CanonicalResource(in.Resolution, in.Presign), in.Credentials)
			sel.Step = "presign-fallback"
			return sel, nil
		}
		return Selection{}, errors.Newf(errors.ErrCodeSigningNoRegion,
			"no region known for bucket %q on the global endpoint", in.Bucket).
			WithComponent("signing").
			WithContext("bucket", in.Bucket).
			WithContext("endpoint", in.Endpoint.Host)
	}

	// 3
	if region := firstNonEmpty(st.RegionOverride, st.ClientRegion); region != "" {
		sel.Context = RegionScoped(region, service, in.Credentials)
		sel.Step = "region-override"
		return sel, nil
	}

	// 4
	if effective == KindLegacy {
		sel.Context = Legacy(in.Method, CanonicalResource(in.Resolution, in.Presign), in.Credentials)
		sel.Step = "legacy-default"
		return sel, nil
	}

	// 5
	sel.Context = RegionScoped(firstNonEmpty(configured, DefaultRegion), service, in.Credentials)
	sel.Step = "default"
	return sel, nil
}

// needsDiscovery reports whether the request targets a bucket on the global
// endpoint, where the region cannot be read from the host.
func needsDiscovery(in Input) bool {
	return in.Bucket != "" && IsGlobalEndpoint(in.Endpoint)
}

// NeedsRegionDiscovery reports whether Select would have to find the bucket
// region through the client region or the region cache.
func NeedsRegionDiscovery(in Input, st State) bool {
	if st.SignerOverride == KindLegacy {
		return false
	}
	effective := st.DefaultKind
	if st.SignerOverride != KindNone {
		effective = st.SignerOverride
	}
	if effective == KindLegacy {
		return false
	}
	return configuredRegion(in.Endpoint, st) == "" && needsDiscovery(in)
}

func configuredRegion(endpoint *url.URL, st State) string {
	return firstNonEmpty(st.RegionOverride, st.ClientRegion, EndpointRegion(endpoint))
}

// IsGlobalEndpoint reports whether endpoint is the region-less service endpoint.
func IsGlobalEndpoint(endpoint *url.URL) bool {
	if endpoint == nil {
		return false
	}
	host := strings.ToLower(endpoint.Hostname())
	return host == globalHost || host == globalExternalHost
}

// EndpointRegion returns the region encoded in an Amazon regional endpoint
// host, or "" for the global endpoint and non-Amazon hosts.
func EndpointRegion(endpoint *url.URL) string {
	if endpoint == nil || IsGlobalEndpoint(endpoint) {
		return ""
	}
	return s3utils.GetRegionFromURL(*endpoint)
}

// RegionalEndpoint returns the endpoint for region. us-east-1 maps to the
// global host.
func RegionalEndpoint(scheme, region string) *url.URL {
	if scheme == "" {
		scheme = "https"
	}
	host := "s3." + region + ".amazonaws.com"
	switch {
	case region == DefaultRegion:
		host = globalHost
	case strings.HasPrefix(region, "cn-"):
		host += ".cn"
	}
	return &url.URL{Scheme: scheme, Host: host}
}

// CanonicalResource returns the bucket-qualified resource path the legacy
// scheme signs, independent of the addressing style. Presigned URLs carry
// the path without the doubled slash, so the signature covers that form.
func CanonicalResource(res addressing.Resolution, presign bool) string {
	path := res.ResourcePath
	if presign {
		path = res.PresignPath()
	}
	if res.Style == addressing.StyleVirtualHosted && res.Bucket != "" {
		return "/" + res.Bucket + firstNonEmpty(path, "/")
	}
	return firstNonEmpty(path, "/")
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
