package integrity

import (
	"io"
	"strings"

	"github.com/objectfs/objclient/internal/progress"
)

// DownloadOptions describe a response body.
type DownloadOptions struct {
	// ContentLength is the declared length, UnknownLength when absent.
	ContentLength int64
	// ETag is the digest tag returned with the object.
	ETag string
	// Ranged is set for partial reads; the tag covers the whole object.
	Ranged bool
	// ServerSideEncryption is the x-amz-server-side-encryption value.
	ServerSideEncryption string
	// CustomerKeyAlgorithm is set when the object uses a customer provided key.
	CustomerKeyAlgorithm string
	// DisableIntegrity turns digest validation off.
	DisableIntegrity bool

	Listener  progress.Listener
	Watermark int64
}

// Download is a wrapped response body.
type Download struct {
	Body     io.ReadCloser
	State    *State
	Pipeline Pipeline
}

// ValidatesDigest reports whether a body described by opts can be checked
// against its tag. Composite tags, ranged reads and KMS or customer-key
// encrypted objects have tags that are not the MD5 of the bytes read.
func (opts DownloadOptions) ValidatesDigest() bool {
	if opts.DisableIntegrity || opts.Ranged || opts.CustomerKeyAlgorithm != "" {
		return false
	}
	if strings.EqualFold(opts.ServerSideEncryption, "aws:kms") ||
		strings.EqualFold(opts.ServerSideEncryption, "aws:kms:dsse") {
		return false
	}
	_, ok := ParseDigest(opts.ETag)
	return ok
}

// WrapDownload builds the download pipeline for body. A simple digest tag
// gets digest validation; otherwise a declared length is enforced.
// Progress, when a listener is set, is reported on the consumer side so
// integrity failures surface as Failed events.
func WrapDownload(body io.ReadCloser, opts DownloadOptions) *Download {
	length := opts.ContentLength
	if length < 0 {
		length = UnknownLength
	}

	var (
		state  *State
		stages []Stage
	)
	if opts.ValidatesDigest() {
		digest, _ := ParseDigest(opts.ETag)
		state = newState(ModeDownload, length, digest)
		stages = append(stages, &DigestValidateStage{State: state})
	} else {
		state = newState(ModeDownload, length, nil)
		if length != UnknownLength {
			stages = append(stages, &LengthEnforceStage{State: state})
		}
	}
	if ps := NewProgressStage(opts.Listener, opts.Watermark); ps != nil {
		stages = append(stages, ps)
	}

	p := NewPipeline(stages...)
	return &Download{Body: p.Wrap(body), State: state, Pipeline: p}
}
