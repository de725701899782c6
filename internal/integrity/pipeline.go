// Package integrity wraps upload and download bodies in ordered, named
// stages that report progress, compute or validate digests and enforce
// declared lengths.
package integrity

import (
	"bytes"
	"encoding/base64"
	"encoding/hex"
	"io"
	"strings"

	"github.com/objectfs/objclient/pkg/errors"
)

// Mode tells whether a state belongs to an upload or a download.
type Mode int

const (
	ModeUpload Mode = iota + 1
	ModeDownload
)

func (m Mode) String() string {
	switch m {
	case ModeUpload:
		return "upload"
	case ModeDownload:
		return "download"
	default:
		return "unknown"
	}
}

// UnknownLength marks a body whose length was not declared.
const UnknownLength int64 = -1

// State is the integrity bookkeeping for one transfer. ComputedDigest is
// only meaningful once Exhausted is true.
type State struct {
	Mode           Mode
	ExpectedLength int64
	ExpectedDigest []byte
	ComputedDigest []byte
	BytesRead      int64
	Exhausted      bool
}

func newState(mode Mode, length int64, digest []byte) *State {
	return &State{Mode: mode, ExpectedLength: length, ExpectedDigest: digest}
}

// Stage is one transform in a pipeline. Wrap returns a stream reading from in.
type Stage interface {
	Name() string
	Wrap(in io.ReadCloser) io.ReadCloser
}

// Pipeline is an ordered list of stages. The first stage reads from the
// source and the consumer reads from the last.
type Pipeline struct {
	stages []Stage
}

// NewPipeline returns a pipeline of the non-nil stages in order.
func NewPipeline(stages ...Stage) Pipeline {
	p := Pipeline{}
	for _, s := range stages {
		if s != nil {
			p.stages = append(p.stages, s)
		}
	}
	return p
}

// Names lists the stage names in application order.
func (p Pipeline) Names() []string {
	names := make([]string, 0, len(p.stages))
	for _, s := range p.stages {
		names = append(names, s.Name())
	}
	return names
}

// Has reports whether a stage named name is present.
func (p Pipeline) Has(name string) bool {
	for _, s := range p.stages {
		if s.Name() == name {
			return true
		}
	}
	return false
}

// Len returns the number of stages.
func (p Pipeline) Len() int {
	return len(p.stages)
}

// Wrap applies every stage to body.
func (p Pipeline) Wrap(body io.ReadCloser) io.ReadCloser {
	out := body
	for _, s := range p.stages {
		out = s.Wrap(out)
	}
	return out
}

// IsCompositeDigest reports whether etag is a multipart marker rather than
// a content hash. Composite values carry a part count after a dash.
func IsCompositeDigest(etag string) bool {
	return strings.Contains(trimETag(etag), "-")
}

// ParseDigest decodes a simple hex ETag into raw digest bytes. ok is false
// for composite markers and values that are not an MD5 in hex.
func ParseDigest(etag string) (digest []byte, ok bool) {
	v := trimETag(etag)
	if v == "" || IsCompositeDigest(v) {
		return nil, false
	}
	b, err := hex.DecodeString(v)
	if err != nil || len(b) != md5Size {
		return nil, false
	}
	return b, true
}

// ParseContentMD5 decodes a base64 Content-MD5 header value.
func ParseContentMD5(v string) ([]byte, error) {
	b, err := base64.StdEncoding.DecodeString(strings.TrimSpace(v))
	if err != nil || len(b) != md5Size {
		return nil, errors.Newf(errors.ErrCodeDigestMismatch, "invalid Content-MD5 %q", v).
			WithComponent("integrity").
			WithCause(err)
	}
	return b, nil
}

func trimETag(etag string) string {
	return strings.Trim(strings.TrimSpace(etag), `"`)
}

func digestMismatch(op string, expected, computed []byte) *errors.ClientError {
	return errors.NewError(errors.ErrCodeDigestMismatch, "computed digest does not match the service digest").
		WithComponent("integrity").
		WithOperation(op).
		WithContext("expected", hex.EncodeToString(expected)).
		WithContext("computed", hex.EncodeToString(computed))
}

func lengthMismatch(op string, expected, observed int64, tooMany bool) *errors.ClientError {
	msg := "stream ended before the declared length"
	if tooMany {
		msg = "stream exceeded the declared length"
	}
	return errors.NewError(errors.ErrCodeLengthMismatch, msg).
		WithComponent("integrity").
		WithOperation(op).
		WithDetail("expected", expected).
		WithDetail("observed", observed)
}

func digestEqual(a, b []byte) bool {
	return len(a) > 0 && bytes.Equal(a, b)
}
