package integrity

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"io"

	"github.com/dustin/go-humanize"
	"github.com/hashicorp/go-multierror"

	"github.com/objectfs/objclient/internal/progress"
	"github.com/objectfs/objclient/pkg/errors"
)

// MaxUploadBuffer is the most an unknown-length, non-seekable body may hold.
// Larger bodies are rejected instead of being buffered without bound.
const MaxUploadBuffer = 256 * 1024

// UploadOptions describe a request body.
type UploadOptions struct {
	// ContentLength is the declared length, UnknownLength when absent.
	ContentLength int64
	// ContentMD5 is a caller supplied base64 digest.
	ContentMD5 string
	// ServerSideEncryption is the x-amz-server-side-encryption value; KMS
	// encrypted objects do not return an MD5 tag.
	ServerSideEncryption string
	// CustomerKeyAlgorithm is set when uploading with a customer provided key.
	CustomerKeyAlgorithm string
	// DisableIntegrity turns digest computation and verification off.
	DisableIntegrity bool

	Listener  progress.Listener
	Watermark int64
}

// Upload is a prepared request body.
type Upload struct {
	Body          io.ReadCloser
	ContentLength int64
	State         *State
	Pipeline      Pipeline
	// Buffered is set when the source was read into memory.
	Buffered bool

	source   io.Reader
	closer   io.Closer
	verify   bool
	supplied []byte
}

// PrepareUpload wraps body for sending. With an unknown length the length is
// taken from an io.Seeker, or the body is buffered up to MaxUploadBuffer.
func PrepareUpload(body io.Reader, opts UploadOptions) (*Upload, error) {
	if body == nil {
		body = bytes.NewReader(nil)
		opts.ContentLength = 0
	}

	u := &Upload{source: body, ContentLength: opts.ContentLength}
	if c, ok := body.(io.Closer); ok {
		u.closer = c
	}
	if opts.ContentMD5 != "" {
		d, err := ParseContentMD5(opts.ContentMD5)
		if err != nil {
			return nil, err
		}
		u.supplied = d
	}

	if u.ContentLength < 0 {
		if err := u.resolveLength(); err != nil {
			return nil, err
		}
	}

	u.State = newState(ModeUpload, u.ContentLength, u.supplied)
	u.verify = !opts.DisableIntegrity && opts.CustomerKeyAlgorithm == "" &&
		opts.ServerSideEncryption != "aws:kms" && opts.ServerSideEncryption != "aws:kms:dsse"

	stages := []Stage{&LengthEnforceStage{State: u.State}}
	if u.supplied == nil && !opts.DisableIntegrity {
		stages = append(stages, &DigestComputeStage{State: u.State})
	}
	if ps := NewProgressStage(opts.Listener, opts.Watermark); ps != nil {
		stages = append(stages, ps)
	}

	u.Pipeline = NewPipeline(stages...)
	u.Body = u.Pipeline.Wrap(io.NopCloser(u.source))
	return u, nil
}

func (u *Upload) resolveLength() error {
	if seeker, ok := u.source.(io.Seeker); ok {
		cur, err := seeker.Seek(0, io.SeekCurrent)
		if err != nil {
			return errors.NewError(errors.ErrCodeLengthMismatch, "determine body length").
				WithComponent("integrity").WithCause(err)
		}
		end, err := seeker.Seek(0, io.SeekEnd)
		if err != nil {
			return errors.NewError(errors.ErrCodeLengthMismatch, "determine body length").
				WithComponent("integrity").WithCause(err)
		}
		if _, err := seeker.Seek(cur, io.SeekStart); err != nil {
			return errors.NewError(errors.ErrCodeLengthMismatch, "rewind body").
				WithComponent("integrity").WithCause(err)
		}
		u.ContentLength = end - cur
		return nil
	}

	buf, err := io.ReadAll(io.LimitReader(u.source, MaxUploadBuffer+1))
	if err != nil {
		return errors.NewError(errors.ErrCodeUploadBufferLimit, "buffer request body").
			WithComponent("integrity").WithCause(err)
	}
	if len(buf) > MaxUploadBuffer {
		return errors.Newf(errors.ErrCodeUploadBufferLimit,
			"body of unknown length exceeds the %s in-memory limit; declare a content length or pass a seekable body",
			humanize.IBytes(MaxUploadBuffer)).
			WithComponent("integrity").
			WithDetail("limit", MaxUploadBuffer)
	}
	u.source = bytes.NewReader(buf)
	u.ContentLength = int64(len(buf))
	u.Buffered = true
	return nil
}

// ContentMD5 returns the base64 digest to send as Content-MD5, empty when
// the caller supplied none.
func (u *Upload) ContentMD5() string {
	if u.supplied == nil {
		return ""
	}
	return base64.StdEncoding.EncodeToString(u.supplied)
}

// Digest returns the digest the service should report: the supplied one,
// or the computed one once the body was fully sent.
func (u *Upload) Digest() ([]byte, bool) {
	if u.supplied != nil {
		return u.supplied, true
	}
	if u.State.Exhausted && u.State.ComputedDigest != nil {
		return u.State.ComputedDigest, true
	}
	return nil, false
}

// VerifyServerDigest compares the tag returned by the service with the
// digest of what was sent. A mismatch is an integrity error and must not be
// retried by the caller.
func (u *Upload) VerifyServerDigest(etag string) error {
	if !u.verify {
		return nil
	}
	server, ok := ParseDigest(etag)
	if !ok {
		// composite or non-MD5 tags carry nothing to compare
		return nil
	}
	local, ok := u.Digest()
	if !ok {
		return errors.NewError(errors.ErrCodeDigestMismatch, "body was not fully sent; digest unavailable").
			WithComponent("integrity").
			WithOperation(ModeUpload.String()).
			WithDetail("sent", u.State.BytesRead)
	}
	if !digestEqual(local, server) {
		return digestMismatch(ModeUpload.String(), server, local)
	}
	return nil
}

// Close closes the wrapped body and the source when it is closable.
func (u *Upload) Close() error {
	var result *multierror.Error
	if err := u.Body.Close(); err != nil {
		result = multierror.Append(result, fmt.Errorf("close upload body: %w", err))
	}
	if u.closer != nil {
		if err := u.closer.Close(); err != nil {
			result = multierror.Append(result, fmt.Errorf("close upload source: %w", err))
		}
	}
	return result.ErrorOrNil()
}
