package integrity

import (
	"crypto/md5"
	"hash"
	"io"

	"github.com/objectfs/objclient/internal/progress"
)

// Stage names.
const (
	StageProgress       = "progress"
	StageDigestValidate = "digest-validate"
	StageDigestCompute  = "digest-compute"
	StageLengthEnforce  = "length-enforce"
)

const md5Size = md5.Size

// ProgressStage reports bytes read through a tracker. Closing the stream
// before EOF reports Canceled; a read error reports Failed.
type ProgressStage struct {
	Tracker *progress.Tracker
}

// NewProgressStage returns a progress stage, or nil when l is nil.
func NewProgressStage(l progress.Listener, watermark int64) *ProgressStage {
	if l == nil {
		return nil
	}
	return &ProgressStage{Tracker: progress.NewTracker(l, watermark)}
}

func (s *ProgressStage) Name() string { return StageProgress }

func (s *ProgressStage) Wrap(in io.ReadCloser) io.ReadCloser {
	return &progressReader{in: in, tracker: s.Tracker}
}

type progressReader struct {
	in      io.ReadCloser
	tracker *progress.Tracker
}

func (r *progressReader) Read(p []byte) (int, error) {
	r.tracker.Start()
	n, err := r.in.Read(p)
	r.tracker.Transferred(int64(n))
	switch {
	case err == io.EOF:
		r.tracker.Complete()
	case err != nil:
		r.tracker.Fail(err)
	}
	return n, err
}

func (r *progressReader) Close() error {
	if !r.tracker.Done() {
		r.tracker.Cancel()
	}
	return r.in.Close()
}

// DigestValidateStage hashes the stream and, once it is exhausted, fails
// the final read when the digest differs from State.ExpectedDigest.
type DigestValidateStage struct {
	State *State
}

func (s *DigestValidateStage) Name() string { return StageDigestValidate }

func (s *DigestValidateStage) Wrap(in io.ReadCloser) io.ReadCloser {
	return &digestReader{in: in, state: s.State, hash: md5.New(), validate: true}
}

// DigestComputeStage hashes the stream incrementally and stores the digest
// in State.ComputedDigest at EOF.
type DigestComputeStage struct {
	State *State
}

func (s *DigestComputeStage) Name() string { return StageDigestCompute }

func (s *DigestComputeStage) Wrap(in io.ReadCloser) io.ReadCloser {
	return &digestReader{in: in, state: s.State, hash: md5.New()}
}

type digestReader struct {
	in       io.ReadCloser
	state    *State
	hash     hash.Hash
	validate bool
	failed   error
}

func (r *digestReader) Read(p []byte) (int, error) {
	if r.failed != nil {
		return 0, r.failed
	}
	n, err := r.in.Read(p)
	if n > 0 {
		r.hash.Write(p[:n])
	}
	if err != io.EOF {
		return n, err
	}

	r.state.ComputedDigest = r.hash.Sum(nil)
	r.state.Exhausted = true
	if r.validate && !digestEqual(r.state.ExpectedDigest, r.state.ComputedDigest) {
		r.failed = digestMismatch(r.state.Mode.String(), r.state.ExpectedDigest, r.state.ComputedDigest)
		return n, r.failed
	}
	return n, io.EOF
}

func (r *digestReader) Close() error {
	return r.in.Close()
}

// LengthEnforceStage fails as soon as more bytes than State.ExpectedLength
// are observed, or at EOF when fewer were.
type LengthEnforceStage struct {
	State *State
}

func (s *LengthEnforceStage) Name() string { return StageLengthEnforce }

func (s *LengthEnforceStage) Wrap(in io.ReadCloser) io.ReadCloser {
	return &lengthReader{in: in, state: s.State}
}

type lengthReader struct {
	in     io.ReadCloser
	state  *State
	failed error
}

func (r *lengthReader) Read(p []byte) (int, error) {
	if r.failed != nil {
		return 0, r.failed
	}
	n, err := r.in.Read(p)
	r.state.BytesRead += int64(n)
	expected := r.state.ExpectedLength

	if r.state.BytesRead > expected {
		r.failed = lengthMismatch(r.state.Mode.String(), expected, r.state.BytesRead, true)
		return n, r.failed
	}
	if err == io.EOF {
		r.state.Exhausted = true
		if r.state.BytesRead < expected {
			r.failed = lengthMismatch(r.state.Mode.String(), expected, r.state.BytesRead, false)
			return n, r.failed
		}
	}
	return n, err
}

func (r *lengthReader) Close() error {
	return r.in.Close()
}
