package multipart

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/dustin/go-humanize"

	"github.com/objectfs/objclient/pkg/errors"
)

// MaxParts is the largest part number the service accepts.
const MaxParts = 10000

// Part is one uploaded part of a multipart upload. Size is zero when unknown.
type Part struct {
	PartNumber   int       `json:"part_number"`
	Size         int64     `json:"size"`
	ETag         string    `json:"etag"`
	LastModified time.Time `json:"last_modified"`
}

// Upload tracks the acknowledged parts of one multipart upload until completion.
type Upload struct {
	mu        sync.Mutex
	UploadID  string        `json:"upload_id"`
	Bucket    string        `json:"bucket"`
	Key       string        `json:"key"`
	Parts     map[int]*Part `json:"parts"`
	StartedAt time.Time     `json:"started_at"`
}

// NewUpload starts tracking an upload.
func NewUpload(bucket, key, uploadID string) *Upload {
	return &Upload{
		UploadID:  uploadID,
		Bucket:    bucket,
		Key:       key,
		Parts:     make(map[int]*Part),
		StartedAt: time.Now(),
	}
}

// MarkPartCompleted records a part the service acknowledged. Recording the
// same part number twice is allowed only with the same etag.
func (u *Upload) MarkPartCompleted(p Part) error {
	u.mu.Lock()
	defer u.mu.Unlock()

	if prev, ok := u.Parts[p.PartNumber]; ok && prev.ETag != p.ETag {
		return errors.Newf(errors.ErrCodeInvalidConfig,
			"part %d recorded with etags %s and %s", p.PartNumber, prev.ETag, p.ETag).
			WithComponent("multipart").
			WithContext("upload_id", u.UploadID)
	}
	p.LastModified = time.Now()
	u.Parts[p.PartNumber] = &p
	return nil
}

// Len returns the number of acknowledged parts.
func (u *Upload) Len() int {
	u.mu.Lock()
	defer u.mu.Unlock()
	return len(u.Parts)
}

// CompletedParts returns the acknowledged parts ordered by part number.
func (u *Upload) CompletedParts() []types.CompletedPart {
	u.mu.Lock()
	defer u.mu.Unlock()

	numbers := make([]int, 0, len(u.Parts))
	for n := range u.Parts {
		numbers = append(numbers, n)
	}
	sort.Ints(numbers)

	parts := make([]types.CompletedPart, 0, len(numbers))
	for _, n := range numbers {
		parts = append(parts, types.CompletedPart{
			PartNumber: aws.Int32(int32(n)),
			ETag:       aws.String(u.Parts[n].ETag),
		})
	}
	return parts
}

// BytesUploaded sums the known sizes of acknowledged parts.
func (u *Upload) BytesUploaded() int64 {
	u.mu.Lock()
	defer u.mu.Unlock()

	var total int64
	for _, p := range u.Parts {
		total += p.Size
	}
	return total
}

// Request builds the completion request for the acknowledged parts.
func (u *Upload) Request() *Request {
	return &Request{
		Bucket:   u.Bucket,
		Key:      u.Key,
		UploadID: u.UploadID,
		Parts:    u.CompletedParts(),
	}
}

// CheckPartCount fails unless the upload holds exactly the number of parts
// of partSize needed to cover objectSize.
func (u *Upload) CheckPartCount(objectSize, partSize int64) error {
	want := CalculatePartCount(objectSize, partSize)
	if got := u.Len(); got != want {
		return errors.Newf(errors.ErrCodeInvalidConfig,
			"%s in parts of %s needs %d parts, have %d",
			humanize.IBytes(uint64(objectSize)), humanize.IBytes(uint64(partSize)), want, got).
			WithComponent("multipart").
			WithContext("upload_id", u.UploadID)
	}
	return nil
}

// CalculatePartCount returns how many parts of chunkSize cover totalSize.
func CalculatePartCount(totalSize, chunkSize int64) int {
	if chunkSize <= 0 || totalSize <= 0 {
		return 0
	}
	return int((totalSize + chunkSize - 1) / chunkSize)
}

// ParsePart parses "NUMBER:ETAG[:SIZE]" as written on the command line.
// SIZE accepts humanized values such as 5MiB.
func ParsePart(s string) (Part, error) {
	fields := strings.SplitN(s, ":", 3)
	if len(fields) < 2 || fields[1] == "" {
		return Part{}, fmt.Errorf("part %q: want NUMBER:ETAG[:SIZE]", s)
	}
	n, err := strconv.Atoi(fields[0])
	if err != nil || n < 1 || n > MaxParts {
		return Part{}, fmt.Errorf("part %q: part number must be between 1 and %d", s, MaxParts)
	}
	p := Part{PartNumber: n, ETag: fields[1]}
	if len(fields) == 3 {
		size, err := humanize.ParseBytes(fields[2])
		if err != nil {
			return Part{}, fmt.Errorf("part %q: size: %w", s, err)
		}
		p.Size = int64(size)
	}
	return p, nil
}
