package main

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/johannesboyne/gofakes3"
	"github.com/johannesboyne/gofakes3/backend/s3mem"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/objectfs/objclient/pkg/errors"
)

const testBucket = "cli-bucket"

func setupEnv(t *testing.T) {
	t.Helper()
	t.Setenv("HOME", t.TempDir())
	t.Setenv("AWS_ACCESS_KEY_ID", "AKIDEXAMPLE")
	t.Setenv("AWS_SECRET_ACCESS_KEY", "secret")
	t.Setenv("OBJCLIENT_CONFIG", "")
}

func fakeServer(t *testing.T) string {
	t.Helper()
	backend := s3mem.New()
	require.NoError(t, backend.CreateBucket(testBucket))
	server := httptest.NewServer(gofakes3.New(backend).Server())
	t.Cleanup(server.Close)
	return server.URL
}

func run(t *testing.T, stdin string, args ...string) (string, string, error) {
	t.Helper()
	root := newRootCmd()
	var stdout, stderr bytes.Buffer
	root.SetOut(&stdout)
	root.SetErr(&stderr)
	root.SetIn(strings.NewReader(stdin))
	root.SetArgs(args)
	err := root.ExecuteContext(context.Background())
	return stdout.String(), stderr.String(), err
}

func TestPutGet(t *testing.T) {
	setupEnv(t)
	endpoint := fakeServer(t)
	dir := t.TempDir()

	src := filepath.Join(dir, "report.csv")
	content := bytes.Repeat([]byte("a,b,c\n"), 10000)
	require.NoError(t, os.WriteFile(src, content, 0600))

	common := []string{"--endpoint", endpoint, "--region", "us-east-1", "--prober", "none"}

	out, _, err := run(t, "", append([]string{"put", testBucket, "reports/2024/report.csv", src, "--content-type", "text/csv"}, common...)...)
	require.NoError(t, err)
	assert.Contains(t, out, "uploaded s3://cli-bucket/reports/2024/report.csv")
	assert.Contains(t, out, "verified")

	downloads := filepath.Join(dir, "downloads")
	require.NoError(t, os.Mkdir(downloads, 0750))
	out, _, err = run(t, "", append([]string{"get", testBucket, "reports/2024/report.csv", downloads, "--no-progress"}, common...)...)
	require.NoError(t, err)
	assert.Contains(t, out, "downloaded s3://cli-bucket/reports/2024/report.csv")

	got, err := os.ReadFile(filepath.Join(downloads, "reports", "2024", "report.csv"))
	require.NoError(t, err)
	assert.Equal(t, content, got)

	out, _, err = run(t, "", append([]string{"get", testBucket, "reports/2024/report.csv", "-", "--range", "bytes=0-5"}, common...)...)
	require.NoError(t, err)
	assert.Equal(t, "a,b,c\n", out)
}

func TestPutFromStdin(t *testing.T) {
	setupEnv(t)
	endpoint := fakeServer(t)
	common := []string{"--endpoint", endpoint, "--region", "us-east-1", "--prober", "none", "--no-progress"}

	_, _, err := run(t, "streamed body", append([]string{"put", testBucket, "stdin.txt", "-"}, common...)...)
	require.NoError(t, err)

	dest := filepath.Join(t.TempDir(), "out.txt")
	_, _, err = run(t, "", append([]string{"get", testBucket, "stdin.txt", dest}, common...)...)
	require.NoError(t, err)
	got, err := os.ReadFile(dest)
	require.NoError(t, err)
	assert.Equal(t, "streamed body", string(got))
}

func TestGetMissingObjectLeavesNoFile(t *testing.T) {
	setupEnv(t)
	endpoint := fakeServer(t)
	dest := filepath.Join(t.TempDir(), "missing.bin")

	_, _, err := run(t, "", "get", testBucket, "missing.bin", dest, "--endpoint", endpoint, "--prober", "none")
	require.Error(t, err)
	assert.NoFileExists(t, dest)
}

func TestPresign(t *testing.T) {
	setupEnv(t)

	out, errOut, err := run(t, "", "presign", "photos", "cat.jpg",
		"--endpoint", "s3.eu-west-1.amazonaws.com", "--region", "eu-west-1", "--expires", "10m")
	require.NoError(t, err)
	u := strings.TrimSpace(out)
	assert.True(t, strings.HasPrefix(u, "https://photos.s3.eu-west-1.amazonaws.com/cat.jpg?"), u)
	assert.Contains(t, u, "X-Amz-Signature=")
	assert.Contains(t, u, "X-Amz-Expires=600")
	assert.Contains(t, errOut, "signer: region-scoped\n")

	out, errOut, err = run(t, "", "presign", "photos", "cat.jpg", "--signer", "v2",
		"--endpoint", "s3.eu-west-1.amazonaws.com", "--region", "eu-west-1")
	require.NoError(t, err)
	assert.Contains(t, out, "Signature=")
	assert.Contains(t, out, "AWSAccessKeyId=AKIDEXAMPLE")
	assert.Contains(t, errOut, "signer: legacy\n")
}

func TestRegion(t *testing.T) {
	setupEnv(t)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Amz-Bucket-Region", "ap-southeast-2")
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	out, _, err := run(t, "", "region", "photos", "--endpoint", server.URL, "--prober", "header")
	require.NoError(t, err)
	assert.Equal(t, "ap-southeast-2\n", out)
}

func TestComplete_InvalidPart(t *testing.T) {
	setupEnv(t)
	_, _, err := run(t, "", "complete", "b", "k", "upload-1", "one:etag", "--prober", "none")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "part number")
}

func TestComplete_SendsTrackedPartsInOrder(t *testing.T) {
	setupEnv(t)
	var (
		mu     sync.Mutex
		bodies []string
	)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		mu.Lock()
		bodies = append(bodies, string(body))
		mu.Unlock()
		_, _ = io.WriteString(w, `<?xml version="1.0" encoding="UTF-8"?>
<CompleteMultipartUploadResult><Location>http://127.0.0.1/b/k</Location><Bucket>b</Bucket><Key>k</Key><ETag>"abc-2"</ETag></CompleteMultipartUploadResult>`)
	}))
	defer server.Close()
	common := []string{"--endpoint", server.URL, "--region", "us-east-1", "--prober", "none"}

	out, _, err := run(t, "", append([]string{"complete", "b", "k", "upload-1",
		`2:"etag-2":4MiB`, `1:"etag-1":6MiB`, "--object-size", "10MiB", "--part-size", "6MiB"}, common...)...)
	require.NoError(t, err)
	assert.Contains(t, out, `completed s3://b/k (etag "abc-2", 2 parts, 10 MiB)`)
	assert.Contains(t, out, "location: http://127.0.0.1/b/k")

	mu.Lock()
	require.Len(t, bodies, 1)
	body := bodies[0]
	mu.Unlock()
	first := strings.Index(body, "<PartNumber>1</PartNumber>")
	second := strings.Index(body, "<PartNumber>2</PartNumber>")
	require.True(t, first >= 0 && second >= 0, body)
	assert.Less(t, first, second)

	_, _, err = run(t, "", append([]string{"complete", "b", "k", "upload-1",
		`1:"etag-1"`, `2:"etag-2"`, "--object-size", "30MiB", "--part-size", "5MiB"}, common...)...)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "needs 6 parts, have 2")

	_, _, err = run(t, "", append([]string{"complete", "b", "k", "upload-1",
		`1:"etag-1"`, `1:"other"`}, common...)...)
	require.Error(t, err)
	assert.True(t, errors.HasCode(err, errors.ErrCodeInvalidConfig))

	mu.Lock()
	defer mu.Unlock()
	assert.Len(t, bodies, 1)
}

func TestConfigSaveAndLoad(t *testing.T) {
	setupEnv(t)
	dir := t.TempDir()
	path := filepath.Join(dir, "objclient.yaml")

	_, _, err := run(t, "", "config", "save", path, "--region", "eu-central-1", "--path-style")
	require.NoError(t, err)
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "eu-central-1")
	assert.NotContains(t, string(data), "AKIDEXAMPLE")

	// values from the saved file apply when it is passed with --config
	out, _, err := run(t, "", "presign", "photos", "k", "--config", path, "--endpoint", "s3.eu-central-1.amazonaws.com")
	require.NoError(t, err)
	assert.Contains(t, out, "https://s3.eu-central-1.amazonaws.com/photos/k?")
	assert.Contains(t, out, "eu-central-1%2Fs3%2Faws4_request")
}

func TestInvalidSigner(t *testing.T) {
	setupEnv(t)
	_, _, err := run(t, "", "presign", "b", "k", "--signer", "v3")
	require.Error(t, err)
	assert.True(t, errors.HasCode(err, errors.ErrCodeInvalidConfig))
}
