package main

import (
	"fmt"
	"io"
	"time"

	"github.com/schollz/progressbar/v3"

	"github.com/objectfs/objclient/internal/progress"
)

// barListener renders transfer events as a progress bar.
type barListener struct {
	bar *progressbar.ProgressBar
}

// newBarListener returns a listener drawing to out. A negative total
// renders a spinner.
func newBarListener(out io.Writer, description string, total int64) *barListener {
	bar := progressbar.NewOptions64(total,
		progressbar.OptionSetWriter(out),
		progressbar.OptionSetDescription(description),
		progressbar.OptionShowBytes(true),
		progressbar.OptionSetWidth(30),
		progressbar.OptionThrottle(65*time.Millisecond),
		progressbar.OptionSetPredictTime(false),
		progressbar.OptionOnCompletion(func() { fmt.Fprintln(out) }),
	)
	return &barListener{bar: bar}
}

func (l *barListener) ProgressChanged(e progress.Event) {
	switch e.Type {
	case progress.BytesTransferred:
		_ = l.bar.Add64(e.Bytes)
	case progress.Completed:
		_ = l.bar.Finish()
	case progress.Canceled, progress.Failed:
		_ = l.bar.Clear()
	}
}
