package replcore

import (
	"fmt"
	"strings"
)

// maxCapturedChars is the per-turn ceiling on captured output before
// head+tail truncation kicks in (§6 Size limits).
const maxCapturedChars = 20000

// captureHeadKeep and captureTailKeep are how many characters of an
// overflowing buffer are kept from its start and from its end (18000 in
// all, below the maxCapturedChars threshold).
const (
	captureHeadKeep = 12000
	captureTailKeep = 6000
)

// Capture accumulates stdout/stderr written by a running script into one
// buffer — per the original Python runtime, stdout and stderr share a
// single stream and cannot be told apart after the fact (see Open
// Questions, §9b). It is not safe for concurrent writes from more than one
// goroutine; the interpreter serializes writes onto it per-turn.
type Capture struct {
	buf strings.Builder
}

// NewCapture returns an empty capture buffer.
func NewCapture() *Capture {
	return &Capture{}
}

// Write implements io.Writer so Capture can be plugged in wherever the
// interpreter's print/display hook wants a sink.
func (c *Capture) Write(p []byte) (int, error) {
	return c.buf.Write(p)
}

// WriteString appends s directly, avoiding a []byte copy for the common
// case of printing a string value.
func (c *Capture) WriteString(s string) {
	c.buf.WriteString(s)
}

// Len reports the number of raw bytes captured so far, before truncation.
func (c *Capture) Len() int {
	return c.buf.Len()
}

// Finalize returns the captured output, truncated with a head+tail keep
// and an "N chars omitted" banner when it exceeds maxCapturedChars.
func (c *Capture) Finalize() string {
	return truncateHeadTail(c.buf.String(), maxCapturedChars, captureHeadKeep, captureTailKeep)
}

// truncateHeadTail is the banner-truncation routine Finalize applies to
// captured output (§6). done/say message payloads are truncated separately
// by the interp package.
func truncateHeadTail(s string, limit, headKeep, tailKeep int) string {
	if len(s) <= limit {
		return s
	}
	omitted := len(s) - headKeep - tailKeep
	head := s[:headKeep]
	tail := s[len(s)-tailKeep:]
	banner := fmt.Sprintf("\n... [%d chars omitted, original length %d] ...\n", omitted, len(s))
	return head + banner + tail
}
