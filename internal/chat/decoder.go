package chat

import (
	"strings"
)

const (
	// dataPrefix starts every meaningful line in the event stream.
	dataPrefix = "data:"
	// doneSentinel ends the stream without carrying a payload.
	doneSentinel = "[DONE]"
)

// frameDecoder reassembles discrete data frames from a chunked byte stream.
// A frame may be split across two network reads, so the trailing incomplete
// line is buffered until the next chunk completes it.
type frameDecoder struct {
	partial string
	done    bool
}

// feed consumes one chunk and returns the payload of every complete data
// frame it contains, in arrival order. Blank lines and comment lines are
// dropped. Once the [DONE] sentinel is seen the decoder stops producing
// frames; the sentinel itself is never returned.
func (d *frameDecoder) feed(chunk []byte) []string {
	if d.done {
		return nil
	}

	buf := d.partial + string(chunk)
	lines := strings.Split(buf, "\n")
	// The final element is either an unterminated line or "" when the chunk
	// ended exactly on a newline. Either way it waits for the next read.
	d.partial = lines[len(lines)-1]
	lines = lines[:len(lines)-1]

	var frames []string
	for _, line := range lines {
		line = strings.TrimSuffix(line, "\r")
		if line == "" || strings.HasPrefix(line, ":") {
			continue
		}
		if !strings.HasPrefix(line, dataPrefix) {
			continue
		}
		payload := strings.TrimPrefix(strings.TrimPrefix(line, dataPrefix), " ")
		if payload == doneSentinel {
			d.done = true
			break
		}
		frames = append(frames, payload)
	}
	return frames
}

// finished reports whether the [DONE] sentinel has been seen.
func (d *frameDecoder) finished() bool {
	return d.done
}
