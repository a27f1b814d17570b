// Copyright (C) 2025 HighNCode (dev@highncode.io)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package stream

import "bytes"

// FrameDecoder reassembles protocol frames from arbitrary chunk reads.
//
// # Description
//
// The HTTP body delivers the stream in whatever chunk sizes the transport
// chooses, so a single frame may arrive split across reads and a single
// read may contain many frames. FrameDecoder buffers bytes until a line
// terminator arrives and only then emits the frame. Because buffering is
// byte-based, a multi-byte UTF-8 sequence split across chunks is
// reassembled before the frame is converted to a string.
//
// # Invariants
//
//   - A partial line is never emitted as a frame.
//   - Trailing bytes with no terminator at end of stream are discarded
//     by Flush, never emitted.
//
// # Limitations
//
//   - Not safe for concurrent use. Each stream gets its own decoder.
type FrameDecoder struct {
	buf       []byte
	discarded int
}

// NewFrameDecoder creates an empty decoder.
func NewFrameDecoder() *FrameDecoder {
	return &FrameDecoder{}
}

// Feed appends a chunk of stream bytes and returns all frames completed
// by it, in order. Lines are terminated by '\n'; a preceding '\r' is
// stripped. Frames may be empty strings (blank separator lines), which
// the parser skips.
func (d *FrameDecoder) Feed(chunk []byte) []string {
	if len(chunk) == 0 {
		return nil
	}
	d.buf = append(d.buf, chunk...)

	var frames []string
	for {
		i := bytes.IndexByte(d.buf, '\n')
		if i < 0 {
			break
		}
		line := d.buf[:i]
		if n := len(line); n > 0 && line[n-1] == '\r' {
			line = line[:n-1]
		}
		frames = append(frames, string(line))
		d.buf = d.buf[i+1:]
	}
	return frames
}

// Flush discards any buffered partial line and returns the number of
// bytes dropped. Call it once the stream has reached EOF: a frame
// without a terminator was cut off mid-write and cannot be trusted.
func (d *FrameDecoder) Flush() int {
	n := len(d.buf)
	d.buf = nil
	d.discarded += n
	return n
}

// Discarded returns the total number of bytes dropped by Flush calls.
func (d *FrameDecoder) Discarded() int {
	return d.discarded
}

// Pending returns the number of buffered bytes awaiting a terminator.
func (d *FrameDecoder) Pending() int {
	return len(d.buf)
}
