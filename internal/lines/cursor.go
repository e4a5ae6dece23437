package lines

import (
	"bytes"
	"iter"
)

// trailingSpace is trimmed from lines of multi-line ranges.
const trailingSpace = " \t\r\n\v\f"

// Cursor is a one-shot, forward-only iterator over a range of lines.
//
// Nothing is read until the first call to Next. The start offset is
// resolved once; later lines are read sequentially from the data file. If a
// line cannot be read, Next returns false and Err reports the failure;
// lines returned before that remain valid. A Cursor cannot be rewound.
type Cursor struct {
	r         *Reader
	line      int
	remaining int
	strip     bool

	started bool
	pos     int64
	cur     []byte
	err     error
}

// Next advances to the next line.
func (c *Cursor) Next() bool {
	c.cur = nil
	if c.err != nil || c.remaining <= 0 {
		return false
	}
	if !c.started {
		c.started = true
		off, err := c.r.OffsetOf(c.line)
		if err != nil {
			c.err = err
			return false
		}
		c.pos = off
	}
	if err := c.r.EnsureDataOpen(); err != nil {
		c.err = err
		return false
	}

	line, next, err := c.r.readAt(c.line, c.pos)
	if err != nil {
		c.err = err
		return false
	}
	if c.strip {
		line = bytes.TrimRight(line, trailingSpace)
	}
	c.cur = bytes.Clone(line)
	c.pos = next
	c.line++
	c.remaining--
	c.r.metrics.RecordLines(1)
	return true
}

// Bytes returns the current line. The slice is a copy owned by the caller.
func (c *Cursor) Bytes() []byte {
	return c.cur
}

// Err returns the error that stopped iteration, if any.
func (c *Cursor) Err() error {
	return c.err
}

// All adapts the cursor for range-over-func. A failure is yielded as the
// final pair with a nil line.
func (c *Cursor) All() iter.Seq2[[]byte, error] {
	return func(yield func([]byte, error) bool) {
		for c.Next() {
			if !yield(c.Bytes(), nil) {
				return
			}
		}
		if err := c.Err(); err != nil {
			yield(nil, err)
		}
	}
}

// Collect drains the cursor. On failure it returns the lines read so far
// together with the error.
func (c *Cursor) Collect() ([][]byte, error) {
	var out [][]byte
	for c.Next() {
		out = append(out, c.Bytes())
	}
	return out, c.Err()
}
