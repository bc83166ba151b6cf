package csvcodec

import (
	"bufio"
	"io"
)

const defaultBufferSize = 4 << 10

// cursor reads runes from a buffered source with unlimited push-back.
// It is owned by a single tokenizer and is not safe for concurrent use.
type cursor struct {
	src    *bufio.Reader
	pushed []rune // stack; the last element is returned next
	err    error  // sticky read error, including io.EOF
}

func newCursor(r io.Reader) *cursor {
	br, ok := r.(*bufio.Reader)
	if !ok {
		br = bufio.NewReaderSize(r, defaultBufferSize)
	}
	return &cursor{src: br}
}

// next consumes one rune. It returns io.EOF at end of input and a KindIO
// error for any other read failure.
func (c *cursor) next() (rune, error) {
	if n := len(c.pushed); n > 0 {
		r := c.pushed[n-1]
		c.pushed = c.pushed[:n-1]
		return r, nil
	}
	if c.err != nil {
		return 0, c.err
	}
	r, _, err := c.src.ReadRune()
	if err != nil {
		if err != io.EOF {
			err = ioError(err)
		}
		c.err = err
		return 0, err
	}
	return r, nil
}

// peek returns the next rune without consuming it.
func (c *cursor) peek() (rune, error) {
	r, err := c.next()
	if err != nil {
		return 0, err
	}
	c.unread(r)
	return r, nil
}

// unread pushes rs back so that the following next calls return them in order.
func (c *cursor) unread(rs ...rune) {
	for i := len(rs) - 1; i >= 0; i-- {
		c.pushed = append(c.pushed, rs[i])
	}
}

// match consumes want if the input continues with it. Otherwise nothing is
// consumed. Read failures other than io.EOF are returned.
func (c *cursor) match(want []rune) (bool, error) {
	got := make([]rune, 0, len(want))
	for _, w := range want {
		r, err := c.next()
		if err == io.EOF || (err == nil && r != w) {
			if err == nil {
				got = append(got, r)
			}
			c.unread(got...)
			return false, nil
		}
		if err != nil {
			c.unread(got...)
			return false, err
		}
		got = append(got, r)
	}
	return true, nil
}
