package eventstore

import (
	"bufio"
	"encoding/csv"
	"io"
)

// NewReader returns a csv.Reader that keeps "\r\n" inside quoted fields.
// encoding/csv folds every physical "\r\n" into "\n", so within quotes each
// such CR is doubled beforehand and the fold restores the original bytes.
// Record terminators outside quotes are left alone and read as usual.
func NewReader(r io.Reader) *csv.Reader {
	cr := csv.NewReader(&quotedCRLF{r: bufio.NewReader(r)})
	cr.FieldsPerRecord = -1
	return cr
}

type quotedCRLF struct {
	r        *bufio.Reader
	inQuotes bool
	extraCR  bool
}

func (q *quotedCRLF) Read(p []byte) (int, error) {
	n := 0
	for n < len(p) {
		if q.extraCR {
			p[n] = '\r'
			n++
			q.extraCR = false
			continue
		}
		b, err := q.r.ReadByte()
		if err != nil {
			if n > 0 {
				return n, nil
			}
			return 0, err
		}
		switch b {
		case '"':
			// A doubled quote toggles twice and leaves the state unchanged.
			q.inQuotes = !q.inQuotes
		case '\r':
			if q.inQuotes {
				if next, err := q.r.Peek(1); err == nil && next[0] == '\n' {
					q.extraCR = true
				}
			}
		}
		p[n] = b
		n++
	}
	return n, nil
}
