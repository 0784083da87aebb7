package transfer

import (
	"bufio"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"

	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"

	"github.com/leapstack-labs/dbbrowser/internal/gateway"
)

// ParseCSV reads a comma-separated document. Quoted fields may contain
// commas, doubled quotes and line breaks; a CRLF inside quotes is kept as
// written. A leading UTF-8 byte order mark is dropped, blank lines are
// skipped and rows may differ in width; width is checked on import, not
// here.
func ParseCSV(r io.Reader) ([][]string, error) {
	cr := csv.NewReader(transform.NewReader(r, transform.Chain(
		unicode.BOMOverride(unicode.UTF8.NewDecoder()),
		&quotedCRLF{},
	)))
	cr.FieldsPerRecord = -1
	cr.LazyQuotes = true

	var doc [][]string
	for {
		record, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("parse csv: %w", err)
		}
		if len(record) == 1 && strings.TrimSpace(record[0]) == "" {
			continue
		}
		doc = append(doc, record)
	}
	return doc, nil
}

// WriteCSV writes a header line followed by one line per row, each ended
// by "\n". NULL values are written as empty fields.
func WriteCSV(w io.Writer, columns []string, rows [][]any) error {
	bw := bufio.NewWriter(w)
	writeRecord(bw, columns)
	fields := make([]string, len(columns))
	for _, row := range rows {
		fields = fields[:0]
		for _, v := range row {
			fields = append(fields, gateway.FormatValue(v))
		}
		writeRecord(bw, fields)
	}
	return bw.Flush()
}

func writeRecord(w *bufio.Writer, fields []string) {
	for i, f := range fields {
		if i > 0 {
			w.WriteByte(',')
		}
		if strings.ContainsAny(f, ",\"\r\n") {
			w.WriteByte('"')
			w.WriteString(strings.ReplaceAll(f, `"`, `""`))
			w.WriteByte('"')
			continue
		}
		w.WriteString(f)
	}
	w.WriteByte('\n')
}

// quotedCRLF doubles the CR of every CRLF inside a quoted field.
// encoding/csv folds a CRLF ending a physical line into LF, so "\r\r\n"
// reads back as the "\r\n" that was written.
type quotedCRLF struct {
	state csvState
}

type csvState int

const (
	fieldStart csvState = iota
	unquoted
	quoted
	closed // just after a closing quote; another quote reopens it
)

func (q *quotedCRLF) Reset() { q.state = fieldStart }

func (q *quotedCRLF) Transform(dst, src []byte, atEOF bool) (nDst, nSrc int, err error) {
	for nSrc < len(src) {
		c := src[nSrc]
		out := 1
		if q.state == quoted && c == '\r' {
			if nSrc+1 == len(src) && !atEOF {
				return nDst, nSrc, transform.ErrShortSrc
			}
			if nSrc+1 < len(src) && src[nSrc+1] == '\n' {
				out = 2
			}
		}
		if nDst+out > len(dst) {
			return nDst, nSrc, transform.ErrShortDst
		}
		for range out {
			dst[nDst] = c
			nDst++
		}
		nSrc++
		q.step(c)
	}
	return nDst, nSrc, nil
}

func (q *quotedCRLF) step(c byte) {
	switch q.state {
	case quoted:
		if c == '"' {
			q.state = closed
		}
	case closed:
		switch c {
		case '"':
			q.state = quoted
		case ',', '\n':
			q.state = fieldStart
		default:
			q.state = unquoted
		}
	case fieldStart:
		switch c {
		case '"':
			q.state = quoted
		case ',', '\n':
		default:
			q.state = unquoted
		}
	default:
		if c == ',' || c == '\n' {
			q.state = fieldStart
		}
	}
}

// stripBOM decodes r as UTF-8, dropping a leading byte order mark. Invalid
// sequences become U+FFFD.
func stripBOM(r io.Reader) io.Reader {
	return transform.NewReader(r, unicode.BOMOverride(unicode.UTF8.NewDecoder()))
}
