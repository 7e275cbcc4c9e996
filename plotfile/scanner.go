package plotfile

import (
	"bufio"
	"io"
	"strconv"
	"strings"
)

// Cell_H min/max rows hold one value per field and can get long
const maxLineSize = 64 * 1024 * 1024

// lineScanner reads a header one line at a time and keeps track of the line
// number so that format errors point at the offending line.
type lineScanner struct {
	scanner *bufio.Scanner
	file    string
	line    int
}

func newLineScanner(r io.Reader, file string) *lineScanner {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), maxLineSize)
	return &lineScanner{scanner: sc, file: file}
}

func (ls *lineScanner) errorf(format string, args ...interface{}) error {
	return formatErrorf(ls.file, ls.line, format, args...)
}

// next returns the following line without its line terminator.
func (ls *lineScanner) next() (string, error) {
	if !ls.scanner.Scan() {
		if err := ls.scanner.Err(); err != nil {
			return "", formatErrorf(ls.file, ls.line+1, "%v", err)
		}
		return "", formatErrorf(ls.file, ls.line+1, "unexpected end of file")
	}
	ls.line++
	return strings.TrimRight(ls.scanner.Text(), "\r"), nil
}

func (ls *lineScanner) skip(n int) error {
	for i := 0; i < n; i++ {
		if _, err := ls.next(); err != nil {
			return err
		}
	}
	return nil
}

func (ls *lineScanner) nextInt() (int, error) {
	line, err := ls.next()
	if err != nil {
		return 0, err
	}
	v, err := strconv.Atoi(strings.TrimSpace(line))
	if err != nil {
		return 0, ls.errorf("expected an integer, got %q", line)
	}
	return v, nil
}

func (ls *lineScanner) nextFloat() (float64, error) {
	line, err := ls.next()
	if err != nil {
		return 0, err
	}
	v, err := strconv.ParseFloat(strings.TrimSpace(line), 64)
	if err != nil {
		return 0, ls.errorf("expected a real number, got %q", line)
	}
	return v, nil
}

func (ls *lineScanner) nextInts() ([]int, error) {
	line, err := ls.next()
	if err != nil {
		return nil, err
	}
	fields := strings.Fields(line)
	vals := make([]int, len(fields))
	for i, f := range fields {
		if vals[i], err = strconv.Atoi(f); err != nil {
			return nil, ls.errorf("expected integers, got %q", line)
		}
	}
	return vals, nil
}

func (ls *lineScanner) nextFloats() ([]float64, error) {
	line, err := ls.next()
	if err != nil {
		return nil, err
	}
	return ls.parseFloats(line, strings.Fields(line))
}

// nextCSVFloats parses a comma separated row, the token following the
// trailing comma is dropped.
func (ls *lineScanner) nextCSVFloats() ([]float64, error) {
	line, err := ls.next()
	if err != nil {
		return nil, err
	}
	tokens := strings.Split(line, ",")
	return ls.parseFloats(line, tokens[:len(tokens)-1])
}

func (ls *lineScanner) parseFloats(line string, tokens []string) (vals []float64, err error) {
	vals = make([]float64, len(tokens))
	for i, f := range tokens {
		if vals[i], err = strconv.ParseFloat(strings.TrimSpace(f), 64); err != nil {
			return nil, ls.errorf("expected real numbers, got %q", line)
		}
	}
	return
}

// parseIntTuple parses "(1,2,3)" and the partial forms "((1,2,3)" and
// "(1,2,3))" found at the ends of index triples.
func parseIntTuple(tok string) ([]int, error) {
	tok = strings.Trim(tok, "()")
	parts := strings.Split(tok, ",")
	vals := make([]int, len(parts))
	for i, p := range parts {
		v, err := strconv.Atoi(strings.TrimSpace(p))
		if err != nil {
			return nil, err
		}
		vals[i] = v
	}
	return vals, nil
}
