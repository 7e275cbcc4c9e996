package plotfile

import (
	"bufio"
	"encoding/binary"
	"io"
	"math"
	"strconv"
	"strings"
)

// maximum length of a FAB record header line
const maxRecordHeader = 4096

// RecordLayout describes one box record in a binary file: spatial shape, field
// count and the offset of the first value. The F field blocks follow each other,
// every block holding prod(Shape) doubles in column-major order.
type RecordLayout struct {
	DataOffset int64
	Shape      []int
	NFields    int
	Order      binary.ByteOrder
}

// Cells returns the number of cells in one field block.
func (rl RecordLayout) Cells() int {
	n := 1
	for _, s := range rl.Shape {
		n *= s
	}
	return n
}

// BlockSize is the byte size of one field block.
func (rl RecordLayout) BlockSize() int64 {
	return int64(rl.Cells()) * 8
}

// ParseRecordShape parses a FAB record header line such as
//
//	FAB ((8, (64 11 52 0 1 12 0 1023)),(8, (8 7 6 5 4 3 2 1)))((0,0,0) (15,15,15) (0,0,0)) 2
//
// returning the spatial shape (hi - lo + 1 per axis), the field count and the
// byte order of the values.
func ParseRecordShape(line string) (shape []int, nfields int, order binary.ByteOrder, err error) {
	line = strings.TrimSpace(line)
	split := strings.LastIndex(line, "((")
	if !strings.HasPrefix(line, "FAB") || split < 0 {
		return nil, 0, nil, formatErrorf("record header", 0, "not a FAB header: %q", line)
	}
	tokens := strings.Fields(line[split:])
	if len(tokens) != 4 {
		return nil, 0, nil, formatErrorf("record header", 0, "malformed box in FAB header: %q", line)
	}
	lo, err1 := parseIntTuple(tokens[0])
	hi, err2 := parseIntTuple(tokens[1])
	nf, err3 := strconv.Atoi(tokens[3])
	if err1 != nil || err2 != nil || err3 != nil || len(lo) != len(hi) {
		return nil, 0, nil, formatErrorf("record header", 0, "malformed box in FAB header: %q", line)
	}
	if nf < 1 {
		return nil, 0, nil, formatErrorf("record header", 0, "FAB header declares %d fields: %q", nf, line)
	}
	shape = make([]int, len(lo))
	size := int64(8 * nf)
	for d := range lo {
		shape[d] = hi[d] - lo[d] + 1
		if shape[d] < 1 {
			return nil, 0, nil, formatErrorf("record header", 0, "empty box in FAB header: %q", line)
		}
		if size > math.MaxInt64/int64(shape[d]) {
			return nil, 0, nil, formatErrorf("record header", 0, "FAB record too large: %q", line)
		}
		size *= int64(shape[d])
	}
	return shape, nf, recordByteOrder(line[:split]), nil
}

// recordByteOrder reads the byte order tuple of the real descriptor, an
// ascending order is big endian. Anything unreadable falls back to little endian.
func recordByteOrder(descriptor string) binary.ByteOrder {
	end := strings.LastIndex(descriptor, ")))")
	if end < 0 {
		return binary.LittleEndian
	}
	start := strings.LastIndex(descriptor[:end], "(")
	if start < 0 {
		return binary.LittleEndian
	}
	digits := strings.Fields(descriptor[start+1 : end])
	if len(digits) < 2 {
		return binary.LittleEndian
	}
	first, err1 := strconv.Atoi(digits[0])
	last, err2 := strconv.Atoi(digits[len(digits)-1])
	if err1 == nil && err2 == nil && first < last {
		return binary.BigEndian
	}
	return binary.LittleEndian
}

// ReadRecordLayout reads the record header found at offset.
func ReadRecordLayout(r io.ReaderAt, file string, offset int64) (RecordLayout, error) {
	br := bufio.NewReader(io.NewSectionReader(r, offset, maxRecordHeader))
	line, err := br.ReadString('\n')
	if err != nil {
		return RecordLayout{}, formatErrorf(file, 0, "reading record header at offset %d: %v", offset, err)
	}
	shape, nf, order, err := ParseRecordShape(line)
	if err != nil {
		return RecordLayout{}, formatErrorf(file, 0, "record at offset %d: %v", offset, err)
	}
	return RecordLayout{
		DataOffset: offset + int64(len(line)),
		Shape:      shape,
		NFields:    nf,
		Order:      order,
	}, nil
}
