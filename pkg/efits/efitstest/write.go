// Package efitstest writes small FITS files for tests.
package efitstest

import(
	"bytes"
	"encoding/binary"
	"fmt"
	"math"
	"os"
	"strings"
)

const blockSize = 2880

// Card formats one 80 column header record.
func Card(key, value string) string {
	return fmt.Sprintf("%-8s= %20s%50s", key, value, "")
}

func pad(buf *bytes.Buffer, fill byte) {
	for buf.Len()%blockSize != 0 {
		buf.WriteByte(fill)
	}
}

// Header builds a primary header for a BITPIX -64 image with the given axes.
func Header(axes []int, extra ...string) []byte {
	buf := bytes.Buffer{}
	buf.WriteString(Card("SIMPLE", "T"))
	buf.WriteString(Card("BITPIX", "-64"))
	buf.WriteString(Card("NAXIS", fmt.Sprintf("%d", len(axes))))
	for i, n := range axes {
		buf.WriteString(Card(fmt.Sprintf("NAXIS%d", i+1), fmt.Sprintf("%d", n)))
	}
	for _, e := range extra {
		buf.WriteString(fmt.Sprintf("%-80s", e))
	}
	buf.WriteString(fmt.Sprintf("%-80s", "END"))
	pad(&buf, ' ')
	return buf.Bytes()
}

// Encode returns a complete FITS file; data is in file order (NAXIS1 fastest).
func Encode(axes []int, data []float64) []byte {
	buf := bytes.Buffer{}
	buf.Write(Header(axes))
	for _, v := range data {
		binary.Write(&buf, binary.BigEndian, math.Float64bits(v))
	}
	pad(&buf, 0)
	return buf.Bytes()
}

func WriteFile(filename string, axes []int, data []float64) error {
	return os.WriteFile(filename, Encode(axes, data), 0644)
}

// Flat is a w x h image with every pixel set to v.
func Flat(w, h int, v float64) []float64 {
	data := make([]float64, w*h)
	for i := range data {
		data[i] = v
	}
	return data
}

// Encode16 writes a BITPIX 16 image with BZERO/BSCALE cards, the usual way
// cameras store unsigned 16 bit data.
func Encode16(axes []int, data []int16, bzero, bscale float64) []byte {
	buf := bytes.Buffer{}
	hdr := string(Header(axes, Card("BZERO", fmt.Sprintf("%g", bzero)), Card("BSCALE", fmt.Sprintf("%g", bscale))))
	buf.WriteString(strings.Replace(hdr, Card("BITPIX", "-64"), Card("BITPIX", "16"), 1))
	for _, v := range data {
		binary.Write(&buf, binary.BigEndian, v)
	}
	pad(&buf, 0)
	return buf.Bytes()
}
