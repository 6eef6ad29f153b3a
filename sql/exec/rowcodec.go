package exec

import (
	"encoding/binary"
	"fmt"
	"math"

	"github.com/nainya/miniql/catalog"
)

func uint64FromFloat(f float64) uint64  { return math.Float64bits(f) }
func floatFromUint64(u uint64) float64  { return math.Float64frombits(u) }

const (
	tagInt  byte = 0
	tagFlt  byte = 1
	tagText byte = 2
)

// EncodeRow serializes vals into the stored row format: one byte type tag
// per value followed by its payload (8-byte big-endian int64/float64 bits,
// or a 4-byte length-prefixed string).
func EncodeRow(vals []Value) []byte {
	buf := make([]byte, 0, 16*len(vals))
	for _, v := range vals {
		switch v.Kind {
		case catalog.TypeInt:
			buf = append(buf, tagInt)
			var tmp [8]byte
			binary.BigEndian.PutUint64(tmp[:], uint64(v.I))
			buf = append(buf, tmp[:]...)
		case catalog.TypeFloat:
			buf = append(buf, tagFlt)
			var tmp [8]byte
			binary.BigEndian.PutUint64(tmp[:], uint64FromFloat(v.F))
			buf = append(buf, tmp[:]...)
		default:
			buf = append(buf, tagText)
			var lenBuf [4]byte
			binary.BigEndian.PutUint32(lenBuf[:], uint32(len(v.S)))
			buf = append(buf, lenBuf[:]...)
			buf = append(buf, v.S...)
		}
	}
	return buf
}

// DecodeRow parses a row encoded by EncodeRow. The caller is expected to
// know the column count in advance (from the catalog); decoding stops once
// the buffer is exhausted.
func DecodeRow(data []byte) ([]Value, error) {
	var vals []Value
	pos := 0
	for pos < len(data) {
		tag := data[pos]
		pos++
		switch tag {
		case tagInt:
			if pos+8 > len(data) {
				return nil, fmt.Errorf("truncated row: int value")
			}
			i := int64(binary.BigEndian.Uint64(data[pos : pos+8]))
			pos += 8
			vals = append(vals, IntValue(i))
		case tagFlt:
			if pos+8 > len(data) {
				return nil, fmt.Errorf("truncated row: float value")
			}
			f := floatFromUint64(binary.BigEndian.Uint64(data[pos : pos+8]))
			pos += 8
			vals = append(vals, FloatValue(f))
		case tagText:
			if pos+4 > len(data) {
				return nil, fmt.Errorf("truncated row: string length")
			}
			n := int(binary.BigEndian.Uint32(data[pos : pos+4]))
			pos += 4
			if pos+n > len(data) {
				return nil, fmt.Errorf("truncated row: string payload")
			}
			vals = append(vals, TextValue(string(data[pos:pos+n])))
			pos += n
		default:
			return nil, fmt.Errorf("unknown row value tag %d", tag)
		}
	}
	return vals, nil
}
