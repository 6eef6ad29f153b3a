package catalog

import (
	"encoding/binary"
	"fmt"
	"math"
)

// Secondary index entries live under their own reserved prefix, keyed by
// an order-preserving encoding of the indexed value followed by the row's
// rowid (for uniqueness across duplicate values). The entry's stored value
// is empty; its existence and its key's rowid suffix are all an index scan
// needs to fetch matching rows from the table.
const indexEntryPrefix = "__index__"

func indexEntryKeyPrefix(indexName string) string {
	return indexEntryPrefix + indexName + ":"
}

// IndexPrefix returns the key prefix covering every entry of indexName,
// regardless of value, for range scans that need to bound only one side.
func IndexPrefix(indexName string) string {
	return indexEntryKeyPrefix(indexName)
}

// MinRowidSuffix and MaxRowidSuffix bound the rowid portion of an index
// entry key; callers building custom range scans (non-equality
// comparisons) pair one of these with an encoded value to get an
// inclusive or exclusive edge.
const (
	MinRowidSuffix = zeros
	MaxRowidSuffix = nines
)

// IndexEntryKey builds the key under which index indexName records value
// for the row rowid.
func IndexEntryKey(indexName string, colType ColType, value string, rowid uint64) (string, error) {
	enc, err := EncodeIndexValue(colType, value)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%s%s:%020d", indexEntryKeyPrefix(indexName), enc, rowid), nil
}

// IndexScanBounds returns the inclusive [lo, hi] key range covering every
// index entry for indexName whose encoded value equals value.
func IndexScanBounds(indexName string, colType ColType, value string) (lo, hi string, err error) {
	enc, err := EncodeIndexValue(colType, value)
	if err != nil {
		return "", "", err
	}
	base := indexEntryKeyPrefix(indexName) + enc
	return base + ":" + zeros, base + ":" + nines, nil
}

const (
	zeros = "00000000000000000000"
	nines = "99999999999999999999"
)

// RowidFromIndexKey extracts the trailing zero-padded rowid from an index
// entry key produced by IndexEntryKey.
func RowidFromIndexKey(key string) (uint64, error) {
	if len(key) < 20 {
		return 0, fmt.Errorf("index key too short: %q", key)
	}
	var rowid uint64
	_, err := fmt.Sscanf(key[len(key)-20:], "%020d", &rowid)
	return rowid, err
}

// EncodeIndexValue renders value in the type's order-preserving byte
// encoding as a hex string, so it contains no ':' and composes with the
// ':'-delimited key format above. INT and FLOAT encode to a fixed 16 hex
// digits; TEXT encodes to the hex of its bytes, whose length varies, so a
// TEXT value that is a prefix of another does not sort before it once the
// ':' separator follows.
func EncodeIndexValue(colType ColType, value string) (string, error) {
	switch colType {
	case TypeInt:
		var i int64
		if _, err := fmt.Sscanf(value, "%d", &i); err != nil {
			return "", fmt.Errorf("encode index value %q as INT: %w", value, err)
		}
		var buf [8]byte
		binary.BigEndian.PutUint64(buf[:], uint64(i)+(1<<63))
		return fmt.Sprintf("%x", buf[:]), nil

	case TypeFloat:
		var f float64
		if _, err := fmt.Sscanf(value, "%g", &f); err != nil {
			return "", fmt.Errorf("encode index value %q as FLOAT: %w", value, err)
		}
		bits := math.Float64bits(f)
		if f >= 0 {
			bits ^= 1 << 63
		} else {
			bits = ^bits
		}
		var buf [8]byte
		binary.BigEndian.PutUint64(buf[:], bits)
		return fmt.Sprintf("%x", buf[:]), nil

	case TypeText:
		return fmt.Sprintf("%x", []byte(value)), nil

	default:
		return "", fmt.Errorf("unsupported index column type %q", colType)
	}
}
