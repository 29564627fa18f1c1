package segment

import (
	"encoding/binary"
	"fmt"
	"hash/crc32"
)

// Wire format (version 1):
//
//	magic    [4]byte  "FMS1"
//	version  byte     1
//	txn_id   uint64   commit id this segment belongs to
//	count    uint32   number of records
//	records  count *  {key_len uvarint, key, op byte, value_len uvarint, value}
//	crc32    uint32   IEEE checksum over everything from magic through the
//	                  last record byte (i.e. everything but the crc32 itself)
//
// Segments are written once as complete objects, not appended to
// incrementally, so the whole-segment checksum covers every record in one
// pass rather than framing each record with its own trailer.
var magic = [4]byte{'F', 'M', 'S', '1'}

const formatVersion = 1

// ErrBadMagic is returned by Decode when the leading bytes do not match the
// expected magic/version prefix.
var ErrBadMagic = fmt.Errorf("segment: bad magic or unsupported version")

// ErrChecksumMismatch is returned by Decode when the trailing CRC-32 does
// not match the computed checksum. The manifest package classifies it as
// ErrCorrupted.
var ErrChecksumMismatch = fmt.Errorf("segment: checksum mismatch")

// Encode serializes txnID and records into the wire framing described above.
func Encode(txnID uint64, records []Record) []byte {
	size := 4 + 1 + 8 + 4
	for _, r := range records {
		size += uvarintLen(uint64(len(r.Key))) + len(r.Key) + 1 + uvarintLen(uint64(len(r.Value))) + len(r.Value)
	}
	buf := make([]byte, 0, size+4)
	buf = append(buf, magic[:]...)
	buf = append(buf, formatVersion)

	var txnBuf [8]byte
	binary.BigEndian.PutUint64(txnBuf[:], txnID)
	buf = append(buf, txnBuf[:]...)

	var countBuf [4]byte
	binary.BigEndian.PutUint32(countBuf[:], uint32(len(records)))
	buf = append(buf, countBuf[:]...)

	var varintBuf [binary.MaxVarintLen64]byte
	for _, r := range records {
		n := binary.PutUvarint(varintBuf[:], uint64(len(r.Key)))
		buf = append(buf, varintBuf[:n]...)
		buf = append(buf, r.Key...)
		buf = append(buf, byte(r.Op))
		n = binary.PutUvarint(varintBuf[:], uint64(len(r.Value)))
		buf = append(buf, varintBuf[:n]...)
		buf = append(buf, r.Value...)
	}

	checksum := crc32.ChecksumIEEE(buf)
	var crcBuf [4]byte
	binary.BigEndian.PutUint32(crcBuf[:], checksum)
	return append(buf, crcBuf[:]...)
}

// Decode parses the wire framing produced by Encode, rejecting a bad magic
// prefix or a checksum mismatch. It returns the segment's txn_id alongside
// its records.
func Decode(data []byte) (uint64, []Record, error) {
	if len(data) < 4+1+8+4+4 || data[0] != magic[0] || data[1] != magic[1] || data[2] != magic[2] || data[3] != magic[3] {
		return 0, nil, ErrBadMagic
	}
	if data[4] != formatVersion {
		return 0, nil, ErrBadMagic
	}

	body := data[:len(data)-4]
	want := binary.BigEndian.Uint32(data[len(data)-4:])
	got := crc32.ChecksumIEEE(body)
	if want != got {
		return 0, nil, ErrChecksumMismatch
	}

	off := 5
	txnID := binary.BigEndian.Uint64(data[off : off+8])
	off += 8
	count := binary.BigEndian.Uint32(data[off : off+4])
	off += 4

	records := make([]Record, 0, count)
	for i := uint32(0); i < count; i++ {
		keyLen, n, err := readUvarint(data, off)
		if err != nil {
			return 0, nil, err
		}
		off += n
		if off+int(keyLen) > len(body) {
			return 0, nil, ErrChecksumMismatch
		}
		key := data[off : off+int(keyLen)]
		off += int(keyLen)

		if off >= len(body) {
			return 0, nil, ErrChecksumMismatch
		}
		op := OpKind(data[off])
		off++

		valLen, n, err := readUvarint(data, off)
		if err != nil {
			return 0, nil, err
		}
		off += n
		if off+int(valLen) > len(body) {
			return 0, nil, ErrChecksumMismatch
		}
		var value []byte
		if valLen > 0 {
			value = data[off : off+int(valLen)]
		}
		off += int(valLen)

		records = append(records, Record{Key: append([]byte(nil), key...), Op: op, Value: append([]byte(nil), value...)})
	}
	return txnID, records, nil
}

func readUvarint(data []byte, off int) (uint64, int, error) {
	v, n := binary.Uvarint(data[off:])
	if n <= 0 {
		return 0, 0, ErrChecksumMismatch
	}
	return v, n, nil
}

func uvarintLen(v uint64) int {
	n := 1
	for v >= 0x80 {
		v >>= 7
		n++
	}
	return n
}
