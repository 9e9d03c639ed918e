package compression

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"math"
	"sync"

	"github.com/klauspost/compress/zstd"

	"github.com/zoneinfo/server/internal/category"
	"github.com/zoneinfo/server/internal/counts"
	"github.com/zoneinfo/server/internal/world"
)

const (
	// SnapshotMagic starts every encoded snapshot.
	SnapshotMagic = "ZINF"
	// SnapshotVersion is the current layout version.
	SnapshotVersion = 1
)

// ErrBadSnapshot is returned for data that is not a snapshot of the
// current layout.
var ErrBadSnapshot = errors.New("invalid snapshot encoding")

// header layout: magic[4] version[1] categories[1] districts[2] pass[8]
const headerSize = 16

var (
	encoderPool sync.Pool
	decoderPool sync.Pool
)

func getEncoder() *zstd.Encoder {
	if v := encoderPool.Get(); v != nil {
		return v.(*zstd.Encoder)
	}
	enc, _ := zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
	return enc
}

func getDecoder() *zstd.Decoder {
	if v := decoderPool.Get(); v != nil {
		return v.(*zstd.Decoder)
	}
	dec, _ := zstd.NewReader(nil)
	return dec
}

// EncodeSnapshot serialises a published buffer and compresses it with zstd.
// Counts are written as varints since most districts are empty.
func EncodeSnapshot(buf *counts.Buffer) ([]byte, int, error) {
	if buf == nil {
		return nil, 0, fmt.Errorf("snapshot is nil")
	}

	raw := make([]byte, headerSize, headerSize+category.Count*world.DistrictArraySize*3)
	copy(raw, SnapshotMagic)
	raw[4] = SnapshotVersion
	raw[5] = uint8(category.Count)
	binary.LittleEndian.PutUint16(raw[6:], world.DistrictArraySize)
	binary.LittleEndian.PutUint64(raw[8:], buf.Pass)

	for c := range buf.Rows {
		row := &buf.Rows[c]
		for d := 0; d < world.DistrictArraySize; d++ {
			raw = binary.AppendUvarint(raw, uint64(row.Built[d]))
			raw = binary.AppendUvarint(raw, uint64(row.Empty[d]))
			raw = binary.AppendUvarint(raw, uint64(row.Total[d]))
		}
	}

	enc := getEncoder()
	defer encoderPool.Put(enc)
	return enc.EncodeAll(raw, nil), len(raw), nil
}

// DecodeSnapshot reverses EncodeSnapshot.
func DecodeSnapshot(data []byte) (*counts.Buffer, error) {
	dec := getDecoder()
	defer decoderPool.Put(dec)

	raw, err := dec.DecodeAll(data, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrBadSnapshot, err)
	}
	if len(raw) < headerSize || !bytes.Equal(raw[:4], []byte(SnapshotMagic)) {
		return nil, fmt.Errorf("%w: missing header", ErrBadSnapshot)
	}
	if raw[4] != SnapshotVersion {
		return nil, fmt.Errorf("%w: unsupported version %d", ErrBadSnapshot, raw[4])
	}
	if int(raw[5]) != category.Count || int(binary.LittleEndian.Uint16(raw[6:])) != world.DistrictArraySize {
		return nil, fmt.Errorf("%w: layout %dx%d does not match %dx%d", ErrBadSnapshot,
			raw[5], binary.LittleEndian.Uint16(raw[6:]), category.Count, world.DistrictArraySize)
	}

	buf := &counts.Buffer{Pass: binary.LittleEndian.Uint64(raw[8:])}
	r := bytes.NewReader(raw[headerSize:])
	next := func() (int32, error) {
		v, err := binary.ReadUvarint(r)
		if err != nil {
			return 0, fmt.Errorf("%w: truncated counts", ErrBadSnapshot)
		}
		if v > math.MaxInt32 {
			return 0, fmt.Errorf("%w: count %d out of range", ErrBadSnapshot, v)
		}
		return int32(v), nil
	}
	for c := range buf.Rows {
		row := &buf.Rows[c]
		for d := 0; d < world.DistrictArraySize; d++ {
			if row.Built[d], err = next(); err != nil {
				return nil, err
			}
			if row.Empty[d], err = next(); err != nil {
				return nil, err
			}
			if row.Total[d], err = next(); err != nil {
				return nil, err
			}
			if int64(row.Built[d])+int64(row.Empty[d]) != int64(row.Total[d]) {
				return nil, fmt.Errorf("%w: category %d district %d: built %d + empty %d != total %d",
					ErrBadSnapshot, c, d, row.Built[d], row.Empty[d], row.Total[d])
			}
		}
	}
	if r.Len() != 0 {
		return nil, fmt.Errorf("%w: %d trailing bytes", ErrBadSnapshot, r.Len())
	}
	return buf, nil
}
