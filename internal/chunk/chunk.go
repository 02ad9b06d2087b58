package chunk

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strconv"
)

// DatasetID identifies a logical dataset (e.g. one blockchain).
type DatasetID [32]byte

// ChunkID identifies a chunk. It is derived from the dataset id and block
// range, never assigned by hand; see DeriveChunkID.
type ChunkID [32]byte

// String returns the hex encoding of the dataset id.
func (d DatasetID) String() string {
	return hex.EncodeToString(d[:])
}

// String returns the hex encoding of the chunk id.
func (id ChunkID) String() string {
	return hex.EncodeToString(id[:])
}

// DatasetIDFromHex parses a hex-encoded dataset id.
func DatasetIDFromHex(s string) (DatasetID, error) {
	var d DatasetID
	b, err := hex.DecodeString(s)
	if err != nil {
		return d, fmt.Errorf("decode dataset id: %w", err)
	}
	if len(b) != len(d) {
		return d, fmt.Errorf("%w: got %d bytes, want %d", ErrInvalidIDLength, len(b), len(d))
	}
	copy(d[:], b)
	return d, nil
}

// ChunkIDFromHex parses a hex-encoded chunk id.
func ChunkIDFromHex(s string) (ChunkID, error) {
	var id ChunkID
	b, err := hex.DecodeString(s)
	if err != nil {
		return id, fmt.Errorf("decode chunk id: %w", err)
	}
	if len(b) != len(id) {
		return id, fmt.Errorf("%w: got %d bytes, want %d", ErrInvalidIDLength, len(b), len(id))
	}
	copy(id[:], b)
	return id, nil
}

// BlockRange is the half-open interval [Start, End) of block numbers a chunk
// is responsible for. A valid range is non-empty.
type BlockRange struct {
	Start uint64
	End   uint64
}

// Valid reports whether the range is non-empty.
func (r BlockRange) Valid() bool {
	return r.Start < r.End
}

// Contains reports whether block n falls within the range.
func (r BlockRange) Contains(n uint64) bool {
	return n >= r.Start && n < r.End
}

func (r BlockRange) String() string {
	return strconv.FormatUint(r.Start, 10) + "_" + strconv.FormatUint(r.End, 10)
}

// DataChunk describes one immutable unit of dataset data. Files maps logical
// file names to the remote locations they are fetched from; a chunk carries
// 1-10 files totalling a few hundred MB, but the descriptor itself is
// metadata only. A DataChunk must not be modified after construction.
type DataChunk struct {
	ID         ChunkID
	DatasetID  DatasetID
	BlockRange BlockRange
	Files      map[string]string
}

// maxFiles bounds the files mapping of a single chunk.
const maxFiles = 10

// New builds a chunk descriptor for the given dataset and range. The id is
// derived here; callers must never construct one by any other means, since
// every lookup in the system keys on the derived id. files must carry between
// 1 and 10 entries.
func New(datasetID DatasetID, blockRange BlockRange, files map[string]string) (DataChunk, error) {
	if !blockRange.Valid() {
		return DataChunk{}, fmt.Errorf("%w: [%d, %d)", ErrInvalidRange, blockRange.Start, blockRange.End)
	}
	if len(files) == 0 || len(files) > maxFiles {
		return DataChunk{}, fmt.Errorf("%w: %d", ErrInvalidFileCount, len(files))
	}

	return DataChunk{
		ID:         DeriveChunkID(datasetID, blockRange),
		DatasetID:  datasetID,
		BlockRange: blockRange,
		Files:      files,
	}, nil
}

// DeriveChunkID computes the deterministic chunk id: the sha256 digest of the
// hex-encoded dataset id followed by the decimal range start and end. The
// encoding order is fixed so that every collaborator derives the same id for
// the same chunk description.
func DeriveChunkID(datasetID DatasetID, blockRange BlockRange) ChunkID {
	h := sha256.New()
	h.Write([]byte(datasetID.String()))
	h.Write([]byte(strconv.FormatUint(blockRange.Start, 10)))
	h.Write([]byte(strconv.FormatUint(blockRange.End, 10)))

	var id ChunkID
	copy(id[:], h.Sum(nil))

	return id
}
