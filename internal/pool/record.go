package pool

import (
	"fmt"
	"strconv"
	"strings"
)

// ChunkRecord describes one stored chunk of a file. Immutable once
// created. Index is the explicit chunk position; the slice order of a
// FileRecord's chunks matches it for every record this code writes, but
// Index is the authoritative ordering signal so reconstruction never
// depends on string-sorting chunk names.
type ChunkRecord struct {
	ChunkName string `json:"chunk_name"`
	FileID    string `json:"file_id"`
	Bucket    string `json:"bucket"`
	Index     int    `json:"index"`
	Size      int64  `json:"size,omitempty"`
}

// FileRecord maps a logical file name to its ordered chunks. The chunks,
// concatenated in index order, reproduce the original file byte for byte.
type FileRecord struct {
	FileName string        `json:"file_name"`
	Size     int64         `json:"size,omitempty"`
	Chunks   []ChunkRecord `json:"chunks"`
}

// ChunkName returns the remote name for chunk index i of the named file.
// Index numbering in names is 1-based, matching the original layout
// ("report.pdf_part1", "report.pdf_part2", ...).
func ChunkName(fileName string, index int) string {
	return fmt.Sprintf("%s_part%d", fileName, index+1)
}

// partIndex extracts the numeric part index from a chunk name produced
// by ChunkName. Returns false when the name has no valid numeric suffix.
// Parsing the number (instead of sorting names as strings) is what keeps
// part11 after part2.
func partIndex(name string) (int, bool) {
	i := strings.LastIndex(name, "_part")
	if i < 0 {
		return 0, false
	}
	n, err := strconv.Atoi(name[i+len("_part"):])
	if err != nil || n < 1 {
		return 0, false
	}
	return n, true
}

// Validate checks the coverage invariant: chunk sizes sum to the file
// size and indexes are contiguous from zero. Records from legacy
// documents without sizes skip the sum check.
func (r *FileRecord) Validate() error {
	if r.FileName == "" {
		return fmt.Errorf("record has no file name")
	}
	if len(r.Chunks) == 0 {
		return fmt.Errorf("record %q has no chunks", r.FileName)
	}
	var sum int64
	sized := true
	for i, c := range r.Chunks {
		if c.Index != i {
			return fmt.Errorf("record %q: chunk %d has index %d", r.FileName, i, c.Index)
		}
		if c.Size == 0 {
			sized = false
		}
		sum += c.Size
	}
	if sized && r.Size > 0 && sum != r.Size {
		return fmt.Errorf("record %q: chunk sizes sum to %d, want %d", r.FileName, sum, r.Size)
	}
	return nil
}
