package pool

import "errors"

// Pool error types.
var (
	ErrInsufficientPoolSpace = errors.New("insufficient pool space")
	ErrBackendIO             = errors.New("backend i/o error")
	ErrChunkNotFound         = errors.New("chunk not found")
	ErrReassemblyIncomplete  = errors.New("reassembly incomplete")
	ErrFileNotFound          = errors.New("file not found")
)
