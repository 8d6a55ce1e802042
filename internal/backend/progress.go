package backend

import (
	"io"

	"github.com/rs/zerolog"
)

// ProgressReader wraps an object stream and logs transfer progress at
// debug level in 10% steps. When the total size is unknown (<= 0) no
// progress is reported.
type ProgressReader struct {
	r        io.ReadCloser
	log      zerolog.Logger
	name     string
	total    int64
	read     int64
	lastStep int
}

// NewProgressReader wraps r with progress logging for the named object.
func NewProgressReader(r io.ReadCloser, log zerolog.Logger, name string, total int64) *ProgressReader {
	return &ProgressReader{r: r, log: log, name: name, total: total}
}

func (p *ProgressReader) Read(buf []byte) (int, error) {
	n, err := p.r.Read(buf)
	p.read += int64(n)
	if p.total > 0 {
		step := int(p.read * 10 / p.total)
		if step > p.lastStep {
			p.lastStep = step
			p.log.Debug().
				Str("object", p.name).
				Int("percent", step*10).
				Int64("bytes", p.read).
				Msg("download progress")
		}
	}
	return n, err
}

// Close closes the underlying stream.
func (p *ProgressReader) Close() error {
	return p.r.Close()
}
