package pool

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/syncly/syncly/internal/backend"
	"github.com/syncly/syncly/internal/backend/memory"
	"github.com/syncly/syncly/testutil"
)

// putObject stores content on the driver and returns the object ID.
func putObject(t *testing.T, d backend.Driver, name string, content []byte) string {
	t.Helper()
	id, err := d.CreateObject(context.Background(), name, "application/octet-stream",
		bytes.NewReader(content), int64(len(content)))
	require.NoError(t, err)
	return id
}

func TestDownloadSingleChunkStreamsDirectly(t *testing.T) {
	mem := memory.New(1 << 20)
	registry := backend.NewRegistry()
	registry.Register("a", mem)
	r := NewReassembler(registry, DefaultOpTimeout, zerolog.Nop())

	content := []byte("hello pool")
	id := putObject(t, mem, "hello.txt", content)
	record := &FileRecord{
		FileName: "hello.txt",
		Size:     int64(len(content)),
		Chunks:   []ChunkRecord{{ChunkName: "hello.txt", FileID: id, Bucket: "a", Index: 0, Size: int64(len(content))}},
	}

	dest := t.TempDir()
	path, err := r.Download(context.Background(), record, dest)
	require.NoError(t, err)
	require.Equal(t, filepath.Join(dest, "hello.txt"), path)
	require.Equal(t, content, testutil.ReadFile(t, path))
}

func TestDownloadConcatenatesInIndexOrder(t *testing.T) {
	a := memory.New(1 << 20)
	b := memory.New(1 << 20)
	registry := backend.NewRegistry()
	registry.Register("a", a)
	registry.Register("b", b)
	r := NewReassembler(registry, DefaultOpTimeout, zerolog.Nop())

	id1 := putObject(t, b, "f.bin_part1", []byte("first-"))
	id2 := putObject(t, a, "f.bin_part2", []byte("second"))

	// Chunks deliberately listed out of order: the index wins.
	record := &FileRecord{
		FileName: "f.bin",
		Size:     12,
		Chunks: []ChunkRecord{
			{ChunkName: "f.bin_part2", FileID: id2, Bucket: "a", Index: 1, Size: 6},
			{ChunkName: "f.bin_part1", FileID: id1, Bucket: "b", Index: 0, Size: 6},
		},
	}

	dest := t.TempDir()
	path, err := r.Download(context.Background(), record, dest)
	require.NoError(t, err)
	require.Equal(t, []byte("first-second"), testutil.ReadFile(t, path))

	// No temp chunk files survive a successful reassembly.
	requireOnlyFinalFile(t, dest, "f.bin")
}

func TestDownloadMissingChunkFailsAndCleansTemp(t *testing.T) {
	a := memory.New(1 << 20)
	registry := backend.NewRegistry()
	registry.Register("a", a)
	r := NewReassembler(registry, DefaultOpTimeout, zerolog.Nop())

	id1 := putObject(t, a, "f.bin_part1", []byte("first-"))
	record := &FileRecord{
		FileName: "f.bin",
		Size:     12,
		Chunks: []ChunkRecord{
			{ChunkName: "f.bin_part1", FileID: id1, Bucket: "a", Index: 0, Size: 6},
			{ChunkName: "f.bin_part2", FileID: "gone", Bucket: "a", Index: 1, Size: 6},
		},
	}

	dest := t.TempDir()
	_, err := r.Download(context.Background(), record, dest)
	require.ErrorIs(t, err, ErrReassemblyIncomplete)

	// The partially fetched chunk must not leak.
	entries, readErr := os.ReadDir(dest)
	require.NoError(t, readErr)
	require.Empty(t, entries, "failed reassembly must leave no files behind")
}

func TestScanAndDownloadExactName(t *testing.T) {
	a := memory.New(1 << 20)
	b := memory.New(1 << 20)
	registry := backend.NewRegistry()
	registry.Register("a", a)
	registry.Register("b", b)
	r := NewReassembler(registry, DefaultOpTimeout, zerolog.Nop())

	content := []byte("whole file on b")
	putObject(t, b, "single.txt", content)

	dest := t.TempDir()
	path, err := r.ScanAndDownload(context.Background(), "single.txt", dest)
	require.NoError(t, err)
	require.Equal(t, content, testutil.ReadFile(t, path))
}

func TestScanAndDownloadOrdersPartsNumerically(t *testing.T) {
	a := memory.New(1 << 20)
	registry := backend.NewRegistry()
	registry.Register("a", a)
	r := NewReassembler(registry, DefaultOpTimeout, zerolog.Nop())

	// part11 would sort before part2 lexicographically.
	putObject(t, a, "f.bin_part2", []byte("BB"))
	putObject(t, a, "f.bin_part11", []byte("KK"))
	putObject(t, a, "f.bin_part1", []byte("AA"))
	for i := 3; i <= 10; i++ {
		putObject(t, a, ChunkName("f.bin", i-1), bytes.Repeat([]byte{byte('A' + i - 1)}, 2))
	}

	dest := t.TempDir()
	path, err := r.ScanAndDownload(context.Background(), "f.bin", dest)
	require.NoError(t, err)

	got := testutil.ReadFile(t, path)
	require.Equal(t, []byte("AABB"), got[:4], "part1 and part2 come first")
	require.Equal(t, []byte("KK"), got[len(got)-2:], "part11 comes last")
}

func TestScanAndDownloadIgnoresDuplicateParts(t *testing.T) {
	a := memory.New(1 << 20)
	b := memory.New(1 << 20)
	registry := backend.NewRegistry()
	registry.Register("a", a)
	registry.Register("b", b)
	r := NewReassembler(registry, DefaultOpTimeout, zerolog.Nop())

	// A stale copy of part1 survives on "b", an orphan of a failed
	// cleanup. The scan must keep only the first match in backend ID
	// order and never concatenate both.
	putObject(t, a, "f.bin_part1", []byte("GOOD-"))
	putObject(t, b, "f.bin_part1", []byte("STALE"))
	putObject(t, b, "f.bin_part2", []byte("TAIL"))

	dest := t.TempDir()
	path, err := r.ScanAndDownload(context.Background(), "f.bin", dest)
	require.NoError(t, err)
	require.Equal(t, []byte("GOOD-TAIL"), testutil.ReadFile(t, path))
}

func TestScanAndDownloadFailsOnMissingPart(t *testing.T) {
	a := memory.New(1 << 20)
	registry := backend.NewRegistry()
	registry.Register("a", a)
	r := NewReassembler(registry, DefaultOpTimeout, zerolog.Nop())

	// Part 2 is gone from every backend; reassembling 1 and 3 around the
	// gap would silently corrupt the file.
	putObject(t, a, "f.bin_part1", []byte("AAAA"))
	putObject(t, a, "f.bin_part3", []byte("CCCC"))

	_, err := r.ScanAndDownload(context.Background(), "f.bin", t.TempDir())
	require.ErrorIs(t, err, ErrReassemblyIncomplete)
}

func TestScanAndDownloadNotFound(t *testing.T) {
	registry := backend.NewRegistry()
	registry.Register("a", memory.New(1024))
	r := NewReassembler(registry, DefaultOpTimeout, zerolog.Nop())

	_, err := r.ScanAndDownload(context.Background(), "missing.bin", t.TempDir())
	require.ErrorIs(t, err, ErrFileNotFound)
}

// requireOnlyFinalFile asserts dest contains exactly the named file.
func requireOnlyFinalFile(t *testing.T, dest, name string) {
	t.Helper()
	entries, err := os.ReadDir(dest)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	require.Equal(t, name, entries[0].Name())
}
