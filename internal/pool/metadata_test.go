package pool

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

func testRecord(name string, size int64) FileRecord {
	return FileRecord{
		FileName: name,
		Size:     size,
		Chunks: []ChunkRecord{
			{ChunkName: name, FileID: "obj-" + name, Bucket: "a", Index: 0, Size: size},
		},
	}
}

func TestLoadMissingFile(t *testing.T) {
	store := NewMetadataStore(filepath.Join(t.TempDir(), "metadata.json"), zerolog.Nop())

	records, err := store.Load()
	require.NoError(t, err)
	require.Empty(t, records)
}

func TestLoadCorruptDocumentResetsToEmpty(t *testing.T) {
	path := filepath.Join(t.TempDir(), "metadata.json")
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0644))

	store := NewMetadataStore(path, zerolog.Nop())
	records, err := store.Load()
	require.NoError(t, err)
	require.Empty(t, records)

	// The store keeps working after corruption.
	require.NoError(t, store.Append(testRecord("a.txt", 3)))
	records, err = store.Load()
	require.NoError(t, err)
	require.Len(t, records, 1)
	require.Equal(t, "a.txt", records[0].FileName)
}

func TestLoadSingleObjectDocument(t *testing.T) {
	path := filepath.Join(t.TempDir(), "metadata.json")
	doc := `{"file_name": "old.bin", "chunks": [{"chunk_name": "old.bin", "file_id": "x", "bucket": "a"}]}`
	require.NoError(t, os.WriteFile(path, []byte(doc), 0644))

	store := NewMetadataStore(path, zerolog.Nop())
	records, err := store.Load()
	require.NoError(t, err)
	require.Len(t, records, 1)
	require.Equal(t, "old.bin", records[0].FileName)
}

func TestAppendAndLookup(t *testing.T) {
	store := NewMetadataStore(filepath.Join(t.TempDir(), "metadata.json"), zerolog.Nop())

	require.NoError(t, store.Append(testRecord("a.txt", 1)))
	require.NoError(t, store.Append(testRecord("b.txt", 2)))

	rec, found, err := store.Lookup("b.txt")
	require.NoError(t, err)
	require.True(t, found)
	require.Equal(t, int64(2), rec.Size)

	_, found, err = store.Lookup("missing.txt")
	require.NoError(t, err)
	require.False(t, found)
}

func TestLookupFirstMatchWins(t *testing.T) {
	store := NewMetadataStore(filepath.Join(t.TempDir(), "metadata.json"), zerolog.Nop())

	first := testRecord("dup.txt", 10)
	second := testRecord("dup.txt", 20)
	require.NoError(t, store.Append(first))
	require.NoError(t, store.Append(second))

	rec, found, err := store.Lookup("dup.txt")
	require.NoError(t, err)
	require.True(t, found)
	require.Equal(t, int64(10), rec.Size, "earliest record under a name wins")
}

func TestAppendRejectsInvalidRecord(t *testing.T) {
	store := NewMetadataStore(filepath.Join(t.TempDir(), "metadata.json"), zerolog.Nop())

	err := store.Append(FileRecord{FileName: "empty.txt"})
	require.Error(t, err)

	bad := FileRecord{
		FileName: "bad.txt",
		Size:     10,
		Chunks: []ChunkRecord{
			{ChunkName: "bad.txt_part1", FileID: "x", Bucket: "a", Index: 1, Size: 10},
		},
	}
	require.Error(t, store.Append(bad), "non-contiguous chunk indexes must be rejected")
}

func TestConcurrentAppendsLoseNothing(t *testing.T) {
	store := NewMetadataStore(filepath.Join(t.TempDir(), "metadata.json"), zerolog.Nop())

	const n = 20
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			name := fmt.Sprintf("file-%02d.bin", i)
			if err := store.Append(testRecord(name, int64(i+1))); err != nil {
				t.Errorf("Append(%s) err = %v", name, err)
			}
		}(i)
	}
	wg.Wait()

	records, err := store.Load()
	require.NoError(t, err)
	require.Len(t, records, n, "every concurrent append must survive")

	for i := 0; i < n; i++ {
		_, found, err := store.Lookup(fmt.Sprintf("file-%02d.bin", i))
		require.NoError(t, err)
		require.True(t, found)
	}
}
