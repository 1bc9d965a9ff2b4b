package index

import (
	"bytes"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/avlasov/spendlens/internal/domain"
)

// On-disk artifact names inside the index directory. The vector file is a
// small binary format: 4-byte magic, uint32 version, uint32 row count,
// uint32 dimension, then row-major little-endian float32 values. The meta
// file is a JSON array of spend records in the same row order.
const (
	vectorsFile = "embeddings.bin"
	metaFile    = "rows.json"
)

var vectorsMagic = [4]byte{'S', 'L', 'V', 'X'}

const vectorsVersion = 1

// ArtifactFiles lists the artifact file names inside an index directory.
func ArtifactFiles() []string {
	return []string{vectorsFile, metaFile}
}

func writeVectorsFile(path string, n, dim int, vectors []float32) error {
	var buf bytes.Buffer
	buf.Write(vectorsMagic[:])
	for _, v := range []uint32{vectorsVersion, uint32(n), uint32(dim)} {
		if err := binary.Write(&buf, binary.LittleEndian, v); err != nil {
			return fmt.Errorf("writeVectorsFile: header: %w", err)
		}
	}
	if err := binary.Write(&buf, binary.LittleEndian, vectors); err != nil {
		return fmt.Errorf("writeVectorsFile: payload: %w", err)
	}
	return replaceFile(path, buf.Bytes())
}

func readVectorsFile(path string) (n, dim int, vectors []float32, err error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return 0, 0, nil, err
	}
	if len(data) < 16 || !bytes.Equal(data[:4], vectorsMagic[:]) {
		return 0, 0, nil, fmt.Errorf("readVectorsFile: %s: not a vector artifact", path)
	}

	header := data[4:16]
	version := binary.LittleEndian.Uint32(header[0:4])
	if version != vectorsVersion {
		return 0, 0, nil, fmt.Errorf("readVectorsFile: %s: unsupported version %d", path, version)
	}
	n = int(binary.LittleEndian.Uint32(header[4:8]))
	dim = int(binary.LittleEndian.Uint32(header[8:12]))

	payload := data[16:]
	if len(payload) != n*dim*4 {
		return 0, 0, nil, fmt.Errorf("readVectorsFile: %s: payload is %d bytes, want %d", path, len(payload), n*dim*4)
	}

	vectors = make([]float32, n*dim)
	if err := binary.Read(bytes.NewReader(payload), binary.LittleEndian, vectors); err != nil {
		return 0, 0, nil, fmt.Errorf("readVectorsFile: payload: %w", err)
	}
	return n, dim, vectors, nil
}

func writeMetaFile(path string, meta []domain.SpendRecord) error {
	data, err := json.Marshal(meta)
	if err != nil {
		return fmt.Errorf("writeMetaFile: %w", err)
	}
	return replaceFile(path, data)
}

func readMetaFile(path string) ([]domain.SpendRecord, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var meta []domain.SpendRecord
	if err := json.Unmarshal(data, &meta); err != nil {
		return nil, fmt.Errorf("readMetaFile: %s: %w", path, err)
	}
	return meta, nil
}

// replaceFile writes data to a temp file in the target directory and renames
// it over path, so readers never observe a half-written artifact.
func replaceFile(path string, data []byte) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), filepath.Base(path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("replaceFile: %w", err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("replaceFile: write %s: %w", tmpName, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("replaceFile: close %s: %w", tmpName, err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("replaceFile: rename to %s: %w", path, err)
	}
	return nil
}
