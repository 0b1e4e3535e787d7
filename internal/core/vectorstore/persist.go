package vectorstore

import (
	"bufio"
	"bytes"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"github.com/jinford/project-rag/internal/core/chunk"
)

// アーティファクトはベクトル配列とチャンクレコードの2ファイル対で構成する
const (
	VectorFileExt = ".vec"
	ChunkFileExt  = ".chunks.json"
)

// vectorMagic はベクトルアーティファクトの先頭識別子
var vectorMagic = [8]byte{'P', 'R', 'A', 'G', 'V', 'E', 'C', '1'}

// chunkManifest はチャンクアーティファクトのルート構造
type chunkManifest struct {
	ManifestID uuid.UUID      `json:"manifestID"`
	Dimension  int            `json:"dimension"`
	Count      int            `json:"count"`
	SavedAt    time.Time      `json:"savedAt"`
	Chunks     []*chunk.Chunk `json:"chunks"`
}

// Save はインデックスを2つのアーティファクトへ永続化する。
// 一時ファイルへ書き込んでからrenameするため、途中失敗しても
// 既存のアーティファクトは壊れない
func (ix *Index) Save(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create index directory: %w", err)
	}

	var vec bytes.Buffer
	vec.Write(vectorMagic[:])
	if err := binary.Write(&vec, binary.LittleEndian, uint32(ix.dimension)); err != nil {
		return fmt.Errorf("failed to encode dimension: %w", err)
	}
	if err := binary.Write(&vec, binary.LittleEndian, uint32(len(ix.vectors))); err != nil {
		return fmt.Errorf("failed to encode vector count: %w", err)
	}
	for _, v := range ix.vectors {
		if err := binary.Write(&vec, binary.LittleEndian, v); err != nil {
			return fmt.Errorf("failed to encode vector: %w", err)
		}
	}

	manifest := chunkManifest{
		ManifestID: uuid.New(),
		Dimension:  ix.dimension,
		Count:      len(ix.chunks),
		SavedAt:    time.Now(),
		Chunks:     ix.chunks,
	}
	meta, err := json.Marshal(manifest)
	if err != nil {
		return fmt.Errorf("failed to encode chunk manifest: %w", err)
	}

	if err := writeFileAtomic(path+VectorFileExt, vec.Bytes()); err != nil {
		return fmt.Errorf("failed to write vector artifact: %w", err)
	}
	if err := writeFileAtomic(path+ChunkFileExt, meta); err != nil {
		return fmt.Errorf("failed to write chunk artifact: %w", err)
	}
	return nil
}

// Load はアーティファクト対からIndexを復元する。
// 破損や次元不整合は ErrCorruptIndex として明示的に失敗させ、
// 黙って劣化させない。アーティファクトが存在しない場合は
// os.ErrNotExist を返す
func Load(path string) (*Index, error) {
	f, err := os.Open(path + VectorFileExt)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	r := bufio.NewReader(f)

	var magic [8]byte
	if _, err := io.ReadFull(r, magic[:]); err != nil {
		return nil, fmt.Errorf("%w: missing header: %v", ErrCorruptIndex, err)
	}
	if magic != vectorMagic {
		return nil, fmt.Errorf("%w: unknown vector artifact format", ErrCorruptIndex)
	}

	var dimension, count uint32
	if err := binary.Read(r, binary.LittleEndian, &dimension); err != nil {
		return nil, fmt.Errorf("%w: missing dimension: %v", ErrCorruptIndex, err)
	}
	if err := binary.Read(r, binary.LittleEndian, &count); err != nil {
		return nil, fmt.Errorf("%w: missing vector count: %v", ErrCorruptIndex, err)
	}
	if dimension == 0 {
		return nil, fmt.Errorf("%w: zero dimension", ErrCorruptIndex)
	}

	// ヘッダ値をファイルサイズと突き合わせ、破損ヘッダのまま
	// 巨大アロケーションに進まないようにする
	info, err := f.Stat()
	if err != nil {
		return nil, fmt.Errorf("failed to stat vector artifact: %w", err)
	}
	headerSize := int64(len(vectorMagic)) + 8
	payload := int64(dimension) * int64(count) * 4
	if info.Size()-headerSize != payload {
		return nil, fmt.Errorf("%w: vector payload size mismatch (header wants %d bytes, file has %d)",
			ErrCorruptIndex, payload, info.Size()-headerSize)
	}

	vectors := make([][]float32, 0, count)
	for i := uint32(0); i < count; i++ {
		v := make([]float32, dimension)
		if err := binary.Read(r, binary.LittleEndian, &v); err != nil {
			return nil, fmt.Errorf("%w: truncated vector data: %v", ErrCorruptIndex, err)
		}
		vectors = append(vectors, v)
	}

	meta, err := os.ReadFile(path + ChunkFileExt)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: chunk artifact missing", ErrCorruptIndex)
		}
		return nil, fmt.Errorf("failed to read chunk artifact: %w", err)
	}

	var manifest chunkManifest
	if err := json.Unmarshal(meta, &manifest); err != nil {
		return nil, fmt.Errorf("%w: invalid chunk manifest: %v", ErrCorruptIndex, err)
	}
	if manifest.Dimension != int(dimension) {
		return nil, fmt.Errorf("%w: dimension mismatch between artifacts (%d vs %d)",
			ErrCorruptIndex, manifest.Dimension, dimension)
	}
	if manifest.Count != len(manifest.Chunks) || manifest.Count != int(count) {
		return nil, fmt.Errorf("%w: chunk count mismatch between artifacts", ErrCorruptIndex)
	}

	return &Index{
		dimension: int(dimension),
		chunks:    manifest.Chunks,
		vectors:   vectors,
	}, nil
}

// Remove はアーティファクト対を削除する。存在しないファイルは無視する
func Remove(path string) error {
	for _, ext := range []string{VectorFileExt, ChunkFileExt} {
		if err := os.Remove(path + ext); err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("failed to remove index artifact: %w", err)
		}
	}
	return nil
}

// Exists はアーティファクト対が存在するかを返す
func Exists(path string) bool {
	if _, err := os.Stat(path + VectorFileExt); err != nil {
		return false
	}
	_, err := os.Stat(path + ChunkFileExt)
	return err == nil
}

func writeFileAtomic(path string, data []byte) error {
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return err
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return err
	}
	return nil
}
