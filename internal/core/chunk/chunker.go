package chunk

import (
	"sort"
	"time"
)

// Chunker はファイルを検索可能なチャンク列に分割する
type Chunker struct {
	detector *Detector
	now      func() time.Time
}

// ChunkerOption は Chunker のオプション設定
type ChunkerOption func(*Chunker)

// WithClock は生成時刻の取得関数を差し替える（テスト用）
func WithClock(now func() time.Time) ChunkerOption {
	return func(c *Chunker) {
		c.now = now
	}
}

// NewChunker は新しい Chunker を作成する
func NewChunker(opts ...ChunkerOption) *Chunker {
	c := &Chunker{
		detector: NewDetector(),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// SplitFile は1ファイルをチャンク列に分割する。入力は変更しない。
// 空の内容は0チャンクを返し、空文字列のセグメントは黙って捨てる
func (c *Chunker) SplitFile(filename, content, userID, projectID string) []*Chunk {
	if content == "" {
		return nil
	}

	strategy := c.detector.SelectStrategy(filename, content)
	segments := strategy.Split(content)

	createdAt := c.now()
	chunks := make([]*Chunk, 0, len(segments))
	for _, seg := range segments {
		if seg.content == "" {
			continue
		}
		chunks = append(chunks, New(seg.content, Metadata{
			Filename:  filename,
			UserID:    userID,
			ProjectID: projectID,
			ChunkType: seg.chunkType,
			FileType:  strategy.FileType(),
			CreatedAt: createdAt,
			StartLine: seg.startLine,
			EndLine:   seg.endLine,
			Detail:    seg.detail,
		}))
	}
	return chunks
}

// SplitFiles は複数ファイルをまとめて分割する。ファイル内の順序は
// 出現順のまま保たれ、ファイル間はファイル名順で安定化する
func (c *Chunker) SplitFiles(files map[string]string, userID, projectID string) []*Chunk {
	filenames := make([]string, 0, len(files))
	for filename := range files {
		filenames = append(filenames, filename)
	}
	sort.Strings(filenames)

	var chunks []*Chunk
	for _, filename := range filenames {
		chunks = append(chunks, c.SplitFile(filename, files[filename], userID, projectID)...)
	}
	return chunks
}
