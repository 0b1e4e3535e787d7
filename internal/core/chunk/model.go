package chunk

import (
	"crypto/sha256"
	"encoding/hex"
	"strconv"
	"time"
)

// Type はチャンクの構造種別を表す
type Type string

const (
	TypeImports  Type = "imports"
	TypeClass    Type = "class"
	TypeFunction Type = "function"
	TypeSection  Type = "section"
	TypeGeneric  Type = "generic"
)

// Metadata はチャンクに付与されるメタデータを表す
type Metadata struct {
	Filename      string    `json:"filename"`
	UserID        string    `json:"userID"`
	ProjectID     string    `json:"projectID"`
	ChunkType     Type      `json:"chunkType"`
	FileType      string    `json:"fileType"`
	CreatedAt     time.Time `json:"createdAt"`
	ContentLength int       `json:"contentLength"`
	StartLine     int       `json:"startLine,omitempty"`
	EndLine       int       `json:"endLine,omitempty"`

	// Detail は戦略固有の補足タグ（json_key / invalid_json 等）
	Detail string `json:"detail,omitempty"`
}

// Chunk は検索単位となるテキスト断片を表す。生成後は不変として扱う
type Chunk struct {
	ID       string   `json:"id"`
	Content  string   `json:"content"`
	Metadata Metadata `json:"metadata"`
}

// idPrefixLength はチャンクID算出に使う本文プレフィックス長
const idPrefixLength = 100

// New はメタデータを補完したChunkを生成する。
// IDは (userID, projectID, filename, 本文プレフィックス) のハッシュで
// 決定的に導出される。厳密な一意性は保証しない（重複検知の補助用途）。
func New(content string, meta Metadata) *Chunk {
	meta.ContentLength = len(content)
	if meta.CreatedAt.IsZero() {
		meta.CreatedAt = time.Now()
	}

	prefix := content
	if len(prefix) > idPrefixLength {
		prefix = prefix[:idPrefixLength]
	}
	sum := sha256.Sum256([]byte(meta.UserID + "\x00" + meta.ProjectID + "\x00" + meta.Filename + "\x00" + prefix))

	return &Chunk{
		ID:       hex.EncodeToString(sum[:]),
		Content:  content,
		Metadata: meta,
	}
}

// MetadataValue はメタデータをキー名で参照する。
// 検索フィルタ（キー → 要求値）の評価に使用する
func (c *Chunk) MetadataValue(key string) (string, bool) {
	switch key {
	case "filename":
		return c.Metadata.Filename, true
	case "user_id":
		return c.Metadata.UserID, true
	case "project_id":
		return c.Metadata.ProjectID, true
	case "chunk_type", "type":
		return string(c.Metadata.ChunkType), true
	case "file_type":
		return c.Metadata.FileType, true
	case "detail":
		return c.Metadata.Detail, true
	case "start_line":
		return strconv.Itoa(c.Metadata.StartLine), true
	case "end_line":
		return strconv.Itoa(c.Metadata.EndLine), true
	default:
		return "", false
	}
}

// LineCount は本文の行数を返す
func (c *Chunk) LineCount() int {
	if c.Content == "" {
		return 0
	}
	n := 1
	for _, r := range c.Content {
		if r == '\n' {
			n++
		}
	}
	return n
}
