package chunk

import (
	"path/filepath"
	"strings"

	"github.com/go-enry/go-enry/v2"
)

// Strategy はファイル1件に適用するチャンク分割戦略を表す。
// 閉じたバリアント集合であり、ファイルごとに1つだけ選択される
type Strategy interface {
	// Split は本文をセグメント列に分割する。順序は出現順を保つ
	Split(content string) []segment

	// FileType はメタデータに記録するファイル種別を返す
	FileType() string
}

// segment は戦略が切り出した本文断片。Chunker がメタデータを付与して
// Chunk に昇格させる
type segment struct {
	content   string
	chunkType Type
	startLine int
	endLine   int
	detail    string
}

// Detector はファイル名と内容から言語を判定し、戦略を選択する
type Detector struct{}

// NewDetector は Detector を生成する
func NewDetector() *Detector {
	return &Detector{}
}

// DetectLanguage はgo-enryによる言語判定結果を返す。
// 判定不能の場合は空文字列を返す
func (d *Detector) DetectLanguage(filename, content string) string {
	return enry.GetLanguage(filepath.Base(filename), []byte(content))
}

// SelectStrategy はファイルに適用する戦略を1つ選択する。
// 構文を解釈できない種別はすべて固定行幅のGeneric戦略に落ちる
func (d *Detector) SelectStrategy(filename, content string) Strategy {
	language := d.DetectLanguage(filename, content)

	switch language {
	case "Markdown":
		return &markdownStrategy{}
	case "JSON":
		return &structuredDataStrategy{}
	case "Python":
		return &structuralCodeStrategy{syntax: pythonSyntax, fileType: "python"}
	case "JavaScript", "TypeScript", "JSX", "TSX":
		return &structuralCodeStrategy{syntax: javascriptSyntax, fileType: strings.ToLower(language)}
	case "Go":
		return &structuralCodeStrategy{syntax: goSyntax, fileType: "go"}
	}

	fileType := "unknown"
	if language != "" {
		fileType = strings.ToLower(language)
	}
	return &genericStrategy{fileType: fileType}
}
