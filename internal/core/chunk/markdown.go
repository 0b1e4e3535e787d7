package chunk

import "strings"

// markdownStrategy はMarkdownを見出し行単位のセクションに分割する
type markdownStrategy struct{}

func (s *markdownStrategy) FileType() string { return "markdown" }

// Split は行頭が `#` の行を新しいセクションの開始として分割する。
// 字下げされた `#`（コードブロック内など）は見出し扱いしない。
// 空白のみのセクションは破棄される
func (s *markdownStrategy) Split(content string) []segment {
	lines := strings.Split(content, "\n")

	var segments []segment
	var buf []string
	bufStart := 1

	flush := func(endLine int) {
		if len(buf) == 0 {
			return
		}
		text := strings.TrimSpace(strings.Join(buf, "\n"))
		buf = nil
		if text == "" {
			return
		}
		segments = append(segments, segment{
			content:   text,
			chunkType: TypeSection,
			startLine: bufStart,
			endLine:   endLine,
		})
	}

	for i, line := range lines {
		lineNo := i + 1
		if strings.HasPrefix(line, "#") {
			flush(lineNo - 1)
			bufStart = lineNo
		}
		buf = append(buf, line)
	}

	flush(len(lines))
	return segments
}
