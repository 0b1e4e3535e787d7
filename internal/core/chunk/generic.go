package chunk

import "strings"

// windowLines はGeneric戦略の固定ウィンドウ行数
const windowLines = 100

// genericStrategy は構文を解釈せず固定行幅で分割するフォールバック戦略
type genericStrategy struct {
	fileType string
}

func (s *genericStrategy) FileType() string { return s.fileType }

// Split は非オーバーラップの100行ウィンドウに分割する
func (s *genericStrategy) Split(content string) []segment {
	lines := strings.Split(content, "\n")

	var segments []segment
	for start := 0; start < len(lines); start += windowLines {
		end := start + windowLines
		if end > len(lines) {
			end = len(lines)
		}
		segments = append(segments, segment{
			content:   strings.Join(lines[start:end], "\n"),
			chunkType: TypeGeneric,
			startLine: start + 1,
			endLine:   end,
		})
	}
	return segments
}
