package chunk

import "strings"

// maxBufferLines は構造境界が現れない場合に強制分割する行数
const maxBufferLines = 50

// lineSyntax は言語ごとの行分類規則を表す
type lineSyntax struct {
	isImport   func(trimmed string) bool
	isClass    func(trimmed string) bool
	isFunction func(trimmed string) bool
}

// structuralCodeStrategy はブロック構文を持つ言語向けの戦略。
// import / クラス / 関数の宣言行を境界としてバッファを切り出す
type structuralCodeStrategy struct {
	syntax   lineSyntax
	fileType string
}

func (s *structuralCodeStrategy) FileType() string { return s.fileType }

// Split は行を順に走査し、宣言境界と行数上限でチャンクを区切る。
// クラス宣言直後の最初の関数宣言はクラス本体との結束を保つため
// 境界にせず、クラスチャンクへ取り込む
func (s *structuralCodeStrategy) Split(content string) []segment {
	lines := strings.Split(content, "\n")

	var segments []segment
	var buf []string
	bufStart := 1
	bufType := TypeGeneric
	classOpen := false // クラスヘッダ直後でメソッドを取り込める状態

	flush := func(endLine int) {
		if len(buf) == 0 {
			return
		}
		segments = append(segments, segment{
			content:   strings.Join(buf, "\n"),
			chunkType: bufType,
			startLine: bufStart,
			endLine:   endLine,
		})
		buf = nil
	}

	for i, line := range lines {
		lineNo := i + 1
		trimmed := strings.TrimSpace(line)

		switch {
		case s.syntax.isImport(trimmed):
			if len(buf) > 0 && bufType != TypeImports {
				flush(lineNo - 1)
				bufStart = lineNo
			}
			bufType = TypeImports
			classOpen = false
			buf = append(buf, line)

		case s.syntax.isClass(trimmed):
			if len(buf) > 0 {
				flush(lineNo - 1)
				bufStart = lineNo
			}
			bufType = TypeClass
			classOpen = true
			buf = append(buf, line)

		case s.syntax.isFunction(trimmed):
			if len(buf) > 0 && !classOpen {
				flush(lineNo - 1)
				bufStart = lineNo
				bufType = TypeFunction
			} else if len(buf) == 0 {
				bufType = TypeFunction
			}
			// 取り込みは最初のメソッドのみ。以降の宣言は通常の境界になる
			classOpen = false
			buf = append(buf, line)

		default:
			buf = append(buf, line)
			if len(buf) > maxBufferLines {
				flush(lineNo)
				bufStart = lineNo + 1
				bufType = TypeGeneric
				classOpen = false
			}
		}
	}

	flush(len(lines))
	return segments
}

// pythonSyntax はPythonの宣言行規則
var pythonSyntax = lineSyntax{
	isImport: func(t string) bool {
		return strings.HasPrefix(t, "import ") || strings.HasPrefix(t, "from ")
	},
	isClass: func(t string) bool {
		return strings.HasPrefix(t, "class ")
	},
	isFunction: func(t string) bool {
		return strings.HasPrefix(t, "def ") || strings.HasPrefix(t, "async def ")
	},
}

// javascriptSyntax はJavaScript/TypeScriptの宣言行規則
var javascriptSyntax = lineSyntax{
	isImport: func(t string) bool {
		if strings.HasPrefix(t, "import ") {
			return true
		}
		if strings.HasPrefix(t, "const ") || strings.HasPrefix(t, "let ") || strings.HasPrefix(t, "var ") {
			return strings.Contains(t, "require(")
		}
		return false
	},
	isClass: func(t string) bool {
		return strings.HasPrefix(t, "class ") || strings.HasPrefix(t, "export class ") ||
			strings.HasPrefix(t, "export default class ")
	},
	isFunction: func(t string) bool {
		if strings.HasPrefix(t, "function ") || strings.HasPrefix(t, "async function ") ||
			strings.HasPrefix(t, "export function ") || strings.HasPrefix(t, "export async function ") {
			return true
		}
		// アロー関数の代入形式
		if strings.HasPrefix(t, "const ") || strings.HasPrefix(t, "let ") || strings.HasPrefix(t, "var ") {
			return strings.Contains(t, "=") && strings.Contains(t, "=>")
		}
		return false
	},
}

// goSyntax はGoの宣言行規則
var goSyntax = lineSyntax{
	isImport: func(t string) bool {
		return strings.HasPrefix(t, "import ") || t == "import ("
	},
	isClass: func(t string) bool {
		if !strings.HasPrefix(t, "type ") {
			return false
		}
		return strings.Contains(t, " struct") || strings.Contains(t, " interface")
	},
	isFunction: func(t string) bool {
		return strings.HasPrefix(t, "func ")
	},
}
