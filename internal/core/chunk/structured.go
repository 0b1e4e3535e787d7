package chunk

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
)

// structuredDataStrategy はJSONドキュメントをトップレベルキー単位に分割する
type structuredDataStrategy struct{}

func (s *structuredDataStrategy) FileType() string { return "json" }

// Split はルートがオブジェクトの場合にキーごとのセグメントを生成する。
// パース失敗やオブジェクト以外のルートはドキュメント全体の
// フォールバックセグメントに縮退し、エラーにはしない
func (s *structuredDataStrategy) Split(content string) []segment {
	segments, err := splitTopLevelKeys(content)
	if err != nil {
		return []segment{{
			content:   content,
			chunkType: TypeGeneric,
			detail:    "invalid_json",
		}}
	}
	return segments
}

// splitTopLevelKeys はトークン単位でデコードし、出現順を保ったまま
// トップレベルキーを切り出す
func splitTopLevelKeys(content string) ([]segment, error) {
	dec := json.NewDecoder(strings.NewReader(content))

	tok, err := dec.Token()
	if err != nil {
		return nil, err
	}

	delim, ok := tok.(json.Delim)
	if !ok || delim != '{' {
		// ルートがオブジェクトでない場合は正当なJSONか最後まで確認する
		var rest json.RawMessage
		full := json.RawMessage(content)
		if jsonErr := json.Unmarshal(full, &rest); jsonErr != nil {
			return nil, jsonErr
		}
		return []segment{{
			content:   content,
			chunkType: TypeGeneric,
			detail:    "json_content",
		}}, nil
	}

	var segments []segment
	for dec.More() {
		keyTok, err := dec.Token()
		if err != nil {
			return nil, err
		}
		key, ok := keyTok.(string)
		if !ok {
			return nil, fmt.Errorf("unexpected token %v for object key", keyTok)
		}

		var value json.RawMessage
		if err := dec.Decode(&value); err != nil {
			return nil, err
		}

		var pretty bytes.Buffer
		if err := json.Indent(&pretty, value, "", "  "); err != nil {
			return nil, err
		}

		segments = append(segments, segment{
			content:   fmt.Sprintf("Key: %s\nValue: %s", key, pretty.String()),
			chunkType: TypeSection,
			detail:    "json_key",
		})
	}

	// 閉じ括弧まで読み切れない場合は不正なJSONとして扱う
	if _, err := dec.Token(); err != nil {
		return nil, err
	}

	return segments, nil
}
