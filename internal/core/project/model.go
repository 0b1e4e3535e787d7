package project

import (
	"errors"
	"time"
)

// CLI等の単発利用でキーが指定されない場合の既定値
const (
	DefaultUserID    = "default"
	DefaultProjectID = "current"
)

// ErrNotIndexed はインデックス未作成のプロジェクトへの要約要求を表す。
// 検索は空結果で縮退するが、要約は誤解を招く空値を返すより明示的に
// 失敗させる
var ErrNotIndexed = errors.New("project not indexed")

// ErrEmbedding は外部埋め込み器の失敗を表す。部分的に埋め込まれた
// バッチは位置対応の不変条件を壊すため、握りつぶさず呼び出し元へ
// 伝播させる
var ErrEmbedding = errors.New("embedding failure")

// ErrIndexNotFound はリポジトリに永続化済みインデックスが
// 存在しないことを表す。正常系の状態でありエラー扱いしない
var ErrIndexNotFound = errors.New("index not found")

// Key は (ユーザー, プロジェクト) の複合キーを表す。
// 1つのキーは高々1つのインメモリインデックスと高々1つの
// 永続化スナップショットに対応する
type Key struct {
	UserID    string
	ProjectID string
}

// NewKey は Key を生成する。空の要素には既定値を補う
func NewKey(userID, projectID string) Key {
	if userID == "" {
		userID = DefaultUserID
	}
	if projectID == "" {
		projectID = DefaultProjectID
	}
	return Key{UserID: userID, ProjectID: projectID}
}

// KeyForChat はチャットIDからプロジェクトキーを導出する
func KeyForChat(userID, chatID string) Key {
	return NewKey(userID, "chat_"+chatID)
}

// String はストレージ識別子として使うキー表現を返す
func (k Key) String() string {
	return k.UserID + "_" + k.ProjectID
}

// Summary はインデックス済みプロジェクトの統計情報を表す
type Summary struct {
	TotalFiles  int            `json:"totalFiles"`
	TotalChunks int            `json:"totalChunks"`
	TotalLines  int            `json:"totalLines"`
	FileTypes   map[string]int `json:"fileTypes"`
	Files       []string       `json:"files"`
	IndexedAt   time.Time      `json:"indexedAt"`
}
