package openai

import (
	"context"
	"fmt"

	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"
	"github.com/pkoukk/tiktoken-go"
)

const (
	// DefaultEmbeddingModel はモデル未指定時のデフォルトモデル
	DefaultEmbeddingModel = "text-embedding-3-small"
	// DefaultEmbeddingDimension はOpenAI推奨のデフォルト次元
	DefaultEmbeddingDimension = 1536

	// maxBatchSize はAPI1回あたりの最大入力数
	maxBatchSize = 100
	// maxInputTokens は入力1件あたりのトークン上限。超過分は切り詰める
	maxInputTokens = 8192
	// maxBatchTokens はAPI1回あたりの合計トークン上限
	maxBatchTokens = 120000
)

// Embedder は OpenAI API を使用してテキストをベクトルに変換する。
// インデックス時とクエリ時で同一インスタンスを使うこと
type Embedder struct {
	client    openai.Client
	encoder   *tiktoken.Tiktoken
	model     string
	dimension int
}

type embedderOptions struct {
	model     string
	dimension int
}

// EmbedderOption は Embedder のオプション設定
type EmbedderOption func(*embedderOptions)

// WithEmbeddingModel はモデル名を上書きする
func WithEmbeddingModel(model string) EmbedderOption {
	return func(o *embedderOptions) {
		o.model = model
	}
}

// WithEmbeddingDimension はベクトル次元を上書きする
func WithEmbeddingDimension(dimension int) EmbedderOption {
	return func(o *embedderOptions) {
		o.dimension = dimension
	}
}

// NewEmbedder は新しい Embedder を作成する
func NewEmbedder(apiKey string, opts ...EmbedderOption) (*Embedder, error) {
	options := embedderOptions{
		model:     DefaultEmbeddingModel,
		dimension: DefaultEmbeddingDimension,
	}
	for _, opt := range opts {
		opt(&options)
	}

	// cl100k_baseはtext-embedding-3系と互換のエンコーダ
	encoder, err := tiktoken.GetEncoding("cl100k_base")
	if err != nil {
		return nil, fmt.Errorf("failed to get tiktoken encoder: %w", err)
	}

	return &Embedder{
		client:    openai.NewClient(option.WithAPIKey(apiKey)),
		encoder:   encoder,
		model:     options.model,
		dimension: options.dimension,
	}, nil
}

// Dimension はEmbeddingベクトルの次元数を返す
func (e *Embedder) Dimension() int { return e.dimension }

// BatchEmbed は複数テキストのEmbeddingを生成する。
// API制限（入力数・トークン数）に合わせてサブバッチへ分割するが、
// 結果は入力順で返す。サブバッチが1つでも失敗した場合は全体を
// 失敗として扱い、部分的な結果は返さない
func (e *Embedder) BatchEmbed(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, fmt.Errorf("no texts provided")
	}

	prepared := make([]string, len(texts))
	tokens := make([]int, len(texts))
	for i, text := range texts {
		prepared[i], tokens[i] = e.truncateToTokenLimit(text)
	}

	vectors := make([][]float32, 0, len(texts))
	start := 0
	batchTokens := 0
	for i := range prepared {
		if i > start && (i-start >= maxBatchSize || batchTokens+tokens[i] > maxBatchTokens) {
			batch, err := e.embedBatch(ctx, prepared[start:i])
			if err != nil {
				return nil, err
			}
			vectors = append(vectors, batch...)
			start = i
			batchTokens = 0
		}
		batchTokens += tokens[i]
	}

	batch, err := e.embedBatch(ctx, prepared[start:])
	if err != nil {
		return nil, err
	}
	vectors = append(vectors, batch...)

	if len(vectors) != len(texts) {
		return nil, fmt.Errorf("unexpected embedding count: got %d, want %d", len(vectors), len(texts))
	}
	return vectors, nil
}

// embedBatch は1回のAPI呼び出しでEmbeddingを生成する
func (e *Embedder) embedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	params := openai.EmbeddingNewParams{
		Model: openai.EmbeddingModel(e.model),
		Input: openai.EmbeddingNewParamsInputUnion{
			OfArrayOfStrings: texts,
		},
	}
	if e.dimension > 0 {
		params.Dimensions = openai.Int(int64(e.dimension))
	}

	resp, err := e.client.Embeddings.New(ctx, params)
	if err != nil {
		return nil, fmt.Errorf("failed to generate embeddings: %w", err)
	}
	if len(resp.Data) != len(texts) {
		return nil, fmt.Errorf("unexpected embedding count in response: got %d, want %d", len(resp.Data), len(texts))
	}

	vectors := make([][]float32, len(resp.Data))
	for i, data := range resp.Data {
		v := make([]float32, len(data.Embedding))
		for j, x := range data.Embedding {
			v[j] = float32(x)
		}
		vectors[i] = v
	}
	return vectors, nil
}

// truncateToTokenLimit は入力1件をトークン上限以内へ切り詰め、
// トークン数とともに返す
func (e *Embedder) truncateToTokenLimit(text string) (string, int) {
	ids := e.encoder.Encode(text, nil, nil)
	if len(ids) <= maxInputTokens {
		return text, len(ids)
	}
	return e.encoder.Decode(ids[:maxInputTokens]), maxInputTokens
}
