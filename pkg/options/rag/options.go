// Package rag provides configuration options for the DocMind RAG pipeline.
package rag

import (
	"fmt"

	"github.com/kart-io/docmind/pkg/options"
	"github.com/spf13/pflag"
)

var _ options.IOptions = (*Options)(nil)

// 受支持的取值集合。
var (
	validStoreDrivers     = map[string]bool{"milvus": true, "memory": true}
	validRerankStrategies = map[string]bool{"identity": true, "diversity": true}
)

// Options contains RAG pipeline configuration.
type Options struct {
	// ChunkSize is the chunk budget in tokens.
	ChunkSize int `json:"chunk-size" mapstructure:"chunk-size"`

	// ChunkOverlap is the overlap between adjacent chunks in tokens.
	ChunkOverlap int `json:"chunk-overlap" mapstructure:"chunk-overlap"`

	// MaxChunkSize is the hard per-chunk limit; longer sentences are word-split.
	MaxChunkSize int `json:"max-chunk-size" mapstructure:"max-chunk-size"`

	// TopK is the number of results to return from similarity search.
	TopK int `json:"top-k" mapstructure:"top-k"`

	// SimilarityThreshold filters retrieved chunks below this similarity (0-1).
	SimilarityThreshold float64 `json:"similarity-threshold" mapstructure:"similarity-threshold"`

	// RerankStrategy is the rerank strategy (identity, diversity).
	RerankStrategy string `json:"rerank-strategy" mapstructure:"rerank-strategy"`

	// Collection is the name of the vector store collection.
	Collection string `json:"collection" mapstructure:"collection"`

	// EmbeddingDim is the dimension of embedding vectors.
	EmbeddingDim int `json:"embedding-dim" mapstructure:"embedding-dim"`

	// StoreDriver selects the vector store backend (milvus, memory).
	StoreDriver string `json:"store-driver" mapstructure:"store-driver"`

	// SystemPrompt 为空时使用内置提示词。
	SystemPrompt string `json:"system-prompt" mapstructure:"system-prompt"`
}

// NewOptions creates new Options with defaults.
func NewOptions() *Options {
	return &Options{
		ChunkSize:           300,
		ChunkOverlap:        50,
		MaxChunkSize:        500,
		TopK:                5,
		SimilarityThreshold: 0.3,
		RerankStrategy:      "diversity",
		Collection:          "docmind_docs",
		EmbeddingDim:        768, // nomic-embed-text dimension
		StoreDriver:         "milvus",
	}
}

// AddFlags adds flags for RAG options to the specified FlagSet.
func (o *Options) AddFlags(fs *pflag.FlagSet, prefixes ...string) {
	fs.IntVar(&o.ChunkSize, options.Join(prefixes...)+"rag.chunk-size", o.ChunkSize, "Chunk budget in tokens.")
	fs.IntVar(&o.ChunkOverlap, options.Join(prefixes...)+"rag.chunk-overlap", o.ChunkOverlap, "Overlap between adjacent chunks in tokens.")
	fs.IntVar(&o.MaxChunkSize, options.Join(prefixes...)+"rag.max-chunk-size", o.MaxChunkSize, "Hard per-chunk token limit.")
	fs.IntVar(&o.TopK, options.Join(prefixes...)+"rag.top-k", o.TopK, "Number of results from similarity search.")
	fs.Float64Var(&o.SimilarityThreshold, options.Join(prefixes...)+"rag.similarity-threshold", o.SimilarityThreshold, "Minimum similarity for retrieved chunks (0-1).")
	fs.StringVar(&o.RerankStrategy, options.Join(prefixes...)+"rag.rerank-strategy", o.RerankStrategy, "Rerank strategy (identity, diversity).")
	fs.StringVar(&o.Collection, options.Join(prefixes...)+"rag.collection", o.Collection, "Vector store collection name.")
	fs.IntVar(&o.EmbeddingDim, options.Join(prefixes...)+"rag.embedding-dim", o.EmbeddingDim, "Embedding vector dimension.")
	fs.StringVar(&o.StoreDriver, options.Join(prefixes...)+"rag.store-driver", o.StoreDriver, "Vector store backend (milvus, memory).")
	fs.StringVar(&o.SystemPrompt, options.Join(prefixes...)+"rag.system-prompt", o.SystemPrompt, "System prompt override; empty uses the built-in prompt.")
}

// Validate validates the RAG options.
func (o *Options) Validate() []error {
	if o == nil {
		return nil
	}

	var errs []error
	if o.ChunkSize <= 0 {
		errs = append(errs, fmt.Errorf("chunk-size must be positive"))
	}
	if o.ChunkOverlap < 0 {
		errs = append(errs, fmt.Errorf("chunk-overlap cannot be negative"))
	}
	if o.ChunkSize > 0 && o.ChunkOverlap >= o.ChunkSize {
		errs = append(errs, fmt.Errorf("chunk-overlap must be smaller than chunk-size"))
	}
	if o.MaxChunkSize < o.ChunkSize {
		errs = append(errs, fmt.Errorf("max-chunk-size cannot be smaller than chunk-size"))
	}
	if o.TopK <= 0 {
		errs = append(errs, fmt.Errorf("top-k must be positive"))
	}
	if o.SimilarityThreshold < 0 || o.SimilarityThreshold > 1 {
		errs = append(errs, fmt.Errorf("similarity-threshold must be in [0, 1]"))
	}
	if !validRerankStrategies[o.RerankStrategy] {
		errs = append(errs, fmt.Errorf("unknown rerank-strategy: %s", o.RerankStrategy))
	}
	if o.Collection == "" {
		errs = append(errs, fmt.Errorf("collection is required"))
	}
	if o.EmbeddingDim <= 0 {
		errs = append(errs, fmt.Errorf("embedding-dim must be positive"))
	}
	if !validStoreDrivers[o.StoreDriver] {
		errs = append(errs, fmt.Errorf("unknown store-driver: %s", o.StoreDriver))
	}
	return errs
}

// Complete completes the RAG options with defaults.
func (o *Options) Complete() error {
	if o.RerankStrategy == "" {
		o.RerankStrategy = "diversity"
	}
	if o.StoreDriver == "" {
		o.StoreDriver = "milvus"
	}
	return nil
}
