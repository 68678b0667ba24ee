// Package options contains flags and options for initializing the DocMind server.
package options

import (
	"fmt"

	"github.com/spf13/pflag"
	utilerrors "k8s.io/apimachinery/pkg/util/errors"

	docmind "github.com/kart-io/docmind/internal/docmind"
	cacheopts "github.com/kart-io/docmind/pkg/options/cache"
	llmopts "github.com/kart-io/docmind/pkg/options/llm"
	logopts "github.com/kart-io/docmind/pkg/options/logger"
	milvusopts "github.com/kart-io/docmind/pkg/options/milvus"
	ragopts "github.com/kart-io/docmind/pkg/options/rag"
	httpopts "github.com/kart-io/docmind/pkg/options/server/http"
)

// ServerOptions contains the configuration options for the server.
type ServerOptions struct {
	// HTTPOptions contains HTTP server configuration.
	HTTPOptions *httpopts.Options `json:"http" mapstructure:"http"`

	// LogOptions contains logger configuration.
	LogOptions *logopts.Options `json:"log" mapstructure:"log"`

	// MilvusOptions contains Milvus database configuration.
	MilvusOptions *milvusopts.Options `json:"milvus" mapstructure:"milvus"`

	// EmbeddingOptions contains embedding provider configuration.
	EmbeddingOptions *llmopts.ProviderOptions `json:"embedding" mapstructure:"embedding"`

	// ChatOptions contains chat provider configuration.
	ChatOptions *llmopts.ProviderOptions `json:"chat" mapstructure:"chat"`

	// RAGOptions contains retrieval pipeline configuration.
	RAGOptions *ragopts.Options `json:"rag" mapstructure:"rag"`

	// CacheOptions contains query cache configuration.
	CacheOptions *cacheopts.Options `json:"cache" mapstructure:"cache"`
}

// NewServerOptions creates a ServerOptions instance with default values.
func NewServerOptions() *ServerOptions {
	return &ServerOptions{
		HTTPOptions:      httpopts.NewOptions(),
		LogOptions:       logopts.NewOptions(),
		MilvusOptions:    milvusopts.NewOptions(),
		EmbeddingOptions: llmopts.NewEmbeddingOptions(),
		ChatOptions:      llmopts.NewChatOptions(),
		RAGOptions:       ragopts.NewOptions(),
		CacheOptions:     cacheopts.NewOptions(),
	}
}

// AddFlags adds all server flags to the given flagset.
func (o *ServerOptions) AddFlags(fs *pflag.FlagSet) {
	o.HTTPOptions.AddFlags(fs)
	o.LogOptions.AddFlags(fs)
	o.MilvusOptions.AddFlags(fs)
	o.EmbeddingOptions.AddFlags(fs, "embedding")
	o.ChatOptions.AddFlags(fs, "chat")
	o.RAGOptions.AddFlags(fs)
	o.CacheOptions.AddFlags(fs)
}

// Complete completes all the required options.
func (o *ServerOptions) Complete() error {
	if err := o.HTTPOptions.Complete(); err != nil {
		return err
	}
	if err := o.EmbeddingOptions.Complete(); err != nil {
		return fmt.Errorf("embedding: %w", err)
	}
	if err := o.ChatOptions.Complete(); err != nil {
		return fmt.Errorf("chat: %w", err)
	}
	if err := o.RAGOptions.Complete(); err != nil {
		return fmt.Errorf("rag: %w", err)
	}
	if err := o.CacheOptions.Complete(); err != nil {
		return fmt.Errorf("cache: %w", err)
	}
	return nil
}

// Validate checks whether the options in ServerOptions are valid.
func (o *ServerOptions) Validate() error {
	errs := []error{}

	errs = append(errs, o.HTTPOptions.Validate()...)
	if err := o.LogOptions.Validate(); err != nil {
		errs = append(errs, err)
	}
	// Milvus 仅在选择 milvus 驱动时需要有效配置。
	if o.RAGOptions.StoreDriver == "milvus" {
		errs = append(errs, o.MilvusOptions.Validate()...)
	}
	errs = append(errs, o.EmbeddingOptions.Validate()...)
	errs = append(errs, o.ChatOptions.Validate()...)
	errs = append(errs, o.RAGOptions.Validate()...)
	errs = append(errs, o.CacheOptions.Validate()...)

	return utilerrors.NewAggregate(errs)
}

// Config builds a docmind.Config based on ServerOptions.
func (o *ServerOptions) Config() (*docmind.Config, error) {
	return &docmind.Config{
		HTTPOptions:      o.HTTPOptions,
		LogOptions:       o.LogOptions,
		MilvusOptions:    o.MilvusOptions,
		EmbeddingOptions: o.EmbeddingOptions,
		ChatOptions:      o.ChatOptions,
		RAGOptions:       o.RAGOptions,
		CacheOptions:     o.CacheOptions,
	}, nil
}
