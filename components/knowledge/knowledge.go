package knowledge

import (
	"context"
	"fmt"
	"strings"

	"github.com/philippgille/chromem-go"
	openai "github.com/sashabaranov/go-openai"
)

// Document is a single knowledge base entry.
type Document struct {
	ID       string
	Content  string
	Metadata map[string]string
}

// Result is a retrieved document with its similarity score.
type Result struct {
	Document
	Similarity float32
}

// Store is an in-process vector store used to ground domain agent prompts
// with reference material. Embeddings come from an OpenAI compatible
// endpoint, which the local model daemon also exposes.
type Store struct {
	db         *chromem.DB
	collection *chromem.Collection
	count      int
}

// NewStore creates a store with the given collection name and embedding
// function.
func NewStore(name string, embed chromem.EmbeddingFunc) (*Store, error) {
	db := chromem.NewDB()
	collection, err := db.CreateCollection(name, nil, embed)
	if err != nil {
		return nil, fmt.Errorf("create collection %q: %w", name, err)
	}
	return &Store{db: db, collection: collection}, nil
}

// OpenAIEmbedding returns an embedding function backed by an OpenAI
// compatible embeddings endpoint.
func OpenAIEmbedding(clt *openai.Client, model string) chromem.EmbeddingFunc {
	return func(ctx context.Context, text string) ([]float32, error) {
		resp, err := clt.CreateEmbeddings(ctx, openai.EmbeddingRequest{
			Input: []string{text},
			Model: openai.EmbeddingModel(model),
		})
		if err != nil {
			return nil, fmt.Errorf("create embeddings: %w", err)
		}
		if len(resp.Data) == 0 {
			return nil, fmt.Errorf("embeddings endpoint returned no data")
		}
		return resp.Data[0].Embedding, nil
	}
}

// Add indexes documents into the store.
func (s *Store) Add(ctx context.Context, docs ...Document) error {
	list := make([]chromem.Document, 0, len(docs))
	for _, d := range docs {
		list = append(list, chromem.Document{
			ID:       d.ID,
			Content:  d.Content,
			Metadata: d.Metadata,
		})
	}
	if err := s.collection.AddDocuments(ctx, list, 1); err != nil {
		return fmt.Errorf("add documents: %w", err)
	}
	s.count += len(docs)
	return nil
}

// Query returns up to n documents most similar to the query text.
func (s *Store) Query(ctx context.Context, query string, n int) ([]Result, error) {
	if s.count == 0 {
		return nil, nil
	}
	if n > s.count {
		n = s.count
	}
	hits, err := s.collection.Query(ctx, query, n, nil, nil)
	if err != nil {
		return nil, fmt.Errorf("query collection: %w", err)
	}
	out := make([]Result, 0, len(hits))
	for _, h := range hits {
		out = append(out, Result{
			Document: Document{
				ID:       h.ID,
				Content:  h.Content,
				Metadata: h.Metadata,
			},
			Similarity: h.Similarity,
		})
	}
	return out, nil
}

// RenderContext formats retrieval results as a system prompt context block.
func RenderContext(results []Result) string {
	if len(results) == 0 {
		return ""
	}
	parts := make([]string, 0, len(results))
	for _, r := range results {
		parts = append(parts, "- "+r.Content)
	}
	return strings.Join(parts, "\n")
}
