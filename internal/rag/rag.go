package rag

import (
	"context"
	"errors"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/rs/zerolog/log"
	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/prompts"

	"docflow/internal/conversation"
	"docflow/internal/llmservice"
	"docflow/internal/metrics"
	"docflow/internal/models"
	"docflow/internal/session"
)

const snippetLen = 200

// Retriever returns candidate chunks for a query.
type Retriever interface {
	Retrieve(ctx context.Context, query string) ([]models.ScoredChunk, error)
}

// Reranker narrows and reorders retrieved candidates.
type Reranker interface {
	Rerank(ctx context.Context, query string, candidates []models.ScoredChunk) ([]models.ScoredChunk, error)
}

type Deps struct {
	Retriever   Retriever
	Reranker    Reranker // optional
	LLM         llms.Model
	CallOptions []llms.CallOption
	Metrics     *metrics.Metrics
	// Prompt overrides models.QAPromptTemplate.
	Prompt string
}

// Answer is the response to one query
type Answer struct {
	Text    string          `json:"response"`
	Sources []models.Source `json:"sources"`
}

// DocumentQA answers questions about the ingested documents of one session
type DocumentQA struct {
	deps    Deps
	history *conversation.ChatHistory
	prompt  prompts.PromptTemplate
}

func New(sess *session.Session, deps Deps) (*DocumentQA, error) {
	history, err := conversation.NewChatHistory(sess)
	if err != nil {
		return nil, err
	}
	if deps.LLM == nil {
		return nil, models.ChainBuildError("build chain", errors.New("language model is not configured"))
	}
	if deps.Retriever == nil {
		return nil, models.ChainBuildError("build chain", errors.New("retriever is not configured"))
	}
	tmpl := deps.Prompt
	if tmpl == "" {
		tmpl = models.QAPromptTemplate
	}
	prompt, err := llmservice.NewPrompt(tmpl, "document", "chat_history", "query")
	if err != nil {
		return nil, models.ChainBuildError("build chain", err)
	}
	return &DocumentQA{deps: deps, history: history, prompt: prompt}, nil
}

func (qa *DocumentQA) History() *conversation.ChatHistory { return qa.history }

// Invoke runs retrieve, re-rank, prompt and model for query and records both
// turns in the session. When the model fails only the query turn is kept.
func (qa *DocumentQA) Invoke(ctx context.Context, query string) (ans *Answer, err error) {
	if strings.TrimSpace(query) == "" {
		return nil, models.ValidationError("invoke", models.ErrEmptyQuery)
	}
	defer func() { qa.deps.Metrics.ObserveQuery(err) }()

	prior, err := qa.history.History()
	if err != nil {
		return nil, err
	}
	if _, err := qa.history.Append(query); err != nil {
		return nil, err
	}

	start := time.Now()
	candidates, err := qa.deps.Retriever.Retrieve(ctx, query)
	qa.deps.Metrics.ObserveStage(metrics.StageRetrieve, start)
	if err != nil {
		log.Error().Err(err).Msg("Retrieval failed")
		return nil, models.QAError("retrieve", err)
	}

	selected := candidates
	if qa.deps.Reranker != nil {
		start = time.Now()
		selected, err = qa.deps.Reranker.Rerank(ctx, query, candidates)
		qa.deps.Metrics.ObserveStage(metrics.StageRerank, start)
		if err != nil {
			return nil, models.QAError("rerank", err)
		}
	}

	chatHistory, err := conversation.Format(prior)
	if err != nil {
		return nil, models.SessionError("format history", err)
	}
	rendered, err := qa.prompt.Format(map[string]any{
		"document":     CombineContext(selected),
		"chat_history": chatHistory,
		"query":        query,
	})
	if err != nil {
		return nil, models.ChainBuildError("render prompt", err)
	}

	// call llm
	start = time.Now()
	text, err := llmservice.Generate(ctx, qa.deps.LLM, rendered, qa.deps.CallOptions...)
	qa.deps.Metrics.ObserveStage(metrics.StageLLM, start)
	if err != nil {
		log.Error().Err(err).Msg("Language model call failed")
		return nil, models.QAError("generate", err)
	}
	if text == "" {
		log.Warn().Msg("Empty model response")
		text = models.NoAnswer
	}
	if _, err := qa.history.Append(text); err != nil {
		return nil, err
	}

	log.Info().Int("candidates", len(candidates)).Int("context_chunks", len(selected)).Int("answer_len", len(text)).Msg("Answered query")
	return &Answer{Text: text, Sources: Sources(selected)}, nil
}

// CombineContext joins the chunk texts in ranked order. An empty result
// becomes models.NoContextFound.
func CombineContext(chunks []models.ScoredChunk) string {
	parts := make([]string, 0, len(chunks))
	for _, c := range chunks {
		if strings.TrimSpace(c.Chunk.Content) == "" {
			continue
		}
		parts = append(parts, c.Chunk.Content)
	}
	combined := strings.TrimSpace(strings.Join(parts, models.ContextSeparator))
	if combined == "" {
		return models.NoContextFound
	}
	return combined
}

// Sources summarises the chunks an answer was grounded on.
func Sources(chunks []models.ScoredChunk) []models.Source {
	out := make([]models.Source, 0, len(chunks))
	for _, c := range chunks {
		out = append(out, models.Source{
			Name:    c.Chunk.SourceName,
			Type:    c.Chunk.SourceType,
			Snippet: snippet(c.Chunk.Content),
			Score:   c.Score,
		})
	}
	return out
}

func snippet(s string) string {
	s = strings.TrimSpace(s)
	if utf8.RuneCountInString(s) <= snippetLen {
		return s
	}
	r := []rune(s)
	return string(r[:snippetLen]) + "..."
}
