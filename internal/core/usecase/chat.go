package usecase

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/kirillkom/tabular-rag/internal/core/domain"
	"github.com/kirillkom/tabular-rag/internal/core/ports"
)

const (
	defaultTopK              = 5
	defaultGenerationTimeout = 120 * time.Second
)

type ChatConfig struct {
	DefaultModel      string
	DefaultTopK       int
	GenerationTimeout time.Duration
	Prompt            domain.PromptTemplate
}

// ChatUseCase runs one question through embed, retrieve, uploads, assemble and generate.
type ChatUseCase struct {
	normalizer ports.TextNormalizer
	embedder   ports.Embedder
	index      ports.VectorIndex
	generator  ports.GenerationGateway
	cfg        ChatConfig
	newID      func() string
}

func NewChatUseCase(
	normalizer ports.TextNormalizer,
	embedder ports.Embedder,
	index ports.VectorIndex,
	generator ports.GenerationGateway,
	cfg ChatConfig,
) *ChatUseCase {
	if cfg.DefaultTopK <= 0 {
		cfg.DefaultTopK = defaultTopK
	}
	if cfg.GenerationTimeout <= 0 {
		cfg.GenerationTimeout = defaultGenerationTimeout
	}
	return &ChatUseCase{
		normalizer: normalizer,
		embedder:   embedder,
		index:      index,
		generator:  generator,
		cfg:        cfg,
		newID:      NewRecordID,
	}
}

type retrievalResult struct {
	matches []domain.Match
}

func (r retrievalResult) texts() []string {
	out := make([]string, 0, len(r.matches))
	for _, m := range r.matches {
		out = append(out, m.Text)
	}
	return out
}

type normalizedUpload struct {
	filename string
	text     string
}

type uploadBatch struct {
	normalized []normalizedUpload
	outcomes   []domain.UploadOutcome
}

func (b uploadBatch) texts() []string {
	out := make([]string, 0, len(b.normalized))
	for _, u := range b.normalized {
		out = append(out, tagUpload(u.filename, u.text))
	}
	return out
}

type persistResult struct {
	count  int
	errors []string
}

func (uc *ChatUseCase) Ask(ctx context.Context, req domain.ChatRequest) (*domain.ChatResponse, error) {
	k := req.K
	if k == 0 {
		k = uc.cfg.DefaultTopK
	}
	query := domain.RetrievalQuery{Question: strings.TrimSpace(req.Question), K: k}
	if err := query.Validate(); err != nil {
		return nil, err
	}

	run := newStageTracker(slog.Default().With("k", k, "uploads", len(req.Uploads), "persist", req.Persist))

	run.enter(domain.StageEmbeddingQuery)
	vector, err := uc.embedQuery(ctx, query.Question)
	if err != nil {
		return nil, run.fail(err)
	}
	query.Embedding = vector

	run.enter(domain.StageRetrieving)
	retrieved, err := uc.retrieve(ctx, query)
	if err != nil {
		return nil, run.fail(err)
	}

	run.enter(domain.StageProcessingUploads)
	batch := uc.processUploads(req.Uploads)
	var persisted persistResult
	if req.Persist {
		persisted = uc.persistUploads(ctx, batch.normalized)
	}

	run.enter(domain.StageAssembling)
	items := AssembleContext(batch.texts(), retrieved.texts())
	resp := &domain.ChatResponse{
		Context:        items,
		Uploads:        batch.outcomes,
		PersistedCount: persisted.count,
		PersistErrors:  persisted.errors,
		RetrievedCount: len(retrieved.matches),
		PromptVersion:  uc.cfg.Prompt.ID(),
	}
	if len(items) == 0 {
		resp.Status = domain.ChatStatusNoContext
		run.enter(domain.StageDone)
		return resp, nil
	}

	run.enter(domain.StageGenerating)
	genReq := uc.buildGenerationRequest(query.Question, req.Model, items)
	resp.Model = genReq.Model
	resp.Result = uc.generate(ctx, genReq)
	resp.Status = domain.ChatStatusAnswered

	run.enter(domain.StageDone)
	return resp, nil
}

func (uc *ChatUseCase) embedQuery(ctx context.Context, question string) ([]float32, error) {
	vector, err := uc.embedder.EmbedQuery(ctx, question)
	if err != nil {
		return nil, domain.WrapError(domain.ErrEmbeddingGateway, "embed query", err)
	}
	if len(vector) == 0 {
		return nil, domain.WrapError(domain.ErrEmbeddingGateway, "embed query", errors.New("empty query vector"))
	}
	return vector, nil
}

func (uc *ChatUseCase) retrieve(ctx context.Context, query domain.RetrievalQuery) (retrievalResult, error) {
	matches, err := uc.index.Query(ctx, query.Embedding, query.K)
	if err != nil {
		return retrievalResult{}, domain.WrapError(domain.ErrVectorIndex, "query vector index", err)
	}
	if len(matches) > query.K {
		matches = matches[:query.K]
	}
	return retrievalResult{matches: matches}, nil
}

// processUploads normalizes every file independently; one failure never blocks the rest.
func (uc *ChatUseCase) processUploads(files []domain.UploadedFile) uploadBatch {
	batch := uploadBatch{outcomes: make([]domain.UploadOutcome, 0, len(files))}
	for _, f := range files {
		text, err := uc.normalizer.Normalize(f.Filename, f.Data)
		switch {
		case errors.Is(err, domain.ErrUnsupportedType):
			batch.outcomes = append(batch.outcomes, domain.UploadOutcome{
				Filename: f.Filename,
				Status:   domain.UploadStatusSkipped,
				Note:     fmt.Sprintf("[upload: %s] skipped: unsupported file type", f.Filename),
			})
		case err != nil:
			batch.outcomes = append(batch.outcomes, domain.UploadOutcome{
				Filename: f.Filename,
				Status:   domain.UploadStatusFailed,
				Note:     fmt.Sprintf("[upload: %s] failed to process: %v", f.Filename, err),
			})
		default:
			batch.normalized = append(batch.normalized, normalizedUpload{filename: f.Filename, text: text})
			batch.outcomes = append(batch.outcomes, domain.UploadOutcome{
				Filename: f.Filename,
				Status:   domain.UploadStatusUsed,
			})
		}
	}
	return batch
}

func (uc *ChatUseCase) persistUploads(ctx context.Context, uploads []normalizedUpload) persistResult {
	var result persistResult
	for _, u := range uploads {
		if err := uc.persistOne(ctx, u); err != nil {
			slog.Warn("chat_upload_persist_failed", "filename", u.filename, "error", err)
			result.errors = append(result.errors, fmt.Sprintf("%s: %v", u.filename, err))
			continue
		}
		result.count++
	}
	return result
}

func (uc *ChatUseCase) persistOne(ctx context.Context, u normalizedUpload) error {
	vectors, err := uc.embedder.Embed(ctx, []string{u.text})
	if err != nil {
		return domain.WrapError(domain.ErrEmbeddingGateway, "embed upload", err)
	}
	if len(vectors) != 1 {
		return domain.WrapError(domain.ErrEmbeddingGateway, "embed upload", fmt.Errorf("expected 1 vector, got %d", len(vectors)))
	}
	record := domain.Record{
		ID:        uc.newID(),
		Text:      u.text,
		Embedding: vectors[0],
		Metadata:  domain.Metadata{Source: domain.ChatUploadSource(u.filename)},
	}
	if err := uc.index.Add(ctx, []domain.Record{record}); err != nil {
		return domain.WrapError(domain.ErrVectorIndex, "add upload", err)
	}
	return nil
}

func (uc *ChatUseCase) buildGenerationRequest(question, model string, items []domain.ContextItem) domain.GenerationRequest {
	return domain.GenerationRequest{
		SystemInstruction: uc.cfg.Prompt.System,
		UserTemplate:      uc.cfg.Prompt.User,
		PromptVersion:     uc.cfg.Prompt.ID(),
		Format:            uc.cfg.Prompt.Format,
		Temperature:       uc.cfg.Prompt.Temperature,
		ContextItems:      domain.ContextTexts(items),
		Question:          question,
		Model:             uc.resolveModel(model),
	}
}

func (uc *ChatUseCase) resolveModel(requested string) string {
	if model := strings.TrimSpace(requested); model != "" {
		return model
	}
	return uc.cfg.DefaultModel
}

// generate never returns an error: any gateway failure degrades to the context dump.
func (uc *ChatUseCase) generate(ctx context.Context, req domain.GenerationRequest) domain.GenerationResult {
	genCtx, cancel := context.WithTimeout(ctx, uc.cfg.GenerationTimeout)
	defer cancel()

	answer, err := uc.generator.Generate(genCtx, req)
	if err == nil {
		answer, err = checkAnswer(req.Format, answer)
	}
	if err != nil {
		err = domain.WrapError(domain.ErrGenerationGateway, "generate answer", err)
		slog.Warn("generation_fallback", "model", req.Model, "prompt", req.PromptVersion, "error", err)
		return domain.Fallback(req.ContextItems, err)
	}
	return domain.Generated(answer)
}

func checkAnswer(format domain.AnswerFormat, answer string) (string, error) {
	answer = strings.TrimSpace(answer)
	if answer == "" {
		return "", errors.New("empty answer")
	}
	if format != domain.AnswerFormatJSON {
		return answer, nil
	}
	object := extractJSONObject(answer)
	if !json.Valid([]byte(object)) {
		return "", errors.New("answer is not valid json")
	}
	return object, nil
}

func extractJSONObject(raw string) string {
	start := strings.Index(raw, "{")
	end := strings.LastIndex(raw, "}")
	if start >= 0 && end > start {
		return raw[start : end+1]
	}
	return raw
}

func tagUpload(filename, text string) string {
	return "[upload: " + filename + "]\n" + text
}

type stageTracker struct {
	logger *slog.Logger
	stage  domain.ChatStage
	start  time.Time
}

func newStageTracker(logger *slog.Logger) *stageTracker {
	return &stageTracker{logger: logger, stage: domain.StageReceived, start: time.Now()}
}

func (s *stageTracker) enter(stage domain.ChatStage) {
	s.logger.Debug("chat_stage", "from", s.stage, "to", stage, "elapsed_ms", time.Since(s.start).Milliseconds())
	s.stage = stage
}

func (s *stageTracker) fail(err error) error {
	s.logger.Error("chat_failed", "stage", s.stage, "error", err)
	s.stage = domain.StageError
	return err
}
