package domain

type ContextOrigin string

const (
	OriginUpload  ContextOrigin = "upload"
	OriginIndexed ContextOrigin = "indexed"
)

type ContextItem struct {
	Origin ContextOrigin `json:"origin"`
	Text   string        `json:"text"`
	Order  int           `json:"order"`
}

func ContextTexts(items []ContextItem) []string {
	out := make([]string, 0, len(items))
	for _, item := range items {
		out = append(out, item.Text)
	}
	return out
}

type ChatStage string

const (
	StageReceived          ChatStage = "received"
	StageEmbeddingQuery    ChatStage = "embedding_query"
	StageRetrieving        ChatStage = "retrieving"
	StageProcessingUploads ChatStage = "processing_uploads"
	StageAssembling        ChatStage = "assembling"
	StageGenerating        ChatStage = "generating"
	StageDone              ChatStage = "done"
	StageError             ChatStage = "error"
)

type ChatStatus string

const (
	ChatStatusAnswered  ChatStatus = "answered"
	ChatStatusNoContext ChatStatus = "no_context"
)

type ChatRequest struct {
	Question string
	K        int
	Uploads  []UploadedFile
	Persist  bool
	Model    string
}

type UploadStatus string

const (
	UploadStatusUsed    UploadStatus = "used"
	UploadStatusSkipped UploadStatus = "skipped"
	UploadStatusFailed  UploadStatus = "failed"
)

type UploadOutcome struct {
	Filename string       `json:"filename"`
	Status   UploadStatus `json:"status"`
	Note     string       `json:"note,omitempty"`
}

type ChatResponse struct {
	Status         ChatStatus       `json:"status"`
	Result         GenerationResult `json:"result"`
	Model          string           `json:"model,omitempty"`
	PromptVersion  string           `json:"prompt_version,omitempty"`
	Context        []ContextItem    `json:"context"`
	Uploads        []UploadOutcome  `json:"uploads"`
	PersistedCount int              `json:"persisted_count"`
	PersistErrors  []string         `json:"persist_errors,omitempty"`
	RetrievedCount int              `json:"retrieved_count"`
}
