package domain

import "strings"

// ChatUploadSourcePrefix tags records persisted from chat-time uploads.
const ChatUploadSourcePrefix = "chat_upload:"

type Metadata struct {
	Source string `json:"source"`
}

// Record is one indexed document: the full normalized text of a file and its embedding.
type Record struct {
	ID        string    `json:"id"`
	Text      string    `json:"text"`
	Embedding []float32 `json:"-"`
	Metadata  Metadata  `json:"metadata"`
}

// Match is a ranked vector index hit, most similar first.
type Match struct {
	ID       string   `json:"id"`
	Text     string   `json:"text"`
	Metadata Metadata `json:"metadata"`
	Distance float64  `json:"distance"`
}

func ChatUploadSource(filename string) string {
	return ChatUploadSourcePrefix + filename
}

func (m Metadata) IsChatUpload() bool {
	return strings.HasPrefix(m.Source, ChatUploadSourcePrefix)
}

type RetrievalQuery struct {
	Question  string
	K         int
	Embedding []float32
}

func (q RetrievalQuery) Validate() error {
	if strings.TrimSpace(q.Question) == "" {
		return WrapError(ErrInvalidInput, "retrieval query", errQuestionRequired)
	}
	if q.K < 1 {
		return WrapError(ErrInvalidInput, "retrieval query", errKTooSmall)
	}
	return nil
}
