package domain

import "strings"

// FallbackSeparator joins context items when no generated answer is available.
const FallbackSeparator = "\n\n---\n\n"

// FallbackNotice labels a fallback answer for presentation layers.
const FallbackNotice = "(No LLM available) Top matches:"

type AnswerFormat string

const (
	AnswerFormatText AnswerFormat = "text"
	AnswerFormatJSON AnswerFormat = "json"
)

// PromptTemplate is a named, versioned prompt asset.
type PromptTemplate struct {
	Name        string       `json:"name" yaml:"name"`
	Version     string       `json:"version" yaml:"version"`
	Format      AnswerFormat `json:"format" yaml:"format"`
	Temperature float64      `json:"temperature" yaml:"temperature"`
	System      string       `json:"system" yaml:"system"`
	User        string       `json:"user" yaml:"user"`
}

func (p PromptTemplate) ID() string {
	return p.Name + "@" + p.Version
}

type GenerationRequest struct {
	SystemInstruction string
	UserTemplate      string
	PromptVersion     string
	Format            AnswerFormat
	Temperature       float64
	ContextItems      []string
	Question          string
	Model             string
}

type GenerationKind string

const (
	GenerationGenerated GenerationKind = "generated"
	GenerationFallback  GenerationKind = "fallback"
)

type GenerationResult struct {
	Kind           GenerationKind `json:"kind"`
	Answer         string         `json:"answer"`
	FallbackReason string         `json:"fallback_reason,omitempty"`
}

func Generated(answer string) GenerationResult {
	return GenerationResult{Kind: GenerationGenerated, Answer: answer}
}

// Fallback builds the deterministic context dump used when generation fails.
func Fallback(contextItems []string, reason error) GenerationResult {
	result := GenerationResult{
		Kind:   GenerationFallback,
		Answer: strings.Join(contextItems, FallbackSeparator),
	}
	if reason != nil {
		result.FallbackReason = reason.Error()
	}
	return result
}

func (r GenerationResult) UsedFallback() bool {
	return r.Kind == GenerationFallback
}
