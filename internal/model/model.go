// Package model defines the value types shared across the decision engine.
package model

import "time"

// Decision is the triage outcome for an inquiry.
type Decision string

const (
	DecisionAutoResolve Decision = "AUTO_RESOLVE"
	DecisionRequestInfo Decision = "REQUEST_INFO"
)

// Urgency grades how time-sensitive an inquiry is.
type Urgency string

const (
	UrgencyLow    Urgency = "LOW"
	UrgencyMedium Urgency = "MEDIUM"
	UrgencyHigh   Urgency = "HIGH"
)

// Category buckets an inquiry by subject area.
type Category string

const (
	CategoryOperational     Category = "OPERATIONAL"
	CategoryInfra           Category = "INFRA"
	CategoryDataEngineering Category = "DATA_ENGINEERING"
	CategoryGeneral         Category = "GENERAL"
)

// Action is the terminal outcome of a workflow run.
type Action string

const (
	ActionAutoResolve Action = "AUTO_RESOLVE"
	ActionRequestInfo Action = "REQUEST_INFO"
	ActionError       Action = "ERROR"
)

// Inquiry is a single question submitted to the engine. Immutable.
type Inquiry struct {
	Text       string    `json:"text"`
	ReceivedAt time.Time `json:"received_at"`
}

// NewInquiry creates an Inquiry stamped with the current time.
func NewInquiry(text string) Inquiry {
	return Inquiry{Text: text, ReceivedAt: time.Now().UTC()}
}

// ConversationTurn is one prior question/answer pair. Read-only input to
// the contextualizer; owned by the caller.
type ConversationTurn struct {
	Question       string     `json:"question"`
	Answer         string     `json:"answer"`
	Citations      []Citation `json:"citations,omitempty"`
	ResolvedAction Action     `json:"resolved_action"`
	Timestamp      time.Time  `json:"timestamp"`
}

// TriageResult classifies an inquiry. Produced once per inquiry and cached
// by inquiry hash.
type TriageResult struct {
	Decision   Decision `json:"decision"`
	Urgency    Urgency  `json:"urgency"`
	Category   Category `json:"category"`
	Confidence float64  `json:"confidence"`
	// FromCache reports whether this result was served without a model
	// invocation. Not persisted; set per lookup.
	FromCache bool `json:"-"`
}

// DocumentChunk is a bounded slice of a source document used as a
// retrieval unit. Created at index build time; read-only thereafter.
type DocumentChunk struct {
	SourceID    string `json:"source_id"`
	PageNumber  int    `json:"page_number"` // 1-based; 0 for flat files
	Text        string `json:"text"`
	ByteSize    int64  `json:"byte_size"`
	ContentType string `json:"content_type"`
}

// RetrievalResult is the ordered, deduplicated chunk set produced by one
// retrieval pass, with the strategy that assembled it.
type RetrievalResult struct {
	Chunks   []DocumentChunk `json:"chunks"`
	Strategy string          `json:"strategy"`
	// Provenance is the index backend that produced the chunks
	// ("semantic" or "lexical").
	Provenance string `json:"provenance"`
	// IndexEmpty reports that the document subsystem had nothing indexed.
	IndexEmpty bool `json:"index_empty"`
}

// Found reports whether retrieval produced any usable context.
func (r *RetrievalResult) Found() bool {
	return r != nil && len(r.Chunks) > 0
}

// Citation points an answer back to a supporting source chunk.
type Citation struct {
	DocumentName   string `json:"document_name"`
	PageNumber     int    `json:"page_number"`
	Excerpt        string `json:"excerpt"`
	RelevanceLabel string `json:"relevance_label"`
}

// Answer is the terminal artifact of one workflow run.
type Answer struct {
	Text               string     `json:"text"`
	Citations          []Citation `json:"citations,omitempty"`
	GroundedInContext  bool       `json:"grounded_in_context"`
	RetriesUsed        int        `json:"retries_used"`
	FlaggedLong        bool       `json:"flagged_long,omitempty"`
	FlaggedShort       bool       `json:"flagged_short,omitempty"`
	FlaggedGeneric     bool       `json:"flagged_generic,omitempty"`
	DisclaimerAppended bool       `json:"disclaimer_appended,omitempty"`
	// FromCache reports whether the primary completion was served from
	// the response cache rather than a model invocation.
	FromCache bool `json:"-"`
}

// Result is the caller contract returned by the engine.
type Result struct {
	RunID        string     `json:"run_id"`
	AnswerText   string     `json:"answer_text"`
	Citations    []Citation `json:"citations"`
	Action       Action     `json:"action"`
	Timestamp    time.Time  `json:"timestamp"`
	ContextFound bool       `json:"context_found"`
	// ErrorKind carries the recovered error class name when Action is
	// ERROR. Diagnostics only; never a user-facing message.
	ErrorKind string `json:"error_kind,omitempty"`
}
