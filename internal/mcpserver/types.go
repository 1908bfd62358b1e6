// Package mcpserver exposes ACE's ingestion submission, job status, and
// inference query operations as MCP tools for agentic clients that prefer
// tool-calling over a direct library call.
package mcpserver

// IngestInput is the ace_ingest tool's argument shape.
type IngestInput struct {
	Text     string         `json:"text" jsonschema:"the source text to ingest"`
	SourceID string         `json:"source_id,omitempty" jsonschema:"caller-supplied id for the source document; generated if omitted"`
	Metadata map[string]any `json:"metadata,omitempty" jsonschema:"arbitrary metadata attached to the ingested source"`
}

// IngestOutput mirrors the ingestion submission response in spec.md §6.
type IngestOutput struct {
	JobID           string `json:"job_id"`
	Accepted        bool   `json:"accepted"`
	RetryAfterMS    int64  `json:"retry_after_ms,omitempty"`
	ValidationError string `json:"validation_error,omitempty"`
}

// JobStatusInput is the ace_job_status tool's argument shape.
type JobStatusInput struct {
	JobID string `json:"job_id" jsonschema:"the job id returned by ace_ingest"`
}

// JobStatusOutput mirrors the job status response in spec.md §6.
type JobStatusOutput struct {
	Found                bool     `json:"found"`
	JobID                string   `json:"job_id,omitempty"`
	Status               string   `json:"status,omitempty"`
	EntitiesCreated      int      `json:"entities_created,omitempty"`
	RelationshipsCreated int      `json:"relationships_created,omitempty"`
	ExtractMS            int64    `json:"extract_ms,omitempty"`
	DefineMS             int64    `json:"define_ms,omitempty"`
	CanonicalizeMS       int64    `json:"canonicalize_ms,omitempty"`
	WriteMS              int64    `json:"write_ms,omitempty"`
	TotalMS              int64    `json:"total_ms,omitempty"`
	Errors               []string `json:"errors,omitempty"`
}

// QueryInput is the ace_query tool's argument shape.
type QueryInput struct {
	Query     string `json:"query" jsonschema:"the natural-language question to answer from the knowledge graph"`
	SessionID string `json:"session_id,omitempty" jsonschema:"optional session identifier for client-side conversation grouping"`
}

// ValidationSummary mirrors the inference query response's validation block.
type ValidationSummary struct {
	OK            bool     `json:"ok"`
	Score         float64  `json:"score"`
	Violations    []string `json:"violations,omitempty"`
	Contradictions []string `json:"contradictions,omitempty"`
}

// QueryOutput mirrors the inference query response in spec.md §6.
type QueryOutput struct {
	Success                 bool              `json:"success"`
	Response                string            `json:"response,omitempty"`
	Entities                []string          `json:"entities,omitempty"`
	Relationships           []string          `json:"relationships,omitempty"`
	Validation              ValidationSummary `json:"validation"`
	Iterations              int               `json:"iterations"`
	RetrievedContextSummary string            `json:"retrieved_context_summary,omitempty"`
}
