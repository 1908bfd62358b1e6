package mcpserver

import (
	"context"
	"fmt"

	mcpsdk "github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/worldgraph/ace/internal/jobs"
	"github.com/worldgraph/ace/internal/workflow"
	"github.com/worldgraph/ace/pkg/graph"
)

func registerTools(sdk *mcpsdk.Server, queue *jobs.Queue, tracker *jobs.Tracker, wf *workflow.Workflow) {
	mcpsdk.AddTool(sdk, &mcpsdk.Tool{
		Name:        "ace_ingest",
		Description: "Submit source text for ingestion into the ACE knowledge graph. Returns a job id to poll with ace_job_status.",
	}, ingestHandler(queue))

	mcpsdk.AddTool(sdk, &mcpsdk.Tool{
		Name:        "ace_job_status",
		Description: "Look up an ingestion job's status and per-stage timings by job id.",
	}, jobStatusHandler(tracker))

	mcpsdk.AddTool(sdk, &mcpsdk.Tool{
		Name:        "ace_query",
		Description: "Answer a natural-language question from the ACE knowledge graph, grounded in the ingested lore.",
	}, queryHandler(wf))
}

func ingestHandler(queue *jobs.Queue) mcpsdk.ToolHandlerFor[IngestInput, IngestOutput] {
	return func(ctx context.Context, _ *mcpsdk.CallToolRequest, in IngestInput) (*mcpsdk.CallToolResult, IngestOutput, error) {
		jobID, retryAfter, err := queue.Submit(ctx, in.SourceID, in.Text, in.Metadata)
		if err != nil {
			out := IngestOutput{Accepted: false, ValidationError: err.Error()}
			if retryAfter > 0 {
				out.RetryAfterMS = retryAfter.Milliseconds()
			}
			return textResult(fmt.Sprintf("ingestion rejected: %v", err)), out, nil
		}

		out := IngestOutput{JobID: jobID, Accepted: true}
		return textResult(fmt.Sprintf("accepted as job %s", jobID)), out, nil
	}
}

func jobStatusHandler(tracker *jobs.Tracker) mcpsdk.ToolHandlerFor[JobStatusInput, JobStatusOutput] {
	return func(_ context.Context, _ *mcpsdk.CallToolRequest, in JobStatusInput) (*mcpsdk.CallToolResult, JobStatusOutput, error) {
		snap, ok := tracker.Get(in.JobID)
		if !ok {
			out := JobStatusOutput{Found: false}
			return textResult(fmt.Sprintf("job %s not found (outside retention window or never existed)", in.JobID)), out, nil
		}

		out := JobStatusOutput{
			Found:                true,
			JobID:                snap.JobID,
			Status:               string(snap.Status),
			EntitiesCreated:      snap.EntitiesCreated,
			RelationshipsCreated: snap.RelationshipsCreated,
			ExtractMS:            snap.ExtractMS,
			DefineMS:             snap.DefineMS,
			CanonicalizeMS:       snap.CanonicalizeMS,
			WriteMS:              snap.WriteMS,
			TotalMS:              snap.TotalMS,
			Errors:               snap.Errors,
		}
		return textResult(fmt.Sprintf("job %s: %s", snap.JobID, snap.Status)), out, nil
	}
}

func queryHandler(wf *workflow.Workflow) mcpsdk.ToolHandlerFor[QueryInput, QueryOutput] {
	return func(ctx context.Context, _ *mcpsdk.CallToolRequest, in QueryInput) (*mcpsdk.CallToolResult, QueryOutput, error) {
		result, err := wf.Run(ctx, in.Query)
		if err != nil {
			out := QueryOutput{Success: false, Validation: ValidationSummary{OK: false, Violations: []string{err.Error()}}}
			return textResult(fmt.Sprintf("query failed: %v", err)), out, nil
		}

		out := QueryOutput{
			Success:    result.Success,
			Iterations: result.Iterations,
			Validation: ValidationSummary{
				OK:             result.Validation.Valid,
				Score:          result.Validation.Score,
				Violations:     result.Validation.SchemaErrors,
				Contradictions: formatContradictions(result.Validation.Contradictions),
			},
			RetrievedContextSummary: summarizeContext(result.Context),
		}
		if result.Draft != nil {
			out.Response = result.Draft.Text
			for _, e := range result.Draft.Entities {
				out.Entities = append(out.Entities, fmt.Sprintf("[%s] %s", e.Type, e.CanonicalID))
			}
			for _, r := range result.Draft.Relationships {
				out.Relationships = append(out.Relationships, fmt.Sprintf("%s -[%s]-> %s", r.From, r.Type, r.To))
			}
		}

		return textResult(out.Response), out, nil
	}
}

func formatContradictions(contradictions []graph.Contradiction) []string {
	if len(contradictions) == 0 {
		return nil
	}
	out := make([]string, 0, len(contradictions))
	for _, c := range contradictions {
		out = append(out, fmt.Sprintf("%s.%s: proposed %v but the graph has %v", c.EntityID, c.Property, c.ValueA, c.ValueB))
	}
	return out
}

func summarizeContext(retrieved workflow.RetrievedContext) string {
	return fmt.Sprintf("%d entities, %d relations, %d lore passages (relevance %.2f)",
		len(retrieved.Entities), len(retrieved.Relations), len(retrieved.VectorHits), retrieved.RelevanceScore)
}

func textResult(text string) *mcpsdk.CallToolResult {
	return &mcpsdk.CallToolResult{
		Content: []mcpsdk.Content{&mcpsdk.TextContent{Text: text}},
	}
}
