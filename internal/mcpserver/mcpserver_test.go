package mcpserver

import (
	"context"
	"testing"

	mcpsdk "github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/worldgraph/ace/internal/ingestion"
	"github.com/worldgraph/ace/internal/jobs"
	"github.com/worldgraph/ace/internal/workflow"
	graphmock "github.com/worldgraph/ace/pkg/graph/mock"
	"github.com/worldgraph/ace/pkg/llm"
	llmmock "github.com/worldgraph/ace/pkg/llm/mock"
	"github.com/worldgraph/ace/pkg/prompt"
	vectormock "github.com/worldgraph/ace/pkg/vector/mock"
)

const mcpExtractionJSON = `{
	"entities": [{"type": "Faction", "mention": "Ashen Concord", "attributes": {"name": "Ashen Concord"}, "confidence": 0.9}],
	"relations": []
}`

// dialServer starts sdk over an in-memory transport pair and returns a
// connected client session, mirroring the teacher pack's own
// NewInMemoryTransports test helper (codeready-toolchain-tarsy's
// test/e2e/mcp_helpers.go).
func dialServer(t *testing.T, sdk *mcpsdk.Server) *mcpsdk.ClientSession {
	t.Helper()
	clientTransport, serverTransport := mcpsdk.NewInMemoryTransports()

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	go func() { _ = sdk.Run(ctx, serverTransport) }()

	client := mcpsdk.NewClient(&mcpsdk.Implementation{Name: "ace-test", Version: "test"}, nil)
	session, err := client.Connect(context.Background(), clientTransport, nil)
	if err != nil {
		t.Fatalf("connect: %v", err)
	}
	t.Cleanup(func() { _ = session.Close() })
	return session
}

func newTestServer(t *testing.T) *Server {
	t.Helper()
	reg, err := prompt.Load()
	if err != nil {
		t.Fatalf("prompt.Load: %v", err)
	}

	provider := &llmmock.Provider{CompleteResponse: &llm.CompletionResponse{Content: mcpExtractionJSON}}
	g := graphmock.New()
	pipeline := ingestion.NewPipeline(provider, reg, g, vectormock.New())
	tracker := jobs.NewTracker()
	queue := jobs.NewQueue(pipeline, tracker, 2, 8)
	t.Cleanup(queue.Close)

	wf := workflow.New(provider, reg, g, vectormock.New())

	return New(queue, tracker, wf)
}

func TestAceJobStatusReportsNotFoundForUnknownJob(t *testing.T) {
	srv := newTestServer(t)
	session := dialServer(t, srv.sdk)

	result, err := session.CallTool(context.Background(), &mcpsdk.CallToolParams{
		Name:      "ace_job_status",
		Arguments: map[string]any{"job_id": "does-not-exist"},
	})
	if err != nil {
		t.Fatalf("CallTool: %v", err)
	}
	if result.IsError {
		t.Fatalf("expected a successful (not-found) result, got error result: %+v", result)
	}
}

func TestAceIngestRejectsEmptyText(t *testing.T) {
	srv := newTestServer(t)
	session := dialServer(t, srv.sdk)

	result, err := session.CallTool(context.Background(), &mcpsdk.CallToolParams{
		Name:      "ace_ingest",
		Arguments: map[string]any{"text": ""},
	})
	if err != nil {
		t.Fatalf("CallTool: %v", err)
	}
	if result.IsError {
		t.Fatalf("expected a successful (validation-rejected) result, got error result: %+v", result)
	}
}
