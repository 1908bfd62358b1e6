package mcpserver

import (
	"context"
	"fmt"

	mcpsdk "github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/worldgraph/ace/internal/jobs"
	"github.com/worldgraph/ace/internal/workflow"
)

const (
	serverName    = "ace"
	serverVersion = "0.1.0"
)

// Server wraps an *mcpsdk.Server with ACE's three tools already registered.
// It is the optional "ace mcp-serve" process mode; the ingestion and
// inference paths underneath remain plain Go library calls usable without
// MCP at all.
type Server struct {
	sdk *mcpsdk.Server
}

// New builds a Server backed by queue (ace_ingest submissions), tracker
// (ace_job_status lookups), and wf (ace_query inference).
func New(queue *jobs.Queue, tracker *jobs.Tracker, wf *workflow.Workflow) *Server {
	sdk := mcpsdk.NewServer(&mcpsdk.Implementation{
		Name:    serverName,
		Version: serverVersion,
	}, nil)

	registerTools(sdk, queue, tracker, wf)

	return &Server{sdk: sdk}
}

// Run serves MCP requests over stdio until ctx is cancelled or the client
// closes the connection.
func (s *Server) Run(ctx context.Context) error {
	if err := s.sdk.Run(ctx, &mcpsdk.StdioTransport{}); err != nil {
		return fmt.Errorf("mcpserver: run: %w", err)
	}
	return nil
}
