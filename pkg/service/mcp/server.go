package mcp

import (
	"context"

	"github.com/m-mizutani/engram/pkg/model"
	"github.com/m-mizutani/engram/pkg/usecase/knowledge"
	"github.com/modelcontextprotocol/go-sdk/mcp"
)

// Server exposes the memory store as MCP tools so that assistant frontends
// can store and recall user memories over the protocol. One server is bound
// to one default owner; tool calls may override it per call.
type Server struct {
	srv   *mcp.Server
	uc    *knowledge.UseCase
	owner model.OwnerID
}

// New creates an MCP server backed by the knowledge use case. defaultOwner
// is used for tool calls that do not name an owner.
func New(uc *knowledge.UseCase, defaultOwner model.OwnerID) *Server {
	s := &Server{
		uc:    uc,
		owner: defaultOwner,
	}

	s.srv = mcp.NewServer(&mcp.Implementation{
		Name:    "engram",
		Version: "0.1.0",
	}, nil)

	mcp.AddTool(s.srv, &mcp.Tool{
		Name: "memory_store",
		Description: "Store a personal memory about the user. Topics are classified " +
			"automatically when omitted. Near-duplicate memories are rejected with a " +
			"reference to the existing memory.",
	}, s.handleStore)

	mcp.AddTool(s.srv, &mcp.Tool{
		Name: "memory_query",
		Description: "Answer a question from stored memories. Mode auto picks between " +
			"fast local vector search and the knowledge graph for relationship questions.",
		InputSchema: queryInputSchema(),
	}, s.handleQuery)

	mcp.AddTool(s.srv, &mcp.Tool{
		Name:        "memory_update",
		Description: "Update the content or topics of an existing memory by id.",
	}, s.handleUpdate)

	mcp.AddTool(s.srv, &mcp.Tool{
		Name: "memory_forget",
		Description: "Delete a single memory by id, or every memory carrying one of " +
			"the given topics.",
	}, s.handleForget)

	mcp.AddTool(s.srv, &mcp.Tool{
		Name:        "memory_clear",
		Description: "Delete ALL memories of the owner. This cannot be undone.",
	}, s.handleClear)

	mcp.AddTool(s.srv, &mcp.Tool{
		Name:        "memory_list",
		Description: "List stored memories, most recent first, optionally filtered by topic.",
	}, s.handleList)

	mcp.AddTool(s.srv, &mcp.Tool{
		Name:        "memory_stats",
		Description: "Report how many memories are stored and their topic counts.",
	}, s.handleStats)

	return s
}

// Run serves the MCP protocol on stdio until the client disconnects or the
// context is canceled.
func (s *Server) Run(ctx context.Context) error {
	return s.srv.Run(ctx, &mcp.StdioTransport{})
}

// Connect attaches the server to the given transport and returns the
// session, for embedding the server in another process.
func (s *Server) Connect(ctx context.Context, t mcp.Transport) (*mcp.ServerSession, error) {
	return s.srv.Connect(ctx, t, nil)
}

func (s *Server) resolveOwner(owner string) model.OwnerID {
	if owner == "" {
		return s.owner
	}
	return model.OwnerID(owner)
}
