package mcptools

import (
	"context"
	"net/http"

	"github.com/modelcontextprotocol/go-sdk/mcp"
)

// version is set by the linker at build time.
var version = "dev"

// NewUPGMCPServer creates an MCP server with the six propagation graph tools registered.
func NewUPGMCPServer(svc *UPGService) *mcp.Server {
	server := mcp.NewServer(&mcp.Implementation{
		Name:    "upg",
		Version: version,
	}, nil)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "analyze_crate",
		Description: "Analyze a Rust crate and build the unsafety propagation graph. Parses the sources with tree-sitter, summarizes every function, aggregates ADT accesses and resolves privileges.",
	}, svc.AnalyzeCrate)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "query_functions",
		Description: "Search analyzed functions and their callees by path substring. Optionally restrict to unsafe functions and limit results.",
	}, svc.QueryFunctions)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "get_function",
		Description: "Return one function with its safety, safety property tags, documentation and direct callers and callees.",
	}, svc.GetFunction)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "get_propagation",
		Description: "Traverse the call graph from a function toward its callers or its callees. Returns call chains up to the specified depth, flagging chains that end at an unsafe function.",
	}, svc.GetPropagation)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "get_adt_accessors",
		Description: "List the functions that access a struct, enum or union, with the access kind and whether the value was a parameter.",
	}, svc.GetAdtAccessors)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "graph_stats",
		Description: "Return function, unsafe function, ADT, call, access and navigation node counts of the current graph.",
	}, svc.GraphStats)

	return server
}

// RunMCPServerStdio runs the MCP server on stdio transport, blocking
// until stdin is closed or the context is cancelled.
func RunMCPServerStdio(ctx context.Context, server *mcp.Server) error {
	return server.Run(ctx, &mcp.StdioTransport{})
}

// RunMCPServer starts an HTTP server exposing the propagation graph tools.
func RunMCPServer(ctx context.Context, server *mcp.Server, addr string) error {
	handler := mcp.NewStreamableHTTPHandler(
		func(_ *http.Request) *mcp.Server { return server },
		nil,
	)

	httpServer := &http.Server{
		Addr:    addr,
		Handler: handler,
	}

	// Shutdown gracefully when context is cancelled.
	go func() {
		<-ctx.Done()
		httpServer.Shutdown(context.Background())
	}()

	if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}
