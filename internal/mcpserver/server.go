// Package mcpserver provides an MCP (Model Context Protocol) server
// that exposes the oodle collection to LLM clients via stdio transport.
package mcpserver

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/oodleworks/oodles/internal/collection"
	"github.com/oodleworks/oodles/internal/oodle"
)

// Server wraps the MCP server with oodle tools.
type Server struct {
	mcp *server.MCPServer
	col *collection.Collection
}

// New creates a new MCP server with all oodle tools registered.
func New(col *collection.Collection) *Server {
	s := &Server{col: col}

	s.mcp = server.NewMCPServer(
		"Oodles",
		"1.0.0",
		server.WithToolCapabilities(false),
		server.WithResourceCapabilities(false, false),
	)

	s.mcp.AddTool(mcp.NewTool("list_oodles",
		mcp.WithDescription("List all oodle documents with their titles and file names."),
	), s.listOodles)

	s.mcp.AddTool(mcp.NewTool("read_oodle",
		mcp.WithDescription("Read an oodle document: its messages, references, and backlinks."),
		mcp.WithString("file", mcp.Required(), mcp.Description("Document file name (e.g. notes.oodle)")),
	), s.readOodle)

	s.mcp.AddTool(mcp.NewTool("create_oodle",
		mcp.WithDescription("Create a new oodle document with its first message. "+
			"Message content is free text; cite other documents with {ID} or {ID/N} "+
			"tokens. Read the format first via the get_oodle_format tool or the "+
			"oodle://format resource."),
		mcp.WithString("title", mcp.Required(), mcp.Description("Document title")),
		mcp.WithString("file", mcp.Required(), mcp.Description("File name for the new document")),
		mcp.WithString("content", mcp.Required(), mcp.Description("Content of the first message")),
	), s.createOodle)

	s.mcp.AddTool(mcp.NewTool("append_message",
		mcp.WithDescription("Append a message to an existing oodle document."),
		mcp.WithString("file", mcp.Required(), mcp.Description("Document file name")),
		mcp.WithString("content", mcp.Required(), mcp.Description("Message content")),
	), s.appendMessage)

	s.mcp.AddTool(mcp.NewTool("get_backlinks",
		mcp.WithDescription("Find all messages citing the specified document, or one of its messages."),
		mcp.WithString("file", mcp.Required(), mcp.Description("Document file name")),
		mcp.WithString("message", mcp.Description("Optional message id to narrow to")),
	), s.getBacklinks)

	s.mcp.AddTool(mcp.NewTool("get_oodle_format",
		mcp.WithDescription("Returns the canonical oodle document format. "+
			"Call this before creating documents to understand citation tokens."),
	), s.getOodleFormat)

	// Resource: document format.
	s.mcp.AddResource(
		mcp.NewResource("oodle://format", "Oodle Format",
			mcp.WithResourceDescription("Canonical oodle document format and citation grammar."),
			mcp.WithMIMEType("text/markdown"),
		),
		s.readFormatResource,
	)

	return s
}

// ServeStdio starts the MCP server on stdin/stdout.
func (s *Server) ServeStdio() error {
	return server.ServeStdio(s.mcp)
}

// MCPServer returns the underlying server for testing.
func (s *Server) MCPServer() *server.MCPServer {
	return s.mcp
}

func (s *Server) listOodles(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	out, _ := json.MarshalIndent(s.col.Metadata(), "", "  ")
	return mcp.NewToolResultText(string(out)), nil
}

func (s *Server) readOodle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	file, err := req.RequireString("file")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	doc, err := s.col.Get(file)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("not found: %s", file)), nil
	}
	out, _ := json.MarshalIndent(doc, "", "  ")
	return mcp.NewToolResultText(string(out)), nil
}

func (s *Server) createOodle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	title, err := req.RequireString("title")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	file, err := req.RequireString("file")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	content, err := req.RequireString("content")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	doc, err := s.col.Create(title, file, content)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(fmt.Sprintf("created: %s [%s]", doc.File, doc.ID)), nil
}

func (s *Server) appendMessage(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	file, err := req.RequireString("file")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	content, err := req.RequireString("content")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	id, err := s.col.Append(file, content)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(fmt.Sprintf("appended message %d to %s", id, file)), nil
}

func (s *Server) getBacklinks(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	file, err := req.RequireString("file")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	var backlinks []oodle.Backlink
	if m, strErr := req.RequireString("message"); strErr == nil && m != "" {
		id, convErr := strconv.Atoi(m)
		if convErr != nil {
			return mcp.NewToolResultError(fmt.Sprintf("no message %s in %s", m, file)), nil
		}
		backlinks, err = s.col.MessageBacklinks(file, id)
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("no message %s in %s", m, file)), nil
		}
	} else {
		backlinks, err = s.col.DocumentBacklinks(file)
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("not found: %s", file)), nil
		}
	}

	if len(backlinks) == 0 {
		return mcp.NewToolResultText("no backlinks found"), nil
	}
	out, _ := json.MarshalIndent(backlinks, "", "  ")
	return mcp.NewToolResultText(string(out)), nil
}

func (s *Server) getOodleFormat(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return mcp.NewToolResultText(OodleFormatContract), nil
}

func (s *Server) readFormatResource(ctx context.Context, req mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	return []mcp.ResourceContents{
		mcp.TextResourceContents{
			URI:      "oodle://format",
			MIMEType: "text/markdown",
			Text:     OodleFormatContract,
		},
	}, nil
}
