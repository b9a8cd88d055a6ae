// Package mcpserver provides an MCP (Model Context Protocol) server
// that exposes folio record tools for LLM integration via stdio transport.
package mcpserver

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/starford/folio/internal/apperr"
	"github.com/starford/folio/internal/models"
	"github.com/starford/folio/internal/recordservice"
)

const contractURI = "folio://record-format"

// Server wraps the MCP server with folio tools.
type Server struct {
	mcp *server.MCPServer
	svc *recordservice.Service
}

// New creates a new MCP server with all folio tools registered.
func New(svc *recordservice.Service) *Server {
	s := &Server{svc: svc}

	s.mcp = server.NewMCPServer(
		"Folio",
		"1.0.0",
		server.WithToolCapabilities(false),
		server.WithResourceCapabilities(false, false),
	)

	s.mcp.AddTool(mcp.NewTool("list_types",
		mcp.WithDescription("List the record types in the store with their record counts."),
	), s.listTypes)

	s.mcp.AddTool(mcp.NewTool("get_record",
		mcp.WithDescription("Read one record with its checksum."),
		mcp.WithString("type", mcp.Required(), mcp.Description("Record type (e.g. Task)")),
		mcp.WithString("id", mcp.Required(), mcp.Description("Record id")),
	), s.getRecord)

	s.mcp.AddTool(mcp.NewTool("query_records",
		mcp.WithDescription("List records of a type with an optional filter and sort. "+
			"Filter clauses are comma separated: field=value, field!=value, field~glob. "+
			"Sort keys are comma separated field names, prefixed with - for descending."),
		mcp.WithString("type", mcp.Required(), mcp.Description("Record type")),
		mcp.WithString("filter", mcp.Description("Filter expression (e.g. status=open,title~*docs*)")),
		mcp.WithString("sort", mcp.Description("Sort expression (e.g. -priority,title)")),
		mcp.WithNumber("limit", mcp.Description("Maximum number of records to return")),
		mcp.WithNumber("offset", mcp.Description("Number of matching records to skip")),
	), s.queryRecords)

	s.mcp.AddTool(mcp.NewTool("save_record",
		mcp.WithDescription("Create or replace one record. A record without an id is created "+
			"with a generated id. Read the contract first via the get_record_contract tool or "+
			"the "+contractURI+" resource."),
		mcp.WithString("type", mcp.Required(), mcp.Description("Record type")),
		mcp.WithObject("data", mcp.Required(), mcp.Description("Record fields; id is optional")),
		mcp.WithString("checksum", mcp.Description("Checksum from get_record; the save fails if the record changed since")),
	), s.saveRecord)

	s.mcp.AddTool(mcp.NewTool("save_records",
		mcp.WithDescription("Save many records of one type in a single batch."),
		mcp.WithString("type", mcp.Required(), mcp.Description("Record type")),
		mcp.WithArray("records", mcp.Required(),
			mcp.Description("Records to save"),
			mcp.Items(map[string]any{"type": "object"}),
		),
	), s.saveRecords)

	s.mcp.AddTool(mcp.NewTool("delete_record",
		mcp.WithDescription("Delete one record. Deleting a missing record succeeds."),
		mcp.WithString("type", mcp.Required(), mcp.Description("Record type")),
		mcp.WithString("id", mcp.Required(), mcp.Description("Record id")),
	), s.deleteRecord)

	s.mcp.AddTool(mcp.NewTool("get_record_contract",
		mcp.WithDescription("Returns the folio record format contract. "+
			"Call this before saving records to ensure correct structure."),
	), s.getRecordContract)

	// Resource: record format contract.
	s.mcp.AddResource(
		mcp.NewResource(contractURI, "Record Format Contract",
			mcp.WithResourceDescription("How folio records are addressed, stored and queried."),
			mcp.WithMIMEType("text/markdown"),
		),
		s.readRecordFormatResource,
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

func jsonResult(v any) (*mcp.CallToolResult, error) {
	out, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(string(out)), nil
}

func (s *Server) listTypes(ctx context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	types, err := s.svc.Types(ctx)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return jsonResult(types)
}

func (s *Server) getRecord(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	typ, err := req.RequireString("type")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	id, err := req.RequireString("id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	env, err := s.svc.Get(ctx, typ, id)
	if err != nil {
		if errors.Is(err, apperr.ErrNotFound) {
			return mcp.NewToolResultError(fmt.Sprintf("not found: %s/%s", typ, id)), nil
		}
		return mcp.NewToolResultError(err.Error()), nil
	}
	return jsonResult(env)
}

func (s *Server) queryRecords(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	typ, err := req.RequireString("type")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	items, total, err := s.svc.List(ctx, typ, recordservice.ListOptions{
		Filter: req.GetString("filter", ""),
		Sort:   req.GetString("sort", ""),
		Limit:  req.GetInt("limit", 0),
		Offset: req.GetInt("offset", 0),
	})
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return jsonResult(map[string]any{"records": items, "total": total})
}

func (s *Server) saveRecord(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	typ, err := req.RequireString("type")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	data, ok := req.GetArguments()["data"].(map[string]any)
	if !ok {
		return mcp.NewToolResultError("data must be an object"), nil
	}
	doc := models.Document(data)

	var env *models.Envelope
	if id := doc.RecordID(); id != "" {
		env, err = s.svc.Update(ctx, typ, id, doc, req.GetString("checksum", ""))
		if errors.Is(err, apperr.ErrNotFound) {
			env, err = s.svc.Create(ctx, typ, doc)
		}
	} else {
		env, err = s.svc.Create(ctx, typ, doc)
	}
	if err != nil {
		if errors.Is(err, apperr.ErrConflict) {
			return mcp.NewToolResultError("checksum mismatch: re-read the record and retry"), nil
		}
		return mcp.NewToolResultError(err.Error()), nil
	}
	return jsonResult(env)
}

func (s *Server) deleteRecord(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	typ, err := req.RequireString("type")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	id, err := req.RequireString("id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if err := s.svc.Delete(ctx, typ, id); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(fmt.Sprintf("deleted: %s/%s", typ, id)), nil
}

func (s *Server) getRecordContract(_ context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return mcp.NewToolResultText(RecordFormatContract), nil
}

func (s *Server) readRecordFormatResource(_ context.Context, _ mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	return []mcp.ResourceContents{
		mcp.TextResourceContents{
			URI:      contractURI,
			MIMEType: "text/markdown",
			Text:     RecordFormatContract,
		},
	}, nil
}
