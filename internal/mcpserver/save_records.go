package mcpserver

import (
	"context"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/starford/folio/internal/models"
)

const maxBatchRecords = 10000

type saveResult struct {
	IDs   []string `json:"ids"`
	Error string   `json:"error,omitempty"`
}

func (s *Server) saveRecords(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	typ, err := req.RequireString("type")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	docs, err := documents(req.GetArguments()["records"])
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	ids, err := s.svc.SaveBatch(ctx, typ, docs)
	res := saveResult{IDs: ids}
	if err != nil {
		res.Error = err.Error()
		out, _ := jsonResult(res)
		out.IsError = true
		return out, nil
	}
	return jsonResult(res)
}

// documents converts a decoded JSON array argument into documents.
func documents(raw any) ([]models.Document, error) {
	items, ok := raw.([]any)
	if !ok {
		return nil, fmt.Errorf("records must be an array of objects")
	}
	if len(items) == 0 {
		return nil, fmt.Errorf("records must not be empty")
	}
	if len(items) > maxBatchRecords {
		return nil, fmt.Errorf("too many records: %d (max %d)", len(items), maxBatchRecords)
	}
	docs := make([]models.Document, len(items))
	for i, it := range items {
		m, ok := it.(map[string]any)
		if !ok {
			return nil, fmt.Errorf("records[%d] is not an object", i)
		}
		docs[i] = models.Document(m)
	}
	return docs, nil
}
