package mcpserver

import (
	"context"
	"encoding/json"
	"strings"
	"testing"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/starford/folio/internal/models"
	"github.com/starford/folio/internal/recordservice"
	"github.com/starford/folio/internal/testutil"
)

func testServer(t *testing.T) (*Server, *recordservice.Service) {
	t.Helper()
	svc := recordservice.New(testutil.TempStore(t), testutil.Logger())
	return New(svc), svc
}

func callTool(t *testing.T, srv *Server, name string, args map[string]interface{}) *mcp.CallToolResult {
	t.Helper()
	ctx := context.Background()
	req := mcp.CallToolRequest{}
	req.Method = "tools/call"
	req.Params.Name = name
	req.Params.Arguments = args

	// mcp-go has no direct "call tool" test helper, so the handlers are
	// called directly.
	var result *mcp.CallToolResult
	var err error

	switch name {
	case "list_types":
		result, err = srv.listTypes(ctx, req)
	case "get_record":
		result, err = srv.getRecord(ctx, req)
	case "query_records":
		result, err = srv.queryRecords(ctx, req)
	case "save_record":
		result, err = srv.saveRecord(ctx, req)
	case "save_records":
		result, err = srv.saveRecords(ctx, req)
	case "delete_record":
		result, err = srv.deleteRecord(ctx, req)
	case "get_record_contract":
		result, err = srv.getRecordContract(ctx, req)
	default:
		t.Fatalf("unknown tool: %s", name)
	}

	if err != nil {
		t.Fatalf("tool %s error: %v", name, err)
	}
	return result
}

func resultText(r *mcp.CallToolResult) string {
	if len(r.Content) > 0 {
		if tc, ok := r.Content[0].(mcp.TextContent); ok {
			return tc.Text
		}
	}
	return ""
}

func TestSaveAndGetRecord(t *testing.T) {
	srv, _ := testServer(t)

	r := callTool(t, srv, "save_record", map[string]interface{}{
		"type": "Task",
		"data": map[string]interface{}{"id": "t1", "title": "Hello"},
	})
	if r.IsError {
		t.Fatalf("save failed: %s", resultText(r))
	}

	r = callTool(t, srv, "get_record", map[string]interface{}{"type": "Task", "id": "t1"})
	var env models.Envelope
	if err := json.Unmarshal([]byte(resultText(r)), &env); err != nil {
		t.Fatalf("decode: %v (%s)", err, resultText(r))
	}
	if env.Data["title"] != "Hello" {
		t.Errorf("title = %v, want Hello", env.Data["title"])
	}
	if env.Checksum == "" {
		t.Error("expected checksum")
	}
}

func TestSaveRecord_Replace(t *testing.T) {
	srv, svc := testServer(t)
	created, err := svc.Create(context.Background(), "Task", models.Document{"id": "t1", "v": 1})
	if err != nil {
		t.Fatal(err)
	}

	r := callTool(t, srv, "save_record", map[string]interface{}{
		"type":     "Task",
		"data":     map[string]interface{}{"id": "t1", "v": 2},
		"checksum": created.Checksum,
	})
	if r.IsError {
		t.Fatalf("replace failed: %s", resultText(r))
	}

	r = callTool(t, srv, "save_record", map[string]interface{}{
		"type":     "Task",
		"data":     map[string]interface{}{"id": "t1", "v": 3},
		"checksum": created.Checksum,
	})
	if !r.IsError || !strings.Contains(resultText(r), "checksum mismatch") {
		t.Errorf("stale checksum result = %q", resultText(r))
	}
}

func TestSaveRecord_GeneratesID(t *testing.T) {
	srv, _ := testServer(t)

	r := callTool(t, srv, "save_record", map[string]interface{}{
		"type": "Task",
		"data": map[string]interface{}{"title": "anon"},
	})
	var env models.Envelope
	_ = json.Unmarshal([]byte(resultText(r)), &env)
	if env.ID == "" {
		t.Errorf("expected generated id, got %q", resultText(r))
	}
}

func TestSaveRecord_DataNotObject(t *testing.T) {
	srv, _ := testServer(t)
	r := callTool(t, srv, "save_record", map[string]interface{}{"type": "Task", "data": "nope"})
	if !r.IsError {
		t.Error("expected error for non-object data")
	}
}

func TestGetRecordMissing(t *testing.T) {
	srv, _ := testServer(t)
	r := callTool(t, srv, "get_record", map[string]interface{}{"type": "Task", "id": "nope"})
	if !r.IsError {
		t.Error("expected error for missing record")
	}
	if !strings.Contains(resultText(r), "not found") {
		t.Errorf("text = %q", resultText(r))
	}
}

func TestSaveRecordsAndQuery(t *testing.T) {
	srv, _ := testServer(t)

	r := callTool(t, srv, "save_records", map[string]interface{}{
		"type": "Task",
		"records": []interface{}{
			map[string]interface{}{"id": "a", "status": "open", "priority": 1},
			map[string]interface{}{"id": "b", "status": "done", "priority": 2},
			map[string]interface{}{"id": "c", "status": "open", "priority": 3},
		},
	})
	if r.IsError {
		t.Fatalf("save_records failed: %s", resultText(r))
	}

	r = callTool(t, srv, "query_records", map[string]interface{}{
		"type":   "Task",
		"filter": "status=open",
		"sort":   "-priority",
	})
	var resp struct {
		Records []models.Envelope `json:"records"`
		Total   int               `json:"total"`
	}
	if err := json.Unmarshal([]byte(resultText(r)), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Total != 2 || resp.Records[0].ID != "c" {
		t.Errorf("query = %+v", resp)
	}
}

func TestSaveRecords_Invalid(t *testing.T) {
	srv, _ := testServer(t)
	for _, records := range []interface{}{nil, []interface{}{}, []interface{}{"x"}} {
		r := callTool(t, srv, "save_records", map[string]interface{}{"type": "Task", "records": records})
		if !r.IsError {
			t.Errorf("records %v: expected error", records)
		}
	}
}

func TestQueryRecords_InvalidFilter(t *testing.T) {
	srv, _ := testServer(t)
	r := callTool(t, srv, "query_records", map[string]interface{}{"type": "Task", "filter": "garbage"})
	if !r.IsError {
		t.Error("expected error for invalid filter")
	}
}

func TestDeleteRecordAndListTypes(t *testing.T) {
	srv, svc := testServer(t)
	ctx := context.Background()
	if _, err := svc.SaveBatch(ctx, "Task", []models.Document{{"id": "a"}, {"id": "b"}}); err != nil {
		t.Fatal(err)
	}

	r := callTool(t, srv, "delete_record", map[string]interface{}{"type": "Task", "id": "a"})
	if resultText(r) != "deleted: Task/a" {
		t.Errorf("delete result = %q", resultText(r))
	}

	r = callTool(t, srv, "list_types", map[string]interface{}{})
	var types []models.Summary
	_ = json.Unmarshal([]byte(resultText(r)), &types)
	if len(types) != 1 || types[0].Type != "Task" || types[0].Count != 1 {
		t.Errorf("types = %+v", types)
	}
}

func TestGetRecordContract(t *testing.T) {
	srv, _ := testServer(t)
	r := callTool(t, srv, "get_record_contract", map[string]interface{}{})
	if !strings.Contains(resultText(r), "Folio Record Format Contract") {
		t.Error("contract text missing title")
	}

	contents, err := srv.readRecordFormatResource(context.Background(), mcp.ReadResourceRequest{})
	if err != nil || len(contents) != 1 {
		t.Fatalf("resource = %v, %v", contents, err)
	}
}
