package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"

	"github.com/google/uuid"

	"github.com/scrypster/keeper/internal/assembler"
	"github.com/scrypster/keeper/internal/config"
	"github.com/scrypster/keeper/internal/journal"
	"github.com/scrypster/keeper/internal/schema"
	"github.com/scrypster/keeper/internal/search"
	"github.com/scrypster/keeper/internal/storage"
	"github.com/scrypster/keeper/pkg/types"
)

// Server exposes the memory store over JSON-RPC 2.0. It holds no state of
// its own beyond a session ID; every tool call goes straight to the store.
type Server struct {
	store     storage.ItemStore
	search    *search.Engine
	assembler *assembler.Assembler
	journal   *journal.Store
	cfg       *config.Config
	sessionID string
}

// ServerOption is a functional option for configuring a Server.
type ServerOption func(*Server)

// WithConfig injects the loaded configuration. Without it the server falls
// back to built-in defaults for budgets and limits.
func WithConfig(cfg *config.Config) ServerOption {
	return func(s *Server) { s.cfg = cfg }
}

// WithJournal enables the journal_append and journal_read tools.
func WithJournal(j *journal.Store) ServerOption {
	return func(s *Server) { s.journal = j }
}

// NewServer creates an MCP server around the given store. When the store
// also implements storage.Snapshotter (the file-backed engine does), the
// search and context tools are wired automatically.
func NewServer(store storage.ItemStore, opts ...ServerOption) *Server {
	s := &Server{
		store:     store,
		sessionID: uuid.New().String(),
	}
	for _, opt := range opts {
		opt(s)
	}
	if snap, ok := store.(storage.Snapshotter); ok {
		s.search = search.NewEngine(snap)
		s.assembler = assembler.New(snap, s.assemblerOptions())
	}
	log.Printf("keeper-mcp: session ID: %s", s.sessionID)
	return s
}

func (s *Server) assemblerOptions() assembler.Options {
	if s.cfg == nil {
		return assembler.DefaultOptions()
	}
	return assembler.Options{
		RecentFacts:       s.cfg.Context.RecentFacts,
		RecentReflections: s.cfg.Context.RecentReflections,
	}
}

func (s *Server) defaultSearchLimit() int {
	if s.cfg != nil && s.cfg.Search.DefaultLimit > 0 {
		return s.cfg.Search.DefaultLimit
	}
	return 20
}

func (s *Server) defaultContextBudget() int {
	if s.cfg != nil && s.cfg.Context.Budget > 0 {
		return s.cfg.Context.Budget
	}
	return 8000
}

// HandleRequest processes one JSON-RPC 2.0 request and returns the encoded
// response frame. This is the single entry point for both the stdio
// transport and tests.
func (s *Server) HandleRequest(ctx context.Context, requestJSON []byte) ([]byte, error) {
	var req JSONRPCRequest
	if err := json.Unmarshal(requestJSON, &req); err != nil {
		return s.errorResponse(nil, ErrCodeParseError, "Parse error")
	}
	if req.JSONRPC != "2.0" {
		return s.errorResponse(req.ID, ErrCodeInvalidRequest, "Invalid JSON-RPC version")
	}

	var result interface{}
	var err error

	switch req.Method {
	case "initialize":
		result = MCPInitializeResult{
			ProtocolVersion: "2024-11-05",
			Capabilities:    MCPServerCapabilities{Tools: &MCPToolsCapability{}},
			ServerInfo:      MCPServerInfo{Name: "keeper", Version: "1.0.0"},
		}
	case "initialized":
		// Notification — no response body required; return empty object.
		result = map[string]interface{}{}
	case "tools/list":
		result = MCPToolsListResult{Tools: toolDefinitions(s.journal != nil)}
	case "tools/call":
		result, err = s.handleToolsCall(ctx, req.Params)
	default:
		// Direct-method dispatch for callers that skip the MCP envelope.
		result, err = s.dispatch(ctx, req.Method, req.Params)
		if errors.Is(err, errUnknownMethod) {
			return s.errorResponse(req.ID, ErrCodeMethodNotFound, fmt.Sprintf("Method not found: %s", req.Method))
		}
	}

	if err != nil {
		return s.errorResponse(req.ID, errorCode(err), err.Error())
	}
	return s.successResponse(req.ID, result)
}

// errUnknownMethod distinguishes "no such tool" from tool failures.
var errUnknownMethod = errors.New("unknown method")

// errorCode maps store errors onto JSON-RPC codes: rejected inputs are
// invalid-params, everything else is a generic server error.
func errorCode(err error) int {
	switch {
	case errors.Is(err, storage.ErrSchemaViolation),
		errors.Is(err, storage.ErrInvalidTransition),
		errors.Is(err, storage.ErrImmutable),
		errors.Is(err, storage.ErrAppendOnly),
		errors.Is(err, storage.ErrDeletionForbidden),
		errors.Is(err, storage.ErrNotFound):
		return ErrCodeInvalidParams
	default:
		return ErrCodeServerError
	}
}

// handleToolsCall unwraps the MCP envelope, dispatches the named tool, and
// wraps the result (or error) back into the content envelope. Tool failures
// are reported in-band with isError, not as protocol errors.
func (s *Server) handleToolsCall(ctx context.Context, params json.RawMessage) (interface{}, error) {
	var p MCPToolCallParams
	if err := json.Unmarshal(params, &p); err != nil {
		return nil, fmt.Errorf("invalid tools/call params: %w", err)
	}

	result, err := s.dispatch(ctx, p.Name, p.Arguments)
	if errors.Is(err, errUnknownMethod) {
		return &MCPToolCallResult{
			Content: []MCPToolCallContent{{Type: "text", Text: fmt.Sprintf("unknown tool: %s", p.Name)}},
			IsError: true,
		}, nil
	}
	if err != nil {
		return &MCPToolCallResult{
			Content: []MCPToolCallContent{{Type: "text", Text: err.Error()}},
			IsError: true,
		}, nil
	}

	text, err := json.Marshal(result)
	if err != nil {
		return nil, fmt.Errorf("marshal tool result: %w", err)
	}
	return &MCPToolCallResult{
		Content: []MCPToolCallContent{{Type: "text", Text: string(text)}},
	}, nil
}

// dispatch routes a tool name to its handler.
func (s *Server) dispatch(ctx context.Context, name string, params json.RawMessage) (interface{}, error) {
	switch name {
	case "write_fact":
		return s.handleWriteFact(ctx, params)
	case "write_decision":
		return s.handleWriteDecision(ctx, params)
	case "write_goal":
		return s.handleWriteGoal(ctx, params)
	case "write_task":
		return s.handleWriteTask(ctx, params)
	case "write_reflection":
		return s.handleWriteReflection(ctx, params)
	case "read_memory":
		return s.handleReadMemory(ctx, params)
	case "search_memory":
		return s.handleSearchMemory(ctx, params)
	case "list_memories":
		return s.handleListMemories(ctx, params)
	case "update_memory":
		return s.handleUpdateMemory(ctx, params)
	case "update_task_status":
		return s.handleUpdateTaskStatus(ctx, params)
	case "delete_memory":
		return s.handleDeleteMemory(ctx, params)
	case "build_context":
		return s.handleBuildContext(ctx, params)
	case "journal_append":
		return s.handleJournalAppend(ctx, params)
	case "journal_read":
		return s.handleJournalRead(ctx, params)
	}
	return nil, errUnknownMethod
}

// unmarshalArgs decodes tool arguments, tolerating null/absent params for
// tools whose arguments are all optional.
func unmarshalArgs(params json.RawMessage, into interface{}) error {
	if len(params) == 0 {
		return nil
	}
	if err := json.Unmarshal(params, into); err != nil {
		return fmt.Errorf("invalid arguments: %w", err)
	}
	return nil
}

func (s *Server) handleWriteFact(ctx context.Context, params json.RawMessage) (interface{}, error) {
	var args WriteFactArgs
	if err := unmarshalArgs(params, &args); err != nil {
		return nil, err
	}
	return s.create(ctx, args.Title, args.Body, args.Tags, types.FactFields{
		Confidence: args.Confidence,
		Source:     args.Source,
	})
}

func (s *Server) handleWriteDecision(ctx context.Context, params json.RawMessage) (interface{}, error) {
	var args WriteDecisionArgs
	if err := unmarshalArgs(params, &args); err != nil {
		return nil, err
	}
	if args.Status == "" {
		args.Status = string(types.DecisionActive)
	}
	return s.create(ctx, args.Title, args.Body, args.Tags, types.DecisionFields{
		Status:     types.DecisionStatus(args.Status),
		Supersedes: args.Supersedes,
		Rationale:  args.Rationale,
		Scope:      args.Scope,
	})
}

func (s *Server) handleWriteGoal(ctx context.Context, params json.RawMessage) (interface{}, error) {
	var args WriteGoalArgs
	if err := unmarshalArgs(params, &args); err != nil {
		return nil, err
	}
	if args.Status == "" {
		args.Status = string(types.GoalActive)
	}
	return s.create(ctx, args.Title, args.Body, args.Tags, types.GoalFields{
		Status:   types.GoalStatus(args.Status),
		Priority: args.Priority,
		Horizon:  args.Horizon,
	})
}

func (s *Server) handleWriteTask(ctx context.Context, params json.RawMessage) (interface{}, error) {
	var args WriteTaskArgs
	if err := unmarshalArgs(params, &args); err != nil {
		return nil, err
	}
	if args.Status == "" {
		args.Status = string(types.TaskOpen)
	}
	return s.create(ctx, args.Title, args.Body, args.Tags, types.TaskFields{
		Status:      types.TaskStatus(args.Status),
		Assignee:    args.Assignee,
		Deadline:    args.Deadline,
		Priority:    args.Priority,
		RelatedGoal: args.RelatedGoal,
	})
}

func (s *Server) handleWriteReflection(ctx context.Context, params json.RawMessage) (interface{}, error) {
	var args WriteReflectionArgs
	if err := unmarshalArgs(params, &args); err != nil {
		return nil, err
	}
	return s.create(ctx, args.Title, args.Body, args.Tags, types.ReflectionFields{
		Context: args.Context,
	})
}

// create funnels all write_<category> tools through the store, flagging
// idempotent no-ops on existing content.
func (s *Server) create(ctx context.Context, title, body string, tags FlexTags, fields types.Fields) (interface{}, error) {
	existingID := types.ItemID(title, body)
	existedBefore := false
	if _, err := s.store.Read(ctx, fields.Category(), existingID); err == nil {
		existedBefore = true
	}

	item, err := s.store.Create(ctx, title, body, tags, fields)
	if err != nil {
		return nil, err
	}
	return &WriteResult{Item: itemJSON(item), Existing: existedBefore}, nil
}

func (s *Server) handleReadMemory(ctx context.Context, params json.RawMessage) (interface{}, error) {
	var args ReadMemoryArgs
	if err := unmarshalArgs(params, &args); err != nil {
		return nil, err
	}
	cat, err := types.ParseCategory(args.Category)
	if err != nil {
		return nil, err
	}
	item, err := s.store.Read(ctx, cat, args.ID)
	if err != nil {
		return nil, err
	}
	return &ReadResult{Item: itemJSON(item)}, nil
}

func (s *Server) handleSearchMemory(ctx context.Context, params json.RawMessage) (interface{}, error) {
	var args SearchMemoryArgs
	if err := unmarshalArgs(params, &args); err != nil {
		return nil, err
	}
	if s.search == nil {
		return nil, fmt.Errorf("search is not available for this store")
	}
	var cats []types.Category
	for _, c := range args.Categories {
		cat, err := types.ParseCategory(c)
		if err != nil {
			return nil, err
		}
		cats = append(cats, cat)
	}
	limit := args.Limit
	if limit <= 0 {
		limit = s.defaultSearchLimit()
	}

	results := s.search.Search(args.Query, cats, limit)
	out := &SearchResult{Results: make([]SearchResultJSON, 0, len(results)), Total: len(results)}
	for _, r := range results {
		out.Results = append(out.Results, SearchResultJSON{Item: itemJSON(r.Item), Score: r.Score})
	}
	return out, nil
}

func (s *Server) handleListMemories(ctx context.Context, params json.RawMessage) (interface{}, error) {
	var args ListMemoriesArgs
	if err := unmarshalArgs(params, &args); err != nil {
		return nil, err
	}
	cat, err := types.ParseCategory(args.Category)
	if err != nil {
		return nil, err
	}
	items, err := s.store.List(ctx, cat, storage.ListOptions{IncludeArchived: args.IncludeArchived})
	if err != nil {
		return nil, err
	}
	out := &ListResult{Items: make([]ItemJSON, 0, len(items)), Total: len(items)}
	for _, item := range items {
		out.Items = append(out.Items, itemJSON(item))
	}
	return out, nil
}

func (s *Server) handleUpdateMemory(ctx context.Context, params json.RawMessage) (interface{}, error) {
	var args UpdateMemoryArgs
	if err := unmarshalArgs(params, &args); err != nil {
		return nil, err
	}
	cat, err := types.ParseCategory(args.Category)
	if err != nil {
		return nil, err
	}
	patch := storage.Patch{
		Title:      args.Title,
		Body:       args.Body,
		Status:     args.Status,
		Priority:   args.Priority,
		Horizon:    args.Horizon,
		Confidence: args.Confidence,
		Source:     args.Source,
	}
	if args.Tags != nil {
		patch.Tags = args.Tags
	}
	item, err := s.store.Update(ctx, cat, args.ID, patch)
	if err != nil {
		return nil, err
	}
	return &ReadResult{Item: itemJSON(item)}, nil
}

func (s *Server) handleUpdateTaskStatus(ctx context.Context, params json.RawMessage) (interface{}, error) {
	var args UpdateTaskStatusArgs
	if err := unmarshalArgs(params, &args); err != nil {
		return nil, err
	}
	item, err := s.store.UpdateTaskStatus(ctx, args.ID, types.TaskStatus(args.Status))
	if err != nil {
		return nil, err
	}
	return &ReadResult{Item: itemJSON(item)}, nil
}

func (s *Server) handleDeleteMemory(ctx context.Context, params json.RawMessage) (interface{}, error) {
	var args DeleteMemoryArgs
	if err := unmarshalArgs(params, &args); err != nil {
		return nil, err
	}
	cat, err := types.ParseCategory(args.Category)
	if err != nil {
		return nil, err
	}
	if err := s.store.Delete(ctx, cat, args.ID); err != nil {
		return nil, err
	}
	outcome := "deleted"
	if schema.For(cat).Deletion == schema.ArchiveOnly {
		outcome = "archived"
	}
	return &DeleteResult{Outcome: outcome}, nil
}

func (s *Server) handleBuildContext(ctx context.Context, params json.RawMessage) (interface{}, error) {
	var args BuildContextArgs
	if err := unmarshalArgs(params, &args); err != nil {
		return nil, err
	}
	if s.assembler == nil {
		return nil, fmt.Errorf("context assembly is not available for this store")
	}
	budget := args.Budget
	if budget <= 0 {
		budget = s.defaultContextBudget()
	}
	digest := s.assembler.Build(budget)
	return &ContextResult{Context: digest, Size: len(digest), Budget: budget}, nil
}

func (s *Server) handleJournalAppend(ctx context.Context, params json.RawMessage) (interface{}, error) {
	var args JournalAppendArgs
	if err := unmarshalArgs(params, &args); err != nil {
		return nil, err
	}
	if s.journal == nil {
		return nil, fmt.Errorf("journal is not configured")
	}
	if err := s.journal.Append(args.Entry); err != nil {
		return nil, err
	}
	return &JournalResult{Message: "journal entry recorded"}, nil
}

func (s *Server) handleJournalRead(ctx context.Context, params json.RawMessage) (interface{}, error) {
	var args JournalReadArgs
	if err := unmarshalArgs(params, &args); err != nil {
		return nil, err
	}
	if s.journal == nil {
		return nil, fmt.Errorf("journal is not configured")
	}
	var content string
	var err error
	if args.Date == "" {
		content, err = s.journal.Today()
	} else {
		content, err = s.journal.Read(args.Date)
	}
	if err != nil {
		return nil, err
	}
	return &JournalResult{Date: args.Date, Content: content}, nil
}

func (s *Server) successResponse(id interface{}, result interface{}) ([]byte, error) {
	return json.Marshal(JSONRPCResponse{JSONRPC: "2.0", ID: id, Result: result})
}

func (s *Server) errorResponse(id interface{}, code int, message string) ([]byte, error) {
	return json.Marshal(JSONRPCResponse{
		JSONRPC: "2.0",
		ID:      id,
		Error:   &JSONRPCError{Code: code, Message: message},
	})
}
