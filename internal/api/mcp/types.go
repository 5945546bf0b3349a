// Package mcp implements the Model Context Protocol (MCP) surface for
// keeper. It exposes the memory store's operation surface as JSON-RPC 2.0
// tools so that AI assistants and agent runtimes can persist and retrieve
// memory items.
package mcp

import (
	"encoding/json"
	"strings"

	"github.com/scrypster/keeper/pkg/types"
)

// JSONRPCRequest is a JSON-RPC 2.0 request frame.
type JSONRPCRequest struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      interface{}     `json:"id,omitempty"`
	Method  string          `json:"method"`
	Params  json.RawMessage `json:"params,omitempty"`
}

// JSONRPCResponse is a JSON-RPC 2.0 response frame.
type JSONRPCResponse struct {
	JSONRPC string        `json:"jsonrpc"`
	ID      interface{}   `json:"id"`
	Result  interface{}   `json:"result,omitempty"`
	Error   *JSONRPCError `json:"error,omitempty"`
}

// JSONRPCError is a JSON-RPC 2.0 error object.
type JSONRPCError struct {
	Code    int         `json:"code"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
}

// JSON-RPC 2.0 error codes.
const (
	ErrCodeParseError     = -32700
	ErrCodeInvalidRequest = -32600
	ErrCodeMethodNotFound = -32601
	ErrCodeInvalidParams  = -32602
	ErrCodeInternalError  = -32603
	ErrCodeServerError    = -32000
)

// FlexTags accepts tags either as a proper JSON array or as a JSON-encoded
// string ("[\"a\",\"b\"]" or "a, b") — some MCP clients send the latter.
type FlexTags []string

// UnmarshalJSON implements the lenient decoding described on FlexTags.
func (t *FlexTags) UnmarshalJSON(data []byte) error {
	var tags []string
	if err := json.Unmarshal(data, &tags); err == nil {
		*t = tags
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return nil // ignore unrecognised tag formats rather than failing
	}
	s = strings.TrimSpace(s)
	if strings.HasPrefix(s, "[") {
		_ = json.Unmarshal([]byte(s), &tags)
		*t = tags
		return nil
	}
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			tags = append(tags, part)
		}
	}
	*t = tags
	return nil
}

// WriteFactArgs contains arguments for the write_fact tool.
type WriteFactArgs struct {
	Title      string   `json:"title"`
	Body       string   `json:"body"`
	Tags       FlexTags `json:"tags,omitempty"`
	Confidence *float64 `json:"confidence,omitempty"`
	Source     string   `json:"source,omitempty"`
}

// WriteDecisionArgs contains arguments for the write_decision tool.
type WriteDecisionArgs struct {
	Title      string   `json:"title"`
	Body       string   `json:"body"`
	Tags       FlexTags `json:"tags,omitempty"`
	Status     string   `json:"status,omitempty"`     // defaults to "active"
	Supersedes string   `json:"supersedes,omitempty"` // ID of the decision this replaces
	Rationale  string   `json:"rationale,omitempty"`
	Scope      string   `json:"scope,omitempty"`
}

// WriteGoalArgs contains arguments for the write_goal tool.
type WriteGoalArgs struct {
	Title    string   `json:"title"`
	Body     string   `json:"body"`
	Tags     FlexTags `json:"tags,omitempty"`
	Status   string   `json:"status,omitempty"` // defaults to "active"
	Priority string   `json:"priority,omitempty"`
	Horizon  string   `json:"horizon,omitempty"`
}

// WriteTaskArgs contains arguments for the write_task tool.
type WriteTaskArgs struct {
	Title       string   `json:"title"`
	Body        string   `json:"body"`
	Assignee    string   `json:"assignee"`
	Tags        FlexTags `json:"tags,omitempty"`
	Status      string   `json:"status,omitempty"` // defaults to "open"
	Deadline    string   `json:"deadline,omitempty"`
	Priority    string   `json:"priority,omitempty"`
	RelatedGoal string   `json:"related_goal,omitempty"`
}

// WriteReflectionArgs contains arguments for the write_reflection tool.
type WriteReflectionArgs struct {
	Title   string   `json:"title"`
	Body    string   `json:"body"`
	Tags    FlexTags `json:"tags,omitempty"`
	Context string   `json:"context,omitempty"`
}

// ReadMemoryArgs contains arguments for the read_memory tool.
type ReadMemoryArgs struct {
	Category string `json:"category"`
	ID       string `json:"id"`
}

// SearchMemoryArgs contains arguments for the search_memory tool.
type SearchMemoryArgs struct {
	Query      string   `json:"query"`
	Categories []string `json:"categories,omitempty"` // empty = all
	Limit      int      `json:"limit,omitempty"`
}

// ListMemoriesArgs contains arguments for the list_memories tool.
type ListMemoriesArgs struct {
	Category        string `json:"category"`
	IncludeArchived bool   `json:"include_archived,omitempty"`
}

// UpdateMemoryArgs contains arguments for the update_memory tool.
// Absent fields are left unchanged; which fields a category accepts is
// enforced by the store.
type UpdateMemoryArgs struct {
	Category   string   `json:"category"`
	ID         string   `json:"id"`
	Title      *string  `json:"title,omitempty"`
	Body       *string  `json:"body,omitempty"`
	Tags       FlexTags `json:"tags,omitempty"`
	Status     *string  `json:"status,omitempty"`
	Priority   *string  `json:"priority,omitempty"`
	Horizon    *string  `json:"horizon,omitempty"`
	Confidence *float64 `json:"confidence,omitempty"`
	Source     *string  `json:"source,omitempty"`
}

// UpdateTaskStatusArgs contains arguments for the update_task_status tool.
type UpdateTaskStatusArgs struct {
	ID     string `json:"id"`
	Status string `json:"status"`
}

// DeleteMemoryArgs contains arguments for the delete_memory tool.
type DeleteMemoryArgs struct {
	Category string `json:"category"`
	ID       string `json:"id"`
}

// BuildContextArgs contains arguments for the build_context tool.
type BuildContextArgs struct {
	Budget int `json:"budget,omitempty"` // bytes; server default when omitted
}

// JournalAppendArgs contains arguments for the journal_append tool.
type JournalAppendArgs struct {
	Entry string `json:"entry"`
}

// JournalReadArgs contains arguments for the journal_read tool.
type JournalReadArgs struct {
	Date string `json:"date,omitempty"` // YYYY-MM-DD; today when omitted
}

// ItemJSON is the wire representation of a memory item. Category-specific
// fields are flattened with omitempty so each category serialises only what
// it carries.
type ItemJSON struct {
	ID        string   `json:"id"`
	Category  string   `json:"category"`
	Title     string   `json:"title"`
	Body      string   `json:"body"`
	Tags      []string `json:"tags,omitempty"`
	CreatedAt string   `json:"created_at"`
	UpdatedAt string   `json:"updated_at"`
	Archived  bool     `json:"archived,omitempty"`

	Confidence  *float64 `json:"confidence,omitempty"`
	Source      string   `json:"source,omitempty"`
	Status      string   `json:"status,omitempty"`
	Supersedes  string   `json:"supersedes,omitempty"`
	Rationale   string   `json:"rationale,omitempty"`
	Scope       string   `json:"scope,omitempty"`
	Priority    string   `json:"priority,omitempty"`
	Horizon     string   `json:"horizon,omitempty"`
	Assignee    string   `json:"assignee,omitempty"`
	Deadline    string   `json:"deadline,omitempty"`
	RelatedGoal string   `json:"related_goal,omitempty"`
	Context     string   `json:"context,omitempty"`
}

// itemJSON converts a memory item to its wire representation.
func itemJSON(item *types.MemoryItem) ItemJSON {
	out := ItemJSON{
		ID:        item.ID,
		Category:  string(item.Category),
		Title:     item.Title,
		Body:      item.Body,
		Tags:      item.Tags,
		CreatedAt: item.CreatedAt.UTC().Format(types.TimeLayout),
		UpdatedAt: item.UpdatedAt.UTC().Format(types.TimeLayout),
		Archived:  item.Archived,
	}
	switch f := item.Fields.(type) {
	case types.FactFields:
		out.Confidence = f.Confidence
		out.Source = f.Source
	case types.DecisionFields:
		out.Status = string(f.Status)
		out.Supersedes = f.Supersedes
		out.Rationale = f.Rationale
		out.Scope = f.Scope
	case types.GoalFields:
		out.Status = string(f.Status)
		out.Priority = f.Priority
		out.Horizon = f.Horizon
	case types.TaskFields:
		out.Status = string(f.Status)
		out.Assignee = f.Assignee
		out.Deadline = f.Deadline
		out.Priority = f.Priority
		out.RelatedGoal = f.RelatedGoal
	case types.ReflectionFields:
		out.Context = f.Context
	}
	return out
}

// WriteResult is returned by every write_<category> tool.
type WriteResult struct {
	Item ItemJSON `json:"item"`

	// Existing reports whether the write was an idempotent no-op on an
	// item that already existed with the same content.
	Existing bool `json:"existing,omitempty"`
}

// ReadResult is returned by the read_memory tool.
type ReadResult struct {
	Item ItemJSON `json:"item"`
}

// SearchResultJSON pairs a matched item with its relevance score.
type SearchResultJSON struct {
	Item  ItemJSON `json:"item"`
	Score float64  `json:"score"`
}

// SearchResult is returned by the search_memory tool.
type SearchResult struct {
	Results []SearchResultJSON `json:"results"`
	Total   int                `json:"total"`
}

// ListResult is returned by the list_memories tool.
type ListResult struct {
	Items []ItemJSON `json:"items"`
	Total int        `json:"total"`
}

// DeleteResult is returned by the delete_memory tool.
type DeleteResult struct {
	// Outcome is "deleted" for hard deletes and "archived" for
	// archive-only categories.
	Outcome string `json:"outcome"`
}

// ContextResult is returned by the build_context tool.
type ContextResult struct {
	Context string `json:"context"`
	Size    int    `json:"size"`
	Budget  int    `json:"budget"`
}

// JournalResult is returned by journal_append and journal_read.
type JournalResult struct {
	Date    string `json:"date,omitempty"`
	Content string `json:"content,omitempty"`
	Message string `json:"message,omitempty"`
}

// MCPInitializeResult is the response to the initialize handshake.
type MCPInitializeResult struct {
	ProtocolVersion string                `json:"protocolVersion"`
	Capabilities    MCPServerCapabilities `json:"capabilities"`
	ServerInfo      MCPServerInfo         `json:"serverInfo"`
}

// MCPServerCapabilities advertises what the server supports.
type MCPServerCapabilities struct {
	Tools *MCPToolsCapability `json:"tools,omitempty"`
}

// MCPToolsCapability marks tool support.
type MCPToolsCapability struct{}

// MCPServerInfo identifies the server implementation.
type MCPServerInfo struct {
	Name    string `json:"name"`
	Version string `json:"version"`
}

// MCPTool describes one tool for tools/list.
type MCPTool struct {
	Name        string                 `json:"name"`
	Description string                 `json:"description"`
	InputSchema map[string]interface{} `json:"inputSchema"`
}

// MCPToolsListResult is the response to the tools/list request.
type MCPToolsListResult struct {
	Tools []MCPTool `json:"tools"`
}

// MCPToolCallParams holds the parameters sent in a tools/call request.
type MCPToolCallParams struct {
	Name      string          `json:"name"`
	Arguments json.RawMessage `json:"arguments"`
}

// MCPToolCallContent is one content block of a tools/call response.
type MCPToolCallContent struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

// MCPToolCallResult is the response to a tools/call request.
type MCPToolCallResult struct {
	Content []MCPToolCallContent `json:"content"`
	IsError bool                 `json:"isError,omitempty"`
}
