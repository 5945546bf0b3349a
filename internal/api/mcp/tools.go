package mcp

// schemaObject builds the boilerplate of a JSON-schema object.
func schemaObject(required []string, props map[string]interface{}) map[string]interface{} {
	schema := map[string]interface{}{
		"type":       "object",
		"properties": props,
	}
	if len(required) > 0 {
		schema["required"] = required
	}
	return schema
}

func str(desc string) map[string]interface{} {
	return map[string]interface{}{"type": "string", "description": desc}
}

func num(desc string) map[string]interface{} {
	return map[string]interface{}{"type": "number", "description": desc}
}

func boolean(desc string) map[string]interface{} {
	return map[string]interface{}{"type": "boolean", "description": desc}
}

func strArray(desc string) map[string]interface{} {
	return map[string]interface{}{
		"type":        "array",
		"items":       map[string]interface{}{"type": "string"},
		"description": desc,
	}
}

// toolDefinitions returns the canonical list of MCP tool definitions.
// Journal tools are only advertised when a journal store is wired.
func toolDefinitions(withJournal bool) []MCPTool {
	tools := []MCPTool{
		{
			Name:        "write_fact",
			Description: "Save a long-term fact to memory (user preferences, established truths, project context). Writing identical content twice is idempotent.",
			InputSchema: schemaObject([]string{"title", "body"}, map[string]interface{}{
				"title":      str("Short descriptive title for this fact"),
				"body":       str("The fact content"),
				"tags":       strArray("Optional tags for categorization"),
				"confidence": num("Confidence level (0.0-1.0)"),
				"source":     str("Source of the fact (e.g. 'user statement', 'web search')"),
			}),
		},
		{
			Name:        "write_decision",
			Description: "Save a decision to memory (architectural choices, trade-offs, locked decisions). Decisions are immutable; to change one, write a new decision with supersedes set to the old decision's id.",
			InputSchema: schemaObject([]string{"title", "body"}, map[string]interface{}{
				"title":      str("Short descriptive title"),
				"body":       str("Decision content"),
				"tags":       strArray("Optional tags"),
				"status":     str("Decision status: active or superseded (default active)"),
				"supersedes": str("ID of the decision this one replaces"),
				"rationale":  str("Reasoning behind the decision"),
				"scope":      str("Scope the decision applies to"),
			}),
		},
		{
			Name:        "write_goal",
			Description: "Save an outcome-oriented goal to memory. Goals are durable beyond a single session and are archived rather than deleted.",
			InputSchema: schemaObject([]string{"title", "body"}, map[string]interface{}{
				"title":    str("Short descriptive title"),
				"body":     str("Goal content"),
				"tags":     strArray("Optional tags"),
				"status":   str("Goal status: active, achieved or abandoned (default active)"),
				"priority": str("Priority level (e.g. high, medium, low)"),
				"horizon":  str("Time horizon (e.g. short-term, long-term)"),
			}),
		},
		{
			Name:        "write_task",
			Description: "Save a concrete actionable task to memory. Tasks have a status lifecycle (open -> in_progress -> done/deferred) and require an assignee.",
			InputSchema: schemaObject([]string{"title", "body", "assignee"}, map[string]interface{}{
				"title":        str("Short descriptive title"),
				"body":         str("Task content"),
				"assignee":     str("Who the task is assigned to (required)"),
				"tags":         strArray("Optional tags"),
				"status":       str("Task status: open, in_progress, done or deferred (default open)"),
				"deadline":     str("Deadline date (YYYY-MM-DD)"),
				"priority":     str("Priority level"),
				"related_goal": str("ID of a related goal"),
			}),
		},
		{
			Name:        "write_reflection",
			Description: "Save a subjective observation to memory. Reflections are append-only: never edited or deleted, and may contradict earlier reflections.",
			InputSchema: schemaObject([]string{"title", "body"}, map[string]interface{}{
				"title":   str("Short descriptive title"),
				"body":    str("Reflection content"),
				"tags":    strArray("Optional tags"),
				"context": str("What was happening when the reflection was made"),
			}),
		},
		{
			Name:        "read_memory",
			Description: "Read a single memory item by category and id.",
			InputSchema: schemaObject([]string{"category", "id"}, map[string]interface{}{
				"category": str("One of: facts, decisions, goals, tasks, reflections"),
				"id":       str("Item id"),
			}),
		},
		{
			Name:        "search_memory",
			Description: "Deterministic search across memory. Exact title matches rank highest, then exact tag matches, then title substrings, then body substrings.",
			InputSchema: schemaObject([]string{"query"}, map[string]interface{}{
				"query":      str("Search query"),
				"categories": strArray("Categories to search (default: all)"),
				"limit":      num("Maximum number of results"),
			}),
		},
		{
			Name:        "list_memories",
			Description: "List a category's items, newest first. Archived items are excluded unless include_archived is set.",
			InputSchema: schemaObject([]string{"category"}, map[string]interface{}{
				"category":         str("One of: facts, decisions, goals, tasks, reflections"),
				"include_archived": boolean("Include archived items"),
			}),
		},
		{
			Name:        "update_memory",
			Description: "Update a memory item subject to its category's rules: facts accept any field, goals accept status/priority/content refinement, tasks accept status only, decisions and reflections reject all updates.",
			InputSchema: schemaObject([]string{"category", "id"}, map[string]interface{}{
				"category":   str("One of: facts, goals, tasks"),
				"id":         str("Item id"),
				"title":      str("New title"),
				"body":       str("New body"),
				"tags":       strArray("New tag set"),
				"status":     str("New status (validated against the category's transition graph)"),
				"priority":   str("New priority (goals)"),
				"horizon":    str("New horizon (goals)"),
				"confidence": num("New confidence (facts)"),
				"source":     str("New source (facts)"),
			}),
		},
		{
			Name:        "update_task_status",
			Description: "Change a task's status. Legal transitions: open -> in_progress, in_progress -> done/deferred, deferred -> open. done is terminal.",
			InputSchema: schemaObject([]string{"id", "status"}, map[string]interface{}{
				"id":     str("Task id"),
				"status": str("New status"),
			}),
		},
		{
			Name:        "delete_memory",
			Description: "Delete a memory item per its category's policy: facts are removed, goals and tasks are archived, decisions and reflections refuse deletion.",
			InputSchema: schemaObject([]string{"category", "id"}, map[string]interface{}{
				"category": str("One of: facts, decisions, goals, tasks, reflections"),
				"id":       str("Item id"),
			}),
		},
		{
			Name:        "build_context",
			Description: "Build a bounded digest of current memory: active decisions, active goals, open tasks, recent facts and recent reflections, trimmed lowest-priority-first to fit the byte budget.",
			InputSchema: schemaObject(nil, map[string]interface{}{
				"budget": num("Maximum digest size in bytes (server default when omitted)"),
			}),
		},
	}

	if withJournal {
		tools = append(tools,
			MCPTool{
				Name:        "journal_append",
				Description: "Append a timestamped entry to today's journal. The journal is a narrative daily log, separate from memory.",
				InputSchema: schemaObject([]string{"entry"}, map[string]interface{}{
					"entry": str("Journal entry text"),
				}),
			},
			MCPTool{
				Name:        "journal_read",
				Description: "Read a day's journal (today when no date is given).",
				InputSchema: schemaObject(nil, map[string]interface{}{
					"date": str("Day to read (YYYY-MM-DD)"),
				}),
			},
		)
	}
	return tools
}
