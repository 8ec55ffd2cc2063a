package agent

import "encoding/json"

// Tool is an OpenAI-style function definition handed to the agent.
type Tool struct {
	Type     string       `json:"type"`
	Function ToolFunction `json:"function"`
}

type ToolFunction struct {
	Name        string          `json:"name"`
	Description string          `json:"description"`
	Parameters  json.RawMessage `json:"parameters"`
}

// Tool names form a closed set; anything else coming back from the agent is
// rejected before execution.
const (
	ToolCreateTask     = "create_task"
	ToolListTasks      = "list_tasks"
	ToolCompleteTask   = "complete_task"
	ToolDeleteTask     = "delete_task"
	ToolUpdateTask     = "update_task"
	ToolStopRecurrence = "stop_recurrence"
)

const recurrenceSchema = `{
	"type": "object",
	"properties": {
		"pattern": {"type": "string", "enum": ["daily", "weekly", "monthly"], "description": "How often the task repeats"},
		"interval": {"type": "integer", "minimum": 1, "description": "Repeat every N days/weeks/months (default 1)"},
		"end_date": {"type": "string", "description": "Stop recurring at this date, RFC 3339 (optional)"},
		"day_of_week": {"type": "integer", "minimum": 0, "maximum": 6, "description": "Weekly only: 0=Monday .. 6=Sunday"},
		"day_of_month": {"type": "integer", "minimum": 1, "maximum": 31, "description": "Monthly only: day of month, clamped in shorter months"}
	},
	"required": ["pattern"]
}`

// TodoTools returns the fixed tool schema exposed to the agent. Note that no
// tool accepts an owner id: the caller's verified identity is applied to every
// execution regardless of what the agent produces.
func TodoTools() []Tool {
	return []Tool{
		{
			Type: "function",
			Function: ToolFunction{
				Name:        ToolCreateTask,
				Description: "Add a new task to the todo list, optionally recurring",
				Parameters: json.RawMessage(`{
					"type": "object",
					"properties": {
						"title": {"type": "string", "description": "The task title (1-200 characters)"},
						"description": {"type": "string", "description": "Longer task description (optional)"},
						"priority": {"type": "string", "enum": ["high", "medium", "low"], "description": "Task priority level"},
						"category": {"type": "string", "enum": ["work", "home", "study", "personal", "shopping", "health", "fitness"], "description": "Task category (optional)"},
						"due_date": {"type": "string", "description": "Due date, RFC 3339 (optional)"},
						"recurrence": ` + recurrenceSchema + `
					},
					"required": ["title"]
				}`),
			},
		},
		{
			Type: "function",
			Function: ToolFunction{
				Name:        ToolListTasks,
				Description: "List tasks with optional filtering, search, and sorting",
				Parameters: json.RawMessage(`{
					"type": "object",
					"properties": {
						"status": {"type": "string", "enum": ["all", "pending", "completed"], "description": "Filter by completion status"},
						"priority": {"type": "string", "enum": ["high", "medium", "low"], "description": "Filter by priority"},
						"category": {"type": "string", "enum": ["work", "home", "study", "personal", "shopping", "health", "fitness"], "description": "Filter by category"},
						"search": {"type": "string", "description": "Case-insensitive substring search over title and description"},
						"due_date_from": {"type": "string", "description": "Only tasks due at or after this date, RFC 3339"},
						"due_date_to": {"type": "string", "description": "Only tasks due at or before this date, RFC 3339"},
						"recurring_only": {"type": "boolean", "description": "Only recurring tasks"},
						"sort_by": {"type": "string", "enum": ["created_at", "due_date", "priority", "title"], "description": "Sort field"},
						"sort_order": {"type": "string", "enum": ["asc", "desc"], "description": "Sort direction"}
					}
				}`),
			},
		},
		{
			Type: "function",
			Function: ToolFunction{
				Name:        ToolCompleteTask,
				Description: "Mark a task as completed; recurring tasks schedule their next instance",
				Parameters: json.RawMessage(`{
					"type": "object",
					"properties": {
						"task_id": {"type": "string", "description": "The id of the task to complete"}
					},
					"required": ["task_id"]
				}`),
			},
		},
		{
			Type: "function",
			Function: ToolFunction{
				Name:        ToolDeleteTask,
				Description: "Delete a task from the todo list",
				Parameters: json.RawMessage(`{
					"type": "object",
					"properties": {
						"task_id": {"type": "string", "description": "The id of the task to delete"}
					},
					"required": ["task_id"]
				}`),
			},
		},
		{
			Type: "function",
			Function: ToolFunction{
				Name:        ToolUpdateTask,
				Description: "Update fields of an existing task; only supplied fields change",
				Parameters: json.RawMessage(`{
					"type": "object",
					"properties": {
						"task_id": {"type": "string", "description": "The id of the task to update"},
						"title": {"type": "string", "description": "New title (optional)"},
						"description": {"type": "string", "description": "New description (optional)"},
						"priority": {"type": "string", "enum": ["high", "medium", "low"], "description": "New priority (optional)"},
						"category": {"type": "string", "enum": ["work", "home", "study", "personal", "shopping", "health", "fitness"], "description": "New category (optional)"},
						"due_date": {"type": "string", "description": "New due date, RFC 3339 (optional)"},
						"recurrence": ` + recurrenceSchema + `
					},
					"required": ["task_id"]
				}`),
			},
		},
		{
			Type: "function",
			Function: ToolFunction{
				Name:        ToolStopRecurrence,
				Description: "Stop a recurring task from generating future instances; existing tasks are kept",
				Parameters: json.RawMessage(`{
					"type": "object",
					"properties": {
						"task_id": {"type": "string", "description": "The id of any task in the recurring lineage"}
					},
					"required": ["task_id"]
				}`),
			},
		},
	}
}
