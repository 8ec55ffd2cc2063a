package service

import (
	"context"
	"encoding/json"
	"time"

	"todo-chat/internal/agent"

	"go.uber.org/zap"
)

// ToolCallRecord is the audit record of one tool invocation, persisted with
// the assistant message and echoed in the chat response.
type ToolCallRecord struct {
	Tool       string          `json:"tool"`
	Parameters json.RawMessage `json:"parameters"`
	Result     ToolCallResult  `json:"result"`
}

type ToolCallResult struct {
	OK        bool      `json:"ok"`
	Data      any       `json:"data,omitempty"`
	ErrorKind ErrorKind `json:"error_kind,omitempty"`
	Message   string    `json:"message,omitempty"`
}

// Wire shapes for agent-supplied arguments. Dates arrive as strings; anything
// the schema does not know is ignored by the JSON decoder, and the owner id is
// never read from here.
type recurrenceArgs struct {
	Pattern    string `json:"pattern"`
	Interval   int    `json:"interval"`
	EndDate    string `json:"end_date"`
	DayOfWeek  *int   `json:"day_of_week"`
	DayOfMonth *int   `json:"day_of_month"`
}

type createTaskArgs struct {
	Title       string          `json:"title"`
	Description string          `json:"description"`
	Priority    string          `json:"priority"`
	Category    string          `json:"category"`
	DueDate     string          `json:"due_date"`
	Recurrence  *recurrenceArgs `json:"recurrence"`
}

type listTasksArgs struct {
	Status        string `json:"status"`
	Priority      string `json:"priority"`
	Category      string `json:"category"`
	Search        string `json:"search"`
	DueDateFrom   string `json:"due_date_from"`
	DueDateTo     string `json:"due_date_to"`
	RecurringOnly bool   `json:"recurring_only"`
	SortBy        string `json:"sort_by"`
	SortOrder     string `json:"sort_order"`
}

type taskIDArgs struct {
	TaskID string `json:"task_id"`
}

type updateTaskArgs struct {
	TaskID      string          `json:"task_id"`
	Title       *string         `json:"title"`
	Description *string         `json:"description"`
	Priority    *string         `json:"priority"`
	Category    *string         `json:"category"`
	DueDate     string          `json:"due_date"`
	Recurrence  *recurrenceArgs `json:"recurrence"`
}

// executeToolInvocations runs the agent's tool invocations in order through
// the task service, always with the verified caller identity. Each invocation
// produces a record whether it succeeded or not; one failure never stops the
// rest.
func (s *ChatServiceImpl) executeToolInvocations(ctx context.Context, ownerID string, invocations []agent.ToolInvocation) []ToolCallRecord {
	records := make([]ToolCallRecord, 0, len(invocations))
	for _, invocation := range invocations {
		record := ToolCallRecord{Tool: invocation.Name, Parameters: invocation.Arguments}
		// The agent's raw arguments go into the audit record as-is, but a
		// RawMessage that is not valid JSON would fail the marshal of the
		// whole record set later. Keep the record, drop the garbage.
		if !json.Valid(invocation.Arguments) {
			record.Parameters = json.RawMessage("null")
		}

		data, err := s.dispatchTool(ctx, ownerID, invocation)
		if err != nil {
			record.Result = ToolCallResult{OK: false, ErrorKind: KindOf(err), Message: PublicMessage(err)}
			s.logger.Warn("tool invocation failed",
				zap.String("owner_id", ownerID),
				zap.String("tool", invocation.Name),
				zap.String("error_kind", string(KindOf(err))),
				zap.Error(err),
			)
		} else {
			record.Result = ToolCallResult{OK: true, Data: data}
		}
		records = append(records, record)
	}
	return records
}

// dispatchTool decodes and executes a single invocation against the closed
// set of operations. Unknown names fail as validation errors without ever
// reaching a store.
func (s *ChatServiceImpl) dispatchTool(ctx context.Context, ownerID string, invocation agent.ToolInvocation) (any, error) {
	switch invocation.Name {
	case agent.ToolCreateTask:
		var args createTaskArgs
		if err := decodeArgs(invocation.Arguments, &args); err != nil {
			return nil, err
		}
		dueDate, err := parseOptionalTime(args.DueDate, "due_date")
		if err != nil {
			return nil, err
		}
		recurrence, err := toRecurrenceParams(args.Recurrence)
		if err != nil {
			return nil, err
		}
		return s.taskService.Create(ctx, ownerID, CreateTaskParams{
			Title:       args.Title,
			Description: args.Description,
			Priority:    args.Priority,
			Category:    args.Category,
			DueDate:     dueDate,
			Recurrence:  recurrence,
		})

	case agent.ToolListTasks:
		var args listTasksArgs
		if err := decodeArgs(invocation.Arguments, &args); err != nil {
			return nil, err
		}
		from, err := parseOptionalTime(args.DueDateFrom, "due_date_from")
		if err != nil {
			return nil, err
		}
		to, err := parseOptionalTime(args.DueDateTo, "due_date_to")
		if err != nil {
			return nil, err
		}
		return s.taskService.List(ctx, ownerID, ListTasksParams{
			Status:        args.Status,
			Priority:      args.Priority,
			Category:      args.Category,
			Search:        args.Search,
			DueDateFrom:   from,
			DueDateTo:     to,
			RecurringOnly: args.RecurringOnly,
			SortBy:        args.SortBy,
			SortOrder:     args.SortOrder,
		})

	case agent.ToolCompleteTask:
		var args taskIDArgs
		if err := decodeArgs(invocation.Arguments, &args); err != nil {
			return nil, err
		}
		return s.taskService.Complete(ctx, ownerID, args.TaskID)

	case agent.ToolDeleteTask:
		var args taskIDArgs
		if err := decodeArgs(invocation.Arguments, &args); err != nil {
			return nil, err
		}
		if err := s.taskService.Delete(ctx, ownerID, args.TaskID); err != nil {
			return nil, err
		}
		return map[string]string{"task_id": args.TaskID, "status": "deleted"}, nil

	case agent.ToolUpdateTask:
		var args updateTaskArgs
		if err := decodeArgs(invocation.Arguments, &args); err != nil {
			return nil, err
		}
		dueDate, err := parseOptionalTime(args.DueDate, "due_date")
		if err != nil {
			return nil, err
		}
		recurrence, err := toRecurrenceParams(args.Recurrence)
		if err != nil {
			return nil, err
		}
		return s.taskService.Update(ctx, ownerID, args.TaskID, UpdateTaskParams{
			Title:       args.Title,
			Description: args.Description,
			Priority:    args.Priority,
			Category:    args.Category,
			DueDate:     dueDate,
			Recurrence:  recurrence,
		})

	case agent.ToolStopRecurrence:
		var args taskIDArgs
		if err := decodeArgs(invocation.Arguments, &args); err != nil {
			return nil, err
		}
		return s.taskService.StopRecurrence(ctx, ownerID, args.TaskID)

	default:
		return nil, validationError("unknown tool: " + invocation.Name)
	}
}

func decodeArgs(raw json.RawMessage, dest any) error {
	if len(raw) == 0 {
		return nil
	}
	if err := json.Unmarshal(raw, dest); err != nil {
		return validationError("tool arguments are not valid JSON")
	}
	return nil
}

// parseOptionalTime accepts RFC 3339 timestamps and bare dates, which is what
// agents actually produce.
func parseOptionalTime(value string, field string) (*time.Time, error) {
	if value == "" {
		return nil, nil
	}
	for _, layout := range []string{time.RFC3339, "2006-01-02"} {
		if parsed, err := time.Parse(layout, value); err == nil {
			return &parsed, nil
		}
	}
	return nil, validationError(field + " must be an RFC 3339 timestamp or YYYY-MM-DD date")
}

func toRecurrenceParams(args *recurrenceArgs) (*RecurrenceParams, error) {
	if args == nil {
		return nil, nil
	}
	endDate, err := parseOptionalTime(args.EndDate, "recurrence end_date")
	if err != nil {
		return nil, err
	}
	return &RecurrenceParams{
		Pattern:    args.Pattern,
		Interval:   args.Interval,
		EndDate:    endDate,
		DayOfWeek:  args.DayOfWeek,
		DayOfMonth: args.DayOfMonth,
	}, nil
}
