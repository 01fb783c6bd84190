package tool

import (
	"github.com/agentcore/agentcore/internal/policy"
	"github.com/agentcore/agentcore/pkg/types"
)

func todoUnavailable() map[string]any {
	return errorField("todo command is not available in runtime environment")
}

func requireTodoStore(execCtx *types.ToolExecutionContext) (types.TodoStoreAPI, string, bool) {
	workspace := ""
	if execCtx != nil {
		workspace = execCtx.Workspace
	}
	if !policy.CanUseTodo(permsOf(execCtx), workspace) {
		return nil, workspace, false
	}
	if execCtx == nil || execCtx.TodoStore == nil {
		return nil, workspace, false
	}
	return execCtx.TodoStore, workspace, true
}

func progressRecord(p types.TodoProgress) map[string]any {
	return map[string]any{"summary": p.Summary, "total": p.Total, "step": p.Step}
}

func itemRecord(it types.TodoItem) map[string]any {
	rec := map[string]any{
		"id":        it.ID,
		"title":     it.Title,
		"note":      it.Note,
		"status":    string(it.Status),
		"createdAt": it.CreatedAt,
		"updatedAt": it.UpdatedAt,
	}
	if it.CompletedAt != nil {
		rec["completedAt"] = *it.CompletedAt
	}
	return rec
}

// todoListFactory implements `todo_list {status?, limit?}` (spec.md §4.4).
func todoListFactory(execCtx *types.ToolExecutionContext) Definition {
	return Definition{
		Description: "List TODO items.",
		Execute: func(input map[string]any, meta CallMetadata) map[string]any {
			store, _, ok := requireTodoStore(execCtx)
			if !ok {
				if execCtx != nil && execCtx.TodoStore == nil {
					return todoUnavailable()
				}
				return errorField("Permission denied: todo not allowed")
			}

			var status *types.TodoStatus
			if s, has := stringArg(input, "status"); has && s != "" {
				st := types.TodoStatus(s)
				status = &st
			}
			limit := intArg(input, "limit", 0)

			items, err := store.List(status, limit)
			if err != nil {
				return errorFieldDetail("Failed to list todos", err.Error())
			}
			progress, err := store.Progress()
			if err != nil {
				return errorFieldDetail("Failed to list todos", err.Error())
			}

			records := make([]map[string]any, 0, len(items))
			for _, it := range items {
				records = append(records, itemRecord(it))
			}
			return map[string]any{"items": records, "progress": progressRecord(progress)}
		},
	}
}

// todoAddFactory implements `todo_add {title, note?}` (spec.md §4.4).
func todoAddFactory(execCtx *types.ToolExecutionContext) Definition {
	return Definition{
		Description: "Add a TODO item.",
		Execute: func(input map[string]any, meta CallMetadata) map[string]any {
			store, _, ok := requireTodoStore(execCtx)
			if !ok {
				if execCtx != nil && execCtx.TodoStore == nil {
					return todoUnavailable()
				}
				return errorField("Permission denied: todo not allowed")
			}
			title, ok := stringArg(input, "title")
			if !ok || title == "" {
				return errorField("Invalid input")
			}
			note, _ := stringArg(input, "note")

			item, progress, err := store.Add(title, note)
			if err != nil {
				return errorFieldDetail("Failed to add todo", err.Error())
			}
			return map[string]any{"item": itemRecord(item), "progress": progressRecord(progress)}
		},
	}
}

// todoUpdateFactory implements `todo_update {id, title?, note?}` (spec.md §4.4).
func todoUpdateFactory(execCtx *types.ToolExecutionContext) Definition {
	return Definition{
		Description: "Update a TODO item's title and/or note.",
		Execute: func(input map[string]any, meta CallMetadata) map[string]any {
			store, _, ok := requireTodoStore(execCtx)
			if !ok {
				if execCtx != nil && execCtx.TodoStore == nil {
					return todoUnavailable()
				}
				return errorField("Permission denied: todo not allowed")
			}
			id := intArg(input, "id", -1)
			if id < 0 {
				return errorField("Invalid input")
			}
			var title, note *string
			if t, has := stringArg(input, "title"); has {
				title = &t
			}
			if n, has := stringArg(input, "note"); has {
				note = &n
			}
			if title == nil && note == nil {
				return errorField("Invalid input")
			}

			item, progress, err := store.Update(id, title, note)
			if err != nil {
				return errorFieldDetail("Failed to update todo", err.Error())
			}
			return map[string]any{"item": itemRecord(item), "progress": progressRecord(progress)}
		},
	}
}

// todoCompleteFactory implements `todo_complete {id}` (spec.md §4.4).
func todoCompleteFactory(execCtx *types.ToolExecutionContext) Definition {
	return Definition{
		Description: "Mark a TODO item done.",
		Execute: func(input map[string]any, meta CallMetadata) map[string]any {
			return setDone(execCtx, input, true)
		},
	}
}

// todoReopenFactory implements `todo_reopen {id}` (spec.md §4.4).
func todoReopenFactory(execCtx *types.ToolExecutionContext) Definition {
	return Definition{
		Description: "Reopen a completed TODO item.",
		Execute: func(input map[string]any, meta CallMetadata) map[string]any {
			return setDone(execCtx, input, false)
		},
	}
}

func setDone(execCtx *types.ToolExecutionContext, input map[string]any, done bool) map[string]any {
	store, _, ok := requireTodoStore(execCtx)
	if !ok {
		if execCtx != nil && execCtx.TodoStore == nil {
			return todoUnavailable()
		}
		return errorField("Permission denied: todo not allowed")
	}
	id := intArg(input, "id", -1)
	if id < 0 {
		return errorField("Invalid input")
	}
	item, progress, err := store.SetDone(id, done)
	if err != nil {
		return errorFieldDetail("Failed to update todo", err.Error())
	}
	return map[string]any{"item": itemRecord(item), "progress": progressRecord(progress)}
}

// todoRemoveFactory implements `todo_remove {id}` (spec.md §4.4).
func todoRemoveFactory(execCtx *types.ToolExecutionContext) Definition {
	return Definition{
		Description: "Remove a TODO item.",
		Execute: func(input map[string]any, meta CallMetadata) map[string]any {
			store, _, ok := requireTodoStore(execCtx)
			if !ok {
				if execCtx != nil && execCtx.TodoStore == nil {
					return todoUnavailable()
				}
				return errorField("Permission denied: todo not allowed")
			}
			id := intArg(input, "id", -1)
			if id < 0 {
				return errorField("Invalid input")
			}
			item, progress, err := store.Remove(id)
			if err != nil {
				return errorFieldDetail("Failed to remove todo", err.Error())
			}
			return map[string]any{"item": itemRecord(item), "progress": progressRecord(progress)}
		},
	}
}

// todoClearDoneFactory implements `todo_clear_done {}` (spec.md §4.4).
func todoClearDoneFactory(execCtx *types.ToolExecutionContext) Definition {
	return Definition{
		Description: "Remove every completed TODO item.",
		Execute: func(input map[string]any, meta CallMetadata) map[string]any {
			store, _, ok := requireTodoStore(execCtx)
			if !ok {
				if execCtx != nil && execCtx.TodoStore == nil {
					return todoUnavailable()
				}
				return errorField("Permission denied: todo not allowed")
			}
			removed, progress, err := store.ClearDone("todo_clear_done")
			if err != nil {
				return errorFieldDetail("Failed to clear done todos", err.Error())
			}
			records := make([]map[string]any, 0, len(removed))
			for _, it := range removed {
				records = append(records, itemRecord(it))
			}
			return map[string]any{"removed": records, "progress": progressRecord(progress)}
		},
	}
}
