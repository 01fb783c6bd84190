package todostore

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/agentcore/agentcore/internal/event"
	"github.com/agentcore/agentcore/pkg/types"
)

// List returns items ordered id ASC, optionally filtered by status and
// capped at limit (limit <= 0 means unbounded).
func (s *Store) List(status *types.TodoStatus, limit int) ([]types.TodoItem, error) {
	query := "SELECT id, title, note, status, created_at, updated_at, completed_at FROM todo_items"
	args := []any{}
	if status != nil {
		query += " WHERE status = ?"
		args = append(args, string(*status))
	}
	query += " ORDER BY id ASC"
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("todostore: list: %w", err)
	}
	defer rows.Close()

	var items []types.TodoItem
	for rows.Next() {
		item, err := scanItem(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, item)
	}
	return items, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanItem(r rowScanner) (types.TodoItem, error) {
	var item types.TodoItem
	var status string
	var completedAt sql.NullInt64
	if err := r.Scan(&item.ID, &item.Title, &item.Note, &status, &item.CreatedAt, &item.UpdatedAt, &completedAt); err != nil {
		return item, fmt.Errorf("todostore: scan item: %w", err)
	}
	item.Status = types.TodoStatus(status)
	if completedAt.Valid {
		v := completedAt.Int64
		item.CompletedAt = &v
	}
	return item, nil
}

// allItemsOrdered returns every item ordered id ASC, for progress
// computation and cursor reconciliation.
func (s *Store) allItemsOrdered(q querier) ([]types.TodoItem, error) {
	rows, err := q.Query("SELECT id, title, note, status, created_at, updated_at, completed_at FROM todo_items ORDER BY id ASC")
	if err != nil {
		return nil, fmt.Errorf("todostore: scan all items: %w", err)
	}
	defer rows.Close()

	var items []types.TodoItem
	for rows.Next() {
		item, err := scanItem(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, item)
	}
	return items, rows.Err()
}

type querier interface {
	Query(query string, args ...any) (*sql.Rows, error)
	QueryRow(query string, args ...any) *sql.Row
	Exec(query string, args ...any) (sql.Result, error)
}

// ComputeTodoProgressFromItems derives TodoProgressContext from an
// id-ordered item slice (spec.md §4.4).
func ComputeTodoProgressFromItems(items []types.TodoItem) types.TodoProgress {
	total := len(items)
	if total == 0 {
		return types.TodoProgress{Summary: "暂无TODO", Total: 0, Step: 0}
	}

	done := 0
	firstOpenIdx := -1
	skippedCompletion := false
	for i, it := range items {
		if it.Status == types.TodoDone {
			done++
		} else if firstOpenIdx == -1 {
			firstOpenIdx = i
		}
	}

	if done >= total || firstOpenIdx == -1 {
		return types.TodoProgress{
			Summary: fmt.Sprintf("已完成 %d/%d", done, total),
			Total:   total,
			Step:    total,
		}
	}

	for i := firstOpenIdx + 1; i < total; i++ {
		if items[i].Status == types.TodoDone {
			skippedCompletion = true
			break
		}
	}

	step := firstOpenIdx + 1
	summary := fmt.Sprintf("进行中 %d/%d（当前第%d步", done, total, step)
	if skippedCompletion {
		summary += "，存在跳步"
	}
	summary += "）"

	return types.TodoProgress{Summary: summary, Total: total, Step: step}
}

func nowMillis() int64 {
	return time.Now().UnixMilli()
}

// recordEvent inserts one todo_events row and publishes the corresponding
// telemetry event (spec.md §4.4: "each mutating operation appends exactly
// one todo_events row").
func recordEvent(tx *sql.Tx, todoID *int, eventType types.TodoEventType, toolName string, payload types.TodoEventPayload) (types.TodoEvent, error) {
	payloadJSON, err := json.Marshal(payload)
	if err != nil {
		return types.TodoEvent{}, fmt.Errorf("todostore: marshal event payload: %w", err)
	}
	createdAt := nowMillis()

	res, err := tx.Exec(
		"INSERT INTO todo_events (todo_id, event_type, actor, tool_name, payload_json, created_at) VALUES (?, ?, ?, ?, ?, ?)",
		nullableInt(todoID), string(eventType), string(types.ActorAgent), nullableString(toolName), string(payloadJSON), createdAt,
	)
	if err != nil {
		return types.TodoEvent{}, fmt.Errorf("todostore: insert event: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return types.TodoEvent{}, fmt.Errorf("todostore: event id: %w", err)
	}

	ev := types.TodoEvent{
		ID:          id,
		TodoID:      todoID,
		EventType:   eventType,
		Actor:       types.ActorAgent,
		ToolName:    toolName,
		PayloadJSON: string(payloadJSON),
		CreatedAt:   createdAt,
	}
	publishTodoEvent(ev, payload.Progress)
	return ev, nil
}

func publishTodoEvent(ev types.TodoEvent, progress types.TodoProgress) {
	var et event.EventType
	switch ev.EventType {
	case types.EventAdd:
		et = event.TodoAdd
	case types.EventUpdate:
		et = event.TodoUpdate
	case types.EventComplete:
		et = event.TodoComplete
	case types.EventReopen:
		et = event.TodoReopen
	case types.EventRemove:
		et = event.TodoRemove
	case types.EventClearDone:
		et = event.TodoClearDone
	default:
		return
	}
	event.Publish(event.Event{Type: et, Data: event.TodoEventData{Event: ev, Progress: progress}})
}

func nullableInt(v *int) any {
	if v == nil {
		return nil
	}
	return *v
}

func nullableString(v string) any {
	if v == "" {
		return nil
	}
	return v
}

// Add inserts a new open item with title/note and records an "add" event.
func (s *Store) Add(title, note string) (types.TodoItem, types.TodoProgress, error) {
	title = strings.TrimSpace(title)
	if title == "" {
		return types.TodoItem{}, types.TodoProgress{}, fmt.Errorf("todostore: title must not be empty")
	}

	tx, err := s.db.Begin()
	if err != nil {
		return types.TodoItem{}, types.TodoProgress{}, fmt.Errorf("todostore: add: begin: %w", err)
	}
	defer tx.Rollback()

	now := nowMillis()
	res, err := tx.Exec(
		"INSERT INTO todo_items (title, note, status, created_at, updated_at, completed_at) VALUES (?, ?, 'open', ?, ?, NULL)",
		title, note, now, now,
	)
	if err != nil {
		return types.TodoItem{}, types.TodoProgress{}, fmt.Errorf("todostore: add: insert: %w", err)
	}
	id64, err := res.LastInsertId()
	if err != nil {
		return types.TodoItem{}, types.TodoProgress{}, fmt.Errorf("todostore: add: last insert id: %w", err)
	}
	id := int(id64)

	after := types.TodoItem{ID: id, Title: title, Note: note, Status: types.TodoOpen, CreatedAt: now, UpdatedAt: now}

	items, err := s.allItemsOrdered(tx)
	if err != nil {
		return types.TodoItem{}, types.TodoProgress{}, err
	}
	progress := ComputeTodoProgressFromItems(items)

	if _, err := recordEvent(tx, &id, types.EventAdd, "todo_add", types.TodoEventPayload{
		V: 1, Input: map[string]any{"title": title, "note": note}, After: &after, Progress: progress,
	}); err != nil {
		return types.TodoItem{}, types.TodoProgress{}, err
	}

	if err := tx.Commit(); err != nil {
		return types.TodoItem{}, types.TodoProgress{}, fmt.Errorf("todostore: add: commit: %w", err)
	}
	return after, progress, nil
}

// Update changes title and/or note. At least one of title/note must be
// non-nil (spec.md §4.4 "requiring at least one field").
func (s *Store) Update(id int, title, note *string) (types.TodoItem, types.TodoProgress, error) {
	if title == nil && note == nil {
		return types.TodoItem{}, types.TodoProgress{}, fmt.Errorf("todostore: update requires at least one field")
	}

	tx, err := s.db.Begin()
	if err != nil {
		return types.TodoItem{}, types.TodoProgress{}, fmt.Errorf("todostore: update: begin: %w", err)
	}
	defer tx.Rollback()

	before, err := s.fetchItem(tx, id)
	if err != nil {
		return types.TodoItem{}, types.TodoProgress{}, err
	}

	after := before
	if title != nil {
		trimmed := strings.TrimSpace(*title)
		if trimmed == "" {
			return types.TodoItem{}, types.TodoProgress{}, fmt.Errorf("todostore: title must not be empty")
		}
		after.Title = trimmed
	}
	if note != nil {
		after.Note = *note
	}
	after.UpdatedAt = nowMillis()

	if _, err := tx.Exec("UPDATE todo_items SET title = ?, note = ?, updated_at = ? WHERE id = ?",
		after.Title, after.Note, after.UpdatedAt, id); err != nil {
		return types.TodoItem{}, types.TodoProgress{}, fmt.Errorf("todostore: update: exec: %w", err)
	}

	items, err := s.allItemsOrdered(tx)
	if err != nil {
		return types.TodoItem{}, types.TodoProgress{}, err
	}
	for i := range items {
		if items[i].ID == id {
			items[i] = after
		}
	}
	progress := ComputeTodoProgressFromItems(items)

	if _, err := recordEvent(tx, &id, types.EventUpdate, "todo_update", types.TodoEventPayload{
		V: 1, Input: map[string]any{"id": id, "title": title, "note": note}, Before: &before, After: &after, Progress: progress,
	}); err != nil {
		return types.TodoItem{}, types.TodoProgress{}, err
	}

	if err := tx.Commit(); err != nil {
		return types.TodoItem{}, types.TodoProgress{}, fmt.Errorf("todostore: update: commit: %w", err)
	}
	return after, progress, nil
}

// SetDone marks an item done or reopens it. Idempotent on the flag:
// completed_at is set only on first completion and cleared on reopen;
// updated_at always refreshes (spec.md §4.4).
func (s *Store) SetDone(id int, done bool) (types.TodoItem, types.TodoProgress, error) {
	tx, err := s.db.Begin()
	if err != nil {
		return types.TodoItem{}, types.TodoProgress{}, fmt.Errorf("todostore: setDone: begin: %w", err)
	}
	defer tx.Rollback()

	before, err := s.fetchItem(tx, id)
	if err != nil {
		return types.TodoItem{}, types.TodoProgress{}, err
	}

	after := before
	now := nowMillis()
	after.UpdatedAt = now
	if done {
		after.Status = types.TodoDone
		if before.CompletedAt == nil {
			after.CompletedAt = &now
		}
	} else {
		after.Status = types.TodoOpen
		after.CompletedAt = nil
	}

	if _, err := tx.Exec("UPDATE todo_items SET status = ?, updated_at = ?, completed_at = ? WHERE id = ?",
		string(after.Status), after.UpdatedAt, nullableInt64(after.CompletedAt), id); err != nil {
		return types.TodoItem{}, types.TodoProgress{}, fmt.Errorf("todostore: setDone: exec: %w", err)
	}

	items, err := s.allItemsOrdered(tx)
	if err != nil {
		return types.TodoItem{}, types.TodoProgress{}, err
	}
	for i := range items {
		if items[i].ID == id {
			items[i] = after
		}
	}
	progress := ComputeTodoProgressFromItems(items)

	eventType := types.EventComplete
	toolName := "todo_complete"
	if !done {
		eventType = types.EventReopen
		toolName = "todo_reopen"
	}
	if _, err := recordEvent(tx, &id, eventType, toolName, types.TodoEventPayload{
		V: 1, Input: map[string]any{"id": id, "done": done}, Before: &before, After: &after, Progress: progress,
	}); err != nil {
		return types.TodoItem{}, types.TodoProgress{}, err
	}

	if err := tx.Commit(); err != nil {
		return types.TodoItem{}, types.TodoProgress{}, fmt.Errorf("todostore: setDone: commit: %w", err)
	}
	return after, progress, nil
}

// Remove deletes one item, returning the removed snapshot.
func (s *Store) Remove(id int) (types.TodoItem, types.TodoProgress, error) {
	tx, err := s.db.Begin()
	if err != nil {
		return types.TodoItem{}, types.TodoProgress{}, fmt.Errorf("todostore: remove: begin: %w", err)
	}
	defer tx.Rollback()

	before, err := s.fetchItem(tx, id)
	if err != nil {
		return types.TodoItem{}, types.TodoProgress{}, err
	}

	if _, err := tx.Exec("DELETE FROM todo_items WHERE id = ?", id); err != nil {
		return types.TodoItem{}, types.TodoProgress{}, fmt.Errorf("todostore: remove: exec: %w", err)
	}

	items, err := s.allItemsOrdered(tx)
	if err != nil {
		return types.TodoItem{}, types.TodoProgress{}, err
	}
	progress := ComputeTodoProgressFromItems(items)

	if _, err := recordEvent(tx, &id, types.EventRemove, "todo_remove", types.TodoEventPayload{
		V: 1, Input: map[string]any{"id": id}, Before: &before, Progress: progress,
	}); err != nil {
		return types.TodoItem{}, types.TodoProgress{}, err
	}

	if err := tx.Commit(); err != nil {
		return types.TodoItem{}, types.TodoProgress{}, fmt.Errorf("todostore: remove: commit: %w", err)
	}
	return before, progress, nil
}

// ClearDone deletes every done item and returns the deleted list.
func (s *Store) ClearDone(toolName string) ([]types.TodoItem, types.TodoProgress, error) {
	tx, err := s.db.Begin()
	if err != nil {
		return nil, types.TodoProgress{}, fmt.Errorf("todostore: clearDone: begin: %w", err)
	}
	defer tx.Rollback()

	done := types.TodoDone
	removed, err := func() ([]types.TodoItem, error) {
		rows, err := tx.Query("SELECT id, title, note, status, created_at, updated_at, completed_at FROM todo_items WHERE status = ? ORDER BY id ASC", string(done))
		if err != nil {
			return nil, fmt.Errorf("todostore: clearDone: select: %w", err)
		}
		defer rows.Close()
		var items []types.TodoItem
		for rows.Next() {
			item, err := scanItem(rows)
			if err != nil {
				return nil, err
			}
			items = append(items, item)
		}
		return items, rows.Err()
	}()
	if err != nil {
		return nil, types.TodoProgress{}, err
	}

	if _, err := tx.Exec("DELETE FROM todo_items WHERE status = ?", string(done)); err != nil {
		return nil, types.TodoProgress{}, fmt.Errorf("todostore: clearDone: delete: %w", err)
	}

	items, err := s.allItemsOrdered(tx)
	if err != nil {
		return nil, types.TodoProgress{}, err
	}
	progress := ComputeTodoProgressFromItems(items)

	if toolName == "" {
		toolName = "todo_clear_done"
	}
	if _, err := recordEvent(tx, nil, types.EventClearDone, toolName, types.TodoEventPayload{
		V: 1, Input: map[string]any{}, RemovedItems: removed, Progress: progress,
	}); err != nil {
		return nil, types.TodoProgress{}, err
	}

	if err := tx.Commit(); err != nil {
		return nil, types.TodoProgress{}, fmt.Errorf("todostore: clearDone: commit: %w", err)
	}
	return removed, progress, nil
}

// Progress returns the current TodoProgressContext without mutating
// anything, for callers (e.g. todo_list) that need a snapshot but not an
// event.
func (s *Store) Progress() (types.TodoProgress, error) {
	items, err := s.allItemsOrdered(s.db)
	if err != nil {
		return types.TodoProgress{}, err
	}
	return ComputeTodoProgressFromItems(items), nil
}

func (s *Store) fetchItem(q querier, id int) (types.TodoItem, error) {
	row := q.QueryRow("SELECT id, title, note, status, created_at, updated_at, completed_at FROM todo_items WHERE id = ?", id)
	item, err := scanItem(row)
	if err != nil {
		if err == sql.ErrNoRows {
			return types.TodoItem{}, fmt.Errorf("todostore: item %d not found", id)
		}
		return types.TodoItem{}, err
	}
	return item, nil
}

func nullableInt64(v *int64) any {
	if v == nil {
		return nil
	}
	return *v
}
