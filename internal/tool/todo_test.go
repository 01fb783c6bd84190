package tool

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agentcore/agentcore/pkg/types"
)

type fakeTodoStore struct {
	items    []types.TodoItem
	nextID   int
	progress types.TodoProgress
}

func newFakeTodoStore() *fakeTodoStore {
	return &fakeTodoStore{nextID: 1}
}

func (f *fakeTodoStore) List(status *types.TodoStatus, limit int) ([]types.TodoItem, error) {
	return f.items, nil
}

func (f *fakeTodoStore) Add(title, note string) (types.TodoItem, types.TodoProgress, error) {
	item := types.TodoItem{ID: f.nextID, Title: title, Note: note, Status: types.TodoOpen}
	f.nextID++
	f.items = append(f.items, item)
	return item, f.progress, nil
}

func (f *fakeTodoStore) Update(id int, title, note *string) (types.TodoItem, types.TodoProgress, error) {
	for i, it := range f.items {
		if it.ID == id {
			if title != nil {
				f.items[i].Title = *title
			}
			if note != nil {
				f.items[i].Note = *note
			}
			return f.items[i], f.progress, nil
		}
	}
	return types.TodoItem{}, f.progress, errors.New("not found")
}

func (f *fakeTodoStore) SetDone(id int, done bool) (types.TodoItem, types.TodoProgress, error) {
	for i, it := range f.items {
		if it.ID == id {
			if done {
				f.items[i].Status = types.TodoDone
			} else {
				f.items[i].Status = types.TodoOpen
			}
			return f.items[i], f.progress, nil
		}
	}
	return types.TodoItem{}, f.progress, errors.New("not found")
}

func (f *fakeTodoStore) Remove(id int) (types.TodoItem, types.TodoProgress, error) {
	for i, it := range f.items {
		if it.ID == id {
			f.items = append(f.items[:i], f.items[i+1:]...)
			return it, f.progress, nil
		}
	}
	return types.TodoItem{}, f.progress, errors.New("not found")
}

func (f *fakeTodoStore) ClearDone(toolName string) ([]types.TodoItem, types.TodoProgress, error) {
	var removed []types.TodoItem
	var kept []types.TodoItem
	for _, it := range f.items {
		if it.Status == types.TodoDone {
			removed = append(removed, it)
		} else {
			kept = append(kept, it)
		}
	}
	f.items = kept
	return removed, f.progress, nil
}

func (f *fakeTodoStore) Progress() (types.TodoProgress, error) { return f.progress, nil }

func newTodoExecCtx(store types.TodoStoreAPI) *types.ToolExecutionContext {
	return &types.ToolExecutionContext{Workspace: "/w", TodoStore: store}
}

func TestTodoAddThenList(t *testing.T) {
	store := newFakeTodoStore()
	execCtx := newTodoExecCtx(store)

	addResult := todoAddFactory(execCtx).Execute(map[string]any{"title": "write tests"}, CallMetadata{})
	_, hasErr := addResult["error"]
	require.False(t, hasErr)

	listResult := todoListFactory(execCtx).Execute(map[string]any{}, CallMetadata{})
	items := listResult["items"].([]map[string]any)
	require.Len(t, items, 1)
	assert.Equal(t, "write tests", items[0]["title"])
}

func TestTodoAddRejectsEmptyTitle(t *testing.T) {
	execCtx := newTodoExecCtx(newFakeTodoStore())
	result := todoAddFactory(execCtx).Execute(map[string]any{"title": ""}, CallMetadata{})
	assert.Equal(t, "Invalid input", result["error"])
}

func TestTodoUnavailableWithoutStore(t *testing.T) {
	execCtx := &types.ToolExecutionContext{Workspace: "/w"}
	result := todoAddFactory(execCtx).Execute(map[string]any{"title": "x"}, CallMetadata{})
	assert.Equal(t, "todo command is not available in runtime environment", result["error"])
}

func TestTodoDeniedByPolicy(t *testing.T) {
	execCtx := &types.ToolExecutionContext{
		Workspace:   "/w",
		TodoStore:   newFakeTodoStore(),
		Permissions: &types.Permissions{Permissions: map[string]types.PermissionSpec{"todo": {Deny: []string{".*"}}}},
	}
	result := todoAddFactory(execCtx).Execute(map[string]any{"title": "x"}, CallMetadata{})
	assert.Equal(t, "Permission denied: todo not allowed", result["error"])
}

func TestTodoCompleteThenClearDone(t *testing.T) {
	store := newFakeTodoStore()
	execCtx := newTodoExecCtx(store)
	store.Add("a", "")
	store.Add("b", "")

	_ = todoCompleteFactory(execCtx).Execute(map[string]any{"id": 1}, CallMetadata{})
	result := todoClearDoneFactory(execCtx).Execute(map[string]any{}, CallMetadata{})
	removed := result["removed"].([]map[string]any)
	require.Len(t, removed, 1)
	assert.Equal(t, 1, removed[0]["id"])
	assert.Len(t, store.items, 1)
}

func TestTodoUpdateRequiresAtLeastOneField(t *testing.T) {
	store := newFakeTodoStore()
	execCtx := newTodoExecCtx(store)
	store.Add("a", "")
	result := todoUpdateFactory(execCtx).Execute(map[string]any{"id": 1}, CallMetadata{})
	assert.Equal(t, "Invalid input", result["error"])
}
