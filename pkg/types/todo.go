package types

// TodoStatus is the closed vocabulary for TodoItem.Status.
type TodoStatus string

const (
	TodoOpen TodoStatus = "open"
	TodoDone TodoStatus = "done"
)

// TodoItem mirrors the todo_items row shape (spec.md §3, §4.4).
type TodoItem struct {
	ID          int        `json:"id"`
	Title       string     `json:"title"`
	Note        string     `json:"note"`
	Status      TodoStatus `json:"status"`
	CreatedAt   int64      `json:"createdAt"`
	UpdatedAt   int64      `json:"updatedAt"`
	CompletedAt *int64     `json:"completedAt"`
}

// TodoEventType is the closed vocabulary for TodoEvent.EventType.
type TodoEventType string

const (
	EventAdd       TodoEventType = "add"
	EventUpdate    TodoEventType = "update"
	EventComplete  TodoEventType = "complete"
	EventReopen    TodoEventType = "reopen"
	EventRemove    TodoEventType = "remove"
	EventClearDone TodoEventType = "clear_done"
)

// TodoActor is the closed vocabulary for TodoEvent.Actor.
type TodoActor string

const (
	ActorAgent  TodoActor = "agent"
	ActorSystem TodoActor = "system"
)

// TodoEvent mirrors the append-only todo_events row shape (spec.md §3,
// §4.4).
type TodoEvent struct {
	ID          int64         `json:"id"`
	TodoID      *int          `json:"todoId,omitempty"`
	EventType   TodoEventType `json:"eventType"`
	Actor       TodoActor     `json:"actor"`
	ToolName    string        `json:"toolName,omitempty"`
	PayloadJSON string        `json:"payloadJson"`
	CreatedAt   int64         `json:"createdAt"`
}

// TodoEventPayload is the JSON shape stored in TodoEvent.PayloadJSON
// (spec.md §4.4: "{v:1, input, before|null, after|null, removedItems?,
// progress}").
type TodoEventPayload struct {
	V            int            `json:"v"`
	Input        any            `json:"input"`
	Before       *TodoItem      `json:"before"`
	After        *TodoItem      `json:"after"`
	RemovedItems []TodoItem     `json:"removedItems,omitempty"`
	Progress     TodoProgress   `json:"progress"`
}
