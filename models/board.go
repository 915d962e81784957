package models

// Column is a view partition of the task collection keyed by status. It is
// never persisted; the board service rebuilds it from the authoritative task
// list on every load.
type Column struct {
	ID    TaskStatus `json:"id"`
	Title string     `json:"title"`
	Tasks []Task     `json:"tasks"`
}

// ColumnTitles maps a status to the label shown above its column.
var ColumnTitles = map[TaskStatus]string{
	StatusTodo:       "To Do",
	StatusInProgress: "In Progress",
	StatusDone:       "Done",
}
