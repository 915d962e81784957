package services

import (
	"context"
	"fmt"
	"sync"

	"sprintsync/microservices/dashboard-service/clients"
	"sprintsync/microservices/dashboard-service/logging"
	"sprintsync/microservices/dashboard-service/models"
)

// BoardService keeps a status-partitioned view of the task collection and
// mediates drag-and-drop moves between columns. Moves are applied
// optimistically: the column state changes first, the status update is
// persisted after, and a failed persist triggers a full reload of the
// authoritative state instead of a fine-grained rollback.
type BoardService struct {
	client clients.TaskAPI

	mu      sync.Mutex
	columns map[models.TaskStatus][]models.Task
	loaded  bool

	// Drag gesture state machine: idle when dragTask is nil, dragging
	// otherwise. At most one gesture is active at a time.
	dragTask   *models.Task
	dragSource models.TaskStatus
	dragOver   models.TaskStatus

	// generation increments on every state change that must not be clobbered
	// by a reload that was started earlier and finished late.
	generation uint64
}

func NewBoardService(client clients.TaskAPI) *BoardService {
	return &BoardService{
		client:  client,
		columns: emptyColumns(),
	}
}

func emptyColumns() map[models.TaskStatus][]models.Task {
	columns := make(map[models.TaskStatus][]models.Task, len(models.AllStatuses))
	for _, status := range models.AllStatuses {
		columns[status] = []models.Task{}
	}
	return columns
}

func partition(tasks []models.Task) map[models.TaskStatus][]models.Task {
	columns := emptyColumns()
	for _, task := range tasks {
		if !task.Status.Valid() {
			logging.Logger.Warnf("Event ID: BOARD_UNKNOWN_STATUS, Description: Task %s has unknown status %q, skipping", task.ID, task.Status)
			continue
		}
		columns[task.Status] = append(columns[task.Status], task)
	}
	return columns
}

// Load fetches the full task collection and rebuilds the columns. On fetch
// failure the previous in-memory state stays untouched.
func (s *BoardService) Load(ctx context.Context) error {
	tasks, err := s.client.GetTasks(ctx)
	if err != nil {
		return fmt.Errorf("failed to load tasks: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.columns = partition(tasks)
	s.loaded = true
	s.generation++
	return nil
}

// Loaded reports whether the board has been populated at least once.
func (s *BoardService) Loaded() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.loaded
}

// Columns returns a snapshot of the board in fixed column order. The caller
// owns the copy.
func (s *BoardService) Columns() []models.Column {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshotLocked()
}

func (s *BoardService) snapshotLocked() []models.Column {
	columns := make([]models.Column, 0, len(models.AllStatuses))
	for _, status := range models.AllStatuses {
		tasks := make([]models.Task, len(s.columns[status]))
		copy(tasks, s.columns[status])
		columns = append(columns, models.Column{
			ID:    status,
			Title: models.ColumnTitles[status],
			Tasks: tasks,
		})
	}
	return columns
}

// BeginDrag records the active drag context. A gesture that begins while an
// older one is still pending takes ownership of the drag state.
func (s *BoardService) BeginDrag(taskID string, source models.TaskStatus) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i := range s.columns[source] {
		if s.columns[source][i].ID == taskID {
			task := s.columns[source][i]
			s.dragTask = &task
			s.dragSource = source
			s.dragOver = ""
			s.generation++
			return nil
		}
	}
	return fmt.Errorf("task %s not found in column %s", taskID, source)
}

// DragOver records the current drop target for visual feedback. Idempotent,
// no persistence.
func (s *BoardService) DragOver(target models.TaskStatus) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.dragTask != nil {
		s.dragOver = target
	}
}

// DragLeave clears the drop-target highlight without ending the gesture.
func (s *BoardService) DragLeave() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.dragOver = ""
}

// Dragging returns the active drag context, or nil when idle.
func (s *BoardService) Dragging() (*models.Task, models.TaskStatus) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.dragTask == nil {
		return nil, ""
	}
	task := *s.dragTask
	return &task, s.dragSource
}

// Drop completes the active gesture onto the target column. The move is
// applied locally before the status update is persisted; if persisting fails
// the authoritative state is reloaded, discarding the optimistic change. The
// drag context is cleared on every path so a failed drop can never wedge the
// board.
func (s *BoardService) Drop(ctx context.Context, target models.TaskStatus) error {
	s.mu.Lock()

	if s.dragTask == nil || s.dragSource == target {
		s.clearDragLocked()
		s.mu.Unlock()
		return nil
	}

	task := *s.dragTask
	source := s.dragSource
	s.clearDragLocked()

	// Optimistic move: the board reflects the transition before the task
	// service confirms it.
	s.removeTaskLocked(source, task.ID)
	task.Status = target
	s.columns[target] = append(s.columns[target], task)
	s.generation++
	expected := s.generation
	s.mu.Unlock()

	if _, err := s.client.UpdateTaskStatus(ctx, task.ID, target); err != nil {
		logging.Logger.Warnf("Event ID: BOARD_MOVE_FAILED, Description: Failed to persist move of task %s from %s to %s: %v", task.ID, source, target, err)
		if reloadErr := s.reload(ctx, expected); reloadErr != nil {
			return fmt.Errorf("failed to update task status: %w (reload also failed: %v)", err, reloadErr)
		}
		return fmt.Errorf("failed to update task status: %w", err)
	}

	logging.Logger.Infof("Event ID: BOARD_TASK_MOVED, Description: Task %s moved from %s to %s", task.ID, source, target)
	return nil
}

// ChangeStatus is the non-drag status transition. It persists first and then
// reloads the authoritative state, trading latency for simplicity.
func (s *BoardService) ChangeStatus(ctx context.Context, taskID string, status models.TaskStatus) error {
	if !status.Valid() {
		return fmt.Errorf("invalid task status: %q", status)
	}

	if _, err := s.client.UpdateTaskStatus(ctx, taskID, status); err != nil {
		return fmt.Errorf("failed to change task status: %w", err)
	}
	return s.Load(ctx)
}

// reload fetches the authoritative state to reconcile a failed optimistic
// move. The result is discarded if a newer gesture has touched the board
// while the fetch was in flight (last writer wins).
func (s *BoardService) reload(ctx context.Context, expected uint64) error {
	tasks, err := s.client.GetTasks(ctx)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.generation != expected {
		logging.Logger.Infof("Event ID: BOARD_RELOAD_STALE, Description: Discarding reconciliation reload, board changed while fetch was in flight")
		return nil
	}
	s.columns = partition(tasks)
	s.loaded = true
	return nil
}

func (s *BoardService) removeTaskLocked(column models.TaskStatus, taskID string) {
	tasks := s.columns[column]
	for i := range tasks {
		if tasks[i].ID == taskID {
			s.columns[column] = append(tasks[:i:i], tasks[i+1:]...)
			return
		}
	}
}

func (s *BoardService) clearDragLocked() {
	s.dragTask = nil
	s.dragSource = ""
	s.dragOver = ""
}
