package services_test

import (
	"context"
	"sync"

	"sprintsync/microservices/dashboard-service/models"
)

// fakeTaskAPI is an in-memory stand-in for the remote task service.
type fakeTaskAPI struct {
	mu sync.Mutex

	tasks []models.Task
	users []models.User
	logs  []models.TimeLog

	getTasksErr     error
	updateStatusErr error
	getUsersErr     error
	getTimeLogsErr  error

	getTasksCalls     int
	updateStatusCalls int

	// onGetTasks runs before each GetTasks response, letting a test interleave
	// board mutations with an in-flight reload.
	onGetTasks func()
}

func newFakeTaskAPI(tasks ...models.Task) *fakeTaskAPI {
	return &fakeTaskAPI{tasks: tasks}
}

func (f *fakeTaskAPI) setTasks(tasks ...models.Task) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.tasks = tasks
}

func (f *fakeTaskAPI) GetTasks(ctx context.Context) ([]models.Task, error) {
	f.mu.Lock()
	f.getTasksCalls++
	hook := f.onGetTasks
	f.mu.Unlock()

	if hook != nil {
		hook()
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if f.getTasksErr != nil {
		return nil, f.getTasksErr
	}
	tasks := make([]models.Task, len(f.tasks))
	copy(tasks, f.tasks)
	return tasks, nil
}

func (f *fakeTaskAPI) GetTask(ctx context.Context, id string) (*models.Task, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i := range f.tasks {
		if f.tasks[i].ID == id {
			task := f.tasks[i]
			return &task, nil
		}
	}
	return nil, errNotFound
}

func (f *fakeTaskAPI) CreateTask(ctx context.Context, task models.Task) (*models.Task, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.tasks = append(f.tasks, task)
	return &task, nil
}

func (f *fakeTaskAPI) UpdateTask(ctx context.Context, id string, updates map[string]interface{}) (*models.Task, error) {
	return f.GetTask(ctx, id)
}

func (f *fakeTaskAPI) DeleteTask(ctx context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i := range f.tasks {
		if f.tasks[i].ID == id {
			f.tasks = append(f.tasks[:i], f.tasks[i+1:]...)
			return nil
		}
	}
	return errNotFound
}

func (f *fakeTaskAPI) UpdateTaskStatus(ctx context.Context, id string, status models.TaskStatus) (*models.Task, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.updateStatusCalls++
	if f.updateStatusErr != nil {
		return nil, f.updateStatusErr
	}
	for i := range f.tasks {
		if f.tasks[i].ID == id {
			f.tasks[i].Status = status
			task := f.tasks[i]
			return &task, nil
		}
	}
	return nil, errNotFound
}

func (f *fakeTaskAPI) GetUsers(ctx context.Context) ([]models.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.getUsersErr != nil {
		return nil, f.getUsersErr
	}
	return f.users, nil
}

func (f *fakeTaskAPI) GetTimeLogs(ctx context.Context, days int) ([]models.TimeLog, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.getTimeLogsErr != nil {
		return nil, f.getTimeLogsErr
	}
	return f.logs, nil
}

func (f *fakeTaskAPI) SuggestDescription(ctx context.Context, title string) (*models.AISuggestion, error) {
	return &models.AISuggestion{Type: "task_description", Content: "draft for " + title, Confidence: 0.5}, nil
}

func (f *fakeTaskAPI) GetDailyPlan(ctx context.Context) (*models.AISuggestion, error) {
	return &models.AISuggestion{Type: "daily_plan", Content: "plan", Confidence: 0.5}, nil
}
