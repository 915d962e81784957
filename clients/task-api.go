package clients

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"sprintsync/microservices/dashboard-service/logging"
	"sprintsync/microservices/dashboard-service/models"

	"github.com/sony/gobreaker"
)

type contextKey string

const tokenContextKey contextKey = "authToken"

// WithToken returns a context carrying the caller's bearer token. Every
// request the client sends forwards this token to the task service.
func WithToken(ctx context.Context, token string) context.Context {
	return context.WithValue(ctx, tokenContextKey, token)
}

// TokenFromContext extracts the bearer token stored by WithToken, or "".
func TokenFromContext(ctx context.Context) string {
	token, _ := ctx.Value(tokenContextKey).(string)
	return token
}

// TaskAPI is the surface of the remote task/user service the dashboard
// depends on. Handlers and services accept this interface so tests can swap
// in a fake without a network.
type TaskAPI interface {
	GetTasks(ctx context.Context) ([]models.Task, error)
	GetTask(ctx context.Context, id string) (*models.Task, error)
	CreateTask(ctx context.Context, task models.Task) (*models.Task, error)
	UpdateTask(ctx context.Context, id string, updates map[string]interface{}) (*models.Task, error)
	DeleteTask(ctx context.Context, id string) error
	UpdateTaskStatus(ctx context.Context, id string, status models.TaskStatus) (*models.Task, error)
	GetUsers(ctx context.Context) ([]models.User, error)
	GetTimeLogs(ctx context.Context, days int) ([]models.TimeLog, error)
	SuggestDescription(ctx context.Context, title string) (*models.AISuggestion, error)
	GetDailyPlan(ctx context.Context) (*models.AISuggestion, error)
}

// TaskAPIClient talks to the task service over HTTP. All calls run through a
// circuit breaker so a dead upstream fails fast instead of piling up
// requests.
type TaskAPIClient struct {
	baseURL    string
	httpClient *http.Client
	breaker    *gobreaker.CircuitBreaker

	// onUnauthorized is invoked once per 401 response so the owner of the
	// stored credentials can drop them before the error propagates.
	onUnauthorized func()
}

func NewTaskAPIClient(baseURL string, httpClient *http.Client, breaker *gobreaker.CircuitBreaker) *TaskAPIClient {
	return &TaskAPIClient{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: httpClient,
		breaker:    breaker,
	}
}

// SetUnauthorizedHook registers the callback run whenever the task service
// answers 401.
func (c *TaskAPIClient) SetUnauthorizedHook(hook func()) {
	c.onUnauthorized = hook
}

func (c *TaskAPIClient) doRequest(ctx context.Context, method, path string, body interface{}) ([]byte, error) {
	var reqBody io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("failed to encode request body: %w", err)
		}
		reqBody = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reqBody)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if token := TokenFromContext(ctx); token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	result, err := c.breaker.Execute(func() (interface{}, error) {
		resp, err := c.httpClient.Do(req)
		if err != nil {
			return nil, fmt.Errorf("task service request failed: %w", err)
		}
		defer resp.Body.Close()

		respBody, err := io.ReadAll(resp.Body)
		if err != nil {
			return nil, fmt.Errorf("failed to read task service response: %w", err)
		}

		switch {
		case resp.StatusCode == http.StatusUnauthorized:
			logging.Logger.Warnf("Event ID: API_UNAUTHORIZED, Description: Task service returned 401 for %s %s", method, path)
			if c.onUnauthorized != nil {
				c.onUnauthorized()
			}
			return nil, ErrUnauthorized
		case resp.StatusCode == http.StatusForbidden:
			return nil, ErrForbidden
		case resp.StatusCode >= 400:
			return nil, &APIError{StatusCode: resp.StatusCode, Message: strings.TrimSpace(string(respBody))}
		}

		return respBody, nil
	})
	if err != nil {
		return nil, err
	}
	return result.([]byte), nil
}

func (c *TaskAPIClient) GetTasks(ctx context.Context) ([]models.Task, error) {
	body, err := c.doRequest(ctx, http.MethodGet, "/tasks", nil)
	if err != nil {
		return nil, err
	}

	var response struct {
		Tasks []models.Task `json:"tasks"`
	}
	if err := json.Unmarshal(body, &response); err != nil {
		return nil, fmt.Errorf("failed to decode task list: %w", err)
	}
	return response.Tasks, nil
}

func (c *TaskAPIClient) GetTask(ctx context.Context, id string) (*models.Task, error) {
	body, err := c.doRequest(ctx, http.MethodGet, "/tasks/"+id, nil)
	if err != nil {
		return nil, err
	}

	var response struct {
		Task models.Task `json:"task"`
	}
	if err := json.Unmarshal(body, &response); err != nil {
		return nil, fmt.Errorf("failed to decode task: %w", err)
	}
	return &response.Task, nil
}

func (c *TaskAPIClient) CreateTask(ctx context.Context, task models.Task) (*models.Task, error) {
	body, err := c.doRequest(ctx, http.MethodPost, "/tasks", task)
	if err != nil {
		return nil, err
	}

	var response struct {
		Task models.Task `json:"task"`
	}
	if err := json.Unmarshal(body, &response); err != nil {
		return nil, fmt.Errorf("failed to decode created task: %w", err)
	}
	return &response.Task, nil
}

func (c *TaskAPIClient) UpdateTask(ctx context.Context, id string, updates map[string]interface{}) (*models.Task, error) {
	body, err := c.doRequest(ctx, http.MethodPut, "/tasks/"+id, updates)
	if err != nil {
		return nil, err
	}

	var response struct {
		Task models.Task `json:"task"`
	}
	if err := json.Unmarshal(body, &response); err != nil {
		return nil, fmt.Errorf("failed to decode updated task: %w", err)
	}
	return &response.Task, nil
}

func (c *TaskAPIClient) DeleteTask(ctx context.Context, id string) error {
	_, err := c.doRequest(ctx, http.MethodDelete, "/tasks/"+id, nil)
	return err
}

func (c *TaskAPIClient) UpdateTaskStatus(ctx context.Context, id string, status models.TaskStatus) (*models.Task, error) {
	body, err := c.doRequest(ctx, http.MethodPatch, "/tasks/"+id+"/status", map[string]models.TaskStatus{"status": status})
	if err != nil {
		return nil, err
	}

	var response struct {
		Task models.Task `json:"task"`
	}
	if err := json.Unmarshal(body, &response); err != nil {
		return nil, fmt.Errorf("failed to decode task after status update: %w", err)
	}
	return &response.Task, nil
}

func (c *TaskAPIClient) GetUsers(ctx context.Context) ([]models.User, error) {
	body, err := c.doRequest(ctx, http.MethodGet, "/users", nil)
	if err != nil {
		return nil, err
	}

	var response struct {
		Users []models.User `json:"users"`
	}
	if err := json.Unmarshal(body, &response); err != nil {
		return nil, fmt.Errorf("failed to decode user list: %w", err)
	}
	return response.Users, nil
}

func (c *TaskAPIClient) GetTimeLogs(ctx context.Context, days int) ([]models.TimeLog, error) {
	body, err := c.doRequest(ctx, http.MethodGet, fmt.Sprintf("/tasks/time-tracking?days=%d", days), nil)
	if err != nil {
		return nil, err
	}

	var logs []models.TimeLog
	if err := json.Unmarshal(body, &logs); err != nil {
		return nil, fmt.Errorf("failed to decode time logs: %w", err)
	}
	return logs, nil
}

func (c *TaskAPIClient) SuggestDescription(ctx context.Context, title string) (*models.AISuggestion, error) {
	body, err := c.doRequest(ctx, http.MethodPost, "/ai/suggest", map[string]string{"title": title})
	if err != nil {
		return nil, err
	}

	var response struct {
		Title       string `json:"title"`
		Description string `json:"description"`
		IsStub      bool   `json:"isStub"`
		Message     string `json:"message"`
	}
	if err := json.Unmarshal(body, &response); err != nil {
		return nil, fmt.Errorf("failed to decode suggestion: %w", err)
	}

	return &models.AISuggestion{
		Type:       "task_description",
		Content:    response.Description,
		Confidence: confidenceFor(response.IsStub),
	}, nil
}

func (c *TaskAPIClient) GetDailyPlan(ctx context.Context) (*models.AISuggestion, error) {
	body, err := c.doRequest(ctx, http.MethodGet, "/ai/daily-plan", nil)
	if err != nil {
		return nil, err
	}

	var response struct {
		Plan      string `json:"plan"`
		IsStub    bool   `json:"isStub"`
		TaskCount int    `json:"taskCount"`
		Message   string `json:"message"`
	}
	if err := json.Unmarshal(body, &response); err != nil {
		return nil, fmt.Errorf("failed to decode daily plan: %w", err)
	}

	return &models.AISuggestion{
		Type:       "daily_plan",
		Content:    response.Plan,
		Confidence: confidenceFor(response.IsStub),
	}, nil
}

func confidenceFor(isStub bool) float64 {
	if isStub {
		return 0.5
	}
	return 0.9
}
