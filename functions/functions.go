// Copyright 2022 Google Inc. All Rights Reserved.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//      http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package functions contains functions for enqueueing tasks on the task queues
// backing the Cloud Functions of a Firebase project.
package functions

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"regexp"
	"strings"
	"time"

	"github.com/firebase/firebase-admin-go/internal"
)

const (
	cloudTasksEndpoint = "https://cloudtasks.googleapis.com/v2"
	emulatorHostEnv    = "CLOUD_TASKS_EMULATOR_HOST"
	defaultLocation    = "us-central1"

	// Dispatch deadline bounds imposed by Cloud Tasks.
	minDispatchDeadline = 15 * time.Second
	maxDispatchDeadline = 30 * time.Minute

	errorPrefix = "functions"
)

var (
	taskIDPattern       = regexp.MustCompile(`^[A-Za-z0-9_-]+$`)
	functionNamePattern = regexp.MustCompile(`^projects/([^/]+)/locations/([^/]+)/functions/([^/]+)$`)
)

// Task is one unit of work to be enqueued.
type Task struct {
	// Data is the JSON-serializable payload delivered to the function.
	Data interface{}

	// ID optionally names the task for deduplication. Auto-assigned when empty.
	ID string

	// Headers are delivered with the task's HTTP request.
	Headers map[string]string

	// ScheduleDelay postpones delivery by the given duration. Mutually
	// exclusive with ScheduleTime.
	ScheduleDelay time.Duration

	// ScheduleTime sets an absolute delivery time. Mutually exclusive with
	// ScheduleDelay.
	ScheduleTime *time.Time

	// DispatchDeadline bounds how long the queue waits for the function to
	// respond, between 15 seconds and 30 minutes. Zero keeps the queue default.
	DispatchDeadline time.Duration
}

// Client is the interface for the Cloud Functions task queue service.
type Client struct {
	hc        *internal.HTTPClient
	endpoint  string
	projectID string
}

// NewClient creates a new instance of the Cloud Functions Client.
//
// This function can only be invoked from within the SDK. Client applications should access the
// task queue service through admin.App.
func NewClient(ctx context.Context, c *internal.FunctionsConfig) (*Client, error) {
	if c.ProjectID == "" {
		return nil, internal.PrefixedError(errorPrefix, "invalid-argument",
			"project id is required to access the task queue service")
	}
	hc, _, err := internal.NewHTTPClient(ctx, c.Opts...)
	if err != nil {
		return nil, err
	}
	hc.Opts = []internal.HTTPOption{
		internal.WithHeader("X-Client-Version", fmt.Sprintf("Go/Admin/%s", c.Version)),
	}

	endpoint := cloudTasksEndpoint
	if emulatorHost := os.Getenv(emulatorHostEnv); emulatorHost != "" {
		endpoint = fmt.Sprintf("http://%s/v2", emulatorHost)
	}
	return &Client{
		hc:        hc,
		endpoint:  endpoint,
		projectID: c.ProjectID,
	}, nil
}

// TaskQueue returns a handle to the task queue backing the named function.
//
// The name may be a bare function name, in which case the function is assumed
// to live in the default location, or a full resource name of the form
// "projects/{project}/locations/{location}/functions/{function}".
func (c *Client) TaskQueue(function string) (*TaskQueue, error) {
	if function == "" {
		return nil, internal.PrefixedError(errorPrefix, "invalid-argument", "function name must not be empty")
	}

	projectID, location, name := c.projectID, defaultLocation, function
	if strings.Contains(function, "/") {
		groups := functionNamePattern.FindStringSubmatch(function)
		if groups == nil {
			return nil, internal.PrefixedErrorf(errorPrefix, "invalid-argument",
				"invalid function resource name %q", function)
		}
		projectID, location, name = groups[1], groups[2], groups[3]
	}

	return &TaskQueue{
		client:    c,
		projectID: projectID,
		location:  location,
		function:  name,
	}, nil
}

// Delete releases the resources held by the Client.
func (c *Client) Delete(ctx context.Context) error {
	c.hc.Client.CloseIdleConnections()
	return nil
}

// TaskQueue is a handle to the queue of one function.
type TaskQueue struct {
	client    *Client
	projectID string
	location  string
	function  string
}

// Enqueue adds a task to the queue, and returns the ID assigned to it.
func (q *TaskQueue) Enqueue(ctx context.Context, task *Task) (string, error) {
	if task == nil {
		return "", internal.PrefixedError(errorPrefix, "invalid-argument", "task must not be nil")
	}
	payload, err := q.buildTaskPayload(task)
	if err != nil {
		return "", err
	}

	var created struct {
		Name string `json:"name"`
	}
	req := &internal.Request{
		Method: http.MethodPost,
		URL:    fmt.Sprintf("%s/%s/tasks", q.client.endpoint, q.queuePath()),
		Body:   internal.NewJSONEntity(map[string]interface{}{"task": payload}),
	}
	if _, err := q.client.hc.DoAndUnmarshal(ctx, req, &created); err != nil {
		return "", err
	}
	if idx := strings.LastIndex(created.Name, "/"); idx >= 0 {
		return created.Name[idx+1:], nil
	}
	return created.Name, nil
}

// DeleteTask removes the task with the given ID from the queue, if it has not
// been dispatched yet.
func (q *TaskQueue) DeleteTask(ctx context.Context, id string) error {
	if !taskIDPattern.MatchString(id) {
		return internal.PrefixedErrorf(errorPrefix, "invalid-argument", "invalid task id %q", id)
	}
	req := &internal.Request{
		Method: http.MethodDelete,
		URL:    fmt.Sprintf("%s/%s/tasks/%s", q.client.endpoint, q.queuePath(), id),
	}
	_, err := q.client.hc.DoAndUnmarshal(ctx, req, nil)
	return err
}

func (q *TaskQueue) queuePath() string {
	return fmt.Sprintf("projects/%s/locations/%s/queues/%s", q.projectID, q.location, q.function)
}

func (q *TaskQueue) targetURL() string {
	return fmt.Sprintf("https://%s-%s.cloudfunctions.net/%s", q.location, q.projectID, q.function)
}

func (q *TaskQueue) buildTaskPayload(task *Task) (map[string]interface{}, error) {
	if task.ScheduleDelay != 0 && task.ScheduleTime != nil {
		return nil, internal.PrefixedError(errorPrefix, "invalid-argument",
			"only one of ScheduleDelay and ScheduleTime may be set")
	}
	if task.ScheduleDelay < 0 {
		return nil, internal.PrefixedError(errorPrefix, "invalid-argument", "schedule delay must not be negative")
	}
	if task.DispatchDeadline != 0 &&
		(task.DispatchDeadline < minDispatchDeadline || task.DispatchDeadline > maxDispatchDeadline) {
		return nil, internal.PrefixedErrorf(errorPrefix, "invalid-argument",
			"dispatch deadline must be between %v and %v", minDispatchDeadline, maxDispatchDeadline)
	}
	if task.ID != "" && !taskIDPattern.MatchString(task.ID) {
		return nil, internal.PrefixedErrorf(errorPrefix, "invalid-argument", "invalid task id %q", task.ID)
	}

	body, err := json.Marshal(map[string]interface{}{"data": task.Data})
	if err != nil {
		return nil, internal.PrefixedErrorf(errorPrefix, "invalid-argument",
			"task data must be JSON-serializable: %v", err)
	}

	httpRequest := map[string]interface{}{
		"url":        q.targetURL(),
		"httpMethod": http.MethodPost,
		"body":       base64.StdEncoding.EncodeToString(body),
	}
	headers := map[string]string{"Content-Type": "application/json"}
	for k, v := range task.Headers {
		headers[k] = v
	}
	httpRequest["headers"] = headers

	payload := map[string]interface{}{"httpRequest": httpRequest}
	if task.ID != "" {
		payload["name"] = fmt.Sprintf("%s/tasks/%s", q.queuePath(), task.ID)
	}
	if task.ScheduleDelay != 0 {
		st := time.Now().Add(task.ScheduleDelay).UTC()
		payload["scheduleTime"] = st.Format(time.RFC3339)
	} else if task.ScheduleTime != nil {
		payload["scheduleTime"] = task.ScheduleTime.UTC().Format(time.RFC3339)
	}
	if task.DispatchDeadline != 0 {
		payload["dispatchDeadline"] = fmt.Sprintf("%ds", int64(task.DispatchDeadline.Seconds()))
	}
	return payload, nil
}
