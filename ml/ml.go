// Copyright 2020 Google Inc. All Rights Reserved.
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

// Package ml contains functions for managing the machine learning models of a
// Firebase project.
package ml

import (
	"context"
	"fmt"
	"net/http"
	"regexp"
	"strings"

	"github.com/firebase/firebase-admin-go/internal"
)

const (
	mlEndpoint = "https://firebaseml.googleapis.com/v1beta2"

	errorPrefix = "machine-learning"
)

var (
	modelIDPattern     = regexp.MustCompile(`^[A-Za-z0-9_-]+$`)
	displayNamePattern = regexp.MustCompile(`^[A-Za-z0-9_-]{1,32}$`)
)

// TFLiteModel contains the TensorFlow Lite source of a model.
type TFLiteModel struct {
	GCSTFLiteURI string `json:"gcsTfliteUri,omitempty"`
	SizeBytes    int64  `json:"sizeBytes,string,omitempty"`
}

// ModelState describes the publishing state of a model.
type ModelState struct {
	Published bool `json:"published,omitempty"`
}

// Model represents a machine learning model of a Firebase project.
type Model struct {
	Name        string       `json:"name,omitempty"`
	DisplayName string       `json:"displayName,omitempty"`
	CreateTime  string       `json:"createTime,omitempty"`
	UpdateTime  string       `json:"updateTime,omitempty"`
	ETag        string       `json:"etag,omitempty"`
	ModelHash   string       `json:"modelHash,omitempty"`
	Tags        []string     `json:"tags,omitempty"`
	State       *ModelState  `json:"state,omitempty"`
	TFLiteModel *TFLiteModel `json:"tfliteModel,omitempty"`
}

// ID returns the short model identifier extracted from the model's resource name.
func (m *Model) ID() string {
	if idx := strings.LastIndex(m.Name, "/"); idx >= 0 {
		return m.Name[idx+1:]
	}
	return m.Name
}

// Models is one page of a model listing, together with the token addressing
// the next page.
type Models struct {
	Models        []*Model `json:"models,omitempty"`
	NextPageToken string   `json:"nextPageToken,omitempty"`
}

// Client is the interface for the Firebase ML service.
type Client struct {
	hc        *internal.HTTPClient
	endpoint  string
	projectID string
}

// NewClient creates a new instance of the Firebase ML Client.
//
// This function can only be invoked from within the SDK. Client applications should access the
// ML service through admin.App.
func NewClient(ctx context.Context, c *internal.MLConfig) (*Client, error) {
	if c.ProjectID == "" {
		return nil, internal.PrefixedError(errorPrefix, "invalid-argument",
			"project id is required to access the ML service")
	}
	hc, _, err := internal.NewHTTPClient(ctx, c.Opts...)
	if err != nil {
		return nil, err
	}
	hc.Opts = []internal.HTTPOption{
		internal.WithHeader("X-Client-Version", fmt.Sprintf("Go/Admin/%s", c.Version)),
	}
	return &Client{
		hc:        hc,
		endpoint:  mlEndpoint,
		projectID: c.ProjectID,
	}, nil
}

// GetModel fetches the model identified by the given short model ID.
func (c *Client) GetModel(ctx context.Context, modelID string) (*Model, error) {
	if err := validateModelID(modelID); err != nil {
		return nil, err
	}
	model := &Model{}
	req := &internal.Request{
		Method: http.MethodGet,
		URL:    c.modelURL(modelID),
	}
	if _, err := c.hc.DoAndUnmarshal(ctx, req, model); err != nil {
		return nil, err
	}
	return model, nil
}

// ListModels lists the models of the project one page at a time.
//
// The filter expression and the page token may be empty. Page size zero lets
// the backend pick its default.
func (c *Client) ListModels(ctx context.Context, filter string, pageSize int, pageToken string) (*Models, error) {
	qp := make(map[string]string)
	if filter != "" {
		qp["filter"] = filter
	}
	if pageSize > 0 {
		qp["page_size"] = fmt.Sprintf("%d", pageSize)
	}
	if pageToken != "" {
		qp["page_token"] = pageToken
	}

	result := &Models{}
	req := &internal.Request{
		Method: http.MethodGet,
		URL:    fmt.Sprintf("%s/projects/%s/models", c.endpoint, c.projectID),
		Opts:   []internal.HTTPOption{internal.WithQueryParams(qp)},
	}
	if _, err := c.hc.DoAndUnmarshal(ctx, req, result); err != nil {
		return nil, err
	}
	return result, nil
}

// CreateModel creates a new model with the given display name and TFLite source.
func (c *Client) CreateModel(ctx context.Context, model *Model) (*Model, error) {
	if model == nil {
		return nil, internal.PrefixedError(errorPrefix, "invalid-argument", "model must not be nil")
	}
	if !displayNamePattern.MatchString(model.DisplayName) {
		return nil, internal.PrefixedErrorf(errorPrefix, "invalid-argument",
			"invalid model display name %q: must match %s", model.DisplayName, displayNamePattern.String())
	}

	created := &Model{}
	req := &internal.Request{
		Method: http.MethodPost,
		URL:    fmt.Sprintf("%s/projects/%s/models", c.endpoint, c.projectID),
		Body:   internal.NewJSONEntity(model),
	}
	if _, err := c.hc.DoAndUnmarshal(ctx, req, created); err != nil {
		return nil, err
	}
	return created, nil
}

// PublishModel marks the model identified by the given short model ID as published.
func (c *Client) PublishModel(ctx context.Context, modelID string) (*Model, error) {
	return c.setPublished(ctx, modelID, true)
}

// UnpublishModel removes the published mark from the model identified by the
// given short model ID.
func (c *Client) UnpublishModel(ctx context.Context, modelID string) (*Model, error) {
	return c.setPublished(ctx, modelID, false)
}

func (c *Client) setPublished(ctx context.Context, modelID string, published bool) (*Model, error) {
	if err := validateModelID(modelID); err != nil {
		return nil, err
	}
	model := &Model{}
	req := &internal.Request{
		Method: http.MethodPatch,
		URL:    c.modelURL(modelID),
		Body:   internal.NewJSONEntity(&Model{State: &ModelState{Published: published}}),
		Opts:   []internal.HTTPOption{internal.WithQueryParam("updateMask", "state.published")},
	}
	if _, err := c.hc.DoAndUnmarshal(ctx, req, model); err != nil {
		return nil, err
	}
	return model, nil
}

// DeleteModel deletes the model identified by the given short model ID.
func (c *Client) DeleteModel(ctx context.Context, modelID string) error {
	if err := validateModelID(modelID); err != nil {
		return err
	}
	req := &internal.Request{
		Method: http.MethodDelete,
		URL:    c.modelURL(modelID),
	}
	_, err := c.hc.DoAndUnmarshal(ctx, req, nil)
	return err
}

// Delete releases the resources held by the Client.
func (c *Client) Delete(ctx context.Context) error {
	c.hc.Client.CloseIdleConnections()
	return nil
}

func (c *Client) modelURL(modelID string) string {
	return fmt.Sprintf("%s/projects/%s/models/%s", c.endpoint, c.projectID, modelID)
}

func validateModelID(modelID string) error {
	if modelID == "" {
		return internal.PrefixedError(errorPrefix, "invalid-argument", "model id must not be empty")
	}
	if !modelIDPattern.MatchString(modelID) {
		return internal.PrefixedErrorf(errorPrefix, "invalid-argument", "invalid model id %q", modelID)
	}
	return nil
}
