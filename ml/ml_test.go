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

package ml

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/go-cmp/cmp"
	"google.golang.org/api/option"

	"github.com/firebase/firebase-admin-go/internal"
)

const testProjectID = "mock-project-id"

var testModelResponse = []byte(`{
	"name": "projects/mock-project-id/models/1234567890",
	"displayName": "test-model",
	"createTime": "2020-01-01T00:00:00Z",
	"etag": "etag123",
	"modelHash": "hash123",
	"state": {"published": true},
	"tfliteModel": {
		"gcsTfliteUri": "gs://bucket/model.tflite",
		"sizeBytes": "1024"
	}
}`)

var wantModel = &Model{
	Name:        "projects/mock-project-id/models/1234567890",
	DisplayName: "test-model",
	CreateTime:  "2020-01-01T00:00:00Z",
	ETag:        "etag123",
	ModelHash:   "hash123",
	State:       &ModelState{Published: true},
	TFLiteModel: &TFLiteModel{
		GCSTFLiteURI: "gs://bucket/model.tflite",
		SizeBytes:    1024,
	},
}

func newTestClient(t *testing.T) (*Client, *mockServer) {
	client, err := NewClient(context.Background(), &internal.MLConfig{
		Opts: []option.ClientOption{
			option.WithTokenSource(&internal.MockTokenSource{AccessToken: "mock-token"}),
		},
		ProjectID: testProjectID,
		Version:   "1.0.0",
	})
	if err != nil {
		t.Fatal(err)
	}

	s := &mockServer{}
	s.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		b, _ := io.ReadAll(r.Body)
		s.reqs = append(s.reqs, r)
		s.bodies = append(s.bodies, b)
		if s.status != 0 {
			w.WriteHeader(s.status)
		}
		w.Write(s.resp)
	}))
	t.Cleanup(s.Close)
	client.endpoint = s.URL
	return client, s
}

type mockServer struct {
	*httptest.Server
	reqs   []*http.Request
	bodies [][]byte
	resp   []byte
	status int
}

func TestNewClientRequiresProjectID(t *testing.T) {
	client, err := NewClient(context.Background(), &internal.MLConfig{})
	if client != nil || err == nil {
		t.Fatalf("NewClient() = (%v, %v); want: (nil, error)", client, err)
	}
	if !internal.HasErrorCode(err, "machine-learning/invalid-argument") {
		t.Errorf("NewClient() err = %v; want code: %q", err, "machine-learning/invalid-argument")
	}
}

func TestGetModel(t *testing.T) {
	client, s := newTestClient(t)
	s.resp = testModelResponse

	model, err := client.GetModel(context.Background(), "1234567890")
	if err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff(wantModel, model); diff != "" {
		t.Errorf("GetModel() mismatch (-want +got):\n%s", diff)
	}
	if model.ID() != "1234567890" {
		t.Errorf("ID() = %q; want: %q", model.ID(), "1234567890")
	}
	req := s.reqs[0]
	wantPath := "/projects/mock-project-id/models/1234567890"
	if req.Method != http.MethodGet || req.URL.Path != wantPath {
		t.Errorf("request = %s %s; want: GET %s", req.Method, req.URL.Path, wantPath)
	}
}

func TestGetModelInvalidID(t *testing.T) {
	client, _ := newTestClient(t)
	for _, id := range []string{"", "model/with/slash", "id with space"} {
		model, err := client.GetModel(context.Background(), id)
		if model != nil || !internal.HasErrorCode(err, "machine-learning/invalid-argument") {
			t.Errorf("GetModel(%q) = (%v, %v); want invalid-argument error", id, model, err)
		}
	}
}

func TestListModels(t *testing.T) {
	client, s := newTestClient(t)
	s.resp = []byte(`{
		"models": [{"name": "projects/mock-project-id/models/1"}],
		"nextPageToken": "next"
	}`)

	models, err := client.ListModels(context.Background(), "displayName=test*", 10, "token")
	if err != nil {
		t.Fatal(err)
	}
	if len(models.Models) != 1 || models.NextPageToken != "next" {
		t.Errorf("ListModels() = %+v; want one model and token %q", models, "next")
	}
	q := s.reqs[0].URL.Query()
	if q.Get("filter") != "displayName=test*" || q.Get("page_size") != "10" || q.Get("page_token") != "token" {
		t.Errorf("query = %v; want filter, page_size and page_token set", q)
	}
}

func TestCreateModel(t *testing.T) {
	client, s := newTestClient(t)
	s.resp = testModelResponse

	model, err := client.CreateModel(context.Background(), &Model{
		DisplayName: "test-model",
		TFLiteModel: &TFLiteModel{GCSTFLiteURI: "gs://bucket/model.tflite"},
	})
	if err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff(wantModel, model); diff != "" {
		t.Errorf("CreateModel() mismatch (-want +got):\n%s", diff)
	}
	req := s.reqs[0]
	if req.Method != http.MethodPost || req.URL.Path != "/projects/mock-project-id/models" {
		t.Errorf("request = %s %s; want: POST /projects/mock-project-id/models", req.Method, req.URL.Path)
	}
}

func TestCreateModelInvalidDisplayName(t *testing.T) {
	client, _ := newTestClient(t)
	names := []string{"", "name with space", "this-display-name-is-way-too-long-to-be-valid"}
	for _, name := range names {
		model, err := client.CreateModel(context.Background(), &Model{DisplayName: name})
		if model != nil || !internal.HasErrorCode(err, "machine-learning/invalid-argument") {
			t.Errorf("CreateModel(%q) = (%v, %v); want invalid-argument error", name, model, err)
		}
	}

	if _, err := client.CreateModel(context.Background(), nil); !internal.HasErrorCode(err, "machine-learning/invalid-argument") {
		t.Errorf("CreateModel(nil) err = %v; want invalid-argument error", err)
	}
}

func TestPublishModel(t *testing.T) {
	client, s := newTestClient(t)
	s.resp = testModelResponse

	if _, err := client.PublishModel(context.Background(), "1234567890"); err != nil {
		t.Fatal(err)
	}
	req := s.reqs[0]
	if req.Method != http.MethodPatch {
		t.Errorf("method = %q; want: %q", req.Method, http.MethodPatch)
	}
	if got := req.URL.Query().Get("updateMask"); got != "state.published" {
		t.Errorf("updateMask = %q; want: %q", got, "state.published")
	}
	var body struct {
		State *ModelState `json:"state"`
	}
	if err := json.Unmarshal(s.bodies[0], &body); err != nil {
		t.Fatal(err)
	}
	if body.State == nil || !body.State.Published {
		t.Errorf("body = %s; want state.published: true", string(s.bodies[0]))
	}
}

func TestDeleteModel(t *testing.T) {
	client, s := newTestClient(t)
	s.resp = []byte("{}")

	if err := client.DeleteModel(context.Background(), "1234567890"); err != nil {
		t.Fatal(err)
	}
	req := s.reqs[0]
	if req.Method != http.MethodDelete {
		t.Errorf("method = %q; want: %q", req.Method, http.MethodDelete)
	}
}

func TestGetModelError(t *testing.T) {
	client, s := newTestClient(t)
	s.status = http.StatusNotFound
	s.resp = []byte(`{"error": {"status": "NOT_FOUND", "message": "requested model not found"}}`)

	model, err := client.GetModel(context.Background(), "1234567890")
	if model != nil || err == nil {
		t.Fatalf("GetModel() = (%v, %v); want: (nil, error)", model, err)
	}
	if !internal.HasPlatformErrorCode(err, internal.NotFound) {
		t.Errorf("GetModel() err = %v; want platform code: %q", err, internal.NotFound)
	}
	if err.Error() != "requested model not found" {
		t.Errorf("Error() = %q; want server message", err.Error())
	}
}
