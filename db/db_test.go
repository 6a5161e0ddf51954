// Copyright 2018 Google Inc. All Rights Reserved.
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

package db

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

var testOpts = []option.ClientOption{
	option.WithTokenSource(&internal.MockTokenSource{AccessToken: "mock-token"}),
}

func newTestClient(t *testing.T) *Client {
	client, err := NewClient(context.Background(), &internal.DatabaseConfig{
		Opts:    testOpts,
		URL:     "https://test-db.firebaseio.com",
		Version: "1.0.0",
	})
	if err != nil {
		t.Fatal(err)
	}
	return client
}

// mockServer records the requests it receives and replies with a fixed payload.
type mockServer struct {
	*httptest.Server
	reqs   []*http.Request
	bodies [][]byte
	resp   func(w http.ResponseWriter, r *http.Request)
}

func newMockServer(t *testing.T, client *Client) *mockServer {
	s := &mockServer{}
	s.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		b, _ := io.ReadAll(r.Body)
		s.reqs = append(s.reqs, r)
		s.bodies = append(s.bodies, b)
		if s.resp != nil {
			s.resp(w, r)
			return
		}
		w.Write([]byte(`{"name": "new-key"}`))
	}))
	t.Cleanup(s.Close)
	client.url = s.URL
	return s
}

func TestNewClientInvalidURL(t *testing.T) {
	urls := []string{
		"",
		"foo",
		"http://db.firebaseio.com",
		"ftp://db.firebaseio.com",
		"https://nodots",
	}
	for _, url := range urls {
		client, err := NewClient(context.Background(), &internal.DatabaseConfig{
			Opts: testOpts,
			URL:  url,
		})
		if client != nil || err == nil {
			t.Errorf("NewClient(%q) = (%v, %v); want: (nil, error)", url, client, err)
		}
		if !internal.HasErrorCode(err, "database/invalid-argument") {
			t.Errorf("NewClient(%q) err = %v; want code: %q", url, err, "database/invalid-argument")
		}
	}
}

func TestNewClientEmulatorHost(t *testing.T) {
	t.Setenv(emulatorHostEnv, "localhost:9000")

	client, err := NewClient(context.Background(), &internal.DatabaseConfig{
		Opts: testOpts,
		URL:  "https://test-ns.firebaseio.com",
	})
	if err != nil {
		t.Fatal(err)
	}
	if client.url != "http://localhost:9000" {
		t.Errorf("url = %q; want: %q", client.url, "http://localhost:9000")
	}
	if client.namespace != "test-ns" {
		t.Errorf("namespace = %q; want: %q", client.namespace, "test-ns")
	}
}

func TestNewClientEmulatorNamespaceParam(t *testing.T) {
	t.Setenv(emulatorHostEnv, "localhost:9000")

	client, err := NewClient(context.Background(), &internal.DatabaseConfig{
		Opts: testOpts,
		URL:  "http://localhost:9000?ns=custom-ns",
	})
	if err != nil {
		t.Fatal(err)
	}
	if client.namespace != "custom-ns" {
		t.Errorf("namespace = %q; want: %q", client.namespace, "custom-ns")
	}
}

func TestNewRef(t *testing.T) {
	client := newTestClient(t)
	cases := []struct {
		path     string
		wantPath string
		wantKey  string
	}{
		{"", "/", ""},
		{"/", "/", ""},
		{"foo", "/foo", "foo"},
		{"/foo/bar", "/foo/bar", "bar"},
		{"foo//bar/", "/foo/bar", "bar"},
	}
	for _, tc := range cases {
		ref := client.NewRef(tc.path)
		if ref.Path != tc.wantPath {
			t.Errorf("NewRef(%q).Path = %q; want: %q", tc.path, ref.Path, tc.wantPath)
		}
		if ref.Key != tc.wantKey {
			t.Errorf("NewRef(%q).Key = %q; want: %q", tc.path, ref.Key, tc.wantKey)
		}
	}
}

func TestRefParentAndChild(t *testing.T) {
	client := newTestClient(t)
	ref := client.NewRef("users/alice/posts")

	parent := ref.Parent()
	if parent == nil || parent.Path != "/users/alice" {
		t.Errorf("Parent().Path = %v; want: %q", parent, "/users/alice")
	}

	child := ref.Child("2024/first")
	if child.Path != "/users/alice/posts/2024/first" {
		t.Errorf("Child().Path = %q; want: %q", child.Path, "/users/alice/posts/2024/first")
	}

	root := client.NewRef("")
	if root.Parent() != nil {
		t.Error("Parent() of root; want: nil")
	}
}

func TestGet(t *testing.T) {
	client := newTestClient(t)
	s := newMockServer(t, client)
	s.resp = func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"name": "alice", "age": 30}`))
	}

	var got map[string]interface{}
	if err := client.NewRef("users/alice").Get(context.Background(), &got); err != nil {
		t.Fatal(err)
	}
	want := map[string]interface{}{"name": "alice", "age": float64(30)}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("Get() mismatch (-want +got):\n%s", diff)
	}
	req := s.reqs[0]
	if req.Method != http.MethodGet || req.URL.Path != "/users/alice.json" {
		t.Errorf("request = %s %s; want: GET /users/alice.json", req.Method, req.URL.Path)
	}
}

func TestSet(t *testing.T) {
	client := newTestClient(t)
	s := newMockServer(t, client)

	if err := client.NewRef("users/alice").Set(context.Background(), map[string]string{"name": "alice"}); err != nil {
		t.Fatal(err)
	}
	req := s.reqs[0]
	if req.Method != http.MethodPut || req.URL.Path != "/users/alice.json" {
		t.Errorf("request = %s %s; want: PUT /users/alice.json", req.Method, req.URL.Path)
	}
	if got := req.URL.Query().Get("print"); got != "silent" {
		t.Errorf("print = %q; want: %q", got, "silent")
	}
	if string(s.bodies[0]) != `{"name":"alice"}` {
		t.Errorf("body = %q; want: %q", string(s.bodies[0]), `{"name":"alice"}`)
	}
}

func TestPush(t *testing.T) {
	client := newTestClient(t)
	newMockServer(t, client)

	ref, err := client.NewRef("msgs").Push(context.Background(), map[string]string{"text": "hi"})
	if err != nil {
		t.Fatal(err)
	}
	if ref.Key != "new-key" || ref.Path != "/msgs/new-key" {
		t.Errorf("Push() ref = %q %q; want: %q %q", ref.Key, ref.Path, "new-key", "/msgs/new-key")
	}
}

func TestUpdateEmptyMap(t *testing.T) {
	client := newTestClient(t)
	err := client.NewRef("users").Update(context.Background(), nil)
	if !internal.HasErrorCode(err, "database/invalid-argument") {
		t.Errorf("Update(nil) err = %v; want code: %q", err, "database/invalid-argument")
	}
}

func TestSetIfUnchanged(t *testing.T) {
	client := newTestClient(t)
	s := newMockServer(t, client)

	ok, err := client.NewRef("node").SetIfUnchanged(context.Background(), "etag-1", "value")
	if err != nil {
		t.Fatal(err)
	}
	if !ok {
		t.Error("SetIfUnchanged() = false; want: true")
	}
	if got := s.reqs[0].Header.Get("If-Match"); got != "etag-1" {
		t.Errorf("If-Match = %q; want: %q", got, "etag-1")
	}

	s.resp = func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusPreconditionFailed)
	}
	ok, err = client.NewRef("node").SetIfUnchanged(context.Background(), "etag-1", "value")
	if err != nil {
		t.Fatal(err)
	}
	if ok {
		t.Error("SetIfUnchanged() on stale etag = true; want: false")
	}
}

func TestInvalidPathCharacters(t *testing.T) {
	client := newTestClient(t)
	for _, path := range []string{"foo#bar", "foo$bar", "foo[bar", "foo]bar", "foo.bar"} {
		err := client.NewRef(path).Get(context.Background(), &map[string]interface{}{})
		if !internal.HasErrorCode(err, "database/invalid-argument") {
			t.Errorf("Get(%q) err = %v; want code: %q", path, err, "database/invalid-argument")
		}
	}
}

func TestAuthOverrideParam(t *testing.T) {
	client, err := NewClient(context.Background(), &internal.DatabaseConfig{
		Opts:         testOpts,
		URL:          "https://test-db.firebaseio.com",
		AuthOverride: map[string]interface{}{"uid": "user1"},
	})
	if err != nil {
		t.Fatal(err)
	}
	s := newMockServer(t, client)
	s.resp = func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("null"))
	}

	var v interface{}
	if err := client.NewRef("node").Get(context.Background(), &v); err != nil {
		t.Fatal(err)
	}
	got := s.reqs[0].URL.Query().Get(authVarOverride)
	var parsed map[string]interface{}
	if err := json.Unmarshal([]byte(got), &parsed); err != nil {
		t.Fatalf("auth override param %q is not JSON: %v", got, err)
	}
	if parsed["uid"] != "user1" {
		t.Errorf("auth override = %v; want uid user1", parsed)
	}
}

func TestGetAndSetRules(t *testing.T) {
	client := newTestClient(t)
	s := newMockServer(t, client)
	s.resp = func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"rules": {".read": true}}`))
	}

	rules, err := client.GetRules(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if string(rules) != `{"rules": {".read": true}}` {
		t.Errorf("GetRules() = %q", string(rules))
	}
	if got := s.reqs[0].URL.Path; got != "/.settings/rules.json" {
		t.Errorf("path = %q; want: %q", got, "/.settings/rules.json")
	}

	if err := client.SetRules(context.Background(), []byte(`{"rules": {".read": false}}`)); err != nil {
		t.Fatal(err)
	}
	if got := s.reqs[1].Method; got != http.MethodPut {
		t.Errorf("SetRules() method = %q; want: %q", got, http.MethodPut)
	}

	err = client.SetRules(context.Background(), []byte("not json"))
	if !internal.HasErrorCode(err, "database/invalid-argument") {
		t.Errorf("SetRules(invalid) err = %v; want code: %q", err, "database/invalid-argument")
	}
}

func TestErrorResponse(t *testing.T) {
	client := newTestClient(t)
	s := newMockServer(t, client)
	s.resp = func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		w.Write([]byte(`{"error": "Permission denied"}`))
	}

	var v interface{}
	err := client.NewRef("node").Get(context.Background(), &v)
	if err == nil {
		t.Fatal("Get() = nil; want error")
	}
	if !internal.HasPlatformErrorCode(err, internal.Unauthenticated) {
		t.Errorf("Get() err = %v; want platform code: %q", err, internal.Unauthenticated)
	}
}
