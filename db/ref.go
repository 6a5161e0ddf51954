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
	"net/http"
	"strings"

	"github.com/firebase/firebase-admin-go/internal"
)

// Ref represents a node in the Realtime Database.
type Ref struct {
	Key  string
	Path string

	client *Client
	segs   []string
}

// Parent returns a reference to the parent of the current node, or nil for the root.
func (r *Ref) Parent() *Ref {
	l := len(r.segs)
	if l > 0 {
		path := strings.Join(r.segs[:l-1], "/")
		return r.client.NewRef(path)
	}
	return nil
}

// Child returns a reference to the specified child node relative to this node.
func (r *Ref) Child(path string) *Ref {
	fp := strings.Join(append(r.segs, parsePath(path)...), "/")
	return r.client.NewRef(fp)
}

// Get retrieves the value at the current node, and unmarshals it into the given variable.
func (r *Ref) Get(ctx context.Context, v interface{}) error {
	resp, err := r.send(ctx, http.MethodGet, nil)
	if err != nil {
		return err
	}
	return json.Unmarshal(resp.Body, v)
}

// GetWithETag retrieves the value at the current node along with its ETag,
// which can later be passed to SetIfUnchanged for a conditional write.
func (r *Ref) GetWithETag(ctx context.Context, v interface{}) (string, error) {
	resp, err := r.send(ctx, http.MethodGet, nil, internal.WithHeader("X-Firebase-ETag", "true"))
	if err != nil {
		return "", err
	}
	if err := json.Unmarshal(resp.Body, v); err != nil {
		return "", err
	}
	return resp.Header.Get("ETag"), nil
}

// Set stores the given value at the current node, overwriting any existing data.
func (r *Ref) Set(ctx context.Context, v interface{}) error {
	_, err := r.send(ctx, http.MethodPut, v, internal.WithQueryParam("print", "silent"))
	return err
}

// SetIfUnchanged conditionally stores the given value at the current node.
//
// The write goes through only if the node has not been modified since the
// given ETag was read. SetIfUnchanged reports whether the write was applied.
func (r *Ref) SetIfUnchanged(ctx context.Context, etag string, v interface{}) (bool, error) {
	resp, err := r.sendRaw(ctx, http.MethodPut, v, internal.WithHeader("If-Match", etag))
	if err != nil {
		return false, err
	}
	if resp.Status == http.StatusPreconditionFailed {
		return false, nil
	}
	if resp.Status < http.StatusOK || resp.Status >= http.StatusMultipleChoices {
		return false, handleRTDBError(resp)
	}
	return true, nil
}

// Push creates a new child node at the current node with an automatically
// generated, chronologically ordered key, and stores the given value in it. A
// nil value creates an empty placeholder node.
func (r *Ref) Push(ctx context.Context, v interface{}) (*Ref, error) {
	if v == nil {
		v = ""
	}
	resp, err := r.send(ctx, http.MethodPost, v)
	if err != nil {
		return nil, err
	}
	var d struct {
		Name string `json:"name"`
	}
	if err := json.Unmarshal(resp.Body, &d); err != nil {
		return nil, err
	}
	return r.Child(d.Name), nil
}

// Update simultaneously modifies the specified child keys of the current node.
func (r *Ref) Update(ctx context.Context, v map[string]interface{}) error {
	if len(v) == 0 {
		return internal.PrefixedError(errorPrefix, "invalid-argument", "update value must be a non-empty map")
	}
	_, err := r.send(ctx, http.MethodPatch, v, internal.WithQueryParam("print", "silent"))
	return err
}

// Delete removes the current node and all of its children from the database.
func (r *Ref) Delete(ctx context.Context) error {
	_, err := r.send(ctx, http.MethodDelete, nil)
	return err
}

func (r *Ref) send(
	ctx context.Context,
	method string,
	body interface{},
	opts ...internal.HTTPOption) (*internal.Response, error) {

	resp, err := r.sendRaw(ctx, method, body, opts...)
	if err != nil {
		return nil, err
	}
	if resp.Status < http.StatusOK || resp.Status >= http.StatusMultipleChoices {
		return nil, handleRTDBError(resp)
	}
	return resp, nil
}

// sendRaw issues the request without interpreting the response status, for
// callers that treat specific error statuses as signals.
func (r *Ref) sendRaw(
	ctx context.Context,
	method string,
	body interface{},
	opts ...internal.HTTPOption) (*internal.Response, error) {

	if strings.ContainsAny(r.Path, invalidPathChars) {
		return nil, internal.PrefixedErrorf(errorPrefix, "invalid-argument",
			"path %q contains one or more invalid characters", r.Path)
	}
	if r.client.authOverride != "" {
		opts = append(opts, internal.WithQueryParam(authVarOverride, r.client.authOverride))
	}
	if r.client.namespace != "" {
		opts = append(opts, internal.WithQueryParam("ns", r.client.namespace))
	}

	req := &internal.Request{
		Method: method,
		URL:    r.client.url + r.Path + ".json",
		Opts:   opts,
	}
	if body != nil {
		req.Body = internal.NewJSONEntity(body)
	}
	return r.client.hc.Do(ctx, req)
}
