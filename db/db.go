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

// Package db contains functions for accessing the Firebase Realtime Database.
package db

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"strings"

	"github.com/firebase/firebase-admin-go/internal"
)

const (
	authVarOverride  = "auth_variable_override"
	emulatorHostEnv  = "FIREBASE_DATABASE_EMULATOR_HOST"
	rulesPath        = "/.settings/rules"
	invalidPathChars = "[].#$"
)

// errorPrefix namespaces the error codes raised by this package.
const errorPrefix = "database"

// Client is the interface for the Firebase Realtime Database service.
type Client struct {
	hc           *internal.HTTPClient
	url          string
	namespace    string
	authOverride string
}

// NewClient creates a new instance of the Firebase Database Client.
//
// This function can only be invoked from within the SDK. Client applications should access the
// database service through admin.App.
func NewClient(ctx context.Context, c *internal.DatabaseConfig) (*Client, error) {
	baseURL, namespace, err := resolveURL(c.URL)
	if err != nil {
		return nil, err
	}

	var ao string
	if c.AuthOverride != nil {
		b, err := json.Marshal(c.AuthOverride)
		if err != nil {
			return nil, err
		}
		ao = string(b)
	}

	hc, _, err := internal.NewHTTPClient(ctx, c.Opts...)
	if err != nil {
		return nil, err
	}
	hc.CreateErr = handleRTDBError
	hc.Opts = []internal.HTTPOption{
		internal.WithHeader("User-Agent", fmt.Sprintf("Firebase/HTTP/%s/AdminGo", c.Version)),
	}
	return &Client{
		hc:           hc,
		url:          baseURL,
		namespace:    namespace,
		authOverride: ao,
	}, nil
}

// resolveURL validates the database URL, routing it to the emulator when the
// FIREBASE_DATABASE_EMULATOR_HOST environment variable is set. The emulator
// addresses the database namespace with a ?ns= query parameter, which
// resolveURL returns separately.
func resolveURL(dbURL string) (string, string, error) {
	if emulatorHost := os.Getenv(emulatorHostEnv); emulatorHost != "" {
		namespace, err := namespaceFor(dbURL)
		if err != nil {
			return "", "", err
		}
		return fmt.Sprintf("http://%s", emulatorHost), namespace, nil
	}

	if dbURL == "" {
		return "", "", internal.PrefixedError(errorPrefix, "invalid-argument", "database url not specified")
	}
	p, err := url.ParseRequestURI(dbURL)
	if err != nil {
		return "", "", internal.PrefixedErrorf(errorPrefix, "invalid-argument", "invalid database url: %q", dbURL)
	}
	if p.Scheme != "https" {
		return "", "", internal.PrefixedErrorf(errorPrefix, "invalid-argument",
			"invalid database url: %q; want scheme: %q", dbURL, "https")
	}
	if !strings.ContainsRune(p.Host, '.') {
		return "", "", internal.PrefixedErrorf(errorPrefix, "invalid-argument",
			"invalid database url: %q; missing host", dbURL)
	}
	return fmt.Sprintf("https://%s", p.Host), "", nil
}

func namespaceFor(dbURL string) (string, error) {
	if dbURL == "" {
		return "", internal.PrefixedError(errorPrefix, "invalid-argument", "database url not specified")
	}
	p, err := url.ParseRequestURI(dbURL)
	if err != nil {
		return "", internal.PrefixedErrorf(errorPrefix, "invalid-argument", "invalid database url: %q", dbURL)
	}
	if ns := p.Query().Get("ns"); ns != "" {
		return ns, nil
	}
	// The namespace defaults to the first label of the instance host name.
	if idx := strings.IndexRune(p.Host, '.'); idx > 0 {
		return p.Host[:idx], nil
	}
	return "", internal.PrefixedErrorf(errorPrefix, "invalid-argument",
		"invalid database url: %q; cannot determine database namespace", dbURL)
}

// NewRef returns a new database reference representing the node at the specified path.
func (c *Client) NewRef(path string) *Ref {
	segs := parsePath(path)
	key := ""
	if len(segs) > 0 {
		key = segs[len(segs)-1]
	}

	return &Ref{
		Key:    key,
		Path:   "/" + strings.Join(segs, "/"),
		client: c,
		segs:   segs,
	}
}

// GetRules fetches the currently applied security rules of the database as a
// JSON document. The returned document may contain comments.
func (c *Client) GetRules(ctx context.Context) ([]byte, error) {
	resp, err := c.send(ctx, http.MethodGet, rulesPath, nil)
	if err != nil {
		return nil, err
	}
	return resp.Body, nil
}

// SetRules applies the given JSON document as the security rules of the
// database, replacing the previously applied rules.
func (c *Client) SetRules(ctx context.Context, rules []byte) error {
	var parsed interface{}
	if err := json.Unmarshal(rules, &parsed); err != nil {
		return internal.PrefixedErrorf(errorPrefix, "invalid-argument", "rules must be valid JSON: %v", err)
	}
	_, err := c.send(ctx, http.MethodPut, rulesPath, json.RawMessage(rules))
	return err
}

// Delete releases the resources held by the Client.
func (c *Client) Delete(ctx context.Context) error {
	c.hc.Client.CloseIdleConnections()
	return nil
}

func (c *Client) send(
	ctx context.Context,
	method, path string,
	body interface{},
	opts ...internal.HTTPOption) (*internal.Response, error) {

	if c.authOverride != "" {
		opts = append(opts, internal.WithQueryParam(authVarOverride, c.authOverride))
	}
	if c.namespace != "" {
		opts = append(opts, internal.WithQueryParam("ns", c.namespace))
	}

	req := &internal.Request{
		Method: method,
		URL:    fmt.Sprintf("%s%s.json", c.url, path),
		Opts:   opts,
	}
	if body != nil {
		req.Body = internal.NewJSONEntity(body)
	}
	resp, err := c.hc.Do(ctx, req)
	if err != nil {
		return nil, err
	}
	if resp.Status < http.StatusOK || resp.Status >= http.StatusMultipleChoices {
		return nil, handleRTDBError(resp)
	}
	return resp, nil
}

func handleRTDBError(resp *internal.Response) error {
	var payload struct {
		Error string `json:"error"`
	}
	json.Unmarshal(resp.Body, &payload)
	err := internal.NewFirebaseError(resp)
	if payload.Error != "" {
		err.String = fmt.Sprintf("http error status: %d; reason: %s", resp.Status, payload.Error)
	}
	return err
}

func parsePath(path string) []string {
	var segs []string
	for _, s := range strings.Split(path, "/") {
		if s != "" {
			segs = append(segs, s)
		}
	}
	return segs
}
