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

// Package securityrules contains functions for managing the Cloud Firestore
// and Cloud Storage security rules of a Firebase project.
package securityrules

import (
	"context"
	"fmt"
	"net/http"
	"regexp"
	"strings"

	"github.com/firebase/firebase-admin-go/internal"
)

const (
	rulesEndpoint = "https://firebaserules.googleapis.com/v1"

	// FirestoreReleaseName is the release that governs Cloud Firestore requests.
	FirestoreReleaseName = "cloud.firestore"

	// StorageReleasePrefix prefixes the per-bucket Cloud Storage releases.
	StorageReleasePrefix = "firebase.storage"

	errorPrefix = "security-rules"
)

// Ruleset identifiers are UUIDs assigned by the backend.
var rulesetIDPattern = regexp.MustCompile(`^[0-9a-fA-F-]{36}$`)

// RulesFile is one named source file of a ruleset.
type RulesFile struct {
	Name    string `json:"name,omitempty"`
	Content string `json:"content,omitempty"`
}

// Source is the collection of files a ruleset is compiled from.
type Source struct {
	Files []*RulesFile `json:"files,omitempty"`
}

// Ruleset is an immutable set of security rules identified by a UUID.
type Ruleset struct {
	Name       string  `json:"name,omitempty"`
	CreateTime string  `json:"createTime,omitempty"`
	Source     *Source `json:"source,omitempty"`
}

// ID returns the UUID extracted from the ruleset's resource name.
func (r *Ruleset) ID() string {
	if idx := strings.LastIndex(r.Name, "/"); idx >= 0 {
		return r.Name[idx+1:]
	}
	return r.Name
}

// Release binds a named enforcement point (e.g. "cloud.firestore") to a ruleset.
type Release struct {
	Name        string `json:"name,omitempty"`
	RulesetName string `json:"rulesetName,omitempty"`
	CreateTime  string `json:"createTime,omitempty"`
	UpdateTime  string `json:"updateTime,omitempty"`
}

// Client is the interface for the Firebase security rules service.
type Client struct {
	hc        *internal.HTTPClient
	endpoint  string
	projectID string
}

// NewClient creates a new instance of the security rules Client.
//
// This function can only be invoked from within the SDK. Client applications should access the
// security rules service through admin.App.
func NewClient(ctx context.Context, c *internal.RulesConfig) (*Client, error) {
	if c.ProjectID == "" {
		return nil, internal.PrefixedError(errorPrefix, "invalid-argument",
			"project id is required to access the security rules service")
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
		endpoint:  rulesEndpoint,
		projectID: c.ProjectID,
	}, nil
}

// GetRuleset fetches the ruleset identified by the given UUID.
func (c *Client) GetRuleset(ctx context.Context, id string) (*Ruleset, error) {
	if err := validateRulesetID(id); err != nil {
		return nil, err
	}
	ruleset := &Ruleset{}
	req := &internal.Request{
		Method: http.MethodGet,
		URL:    fmt.Sprintf("%s/projects/%s/rulesets/%s", c.endpoint, c.projectID, id),
	}
	if _, err := c.hc.DoAndUnmarshal(ctx, req, ruleset); err != nil {
		return nil, err
	}
	return ruleset, nil
}

// CreateRuleset creates a new immutable ruleset from the given source files.
func (c *Client) CreateRuleset(ctx context.Context, source *Source) (*Ruleset, error) {
	if source == nil || len(source.Files) == 0 {
		return nil, internal.PrefixedError(errorPrefix, "invalid-argument",
			"ruleset source must contain at least one file")
	}
	for _, f := range source.Files {
		if f == nil || f.Name == "" || f.Content == "" {
			return nil, internal.PrefixedError(errorPrefix, "invalid-argument",
				"ruleset source files must have a non-empty name and content")
		}
	}

	ruleset := &Ruleset{}
	req := &internal.Request{
		Method: http.MethodPost,
		URL:    fmt.Sprintf("%s/projects/%s/rulesets", c.endpoint, c.projectID),
		Body:   internal.NewJSONEntity(&Ruleset{Source: source}),
	}
	if _, err := c.hc.DoAndUnmarshal(ctx, req, ruleset); err != nil {
		return nil, err
	}
	return ruleset, nil
}

// DeleteRuleset deletes the ruleset identified by the given UUID. Rulesets
// referenced by a release cannot be deleted.
func (c *Client) DeleteRuleset(ctx context.Context, id string) error {
	if err := validateRulesetID(id); err != nil {
		return err
	}
	req := &internal.Request{
		Method: http.MethodDelete,
		URL:    fmt.Sprintf("%s/projects/%s/rulesets/%s", c.endpoint, c.projectID, id),
	}
	_, err := c.hc.DoAndUnmarshal(ctx, req, nil)
	return err
}

// GetRelease fetches the release with the given name (e.g. "cloud.firestore").
func (c *Client) GetRelease(ctx context.Context, name string) (*Release, error) {
	if name == "" {
		return nil, internal.PrefixedError(errorPrefix, "invalid-argument", "release name must not be empty")
	}
	release := &Release{}
	req := &internal.Request{
		Method: http.MethodGet,
		URL:    fmt.Sprintf("%s/projects/%s/releases/%s", c.endpoint, c.projectID, name),
	}
	if _, err := c.hc.DoAndUnmarshal(ctx, req, release); err != nil {
		return nil, err
	}
	return release, nil
}

// UpdateRelease points the release with the given name at the ruleset
// identified by the given UUID, making that ruleset the enforced one.
func (c *Client) UpdateRelease(ctx context.Context, name, rulesetID string) (*Release, error) {
	if name == "" {
		return nil, internal.PrefixedError(errorPrefix, "invalid-argument", "release name must not be empty")
	}
	if err := validateRulesetID(rulesetID); err != nil {
		return nil, err
	}

	release := &Release{}
	body := struct {
		Release *Release `json:"release"`
	}{
		Release: &Release{
			Name:        fmt.Sprintf("projects/%s/releases/%s", c.projectID, name),
			RulesetName: fmt.Sprintf("projects/%s/rulesets/%s", c.projectID, rulesetID),
		},
	}
	req := &internal.Request{
		Method: http.MethodPatch,
		URL:    fmt.Sprintf("%s/projects/%s/releases/%s", c.endpoint, c.projectID, name),
		Body:   internal.NewJSONEntity(&body),
	}
	if _, err := c.hc.DoAndUnmarshal(ctx, req, release); err != nil {
		return nil, err
	}
	return release, nil
}

// ReleaseFirestoreRuleset makes the given ruleset the enforced one for Cloud
// Firestore requests.
func (c *Client) ReleaseFirestoreRuleset(ctx context.Context, rulesetID string) (*Release, error) {
	return c.UpdateRelease(ctx, FirestoreReleaseName, rulesetID)
}

// ReleaseStorageRuleset makes the given ruleset the enforced one for the given
// Cloud Storage bucket.
func (c *Client) ReleaseStorageRuleset(ctx context.Context, bucket, rulesetID string) (*Release, error) {
	if bucket == "" {
		return nil, internal.PrefixedError(errorPrefix, "invalid-argument", "bucket name must not be empty")
	}
	return c.UpdateRelease(ctx, fmt.Sprintf("%s/%s", StorageReleasePrefix, bucket), rulesetID)
}

// Delete releases the resources held by the Client.
func (c *Client) Delete(ctx context.Context) error {
	c.hc.Client.CloseIdleConnections()
	return nil
}

func validateRulesetID(id string) error {
	if id == "" {
		return internal.PrefixedError(errorPrefix, "invalid-argument", "ruleset id must not be empty")
	}
	if !rulesetIDPattern.MatchString(id) {
		return internal.PrefixedErrorf(errorPrefix, "invalid-argument", "invalid ruleset id %q", id)
	}
	return nil
}
