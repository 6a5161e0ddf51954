// Copyright 2017 Google Inc. All Rights Reserved.
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

// Package auth contains functions for minting custom authentication tokens,
// and managing the user accounts of a Firebase project.
package auth

import (
	"context"
	"fmt"
	"net/http"
	"os"

	"github.com/firebase/firebase-admin-go/internal"
)

const (
	idToolkitEndpoint = "https://identitytoolkit.googleapis.com/v1"
	emulatorHostEnv   = "FIREBASE_AUTH_EMULATOR_HOST"

	errorPrefix = "auth"
)

// Client is the interface for the Firebase Auth service.
type Client struct {
	hc        *internal.HTTPClient
	endpoint  string
	projectID string
	signer    cryptoSigner
}

// NewClient creates a new instance of the Firebase Auth Client.
//
// This function can only be invoked from within the SDK. Client applications should access the
// Auth service through admin.App.
func NewClient(ctx context.Context, c *internal.AuthConfig) (*Client, error) {
	signer, err := newSigner(ctx, c)
	if err != nil {
		return nil, err
	}

	hc, _, err := internal.NewHTTPClient(ctx, c.Opts...)
	if err != nil {
		return nil, err
	}
	hc.Opts = []internal.HTTPOption{
		internal.WithHeader("X-Client-Version", fmt.Sprintf("Go/Admin/%s", c.Version)),
	}

	endpoint := idToolkitEndpoint
	if emulatorHost := os.Getenv(emulatorHostEnv); emulatorHost != "" {
		endpoint = fmt.Sprintf("http://%s/identitytoolkit.googleapis.com/v1", emulatorHost)
	}
	return &Client{
		hc:        hc,
		endpoint:  endpoint,
		projectID: c.ProjectID,
		signer:    signer,
	}, nil
}

// UserRecord contains the metadata of a user account.
type UserRecord struct {
	UID           string `json:"localId,omitempty"`
	Email         string `json:"email,omitempty"`
	DisplayName   string `json:"displayName,omitempty"`
	PhotoURL      string `json:"photoUrl,omitempty"`
	PhoneNumber   string `json:"phoneNumber,omitempty"`
	Disabled      bool   `json:"disabled,omitempty"`
	EmailVerified bool   `json:"emailVerified,omitempty"`
}

// GetUser fetches the user account identified by the given UID.
func (c *Client) GetUser(ctx context.Context, uid string) (*UserRecord, error) {
	if uid == "" {
		return nil, internal.PrefixedError(errorPrefix, "invalid-argument", "uid must not be empty")
	}

	var parsed struct {
		Users []*UserRecord `json:"users"`
	}
	req := &internal.Request{
		Method: http.MethodPost,
		URL:    fmt.Sprintf("%s/projects/%s/accounts:lookup", c.endpoint, c.projectID),
		Body:   internal.NewJSONEntity(map[string][]string{"localId": {uid}}),
	}
	if _, err := c.hc.DoAndUnmarshal(ctx, req, &parsed); err != nil {
		return nil, err
	}
	if len(parsed.Users) == 0 {
		return nil, internal.PrefixedErrorf(errorPrefix, "user-not-found", "no user record found for uid %q", uid)
	}
	return parsed.Users[0], nil
}

// DeleteUser deletes the user account identified by the given UID.
func (c *Client) DeleteUser(ctx context.Context, uid string) error {
	if uid == "" {
		return internal.PrefixedError(errorPrefix, "invalid-argument", "uid must not be empty")
	}

	req := &internal.Request{
		Method: http.MethodPost,
		URL:    fmt.Sprintf("%s/projects/%s/accounts:delete", c.endpoint, c.projectID),
		Body:   internal.NewJSONEntity(map[string]string{"localId": uid}),
	}
	_, err := c.hc.DoAndUnmarshal(ctx, req, nil)
	return err
}

// Delete releases the resources held by the Client.
func (c *Client) Delete(ctx context.Context) error {
	c.hc.Client.CloseIdleConnections()
	return nil
}
