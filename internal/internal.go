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

// Package internal contains functionality that is only accessible from within the Admin SDK.
package internal

import (
	"context"

	"golang.org/x/oauth2"
	"google.golang.org/api/option"
)

// AppService is the contract between an App and the service instances it
// constructs and caches.
//
// The registry treats services as opaque values. The only requirement is a
// teardown operation that releases every resource held by the service (open
// connections, background timers, cached sub-clients). Teardown must report
// all failures through the returned error, never by panicking.
type AppService interface {
	Delete(ctx context.Context) error
}

// AuthConfig represents the configuration of the Firebase Auth service.
type AuthConfig struct {
	Opts             []option.ClientOption
	ProjectID        string
	ServiceAccountID string
	Version          string
}

// DatabaseConfig represents the configuration of the Firebase Realtime Database service.
type DatabaseConfig struct {
	Opts         []option.ClientOption
	URL          string
	Version      string
	AuthOverride map[string]interface{}
}

// FirestoreConfig represents the configuration of the Cloud Firestore service.
type FirestoreConfig struct {
	Opts       []option.ClientOption
	ProjectID  string
	DatabaseID string
}

// MLConfig represents the configuration of the Firebase ML service.
type MLConfig struct {
	Opts      []option.ClientOption
	ProjectID string
	Version   string
}

// RulesConfig represents the configuration of the Firebase security rules service.
type RulesConfig struct {
	Opts      []option.ClientOption
	ProjectID string
	Version   string
}

// FunctionsConfig represents the configuration of the Cloud Functions task queue service.
type FunctionsConfig struct {
	Opts      []option.ClientOption
	ProjectID string
	Version   string
}

// StorageConfig represents the configuration of the Google Cloud Storage service.
type StorageConfig struct {
	Opts   []option.ClientOption
	Bucket string
}

// AppCheckConfig represents the configuration of the App Check service.
type AppCheckConfig struct {
	Opts      []option.ClientOption
	ProjectID string
	Version   string
}

// MockTokenSource is a TokenSource implementation that can be used for testing.
type MockTokenSource struct {
	AccessToken string
}

// Token returns the test token associated with the TokenSource.
func (ts *MockTokenSource) Token() (*oauth2.Token, error) {
	return &oauth2.Token{AccessToken: ts.AccessToken}, nil
}
