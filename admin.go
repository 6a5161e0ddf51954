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

// Package admin is the entry point to the Firebase Admin SDK. It provides functionality for initializing and managing
// App instances, which serve as central entities that provide access to various other Firebase services exposed from
// the SDK.
package admin

import (
	"context"
	"encoding/json"
	"os"
	"strings"

	"google.golang.org/api/option"
	"google.golang.org/api/transport"

	"github.com/firebase/firebase-admin-go/internal"
)

var firebaseScopes = []string{
	"https://www.googleapis.com/auth/cloud-platform",
	"https://www.googleapis.com/auth/datastore",
	"https://www.googleapis.com/auth/devstorage.full_control",
	"https://www.googleapis.com/auth/firebase",
	"https://www.googleapis.com/auth/identitytoolkit",
	"https://www.googleapis.com/auth/userinfo.email",
}

// Version of the Firebase Go Admin SDK.
const Version = "4.15.0"

// defaultAppName is the reserved name under which the default App is stored.
const defaultAppName = "[DEFAULT]"

// firebaseEnvName is the name of the environment variable with the Config.
const firebaseEnvName = "FIREBASE_CONFIG"

// Config represents the configuration used to initialize an App.
type Config struct {
	AuthOverride     *map[string]interface{} `json:"databaseAuthVariableOverride"`
	DatabaseURL      string                  `json:"databaseURL"`
	ProjectID        string                  `json:"projectId"`
	ServiceAccountID string                  `json:"serviceAccountId"`
	StorageBucket    string                  `json:"storageBucket"`
}

// copy returns a deep copy of the Config, detaching it from the value it was
// copied from. AuthOverride values may themselves be maps or slices, so the
// copy recurses; sharing any level would let a caller mutate the App's
// configuration after initialization.
func (c *Config) copy() *Config {
	conf := *c
	if c.AuthOverride != nil {
		ao := deepCopyMap(*c.AuthOverride)
		conf.AuthOverride = &ao
	}
	return &conf
}

func deepCopyMap(m map[string]interface{}) map[string]interface{} {
	out := make(map[string]interface{}, len(m))
	for k, v := range m {
		out[k] = deepCopyValue(v)
	}
	return out
}

func deepCopyValue(v interface{}) interface{} {
	switch val := v.(type) {
	case map[string]interface{}:
		return deepCopyMap(val)
	case []interface{}:
		out := make([]interface{}, len(val))
		for i, e := range val {
			out[i] = deepCopyValue(e)
		}
		return out
	default:
		return v
	}
}

// defaultRegistry backs the package-level functions. Apps initialized through
// InitializeApp and InitializeAppWithName all live in this registry.
var defaultRegistry = newRegistry()

// InitializeApp creates and registers the default App from the provided config and client options.
//
// If the client options contain a valid credential (a service account file, a refresh token file or an
// oauth2.TokenSource) the App will be authenticated using that credential. Otherwise, InitializeApp attempts to
// authenticate the App with Google application default credentials. InitializeApp returns an error with code
// "app/duplicate-app" if the default App has already been initialized and not deleted.
func InitializeApp(ctx context.Context, config *Config, opts ...option.ClientOption) (*App, error) {
	return initializeApp(ctx, defaultRegistry, config, defaultAppName, opts...)
}

// InitializeAppWithName creates and registers an App under the given name.
//
// Named apps make it possible to use several Firebase projects (or several
// credentials for the same project) simultaneously, each with its own isolated
// set of service instances. InitializeAppWithName returns an error with code
// "app/duplicate-app" if a live App with the same name already exists.
func InitializeAppWithName(ctx context.Context, config *Config, name string, opts ...option.ClientOption) (*App, error) {
	if strings.TrimSpace(name) == "" {
		return nil, appError(invalidAppName, "app name must not be empty or whitespace")
	}
	return initializeApp(ctx, defaultRegistry, config, name, opts...)
}

// GetApp returns the App stored under the given name. An empty name resolves
// the default App.
//
// GetApp returns an error with code "app/no-app" if no App with that name has
// been initialized, or if it has since been deleted.
func GetApp(name string) (*App, error) {
	if name == "" {
		name = defaultAppName
	} else if strings.TrimSpace(name) == "" {
		return nil, appError(invalidAppName, "app name must not be empty or whitespace")
	}
	return defaultRegistry.get(name)
}

// DefaultApp returns the default App, if it has been initialized.
func DefaultApp() (*App, error) {
	return defaultRegistry.get(defaultAppName)
}

// Apps returns all currently live (initialized and not deleted) Apps.
func Apps() []*App {
	return defaultRegistry.list()
}

// RegisterService registers a service name and an optional lifecycle hook with
// the SDK.
//
// The hook is invoked synchronously whenever an App is created or removed from
// the registry. Registering the same name twice returns an error with code
// "app/duplicate-service".
func RegisterService(name string, hook AppHook) error {
	return defaultRegistry.registerService(name, hook)
}

func initializeApp(ctx context.Context, r *registry, config *Config, name string, opts ...option.ClientOption) (*App, error) {
	conf, err := amendConfigWithDefaults(config)
	if err != nil {
		return nil, appErrorf(internalError, "failed to load default config: %v", err)
	}

	o := []option.ClientOption{option.WithScopes(firebaseScopes...)}
	o = append(o, opts...)

	if conf.ProjectID == "" {
		conf.ProjectID = discoverProjectID(ctx, o...)
	}

	app := &App{
		name:     name,
		config:   conf,
		opts:     o,
		registry: r,
		services: make(map[string]internal.AppService),
	}
	if err := r.add(app); err != nil {
		return nil, err
	}
	return app, nil
}

// amendConfigWithDefaults combines the given config with the one pointed to by
// the FIREBASE_CONFIG environment variable, which may hold either a JSON
// document or the path of a file containing one. Values in the given config
// always win. The result is always a copy detached from the caller's value.
func amendConfigWithDefaults(config *Config) (*Config, error) {
	var conf *Config
	if config != nil {
		conf = config.copy()
	} else {
		conf = &Config{}
	}

	confSpec := os.Getenv(firebaseEnvName)
	if confSpec == "" {
		return conf, nil
	}

	var dat []byte
	if strings.HasPrefix(confSpec, "{") {
		dat = []byte(confSpec)
	} else {
		var err error
		dat, err = os.ReadFile(confSpec)
		if err != nil {
			return nil, err
		}
	}

	envConf := &Config{}
	dec := json.NewDecoder(strings.NewReader(string(dat)))
	dec.DisallowUnknownFields()
	if err := dec.Decode(envConf); err != nil {
		return nil, err
	}

	if conf.AuthOverride == nil {
		conf.AuthOverride = envConf.AuthOverride
	}
	if conf.DatabaseURL == "" {
		conf.DatabaseURL = envConf.DatabaseURL
	}
	if conf.ProjectID == "" {
		conf.ProjectID = envConf.ProjectID
	}
	if conf.ServiceAccountID == "" {
		conf.ServiceAccountID = envConf.ServiceAccountID
	}
	if conf.StorageBucket == "" {
		conf.StorageBucket = envConf.StorageBucket
	}
	return conf, nil
}

// discoverProjectID resolves the project ID from the credential attached to
// the client options, falling back to the well-known environment variables.
// Credential lookup failures are not fatal at initialization time; services
// that require a credential surface the failure on first use.
func discoverProjectID(ctx context.Context, opts ...option.ClientOption) string {
	if creds, err := transport.Creds(ctx, opts...); err == nil && creds.ProjectID != "" {
		return creds.ProjectID
	}
	if pid := os.Getenv("GOOGLE_CLOUD_PROJECT"); pid != "" {
		return pid
	}
	return os.Getenv("GCLOUD_PROJECT")
}
