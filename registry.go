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

package admin

import (
	"regexp"
	"strings"
	"sync"
)

// AppHookEvent identifies the app lifecycle event a registered hook is being
// notified about.
type AppHookEvent string

const (
	// AppCreated is fired immediately after an App is stored in the registry.
	AppCreated AppHookEvent = "create"

	// AppDeleted is fired immediately after an App is removed from the
	// registry. Asynchronous service teardown may still be in flight when a
	// hook observes this event.
	AppDeleted AppHookEvent = "delete"
)

// AppHook is a callback invoked synchronously by the registry on app lifecycle
// events.
type AppHook func(event AppHookEvent, app *App)

var serviceNamePattern = regexp.MustCompile(`^[a-zA-Z0-9-_]+$`)

// registry owns the map from app name to App, and the set of registered
// service hooks. One registry is constructed at package init and backs the
// package-level functions; tests construct their own to keep state isolated.
type registry struct {
	mutex    sync.Mutex
	apps     map[string]*App
	services map[string]AppHook
}

func newRegistry() *registry {
	return &registry{
		apps:     make(map[string]*App),
		services: make(map[string]AppHook),
	}
}

func (r *registry) add(app *App) error {
	r.mutex.Lock()
	if _, exists := r.apps[app.name]; exists {
		r.mutex.Unlock()
		if app.name == defaultAppName {
			return appError(duplicateApp, "The default Firebase app already exists. This means you called "+
				"InitializeApp() more than once. If you want to initialize multiple apps, specify a unique "+
				"name for each app instance via InitializeAppWithName().")
		}
		return appErrorf(duplicateApp, "Firebase app named %q already exists. This means you called "+
			"InitializeAppWithName() more than once with the same name argument. Make sure to provide a "+
			"unique name every time you call InitializeAppWithName().", app.name)
	}
	r.apps[app.name] = app
	hooks := r.hooks()
	r.mutex.Unlock()

	for _, hook := range hooks {
		hook(AppCreated, app)
	}
	return nil
}

func (r *registry) get(name string) (*App, error) {
	r.mutex.Lock()
	defer r.mutex.Unlock()
	if app, ok := r.apps[name]; ok {
		return app, nil
	}

	if name == defaultAppName {
		return nil, appError(noApp, "The default Firebase app does not exist. Make sure to initialize "+
			"the SDK by calling InitializeApp().")
	}
	return nil, appErrorf(noApp, "Firebase app named %q does not exist. Make sure to initialize the SDK "+
		"by calling InitializeAppWithName() with your app name before accessing the app.", name)
}

func (r *registry) list() []*App {
	r.mutex.Lock()
	defer r.mutex.Unlock()
	apps := make([]*App, 0, len(r.apps))
	for _, app := range r.apps {
		apps = append(apps, app)
	}
	return apps
}

// remove drops the App from the registry and fires the delete hooks. The App
// stops resolving through get as soon as remove returns, even though the
// App's own asynchronous service teardown may still be running.
func (r *registry) remove(app *App) {
	r.mutex.Lock()
	if existing, ok := r.apps[app.name]; !ok || existing != app {
		r.mutex.Unlock()
		return
	}
	delete(r.apps, app.name)
	hooks := r.hooks()
	r.mutex.Unlock()

	for _, hook := range hooks {
		hook(AppDeleted, app)
	}
}

// hooks must be called with the registry mutex held.
func (r *registry) hooks() []AppHook {
	hooks := make([]AppHook, 0, len(r.services))
	for _, hook := range r.services {
		if hook != nil {
			hooks = append(hooks, hook)
		}
	}
	return hooks
}

func (r *registry) registerService(name string, hook AppHook) error {
	if strings.TrimSpace(name) == "" {
		return appError(noServiceName, "service name must not be empty")
	}
	if !serviceNamePattern.MatchString(name) {
		return appErrorf(invalidServiceName, "invalid service name %q: only alphanumeric characters, "+
			"hyphens and underscores are allowed", name)
	}

	r.mutex.Lock()
	defer r.mutex.Unlock()
	if _, exists := r.services[name]; exists {
		return appErrorf(duplicateService, "service named %q has already been registered", name)
	}
	r.services[name] = hook
	return nil
}
