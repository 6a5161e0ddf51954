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
	"context"
	"fmt"
	"strings"
	"sync"

	"golang.org/x/sync/errgroup"
	"google.golang.org/api/option"

	"github.com/firebase/firebase-admin-go/internal"
)

// Error codes raised by the App and the app registry.
const (
	invalidAppName     = "invalid-app-name"
	noApp              = "no-app"
	duplicateApp       = "duplicate-app"
	appDeleted         = "app-deleted"
	internalError      = "internal-error"
	noServiceName      = "no-service-name"
	invalidServiceName = "invalid-service-name"
	duplicateService   = "duplicate-service"
)

func appError(code, msg string) *internal.FirebaseError {
	return internal.PrefixedError("app", code, msg)
}

func appErrorf(code, msg string, args ...interface{}) *internal.FirebaseError {
	return appError(code, fmt.Sprintf(msg, args...))
}

// An App holds configuration and state common to all Firebase services that are exposed from the SDK.
//
// An App lazily constructs the service clients reachable from it, and caches
// them so that repeated accessor calls return the same instance. Deleting the
// App tears down every cached service and permanently invalidates the App.
type App struct {
	name     string
	config   *Config
	opts     []option.ClientOption
	registry *registry

	mutex    sync.Mutex
	services map[string]internal.AppService
	deleted  bool
}

// Name returns the name this App was initialized with.
//
// Name returns an error with code "app/app-deleted" if the App has already
// been deleted.
func (a *App) Name() (string, error) {
	a.mutex.Lock()
	defer a.mutex.Unlock()
	if err := a.checkNotDeleted(); err != nil {
		return "", err
	}
	return a.name, nil
}

// Config returns a copy of the configuration this App was initialized with.
//
// The returned value is detached from the App. Mutating it has no effect on
// the App, and mutations made by the caller to the original configuration
// passed to InitializeApp never leak into the App. Config returns an error
// with code "app/app-deleted" if the App has already been deleted.
func (a *App) Config() (*Config, error) {
	a.mutex.Lock()
	defer a.mutex.Unlock()
	if err := a.checkNotDeleted(); err != nil {
		return nil, err
	}
	return a.config.copy(), nil
}

// checkNotDeleted must be called with the app mutex held.
func (a *App) checkNotDeleted() error {
	if !a.deleted {
		return nil
	}
	if a.name == defaultAppName {
		return appError(appDeleted, "the default Firebase app is already deleted")
	}
	return appErrorf(appDeleted, "Firebase app named %q is already deleted", a.name)
}

// getOrInitService returns the service instance cached under the given key,
// constructing it with fn on first access.
//
// The cache guarantees at most one construction per key for the life of the
// App. If fn fails nothing is cached, and the next call with the same key
// retries the construction. Keys for services that support multiple instances
// per App carry a sub-discriminator (e.g. "database:<url>").
//
// fn runs while the App's internal lock is held, so it must not call back
// into the same App's service accessors.
func (a *App) getOrInitService(key string, fn func() (internal.AppService, error)) (internal.AppService, error) {
	if strings.TrimSpace(key) == "" {
		return nil, appError(noServiceName, "service name must not be empty")
	}

	a.mutex.Lock()
	defer a.mutex.Unlock()
	if err := a.checkNotDeleted(); err != nil {
		return nil, err
	}

	if s, ok := a.services[key]; ok {
		return s, nil
	}
	s, err := fn()
	if err != nil {
		return nil, err
	}
	if s == nil {
		return nil, appErrorf(internalError, "service factory for %q returned nil", key)
	}
	a.services[key] = s
	return s, nil
}

// Delete gracefully terminates this App.
//
// Delete removes the App from the registry it was initialized in, making its
// name immediately available for reuse, and invokes the teardown operation of
// every cached service instance. Delete hooks registered via RegisterService
// fire after the removal but before the App is marked deleted, so a hook may
// still read the App's name and configuration. All teardowns are attempted
// regardless of individual failures, and Delete returns only after every one
// of them has completed. If one or more teardowns fail, the first observed
// error is returned; the App is still marked deleted. Every subsequent
// operation on a deleted App fails with an "app/app-deleted" error.
func (a *App) Delete(ctx context.Context) error {
	a.mutex.Lock()
	if err := a.checkNotDeleted(); err != nil {
		a.mutex.Unlock()
		return err
	}
	a.mutex.Unlock()

	// Hooks observe the removal while the App still answers accessors.
	if a.registry != nil {
		a.registry.remove(a)
	}

	a.mutex.Lock()
	services := a.services
	a.services = make(map[string]internal.AppService)
	a.mutex.Unlock()

	// Launch every teardown before waiting on any of them. The zero value of
	// errgroup.Group does not cancel siblings on failure, so a failing
	// teardown never prevents the others from running to completion.
	var group errgroup.Group
	for _, s := range services {
		s := s
		group.Go(func() error {
			return s.Delete(ctx)
		})
	}

	a.mutex.Lock()
	a.deleted = true
	a.mutex.Unlock()

	return group.Wait()
}
