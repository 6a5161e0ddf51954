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

	"cloud.google.com/go/firestore"

	"github.com/firebase/firebase-admin-go/appcheck"
	"github.com/firebase/firebase-admin-go/auth"
	"github.com/firebase/firebase-admin-go/db"
	"github.com/firebase/firebase-admin-go/functions"
	"github.com/firebase/firebase-admin-go/internal"
	"github.com/firebase/firebase-admin-go/ml"
	"github.com/firebase/firebase-admin-go/securityrules"
	"github.com/firebase/firebase-admin-go/storage"
)

// Cache keys of the single-instance services. Multi-instance services
// (database, firestore) derive their keys from these plus a discriminator.
const (
	authServiceName      = "auth"
	appCheckServiceName  = "appCheck"
	databaseServiceName  = "database"
	firestoreServiceName = "firestore"
	mlServiceName        = "machine-learning"
	rulesServiceName     = "security-rules"
	functionsServiceName = "functions"
	storageServiceName   = "storage"
)

// defaultDatabaseID is the identifier Cloud Firestore assigns to a project's
// original database.
const defaultDatabaseID = "(default)"

// Auth returns an instance of auth.Client.
//
// Multiple calls to Auth return the same instance for the life of the App.
func (a *App) Auth(ctx context.Context) (*auth.Client, error) {
	s, err := a.getOrInitService(authServiceName, func() (internal.AppService, error) {
		return auth.NewClient(ctx, &internal.AuthConfig{
			Opts:             a.opts,
			ProjectID:        a.config.ProjectID,
			ServiceAccountID: a.config.ServiceAccountID,
			Version:          Version,
		})
	})
	if err != nil {
		return nil, err
	}
	return s.(*auth.Client), nil
}

// AppCheck returns an instance of appcheck.Client.
func (a *App) AppCheck(ctx context.Context) (*appcheck.Client, error) {
	s, err := a.getOrInitService(appCheckServiceName, func() (internal.AppService, error) {
		return appcheck.NewClient(ctx, &internal.AppCheckConfig{
			Opts:      a.opts,
			ProjectID: a.config.ProjectID,
			Version:   Version,
		})
	})
	if err != nil {
		return nil, err
	}
	return s.(*appcheck.Client), nil
}

// Database returns an instance of db.Client to interact with the Realtime
// Database instance identified by the DatabaseURL in the App's configuration.
func (a *App) Database(ctx context.Context) (*db.Client, error) {
	return a.DatabaseWithURL(ctx, a.config.DatabaseURL)
}

// DatabaseWithURL returns an instance of db.Client to interact with the
// Realtime Database instance identified by the given URL.
//
// Each distinct URL yields its own client instance; repeated calls with the
// same URL return the same instance.
func (a *App) DatabaseWithURL(ctx context.Context, url string) (*db.Client, error) {
	key := fmt.Sprintf("%s:%s", databaseServiceName, url)
	s, err := a.getOrInitService(key, func() (internal.AppService, error) {
		var ao map[string]interface{}
		if a.config.AuthOverride != nil {
			ao = *a.config.AuthOverride
		}
		return db.NewClient(ctx, &internal.DatabaseConfig{
			Opts:         a.opts,
			URL:          url,
			Version:      Version,
			AuthOverride: ao,
		})
	})
	if err != nil {
		return nil, err
	}
	return s.(*db.Client), nil
}

// firestoreClient adapts a firestore.Client to the service teardown contract.
type firestoreClient struct {
	client *firestore.Client
}

func (f *firestoreClient) Delete(ctx context.Context) error {
	return f.client.Close()
}

// Firestore returns a new firestore.Client instance from the
// https://godoc.org/cloud.google.com/go/firestore package, connected to the
// project's default database.
func (a *App) Firestore(ctx context.Context) (*firestore.Client, error) {
	return a.FirestoreWithDatabaseID(ctx, defaultDatabaseID)
}

// FirestoreWithDatabaseID returns a firestore.Client connected to the given
// named database.
//
// Each distinct database ID yields its own client instance; repeated calls
// with the same ID return the same instance.
func (a *App) FirestoreWithDatabaseID(ctx context.Context, databaseID string) (*firestore.Client, error) {
	key := fmt.Sprintf("%s:%s", firestoreServiceName, databaseID)
	s, err := a.getOrInitService(key, func() (internal.AppService, error) {
		if a.config.ProjectID == "" {
			return nil, appError(internalError, "project id is required to access Firestore")
		}
		client, err := firestore.NewClientWithDatabase(ctx, a.config.ProjectID, databaseID, a.opts...)
		if err != nil {
			return nil, err
		}
		return &firestoreClient{client: client}, nil
	})
	if err != nil {
		return nil, err
	}
	return s.(*firestoreClient).client, nil
}

// ML returns an instance of ml.Client for managing the machine learning
// models of the project.
func (a *App) ML(ctx context.Context) (*ml.Client, error) {
	s, err := a.getOrInitService(mlServiceName, func() (internal.AppService, error) {
		return ml.NewClient(ctx, &internal.MLConfig{
			Opts:      a.opts,
			ProjectID: a.config.ProjectID,
			Version:   Version,
		})
	})
	if err != nil {
		return nil, err
	}
	return s.(*ml.Client), nil
}

// SecurityRules returns an instance of securityrules.Client for managing the
// Firestore and Storage security rules of the project.
func (a *App) SecurityRules(ctx context.Context) (*securityrules.Client, error) {
	s, err := a.getOrInitService(rulesServiceName, func() (internal.AppService, error) {
		return securityrules.NewClient(ctx, &internal.RulesConfig{
			Opts:      a.opts,
			ProjectID: a.config.ProjectID,
			Version:   Version,
		})
	})
	if err != nil {
		return nil, err
	}
	return s.(*securityrules.Client), nil
}

// Functions returns an instance of functions.Client for enqueueing tasks on
// the project's Cloud Functions task queues.
func (a *App) Functions(ctx context.Context) (*functions.Client, error) {
	s, err := a.getOrInitService(functionsServiceName, func() (internal.AppService, error) {
		return functions.NewClient(ctx, &internal.FunctionsConfig{
			Opts:      a.opts,
			ProjectID: a.config.ProjectID,
			Version:   Version,
		})
	})
	if err != nil {
		return nil, err
	}
	return s.(*functions.Client), nil
}

// Storage returns an instance of storage.Client.
func (a *App) Storage(ctx context.Context) (*storage.Client, error) {
	s, err := a.getOrInitService(storageServiceName, func() (internal.AppService, error) {
		return storage.NewClient(ctx, &internal.StorageConfig{
			Opts:   a.opts,
			Bucket: a.config.StorageBucket,
		})
	})
	if err != nil {
		return nil, err
	}
	return s.(*storage.Client), nil
}
