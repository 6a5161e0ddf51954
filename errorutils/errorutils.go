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

// Package errorutils provides functions for checking the platform-level error
// conditions reported by the Admin SDK.
package errorutils

import (
	"net/http"

	"github.com/firebase/firebase-admin-go/internal"
)

// IsInvalidArgument checks if the given error was due to an invalid client argument.
func IsInvalidArgument(err error) bool {
	return hasPlatformErrorCode(err, internal.InvalidArgument)
}

// IsFailedPrecondition checks if the given error was because a request could not be executed
// in the current system state, such as deleting a non-empty directory.
func IsFailedPrecondition(err error) bool {
	return hasPlatformErrorCode(err, internal.FailedPrecondition)
}

// IsOutOfRange checks if the given error due to an invalid range specified by the client.
func IsOutOfRange(err error) bool {
	return hasPlatformErrorCode(err, internal.OutOfRange)
}

// IsUnauthenticated checks if the given error was caused by an unauthenticated request.
func IsUnauthenticated(err error) bool {
	return hasPlatformErrorCode(err, internal.Unauthenticated)
}

// IsPermissionDenied checks if the given error was due to a client not having
// sufficient permissions.
func IsPermissionDenied(err error) bool {
	return hasPlatformErrorCode(err, internal.PermissionDenied)
}

// IsNotFound checks if the given error was due to a specified resource being not found.
func IsNotFound(err error) bool {
	return hasPlatformErrorCode(err, internal.NotFound)
}

// IsConflict checks if the given error was due to a concurrency conflict, such as a
// read-modify-write conflict.
func IsConflict(err error) bool {
	return hasPlatformErrorCode(err, internal.Conflict)
}

// IsAborted checks if the given error was due to an operation being aborted.
func IsAborted(err error) bool {
	return hasPlatformErrorCode(err, internal.Aborted)
}

// IsAlreadyExists checks if the given error was because a resource the client tried to
// create already exists.
func IsAlreadyExists(err error) bool {
	return hasPlatformErrorCode(err, internal.AlreadyExists)
}

// IsResourceExhausted checks if the given error was caused by either running out of a quota or
// reaching a rate limit.
func IsResourceExhausted(err error) bool {
	return hasPlatformErrorCode(err, internal.ResourceExhausted)
}

// IsCancelled checks if the given error was due to an operation being cancelled, typically by
// the caller.
func IsCancelled(err error) bool {
	return hasPlatformErrorCode(err, internal.Cancelled)
}

// IsDataLoss checks if the given error was due to an unrecoverable data loss or corruption.
func IsDataLoss(err error) bool {
	return hasPlatformErrorCode(err, internal.DataLoss)
}

// IsUnknown checks if the given error was cuased by an unknown server error.
func IsUnknown(err error) bool {
	return hasPlatformErrorCode(err, internal.Unknown)
}

// IsInternal checks if the given error was due to an internal server error.
func IsInternal(err error) bool {
	return hasPlatformErrorCode(err, internal.Internal)
}

// IsUnavailable checks if the given error was caused by an unavailable service.
func IsUnavailable(err error) bool {
	return hasPlatformErrorCode(err, internal.Unavailable)
}

// IsDeadlineExceeded checks if the given error was due to a request exceeding a deadline.
func IsDeadlineExceeded(err error) bool {
	return hasPlatformErrorCode(err, internal.DeadlineExceeded)
}

// HasCode checks if the given error carries the given namespaced
// "<service>/<reason>" code.
func HasCode(err error, code string) bool {
	return internal.HasErrorCode(err, code)
}

// HTTPResponse returns the http.Response instance that caused the given error.
//
// If the error was not caused by an HTTP error response, returns nil. The body
// of the returned response has already been read, and the Body stream is
// closed.
func HTTPResponse(err error) *http.Response {
	fe, ok := err.(*internal.FirebaseError)
	if ok {
		return fe.Response
	}
	return nil
}

func hasPlatformErrorCode(err error, code internal.ErrorCode) bool {
	return internal.HasPlatformErrorCode(err, code)
}
