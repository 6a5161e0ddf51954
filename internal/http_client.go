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

package internal

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"net/http"
	"strconv"
	"time"

	"google.golang.org/api/option"
	"google.golang.org/api/transport"
)

// Clock reports the current time. It exists so that retry delay computations
// can be tested against a fixed time.
type Clock interface {
	Now() time.Time
}

// SystemClock reads the system time.
type SystemClock struct{}

// Now returns the current system time.
func (s *SystemClock) Now() time.Time {
	return time.Now()
}

var clock Clock = &SystemClock{}

// RetryConfig specifies how the HTTPClient should retry failing HTTP requests.
//
// A request is never retried more than MaxRetries times. If CheckForRetry is nil, all network
// errors, and all 400+ HTTP status codes are retried. If an HTTP error response contains the
// Retry-After header, it is always respected. Otherwise retries are delayed with exponential
// backoff. Set ExpBackoffFactor to 0 to disable exponential backoff, and retry immediately
// after each error.
type RetryConfig struct {
	MaxRetries       int
	CheckForRetry    func(*http.Response, error) bool
	ExpBackoffFactor float64
}

func (rc *RetryConfig) retryEligible(retryAttempts int, resp *http.Response, err error) bool {
	if retryAttempts >= rc.MaxRetries {
		return false
	}
	if rc.CheckForRetry == nil {
		return err != nil || resp.StatusCode >= 400
	}
	return rc.CheckForRetry(resp, err)
}

func (rc *RetryConfig) retryDelay(retryAttempts int, resp *http.Response) time.Duration {
	serverRecommendedDelay := parseRetryAfterHeader(resp)
	clientEstimatedDelay := estimateDelayForAttempt(retryAttempts, rc.ExpBackoffFactor)
	if serverRecommendedDelay > clientEstimatedDelay {
		return serverRecommendedDelay
	}
	return clientEstimatedDelay
}

func parseRetryAfterHeader(resp *http.Response) time.Duration {
	if resp == nil {
		return 0
	}
	retryAfterHeader := resp.Header.Get("retry-after")
	if retryAfterHeader == "" {
		return 0
	}
	delayInSeconds, err := strconv.ParseInt(retryAfterHeader, 10, 64)
	if err != nil {
		timestamp, err := http.ParseTime(retryAfterHeader)
		if err == nil {
			return timestamp.Sub(clock.Now())
		}
	}
	return time.Duration(delayInSeconds) * time.Second
}

func estimateDelayForAttempt(retryAttempts int, factor float64) time.Duration {
	if retryAttempts == 0 {
		return 0
	}
	delayInSeconds := int64(math.Pow(2, float64(retryAttempts)) * factor)
	return time.Duration(delayInSeconds) * time.Second
}

// defaultRetryConfig retries HTTP requests on all low-level network errors, as well as HTTP 500
// and 503 responses. It retries up to 4 times with exponential backoff.
var defaultRetryConfig = RetryConfig{
	MaxRetries: 4,
	CheckForRetry: func(resp *http.Response, err error) bool {
		return err != nil || resp.StatusCode == http.StatusInternalServerError ||
			resp.StatusCode == http.StatusServiceUnavailable
	},
	ExpBackoffFactor: 0.5,
}

// ErrorHandler converts an unsuccessful Response into an error. Services
// install a handler that maps their endpoint's error payloads onto
// FirebaseError values.
type ErrorHandler func(*Response) error

// HTTPClient is a convenient API to make HTTP calls.
//
// This API handles some of the repetitive tasks such as entity serialization and deserialization
// involved in making HTTP calls. It provides a convenient mechanism to set headers and query
// parameters on outgoing requests, while enforcing that an explicit context is used per request.
// Responses returned by HTTPClient can be easily parsed as JSON, and provide a simple mechanism to
// configure retries.
type HTTPClient struct {
	Client      *http.Client
	RetryConfig *RetryConfig
	CreateErr   ErrorHandler
	Opts        []HTTPOption
}

// NewHTTPClient creates a new HTTPClient using the provided client options and the default
// RetryConfig.
//
// NewHTTPClient returns the endpoint URL resolved from the options, if any. By
// default the returned client handles errors in the OnePlatform format.
func NewHTTPClient(ctx context.Context, opts ...option.ClientOption) (*HTTPClient, string, error) {
	hc, endpoint, err := transport.NewHTTPClient(ctx, opts...)
	if err != nil {
		return nil, "", err
	}
	client := &HTTPClient{
		Client:      hc,
		RetryConfig: &defaultRetryConfig,
		CreateErr: func(resp *Response) error {
			return NewFirebaseErrorOnePlatform(resp)
		},
	}
	return client, endpoint, nil
}

// Do executes the given Request, and returns a Response.
//
// If a RetryConfig is specified on the client, Do attempts to retry failing requests.
func (c *HTTPClient) Do(ctx context.Context, r *Request) (*Response, error) {
	retryAttempt := 0
	for {
		req, err := r.buildHTTPRequest(c.Opts)
		if err != nil {
			return nil, err
		}
		resp, err := c.Client.Do(req.WithContext(ctx))
		if c.RetryConfig != nil && c.RetryConfig.retryEligible(retryAttempt, resp, err) {
			if resp != nil {
				resp.Body.Close()
			}
			c.delayNextAttempt(resp, retryAttempt)
			retryAttempt++
			continue
		}
		if err != nil {
			return nil, err
		}
		defer resp.Body.Close()
		return newResponse(resp)
	}
}

// DoAndUnmarshal invokes the remote API, handles any error responses and unmarshals the
// response payload into the given variable.
func (c *HTTPClient) DoAndUnmarshal(ctx context.Context, r *Request, v interface{}) (*Response, error) {
	resp, err := c.Do(ctx, r)
	if err != nil {
		return nil, err
	}

	if !resp.successful() {
		return nil, c.handleError(resp)
	}

	if v != nil {
		if err := json.Unmarshal(resp.Body, v); err != nil {
			return nil, fmt.Errorf("error while parsing response: %v", err)
		}
	}
	return resp, nil
}

func (c *HTTPClient) handleError(resp *Response) error {
	if c.CreateErr != nil {
		if err := c.CreateErr(resp); err != nil {
			return err
		}
	}
	return NewFirebaseError(resp)
}

func (c *HTTPClient) delayNextAttempt(resp *http.Response, retryAttempt int) {
	retryDelay := c.RetryConfig.retryDelay(retryAttempt, resp)
	time.Sleep(retryDelay)
}

// Request contains all the parameters required to construct an outgoing HTTP request.
type Request struct {
	Method string
	URL    string
	Body   HTTPEntity
	Opts   []HTTPOption
}

func (r *Request) buildHTTPRequest(opts []HTTPOption) (*http.Request, error) {
	var data io.Reader
	if r.Body != nil {
		b, err := r.Body.Bytes()
		if err != nil {
			return nil, err
		}
		data = bytes.NewBuffer(b)
		opts = append(opts, WithHeader("Content-Type", r.Body.Mime()))
	}

	req, err := http.NewRequest(r.Method, r.URL, data)
	if err != nil {
		return nil, err
	}

	opts = append(opts, r.Opts...)
	for _, o := range opts {
		o(req)
	}
	return req, nil
}

// HTTPEntity represents a payload that can be included in an outgoing HTTP request.
type HTTPEntity interface {
	Bytes() ([]byte, error)
	Mime() string
}

type jsonEntity struct {
	Val interface{}
}

// NewJSONEntity creates a new HTTPEntity that will be serialized into JSON.
func NewJSONEntity(v interface{}) HTTPEntity {
	return &jsonEntity{Val: v}
}

func (e *jsonEntity) Bytes() ([]byte, error) {
	return json.Marshal(e.Val)
}

func (e *jsonEntity) Mime() string {
	return "application/json"
}

// Response contains information extracted from an HTTP response.
type Response struct {
	Status int
	Header http.Header
	Body   []byte
	resp   *http.Response
}

func newResponse(resp *http.Response) (*Response, error) {
	b, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	return &Response{
		Status: resp.StatusCode,
		Body:   b,
		Header: resp.Header,
		resp:   resp,
	}, nil
}

func (r *Response) successful() bool {
	return r.Status >= http.StatusOK && r.Status < http.StatusMultipleChoices
}

// LowLevelResponse returns the underlying http.Response the Response was read
// from. The body of the returned response has already been consumed.
func (r *Response) LowLevelResponse() *http.Response {
	return r.resp
}

// HTTPOption is an additional parameter that can be specified to customize an outgoing request.
type HTTPOption func(*http.Request)

// WithHeader creates an HTTPOption that will set an HTTP header on the request.
func WithHeader(key, value string) HTTPOption {
	return func(r *http.Request) {
		r.Header.Set(key, value)
	}
}

// WithQueryParam creates an HTTPOption that will set a query parameter on the request.
func WithQueryParam(key, value string) HTTPOption {
	return func(r *http.Request) {
		q := r.URL.Query()
		q.Add(key, value)
		r.URL.RawQuery = q.Encode()
	}
}

// WithQueryParams creates an HTTPOption that will set all the entries of qp as query parameters
// on the request.
func WithQueryParams(qp map[string]string) HTTPOption {
	return func(r *http.Request) {
		q := r.URL.Query()
		for k, v := range qp {
			q.Add(k, v)
		}
		r.URL.RawQuery = q.Encode()
	}
}
