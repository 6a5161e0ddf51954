// Copyright 2022 Google Inc. All Rights Reserved.
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

// Package appcheck provides functionality for verifying App Check tokens.
package appcheck

import (
	"context"
	"strings"
	"time"

	"github.com/MicahParks/keyfunc"
	"github.com/golang-jwt/jwt/v4"

	"github.com/firebase/firebase-admin-go/internal"
)

const appCheckIssuer = "https://firebaseappcheck.googleapis.com/"

// JWKSUrl is the endpoint the public verification keys are fetched from. It is
// a variable to enable testing against a fake key server.
var JWKSUrl = "https://firebaseappcheck.googleapis.com/v1/jwks"

const errorPrefix = "app-check"

// DecodedAppCheckToken represents the claims of a verified App Check token.
type DecodedAppCheckToken struct {
	Issuer    string
	Subject   string
	Audience  []string
	ExpiresAt time.Time
	IssuedAt  time.Time
	AppID     string
	Claims    map[string]interface{}
}

// Client is the interface for the App Check service.
type Client struct {
	projectID string
	jwks      *keyfunc.JWKS
}

// NewClient creates a new instance of the App Check Client.
//
// This function can only be invoked from within the SDK. Client applications should access the
// App Check service through admin.App.
func NewClient(ctx context.Context, conf *internal.AppCheckConfig) (*Client, error) {
	if conf.ProjectID == "" {
		return nil, internal.PrefixedError(errorPrefix, "invalid-argument",
			"project id is required to access the App Check service")
	}
	jwks, err := keyfunc.Get(JWKSUrl, keyfunc.Options{
		Ctx:             ctx,
		RefreshInterval: 6 * time.Hour,
	})
	if err != nil {
		return nil, err
	}

	return &Client{
		projectID: conf.ProjectID,
		jwks:      jwks,
	}, nil
}

// VerifyToken verifies the signature and claims of the given App Check token.
func (c *Client) VerifyToken(token string) (*DecodedAppCheckToken, error) {
	claims := jwt.MapClaims{}
	decoded, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (interface{}, error) {
		if t.Header["alg"] != "RS256" {
			return nil, internal.PrefixedError(errorPrefix, "invalid-argument",
				"app check token has incorrect algorithm")
		}
		return c.jwks.Keyfunc(t)
	})
	if err != nil {
		return nil, err
	}
	if !decoded.Valid {
		return nil, internal.PrefixedError(errorPrefix, "invalid-argument", "app check token is invalid")
	}

	rawAud, ok := claims["aud"].([]interface{})
	if !ok {
		return nil, internal.PrefixedError(errorPrefix, "invalid-argument",
			"app check token has incorrect audience format")
	}
	var aud []string
	for _, v := range rawAud {
		s, ok := v.(string)
		if !ok {
			return nil, internal.PrefixedError(errorPrefix, "invalid-argument",
				"app check token has incorrect audience format")
		}
		aud = append(aud, s)
	}
	if !contains(aud, "projects/"+c.projectID) {
		return nil, internal.PrefixedError(errorPrefix, "invalid-argument",
			"app check token has incorrect audience")
	}

	iss, ok := claims["iss"].(string)
	if !ok || !strings.HasPrefix(iss, appCheckIssuer) {
		return nil, internal.PrefixedError(errorPrefix, "invalid-argument",
			"app check token has incorrect issuer")
	}

	sub, ok := claims["sub"].(string)
	if !ok || sub == "" {
		return nil, internal.PrefixedError(errorPrefix, "invalid-argument",
			"app check token has empty or missing subject")
	}

	decodedToken := &DecodedAppCheckToken{
		Issuer:   iss,
		Subject:  sub,
		Audience: aud,
		AppID:    sub,
		Claims:   map[string]interface{}{},
	}
	if exp, ok := claims["exp"].(float64); ok {
		decodedToken.ExpiresAt = time.Unix(int64(exp), 0).UTC()
	}
	if iat, ok := claims["iat"].(float64); ok {
		decodedToken.IssuedAt = time.Unix(int64(iat), 0).UTC()
	}
	for k, v := range claims {
		switch k {
		case "aud", "iss", "sub", "exp", "iat", "nbf":
		default:
			decodedToken.Claims[k] = v
		}
	}
	return decodedToken, nil
}

// Delete stops the background key refresh and releases the resources held by
// the Client.
func (c *Client) Delete(ctx context.Context) error {
	c.jwks.EndBackground()
	return nil
}

func contains(s []string, str string) bool {
	for _, v := range s {
		if v == str {
			return true
		}
	}
	return false
}
