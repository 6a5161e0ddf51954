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

package appcheck

import (
	"context"
	"crypto/rand"
	"crypto/rsa"
	"encoding/base64"
	"encoding/json"
	"math/big"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v4"
	"github.com/google/go-cmp/cmp"

	"github.com/firebase/firebase-admin-go/internal"
)

const testKeyID = "test-key-id"

// setupFakeJWKS serves the public half of a freshly generated RSA key in the
// JWKS format, and points JWKSUrl at the fake server.
func setupFakeJWKS(t *testing.T) *rsa.PrivateKey {
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		t.Fatal(err)
	}

	jwks := map[string]interface{}{
		"keys": []map[string]string{
			{
				"kty": "RSA",
				"use": "sig",
				"alg": "RS256",
				"kid": testKeyID,
				"n":   base64.RawURLEncoding.EncodeToString(key.PublicKey.N.Bytes()),
				"e":   base64.RawURLEncoding.EncodeToString(big.NewInt(int64(key.PublicKey.E)).Bytes()),
			},
		},
	}
	b, err := json.Marshal(jwks)
	if err != nil {
		t.Fatal(err)
	}

	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write(b)
	}))
	t.Cleanup(ts.Close)

	origURL := JWKSUrl
	JWKSUrl = ts.URL
	t.Cleanup(func() { JWKSUrl = origURL })
	return key
}

func newTestClient(t *testing.T) (*Client, *rsa.PrivateKey) {
	key := setupFakeJWKS(t)
	client, err := NewClient(context.Background(), &internal.AppCheckConfig{ProjectID: "project_id"})
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { client.Delete(context.Background()) })
	return client, key
}

type appCheckClaims struct {
	Aud []string `json:"aud"`
	jwt.RegisteredClaims
}

func signToken(t *testing.T, key *rsa.PrivateKey, claims jwt.Claims) string {
	jwtToken := jwt.NewWithClaims(jwt.SigningMethodRS256, claims)
	jwtToken.Header["kid"] = testKeyID
	token, err := jwtToken.SignedString(key)
	if err != nil {
		t.Fatal(err)
	}
	return token
}

func validClaims() *appCheckClaims {
	now := time.Now()
	return &appCheckClaims{
		Aud: []string{"projects/12345678", "projects/project_id"},
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    "https://firebaseappcheck.googleapis.com/12345678",
			Subject:   "12345678:app:ID",
			ExpiresAt: jwt.NewNumericDate(now.Add(time.Hour)),
			IssuedAt:  jwt.NewNumericDate(now),
		},
	}
}

func TestNewClientRequiresProjectID(t *testing.T) {
	client, err := NewClient(context.Background(), &internal.AppCheckConfig{})
	if client != nil || !internal.HasErrorCode(err, "app-check/invalid-argument") {
		t.Fatalf("NewClient() = (%v, %v); want invalid-argument error", client, err)
	}
}

func TestVerifyToken(t *testing.T) {
	client, key := newTestClient(t)
	claims := validClaims()
	token := signToken(t, key, claims)

	got, err := client.VerifyToken(token)
	if err != nil {
		t.Fatal(err)
	}
	want := &DecodedAppCheckToken{
		Issuer:    claims.Issuer,
		Subject:   claims.Subject,
		Audience:  claims.Aud,
		ExpiresAt: claims.ExpiresAt.UTC().Truncate(time.Second),
		IssuedAt:  claims.IssuedAt.UTC().Truncate(time.Second),
		AppID:     claims.Subject,
		Claims:    map[string]interface{}{},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("VerifyToken() mismatch (-want +got):\n%s", diff)
	}
}

func TestVerifyTokenCustomClaims(t *testing.T) {
	client, key := newTestClient(t)
	now := time.Now()
	claims := jwt.MapClaims{
		"aud":    []string{"projects/project_id"},
		"iss":    "https://firebaseappcheck.googleapis.com/12345678",
		"sub":    "12345678:app:ID",
		"exp":    now.Add(time.Hour).Unix(),
		"iat":    now.Unix(),
		"custom": "value",
	}
	token := signToken(t, key, claims)

	got, err := client.VerifyToken(token)
	if err != nil {
		t.Fatal(err)
	}
	if got.Claims["custom"] != "value" {
		t.Errorf("Claims = %v; want custom claim preserved", got.Claims)
	}
}

func TestVerifyTokenInvalidClaims(t *testing.T) {
	client, key := newTestClient(t)

	wrongAud := validClaims()
	wrongAud.Aud = []string{"projects/another_project"}

	wrongIss := validClaims()
	wrongIss.Issuer = "https://not-firebaseappcheck.googleapis.com/12345678"

	noSub := validClaims()
	noSub.Subject = ""

	for name, claims := range map[string]*appCheckClaims{
		"WrongAudience": wrongAud,
		"WrongIssuer":   wrongIss,
		"EmptySubject":  noSub,
	} {
		token := signToken(t, key, claims)
		got, err := client.VerifyToken(token)
		if got != nil || !internal.HasErrorCode(err, "app-check/invalid-argument") {
			t.Errorf("[%s] VerifyToken() = (%v, %v); want invalid-argument error", name, got, err)
		}
	}
}

func TestVerifyTokenExpired(t *testing.T) {
	client, key := newTestClient(t)
	claims := validClaims()
	claims.ExpiresAt = jwt.NewNumericDate(time.Now().Add(-time.Hour))
	token := signToken(t, key, claims)

	got, err := client.VerifyToken(token)
	if got != nil || err == nil {
		t.Errorf("VerifyToken(expired) = (%v, %v); want: (nil, error)", got, err)
	}
}

func TestVerifyTokenMalformed(t *testing.T) {
	client, _ := newTestClient(t)
	for _, token := range []string{"", "-", "."} {
		got, err := client.VerifyToken(token)
		if got != nil || err == nil {
			t.Errorf("VerifyToken(%q) = (%v, %v); want: (nil, error)", token, got, err)
		}
	}
}
