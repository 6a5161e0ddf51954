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

package auth

import (
	"context"
	"crypto/rsa"
	"encoding/json"
	"os"
	"time"

	"github.com/golang-jwt/jwt/v4"
	"google.golang.org/api/transport"

	"github.com/firebase/firebase-admin-go/internal"
)

const firebaseAudience = "https://identitytoolkit.googleapis.com/google.identity.identitytoolkit.v1.IdentityToolkit"

const emulatorEmail = "firebase-auth-emulator@example.com"

// Claim names reserved by the ID token format. User-supplied developer claims
// must not collide with these.
var reservedClaims = []string{
	"acr", "amr", "at_hash", "aud", "auth_time", "azp", "cnf", "c_hash",
	"exp", "iat", "iss", "jti", "nbf", "nonce", "sub", "firebase",
}

type customTokenClaims struct {
	UID    string                 `json:"uid"`
	Claims map[string]interface{} `json:"claims,omitempty"`
	jwt.RegisteredClaims
}

// cryptoSigner mints signed JWTs on behalf of the service account the SDK is
// authorized as.
type cryptoSigner interface {
	Email(ctx context.Context) (string, error)
	Sign(claims jwt.Claims) (string, error)
}

type serviceAccountSigner struct {
	privateKey  *rsa.PrivateKey
	clientEmail string
}

func (s *serviceAccountSigner) Email(ctx context.Context) (string, error) {
	return s.clientEmail, nil
}

func (s *serviceAccountSigner) Sign(claims jwt.Claims) (string, error) {
	return jwt.NewWithClaims(jwt.SigningMethodRS256, claims).SignedString(s.privateKey)
}

// emulatedSigner produces the unsigned tokens accepted by the Auth emulator.
type emulatedSigner struct{}

func (s emulatedSigner) Email(ctx context.Context) (string, error) {
	return emulatorEmail, nil
}

func (s emulatedSigner) Sign(claims jwt.Claims) (string, error) {
	return jwt.NewWithClaims(jwt.SigningMethodNone, claims).SignedString(jwt.UnsafeAllowNoneSignatureType)
}

// unavailableSigner defers a signer resolution failure until the first signing
// attempt, so that apps initialized without a service account credential can
// still use the parts of the Auth service that do not mint tokens.
type unavailableSigner struct {
	err error
}

func (s *unavailableSigner) Email(ctx context.Context) (string, error) {
	return "", s.err
}

func (s *unavailableSigner) Sign(claims jwt.Claims) (string, error) {
	return "", s.err
}

func newSigner(ctx context.Context, c *internal.AuthConfig) (cryptoSigner, error) {
	if os.Getenv(emulatorHostEnv) != "" {
		return emulatedSigner{}, nil
	}

	creds, err := transport.Creds(ctx, c.Opts...)
	if err != nil {
		return &unavailableSigner{
			err: internal.PrefixedErrorf(errorPrefix, "invalid-credential",
				"failed to resolve a credential for signing tokens: %v", err),
		}, nil
	}

	var sa struct {
		ClientEmail string `json:"client_email"`
		PrivateKey  string `json:"private_key"`
	}
	if len(creds.JSON) > 0 {
		if err := json.Unmarshal(creds.JSON, &sa); err != nil {
			return nil, err
		}
	}
	if sa.ClientEmail != "" && sa.PrivateKey != "" {
		key, err := jwt.ParseRSAPrivateKeyFromPEM([]byte(sa.PrivateKey))
		if err != nil {
			return nil, internal.PrefixedErrorf(errorPrefix, "invalid-credential",
				"failed to parse service account private key: %v", err)
		}
		return &serviceAccountSigner{privateKey: key, clientEmail: sa.ClientEmail}, nil
	}

	return &unavailableSigner{
		err: internal.PrefixedError(errorPrefix, "invalid-credential",
			"the credential in use does not contain a service account private key; custom token "+
				"minting requires a service account credential"),
	}, nil
}

// CustomToken creates a signed custom authentication token with the given user ID.
//
// The resulting token can be exchanged for an ID token via the Firebase client
// SDK signInWithCustomToken() API.
func (c *Client) CustomToken(ctx context.Context, uid string) (string, error) {
	return c.CustomTokenWithClaims(ctx, uid, nil)
}

// CustomTokenWithClaims is similar to CustomToken, but in addition to the user
// ID it also embeds the given developer claims in the token.
func (c *Client) CustomTokenWithClaims(ctx context.Context, uid string, devClaims map[string]interface{}) (string, error) {
	if uid == "" {
		return "", internal.PrefixedError(errorPrefix, "invalid-argument", "uid must not be empty")
	}
	if len(uid) > 128 {
		return "", internal.PrefixedError(errorPrefix, "invalid-argument",
			"uid must not be longer than 128 characters")
	}
	for _, claim := range reservedClaims {
		if _, ok := devClaims[claim]; ok {
			return "", internal.PrefixedErrorf(errorPrefix, "invalid-argument",
				"developer claim %q is reserved and must not be set", claim)
		}
	}

	email, err := c.signer.Email(ctx)
	if err != nil {
		return "", err
	}

	now := time.Now()
	claims := &customTokenClaims{
		UID:    uid,
		Claims: devClaims,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    email,
			Subject:   email,
			Audience:  jwt.ClaimStrings{firebaseAudience},
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(time.Hour)),
		},
	}
	return c.signer.Sign(claims)
}
