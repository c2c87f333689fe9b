// Package auth manages the operator account and API tokens for
// Sprinkler Core.
//
// The server runs with a single operator account, created once through
// the initialization endpoint and stored in the server_config table.
// Until that happens every broker connection and login attempt is
// rejected with ErrNotInitialized.
//
// Passwords are hashed with PBKDF2-SHA512 in a "hexhash:hexsalt"
// format shared with the device provisioning tooling. API access uses
// short-lived HS256 JWTs.
package auth
