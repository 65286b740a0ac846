// Package jwt issues and verifies the access tokens handed out after a
// login token exchange.
//
// Tokens are HS512-signed and carry the identity's login alias, phone key and
// role next to the registered claims. Context helpers carry verified claims
// from the authentication middleware to handlers.
package jwt
