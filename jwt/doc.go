// Package jwt reads session tokens minted by the Frontend API. It extracts the
// session id and expiry used for token caching and, when the instance public
// key is configured, verifies the RS256 signature.
package jwt
