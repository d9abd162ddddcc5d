// Package oauth1 signs HTTP requests per OAuth 1.0a (HMAC-SHA1), shared by
// the marketplace adapters.
package oauth1
