// Package identity resolves channel identities (Teams user ids, SMS phone
// numbers) to stored user profiles, creating them on first contact.
package identity
