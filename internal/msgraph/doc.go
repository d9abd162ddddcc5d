// Package msgraph reads directory user profiles and presence from Microsoft
// Graph using app-only client credentials.
package msgraph
