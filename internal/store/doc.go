// Package store provides persistent storage for the gateway using SQLite.
//
// # Data Models
//
//   - User: registered end user, one row per person, looked up by the
//     channel-specific id column (teams_user_id or sms_user_id)
//   - TicketMapping: the cross-channel join record for a ticket, holding the
//     end user's conversation reference and the agent conversation id
//   - OnlineStatus: last-seen timestamps per member type, feeding the
//     "may be slow to respond" notice
//   - Dialog state: serialized dialog engine state per conversation
//   - Conversation data: small per-conversation key/value records
//
// # Concurrency
//
// Ticket mappings are written with INSERT OR REPLACE and carry no concurrency
// token: concurrent writers to the same ticket last-writer-win. The gateway
// assumes a single writer per ticket in practice (one end user, one agent
// conversation); the assumption is documented rather than enforced.
//
// # SQLite Configuration
//
// The store uses SQLite with WAL mode for concurrent reads:
//
//	PRAGMA journal_mode=WAL;
//	PRAGMA foreign_keys=ON;
//
// # Error Handling
//
//   - ErrNotFound: requested entity does not exist
//   - ErrDuplicateUser: a user already exists for the channel identity
//
// All methods accept context.Context for cancellation support.
//
// # Testing
//
// Use NewMockStore() for unit tests of higher layers, or NewSQLiteStore with
// a t.TempDir() path for integration tests with real SQLite.
package store
