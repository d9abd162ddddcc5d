// ABOUTME: Identity service mapping channel identities to user profiles
// ABOUTME: AddOrGetUser is idempotent per (channel, channelUserID) pair

package identity

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"

	"github.com/hiredesk/gateway/internal/activity"
	"github.com/hiredesk/gateway/internal/store"
)

// userCounter is the id_counters row backing user id allocation.
const userCounter = "user"

// Service resolves channel identities to user profiles
type Service struct {
	store  store.Store
	logger *slog.Logger
}

// New creates an identity service backed by the given store
func New(st store.Store, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		store:  st,
		logger: logger.With("component", "identity"),
	}
}

// AddOrGetUser returns the user registered for (channel, channelUserID),
// creating one if none exists. Calling it twice with the same pair returns
// the same user id both times.
func (s *Service) AddOrGetUser(ctx context.Context, channel, channelUserID, name, phone, alias string) (*store.User, error) {
	column, err := channelColumn(channel)
	if err != nil {
		return nil, err
	}

	existing, err := s.store.GetUsersByColumn(ctx, column, channelUserID)
	if err != nil {
		return nil, fmt.Errorf("looking up user by %s: %w", column, err)
	}
	if len(existing) > 0 {
		return existing[0], nil
	}

	id, err := s.store.NextID(ctx, userCounter)
	if err != nil {
		return nil, fmt.Errorf("allocating user id: %w", err)
	}

	user := &store.User{
		ID:          strconv.FormatInt(id, 10),
		Alias:       alias,
		Name:        name,
		MobilePhone: phone,
	}
	switch channel {
	case activity.ChannelTeams:
		user.TeamsUserID = channelUserID
	case activity.ChannelSMS:
		user.SmsUserID = channelUserID
	}

	if err := s.store.CreateUser(ctx, user); err != nil {
		// Lost a race with a concurrent turn for the same identity; the
		// winner's row is the user.
		if errors.Is(err, store.ErrDuplicateUser) {
			winners, lookupErr := s.store.GetUsersByColumn(ctx, column, channelUserID)
			if lookupErr == nil && len(winners) > 0 {
				s.logger.Debug("found existing user after race", "user_id", winners[0].ID)
				return winners[0], nil
			}
		}
		return nil, fmt.Errorf("creating user: %w", err)
	}

	s.logger.Info("user registered", "user_id", user.ID, "channel", channel)
	return user, nil
}

// GetUserByColumn returns users matching a store column value.
func (s *Service) GetUserByColumn(ctx context.Context, column, value string) ([]*store.User, error) {
	return s.store.GetUsersByColumn(ctx, column, value)
}

// channelColumn maps a channel id to the user table column indexing it
func channelColumn(channel string) (string, error) {
	switch channel {
	case activity.ChannelTeams:
		return store.UserColumnTeamsUserID, nil
	case activity.ChannelSMS:
		return store.UserColumnSmsUserID, nil
	default:
		return "", fmt.Errorf("unsupported channel %q", channel)
	}
}
