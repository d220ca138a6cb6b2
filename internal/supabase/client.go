package supabase

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/supabase-community/gotrue-go/types"
	"github.com/supabase-community/supabase-go"

	"ai-estimate-backend/internal/config"
)

// disabledFor is effectively permanent; the auth API has no boolean disable flag.
const disabledFor = 100 * 365 * 24 * time.Hour

type Client struct {
	Supabase *supabase.Client
	Config   *config.Config
}

func NewClient(cfg *config.Config) (*Client, error) {
	client, err := supabase.NewClient(cfg.SupabaseURL, cfg.SupabaseServiceRoleKey, nil)
	if err != nil {
		return nil, err
	}

	return &Client{
		Supabase: client,
		Config:   cfg,
	}, nil
}

// DisableUser bans the identity so no new sessions can be issued.
func (c *Client) DisableUser(uid string) error {
	userID, err := uuid.Parse(uid)
	if err != nil {
		return fmt.Errorf("invalid user id: %w", err)
	}

	ban := types.BanDurationTime(disabledFor)
	_, err = c.Supabase.Auth.WithToken(c.Config.SupabaseServiceRoleKey).AdminUpdateUser(types.AdminUpdateUserRequest{
		UserID:      userID,
		BanDuration: &ban,
	})
	if err != nil {
		return fmt.Errorf("failed to disable user: %w", err)
	}
	return nil
}

// RevokeSessions revokes every refresh token of the token's owner.
func (c *Client) RevokeSessions(accessToken string) error {
	if err := c.Supabase.Auth.WithToken(accessToken).Logout(); err != nil {
		return fmt.Errorf("failed to revoke sessions: %w", err)
	}
	return nil
}
