package services

import (
	"context"

	"github.com/sirupsen/logrus"
)

type AccountService struct {
	admin  AccountAdmin
	logger *logrus.Logger
}

func NewAccountService(admin AccountAdmin, logger *logrus.Logger) *AccountService {
	return &AccountService{admin: admin, logger: logger}
}

// Disable bans the identity, then revokes its sessions with the caller's token.
func (s *AccountService) Disable(ctx context.Context, uid, accessToken string) error {
	if err := s.admin.DisableUser(uid); err != nil {
		return err
	}
	if err := s.admin.RevokeSessions(accessToken); err != nil {
		return err
	}
	s.logger.WithField("uid", uid).Info("account disabled")
	return nil
}
