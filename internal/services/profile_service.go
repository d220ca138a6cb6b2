package services

import (
	"context"
	"fmt"
	"strings"

	"github.com/sirupsen/logrus"

	"ai-estimate-backend/internal/models"
)

type ProfileService struct {
	profiles ProfileStore
	archive  Archive
	logger   *logrus.Logger
}

func NewProfileService(profiles ProfileStore, archive Archive, logger *logrus.Logger) *ProfileService {
	return &ProfileService{profiles: profiles, archive: archive, logger: logger}
}

func (s *ProfileService) Create(ctx context.Context, uid, name, role string) (*models.Profile, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, fmt.Errorf("%w: name is required", ErrInvalidProfile)
	}
	if !models.IsValidRole(role) {
		return nil, ErrInvalidRole
	}
	return s.profiles.CreateProfile(ctx, uid, name, role)
}

func (s *ProfileService) Get(ctx context.Context, uid string) (*models.Profile, error) {
	return s.profiles.GetProfile(ctx, uid)
}

func (s *ProfileService) Update(ctx context.Context, uid string, req models.UpdateProfileRequest) (*models.Profile, error) {
	if req.Name != nil {
		trimmed := strings.TrimSpace(*req.Name)
		if trimmed == "" {
			return nil, fmt.Errorf("%w: name must not be empty", ErrInvalidProfile)
		}
		req.Name = &trimmed
	}
	if req.Role != nil && !models.IsValidRole(*req.Role) {
		return nil, ErrInvalidRole
	}
	return s.profiles.UpdateProfile(ctx, uid, req.Name, req.Role)
}

// Delete removes the profile subtree and the user's archived files.
func (s *ProfileService) Delete(ctx context.Context, uid string) error {
	if err := s.profiles.DeleteProfile(ctx, uid); err != nil {
		return err
	}
	if s.archive != nil {
		if err := s.archive.DeleteUserFiles(uid); err != nil {
			s.logger.WithError(err).WithField("uid", uid).Warn("failed to delete archived files")
		}
	}
	return nil
}
