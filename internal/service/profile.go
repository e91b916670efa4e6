package service

import (
	"context"
	"errors"
	"strings"
	"sync"

	"github.com/goalnest/goalnest/internal/model"
	"github.com/goalnest/goalnest/internal/repository"
	"github.com/goalnest/goalnest/internal/validation"
	"github.com/google/uuid"
)

// ProfileService holds the identity this installation uses towards the
// relay. The install id is generated once and kept in settings.
type ProfileService struct {
	settingsRepo repository.SettingsRepository
	defaultName  string

	mu      sync.Mutex
	profile *model.Profile
}

func NewProfileService(settingsRepo repository.SettingsRepository, defaultName string) *ProfileService {
	return &ProfileService{
		settingsRepo: settingsRepo,
		defaultName:  defaultName,
	}
}

func (s *ProfileService) Profile(ctx context.Context) (*model.Profile, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.profile != nil {
		p := *s.profile
		return &p, nil
	}

	installID, err := s.settingsRepo.Get(ctx, repository.SettingInstallID)
	if errors.Is(err, repository.ErrSettingNotFound) {
		installID = uuid.New().String()
		err = s.settingsRepo.Set(ctx, repository.SettingInstallID, installID)
	}
	if err != nil {
		return nil, err
	}

	name, err := s.settingsRepo.Get(ctx, repository.SettingDisplayName)
	if errors.Is(err, repository.ErrSettingNotFound) {
		name, err = s.defaultName, nil
	}
	if err != nil {
		return nil, err
	}

	s.profile = &model.Profile{InstallID: installID, Name: name}
	p := *s.profile
	return &p, nil
}

func (s *ProfileService) UpdateName(ctx context.Context, name string) error {
	name = strings.TrimSpace(name)

	err := validation.ValidateName(name)
	if err != nil {
		return err
	}

	err = s.settingsRepo.Set(ctx, repository.SettingDisplayName, name)
	if err != nil {
		return err
	}

	s.mu.Lock()
	if s.profile != nil {
		s.profile.Name = name
	}
	s.mu.Unlock()
	return nil
}
