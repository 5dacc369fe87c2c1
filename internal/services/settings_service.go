package services

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/markdave123-py/chatspace/internal/apperrors"
	"github.com/markdave123-py/chatspace/internal/core"
	"github.com/markdave123-py/chatspace/internal/models"
)

// UpdateSettingsInput leaves nil fields unchanged.
type UpdateSettingsInput struct {
	ResponseTone      *string
	KBConnectorURL    *string
	KBConnectorAPIKey *string
	KBConnectorActive *bool
}

type SettingsService struct {
	db  core.DbClient
	now func() time.Time
}

func NewSettingsService(db core.DbClient) *SettingsService {
	return &SettingsService{db: db, now: time.Now}
}

// Get returns the user's settings, creating the defaults on first access.
func (s *SettingsService) Get(ctx context.Context, userID string) (*models.Settings, error) {
	st, err := s.db.GetSettings(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("load settings: %w", err)
	}
	if st != nil {
		return st, nil
	}

	st = &models.Settings{UserID: userID, UpdatedAt: s.now()}
	if err := s.db.UpsertSettings(ctx, st); err != nil {
		return nil, fmt.Errorf("create settings: %w", err)
	}
	return st, nil
}

func (s *SettingsService) Update(ctx context.Context, userID string, in UpdateSettingsInput) (*models.Settings, error) {
	st, err := s.Get(ctx, userID)
	if err != nil {
		return nil, err
	}

	if in.ResponseTone != nil {
		st.ResponseTone = strings.TrimSpace(*in.ResponseTone)
	}
	if in.KBConnectorURL != nil {
		raw := strings.TrimSpace(*in.KBConnectorURL)
		if raw != "" {
			if _, err := normalizeSourceURL(raw); err != nil {
				return nil, fmt.Errorf("%w: kbConnectorUrl must be an absolute http(s) URL", apperrors.ErrValidation)
			}
		}
		st.KBConnectorURL = raw
	}
	if in.KBConnectorAPIKey != nil {
		st.KBConnectorAPIKey = *in.KBConnectorAPIKey
	}
	if in.KBConnectorActive != nil {
		st.KBConnectorActive = *in.KBConnectorActive
	}
	if st.KBConnectorActive && st.KBConnectorURL == "" {
		return nil, fmt.Errorf("%w: kbConnectorUrl is required when the connector is active", apperrors.ErrValidation)
	}

	st.UpdatedAt = s.now()
	if err := s.db.UpsertSettings(ctx, st); err != nil {
		return nil, fmt.Errorf("save settings: %w", err)
	}
	return st, nil
}
