package services

import (
	"context"
	"fmt"
	"strings"

	"github.com/magabrotheeeer/capitalized/internal/api"
	"github.com/magabrotheeeer/capitalized/internal/lib/sl"
)

// ProfileInput — данные формы заполнения профиля.
type ProfileInput struct {
	Address     string `json:"address" label:"Address" validate:"required"`
	City        string `json:"city" label:"City" validate:"required"`
	Country     string `json:"country" label:"Country" validate:"required"`
	DateOfBirth string `json:"date_of_birth" label:"Date of birth" validate:"required,isodate"`
}

// CompleteProfile отправляет адрес и дату рождения и применяет ответ
// сервера к кэшу профиля.
func (s *Service) CompleteProfile(ctx context.Context, in ProfileInput) error {
	const op = "services.CompleteProfile"
	ctx = s.profiles.Pin(ctx)
	in.Address = strings.TrimSpace(in.Address)
	in.City = strings.TrimSpace(in.City)
	in.Country = strings.TrimSpace(in.Country)
	in.DateOfBirth = strings.TrimSpace(in.DateOfBirth)
	if err := s.validate.Validate(in); err != nil {
		return s.fail(ActionProfile, "", err)
	}
	if err := s.requireSession(ctx, ActionProfile); err != nil {
		return err
	}

	resp, err := s.backend.UpdateProfile(ctx, api.UpdateProfileRequest{
		Address:     in.Address,
		City:        in.City,
		Country:     in.Country,
		DateOfBirth: in.DateOfBirth + "T00:00:00Z",
	})
	if err == nil {
		err = s.profiles.UpdateUser(ctx, resp.Patch())
	}
	if err != nil {
		return s.fail(ActionProfile, "Failed to update profile. Please try again.", fmt.Errorf("%s: %w", op, err))
	}
	s.log.Info("profile completed", sl.Op(op))
	return nil
}
