package service

import (
	"context"
	"log/slog"

	"github.com/sakif/broken-weave/internal/apperror"
	"github.com/sakif/broken-weave/internal/model"
	"github.com/sakif/broken-weave/internal/repository"
)

// VolunteerService handles volunteer sign-ups.
type VolunteerService struct {
	volunteers repository.VolunteerRepository
	logger     *slog.Logger
}

func NewVolunteerService(volunteers repository.VolunteerRepository, logger *slog.Logger) *VolunteerService {
	return &VolunteerService{volunteers: volunteers, logger: logger}
}

// Register validates and persists a new volunteer.
func (s *VolunteerService) Register(ctx context.Context, v *model.Volunteer) error {
	switch {
	case v.Name == "":
		return apperror.ValidationFailed("name", "name is required")
	case v.Email == "":
		return apperror.ValidationFailed("email", "email is required")
	case v.Skills == "":
		return apperror.ValidationFailed("skills", "skills is required")
	case v.Availability == "":
		return apperror.ValidationFailed("availability", "availability is required")
	}

	if err := s.volunteers.CreateVolunteer(ctx, v); err != nil {
		return err
	}

	s.logger.Info("volunteer registered",
		slog.Int64("volunteerID", v.ID),
		slog.String("name", v.Name),
	)

	return nil
}

// List returns every registered volunteer, newest first.
func (s *VolunteerService) List(ctx context.Context) ([]model.Volunteer, error) {
	return s.volunteers.ListVolunteers(ctx)
}
