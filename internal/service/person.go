package service

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"github.com/sakif/broken-weave/internal/apperror"
	"github.com/sakif/broken-weave/internal/model"
	"github.com/sakif/broken-weave/internal/repository"
	"github.com/sakif/broken-weave/internal/storage"
)

// successStoryLimit caps the public success-stories feed.
const successStoryLimit = 5

// Upload carries one uploaded image from the handler into the service.
type Upload struct {
	Name        string
	ContentType string
	Size        int64
	Content     io.Reader
}

// PersonService handles missing-person case workflows, including the
// coupling between a case record and its image file: the file must never
// outlive the record, and a failed write must not leave an orphan.
type PersonService struct {
	persons repository.PersonRepository
	files   storage.Store // nil when the deployment runs without file storage
	logger  *slog.Logger
}

// NewPersonService creates a PersonService. files may be nil; image
// uploads are then skipped on report and rejected on replace.
func NewPersonService(persons repository.PersonRepository, files storage.Store, logger *slog.Logger) *PersonService {
	return &PersonService{
		persons: persons,
		files:   files,
		logger:  logger,
	}
}

func validatePerson(p *model.Person) error {
	switch {
	case p.Name == "":
		return apperror.ValidationFailed("name", "name is required")
	case p.Category == "":
		return apperror.ValidationFailed("category", "category is required")
	case p.LastKnownLocation == "":
		return apperror.ValidationFailed("last_known_location", "last known location is required")
	case p.ContactInfo == "":
		return apperror.ValidationFailed("contact_info", "contact info is required")
	}
	return nil
}

// Report validates and persists a new case. When an image accompanies the
// report it is stored first and the reference saved with the record; if the
// insert then fails, the freshly stored file is removed again so no orphan
// survives the failed report.
func (s *PersonService) Report(ctx context.Context, p *model.Person, upload *Upload) error {
	if err := validatePerson(p); err != nil {
		return err
	}

	p.ImageURL = nil
	if upload != nil {
		if s.files == nil {
			s.logger.Warn("image upload ignored, no file storage configured",
				slog.String("filename", upload.Name),
			)
		} else {
			ref, err := s.files.Save(ctx, upload.Name, upload.ContentType, upload.Size, upload.Content)
			if err != nil {
				return fmt.Errorf("service/person: storing report image: %w", err)
			}
			p.ImageURL = &ref
		}
	}

	if err := s.persons.CreatePerson(ctx, p); err != nil {
		s.removeFile(ctx, p.ImageURL, "orphaned report image")
		return err
	}

	s.logger.Info("missing person reported",
		slog.Int64("personID", p.ID),
		slog.String("name", p.Name),
		slog.String("category", p.Category),
	)

	return nil
}

// List returns every case, newest first.
func (s *PersonService) List(ctx context.Context) ([]model.Person, error) {
	return s.persons.ListPersons(ctx)
}

// Search filters cases by substring query and category. The frontend sends
// category "all" to mean no category filter.
func (s *PersonService) Search(ctx context.Context, query, category string) ([]model.Person, error) {
	if category == "all" {
		category = ""
	}
	return s.persons.SearchPersons(ctx, query, category)
}

// SuccessStories returns the most recent found cases for the public feed.
func (s *PersonService) SuccessStories(ctx context.Context) ([]model.Person, error) {
	return s.persons.ListFoundPersons(ctx, successStoryLimit)
}

// MarkFound flips a case's status to found.
func (s *PersonService) MarkFound(ctx context.Context, id int64) error {
	if err := s.persons.MarkPersonFound(ctx, id); err != nil {
		return err
	}
	s.logger.Info("missing person marked found", slog.Int64("personID", id))
	return nil
}

// Update validates and overwrites the editable fields of a case. Status and
// image reference keep their dedicated operations.
func (s *PersonService) Update(ctx context.Context, p *model.Person) error {
	if err := validatePerson(p); err != nil {
		return err
	}
	return s.persons.UpdatePerson(ctx, p)
}

// ReplaceImage stores the new image, swaps the reference inside a database
// transaction, and deletes the previous file after commit. A repo failure
// removes the new file again; a failure deleting the old file after commit
// is logged but not surfaced, since the record already points at the new
// image.
func (s *PersonService) ReplaceImage(ctx context.Context, id int64, upload *Upload) (string, error) {
	if s.files == nil {
		return "", apperror.NotImplemented("image uploads are not enabled on this server")
	}
	if upload == nil {
		return "", apperror.ValidationFailed("image", "image file is required")
	}

	ref, err := s.files.Save(ctx, upload.Name, upload.ContentType, upload.Size, upload.Content)
	if err != nil {
		return "", fmt.Errorf("service/person: storing replacement image: %w", err)
	}

	oldRef, err := s.persons.ReplacePersonImage(ctx, id, ref)
	if err != nil {
		s.removeFile(ctx, &ref, "orphaned replacement image")
		return "", err
	}

	s.removeFile(ctx, oldRef, "replaced image")

	s.logger.Info("missing person image replaced",
		slog.Int64("personID", id),
		slog.String("imageURL", ref),
	)

	return ref, nil
}

// Delete removes the case and then its image file, if any. The file delete
// runs after the database commit and is best-effort.
func (s *PersonService) Delete(ctx context.Context, id int64) error {
	oldRef, err := s.persons.DeletePerson(ctx, id)
	if err != nil {
		return err
	}

	s.removeFile(ctx, oldRef, "deleted case image")

	s.logger.Info("missing person deleted", slog.Int64("personID", id))
	return nil
}

// removeFile deletes a stored image by reference, logging failures instead
// of returning them. ref may be nil and files may be nil; both are no-ops.
func (s *PersonService) removeFile(ctx context.Context, ref *string, what string) {
	if ref == nil || s.files == nil {
		return
	}
	if err := s.files.Remove(ctx, *ref); err != nil {
		s.logger.Error("failed to remove "+what,
			slog.String("imageURL", *ref),
			slog.String("error", err.Error()),
		)
	}
}
