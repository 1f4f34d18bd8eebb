// Package submission handles public internship applications: multipart
// parsing, field and attachment validation, file storage and reference
// assignment.
package submission

import (
	"context"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/diewo77/arte/internal/apperr"
	"github.com/diewo77/arte/internal/auth"
	"github.com/diewo77/arte/internal/logging"
	"github.com/diewo77/arte/internal/metrics"
	"github.com/diewo77/arte/internal/models"
	"github.com/diewo77/arte/internal/storage"
	"github.com/diewo77/arte/internal/validation"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// RequiredSlots must be attached to every submission.
var RequiredSlots = []string{models.SlotCV, models.SlotCertificate, models.SlotIdentity}

// OptionalSlots may be attached.
var OptionalSlots = []string{models.SlotMotivationLetter}

const pdfContentType = "application/pdf"

// Input is a parsed submission before validation.
type Input struct {
	FullName   string
	Email      string
	Phone      string
	Field      string
	School     string
	Duration   string
	StartDate  string
	EndDate    string
	Motivation string
	Files      map[string]*multipart.FileHeader
}

// FromRequest parses a multipart submission. The body is capped at the sum
// of the per-file limits plus a margin for the text fields.
func FromRequest(w http.ResponseWriter, r *http.Request, maxFileBytes int64) (*Input, error) {
	slots := int64(len(RequiredSlots) + len(OptionalSlots))
	r.Body = http.MaxBytesReader(w, r.Body, slots*maxFileBytes+1<<20)
	if err := r.ParseMultipartForm(8 << 20); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return nil, apperr.Field("files", "too_large")
		}
		return nil, apperr.BadRequest("invalid_multipart")
	}
	in := &Input{
		FullName:   r.FormValue("full_name"),
		Email:      r.FormValue("email"),
		Phone:      r.FormValue("phone"),
		Field:      r.FormValue("field"),
		School:     r.FormValue("school"),
		Duration:   r.FormValue("duration"),
		StartDate:  r.FormValue("start_date"),
		EndDate:    r.FormValue("end_date"),
		Motivation: r.FormValue("motivation"),
		Files:      map[string]*multipart.FileHeader{},
	}
	for _, slot := range append(append([]string{}, RequiredSlots...), OptionalSlots...) {
		if fhs := r.MultipartForm.File[slot]; len(fhs) > 0 {
			in.Files[slot] = fhs[0]
		}
	}
	return in, nil
}

// validated is an Input that passed validation.
type validated struct {
	app   models.Application
	files map[string]*multipart.FileHeader
}

// validate checks every field and attachment and reports all violations at
// once.
func validate(in *Input, maxFileBytes int64) (*validated, error) {
	v := make(validation.Violations)
	validation.Required("full_name", in.FullName, v)
	validation.MaxLen("full_name", in.FullName, 255, v)
	validation.Required("email", in.Email, v)
	validation.Email("email", in.Email, v)
	validation.Required("phone", in.Phone, v)
	validation.MaxLen("phone", in.Phone, 32, v)
	validation.Required("field", in.Field, v)
	validation.Required("school", in.School, v)
	validation.Required("motivation", in.Motivation, v)
	validation.MaxLen("motivation", in.Motivation, 5000, v)

	duration, err := strconv.Atoi(strings.TrimSpace(in.Duration))
	if strings.TrimSpace(in.Duration) == "" {
		v.Add("duration", "required")
	} else if err != nil {
		v.Add("duration", "invalid")
	} else {
		validation.PositiveInt("duration", duration, v)
	}

	start, okStart := validation.Date("start_date", in.StartDate, v)
	end, okEnd := validation.Date("end_date", in.EndDate, v)
	if okStart && okEnd {
		validation.DateOrder("end_date", start, end, v)
	}

	for _, slot := range RequiredSlots {
		fh, ok := in.Files[slot]
		if !ok {
			v.Add(slot, "required")
			continue
		}
		checkPDF(slot, fh, maxFileBytes, v)
	}
	for _, slot := range OptionalSlots {
		if fh, ok := in.Files[slot]; ok {
			checkPDF(slot, fh, maxFileBytes, v)
		}
	}

	if !v.Empty() {
		return nil, apperr.Validation(v)
	}
	return &validated{
		app: models.Application{
			FullName:   strings.TrimSpace(in.FullName),
			Email:      strings.ToLower(strings.TrimSpace(in.Email)),
			Phone:      strings.TrimSpace(in.Phone),
			Field:      strings.TrimSpace(in.Field),
			School:     strings.TrimSpace(in.School),
			Duration:   duration,
			StartDate:  start,
			EndDate:    end,
			Motivation: strings.TrimSpace(in.Motivation),
			Status:     models.ApplicationStatusPending,
		},
		files: in.Files,
	}, nil
}

// checkPDF requires a .pdf name, a PDF signature and a size within limit.
func checkPDF(slot string, fh *multipart.FileHeader, limit int64, v validation.Violations) {
	if fh.Size <= 0 {
		v.Add(slot, "empty")
		return
	}
	if fh.Size > limit {
		v.Add(slot, "too_large")
		return
	}
	if !strings.EqualFold(filepath.Ext(fh.Filename), ".pdf") {
		v.Add(slot, "invalid_type")
		return
	}
	f, err := fh.Open()
	if err != nil {
		v.Add(slot, "unreadable")
		return
	}
	defer f.Close()
	head := make([]byte, 512)
	n, _ := io.ReadFull(f, head)
	if http.DetectContentType(head[:n]) != pdfContentType {
		v.Add(slot, "invalid_type")
	}
}

// Service stores submissions.
type Service struct {
	db           *gorm.DB
	store        storage.Store
	maxFileBytes int64
}

func NewService(db *gorm.DB, store storage.Store, maxFileBytes int64) *Service {
	return &Service{db: db, store: store, maxFileBytes: maxFileBytes}
}

// Submit validates in, stores its attachments and creates a pending
// application with an APP-#### reference. owner links the application to a
// stagiaire account; it is nil for anonymous submissions. Stored files are
// removed again when the insert fails.
func (s *Service) Submit(ctx context.Context, in *Input, owner *auth.Actor) (*models.Application, error) {
	log := logging.FromContext(ctx)

	val, err := validate(in, s.maxFileBytes)
	if err != nil {
		metrics.RecordSubmission("invalid")
		return nil, err
	}
	app := val.app
	if owner != nil && owner.Role == models.RoleStagiaire {
		app.OwnerID = &owner.ID
	}

	var saved []string
	cleanup := func() {
		for _, key := range saved {
			if rerr := s.store.Remove(ctx, key); rerr != nil {
				log.WithError(rerr).WithField("key", key).Warn("remove orphaned upload")
			}
		}
	}
	for slot, fh := range val.files {
		key, err := s.save(ctx, fh)
		if err != nil {
			cleanup()
			metrics.RecordSubmission("error")
			return nil, fmt.Errorf("store %s: %w", slot, err)
		}
		saved = append(saved, key)
		setPath(&app, slot, key)
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		app.Reference = "pending-" + uuid.NewString()
		if err := tx.Create(&app).Error; err != nil {
			return err
		}
		app.Reference = models.ReferenceCode(app.ID)
		return tx.Model(&app).Update("reference", app.Reference).Error
	})
	if err != nil {
		cleanup()
		metrics.RecordSubmission("error")
		return nil, err
	}

	metrics.RecordSubmission("accepted")
	log.WithField("reference", app.Reference).Info("application submitted")
	return &app, nil
}

func (s *Service) save(ctx context.Context, fh *multipart.FileHeader) (string, error) {
	f, err := fh.Open()
	if err != nil {
		return "", err
	}
	defer f.Close()
	key, _, err := s.store.Save(ctx, "applications/"+time.Now().Format("2006/01"), ".pdf", f)
	return key, err
}

func setPath(app *models.Application, slot, key string) {
	switch slot {
	case models.SlotCV:
		app.CVPath = key
	case models.SlotCertificate:
		app.CertificatePath = key
	case models.SlotIdentity:
		app.IdentityPath = key
	case models.SlotMotivationLetter:
		app.MotivationLetterPath = key
	}
}
