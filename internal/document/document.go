// Package document renders internship letters and completion certificates.
// Callers assemble Data, the Generator checks it is complete and hands it
// to a Renderer.
package document

import (
	"fmt"
	"strings"
	"time"

	"github.com/diewo77/arte/internal/apperr"
	"github.com/diewo77/arte/internal/models"
)

// Kinds that can be generated.
var Generatable = []models.DocumentKind{models.DocumentKindLetter, models.DocumentKindCertificate}

func CanGenerate(kind models.DocumentKind) bool {
	return kind == models.DocumentKindLetter || kind == models.DocumentKindCertificate
}

// Data is everything a template may interpolate.
type Data struct {
	Reference     string
	Organization  string
	StagiaireName string
	EncadreurName string
	Title         string
	Department    string
	StartDate     *time.Time
	EndDate       *time.Time
	IssuedAt      time.Time
}

// FromStage builds Data from a stage with Stagiaire, Encadreur and
// Application preloaded.
func FromStage(st *models.Stage, organization string, now time.Time) Data {
	d := Data{
		Reference:    fmt.Sprintf("STG-%04d", st.ID),
		Organization: organization,
		Title:        st.Title,
		Department:   st.Department,
		StartDate:    st.StartDate,
		EndDate:      st.EndDate,
		IssuedAt:     now,
	}
	if st.Application != nil && st.Application.Reference != "" {
		d.Reference = st.Application.Reference
	}
	if st.Stagiaire != nil {
		d.StagiaireName = st.Stagiaire.Name
	}
	if st.Encadreur != nil {
		d.EncadreurName = st.Encadreur.Name
	}
	return d
}

// Missing lists the fields kind needs that d lacks.
func (d Data) Missing(kind models.DocumentKind) []string {
	var out []string
	need := func(field string, ok bool) {
		if !ok {
			out = append(out, field)
		}
	}
	need("organization", strings.TrimSpace(d.Organization) != "")
	need("stagiaire_name", strings.TrimSpace(d.StagiaireName) != "")
	need("department", strings.TrimSpace(d.Department) != "")
	need("start_date", d.StartDate != nil && !d.StartDate.IsZero())
	need("end_date", d.EndDate != nil && !d.EndDate.IsZero())
	if kind == models.DocumentKindCertificate {
		need("encadreur_name", strings.TrimSpace(d.EncadreurName) != "")
	}
	return out
}

// Artifact is a rendered document.
type Artifact struct {
	FileName    string
	ContentType string
	Bytes       []byte
}

// Renderer turns validated data into bytes of one format.
type Renderer interface {
	Render(kind models.DocumentKind, d Data) ([]byte, error)
	ContentType() string
	Extension() string
}

type Generator struct {
	renderer Renderer
}

func NewGenerator(r Renderer) *Generator {
	return &Generator{renderer: r}
}

// Generate renders kind for d. Unsupported kinds and incomplete data are
// validation errors.
func (g *Generator) Generate(kind models.DocumentKind, d Data) (*Artifact, error) {
	if !CanGenerate(kind) {
		return nil, apperr.Field("kind", "not_generatable")
	}
	if missing := d.Missing(kind); len(missing) > 0 {
		return nil, apperr.MissingFields(missing...)
	}
	b, err := g.renderer.Render(kind, d)
	if err != nil {
		return nil, fmt.Errorf("render %s: %w", kind, err)
	}
	return &Artifact{
		FileName:    fmt.Sprintf("%s-%s%s", kind, strings.ToLower(d.Reference), g.renderer.Extension()),
		ContentType: g.renderer.ContentType(),
		Bytes:       b,
	}, nil
}
