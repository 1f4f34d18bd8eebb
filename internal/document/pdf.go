package document

import (
	"fmt"

	"github.com/diewo77/arte/internal/models"
	"github.com/johnfercher/maroto/v2"
	"github.com/johnfercher/maroto/v2/pkg/components/text"
	"github.com/johnfercher/maroto/v2/pkg/config"
	"github.com/johnfercher/maroto/v2/pkg/consts/align"
	"github.com/johnfercher/maroto/v2/pkg/consts/fontstyle"
	"github.com/johnfercher/maroto/v2/pkg/core"
	"github.com/johnfercher/maroto/v2/pkg/props"
)

const dateLayout = "02/01/2006"

// PDFRenderer renders documents with maroto. The built-in fonts only cover
// latin-1, so template text stays unaccented.
type PDFRenderer struct{}

func (PDFRenderer) ContentType() string { return "application/pdf" }
func (PDFRenderer) Extension() string   { return ".pdf" }

func (PDFRenderer) Render(kind models.DocumentKind, d Data) ([]byte, error) {
	cfg := config.NewBuilder().
		WithLeftMargin(20).
		WithTopMargin(20).
		WithRightMargin(20).
		Build()
	m := maroto.New(cfg)

	m.AddRows(header(d)...)
	switch kind {
	case models.DocumentKindLetter:
		m.AddRows(letterBody(d)...)
	case models.DocumentKindCertificate:
		m.AddRows(certificateBody(d)...)
	default:
		return nil, fmt.Errorf("unsupported kind %q", kind)
	}
	m.AddRows(footer()...)

	doc, err := m.Generate()
	if err != nil {
		return nil, err
	}
	return doc.GetBytes(), nil
}

var (
	titleStyle = props.Text{Size: 16, Style: fontstyle.Bold, Align: align.Center}
	bodyStyle  = props.Text{Size: 11, Align: align.Left}
	smallStyle = props.Text{Size: 9, Align: align.Right}
)

func header(d Data) []core.Row {
	return []core.Row{
		text.NewRow(10, d.Organization, props.Text{Size: 12, Style: fontstyle.Bold}),
		text.NewRow(6, "Ref. "+d.Reference, smallStyle),
		text.NewRow(6, "Le "+d.IssuedAt.Format(dateLayout), smallStyle),
	}
}

func letterBody(d Data) []core.Row {
	return []core.Row{
		text.NewRow(20, "LETTRE DE STAGE", titleStyle),
		text.NewRow(12, fmt.Sprintf("Nous avons le plaisir de confirmer l'accueil de %s en qualite de stagiaire.", d.StagiaireName), bodyStyle),
		text.NewRow(10, fmt.Sprintf("Departement : %s", d.Department), bodyStyle),
		text.NewRow(10, fmt.Sprintf("Intitule : %s", orDash(d.Title)), bodyStyle),
		text.NewRow(10, fmt.Sprintf("Periode : du %s au %s", d.StartDate.Format(dateLayout), d.EndDate.Format(dateLayout)), bodyStyle),
		text.NewRow(10, fmt.Sprintf("Encadreur : %s", orDash(d.EncadreurName)), bodyStyle),
	}
}

func certificateBody(d Data) []core.Row {
	return []core.Row{
		text.NewRow(20, "ATTESTATION DE FIN DE STAGE", titleStyle),
		text.NewRow(12, fmt.Sprintf("Nous soussignes, %s, attestons que %s a effectue un stage au sein du departement %s",
			d.Organization, d.StagiaireName, d.Department), bodyStyle),
		text.NewRow(10, fmt.Sprintf("du %s au %s, sous l'encadrement de %s.",
			d.StartDate.Format(dateLayout), d.EndDate.Format(dateLayout), d.EncadreurName), bodyStyle),
		text.NewRow(12, "La presente attestation est delivree pour servir et valoir ce que de droit.", bodyStyle),
	}
}

func footer() []core.Row {
	return []core.Row{
		text.NewRow(30, "La Direction des Ressources Humaines", props.Text{Size: 11, Style: fontstyle.Bold, Align: align.Right, Top: 20}),
	}
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
