package email

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"
)

//go:embed templates/*.html
var templateFS embed.FS

type baseEmailData struct {
	Title    string
	Heading  string
	CTALabel string
	CTAURL   string
}

type assignmentEmailData struct {
	baseEmailData
	TechnicianName string
	Category       string
}

type ratingInvitationEmailData struct {
	baseEmailData
	BeneficiaryName string
	Category        string
}

type posventaReviewedEmailData struct {
	baseEmailData
	BeneficiaryName string
	Verdict         string
}

type visitDigestEmailData struct {
	baseEmailData
	TechnicianName string
	Date           string
	Visits         []VisitItem
}

func renderEmailTemplate(name string, data any) (string, error) {
	templates := []string{"templates/base.html", "templates/" + name}
	tmpl, err := template.New("base.html").ParseFS(templateFS, templates...)
	if err != nil {
		return "", fmt.Errorf("parse email template %s: %w", name, err)
	}

	var buf bytes.Buffer
	if err := tmpl.ExecuteTemplate(&buf, "email", data); err != nil {
		return "", fmt.Errorf("execute email template %s: %w", name, err)
	}
	return buf.String(), nil
}

func verdictLabel(verdict string) string {
	if label, ok := verdictLabels[verdict]; ok {
		return label
	}
	return "Revisado"
}
