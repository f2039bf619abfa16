package utils

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"
)

//go:embed templates/*.html
var templateFS embed.FS

var emailTemplate = template.Must(template.ParseFS(templateFS, "templates/ledger_email.html"))

// EmailRow est une ligne "libellé / valeur" du tableau récapitulatif.
type EmailRow struct {
	Label string
	Value string
}

// EmailContent décrit le contenu d'un email transactionnel.
type EmailContent struct {
	Subject       string
	Icon          string
	Title         string
	Subtitle      string
	RecipientName string
	Paragraphs    []string
	Rows          []EmailRow
	CTALabel      string
	CTAURL        string
	Urgent        bool
}

// RenderEmail produit le HTML final à partir du gabarit commun.
func RenderEmail(content EmailContent) (string, error) {
	var buf bytes.Buffer
	if err := emailTemplate.Execute(&buf, content); err != nil {
		return "", fmt.Errorf("exécution template email: %w", err)
	}
	return buf.String(), nil
}
