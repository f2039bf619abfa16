package services

import (
	"bytes"
	"context"
	"embed"
	"encoding/base64"
	"fmt"
	"html/template"
	"log/slog"
	"time"

	"callastar_back_end/internal/models"
	"callastar_back_end/internal/utils"

	"github.com/chromedp/cdproto/page"
	"github.com/chromedp/chromedp"
)

//go:embed templates/*.html
var statementTemplates embed.FS

var statementTmpl = template.Must(template.ParseFS(statementTemplates, "templates/payout_statement.html"))

type statementLine struct {
	Reference     string
	Date          string
	Amount        string
	PlatformFee   string
	CreatorAmount string
}

type statementData struct {
	Reference    string
	IssuedAt     string
	CreatorName  string
	CreatorEmail string
	Status       string
	TransferID   string
	PaymentCount int
	Total        string
	Lines        []statementLine
}

func shortRef(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

// RenderStatementHTML produit le HTML du relevé de versement.
func RenderStatementHTML(creator *models.Creator, req *models.PayoutRequest, payments []models.Payment, at time.Time) (string, error) {
	data := statementData{
		Reference:    shortRef(req.ID),
		IssuedAt:     at.Format("02/01/2006"),
		CreatorName:  creator.Name,
		CreatorEmail: creator.Email,
		Status:       string(req.Status),
		PaymentCount: req.PaymentCount,
		Total:        utils.FormatAmount(req.TotalAmount, req.Currency),
	}
	if req.StripeTransferID != nil {
		data.TransferID = *req.StripeTransferID
	}
	for _, p := range payments {
		data.Lines = append(data.Lines, statementLine{
			Reference:     shortRef(p.ID),
			Date:          p.CreatedAt.Format("02/01/2006"),
			Amount:        utils.FormatAmount(p.Amount, p.Currency),
			PlatformFee:   utils.FormatAmount(p.PlatformFee, p.Currency),
			CreatorAmount: utils.FormatAmount(p.CreatorAmount, p.Currency),
		})
	}

	var buf bytes.Buffer
	if err := statementTmpl.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("rendu relevé: %w", err)
	}
	return buf.String(), nil
}

// StatementGenerator imprime le relevé en PDF via Chrome headless et l'archive dans MinIO.
type StatementGenerator struct {
	store   *ObjectStore
	logger  *slog.Logger
	timeout time.Duration
}

func NewStatementGenerator(store *ObjectStore, logger *slog.Logger) *StatementGenerator {
	return &StatementGenerator{store: store, logger: logger, timeout: 30 * time.Second}
}

func (g *StatementGenerator) GeneratePayoutStatement(ctx context.Context, creator *models.Creator, req *models.PayoutRequest, payments []models.Payment) ([]byte, error) {
	html, err := RenderStatementHTML(creator, req, payments, time.Now())
	if err != nil {
		return nil, err
	}

	pdf, err := printPDF(ctx, html, g.timeout)
	if err != nil {
		return nil, err
	}

	if g.store != nil {
		if err := g.store.PutStatement(ctx, creator.ID, req.ID, pdf); err != nil {
			g.logger.Warn("⚠️ Relevé non archivé", "payout_request_id", req.ID, "error", err)
		}
	}
	return pdf, nil
}

func printPDF(ctx context.Context, html string, timeout time.Duration) ([]byte, error) {
	browserCtx, cancel := chromedp.NewContext(ctx)
	defer cancel()
	browserCtx, cancel = context.WithTimeout(browserCtx, timeout)
	defer cancel()

	dataURL := "data:text/html;charset=utf-8;base64," + base64.StdEncoding.EncodeToString([]byte(html))

	var pdf []byte
	err := chromedp.Run(browserCtx,
		chromedp.Navigate(dataURL),
		chromedp.WaitVisible("body", chromedp.ByQuery),
		chromedp.ActionFunc(func(ctx context.Context) error {
			buf, _, err := page.PrintToPDF().WithPrintBackground(true).Do(ctx)
			if err != nil {
				return err
			}
			pdf = buf
			return nil
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("impression PDF: %w", err)
	}
	return pdf, nil
}
