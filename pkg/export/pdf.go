// Package export renders a deal snapshot as a PDF document.
package export

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/jung-kurt/gofpdf"
	"go.uber.org/zap"

	"github.com/ekaya-inc/deal-triage/pkg/apperrors"
	"github.com/ekaya-inc/deal-triage/pkg/models"
	"github.com/ekaya-inc/deal-triage/pkg/services/analysis"
)

// ContentType is the media type of rendered exports.
const ContentType = "application/pdf"

const (
	exportTitle  = "Deal Triage Export"
	notAvailable = "Not available"
	lineHeight   = 5.5
)

// Renderer turns a read-only deal snapshot into a binary document.
// Failures match apperrors.ErrRenderFailed.
type Renderer interface {
	Render(ctx context.Context, snap *models.DealSnapshot) ([]byte, error)
}

type pdfRenderer struct {
	fontFamily string
	compress   bool
	now        func() time.Time
	logger     *zap.Logger
}

// NewPDFRenderer creates a renderer producing A4 portrait PDFs.
func NewPDFRenderer(logger *zap.Logger) Renderer {
	return &pdfRenderer{
		fontFamily: "Arial",
		compress:   true,
		now:        time.Now,
		logger:     logger.Named("export"),
	}
}

var _ Renderer = (*pdfRenderer)(nil)

// page wraps gofpdf with the layout helpers the export uses.
type page struct {
	pdf    *gofpdf.Fpdf
	family string
	tr     func(string) string
}

func (p *page) heading(text string) {
	p.pdf.Ln(4)
	p.pdf.SetFont(p.family, "B", 13)
	p.pdf.CellFormat(0, 8, p.tr(text), "B", 1, "L", false, 0, "")
	p.pdf.Ln(2)
	p.pdf.SetFont(p.family, "", 10)
}

func (p *page) line(text string) {
	p.pdf.MultiCell(0, lineHeight, p.tr(text), "", "L", false)
}

func (p *page) field(label, value string) {
	p.pdf.SetFont(p.family, "B", 10)
	p.pdf.CellFormat(60, lineHeight, p.tr(label), "", 0, "L", false, 0, "")
	p.pdf.SetFont(p.family, "", 10)
	p.pdf.MultiCell(0, lineHeight, p.tr(value), "", "L", false)
}

func (p *page) list(items []string) {
	if len(items) == 0 {
		p.line("  (none)")
		return
	}
	for i, item := range items {
		p.line(fmt.Sprintf("  %d. %s", i+1, item))
	}
}

func (r *pdfRenderer) Render(ctx context.Context, snap *models.DealSnapshot) ([]byte, error) {
	if snap == nil {
		return nil, fmt.Errorf("%w: snapshot is nil", apperrors.ErrRenderFailed)
	}

	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.SetCompression(r.compress)
	pdf.SetMargins(20, 20, 20)
	pdf.SetAutoPageBreak(true, 20)
	pdf.SetTitle(exportTitle+": "+snap.Deal.Name, true)
	pdf.AliasNbPages("")
	pdf.SetFooterFunc(func() {
		pdf.SetY(-15)
		pdf.SetFont(r.fontFamily, "I", 8)
		pdf.CellFormat(0, 10, fmt.Sprintf("Page %d/{nb}", pdf.PageNo()), "", 0, "C", false, 0, "")
	})
	pdf.AddPage()

	p := &page{pdf: pdf, family: r.fontFamily, tr: pdf.UnicodeTranslatorFromDescriptor("")}

	pdf.SetFont(r.fontFamily, "B", 16)
	pdf.CellFormat(0, 10, exportTitle, "", 1, "L", false, 0, "")
	pdf.SetFont(r.fontFamily, "", 9)
	pdf.CellFormat(0, 6, "Generated: "+r.now().UTC().Format(time.RFC3339), "", 1, "L", false, 0, "")

	writeDeal(p, snap)
	writeTerms(p, snap.Terms, snap.Confirmations)
	writeAnalysis(p, snap.Analysis)
	writeDraft(p, snap.Draft)

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		r.logger.Error("Failed to render export",
			zap.String("deal_id", snap.Deal.ID.String()),
			zap.Error(err))
		return nil, fmt.Errorf("%w: %w", apperrors.ErrRenderFailed, err)
	}
	return buf.Bytes(), nil
}

func writeDeal(p *page, snap *models.DealSnapshot) {
	p.heading("Deal")
	p.field("Deal ID", snap.Deal.ID.String())
	p.field("Deal name", snap.Deal.Name)
	p.field("Created at", snap.Deal.CreatedAt.UTC().Format(time.RFC3339))
	if snap.Deal.CreatedBy != "" {
		p.field("Created by", snap.Deal.CreatedBy)
	}
	p.field("Documents", strconv.Itoa(len(snap.Documents)))
	for _, d := range snap.Documents {
		hash := d.ContentHash
		if len(hash) > 12 {
			hash = hash[:12]
		}
		p.line(fmt.Sprintf("  %s (sha256 %s)", d.Filename, hash))
	}
}

func writeTerms(p *page, terms *models.ExtractedTerms, ledger models.ConfirmationLedger) {
	p.heading("Extracted Terms")
	if terms == nil {
		p.line(notAvailable)
		return
	}

	values := termValues(terms)
	for _, name := range models.TermFieldNames() {
		value := values[name]
		if ledger.IsConfirmed(name) {
			value += "  [confirmed]"
		}
		p.field(name, value)
		if c := terms.Citations.Get(name); c.Status == models.CitationFound {
			for _, ref := range c.Refs {
				p.line("    > " + ref)
			}
		}
	}
}

// termValues renders each field's JSON value as display text.
func termValues(terms *models.ExtractedTerms) map[string]string {
	out := make(map[string]string)
	data, err := json.Marshal(terms)
	if err != nil {
		return out
	}
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return out
	}
	for _, name := range models.TermFieldNames() {
		out[name] = displayValue(raw[name])
	}
	return out
}

func displayValue(raw json.RawMessage) string {
	s := strings.TrimSpace(string(raw))
	switch {
	case s == "" || s == "null":
		return "-"
	case s == "[]":
		return "(none)"
	case strings.HasPrefix(s, `"`):
		var v string
		if err := json.Unmarshal(raw, &v); err == nil {
			return v
		}
	}
	return s
}

func writeAnalysis(p *page, a *models.Analysis) {
	p.heading("Analysis")
	if a == nil {
		p.line(notAvailable)
		return
	}

	p.field("Overall triage", string(a.OverallTriage))
	p.field("Analyzed at", a.AnalyzedAt.UTC().Format(time.RFC3339))

	for _, name := range analysis.MetricNames {
		value := "-"
		if v := a.Metrics[name]; v != nil {
			value = strconv.FormatFloat(*v, 'f', 4, 64)
		}
		p.field(name, value)
	}

	p.line("Risk flags:")
	flags := make([]string, 0, len(a.RiskFlags))
	for _, f := range a.RiskFlags {
		flags = append(flags, fmt.Sprintf("[%s] %s: %s", f.Severity, f.RuleID, f.Message))
	}
	p.list(flags)

	p.line("Diligence questions:")
	p.list(a.DiligenceQuestions)
}

func writeDraft(p *page, d *models.ICDraft) {
	p.heading("IC Draft")
	if d == nil {
		p.line(notAvailable)
		return
	}

	p.line(d.Banner)
	p.line("Summary:")
	for _, l := range strings.Split(d.ICSummary3Lines, "\n") {
		p.line("  " + l)
	}
	p.line("Top risks:")
	p.list(d.TopRisksRanked)
	p.line("Mitigants and conditions:")
	p.list(d.MitigantsOrConditions)
	p.line("Diligence questions:")
	p.list(d.DiligenceQuestions)
	p.field("What changes my mind", d.WhatChangesMyMind)
	if d.GeneratedBy != "" {
		p.field("Generated by", d.GeneratedBy)
	}
}
