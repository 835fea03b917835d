package service

import (
	"context"
	"fmt"

	"techo_backend/internal/authz"
	"techo_backend/internal/dashboard/transport"
	incdomain "techo_backend/internal/incidences/domain"

	"github.com/google/uuid"
	"github.com/xuri/excelize/v2"
)

const (
	sheetSummary   = "Resumen"
	sheetWorkloads = "Tecnicos"
	sheetRanking   = "Ranking"
)

// ExportXLSX renders the dashboard summary as an Excel workbook.
func (s *Service) ExportXLSX(ctx context.Context, actorID uuid.UUID, topN int) ([]byte, error) {
	if _, err := authz.Require(ctx, s.auth, actorID, authz.Role.CanViewDashboard, "export the dashboard"); err != nil {
		return nil, err
	}
	return WriteXLSX(s.Build(ctx, topN))
}

// WriteXLSX writes one sheet per projection.
func WriteXLSX(summary transport.SummaryResponse) ([]byte, error) {
	f := excelize.NewFile()
	defer func() { _ = f.Close() }()

	if err := f.SetSheetName("Sheet1", sheetSummary); err != nil {
		return nil, fmt.Errorf("rename summary sheet: %w", err)
	}
	for _, name := range []string{sheetWorkloads, sheetRanking} {
		if _, err := f.NewSheet(name); err != nil {
			return nil, fmt.Errorf("create sheet %s: %w", name, err)
		}
	}

	rows := [][]any{
		{"Generado", summary.GeneratedAt.Format("2006-01-02 15:04 MST")},
		{},
		{"Estado", "Incidencias"},
	}
	for _, st := range incdomain.AllStatuses {
		rows = append(rows, []any{string(st), summary.StatusCounts[string(st)]})
	}
	rows = append(rows,
		[]any{},
		[]any{"Viviendas", summary.Delivery.Total},
		[]any{"Entregadas", summary.Delivery.Delivered},
		[]any{"Avance de entrega", summary.Delivery.CompletionRate},
	)
	if len(summary.Warnings) > 0 {
		rows = append(rows, []any{}, []any{"Datos no disponibles"})
		for _, w := range summary.Warnings {
			rows = append(rows, []any{w})
		}
	}
	if err := writeRows(f, sheetSummary, rows); err != nil {
		return nil, err
	}

	rows = [][]any{{"Tecnico", "Nombre", "Incidencias activas"}}
	for _, w := range summary.Workloads {
		rows = append(rows, []any{w.TechnicianID.String(), deref(w.TechnicianName), w.ActiveIncidences})
	}
	if err := writeRows(f, sheetWorkloads, rows); err != nil {
		return nil, err
	}

	rows = [][]any{{"Posicion", "Tecnico", "Nombre", "Promedio", "Calificaciones"}}
	for _, r := range summary.TopTechnicians {
		rows = append(rows, []any{r.Position, r.TechnicianID.String(), deref(r.TechnicianName), r.Mean, r.Count})
	}
	if err := writeRows(f, sheetRanking, rows); err != nil {
		return nil, err
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("write workbook: %w", err)
	}
	return buf.Bytes(), nil
}

func writeRows(f *excelize.File, sheet string, rows [][]any) error {
	for i, row := range rows {
		if len(row) == 0 {
			continue
		}
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		if err != nil {
			return err
		}
		if err := f.SetSheetRow(sheet, cell, &row); err != nil {
			return fmt.Errorf("write %s row %d: %w", sheet, i+1, err)
		}
	}
	return nil
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
