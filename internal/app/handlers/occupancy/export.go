package occupancy

import (
	"bytes"
	"context"
	"encoding/csv"
	"fmt"
	"strconv"
	"time"

	"innkeep/internal/app/dto"
	"innkeep/internal/app/handlers/support"
	"innkeep/internal/app/policies"
	"innkeep/internal/app/queries"
	"innkeep/internal/app/uow"
	"innkeep/internal/domain/availability"
	"innkeep/internal/domain/shared/daterange"
	"innkeep/internal/domain/tenancy"
)

const exportReportKey = "occupancy.export"

const reportContentType = "text/csv"

type ExportReportQuery struct {
	Scope   tenancy.Scope
	RoomIDs []string  `validate:"max=500,dive,required"`
	From    time.Time `validate:"required"`
	To      time.Time `validate:"required"`
}

func (q ExportReportQuery) Key() string { return exportReportKey }

func (q ExportReportQuery) TenantScope() tenancy.Scope { return q.Scope }

// ExportReportHandler renders the per-day occupancy of a window as CSV and uploads it.
type ExportReportHandler struct {
	UoWFactory uow.UoWFactory
	Store      policies.ReportStore
	MaxDays    int
	Clock      func() time.Time
}

func (h *ExportReportHandler) Handle(ctx context.Context, q ExportReportQuery) (dto.ReportExport, error) {
	if h.Store == nil {
		return dto.ReportExport{}, fmt.Errorf("occupancy export: report store not configured")
	}
	span, err := daterange.NewSpan(q.From, q.To)
	if err != nil {
		return dto.ReportExport{}, availability.Invalid("to", "must not precede from")
	}
	stats, err := Compute(ctx, h.UoWFactory, q.Scope.Company, support.RoomIDs(q.RoomIDs), span, h.MaxDays)
	if err != nil {
		return dto.ReportExport{}, err
	}
	data, err := RenderCSV(stats)
	if err != nil {
		return dto.ReportExport{}, err
	}
	key := fmt.Sprintf("reports/%s/occupancy-%s-%s-%d.csv", q.Scope.Company,
		span.From.Format(daterange.Layout), span.To.Format(daterange.Layout), support.Now(h.Clock).Unix())
	location, err := h.Store.Put(ctx, key, reportContentType, data)
	if err != nil {
		return dto.ReportExport{}, fmt.Errorf("occupancy export: upload: %w", err)
	}
	return dto.ReportExport{Location: location, Key: key, SizeBytes: int64(len(data))}, nil
}

var reportHeader = []string{"date", "occupied", "available", "blocked", "check_ins", "check_outs", "revenue_minor", "currency"}

// RenderCSV writes one row per day followed by a totals row.
func RenderCSV(stats availability.OccupancyStats) ([]byte, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	if err := w.Write(reportHeader); err != nil {
		return nil, err
	}
	for _, d := range stats.Days {
		row := []string{
			d.Date.Format(daterange.Layout),
			strconv.Itoa(d.Occupied),
			strconv.Itoa(d.Available),
			strconv.Itoa(d.Blocked),
			strconv.Itoa(d.CheckIns),
			strconv.Itoa(d.CheckOuts),
			strconv.FormatInt(d.Revenue.Amount, 10),
			d.Revenue.Currency,
		}
		if err := w.Write(row); err != nil {
			return nil, err
		}
	}
	total := []string{
		"total",
		strconv.Itoa(stats.OccupiedNights),
		strconv.Itoa(stats.AvailableNights),
		strconv.Itoa(stats.BlockedNights),
		"", "",
		strconv.FormatInt(stats.Revenue.Amount, 10),
		stats.Revenue.Currency,
	}
	if err := w.Write(total); err != nil {
		return nil, err
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

var _ queries.Handler[ExportReportQuery, dto.ReportExport] = (*ExportReportHandler)(nil)
