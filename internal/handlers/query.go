package handlers

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	"sales-dashboard/internal/errors"
	"sales-dashboard/internal/models"
	"sales-dashboard/internal/observability"
	"sales-dashboard/internal/services"
)

var validate = validator.New(validator.WithRequiredStructEnabled())

type rangeQuery struct {
	Start string `validate:"omitempty,datetime=2006-01-02"`
	End   string `validate:"omitempty,datetime=2006-01-02"`
}

type clampedRange struct {
	Start time.Time `validate:"required"`
	End   time.Time `validate:"required,gtefield=Start"`
}

// resolveRange parses the inclusive YYYY-MM-DD bounds and clamps them to the
// table's span. Missing bounds default to the span's edges. An empty table
// yields the zero range.
func resolveRange(table models.Table, start, end string) (models.DateRange, error) {
	q := rangeQuery{Start: strings.TrimSpace(start), End: strings.TrimSpace(end)}
	if err := validate.Struct(q); err != nil {
		return models.DateRange{}, errors.ValidationWrap(err, "start and end must be dates in YYYY-MM-DD format")
	}
	if len(table) == 0 {
		return models.DateRange{}, nil
	}

	var s, e time.Time
	if q.Start != "" {
		s, _ = time.Parse(models.DateLayout, q.Start)
	}
	if q.End != "" {
		e, _ = time.Parse(models.DateLayout, q.End)
	}
	s, e = services.ClampRange(table, s, e)

	if err := validate.Struct(clampedRange{Start: s, End: e}); err != nil {
		return models.DateRange{}, errors.ValidationWrap(err, "start date must not be after end date")
	}
	return models.DateRange{Start: s, End: e}, nil
}

func loadSession(ctx context.Context, d *services.Dashboard) (services.Session, error) {
	id := observability.GetSessionID(ctx)
	if id == "" {
		return services.Session{}, errors.BadRequest("missing session")
	}
	s, err := d.Session(ctx, id)
	if err != nil {
		return services.Session{}, errors.InternalWrap(err, "failed to load session data")
	}
	return s, nil
}

// wantsHTML reports whether the request came from a plain form post rather
// than a script expecting JSON.
func wantsHTML(r *http.Request) bool {
	return strings.Contains(r.Header.Get("Accept"), "text/html")
}
