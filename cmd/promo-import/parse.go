package main

import (
	"context"
	"encoding/csv"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/go-faster/errors"
	pgzip "github.com/klauspost/pgzip"
	"github.com/shopspring/decimal"

	"github.com/romeosyl08-png/resto/internal/domain/promotion"
)

// Columns of a promotion export. Only code, type and value are required.
const (
	colCode         = "code"
	colType         = "type"
	colValue        = "value"
	colMinOrder     = "min_order_amount"
	colMaxDiscount  = "max_discount_amount"
	colLimitTotal   = "usage_limit_total"
	colLimitPerUser = "usage_limit_per_user"
	colSegment      = "segment"
	colStartAt      = "start_at"
	colEndAt        = "end_at"
	colActive       = "active"
)

func parseFile(ctx context.Context, path string) ([]promotion.Promotion, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrap(err, "open")
	}
	defer func() { _ = f.Close() }()

	gz, err := pgzip.NewReader(f)
	if err != nil {
		return nil, errors.Wrap(err, "gzip reader")
	}
	defer func() { _ = gz.Close() }()

	return parseCSV(ctx, gz)
}

func parseCSV(ctx context.Context, r io.Reader) ([]promotion.Promotion, error) {
	cr := csv.NewReader(r)
	cr.TrimLeadingSpace = true

	header, err := cr.Read()
	if err != nil {
		return nil, errors.Wrap(err, "read header")
	}
	cols := make(map[string]int, len(header))
	for i, name := range header {
		cols[strings.ToLower(strings.TrimSpace(name))] = i
	}
	for _, required := range []string{colCode, colType, colValue} {
		if _, ok := cols[required]; !ok {
			return nil, errors.Errorf("missing column %q", required)
		}
	}

	var out []promotion.Promotion
	for line := 2; ; line++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			return out, nil
		}
		if err != nil {
			return nil, errors.Wrapf(err, "line %d", line)
		}
		p, err := parseRow(row{cols: cols, rec: rec})
		if err != nil {
			return nil, errors.Wrapf(err, "line %d", line)
		}
		out = append(out, p)
	}
}

type row struct {
	cols map[string]int
	rec  []string
}

func (r row) get(col string) string {
	i, ok := r.cols[col]
	if !ok || i >= len(r.rec) {
		return ""
	}
	return strings.TrimSpace(r.rec[i])
}

func (r row) amount(col string) (*decimal.Decimal, error) {
	s := r.get(col)
	if s == "" {
		return nil, nil
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return nil, errors.Wrapf(err, "%s", col)
	}
	if d.IsNegative() {
		return nil, errors.Errorf("%s: negative amount", col)
	}
	return &d, nil
}

func (r row) count(col string) (*int, error) {
	s := r.get(col)
	if s == "" {
		return nil, nil
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return nil, errors.Wrapf(err, "%s", col)
	}
	return &n, nil
}

func (r row) instant(col string) (*time.Time, error) {
	s := r.get(col)
	if s == "" {
		return nil, nil
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return nil, errors.Wrapf(err, "%s", col)
	}
	return &t, nil
}

func parseRow(r row) (promotion.Promotion, error) {
	p := promotion.Promotion{
		Code:    promotion.NormalizeCode(r.get(colCode)),
		Type:    promotion.Type(strings.ToLower(r.get(colType))),
		Segment: promotion.SegmentAll,
		Active:  true,
	}
	if p.Code == "" {
		return p, errors.New("empty code")
	}
	switch p.Type {
	case promotion.TypePercent, promotion.TypeFixedAmount:
	default:
		return p, errors.Errorf("unknown type %q", p.Type)
	}

	value, err := decimal.NewFromString(r.get(colValue))
	if err != nil {
		return p, errors.Wrap(err, colValue)
	}
	if value.IsNegative() || (p.Type == promotion.TypePercent && value.GreaterThan(decimal.NewFromInt(100))) {
		return p, errors.Errorf("value %s out of range", value)
	}
	p.Value = value

	if p.MinOrderAmount, err = r.amount(colMinOrder); err != nil {
		return p, err
	}
	if p.MaxDiscountAmount, err = r.amount(colMaxDiscount); err != nil {
		return p, err
	}
	if p.UsageLimitTotal, err = r.count(colLimitTotal); err != nil {
		return p, err
	}
	if p.UsageLimitPerUser, err = r.count(colLimitPerUser); err != nil {
		return p, err
	}
	if p.StartAt, err = r.instant(colStartAt); err != nil {
		return p, err
	}
	if p.EndAt, err = r.instant(colEndAt); err != nil {
		return p, err
	}

	if s := r.get(colSegment); s != "" {
		p.Segment = promotion.Segment(strings.ToLower(s))
		switch p.Segment {
		case promotion.SegmentAll, promotion.SegmentNewCustomers, promotion.SegmentInactive30Days:
		default:
			return p, errors.Errorf("unknown segment %q", s)
		}
	}
	if s := r.get(colActive); s != "" {
		active, err := strconv.ParseBool(s)
		if err != nil {
			return p, errors.Wrap(err, colActive)
		}
		p.Active = active
	}
	return p, nil
}
