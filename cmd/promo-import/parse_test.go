package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	pgzip "github.com/klauspost/pgzip"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/romeosyl08-png/resto/internal/domain/promotion"
)

const export = `code,type,value,min_order_amount,max_discount_amount,usage_limit_total,usage_limit_per_user,segment,start_at,end_at,active
welcome10,percent,10,,,,1,new_customers,,,true
FLAT5, fixed_amount ,5,20.00,,100,,,2025-01-01T00:00:00Z,2025-12-31T23:59:59Z,
OLD,percent,15,,,,,,,,false
`

func TestParseCSV(t *testing.T) {
	promos, err := parseCSV(context.Background(), strings.NewReader(export))
	require.NoError(t, err)
	require.Len(t, promos, 3)

	w := promos[0]
	assert.Equal(t, "WELCOME10", w.Code)
	assert.Equal(t, promotion.TypePercent, w.Type)
	assert.True(t, w.Value.Equal(decimal.NewFromInt(10)))
	assert.Equal(t, promotion.SegmentNewCustomers, w.Segment)
	require.NotNil(t, w.UsageLimitPerUser)
	assert.Equal(t, 1, *w.UsageLimitPerUser)
	assert.Nil(t, w.UsageLimitTotal)
	assert.Nil(t, w.MinOrderAmount)
	assert.True(t, w.Active)

	f := promos[1]
	assert.Equal(t, promotion.TypeFixedAmount, f.Type)
	require.NotNil(t, f.MinOrderAmount)
	assert.True(t, f.MinOrderAmount.Equal(decimal.NewFromInt(20)))
	require.NotNil(t, f.StartAt)
	require.NotNil(t, f.EndAt)
	assert.Equal(t, 2025, f.EndAt.Year())
	assert.Equal(t, promotion.SegmentAll, f.Segment)
	assert.True(t, f.Active)

	assert.False(t, promos[2].Active)
}

func TestParseCSV_Errors(t *testing.T) {
	tests := []struct {
		name string
		data string
	}{
		{"missing column", "code,value\nA,1\n"},
		{"unknown type", "code,type,value\nA,bogus,1\n"},
		{"percent over 100", "code,type,value\nA,percent,101\n"},
		{"negative", "code,type,value\nA,fixed_amount,-1\n"},
		{"empty code", "code,type,value\n ,percent,1\n"},
		{"bad segment", "code,type,value,segment\nA,percent,1,vip\n"},
		{"bad date", "code,type,value,end_at\nA,percent,1,tomorrow\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := parseCSV(context.Background(), strings.NewReader(tt.data))
			assert.Error(t, err)
		})
	}
}

func TestParseFile(t *testing.T) {
	var buf bytes.Buffer
	gz := pgzip.NewWriter(&buf)
	_, err := gz.Write([]byte(export))
	require.NoError(t, err)
	require.NoError(t, gz.Close())

	path := filepath.Join(t.TempDir(), "promos.csv.gz")
	require.NoError(t, os.WriteFile(path, buf.Bytes(), 0o600))

	promos, err := parseFile(context.Background(), path)
	require.NoError(t, err)
	assert.Len(t, promos, 3)
}

func TestMerge(t *testing.T) {
	a := []promotion.Promotion{{Code: "A", Value: decimal.NewFromInt(1)}, {Code: "B"}}
	b := []promotion.Promotion{{Code: "A", Value: decimal.NewFromInt(2)}, {Code: "C"}}

	out := merge([][]promotion.Promotion{a, b})
	require.Len(t, out, 3)
	assert.Equal(t, []string{"A", "B", "C"}, []string{out[0].Code, out[1].Code, out[2].Code})
	assert.True(t, out[0].Value.Equal(decimal.NewFromInt(2)))
}
