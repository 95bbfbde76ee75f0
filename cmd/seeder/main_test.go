package main

import (
	"testing"
	"time"

	"cloud.google.com/go/civil"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

func TestTemplateRows(t *testing.T) {
	company := uuid.New()
	accountIDs := []uuid.UUID{uuid.New(), uuid.New(), uuid.New()}
	start := civil.Date{Year: 2024, Month: time.January, Day: 1}

	rows := templateRows(company, accountIDs, start)
	if len(rows) != len(demoTemplates) {
		t.Fatalf("expected %d rows, got %d", len(demoTemplates), len(rows))
	}
	for i, row := range rows {
		if len(row) != 9 {
			t.Fatalf("row %d: expected 9 columns, got %d", i, len(row))
		}
		if row[1] != company {
			t.Fatalf("row %d: expected company %s, got %v", i, company, row[1])
		}
		if row[2] != accountIDs[i%len(accountIDs)] {
			t.Fatalf("row %d: expected account %s, got %v", i, accountIDs[i%len(accountIDs)], row[2])
		}
		if got := row[8].(time.Time); !got.Equal(time.Date(2024, time.January, 1, 0, 0, 0, 0, time.UTC)) {
			t.Fatalf("row %d: unexpected start date %s", i, got)
		}
	}
}

func TestNumeric(t *testing.T) {
	n := numeric(decimal.RequireFromString("420.50"))
	if !n.Valid || n.Exp != -2 || n.Int.Int64() != 42050 {
		t.Fatalf("unexpected numeric %+v", n)
	}
}
