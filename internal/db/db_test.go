package db

import (
	"context"
	"testing"

	sqlmock "github.com/DATA-DOG/go-sqlmock"

	"docflow/internal/models"
	"docflow/internal/testutil"
)

func newMockStore(t *testing.T, emb *testutil.Embedder) (*Store, sqlmock.Sqlmock) {
	t.Helper()
	sqldb, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	s := NewStore(NewDB(sqldb, false), emb, 8)
	t.Cleanup(func() { _ = s.Close() })
	return s, mock
}

func TestStoreInitCountReset(t *testing.T) {
	ctx := context.Background()
	s, mock := newMockStore(t, testutil.NewEmbedder())

	mock.ExpectExec(`CREATE EXTENSION IF NOT EXISTS vector`).WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec(`CREATE TABLE IF NOT EXISTS document_chunks \(.*embedding vector\(8\) NOT NULL`).WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery(`SELECT count\(\*\) FROM "document_chunks"`).WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(3))
	mock.ExpectExec(`TRUNCATE TABLE "document_chunks"`).WillReturnResult(sqlmock.NewResult(0, 0))

	if err := s.Init(ctx); err != nil {
		t.Fatalf("Init: %v", err)
	}
	n, err := s.Count(ctx)
	if err != nil || n != 3 {
		t.Fatalf("Count = %d, %v", n, err)
	}
	if err := s.Reset(ctx); err != nil {
		t.Fatalf("Reset: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatal(err)
	}
}

func TestStoreSkipsDatabaseOnEmbeddingFailure(t *testing.T) {
	ctx := context.Background()
	emb := testutil.NewEmbedder()
	emb.FailOn = "boom"
	s, mock := newMockStore(t, emb)

	if err := s.Add(ctx, []models.Chunk{{Content: "boom"}}); err == nil {
		t.Fatal("expected embedding error")
	}
	if _, err := s.Query(ctx, "boom", 3); err == nil {
		t.Fatal("expected embedding error")
	}
	res, err := s.Query(ctx, "fine", 0)
	if err != nil || len(res.Matches) != 0 || len(res.QueryEmbedding) == 0 {
		t.Fatalf("zero-limit query: %+v, %v", res, err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatal(err)
	}
}

func TestVectorValue(t *testing.T) {
	v, err := Vector{1, 0.5, -2}.Value()
	if err != nil {
		t.Fatalf("Value: %v", err)
	}
	if v != "[1,0.5,-2]" {
		t.Fatalf("got %v", v)
	}

	nilV, err := Vector(nil).Value()
	if err != nil || nilV != nil {
		t.Fatalf("nil vector should be NULL, got %v %v", nilV, err)
	}
}

func TestVectorScan(t *testing.T) {
	var v Vector
	if err := v.Scan([]byte("[0.25, 1,-3]")); err != nil {
		t.Fatalf("Scan: %v", err)
	}
	want := Vector{0.25, 1, -3}
	if len(v) != len(want) {
		t.Fatalf("len %d", len(v))
	}
	for i := range want {
		if v[i] != want[i] {
			t.Fatalf("v[%d] = %v, want %v", i, v[i], want[i])
		}
	}

	if err := v.Scan("[]"); err != nil || len(v) != 0 {
		t.Fatalf("empty vector: %v %v", v, err)
	}
	if err := v.Scan("[a,b]"); err == nil {
		t.Fatal("expected parse error")
	}
	if err := v.Scan(42); err == nil {
		t.Fatal("expected type error")
	}
}
