package refiner

import (
	"context"
	"errors"
	"regexp"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"

	"github.com/sqlquorum/sqlquorum/internal/query"
)

func TestExecuteRecordsFailuresAndContinues(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New() error = %v", err)
	}
	defer db.Close()

	mock.ExpectQuery(regexp.QuoteMeta("SELECT name FROM missing")).
		WillReturnError(errors.New("no such table: missing"))
	mock.ExpectQuery(regexp.QuoteMeta("SELECT name FROM member")).
		WillReturnRows(sqlmock.NewRows([]string{"name"}).AddRow("Ada").AddRow("Alan").AddRow("Grace"))

	r := New(nil, Config{RowLimit: 2}, nil)
	outcomes := r.Execute(context.Background(), query.NewSQLEngine(db), []string{
		"SELECT name FROM missing;",
		"SELECT name FROM member;",
	})
	if len(outcomes) != 2 {
		t.Fatalf("outcomes = %d, want 2", len(outcomes))
	}
	if outcomes[0].Succeeded() || outcomes[0].SQL != "SELECT name FROM missing" {
		t.Fatalf("outcome[0] = %+v", outcomes[0])
	}
	if !outcomes[1].Succeeded() || len(outcomes[1].Rows) != 2 {
		t.Fatalf("outcome[1] = %+v, want 2 rows", outcomes[1])
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("ExpectationsWereMet() error = %v", err)
	}
}
