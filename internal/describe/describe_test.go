package describe

import (
	"bytes"
	"context"
	"errors"
	"io"
	"strings"
	"testing"

	"github.com/sqlquorum/sqlquorum/internal/database/sqlitetest"
	"github.com/sqlquorum/sqlquorum/internal/storage"
)

const clientCSV = `original_column_name,column_name,column_description,data_format,value_description
client_id,client id,the unique id of the client,integer,
id,,row identifier,integer,
gender,,,text,"F: female; M: male"
`

func TestParseCSV(t *testing.T) {
	cols, err := ParseCSV(strings.NewReader("\xef\xbb\xbf" + clientCSV))
	if err != nil {
		t.Fatalf("ParseCSV() error = %v", err)
	}
	if len(cols) != 3 {
		t.Fatalf("len = %d", len(cols))
	}
	if cols[0].OriginalName != "client_id" || cols[0].Name != "client id" || cols[0].DataFormat != "integer" {
		t.Fatalf("cols[0] = %+v", cols[0])
	}
	if cols[2].ValueDescription != "F: female; M: male" {
		t.Fatalf("cols[2] = %+v", cols[2])
	}
}

func TestParseCSVFallsBackToWindows1252(t *testing.T) {
	body := []byte("original_column_name,column_description\nprice,cost in \x80\n")
	cols, err := ParseCSV(bytes.NewReader(body))
	if err != nil {
		t.Fatalf("ParseCSV() error = %v", err)
	}
	if cols[0].Description != "cost in €" {
		t.Fatalf("Description = %q", cols[0].Description)
	}
}

func TestParseCSVToleratesMissingColumns(t *testing.T) {
	cols, err := ParseCSV(strings.NewReader("original_column_name\nname\n"))
	if err != nil {
		t.Fatalf("ParseCSV() error = %v", err)
	}
	if cols[0].OriginalName != "name" || cols[0].Description != "" {
		t.Fatalf("cols[0] = %+v", cols[0])
	}
}

func TestLookupFirstSubstringMatchWins(t *testing.T) {
	cols, _ := ParseCSV(strings.NewReader(clientCSV))

	got := Lookup(cols, "id", false)
	if got.OriginalName != "client_id" {
		t.Fatalf("Lookup(id) = %+v, want the client_id row", got)
	}
	if got := Lookup(cols, "GENDER", false); got.ValueDescription == "" {
		t.Fatalf("Lookup(GENDER) = %+v", got)
	}
	if got := Lookup(cols, "missing", false); got != (Column{}) {
		t.Fatalf("Lookup(missing) = %+v", got)
	}
}

func TestLookupPreferExact(t *testing.T) {
	cols, _ := ParseCSV(strings.NewReader(clientCSV))
	if got := Lookup(cols, "id", true); got.OriginalName != "id" {
		t.Fatalf("Lookup(id, exact) = %+v", got)
	}
	if got := Lookup(cols, "client", true); got.OriginalName != "client_id" {
		t.Fatalf("Lookup(client, exact) = %+v", got)
	}
}

func TestLookupIsNotRegex(t *testing.T) {
	cols := []Column{{OriginalName: "a.b"}, {OriginalName: "axb"}}
	if got := Lookup(cols, "x", false); got.OriginalName != "axb" {
		t.Fatalf("Lookup(x) = %+v", got)
	}
	if got := Lookup([]Column{{OriginalName: "axb"}}, ".", false); got.OriginalName != "" {
		t.Fatalf("Lookup(.) = %+v", got)
	}
}

func TestDirStoreAndForSchema(t *testing.T) {
	dir := t.TempDir()
	sqlitetest.WriteDescription(t, dir, "bank", "client", clientCSV)
	store := DirStore{Root: dir}

	cols, err := store.Table(context.Background(), "bank", "client")
	if err != nil || len(cols) != 3 {
		t.Fatalf("Table() = %v, %v", cols, err)
	}
	if _, err := store.Table(context.Background(), "bank", "loan"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("Table(loan) error = %v", err)
	}

	descs := ForSchema(context.Background(), store, nil, "bank", map[string][]string{
		"client": {"client_id", "gender"},
		"loan":   {"amount"},
	}, false)
	if descs.Get("client", "gender").ValueDescription != "F: female; M: male" {
		t.Fatalf("gender = %+v", descs.Get("client", "gender"))
	}
	if descs.Get("loan", "amount") != (Column{}) {
		t.Fatalf("loan.amount = %+v", descs.Get("loan", "amount"))
	}
	if _, ok := descs["loan"]["amount"]; !ok {
		t.Fatal("expected an entry for every column")
	}
}

type memoryObjects map[string]string

func (m memoryObjects) Get(_ context.Context, key string) (io.ReadCloser, error) {
	body, ok := m[key]
	if !ok {
		return nil, storage.ErrObjectNotFound
	}
	return io.NopCloser(strings.NewReader(body)), nil
}

func TestObjectStore(t *testing.T) {
	store := ObjectStore{Store: memoryObjects{"bank/database_description/client.csv": clientCSV}}
	cols, err := store.Table(context.Background(), "bank", "client")
	if err != nil || len(cols) != 3 {
		t.Fatalf("Table() = %v, %v", cols, err)
	}
	if _, err := store.Table(context.Background(), "bank", "loan"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("Table(loan) error = %v", err)
	}
}
