package sqlserver

import (
	"database/sql"
	"net/url"
	"testing"

	"catmigrate/catalog"
)

func TestDSN(t *testing.T) {
	dsn, err := Dialect{}.DSN(catalog.ConnectionParams{
		Host:     "mssql.local",
		User:     "sa",
		Password: "S3cret!",
		Database: "Sales",
	})
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}

	u, err := url.Parse(dsn)
	if err != nil {
		t.Fatalf("DSN is not a valid URL: %v", err)
	}
	if u.Scheme != "sqlserver" || u.Host != "mssql.local:1433" {
		t.Errorf("Unexpected scheme/host in %s", dsn)
	}
	if pw, _ := u.User.Password(); pw != "S3cret!" {
		t.Errorf("Expected password to round-trip, got %q", pw)
	}
	if u.Query().Get("database") != "Sales" {
		t.Errorf("Expected database query param, got %s", u.RawQuery)
	}
}

func TestQualify(t *testing.T) {
	tests := []struct {
		name     string
		params   catalog.ConnectionParams
		expected string
	}{
		{"database and schema", catalog.ConnectionParams{Database: "Sales", Schema: "crm"}, "[Sales].[crm].[Customers]"},
		{"default schema", catalog.ConnectionParams{Database: "Sales"}, "[Sales].[dbo].[Customers]"},
		{"no database", catalog.ConnectionParams{}, "[dbo].[Customers]"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := catalog.Qualify(Dialect{}, tt.params, "Customers"); got != tt.expected {
				t.Errorf("Expected %s, got %s", tt.expected, got)
			}
		})
	}
}

func TestSelectPageRequiresOrder(t *testing.T) {
	d := Dialect{}

	query := d.SelectPage("[db].[dbo].[t]", []string{"a", "b"}, nil, 50, 100)
	expected := "SELECT [a], [b] FROM [db].[dbo].[t] ORDER BY (SELECT NULL) OFFSET 100 ROWS FETCH NEXT 50 ROWS ONLY"
	if query != expected {
		t.Errorf("Expected %q, got %q", expected, query)
	}

	query = d.SelectPage("[db].[dbo].[t]", []string{"a"}, []string{"a"}, 50, 0)
	expected = "SELECT [a] FROM [db].[dbo].[t] ORDER BY [a] OFFSET 0 ROWS FETCH NEXT 50 ROWS ONLY"
	if query != expected {
		t.Errorf("Expected %q, got %q", expected, query)
	}
}

func TestRenderType(t *testing.T) {
	tests := []struct {
		col      column
		expected string
	}{
		{column{dataType: "NVARCHAR", charMaxLength: sql.NullInt64{Int64: 50, Valid: true}}, "nvarchar(50)"},
		{column{dataType: "varchar", charMaxLength: sql.NullInt64{Int64: -1, Valid: true}}, "varchar(max)"},
		{column{dataType: "decimal", numericPrecision: sql.NullInt64{Int64: 18, Valid: true}, numericScale: sql.NullInt64{Int64: 4, Valid: true}}, "decimal(18,4)"},
		{column{dataType: "int", numericPrecision: sql.NullInt64{Int64: 10, Valid: true}}, "int"},
		{column{dataType: "datetime2"}, "datetime2"},
	}

	for _, tt := range tests {
		if got := renderType(tt.col); got != tt.expected {
			t.Errorf("renderType(%s) = %s, expected %s", tt.col.dataType, got, tt.expected)
		}
	}
}

func TestBuildCreateTable(t *testing.T) {
	cols := []column{
		{name: "Id", dataType: "int", isNullable: "NO"},
		{name: "Name", dataType: "nvarchar", isNullable: "YES", charMaxLength: sql.NullInt64{Int64: 100, Valid: true}, defVal: sql.NullString{String: "('n/a')", Valid: true}},
	}

	ddl := buildCreateTable(Dialect{}, "[Sales].[dbo].[People]", cols, []string{"Id"})
	expected := "CREATE TABLE [Sales].[dbo].[People] (\n" +
		"  [Id] int NOT NULL,\n" +
		"  [Name] nvarchar(100) DEFAULT ('n/a') NULL,\n" +
		"  PRIMARY KEY ([Id])\n" +
		")"
	if ddl != expected {
		t.Errorf("Unexpected DDL:\n%s\nexpected:\n%s", ddl, expected)
	}

	ddl = buildCreateTable(Dialect{}, "[t]", cols[:1], nil)
	if ddl != "CREATE TABLE [t] (\n  [Id] int NOT NULL\n)" {
		t.Errorf("Unexpected DDL without key:\n%s", ddl)
	}
}

func TestPlaceholder(t *testing.T) {
	if got := (Dialect{}).Placeholder(7); got != "@p7" {
		t.Errorf("Expected @p7, got %s", got)
	}
}
