package postgres

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

type RowTimestamps struct {
	CreatedAt string `db:"created_at"`
	UpdatedAt string `db:"updated_at"`
}

type testDocumentRow struct {
	RowTimestamps
	Code     string `db:"code"`
	Kind     string `db:"-"`
	Version  int    `db:"version"`
	internal string
}

func TestExtractDBColumns(t *testing.T) {
	cols := ExtractDBColumns[testDocumentRow]()

	assert.Equal(t, []string{"created_at", "updated_at", "code", "version"}, cols)
}

func TestStructToMap(t *testing.T) {
	row := testDocumentRow{
		RowTimestamps: RowTimestamps{CreatedAt: "2026-01-01", UpdatedAt: "2026-01-02"},
		Code:          "PC-2026-00001",
		Kind:          "customer-quote",
		Version:       3,
		internal:      "hidden",
	}

	m := StructToMap(&row)

	assert.Equal(t, "PC-2026-00001", m["code"])
	assert.Equal(t, 3, m["version"])
	assert.Equal(t, "2026-01-01", m["created_at"])
	assert.Equal(t, "2026-01-02", m["updated_at"])

	assert.NotContains(t, m, "-")
	assert.NotContains(t, m, "Kind")
	assert.NotContains(t, m, "internal")
	assert.Len(t, m, 4)
}

func TestStructToMap_NonStruct(t *testing.T) {
	assert.Nil(t, StructToMap(42))
	assert.Nil(t, StructToMap("code"))
}
