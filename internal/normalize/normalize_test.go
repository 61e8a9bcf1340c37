package normalize

import (
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ex-n-soldiers/catalog-tracker/internal/catalog"
)

var runDate = time.Date(2025, 6, 2, 0, 0, 0, 0, time.UTC)

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestNormalize(t *testing.T) {
	t.Run("renames vendor columns and fills defaults", func(t *testing.T) {
		table := RawTable{
			Header: []string{"Product Name", "Price (AED)", "SKU", "Product URL"},
			Rows: [][]string{
				{"Intel Core i9-14900K", "2199", "BX8071514900K", "https://laifai.ae/i9"},
			},
		}

		got := Normalize(table, "exports/laifai_cpu_2025-06-01.csv", runDate)

		require.Len(t, got, 1)
		r := got[0]
		assert.Equal(t, "Intel Core i9-14900K", r.ProductName)
		assert.Equal(t, "2199", r.Price.String())
		assert.Equal(t, "2199", r.BasePrice.String())
		assert.Equal(t, "https://laifai.ae/i9", r.ProductURL)
		assert.Empty(t, r.Discount)
		assert.Empty(t, r.StockStatus)
		assert.Empty(t, r.AvailableQty)
		assert.Equal(t, "laifai_cpu_2025-06-01.csv", r.SourceFile)
		assert.Equal(t, "laifai_cpu", r.VendorKey)
		assert.Equal(t, runDate, r.Date)
	})

	t.Run("run date wins over the raw Date column", func(t *testing.T) {
		table := RawTable{
			Header: []string{"Date", "Product Name", "Final Price (AED)"},
			Rows:   [][]string{{"2020-01-01", "Ryzen 5 7600", "799"}},
		}
		got := Normalize(table, "dxbgamers_cpu_2025-06-02.csv", runDate)
		require.Len(t, got, 1)
		assert.Equal(t, runDate, got[0].Date)
	})

	t.Run("missing product name is an empty string", func(t *testing.T) {
		table := RawTable{
			Header: []string{"Final Price (AED)"},
			Rows:   [][]string{{"10"}},
		}
		got := Normalize(table, "x_gpu.csv", runDate)
		require.Len(t, got, 1)
		assert.Equal(t, "", got[0].ProductName)
		assert.Equal(t, "x_gpu", got[0].VendorKey)
	})

	t.Run("ragged rows are padded", func(t *testing.T) {
		table := RawTable{
			Header: []string{"Product Name", "Final Price (AED)", "Stock Status"},
			Rows:   [][]string{{"RTX 5080"}},
		}
		got := Normalize(table, "microless_gpu_2025-06-02.csv", runDate)
		require.Len(t, got, 1)
		assert.False(t, got[0].Price.Valid())
		assert.Empty(t, got[0].StockStatus)
	})

	t.Run("first non-empty source column wins", func(t *testing.T) {
		table := RawTable{
			Header: []string{"Product Name", "Price (AED)", "Final Price (AED)"},
			Rows: [][]string{
				{"A", "", "100"},
				{"B", "90", "100"},
			},
		}
		got := Normalize(table, "v_gpu.csv", runDate)
		require.Len(t, got, 2)
		assert.Equal(t, "100", got[0].Price.String())
		assert.Equal(t, "90", got[1].Price.String())
	})

	t.Run("empty table contributes nothing", func(t *testing.T) {
		assert.Empty(t, Normalize(RawTable{Header: []string{"Product Name"}}, "v_gpu.csv", runDate))
	})
}

func TestNormalizeNumericCoercion(t *testing.T) {
	table := RawTable{
		Header: []string{"Product Name", "Final Price (AED)", "Base Price (AED)"},
		Rows: [][]string{
			{"comma stripped", "1299.00", ""},
			{"contact", "Contact us", ""},
			{"free", "0", "0"},
		},
	}
	got := Normalize(table, "v_cpu.csv", runDate)
	require.Len(t, got, 3)

	assert.True(t, got[0].Price.Equal(catalog.ParsePrice("1299")))
	assert.False(t, got[1].Price.Valid())
	assert.False(t, got[1].BasePrice.Valid())
	assert.True(t, got[2].Price.Valid())
	assert.Equal(t, "0", got[2].Price.String())
}

func TestRepairBasePrice(t *testing.T) {
	p := catalog.ParsePrice

	cases := []struct {
		name  string
		price catalog.Price
		base  catalog.Price
		want  catalog.Price
	}{
		{"missing base collapses to price", p("100"), catalog.Price{}, p("100")},
		{"smaller base collapses to price", p("100"), p("80"), p("100")},
		{"larger base is kept", p("100"), p("120"), p("120")},
		{"equal base is kept", p("100"), p("100"), p("100")},
		{"missing price keeps base", catalog.Price{}, p("120"), p("120")},
		{"both missing", catalog.Price{}, catalog.Price{}, catalog.Price{}},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			got := RepairBasePrice(c.price, c.base)
			assert.Equal(t, c.want.Valid(), got.Valid())
			assert.True(t, c.want.Equal(got), "want %s got %s", c.want, got)
		})
	}
}

func TestNormalizeIsIdempotent(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "gccgamers_gpu_2025-06-02.csv",
		"Date,Product Name,Model,Price (AED),Original Price (AED),Discount,Stock Status,Product URL\n"+
			"2025-06-02,RTX 5090,,9999,10999,-9%,In stock,https://gccgamers.com/5090\n"+
			"2025-06-02,RTX 5070,,2499,,,Out of stock,https://gccgamers.com/5070\n")

	first, err := NormalizeFile(path, runDate)
	require.NoError(t, err)
	second, err := NormalizeFile(path, runDate)
	require.NoError(t, err)

	require.Len(t, first, 2)
	if diff := cmp.Diff(first, second); diff != "" {
		t.Fatalf("normalizing twice differs (-first +second):\n%s", diff)
	}
	for i := range first {
		assert.Equal(t, first[i].Row(), second[i].Row())
	}
}

func TestReadRawTable(t *testing.T) {
	t.Run("strips BOM", func(t *testing.T) {
		table, err := ReadRawTable(strings.NewReader("\ufeffProduct Name,Final Price (AED)\nA,1\n"))
		require.NoError(t, err)
		assert.Equal(t, []string{"Product Name", "Final Price (AED)"}, table.Header)
		assert.Len(t, table.Rows, 1)
	})

	t.Run("empty input is an empty table", func(t *testing.T) {
		table, err := ReadRawTable(strings.NewReader(""))
		require.NoError(t, err)
		assert.Empty(t, table.Rows)
	})

	t.Run("malformed quoting is an error", func(t *testing.T) {
		_, err := ReadRawTable(strings.NewReader("Product Name,Final Price (AED)\n\"unterminated,1\n"))
		assert.ErrorIs(t, err, ErrMalformed)
	})
}

func TestBatch(t *testing.T) {
	dir := t.TempDir()
	good := writeFile(t, dir, "laifai_cpu_2025-06-01.csv", "Product Name,Price (AED)\nRyzen 9 9950X,2799\n")
	empty := writeFile(t, dir, "mindtech_cases_2025-06-01.csv", "Product Name,Final Price (AED)\n")
	bad := writeFile(t, dir, "broken_gpu_2025-06-01.csv", "Product Name,Price (AED)\n\"oops,1\n")
	missing := filepath.Join(dir, "gone_gpu_2025-06-01.csv")

	result := Batch([]string{bad, good, missing, empty}, runDate, Options{Logger: quietLogger()})

	require.Len(t, result.Records, 1)
	assert.Equal(t, "Ryzen 9 9950X", result.Records[0].ProductName)
	assert.Equal(t, runDate, result.Records[0].Date)
	assert.Equal(t, []string{good, empty}, result.Files)

	require.Len(t, result.Skipped, 2)
	assert.Equal(t, bad, result.Skipped[0].Path)
	assert.True(t, errors.Is(result.Skipped[0], ErrMalformed))
	assert.Equal(t, missing, result.Skipped[1].Path)
	assert.True(t, errors.Is(result.Skipped[1], os.ErrNotExist))
}

func TestBatchDateFromFileName(t *testing.T) {
	dir := t.TempDir()
	dated := writeFile(t, dir, "laifai_gpu_2025-05-30.csv", "Product Name,Price (AED)\nRX 9070 XT,2899\n")
	undated := writeFile(t, dir, "laifai_gpu.csv", "Product Name,Price (AED)\nRX 9070,2499\n")

	result := Batch([]string{dated, undated}, runDate, Options{DateFromFileName: true, Logger: quietLogger()})

	require.Len(t, result.Records, 2)
	assert.Equal(t, time.Date(2025, 5, 30, 0, 0, 0, 0, time.UTC), result.Records[0].Date)
	assert.Equal(t, runDate, result.Records[1].Date)
	assert.Equal(t, "laifai_gpu", result.Records[0].VendorKey)
	assert.Equal(t, "laifai_gpu", result.Records[1].VendorKey)
}

func TestListExports(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "b_gpu_2025-06-01.csv", "")
	writeFile(t, dir, "a_cpu_2025-06-01.csv", "")
	writeFile(t, dir, "normalized_combined.csv", "")
	writeFile(t, dir, "notes.txt", "")
	require.NoError(t, os.Mkdir(filepath.Join(dir, "old.csv"), 0o755))

	paths, err := ListExports(dir)
	require.NoError(t, err)
	assert.Equal(t, []string{
		filepath.Join(dir, "a_cpu_2025-06-01.csv"),
		filepath.Join(dir, "b_gpu_2025-06-01.csv"),
	}, paths)

	_, err = ListExports(filepath.Join(dir, "nope"))
	assert.Error(t, err)
}
