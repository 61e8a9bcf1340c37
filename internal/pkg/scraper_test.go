package pkg

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ex-n-soldiers/catalog-tracker/internal/normalize"
)

const productCard = `<div class="product-wrapper">
  <h3 class="wd-entities-title"><a href="%s">%s</a></h3>
  <span class="price"><del>AED %s</del><ins>AED %s</ins></span>
  <p class="stock">%s</p>
</div>`

func page(cards ...string) string {
	body := "<html><body>"
	for _, c := range cards {
		body += c
	}
	return body + "</body></html>"
}

func card(href, name, base, price, stock string) string {
	return fmt.Sprintf(productCard, href, name, base, price, stock)
}

var wooSelectors = Selectors{
	Item:        "div.product-wrapper",
	Name:        "h3.wd-entities-title a",
	Price:       "ins",
	BasePrice:   "del",
	StockStatus: "p.stock",
}

func newTestScraper(maxPages int) (*Scraper, *[]time.Duration) {
	s := NewScraper(Scrape{UserAgent: "test-agent", Delay: time.Second, MaxPages: maxPages}, NewLogger(io.Discard, "debug"))
	var sleeps []time.Duration
	s.sleep = func(_ context.Context, d time.Duration) error {
		sleeps = append(sleeps, d)
		return nil
	}
	return s, &sleeps
}

func TestScrapePathPagination(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/cpus/", func(w http.ResponseWriter, r *http.Request) {
		if r.UserAgent() != "test-agent" {
			http.Error(w, "bad agent", http.StatusBadRequest)
			return
		}
		switch r.URL.Path {
		case "/cpus/":
			fmt.Fprint(w, page(
				card("/p/9950x", "Ryzen 9 9950X", "2,799.00", "2,499.00", "In stock"),
				card("https://other.example/p/9900x", "Ryzen 9 9900X", "", "1,899", "Out of stock"),
			))
		case "/cpus/page/2/":
			fmt.Fprint(w, page(card("/p/7800x3d", "Ryzen 7 7800X3D", "1,650", "1,650", "In stock")))
		default:
			http.NotFound(w, r)
		}
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	vendor := Vendor{
		Name:      "dxbgamers_cpu",
		BaseURL:   srv.URL + "/cpus/",
		PageURL:   srv.URL + "/cpus/page/{page}/",
		Selectors: wooSelectors,
	}
	s, sleeps := newTestScraper(10)

	listings, err := s.Scrape(context.Background(), vendor)
	require.NoError(t, err)
	require.Len(t, listings, 3)

	assert.Equal(t, Listing{
		Name:        "Ryzen 9 9950X",
		URL:         srv.URL + "/p/9950x",
		Price:       "2499.00",
		BasePrice:   "2799.00",
		StockStatus: "In stock",
	}, listings[0])
	assert.Equal(t, "https://other.example/p/9900x", listings[1].URL)
	assert.Equal(t, "", listings[1].BasePrice)
	assert.Equal(t, "Ryzen 7 7800X3D", listings[2].Name)

	assert.Equal(t, []time.Duration{time.Second, time.Second}, *sleeps)
}

func TestScrapeQueryPagination(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Query().Get("page") {
		case "":
			fmt.Fprint(w, page(card("/p/1", "Case A", "300", "300", "")))
		case "2":
			fmt.Fprint(w, page(card("/p/2", "Case B", "400", "350", "")))
		default:
			fmt.Fprint(w, page("<p>No products were found matching your selection.</p>", card("/p/x", "Ad", "1", "1", "")))
		}
	}))
	defer srv.Close()

	vendor := Vendor{
		Name:            "mindtech_cases",
		BaseURL:         srv.URL + "/cases",
		NotFoundMessage: "No products were found",
		Selectors:       wooSelectors,
	}
	s, _ := newTestScraper(10)

	listings, err := s.Scrape(context.Background(), vendor)
	require.NoError(t, err)
	require.Len(t, listings, 2)
	assert.Equal(t, "Case B", listings[1].Name)
}

func TestScrapeStopsAtMaxPages(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, page(card("/p/1", "Endless", "1", "1", "")))
	}))
	defer srv.Close()

	s, sleeps := newTestScraper(3)
	listings, err := s.Scrape(context.Background(), Vendor{Name: "x", BaseURL: srv.URL, Selectors: wooSelectors})
	require.NoError(t, err)
	assert.Len(t, listings, 3)
	assert.Len(t, *sleeps, 2)
}

func TestScrapeFirstPageError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "blocked", http.StatusForbidden)
	}))
	defer srv.Close()

	s, _ := newTestScraper(3)
	_, err := s.Scrape(context.Background(), Vendor{Name: "x", BaseURL: srv.URL, Selectors: wooSelectors})
	assert.Error(t, err)
}

func TestRunWritesExports(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/good", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("page") != "" {
			return
		}
		fmt.Fprint(w, page(
			card("/p/1", "Ryzen 9 9950X", "2,799.00", "2,499.00", "In stock"),
			card("/p/2", "Contact-us CPU", "", "Contact us", "Out of stock"),
		))
	})
	mux.HandleFunc("/bad", func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	dir := filepath.Join(t.TempDir(), "exports")
	day := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	s, _ := newTestScraper(5)

	written, err := s.Run(context.Background(), []Vendor{
		{Name: "broken_cpu", BaseURL: srv.URL + "/bad", Selectors: wooSelectors},
		{Name: "dxbgamers_cpu", BaseURL: srv.URL + "/good", Selectors: wooSelectors},
	}, dir, day)
	require.NoError(t, err)
	require.Equal(t, []string{filepath.Join(dir, "dxbgamers_cpu_2025-06-01.csv")}, written)

	records, err := normalize.NormalizeFile(written[0], day)
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, "2499", records[0].Price.String())
	assert.Equal(t, "2799", records[0].BasePrice.String())
	assert.Equal(t, "dxbgamers_cpu", records[0].VendorKey)
	assert.False(t, records[1].Price.Valid())
	assert.True(t, records[1].OutOfStock())
}

func TestRunCancelled(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, page(card("/p/1", "A", "1", "1", "")))
	}))
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	s, _ := newTestScraper(1)
	_, err := s.Run(ctx, []Vendor{{Name: "a_cpu", BaseURL: srv.URL, Selectors: wooSelectors}}, t.TempDir(), time.Now())
	assert.ErrorIs(t, err, context.Canceled)
}

func TestScrapeCancelledDuringDelay(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, page(card("/p/1", "A", "1", "1", "")))
	}))
	defer srv.Close()

	s := NewScraper(Scrape{Delay: time.Hour, MaxPages: 5}, NewLogger(io.Discard, "info"))
	ctx, cancel := context.WithCancel(context.Background())
	time.AfterFunc(50*time.Millisecond, cancel)

	start := time.Now()
	_, err := s.Scrape(ctx, Vendor{Name: "a_cpu", BaseURL: srv.URL, Selectors: wooSelectors})
	assert.ErrorIs(t, err, context.Canceled)
	assert.Less(t, time.Since(start), 10*time.Second)
}

func TestSleepContext(t *testing.T) {
	assert.NoError(t, sleepContext(context.Background(), time.Millisecond))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, sleepContext(ctx, time.Hour), context.Canceled)
}

func TestPageURL(t *testing.T) {
	cases := []struct {
		name   string
		vendor Vendor
		page   int
		want   string
	}{
		{"first page", Vendor{BaseURL: "https://x.test/list?sort=new", PageURL: "https://x.test/page/{page}/"}, 1, "https://x.test/list?sort=new"},
		{"path pattern", Vendor{BaseURL: "https://x.test/", PageURL: "https://x.test/l/?sort=popularity&page={page}"}, 3, "https://x.test/l/?sort=popularity&page=3"},
		{"query fallback", Vendor{BaseURL: "https://x.test/list?sort=new"}, 2, "https://x.test/list?page=2&sort=new"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := PageURL(tc.vendor, tc.page)
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestCleanPrice(t *testing.T) {
	cases := map[string]string{
		"AED 1,299.00": "1299.00",
		"1,299円":       "1299",
		"Dhs. 450":     "450",
		"Contact us":   "",
		"":             "",
		" 0 ":          "0",
	}
	for in, want := range cases {
		assert.Equal(t, want, CleanPrice(in), in)
	}
}

func TestWriteExportFallsBackToPrice(t *testing.T) {
	dir := t.TempDir()
	day := time.Date(2025, 6, 2, 0, 0, 0, 0, time.UTC)
	path, err := WriteExport(dir, "laifai_gpu", day, []Listing{{Name: "RTX 5080", Price: "4999", URL: "https://laifai.test/p"}})
	require.NoError(t, err)

	b, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t,
		"Date,Product Name,Base Price (AED),Final Price (AED),Discount,Stock Status,Available Qty,Product URL\n"+
			"2025-06-02,RTX 5080,4999,4999,,,,https://laifai.test/p\n",
		string(b))
}

func TestScrapeFetchesDetailPages(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/gpus/", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, page(
			card("/p/5090", "RTX 5090", "", "9,999", ""),
			card("/p/5080", "RTX 5080", "", "4,999", ""),
			card("/p/missing", "RTX 5070", "", "2,499", ""),
		))
	})
	mux.HandleFunc("/p/5090", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `<div class="instock-lable">In stock</div>
<div class="quantity-selector"><select name="quantity"><option>1</option><option>2</option><option>3</option></select></div>`)
	})
	mux.HandleFunc("/p/5080", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `<p>Sold out</p>`)
	})
	mux.HandleFunc("/p/missing", http.NotFound)
	srv := httptest.NewServer(mux)
	defer srv.Close()

	vendor := Vendor{
		Name:      "microless_gpu",
		BaseURL:   srv.URL + "/gpus/",
		Selectors: wooSelectors,
		Detail: DetailSelectors{
			StockStatus:  "div.instock-lable",
			AvailableQty: "div.quantity-selector select[name='quantity'] option",
		},
	}
	s, sleeps := newTestScraper(1)
	listings, err := s.Scrape(context.Background(), vendor)
	require.NoError(t, err)
	require.Len(t, listings, 3)

	assert.Equal(t, "In stock", listings[0].StockStatus)
	assert.Equal(t, "3", listings[0].AvailableQty)
	assert.Equal(t, "Unknown", listings[1].StockStatus)
	assert.Equal(t, "Not listed", listings[1].AvailableQty)
	assert.Empty(t, listings[2].StockStatus)
	assert.Empty(t, listings[2].AvailableQty)
	assert.Len(t, *sleeps, 2)
}
