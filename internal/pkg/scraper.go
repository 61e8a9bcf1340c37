package pkg

import (
	"bytes"
	"context"
	"encoding/csv"
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/go-resty/resty/v2"

	"github.com/ex-n-soldiers/catalog-tracker/internal/catalog"
)

// ExportHeader is the vendor-style header of raw export files; the
// normalizer renames these columns.
var ExportHeader = []string{
	"Date",
	"Product Name",
	"Base Price (AED)",
	"Final Price (AED)",
	"Discount",
	"Stock Status",
	"Available Qty",
	"Product URL",
}

// Listing is one product row scraped from a vendor list page.
type Listing struct {
	Name         string
	URL          string
	Price        string
	BasePrice    string
	Discount     string
	StockStatus  string
	AvailableQty string
}

type Scraper struct {
	client   *resty.Client
	delay    time.Duration
	maxPages int
	logger   *slog.Logger
	sleep    func(context.Context, time.Duration) error
}

func NewScraper(cfg Scrape, logger *slog.Logger) *Scraper {
	client := resty.New()
	client.SetHeader("user-agent", cfg.UserAgent)
	if cfg.Timeout > 0 {
		client.SetTimeout(cfg.Timeout)
	}
	maxPages := cfg.MaxPages
	if maxPages <= 0 {
		maxPages = 1
	}
	return &Scraper{
		client:   client,
		delay:    cfg.Delay,
		maxPages: maxPages,
		logger:   logger,
		sleep:    sleepContext,
	}
}

// sleepContext waits for d or until ctx is done.
func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// Run scrapes every vendor and writes one export per vendor into exportDir.
// A failing vendor is logged and skipped.
func (s *Scraper) Run(ctx context.Context, vendors []Vendor, exportDir string, date time.Time) ([]string, error) {
	var written []string
	for _, vendor := range vendors {
		listings, err := s.Scrape(ctx, vendor)
		if err != nil {
			if ctx.Err() != nil {
				return written, ctx.Err()
			}
			s.logger.Warn("vendor scrape failed", "vendor", vendor.Name, "err", err)
			continue
		}
		if len(listings) == 0 {
			s.logger.Warn("no products scraped", "vendor", vendor.Name)
			continue
		}
		path, err := WriteExport(exportDir, vendor.Name, date, listings)
		if err != nil {
			return written, err
		}
		s.logger.Info("saved vendor export", "vendor", vendor.Name, "products", len(listings), "file", path)
		written = append(written, path)
	}
	return written, nil
}

// Scrape walks the vendor's list pages from page 1 until a page is empty,
// shows the not-found message, fails, or maxPages is reached.
func (s *Scraper) Scrape(ctx context.Context, vendor Vendor) ([]Listing, error) {
	var listings []Listing
	for page := 1; page <= s.maxPages; page++ {
		pageURL, err := PageURL(vendor, page)
		if err != nil {
			return nil, err
		}
		l, err := s.GetList(ctx, vendor, pageURL)
		if err != nil {
			if page == 1 {
				return nil, err
			}
			s.logger.Debug("stopping pagination", "vendor", vendor.Name, "url", pageURL, "err", err)
			break
		}
		if len(l) == 0 {
			s.logger.Debug("item is not found", "vendor", vendor.Name, "url", pageURL)
			break
		}
		listings = append(listings, l...)
		if page < s.maxPages && s.delay > 0 {
			if err := s.sleep(ctx, s.delay); err != nil {
				return nil, err
			}
		}
	}
	if err := s.FetchDetails(ctx, vendor, listings); err != nil {
		return nil, err
	}
	return listings, nil
}

// FetchDetails fills stock status and available quantity from each listing's
// product page. A page that cannot be fetched keeps the list-page values.
func (s *Scraper) FetchDetails(ctx context.Context, vendor Vendor, listings []Listing) error {
	d := vendor.Detail
	if !d.Enabled() {
		return nil
	}
	for i := range listings {
		if listings[i].URL == "" {
			continue
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		doc, err := s.document(ctx, listings[i].URL)
		if err != nil {
			s.logger.Debug("detail page fetch failed", "vendor", vendor.Name, "url", listings[i].URL, "err", err)
			continue
		}
		if d.StockStatus != "" {
			listings[i].StockStatus = text(doc.Selection, d.StockStatus)
			if listings[i].StockStatus == "" {
				listings[i].StockStatus = "Unknown"
			}
		}
		if d.AvailableQty != "" {
			listings[i].AvailableQty = strings.TrimSpace(doc.Find(d.AvailableQty).Last().Text())
			if listings[i].AvailableQty == "" {
				listings[i].AvailableQty = "Not listed"
			}
		}
		if i < len(listings)-1 && s.delay > 0 {
			if err := s.sleep(ctx, s.delay); err != nil {
				return err
			}
		}
	}
	return nil
}

func (s *Scraper) document(ctx context.Context, pageURL string) (*goquery.Document, error) {
	res, err := s.client.R().SetContext(ctx).Get(pageURL)
	if err != nil {
		return nil, fmt.Errorf("http get request error: %w", err)
	}
	if res.IsError() {
		return nil, fmt.Errorf("http get request error: %s: %s", pageURL, res.Status())
	}
	doc, err := goquery.NewDocumentFromReader(bytes.NewBuffer(res.Body()))
	if err != nil {
		return nil, fmt.Errorf("get document error: %w", err)
	}
	return doc, nil
}

// GetList fetches one list page and extracts its listings. A page showing the
// vendor's not-found message, or without items, yields no listings.
func (s *Scraper) GetList(ctx context.Context, vendor Vendor, pageURL string) ([]Listing, error) {
	requestURL, err := url.Parse(pageURL)
	if err != nil {
		return nil, fmt.Errorf("parse url error: %w", err)
	}
	doc, err := s.document(ctx, pageURL)
	if err != nil {
		return nil, err
	}

	sel := vendor.Selectors
	items := doc.Find(sel.Item)
	if (vendor.NotFoundMessage != "" && strings.Contains(doc.Text(), vendor.NotFoundMessage)) || items.Size() == 0 {
		return nil, nil
	}

	var listings []Listing
	items.Each(func(_ int, item *goquery.Selection) {
		listing := Listing{
			Name:         text(item, sel.Name),
			Price:        CleanPrice(text(item, sel.Price)),
			BasePrice:    CleanPrice(text(item, sel.BasePrice)),
			Discount:     text(item, sel.Discount),
			StockStatus:  text(item, sel.StockStatus),
			AvailableQty: text(item, sel.AvailableQty),
		}
		link := sel.Link
		if link == "" {
			link = sel.Name
		}
		href, exists := item.Find(link).Attr("href")
		refURL, parseErr := url.Parse(strings.TrimSpace(href))
		if exists && parseErr == nil {
			listing.URL = requestURL.ResolveReference(refURL).String()
		}
		if listing.Name != "" {
			listings = append(listings, listing)
		}
	})
	return listings, nil
}

// PageURL returns the URL of the given 1-based page.
func PageURL(vendor Vendor, page int) (string, error) {
	if page == 1 {
		return vendor.BaseURL, nil
	}
	if vendor.PageURL != "" {
		return strings.ReplaceAll(vendor.PageURL, "{page}", strconv.Itoa(page)), nil
	}
	u, err := url.Parse(vendor.BaseURL)
	if err != nil {
		return "", fmt.Errorf("parse url error: %w", err)
	}
	q := u.Query()
	q.Set("page", strconv.Itoa(page))
	u.RawQuery = q.Encode()
	return u.String(), nil
}

// CleanPrice strips thousands separators, currency labels and spaces from a
// displayed price. Text without digits becomes empty.
func CleanPrice(s string) string {
	cleaned := strings.Map(func(r rune) rune {
		if (r >= '0' && r <= '9') || r == '.' || r == '-' {
			return r
		}
		return -1
	}, s)
	cleaned = strings.Trim(cleaned, ".")
	if strings.IndexFunc(cleaned, func(r rune) bool { return r >= '0' && r <= '9' }) < 0 {
		return ""
	}
	return cleaned
}

// ExportFileName is {vendor}_{YYYY-MM-DD}.csv.
func ExportFileName(vendor string, date time.Time) string {
	return vendor + "_" + catalog.FormatDate(date) + ".csv"
}

// WriteExport writes listings as a raw vendor export and returns its path.
func WriteExport(dir, vendor string, date time.Time, listings []Listing) (string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("mkdir error during write export: %w", err)
	}
	path := filepath.Join(dir, ExportFileName(vendor, date))
	f, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("create file error during write export: %w", err)
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if err := w.Write(ExportHeader); err != nil {
		return "", fmt.Errorf("write export error: %w", err)
	}
	day := catalog.FormatDate(date)
	for _, l := range listings {
		base := l.BasePrice
		if base == "" {
			base = l.Price
		}
		if err := w.Write([]string{day, l.Name, base, l.Price, l.Discount, l.StockStatus, l.AvailableQty, l.URL}); err != nil {
			return "", fmt.Errorf("write export error: %w", err)
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return "", fmt.Errorf("write export error: %w", err)
	}
	return path, nil
}

func text(s *goquery.Selection, selector string) string {
	if selector == "" {
		return ""
	}
	return strings.TrimSpace(s.Find(selector).First().Text())
}
