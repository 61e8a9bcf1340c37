// Package notify publishes diff results as one Kafka message per event.
package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/segmentio/kafka-go"

	"github.com/ex-n-soldiers/catalog-tracker/internal/catalog"
	"github.com/ex-n-soldiers/catalog-tracker/internal/diff"
)

// Event kinds.
const (
	KindNew            = "new"
	KindDelisted       = "delisted"
	KindRestocked      = "restocked"
	KindWentOutOfStock = "went_out_of_stock"
	KindPriceChange    = "price_change"
)

// Event is the JSON message value. Prices are decimal strings, empty when
// missing.
type Event struct {
	Kind        string `json:"kind"`
	ProductName string `json:"productName"`
	VendorKey   string `json:"vendorKey"`
	Category    string `json:"category"`
	Date        string `json:"date"`
	From        string `json:"from"`
	To          string `json:"to"`
	StockStatus string `json:"stockStatus,omitempty"`
	Price       string `json:"price,omitempty"`
	FromPrice   string `json:"fromPrice,omitempty"`
	Change      string `json:"change,omitempty"`
	ProductURL  string `json:"productUrl,omitempty"`
}

// Key partitions events by product identity.
func (e Event) Key() string {
	return e.VendorKey + "|" + e.ProductName
}

// Events flattens a diff result in a fixed order: new, delisted, restocked,
// went out of stock, price changes.
func Events(r diff.Result) []Event {
	from, to := catalog.FormatDate(r.From), catalog.FormatDate(r.To)
	recordEvent := func(kind string, rec catalog.Record) Event {
		return Event{
			Kind:        kind,
			ProductName: rec.ProductName,
			VendorKey:   rec.VendorKey,
			Category:    rec.Category(),
			Date:        catalog.FormatDate(rec.Date),
			From:        from,
			To:          to,
			StockStatus: rec.StockStatus,
			Price:       rec.Price.String(),
			ProductURL:  rec.ProductURL,
		}
	}

	var events []Event
	for _, rec := range r.NewProducts {
		events = append(events, recordEvent(KindNew, rec))
	}
	for _, rec := range r.Delisted {
		events = append(events, recordEvent(KindDelisted, rec))
	}
	for _, rec := range r.Restocked {
		events = append(events, recordEvent(KindRestocked, rec))
	}
	for _, t := range r.WentOutOfStock {
		e := recordEvent(KindWentOutOfStock, t.Record)
		e.Date = catalog.FormatDate(t.WentOutOfStockOn)
		events = append(events, e)
	}
	for _, c := range r.TopPriceChanges {
		events = append(events, Event{
			Kind:        KindPriceChange,
			ProductName: c.ProductName,
			VendorKey:   c.VendorKey,
			Category:    catalog.Category(c.VendorKey),
			Date:        to,
			From:        from,
			To:          to,
			Price:       c.ToPrice.String(),
			FromPrice:   c.FromPrice.String(),
			Change:      c.Change.String(),
		})
	}
	return events
}

// Publisher writes diff events to a Kafka topic.
type Publisher struct {
	writer kafkaMessageWriter
}

// kafkaMessageWriter abstracts kafka.Writer for testability.
type kafkaMessageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// NewPublisher creates a synchronous publisher.
// brokers can be a comma-separated list of host:port.
func NewPublisher(brokers, topic string) *Publisher {
	var addrs []string
	for _, a := range strings.Split(brokers, ",") {
		if a = strings.TrimSpace(a); a != "" {
			addrs = append(addrs, a)
		}
	}
	return &Publisher{writer: &kafka.Writer{
		Addr:         kafka.TCP(addrs...),
		Topic:        topic,
		Balancer:     &kafka.Hash{},
		RequiredAcks: kafka.RequireAll,
		Async:        false,
	}}
}

// NewPublisherWith is only for tests to inject a fake writer.
func NewPublisherWith(w kafkaMessageWriter) *Publisher {
	return &Publisher{writer: w}
}

// Publish sends every event of r in one batch and returns how many were sent.
func (p *Publisher) Publish(ctx context.Context, r diff.Result) (int, error) {
	events := Events(r)
	if len(events) == 0 {
		return 0, nil
	}
	msgs := make([]kafka.Message, 0, len(events))
	for _, e := range events {
		b, err := json.Marshal(&e)
		if err != nil {
			return 0, fmt.Errorf("marshal event error: %w", err)
		}
		msgs = append(msgs, kafka.Message{Key: []byte(e.Key()), Value: b})
	}
	if err := p.writer.WriteMessages(ctx, msgs...); err != nil {
		return 0, fmt.Errorf("publish diff error: %w", err)
	}
	return len(msgs), nil
}

func (p *Publisher) Close() error {
	return p.writer.Close()
}
