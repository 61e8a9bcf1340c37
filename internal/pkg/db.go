package pkg

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"time"

	"gorm.io/driver/mysql"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/logger"

	"github.com/ex-n-soldiers/catalog-tracker/internal/catalog"
)

const mirrorBatchSize = 2000

// CatalogRecord is the history-store row of one archived record. RowHash
// identifies the full canonical row so mirroring the same archive twice
// inserts nothing.
type CatalogRecord struct {
	ID           uint      `gorm:"primaryKey"`
	RowHash      string    `gorm:"size:64;not null;uniqueIndex"`
	ProductName  string    `gorm:"size:512;not null;index:idx_identity,priority:2"`
	VendorKey    string    `gorm:"size:191;not null;index:idx_identity,priority:1"`
	Category     string    `gorm:"size:16;not null"`
	Price        *string   `gorm:"type:decimal(18,4)"`
	BasePrice    *string   `gorm:"type:decimal(18,4)"`
	Discount     string    `gorm:"size:255"`
	StockStatus  string    `gorm:"size:255"`
	AvailableQty string    `gorm:"size:64"`
	ProductURL   string    `gorm:"size:2048"`
	Date         time.Time `gorm:"type:date;not null;index"`
	SourceFile   string    `gorm:"size:255;not null"`
	CreatedAt    time.Time
}

func (CatalogRecord) TableName() string {
	return "catalog_records"
}

func NewCatalogRecord(r catalog.Record) CatalogRecord {
	return CatalogRecord{
		RowHash:      RowHash(r),
		ProductName:  r.ProductName,
		VendorKey:    r.VendorKey,
		Category:     r.Category(),
		Price:        nullablePrice(r.Price),
		BasePrice:    nullablePrice(r.BasePrice),
		Discount:     r.Discount,
		StockStatus:  r.StockStatus,
		AvailableQty: r.AvailableQty,
		ProductURL:   r.ProductURL,
		Date:         r.Date,
		SourceFile:   r.SourceFile,
	}
}

// Record converts the row back to a canonical record.
func (c CatalogRecord) Record() catalog.Record {
	r := catalog.Record{
		ProductName:  c.ProductName,
		Discount:     c.Discount,
		StockStatus:  c.StockStatus,
		AvailableQty: c.AvailableQty,
		ProductURL:   c.ProductURL,
		Date:         catalog.Day(c.Date),
		SourceFile:   c.SourceFile,
		VendorKey:    c.VendorKey,
	}
	if c.Price != nil {
		r.Price = catalog.ParsePrice(*c.Price)
	}
	if c.BasePrice != nil {
		r.BasePrice = catalog.ParsePrice(*c.BasePrice)
	}
	return r
}

// RowHash is the hex SHA-256 of the record's full canonical row.
func RowHash(r catalog.Record) string {
	sum := sha256.Sum256([]byte(r.Key()))
	return hex.EncodeToString(sum[:])
}

func GormConnect(config Config) (*gorm.DB, error) {
	db, err := gorm.Open(mysql.Open(config.Db.DSN()), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("DB connection error: %w", err)
	}
	return db, nil
}

func DbMigration(db *gorm.DB) error {
	if err := db.AutoMigrate(&CatalogRecord{}); err != nil {
		return fmt.Errorf("DB migration error: %w", err)
	}
	return nil
}

// CloseDB releases the connection pool behind db.
func CloseDB(db *gorm.DB) error {
	sqlDB, err := db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// MirrorRecords inserts records into the history store, skipping rows that
// are already present. It returns the number of rows inserted.
func MirrorRecords(db *gorm.DB, records []catalog.Record) (int64, error) {
	var inserted int64
	err := db.Transaction(func(tx *gorm.DB) error {
		for start := 0; start < len(records); start += mirrorBatchSize {
			end := start + mirrorBatchSize
			if end > len(records) {
				end = len(records)
			}
			rows := make([]CatalogRecord, 0, end-start)
			for _, r := range records[start:end] {
				rows = append(rows, NewCatalogRecord(r))
			}
			result := insertIgnoringDuplicates(tx, rows)
			if result.Error != nil {
				return fmt.Errorf("bulk insert error: %w", result.Error)
			}
			inserted += result.RowsAffected
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return inserted, nil
}

func insertIgnoringDuplicates(tx *gorm.DB, rows []CatalogRecord) *gorm.DB {
	return tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&rows)
}

// History returns every stored record of one product, oldest first.
func History(db *gorm.DB, id catalog.Identity) ([]catalog.Record, error) {
	var rows []CatalogRecord
	if err := historyQuery(db, id).Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("select history error: %w", err)
	}
	records := make([]catalog.Record, 0, len(rows))
	for _, row := range rows {
		records = append(records, row.Record())
	}
	return records, nil
}

func historyQuery(db *gorm.DB, id catalog.Identity) *gorm.DB {
	return db.Model(&CatalogRecord{}).
		Where("vendor_key = ? AND product_name = ?", id.VendorKey, id.ProductName).
		Order("date").
		Order("id")
}

func nullablePrice(p catalog.Price) *string {
	if !p.Valid() {
		return nil
	}
	s := p.String()
	return &s
}
