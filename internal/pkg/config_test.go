package pkg

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleConfig = `
exportDir: /data/exports
archiveDir: /data/archive
logLevel: debug
db:
  enabled: true
  host: db.internal
  dbName: catalog
scrape:
  delay: 2s
  maxPages: 5
kafka:
  brokers: "kafka-1:9092, kafka-2:9092"
  topic: catalog.diff
vendors:
  - name: dxbgamers_cpu
    baseURL: https://dxbgamers.com/product-category/hardware-components/processors/
    pageURL: https://dxbgamers.com/product-category/hardware-components/processors/page/{page}/
    selectors:
      item: div.product-wrapper
      name: h3.wd-entities-title a
      price: ins .woocommerce-Price-amount
      basePrice: del .woocommerce-Price-amount
  - name: microless_gpu
    baseURL: https://uae.microless.com/graphic_cards/
`

func TestConfigureFrom(t *testing.T) {
	t.Run("reads config.yml", func(t *testing.T) {
		dir := t.TempDir()
		require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yml"), []byte(sampleConfig), 0o644))

		config, err := ConfigureFrom(dir)
		require.NoError(t, err)

		assert.Equal(t, "/data/exports", config.ExportDir)
		assert.Equal(t, "/data/exports/normalized_combined.csv", config.CombinedPath)
		assert.Equal(t, "debug", config.LogLevel)
		assert.True(t, config.Db.Enabled)
		assert.Equal(t, "db.internal", config.Host)
		assert.Equal(t, "3306", config.Port)
		assert.Equal(t, 2*time.Second, config.Scrape.Delay)
		assert.Equal(t, 5, config.Scrape.MaxPages)
		assert.True(t, config.Kafka.Enabled())
		assert.False(t, config.S3.Enabled())

		require.Len(t, config.Vendors, 2)
		v := config.Vendors[0]
		assert.Equal(t, "dxbgamers_cpu", v.Name)
		assert.Equal(t, "div.product-wrapper", v.Selectors.Item)
		assert.Equal(t, "del .woocommerce-Price-amount", v.Selectors.BasePrice)
	})

	t.Run("config-local.yml wins", func(t *testing.T) {
		dir := t.TempDir()
		require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yml"), []byte(sampleConfig), 0o644))
		require.NoError(t, os.WriteFile(filepath.Join(dir, "config-local.yml"), []byte("exportDir: /local/exports\n"), 0o644))

		config, err := ConfigureFrom(dir)
		require.NoError(t, err)
		assert.Equal(t, "/local/exports", config.ExportDir)
		assert.Empty(t, config.Vendors)
	})

	t.Run("defaults without a config file", func(t *testing.T) {
		config, err := ConfigureFrom(t.TempDir())
		require.NoError(t, err)

		wd, err := os.Getwd()
		require.NoError(t, err)
		assert.Equal(t, filepath.Join(wd, "exports"), config.ExportDir)
		assert.Equal(t, filepath.Join(wd, "exports", "normalized_combined.csv"), config.CombinedPath)
		assert.Equal(t, 800*time.Millisecond, config.Scrape.Delay)
		assert.Equal(t, 50, config.Scrape.MaxPages)
		assert.False(t, config.Db.Enabled)
	})

	t.Run("environment overrides", func(t *testing.T) {
		dir := t.TempDir()
		require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yml"), []byte(sampleConfig), 0o644))
		t.Setenv("db_port", "3307")
		t.Setenv("db_enabled", "false")
		t.Setenv("combined_path", "/shared/normalized_combined.csv")
		t.Setenv("s3_region", "me-central-1")
		t.Setenv("s3_bucket", "catalog-archive")

		config, err := ConfigureFrom(dir)
		require.NoError(t, err)
		assert.Equal(t, "3307", config.Port)
		assert.False(t, config.Db.Enabled)
		assert.Equal(t, "/shared/normalized_combined.csv", config.CombinedPath)
		assert.True(t, config.S3.Enabled())
	})

	t.Run("broken config file", func(t *testing.T) {
		dir := t.TempDir()
		require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yml"), []byte("vendors: [\n"), 0o644))
		_, err := ConfigureFrom(dir)
		assert.Error(t, err)
	})
}

func TestVendorsNamed(t *testing.T) {
	config := Config{Vendors: []Vendor{{Name: "a"}, {Name: "b"}}}

	all, err := config.VendorsNamed(nil)
	require.NoError(t, err)
	assert.Len(t, all, 2)

	some, err := config.VendorsNamed([]string{"b"})
	require.NoError(t, err)
	assert.Equal(t, []Vendor{{Name: "b"}}, some)

	_, err = config.VendorsNamed([]string{"c"})
	assert.Error(t, err)
}

func TestDSN(t *testing.T) {
	d := Db{Host: "h", Port: "3306", DbName: "n", User: "u", Password: "p"}
	assert.Equal(t, "u:p@(h:3306)/n?charset=utf8mb4&parseTime=True&loc=UTC", d.DSN())
}
