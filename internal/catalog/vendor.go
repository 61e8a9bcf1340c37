package catalog

import (
	"path/filepath"
	"strings"
)

const (
	CategoryCase  = "Case"
	CategoryGPU   = "GPU"
	CategoryCPU   = "CPU"
	CategoryOther = "Other"
)

// dateSuffixLen is len("_2006-01-02").
const dateSuffixLen = 11

// VendorKey derives the vendor/category key from an export file name:
// directory and extension are dropped, then one trailing _YYYY-MM-DD.
func VendorKey(fileName string) string {
	key, _, _ := SplitDateSuffix(Stem(fileName))
	return key
}

// Stem is the base file name without its extension.
func Stem(fileName string) string {
	base := filepath.Base(fileName)
	return strings.TrimSuffix(base, filepath.Ext(base))
}

// SplitDateSuffix splits "laifai_cpu_2025-06-01" into "laifai_cpu" and
// "2025-06-01". When the stem does not end in _YYYY-MM-DD it is returned
// unchanged with ok == false.
func SplitDateSuffix(stem string) (key string, date string, ok bool) {
	if len(stem) < dateSuffixLen {
		return stem, "", false
	}
	suffix := stem[len(stem)-dateSuffixLen:]
	for i := 0; i < len(suffix); i++ {
		c := suffix[i]
		switch i {
		case 0:
			if c != '_' {
				return stem, "", false
			}
		case 5, 8:
			if c != '-' {
				return stem, "", false
			}
		default:
			if c < '0' || c > '9' {
				return stem, "", false
			}
		}
	}
	return stem[:len(stem)-dateSuffixLen], suffix[1:], true
}

// Category classifies a vendor key: *_cases, *_gpu, *_cpu*, anything else.
func Category(vendorKey string) string {
	k := strings.ToLower(vendorKey)
	switch {
	case strings.HasSuffix(k, "_cases"):
		return CategoryCase
	case strings.HasSuffix(k, "_gpu"):
		return CategoryGPU
	case strings.Contains(k, "_cpu"):
		return CategoryCPU
	}
	return CategoryOther
}
