package catalog

import (
	"strings"

	"github.com/cockroachdb/apd/v3"
)

var priceContext = apd.BaseContext.WithPrecision(34)

// Price is a nullable decimal. The zero value is a missing price, which is
// different from a listed price of 0.
type Price struct {
	value apd.Decimal
	valid bool
}

// ParsePrice returns a missing Price for empty, non-numeric or non-finite input.
func ParsePrice(s string) Price {
	s = strings.TrimSpace(s)
	if s == "" {
		return Price{}
	}
	var d apd.Decimal
	if _, _, err := d.SetString(s); err != nil {
		return Price{}
	}
	if d.Form != apd.Finite {
		return Price{}
	}
	return newPrice(&d)
}

func newPrice(d *apd.Decimal) Price {
	var reduced apd.Decimal
	reduced.Reduce(d)
	if reduced.IsZero() {
		reduced.Negative = false
	}
	return Price{value: reduced, valid: true}
}

func (p Price) Valid() bool {
	return p.valid
}

// String renders the price without exponent, or "" when missing.
func (p Price) String() string {
	if !p.valid {
		return ""
	}
	return p.value.Text('f')
}

// Cmp compares two valid prices. A missing price sorts before any valid one.
func (p Price) Cmp(other Price) int {
	switch {
	case !p.valid && !other.valid:
		return 0
	case !p.valid:
		return -1
	case !other.valid:
		return 1
	}
	return p.value.Cmp(&other.value)
}

func (p Price) Equal(other Price) bool {
	return p.Cmp(other) == 0
}

// Sub returns p - other; missing if either side is missing.
func (p Price) Sub(other Price) Price {
	if !p.valid || !other.valid {
		return Price{}
	}
	var result apd.Decimal
	priceContext.Sub(&result, &p.value, &other.value)
	return newPrice(&result)
}

// Percent returns pct percent of p; missing if p is missing.
func (p Price) Percent(pct int64) Price {
	if !p.valid {
		return Price{}
	}
	var result apd.Decimal
	priceContext.Mul(&result, &p.value, apd.New(pct, 0))
	priceContext.Quo(&result, &result, apd.New(100, 0))
	return newPrice(&result)
}

func (p Price) Abs() Price {
	if !p.valid {
		return Price{}
	}
	var result apd.Decimal
	result.Abs(&p.value)
	return newPrice(&result)
}

func (p Price) Float64() (float64, bool) {
	if !p.valid {
		return 0, false
	}
	f, err := p.value.Float64()
	if err != nil {
		return 0, false
	}
	return f, true
}

// Round returns p rounded half-up to places decimal places.
func (p Price) Round(places int32) Price {
	if !p.valid {
		return Price{}
	}
	var result apd.Decimal
	ctx := *priceContext
	ctx.Rounding = apd.RoundHalfUp
	if _, err := ctx.Quantize(&result, &p.value, -places); err != nil {
		return Price{}
	}
	return newPrice(&result)
}

// MeanStd returns the mean and sample standard deviation of the valid
// prices. The mean is missing without data and the deviation is missing
// with fewer than two prices.
func MeanStd(prices []Price) (mean, std Price) {
	var sum apd.Decimal
	var n int64
	for _, p := range prices {
		if !p.valid {
			continue
		}
		priceContext.Add(&sum, &sum, &p.value)
		n++
	}
	if n == 0 {
		return Price{}, Price{}
	}
	var m apd.Decimal
	priceContext.Quo(&m, &sum, apd.New(n, 0))
	mean = newPrice(&m)
	if n < 2 {
		return mean, Price{}
	}

	var squares, dev apd.Decimal
	for _, p := range prices {
		if !p.valid {
			continue
		}
		priceContext.Sub(&dev, &p.value, &m)
		priceContext.Mul(&dev, &dev, &dev)
		priceContext.Add(&squares, &squares, &dev)
	}
	var variance, s apd.Decimal
	priceContext.Quo(&variance, &squares, apd.New(n-1, 0))
	priceContext.Sqrt(&s, &variance)
	return mean, newPrice(&s)
}
