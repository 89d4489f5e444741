// Package decoder turns raw positional kline rows into typed domain.Kline values.
package decoder

import (
	"encoding/json"
	"fmt"
	"math"

	"github.com/shopspring/decimal"

	"klinefetch/internal/domain"
	"klinefetch/internal/ports"
)

// Decode converts every raw row into a Kline, preserving order. Decoding is
// all-or-nothing: the first malformed row aborts and no klines are returned.
func Decode(rows domain.RawResponse) ([]domain.Kline, error) {
	klines := make([]domain.Kline, 0, len(rows))
	for i, row := range rows {
		k, err := DecodeRow(row)
		if err != nil {
			return nil, fmt.Errorf("row %d: %w", i, err)
		}
		klines = append(klines, k)
	}
	return klines, nil
}

// DecodeRow converts one 12-element raw row into a Kline.
func DecodeRow(row domain.RawRow) (domain.Kline, error) {
	if len(row) != domain.KlineFieldCount {
		return domain.Kline{}, fmt.Errorf("%w: expected %d fields, got %d", ports.ErrMalformedRow, domain.KlineFieldCount, len(row))
	}

	d := rowDecoder{row: row}
	k := domain.Kline{
		OpenTime:                 d.readInt64(0),
		Open:                     d.readFloat64(1),
		High:                     d.readFloat64(2),
		Low:                      d.readFloat64(3),
		Close:                    d.readFloat64(4),
		Volume:                   d.readFloat64(5),
		CloseTime:                d.readInt64(6),
		QuoteAssetVolume:         d.readFloat64(7),
		NumberOfTrades:           d.readInt32(8),
		TakerBuyBaseAssetVolume:  d.readFloat64(9),
		TakerBuyQuoteAssetVolume: d.readFloat64(10),
		Ignore:                   d.readFloat64(11),
	}
	if d.err != nil {
		return domain.Kline{}, d.err
	}
	return k, nil
}

// rowDecoder reads typed values out of a row and keeps the first error.
// Once an error is recorded every further read is a no-op returning zero.
type rowDecoder struct {
	row domain.RawRow
	err error
}

func (d *rowDecoder) fail(idx int, format string, args ...any) {
	msg := fmt.Sprintf(format, args...)
	d.err = fmt.Errorf("%w: field %d (%s): %s", ports.ErrMalformedRow, idx, domain.KlineFields[idx], msg)
}

func (d *rowDecoder) readInt64(idx int) int64 {
	if d.err != nil {
		return 0
	}
	v, err := toInt64(d.row[idx])
	if err != nil {
		d.fail(idx, "%v", err)
		return 0
	}
	return v
}

func (d *rowDecoder) readInt32(idx int) int32 {
	v := d.readInt64(idx)
	if d.err != nil {
		return 0
	}
	if v < math.MinInt32 || v > math.MaxInt32 {
		d.fail(idx, "value %d overflows int32", v)
		return 0
	}
	return int32(v)
}

func (d *rowDecoder) readFloat64(idx int) float64 {
	if d.err != nil {
		return 0
	}
	s, ok := d.row[idx].(string)
	if !ok {
		d.fail(idx, "expected JSON string, got %T", d.row[idx])
		return 0
	}
	v, err := parseDecimal(s)
	if err != nil {
		d.fail(idx, "%v", err)
		return 0
	}
	return v
}

// toInt64 accepts the numeric shapes encoding/json can produce: json.Number
// when the body was decoded with UseNumber, float64 otherwise. Go integer
// kinds are accepted for rows built in code.
func toInt64(v any) (int64, error) {
	switch n := v.(type) {
	case json.Number:
		i, err := n.Int64()
		if err != nil {
			return 0, fmt.Errorf("number %q is not an integer", n.String())
		}
		return i, nil
	case float64:
		if n != math.Trunc(n) || math.IsInf(n, 0) || n < math.MinInt64 || n >= math.MaxInt64 {
			return 0, fmt.Errorf("number %v is not an integer", n)
		}
		return int64(n), nil
	case int64:
		return n, nil
	case int:
		return int64(n), nil
	case int32:
		return int64(n), nil
	default:
		return 0, fmt.Errorf("expected JSON number, got %T", v)
	}
}

// parseDecimal parses plain decimal text (sign, digits, point, optional
// exponent). Special values such as "NaN" or "Inf" are rejected.
func parseDecimal(s string) (float64, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return 0, fmt.Errorf("invalid decimal %q", s)
	}
	f, _ := d.Float64()
	return f, nil
}
