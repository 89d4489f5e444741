package decoder

import (
	"encoding/json"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"klinefetch/internal/domain"
	"klinefetch/internal/ports"
)

const sampleRow = `[1700000000000, "100.5", "101.0", "99.8", "100.9", "10.0", 1700003599999, "1005.0", 42, "5.0", "502.5", "0"]`

// parseRows decodes a JSON body the same way the fetcher does.
func parseRows(t *testing.T, body string) domain.RawResponse {
	t.Helper()
	dec := json.NewDecoder(strings.NewReader(body))
	dec.UseNumber()
	var rows domain.RawResponse
	require.NoError(t, dec.Decode(&rows))
	return rows
}

func rowJSON(openTime int64) string {
	return fmt.Sprintf(`[%d, "1.0", "2.0", "0.5", "1.5", "3.0", %d, "4.5", 7, "1.0", "1.5", "0"]`, openTime, openTime+59999)
}

func TestDecodeRow_PositionalMapping(t *testing.T) {
	rows := parseRows(t, "["+sampleRow+"]")

	k, err := DecodeRow(rows[0])
	require.NoError(t, err)

	assert.Equal(t, domain.Kline{
		OpenTime:                 1700000000000,
		Open:                     100.5,
		High:                     101.0,
		Low:                      99.8,
		Close:                    100.9,
		Volume:                   10.0,
		CloseTime:                1700003599999,
		QuoteAssetVolume:         1005.0,
		NumberOfTrades:           42,
		TakerBuyBaseAssetVolume:  5.0,
		TakerBuyQuoteAssetVolume: 502.5,
		Ignore:                   0.0,
	}, k)
}

func TestDecodeRow_AcceptsNativeNumbers(t *testing.T) {
	// Rows decoded without UseNumber carry float64 numbers.
	var rows domain.RawResponse
	require.NoError(t, json.Unmarshal([]byte("["+sampleRow+"]"), &rows))

	k, err := DecodeRow(rows[0])
	require.NoError(t, err)
	assert.Equal(t, int64(1700000000000), k.OpenTime)
	assert.Equal(t, int32(42), k.NumberOfTrades)

	k, err = DecodeRow(domain.RawRow{int64(1), "1", "1", "1", "1", "1", 2, "1", int32(3), "1", "1", "1"})
	require.NoError(t, err)
	assert.Equal(t, int64(2), k.CloseTime)
	assert.Equal(t, int32(3), k.NumberOfTrades)
}

func TestDecodeRow_FloatText(t *testing.T) {
	tests := []struct {
		name    string
		text    string
		want    float64
		wantErr bool
	}{
		{name: "plain", text: "42.25", want: 42.25},
		{name: "negative", text: "-0.5", want: -0.5},
		{name: "exponent", text: "1.5e2", want: 150},
		{name: "integer text", text: "7", want: 7},
		{name: "empty", text: "", wantErr: true},
		{name: "letters", text: "abc", wantErr: true},
		{name: "nan", text: "NaN", wantErr: true},
		{name: "two points", text: "1.2.3", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			row := domain.RawRow{json.Number("1"), tt.text, "1", "1", "1", "1", json.Number("2"), "1", json.Number("3"), "1", "1", "1"}
			k, err := DecodeRow(row)
			if tt.wantErr {
				require.ErrorIs(t, err, ports.ErrMalformedRow)
				assert.Contains(t, err.Error(), "open")
				return
			}
			require.NoError(t, err)
			assert.InDelta(t, tt.want, k.Open, 1e-12)
		})
	}
}

func TestDecodeRow_Malformed(t *testing.T) {
	tests := []struct {
		name      string
		body      string
		wantField string
	}{
		{
			name:      "eleven elements",
			body:      `[1700000000000, "100.5", "101.0", "99.8", "100.9", "10.0", 1700003599999, "1005.0", 42, "5.0", "502.5"]`,
			wantField: "expected 12 fields, got 11",
		},
		{
			name:      "thirteen elements",
			body:      `[1700000000000, "100.5", "101.0", "99.8", "100.9", "10.0", 1700003599999, "1005.0", 42, "5.0", "502.5", "0", "extra"]`,
			wantField: "expected 12 fields, got 13",
		},
		{
			name:      "open is a number",
			body:      `[1700000000000, 100.5, "101.0", "99.8", "100.9", "10.0", 1700003599999, "1005.0", 42, "5.0", "502.5", "0"]`,
			wantField: "field 1 (open)",
		},
		{
			name:      "open time is a string",
			body:      `["1700000000000", "100.5", "101.0", "99.8", "100.9", "10.0", 1700003599999, "1005.0", 42, "5.0", "502.5", "0"]`,
			wantField: "field 0 (open_time)",
		},
		{
			name:      "close time is fractional",
			body:      `[1700000000000, "100.5", "101.0", "99.8", "100.9", "10.0", 1700003599999.5, "1005.0", 42, "5.0", "502.5", "0"]`,
			wantField: "field 6 (close_time)",
		},
		{
			name:      "trade count is null",
			body:      `[1700000000000, "100.5", "101.0", "99.8", "100.9", "10.0", 1700003599999, "1005.0", null, "5.0", "502.5", "0"]`,
			wantField: "field 8 (number_of_trades)",
		},
		{
			name:      "trade count overflows int32",
			body:      `[1700000000000, "100.5", "101.0", "99.8", "100.9", "10.0", 1700003599999, "1005.0", 2147483648, "5.0", "502.5", "0"]`,
			wantField: "overflows int32",
		},
		{
			name:      "ignore is unparsable",
			body:      `[1700000000000, "100.5", "101.0", "99.8", "100.9", "10.0", 1700003599999, "1005.0", 42, "5.0", "502.5", "x"]`,
			wantField: "field 11 (ignore)",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rows := parseRows(t, "["+tt.body+"]")
			_, err := DecodeRow(rows[0])
			require.ErrorIs(t, err, ports.ErrMalformedRow)
			assert.Contains(t, err.Error(), tt.wantField)
		})
	}
}

func TestDecodeRow_TradeCountAtInt32Bounds(t *testing.T) {
	row := domain.RawRow{json.Number("1"), "1", "1", "1", "1", "1", json.Number("2"), "1", json.Number("2147483647"), "1", "1", "1"}
	k, err := DecodeRow(row)
	require.NoError(t, err)
	assert.Equal(t, int32(2147483647), k.NumberOfTrades)
}

func TestDecode_PreservesOrder(t *testing.T) {
	const n = 50
	parts := make([]string, n)
	for i := range parts {
		parts[i] = rowJSON(1700000000000 + int64(i)*60000)
	}
	rows := parseRows(t, "["+strings.Join(parts, ",")+"]")

	klines, err := Decode(rows)
	require.NoError(t, err)
	require.Len(t, klines, n)
	for i, k := range klines {
		assert.Equal(t, 1700000000000+int64(i)*60000, k.OpenTime)
	}
}

func TestDecode_AllOrNothing(t *testing.T) {
	parts := make([]string, 0, 1000)
	for i := 0; i < 999; i++ {
		parts = append(parts, rowJSON(int64(i)*60000))
	}
	// One short row in the middle of an otherwise valid batch.
	bad := `[1, "1", "1", "1", "1", "1", 2, "1", 3, "1", "1"]`
	parts = append(parts[:500], append([]string{bad}, parts[500:]...)...)
	rows := parseRows(t, "["+strings.Join(parts, ",")+"]")

	klines, err := Decode(rows)
	require.ErrorIs(t, err, ports.ErrMalformedRow)
	assert.Nil(t, klines)
	assert.Contains(t, err.Error(), "row 500")
}

func TestDecode_Empty(t *testing.T) {
	klines, err := Decode(domain.RawResponse{})
	require.NoError(t, err)
	assert.Empty(t, klines)

	klines, err = Decode(nil)
	require.NoError(t, err)
	assert.Empty(t, klines)
}
