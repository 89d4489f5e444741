package domain

import "time"

// Kline represents a single candlestick as returned by the klines endpoint.
// Times are epoch milliseconds, exactly as the exchange reports them.
type Kline struct {
	OpenTime                 int64   // Start of the interval (epoch ms)
	Open                     float64 // Opening price
	High                     float64 // Highest price
	Low                      float64 // Lowest price
	Close                    float64 // Closing price
	Volume                   float64 // Base asset volume
	CloseTime                int64   // End of the interval (epoch ms)
	QuoteAssetVolume         float64 // Quote asset volume
	NumberOfTrades           int32   // Trades executed during the interval
	TakerBuyBaseAssetVolume  float64 // Taker buy base asset volume
	TakerBuyQuoteAssetVolume float64 // Taker buy quote asset volume
	Ignore                   float64 // Reserved by the exchange, decoded anyway
}

// OpenAt returns OpenTime as a UTC time.
func (k Kline) OpenAt() time.Time {
	return time.UnixMilli(k.OpenTime).UTC()
}

// CloseAt returns CloseTime as a UTC time.
func (k Kline) CloseAt() time.Time {
	return time.UnixMilli(k.CloseTime).UTC()
}

// Canonical field names, in wire position order.
const (
	FieldOpenTime                 = "open_time"
	FieldOpen                     = "open"
	FieldHigh                     = "high"
	FieldLow                      = "low"
	FieldClose                    = "close"
	FieldVolume                   = "volume"
	FieldCloseTime                = "close_time"
	FieldQuoteAssetVolume         = "quote_asset_volume"
	FieldNumberOfTrades           = "number_of_trades"
	FieldTakerBuyBaseAssetVolume  = "taker_buy_base_asset_volume"
	FieldTakerBuyQuoteAssetVolume = "taker_buy_quote_asset_volume"
	FieldIgnore                   = "ignore"
)

// KlineFields lists the field names in wire position order. Position N of a
// raw row always holds KlineFields[N].
var KlineFields = [...]string{
	FieldOpenTime,
	FieldOpen,
	FieldHigh,
	FieldLow,
	FieldClose,
	FieldVolume,
	FieldCloseTime,
	FieldQuoteAssetVolume,
	FieldNumberOfTrades,
	FieldTakerBuyBaseAssetVolume,
	FieldTakerBuyQuoteAssetVolume,
	FieldIgnore,
}

// KlineFieldCount is the number of positional elements in a raw row.
const KlineFieldCount = len(KlineFields)

// RawRow is one undecoded kline: positional, heterogeneously typed JSON values.
type RawRow []any

// RawResponse is the klines endpoint body as decoded JSON, rows in source order.
type RawResponse []RawRow
