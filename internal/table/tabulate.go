package table

import "klinefetch/internal/domain"

// Tabulate projects every kline field into its own column, in the order of
// domain.KlineFields. Row i of each column holds klines[i]. An empty input
// yields twelve empty columns.
func Tabulate(klines []domain.Kline) (*Table, error) {
	n := len(klines)
	var (
		openTime                 = make([]int64, n)
		open                     = make([]float64, n)
		high                     = make([]float64, n)
		low                      = make([]float64, n)
		closePrice               = make([]float64, n)
		volume                   = make([]float64, n)
		closeTime                = make([]int64, n)
		quoteAssetVolume         = make([]float64, n)
		numberOfTrades           = make([]int32, n)
		takerBuyBaseAssetVolume  = make([]float64, n)
		takerBuyQuoteAssetVolume = make([]float64, n)
		ignore                   = make([]float64, n)
	)
	for i, k := range klines {
		openTime[i] = k.OpenTime
		open[i] = k.Open
		high[i] = k.High
		low[i] = k.Low
		closePrice[i] = k.Close
		volume[i] = k.Volume
		closeTime[i] = k.CloseTime
		quoteAssetVolume[i] = k.QuoteAssetVolume
		numberOfTrades[i] = k.NumberOfTrades
		takerBuyBaseAssetVolume[i] = k.TakerBuyBaseAssetVolume
		takerBuyQuoteAssetVolume[i] = k.TakerBuyQuoteAssetVolume
		ignore[i] = k.Ignore
	}

	return New(
		NewInt64Column(domain.FieldOpenTime, openTime),
		NewFloat64Column(domain.FieldOpen, open),
		NewFloat64Column(domain.FieldHigh, high),
		NewFloat64Column(domain.FieldLow, low),
		NewFloat64Column(domain.FieldClose, closePrice),
		NewFloat64Column(domain.FieldVolume, volume),
		NewInt64Column(domain.FieldCloseTime, closeTime),
		NewFloat64Column(domain.FieldQuoteAssetVolume, quoteAssetVolume),
		NewInt32Column(domain.FieldNumberOfTrades, numberOfTrades),
		NewFloat64Column(domain.FieldTakerBuyBaseAssetVolume, takerBuyBaseAssetVolume),
		NewFloat64Column(domain.FieldTakerBuyQuoteAssetVolume, takerBuyQuoteAssetVolume),
		NewFloat64Column(domain.FieldIgnore, ignore),
	)
}
