// market/instruments.go
package market

// InstrumentMeta carries the static contract parameters the execution
// simulator and risk governor need. Loaded once at startup; read-only after.
type InstrumentMeta struct {
	Symbol           string
	ContractSize     float64 // units of the underlying per 1.0 lot
	Leverage         float64
	TickSize         float64
	Spread           float64 // full spread, paid on entry against the trader
	CommissionPerLot float64 // charged on close, account currency
	MinSize          float64
	MaxSize          float64
	SizeStep         float64
	MarginBuffer     float64 // fraction of equity held back from margin-based sizing
}

// Instruments is the built-in contract table. Config may override or extend it.
var Instruments = map[string]InstrumentMeta{
	"XAUUSD": {
		Symbol:           "XAUUSD",
		ContractSize:     100,
		Leverage:         100,
		TickSize:         0.01,
		Spread:           0.30,
		CommissionPerLot: 7.0,
		MinSize:          0.01,
		MaxSize:          100.0,
		SizeStep:         0.01,
		MarginBuffer:     0.05,
	},
	"MCXGOLD": {
		Symbol:           "MCXGOLD",
		ContractSize:     10,
		Leverage:         50,
		TickSize:         1.0,
		Spread:           5.0,
		CommissionPerLot: 40.0,
		MinSize:          1,
		MaxSize:          50,
		SizeStep:         1,
		MarginBuffer:     0.05,
	},
}

// Lookup returns the metadata for symbol from the built-in table.
func Lookup(symbol string) (InstrumentMeta, bool) {
	meta, ok := Instruments[symbol]
	return meta, ok
}
