package ensemble

import (
	"encoding/binary"
	"fmt"
	"math"

	"github.com/efreitasn/marketsim/internal/domain"
)

// RecordSize is the encoded size of a Record.
const RecordSize = 12 * 8

// Record is the summary one replica reports to the coordinator.
//
// Wire format, 96 bytes, every field 8 bytes little-endian, integers as
// two's complement and floats as IEEE 754 bits:
//
//	 0 index
//	 8 elapsed_time          float
//	16 total_trades          int
//	24 total_volume          float
//	32 vwap                  float
//	40 avg_price             float
//	48 price_volatility      float
//	56 pending_buy_orders    int
//	64 pending_sell_orders   int
//	72 best_bid              float
//	80 best_ask              float
//	88 spread                float
type Record struct {
	Index int64                  `json:"index"`
	Stats domain.SimulationStats `json:"stats"`
}

// MarshalBinary encodes the record.
func (r Record) MarshalBinary() ([]byte, error) {
	return r.AppendBinary(make([]byte, 0, RecordSize))
}

// AppendBinary appends the encoded record to b.
func (r Record) AppendBinary(b []byte) ([]byte, error) {
	le := binary.LittleEndian
	s := r.Stats
	b = le.AppendUint64(b, uint64(r.Index))
	b = le.AppendUint64(b, math.Float64bits(s.ElapsedTime))
	b = le.AppendUint64(b, uint64(s.TotalTrades))
	b = le.AppendUint64(b, math.Float64bits(s.TotalVolume))
	b = le.AppendUint64(b, math.Float64bits(s.VWAP))
	b = le.AppendUint64(b, math.Float64bits(s.AvgPrice))
	b = le.AppendUint64(b, math.Float64bits(s.PriceVolatility))
	b = le.AppendUint64(b, uint64(s.PendingBuyOrders))
	b = le.AppendUint64(b, uint64(s.PendingSellOrders))
	b = le.AppendUint64(b, math.Float64bits(s.BestBid))
	b = le.AppendUint64(b, math.Float64bits(s.BestAsk))
	b = le.AppendUint64(b, math.Float64bits(s.Spread))
	return b, nil
}

// UnmarshalBinary decodes exactly RecordSize bytes.
func (r *Record) UnmarshalBinary(b []byte) error {
	if len(b) != RecordSize {
		return fmt.Errorf("ensemble record: got %d bytes, want %d", len(b), RecordSize)
	}
	le := binary.LittleEndian
	field := func(i int) uint64 { return le.Uint64(b[i*8:]) }
	f := func(i int) float64 { return math.Float64frombits(field(i)) }

	r.Index = int64(field(0))
	r.Stats = domain.SimulationStats{
		ElapsedTime:       f(1),
		TotalTrades:       int64(field(2)),
		TotalVolume:       f(3),
		VWAP:              f(4),
		AvgPrice:          f(5),
		PriceVolatility:   f(6),
		PendingBuyOrders:  int64(field(7)),
		PendingSellOrders: int64(field(8)),
		BestBid:           f(9),
		BestAsk:           f(10),
		Spread:            f(11),
	}
	return nil
}

// DecodeRecords splits a buffer of back-to-back records.
func DecodeRecords(buf []byte) ([]Record, error) {
	if len(buf)%RecordSize != 0 {
		return nil, fmt.Errorf("ensemble records: %d bytes is not a multiple of %d", len(buf), RecordSize)
	}
	out := make([]Record, len(buf)/RecordSize)
	for i := range out {
		if err := out[i].UnmarshalBinary(buf[i*RecordSize : (i+1)*RecordSize]); err != nil {
			return nil, err
		}
	}
	return out, nil
}
