// Copyright (c) 2025 Neomantra Corp

package hydra

import (
	"bufio"
	"io"

	"github.com/valyala/fastjson"
)

// BarScanner scans newline-delimited JSON bar records of the form
//
//	{"date": "2000-06-05", "open": 101, "close": 101.5}
type BarScanner struct {
	scanner *bufio.Scanner
	parser  fastjson.Parser
}

// NewBarScanner creates a BarScanner over the reader.
func NewBarScanner(r io.Reader) *BarScanner {
	return &BarScanner{
		scanner: bufio.NewScanner(r),
	}
}

// Next advances to the next record, skipping blank lines.  Returns false on
// error or end of data; call Error to distinguish.
func (s *BarScanner) Next() bool {
	for s.scanner.Scan() {
		if len(s.scanner.Bytes()) != 0 {
			return true
		}
	}
	return false
}

// Error returns the last error from Next.
func (s *BarScanner) Error() error {
	return s.scanner.Err()
}

// Bar parses the current record.
func (s *BarScanner) Bar() (*Bar, error) {
	val, err := s.parser.ParseBytes(s.scanner.Bytes())
	if err != nil {
		return nil, err
	}
	return &Bar{
		Date:  string(val.GetStringBytes("date")),
		Open:  val.GetFloat64("open"),
		Close: val.GetFloat64("close"),
	}, nil
}

// AssetFromJSON reads newline-delimited JSON bar records into an Asset.
func AssetFromJSON(r io.Reader, assetID, exchangeID, brokerID string, warmup int) (*Asset, error) {
	var bars []*Bar
	scanner := NewBarScanner(r)
	for scanner.Next() {
		bar, err := scanner.Bar()
		if err != nil {
			return nil, err
		}
		bars = append(bars, bar)
	}
	if err := scanner.Error(); err != nil {
		return nil, err
	}
	return AssetFromBars(assetID, exchangeID, brokerID, warmup, bars)
}
