// Copyright (c) 2025 Neomantra Corp

package hydra

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/gocarina/gocsv"
)

// Bar is one row of a bar file: an ISO 8601 date plus OPEN and CLOSE features.
type Bar struct {
	Date  string  `csv:"DATE" json:"date"`
	Open  float64 `csv:"OPEN" json:"open"`
	Close float64 `csv:"CLOSE" json:"close"`
}

// AssetFromBars builds an Asset with OPEN and CLOSE columns from bar rows.
func AssetFromBars(assetID, exchangeID, brokerID string, warmup int, bars []*Bar) (*Asset, error) {
	asset := NewAsset(assetID, exchangeID, brokerID, warmup)
	if err := asset.LoadHeaders([]string{ColumnOpen, ColumnClose}); err != nil {
		return nil, err
	}
	values := make([]float64, 0, 2*len(bars))
	timestamps := make([]int64, 0, len(bars))
	for _, bar := range bars {
		ts, err := ParseDatetime(bar.Date)
		if err != nil {
			return nil, err
		}
		timestamps = append(timestamps, ts)
		values = append(values, bar.Open, bar.Close)
	}
	if err := asset.LoadData(values, timestamps, len(bars), 2, false); err != nil {
		return nil, err
	}
	return asset, nil
}

// AssetFromCSV reads a DATE,OPEN,CLOSE bar file into an Asset.
func AssetFromCSV(path, assetID, exchangeID, brokerID string, warmup int) (*Asset, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	var bars []*Bar
	if err := gocsv.UnmarshalFile(file, &bars); err != nil {
		return nil, err
	}
	return AssetFromBars(assetID, exchangeID, brokerID, warmup, bars)
}

// AssetIDFromPath derives an asset id from a bar file's base name.
func AssetIDFromPath(path string) string {
	base := filepath.Base(path)
	return strings.TrimSuffix(base, filepath.Ext(base))
}
