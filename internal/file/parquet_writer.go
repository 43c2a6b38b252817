// Copyright (c) 2025 Neomantra Corp

package file

import (
	"fmt"

	"github.com/NimbleMarkets/hydra-go"
	"github.com/apache/arrow-go/v18/parquet"
	"github.com/apache/arrow-go/v18/parquet/compress"
	pqfile "github.com/apache/arrow-go/v18/parquet/file"
	pqschema "github.com/apache/arrow-go/v18/parquet/schema"
)

// WriteOrderHistoryAsParquet writes the engine's order record stream to a
// Parquet file.
func WriteOrderHistoryAsParquet(h *hydra.Hydra, destFile string) error {
	outfile, outfileCloser, err := hydra.MakeCompressedWriter(destFile, false)
	if err != nil {
		return fmt.Errorf("failed to create writer: %w", err)
	}
	defer outfileCloser()

	pwProperties := parquet.NewWriterProperties(
		parquet.WithVersion(parquet.V2_LATEST),
		parquet.WithCompression(compress.Codecs.Snappy))

	pw := pqfile.NewParquetWriter(outfile, ParquetGroupNode_OrderRecord(), pqfile.WithWriterProps(pwProperties))
	defer pw.Close()

	rgw := pw.AppendBufferedRowGroup()
	for _, record := range h.GetOrderHistory() {
		if err := ParquetWriteRow_OrderRecord(rgw, &record); err != nil {
			return err
		}
	}
	rgw.Close()

	if err := pw.FlushWithFooter(); err != nil {
		return fmt.Errorf("failed to flush: %w", err)
	}
	return nil
}

// WriteValueHistoryAsParquet writes every portfolio's per-tick (cash, nlv)
// series to a Parquet file.
func WriteValueHistoryAsParquet(h *hydra.Hydra, destFile string) error {
	outfile, outfileCloser, err := hydra.MakeCompressedWriter(destFile, false)
	if err != nil {
		return fmt.Errorf("failed to create writer: %w", err)
	}
	defer outfileCloser()

	pwProperties := parquet.NewWriterProperties(
		parquet.WithVersion(parquet.V2_LATEST),
		parquet.WithCompression(compress.Codecs.Snappy))

	pw := pqfile.NewParquetWriter(outfile, ParquetGroupNode_ValueRecord(), pqfile.WithWriterProps(pwProperties))
	defer pw.Close()

	rgw := pw.AppendBufferedRowGroup()
	visitor := &valueParquetVisitor{rgw: rgw}
	if err := h.VisitHistory(visitor); err != nil {
		return err
	}
	rgw.Close()

	if err := pw.FlushWithFooter(); err != nil {
		return fmt.Errorf("failed to flush: %w", err)
	}
	return nil
}

// valueParquetVisitor writes only the value records of a history stream.
type valueParquetVisitor struct {
	hydra.NullVisitor
	rgw pqfile.BufferedRowGroupWriter
}

func (v *valueParquetVisitor) OnValue(record hydra.ValueRecord) error {
	return ParquetWriteRow_ValueRecord(v.rgw, &record)
}

///////////////////////////////////////////////////////////////////////////////

// ParquetGroupNode_OrderRecord returns the Parquet Schema's Group Node for OrderRecord.
//
// optional int64 field_id=-1 fill_time (Timestamp(isAdjustedToUTC=true, timeUnit=nanoseconds));
// optional binary field_id=-1 asset_id (String);
// optional binary field_id=-1 portfolio_id (String);
// optional double field_id=-1 units;
// optional binary field_id=-1 strategy_id (String);
// optional binary field_id=-1 order_type (String);
// optional binary field_id=-1 order_state (String);
// optional double field_id=-1 average_price;
// optional int64 field_id=-1 order_id;
// optional int64 field_id=-1 trade_id;
// optional binary field_id=-1 exchange_id (String);
// optional binary field_id=-1 broker_id (String);
func ParquetGroupNode_OrderRecord() *pqschema.GroupNode {
	return pqschema.MustGroup(pqschema.NewGroupNode("schema", parquet.Repetitions.Required, pqschema.FieldList{
		pqschema.MustPrimitive(pqschema.NewPrimitiveNodeLogical("fill_time", parquet.Repetitions.Optional, pqschema.NewTimestampLogicalType(true, pqschema.TimeUnitNanos), parquet.Types.Int64, 0, -1)),
		pqschema.MustPrimitive(pqschema.NewPrimitiveNodeConverted("asset_id", parquet.Repetitions.Optional, parquet.Types.ByteArray, pqschema.ConvertedTypes.UTF8, 0, 0, 0, -1)),
		pqschema.MustPrimitive(pqschema.NewPrimitiveNodeConverted("portfolio_id", parquet.Repetitions.Optional, parquet.Types.ByteArray, pqschema.ConvertedTypes.UTF8, 0, 0, 0, -1)),
		pqschema.NewFloat64Node("units", parquet.Repetitions.Optional, -1),
		pqschema.MustPrimitive(pqschema.NewPrimitiveNodeConverted("strategy_id", parquet.Repetitions.Optional, parquet.Types.ByteArray, pqschema.ConvertedTypes.UTF8, 0, 0, 0, -1)),
		pqschema.MustPrimitive(pqschema.NewPrimitiveNodeConverted("order_type", parquet.Repetitions.Optional, parquet.Types.ByteArray, pqschema.ConvertedTypes.UTF8, 0, 0, 0, -1)),
		pqschema.MustPrimitive(pqschema.NewPrimitiveNodeConverted("order_state", parquet.Repetitions.Optional, parquet.Types.ByteArray, pqschema.ConvertedTypes.UTF8, 0, 0, 0, -1)),
		pqschema.NewFloat64Node("average_price", parquet.Repetitions.Optional, -1),
		pqschema.NewInt64Node("order_id", parquet.Repetitions.Optional, -1),
		pqschema.NewInt64Node("trade_id", parquet.Repetitions.Optional, -1),
		pqschema.MustPrimitive(pqschema.NewPrimitiveNodeConverted("exchange_id", parquet.Repetitions.Optional, parquet.Types.ByteArray, pqschema.ConvertedTypes.UTF8, 0, 0, 0, -1)),
		pqschema.MustPrimitive(pqschema.NewPrimitiveNodeConverted("broker_id", parquet.Repetitions.Optional, parquet.Types.ByteArray, pqschema.ConvertedTypes.UTF8, 0, 0, 0, -1)),
	}, -1))
}

func ParquetWriteRow_OrderRecord(rgw pqfile.BufferedRowGroupWriter, record *hydra.OrderRecord) error {
	// TODO: handle errors
	cw, _ := rgw.Column(0)
	cw.(*pqfile.Int64ColumnChunkWriter).WriteBatch([]int64{record.FillTime}, []int16{1}, nil)
	cw, _ = rgw.Column(1)
	cw.(*pqfile.ByteArrayColumnChunkWriter).WriteBatch([]parquet.ByteArray{parquet.ByteArray(record.AssetID)}, []int16{1}, nil)
	cw, _ = rgw.Column(2)
	cw.(*pqfile.ByteArrayColumnChunkWriter).WriteBatch([]parquet.ByteArray{parquet.ByteArray(record.PortfolioID)}, []int16{1}, nil)
	cw, _ = rgw.Column(3)
	cw.(*pqfile.Float64ColumnChunkWriter).WriteBatch([]float64{record.Units}, []int16{1}, nil)
	cw, _ = rgw.Column(4)
	cw.(*pqfile.ByteArrayColumnChunkWriter).WriteBatch([]parquet.ByteArray{parquet.ByteArray(record.StrategyID)}, []int16{1}, nil)
	cw, _ = rgw.Column(5)
	cw.(*pqfile.ByteArrayColumnChunkWriter).WriteBatch([]parquet.ByteArray{parquet.ByteArray(record.OrderType)}, []int16{1}, nil)
	cw, _ = rgw.Column(6)
	cw.(*pqfile.ByteArrayColumnChunkWriter).WriteBatch([]parquet.ByteArray{parquet.ByteArray(record.OrderState)}, []int16{1}, nil)
	cw, _ = rgw.Column(7)
	cw.(*pqfile.Float64ColumnChunkWriter).WriteBatch([]float64{record.AveragePrice}, []int16{1}, nil)
	cw, _ = rgw.Column(8)
	cw.(*pqfile.Int64ColumnChunkWriter).WriteBatch([]int64{record.OrderID}, []int16{1}, nil)
	cw, _ = rgw.Column(9)
	cw.(*pqfile.Int64ColumnChunkWriter).WriteBatch([]int64{record.TradeID}, []int16{1}, nil)
	cw, _ = rgw.Column(10)
	cw.(*pqfile.ByteArrayColumnChunkWriter).WriteBatch([]parquet.ByteArray{parquet.ByteArray(record.ExchangeID)}, []int16{1}, nil)
	cw, _ = rgw.Column(11)
	cw.(*pqfile.ByteArrayColumnChunkWriter).WriteBatch([]parquet.ByteArray{parquet.ByteArray(record.BrokerID)}, []int16{1}, nil)
	return nil
}

///////////////////////////////////////////////////////////////////////////////

// ParquetGroupNode_ValueRecord returns the Parquet Schema's Group Node for ValueRecord.
//
// optional binary field_id=-1 portfolio_id (String);
// optional int64 field_id=-1 time (Timestamp(isAdjustedToUTC=true, timeUnit=nanoseconds));
// optional double field_id=-1 cash;
// optional double field_id=-1 nlv;
func ParquetGroupNode_ValueRecord() *pqschema.GroupNode {
	return pqschema.MustGroup(pqschema.NewGroupNode("schema", parquet.Repetitions.Required, pqschema.FieldList{
		pqschema.MustPrimitive(pqschema.NewPrimitiveNodeConverted("portfolio_id", parquet.Repetitions.Optional, parquet.Types.ByteArray, pqschema.ConvertedTypes.UTF8, 0, 0, 0, -1)),
		pqschema.MustPrimitive(pqschema.NewPrimitiveNodeLogical("time", parquet.Repetitions.Optional, pqschema.NewTimestampLogicalType(true, pqschema.TimeUnitNanos), parquet.Types.Int64, 0, -1)),
		pqschema.NewFloat64Node("cash", parquet.Repetitions.Optional, -1),
		pqschema.NewFloat64Node("nlv", parquet.Repetitions.Optional, -1),
	}, -1))
}

func ParquetWriteRow_ValueRecord(rgw pqfile.BufferedRowGroupWriter, record *hydra.ValueRecord) error {
	// TODO: handle errors
	cw, _ := rgw.Column(0)
	cw.(*pqfile.ByteArrayColumnChunkWriter).WriteBatch([]parquet.ByteArray{parquet.ByteArray(record.PortfolioID)}, []int16{1}, nil)
	cw, _ = rgw.Column(1)
	cw.(*pqfile.Int64ColumnChunkWriter).WriteBatch([]int64{record.Time}, []int16{1}, nil)
	cw, _ = rgw.Column(2)
	cw.(*pqfile.Float64ColumnChunkWriter).WriteBatch([]float64{record.Cash}, []int16{1}, nil)
	cw, _ = rgw.Column(3)
	cw.(*pqfile.Float64ColumnChunkWriter).WriteBatch([]float64{record.NLV}, []int16{1}, nil)
	return nil
}
