// Copyright (c) 2025 Neomantra Corp

package file

import (
	"encoding/json"
	"io"

	"github.com/NimbleMarkets/hydra-go"
)

// WriteHistoryAsJson streams the engine's order, trade, position, and value
// history records to the writer as newline-delimited JSON.
func WriteHistoryAsJson(h *hydra.Hydra, writer io.Writer) error {
	return h.VisitHistory(NewJsonWriterVisitor(writer))
}

////////////////////////////////////////////////////////////////////////////////

// WriteAsJson writes a value marshalled as JSON to the writer, returning any error.
func WriteAsJson[T any](val *T, writer io.Writer) error {
	jstr, err := json.Marshal(val)
	if err != nil {
		return err
	}
	_, err = writer.Write(jstr)
	if err != nil {
		return err
	}
	_, err = writer.Write([]byte{'\n'})
	return err
}

////////////////////////////////////////////////////////////////////////////////

// JsonWriterVisitor implements the hydra.Visitor interface, marshalling every
// history record as JSON to its Writer.
type JsonWriterVisitor struct {
	writer io.Writer
}

// NewJsonWriterVisitor creates a new JsonWriterVisitor with the given writer.
func NewJsonWriterVisitor(writer io.Writer) *JsonWriterVisitor {
	return &JsonWriterVisitor{writer: writer}
}

func (v *JsonWriterVisitor) OnOrder(record hydra.OrderRecord) error {
	return WriteAsJson(&record, v.writer)
}

func (v *JsonWriterVisitor) OnTrade(record hydra.TradeRecord) error {
	return WriteAsJson(&record, v.writer)
}

func (v *JsonWriterVisitor) OnPosition(record hydra.PositionRecord) error {
	return WriteAsJson(&record, v.writer)
}

func (v *JsonWriterVisitor) OnValue(record hydra.ValueRecord) error {
	return WriteAsJson(&record, v.writer)
}

func (v *JsonWriterVisitor) OnStreamEnd() error {
	return nil
}
