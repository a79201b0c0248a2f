package scyllaport

import (
	"github.com/cdc-go/scyllacdc/internal/change"
	"github.com/cdc-go/scyllacdc/internal/window"
	"github.com/gocql/gocql"
	"github.com/pkg/errors"
)

// scyllaOperation mirrors the cdc$operation integer codes Scylla
// writes into every CDC log row.
type scyllaOperation int8

const (
	opPreImage            scyllaOperation = 0
	opUpdate              scyllaOperation = 1
	opInsert              scyllaOperation = 2
	opRowDelete           scyllaOperation = 3
	opPartitionDelete     scyllaOperation = 4
	opRangeDeleteStart    scyllaOperation = 5
	opRangeDeleteStartInc scyllaOperation = 6
	opRangeDeleteEnd      scyllaOperation = 7
	opRangeDeleteEndInc   scyllaOperation = 8
	opPostImage           scyllaOperation = 9
)

// decodeChangeID extracts the (streamID, time) identity and the
// row-level operation kind out of a decoded CDC log row.
func decodeChangeID(row map[string]interface{}) (change.ChangeID, change.Operation, error) {
	rawStream, ok := row["cdc$stream_id"].([]byte)
	if !ok || len(rawStream) != 16 {
		return change.ChangeID{}, change.OperationUnknown, errors.New("cdc log row missing cdc$stream_id")
	}
	var streamID change.StreamID
	copy(streamID[:], rawStream)

	rawTime, ok := row["cdc$time"].(gocql.UUID)
	if !ok {
		return change.ChangeID{}, change.OperationUnknown, errors.New("cdc log row missing cdc$time")
	}
	var t window.UUID
	copy(t[:], rawTime[:])

	op := change.OperationUnknown
	if rawOp, ok := row["cdc$operation"].(int8); ok {
		op = mapOperation(scyllaOperation(rawOp))
	}

	return change.ChangeID{StreamID: streamID, Time: t}, op, nil
}

func mapOperation(op scyllaOperation) change.Operation {
	switch op {
	case opInsert:
		return change.OperationInsert
	case opUpdate:
		return change.OperationUpdate
	case opRowDelete, opPartitionDelete, opRangeDeleteStart, opRangeDeleteStartInc,
		opRangeDeleteEnd, opRangeDeleteEndInc:
		return change.OperationDelete
	case opPreImage:
		return change.OperationPreImage
	case opPostImage:
		return change.OperationPostImage
	default:
		return change.OperationUnknown
	}
}
