package scyllaport

import (
	"testing"

	"github.com/cdc-go/scyllacdc/internal/change"
	"github.com/stretchr/testify/require"
)

func TestMapOperation(t *testing.T) {
	cases := []struct {
		in   scyllaOperation
		want change.Operation
	}{
		{opInsert, change.OperationInsert},
		{opUpdate, change.OperationUpdate},
		{opRowDelete, change.OperationDelete},
		{opPartitionDelete, change.OperationDelete},
		{opPreImage, change.OperationPreImage},
		{opPostImage, change.OperationPostImage},
		{scyllaOperation(99), change.OperationUnknown},
	}
	for _, c := range cases {
		require.Equal(t, c.want, mapOperation(c.in))
	}
}

func TestIsDeletedMarkerColumn(t *testing.T) {
	require.True(t, isDeletedMarkerColumn("cdc$deleted_name"))
	require.False(t, isDeletedMarkerColumn("name"))
	require.False(t, isDeletedMarkerColumn("cdc$deleted_"[:len("cdc$deleted_")-1]))
}

func TestIsMetaColumn(t *testing.T) {
	require.True(t, isMetaColumn("cdc$time"))
	require.True(t, isMetaColumn("cdc$stream_id"))
	require.False(t, isMetaColumn("name"))
}

func TestParseCDCOptionsTTL(t *testing.T) {
	ttl, err := parseCDCOptionsTTL([]byte("preimage=false,postimage=false,ttl=86400"))
	require.NoError(t, err)
	require.Equal(t, int64(86400), ttl)

	_, err = parseCDCOptionsTTL([]byte("preimage=false"))
	require.Error(t, err)

	_, err = parseCDCOptionsTTL([]byte("ttl=not-a-number"))
	require.Error(t, err)
}
