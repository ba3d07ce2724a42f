package storage

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/truebit/federation/wire"
)

func TestInvoiceReportsConverge(t *testing.T) {
	s := openTestStore(t)
	t0 := time.UnixMilli(1_700_000_000_000)

	msg := &wire.InvoiceCreated{
		InvoiceIDHash:       "eeeeeeee",
		TaskIDHash:          "aaaaaaaa",
		ChainID:             "1",
		StepsComputedBucket: "1M-10M",
		MemoryUsedBucket:    "100M-1G",
		Operation:           "verify",
	}
	require.NoError(t, s.UpsertInvoice(msg, t0))
	require.NoError(t, s.UpsertInvoice(msg, t0.Add(time.Second)))

	inv, err := s.GetInvoice("eeeeeeee")
	require.NoError(t, err)
	require.EqualValues(t, 2, inv.ReportingNodes)
	require.Equal(t, "aaaaaaaa", inv.TaskIDHash)
	require.Equal(t, "verify", inv.Operation)
	require.Equal(t, t0.UnixMilli(), inv.FirstSeenAt.UnixMilli())
	require.Equal(t, t0.Add(time.Second).UnixMilli(), inv.LastSeenAt.UnixMilli())

	n, err := s.InvoiceCount()
	require.NoError(t, err)
	require.EqualValues(t, 1, n)
}

func TestPruneInvoices(t *testing.T) {
	s := openTestStore(t)
	t0 := time.UnixMilli(1_700_000_000_000)

	require.NoError(t, s.UpsertInvoice(&wire.InvoiceCreated{InvoiceIDHash: "eeeeeeee"}, t0))
	require.NoError(t, s.UpsertInvoice(&wire.InvoiceCreated{InvoiceIDHash: "ffffffff"}, t0.AddDate(0, 0, 91)))

	pruned, err := s.PruneInvoices(t0.AddDate(0, 0, 1))
	require.NoError(t, err)
	require.EqualValues(t, 1, pruned)

	_, err = s.GetInvoice("eeeeeeee")
	require.ErrorIs(t, err, ErrNotFound)
}
