package truburn

import (
	"context"
	"encoding/json"
	"fmt"
	"math/big"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	testToken = common.HexToAddress("0xf65B5C5104c4faFD4b709d9D60a185eAE063276c")
	deadAddr  = common.HexToAddress("0x000000000000000000000000000000000000dEaD")
	nullAddr  = common.HexToAddress("0x0000000000000000000000000000000000000000")
)

// stubIndexer fakes the Blockscout token-transfers endpoint. Pages are keyed
// by address and by the block_number continuation parameter, with "" naming
// the first page.
type stubIndexer struct {
	mu     sync.Mutex
	hits   map[string]int
	status map[string]int
	pages  map[string]map[string]transferPage
}

func newStubIndexer() *stubIndexer {
	return &stubIndexer{
		hits:   make(map[string]int),
		status: make(map[string]int),
		pages:  make(map[string]map[string]transferPage),
	}
}

func (s *stubIndexer) setPage(addr common.Address, cursorKey string, page transferPage) {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := strings.ToLower(addr.Hex())
	if s.pages[key] == nil {
		s.pages[key] = make(map[string]transferPage)
	}
	s.pages[key][cursorKey] = page
}

func (s *stubIndexer) setStatus(addr common.Address, status int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.status[strings.ToLower(addr.Hex())] = status
}

func (s *stubIndexer) requests(addr common.Address) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.hits[strings.ToLower(addr.Hex())]
}

func (s *stubIndexer) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()

	parts := strings.Split(r.URL.Path, "/")
	if len(parts) != 4 || parts[1] != "addresses" || parts[3] != "token-transfers" {
		http.NotFound(w, r)
		return
	}
	addr := strings.ToLower(parts[2])
	s.hits[addr]++

	if status := s.status[addr]; status != 0 {
		w.WriteHeader(status)
		return
	}
	page, ok := s.pages[addr][r.URL.Query().Get("block_number")]
	if !ok {
		page = transferPage{Items: []transferItem{}}
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(page)
}

func stubTransfer(block int64, logIndex int64, from string, to common.Address, value string) transferItem {
	return transferItem{
		BlockNumber: block,
		Timestamp:   time.UnixMilli(1_700_000_000_000).Add(time.Duration(block) * time.Minute).UTC().Format(time.RFC3339),
		TxHash:      fakeTxHash(block, logIndex),
		LogIndex:    logIndex,
		From:        addressParam{Hash: from},
		To:          addressParam{Hash: to.Hex()},
		Total:       transferTotal{Value: value, Decimals: "18"},
	}
}

func fakeTxHash(block, logIndex int64) string {
	return fmt.Sprintf("0x%064x", block*1000+logIndex)
}

func TestClientQueryShape(t *testing.T) {
	var gotQuery string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotQuery = r.URL.RawQuery
		w.Write([]byte(`{"items": [], "next_page_params": null}`))
	}))
	defer srv.Close()

	c := NewClient(srv.URL, testToken)
	transfers, next, err := c.TokenTransfers(context.Background(), deadAddr, nil)
	require.NoError(t, err)
	assert.Empty(t, transfers)
	assert.Nil(t, next)
	assert.Contains(t, gotQuery, "type=ERC-20")
	assert.Contains(t, gotQuery, "token=0xf65B5C5104c4faFD4b709d9D60a185eAE063276c")
	assert.NotContains(t, gotQuery, "block_number")

	// With a cursor, the continuation parameters ride along.
	_, _, err = c.TokenTransfers(context.Background(), deadAddr, &PageCursor{BlockNumber: 42, Index: 7, ItemsCount: 50})
	require.NoError(t, err)
	assert.Contains(t, gotQuery, "block_number=42")
	assert.Contains(t, gotQuery, "index=7")
	assert.Contains(t, gotQuery, "items_count=50")
}

func TestClientParsesTransfers(t *testing.T) {
	stub := newStubIndexer()
	stub.setPage(deadAddr, "", transferPage{
		Items: []transferItem{
			stubTransfer(20, 3, "0x1111111111111111111111111111111111111111", deadAddr, "2500000000000000000"),
		},
		NextPageParams: &pageParams{BlockNumber: 20, Index: 3, ItemsCount: 50},
	})
	srv := httptest.NewServer(stub)
	defer srv.Close()

	c := NewClient(srv.URL, testToken)
	transfers, next, err := c.TokenTransfers(context.Background(), deadAddr, nil)
	require.NoError(t, err)
	require.Len(t, transfers, 1)

	tr := transfers[0]
	assert.EqualValues(t, 20, tr.BlockNumber)
	assert.EqualValues(t, 3, tr.LogIndex)
	assert.Equal(t, "0x1111111111111111111111111111111111111111", tr.From)
	assert.Equal(t, deadAddr.Hex(), tr.To)
	assert.Equal(t, "2500000000000000000", tr.Value.String())
	assert.Equal(t, 18, tr.Decimals)
	assert.False(t, tr.Timestamp.IsZero())

	require.NotNil(t, next)
	assert.EqualValues(t, 20, next.BlockNumber)
	assert.EqualValues(t, 3, next.Index)
}

func TestClientErrorStatus(t *testing.T) {
	stub := newStubIndexer()
	stub.setStatus(deadAddr, http.StatusTooManyRequests)
	srv := httptest.NewServer(stub)
	defer srv.Close()

	c := NewClient(srv.URL, testToken)
	_, _, err := c.TokenTransfers(context.Background(), deadAddr, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "429")
}

func TestClientMalformedValues(t *testing.T) {
	stub := newStubIndexer()
	stub.setPage(deadAddr, "", transferPage{
		Items: []transferItem{{
			BlockNumber: 5,
			Timestamp:   "not a timestamp",
			TxHash:      "0xaa",
			From:        addressParam{Hash: "0x11"},
			To:          addressParam{Hash: deadAddr.Hex()},
			Total:       transferTotal{Value: "not a number", Decimals: "lots"},
		}},
	})
	srv := httptest.NewServer(stub)
	defer srv.Close()

	c := NewClient(srv.URL, testToken)
	transfers, _, err := c.TokenTransfers(context.Background(), deadAddr, nil)
	require.NoError(t, err)
	require.Len(t, transfers, 1)
	assert.Zero(t, transfers[0].Value.Sign())
	assert.Equal(t, truDecimals, transfers[0].Decimals)
	assert.True(t, transfers[0].Timestamp.IsZero())
}

func TestFormatUnits(t *testing.T) {
	cases := []struct {
		value    string
		decimals int
		want     float64
	}{
		{"1000000000000000000", 18, 1.0},
		{"2500000000000000000", 18, 2.5},
		{"500", 2, 5.0},
		{"7", 0, 7.0},
		{"0", 18, 0.0},
	}
	for _, c := range cases {
		v, ok := new(big.Int).SetString(c.value, 10)
		require.True(t, ok)
		assert.Equal(t, c.want, formatUnits(v, c.decimals), "%s / 10^%d", c.value, c.decimals)
	}
	assert.Zero(t, formatUnits(nil, 18))
}
