// Package truburn tracks TRU token transfers into the burn addresses via a
// Blockscout-style indexer and folds their totals into published snapshots.
package truburn

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math/big"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"golang.org/x/time/rate"
)

const (
	// truDecimals is the TRU token precision. The indexer reports decimals
	// per transfer; this is the fallback and the basis for ledger-wide sums.
	truDecimals = 18

	// requestPace spaces indexer calls out so pagination over a deep
	// history stays friendly to the public API.
	requestPace = 200 * time.Millisecond

	requestTimeout = 10 * time.Second
)

// Client fetches ERC-20 transfer pages for one token from a Blockscout v2
// API. Calls are paced, so a single Client is safe to share across burn
// addresses.
type Client struct {
	base  string
	token common.Address
	httpc *http.Client
	pace  *rate.Limiter
}

// NewClient returns a client for the given API base, e.g.
// https://eth.blockscout.com/api/v2, querying transfers of token.
func NewClient(base string, token common.Address) *Client {
	return &Client{
		base:  base,
		token: token,
		httpc: &http.Client{Timeout: requestTimeout},
		pace:  rate.NewLimiter(rate.Every(requestPace), 1),
	}
}

// Transfer is one token transfer as reported by the indexer.
type Transfer struct {
	BlockNumber int64
	Timestamp   time.Time
	TxHash      string
	LogIndex    int64
	From        string
	To          string
	Value       *big.Int
	Decimals    int
}

// PageCursor is the indexer's continuation token. A nil cursor means the
// first (newest) page.
type PageCursor struct {
	BlockNumber int64
	Index       int64
	ItemsCount  int64
}

// Wire shapes of the Blockscout v2 token-transfers endpoint. Unknown fields
// abound in the real responses and are ignored.
type transferPage struct {
	Items          []transferItem `json:"items"`
	NextPageParams *pageParams    `json:"next_page_params"`
}

type pageParams struct {
	BlockNumber int64 `json:"block_number"`
	Index       int64 `json:"index"`
	ItemsCount  int64 `json:"items_count"`
}

type transferItem struct {
	BlockNumber int64         `json:"block_number"`
	Timestamp   string        `json:"timestamp"`
	TxHash      string        `json:"transaction_hash"`
	LogIndex    int64         `json:"log_index"`
	From        addressParam  `json:"from"`
	To          addressParam  `json:"to"`
	Total       transferTotal `json:"total"`
}

type addressParam struct {
	Hash string `json:"hash"`
}

type transferTotal struct {
	Value    string `json:"value"`
	Decimals string `json:"decimals"`
}

// TokenTransfers fetches one page of transfers touching addr, newest first.
// The returned cursor continues the walk; nil means the history is
// exhausted.
func (c *Client) TokenTransfers(ctx context.Context, addr common.Address, cursor *PageCursor) ([]Transfer, *PageCursor, error) {
	if err := c.pace.Wait(ctx); err != nil {
		return nil, nil, err
	}
	u, err := url.Parse(fmt.Sprintf("%s/addresses/%s/token-transfers", c.base, addr.Hex()))
	if err != nil {
		return nil, nil, err
	}
	q := u.Query()
	q.Set("token", c.token.Hex())
	q.Set("type", "ERC-20")
	if cursor != nil {
		q.Set("block_number", strconv.FormatInt(cursor.BlockNumber, 10))
		q.Set("index", strconv.FormatInt(cursor.Index, 10))
		q.Set("items_count", strconv.FormatInt(cursor.ItemsCount, 10))
	}
	u.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, nil, err
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpc.Do(req)
	if err != nil {
		return nil, nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		io.Copy(io.Discard, io.LimitReader(resp.Body, 1024))
		return nil, nil, fmt.Errorf("indexer returned status %d for %s", resp.StatusCode, addr.Hex())
	}
	var page transferPage
	if err := json.NewDecoder(resp.Body).Decode(&page); err != nil {
		return nil, nil, fmt.Errorf("decode transfer page: %w", err)
	}

	transfers := make([]Transfer, 0, len(page.Items))
	for _, item := range page.Items {
		transfers = append(transfers, item.parse())
	}
	var next *PageCursor
	if p := page.NextPageParams; p != nil {
		next = &PageCursor{BlockNumber: p.BlockNumber, Index: p.Index, ItemsCount: p.ItemsCount}
	}
	return transfers, next, nil
}

func (item *transferItem) parse() Transfer {
	t := Transfer{
		BlockNumber: item.BlockNumber,
		TxHash:      item.TxHash,
		LogIndex:    item.LogIndex,
		From:        item.From.Hash,
		To:          item.To.Hash,
		Decimals:    truDecimals,
	}
	if ts, err := time.Parse(time.RFC3339, item.Timestamp); err == nil {
		t.Timestamp = ts
	}
	if v, ok := new(big.Int).SetString(item.Total.Value, 10); ok {
		t.Value = v
	} else {
		t.Value = new(big.Int)
	}
	if d, err := strconv.Atoi(item.Total.Decimals); err == nil && d >= 0 {
		t.Decimals = d
	}
	return t
}

// formatUnits divides a raw token amount down to human units, matching the
// convention consumers of amountFormatted expect.
func formatUnits(value *big.Int, decimals int) float64 {
	if value == nil {
		return 0
	}
	if decimals <= 0 {
		f, _ := new(big.Float).SetInt(value).Float64()
		return f
	}
	den := new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(decimals)), nil)
	f, _ := new(big.Float).Quo(new(big.Float).SetInt(value), new(big.Float).SetInt(den)).Float64()
	return f
}
