// Package chain provides read-only access to the deployment chain so
// operators can verify step evidence. The console never signs or sends
// transactions; it only checks that the transaction ids a pool carries
// actually landed.
package chain

import (
	"context"
	"math/big"
	"sync"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/ethereum/go-ethereum/rpc"
)

// Client wraps go-ethereum RPC and provides helper methods.
type Client struct {
	rpcClient *rpc.Client
	ethClient *ethclient.Client

	mu       sync.RWMutex
	receipts map[common.Hash]*types.Receipt
}

// NewClient creates a new chain client from the RPC URL.
func NewClient(ctx context.Context, rpcURL string) (*Client, error) {
	rpcClient, err := rpc.DialContext(ctx, rpcURL)
	if err != nil {
		return nil, err
	}

	return &Client{
		rpcClient: rpcClient,
		ethClient: ethclient.NewClient(rpcClient),
		receipts:  make(map[common.Hash]*types.Receipt),
	}, nil
}

// Close closes the underlying RPC client.
func (c *Client) Close() {
	if c.rpcClient != nil {
		c.rpcClient.Close()
	}
}

// GetChainID returns the chain ID.
func (c *Client) GetChainID(ctx context.Context) (*big.Int, error) {
	return c.ethClient.ChainID(ctx)
}

// TransactionReceipt returns the receipt for a transaction, using an
// in-memory cache. Mined receipts are immutable, so entries never
// expire; missing receipts are not cached since the transaction may
// still land.
func (c *Client) TransactionReceipt(ctx context.Context, hash common.Hash) (*types.Receipt, error) {
	c.mu.RLock()
	receipt, ok := c.receipts[hash]
	c.mu.RUnlock()
	if ok {
		return receipt, nil
	}

	receipt, err := c.ethClient.TransactionReceipt(ctx, hash)
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	c.receipts[hash] = receipt
	c.mu.Unlock()

	return receipt, nil
}
