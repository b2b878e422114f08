// Package bundler relays signed user operations to ERC-4337 bundlers over
// JSON-RPC and waits for their receipts.
package bundler

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/Maphikza/safesocial-coordinator.git/internal/logger"
	"github.com/Maphikza/safesocial-coordinator.git/internal/multisig"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/rpc"
)

var log = logger.CategoryBundler

const (
	DefaultPollInterval   = 2 * time.Second
	DefaultReceiptTimeout = 2 * time.Minute
)

// Client submits operations to one or more bundlers, trying each in turn
// until one accepts.
type Client struct {
	endpoints    []*rpc.Client
	pollInterval time.Duration
	timeout      time.Duration
}

var _ multisig.Submitter = (*Client)(nil)

type Option func(*Client)

func WithPollInterval(d time.Duration) Option {
	return func(c *Client) { c.pollInterval = d }
}

func WithReceiptTimeout(d time.Duration) Option {
	return func(c *Client) { c.timeout = d }
}

// Dial connects to every bundler URL.
func Dial(ctx context.Context, urls []string, opts ...Option) (*Client, error) {
	if len(urls) == 0 {
		return nil, errors.New("no bundler url configured")
	}
	clients := make([]*rpc.Client, 0, len(urls))
	for _, url := range urls {
		c, err := rpc.DialContext(ctx, url)
		if err != nil {
			for _, open := range clients {
				open.Close()
			}
			return nil, fmt.Errorf("failed to dial bundler %s: %w", url, err)
		}
		clients = append(clients, c)
	}
	return NewClient(clients, opts...), nil
}

func NewClient(endpoints []*rpc.Client, opts ...Option) *Client {
	c := &Client{
		endpoints:    endpoints,
		pollInterval: DefaultPollInterval,
		timeout:      DefaultReceiptTimeout,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *Client) Close() {
	for _, endpoint := range c.endpoints {
		endpoint.Close()
	}
}

// Submit sends the operation and blocks until a receipt arrives, the
// receipt timeout passes, or ctx is done. Only a receipt yields a result;
// everything else is an error and the outcome stays unknown.
func (c *Client) Submit(ctx context.Context, payload *multisig.Payload) (*multisig.SubmissionResult, error) {
	op, err := Unpack(payload.Operation)
	if err != nil {
		return nil, fmt.Errorf("failed to encode user operation: %w", err)
	}

	endpoint, hash, err := c.send(ctx, op, payload.EntryPoint)
	if err != nil {
		return nil, err
	}
	if hash != payload.Hash {
		log.Warn("Bundler returned hash", hash.Hex(), "but operation hash is", payload.Hash.Hex())
	}

	receipt, err := c.waitForReceipt(ctx, endpoint, hash)
	if err != nil {
		return nil, err
	}
	if !receipt.Success {
		log.Warn("Operation", hash.Hex(), "reverted:", receipt.Reason)
	}
	return &multisig.SubmissionResult{
		TxHash:  receipt.Receipt.TransactionHash.Hex(),
		Success: receipt.Success,
	}, nil
}

func (c *Client) send(ctx context.Context, op *UserOperation, entryPoint common.Address) (*rpc.Client, common.Hash, error) {
	var errs []error
	for i, endpoint := range c.endpoints {
		var hash common.Hash
		err := endpoint.CallContext(ctx, &hash, "eth_sendUserOperation", op, entryPoint)
		if err == nil {
			log.Info("Bundler", i, "accepted operation", hash.Hex())
			return endpoint, hash, nil
		}
		log.Warn("Bundler", i, "rejected operation:", err)
		errs = append(errs, err)
		if ctx.Err() != nil {
			break
		}
	}
	return nil, common.Hash{}, fmt.Errorf("all bundlers failed: %w", errors.Join(errs...))
}

func (c *Client) waitForReceipt(ctx context.Context, endpoint *rpc.Client, hash common.Hash) (*Receipt, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	ticker := time.NewTicker(c.pollInterval)
	defer ticker.Stop()

	for {
		var receipt *Receipt
		if err := endpoint.CallContext(ctx, &receipt, "eth_getUserOperationReceipt", hash); err != nil {
			if ctx.Err() != nil {
				return nil, fmt.Errorf("no receipt for %s: %w", hash.Hex(), ctx.Err())
			}
			log.Debug("Receipt lookup for", hash.Hex(), "failed:", err)
		} else if receipt != nil {
			return receipt, nil
		}

		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("no receipt for %s: %w", hash.Hex(), ctx.Err())
		case <-ticker.C:
		}
	}
}
