package blockchain

import (
	"context"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/ethclient"

	"github.com/frombarmars/flickshare-sub000/internal/config"
	"github.com/frombarmars/flickshare-sub000/pkg/errors"
	"github.com/frombarmars/flickshare-sub000/pkg/logger"
)

// Client wraps the node connections for the review contract: an HTTP
// client for range queries (backfill) and a WS client for the live
// subscription. The WS client is dialed lazily since backfill-only runs
// never need it.
type Client struct {
	chainCfg *config.ChainConfig
	decoder  *Decoder
	client   *ethclient.Client
	wsClient *ethclient.Client
}

func NewClient(chainCfg *config.ChainConfig, decoder *Decoder) (*Client, error) {
	client, err := ethclient.Dial(chainCfg.RPCURL)
	if err != nil {
		return nil, errors.New(errors.ErrRPConnect,
			fmt.Sprintf("failed to connect RPC: %s", chainCfg.RPCURL), err)
	}

	return &Client{
		chainCfg: chainCfg,
		decoder:  decoder,
		client:   client,
	}, nil
}

func (c *Client) Close() {
	c.client.Close()
	if c.wsClient != nil {
		c.wsClient.Close()
	}
}

func (c *Client) LatestBlockNumber(ctx context.Context) (int64, error) {
	header, err := c.client.HeaderByNumber(ctx, nil)
	if err != nil {
		return 0, errors.New(errors.ErrBlockFetch, "failed to fetch latest block", err)
	}
	return header.Number.Int64(), nil
}

// ConfirmedBlockNumber returns the latest block minus the configured
// confirmation depth.
func (c *Client) ConfirmedBlockNumber(ctx context.Context) (int64, error) {
	latest, err := c.LatestBlockNumber(ctx)
	if err != nil {
		return 0, err
	}

	confirmed := latest - int64(c.chainCfg.ConfirmationBlocks)
	if confirmed < 0 {
		confirmed = 0
	}

	return confirmed, nil
}

// FilterEventLogs fetches logs for one named event in a block range.
// RPC nodes cap range queries, so callers batch per chain.batch_size.
func (c *Client) FilterEventLogs(ctx context.Context, eventName string, fromBlock, toBlock int64) ([]types.Log, error) {
	topic, ok := c.decoder.EventID(eventName)
	if !ok {
		return nil, errors.New(errors.ErrBlockFetch, "unknown event name "+eventName, nil)
	}

	query := ethereum.FilterQuery{
		FromBlock: big.NewInt(fromBlock),
		ToBlock:   big.NewInt(toBlock),
		Addresses: []common.Address{common.HexToAddress(c.chainCfg.ContractAddress)},
		Topics:    [][]common.Hash{{topic}},
	}

	logs, err := c.client.FilterLogs(ctx, query)
	if err != nil {
		return nil, errors.New(errors.ErrBlockFetch,
			fmt.Sprintf("failed to filter %s logs", eventName), err)
	}

	logger.WithFields(map[string]interface{}{
		"event":       eventName,
		"start_block": fromBlock,
		"end_block":   toBlock,
		"logs_count":  len(logs),
	}).Debug("fetched event logs")

	return logs, nil
}

// SubscribeLogs opens a live log subscription for all four contract
// events over the WS endpoint.
func (c *Client) SubscribeLogs(ctx context.Context, ch chan<- types.Log) (ethereum.Subscription, error) {
	if c.wsClient == nil {
		ws, err := ethclient.DialContext(ctx, c.chainCfg.WSURL)
		if err != nil {
			return nil, errors.New(errors.ErrRPConnect,
				fmt.Sprintf("failed to connect WS: %s", c.chainCfg.WSURL), err)
		}
		c.wsClient = ws
	}

	query := ethereum.FilterQuery{
		Addresses: []common.Address{common.HexToAddress(c.chainCfg.ContractAddress)},
		Topics:    [][]common.Hash{c.decoder.Topics()},
	}

	sub, err := c.wsClient.SubscribeFilterLogs(ctx, query, ch)
	if err != nil {
		return nil, errors.New(errors.ErrRPConnect, "failed to subscribe to contract logs", err)
	}

	return sub, nil
}
