package ethclient

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/ethereum/go-ethereum/rpc"
)

var ErrIncompatibleChainID = errors.New("rpc url returned incompatible chainID")

type Client interface {
	CallContract(ctx context.Context, msg ethereum.CallMsg) ([]byte, error)
	PendingNonceAt(ctx context.Context, account common.Address) (uint64, error)
	SuggestGasPrice(ctx context.Context) (*big.Int, error)
	EstimateGas(ctx context.Context, msg ethereum.CallMsg) (uint64, error)
	SendTransaction(ctx context.Context, tx *types.Transaction) error
	TransactionReceiptByHash(ctx context.Context, txHash common.Hash) (*types.Receipt, error)
	ChainID() *big.Int
}

type rpcClient struct {
	chainID   *big.Int
	url       string
	timeout   time.Duration
	rawClient *rpc.Client
	client    *ethclient.Client
}

func NewClient(url string, timeout time.Duration, chainID string) (Client, error) {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	rawClient, err := rpc.DialContext(ctx, url)
	if err != nil {
		return nil, fmt.Errorf("can't dial JSON rpc url: %w", err)
	}
	client := &rpcClient{
		url:       url,
		timeout:   timeout,
		rawClient: rawClient,
		client:    ethclient.NewClient(rawClient),
	}
	ctx2, cancel2 := context.WithTimeout(context.Background(), timeout)
	defer cancel2()
	rpcChainID, err := client.client.ChainID(ctx2)
	if err != nil {
		return nil, fmt.Errorf("can't get chainID: %w", err)
	}
	if rpcChainID.String() != chainID {
		return nil, fmt.Errorf("received chainID %s != expected %s: %w", rpcChainID, chainID, ErrIncompatibleChainID)
	}
	client.chainID = rpcChainID
	return client, nil
}

func (c *rpcClient) CallContract(ctx context.Context, msg ethereum.CallMsg) ([]byte, error) {
	defer ObserveDuration(c.chainID.String(), c.url, "eth_call")()
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	res, err := c.client.CallContract(ctx, msg, nil)
	ObserveError(c.chainID.String(), c.url, "eth_call", err)
	return res, err
}

func (c *rpcClient) PendingNonceAt(ctx context.Context, account common.Address) (uint64, error) {
	defer ObserveDuration(c.chainID.String(), c.url, "eth_getTransactionCount")()
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	n, err := c.client.PendingNonceAt(ctx, account)
	ObserveError(c.chainID.String(), c.url, "eth_getTransactionCount", err)
	return n, err
}

func (c *rpcClient) SuggestGasPrice(ctx context.Context) (*big.Int, error) {
	defer ObserveDuration(c.chainID.String(), c.url, "eth_gasPrice")()
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	price, err := c.client.SuggestGasPrice(ctx)
	ObserveError(c.chainID.String(), c.url, "eth_gasPrice", err)
	return price, err
}

func (c *rpcClient) EstimateGas(ctx context.Context, msg ethereum.CallMsg) (uint64, error) {
	defer ObserveDuration(c.chainID.String(), c.url, "eth_estimateGas")()
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	gas, err := c.client.EstimateGas(ctx, msg)
	ObserveError(c.chainID.String(), c.url, "eth_estimateGas", err)
	return gas, err
}

func (c *rpcClient) SendTransaction(ctx context.Context, tx *types.Transaction) error {
	defer ObserveDuration(c.chainID.String(), c.url, "eth_sendRawTransaction")()
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	err := c.client.SendTransaction(ctx, tx)
	ObserveError(c.chainID.String(), c.url, "eth_sendRawTransaction", err)
	return err
}

func (c *rpcClient) TransactionReceiptByHash(ctx context.Context, txHash common.Hash) (*types.Receipt, error) {
	defer ObserveDuration(c.chainID.String(), c.url, "eth_getTransactionReceipt")()
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	receipt, err := c.client.TransactionReceipt(ctx, txHash)
	ObserveError(c.chainID.String(), c.url, "eth_getTransactionReceipt", err)
	return receipt, err
}

func (c *rpcClient) ChainID() *big.Int {
	return c.chainID
}
