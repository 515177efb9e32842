package gateway

import (
	"context"
	"crypto/ecdsa"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/sirupsen/logrus"

	"github.com/pokt-network/bridge-core/contract"
	"github.com/pokt-network/bridge-core/contract/abi"
	"github.com/pokt-network/bridge-core/entity"
	"github.com/pokt-network/bridge-core/ethclient"
	"github.com/pokt-network/bridge-core/logging"
	"github.com/pokt-network/bridge-core/utils"
)

const receiptPollInterval = 5 * time.Second

// EVMGateway implements Gateway over a set of per-chain RPC clients and a
// single local signing key.
type EVMGateway struct {
	logger  logging.Logger
	clients map[entity.Chain]ethclient.Client
	key     *ecdsa.PrivateKey
	signer  common.Address

	mu     sync.Mutex
	active entity.Chain
}

func NewEVMGateway(logger logging.Logger, clients map[entity.Chain]ethclient.Client, privateKeyHex string) (*EVMGateway, error) {
	key, err := crypto.HexToECDSA(strings.TrimPrefix(privateKeyHex, "0x"))
	if err != nil {
		return nil, fmt.Errorf("can't parse signer private key: %w", err)
	}
	gw := &EVMGateway{
		logger:  logger,
		clients: clients,
		key:     key,
		signer:  crypto.PubkeyToAddress(key.PublicKey),
	}
	for chain := range clients {
		gw.active = chain
		break
	}
	return gw, nil
}

func (gw *EVMGateway) client(chain entity.Chain) (ethclient.Client, error) {
	client, ok := gw.clients[chain]
	if !ok {
		return nil, fmt.Errorf("no rpc client for chain %s: %w", chain, ErrChainSwitchUnsupported)
	}
	return client, nil
}

func (gw *EVMGateway) ReadBalance(ctx context.Context, chain entity.Chain, token, owner common.Address) (*big.Int, error) {
	res, err := gw.Call(ctx, chain, token, contract.PackBalanceOf(owner))
	if err != nil {
		return nil, err
	}
	return contract.UnpackUint256(abi.ERC20ABI, "balanceOf", res)
}

func (gw *EVMGateway) ReadAllowance(ctx context.Context, chain entity.Chain, token, owner, spender common.Address) (*big.Int, error) {
	res, err := gw.Call(ctx, chain, token, contract.PackAllowance(owner, spender))
	if err != nil {
		return nil, err
	}
	return contract.UnpackUint256(abi.ERC20ABI, "allowance", res)
}

func (gw *EVMGateway) Call(ctx context.Context, chain entity.Chain, to common.Address, calldata []byte) ([]byte, error) {
	client, err := gw.client(chain)
	if err != nil {
		return nil, err
	}
	res, err := client.CallContract(ctx, ethereum.CallMsg{To: &to, Data: calldata})
	if err != nil {
		return nil, fmt.Errorf("can't call contract on %s: %w: %v", chain, ErrNetwork, err)
	}
	return res, nil
}

func (gw *EVMGateway) Submit(ctx context.Context, chain entity.Chain, to common.Address, calldata []byte, value *big.Int) (common.Hash, error) {
	client, err := gw.client(chain)
	if err != nil {
		return common.Hash{}, err
	}
	if value == nil {
		value = big.NewInt(0)
	}

	nonce, err := client.PendingNonceAt(ctx, gw.signer)
	if err != nil {
		return common.Hash{}, fmt.Errorf("can't get signer nonce: %w: %v", ErrNetwork, err)
	}
	gasPrice, err := client.SuggestGasPrice(ctx)
	if err != nil {
		return common.Hash{}, fmt.Errorf("can't get gas price: %w: %v", ErrNetwork, err)
	}
	gasLimit, err := client.EstimateGas(ctx, ethereum.CallMsg{
		From:  gw.signer,
		To:    &to,
		Value: value,
		Data:  calldata,
	})
	if err != nil {
		// estimation failure almost always means the call would revert
		return common.Hash{}, fmt.Errorf("%w: %v", ErrTransactionReverted, err)
	}

	tx := types.NewTransaction(nonce, to, value, gasLimit, gasPrice, calldata)
	signedTx, err := types.SignTx(tx, types.LatestSignerForChainID(client.ChainID()), gw.key)
	if err != nil {
		return common.Hash{}, fmt.Errorf("%w: %v", ErrTransactionRejected, err)
	}
	if err = client.SendTransaction(ctx, signedTx); err != nil {
		return common.Hash{}, fmt.Errorf("can't send transaction: %w: %v", ErrNetwork, err)
	}
	gw.logger.WithFields(logrus.Fields{
		"chain":   chain,
		"to":      to,
		"tx_hash": signedTx.Hash(),
	}).Info("submitted transaction")
	return signedTx.Hash(), nil
}

// WaitForConfirmation blocks until the transaction is included in a block
// (confirmation depth 1) or ctx is cancelled. A mined-but-failed transaction
// yields ErrTransactionReverted.
func (gw *EVMGateway) WaitForConfirmation(ctx context.Context, chain entity.Chain, txHash common.Hash) error {
	client, err := gw.client(chain)
	if err != nil {
		return err
	}
	for {
		receipt, err := client.TransactionReceiptByHash(ctx, txHash)
		if err == nil && receipt != nil {
			if receipt.Status == types.ReceiptStatusFailed {
				return fmt.Errorf("tx %s: %w", txHash, ErrTransactionReverted)
			}
			return nil
		}
		if err != nil && !errors.Is(err, ethereum.NotFound) {
			gw.logger.WithError(err).WithField("tx_hash", txHash).Warn("can't fetch transaction receipt, retrying")
		}
		if utils.ContextSleep(ctx, receiptPollInterval) == nil {
			return fmt.Errorf("confirmation wait cancelled for %s: %w", txHash, ctx.Err())
		}
	}
}

func (gw *EVMGateway) SwitchActiveChain(chain entity.Chain) error {
	if _, ok := gw.clients[chain]; !ok {
		return fmt.Errorf("chain %s: %w", chain, ErrChainSwitchUnsupported)
	}
	gw.mu.Lock()
	defer gw.mu.Unlock()
	if gw.active != chain {
		gw.logger.WithFields(logrus.Fields{"from": gw.active, "to": chain}).Info("switching active chain")
		gw.active = chain
	}
	return nil
}

func (gw *EVMGateway) ActiveChain() entity.Chain {
	gw.mu.Lock()
	defer gw.mu.Unlock()
	return gw.active
}

func (gw *EVMGateway) SignerAddress() common.Address {
	return gw.signer
}
