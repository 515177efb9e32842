package abi

//nolint:golint
import (
	_ "embed"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
)

//go:embed erc20.json
var erc20JSONABI string

//go:embed lockbox.json
var lockboxJSONABI string

//go:embed bridge_adapter.json
var bridgeAdapterJSONABI string

//go:embed token_bridge.json
var tokenBridgeJSONABI string

var (
	ERC20ABI         abi.ABI
	LockboxABI       abi.ABI
	BridgeAdapterABI abi.ABI
	TokenBridgeABI   abi.ABI
)

func init() {
	for _, v := range []struct {
		dst  *abi.ABI
		blob string
	}{
		{&ERC20ABI, erc20JSONABI},
		{&LockboxABI, lockboxJSONABI},
		{&BridgeAdapterABI, bridgeAdapterJSONABI},
		{&TokenBridgeABI, tokenBridgeJSONABI},
	} {
		parsed, err := abi.JSON(strings.NewReader(v.blob))
		if err != nil {
			panic(err)
		}
		*v.dst = parsed
	}
}
