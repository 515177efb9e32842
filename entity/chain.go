package entity

// Chain identifies one of the networks the bridge operates across.
type Chain string

const (
	ChainEthereum Chain = "ethereum"
	ChainBase     Chain = "base"
	ChainSolana   Chain = "solana"
)

func (c Chain) IsEVM() bool {
	return c == ChainEthereum || c == ChainBase
}

func (c Chain) Valid() bool {
	switch c {
	case ChainEthereum, ChainBase, ChainSolana:
		return true
	}
	return false
}
