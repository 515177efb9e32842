package entity

import (
	"context"
	"fmt"
	"strings"
	"time"
)

// TxStatus is the persisted lifecycle status of a bridge transfer. Statuses
// advance monotonically through the lattice below, except that "error" is
// reachable from any non-terminal status.
type TxStatus string

const (
	TxStatusPending            TxStatus = "pending"
	TxStatusConfirmed          TxStatus = "confirmed"
	TxStatusWaitingAttestation TxStatus = "waiting-attestation"
	TxStatusAttestationReady   TxStatus = "attestation-ready"
	TxStatusClaiming           TxStatus = "claiming"
	TxStatusConverting         TxStatus = "converting"
	TxStatusComplete           TxStatus = "complete"
	TxStatusError              TxStatus = "error"
)

var txStatusRank = map[TxStatus]int{
	TxStatusPending:            0,
	TxStatusConfirmed:          1,
	TxStatusWaitingAttestation: 2,
	TxStatusAttestationReady:   3,
	TxStatusClaiming:           4,
	TxStatusConverting:         5,
	TxStatusComplete:           6,
	TxStatusError:              7,
}

func (s TxStatus) Valid() bool {
	_, ok := txStatusRank[s]
	return ok
}

func (s TxStatus) Terminal() bool {
	return s == TxStatusComplete || s == TxStatusError
}

// CanAdvanceTo reports whether a transition from s to next respects the
// status lattice. Transitions to "error" are always allowed from
// non-terminal statuses.
func (s TxStatus) CanAdvanceTo(next TxStatus) bool {
	if !s.Valid() || !next.Valid() {
		return false
	}
	if s.Terminal() {
		return false
	}
	if next == TxStatusError {
		return true
	}
	return txStatusRank[next] >= txStatusRank[s]
}

// DestToken is the user's preferred token variant on the destination chain.
type DestToken string

const (
	DestTokenWPOKT DestToken = "wpokt"
	DestTokenXPOKT DestToken = "xpokt"
)

// PreConversionInfo records the optional Lockbox conversion leg that ran
// before the bridge transaction itself.
type PreConversionInfo struct {
	Required      bool   `json:"required"`
	ApproveTxHash string `json:"approveTxHash,omitempty"`
	DepositTxHash string `json:"depositTxHash,omitempty"`
}

// AttestationInfo caches the emitter coordinates of a cross-chain message.
// The coordinates become known before the signed payload itself and enable a
// direct lookup path that is often faster than the transaction-hash indexer.
type AttestationInfo struct {
	EmitterChain   uint16 `json:"emitterChain"`
	EmitterAddress string `json:"emitterAddress"`
	Sequence       string `json:"sequence"`
	Payload        string `json:"payload,omitempty"`
}

func (a *AttestationInfo) HasCoordinates() bool {
	return a != nil && a.EmitterAddress != "" && a.Sequence != ""
}

// StoredTransaction is the durable record of an in-flight (or finished but
// not yet dismissed) bridge transfer. It survives process restarts and is
// only ever removed by explicit user dismissal.
type StoredTransaction struct {
	ID               string             `json:"id"`
	SourceChain      Chain              `json:"sourceChain"`
	DestChain        Chain              `json:"destChain"`
	Amount           string             `json:"amount"`
	AmountRaw        string             `json:"amountRaw"`
	Status           TxStatus           `json:"status"`
	CreatedAt        int64              `json:"createdAt"`
	UpdatedAt        int64              `json:"updatedAt"`
	SourceTxHash     string             `json:"sourceTxHash"`
	DestToken        DestToken          `json:"destToken,omitempty"`
	PreConversion    *PreConversionInfo `json:"preConversion,omitempty"`
	Attestation      *AttestationInfo   `json:"attestation,omitempty"`
	DestTxHash       string             `json:"destTxHash,omitempty"`
	ConversionTxHash string             `json:"conversionTxHash,omitempty"`
	// InitiatorAddress scopes visibility of resumable transfers to the wallet
	// that created them. Entries without it predate the stamping and stay
	// visible to every wallet.
	InitiatorAddress string `json:"initiatorAddress,omitempty"`
}

func (tx *StoredTransaction) Validate() error {
	if tx.ID == "" {
		return fmt.Errorf("missing id")
	}
	if !tx.SourceChain.Valid() {
		return fmt.Errorf("invalid source chain %q", tx.SourceChain)
	}
	if !tx.DestChain.Valid() {
		return fmt.Errorf("invalid dest chain %q", tx.DestChain)
	}
	if !tx.Status.Valid() {
		return fmt.Errorf("invalid status %q", tx.Status)
	}
	if tx.Amount == "" || tx.AmountRaw == "" {
		return fmt.Errorf("missing amount")
	}
	if tx.CreatedAt <= 0 || tx.UpdatedAt < tx.CreatedAt {
		return fmt.Errorf("invalid timestamps")
	}
	return nil
}

// VisibleTo reports whether the transfer should be surfaced to the given
// wallet address. The comparison is case-insensitive. Unstamped entries are
// visible to everyone.
func (tx *StoredTransaction) VisibleTo(address string) bool {
	if tx.InitiatorAddress == "" || address == "" {
		return true
	}
	return strings.EqualFold(tx.InitiatorAddress, address)
}

// Resumable reports whether the transfer is parked in a state that an
// explicit user action can pick back up.
func (tx *StoredTransaction) Resumable() bool {
	return tx.Status == TxStatusWaitingAttestation || tx.Status == TxStatusAttestationReady
}

func (tx *StoredTransaction) Pending() bool {
	return !tx.Status.Terminal()
}

// ArchivedTransfer is the append-only audit record of a transfer that
// reached a terminal status.
type ArchivedTransfer struct {
	ID               uint       `db:"id"`
	TransferID       string     `db:"transfer_id"`
	SourceChain      Chain      `db:"source_chain"`
	DestChain        Chain      `db:"dest_chain"`
	Amount           string     `db:"amount"`
	AmountRaw        string     `db:"amount_raw"`
	Status           TxStatus   `db:"status"`
	SourceTxHash     string     `db:"source_tx_hash"`
	DestTxHash       string     `db:"dest_tx_hash"`
	ConversionTxHash string     `db:"conversion_tx_hash"`
	InitiatorAddress string     `db:"initiator_address"`
	CreatedAt        *time.Time `db:"created_at"`
	UpdatedAt        *time.Time `db:"updated_at"`
}

type ArchivedTransfersRepo interface {
	Ensure(ctx context.Context, transfer *ArchivedTransfer) error
	GetByTransferID(ctx context.Context, transferID string) (*ArchivedTransfer, error)
	FindByInitiator(ctx context.Context, address string) ([]*ArchivedTransfer, error)
}
