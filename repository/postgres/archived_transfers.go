package postgres

import (
	"context"
	"fmt"

	sq "github.com/Masterminds/squirrel"

	"github.com/pokt-network/bridge-core/db"
	"github.com/pokt-network/bridge-core/entity"
)

type archivedTransfersRepo basePostgresRepo

func NewArchivedTransfersRepo(table string, db *db.DB) entity.ArchivedTransfersRepo {
	return (*archivedTransfersRepo)(newBasePostgresRepo(table, db))
}

func (r *archivedTransfersRepo) Ensure(ctx context.Context, transfer *entity.ArchivedTransfer) error {
	q, args, err := sq.Insert(r.table).
		Columns("transfer_id", "source_chain", "dest_chain", "amount", "amount_raw", "status",
			"source_tx_hash", "dest_tx_hash", "conversion_tx_hash", "initiator_address").
		Values(transfer.TransferID, transfer.SourceChain, transfer.DestChain, transfer.Amount, transfer.AmountRaw,
			transfer.Status, transfer.SourceTxHash, transfer.DestTxHash, transfer.ConversionTxHash, transfer.InitiatorAddress).
		Suffix("ON CONFLICT (transfer_id) DO UPDATE SET status = EXCLUDED.status, dest_tx_hash = EXCLUDED.dest_tx_hash, " +
			"conversion_tx_hash = EXCLUDED.conversion_tx_hash, updated_at = NOW()").
		PlaceholderFormat(sq.Dollar).
		ToSql()
	if err != nil {
		return fmt.Errorf("can't build query: %w", err)
	}
	_, err = r.db.ExecContext(ctx, q, args...)
	if err != nil {
		return fmt.Errorf("can't insert archived transfer: %w", err)
	}
	return nil
}

func (r *archivedTransfersRepo) GetByTransferID(ctx context.Context, transferID string) (*entity.ArchivedTransfer, error) {
	q, args, err := sq.Select("*").
		From(r.table).
		Where(sq.Eq{"transfer_id": transferID}).
		PlaceholderFormat(sq.Dollar).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("can't build query: %w", err)
	}
	transfer := new(entity.ArchivedTransfer)
	err = r.db.GetContext(ctx, transfer, q, args...)
	if err != nil {
		return nil, fmt.Errorf("can't get archived transfer: %w", err)
	}
	return transfer, nil
}

func (r *archivedTransfersRepo) FindByInitiator(ctx context.Context, address string) ([]*entity.ArchivedTransfer, error) {
	q, args, err := sq.Select("*").
		From(r.table).
		Where("LOWER(initiator_address) = LOWER(?)", address).
		OrderBy("created_at DESC").
		PlaceholderFormat(sq.Dollar).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("can't build query: %w", err)
	}
	transfers := make([]*entity.ArchivedTransfer, 0, 10)
	err = r.db.SelectContext(ctx, &transfers, q, args...)
	if err != nil {
		return nil, fmt.Errorf("can't find archived transfers: %w", err)
	}
	return transfers, nil
}
