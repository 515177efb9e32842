package repository

import (
	"github.com/pokt-network/bridge-core/db"
	"github.com/pokt-network/bridge-core/entity"
	"github.com/pokt-network/bridge-core/repository/postgres"
)

type Repo struct {
	ArchivedTransfers entity.ArchivedTransfersRepo
}

func NewRepo(db *db.DB) *Repo {
	return &Repo{
		ArchivedTransfers: postgres.NewArchivedTransfersRepo("archived_transfers", db),
	}
}
