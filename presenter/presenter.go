package presenter

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/pokt-network/bridge-core/balances"
	"github.com/pokt-network/bridge-core/db"
	"github.com/pokt-network/bridge-core/entity"
	"github.com/pokt-network/bridge-core/logging"
	ownmiddleware "github.com/pokt-network/bridge-core/presenter/http/middleware"
	"github.com/pokt-network/bridge-core/presenter/http/render"
	"github.com/pokt-network/bridge-core/repository"
	"github.com/pokt-network/bridge-core/txstore"
)

// Presenter exposes the read-only HTTP surface of the bridge: stored
// transfers, settled balances, the archived history, and a websocket that
// pushes transfer updates as they happen.
type Presenter struct {
	logger  logging.Logger
	store   *txstore.Store
	tracker *balances.Tracker
	repo    *repository.Repo
	hub     *Hub
	flows   *Flows
	root    chi.Router
}

// NewPresenter builds the presenter. repo may be nil when the history
// archive is not configured.
func NewPresenter(logger logging.Logger, store *txstore.Store, tracker *balances.Tracker, repo *repository.Repo) *Presenter {
	return &Presenter{
		logger:  logger,
		store:   store,
		tracker: tracker,
		repo:    repo,
		hub:     NewHub(logger),
		root:    chi.NewMux(),
	}
}

// Hub returns the websocket hub so transfer and balance updates can be
// pushed from outside the presenter.
func (p *Presenter) Hub() *Hub {
	return p.hub
}

func (p *Presenter) Serve(addr string) error {
	p.logger.WithField("addr", addr).Info("starting presenter service")
	p.root.Use(middleware.Throttle(10))
	p.root.Use(middleware.RequestID)
	p.root.Use(ownmiddleware.NewLoggerMiddleware(p.logger))
	p.root.Use(ownmiddleware.Recoverer)
	p.root.Get("/transfers", p.GetTransfers)
	p.root.Get("/transfers/pending", p.GetPendingTransfers)
	p.root.Get("/transfers/resumable", p.GetResumableTransfers)
	p.root.Delete("/transfers/{id}", p.DismissTransfer)
	p.root.Post("/transfers/{id}/resume", p.ResumeTransfer)
	p.root.Post("/bridge", p.StartBridge)
	p.root.Post("/bridge/preview", p.PreviewBridge)
	p.root.Get("/flows", p.GetFlows)
	p.root.Get("/balances", p.GetBalances)
	p.root.Get("/history", p.GetHistory)
	p.root.Get("/ws", p.hub.Handle)
	return http.ListenAndServe(addr, p.root)
}

func (p *Presenter) GetTransfers(w http.ResponseWriter, r *http.Request) {
	address := r.URL.Query().Get("address")
	render.JSON(w, r, http.StatusOK, p.store.VisibleTo(address))
}

func (p *Presenter) GetPendingTransfers(w http.ResponseWriter, r *http.Request) {
	render.JSON(w, r, http.StatusOK, p.store.Pending())
}

func (p *Presenter) GetResumableTransfers(w http.ResponseWriter, r *http.Request) {
	address := r.URL.Query().Get("address")
	render.JSON(w, r, http.StatusOK, p.store.Resumable(address))
}

func (p *Presenter) DismissTransfer(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	err := p.store.Remove(id)
	if errors.Is(err, txstore.ErrNotFound) {
		render.JSON(w, r, http.StatusNotFound, map[string]string{"error": "transfer not found"})
		return
	}
	if err != nil {
		render.Error(w, r, err)
		return
	}
	render.JSON(w, r, http.StatusOK, map[string]bool{"dismissed": true})
}

func (p *Presenter) GetBalances(w http.ResponseWriter, r *http.Request) {
	render.JSON(w, r, http.StatusOK, p.tracker.Settled())
}

func (p *Presenter) GetHistory(w http.ResponseWriter, r *http.Request) {
	if p.repo == nil {
		render.JSON(w, r, http.StatusOK, []*entity.ArchivedTransfer{})
		return
	}
	address := r.URL.Query().Get("address")
	transfers, err := p.repo.ArchivedTransfers.FindByInitiator(r.Context(), address)
	if err = db.IgnoreErrNotFound(err); err != nil {
		render.Error(w, r, err)
		return
	}
	if transfers == nil {
		transfers = []*entity.ArchivedTransfer{}
	}
	render.JSON(w, r, http.StatusOK, transfers)
}
