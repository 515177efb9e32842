package presenter

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/ethereum/go-ethereum/common"
	"github.com/go-chi/chi/v5"

	"github.com/pokt-network/bridge-core/attestation"
	"github.com/pokt-network/bridge-core/bridge"
	"github.com/pokt-network/bridge-core/entity"
	"github.com/pokt-network/bridge-core/presenter/http/render"
)

// Flows holds the orchestrators the write API drives. EVM flows are keyed by
// "source->dest".
type Flows struct {
	EVM     map[string]*bridge.EVMFlow
	Unified *bridge.UnifiedFlow
	// Relay confirms delivery of adapter-based transfers; when set, EVM
	// flows are marked complete once the relay lands on the destination.
	Relay *attestation.RelayPoller
}

// SetFlows enables the write endpoints. Call before Serve.
func (p *Presenter) SetFlows(flows *Flows) {
	p.flows = flows
}

type bridgeRequest struct {
	SourceChain entity.Chain     `json:"sourceChain"`
	DestChain   entity.Chain     `json:"destChain"`
	Amount      string           `json:"amount"`
	Recipient   string           `json:"recipient"`
	DestToken   entity.DestToken `json:"destToken"`
}

// StartBridge kicks off a transfer and returns immediately; progress is
// observable through GET /flows and the websocket.
func (p *Presenter) StartBridge(w http.ResponseWriter, r *http.Request) {
	if p.flows == nil {
		render.JSON(w, r, http.StatusNotImplemented, map[string]string{"error": "bridge flows are not configured"})
		return
	}
	var req bridgeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		render.JSON(w, r, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}

	switch {
	case req.SourceChain.IsEVM() && req.DestChain.IsEVM():
		flow, ok := p.flows.EVM[FlowKey(req.SourceChain, req.DestChain)]
		if !ok {
			render.JSON(w, r, http.StatusBadRequest, map[string]string{"error": "route is not configured"})
			return
		}
		if err := bridge.ValidateEVMAddress(req.Recipient); err != nil {
			render.JSON(w, r, http.StatusBadRequest, map[string]string{"error": err.Error()})
			return
		}
		go func() {
			hash, err := flow.Bridge(context.Background(), req.Amount, common.HexToAddress(req.Recipient))
			if err != nil {
				p.logger.WithError(err).Error("bridge flow failed")
				return
			}
			if p.flows.Relay == nil {
				return
			}
			if _, err = p.flows.Relay.WaitForDelivery(context.Background(), hash.Hex(), nil); err != nil {
				p.logger.WithError(err).Warn("relay delivery was not confirmed")
				return
			}
			flow.MarkComplete(hash)
		}()
	case p.flows.Unified != nil:
		direction := bridge.DirectionToAlt
		if req.SourceChain == entity.ChainSolana {
			direction = bridge.DirectionFromAlt
		}
		if err := p.flows.Unified.SetDirection(direction); err != nil {
			render.JSON(w, r, http.StatusBadRequest, map[string]string{"error": err.Error()})
			return
		}
		go func() {
			if _, err := p.flows.Unified.InitiateTransfer(context.Background(), req.Amount, req.Recipient, req.DestToken); err != nil {
				p.logger.WithError(err).Error("bridge flow failed")
			}
		}()
	default:
		render.JSON(w, r, http.StatusBadRequest, map[string]string{"error": "route is not configured"})
		return
	}
	render.JSON(w, r, http.StatusAccepted, map[string]bool{"started": true})
}

// PreviewBridge reports the steps and expected signature count of a transfer
// without submitting anything.
func (p *Presenter) PreviewBridge(w http.ResponseWriter, r *http.Request) {
	if p.flows == nil {
		render.JSON(w, r, http.StatusNotImplemented, map[string]string{"error": "bridge flows are not configured"})
		return
	}
	var req bridgeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		render.JSON(w, r, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}

	var (
		preview *bridge.BridgePreview
		err     error
	)
	switch {
	case req.SourceChain.IsEVM() && req.DestChain.IsEVM():
		flow, ok := p.flows.EVM[FlowKey(req.SourceChain, req.DestChain)]
		if !ok {
			render.JSON(w, r, http.StatusBadRequest, map[string]string{"error": "route is not configured"})
			return
		}
		preview, err = flow.Preview(r.Context(), req.Amount)
	case p.flows.Unified != nil:
		direction := bridge.DirectionToAlt
		if req.SourceChain == entity.ChainSolana {
			direction = bridge.DirectionFromAlt
		}
		if err = p.flows.Unified.SetDirection(direction); err != nil {
			render.JSON(w, r, http.StatusBadRequest, map[string]string{"error": err.Error()})
			return
		}
		preview, err = p.flows.Unified.Preview(r.Context(), req.Amount, req.Recipient, req.DestToken)
	default:
		render.JSON(w, r, http.StatusBadRequest, map[string]string{"error": "route is not configured"})
		return
	}
	if err != nil {
		render.JSON(w, r, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}
	render.JSON(w, r, http.StatusOK, preview)
}

type resumeRequest struct {
	AltAddress string `json:"altAddress"`
}

// ResumeTransfer picks a stored transfer back up from its attestation wait.
func (p *Presenter) ResumeTransfer(w http.ResponseWriter, r *http.Request) {
	if p.flows == nil || p.flows.Unified == nil {
		render.JSON(w, r, http.StatusNotImplemented, map[string]string{"error": "bridge flows are not configured"})
		return
	}
	id := chi.URLParam(r, "id")
	var req resumeRequest
	if r.Body != nil {
		json.NewDecoder(r.Body).Decode(&req) //nolint:errcheck
	}
	go func() {
		if _, err := p.flows.Unified.ResumeFromAttestation(context.Background(), id, req.AltAddress); err != nil {
			p.logger.WithError(err).WithField("id", id).Error("transfer resume failed")
		}
	}()
	render.JSON(w, r, http.StatusAccepted, map[string]bool{"started": true})
}

type flowStatus struct {
	Step  bridge.Step         `json:"step"`
	Err   string              `json:"error,omitempty"`
	Order []bridge.Step       `json:"order"`
	Steps []bridge.StepStatus `json:"steps"`
}

// GetFlows reports the current step of every configured flow together with
// the derived per-step display statuses.
func (p *Presenter) GetFlows(w http.ResponseWriter, r *http.Request) {
	res := make(map[string]flowStatus)
	if p.flows != nil {
		for key, flow := range p.flows.EVM {
			state := flow.State()
			order := flow.StepOrder()
			res[key] = flowStatus{
				Step:  state.Step,
				Err:   state.Err,
				Order: order,
				Steps: bridge.DeriveStepStatuses(order, state.Step, state.Failed),
			}
		}
		if p.flows.Unified != nil {
			state := p.flows.Unified.State()
			order := p.flows.Unified.StepOrder()
			res[string(p.flows.Unified.Direction())] = flowStatus{
				Step:  state.Step,
				Err:   state.Err,
				Order: order,
				Steps: bridge.DeriveStepStatuses(order, state.Step, state.Failed),
			}
		}
	}
	render.JSON(w, r, http.StatusOK, res)
}

func FlowKey(source, dest entity.Chain) string {
	return fmt.Sprintf("%s->%s", source, dest)
}
