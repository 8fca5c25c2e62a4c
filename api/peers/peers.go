// Copyright (c) 2025 The Sorcha developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

// Package peers serves the validator to validator endpoints called by
// comm.HTTPNetwork.
package peers

import (
	"net/http"

	"github.com/gorilla/mux"
	"github.com/pkg/errors"

	"github.com/StuartF303/Sorcha-sub006/api/utils"
	"github.com/StuartF303/Sorcha-sub006/comm"
	"github.com/StuartF303/Sorcha-sub006/docket"
)

type Peers struct {
	handler comm.Handler
}

func New(handler comm.Handler) *Peers {
	return &Peers{handler: handler}
}

func parseDocket(req *http.Request) (*docket.Docket, error) {
	var d docket.Docket
	if err := utils.ParseJSON(req.Body, &d); err != nil {
		return nil, utils.BadRequest(errors.WithMessage(err, "body"))
	}
	if id := mux.Vars(req)["id"]; d.Header.RegisterID != id {
		return nil, utils.BadRequest(errors.New("docket register does not match path"))
	}
	return &d, nil
}

func (p *Peers) handleProposal(w http.ResponseWriter, req *http.Request) error {
	d, err := parseDocket(req)
	if err != nil {
		return err
	}
	vote, err := p.handler.HandleProposal(req.Context(), d.Header.RegisterID, d)
	if err != nil {
		return utils.ServiceError(err)
	}
	return utils.WriteJSON(w, &vote)
}

func (p *Peers) handleConfirmed(w http.ResponseWriter, req *http.Request) error {
	d, err := parseDocket(req)
	if err != nil {
		return err
	}
	if err := p.handler.HandleConfirmed(req.Context(), d.Header.RegisterID, d); err != nil {
		return utils.ServiceError(err)
	}
	w.WriteHeader(http.StatusNoContent)
	return nil
}

func (p *Peers) handleHeartbeat(w http.ResponseWriter, req *http.Request) error {
	var hb comm.Heartbeat
	if err := utils.ParseJSON(req.Body, &hb); err != nil {
		return utils.BadRequest(errors.WithMessage(err, "body"))
	}
	id := mux.Vars(req)["id"]
	if hb.RegisterID == "" {
		hb.RegisterID = id
	}
	if hb.RegisterID != id {
		return utils.BadRequest(errors.New("heartbeat register does not match path"))
	}
	if hb.ValidatorID == "" {
		return utils.BadRequest(errors.New("validatorId required"))
	}
	if err := p.handler.HandleHeartbeat(req.Context(), hb); err != nil {
		return utils.ServiceError(err)
	}
	w.WriteHeader(http.StatusNoContent)
	return nil
}

// Mount registers the routes on root directly, so they can share the
// register prefix with the client API.
func (p *Peers) Mount(root *mux.Router, pathPrefix string) {
	root.Path(pathPrefix + "/{id}/proposals").
		Methods(http.MethodPost).
		Name("peers_post_proposal").
		HandlerFunc(utils.WrapHandlerFunc(p.handleProposal))
	root.Path(pathPrefix + "/{id}/dockets").
		Methods(http.MethodPost).
		Name("peers_post_docket").
		HandlerFunc(utils.WrapHandlerFunc(p.handleConfirmed))
	root.Path(pathPrefix + "/{id}/heartbeats").
		Methods(http.MethodPost).
		Name("peers_post_heartbeat").
		HandlerFunc(utils.WrapHandlerFunc(p.handleHeartbeat))
}
