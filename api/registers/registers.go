// Copyright (c) 2025 The Sorcha developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package registers

import (
	"net/http"

	"github.com/gorilla/mux"
	"github.com/pkg/errors"

	"github.com/StuartF303/Sorcha-sub006/api/utils"
	"github.com/StuartF303/Sorcha-sub006/directory"
	"github.com/StuartF303/Sorcha-sub006/tx"
	"github.com/StuartF303/Sorcha-sub006/validator"
)

const defaultRoundsLimit = 50

type Registers struct {
	orch *validator.Orchestrator
}

func New(orch *validator.Orchestrator) *Registers {
	return &Registers{orch: orch}
}

func registerID(req *http.Request) string {
	return mux.Vars(req)["id"]
}

func (r *Registers) handleList(w http.ResponseWriter, _ *http.Request) error {
	ids := r.orch.Registers()
	if ids == nil {
		ids = []string{}
	}
	return utils.WriteJSON(w, ids)
}

func (r *Registers) handleStart(w http.ResponseWriter, req *http.Request) error {
	id := registerID(req)
	changed, err := r.orch.Start(req.Context(), id)
	if err != nil {
		return utils.ServiceError(err)
	}
	return utils.WriteJSON(w, &LifecycleResponse{RegisterID: id, Changed: changed})
}

func (r *Registers) handleStop(w http.ResponseWriter, req *http.Request) error {
	persist, err := utils.ParseBool(req.URL.Query().Get("persist"), true)
	if err != nil {
		return utils.BadRequest(errors.WithMessage(err, "persist"))
	}
	id := registerID(req)
	changed, err := r.orch.Stop(req.Context(), id, persist)
	if err != nil {
		return utils.ServiceError(err)
	}
	return utils.WriteJSON(w, &LifecycleResponse{RegisterID: id, Changed: changed})
}

func (r *Registers) handleStatus(w http.ResponseWriter, req *http.Request) error {
	st, err := r.orch.Status(req.Context(), registerID(req))
	if err != nil {
		return utils.ServiceError(err)
	}
	return utils.WriteJSON(w, st)
}

func (r *Registers) handleSubmitTransaction(w http.ResponseWriter, req *http.Request) error {
	var trx tx.Transaction
	if err := utils.ParseJSON(req.Body, &trx); err != nil {
		return utils.BadRequest(errors.WithMessage(err, "body"))
	}
	res, err := r.orch.Submit(req.Context(), registerID(req), &trx)
	if err != nil {
		return utils.ServiceError(err)
	}
	resp := &SubmitResponse{ID: trx.ID(), Status: res.Status, Reason: res.Reason}
	switch {
	case res.Accepted():
		return utils.WriteJSONStatus(w, http.StatusAccepted, resp)
	case res.Status == tx.StatusDuplicate:
		return utils.WriteJSONStatus(w, http.StatusConflict, resp)
	case res.Status == tx.StatusPoolFull:
		return utils.WriteJSONStatus(w, http.StatusTooManyRequests, resp)
	}
	return utils.WriteJSONStatus(w, http.StatusBadRequest, resp)
}

func (r *Registers) handleGetMempool(w http.ResponseWriter, req *http.Request) error {
	id := registerID(req)
	stats, err := r.orch.MempoolStats(id)
	if err != nil {
		return utils.ServiceError(err)
	}
	resp := &Mempool{Stats: stats}
	if req.URL.Query().Get("expanded") == "true" {
		if resp.Transactions, err = r.orch.Mempool(id); err != nil {
			return utils.ServiceError(err)
		}
	}
	return utils.WriteJSON(w, resp)
}

func (r *Registers) handleProcessRound(w http.ResponseWriter, req *http.Request) error {
	res, err := r.orch.ProcessRound(req.Context(), registerID(req))
	if err != nil {
		return utils.ServiceError(err)
	}
	return utils.WriteJSON(w, res)
}

func (r *Registers) handleGetRounds(w http.ResponseWriter, req *http.Request) error {
	limit, err := utils.ParseUint(req.URL.Query().Get("limit"), defaultRoundsLimit)
	if err != nil {
		return utils.BadRequest(errors.WithMessage(err, "limit"))
	}
	records, err := r.orch.Rounds(req.Context(), registerID(req), int(limit))
	if err != nil {
		return utils.ServiceError(err)
	}
	if records == nil {
		return utils.WriteJSON(w, []any{})
	}
	return utils.WriteJSON(w, records)
}

func (r *Registers) handleRefreshGenesis(w http.ResponseWriter, req *http.Request) error {
	cfg, err := r.orch.RefreshGenesis(req.Context(), registerID(req))
	if err != nil {
		return utils.ServiceError(err)
	}
	return utils.WriteJSON(w, cfg)
}

// handleGetValidators serves the directory listing, so a validator can act
// as the peer directory of others.
func (r *Registers) handleGetValidators(w http.ResponseWriter, req *http.Request) error {
	list, _, err := r.orch.Validators(req.Context(), registerID(req))
	if err != nil {
		return utils.ServiceError(err)
	}
	if list == nil {
		list = []directory.ValidatorInfo{}
	}
	return utils.WriteJSON(w, list)
}

func (r *Registers) handleGetPendingValidators(w http.ResponseWriter, req *http.Request) error {
	_, pending, err := r.orch.Validators(req.Context(), registerID(req))
	if err != nil {
		return utils.ServiceError(err)
	}
	if pending == nil {
		pending = []directory.ValidatorInfo{}
	}
	return utils.WriteJSON(w, &PendingValidators{Pending: pending})
}

func (r *Registers) handleRefreshValidators(w http.ResponseWriter, req *http.Request) error {
	list, err := r.orch.RefreshValidators(req.Context(), registerID(req))
	if err != nil {
		return utils.ServiceError(err)
	}
	return utils.WriteJSON(w, list)
}

func (r *Registers) handleRegisterValidator(w http.ResponseWriter, req *http.Request) error {
	var reg directory.Registration
	if err := utils.ParseJSON(req.Body, &reg); err != nil {
		return utils.BadRequest(errors.WithMessage(err, "body"))
	}
	res, err := r.orch.RegisterValidator(req.Context(), registerID(req), reg)
	if err != nil {
		return utils.ServiceError(err)
	}
	return writeRegisterResult(w, res)
}

func (r *Registers) handleApproveValidator(w http.ResponseWriter, req *http.Request) error {
	res, err := r.orch.ApproveValidator(registerID(req), mux.Vars(req)["validatorId"])
	if err != nil {
		return utils.ServiceError(err)
	}
	return writeRegisterResult(w, res)
}

func writeRegisterResult(w http.ResponseWriter, res directory.RegisterResult) error {
	switch res.Outcome {
	case directory.OutcomeAccepted:
		return utils.WriteJSON(w, res)
	case directory.OutcomePending:
		return utils.WriteJSONStatus(w, http.StatusAccepted, res)
	}
	return utils.WriteJSONStatus(w, http.StatusConflict, res)
}

func (r *Registers) handleGetDocket(w http.ResponseWriter, req *http.Request) error {
	var number *uint64
	if rev := mux.Vars(req)["number"]; rev != "latest" {
		n, err := utils.ParseUint(rev, 0)
		if err != nil || rev == "" {
			return utils.BadRequest(errors.New("number: must be an unsigned integer or latest"))
		}
		number = &n
	}
	d, err := r.orch.Docket(req.Context(), registerID(req), number)
	if err != nil {
		return utils.ServiceError(err)
	}
	return utils.WriteJSON(w, d)
}

func (r *Registers) Mount(root *mux.Router, pathPrefix string) {
	sub := root.PathPrefix(pathPrefix).Subrouter()

	sub.Path("").
		Methods(http.MethodGet).
		Name("registers_list").
		HandlerFunc(utils.WrapHandlerFunc(r.handleList))
	sub.Path("/{id}/start").
		Methods(http.MethodPost).
		Name("registers_start").
		HandlerFunc(utils.WrapHandlerFunc(r.handleStart))
	sub.Path("/{id}/stop").
		Methods(http.MethodPost).
		Name("registers_stop").
		HandlerFunc(utils.WrapHandlerFunc(r.handleStop))
	sub.Path("/{id}/status").
		Methods(http.MethodGet).
		Name("registers_get_status").
		HandlerFunc(utils.WrapHandlerFunc(r.handleStatus))
	sub.Path("/{id}/transactions").
		Methods(http.MethodPost).
		Name("registers_post_transaction").
		HandlerFunc(utils.WrapHandlerFunc(r.handleSubmitTransaction))
	sub.Path("/{id}/mempool").
		Methods(http.MethodGet).
		Name("registers_get_mempool").
		HandlerFunc(utils.WrapHandlerFunc(r.handleGetMempool))
	sub.Path("/{id}/rounds").
		Methods(http.MethodPost).
		Name("registers_process_round").
		HandlerFunc(utils.WrapHandlerFunc(r.handleProcessRound))
	sub.Path("/{id}/rounds").
		Methods(http.MethodGet).
		Name("registers_get_rounds").
		HandlerFunc(utils.WrapHandlerFunc(r.handleGetRounds))
	sub.Path("/{id}/genesis/refresh").
		Methods(http.MethodPost).
		Name("registers_refresh_genesis").
		HandlerFunc(utils.WrapHandlerFunc(r.handleRefreshGenesis))
	sub.Path("/{id}/validators").
		Methods(http.MethodGet).
		Name("registers_get_validators").
		HandlerFunc(utils.WrapHandlerFunc(r.handleGetValidators))
	sub.Path("/{id}/validators").
		Methods(http.MethodPost).
		Name("registers_register_validator").
		HandlerFunc(utils.WrapHandlerFunc(r.handleRegisterValidator))
	sub.Path("/{id}/validators/pending").
		Methods(http.MethodGet).
		Name("registers_get_pending_validators").
		HandlerFunc(utils.WrapHandlerFunc(r.handleGetPendingValidators))
	sub.Path("/{id}/validators/refresh").
		Methods(http.MethodPost).
		Name("registers_refresh_validators").
		HandlerFunc(utils.WrapHandlerFunc(r.handleRefreshValidators))
	sub.Path("/{id}/validators/{validatorId}/approve").
		Methods(http.MethodPost).
		Name("registers_approve_validator").
		HandlerFunc(utils.WrapHandlerFunc(r.handleApproveValidator))
	sub.Path("/{id}/dockets/{number}").
		Methods(http.MethodGet).
		Name("registers_get_docket").
		HandlerFunc(utils.WrapHandlerFunc(r.handleGetDocket))
}
