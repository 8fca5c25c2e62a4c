// Copyright (c) 2025 The Sorcha developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package utils

import (
	"net/http"

	"github.com/StuartF303/Sorcha-sub006/chain"
	"github.com/StuartF303/Sorcha-sub006/comm"
	"github.com/StuartF303/Sorcha-sub006/consensus"
	"github.com/StuartF303/Sorcha-sub006/genesis"
	"github.com/StuartF303/Sorcha-sub006/ledger"
	"github.com/StuartF303/Sorcha-sub006/validator"
)

// ServiceError maps an error of the validator service to the status it is
// served with. Unknown errors stay internal server errors.
func ServiceError(err error) error {
	if err == nil {
		return nil
	}
	if _, ok := err.(*httpError); ok {
		return err
	}
	switch {
	case validator.IsNotStarted(err), ledger.IsNotFound(err):
		return HTTPError(err, http.StatusNotFound)
	case ledger.IsUnavailable(err):
		return HTTPError(err, http.StatusServiceUnavailable)
	case genesis.IsConfigError(err):
		return HTTPError(err, http.StatusUnprocessableEntity)
	case consensus.IsRoundInProgress(err),
		consensus.IsInvalidDocket(err),
		comm.IsVoteWithheld(err),
		chain.IsConflict(err):
		return HTTPError(err, http.StatusConflict)
	}
	return err
}
