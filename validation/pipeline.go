// Copyright (c) 2025 The Sorcha developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

// Package validation implements the admission checks a candidate transaction
// must pass before it may be pooled or included in a docket.
package validation

import (
	"context"
	"time"

	"github.com/pkg/errors"

	"github.com/StuartF303/Sorcha-sub006/blueprint"
	"github.com/StuartF303/Sorcha-sub006/ledger"
	"github.com/StuartF303/Sorcha-sub006/log"
	"github.com/StuartF303/Sorcha-sub006/metrics"
	"github.com/StuartF303/Sorcha-sub006/signing"
	"github.com/StuartF303/Sorcha-sub006/tx"
)

var (
	logger             = log.WithContext("pkg", "validation")
	metricRejectedTxs  = metrics.LazyLoadCounterVec("rejected_tx_count", []string{"status"})
	metricValidateTime = metrics.LazyLoadHistogram("validate_duration_ms", metrics.BucketHTTPReqs)
)

// Result is the outcome of validating one transaction.
type Result struct {
	Status tx.Status `json:"status"`
	Reason string    `json:"reason,omitempty"`
}

// Accepted returns whether the transaction passed every stage.
func (r Result) Accepted() bool {
	return r.Status.IsAccepted()
}

func accepted() Result { return Result{Status: tx.StatusAccepted} }

func reject(status tx.Status, reason string) Result {
	return Result{Status: status, Reason: reason}
}

// Options for the pipeline.
type Options struct {
	RegisterID string           // when set, transactions for other registers are rejected
	ClockSkew  time.Duration    // tolerance for timestamps in the future
	Now        func() time.Time // clock source, time.Now when nil
}

// Pipeline validates candidate transactions in four short-circuiting stages:
// structural, digest integrity, signature and schema.
type Pipeline struct {
	signer     signing.Signer
	blueprints blueprint.Service
	options    Options
}

// New creates a pipeline.
func New(signer signing.Signer, blueprints blueprint.Service, options Options) *Pipeline {
	if options.ClockSkew <= 0 {
		options.ClockSkew = ledger.DefaultClockSkew
	}
	if options.Now == nil {
		options.Now = time.Now
	}
	return &Pipeline{signer: signer, blueprints: blueprints, options: options}
}

// Validate runs every stage against trx. A non nil error means a collaborator
// was unavailable: the transaction is neither accepted nor rejected and the
// caller should resubmit.
func (p *Pipeline) Validate(ctx context.Context, trx *tx.Transaction) (Result, error) {
	start := time.Now()
	defer func() { metricValidateTime().Observe(time.Since(start).Milliseconds()) }()

	stages := []func(context.Context, *tx.Transaction) (Result, error){
		p.validateStructure,
		p.validateDigest,
		p.validateSignatures,
		p.validateSchema,
	}
	for _, stage := range stages {
		res, err := stage(ctx, trx)
		if err != nil {
			logger.Debug("validation deferred", "id", trx.ID(), "err", err)
			return Result{}, err
		}
		if !res.Accepted() {
			logger.Debug("tx rejected", "id", trx.ID(), "status", res.Status, "reason", res.Reason)
			metricRejectedTxs().AddWithLabel(1, map[string]string{"status": string(res.Status)})
			return res, nil
		}
	}
	return accepted(), nil
}

func (p *Pipeline) validateStructure(_ context.Context, trx *tx.Transaction) (Result, error) {
	switch {
	case trx.ID() == "":
		return reject(tx.StatusInvalidStructure, "transaction id required"), nil
	case trx.RegisterID() == "":
		return reject(tx.StatusInvalidStructure, "register id required"), nil
	case trx.BlueprintID() == "":
		return reject(tx.StatusInvalidStructure, "blueprint id required"), nil
	case trx.ActionID() == "":
		return reject(tx.StatusInvalidStructure, "action id required"), nil
	case trx.PayloadDigest().IsZero():
		return reject(tx.StatusInvalidStructure, "payload digest required"), nil
	case len(trx.Payload()) > ledger.MaxPayloadSize:
		return reject(tx.StatusInvalidStructure, "payload too large"), nil
	case trx.Timestamp().IsZero():
		return reject(tx.StatusInvalidTimestamp, "timestamp required"), nil
	}
	if p.options.RegisterID != "" && trx.RegisterID() != p.options.RegisterID {
		return reject(tx.StatusWrongRegister, "transaction targets register "+trx.RegisterID()), nil
	}

	now := p.options.Now()
	if trx.Timestamp().After(now.Add(p.options.ClockSkew)) {
		return reject(tx.StatusInvalidTimestamp, "timestamp in the future"), nil
	}
	if trx.IsExpired(now) {
		return reject(tx.StatusExpired, "transaction expired"), nil
	}
	return accepted(), nil
}

func (p *Pipeline) validateDigest(_ context.Context, trx *tx.Transaction) (Result, error) {
	if trx.ComputedDigest() != trx.PayloadDigest() {
		return reject(tx.StatusInvalidDigest, "payload digest mismatch"), nil
	}
	return accepted(), nil
}

func (p *Pipeline) validateSignatures(_ context.Context, trx *tx.Transaction) (Result, error) {
	sigs := trx.Signatures()
	if len(sigs) == 0 {
		return reject(tx.StatusMissingSignature, "at least one signature required"), nil
	}

	digest := trx.PayloadDigest()
	for i, sig := range sigs {
		if !p.signer.Supports(sig.Algorithm) {
			return reject(tx.StatusVersionNotSupported, "unsupported algorithm "+sig.Algorithm), nil
		}
		ok, err := p.signer.Verify(sig, digest.Bytes())
		if err != nil || !ok {
			logger.Trace("signature rejected", "id", trx.ID(), "index", i, "err", err)
			return reject(tx.StatusInvalidSignature, "signature does not verify"), nil
		}
	}
	return accepted(), nil
}

func (p *Pipeline) validateSchema(ctx context.Context, trx *tx.Transaction) (Result, error) {
	bp, err := p.blueprints.GetBlueprint(ctx, trx.BlueprintID())
	if err != nil {
		if errors.Is(err, blueprint.ErrBlueprintNotFound) {
			return reject(tx.StatusUnknownBlueprint, "unknown blueprint "+trx.BlueprintID()), nil
		}
		return Result{}, asUnavailable(err)
	}

	action, ok := bp.Action(trx.ActionID())
	if !ok {
		return reject(tx.StatusUnknownAction, "unknown action "+trx.ActionID()), nil
	}
	if len(action.Schema) == 0 {
		return accepted(), nil
	}

	err = p.blueprints.ValidatePayload(ctx, trx.BlueprintID(), trx.ActionID(), trx.Payload())
	var pe *blueprint.PayloadError
	switch {
	case err == nil:
		return accepted(), nil
	case errors.As(err, &pe):
		logger.Trace("payload rejected", "id", trx.ID(), "err", err)
		return reject(tx.StatusInvalidPayload, payloadReason(pe)), nil
	case errors.Is(err, blueprint.ErrBlueprintNotFound):
		return reject(tx.StatusUnknownBlueprint, "unknown blueprint "+trx.BlueprintID()), nil
	case errors.Is(err, blueprint.ErrActionNotFound):
		return reject(tx.StatusUnknownAction, "unknown action "+trx.ActionID()), nil
	}
	return Result{}, asUnavailable(err)
}

// payloadReason names the failing location only; schema messages stay in the logs.
func payloadReason(pe *blueprint.PayloadError) string {
	if pe.Path == "" {
		return "payload does not conform to the action schema"
	}
	return "payload does not conform to the action schema at " + pe.Path
}

func asUnavailable(err error) error {
	if ledger.IsUnavailable(err) {
		return err
	}
	return ledger.Unavailable("blueprint service", err)
}
