// Copyright (c) 2025 The Sorcha developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package tx

// Status is the machine readable outcome of admitting a transaction.
type Status string

const (
	StatusAccepted            Status = "accepted"
	StatusInvalidStructure    Status = "invalid-structure"
	StatusInvalidTimestamp    Status = "invalid-timestamp"
	StatusExpired             Status = "expired"
	StatusInvalidDigest       Status = "invalid-digest"
	StatusMissingSignature    Status = "missing-signature"
	StatusVersionNotSupported Status = "version-not-supported"
	StatusInvalidSignature    Status = "invalid-signature"
	StatusUnknownBlueprint    Status = "unknown-blueprint"
	StatusUnknownAction       Status = "unknown-action"
	StatusInvalidPayload      Status = "invalid-payload"
	StatusWrongRegister       Status = "wrong-register"
	StatusDuplicate           Status = "duplicate"
	StatusPoolFull            Status = "pool-full"
	StatusServiceUnavailable  Status = "service-unavailable"
)

// IsAccepted returns whether s is the accepted status.
func (s Status) IsAccepted() bool {
	return s == StatusAccepted
}
