// Copyright (c) 2025 The Sorcha developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package health

import (
	"sort"
	"sync"
	"time"

	"github.com/StuartF303/Sorcha-sub006/ledger"
)

// DocketIngestion is the latest docket written for a register.
type DocketIngestion struct {
	RegisterID string         `json:"registerId"`
	Number     uint64         `json:"number"`
	Digest     ledger.Bytes32 `json:"digest"`
	Timestamp  time.Time      `json:"timestamp"`
}

type Status struct {
	Healthy   bool               `json:"healthy"`
	Started   bool               `json:"started"`
	Registers []string           `json:"registers"`
	Dockets   []*DocketIngestion `json:"dockets"`
}

// Health tracks node liveness for the admin API. A node is healthy once its
// registers have started and none of them is stopped.
type Health struct {
	lock      sync.RWMutex
	started   bool
	registers func() []string
	expected  int
	dockets   map[string]*DocketIngestion
}

// New creates a Health. registers reports the running registers.
func New(registers func() []string) *Health {
	return &Health{
		registers: registers,
		dockets:   make(map[string]*DocketIngestion),
	}
}

// Started marks the node started with the number of registers it serves.
func (h *Health) Started(expected int) {
	h.lock.Lock()
	defer h.lock.Unlock()

	h.started = true
	h.expected = expected
}

// NewDocket records a written docket.
func (h *Health) NewDocket(registerID string, number uint64, digest ledger.Bytes32) {
	h.lock.Lock()
	defer h.lock.Unlock()

	h.dockets[registerID] = &DocketIngestion{
		RegisterID: registerID,
		Number:     number,
		Digest:     digest,
		Timestamp:  time.Now(),
	}
}

func (h *Health) Status() *Status {
	h.lock.RLock()
	defer h.lock.RUnlock()

	var registers []string
	if h.registers != nil {
		registers = h.registers()
	}
	sort.Strings(registers)

	dockets := make([]*DocketIngestion, 0, len(h.dockets))
	for _, d := range h.dockets {
		cpy := *d
		dockets = append(dockets, &cpy)
	}
	sort.Slice(dockets, func(i, j int) bool { return dockets[i].RegisterID < dockets[j].RegisterID })

	return &Status{
		Healthy:   h.started && len(registers) >= h.expected,
		Started:   h.started,
		Registers: registers,
		Dockets:   dockets,
	}
}
