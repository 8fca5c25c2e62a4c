// Copyright (c) 2025 The Sorcha developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package txpool

import (
	"slices"
	"sync"
	"time"
)

// txObjectMap maps tx id to tx object.
type txObjectMap struct {
	lock    sync.RWMutex
	mapByID map[string]*txObject
	nextSeq uint64
}

func newTxObjectMap() *txObjectMap {
	return &txObjectMap{
		mapByID: make(map[string]*txObject),
	}
}

func (m *txObjectMap) Contains(id string) bool {
	m.lock.RLock()
	defer m.lock.RUnlock()
	_, found := m.mapByID[id]
	return found
}

// Add admits txObj and assigns its admission sequence.
// It never replaces an existing entry and never evicts to make room.
func (m *txObjectMap) Add(txObj *txObject, limit int) error {
	m.lock.Lock()
	defer m.lock.Unlock()

	if _, found := m.mapByID[txObj.ID()]; found {
		return errKnownTx
	}
	if len(m.mapByID) >= limit {
		return errPoolFull
	}
	txObj.seq = m.nextSeq
	m.nextSeq++
	m.mapByID[txObj.ID()] = txObj
	return nil
}

func (m *txObjectMap) Get(id string) *txObject {
	m.lock.RLock()
	defer m.lock.RUnlock()
	return m.mapByID[id]
}

// Remove deletes the given ids and returns how many were present.
func (m *txObjectMap) Remove(ids ...string) int {
	m.lock.Lock()
	defer m.lock.Unlock()

	n := 0
	for _, id := range ids {
		if _, ok := m.mapByID[id]; ok {
			delete(m.mapByID, id)
			n++
		}
	}
	return n
}

// PurgeExpired removes entries expired at now and returns them.
func (m *txObjectMap) PurgeExpired(now time.Time) txObjects {
	m.lock.Lock()
	defer m.lock.Unlock()

	var expired txObjects
	for id, obj := range m.mapByID {
		if obj.IsExpired(now) {
			delete(m.mapByID, id)
			expired = append(expired, obj)
		}
	}
	return expired
}

func (m *txObjectMap) Clear() int {
	m.lock.Lock()
	defer m.lock.Unlock()
	n := len(m.mapByID)
	m.mapByID = make(map[string]*txObject)
	return n
}

func (m *txObjectMap) Len() int {
	m.lock.RLock()
	defer m.lock.RUnlock()
	return len(m.mapByID)
}

// ToSorted returns the entries in admission order.
func (m *txObjectMap) ToSorted() txObjects {
	m.lock.RLock()
	objs := make(txObjects, 0, len(m.mapByID))
	for _, obj := range m.mapByID {
		objs = append(objs, obj)
	}
	m.lock.RUnlock()

	slices.SortFunc(objs, func(a, b *txObject) int {
		switch {
		case a.seq < b.seq:
			return -1
		case a.seq > b.seq:
			return 1
		}
		return 0
	})
	return objs
}
