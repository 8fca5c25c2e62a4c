// Copyright (c) 2025 The Sorcha developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package api

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/StuartF303/Sorcha-sub006/api/registers"
	"github.com/StuartF303/Sorcha-sub006/chain"
	"github.com/StuartF303/Sorcha-sub006/comm"
	"github.com/StuartF303/Sorcha-sub006/consensus"
	"github.com/StuartF303/Sorcha-sub006/directory"
	"github.com/StuartF303/Sorcha-sub006/docket"
	"github.com/StuartF303/Sorcha-sub006/ledger"
	"github.com/StuartF303/Sorcha-sub006/lvldb"
	"github.com/StuartF303/Sorcha-sub006/rounddb"
	"github.com/StuartF303/Sorcha-sub006/signing"
	"github.com/StuartF303/Sorcha-sub006/test/datagen"
	"github.com/StuartF303/Sorcha-sub006/tx"
	"github.com/StuartF303/Sorcha-sub006/validator"
)

const reg = "reg-1"

type testNode struct {
	id   string
	url  string
	info directory.ValidatorInfo
	orch *validator.Orchestrator
}

func newTestNode(t *testing.T, id string, f *datagen.TxFactory, nw *comm.HTTPNetwork) *testNode {
	var handler http.Handler
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		handler.ServeHTTP(w, r)
	}))
	t.Cleanup(ts.Close)

	db, err := lvldb.NewMem()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	rounds, err := rounddb.NewMem()
	require.NoError(t, err)
	t.Cleanup(func() { rounds.Close() })

	keys := signing.NewKeyring()
	pub, err := keys.Generate("node", tx.AlgSecp256k1)
	require.NoError(t, err)

	repo := chain.NewRepository(db)
	orch := validator.New(validator.Options{
		ValidatorID: id,
		KeyRef:      "node",
		Endpoint:    ts.URL,
		Keys:        keys,
		Blueprints:  f.Registry(),
		Ledger:      repo,
		Network:     nw,
		Store:       db,
		Rounds:      rounds,
		Retry:       ledger.RetryPolicy{Attempts: 1, Timeout: 2 * time.Second},
	})
	t.Cleanup(func() { orch.StopAll(context.Background(), false) })

	h, closeSubs := New(orch, repo, Options{AllowedOrigins: "*", EnableMetrics: true})
	t.Cleanup(closeSubs)
	handler = h

	return &testNode{
		id:   id,
		url:  ts.URL,
		info: directory.ValidatorInfo{ID: id, Endpoint: ts.URL, PublicKey: pub, Algorithm: tx.AlgSecp256k1, Weight: 1, Active: true},
		orch: orch,
	}
}

func httpPost(t *testing.T, url string, body any) (int, []byte) {
	var r io.Reader = http.NoBody
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		r = bytes.NewReader(data)
	}
	resp, err := http.Post(url, "application/json", r)
	require.NoError(t, err)
	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp.StatusCode, data
}

func httpGet(t *testing.T, url string) (int, []byte) {
	resp, err := http.Get(url)
	require.NoError(t, err)
	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp.StatusCode, data
}

func TestSingleNodeAPI(t *testing.T) {
	f := datagen.NewTxFactory()
	n := newTestNode(t, "v0", f, comm.NewHTTPNetwork("", nil))
	base := n.url + "/registers/" + reg

	code, _ := httpGet(t, base+"/status")
	assert.Equal(t, http.StatusNotFound, code)

	code, body := httpPost(t, base+"/start", nil)
	require.Equal(t, http.StatusOK, code, string(body))
	var lc registers.LifecycleResponse
	require.NoError(t, json.Unmarshal(body, &lc))
	assert.True(t, lc.Changed)

	code, body = httpPost(t, base+"/start", nil)
	require.Equal(t, http.StatusOK, code)
	require.NoError(t, json.Unmarshal(body, &lc))
	assert.False(t, lc.Changed)

	code, body = httpGet(t, n.url+"/registers")
	require.Equal(t, http.StatusOK, code)
	assert.JSONEq(t, `["reg-1"]`, string(body))

	trx := f.New(reg)
	code, body = httpPost(t, base+"/transactions", trx)
	require.Equal(t, http.StatusAccepted, code, string(body))
	var sub registers.SubmitResponse
	require.NoError(t, json.Unmarshal(body, &sub))
	assert.Equal(t, tx.StatusAccepted, sub.Status)

	code, body = httpPost(t, base+"/transactions", trx)
	assert.Equal(t, http.StatusConflict, code)
	require.NoError(t, json.Unmarshal(body, &sub))
	assert.Equal(t, tx.StatusDuplicate, sub.Status)

	bad := trx.WithPayload([]byte(`{"amount":0}`))
	code, body = httpPost(t, base+"/transactions", bad)
	assert.Equal(t, http.StatusBadRequest, code)
	require.NoError(t, json.Unmarshal(body, &sub))
	assert.Equal(t, tx.StatusInvalidDigest, sub.Status)

	code, _ = httpPost(t, base+"/transactions", map[string]any{"unknown": 1})
	assert.Equal(t, http.StatusBadRequest, code)

	code, body = httpGet(t, base+"/mempool?expanded=true")
	require.Equal(t, http.StatusOK, code)
	var pool registers.Mempool
	require.NoError(t, json.Unmarshal(body, &pool))
	assert.Equal(t, 1, pool.Stats.Count)
	if assert.Len(t, pool.Transactions, 1) {
		assert.Equal(t, trx.ID(), pool.Transactions[0].ID())
	}

	code, _ = httpGet(t, base+"/dockets/latest")
	assert.Equal(t, http.StatusNotFound, code)

	code, body = httpPost(t, base+"/rounds", nil)
	require.Equal(t, http.StatusOK, code, string(body))
	var round consensus.Result
	require.NoError(t, json.Unmarshal(body, &round))
	require.Equal(t, consensus.StatusConfirmed, round.Status)
	assert.Equal(t, []string{trx.ID()}, round.Docket.TxIDs())

	code, body = httpGet(t, base+"/dockets/0")
	require.Equal(t, http.StatusOK, code)
	var d docket.Docket
	require.NoError(t, json.Unmarshal(body, &d))
	assert.Equal(t, round.Docket.Digest(), d.Digest())
	assert.Equal(t, docket.StatusConfirmed, d.Status)

	code, _ = httpGet(t, base+"/dockets/x")
	assert.Equal(t, http.StatusBadRequest, code)

	code, body = httpGet(t, base+"/rounds?limit=5")
	require.Equal(t, http.StatusOK, code)
	var records []rounddb.Record
	require.NoError(t, json.Unmarshal(body, &records))
	if assert.Len(t, records, 1) {
		assert.Equal(t, string(consensus.StatusConfirmed), records[0].Status)
	}

	code, body = httpGet(t, base+"/validators")
	require.Equal(t, http.StatusOK, code)
	var list []directory.ValidatorInfo
	require.NoError(t, json.Unmarshal(body, &list))
	if assert.Len(t, list, 1) {
		assert.Equal(t, "v0", list[0].ID)
	}

	code, body = httpPost(t, base+"/stop?persist=false", nil)
	require.Equal(t, http.StatusOK, code)
	require.NoError(t, json.Unmarshal(body, &lc))
	assert.True(t, lc.Changed)

	code, _ = httpPost(t, base+"/stop?persist=maybe", nil)
	assert.Equal(t, http.StatusBadRequest, code)
}

func TestTwoNodesOverHTTP(t *testing.T) {
	f := datagen.NewTxFactory()
	nw := comm.NewHTTPNetwork("", nil)
	a := newTestNode(t, "v-a", f, nw)
	b := newTestNode(t, "v-b", f, nw)
	nw.SetStatic(reg, []directory.ValidatorInfo{a.info, b.info})

	for _, n := range []*testNode{a, b} {
		code, body := httpPost(t, n.url+"/registers/"+reg+"/start", nil)
		require.Equal(t, http.StatusOK, code, string(body))
	}

	code, body := httpGet(t, a.url+"/registers/"+reg+"/status")
	require.Equal(t, http.StatusOK, code)
	var st validator.Status
	require.NoError(t, json.Unmarshal(body, &st))
	assert.Equal(t, 2, st.Validators.Active)

	leader, follower := a, b
	if st.Leader == b.id {
		leader, follower = b, a
	}

	trx := f.New(reg)
	code, body = httpPost(t, leader.url+"/registers/"+reg+"/transactions", trx)
	require.Equal(t, http.StatusAccepted, code, string(body))

	code, body = httpPost(t, leader.url+"/registers/"+reg+"/rounds", nil)
	require.Equal(t, http.StatusOK, code, string(body))
	var round consensus.Result
	require.NoError(t, json.Unmarshal(body, &round))
	require.Equal(t, consensus.StatusConfirmed, round.Status, round.Reason)
	assert.Equal(t, 2, round.Votes)

	code, body = httpGet(t, follower.url+"/registers/"+reg+"/dockets/latest")
	require.Equal(t, http.StatusOK, code, string(body))
	var d docket.Docket
	require.NoError(t, json.Unmarshal(body, &d))
	assert.Equal(t, round.Docket.Digest(), d.Digest())
	assert.Len(t, d.Votes, 2)
}
