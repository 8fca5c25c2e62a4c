// Copyright (c) 2025 The Sorcha developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package subscriptions

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/event"
	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/StuartF303/Sorcha-sub006/chain"
	"github.com/StuartF303/Sorcha-sub006/docket"
	"github.com/StuartF303/Sorcha-sub006/tx"
	"github.com/StuartF303/Sorcha-sub006/txpool"
	"github.com/StuartF303/Sorcha-sub006/validator"
)

type fakeSources struct {
	txFeed     event.Feed
	docketFeed event.Feed
}

func (f *fakeSources) SubscribeTxEvent(registerID string, ch chan *txpool.TxEvent) (func(), error) {
	if registerID != "reg-1" {
		return nil, validator.ErrNotStarted
	}
	return f.txFeed.Subscribe(ch).Unsubscribe, nil
}

func (f *fakeSources) SubscribeNewDocket(ch chan *chain.NewDocketEvent) event.Subscription {
	return f.docketFeed.Subscribe(ch)
}

func newTestServer(t *testing.T) (*fakeSources, *Subscriptions, string) {
	src := &fakeSources{}
	subs := New(src, src, []string{"*"})
	router := mux.NewRouter()
	subs.Mount(router, "/subscriptions")
	ts := httptest.NewServer(router)
	t.Cleanup(func() {
		subs.Close()
		ts.Close()
	})
	return src, subs, "ws" + strings.TrimPrefix(ts.URL, "http")
}

// send retries until a subscriber is attached to the feed.
func send(t *testing.T, feed *event.Feed, v any) {
	require.Eventually(t, func() bool { return feed.Send(v) > 0 }, 2*time.Second, 5*time.Millisecond)
}

func TestSubscribeMempool(t *testing.T) {
	src, _, url := newTestServer(t)

	conn, _, err := websocket.DefaultDialer.Dial(url+"/subscriptions/mempool/reg-1", nil)
	require.NoError(t, err)
	defer conn.Close()

	trx := new(tx.Builder).ID("tx-1").RegisterID("reg-1").BlueprintID("bp").ActionID("act").
		Payload([]byte(`{"a":1}`)).Timestamp(time.Now()).Build()
	send(t, &src.txFeed, &txpool.TxEvent{RegisterID: "reg-1", Tx: trx})

	var msg PendingTxMessage
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	require.NoError(t, conn.ReadJSON(&msg))
	assert.Equal(t, "tx-1", msg.ID)
	assert.Equal(t, "bp", msg.BlueprintID)
	assert.Equal(t, trx.PayloadDigest(), msg.Digest)
}

func TestSubscribeMempoolNotStarted(t *testing.T) {
	_, _, url := newTestServer(t)

	_, resp, err := websocket.DefaultDialer.Dial(url+"/subscriptions/mempool/unknown", nil)
	assert.Error(t, err)
	if assert.NotNil(t, resp) {
		assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	}
}

func TestSubscribeDocketsFiltersRegister(t *testing.T) {
	src, _, url := newTestServer(t)

	conn, _, err := websocket.DefaultDialer.Dial(url+"/subscriptions/dockets/reg-2", nil)
	require.NoError(t, err)
	defer conn.Close()

	other := docket.New(docket.Header{ID: "a", RegisterID: "reg-1", Number: 0, Timestamp: time.Now()}, nil)
	mine := docket.New(docket.Header{ID: "b", RegisterID: "reg-2", Number: 0, Proposer: "v1", Timestamp: time.Now()}, nil)
	send(t, &src.docketFeed, &chain.NewDocketEvent{Docket: other})
	src.docketFeed.Send(&chain.NewDocketEvent{Docket: mine})

	var msg DocketMessage
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	require.NoError(t, conn.ReadJSON(&msg))
	assert.Equal(t, "reg-2", msg.RegisterID)
	assert.Equal(t, "v1", msg.Proposer)
	assert.Equal(t, mine.Digest(), msg.Digest)
}

func TestCloseEndsSubscriptions(t *testing.T) {
	_, subs, url := newTestServer(t)

	conn, _, err := websocket.DefaultDialer.Dial(url+"/subscriptions/dockets", nil)
	require.NoError(t, err)
	defer conn.Close()

	done := make(chan struct{})
	go func() {
		subs.Close()
		close(done)
	}()

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, _, err = conn.ReadMessage()
	assert.True(t, websocket.IsCloseError(err, websocket.CloseNormalClosure), "got %v", err)
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("close did not return")
	}
}
