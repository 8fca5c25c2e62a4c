// Copyright (c) 2025 The Sorcha developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package subscriptions

import (
	"net/http"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/event"
	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
	"github.com/pkg/errors"

	"github.com/StuartF303/Sorcha-sub006/api/utils"
	"github.com/StuartF303/Sorcha-sub006/chain"
	"github.com/StuartF303/Sorcha-sub006/log"
	"github.com/StuartF303/Sorcha-sub006/txpool"
)

var logger = log.WithContext("pkg", "subscriptions")

const (
	// Time allowed to write a message to the peer.
	writeWait = 10 * time.Second
	// Time allowed to read the next pong message from the peer.
	pongWait = 60 * time.Second
	// Send pings to peer with this period. Must be less than pongWait.
	pingPeriod = (pongWait * 7) / 10
)

// TxEventSource provides mempool admissions per register.
type TxEventSource interface {
	SubscribeTxEvent(registerID string, ch chan *txpool.TxEvent) (func(), error)
}

// DocketSource provides written dockets of every register.
type DocketSource interface {
	SubscribeNewDocket(ch chan *chain.NewDocketEvent) event.Subscription
}

type Subscriptions struct {
	txs      TxEventSource
	dockets  DocketSource
	upgrader *websocket.Upgrader
	done     chan struct{}
	wg       sync.WaitGroup
	once     sync.Once
}

func New(txs TxEventSource, dockets DocketSource, allowedOrigins []string) *Subscriptions {
	return &Subscriptions{
		txs:     txs,
		dockets: dockets,
		upgrader: &websocket.Upgrader{
			EnableCompression: true,
			CheckOrigin: func(r *http.Request) bool {
				origin := r.Header.Get("Origin")
				if origin == "" {
					return true
				}
				for _, allowed := range allowedOrigins {
					if allowed == origin || allowed == "*" {
						return true
					}
				}
				return false
			},
		},
		done: make(chan struct{}),
	}
}

func (s *Subscriptions) handleSubscribeMempool(w http.ResponseWriter, req *http.Request) error {
	registerID := mux.Vars(req)["id"]
	ch := make(chan *txpool.TxEvent, 64)
	unsubscribe, err := s.txs.SubscribeTxEvent(registerID, ch)
	if err != nil {
		return utils.ServiceError(err)
	}
	defer unsubscribe()

	return s.serve(w, req, func(closed <-chan struct{}) (any, bool) {
		select {
		case ev := <-ch:
			return convertTxEvent(ev), true
		case <-closed:
			return nil, false
		}
	})
}

func (s *Subscriptions) handleSubscribeDockets(w http.ResponseWriter, req *http.Request) error {
	registerID := mux.Vars(req)["id"]
	ch := make(chan *chain.NewDocketEvent, 16)
	sub := s.dockets.SubscribeNewDocket(ch)
	defer sub.Unsubscribe()

	return s.serve(w, req, func(closed <-chan struct{}) (any, bool) {
		for {
			select {
			case ev := <-ch:
				if registerID != "" && ev.Docket.Header.RegisterID != registerID {
					continue
				}
				return convertDocketEvent(ev), true
			case <-closed:
				return nil, false
			}
		}
	})
}

// serve upgrades the connection and writes every message next yields until
// the client goes away or the server closes.
func (s *Subscriptions) serve(w http.ResponseWriter, req *http.Request, next func(closed <-chan struct{}) (any, bool)) error {
	conn, err := s.upgrader.Upgrade(w, req, nil)
	if err != nil {
		// the upgrader already replied
		logger.Debug("upgrade failed", "err", err)
		return nil
	}
	s.wg.Add(1)
	defer s.wg.Done()
	defer conn.Close()

	closed := make(chan struct{})
	var once sync.Once
	closeFn := func() { once.Do(func() { close(closed) }) }

	conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	go func() {
		defer closeFn()
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()
	go func() {
		select {
		case <-s.done:
			closeFn()
		case <-closed:
		}
	}()

	msgs := make(chan any)
	go func() {
		defer close(msgs)
		for {
			msg, ok := next(closed)
			if !ok {
				return
			}
			select {
			case msgs <- msg:
			case <-closed:
				return
			}
		}
	}()

	pingTicker := time.NewTicker(pingPeriod)
	defer pingTicker.Stop()
	for {
		select {
		case msg, ok := <-msgs:
			if !ok {
				return s.closeConn(conn)
			}
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteJSON(msg); err != nil {
				closeFn()
				return nil
			}
		case <-pingTicker.C:
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				closeFn()
				return nil
			}
		}
	}
}

func (s *Subscriptions) closeConn(conn *websocket.Conn) error {
	msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
	if err := conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(writeWait)); err != nil && !errors.Is(err, websocket.ErrCloseSent) {
		logger.Trace("close message not sent", "err", err)
	}
	return nil
}

// Close ends every open subscription and waits for them to finish.
func (s *Subscriptions) Close() {
	s.once.Do(func() { close(s.done) })
	s.wg.Wait()
}

func (s *Subscriptions) Mount(root *mux.Router, pathPrefix string) {
	sub := root.PathPrefix(pathPrefix).Subrouter()

	sub.Path("/mempool/{id}").
		Methods(http.MethodGet).
		Name("subscriptions_mempool").
		HandlerFunc(utils.WrapHandlerFunc(s.handleSubscribeMempool))
	sub.Path("/dockets").
		Methods(http.MethodGet).
		Name("subscriptions_dockets").
		HandlerFunc(utils.WrapHandlerFunc(s.handleSubscribeDockets))
	sub.Path("/dockets/{id}").
		Methods(http.MethodGet).
		Name("subscriptions_register_dockets").
		HandlerFunc(utils.WrapHandlerFunc(s.handleSubscribeDockets))
}
