// Copyright (c) 2025 The Sorcha developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package consensus

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/StuartF303/Sorcha-sub006/chain"
	"github.com/StuartF303/Sorcha-sub006/comm"
	"github.com/StuartF303/Sorcha-sub006/directory"
	"github.com/StuartF303/Sorcha-sub006/docket"
	"github.com/StuartF303/Sorcha-sub006/genesis"
	"github.com/StuartF303/Sorcha-sub006/ledger"
	"github.com/StuartF303/Sorcha-sub006/lvldb"
	"github.com/StuartF303/Sorcha-sub006/signing"
	"github.com/StuartF303/Sorcha-sub006/test/datagen"
	"github.com/StuartF303/Sorcha-sub006/tx"
	"github.com/StuartF303/Sorcha-sub006/txpool"
	"github.com/StuartF303/Sorcha-sub006/validation"
)

const reg = "reg-1"

type clock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *clock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// node is one validator of a test network.
type node struct {
	id     string
	engine *Engine
	pool   *txpool.TxPool
	repo   *chain.Repository
}

func (n *node) HandleProposal(ctx context.Context, _ string, d *docket.Docket) (docket.Vote, error) {
	return n.engine.Voter().Vote(ctx, d)
}

func (n *node) HandleConfirmed(ctx context.Context, _ string, d *docket.Docket) error {
	return n.engine.Voter().Accept(ctx, d)
}

func (n *node) HandleHeartbeat(_ context.Context, hb comm.Heartbeat) error {
	n.engine.Tracker().Touch(hb.ValidatorID)
	return nil
}

type cluster struct {
	f     *datagen.TxFactory
	net   *comm.LocalNetwork
	nodes []*node
	cfg   *genesis.Config
}

func newCluster(t *testing.T, n int, now func() time.Time) *cluster {
	c := &cluster{
		f:   datagen.NewTxFactory(),
		net: comm.NewLocalNetwork(),
		cfg: genesis.DefaultConfig(),
	}
	c.cfg.Consensus.VoteTimeout = genesis.Duration(time.Second)
	if now == nil {
		now = time.Now
	}

	for i := range n {
		id := fmt.Sprintf("v%d", i)
		keys := signing.NewKeyring()
		pub, err := keys.Generate(id, tx.AlgSecp256k1)
		require.NoError(t, err)

		db, err := lvldb.NewMem()
		require.NoError(t, err)
		t.Cleanup(func() { db.Close() })
		repo := chain.NewRepository(db)

		// transactions are signed by the factory keyring
		pipeline := validation.New(c.f.Keyring(), c.f.Registry(), validation.Options{RegisterID: reg})
		pool := txpool.New(pipeline, txpool.Options{RegisterID: reg})
		t.Cleanup(pool.Close)

		dir := directory.New(reg, c.net, c.cfg.DirectoryPolicy(), ledger.RetryPolicy{})
		nd := &node{id: id, pool: pool, repo: repo}
		nd.engine = New(Options{
			RegisterID:  reg,
			ValidatorID: id,
			KeyRef:      id,
			Signer:      keys,
			Directory:   dir,
			Pool:        pool,
			Ledger:      repo,
			Network:     c.net,
			Validator:   pipeline,
			Config:      func() *genesis.Config { return c.cfg },
			Now:         now,
		})
		c.net.Join(reg, directory.ValidatorInfo{
			ID:        id,
			Endpoint:  "local://" + id,
			PublicKey: pub,
			Algorithm: tx.AlgSecp256k1,
			Weight:    1,
			Active:    true,
		}, nd)
		c.nodes = append(c.nodes, nd)
	}
	return c
}

// submit admits a new transaction into every node's pool.
func (c *cluster) submit(t *testing.T) *tx.Transaction {
	trx := c.f.New(reg)
	for _, n := range c.nodes {
		res, err := n.pool.Submit(context.Background(), trx)
		require.NoError(t, err)
		require.True(t, res.Accepted(), res.Reason)
	}
	return trx
}

func TestSingleValidatorConfirms(t *testing.T) {
	c := newCluster(t, 1, nil)
	n := c.nodes[0]
	t1 := c.submit(t)

	res, err := n.engine.RunRound(context.Background())
	require.NoError(t, err)
	require.Equal(t, StatusConfirmed, res.Status)
	assert.Equal(t, uint64(0), res.Docket.Number())
	assert.Equal(t, []string{t1.ID()}, res.Docket.TxIDs())
	assert.Equal(t, 1, res.Votes)
	assert.Equal(t, 1, res.Quorum)
	assert.Equal(t, 0, n.pool.Len())
	assert.Equal(t, uint64(1), n.engine.Round())
	assert.Equal(t, StateIdle, n.engine.State())

	latest, err := n.repo.ReadLatestDocket(context.Background(), reg)
	require.NoError(t, err)
	assert.Equal(t, res.Docket.Digest(), latest.Digest())

	res, err = n.engine.RunRound(context.Background())
	require.NoError(t, err)
	assert.Equal(t, StatusNoTransactions, res.Status)
	assert.Equal(t, uint64(1), n.engine.Round())
}

func TestGaplessChain(t *testing.T) {
	c := newCluster(t, 1, nil)
	n := c.nodes[0]
	c.cfg.Consensus.MaxTxPerDocket = 2

	for range 5 {
		c.submit(t)
	}
	var prev *docket.Docket
	for i := range 3 {
		res, err := n.engine.RunRound(context.Background())
		require.NoError(t, err)
		require.Equal(t, StatusConfirmed, res.Status)
		assert.Equal(t, uint64(i), res.Docket.Number())
		assert.NoError(t, res.Docket.VerifyLink(prev))
		prev = res.Docket
	}
	assert.Len(t, prev.Transactions, 1)
	assert.Equal(t, 0, n.pool.Len())
}

func TestConcurrentRunRound(t *testing.T) {
	c := newCluster(t, 1, nil)
	n := c.nodes[0]
	c.submit(t)

	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		confirmed []*docket.Docket
	)
	for range 8 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			res, err := n.engine.RunRound(context.Background())
			if err != nil {
				assert.True(t, IsRoundInProgress(err))
				return
			}
			mu.Lock()
			defer mu.Unlock()
			if res.Status == StatusConfirmed {
				confirmed = append(confirmed, res.Docket)
			} else {
				assert.Equal(t, StatusNoTransactions, res.Status)
			}
		}()
	}
	wg.Wait()

	require.Len(t, confirmed, 1)
	assert.Equal(t, uint64(0), confirmed[0].Number())
	_, err := n.repo.ReadDocket(context.Background(), reg, 1)
	assert.True(t, chain.IsNotFound(err))
}

func TestDirectoryUnavailable(t *testing.T) {
	c := newCluster(t, 1, nil)
	n := c.nodes[0]
	t1 := c.submit(t)

	c.net.FailDirectory(errors.New("directory down"))
	res, err := n.engine.RunRound(context.Background())
	assert.Nil(t, res)
	assert.True(t, ledger.IsUnavailable(err))
	assert.Equal(t, uint64(0), n.engine.Round())
	assert.Same(t, t1, n.pool.Get(t1.ID()))
	assert.Equal(t, 1, n.pool.Len())

	c.net.FailDirectory(nil)
	res, err = n.engine.RunRound(context.Background())
	require.NoError(t, err)
	assert.Equal(t, StatusConfirmed, res.Status)
}

func TestMajorityConfirms(t *testing.T) {
	c := newCluster(t, 3, nil)
	leader := c.nodes[0]
	t1 := c.submit(t)

	res, err := c.nodes[1].engine.RunRound(context.Background())
	require.NoError(t, err)
	assert.Equal(t, StatusNotLeader, res.Status)
	assert.Equal(t, "v0", res.Leader)

	res, err = leader.engine.RunRound(context.Background())
	require.NoError(t, err)
	require.Equal(t, StatusConfirmed, res.Status)
	assert.Equal(t, 2, res.Quorum)
	assert.GreaterOrEqual(t, res.Votes, 2)
	assert.GreaterOrEqual(t, len(res.Docket.Votes), 2)

	// followers applied the broadcast
	for _, n := range c.nodes {
		latest, err := n.repo.ReadLatestDocket(context.Background(), reg)
		require.NoError(t, err, n.id)
		assert.Equal(t, res.Docket.Digest(), latest.Digest())
		assert.Nil(t, n.pool.Get(t1.ID()))
		assert.Equal(t, uint64(1), n.engine.Round())
	}
}

func TestMajorityToleratesSilentPeer(t *testing.T) {
	c := newCluster(t, 3, nil)
	c.submit(t)
	c.net.SetConnected("v2", false)

	res, err := c.nodes[0].engine.RunRound(context.Background())
	require.NoError(t, err)
	assert.Equal(t, StatusConfirmed, res.Status)
	assert.Equal(t, 2, res.Votes)
}

func TestMinorityDiscards(t *testing.T) {
	c := newCluster(t, 3, nil)
	c.cfg.Consensus.VoteTimeout = genesis.Duration(50 * time.Millisecond)
	t1 := c.submit(t)
	c.net.SetConnected("v1", false)
	c.net.SetConnected("v2", false)

	leader := c.nodes[0]
	res, err := leader.engine.RunRound(context.Background())
	require.NoError(t, err)
	assert.Equal(t, StatusDiscarded, res.Status)
	assert.Equal(t, 1, res.Votes)
	assert.Equal(t, 2, res.Quorum)
	assert.Equal(t, docket.StatusDiscarded, res.Docket.Status)

	assert.Same(t, t1, leader.pool.Get(t1.ID()))
	assert.Equal(t, uint64(1), leader.engine.Round())
	_, err = leader.repo.ReadLatestDocket(context.Background(), reg)
	assert.True(t, chain.IsNotFound(err))
}

func TestVoteBudget(t *testing.T) {
	c := newCluster(t, 2, nil)
	c.cfg.Consensus.VoteTimeout = genesis.Duration(30 * time.Millisecond)
	c.submit(t)
	c.net.Serve("v1", slowHandler{c.nodes[1], time.Second})

	start := time.Now()
	res, err := c.nodes[0].engine.RunRound(context.Background())
	require.NoError(t, err)
	assert.Equal(t, StatusDiscarded, res.Status)
	assert.Less(t, time.Since(start), 500*time.Millisecond)
}

type slowHandler struct {
	*node
	delay time.Duration
}

func (h slowHandler) HandleProposal(ctx context.Context, reg string, d *docket.Docket) (docket.Vote, error) {
	select {
	case <-time.After(h.delay):
	case <-ctx.Done():
		return docket.Vote{}, ctx.Err()
	}
	return h.node.HandleProposal(ctx, reg, d)
}

func TestLeaderTimeoutSkipsRound(t *testing.T) {
	clk := &clock{now: time.Unix(1_700_000_000, 0)}
	c := newCluster(t, 2, clk.Now)
	follower := c.nodes[1]

	res, err := follower.engine.RunRound(context.Background())
	require.NoError(t, err)
	assert.Equal(t, StatusNotLeader, res.Status)

	clk.Advance(c.cfg.LeaderElection.LeaderTimeout.Std() + time.Second)
	res, err = follower.engine.RunRound(context.Background())
	require.NoError(t, err)
	assert.Equal(t, StatusLeaderTimeout, res.Status)
	assert.Equal(t, uint64(1), follower.engine.Round())

	// v1 leads round 1
	leader, err := follower.engine.Leader(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "v1", leader.ID)
}

func TestHeartbeatKeepsLeaderAlive(t *testing.T) {
	clk := &clock{now: time.Unix(1_700_000_000, 0)}
	c := newCluster(t, 2, clk.Now)
	follower := c.nodes[1]

	clk.Advance(c.cfg.LeaderElection.LeaderTimeout.Std() - time.Second)
	require.NoError(t, c.net.Heartbeat(context.Background(), directory.ValidatorInfo{ID: "v1"},
		comm.Heartbeat{RegisterID: reg, ValidatorID: "v0"}))
	clk.Advance(2 * time.Second)

	res, err := follower.engine.RunRound(context.Background())
	require.NoError(t, err)
	assert.Equal(t, StatusNotLeader, res.Status)
}

func TestVoterRejects(t *testing.T) {
	c := newCluster(t, 2, nil)
	c.submit(t)
	leader, follower := c.nodes[0], c.nodes[1]
	ctx := context.Background()

	d, err := leader.engine.packer.Build(ctx, 0, 10)
	require.NoError(t, err)
	vote, err := follower.engine.Voter().Vote(ctx, d)
	require.NoError(t, err)
	assert.Equal(t, "v1", vote.ValidatorID)

	tampered := d.Copy()
	tampered.Transactions = append(tampered.Transactions, c.f.New(reg))
	_, err = follower.engine.Voter().Vote(ctx, tampered)
	assert.True(t, IsInvalidDocket(err))

	relinked := d.Copy()
	relinked.Header.Number = 4
	_, err = follower.engine.Voter().Vote(ctx, relinked)
	assert.True(t, IsInvalidDocket(err), "signature no longer matches digest")

	forged := d.Copy()
	forged.Header.Proposer = "v9"
	_, err = follower.engine.Voter().Vote(ctx, forged)
	assert.True(t, IsInvalidDocket(err))

	confirmed := d.Copy()
	confirmed.Status = docket.StatusConfirmed
	err = follower.engine.Voter().Accept(ctx, confirmed)
	assert.True(t, IsInvalidDocket(err), "only the proposer vote is attached")

	confirmed.AddVote(vote)
	require.NoError(t, follower.engine.Voter().Accept(ctx, confirmed))
	require.NoError(t, follower.engine.Voter().Accept(ctx, confirmed), "already held")
	assert.Equal(t, uint64(1), follower.engine.Round())
}

func TestSyncRound(t *testing.T) {
	c := newCluster(t, 1, nil)
	e := c.nodes[0].engine
	e.SyncRound(5)
	assert.Equal(t, uint64(5), e.Round())
	e.SyncRound(3)
	assert.Equal(t, uint64(5), e.Round())
}

func TestRoundBelowMinimum(t *testing.T) {
	c := newCluster(t, 2, nil)
	t1 := c.submit(t)
	leader := c.nodes[0]

	c.cfg.Consensus.MinSignatures = 3
	res, err := leader.engine.RunRound(context.Background())
	require.NoError(t, err)
	assert.Equal(t, StatusDiscarded, res.Status)
	assert.Contains(t, res.Reason, "cannot reach 3 signatures")
	assert.Nil(t, res.Docket)

	c.cfg.Consensus.MinSignatures = 1
	c.cfg.Membership.MinValidators = 3
	res, err = leader.engine.RunRound(context.Background())
	require.NoError(t, err)
	assert.Equal(t, StatusDiscarded, res.Status)
	assert.Contains(t, res.Reason, "minimum 3")

	assert.Equal(t, uint64(0), leader.engine.Round())
	assert.Same(t, t1, leader.pool.Get(t1.ID()))
	_, err = leader.repo.ReadLatestDocket(context.Background(), reg)
	assert.True(t, chain.IsNotFound(err))

	c.cfg.Membership.MinValidators = 2
	res, err = leader.engine.RunRound(context.Background())
	require.NoError(t, err)
	assert.Equal(t, StatusConfirmed, res.Status)
	assert.Equal(t, 2, res.Quorum)
}

// signedDocket builds a proposed docket of n carrying txs, bypassing its pool.
func signedDocket(t *testing.T, n *node, number, round uint64, prev *docket.Docket, txs tx.Transactions) *docket.Docket {
	h := docket.Header{
		ID:         fmt.Sprintf("%s-%d-%d", n.id, number, round),
		RegisterID: reg,
		Number:     number,
		Proposer:   n.id,
		Round:      round,
		Timestamp:  time.Now().UTC(),
	}
	if prev != nil {
		h.PreviousDigest = prev.Digest()
	}
	d := docket.New(h, txs)
	sig, err := n.engine.opts.Signer.Sign(d.Digest().Bytes(), n.id)
	require.NoError(t, err)
	d.ProposerSignature = sig
	d.AddVote(docket.Vote{ValidatorID: n.id, Signature: sig})
	return d
}

func TestCommittedTxNotReplayed(t *testing.T) {
	c := newCluster(t, 2, nil)
	t1 := c.submit(t)
	ctx := context.Background()

	res, err := c.nodes[0].engine.RunRound(ctx)
	require.NoError(t, err)
	require.Equal(t, StatusConfirmed, res.Status)
	first := res.Docket

	// v1 leads round 1 and proposes t1 again
	replay := signedDocket(t, c.nodes[1], 1, 1, first, tx.Transactions{t1})
	_, err = c.nodes[0].engine.Voter().Vote(ctx, replay)
	assert.True(t, IsInvalidDocket(err))
	assert.Contains(t, err.Error(), "already committed")

	// even with a quorum of signatures the ledger refuses it
	sig, err := c.nodes[0].engine.opts.Signer.Sign(replay.Digest().Bytes(), "v0")
	require.NoError(t, err)
	replay.AddVote(docket.Vote{ValidatorID: "v0", Signature: sig})
	replay.Status = docket.StatusConfirmed
	err = c.nodes[0].engine.Voter().Accept(ctx, replay)
	assert.True(t, IsInvalidDocket(err))
	assert.Contains(t, err.Error(), "already committed")

	// a resubmitted copy is dropped by the packer instead of re-proposed
	for _, n := range c.nodes {
		_, err := n.pool.Submit(ctx, t1)
		require.NoError(t, err)
	}
	res, err = c.nodes[1].engine.RunRound(ctx)
	require.NoError(t, err)
	assert.Equal(t, StatusNoTransactions, res.Status)
	assert.Equal(t, 0, c.nodes[1].pool.Len())

	latest, err := c.nodes[0].repo.ReadLatestDocket(ctx, reg)
	require.NoError(t, err)
	assert.Equal(t, first.Digest(), latest.Digest())
}

func TestVoterRequiresRoundLeader(t *testing.T) {
	c := newCluster(t, 3, nil)
	c.submit(t)
	ctx := context.Background()
	v0, v1, v2 := c.nodes[0], c.nodes[1], c.nodes[2]

	// v1 leads round 1, not v0
	d, err := v0.engine.packer.Build(ctx, 1, 10)
	require.NoError(t, err)
	_, err = v2.engine.Voter().Vote(ctx, d)
	assert.True(t, IsInvalidDocket(err))
	assert.Contains(t, err.Error(), "does not lead round 1")

	d, err = v1.engine.packer.Build(ctx, 1, 10)
	require.NoError(t, err)
	_, err = v2.engine.Voter().Vote(ctx, d)
	require.NoError(t, err)
	assert.Equal(t, uint64(1), v2.engine.Round())

	// round 0 is behind v2 now
	d, err = v0.engine.packer.Build(ctx, 0, 10)
	require.NoError(t, err)
	_, err = v2.engine.Voter().Vote(ctx, d)
	assert.True(t, IsInvalidDocket(err))
	assert.Contains(t, err.Error(), "stale round")
}

func TestVoterSignsOneDocketPerNumber(t *testing.T) {
	clk := &clock{now: time.Unix(1_700_000_000, 0)}
	c := newCluster(t, 3, clk.Now)
	c.submit(t)
	ctx := context.Background()
	v0, v1, v2 := c.nodes[0], c.nodes[1], c.nodes[2]

	first, err := v0.engine.packer.Build(ctx, 0, 10)
	require.NoError(t, err)
	_, err = v2.engine.Voter().Vote(ctx, first)
	require.NoError(t, err)

	// v1 leads round 1 and proposes a different docket at the same number
	fork, err := v1.engine.packer.Build(ctx, 1, 10)
	require.NoError(t, err)
	require.Equal(t, first.Number(), fork.Number())
	_, err = v2.engine.Voter().Vote(ctx, fork)
	assert.True(t, IsInvalidDocket(err))
	assert.Contains(t, err.Error(), "already voted")

	// the same docket may be voted again
	_, err = v2.engine.Voter().Vote(ctx, first)
	require.NoError(t, err)

	// once the first proposer has stopped collecting, the vote is released
	clk.Advance(c.cfg.Consensus.VoteTimeout.Std())
	_, err = v2.engine.Voter().Vote(ctx, fork)
	require.NoError(t, err)
	assert.Equal(t, uint64(1), v2.engine.Round())
}
