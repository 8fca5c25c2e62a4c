// Copyright (c) 2025 The Sorcha developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

// Package rounddb keeps an audit log of consensus round outcomes in sqlite.
package rounddb

import (
	"context"
	"database/sql"
	"time"

	sqlite3 "github.com/mattn/go-sqlite3"
	"github.com/pkg/errors"

	"github.com/StuartF303/Sorcha-sub006/ledger"
)

// Record is one round outcome.
type Record struct {
	RegisterID   string          `json:"registerId"`
	Round        uint64          `json:"round"`
	Status       string          `json:"status"`
	Leader       string          `json:"leader,omitempty"`
	DocketNumber *uint64         `json:"docketNumber,omitempty"`
	DocketDigest *ledger.Bytes32 `json:"docketDigest,omitempty"`
	TxCount      int             `json:"txCount"`
	Votes        int             `json:"votes"`
	Quorum       int             `json:"quorum"`
	Reason       string          `json:"reason,omitempty"`
	Elapsed      time.Duration   `json:"elapsed"`
	RecordedAt   time.Time       `json:"recordedAt"`
}

type RoundDB struct {
	path          string
	db            *sql.DB
	driverVersion string
}

// New create or open round db at given path.
func New(path string) (roundDB *RoundDB, err error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, err
	}
	defer func() {
		if roundDB == nil {
			db.Close()
		}
	}()
	// a single connection keeps ":memory:" databases shared
	db.SetMaxOpenConns(1)
	if _, err := db.Exec(roundTableSchema); err != nil {
		return nil, err
	}

	driverVer, _, _ := sqlite3.Version()
	return &RoundDB{path, db, driverVer}, nil
}

// NewMem create a round db in ram.
func NewMem() (*RoundDB, error) {
	return New(":memory:")
}

// Close close the round db.
func (db *RoundDB) Close() error {
	return db.db.Close()
}

func (db *RoundDB) Path() string {
	return db.path
}

// DriverVersion returns the sqlite version.
func (db *RoundDB) DriverVersion() string {
	return db.driverVersion
}

// Record appends an outcome.
func (db *RoundDB) Record(ctx context.Context, r *Record) error {
	var (
		number any
		digest any
	)
	if r.DocketNumber != nil {
		number = *r.DocketNumber
	}
	if r.DocketDigest != nil {
		digest = r.DocketDigest.Bytes()
	}
	if r.RecordedAt.IsZero() {
		r.RecordedAt = time.Now()
	}
	_, err := db.db.ExecContext(ctx,
		"INSERT INTO round(registerID, round, status, leader, docketNumber, docketDigest, txCount, votes, quorum, reason, elapsedMs, recordedAt) VALUES(?,?,?,?,?,?,?,?,?,?,?,?)",
		r.RegisterID, r.Round, r.Status, r.Leader, number, digest, r.TxCount, r.Votes, r.Quorum, r.Reason,
		r.Elapsed.Milliseconds(), r.RecordedAt.UnixNano())
	return errors.Wrap(err, "insert round")
}

// Query returns the latest limit records of a register, newest first.
func (db *RoundDB) Query(ctx context.Context, registerID string, limit int) ([]*Record, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := db.db.QueryContext(ctx,
		"SELECT round, status, leader, docketNumber, docketDigest, txCount, votes, quorum, reason, elapsedMs, recordedAt FROM round WHERE registerID = ? ORDER BY seq DESC LIMIT ?",
		registerID, limit)
	if err != nil {
		return nil, errors.Wrap(err, "query rounds")
	}
	defer rows.Close()

	var records []*Record
	for rows.Next() {
		var (
			r         = &Record{RegisterID: registerID}
			leader    sql.NullString
			reason    sql.NullString
			number    sql.NullInt64
			digest    []byte
			elapsedMs int64
			at        int64
		)
		if err := rows.Scan(&r.Round, &r.Status, &leader, &number, &digest, &r.TxCount, &r.Votes, &r.Quorum, &reason, &elapsedMs, &at); err != nil {
			return nil, err
		}
		r.Leader = leader.String
		r.Reason = reason.String
		if number.Valid {
			n := uint64(number.Int64)
			r.DocketNumber = &n
		}
		if len(digest) == 32 {
			d := ledger.BytesToBytes32(digest)
			r.DocketDigest = &d
		}
		r.Elapsed = time.Duration(elapsedMs) * time.Millisecond
		r.RecordedAt = time.Unix(0, at)
		records = append(records, r)
	}
	return records, rows.Err()
}
