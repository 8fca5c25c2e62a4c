// Copyright (c) 2025 The Sorcha developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package rounddb

const roundTableSchema = `
create table if not exists round (
	seq integer primary key autoincrement,
	registerID text not null,
	round integer not null,
	status text not null,
	leader text,
	docketNumber integer,
	docketDigest blob(32),
	txCount integer not null default 0,
	votes integer not null default 0,
	quorum integer not null default 0,
	reason text,
	elapsedMs integer not null default 0,
	recordedAt integer not null
);

CREATE INDEX if not exists registerRoundIndex on round(registerID, seq);
`
