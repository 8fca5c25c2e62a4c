// Copyright (c) 2025 The Sorcha developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package kv

// Bucket provides logical bucket for kv store.
type Bucket string

func (b Bucket) key(k []byte) []byte {
	return append(append(make([]byte, 0, len(b)+len(k)), b...), k...)
}

// NewStore creates a bucket store from the source store.
func (b Bucket) NewStore(src Store) Store {
	return &bucketStore{b, src}
}

type bucketStore struct {
	bucket Bucket
	src    Store
}

func (s *bucketStore) Get(key []byte) ([]byte, error) { return s.src.Get(s.bucket.key(key)) }
func (s *bucketStore) Has(key []byte) (bool, error)   { return s.src.Has(s.bucket.key(key)) }
func (s *bucketStore) IsNotFound(err error) bool      { return s.src.IsNotFound(err) }
func (s *bucketStore) Put(key, value []byte) error    { return s.src.Put(s.bucket.key(key), value) }
func (s *bucketStore) Delete(key []byte) error        { return s.src.Delete(s.bucket.key(key)) }
func (s *bucketStore) NewBatch() Batch                { return &bucketBatch{s.bucket, s.src.NewBatch()} }

func (s *bucketStore) Iterate(r Range) Iterator {
	r.Start = s.bucket.key(r.Start)
	if len(r.Limit) == 0 {
		r.Limit = PrefixRange([]byte(s.bucket)).Limit
	} else {
		r.Limit = s.bucket.key(r.Limit)
	}
	return &bucketIterator{s.src.Iterate(r), len(s.bucket)}
}

type bucketBatch struct {
	bucket Bucket
	src    Batch
}

func (b *bucketBatch) Put(key, value []byte) error { return b.src.Put(b.bucket.key(key), value) }
func (b *bucketBatch) Delete(key []byte) error     { return b.src.Delete(b.bucket.key(key)) }
func (b *bucketBatch) Len() int                    { return b.src.Len() }
func (b *bucketBatch) Write() error                { return b.src.Write() }

type bucketIterator struct {
	Iterator
	prefixLen int
}

// Key strips the bucket prefix.
func (it *bucketIterator) Key() []byte {
	return it.Iterator.Key()[it.prefixLen:]
}

// NewBatch wraps a batch of the source store so that its puts land in the bucket.
// Wrapping one source batch with several buckets writes them atomically.
func (b Bucket) NewBatch(src Batch) Batch {
	return &bucketBatch{b, src}
}
