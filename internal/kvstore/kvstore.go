// Package kvstore provides the durable string key-value storage the
// tracker keeps its tokens, sync state, settings and backups in. Writes
// never fail loudly: a store that cannot persist degrades to in-memory
// state and logs the problem.
package kvstore

type Store interface {
	Get(key string) (string, bool)
	Set(key, value string)
	Delete(key string)
	Keys(prefix string) []string
}
