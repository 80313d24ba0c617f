// Package mongo wires a MongoDB-backed spansink.Store. Use clients/mongo to
// build the low-level client and pass it to NewStore, or call
// NewStoreFromMongo directly with clients/mongo Options (an already
// connected driver client plus a database name), to obtain a
// spansink.Store that durably records every completed ExecutionSpan.
package mongo
