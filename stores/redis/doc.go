// Package redis provides a Redis-backed session store for scs, so sessions
// (and with them pass-reset tokens and form state) survive restarts and are
// shared between instances.
//
// # Usage
//
//	rdb := goredis.NewClient(&goredis.Options{Addr: "localhost:6379"})
//	session := scs.New()
//	session.Store = redis.NewSessionStore(rdb, "userforms")
package redis
