//go:build !wasm
// +build !wasm

// Package gae provides a Google Cloud Datastore implementation of the
// userforms AccountStore. It supports multi-tenancy through Datastore
// namespaces.
//
// # Datastore Kinds
//
//   - Account: one entity per account, keyed by its numeric ID
//
// # Usage
//
//	client, _ := datastore.NewClient(ctx, projectID)
//	accounts := gae.NewAccountStore(client, "")  // default namespace
package gae
