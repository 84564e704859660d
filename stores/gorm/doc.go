//go:build !wasm
// +build !wasm

// Package gorm provides a GORM-based implementation of the userforms
// AccountStore. It supports any database that GORM supports (PostgreSQL,
// MySQL, SQLite, etc.).
//
// # Database Schema
//
// The package auto-migrates the accounts table. Email addresses carry a
// unique index; accounts without an address store NULL.
//
// # Usage
//
//	db, _ := gorm.Open(postgres.Open(dsn), &gorm.Config{})
//	gormstore.AutoMigrate(db)
//	accounts := gormstore.NewAccountStore(db)
package gorm
