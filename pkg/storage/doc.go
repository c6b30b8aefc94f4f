// Package storage provides database and cache connection management plus a
// versioned migration runner. Domain packages declare their own migrations;
// this package owns the mechanics of connecting and applying them.
package storage
