// Package confstore persists the client's local key/value state in SQLite:
// unlock credentials (passkey credential id, PIN record), the stored auth
// session and small UI markers such as the last opened day.
//
// Contract
//
//   - GetConf returns (nil, nil) for a missing key.
//   - PutConf upserts; PutConfMany writes all pairs in one transaction.
//   - DeleteConf is idempotent.
//
// The schema is applied by Open through embedded goose migrations.
package confstore
