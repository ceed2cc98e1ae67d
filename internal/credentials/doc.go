// Package credentials holds the wifi network credentials model and its
// persistence.
//
// The orchestrator exclusively owns the in-memory Credentials value; a Store
// is a passive sink that mirrors it to durable storage. FileStore is the
// default Store and writes a JSON document next to the device's other state.
//
// # Security
//
// The credentials file is written with 0600 permissions. Credentials.String
// masks the password so values can be logged safely.
package credentials
