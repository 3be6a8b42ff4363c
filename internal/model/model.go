// Package model contains the panel's domain types.
// They carry JSON tags for the API but no persistence concerns.
package model
