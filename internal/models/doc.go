// Package models defines domain entities and persistence interfaces for mediasync.
//
// The package contains two categories of types:
//
// 1. Data Transfer Objects (DTOs): Lightweight structs representing transfer service data
//   - [Transfer] : An rsync job with status and progress
//   - [ActiveSummary] : Answer of the active-transfer query
//
// 2. Persistent Entities: Database-backed models with full lifecycle management
//   - [SessionEvent] : A push connection transition (connected, idle-disconnected, ...)
//
// Persistent entities implement [Record]: an ID, a sequence number, timestamps and validation.
// [Repository] is the store surface shared by record types.
package models
