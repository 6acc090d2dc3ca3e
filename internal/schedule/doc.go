// Package schedule runs recurring scans.
//
// A Registry keeps one cron entry per persisted schedule. Schedules live
// in the store, so a restarted process picks them up again on Start.
package schedule
