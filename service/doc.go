// Package service is the write path shared by every transport. It routes
// commands through the book manager, turns fills into execution reports
// and records metrics.
package service
