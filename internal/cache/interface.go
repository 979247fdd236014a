package cache

import (
	"github.com/sitesync/sitesync/internal/domain"
)

// Ensure BadgerCache implements domain.Cache
var _ domain.Cache = (*BadgerCache)(nil)

// Options contains cache configuration options
type Options struct {
	Directory string
	InMemory  bool
	Logger    bool
}

// DefaultOptions returns default cache options
func DefaultOptions() Options {
	return Options{}
}
