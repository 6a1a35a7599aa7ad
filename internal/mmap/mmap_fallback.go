//go:build !unix

// Package mmap reserves raw anonymous memory from the host for the allocators to manage.
package mmap

import "fmt"

// Anonymous allocates size bytes from the Go heap when mmap is not available.
func Anonymous(size int) ([]byte, func() error, error) {
	if size <= 0 {
		return nil, nil, fmt.Errorf("mmap: invalid size %d", size)
	}
	return make([]byte, size), func() error { return nil }, nil
}
