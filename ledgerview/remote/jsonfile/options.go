package jsonfile

import "time"

// Option is a function that modifies Store configuration
type Option func(*Store)

// WithFileLockFactory sets a custom FileLockFactory implementation
func WithFileLockFactory(factory FileLockFactory) Option {
	return func(s *Store) {
		s.lockFactory = factory
	}
}

// WithTimeFunc sets a custom time function for testing
func WithTimeFunc(fn func() time.Time) Option {
	return func(s *Store) {
		s.timeFunc = fn
	}
}

// WithLockTimeout bounds how long an operation waits for the file lock
func WithLockTimeout(d time.Duration) Option {
	return func(s *Store) {
		if d > 0 {
			s.lockTimeout = d
		}
	}
}
