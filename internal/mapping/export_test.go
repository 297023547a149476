package mapping

// SetSyncDir replaces the directory fsync for the duration of a test.
func SetSyncDir(fn func(dir string) error) (restore func()) {
	prev := syncDir
	syncDir = fn
	return func() { syncDir = prev }
}
