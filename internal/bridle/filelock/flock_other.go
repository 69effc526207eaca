//go:build !unix

package filelock

import "os"

// Without flock the single-instance assumption applies.
func lockFile(*os.File) error { return nil }

func unlockFile(*os.File) error { return nil }
