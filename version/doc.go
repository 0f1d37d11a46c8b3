// Package version reports the build version of the running binary.
//
// Version and Commit can be set at compile time via -ldflags:
//
//	go build -ldflags "-X github.com/kbukum/consolehost/version.Version=1.0.0"
//
// Otherwise they are read from the module build information.
package version
