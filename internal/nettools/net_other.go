//go:build !darwin && !linux
// +build !darwin,!linux

package nettools

func pollReadable(int) bool { return false }
