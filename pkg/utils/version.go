// Package utils provides bespoke, one off utils that don't make sense to be
// their own package
package utils

// Set at build time through -ldflags.
var (
	Version   = "dev"
	Sha       = "HEAD"
	Buildtime = "dev"
)
