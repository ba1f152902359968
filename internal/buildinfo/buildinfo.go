// Package buildinfo carries the version stamped at build time via
// -ldflags "-X podradio/internal/buildinfo.Version=...".
package buildinfo

var Version = "dev"
