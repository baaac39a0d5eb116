// Package toolhost provides the tool registry and the host that serves it
// over a transport channel.
//
// The host never terminates because of a tool: unknown names, invalid
// arguments, handler errors and panics are all reported to the caller as
// failure results.
package toolhost

import "github.com/effective-security/xlog"

var logger = xlog.NewPackageLogger("github.com/effective-security/devassist", "toolhost")
