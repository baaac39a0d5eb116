// Package tools defines the tool interface implemented by the built-in
// developer tools, and registers them with the tool host.
package tools
