// Package assistants provides the agent entry point: an Assistant connects
// to the tool host, runs the decision loop for a goal and closes the session.
package assistants
