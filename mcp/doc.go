// Package mcp defines the data model shared by the tool host and the agent side:
// tool specifications, call requests, call results and the error taxonomy.
//
// A ToolCallResult is a tagged union: either a success payload or a Failure
// carrying an ErrorKind. Recoverable kinds (UnknownTool, InvalidArgument,
// HandlerError, Timeout) are data fed back to the decision engine; ProtocolError
// is fatal to the session that produced it.
package mcp
