// Package mcp holds the types shared by the MCP tool packages and the server.
package mcp

// Transport selects the connection mechanism for the MCP server.
type Transport string

const (
	// TransportStdio serves a single session over stdin/stdout.
	TransportStdio Transport = "stdio"

	// TransportStreamableHTTP serves sessions via the MCP Streamable HTTP protocol.
	TransportStreamableHTTP Transport = "streamable-http"
)

// IsValid reports whether t is a recognised transport.
func (t Transport) IsValid() bool {
	return t == TransportStdio || t == TransportStreamableHTTP
}
