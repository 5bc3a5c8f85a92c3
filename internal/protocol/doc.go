/*
Protocol is the wire format shared by naming nodes, exchanges and clients.

# Module
  - message: closed set of tagged variants, validated on decode
  - codec: one JSON object per line, discriminated by "type"
  - transport: dialer abstraction over TCP ports

# Source
  - raw lines from pkg/tcp connections

# Produce
  - typed messages or a ProtocolError
*/
package protocol
