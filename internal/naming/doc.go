/*
Naming resolves security names to the exchanges hosting them.

Naming nodes form a fixed left-to-right chain, one per region. Each region
runs a primary and a backup instance on adjacent ports.

# Module
  - node: registry of authoritative and cached routing entries
  - resolve: chain traversal with caching and neighbor failover
  - notify: eviction of unreachable exchanges along the chain
  - server: one request per connection

# Source
  - registration, resolve and notify messages from exchanges
  - relayed resolve and notify messages from neighbor nodes

# Produce
  - registration acks carrying the global start time
  - resolve responses
*/
package naming
