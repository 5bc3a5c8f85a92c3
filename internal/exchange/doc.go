/*
Exchange executes buy and sell orders for the securities one exchange hosts
and routes everything else through the naming chain.

# Module
  - endpoint: inventory, order execution, fund baskets with compensation
  - clock: tick scheduling and replenishment
  - naming: registration, resolution and down notifications against the
    region's primary naming node and its backup
  - server: many order request/response pairs per connection

# Source
  - market data schedules from feed
  - orders from clients and peer exchanges
  - start time from the naming registration ack

# Produce
  - order responses
  - inventory snapshots to the recovery log
  - fills to the optional journal
*/
package exchange
