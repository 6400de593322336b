// Package bus provides message bus clients for liveness status fan-out.
//
// # Available Implementations
//
//   - NATSBus: cross-process delivery using NATS
//   - MemoryBus: in-memory implementation for testing and single-process use
//
// # Usage
//
//	bus.Publish("lifeline.status.ep-1", data)
//	sub, _ := bus.Subscribe("lifeline.status.*")
//	for msg := range sub.Messages() {
//	    // Handle message
//	}
//
// Delivery is best effort: a subscriber whose buffer is full misses
// messages rather than blocking the publisher.
package bus
