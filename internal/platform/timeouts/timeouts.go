// Package timeouts defines shared timeout constants used across processes.
// Centralizing these values prevents drift between service boundaries and
// makes the durations discoverable.
package timeouts

import "time"

// BrokerDial caps the wait time when dialing the message broker.
const BrokerDial = 5 * time.Second

// Publish caps the time allowed for publishing one batch of events.
const Publish = 5 * time.Second

// AdviceRequest caps a single advice generation round trip to the LLM.
const AdviceRequest = 30 * time.Second

// ReadHeader limits how long an HTTP server waits for request headers.
const ReadHeader = 5 * time.Second

// Shutdown limits how long an HTTP server waits for in-flight requests
// during graceful shutdown.
const Shutdown = 5 * time.Second
