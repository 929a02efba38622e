// Package gochannel provides the in-process pub/sub channel used for
// single-binary deployments and tests, where transitions and their consumers
// live in the same process.
package gochannel

import (
	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
)

// CreateChannel returns a publisher/subscriber pair backed by one in-memory
// GoChannel instance. Messages are not persisted: an event published with no
// subscriber running is gone, which matches the engine's best-effort event
// contract.
func CreateChannel(logger watermill.LoggerAdapter) (*gochannel.GoChannel, *gochannel.GoChannel, error) {
	pubSub := gochannel.NewGoChannel(
		gochannel.Config{
			OutputChannelBuffer:            1000,
			Persistent:                     false,
			BlockPublishUntilSubscriberAck: false,
		},
		logger,
	)

	// GoChannel implements both sides; publisher and subscriber must be the
	// same instance for messages to flow.
	return pubSub, pubSub, nil
}

// CreateTestChannel returns a pair tuned for deterministic tests: small
// buffer, persistent messages, and publishes that block until the subscriber
// acks.
func CreateTestChannel(logger watermill.LoggerAdapter) (*gochannel.GoChannel, *gochannel.GoChannel, error) {
	pubSub := gochannel.NewGoChannel(
		gochannel.Config{
			OutputChannelBuffer:            10,
			Persistent:                     true,
			BlockPublishUntilSubscriberAck: true,
		},
		logger,
	)

	return pubSub, pubSub, nil
}
