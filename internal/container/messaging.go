package container

import (
	"fmt"

	"github.com/ThreeDotsLabs/watermill-redisstream/pkg/redisstream"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"github.com/samber/do"
	"github.com/serroba/online-compiler-go/internal/activity"
	activitystore "github.com/serroba/online-compiler-go/internal/activity/store"
	"github.com/serroba/online-compiler-go/internal/messaging"
	"github.com/serroba/online-compiler-go/internal/metrics"
	"go.uber.org/zap"
)

const activityConsumerGroup = "activity"

// PublisherGroupPackage provides the event publisher and the typed activity publishers.
// Events go to Redis streams when Redis is enabled and to an in-process channel otherwise.
func PublisherGroupPackage(injector *do.Injector) {
	do.Provide(injector, func(i *do.Injector) (*gochannel.GoChannel, error) {
		logger := do.MustInvoke[*zap.Logger](i)

		return gochannel.NewGoChannel(gochannel.Config{OutputChannelBuffer: 64}, messaging.NewZapLogger(logger)), nil
	})

	do.Provide(injector, func(i *do.Injector) (*messaging.PublisherGroup, error) {
		client := do.MustInvoke[*RedisClient](i)
		if client == nil {
			return messaging.NewPublisherGroup(do.MustInvoke[*gochannel.GoChannel](i)), nil
		}

		logger := do.MustInvoke[*zap.Logger](i)

		publisher, err := redisstream.NewPublisher(
			redisstream.PublisherConfig{
				Client:     client.Client,
				Marshaller: redisstream.DefaultMarshallerUnmarshaller{},
			},
			messaging.NewZapLogger(logger),
		)
		if err != nil {
			return nil, fmt.Errorf("create redis stream publisher: %w", err)
		}

		return messaging.NewPublisherGroup(publisher), nil
	})

	do.Provide(injector, func(i *do.Injector) (activity.Publishers, error) {
		group := do.MustInvoke[*messaging.PublisherGroup](i)

		return activity.NewPublishers(group.Publisher()), nil
	})
}

// ConsumerGroupPackage provides the activity consumers. Events are persisted to
// PostgreSQL when configured and logged otherwise.
func ConsumerGroupPackage(injector *do.Injector) {
	do.Provide(injector, func(i *do.Injector) (activity.Store, error) {
		if db := do.MustInvoke[*Database](i); db.Pool != nil {
			return activitystore.NewPostgres(db.Pool), nil
		}

		return activitystore.NewLogging(do.MustInvoke[*zap.Logger](i)), nil
	})

	do.Provide(injector, func(i *do.Injector) (*messaging.ConsumerGroup, error) {
		logger := do.MustInvoke[*zap.Logger](i)

		subscriber, err := activitySubscriber(i, logger)
		if err != nil {
			return nil, err
		}

		var opts []messaging.ConsumerOption

		// Only the server registers metrics; the standalone consumer has no /metrics.
		if m, err := do.Invoke[*metrics.Metrics](i); err == nil {
			opts = append(opts, messaging.WithEventObserver(m))
		}

		group := messaging.NewConsumerGroup(subscriber, logger)
		group.Add(activity.Consumers(subscriber, do.MustInvoke[activity.Store](i), logger, opts...)...)

		return group, nil
	})
}

func activitySubscriber(i *do.Injector, logger *zap.Logger) (message.Subscriber, error) {
	client := do.MustInvoke[*RedisClient](i)
	if client == nil {
		return do.MustInvoke[*gochannel.GoChannel](i), nil
	}

	subscriber, err := redisstream.NewSubscriber(
		redisstream.SubscriberConfig{
			Client:        client.Client,
			Unmarshaller:  redisstream.DefaultMarshallerUnmarshaller{},
			ConsumerGroup: activityConsumerGroup,
		},
		messaging.NewZapLogger(logger),
	)
	if err != nil {
		return nil, fmt.Errorf("create redis stream subscriber: %w", err)
	}

	return subscriber, nil
}
