package activity

import (
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/serroba/online-compiler-go/internal/messaging"
	"go.uber.org/zap"
)

// Consumers builds one consumer per activity topic, each persisting into store.
func Consumers(
	subscriber message.Subscriber,
	store Store,
	logger *zap.Logger,
	opts ...messaging.ConsumerOption,
) []messaging.Runnable {
	return []messaging.Runnable{
		messaging.NewConsumer[CompileExecutedEvent](subscriber, TopicCompileExecuted, store.SaveCompileExecuted, logger, opts...),
		messaging.NewConsumer[SnippetChangedEvent](subscriber, TopicSnippetChanged, store.SaveSnippetChanged, logger, opts...),
	}
}

// Publishers holds the typed publish functions used by the HTTP handlers.
type Publishers struct {
	CompileExecuted messaging.Publish[CompileExecutedEvent]
	SnippetChanged  messaging.Publish[SnippetChangedEvent]
}

// NewPublishers binds the activity topics to publisher.
func NewPublishers(publisher message.Publisher) Publishers {
	return Publishers{
		CompileExecuted: messaging.NewPublishFunc[CompileExecutedEvent](publisher, TopicCompileExecuted),
		SnippetChanged:  messaging.NewPublishFunc[SnippetChangedEvent](publisher, TopicSnippetChanged),
	}
}

// DiscardPublishers drops every event.
func DiscardPublishers() Publishers {
	return Publishers{
		CompileExecuted: messaging.Discard[CompileExecutedEvent](),
		SnippetChanged:  messaging.Discard[SnippetChangedEvent](),
	}
}
