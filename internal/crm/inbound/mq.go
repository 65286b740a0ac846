package inbound

import (
	"context"
	"log/slog"
	"slices"

	"github.com/shandysiswandi/finadvise/internal/pkg/config"
	"github.com/shandysiswandi/finadvise/internal/pkg/goroutine"
	"github.com/shandysiswandi/finadvise/internal/pkg/instrument"
	"github.com/shandysiswandi/finadvise/internal/pkg/messaging"
	"github.com/shandysiswandi/finadvise/internal/pkg/uid"
	"github.com/shandysiswandi/finadvise/internal/shared/event"
)

func RegisterMQConsumer(
	ctx context.Context,
	cfg config.Config,
	routine *goroutine.Manager,
	messenger messaging.Messaging,
	uuid uid.StringID,
	uc uc,
	ins instrument.Instrumentation,
) {
	mqHandler := &MQHandler{uc: uc, uuid: uuid, ins: ins}

	enableConsumerNames := cfg.GetArray("modules.crm.consumer_names")
	concurrency := max(cfg.GetInt("modules.crm.consumer_concurrency"), 1)

	var consumers = []struct {
		name               string
		topic              string // destination where publisher sent message
		nsqConsumerName    string // for nsq
		natsConsumerName   string // for nats
		kafkaConsumerName  string // for kafka
		pubsubConsumerName string // for google pubsub
		handler            messaging.Handler
	}{
		{
			name:               event.LeadVerifiedDestinationConsumerCRM,
			topic:              event.LeadVerifiedDestination,
			nsqConsumerName:    event.LeadVerifiedDestinationConsumerCRM,
			natsConsumerName:   event.LeadVerifiedDestinationConsumerCRM,
			kafkaConsumerName:  event.LeadVerifiedDestinationConsumerCRM,
			pubsubConsumerName: event.LeadVerifiedDestinationConsumerCRM,
			handler:            mqHandler.LeadVerified,
		},
	}

	for _, consumer := range consumers {
		if len(enableConsumerNames) > 0 && slices.Contains(enableConsumerNames, consumer.name) {
			routine.Go(ctx, consumer.name, func(pCtx context.Context) error {
				slog.InfoContext(ctx, "Running job for handling consumer", "consumer", consumer.name)
				return messenger.Consume(pCtx,
					consumer.topic,
					consumer.handler,
					messaging.WithChannel(consumer.nsqConsumerName),
					messaging.WithQueueGroup(consumer.natsConsumerName),
					messaging.WithGroup(consumer.kafkaConsumerName),
					messaging.WithSubscription(consumer.pubsubConsumerName),
					messaging.WithAutoAck(true),
					messaging.WithConcurrency(concurrency),
					messaging.WithMaxInFlight(concurrency),
				)
			})
		}
	}
}
