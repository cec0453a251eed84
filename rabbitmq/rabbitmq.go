package rabbitmq

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"sync"

	"github.com/billbridge/oracle/common"
	"github.com/billbridge/oracle/db/models"
	"github.com/getsentry/sentry-go"
	"github.com/labstack/gommon/log"
	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/ziflex/lecho/v3"
)

// bufPool reuses encode buffers across publishes. With sequential webhook
// deliveries there is a single buffer in the pool at all times; concurrent
// deliveries grow it as needed.
var bufPool = sync.Pool{
	New: func() interface{} { return new(bytes.Buffer) },
}

const contentTypeJSON = "application/json"

// Client publishes verification events for platform consumers (relay,
// UI backend). Best-effort from the caller's point of view.
type Client interface {
	PublishVerification(ctx context.Context, v *models.Verification) error
	// Close will close all connections to rabbitmq
	Close() error
}

type DefaultClient struct {
	amqpClient AMQPClient

	logger *lecho.Logger

	verificationExchange string
}

type ClientOption = func(client *DefaultClient)

func WithLogger(logger *lecho.Logger) ClientOption {
	return func(client *DefaultClient) {
		client.logger = logger
	}
}

func WithVerificationExchange(exchange string) ClientOption {
	return func(client *DefaultClient) {
		client.verificationExchange = exchange
	}
}

// NewClient declares the verification exchange and returns a publish-only
// client wired to it.
func NewClient(amqpClient AMQPClient, options ...ClientOption) (Client, error) {
	client := &DefaultClient{
		amqpClient: amqpClient,
		logger: lecho.New(
			os.Stdout,
			lecho.WithLevel(log.INFO),
			lecho.WithTimestamp(),
		),
		verificationExchange: common.VerificationExchange,
	}

	for _, opt := range options {
		opt(client)
	}

	err := client.amqpClient.ExchangeDeclare(
		client.verificationExchange,
		// topic exchange so consumers can filter per routing key
		"topic",
		// durable
		true,
		// auto-deleted
		false,
		// internal
		false,
		// no-wait
		false,
		nil,
	)
	if err != nil {
		return nil, err
	}

	return client, nil
}

func (client *DefaultClient) Close() error {
	return client.amqpClient.Close()
}

func (client *DefaultClient) PublishVerification(ctx context.Context, v *models.Verification) error {
	payload := bufPool.Get().(*bytes.Buffer)
	payload.Reset()
	defer bufPool.Put(payload)

	if err := json.NewEncoder(payload).Encode(v); err != nil {
		captureErr(client.logger, err)
		return err
	}

	err := client.amqpClient.PublishWithContext(ctx,
		client.verificationExchange,
		common.VerificationRoutingKey,
		false,
		false,
		amqp.Publishing{
			ContentType: contentTypeJSON,
			Body:        payload.Bytes(),
		},
	)
	if err != nil {
		captureErr(client.logger, err)
		return err
	}

	client.logger.Debugf("Published verification event: mollie_payment_id:%s bill_id:%d", v.MolliePaymentID, v.BillID)
	return nil
}

func captureErr(logger *lecho.Logger, err error) {
	logger.Error(err)
	sentry.CaptureException(err)
}
