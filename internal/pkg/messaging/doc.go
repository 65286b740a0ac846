// Package messaging is a broker-agnostic publish/consume API.
//
// Domain events (for example a verified lead) are published through Publisher
// and consumed through Consumer without the use case knowing whether NSQ,
// NATS, Kafka, Google Pub/Sub or the in-process memory driver is underneath.
// The driver is chosen at startup with NewFromDriver.
package messaging
