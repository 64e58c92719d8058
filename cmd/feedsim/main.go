package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"math/rand"
	"os"
	"strings"
	"time"

	"github.com/confluentinc/confluent-kafka-go/v2/kafka"
)

// Kafka broker details
const kafkaBroker = "localhost:9094"

const kafkaTopic = "price.updates"

// Standardized price update format
type PriceUpdate struct {
	ProductID string `json:"product_id"`
	Price     int64  `json:"price"`
	Currency  string `json:"currency"`
	Source    string `json:"source"`
	Timestamp string `json:"timestamp"`
}

// Kafka producer
func newKafkaProducer(broker string) *kafka.Producer {
	p, err := kafka.NewProducer(&kafka.ConfigMap{"bootstrap.servers": broker})
	if err != nil {
		log.Fatal("Failed to create Kafka producer:", err)
	}
	return p
}

// Publish message to Kafka
func publishToKafka(producer *kafka.Producer, priceData PriceUpdate) {
	value, err := json.Marshal(priceData)
	if err != nil {
		log.Println("Error marshaling JSON:", err)
		return
	}

	topic := kafkaTopic
	err = producer.Produce(&kafka.Message{
		TopicPartition: kafka.TopicPartition{Topic: &topic, Partition: kafka.PartitionAny},
		Value:          value,
	}, nil)

	if err != nil {
		log.Println("Error producing Kafka message:", err)
	} else {
		fmt.Println("Sent to Kafka:", string(value))
	}
}

// nextPrice nudges the price up or down by at most 3%, staying above a
// one-dollar floor.
func nextPrice(current int64) int64 {
	step := current * int64(rand.Intn(31)) / 1000
	if rand.Intn(2) == 0 {
		step = -step
	}
	next := current + step
	if next < 100 {
		next = 100
	}
	return next
}

func main() {
	broker := os.Getenv("KAFKA_BROKERS")
	if broker == "" {
		broker = kafkaBroker
	}

	products := flag.String("products", "P1001,P1002,P1003,P1004,P1005", "Comma-separated product IDs to simulate")
	interval := flag.Duration("interval", 2*time.Second, "Delay between price updates")
	flag.Parse()

	producer := newKafkaProducer(broker)
	defer producer.Close()

	ids := strings.Split(*products, ",")
	prices := make(map[string]int64, len(ids))
	for _, id := range ids {
		// Seed each product somewhere between $20 and $1500
		prices[id] = 2000 + rand.Int63n(148000)
	}

	fmt.Printf("Simulating price updates for %d products every %v\n", len(ids), *interval)

	for {
		id := ids[rand.Intn(len(ids))]
		prices[id] = nextPrice(prices[id])

		update := PriceUpdate{
			ProductID: id,
			Price:     prices[id],
			Currency:  "USD",
			Source:    "feedsim",
			Timestamp: time.Now().Format(time.RFC3339),
		}

		publishToKafka(producer, update)
		time.Sleep(*interval)
	}
}
