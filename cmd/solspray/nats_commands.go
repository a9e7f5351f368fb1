package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
	"github.com/urfave/cli/v2"

	natspkg "github.com/solspray/solspray/service/nats"
)

// subscribeCommand streams distribution progress events for one run.
func subscribeCommand() *cli.Command {
	return &cli.Command{
		Name:      "subscribe",
		Usage:     "Subscribe to progress events for a distribution run",
		ArgsUsage: "<owner_id>",
		Description: `Stream real-time distribution events published to NATS JetStream.

Events are published to the subject: dist.{owner_id}

Example:
  solspray nats subscribe airdrop-2026-08 --json`,
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:    "durable",
				Aliases: []string{"d"},
				Usage:   "Create a durable consumer (survives restarts)",
			},
			&cli.StringFlag{
				Name:  "consumer-name",
				Usage: "Consumer name (required for durable)",
				Value: "solspray-cli",
			},
		},
		Action: func(c *cli.Context) error {
			if c.NArg() != 1 {
				return fmt.Errorf("owner id is required")
			}

			ownerID := c.Args().First()
			natsURL := c.String("nats-url")
			jsonOutput := c.Bool("json")

			nc, err := nats.Connect(natsURL)
			if err != nil {
				return fmt.Errorf("failed to connect to NATS: %w", err)
			}
			defer nc.Close()

			js, err := jetstream.New(nc)
			if err != nil {
				return fmt.Errorf("failed to create JetStream context: %w", err)
			}

			subject := fmt.Sprintf("dist.%s", ownerID)

			if !jsonOutput {
				fmt.Printf("Subscribing to: %s\n", subject)
				fmt.Printf("NATS: %s\n", natsURL)
				fmt.Printf("\nWaiting for events... (Ctrl-C to exit)\n\n")
			}

			consumerConfig := jetstream.ConsumerConfig{
				FilterSubject: subject,
				AckPolicy:     jetstream.AckExplicitPolicy,
			}
			if c.Bool("durable") {
				consumerConfig.Durable = c.String("consumer-name")
				consumerConfig.Name = c.String("consumer-name")
			}

			cons, err := js.CreateOrUpdateConsumer(context.Background(), natspkg.StreamName, consumerConfig)
			if err != nil {
				return fmt.Errorf("failed to create consumer: %w", err)
			}

			sigChan := make(chan os.Signal, 1)
			signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

			msgChan := make(chan jetstream.Msg, 10)
			go func() {
				_, _ = cons.Consume(func(msg jetstream.Msg) {
					msgChan <- msg
				})
			}()

			count := 0
			for {
				select {
				case msg := <-msgChan:
					var event natspkg.DistributionEvent
					if err := json.Unmarshal(msg.Data(), &event); err != nil {
						if !jsonOutput {
							fmt.Fprintf(os.Stderr, "Error parsing event: %v\n", err)
						}
						msg.Ack()
						continue
					}

					count++
					printDistributionEvent(&event, count, jsonOutput)
					msg.Ack()

				case <-sigChan:
					if !jsonOutput {
						fmt.Printf("\n\nReceived %d events\n", count)
					}
					return nil
				}
			}
		},
	}
}

func printDistributionEvent(event *natspkg.DistributionEvent, count int, jsonOutput bool) {
	if jsonOutput {
		data, _ := json.Marshal(event)
		fmt.Println(string(data))
		return
	}

	fmt.Printf("─────────────────────────────────────────────────────\n")
	fmt.Printf("Event #%d: %s\n", count, event.Kind)
	fmt.Printf("─────────────────────────────────────────────────────\n")
	fmt.Printf("Owner:       %s\n", event.OwnerID)
	if event.RecipientIndex != 0 {
		fmt.Printf("Recipient:   %d\n", event.RecipientIndex)
	}
	if event.Lamports != 0 {
		fmt.Printf("Lamports:    %d\n", event.Lamports)
	}
	if event.Signature != "" {
		fmt.Printf("Signature:   %s\n", event.Signature)
	}
	if event.Remaining != 0 {
		fmt.Printf("Remaining:   %d\n", event.Remaining)
	}
	if event.Message != "" {
		fmt.Printf("Message:     %s\n", event.Message)
	}
	fmt.Printf("Published:   %s\n", event.PublishedAt.Format(time.RFC3339))
	fmt.Printf("\n")
}
