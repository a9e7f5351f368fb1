package main

import (
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/urfave/cli/v2"
)

func healthCommand() *cli.Command {
	return &cli.Command{
		Name:  "health",
		Usage: "Check the API server's health endpoint",
		Action: func(c *cli.Context) error {
			url := c.String("server-url") + "/health"

			client := &http.Client{Timeout: 5 * time.Second}
			resp, err := client.Get(url)
			if err != nil {
				return fmt.Errorf("health check failed: %w", err)
			}
			defer resp.Body.Close()

			body, _ := io.ReadAll(resp.Body)
			if resp.StatusCode != http.StatusOK {
				return fmt.Errorf("server unhealthy: status %d: %s", resp.StatusCode, body)
			}

			fmt.Printf("%s\n", body)
			return nil
		},
	}
}
