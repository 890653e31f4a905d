package main

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/IBM/sarama"
	"github.com/spf13/cobra"

	"github.com/lauacosta/GIS-TPI/internal/schemacache"
)

type checkResult struct {
	Check   string `json:"check"`
	Status  string `json:"status"`
	Detail  string `json:"detail,omitempty"`
	Elapsed string `json:"elapsed,omitempty"`
}

const (
	statusOK      = "ok"
	statusFailed  = "failed"
	statusSkipped = "skipped"
)

func newDoctorCmd(envFor envFunc) *cobra.Command {
	var (
		redisAddr string
		brokers   string
		timeout   time.Duration
	)
	cmd := &cobra.Command{
		Use:   "doctor",
		Short: "Check connectivity to GeoServer, Redis and Kafka",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			e, err := envFor()
			if err != nil {
				return err
			}
			if redisAddr == "" {
				redisAddr = e.cfg.RedisAddr
			}
			var brokerList []string
			if e.cfg.Changes.Enabled {
				brokerList = e.cfg.Changes.Brokers
			}
			if brokers != "" {
				brokerList = strings.Split(brokers, ",")
			}

			ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
			defer cancel()

			results := []checkResult{
				runCheck("geoserver", func() (string, error) {
					body, err := e.exec.GetCapabilities(ctx, e.cfg.Workspace)
					if err != nil {
						return "", err
					}
					return fmt.Sprintf("%d bytes of capabilities", len(body)), nil
				}),
				checkRedis(ctx, redisAddr),
				checkKafka(brokerList, e.cfg.Changes.Topic, timeout),
			}
			if err := e.emit(results); err != nil {
				return err
			}
			for _, r := range results {
				if r.Status == statusFailed {
					return fmt.Errorf("%s check failed: %s", r.Check, r.Detail)
				}
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&redisAddr, "redis", "", "Redis address (default $REDIS_ADDR)")
	cmd.Flags().StringVar(&brokers, "brokers", "", "comma separated Kafka brokers (default $KAFKA_BROKERS)")
	cmd.Flags().DurationVar(&timeout, "timeout", 10*time.Second, "overall deadline")
	return cmd
}

func runCheck(name string, fn func() (string, error)) checkResult {
	start := time.Now()
	detail, err := fn()
	r := checkResult{Check: name, Status: statusOK, Detail: detail, Elapsed: time.Since(start).Round(time.Millisecond).String()}
	if err != nil {
		r.Status = statusFailed
		r.Detail = err.Error()
	}
	return r
}

func checkRedis(ctx context.Context, addr string) checkResult {
	if addr == "" {
		return checkResult{Check: "redis", Status: statusSkipped, Detail: "no address configured"}
	}
	return runCheck("redis", func() (string, error) {
		r, err := schemacache.NewRedis(ctx, addr, time.Minute, 0)
		if err != nil {
			return "", err
		}
		defer func() { _ = r.Close() }()
		if err := r.Ping(ctx); err != nil {
			return "", err
		}
		return addr, nil
	})
}

// checkKafka only looks at cluster metadata; nothing is produced.
func checkKafka(brokers []string, topic string, timeout time.Duration) checkResult {
	if len(brokers) == 0 {
		return checkResult{Check: "kafka", Status: statusSkipped, Detail: "change feed disabled"}
	}
	return runCheck("kafka", func() (string, error) {
		cfg := sarama.NewConfig()
		cfg.Version = sarama.V3_6_0_0
		cfg.Net.DialTimeout = timeout
		cfg.Metadata.Retry.Max = 1

		client, err := sarama.NewClient(brokers, cfg)
		if err != nil {
			return "", fmt.Errorf("kafka client: %w", err)
		}
		defer func() { _ = client.Close() }()

		topics, err := client.Topics()
		if err != nil {
			return "", fmt.Errorf("kafka topics: %w", err)
		}
		if topic != "" && !slices.Contains(topics, topic) {
			return "", errors.New("topic " + topic + " not found")
		}
		return fmt.Sprintf("%d brokers, %d topics", len(client.Brokers()), len(topics)), nil
	})
}
