package main

import (
	"bytes"
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"github.com/Avi18971911/augur-go/pkg/augur"
	"github.com/Avi18971911/augur-go/pkg/config"
	"github.com/Avi18971911/augur-go/pkg/event/model"
	"github.com/Avi18971911/augur-go/pkg/integrations/httpserver"
	"github.com/Avi18971911/augur-go/pkg/integrations/metricsaggregator"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"io"
	"log"
	"net/http"
	"time"
)

const serviceName = "fake-client"

type APIConfig struct {
	URL      string                 // API Endpoint
	Method   string                 // HTTP Method (GET, POST, etc.)
	Headers  map[string]string      // Custom headers
	Body     map[string]interface{} // Request body (for POST)
	Users    int                    // Number of virtual users
	Duration time.Duration          // Test duration
}

// worker sends requests until ctx is done. Each request is an http.client span whose trace is
// propagated to the server through the sentry-trace and baggage headers.
func worker(ctx context.Context, apiConfig APIConfig, results chan<- time.Duration) error {
	client := &http.Client{}
	for {
		select {
		case <-ctx.Done():
			return nil
		default:
		}
		var reqBody []byte
		if apiConfig.Body != nil {
			jsonBody, err := json.Marshal(apiConfig.Body)
			if err != nil {
				return err
			}
			reqBody = jsonBody
		}

		err := augur.StartSpan(ctx, augur.SpanOptions{
			Name: apiConfig.Method + " " + apiConfig.URL,
			Op:   "http.client",
			Kind: augur.KindClient,
		}, func(ctx context.Context, span *augur.Span) error {
			req, err := http.NewRequestWithContext(ctx, apiConfig.Method, apiConfig.URL, bytes.NewReader(reqBody))
			if err != nil {
				return err
			}
			for key, value := range apiConfig.Headers {
				req.Header.Set(key, value)
			}
			req.Header.Set(httpserver.HeaderSentryTrace, span.ToSentryTrace())
			req.Header.Set(httpserver.HeaderBaggage, span.ToBaggage())

			start := time.Now()
			resp, err := client.Do(req)
			duration := time.Since(start)
			metricsaggregator.Distribution(ctx, "http_client_duration_seconds", duration.Seconds(), map[string]string{"method": apiConfig.Method})
			if err != nil {
				if ctx.Err() != nil {
					return nil
				}
				augur.CaptureException(ctx, err, nil)
				return err
			}
			defer resp.Body.Close()
			_, _ = io.Copy(io.Discard, resp.Body)
			span.SetAttribute("http.response.status_code", resp.StatusCode)
			span.SetStatus(model.SpanStatusFromHTTPCode(resp.StatusCode))
			results <- duration
			return nil
		})
		if err != nil && ctx.Err() == nil {
			time.Sleep(time.Second)
		}
	}
}

func runLoadTest(ctx context.Context, apiConfig APIConfig) {
	results := make(chan time.Duration, 1000)

	ctx, cancel := context.WithTimeout(ctx, apiConfig.Duration)
	defer cancel()

	var g errgroup.Group

	fmt.Printf("Starting load test: %d users, %s", apiConfig.Users, apiConfig.Duration)

	for i := 0; i < apiConfig.Users; i++ {
		g.Go(func() error {
			return worker(ctx, apiConfig, results)
		})
	}

	go func() {
		g.Wait()
		close(results)
	}()

	var totalRequests int
	var totalTime time.Duration

	for r := range results {
		totalRequests++
		totalTime += r
	}

	avgTime := time.Duration(0)
	if totalRequests > 0 {
		avgTime = totalTime / time.Duration(totalRequests)
	}

	fmt.Printf("\nLoad Test Results:\n")
	fmt.Printf("Total Requests: %d\n", totalRequests)
	fmt.Printf("Average Response Time: %s\n", avgTime)

	if err := g.Wait(); err != nil {
		fmt.Println("Load test encountered errors:", err)
	}

	fmt.Println("Load test completed.")
}

func main() {
	configPath := flag.String("config", "", "path to a TOML configuration file")
	url := flag.String("url", "http://localhost:8080/accounts/login", "endpoint to load")
	users := flag.Int("users", 5, "number of concurrent virtual users")
	duration := flag.Duration("duration", time.Minute, "test duration")
	flag.Parse()

	logger, err := zap.NewProduction()
	if err != nil {
		log.Fatalf("Failed to create logger: %v", err)
	}
	defer logger.Sync()

	cfg, err := config.Load(*configPath)
	if err != nil {
		logger.Fatal("Failed to load configuration", zap.Error(err))
	}
	ctx := context.Background()
	t, err := cfg.NewTransport(ctx, serviceName, logger)
	if err != nil {
		logger.Fatal("Failed to create transport", zap.Error(err))
	}
	options := cfg.ClientOptions(t, logger)
	options.Integrations = []augur.Integration{metricsaggregator.New()}
	client, err := augur.Init(options)
	if err != nil {
		logger.Fatal("Failed to initialize augur", zap.Error(err))
	}
	defer func() {
		closeCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		client.Close(closeCtx)
	}()

	runLoadTest(ctx, APIConfig{
		URL:      *url,
		Method:   http.MethodPost,
		Headers:  map[string]string{"Content-Type": "application/json"},
		Body:     map[string]interface{}{"username": "Bob", "password": "Barker"},
		Users:    *users,
		Duration: *duration,
	})
}
