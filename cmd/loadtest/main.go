package main

import (
	"bytes"
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"math/rand"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"time"

	hdrhistogram "github.com/HdrHistogram/hdrhistogram-go"
	"golang.org/x/time/rate"

	"github.com/finvera/tradeflow/pkg/core"
)

var symbols = []string{"AAPL", "MSFT", "GOOG", "AMZN", "TSLA", "NVDA"}

func main() {
	serverAddr := flag.String("addr", "http://localhost:8080", "Base URL of the trade server")
	numWorkers := flag.Int("workers", 20, "Number of concurrent workers")
	ordersPerWorker := flag.Int("orders", 50, "Orders submitted per worker")
	maxRate := flag.Int("rate", 200, "Maximum submissions per second")
	flag.Parse()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Handle interrupt signal
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt)
	go func() {
		<-sigChan
		log.Println("Received interrupt signal, cleaning up...")
		cancel()
	}()

	httpClient := &http.Client{Timeout: 10 * time.Second}

	// Submission latency in microseconds, 1us to 30s.
	hist := hdrhistogram.New(1, 30_000_000, 3)
	var histMu sync.Mutex

	limiter := rate.NewLimiter(rate.Limit(*maxRate), *maxRate)
	var wg sync.WaitGroup
	errChan := make(chan error, *numWorkers**ordersPerWorker)

	start := time.Now()
	log.Printf("Starting %d workers, %d orders per worker...", *numWorkers, *ordersPerWorker)

	for i := 0; i < *numWorkers; i++ {
		wg.Add(1)
		go func(workerID int) {
			defer wg.Done()
			for j := 0; j < *ordersPerWorker; j++ {
				if err := limiter.Wait(ctx); err != nil {
					errChan <- fmt.Errorf("rate limiter error: %v", err)
					return
				}

				order := generateRandomOrder(workerID)
				begin := time.Now()
				if err := submitOrder(ctx, httpClient, *serverAddr, order); err != nil {
					errChan <- fmt.Errorf("failed to submit order: %v", err)
					continue
				}

				histMu.Lock()
				if err := hist.RecordValue(time.Since(begin).Microseconds()); err != nil {
					log.Printf("Failed to record latency: %v", err)
				}
				histMu.Unlock()
			}
		}(i)
	}

	wg.Wait()
	duration := time.Since(start)
	close(errChan)

	var errors []error
	for err := range errChan {
		errors = append(errors, err)
	}

	total := *numWorkers * *ordersPerWorker
	log.Printf("Load test completed in %v", duration)
	log.Printf("Total orders attempted: %d", total)
	log.Printf("Errors encountered: %d", len(errors))
	log.Printf("Throughput: %.1f orders/sec", float64(total-len(errors))/duration.Seconds())
	log.Printf("Submit latency p50: %v", time.Duration(hist.ValueAtQuantile(50))*time.Microsecond)
	log.Printf("Submit latency p95: %v", time.Duration(hist.ValueAtQuantile(95))*time.Microsecond)
	log.Printf("Submit latency p99: %v", time.Duration(hist.ValueAtQuantile(99))*time.Microsecond)
	log.Printf("Submit latency max: %v", time.Duration(hist.Max())*time.Microsecond)
}

func generateRandomOrder(workerID int) core.Order {
	return core.Order{
		ClientID:    fmt.Sprintf("loadtest-%d", workerID),
		StockSymbol: symbols[rand.Intn(len(symbols))],
		Quantity:    int64(rand.Intn(500) + 1),
		Price:       float64(rand.Intn(100000)+100) / 100.0,
	}
}

func submitOrder(ctx context.Context, httpClient *http.Client, addr string, order core.Order) error {
	body, err := json.Marshal(order)
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, addr+"/api/trades/submit", bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusCreated {
		return fmt.Errorf("unexpected status code %d", resp.StatusCode)
	}
	return nil
}
