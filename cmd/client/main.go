package main

import (
	"bytes"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"strconv"
	"time"

	"text/tabwriter"

	"github.com/fatih/color"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/finvera/tradeflow/pkg/core"
)

var (
	serverAddr = flag.String("addr", "http://localhost:8080", "Base URL of the trade server")
)

func main() {
	// Configure zerolog
	zerolog.TimeFieldFormat = time.RFC3339
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})

	// Check if we have enough arguments
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	// Get the command
	command := os.Args[1]

	// Remove the command from os.Args to make flag parsing work
	os.Args = append(os.Args[:1], os.Args[2:]...)

	httpClient := &http.Client{Timeout: 10 * time.Second}

	switch command {
	case "submit":
		submitOrder(httpClient)
	case "status":
		flag.Parse()
		if flag.NArg() < 1 {
			fmt.Println("Usage: status <orderId>")
			os.Exit(1)
		}
		getStatus(httpClient, flag.Arg(0))
	case "watch":
		flag.Parse()
		if flag.NArg() < 1 {
			fmt.Println("Usage: watch <orderId>")
			os.Exit(1)
		}
		watchOrder(httpClient, flag.Arg(0))
	default:
		fmt.Printf("Unknown command: %s\n", command)
		printUsage()
		os.Exit(1)
	}
}

func submitOrder(httpClient *http.Client) {
	clientID := flag.String("client", "cli", "Client identifier")
	symbol := flag.String("symbol", "", "Stock symbol")
	quantity := flag.Int64("quantity", 0, "Order quantity")
	price := flag.Float64("price", 0, "Order price")
	flag.Parse()

	order := core.Order{
		ClientID:    *clientID,
		StockSymbol: *symbol,
		Quantity:    *quantity,
		Price:       *price,
	}
	if err := order.Validate(); err != nil {
		log.Fatal().Err(err).Msg("Invalid order")
	}

	body, err := json.Marshal(order)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to encode order")
	}

	resp, err := httpClient.Post(*serverAddr+"/api/trades/submit", "application/json", bytes.NewReader(body))
	if err != nil {
		log.Fatal().Err(err).Msg("Submit request failed")
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusCreated {
		msg, _ := io.ReadAll(resp.Body)
		log.Fatal().Int("status", resp.StatusCode).Str("body", string(msg)).Msg("Submit rejected")
	}

	var out struct {
		OrderID string `json:"orderId"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		log.Fatal().Err(err).Msg("Failed to decode response")
	}

	log.Info().
		Str("order_id", out.OrderID).
		Str("symbol", *symbol).
		Int64("quantity", *quantity).
		Float64("price", *price).
		Msg("Order submitted")
	fmt.Println(out.OrderID)
}

func getStatus(httpClient *http.Client, orderID string) {
	status, err := fetchStatus(httpClient, orderID)
	if err != nil {
		log.Fatal().Err(err).Msg("Status request failed")
	}
	printStatus(orderID, status)
}

// watchOrder polls until the trade reaches a terminal state.
func watchOrder(httpClient *http.Client, orderID string) {
	for {
		status, err := fetchStatus(httpClient, orderID)
		if err != nil {
			log.Fatal().Err(err).Msg("Status request failed")
		}
		printStatus(orderID, status)
		if status.IsTerminal() {
			return
		}
		time.Sleep(500 * time.Millisecond)
	}
}

func fetchStatus(httpClient *http.Client, orderID string) (core.OrderStatus, error) {
	resp, err := httpClient.Get(*serverAddr + "/api/trades/" + orderID + "/status")
	if err != nil {
		return core.StatusUnknown, err
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return core.StatusUnknown, fmt.Errorf("order %s not found", orderID)
	}
	if resp.StatusCode != http.StatusOK {
		return core.StatusUnknown, fmt.Errorf("unexpected status code %s", strconv.Itoa(resp.StatusCode))
	}

	var out struct {
		OrderID string `json:"orderId"`
		Status  string `json:"status"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return core.StatusUnknown, err
	}
	return core.ParseOrderStatus(out.Status), nil
}

func printStatus(orderID string, status core.OrderStatus) {
	color.NoColor = false
	cyan := color.New(color.FgCyan).SprintfFunc()
	red := color.New(color.FgRed).SprintfFunc()
	green := color.New(color.FgGreen).SprintfFunc()

	rendered := string(status)
	switch {
	case status == core.StatusFailed:
		rendered = red("%s", rendered)
	case status.IsTerminal():
		rendered = green("%s", rendered)
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 3, ' ', tabwriter.AlignRight)
	fmt.Fprintf(w, "%s\t%s\n", cyan("Order"), cyan("Status"))
	fmt.Fprintf(w, "%s\t%s\n", orderID, rendered)
	w.Flush()
}

func printUsage() {
	fmt.Println("Usage: client <command> [options]")
	fmt.Println()
	fmt.Println("Commands:")
	fmt.Println("  submit -symbol AAPL -quantity 100 -price 150.0 [-client id]   Submit an order")
	fmt.Println("  status <orderId>                                              Print current status")
	fmt.Println("  watch <orderId>                                               Poll until terminal")
	fmt.Println()
	fmt.Println("Options:")
	fmt.Println("  -addr   Base URL of the trade server (default http://localhost:8080)")
}
