// Package main provides a load testing tool for the realtime messaging server.
//
// Clients are provisioned as guest accounts and paired into direct
// conversations. Messages go out over the REST API; the WebSocket channel is
// receive-only, so delivery shows up as received events on the peer's socket.
package main

import (
	"bytes"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"sync"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/gorilla/websocket"
)

// Metrics tracks the test results
type Metrics struct {
	ConnectionsAttempted int64
	ConnectionsSuccess   int64
	ConnectionsFailed    int64
	MessagesSent         int64
	MessagesReceived     int64
	Errors               int64
}

var metrics Metrics

type testClient struct {
	idx    int
	userID uint
	token  string
	convID uint // 0 for an unpaired listener
}

func main() {
	host := flag.String("host", "localhost:8420", "API server host")
	clients := flag.Int("clients", 6, "Number of concurrent clients")
	duration := flag.Duration("duration", 30*time.Second, "Test duration")
	interval := flag.Duration("interval", 5*time.Second, "Delay between message sends per client")
	flag.Parse()

	log.Printf("🚀 Starting Chat Load Test")
	log.Printf("Target: %s", *host)
	log.Printf("Clients: %d", *clients)
	log.Printf("Duration: %v", *duration)

	// Provision guest accounts up front; the guest-login route is IP
	// rate-limited, so failures here mean the window needs to cool down.
	pool := make([]*testClient, 0, *clients)
	for i := 0; i < *clients; i++ {
		token, userID, err := guestLogin(*host, fmt.Sprintf("loadtest-%d", i))
		if err != nil {
			log.Fatalf("❌ Guest provisioning failed for client %d: %v", i, err)
		}
		pool = append(pool, &testClient{idx: i, userID: userID, token: token})
	}
	log.Printf("✅ Provisioned %d guest accounts", len(pool))

	// Pair clients into conversations. An odd leftover client just listens.
	for i := 0; i+1 < len(pool); i += 2 {
		convID, err := openConversation(*host, pool[i].token, pool[i+1].userID)
		if err != nil {
			log.Fatalf("❌ Opening conversation for pair %d/%d failed: %v", i, i+1, err)
		}
		pool[i].convID = convID
		pool[i+1].convID = convID
	}

	interrupt := make(chan os.Signal, 1)
	signal.Notify(interrupt, os.Interrupt, syscall.SIGTERM)

	var wg sync.WaitGroup
	stopChan := make(chan struct{})

	// Start clients
	for _, cl := range pool {
		wg.Add(1)
		go runClient(*host, cl, *interval, stopChan, &wg)
		time.Sleep(100 * time.Millisecond) // Stagger connections to spread ticket issuance
	}

	// Wait for duration or interrupt
	select {
	case <-time.After(*duration):
		log.Println("⏱️  Test duration reached")
	case <-interrupt:
		log.Println("🛑 Interrupted by user")
	}

	close(stopChan)
	log.Println("Waiting for clients to disconnect...")
	wg.Wait()

	printMetrics()
}

func guestLogin(host, displayName string) (string, uint, error) {
	loginURL := fmt.Sprintf("http://%s/api/auth/guest-login", host)
	body, _ := json.Marshal(map[string]string{"display_name": displayName})

	resp, err := http.Post(loginURL, "application/json", bytes.NewBuffer(body))
	if err != nil {
		return "", 0, err
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusCreated {
		return "", 0, fmt.Errorf("guest login failed with status %d", resp.StatusCode)
	}

	var result struct {
		Token string `json:"token"`
		User  struct {
			ID uint `json:"id"`
		} `json:"user"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return "", 0, err
	}

	return result.Token, result.User.ID, nil
}

func openConversation(host, token string, peerID uint) (uint, error) {
	sessURL := fmt.Sprintf("http://%s/api/chat/sessions", host)
	body, _ := json.Marshal(map[string]uint{"peer_id": peerID})

	req, _ := http.NewRequest("POST", sessURL, bytes.NewBuffer(body))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+token)

	client := &http.Client{Timeout: 5 * time.Second}
	resp, err := client.Do(req)
	if err != nil {
		return 0, err
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusCreated {
		return 0, fmt.Errorf("open conversation failed with status %d", resp.StatusCode)
	}

	var result struct {
		ID uint `json:"id"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return 0, err
	}

	return result.ID, nil
}

func getTicket(host, token string) (string, error) {
	ticketURL := fmt.Sprintf("http://%s/api/ws/ticket", host)
	req, _ := http.NewRequest("POST", ticketURL, nil)
	req.Header.Set("Authorization", "Bearer "+token)

	client := &http.Client{Timeout: 5 * time.Second}
	resp, err := client.Do(req)
	if err != nil {
		return "", err
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("ticket issuance failed with status %d", resp.StatusCode)
	}

	var result struct {
		Ticket string `json:"ticket"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return "", err
	}

	return result.Ticket, nil
}

func sendMessage(host, token string, convID uint, content string) error {
	msgURL := fmt.Sprintf("http://%s/api/chat/messages/%d", host, convID)
	body, _ := json.Marshal(map[string]string{
		"content": content,
		"type":    "text",
	})

	req, _ := http.NewRequest("POST", msgURL, bytes.NewBuffer(body))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+token)

	client := &http.Client{Timeout: 5 * time.Second}
	resp, err := client.Do(req)
	if err != nil {
		return err
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusCreated {
		return fmt.Errorf("send failed with status %d", resp.StatusCode)
	}
	return nil
}

func runClient(host string, cl *testClient, interval time.Duration, stopChan <-chan struct{}, wg *sync.WaitGroup) {
	defer wg.Done()
	atomic.AddInt64(&metrics.ConnectionsAttempted, 1)

	// Tickets are single-use; get a fresh one for this connection
	ticket, err := getTicket(host, cl.token)
	if err != nil {
		atomic.AddInt64(&metrics.ConnectionsFailed, 1)
		atomic.AddInt64(&metrics.Errors, 1)
		return
	}

	u := url.URL{Scheme: "ws", Host: host, Path: "/ws", RawQuery: "ticket=" + ticket}

	dialer := websocket.DefaultDialer
	c, resp, err := dialer.Dial(u.String(), nil)
	if err != nil {
		atomic.AddInt64(&metrics.ConnectionsFailed, 1)
		atomic.AddInt64(&metrics.Errors, 1)
		return
	}
	if resp != nil && resp.Body != nil {
		defer func() { _ = resp.Body.Close() }()
	}
	defer func() { _ = c.Close() }()

	atomic.AddInt64(&metrics.ConnectionsSuccess, 1)

	// Read loop; every frame is a pushed event from the peer's sends
	go func() {
		for {
			_, _, err := c.ReadMessage()
			if err != nil {
				return
			}
			atomic.AddInt64(&metrics.MessagesReceived, 1)
		}
	}()

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-stopChan:
			_ = c.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
			return
		case <-ticker.C:
			if cl.convID == 0 {
				continue // unpaired listener
			}
			content := fmt.Sprintf("Load test message from client %d", cl.idx)
			if err := sendMessage(host, cl.token, cl.convID, content); err != nil {
				atomic.AddInt64(&metrics.Errors, 1)
				continue
			}
			atomic.AddInt64(&metrics.MessagesSent, 1)
		}
	}
}

func printMetrics() {
	log.Println("\n📊 Test Results")
	log.Println("===============")
	log.Printf("Connections Attempted: %d", atomic.LoadInt64(&metrics.ConnectionsAttempted))
	log.Printf("Connections Successful: %d", atomic.LoadInt64(&metrics.ConnectionsSuccess))
	log.Printf("Connections Failed: %d", atomic.LoadInt64(&metrics.ConnectionsFailed))
	log.Printf("Messages Sent: %d", atomic.LoadInt64(&metrics.MessagesSent))
	log.Printf("Messages Received: %d", atomic.LoadInt64(&metrics.MessagesReceived))
	log.Printf("Total Errors: %d", atomic.LoadInt64(&metrics.Errors))
}
