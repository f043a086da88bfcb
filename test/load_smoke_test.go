//go:build load

package test

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sort"
	"sync"
	"testing"
	"time"
)

type loadResult struct {
	statusCode int
	duration   time.Duration
	err        error
}

func runConcurrent(
	t *testing.T,
	total int,
	concurrency int,
	fn func(i int) loadResult,
) []loadResult {
	t.Helper()

	results := make([]loadResult, total)
	var wg sync.WaitGroup
	sem := make(chan struct{}, concurrency)

	for i := 0; i < total; i++ {
		wg.Add(1)
		sem <- struct{}{}

		go func(idx int) {
			defer wg.Done()
			defer func() { <-sem }()
			results[idx] = fn(idx)
		}(i)
	}

	wg.Wait()
	return results
}

func summarize(results []loadResult) (int, time.Duration, time.Duration) {
	failures := 0
	durations := make([]time.Duration, 0, len(results))

	for _, r := range results {
		durations = append(durations, r.duration)
		if r.err != nil || r.statusCode >= 400 {
			failures++
		}
	}

	if len(durations) == 0 {
		return failures, 0, 0
	}

	sort.Slice(durations, func(i, j int) bool {
		return durations[i] < durations[j]
	})

	p95Idx := int(float64(len(durations)-1) * 0.95)
	if p95Idx < 0 {
		p95Idx = 0
	}
	p95 := durations[p95Idx]
	max := durations[len(durations)-1]
	return failures, p95, max
}

func TestLoadScenarios(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping load tests in short mode")
	}

	ts := newParleyTestApp(t)
	mainUser := registerParleyUser(t, ts, "load_main")

	t.Run("Login", func(t *testing.T) {
		loginPayload := map[string]string{
			"username": mainUser.Username,
			"password": testPassword,
		}
		loginBody, _ := json.Marshal(loginPayload)

		results := runConcurrent(t, 20, 6, func(_ int) loadResult {
			start := time.Now()
			req := httptest.NewRequest(http.MethodPost, "/api/auth/login", bytes.NewReader(loginBody))
			req.Header.Set("Content-Type", "application/json")
			resp, err := ts.App.Test(req, -1)
			if err != nil {
				return loadResult{err: err, duration: time.Since(start)}
			}
			defer func() { _ = resp.Body.Close() }()
			return loadResult{statusCode: resp.StatusCode, duration: time.Since(start)}
		})

		failures, p95, max := summarize(results)
		t.Logf("login load: requests=%d failures=%d p95=%s max=%s", len(results), failures, p95, max)
		if failures > 0 {
			t.Fatalf("login load had %d failures", failures)
		}
	})

	t.Run("SessionRead", func(t *testing.T) {
		peer := guestParleyUser(t, ts, "Load Peer")
		openBody, _ := json.Marshal(map[string]uint{"peer_id": peer.ID})
		openReq := httptest.NewRequest(http.MethodPost, "/api/chat/sessions", bytes.NewReader(openBody))
		openReq.Header.Set("Content-Type", "application/json")
		openReq.Header.Set("Authorization", "Bearer "+mainUser.Token)
		openResp, err := ts.App.Test(openReq, -1)
		if err != nil {
			t.Fatalf("open conversation request failed: %v", err)
		}
		defer func() { _ = openResp.Body.Close() }()
		if openResp.StatusCode != http.StatusCreated {
			t.Fatalf("open conversation expected %d got %d", http.StatusCreated, openResp.StatusCode)
		}

		results := runConcurrent(t, 30, 6, func(_ int) loadResult {
			start := time.Now()
			req := httptest.NewRequest(http.MethodGet, "/api/chat/sessions", nil)
			req.Header.Set("Authorization", "Bearer "+mainUser.Token)
			resp, err := ts.App.Test(req, -1)
			if err != nil {
				return loadResult{err: err, duration: time.Since(start)}
			}
			defer func() { _ = resp.Body.Close() }()
			return loadResult{statusCode: resp.StatusCode, duration: time.Since(start)}
		})

		failures, p95, max := summarize(results)
		t.Logf("session read load: requests=%d failures=%d p95=%s max=%s", len(results), failures, p95, max)
		if failures > 0 {
			t.Fatalf("session read load had %d failures", failures)
		}
	})

	t.Run("RoomSend", func(t *testing.T) {
		const senders = 12

		createBody, _ := json.Marshal(map[string]any{"name": "load-room"})
		createReq := httptest.NewRequest(http.MethodPost, "/api/projects", bytes.NewReader(createBody))
		createReq.Header.Set("Content-Type", "application/json")
		createReq.Header.Set("Authorization", "Bearer "+mainUser.Token)
		createResp, err := ts.App.Test(createReq, -1)
		if err != nil {
			t.Fatalf("create project request failed: %v", err)
		}
		defer func() { _ = createResp.Body.Close() }()
		if createResp.StatusCode != http.StatusCreated {
			t.Fatalf("create project expected %d got %d", http.StatusCreated, createResp.StatusCode)
		}

		var room struct {
			ID         uint   `json:"id"`
			InviteCode string `json:"invite_code"`
		}
		if err := json.NewDecoder(createResp.Body).Decode(&room); err != nil {
			t.Fatalf("decode project response: %v", err)
		}
		if room.ID == 0 || room.InviteCode == "" {
			t.Fatal("project response is missing id or invite code")
		}

		// Invite joins provision a guest per sender.
		tokens := make([]string, 0, senders)
		for i := 0; i < senders; i++ {
			joinBody, _ := json.Marshal(map[string]string{
				"display_name": fmt.Sprintf("load sender %d", i),
			})
			joinReq := httptest.NewRequest(http.MethodPost, "/join/"+room.InviteCode, bytes.NewReader(joinBody))
			joinReq.Header.Set("Content-Type", "application/json")
			joinResp, err := ts.App.Test(joinReq, -1)
			if err != nil {
				t.Fatalf("join request %d failed: %v", i, err)
			}
			var joined struct {
				Token string `json:"token"`
			}
			if err := json.NewDecoder(joinResp.Body).Decode(&joined); err != nil {
				t.Fatalf("decode join response %d: %v", i, err)
			}
			_ = joinResp.Body.Close()
			if joined.Token == "" {
				t.Fatalf("join %d issued no guest token", i)
			}
			tokens = append(tokens, joined.Token)
		}

		results := runConcurrent(t, senders, 6, func(i int) loadResult {
			msgBody, _ := json.Marshal(map[string]string{
				"content": fmt.Sprintf("load message %d", i),
			})

			start := time.Now()
			req := httptest.NewRequest(
				http.MethodPost,
				fmt.Sprintf("/api/projects/%d/messages", room.ID),
				bytes.NewReader(msgBody),
			)
			req.Header.Set("Content-Type", "application/json")
			req.Header.Set("Authorization", "Bearer "+tokens[i])

			resp, err := ts.App.Test(req, -1)
			if err != nil {
				return loadResult{err: err, duration: time.Since(start)}
			}
			defer func() { _ = resp.Body.Close() }()

			return loadResult{statusCode: resp.StatusCode, duration: time.Since(start)}
		})

		successes := 0
		rateLimited := 0
		otherFailures := 0

		for _, r := range results {
			if r.err != nil {
				otherFailures++
				continue
			}
			switch r.statusCode {
			case http.StatusCreated:
				successes++
			case http.StatusTooManyRequests:
				rateLimited++
			default:
				otherFailures++
			}
		}

		_, p95, max := summarize(results)
		t.Logf(
			"room send load: requests=%d success=%d rate_limited=%d other_failures=%d p95=%s max=%s",
			len(results), successes, rateLimited, otherFailures, p95, max,
		)
		if successes == 0 {
			t.Fatal("room send load had no successful message creates")
		}
		if otherFailures > 0 {
			t.Fatalf("room send load had %d unexpected failures", otherFailures)
		}
	})
}
