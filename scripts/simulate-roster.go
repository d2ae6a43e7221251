package main

import (
	"bytes"
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"math/rand"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

type rosterView struct {
	GameID    string `json:"game_id"`
	Capacity  int    `json:"capacity"`
	Occupancy int    `json:"occupancy"`
	Confirmed []struct {
		ProfileID string `json:"profile_id"`
	} `json:"confirmed"`
	Waitlist []struct {
		ProfileID     string `json:"profile_id"`
		QueuePosition int64  `json:"queue_position"`
	} `json:"waitlist"`
}

var (
	baseURL       = flag.String("url", "http://localhost:8080", "Roster service base URL")
	jwtSecret     = flag.String("secret", "", "JWT signing secret (required, must match the server)")
	gameID        = flag.String("game", "", "Game ID (required, game must exist)")
	numProfiles   = flag.Int("profiles", 100, "Number of profiles to join")
	joinRate      = flag.Duration("join-rate", 10*time.Millisecond, "Time between joins (0 for maximum speed)")
	leaveRate     = flag.Float64("leave-rate", 0.1, "Probability of a profile leaving per minute (0.0-1.0)")
	confirmRate   = flag.Float64("confirm-rate", 0.3, "Probability of a confirmed profile acking attendance per check (0.0-1.0)")
	checkInterval = flag.Duration("check-interval", 15*time.Second, "Interval between attendance-ack passes")
	simulate      = flag.Bool("simulate", false, "Enable continuous simulation with random leaves and attendance acks")
)

func main() {
	flag.Parse()

	if *gameID == "" || *jwtSecret == "" {
		fmt.Println("Error: --game and --secret flags are required")
		flag.Usage()
		os.Exit(1)
	}

	ctx := context.Background()
	cli := &http.Client{Timeout: 10 * time.Second}

	// Probe the game before hammering it.
	view, err := fetchRoster(ctx, cli, *gameID)
	if err != nil {
		fmt.Printf("Failed to fetch roster for game %s: %v\n", *gameID, err)
		os.Exit(1)
	}
	fmt.Printf("✅ Connected to %s, game %s (capacity %d, occupancy %d)\n",
		*baseURL, *gameID, view.Capacity, view.Occupancy)

	profiles := joinProfiles(ctx, cli, *gameID, *numProfiles)

	view, _ = fetchRoster(ctx, cli, *gameID)
	if view != nil {
		fmt.Printf("\n✅ Joined %d profiles: %d confirmed, %d waitlisted\n",
			len(profiles), len(view.Confirmed), len(view.Waitlist))
	}

	if *simulate {
		fmt.Printf("\n🎬 Starting continuous simulation...\n")
		fmt.Printf("   Leave rate: %.1f%% per minute\n", *leaveRate*100)
		fmt.Printf("   Attendance ack rate: %.1f%% every %v\n", *confirmRate*100, *checkInterval)
		fmt.Printf("   Press Ctrl+C to stop\n\n")
		runSimulation(ctx, cli, *gameID, profiles)
	} else {
		fmt.Println("\n💡 Tip: Use --simulate flag to enable random leaves and attendance acks")
	}
}

func joinProfiles(ctx context.Context, cli *http.Client, gameID string, n int) []string {
	profiles := make([]string, 0, n)

	fmt.Printf("\n🚀 Joining %d profiles...\n", n)
	startTime := time.Now()

	for i := 0; i < n; i++ {
		profileID := fmt.Sprintf("demo-profile-%d", i+1)
		if _, err := call(ctx, cli, profileID, http.MethodPost, fmt.Sprintf("/api/v1/games/%s/join", gameID), nil); err != nil {
			fmt.Printf("❌ Join failed for %s: %v\n", profileID, err)
			continue
		}
		profiles = append(profiles, profileID)

		if (i+1)%50 == 0 || i+1 == n {
			fmt.Printf("   Progress: %d/%d profiles joined\n", i+1, n)
		}
		if *joinRate > 0 {
			time.Sleep(*joinRate)
		}
	}

	elapsed := time.Since(startTime)
	fmt.Printf("⏱️  Completed in %v (%.0f joins/sec)\n", elapsed, float64(n)/elapsed.Seconds())

	return profiles
}

func runSimulation(ctx context.Context, cli *http.Client, gameID string, profiles []string) {
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	var mu sync.Mutex
	active := make(map[string]bool, len(profiles))
	for _, id := range profiles {
		active[id] = true
	}

	statusTicker := time.NewTicker(10 * time.Second)
	defer statusTicker.Stop()
	leaveTicker := time.NewTicker(1 * time.Minute)
	defer leaveTicker.Stop()
	confirmTicker := time.NewTicker(*checkInterval)
	defer confirmTicker.Stop()

	for {
		select {
		case <-sigChan:
			fmt.Println("\n👋 Simulation stopped")
			return

		case <-statusTicker.C:
			view, err := fetchRoster(ctx, cli, gameID)
			if err != nil {
				fmt.Printf("❌ Roster fetch failed: %v\n", err)
				continue
			}
			mu.Lock()
			fmt.Printf("[%s] Confirmed: %d/%d | Waitlist: %d | Active: %d\n",
				time.Now().Format("15:04:05"),
				len(view.Confirmed), view.Capacity, len(view.Waitlist), len(active))
			mu.Unlock()

		case <-leaveTicker.C:
			mu.Lock()
			var leavers []string
			for id := range active {
				if rand.Float64() < *leaveRate {
					leavers = append(leavers, id)
				}
			}
			for _, id := range leavers {
				delete(active, id)
			}
			mu.Unlock()

			for _, id := range leavers {
				body := []byte(`{"release_confirmed_slot":true}`)
				if _, err := call(ctx, cli, id, http.MethodPost, fmt.Sprintf("/api/v1/games/%s/leave", gameID), body); err != nil {
					fmt.Printf("❌ Leave failed for %s: %v\n", id, err)
					continue
				}
				fmt.Printf("🚪 %s left the roster\n", id)
			}

		case <-confirmTicker.C:
			view, err := fetchRoster(ctx, cli, gameID)
			if err != nil {
				continue
			}
			for _, m := range view.Confirmed {
				if rand.Float64() >= *confirmRate {
					continue
				}
				if _, err := call(ctx, cli, m.ProfileID, http.MethodPost, fmt.Sprintf("/api/v1/games/%s/confirm", gameID), nil); err != nil {
					continue
				}
				fmt.Printf("✔️  %s acked attendance\n", m.ProfileID)
			}
		}
	}
}

func fetchRoster(ctx context.Context, cli *http.Client, gameID string) (*rosterView, error) {
	raw, err := call(ctx, cli, "demo-observer", http.MethodGet, fmt.Sprintf("/api/v1/games/%s/roster", gameID), nil)
	if err != nil {
		return nil, err
	}
	var view rosterView
	if err := json.Unmarshal(raw, &view); err != nil {
		return nil, err
	}
	return &view, nil
}

func call(ctx context.Context, cli *http.Client, profileID, method, path string, body []byte) ([]byte, error) {
	var rdr io.Reader
	if body != nil {
		rdr = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, *baseURL+path, rdr)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+mintToken(profileID))
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := cli.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode >= 400 {
		return nil, fmt.Errorf("%s %s: status %d: %s", method, path, resp.StatusCode, raw)
	}
	return raw, nil
}

func mintToken(profileID string) string {
	tok := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"profile_id": profileID,
		"exp":        time.Now().Add(2 * time.Hour).Unix(),
	})
	signed, _ := tok.SignedString([]byte(*jwtSecret))
	return signed
}
