package main

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/urfave/cli/v2"
)

func stressCommand() *cli.Command {
	return &cli.Command{
		Name:  "stress",
		Usage: "revoke the access token and fire concurrent calls, repeatedly; reports refreshes per round",
		Flags: []cli.Flag{
			&cli.IntFlag{
				Name:  "callers",
				Usage: "concurrent calls per round",
				Value: 64,
			},
			&cli.IntFlag{
				Name:  "rounds",
				Usage: "number of revoke-and-call rounds",
				Value: 10,
			},
		},
		Action: func(c *cli.Context) error {
			callers, rounds := c.Int("callers"), c.Int("rounds")
			if callers <= 0 || rounds <= 0 {
				return usageError(c, "callers and rounds must be > 0")
			}

			out := stdout(c)
			s, err := openSession(c, out)
			if err != nil {
				return err
			}
			defer s.Close()
			if s.fake == nil {
				return usageError(c, "stress needs the built-in fake API; unset --base-url")
			}
			if _, err := s.provider.Login(c.Context, c.String("identifier"), c.String("password")); err != nil {
				return fmt.Errorf("login: %w", err)
			}

			stats := runStress(c.Context, s, callers, rounds)
			printStats(out, stats)
			if stats.failures > 0 {
				return cli.Exit("some calls failed", 1)
			}
			return nil
		},
	}
}

type stressStats struct {
	total     time.Duration
	ops       int
	failures  int64
	refreshes int64
	rounds    int
	p50       time.Duration
	p95       time.Duration
	p99       time.Duration
	opsPerS   float64
}

// runStress runs rounds of callers concurrent /api/echo calls, each round
// starting from a server-revoked access token, so every round should cost
// exactly one refresh.
func runStress(ctx context.Context, s *session, callers, rounds int) stressStats {
	client := s.provider.Client()
	before := s.fake.Refreshes()

	var (
		failures  int64
		latencies = make([]time.Duration, 0, callers*rounds)
		mu        sync.Mutex
	)

	start := time.Now()
	for r := 0; r < rounds; r++ {
		s.fake.RevokeAccess()

		var wg sync.WaitGroup
		for w := 0; w < callers; w++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				t0 := time.Now()
				resp, err := client.Get(ctx, "/api/echo")
				d := time.Since(t0)
				if err != nil || resp.StatusCode != http.StatusOK {
					atomic.AddInt64(&failures, 1)
				}
				if resp != nil {
					_, _ = io.Copy(io.Discard, resp.Body)
					_ = resp.Body.Close()
				}
				mu.Lock()
				latencies = append(latencies, d)
				mu.Unlock()
			}()
		}
		wg.Wait()
	}
	total := time.Since(start)

	stats := computeStats(total, latencies, failures)
	stats.refreshes = s.fake.Refreshes() - before
	stats.rounds = rounds
	return stats
}

func computeStats(total time.Duration, samples []time.Duration, failures int64) stressStats {
	if len(samples) == 0 {
		return stressStats{total: total, failures: failures}
	}
	sort.Slice(samples, func(i, j int) bool { return samples[i] < samples[j] })
	return stressStats{
		total:    total,
		ops:      len(samples),
		failures: failures,
		p50:      percentile(samples, 50),
		p95:      percentile(samples, 95),
		p99:      percentile(samples, 99),
		opsPerS:  float64(len(samples)) / total.Seconds(),
	}
}

func percentile(samples []time.Duration, p int) time.Duration {
	if len(samples) == 0 {
		return 0
	}
	if p <= 0 {
		return samples[0]
	}
	if p >= 100 {
		return samples[len(samples)-1]
	}
	idx := (len(samples) - 1) * p / 100
	return samples[idx]
}

func printStats(out io.Writer, s stressStats) {
	fmt.Fprintf(out, "calls=%d failures=%d rounds=%d refreshes=%d total=%s ops/sec=%.0f p50=%s p95=%s p99=%s\n",
		s.ops,
		s.failures,
		s.rounds,
		s.refreshes,
		s.total.Round(time.Millisecond),
		s.opsPerS,
		s.p50.Round(time.Microsecond),
		s.p95.Round(time.Microsecond),
		s.p99.Round(time.Microsecond),
	)
}
