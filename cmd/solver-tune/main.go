package main

import (
	"context"
	"flag"
	"fmt"
	"math/rand"
	"os"
	"sort"
	"strconv"
	"strings"
	"time"

	"seats/config"
	"seats/solver"
)

func seatingKey(seating []string) string {
	return strings.Join(seating, ",")
}

type runResult struct {
	violations  int
	friendScore int
	fallback    bool
	seating     []string
	elapsed     time.Duration
}

func printStats(label string, results []runResult, runs int) {
	scores := map[int]int{}
	seatings := map[string]int{}
	var totalTime time.Duration
	var fallbacks, fallbackViolations int

	for _, r := range results {
		totalTime += r.elapsed
		if r.fallback {
			fallbacks++
			fallbackViolations += r.violations
			continue
		}
		scores[r.friendScore]++
		seatings[seatingKey(r.seating)]++
	}

	fmt.Printf("--- %s ---\n", label)
	fmt.Printf("  avg time: %v\n", totalTime/time.Duration(runs))
	fmt.Printf("  fallbacks: %d/%d runs\n", fallbacks, runs)
	if fallbacks > 0 {
		fmt.Printf("  avg fallback violations: %.1f\n", float64(fallbackViolations)/float64(fallbacks))
	}

	var scoreList []struct {
		score int
		count int
	}
	for s, c := range scores {
		scoreList = append(scoreList, struct {
			score int
			count int
		}{s, c})
	}
	sort.Slice(scoreList, func(i, j int) bool { return scoreList[i].score > scoreList[j].score })

	fmt.Printf("  friend score distribution:\n")
	for _, sc := range scoreList {
		fmt.Printf("    score %d: %d/%d runs (%.0f%%)\n", sc.score, sc.count, runs, float64(sc.count)/float64(runs)*100)
	}

	fmt.Printf("  unique seatings seen: %d\n", len(seatings))
	fmt.Println()
}

func main() {
	configPath := flag.String("config", "", "seating config file; built-in classroom if empty")
	runs := flag.Int("runs", 20, "number of solver runs per parameter set")
	attempts := flag.String("attempts", "100,1000,10000", "comma-separated max attempt counts")
	workers := flag.String("workers", "1,4", "comma-separated worker counts")
	flag.Parse()

	cfg, err := config.ReadSeating(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "reading config: %v\n", err)
		os.Exit(1)
	}
	if err := solver.Validate(cfg.Input()); err != nil {
		fmt.Fprintf(os.Stderr, "invalid config: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("Students: %d, Grid: %dx%d, Friends: %d, Flagged: %d\n", len(cfg.Students), cfg.Rows, cfg.Cols, len(cfg.Friends), len(cfg.Flagged))
	fmt.Printf("Runs per config: %d\n\n", *runs)

	for _, na := range parseIntList(*attempts) {
		for _, nw := range parseIntList(*workers) {
			var results []runResult
			for run := range *runs {
				rng := rand.New(rand.NewSource(int64(run * 31337)))
				o := solver.NewUnchecked(cfg.Input(), solver.WithRand(rng))
				start := time.Now()
				sol, _ := o.GenerateSeatingParallel(context.Background(), na, nw)
				results = append(results, runResult{
					violations:  sol.Violations,
					friendScore: sol.FriendScore,
					fallback:    sol.Fallback,
					seating:     sol.Seating,
					elapsed:     time.Since(start),
				})
			}
			printStats(fmt.Sprintf("attempts=%d workers=%d", na, nw), results, *runs)
		}
	}
}

func parseIntList(s string) []int {
	parts := strings.Split(s, ",")
	var result []int
	for _, p := range parts {
		v, err := strconv.Atoi(strings.TrimSpace(p))
		if err == nil {
			result = append(result, v)
		}
	}
	return result
}
