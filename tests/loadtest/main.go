package main

import (
	"fmt"
	"math/rand"
	"net"
	"net/http"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"countly"
)

const (
	numWorkers   = 50
	testDuration = 10 * time.Second
	numEventKeys = 200
	numViews     = 40
)

var eventKeys = func() []string {
	keys := make([]string, numEventKeys)
	for i := range keys {
		keys[i] = fmt.Sprintf("event_%d", i)
	}
	return keys
}()

type result struct {
	op      string
	latency time.Duration
	err     bool
}

type stats struct {
	count     int64
	errors    int64
	latencies []time.Duration
}

// collector is a local stand-in for the ingestion server. It counts
// requests by payload kind and always answers success.
type collector struct {
	sessions atomic.Int64
	events   atomic.Int64
	crashes  atomic.Int64
	other    atomic.Int64
}

func (c *collector) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	query := r.URL.RawQuery
	if r.Method == http.MethodPost {
		buf := make([]byte, 64*1024)
		n, _ := r.Body.Read(buf)
		query += string(buf[:n])
	}
	switch {
	case strings.Contains(query, "begin_session") || strings.Contains(query, "end_session") || strings.Contains(query, "session_duration"):
		c.sessions.Add(1)
	case strings.Contains(query, "events="):
		c.events.Add(1)
	case strings.Contains(query, "crash="):
		c.crashes.Add(1)
	default:
		c.other.Add(1)
	}
	w.Header().Set("Content-Type", "application/json")
	fmt.Fprint(w, `{"result":"Success"}`)
}

func main() {
	fmt.Println("=== Countly SDK Load Test ===")
	fmt.Printf("Workers: %d | Duration: %s per phase\n", numWorkers, testDuration)
	fmt.Printf("Event keys: %d | Views: %d\n\n", numEventKeys, numViews)

	coll := &collector{}
	listener, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		fmt.Println("FAILED to bind collector:", err)
		return
	}
	server := &http.Server{Handler: coll}
	go server.Serve(listener)
	baseURL := "http://" + listener.Addr().String()
	fmt.Println("Mock collector at", baseURL)

	client, err := countly.New(&countly.Config{
		ServerURL:      baseURL,
		AppKey:         "loadtest",
		AppVersion:     "0.0.0-load",
		UploadInterval: time.Second,
		StorageDir:     "loadtest-data",
		DeviceMetrics: countly.Metrics{
			OS:        "linux",
			OSVersion: "6.1",
			Device:    "loadrig",
		},
	})
	if err != nil {
		fmt.Println("FAILED to build client:", err)
		return
	}
	defer client.Close()

	client.BeginSession()

	// Phase 1: event recording only, measures queue append cost
	fmt.Println("\n--- Phase 1: Events only ---")
	runPhase(testDuration, func(rng *rand.Rand) result {
		return doRecordEvent(client, rng)
	})

	// Phase 2: mixed recording, the shape of a busy interactive app
	fmt.Println("\n--- Phase 2: Mixed (70% events, 20% views, 10% crashes) ---")
	runPhase(testDuration, func(rng *rand.Rand) result {
		r := rng.Float64()
		switch {
		case r < 0.70:
			return doRecordEvent(client, rng)
		case r < 0.90:
			return doRecordView(client, rng)
		default:
			return doRecordCrash(client, rng)
		}
	})

	// Phase 3: recording under concurrent explicit flushes
	fmt.Println("\n--- Phase 3: Events with flush pressure ---")
	stopFlush := make(chan struct{})
	go func() {
		for {
			select {
			case <-stopFlush:
				return
			case <-time.After(100 * time.Millisecond):
				client.Flush()
			}
		}
	}()
	runPhase(testDuration, func(rng *rand.Rand) result {
		return doRecordEvent(client, rng)
	})
	close(stopFlush)

	client.EndSession()
	client.Flush()

	fmt.Printf("\nCollector saw: %d session | %d event | %d crash | %d other requests\n",
		coll.sessions.Load(), coll.events.Load(), coll.crashes.Load(), coll.other.Load())
}

func runPhase(duration time.Duration, workFn func(rng *rand.Rand) result) {
	results := make(chan result, 10000)
	var wg sync.WaitGroup
	stop := make(chan struct{})

	for i := 0; i < numWorkers; i++ {
		wg.Add(1)
		go func(seed int64) {
			defer wg.Done()
			rng := rand.New(rand.NewSource(seed))
			for {
				select {
				case <-stop:
					return
				default:
					results <- workFn(rng)
				}
			}
		}(rand.Int63() + int64(i))
	}

	allResults := make(map[string]*stats)
	done := make(chan struct{})
	go func() {
		for r := range results {
			s, ok := allResults[r.op]
			if !ok {
				s = &stats{}
				allResults[r.op] = s
			}
			s.count++
			if r.err {
				s.errors++
			}
			s.latencies = append(s.latencies, r.latency)
		}
		close(done)
	}()

	time.Sleep(duration)
	close(stop)
	wg.Wait()
	close(results)
	<-done

	printResults(allResults, duration)
}

func printResults(allResults map[string]*stats, duration time.Duration) {
	var totalOps int64
	var totalErrors int64

	ops := make([]string, 0, len(allResults))
	for op := range allResults {
		ops = append(ops, op)
	}
	sort.Strings(ops)

	fmt.Printf("\n  %-22s %8s %6s %10s %10s %10s %10s\n",
		"Operation", "Calls", "Errs", "Avg", "P50", "P95", "P99")
	fmt.Println("  " + repeat("-", 88))

	for _, op := range ops {
		s := allResults[op]
		totalOps += s.count
		totalErrors += s.errors

		sort.Slice(s.latencies, func(i, j int) bool {
			return s.latencies[i] < s.latencies[j]
		})

		avg := avgDuration(s.latencies)
		p50 := percentile(s.latencies, 0.50)
		p95 := percentile(s.latencies, 0.95)
		p99 := percentile(s.latencies, 0.99)

		fmt.Printf("  %-22s %8d %6d %10s %10s %10s %10s\n",
			op, s.count, s.errors, fmtDur(avg), fmtDur(p50), fmtDur(p95), fmtDur(p99))
	}

	rps := float64(totalOps) / duration.Seconds()
	fmt.Println("  " + repeat("-", 88))
	fmt.Printf("  Total: %d calls | Errors: %d (%.1f%%) | Calls/s: %.0f\n",
		totalOps, totalErrors, float64(totalErrors)/float64(totalOps)*100, rps)
}

func doRecordEvent(client *countly.Client, rng *rand.Rand) result {
	key := eventKeys[rng.Intn(len(eventKeys))]
	opts := countly.EventOptions{Count: rng.Intn(5) + 1}
	if rng.Float64() < 0.3 {
		sum := rng.Float64() * 100
		opts.Sum = &sum
	}
	if rng.Float64() < 0.4 {
		opts.Segmentation = map[string]string{
			"source": fmt.Sprintf("screen_%d", rng.Intn(numViews)),
			"tier":   fmt.Sprintf("%d", rng.Intn(3)),
		}
	}

	start := time.Now()
	err := client.RecordEventWith(key, opts)
	return result{"RecordEvent", time.Since(start), err != nil}
}

func doRecordView(client *countly.Client, rng *rand.Rand) result {
	name := fmt.Sprintf("view_%d", rng.Intn(numViews))
	start := time.Now()
	err := client.RecordView(name)
	return result{"RecordView", time.Since(start), err != nil}
}

func doRecordCrash(client *countly.Client, rng *rand.Rand) result {
	start := time.Now()
	err := client.RecordException(
		fmt.Sprintf("error_%d", rng.Intn(20)),
		"main.work\n\tmain.go:42\nmain.main\n\tmain.go:12",
	)
	return result{"RecordException", time.Since(start), err != nil}
}

func avgDuration(d []time.Duration) time.Duration {
	if len(d) == 0 {
		return 0
	}
	var sum time.Duration
	for _, v := range d {
		sum += v
	}
	return sum / time.Duration(len(d))
}

func percentile(d []time.Duration, p float64) time.Duration {
	if len(d) == 0 {
		return 0
	}
	idx := int(float64(len(d)) * p)
	if idx >= len(d) {
		idx = len(d) - 1
	}
	return d[idx]
}

func fmtDur(d time.Duration) string {
	if d < time.Millisecond {
		return fmt.Sprintf("%dµs", d.Microseconds())
	}
	return fmt.Sprintf("%.1fms", float64(d.Microseconds())/1000.0)
}

func repeat(s string, n int) string {
	out := ""
	for i := 0; i < n; i++ {
		out += s
	}
	return out
}
