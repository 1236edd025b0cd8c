package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sort"
	"strings"
	"sync"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/time/rate"
)

type loadOptions struct {
	URL         string
	Method      string
	RPS         float64
	Requests    int
	Concurrency int
	Headers     []string
	Timeout     time.Duration
}

type loadReport struct {
	Statuses map[int]int
	Errors   int
	Elapsed  time.Duration
}

func loadtestCmd() *cobra.Command {
	opts := loadOptions{}

	cmd := &cobra.Command{
		Use:   "loadtest",
		Short: "Send paced requests and print a status code histogram",
		Example: `  flowershop loadtest --url http://localhost:8080/users/login --method POST --rps 20 --requests 50
  flowershop loadtest --url http://localhost:8080/users/me -H "X-User-ID: alice"`,
		RunE: func(cmd *cobra.Command, args []string) error {
			rep, err := runLoad(cmd.Context(), http.DefaultClient, opts)
			if err != nil {
				return err
			}
			printReport(cmd.OutOrStdout(), rep)
			return nil
		},
	}

	f := cmd.Flags()
	f.StringVar(&opts.URL, "url", "", "target URL")
	f.StringVar(&opts.Method, "method", http.MethodGet, "HTTP method")
	f.Float64Var(&opts.RPS, "rps", 10, "requests per second (pacing across all workers)")
	f.IntVar(&opts.Requests, "requests", 100, "total requests")
	f.IntVar(&opts.Concurrency, "concurrency", 4, "parallel workers")
	f.StringArrayVarP(&opts.Headers, "header", "H", nil, `extra header "Name: value" (repeatable)`)
	f.DurationVar(&opts.Timeout, "timeout", 10*time.Second, "per-request timeout")
	_ = cmd.MarkFlagRequired("url")
	return cmd
}

// runLoad dispara opts.Requests requisições com ritmo global de opts.RPS
// (token bucket do x/time/rate, burst 1) repartidas entre os workers.
func runLoad(ctx context.Context, client *http.Client, opts loadOptions) (loadReport, error) {
	if opts.URL == "" {
		return loadReport{}, errors.New("--url is required")
	}
	if opts.RPS <= 0 || opts.Requests <= 0 {
		return loadReport{}, errors.New("--rps and --requests must be > 0")
	}
	if opts.Concurrency <= 0 {
		opts.Concurrency = 1
	}
	header, err := parseHeaders(opts.Headers)
	if err != nil {
		return loadReport{}, err
	}

	limiter := rate.NewLimiter(rate.Limit(opts.RPS), 1)
	jobs := make(chan struct{})
	rep := loadReport{Statuses: map[int]int{}}
	var mu sync.Mutex
	var wg sync.WaitGroup

	start := time.Now()
	for i := 0; i < opts.Concurrency; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for range jobs {
				code, err := doOne(ctx, client, opts, header)
				mu.Lock()
				if err != nil {
					rep.Errors++
				} else {
					rep.Statuses[code]++
				}
				mu.Unlock()
			}
		}()
	}

	var waitErr error
	for i := 0; i < opts.Requests; i++ {
		if waitErr = limiter.Wait(ctx); waitErr != nil {
			break
		}
		jobs <- struct{}{}
	}
	close(jobs)
	wg.Wait()
	rep.Elapsed = time.Since(start)

	if waitErr != nil && !errors.Is(waitErr, context.Canceled) {
		return rep, waitErr
	}
	return rep, nil
}

func doOne(ctx context.Context, client *http.Client, opts loadOptions, header http.Header) (int, error) {
	if opts.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, opts.Timeout)
		defer cancel()
	}
	req, err := http.NewRequestWithContext(ctx, opts.Method, opts.URL, nil)
	if err != nil {
		return 0, err
	}
	for k, v := range header {
		req.Header[k] = v
	}

	resp, err := client.Do(req)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)
	return resp.StatusCode, nil
}

func parseHeaders(raw []string) (http.Header, error) {
	h := http.Header{}
	for _, kv := range raw {
		name, value, ok := strings.Cut(kv, ":")
		if !ok || strings.TrimSpace(name) == "" {
			return nil, fmt.Errorf("invalid header %q: expected \"Name: value\"", kv)
		}
		h.Add(strings.TrimSpace(name), strings.TrimSpace(value))
	}
	return h, nil
}

func printReport(out io.Writer, rep loadReport) {
	codes := make([]int, 0, len(rep.Statuses))
	total := rep.Errors
	for code, n := range rep.Statuses {
		codes = append(codes, code)
		total += n
	}
	sort.Ints(codes)

	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "STATUS\tCOUNT")
	for _, code := range codes {
		fmt.Fprintf(w, "%d %s\t%d\n", code, http.StatusText(code), rep.Statuses[code])
	}
	if rep.Errors > 0 {
		fmt.Fprintf(w, "error\t%d\n", rep.Errors)
	}
	_ = w.Flush()
	fmt.Fprintf(out, "%d requests in %s\n", total, rep.Elapsed.Round(time.Millisecond))
}
