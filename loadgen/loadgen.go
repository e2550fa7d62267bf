package loadgen

import (
	"fmt"
	"sync"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/montanaflynn/stats"

	db "os161/debug"
)

type Req func() error

// LoadGenerator issues nreq requests from nthread concurrent callers
// and records each request's latency.
type LoadGenerator struct {
	sync.Mutex
	nreq    int
	nthread int
	req     Req
	lats    []time.Duration // Latencies of successful requests.
	nerr    int
	elapsed time.Duration
	wg      sync.WaitGroup
}

func NewLoadGenerator(nreq, nthread int, req Req) *LoadGenerator {
	if nthread < 1 {
		nthread = 1
	}
	return &LoadGenerator{
		nreq:    nreq,
		nthread: nthread,
		req:     req,
		lats:    make([]time.Duration, 0, nreq),
	}
}

func (lg *LoadGenerator) runReqs(n int) {
	defer lg.wg.Done()
	for i := 0; i < n; i++ {
		start := time.Now()
		err := lg.req()
		lat := time.Since(start)
		lg.Lock()
		if err != nil {
			db.DPrintf(db.BENCH, "req err %v", err)
			lg.nerr++
		} else {
			lg.lats = append(lg.lats, lat)
		}
		lg.Unlock()
	}
}

func (lg *LoadGenerator) Run() {
	start := time.Now()
	for i := 0; i < lg.nthread; i++ {
		n := lg.nreq / lg.nthread
		if i < lg.nreq%lg.nthread {
			n++
		}
		lg.wg.Add(1)
		go lg.runReqs(n)
	}
	lg.wg.Wait()
	lg.elapsed = time.Since(start)
	db.DPrintf(db.BENCH, "Ran %d reqs in %v", lg.nreq, lg.elapsed)
}

// Latencies in milliseconds.
type Tstats struct {
	N       int
	Nerr    int
	Elapsed time.Duration
	Mean    float64
	P50     float64
	P90     float64
	P99     float64
	Max     float64
}

func (st *Tstats) Tput() float64 {
	return float64(st.N) / st.Elapsed.Seconds()
}

func (st *Tstats) String() string {
	return fmt.Sprintf("%s reqs (%d errors) in %v, %s req/s\nMean: %.3fms\n50%%: %.3fms\n90%%: %.3fms\n99%%: %.3fms\n100%%: %.3fms",
		humanize.Comma(int64(st.N)), st.Nerr, st.Elapsed, humanize.Comma(int64(st.Tput())),
		st.Mean, st.P50, st.P90, st.P99, st.Max)
}

func (lg *LoadGenerator) Stats() (*Tstats, error) {
	lg.Lock()
	defer lg.Unlock()

	data := make([]float64, len(lg.lats))
	for i, l := range lg.lats {
		data[i] = float64(l.Microseconds()) / 1000.0
	}
	st := &Tstats{N: len(data), Nerr: lg.nerr, Elapsed: lg.elapsed}
	var err error
	if st.Mean, err = stats.Mean(data); err != nil {
		return nil, fmt.Errorf("mean: %v", err)
	}
	if st.P50, err = stats.Percentile(data, 50); err != nil {
		return nil, fmt.Errorf("percentile 50: %v", err)
	}
	if st.P90, err = stats.Percentile(data, 90); err != nil {
		return nil, fmt.Errorf("percentile 90: %v", err)
	}
	if st.P99, err = stats.Percentile(data, 99); err != nil {
		return nil, fmt.Errorf("percentile 99: %v", err)
	}
	if st.Max, err = stats.Max(data); err != nil {
		return nil, fmt.Errorf("max: %v", err)
	}
	return st, nil
}
