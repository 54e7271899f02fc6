package suggest_test

import (
	"context"
	"errors"
	"sync"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/rs/zerolog"

	"github.com/jrsteele09/go-medscan-client/apiclient"
	"github.com/jrsteele09/go-medscan-client/internal/backendfake"
	"github.com/jrsteele09/go-medscan-client/medicine"
	fakesessionstore "github.com/jrsteele09/go-medscan-client/sessions/repofakes"
	"github.com/jrsteele09/go-medscan-client/suggest"
)

type fakeQuerier struct {
	lock    sync.Mutex
	queries []string
	ctxs    []context.Context
	gates   map[string]chan struct{}
	err     error
}

func (q *fakeQuerier) Suggestions(ctx context.Context, query string) ([]string, error) {
	q.lock.Lock()
	q.queries = append(q.queries, query)
	q.ctxs = append(q.ctxs, ctx)
	gate := q.gates[query]
	err := q.err
	q.lock.Unlock()

	if gate != nil {
		<-gate
	}
	if err != nil {
		return nil, err
	}
	return []string{query + "-one", query + "-two"}, nil
}

func (q *fakeQuerier) Queries() []string {
	q.lock.Lock()
	defer q.lock.Unlock()
	return append([]string(nil), q.queries...)
}

func (q *fakeQuerier) Context(i int) context.Context {
	q.lock.Lock()
	defer q.lock.Unlock()
	return q.ctxs[i]
}

type collector struct {
	lock    sync.Mutex
	results []suggest.Result
}

func (c *collector) add(r suggest.Result) {
	c.lock.Lock()
	defer c.lock.Unlock()
	c.results = append(c.results, r)
}

func (c *collector) Results() []suggest.Result {
	c.lock.Lock()
	defer c.lock.Unlock()
	return append([]suggest.Result(nil), c.results...)
}

func (c *collector) Queries() []string {
	var out []string
	for _, r := range c.Results() {
		out = append(out, r.Query)
	}
	return out
}

var _ = Describe("Debouncer", func() {
	const quiet = 40 * time.Millisecond

	var (
		querier   *fakeQuerier
		results   *collector
		debouncer *suggest.Debouncer
	)

	BeforeEach(func() {
		querier = &fakeQuerier{gates: map[string]chan struct{}{}}
		results = &collector{}

		var err error
		debouncer, err = suggest.New(querier, results.add,
			suggest.WithQuietPeriod(quiet),
			suggest.WithLogger(zerolog.New(GinkgoWriter)),
		)
		Expect(err).NotTo(HaveOccurred())
		DeferCleanup(debouncer.Close)
	})

	It("requires a querier and a callback", func() {
		_, err := suggest.New(nil, results.add)
		Expect(err).To(HaveOccurred())
		_, err = suggest.New(querier, nil)
		Expect(err).To(HaveOccurred())
	})

	It("queries once with the last value of a rapid burst", func() {
		for _, text := range []string{"pa", "par", "para", "parac"} {
			debouncer.OnInput(text)
			time.Sleep(quiet / 4)
		}

		Eventually(querier.Queries).Should(Equal([]string{"parac"}))
		Eventually(results.Results).Should(HaveLen(1))
		Consistently(querier.Queries, 4*quiet, quiet/2).Should(HaveLen(1))

		result := results.Results()[0]
		Expect(result.Query).To(Equal("parac"))
		Expect(result.Suggestions).To(Equal([]string{"parac-one", "parac-two"}))
		Expect(result.Err).NotTo(HaveOccurred())
	})

	It("suppresses short input and delivers an empty result at once", func() {
		debouncer.OnInput(" p ")

		got := results.Results()
		Expect(got).To(HaveLen(1))
		Expect(got[0].Query).To(Equal("p"))
		Expect(got[0].Suggestions).To(BeEmpty())
		Consistently(querier.Queries, 4*quiet, quiet/2).Should(BeEmpty())
	})

	It("counts runes, not bytes", func() {
		debouncer.OnInput("é")
		Consistently(querier.Queries, 3*quiet, quiet/2).Should(BeEmpty())

		debouncer.OnInput("éé")
		Eventually(querier.Queries).Should(Equal([]string{"éé"}))
	})

	It("abandons a pending query when the input becomes too short", func() {
		debouncer.OnInput("para")
		debouncer.OnInput("p")

		Consistently(querier.Queries, 4*quiet, quiet/2).Should(BeEmpty())
		Expect(results.Queries()).To(Equal([]string{"p"}))
	})

	It("drops the result of a query overtaken by newer input", func() {
		gate := make(chan struct{})
		querier.gates["para"] = gate

		debouncer.OnInput("para")
		Eventually(querier.Queries).Should(Equal([]string{"para"}))

		debouncer.OnInput("parac")
		Eventually(querier.Queries).Should(Equal([]string{"para", "parac"}))
		Eventually(results.Queries).Should(Equal([]string{"parac"}))

		close(gate)
		Consistently(results.Queries, 4*quiet, quiet/2).Should(Equal([]string{"parac"}))
	})

	It("cancels the in-flight request when input changes", func() {
		gate := make(chan struct{})
		DeferCleanup(func() { close(gate) })
		querier.gates["para"] = gate

		debouncer.OnInput("para")
		Eventually(querier.Queries).Should(HaveLen(1))
		first := querier.Context(0)
		Expect(first.Err()).NotTo(HaveOccurred())

		debouncer.OnInput("parac")
		Eventually(first.Done()).Should(BeClosed())
	})

	It("delivers query errors for the latest input", func() {
		querier.err = errors.New("backend down")

		debouncer.OnInput("para")
		Eventually(results.Results).Should(HaveLen(1))
		Expect(results.Results()[0].Err).To(MatchError("backend down"))
	})

	It("delivers nothing after Close", func() {
		debouncer.OnInput("para")
		debouncer.Close()
		debouncer.OnInput("parac")

		Consistently(querier.Queries, 4*quiet, quiet/2).Should(BeEmpty())
		Expect(results.Results()).To(BeEmpty())
	})

	Context("against the medicine service", func() {
		var backend *backendfake.Backend

		BeforeEach(func() {
			backend = backendfake.New()
			DeferCleanup(backend.Close)
			backend.Suggestions = []string{"Paracetamol", "Paradol", "Ibuprofen"}

			client, err := apiclient.New(backend.URL, fakesessionstore.NewFakeSessionStore())
			Expect(err).NotTo(HaveOccurred())
			meds, err := medicine.New(client)
			Expect(err).NotTo(HaveOccurred())

			debouncer, err = suggest.New(meds, results.add, suggest.WithQuietPeriod(quiet))
			Expect(err).NotTo(HaveOccurred())
			DeferCleanup(debouncer.Close)
		})

		It("sends one request for a burst", func() {
			debouncer.OnInput("pa")
			debouncer.OnInput("par")
			debouncer.OnInput("para")

			Eventually(results.Results).Should(HaveLen(1))
			Expect(results.Results()[0].Suggestions).To(Equal([]string{"Paracetamol", "Paradol"}))
			Consistently(func() int { return backend.Calls("/medicine_suggestions") }, 3*quiet, quiet/2).Should(Equal(1))
		})

		It("maps no matches to an empty list", func() {
			debouncer.OnInput("xyzzy")

			Eventually(results.Results).Should(HaveLen(1))
			result := results.Results()[0]
			Expect(result.Err).NotTo(HaveOccurred())
			Expect(result.Suggestions).To(BeEmpty())
		})
	})
})
