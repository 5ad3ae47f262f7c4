package server_test

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/valyala/fasthttp"
	"go.uber.org/zap"

	"github.com/edgecomet/domfilter/internal/common/configtypes"
	"github.com/edgecomet/domfilter/internal/common/httputil"
	"github.com/edgecomet/domfilter/internal/common/metricsserver"
	"github.com/edgecomet/domfilter/internal/fetch"
	"github.com/edgecomet/domfilter/internal/metrics"
	"github.com/edgecomet/domfilter/internal/parser"
	"github.com/edgecomet/domfilter/internal/pipeline"
	"github.com/edgecomet/domfilter/internal/server"
	"github.com/edgecomet/domfilter/pkg/types"
)

const catalog = `<html><body>
<div class="product" data-sku="A1"><h2>Lamp</h2><span class="price">10</span></div>
<div class="product" data-sku="B2"><h2>Desk</h2><span class="price">120</span></div>
</body></html>`

type apiResult struct {
	status   int
	envelope httputil.APIResponse
	data     server.FilterResponse
	header   http.Header
}

var _ = Describe("Filter API", func() {
	var (
		origin    *httptest.Server
		api       *server.Server
		metricsSv *metricsserver.Server
		client    *fasthttp.Client
		baseURL   string
	)

	post := func(body interface{}, headers map[string]string) apiResult {
		raw, err := json.Marshal(body)
		Expect(err).ToNot(HaveOccurred())

		req := fasthttp.AcquireRequest()
		resp := fasthttp.AcquireResponse()
		defer fasthttp.ReleaseRequest(req)
		defer fasthttp.ReleaseResponse(resp)

		req.SetRequestURI(baseURL + server.PathFilter)
		req.Header.SetMethod(fasthttp.MethodPost)
		req.Header.SetContentType("application/json")
		for k, v := range headers {
			req.Header.Set(k, v)
		}
		req.SetBody(raw)

		Expect(client.DoTimeout(req, resp, 5*time.Second)).To(Succeed())

		result := apiResult{status: resp.StatusCode(), header: http.Header{}}
		result.header.Set("X-Request-ID", string(resp.Header.Peek("X-Request-ID")))
		Expect(json.Unmarshal(resp.Body(), &result.envelope)).To(Succeed())
		if result.envelope.Data != nil {
			data, _ := json.Marshal(result.envelope.Data)
			Expect(json.Unmarshal(data, &result.data)).To(Succeed())
		}
		return result
	}

	BeforeEach(func() {
		logger := zap.NewNop()

		origin = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			switch r.URL.Path {
			case "/catalog":
				w.Header().Set("Content-Type", "text/html; charset=utf-8")
				fmt.Fprint(w, catalog)
			case "/data.json":
				w.Header().Set("Content-Type", "application/json")
				fmt.Fprint(w, `{}`)
			default:
				http.NotFound(w, r)
			}
		}))

		recorder := metrics.NewPrometheusMetricsWithRegistry("domfilter", prometheus.NewRegistry(), logger)

		off := false
		fetcher, err := fetch.NewClient(configtypes.FetchConfig{
			Timeout:        types.Duration(5 * time.Second),
			UserAgent:      "domfilter-suite",
			MaxRedirects:   2,
			MaxAttempts:    1,
			MaxBodySize:    1 << 20,
			SSRFProtection: &off,
			DenyHosts:      []string{"*.internal"},
		}, recorder, logger)
		Expect(err).ToNot(HaveOccurred())

		p := pipeline.New(parser.New(configtypes.ParserConfig{}, logger), fetcher, recorder, logger)
		api = server.New(configtypes.ServerConfig{
			Listen:             "127.0.0.1:0",
			Timeout:            types.Duration(10 * time.Second),
			AuthKey:            "suite-key",
			MaxRequestBodySize: 1 << 20,
		}, p, recorder, logger)
		Expect(api.Start()).To(Succeed())
		baseURL = "http://" + api.Addr()

		metricsSv, err = metricsserver.Start(configtypes.MetricsConfig{
			Enabled: true,
			Listen:  "127.0.0.1:0",
			Path:    "/metrics",
		}, recorder, logger)
		Expect(err).ToNot(HaveOccurred())

		client = &fasthttp.Client{}
	})

	AfterEach(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		Expect(api.Shutdown(ctx)).To(Succeed())
		Expect(metricsSv.Shutdown(ctx)).To(Succeed())
		origin.Close()
	})

	auth := map[string]string{server.AuthHeader: "suite-key"}

	Context("health", func() {
		It("answers without an API key", func() {
			status, body, err := client.Get(nil, baseURL+server.PathHealth)
			Expect(err).ToNot(HaveOccurred())
			Expect(status).To(Equal(fasthttp.StatusOK))
			Expect(string(body)).To(MatchJSON(`{"success":true}`))
		})
	})

	Context("inline markup", func() {
		It("returns the inner markup of matches", func() {
			res := post(server.FilterRequest{
				HTML:    catalog,
				Filters: [][]string{{"div", "data-sku", "B2"}},
			}, auth)

			Expect(res.status).To(Equal(fasthttp.StatusOK))
			Expect(res.envelope.Success).To(BeTrue())
			Expect(res.data.Matches).To(Equal(1))
			Expect(res.data.Content).To(Equal(`<h2>Desk</h2><span class="price">120</span>`))
		})

		It("chains filters and indexes into the result", func() {
			index := 1
			res := post(server.FilterRequest{
				HTML:    catalog,
				Filters: [][]string{{"div", "class", "product"}, {"span"}},
				Mode:    "text",
				Index:   &index,
			}, auth)

			Expect(res.status).To(Equal(fasthttp.StatusOK))
			Expect(res.data.Matches).To(Equal(2))
			Expect(res.data.Content).To(Equal("120"))
		})

		It("rejects requests without the API key", func() {
			res := post(server.FilterRequest{HTML: catalog, Filters: [][]string{{"div"}}}, nil)
			Expect(res.status).To(Equal(fasthttp.StatusUnauthorized))
			Expect(res.envelope.Code).To(Equal("unauthorized"))
		})

		It("echoes the client request ID", func() {
			headers := map[string]string{server.AuthHeader: "suite-key", "X-Request-ID": "trace-42"}
			res := post(server.FilterRequest{HTML: catalog, Filters: [][]string{{"div"}}}, headers)
			Expect(res.header.Get("X-Request-ID")).To(Equal("trace-42"))
		})
	})

	Context("remote documents", func() {
		It("fetches and filters a URL", func() {
			res := post(server.FilterRequest{
				URL:     origin.URL + "/catalog",
				Filters: [][]string{{"*", "data-sku"}},
				Mode:    "attr",
				Attr:    "data-sku",
			}, auth)

			Expect(res.status).To(Equal(fasthttp.StatusOK))
			Expect(res.data.Values).To(Equal([]string{"A1", "B2"}))
		})

		It("maps origin failures to 502", func() {
			res := post(server.FilterRequest{URL: origin.URL + "/missing", Filters: [][]string{{"div"}}}, auth)
			Expect(res.status).To(Equal(fasthttp.StatusBadGateway))
			Expect(res.envelope.Code).To(Equal("fetch_error"))
		})

		It("maps non-HTML responses to 502", func() {
			res := post(server.FilterRequest{URL: origin.URL + "/data.json", Filters: [][]string{{"div"}}}, auth)
			Expect(res.status).To(Equal(fasthttp.StatusBadGateway))
		})

		It("refuses denied hosts", func() {
			res := post(server.FilterRequest{URL: "http://db.internal/", Filters: [][]string{{"div"}}}, auth)
			Expect(res.status).To(Equal(fasthttp.StatusForbidden))
			Expect(res.envelope.Code).To(Equal("blocked"))
		})
	})

	Context("metrics", func() {
		It("exposes request and fetch counters", func() {
			post(server.FilterRequest{URL: origin.URL + "/catalog", Filters: [][]string{{"div"}}}, auth)

			status, body, err := client.Get(nil, "http://"+metricsSv.Addr()+"/metrics")
			Expect(err).ToNot(HaveOccurred())
			Expect(status).To(Equal(fasthttp.StatusOK))

			text := string(body)
			Expect(text).To(ContainSubstring("domfilter_api_requests_total"))
			Expect(text).To(ContainSubstring("domfilter_fetch_requests_total"))
			Expect(strings.Contains(text, `result="ok"`)).To(BeTrue())
		})
	})
})
