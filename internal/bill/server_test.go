package bill

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"io"
	"mime/multipart"
	"net/http"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/onsi/gomega/ghttp"

	"github.com/zombor/bill-analyzer/internal/currency"
	"github.com/zombor/bill-analyzer/internal/scanning"
)

// stubRateProvider implements currency.Provider for server tests
type stubRateProvider struct {
	snapshot *currency.Snapshot
	err      error
}

func (p *stubRateProvider) FetchRates(ctx context.Context, base string) (*currency.Snapshot, error) {
	if p.err != nil {
		return nil, p.err
	}
	return p.snapshot, nil
}

func uploadBill(url string) (*http.Response, error) {
	var b bytes.Buffer
	writer := multipart.NewWriter(&b)
	part, _ := writer.CreateFormFile("file", "bill.jpg")
	part.Write([]byte("fake image data"))
	writer.WriteField("currency", "USD")
	writer.Close()

	return http.Post(url+"/api/bills/analyze", writer.FormDataContentType(), &b)
}

var _ = Describe("Server", func() {
	var (
		extractor   *mockExtractor
		store       *mockStore
		images      *mockImages
		service     *Service
		provider    *stubRateProvider
		auth        BasicAuth
		server      *Server
		ghttpServer *ghttp.Server
	)

	setupServer := func() {
		if ghttpServer != nil {
			ghttpServer.Close()
		}
		server = NewServerWithMux(service, currency.NewCache(provider), auth, http.NewServeMux())
		ghttpServer = ghttp.NewServer()
		ghttpServer.AppendHandlers(server.ServeHTTP)
	}

	BeforeEach(func() {
		extractor = newMockExtractor()
		store = newMockStore()
		images = newMockImages()
		service = NewService(extractor, store, images)
		provider = &stubRateProvider{
			snapshot: &currency.Snapshot{
				Base:      "EUR",
				AsOfDate:  "2024-03-01",
				Rates:     map[string]float64{"USD": 1.08},
				FetchedAt: time.Now(),
			},
		}
		auth = BasicAuth{}
		setupServer()
	})

	AfterEach(func() {
		if ghttpServer != nil {
			ghttpServer.Close()
		}
	})

	Describe("handleAnalyzeBill", func() {
		When("analysis succeeds", func() {
			It("should return status Created with the analyzed bill", func() {
				resp, err := uploadBill(ghttpServer.URL())
				Expect(err).NotTo(HaveOccurred())
				defer resp.Body.Close()
				Expect(resp.StatusCode).To(Equal(http.StatusCreated))

				var result AnalysisResult
				body, err := io.ReadAll(resp.Body)
				Expect(err).NotTo(HaveOccurred())
				Expect(json.Unmarshal(body, &result)).NotTo(HaveOccurred())
				Expect(result.Bill.ID).NotTo(BeEmpty())
				Expect(result.Saved).To(BeTrue())
			})
		})

		When("the image is not a bill", func() {
			BeforeEach(func() {
				extractor.scanErr = scanning.ErrNotABill
			})

			It("should return status Unprocessable Entity with the failure kind", func() {
				resp, err := uploadBill(ghttpServer.URL())
				Expect(err).NotTo(HaveOccurred())
				defer resp.Body.Close()
				Expect(resp.StatusCode).To(Equal(http.StatusUnprocessableEntity))

				var failure map[string]any
				body, err := io.ReadAll(resp.Body)
				Expect(err).NotTo(HaveOccurred())
				Expect(json.Unmarshal(body, &failure)).NotTo(HaveOccurred())
				Expect(failure["failure"]).To(Equal("not_a_bill"))
			})
		})

		When("the extraction service is rate limited", func() {
			BeforeEach(func() {
				extractor.scanErr = scanning.ErrRateLimited
			})

			It("should return status Too Many Requests marked non-retryable", func() {
				resp, err := uploadBill(ghttpServer.URL())
				Expect(err).NotTo(HaveOccurred())
				defer resp.Body.Close()
				Expect(resp.StatusCode).To(Equal(http.StatusTooManyRequests))

				var failure map[string]any
				body, err := io.ReadAll(resp.Body)
				Expect(err).NotTo(HaveOccurred())
				Expect(json.Unmarshal(body, &failure)).NotTo(HaveOccurred())
				Expect(failure["failure"]).To(Equal("rate_limited"))
				Expect(failure["retryable"]).To(Equal(false))
			})
		})

		When("extraction fails transiently", func() {
			BeforeEach(func() {
				extractor.scanErr = errors.New("connection reset")
			})

			It("should return status Bad Gateway marked retryable", func() {
				resp, err := uploadBill(ghttpServer.URL())
				Expect(err).NotTo(HaveOccurred())
				defer resp.Body.Close()
				Expect(resp.StatusCode).To(Equal(http.StatusBadGateway))

				var failure map[string]any
				body, err := io.ReadAll(resp.Body)
				Expect(err).NotTo(HaveOccurred())
				Expect(json.Unmarshal(body, &failure)).NotTo(HaveOccurred())
				Expect(failure["failure"]).To(Equal("transient"))
				Expect(failure["retryable"]).To(Equal(true))
			})
		})

		When("no file is provided", func() {
			It("should return status Bad Request", func() {
				var b bytes.Buffer
				writer := multipart.NewWriter(&b)
				writer.Close()

				resp, err := http.Post(ghttpServer.URL()+"/api/bills/analyze", writer.FormDataContentType(), &b)
				Expect(err).NotTo(HaveOccurred())
				Expect(resp.StatusCode).To(Equal(http.StatusBadRequest))
				resp.Body.Close()
			})
		})
	})

	Describe("handleListBills", func() {
		When("records exist", func() {
			BeforeEach(func() {
				store.records = []HistoryRecord{
					{ID: "id-1"},
					{ID: "id-2"},
				}
				setupServer()
			})

			It("should return the records", func() {
				resp, err := http.Get(ghttpServer.URL() + "/api/bills")
				Expect(err).NotTo(HaveOccurred())
				defer resp.Body.Close()
				Expect(resp.StatusCode).To(Equal(http.StatusOK))

				var response struct {
					Bills []HistoryRecord `json:"bills"`
				}
				body, err := io.ReadAll(resp.Body)
				Expect(err).NotTo(HaveOccurred())
				Expect(json.Unmarshal(body, &response)).NotTo(HaveOccurred())
				Expect(response.Bills).To(HaveLen(2))
			})
		})

		When("the store read fails", func() {
			BeforeEach(func() {
				store.listErr = errors.New("corrupt history")
				setupServer()
			})

			It("should return an empty history with an error indicator", func() {
				resp, err := http.Get(ghttpServer.URL() + "/api/bills")
				Expect(err).NotTo(HaveOccurred())
				defer resp.Body.Close()
				Expect(resp.StatusCode).To(Equal(http.StatusOK))

				var response struct {
					Bills []HistoryRecord `json:"bills"`
					Error string          `json:"error"`
				}
				body, err := io.ReadAll(resp.Body)
				Expect(err).NotTo(HaveOccurred())
				Expect(json.Unmarshal(body, &response)).NotTo(HaveOccurred())
				Expect(response.Bills).To(BeEmpty())
				Expect(response.Error).NotTo(BeEmpty())
			})
		})
	})

	Describe("handleGetBill", func() {
		When("the bill exists", func() {
			BeforeEach(func() {
				store.records = []HistoryRecord{{ID: "test-id"}}
				setupServer()
			})

			It("should return the record", func() {
				resp, err := http.Get(ghttpServer.URL() + "/api/bills/test-id")
				Expect(err).NotTo(HaveOccurred())
				defer resp.Body.Close()
				Expect(resp.StatusCode).To(Equal(http.StatusOK))
			})
		})

		When("the bill does not exist", func() {
			It("should return status Not Found", func() {
				resp, err := http.Get(ghttpServer.URL() + "/api/bills/nonexistent")
				Expect(err).NotTo(HaveOccurred())
				Expect(resp.StatusCode).To(Equal(http.StatusNotFound))
				resp.Body.Close()
			})
		})
	})

	Describe("handleUpdateBill", func() {
		When("the bill exists", func() {
			BeforeEach(func() {
				store.records = []HistoryRecord{{ID: "test-id"}}
				setupServer()
			})

			It("should replace the record and return No Content", func() {
				edited := Bill{Summary: Summary{TotalAmount: 42, Currency: "USD"}}
				body, _ := json.Marshal(edited)
				req, err := http.NewRequest("PUT", ghttpServer.URL()+"/api/bills/test-id", bytes.NewBuffer(body))
				Expect(err).NotTo(HaveOccurred())
				resp, err := http.DefaultClient.Do(req)
				Expect(err).NotTo(HaveOccurred())
				Expect(resp.StatusCode).To(Equal(http.StatusNoContent))
				resp.Body.Close()

				Expect(store.records[0].Summary.TotalAmount).To(Equal(42.0))
			})
		})

		When("the bill does not exist", func() {
			It("should return status Not Found", func() {
				body, _ := json.Marshal(Bill{})
				req, err := http.NewRequest("PUT", ghttpServer.URL()+"/api/bills/nonexistent", bytes.NewBuffer(body))
				Expect(err).NotTo(HaveOccurred())
				resp, err := http.DefaultClient.Do(req)
				Expect(err).NotTo(HaveOccurred())
				Expect(resp.StatusCode).To(Equal(http.StatusNotFound))
				resp.Body.Close()
			})
		})
	})

	Describe("handleDeleteBill", func() {
		BeforeEach(func() {
			store.records = []HistoryRecord{{ID: "test-id"}}
			setupServer()
		})

		It("should remove the record and return No Content", func() {
			req, err := http.NewRequest("DELETE", ghttpServer.URL()+"/api/bills/test-id", nil)
			Expect(err).NotTo(HaveOccurred())
			resp, err := http.DefaultClient.Do(req)
			Expect(err).NotTo(HaveOccurred())
			Expect(resp.StatusCode).To(Equal(http.StatusNoContent))
			resp.Body.Close()

			Expect(store.records).To(BeEmpty())
		})
	})

	Describe("handleGetRates", func() {
		When("the provider has rates", func() {
			It("should return the snapshot", func() {
				resp, err := http.Get(ghttpServer.URL() + "/api/rates/eur")
				Expect(err).NotTo(HaveOccurred())
				defer resp.Body.Close()
				Expect(resp.StatusCode).To(Equal(http.StatusOK))

				var snap currency.Snapshot
				body, err := io.ReadAll(resp.Body)
				Expect(err).NotTo(HaveOccurred())
				Expect(json.Unmarshal(body, &snap)).NotTo(HaveOccurred())
				Expect(snap.Rates).To(HaveKeyWithValue("USD", 1.08))
			})
		})

		When("no rates are available", func() {
			BeforeEach(func() {
				provider = &stubRateProvider{err: errors.New("network down")}
				setupServer()
			})

			It("should return status No Content", func() {
				resp, err := http.Get(ghttpServer.URL() + "/api/rates/eur")
				Expect(err).NotTo(HaveOccurred())
				Expect(resp.StatusCode).To(Equal(http.StatusNoContent))
				resp.Body.Close()
			})
		})
	})

	Describe("requireAuth", func() {
		When("auth is configured and the request is unauthorized", func() {
			BeforeEach(func() {
				auth = BasicAuth{Username: "user", Password: "pass"}
				setupServer()
			})

			It("should return status Unauthorized", func() {
				resp, err := http.Get(ghttpServer.URL() + "/api/bills")
				Expect(err).NotTo(HaveOccurred())
				Expect(resp.StatusCode).To(Equal(http.StatusUnauthorized))
				resp.Body.Close()
			})
		})

		When("valid credentials are provided", func() {
			BeforeEach(func() {
				auth = BasicAuth{Username: "user", Password: "pass"}
				setupServer()
			})

			It("should serve the request", func() {
				req, err := http.NewRequest("GET", ghttpServer.URL()+"/api/bills", nil)
				Expect(err).NotTo(HaveOccurred())
				credentials := base64.StdEncoding.EncodeToString([]byte("user:pass"))
				req.Header.Set("Authorization", "Basic "+credentials)
				resp, err := http.DefaultClient.Do(req)
				Expect(err).NotTo(HaveOccurred())
				Expect(resp.StatusCode).To(Equal(http.StatusOK))
				resp.Body.Close()
			})
		})
	})
})
