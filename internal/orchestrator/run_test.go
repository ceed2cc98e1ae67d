package orchestrator_test

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/netip"
	"path/filepath"
	"testing"
	"time"

	"github.com/muurk/wifiportal/internal/credentials"
	"github.com/muurk/wifiportal/internal/orchestrator"
	"github.com/muurk/wifiportal/internal/portal"
	"github.com/muurk/wifiportal/internal/radio"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

func TestOrchestrator(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "Orchestrator Suite")
}

const formPage = "<html><body><form method=POST>wifi</form></body></html>"

type runResult struct {
	addr netip.Addr
	err  error
}

func send(addr, raw string) (int, string) {
	conn, err := net.DialTimeout("tcp", addr, 2*time.Second)
	Expect(err).NotTo(HaveOccurred())
	defer conn.Close()
	Expect(conn.SetDeadline(time.Now().Add(5 * time.Second))).To(Succeed())

	_, err = io.WriteString(conn, raw)
	Expect(err).NotTo(HaveOccurred())

	resp, err := http.ReadResponse(bufio.NewReader(conn), nil)
	Expect(err).NotTo(HaveOccurred())
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	Expect(err).NotTo(HaveOccurred())
	return resp.StatusCode, string(body)
}

func post(addr, form string) (int, string) {
	return send(addr, fmt.Sprintf("POST /submit HTTP/1.1\r\nHost: setup\r\n"+
		"Content-Type: application/x-www-form-urlencoded\r\n"+
		"Content-Length: %d\r\n\r\n%s", len(form), form))
}

var _ = Describe("Run", func() {
	var (
		ctx       context.Context
		cancel    context.CancelFunc
		sim       *radio.Simulator
		store     *credentials.FileStore
		listening chan string
		orch      *orchestrator.Orchestrator
		results   chan runResult
	)

	BeforeEach(func() {
		ctx, cancel = context.WithTimeout(context.Background(), 20*time.Second)
		DeferCleanup(func() { cancel() })

		sim = radio.NewSimulator(netip.Addr{})
		sim.AddNetwork("Home", "secret123")
		store = credentials.NewFileStore(filepath.Join(GinkgoT().TempDir(), "wifi.json"))
		listening = make(chan string, 4)

		var err error
		orch, err = orchestrator.New(ctx, orchestrator.Options{
			Radio:             sim,
			Store:             store,
			ConnectionTimeout: 2 * time.Second,
			PollInterval:      10 * time.Millisecond,
			Portal: portal.Config{
				Host:        "127.0.0.1",
				Port:        0,
				Page:        formPage,
				ReadTimeout: 5 * time.Second,
				OnListen:    func(addr net.Addr) { listening <- addr.String() },
			},
		})
		Expect(err).NotTo(HaveOccurred())

		results = make(chan runResult, 1)
	})

	start := func() {
		go func() {
			defer GinkgoRecover()
			addr, err := orch.Run(ctx)
			results <- runResult{addr, err}
		}()
	}

	Context("with an empty credential store", func() {
		It("should onboard through the portal and connect", func() {
			start()

			var addr string
			Eventually(listening, 5*time.Second).Should(Receive(&addr))
			Expect(sim.AccessPointActive()).To(BeTrue())
			Expect(sim.StationActive()).To(BeFalse())
			Expect(orch.State()).To(Equal(orchestrator.StateAccessPoint))

			status, body := send(addr, "GET / HTTP/1.1\r\nHost: setup\r\n\r\n")
			Expect(status).To(Equal(http.StatusOK))
			Expect(body).To(Equal(formPage))

			status, _ = post(addr, "ssid=Home&password=secret123")
			Expect(status).To(Equal(http.StatusOK))

			var res runResult
			Eventually(results, 5*time.Second).Should(Receive(&res))
			Expect(res.err).NotTo(HaveOccurred())
			Expect(res.addr).To(Equal(radio.DefaultSimulatedAddress))

			saved, err := store.Load(ctx)
			Expect(err).NotTo(HaveOccurred())
			Expect(saved.SSID).To(Equal("Home"))
			Expect(saved.Password).To(Equal("secret123"))

			Expect(orch.State()).To(Equal(orchestrator.StateConnected))
			Expect(sim.AccessPointActive()).To(BeFalse())
			Expect(sim.Overlapped()).To(BeFalse())
			Expect(sim.RoleEvents()).To(Equal([]string{"ap-up", "ap-down", "station-up"}))
		})

		It("should keep the session open after an empty ssid", func() {
			start()

			var addr string
			Eventually(listening, 5*time.Second).Should(Receive(&addr))

			status, body := post(addr, "ssid=&password=secret123")
			Expect(status).To(Equal(http.StatusBadRequest))
			Expect(body).To(ContainSubstring("SSID cannot be empty"))
			Expect(body).NotTo(ContainSubstring(portal.ContentPlaceholder))
			Consistently(results, 100*time.Millisecond).ShouldNot(Receive())

			status, _ = send(addr, "GET /anything HTTP/1.1\r\nHost: setup\r\n\r\n")
			Expect(status).To(Equal(http.StatusOK))

			status, _ = post(addr, "ssid=Home&password=secret123")
			Expect(status).To(Equal(http.StatusOK))

			var res runResult
			Eventually(results, 5*time.Second).Should(Receive(&res))
			Expect(res.err).NotTo(HaveOccurred())
		})
	})

	Context("with stored credentials that no longer work", func() {
		BeforeEach(func() {
			Expect(store.Save(ctx, &credentials.Credentials{SSID: "Home", Password: "old-password"})).To(Succeed())

			var err error
			orch, err = orchestrator.New(ctx, orchestrator.Options{
				Radio:             sim,
				Store:             store,
				ConnectionTimeout: 2 * time.Second,
				PollInterval:      10 * time.Millisecond,
				Portal: portal.Config{
					Host:     "127.0.0.1",
					Page:     formPage,
					OnListen: func(addr net.Addr) { listening <- addr.String() },
				},
			})
			Expect(err).NotTo(HaveOccurred())
		})

		It("should fall back to the portal and overwrite them", func() {
			start()

			var addr string
			Eventually(listening, 5*time.Second).Should(Receive(&addr))
			Expect(sim.Joins()).To(Equal(1))

			status, _ := post(addr, "ssid=Home&password=secret123")
			Expect(status).To(Equal(http.StatusOK))

			var res runResult
			Eventually(results, 5*time.Second).Should(Receive(&res))
			Expect(res.err).NotTo(HaveOccurred())

			saved, err := store.Load(ctx)
			Expect(err).NotTo(HaveOccurred())
			Expect(saved.Password).To(Equal("secret123"))
			Expect(sim.Overlapped()).To(BeFalse())
		})
	})

	Context("when shut down while collecting", func() {
		It("should release the portal and return ErrShutdown", func() {
			start()

			var addr string
			Eventually(listening, 5*time.Second).Should(Receive(&addr))

			orch.Shutdown()

			var res runResult
			Eventually(results, 5*time.Second).Should(Receive(&res))
			Expect(res.err).To(MatchError(orchestrator.ErrShutdown))

			_, err := net.DialTimeout("tcp", addr, 500*time.Millisecond)
			Expect(err).To(HaveOccurred())
		})
	})
})
