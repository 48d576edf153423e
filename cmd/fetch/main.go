// Command fetch is a minimal console client exercising the
// callback-driven engine: one GET request, body bytes streamed to
// stdout as they arrive, status and lifecycle lines written to stderr.
package main

import (
	"crypto/tls"
	"flag"
	"fmt"
	"os"

	"github.com/nevermore1994/httpreqgo"
)

func main() {
	url := flag.String("url", "http://example.com/", "URL to fetch")
	insecure := flag.Bool("insecure", false, "skip TLS certificate verification")
	flag.Parse()

	if *insecure {
		httpreqgo.ConfigureTLS(func(cfg *tls.Config) { cfg.InsecureSkipVerify = true })
	}

	if err := httpreqgo.Init(); err != nil {
		fmt.Fprintln(os.Stderr, "init:", err)
		os.Exit(1)
	}
	defer httpreqgo.Clear()

	info := httpreqgo.NewRequestInfo(*url, httpreqgo.MethodGet)
	done := make(chan struct{})

	eng := httpreqgo.New(info, httpreqgo.ResponseHandler{
		OnConnected: func(reqID string) {
			fmt.Fprintf(os.Stderr, "[%s] connected\n", reqID)
		},
		OnParseHeaderDone: func(reqID string, header httpreqgo.ResponseHeader) {
			fmt.Fprintf(os.Stderr, "[%s] %d %s\n", reqID, header.StatusCode, header.ReasonPhrase)
		},
		OnData: func(_ string, data *httpreqgo.Buffer) {
			os.Stdout.Write(data.View())
		},
		OnError: func(reqID string, code httpreqgo.ResultCode, errno int) {
			fmt.Fprintf(os.Stderr, "[%s] error: %s (errno %d)\n", reqID, code, errno)
		},
		OnDisconnected: func(reqID string) {
			fmt.Fprintf(os.Stderr, "[%s] disconnected\n", reqID)
			close(done)
		},
	})

	<-done
	eng.Wait()
}
