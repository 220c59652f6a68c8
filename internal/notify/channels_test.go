package notify_test

import (
	"bufio"
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"encoding/json"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/sideshow/apns2"
	"github.com/sideshow/apns2/token"
	"github.com/stretchr/testify/require"

	"stockalert/internal/httpx"
	"stockalert/internal/notify"
)

func TestWebhookChannel_Send(t *testing.T) {
	t.Parallel()

	// Arrange
	var body map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "s3cret", r.Header.Get("X-Webhook-Secret"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()
	ch := notify.NewWebhookChannel(httpx.New(2*time.Second), "s3cret")

	// Act
	err := ch.Send(t.Context(), notify.Endpoint{ID: "e1", OwnerID: "u1", Channel: "webhook", Address: srv.URL}, "Stock Alert", "ACME rose")

	// Assert
	require.NoError(t, err)
	require.Equal(t, "webhook", ch.Name())
	require.Equal(t, "Stock Alert", body["title"])
	require.Equal(t, "ACME rose", body["body"])
	require.Equal(t, "e1", body["endpoint_id"])
}

func TestWebhookChannel_Non2xxFails(t *testing.T) {
	t.Parallel()

	// Arrange
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "nope", http.StatusInternalServerError)
	}))
	defer srv.Close()
	ch := notify.NewWebhookChannel(httpx.New(2*time.Second), "")

	// Act
	err := ch.Send(t.Context(), notify.Endpoint{Address: srv.URL}, "t", "b")

	// Assert
	require.Error(t, err)
}

// fakeSMTP accepts one unauthenticated message and records it.
func fakeSMTP(t *testing.T) (host string, port int, got func() (rcpt, data string)) {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	t.Cleanup(func() { ln.Close() })

	var mu sync.Mutex
	var rcpt, data string
	go func() {
		conn, err := ln.Accept()
		if err != nil {
			return
		}
		defer conn.Close()
		r := bufio.NewReader(conn)
		write := func(s string) { _, _ = io.WriteString(conn, s+"\r\n") }
		write("220 localhost ESMTP")
		for {
			line, err := r.ReadString('\n')
			if err != nil {
				return
			}
			cmd := strings.ToUpper(strings.TrimSpace(line))
			switch {
			case strings.HasPrefix(cmd, "EHLO"), strings.HasPrefix(cmd, "HELO"):
				write("250-localhost")
				write("250 8BITMIME")
			case strings.HasPrefix(cmd, "MAIL FROM"):
				write("250 ok")
			case strings.HasPrefix(cmd, "RCPT TO"):
				mu.Lock()
				rcpt = strings.TrimSpace(line[len("RCPT TO:"):])
				mu.Unlock()
				write("250 ok")
			case cmd == "DATA":
				write("354 end with .")
				var b strings.Builder
				for {
					l, err := r.ReadString('\n')
					if err != nil {
						return
					}
					if l == ".\r\n" {
						break
					}
					b.WriteString(l)
				}
				mu.Lock()
				data = b.String()
				mu.Unlock()
				write("250 queued")
			case cmd == "QUIT":
				write("221 bye")
				return
			default:
				write("502 unsupported")
			}
		}
	}()

	addr := ln.Addr().(*net.TCPAddr)
	return "127.0.0.1", addr.Port, func() (string, string) {
		mu.Lock()
		defer mu.Unlock()
		return rcpt, data
	}
}

func TestEmailChannel_Send(t *testing.T) {
	t.Parallel()

	// Arrange
	host, port, got := fakeSMTP(t)
	ch := notify.NewEmailChannel(notify.EmailConfig{Host: host, Port: port, From: "alerts@example.test"})

	// Act
	err := ch.Send(t.Context(), notify.Endpoint{Channel: "email", Address: "user@example.test"}, "Stock Alert", "ACME is now 101.25 USD")

	// Assert
	require.NoError(t, err)
	rcpt, data := got()
	require.Equal(t, "<user@example.test>", rcpt)
	require.Contains(t, data, "Subject: Stock Alert\r\n")
	require.Contains(t, data, "To: user@example.test\r\n")
	require.Contains(t, data, "ACME is now 101.25 USD")
}

func TestEmailChannel_DialFailure(t *testing.T) {
	t.Parallel()

	// Arrange: a closed port
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	port := ln.Addr().(*net.TCPAddr).Port
	ln.Close()
	ch := notify.NewEmailChannel(notify.EmailConfig{Host: "127.0.0.1", Port: port, From: "a@b.test"})

	// Act
	err = ch.Send(t.Context(), notify.Endpoint{Address: "c@d.test"}, "t", "b")

	// Assert
	require.ErrorContains(t, err, "dial 127.0.0.1:"+strconv.Itoa(port))
}

func apnsClient(t *testing.T, url string) *apns2.Client {
	t.Helper()
	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	require.NoError(t, err)
	c := apns2.NewTokenClient(&token.Token{AuthKey: key, KeyID: "KEY123", TeamID: "TEAM123"})
	c.Host = url
	c.HTTPClient = &http.Client{Timeout: 2 * time.Second}
	return c
}

func TestAPNsChannel_Send(t *testing.T) {
	t.Parallel()

	// Arrange
	var path, topic, auth string
	var payload map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		path, topic, auth = r.URL.Path, r.Header.Get("apns-topic"), r.Header.Get("authorization")
		require.NoError(t, json.NewDecoder(r.Body).Decode(&payload))
		w.Header().Set("apns-id", "A1B2")
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()
	ch := notify.NewAPNsChannelWithClient(apnsClient(t, srv.URL), "com.example.stockalert")

	// Act
	err := ch.Send(t.Context(), notify.Endpoint{Channel: "apns", Address: "abcdef0123"}, "Stock Alert", "ACME rose")

	// Assert
	require.NoError(t, err)
	require.Equal(t, "apns", ch.Name())
	require.Equal(t, "/3/device/abcdef0123", path)
	require.Equal(t, "com.example.stockalert", topic)
	require.True(t, strings.HasPrefix(auth, "bearer "))
	aps := payload["aps"].(map[string]any)
	alertBody := aps["alert"].(map[string]any)
	require.Equal(t, "Stock Alert", alertBody["title"])
	require.Equal(t, "ACME rose", alertBody["body"])
}

func TestAPNsChannel_Rejected(t *testing.T) {
	t.Parallel()

	// Arrange
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"reason":"BadDeviceToken"}`))
	}))
	defer srv.Close()
	ch := notify.NewAPNsChannelWithClient(apnsClient(t, srv.URL), "com.example.stockalert")

	// Act
	err := ch.Send(t.Context(), notify.Endpoint{Address: "bad"}, "t", "b")

	// Assert
	require.ErrorContains(t, err, "BadDeviceToken")
}
