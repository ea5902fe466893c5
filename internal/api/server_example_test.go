package api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"

	"github.com/JakeFAU/sitegen-portal/internal/hash/hmacsha256"
	"github.com/JakeFAU/sitegen-portal/internal/storage/memory"
)

// ExampleNewServer shows a signed webhook followed by a status read.
func ExampleNewServer() {
	secret := "shared-secret"
	srv, err := NewServer(Deps{
		Store:    memory.NewStatusStore(0, nil),
		Trigger:  &fakeTrigger{},
		IDs:      fakeIDGen{id: "acme-1-abc123"},
		Verifier: hmacsha256.NewVerifier(secret, false),
	}, Config{}, nil)
	if err != nil {
		panic(err)
	}

	body := `{"status":"logo_processed","client_name":"acme-1-abc123"}`
	req := httptest.NewRequest(http.MethodPost, "/webhooks/status", strings.NewReader(body))
	req.Header.Set(HeaderWebhookSignature, hmacsha256.New(secret).Sign([]byte(body)))
	srv.Handler().ServeHTTP(httptest.NewRecorder(), req)

	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/status/acme-1-abc123", nil))

	var payload struct {
		Status      string `json:"status"`
		Progress    int    `json:"progress"`
		CurrentStep string `json:"currentStep"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &payload); err != nil {
		panic(err)
	}
	fmt.Println(payload.Status, payload.Progress, payload.CurrentStep)
	// Output:
	// in-progress 25 analyze
}
