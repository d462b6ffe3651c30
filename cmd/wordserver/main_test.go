package main

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestProcesarPalabra(t *testing.T) {
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/procesar_palabra", strings.NewReader(`{"palabra":"hola mundo"}`))
	procesarPalabra(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, expected 200", rec.Code)
	}
	if got := strings.TrimSpace(rec.Body.String()); got != `{"procesada":"HOLA MUNDO"}` {
		t.Errorf("Unexpected body %s", got)
	}

	rec = httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodPost, "/procesar_palabra", strings.NewReader(`nope`))
	procesarPalabra(rec, req)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("Invalid JSON: status = %d, expected 400", rec.Code)
	}
}
