package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"net/http"
	"strings"

	"github.com/gorilla/mux"
)

type palabraRequest struct {
	Palabra string `json:"palabra"`
}

type palabraResponse struct {
	Procesada string `json:"procesada"`
}

// procesarPalabra echoes the word back upper-cased, like the remote endpoint
// the scanner talks to.
func procesarPalabra(w http.ResponseWriter, r *http.Request) {
	var req palabraRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid JSON", http.StatusBadRequest)
		return
	}

	log.Printf("Received palabra %q", req.Palabra)

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(palabraResponse{Procesada: strings.ToUpper(req.Palabra)})
}

func main() {
	port := flag.Int("port", 5000, "Port to listen on")
	flag.Parse()

	r := mux.NewRouter()
	r.HandleFunc("/procesar_palabra", procesarPalabra).Methods("POST")

	addr := fmt.Sprintf(":%d", *port)
	log.Printf("Word server listening on %s", addr)
	log.Fatal(http.ListenAndServe(addr, r))
}
