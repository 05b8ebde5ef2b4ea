package handlers

import (
	"fmt"
	"log"
	"net/http"
)

// PingHandler отвечает "ok" на GET /api/ping, пока сервер принимает соединения
func PingHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain")
	w.WriteHeader(http.StatusOK)
	if _, err := fmt.Fprint(w, "ok"); err != nil {
		log.Println(err)
	}
}
