package httputil

import (
	"encoding/json"
	"net/http"
)

func WriteJSON(rw http.ResponseWriter, status int, v interface{}) {
	rw.Header().Set("content-type", "application/json; charset=utf-8")
	rw.WriteHeader(status)

	enc := json.NewEncoder(rw)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		panic(err)
	}
}

func WriteXML(rw http.ResponseWriter, status int, body []byte) {
	rw.Header().Set("content-type", "application/rss+xml; charset=utf-8")
	rw.WriteHeader(status)

	if _, err := rw.Write(body); err != nil {
		panic(err)
	}
}

type errorResponse struct {
	Error string `json:"error"`
}

func Error(rw http.ResponseWriter, status int, message string) {
	WriteJSON(rw, status, errorResponse{Error: message})
}

func NotFound(rw http.ResponseWriter, r *http.Request) {
	Error(rw, http.StatusNotFound, "not found")
}

func Forbidden(rw http.ResponseWriter, r *http.Request) {
	Error(rw, http.StatusForbidden, "permission denied")
}

func BadRequest(rw http.ResponseWriter, r *http.Request, message string) {
	Error(rw, http.StatusBadRequest, message)
}
