package web

import (
	"encoding/json"
	"fmt"
	"io"
	"math"
	"mime"
	"net/http"
	"strconv"
	"strings"
	"time"
)

const apiVersion = "1.0"

// writeJSON decorates every body with the API version and a timestamp.
func writeJSON(w http.ResponseWriter, status int, body map[string]any) {
	body["apiVersion"] = apiVersion
	body["timestamp"] = time.Now().UTC().Format(time.RFC3339Nano)

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]any{"error": msg})
}

// parseInput reads n from a JSON or form body. It returns a client-facing
// message when n is unusable.
func (handler *HttpRouteHandler) parseInput(r *http.Request) (int64, string) {
	raw, present, err := readRawInput(r)
	if err != nil {
		return 0, "Invalid request body"
	}
	if !present {
		return 0, "Missing parameter: n"
	}

	n, ok := parseInteger(raw)
	if !ok {
		return 0, "Parameter n must be a number"
	}
	if n < 0 {
		return 0, "Parameter n must be a non-negative integer"
	}
	if n > handler.maxInput {
		return 0, fmt.Sprintf("Parameter n must be less than or equal to %d", handler.maxInput)
	}
	return n, ""
}

func readRawInput(r *http.Request) (string, bool, error) {
	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if mediaType == "application/x-www-form-urlencoded" {
		if err := r.ParseForm(); err != nil {
			return "", false, err
		}
		if !r.PostForm.Has("n") {
			return "", false, nil
		}
		return r.PostForm.Get("n"), true, nil
	}

	var body struct {
		N json.RawMessage `json:"n"`
	}
	if err := json.NewDecoder(io.LimitReader(r.Body, 1<<16)).Decode(&body); err != nil {
		if err == io.EOF {
			return "", false, nil
		}
		return "", false, err
	}
	raw := strings.TrimSpace(string(body.N))
	if raw == "" || raw == "null" {
		return "", false, nil
	}
	if unquoted, err := strconv.Unquote(raw); err == nil {
		raw = unquoted
	}
	return raw, true, nil
}

// parseInteger accepts a leading integer the way a lenient form parser would:
// "12", "12.9" and " 12" are all 12.
func parseInteger(raw string) (int64, bool) {
	raw = strings.TrimSpace(raw)
	if n, err := strconv.ParseInt(raw, 10, 64); err == nil {
		return n, true
	}
	f, err := strconv.ParseFloat(raw, 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) || f > math.MaxInt64 || f < math.MinInt64 {
		return 0, false
	}
	return int64(f), true
}

func printBanner(addr string) {
	width := 46
	fmt.Println("##############################################")
	fmt.Printf("# %-*s #\n", width-4, "")
	fmt.Printf("# %-*s #\n", width-4, "jobcache started")
	fmt.Printf("# %-*s #\n", width-4, fmt.Sprintf("API listening on %s", addr))
	fmt.Printf("# %-*s #\n", width-4, "")
	fmt.Println("##############################################")
}
