package main

import (
	"crypto/sha256"
	"encoding/binary"
	"encoding/json"
	"io"
	"log"
	"math"
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"
)

const (
	defaultPort      = "5002"
	defaultDimension = "192"
	defaultLatencyMs = "50"
	defaultPhrase    = "my voice is my passport"
	maxUpload        = 16 << 20
)

// Magic filename prefixes let e2e scenarios control the mock:
//
//	fail-*.wav     both services answer 500
//	timeout-*.wav  both services sleep past any sane client timeout
//	silent-*.wav   transcription returns an empty phrase
const (
	prefixFail    = "fail-"
	prefixTimeout = "timeout-"
	prefixSilent  = "silent-"
)

type embeddingResponse struct {
	Embedding []float64 `json:"embedding"`
}

type transcriptionResponse struct {
	Text string `json:"text"`
}

type errorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

var (
	dimension = getEnvInt("EMBEDDING_DIM", defaultDimension)
	latencyMs = getEnvInt("LATENCY_MS", defaultLatencyMs)
	phrase    = getEnv("PHRASE", defaultPhrase)
)

func main() {
	port := getEnv("PORT", defaultPort)

	http.HandleFunc("/health", handleHealth)
	http.HandleFunc("/voiceprint", handleVoiceprint)
	http.HandleFunc("/stt", handleTranscription)

	log.Printf("Mock voice services starting on port %s", port)
	log.Printf("Embedding dimension: %d", dimension)
	log.Printf("Simulated latency: %dms", latencyMs)

	srv := &http.Server{
		Addr:              ":" + port,
		ReadHeaderTimeout: 5 * time.Second,
	}
	if err := srv.ListenAndServe(); err != nil {
		log.Fatal(err)
	}
}

func handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"status":  "healthy",
		"service": "voice-services",
	})
}

// handleVoiceprint derives the embedding from the audio bytes, so the same
// recording always maps to the same speaker and different recordings are
// nearly orthogonal.
func handleVoiceprint(w http.ResponseWriter, r *http.Request) {
	name, data, ok := readVoice(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, embeddingResponse{Embedding: embed(data, dimension)})
	log.Printf("voiceprint: %s (%d bytes)", name, len(data))
}

func handleTranscription(w http.ResponseWriter, r *http.Request) {
	name, _, ok := readVoice(w, r)
	if !ok {
		return
	}
	text := phrase
	if strings.HasPrefix(name, prefixSilent) {
		text = ""
	}
	writeJSON(w, http.StatusOK, transcriptionResponse{Text: text})
}

func readVoice(w http.ResponseWriter, r *http.Request) (string, []byte, bool) {
	if r.Method != http.MethodPost {
		sendError(w, "method not allowed", http.StatusMethodNotAllowed)
		return "", nil, false
	}
	time.Sleep(time.Duration(latencyMs) * time.Millisecond)

	r.Body = http.MaxBytesReader(w, r.Body, maxUpload)
	file, header, err := r.FormFile("voice")
	if err != nil {
		sendError(w, "missing voice file", http.StatusBadRequest)
		return "", nil, false
	}
	defer file.Close()

	switch {
	case strings.HasPrefix(header.Filename, prefixFail):
		sendError(w, "simulated failure", http.StatusInternalServerError)
		return "", nil, false
	case strings.HasPrefix(header.Filename, prefixTimeout):
		select {
		case <-time.After(10 * time.Minute):
		case <-r.Context().Done():
		}
		return "", nil, false
	}

	data, err := io.ReadAll(file)
	if err != nil {
		sendError(w, "failed to read voice file", http.StatusBadRequest)
		return "", nil, false
	}
	return header.Filename, data, true
}

// embed stretches a SHA-256 of the audio into a unit vector of length n.
func embed(data []byte, n int) []float64 {
	seed := sha256.Sum256(data)
	out := make([]float64, n)
	var norm float64
	block := seed
	for i := range out {
		if i > 0 && i%4 == 0 {
			block = sha256.Sum256(block[:])
		}
		u := binary.BigEndian.Uint64(block[(i%4)*8:])
		v := float64(u)/float64(math.MaxUint64)*2 - 1
		out[i] = v
		norm += v * v
	}
	norm = math.Sqrt(norm)
	for i := range out {
		out[i] /= norm
	}
	return out
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("failed to encode response: %v", err)
	}
}

func sendError(w http.ResponseWriter, message string, code int) {
	writeJSON(w, code, errorResponse{Error: http.StatusText(code), Message: message})
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key, defaultValue string) int {
	value := getEnv(key, defaultValue)
	n, err := strconv.Atoi(value)
	if err != nil || n <= 0 {
		log.Printf("invalid %s=%q, using %s", key, value, defaultValue)
		n, _ = strconv.Atoi(defaultValue)
	}
	return n
}
