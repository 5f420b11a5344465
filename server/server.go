package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/ainteg/docpipe/internal/models"
	"github.com/ainteg/docpipe/internal/types"
	"github.com/ainteg/docpipe/pkg/extract"
	"github.com/ainteg/docpipe/pkg/ingest"
	"github.com/ainteg/docpipe/pkg/invoice"
	"github.com/ainteg/docpipe/pkg/llm"
	"github.com/ainteg/docpipe/pkg/ocr"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true // Be careful with this in production
	},
}

type Config struct {
	Port      string
	UploadDir string
	TopK      int
	Streaming bool
}

// Server exposes the document pipeline over JSON HTTP plus a websocket
// endpoint for streamed answers.
type Server struct {
	config     Config
	ingestor   *ingest.Ingestor
	arbitrator *ocr.Arbitrator
	extractor  *invoice.Extractor
	chatEngine *llm.ChatEngine
	store      types.VectorStore
}

func New(config Config, ingestor *ingest.Ingestor, arbitrator *ocr.Arbitrator, extractor *invoice.Extractor, chatEngine *llm.ChatEngine, store types.VectorStore) (*Server, error) {
	if config.Port == "" {
		config.Port = "8080"
	}
	if config.UploadDir == "" {
		config.UploadDir = "uploads"
	}
	if config.TopK == 0 {
		config.TopK = 3
	}

	for _, sub := range []string{models.CollectionGeneral, models.CollectionInvoices} {
		if err := os.MkdirAll(filepath.Join(config.UploadDir, sub), 0o755); err != nil {
			return nil, fmt.Errorf("failed to create upload dir: %w", err)
		}
	}

	return &Server{
		config:     config,
		ingestor:   ingestor,
		arbitrator: arbitrator,
		extractor:  extractor,
		chatEngine: chatEngine,
		store:      store,
	}, nil
}

// Handler wires the route table.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /general/upload", s.handleGeneralUpload)
	mux.HandleFunc("POST /general/search", s.handleSearch(models.CollectionGeneral))
	mux.HandleFunc("POST /invoices/upload", s.handleInvoiceUpload)
	mux.HandleFunc("POST /invoices/search", s.handleSearch(models.CollectionInvoices))
	mux.HandleFunc("POST /ask", s.handleAsk)
	mux.HandleFunc("POST /reset", s.handleReset)
	mux.HandleFunc("/ws", s.handleWebSocket)
	mux.HandleFunc("GET /health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	})
	return mux
}

func (s *Server) ListenAndServe() error {
	log.Printf("Starting server on port %s", s.config.Port)
	return http.ListenAndServe(":"+s.config.Port, s.Handler())
}

type searchRequest struct {
	Query string `json:"query"`
	TopK  int    `json:"top_k"`
}

type searchHit struct {
	ID       string  `json:"id"`
	Text     string  `json:"text"`
	Filename string  `json:"filename"`
	DocType  string  `json:"doc_type"`
	Distance float32 `json:"distance"`
}

func (s *Server) handleGeneralUpload(w http.ResponseWriter, r *http.Request) {
	path, filename, err := s.stageUpload(r, models.CollectionGeneral)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	text, err := extract.FromFile(path)
	if err != nil {
		writeError(w, http.StatusUnprocessableEntity, fmt.Sprintf("could not extract text: %v", err))
		return
	}

	meta := models.Metadata{Filename: filename, DocType: models.DocTypeGeneral}
	result, err := s.ingestor.AddDocument(r.Context(), text, meta, models.CollectionGeneral)
	if err != nil {
		status := http.StatusBadGateway
		if errors.Is(err, ingest.ErrInvalidMetadata) {
			status = http.StatusBadRequest
		}
		writeError(w, status, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"status":   "ok",
		"filename": filename,
		"chunks":   result.Chunks,
	})
}

func (s *Server) handleInvoiceUpload(w http.ResponseWriter, r *http.Request) {
	path, filename, err := s.stageUpload(r, models.CollectionInvoices)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	isPDF := strings.EqualFold(filepath.Ext(filename), ".pdf")
	var image []byte
	if !isPDF {
		if image, err = os.ReadFile(path); err != nil {
			writeError(w, http.StatusInternalServerError, err.Error())
			return
		}
	}

	ocrResult, err := s.arbitrator.Recognize(r.Context(), path, isPDF, image)
	if err != nil {
		// Both engines came back unusable: the file is saved but there is
		// nothing worth indexing.
		writeJSON(w, http.StatusUnprocessableEntity, map[string]any{
			"status":      "error",
			"message":     "OCR failed or returned empty text.",
			"ocr_preview": ocrResult.Text,
		})
		return
	}

	meta := models.Metadata{Filename: filename, DocType: models.DocTypeInvoice}
	added, err := s.ingestor.AddDocument(r.Context(), ocrResult.Text, meta, models.CollectionInvoices)
	if err != nil {
		writeError(w, http.StatusBadGateway, err.Error())
		return
	}

	parsed := s.extractor.ParseInvoiceText(r.Context(), ocrResult.Text)

	response := map[string]any{
		"status":         "ok",
		"filename":       filename,
		"ocr_engine":     ocrResult.Engine,
		"ocr_preview":    preview(ocrResult.Text, 2000),
		"chunks":         added.Chunks,
		"parsed_invoice": parsed,
	}
	if parsed.Source == invoice.SourceFallbackRegex {
		response["warning"] = "structured extraction degraded to regex fallback"
	}

	writeJSON(w, http.StatusOK, response)
}

func (s *Server) handleSearch(collection string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req searchRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid JSON body")
			return
		}

		results, err := s.ingestor.Search(r.Context(), req.Query, collection, req.TopK)
		if err != nil {
			status := http.StatusBadGateway
			if errors.Is(err, ingest.ErrEmptyQuery) {
				status = http.StatusBadRequest
			}
			writeError(w, status, err.Error())
			return
		}

		hits := make([]searchHit, len(results))
		for i, res := range results {
			hits[i] = searchHit{
				ID:       res.ID,
				Text:     res.Text,
				Filename: res.Metadata.Filename,
				DocType:  res.Metadata.DocType,
				Distance: res.Distance,
			}
		}

		writeJSON(w, http.StatusOK, map[string]any{"results": hits})
	}
}

type askRequest struct {
	Query string `json:"query"`
	Scope string `json:"scope"`
	TopK  int    `json:"top_k"`
}

func (s *Server) handleAsk(w http.ResponseWriter, r *http.Request) {
	var req askRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	collection, err := scopeCollection(req.Scope)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	results, err := s.ingestor.Search(r.Context(), req.Query, collection, req.TopK)
	if err != nil {
		writeError(w, http.StatusBadGateway, err.Error())
		return
	}

	answer, err := s.chatEngine.Answer(r.Context(), req.Query, results)
	if err != nil {
		writeError(w, http.StatusBadGateway, fmt.Sprintf("answer generation failed: %v", err))
		return
	}

	sources := make([]string, 0, len(results))
	seen := map[string]bool{}
	for _, res := range results {
		if !seen[res.Metadata.Filename] {
			sources = append(sources, res.Metadata.Filename)
			seen[res.Metadata.Filename] = true
		}
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"answer":  answer,
		"sources": sources,
	})
}

func (s *Server) handleReset(w http.ResponseWriter, r *http.Request) {
	for _, collection := range []string{models.CollectionGeneral, models.CollectionInvoices} {
		if err := s.store.DeleteCollection(r.Context(), collection); err != nil {
			writeError(w, http.StatusBadGateway, fmt.Sprintf("failed to reset %s: %v", collection, err))
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]any{"status": "ok"})
}

type wsMessage struct {
	Type    string `json:"type"`
	Content string `json:"content"`
	Scope   string `json:"scope,omitempty"`
}

func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("WebSocket upgrade failed: %v", err)
		return
	}
	defer conn.Close()

	for {
		_, message, err := conn.ReadMessage()
		if err != nil {
			break
		}

		var msg wsMessage
		if err := json.Unmarshal(message, &msg); err != nil {
			log.Printf("Error unmarshaling message: %v", err)
			continue
		}

		s.handleAskStream(r.Context(), conn, msg)
	}
}

func (s *Server) handleAskStream(ctx context.Context, conn *websocket.Conn, msg wsMessage) {
	collection, err := scopeCollection(msg.Scope)
	if err != nil {
		s.sendMessage(conn, "error", err.Error())
		return
	}

	results, err := s.ingestor.Search(ctx, msg.Content, collection, s.config.TopK)
	if err != nil {
		s.sendMessage(conn, "error", fmt.Sprintf("Error querying documents: %v", err))
		return
	}

	if !s.config.Streaming {
		answer, err := s.chatEngine.Answer(ctx, msg.Content, results)
		if err != nil {
			s.sendMessage(conn, "error", fmt.Sprintf("Error: %v", err))
			return
		}
		s.sendMessage(conn, "response", answer)
		return
	}

	stream, err := s.chatEngine.AnswerStream(ctx, msg.Content, results)
	if err != nil {
		s.sendMessage(conn, "error", fmt.Sprintf("Error: %v", err))
		return
	}
	for chunk := range stream {
		if strings.HasPrefix(chunk, "Error:") {
			s.sendMessage(conn, "error", chunk)
			return
		}
		s.sendMessage(conn, "stream", chunk)
	}
	s.sendMessage(conn, "done", "")
}

func (s *Server) sendMessage(conn *websocket.Conn, msgType string, content string) {
	msg := wsMessage{
		Type:    msgType,
		Content: content,
	}
	if err := conn.WriteJSON(msg); err != nil {
		log.Printf("Error sending message: %v", err)
	}
}

// stageUpload writes the multipart file to the collection's upload
// directory under an opaque name and returns the path plus the original
// filename.
func (s *Server) stageUpload(r *http.Request, collection string) (string, string, error) {
	file, header, err := r.FormFile("file")
	if err != nil {
		return "", "", fmt.Errorf("missing file field: %w", err)
	}
	defer file.Close()

	filename := filepath.Base(header.Filename)
	staged := filepath.Join(s.config.UploadDir, collection,
		uuid.NewString()+strings.ToLower(filepath.Ext(filename)))

	out, err := os.Create(staged)
	if err != nil {
		return "", "", fmt.Errorf("failed to stage upload: %w", err)
	}
	defer out.Close()

	if _, err := io.Copy(out, file); err != nil {
		return "", "", fmt.Errorf("failed to stage upload: %w", err)
	}

	return staged, filename, nil
}

func scopeCollection(scope string) (string, error) {
	switch scope {
	case "", models.CollectionGeneral:
		return models.CollectionGeneral, nil
	case models.CollectionInvoices:
		return models.CollectionInvoices, nil
	default:
		return "", fmt.Errorf("unknown scope %q", scope)
	}
}

func preview(text string, max int) string {
	runes := []rune(text)
	if len(runes) <= max {
		return text
	}
	return string(runes[:max])
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("Error encoding response: %v", err)
	}
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]any{
		"status":  "error",
		"message": message,
	})
}
