package journal

import (
	"bytes"
	"context"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/jackpal/bencode-go"
)

// Server exposes the journal in the style of a tracker scrape:
//
//	GET /scrape?profile=alice            bencoded Stats
//	GET /sessions?profile=alice&limit=10 bencoded list of Records
type Server struct {
	Server *http.Server
	Store  Storage
	log    *slog.Logger
}

func NewServer(addr string, store Storage, logger *slog.Logger) *Server {
	s := &Server{Store: store, log: logger}
	mux := http.NewServeMux()

	mux.HandleFunc("/scrape", s.handleScrape)
	mux.HandleFunc("/sessions", s.handleSessions)

	s.Server = &http.Server{
		Addr:    addr,
		Handler: mux,
	}
	return s
}

func (s *Server) Start() error {
	s.log.Info("journal endpoint listening", "addr", s.Server.Addr)
	return s.Server.ListenAndServe()
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.Server.Shutdown(ctx)
}

type scrapeResponse struct {
	Failure  string   `bencode:"failure reason"`
	Profiles []string `bencode:"profiles"`
	Stats    Stats    `bencode:"stats"`
}

type sessionsResponse struct {
	Failure  string   `bencode:"failure reason"`
	Sessions []Record `bencode:"sessions"`
}

func (s *Server) handleScrape(w http.ResponseWriter, r *http.Request) {
	profiles, err := s.Store.Profiles()
	if err != nil {
		s.sendFailure(w, "failed to list profiles")
		return
	}

	resp := scrapeResponse{Profiles: profiles, Stats: *newStats("")}
	if profile := r.URL.Query().Get("profile"); profile != "" {
		st, err := s.Store.Stats(profile)
		if err != nil {
			s.sendFailure(w, "failed to read stats")
			return
		}
		resp.Stats = *st
	}
	s.send(w, resp)
}

func (s *Server) handleSessions(w http.ResponseWriter, r *http.Request) {
	profile := r.URL.Query().Get("profile")
	if profile == "" {
		s.sendFailure(w, "missing profile")
		return
	}

	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	if limit <= 0 {
		limit = 50
	}

	records, err := s.Store.Sessions(profile, limit)
	if err != nil {
		s.sendFailure(w, "failed to read sessions")
		return
	}

	resp := sessionsResponse{Sessions: make([]Record, len(records))}
	for i, rec := range records {
		resp.Sessions[i] = *rec
	}
	s.send(w, resp)
}

func (s *Server) sendFailure(w http.ResponseWriter, reason string) {
	s.log.Warn("journal request failed", "reason", reason)
	s.send(w, map[string]interface{}{"failure reason": reason})
}

func (s *Server) send(w http.ResponseWriter, v interface{}) {
	var buf bytes.Buffer
	if err := bencode.Marshal(&buf, v); err != nil {
		http.Error(w, "Encoding error", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/plain")
	w.Write(buf.Bytes())
}
