// Package journal records what every faker session did: which fault gates
// fired, how much was served and how the session ended. A test harness can
// read it back over HTTP to tell which deviations its client just survived.
package journal

import (
	"bytes"
	"fmt"
	"sort"
	"time"

	"github.com/jackpal/bencode-go"
)

// Termination is why a session ended.
type Termination string

const (
	TermEOF       Termination = "eof"
	TermDropped   Termination = "dropped"
	TermHung      Termination = "hung"
	TermViolation Termination = "violation"
	TermTransport Termination = "transport"
	TermDone      Termination = "done"
)

type Record struct {
	Profile     string   `bencode:"profile"`
	Remote      string   `bencode:"remote"`
	PeerID      string   `bencode:"peer id"`
	Started     int64    `bencode:"started"`
	Ended       int64    `bencode:"ended"`
	Bitfield    string   `bencode:"bitfield"`
	Faults      []string `bencode:"faults"`
	Pieces      int      `bencode:"pieces"`
	Uploaded    int64    `bencode:"uploaded"`
	Flags       []string `bencode:"flags"`
	Termination string   `bencode:"termination"`
	Error       string   `bencode:"error"`
}

func NewRecord(profile, remote string) *Record {
	return &Record{
		Profile: profile,
		Remote:  remote,
		Started: time.Now().UnixMilli(),
		Faults:  []string{},
		Flags:   []string{},
	}
}

func (r *Record) Fault(name string) {
	r.Faults = append(r.Faults, name)
}

func (r *Record) Finish(term Termination, err error) {
	r.Ended = time.Now().UnixMilli()
	r.Termination = string(term)
	if err != nil {
		r.Error = err.Error()
	}
}

func (r *Record) Duration() time.Duration {
	return time.Duration(r.Ended-r.Started) * time.Millisecond
}

type Stats struct {
	Profile      string         `bencode:"profile"`
	Sessions     int            `bencode:"sessions"`
	Uploaded     int64          `bencode:"uploaded"`
	Terminations map[string]int `bencode:"terminations"`
	Faults       map[string]int `bencode:"faults"`
}

func newStats(profile string) *Stats {
	return &Stats{
		Profile:      profile,
		Terminations: make(map[string]int),
		Faults:       make(map[string]int),
	}
}

func (s *Stats) add(rec *Record) {
	s.Sessions++
	s.Uploaded += rec.Uploaded
	s.Terminations[rec.Termination]++
	for _, f := range rec.Faults {
		s.Faults[f]++
	}
}

// FaultNames returns the fired gates sorted by name.
func (s *Stats) FaultNames() []string {
	names := make([]string, 0, len(s.Faults))
	for name := range s.Faults {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Storage keeps session records. Implementations are safe for concurrent use
// by several profiles.
type Storage interface {
	Record(rec *Record) error
	// Sessions returns up to limit records of a profile, most recent first.
	Sessions(profile string, limit int) ([]*Record, error)
	Stats(profile string) (*Stats, error)
	Profiles() ([]string, error)
	Close() error
}

func encodeRecord(rec *Record) ([]byte, error) {
	var buf bytes.Buffer
	if err := bencode.Marshal(&buf, *rec); err != nil {
		return nil, fmt.Errorf("failed to encode session record: %w", err)
	}
	return buf.Bytes(), nil
}

func decodeRecord(data []byte) (*Record, error) {
	rec := &Record{}
	if err := bencode.Unmarshal(bytes.NewReader(data), rec); err != nil {
		return nil, fmt.Errorf("failed to decode session record: %w", err)
	}
	return rec, nil
}
