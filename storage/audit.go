package storage

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// AuditFile is the append-only event log under the storage root.
const AuditFile = "audit.jsonl"

// ErrNoApprover is returned when a release names nobody.
var ErrNoApprover = errors.New("approver required")

// Release records who handed a program over to production.
type Release struct {
	ApprovedBy string    `json:"approvedBy"`
	ReleasedAt time.Time `json:"releasedAt"`
}

// AuditEvent is one line of the audit log.
type AuditEvent struct {
	Time  time.Time `json:"time"`
	Event string    `json:"event"`
	ID    string    `json:"id"`

	Errors   int `json:"errors"`
	Warnings int `json:"warnings"`

	ApprovedBy string `json:"approvedBy,omitempty"`
}

// Audit appends e to the audit log. A zero Time is set to now.
func (s *Store) Audit(e AuditEvent) error {
	if e.Time.IsZero() {
		e.Time = s.now()
	}
	data, err := json.Marshal(e)
	if err != nil {
		return err
	}

	name := filepath.Join(s.root, AuditFile)
	defer s.lock(name)()
	f, err := os.OpenFile(name, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return fmt.Errorf("open audit log: %w", err)
	}
	_, err = f.Write(append(data, '\n'))
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return fmt.Errorf("write audit log: %w", err)
	}
	return nil
}

// AuditLog returns every recorded event, oldest first.
func (s *Store) AuditLog() ([]AuditEvent, error) {
	data, err := os.ReadFile(filepath.Join(s.root, AuditFile))
	if errors.Is(err, os.ErrNotExist) {
		return []AuditEvent{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read audit log: %w", err)
	}

	res := []AuditEvent{}
	for _, line := range strings.Split(string(data), "\n") {
		if strings.TrimSpace(line) == "" {
			continue
		}
		var e AuditEvent
		err = json.Unmarshal([]byte(line), &e)
		if err != nil {
			s.log.Warn("skipping unreadable audit entry", "err", err)
			continue
		}
		res = append(res, e)
	}
	return res, nil
}

// Release marks upload id as released by approver and records the release
// in the audit log. The caller decides whether the program may be
// released.
func (s *Store) Release(id, approver string) (Meta, error) {
	approver = strings.TrimSpace(approver)
	if approver == "" {
		return Meta{}, ErrNoApprover
	}

	// serializes concurrent releases of the same upload
	defer s.lock("release:" + id)()

	meta, err := s.Load(id)
	if err != nil {
		return Meta{}, err
	}
	meta.Release = &Release{ApprovedBy: approver, ReleasedAt: s.now()}
	err = s.writeMeta(filepath.Join(s.root, id, stem(meta.Filename)+metaSuffix), meta)
	if err != nil {
		return Meta{}, fmt.Errorf("save release: %w", err)
	}

	err = s.Audit(AuditEvent{
		Time:       meta.Release.ReleasedAt,
		Event:      "release",
		ID:         id,
		Errors:     meta.Summary.Errors,
		Warnings:   meta.Summary.Warnings,
		ApprovedBy: approver,
	})
	if err != nil {
		return Meta{}, err
	}

	s.log.Info("released", "id", id, "approver", approver)
	return meta, nil
}
