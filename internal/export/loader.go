// Copyright (c) 2026 John Earle
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package export reads tickets, conversations, attachments and user details
// from an on-disk Freshdesk export.
package export

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"sync"

	"github.com/deskbridge/migrator/internal/models"
)

// ErrTicketNotFound is returned when a ticket has no details file.
var ErrTicketNotFound = errors.New("ticket not found in export")

// Export subdirectories.
const (
	TicketDetailsDir           = "ticket_details"
	ConversationsDir           = "conversations"
	TicketAttachmentsDir       = "ticket_attachments"
	ConversationAttachmentsDir = "conversation_attachments"
	UserDetailsDir             = "user_details"
	AttachmentsDir             = "attachments"
)

// RequiredDirs must all exist for an export to be usable.
var RequiredDirs = []string{
	TicketDetailsDir,
	ConversationsDir,
	TicketAttachmentsDir,
	ConversationAttachmentsDir,
	UserDetailsDir,
	AttachmentsDir,
}

// Loader reads one export directory. The user directory is read once and
// shared; Loader is safe for concurrent use.
type Loader struct {
	root string

	dirOnce sync.Once
	dir     *models.Directory
	dirErr  error
}

// NewLoader creates a loader rooted at dir.
func NewLoader(dir string) *Loader {
	return &Loader{root: dir}
}

// Root returns the export directory.
func (l *Loader) Root() string { return l.root }

func (l *Loader) path(parts ...string) string {
	return filepath.Join(append([]string{l.root}, parts...)...)
}

// TicketIDs lists every ticket with a details file, ascending.
func (l *Loader) TicketIDs() ([]int64, error) {
	entries, err := os.ReadDir(l.path(TicketDetailsDir))
	if err != nil {
		return nil, fmt.Errorf("list ticket details: %w", err)
	}

	ids := make([]int64, 0, len(entries))
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || !strings.HasPrefix(name, "ticket_") || !strings.HasSuffix(name, "_details.json") {
			continue
		}
		raw := strings.TrimSuffix(strings.TrimPrefix(name, "ticket_"), "_details.json")
		id, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			slog.Warn("skipping ticket file with invalid id", "file", name)
			continue
		}
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids, nil
}

// LoadTicket reads a ticket's details, keeping field order.
func (l *Loader) LoadTicket(id int64) (models.Ticket, error) {
	var t models.Ticket
	path := l.path(TicketDetailsDir, fmt.Sprintf("ticket_%d_details.json", id))
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return t, fmt.Errorf("ticket %d: %w", id, ErrTicketNotFound)
	}
	if err != nil {
		return t, fmt.Errorf("read ticket %d: %w", id, err)
	}
	if err := json.Unmarshal(data, &t.Record); err != nil {
		return t, fmt.Errorf("decode ticket %d: %w", id, err)
	}
	return t, nil
}

// LoadBundle reads everything needed to convert one ticket. Missing or
// unreadable conversation and attachment files count as empty.
func (l *Loader) LoadBundle(id int64) (models.Bundle, error) {
	t, err := l.LoadTicket(id)
	if err != nil {
		return models.Bundle{}, err
	}
	dir, err := l.Directory()
	if err != nil {
		slog.Warn("user details unavailable, identities will be unresolved", "error", err)
		dir = &models.Directory{}
	}

	b := models.Bundle{Ticket: t, Directory: dir}
	l.loadOptional(&b.Conversations, ConversationsDir, fmt.Sprintf("ticket_%d_conversations.json", id))
	l.loadOptional(&b.TicketAttachments, TicketAttachmentsDir, fmt.Sprintf("ticket_%d_attachments.json", id))
	l.loadOptional(&b.ConversationAttachments, ConversationAttachmentsDir, fmt.Sprintf("ticket_%d_conversation_attachments.json", id))
	return b, nil
}

func (l *Loader) loadOptional(dst any, parts ...string) {
	path := l.path(parts...)
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return
	}
	if err == nil {
		err = json.Unmarshal(data, dst)
	}
	if err != nil {
		slog.Warn("ignoring unreadable export file", "path", path, "error", err)
	}
}

// Directory returns the agents and contacts directory, read on first use.
func (l *Loader) Directory() (*models.Directory, error) {
	l.dirOnce.Do(func() {
		l.dir, l.dirErr = l.readDirectory()
	})
	return l.dir, l.dirErr
}

func (l *Loader) readDirectory() (*models.Directory, error) {
	dir := &models.Directory{
		Agents:   make(map[string]models.Agent),
		Contacts: make(map[string]models.Contact),
	}

	var agents []models.Agent
	if err := readJSON(l.path(UserDetailsDir, "all_agents.json"), &agents); err != nil {
		return nil, fmt.Errorf("read agents: %w", err)
	}
	for _, a := range agents {
		dir.Agents[strconv.FormatInt(a.ID, 10)] = a
	}

	var contacts []models.Contact
	if err := readJSON(l.path(UserDetailsDir, "all_contacts.json"), &contacts); err != nil {
		return nil, fmt.Errorf("read contacts: %w", err)
	}
	for _, c := range contacts {
		dir.Contacts[strconv.FormatInt(c.ID, 10)] = c
	}

	slog.Debug("user directory loaded", "agents", len(dir.Agents), "contacts", len(dir.Contacts))
	return dir, nil
}

// readJSON decodes path into dst; a missing file leaves dst untouched.
func readJSON(path string, dst any) error {
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	if err != nil {
		return err
	}
	return json.Unmarshal(data, dst)
}

// AttachmentPath locates the binary for an attachment. Conversation
// attachments are stored with a conv_ prefix.
func (l *Loader) AttachmentPath(ticketID int64, name string) (string, bool) {
	base := l.path(AttachmentsDir, strconv.FormatInt(ticketID, 10))
	for _, candidate := range []string{name, "conv_" + name} {
		p := filepath.Join(base, filepath.Base(candidate))
		if info, err := os.Stat(p); err == nil && !info.IsDir() {
			return p, true
		}
	}
	return "", false
}

// Validate checks that every required subdirectory exists.
func (l *Loader) Validate() error {
	var missing []string
	for _, d := range RequiredDirs {
		info, err := os.Stat(l.path(d))
		if err != nil || !info.IsDir() {
			missing = append(missing, d)
		}
	}
	if len(missing) > 0 {
		return fmt.Errorf("export %s is missing directories: %s", l.root, strings.Join(missing, ", "))
	}
	return nil
}
