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

package export

import (
	"io/fs"
	"os"
	"path/filepath"
)

// previewIDs is how many ticket ids a Summary lists.
const previewIDs = 10

// Summary describes what an export contains.
type Summary struct {
	Root            string          `json:"data_directory"`
	TotalTickets    int             `json:"total_tickets"`
	TicketIDs       []int64         `json:"ticket_ids"`
	Directories     map[string]bool `json:"directories_exist"`
	Agents          int             `json:"total_agents"`
	Contacts        int             `json:"total_contacts"`
	AttachmentFiles int             `json:"attachment_files"`
	AttachmentBytes int64           `json:"attachment_bytes"`
}

// Summary counts tickets, users and attachment binaries.
func (l *Loader) Summary() (Summary, error) {
	s := Summary{Root: l.root, Directories: make(map[string]bool, len(RequiredDirs))}
	for _, d := range RequiredDirs {
		info, err := os.Stat(l.path(d))
		s.Directories[d] = err == nil && info.IsDir()
	}

	if s.Directories[TicketDetailsDir] {
		ids, err := l.TicketIDs()
		if err != nil {
			return s, err
		}
		s.TotalTickets = len(ids)
		if len(ids) > previewIDs {
			ids = ids[:previewIDs]
		}
		s.TicketIDs = ids
	}

	dir, err := l.Directory()
	if err != nil {
		return s, err
	}
	s.Agents = len(dir.Agents)
	s.Contacts = len(dir.Contacts)

	if s.Directories[AttachmentsDir] {
		err := filepath.WalkDir(l.path(AttachmentsDir), func(_ string, d fs.DirEntry, err error) error {
			if err != nil || d.IsDir() {
				return err
			}
			info, err := d.Info()
			if err != nil {
				return err
			}
			s.AttachmentFiles++
			s.AttachmentBytes += info.Size()
			return nil
		})
		if err != nil {
			return s, err
		}
	}
	return s, nil
}
