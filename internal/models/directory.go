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

package models

import "strconv"

// UnknownIdentity is returned when a user id cannot be resolved.
const UnknownIdentity = "Unknown"

// Contact is a customer identity. Email and name sit at the top level.
type Contact struct {
	ID    int64  `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
	Phone string `json:"phone,omitempty"`
}

// Agent is a helpdesk agent. Its identity is nested under Contact.
type Agent struct {
	ID        int64   `json:"id"`
	Available bool    `json:"available,omitempty"`
	Contact   Contact `json:"contact"`
}

// Identity is a resolved user.
type Identity struct {
	Name  string
	Email string
	Agent bool
}

// Directory is the read-only user lookup, keyed by user id string.
type Directory struct {
	Agents   map[string]Agent   `json:"agents"`
	Contacts map[string]Contact `json:"contacts"`
}

// Lookup resolves a user id. Agents are searched before contacts; a record
// without an email does not count as a match.
func (d *Directory) Lookup(userID string) (Identity, bool) {
	if d == nil || userID == "" {
		return Identity{}, false
	}
	if agent, ok := d.Agents[userID]; ok && agent.Contact.Email != "" {
		return Identity{Name: agent.Contact.Name, Email: agent.Contact.Email, Agent: true}, true
	}
	if contact, ok := d.Contacts[userID]; ok && contact.Email != "" {
		return Identity{Name: contact.Name, Email: contact.Email}, true
	}
	return Identity{}, false
}

// LookupID resolves an optional numeric user id.
func (d *Directory) LookupID(userID *int64) (Identity, bool) {
	if userID == nil {
		return Identity{}, false
	}
	return d.Lookup(strconv.FormatInt(*userID, 10))
}

// Email returns the email for a user id or UnknownIdentity.
func (d *Directory) Email(userID string) string {
	if id, ok := d.Lookup(userID); ok {
		return id.Email
	}
	return UnknownIdentity
}
