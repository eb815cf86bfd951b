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

package transform

import (
	"github.com/deskbridge/migrator/internal/models"
)

// userEmail resolves a user id to an email, or models.UnknownIdentity.
func userEmail(v any, dir *models.Directory) (any, error) {
	id := userKey(v)
	if id == "" {
		return models.UnknownIdentity, nil
	}
	return dir.Email(id), nil
}

// userSystemField resolves a user id to the {"name": email} shape of a
// system user field. An unresolved user yields nil so the destination keeps
// its default.
func userSystemField(v any, dir *models.Directory) (any, error) {
	identity, ok := dir.Lookup(userKey(v))
	if !ok {
		return nil, nil
	}
	return map[string]string{"name": identity.Email}, nil
}

func userKey(v any) string {
	if n, ok := toInt(v); ok {
		if n == 0 {
			return ""
		}
		return models.ValueString(n)
	}
	s, _ := v.(string)
	return s
}
