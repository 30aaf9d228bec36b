package models

import "github.com/google/uuid"

// ensureID assigns a fresh uuid when the caller left the primary key empty.
// Postgres also defaults the column, but sqlite-backed tests rely on this.
func ensureID(id *uuid.UUID) {
	if *id == uuid.Nil {
		*id = uuid.New()
	}
}
