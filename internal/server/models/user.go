package models

import (
	"time"

	"github.com/dmitrijs2005/visionlock/internal/face"
)

// User is one enrolled identity. PinHash is an encoded argon2id hash and is
// only replaced through the reset-PIN flow.
type User struct {
	Seq       int64
	ID        string
	Identity  string
	Embedding face.Embedding
	PinHash   string
	CreatedAt time.Time
}
