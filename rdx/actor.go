package rdx

import (
	"strings"
	"unicode/utf8"

	"github.com/google/uuid"
)

// ActorID names a replica. Actors are totally ordered by plain byte-wise
// comparison of the string; the greater actor wins concurrent writes.
type ActorID string

func NewActorID() ActorID {
	return ActorID(strings.ReplaceAll(uuid.NewString(), "-", ""))
}

func (a ActorID) Valid() bool {
	if len(a) == 0 || len(a) > MaxActorLen || !utf8.ValidString(string(a)) {
		return false
	}
	for _, r := range a {
		if r <= ' ' || r == '@' || r == ',' || r == ':' {
			return false
		}
	}
	return true
}

func (a ActorID) Compare(b ActorID) int {
	return strings.Compare(string(a), string(b))
}

func (a ActorID) String() string {
	return string(a)
}

// Short is the first 8 chars, for logs.
func (a ActorID) Short() string {
	if len(a) > 8 {
		return string(a[:8])
	}
	return string(a)
}

const MaxActorLen = 128
