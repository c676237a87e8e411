package program

import (
	"crypto/sha256"

	"github.com/arena-labs/syncer/src/utils/model"
)

const discriminatorSize = 8

type discriminator [discriminatorSize]byte

// Names of events as declared in the program
var eventNames = map[model.EventKind]string{
	model.EventKindCreated:  "MatchCreated",
	model.EventKindJoined:   "MatchJoined",
	model.EventKindResolved: "MatchResolved",
	model.EventKindRefunded: "MatchRefunded",
}

var (
	kindByDiscriminator = make(map[discriminator]model.EventKind)
	discriminatorByKind = make(map[model.EventKind]discriminator)
)

func init() {
	for kind, name := range eventNames {
		d := Discriminator(name)
		kindByDiscriminator[d] = kind
		discriminatorByKind[kind] = d
	}
}

// First 8 bytes of sha256("event:<Name>")
func Discriminator(name string) (out discriminator) {
	sum := sha256.Sum256([]byte("event:" + name))
	copy(out[:], sum[:discriminatorSize])
	return
}
