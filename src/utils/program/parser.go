package program

import (
	"encoding/base64"
	"errors"
	"strings"

	"github.com/arena-labs/syncer/src/utils/logger"

	"github.com/cosmos/btcutil/base58"
	"github.com/sirupsen/logrus"
)

const (
	dataPrefix    = "Program data: "
	programPrefix = "Program "
)

var ErrInvalidProgramId = errors.New("invalid program id")

// Extracts program events from transaction logs
type Parser struct {
	log       *logrus.Entry
	programId string
}

func NewParser(programId string) (self *Parser, err error) {
	if !isPubkey(programId) {
		return nil, ErrInvalidProgramId
	}

	self = new(Parser)
	self.log = logger.NewSublogger("parser")
	self.programId = programId
	return
}

func (self *Parser) ProgramId() string {
	return self.programId
}

// Parses all logs of a single transaction. Only data emitted while the program
// is on top of the invocation stack is considered, so logs of other programs
// called through CPI are skipped. Never fails, malformed lines are skipped.
func (self *Parser) ParseLogs(signature string, slot uint64, logs []string) (out []*Event) {
	var stack []string
	for _, line := range logs {
		switch {
		case strings.HasPrefix(line, dataPrefix):
			var current string
			if len(stack) > 0 {
				current = stack[len(stack)-1]
			}

			event := ParseLine(line, self.programId, current)
			if event == nil {
				continue
			}

			event.Signature = signature
			event.Slot = slot
			event.Index = len(out)
			out = append(out, event)

		case strings.HasPrefix(line, programPrefix):
			fields := strings.Fields(line)
			if len(fields) < 3 || !isPubkey(fields[1]) {
				// Program log text, e.g. "Program log: success"
				continue
			}
			switch {
			case fields[2] == "invoke":
				stack = append(stack, fields[1])
			case fields[2] == "success" || strings.HasPrefix(fields[2], "failed"):
				if len(stack) > 0 {
					stack = stack[:len(stack)-1]
				}
			}
		}
	}

	if len(out) > 0 {
		self.log.WithField("signature", signature).WithField("num", len(out)).Trace("Parsed events")
	}
	return
}

func isPubkey(v string) bool {
	return len(base58.Decode(v)) == pubkeySize
}

// Turns one "Program data:" line emitted by the emitter program into an event.
// Returns nil for lines of other programs, other events and malformed data.
func ParseLine(line, programId, emitter string) *Event {
	if emitter != programId || programId == "" {
		return nil
	}

	encoded, ok := strings.CutPrefix(line, dataPrefix)
	if !ok {
		return nil
	}

	raw, err := base64.StdEncoding.DecodeString(strings.TrimSpace(encoded))
	if err != nil {
		return nil
	}

	if len(raw) < discriminatorSize+pubkeySize {
		return nil
	}

	var d discriminator
	copy(d[:], raw[:discriminatorSize])
	kind, ok := kindByDiscriminator[d]
	if !ok {
		return nil
	}

	matchAddress := raw[discriminatorSize : discriminatorSize+pubkeySize]

	return &Event{
		Kind:         kind,
		MatchAddress: base58.Encode(matchAddress),
		Data:         append([]byte(nil), raw[discriminatorSize+pubkeySize:]...),
	}
}

// Builds the "Program data:" line the program emits for the event
func EncodeLine(matchAddress string, payload Payload) (string, error) {
	d, ok := discriminatorByKind[payload.Kind()]
	if !ok {
		return "", ErrInvalid
	}

	w := &writer{buf: append([]byte(nil), d[:]...)}
	err := w.pubkey(matchAddress)
	if err != nil {
		return "", err
	}

	err = payload.encode(w)
	if err != nil {
		return "", err
	}

	return dataPrefix + base64.StdEncoding.EncodeToString(w.buf), nil
}
