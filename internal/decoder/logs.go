package decoder

import (
	"encoding/base64"
	"strings"

	"github.com/gagliardetto/solana-go"
)

const (
	programPrefix     = "Program "
	programDataPrefix = "Program data: "
	logTruncated      = "Log truncated"
)

// logPayload is a "Program data:" payload emitted by the program on top of the invoke stack.
type logPayload struct {
	// Line is the index of the log line the payload came from.
	Line int
	// Outer is the index of the top level instruction that was executing.
	Outer int
	Data  []byte
	// Err is set when the payload is not valid base64.
	Err error
}

// programPayloads walks the log messages, tracking the invoke stack, and returns the payloads
// emitted while program was the executing program.
func programPayloads(logs []string, program solana.PublicKey) []logPayload {
	var (
		stack    []solana.PublicKey
		payloads []logPayload
		outer    = -1
	)

	for i, line := range logs {
		if strings.HasPrefix(line, logTruncated) {
			break
		}

		if data, ok := strings.CutPrefix(line, programDataPrefix); ok {
			if len(stack) == 0 || stack[len(stack)-1] != program {
				continue
			}

			// sol_log_data separates multiple slices with spaces, events use the first one
			field, _, _ := strings.Cut(strings.TrimSpace(data), " ")
			decoded, err := base64.StdEncoding.DecodeString(field)
			payloads = append(payloads, logPayload{Line: i, Outer: outer, Data: decoded, Err: err})

			continue
		}

		rest, ok := strings.CutPrefix(line, programPrefix)
		if !ok {
			continue
		}

		id, action, ok := strings.Cut(rest, " ")
		if !ok {
			continue
		}

		switch {
		case strings.HasPrefix(action, "invoke ["):
			pk, err := solana.PublicKeyFromBase58(id)
			if err != nil {
				continue
			}
			if len(stack) == 0 {
				outer++
			}
			stack = append(stack, pk)

		case action == "success" || strings.HasPrefix(action, "failed"):
			if len(stack) > 0 && stack[len(stack)-1].String() == id {
				stack = stack[:len(stack)-1]
			}
		}
	}

	return payloads
}
