package backend

import (
	"context"
	"fmt"
	"hash/fnv"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/ShayCichocki/proposer/internal/specialist"
)

const echoPreviewBytes = 120

// Echo answers every prompt locally with deterministic text. It is used for
// dry runs and demos without backend credentials.
type Echo struct{}

// NewEcho creates an Echo backend.
func NewEcho() *Echo {
	return &Echo{}
}

// Invoke implements specialist.Client.
func (Echo) Invoke(ctx context.Context, prompt string, _ time.Duration) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", classifyContext(ctx, err)
	}
	if strings.TrimSpace(prompt) == "" {
		return "", specialist.Errorf(specialist.KindBackendRejected, "empty prompt")
	}

	h := fnv.New32a()
	_, _ = h.Write([]byte(prompt))

	first := strings.TrimSpace(strings.SplitN(strings.TrimSpace(prompt), "\n", 2)[0])
	if len(first) > echoPreviewBytes {
		cut := echoPreviewBytes
		for cut > 0 && !utf8.RuneStart(first[cut]) {
			cut--
		}
		first = first[:cut]
	}
	return fmt.Sprintf("Offline draft %08x.\n\nPrompt opened with: %q", h.Sum32(), first), nil
}
