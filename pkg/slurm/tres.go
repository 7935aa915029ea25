package slurm

import (
	"strings"
)

// parseTRES splits a TRES-style value ("cpu=4,mem=16000M,gres/gpu=2") into
// the given map. Fragments without an "=" are skipped: real scontrol output
// contains trailing commas and they are not an error.
func parseTRES(value string, into map[string]string) {
	for _, part := range strings.Split(value, ",") {
		if part == "" {
			continue
		}
		k, v, ok := strings.Cut(part, "=")
		if !ok || k == "" {
			continue
		}
		into[k] = v
	}
}
